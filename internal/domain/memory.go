package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for MemoryState.
var (
	ErrNegativeStability  = errors.New("stability cannot be negative")
	ErrNegativeDifficulty = errors.New("difficulty cannot be negative")
	ErrRepsStateMismatch  = errors.New("reps must be zero exactly when state is new")
)

// MemoryState holds the persisted forgetting-curve parameters and scheduling
// state of one card. It is created when a card is first added and mutated
// exclusively by the scheduler as a result of a grade.
type MemoryState struct {
	State             State      `json:"state"              db:"fsrs_state"`
	Stability         float64    `json:"stability"          db:"fsrs_stability"`
	Difficulty        float64    `json:"difficulty"         db:"fsrs_difficulty"`
	ElapsedDays       float64    `json:"elapsed_days"       db:"fsrs_elapsed_days"`
	ScheduledDays     float64    `json:"scheduled_days"     db:"fsrs_scheduled_days"`
	Reps              uint32     `json:"reps"               db:"fsrs_reps"`
	Lapses            uint32     `json:"lapses"             db:"fsrs_lapses"`
	LastReviewAt      *time.Time `json:"last_review_at"     db:"fsrs_last_review"`
	DueAt             time.Time  `json:"due_at"             db:"due_at"`
	LearningStepIndex uint32     `json:"learning_step_index" db:"fsrs_step"`
}

// NewMemoryState creates the memory state for a freshly added card.
// The card is New, has never been reviewed, and is due immediately.
func NewMemoryState(now time.Time) MemoryState {
	return MemoryState{
		State: StateNew,
		DueAt: now.UTC(),
	}
}

// Validate checks the MemoryState invariants.
// Reps must be zero exactly when the state is New.
func (m *MemoryState) Validate() error {
	if !m.State.Valid() {
		return ErrInvalidState
	}
	if m.Stability < 0 {
		return ErrNegativeStability
	}
	if m.Difficulty < 0 {
		return ErrNegativeDifficulty
	}
	if (m.Reps == 0) != (m.State == StateNew) {
		return ErrRepsStateMismatch
	}
	return nil
}

// CardSnapshot is the ephemeral, session-facing view of a card: identity,
// rendered spoken text, and the scheduling state the session needs for queue
// decisions. It is built at session start or on grading and discarded once
// presented or undone.
type CardSnapshot struct {
	ID       uuid.UUID `json:"id"       db:"id"`
	NoteID   uuid.UUID `json:"note_id"  db:"note_id"`
	DeckID   uuid.UUID `json:"deck_id"  db:"deck_id"`
	CardType string    `json:"card_type" db:"card_type"`
	Fields   string    `json:"fields"   db:"fields"`
	Tags     string    `json:"tags"     db:"tags"`
	Front    string    `json:"front"    db:"-"`
	Back     string    `json:"back"     db:"-"`
	Memory   MemoryState
}

// InSteps reports whether the snapshot's card is mid-acquisition.
func (c *CardSnapshot) InSteps() bool {
	return c.Memory.State.InSteps()
}
