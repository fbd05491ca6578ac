package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReviewRecord is one logged grading event. The store keeps these so the
// newest one can be deleted on undo and so daily new/review caps can count
// today's completions.
type ReviewRecord struct {
	ID         uuid.UUID     `json:"id"          db:"id"`
	CardID     uuid.UUID     `json:"card_id"     db:"card_id"`
	DeckID     uuid.UUID     `json:"deck_id"     db:"deck_id"`
	Grade      Grade         `json:"grade"       db:"grade"`
	Duration   time.Duration `json:"duration_ms" db:"duration_ms"`
	StateAtRev State         `json:"state_at_review" db:"state_at_review"`
	CreatedAt  time.Time     `json:"created_at"  db:"created_at"`
}

// NewReviewRecord creates a review log entry for a grading event.
// stateAtReview is the card's state before the grade was applied; the daily
// cap counters bucket completions by it.
func NewReviewRecord(cardID, deckID uuid.UUID, grade Grade, duration time.Duration, stateAtReview State, now time.Time) ReviewRecord {
	return ReviewRecord{
		ID:         uuid.New(),
		CardID:     cardID,
		DeckID:     deckID,
		Grade:      grade,
		Duration:   duration,
		StateAtRev: stateAtReview,
		CreatedAt:  now.UTC(),
	}
}
