package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recite/internal/domain"
)

// FetchScope selects which cards a session pulls at start.
type FetchScope struct {
	// DeckID scopes the fetch to one deck.
	DeckID uuid.UUID

	// Limit caps the batch size. Zero means the store default.
	Limit int

	// Tags optionally restricts to notes carrying any of these tags.
	Tags []string

	// Cram ignores due times and daily caps. CramState optionally narrows
	// a cram fetch to one scheduling state.
	Cram      bool
	CramState *domain.State
}

// DueBatch is the result of a due-card fetch.
type DueBatch struct {
	DeckName string
	Cards    []domain.CardSnapshot
}

// CardStore is the persistence collaborator the engine depends on.
// Every call is time-bounded by the engine; implementations should honor
// context cancellation.
type CardStore interface {
	// FetchDue returns the batch of cards eligible for review now.
	FetchDue(ctx context.Context, scope FetchScope) (DueBatch, error)

	// PersistGrade records a grading event: the card's new memory state
	// plus a review log entry for the grade.
	PersistGrade(ctx context.Context, cardID uuid.UUID, memory domain.MemoryState, grade domain.Grade, duration time.Duration) error

	// RevertGrade restores a card's memory state to a pre-grade snapshot
	// and deletes the newest review log entry for the card.
	RevertGrade(ctx context.Context, cardID uuid.UUID, memory domain.MemoryState) error

	// SetSuspended flips the card's suspended flag. Suspension is
	// orthogonal to the scheduling state.
	SetSuspended(ctx context.Context, cardID uuid.UUID, suspended bool) error
}

// Speaker is the speech-output collaborator. Speak blocks until the text has
// been fully spoken or Stop cancels it. Stop is safe to call when nothing is
// playing.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Stop()
	LastSpokenText() string
}

// Explainer produces a spoken explanation for a card.
type Explainer interface {
	Explain(ctx context.Context, front, back string) (string, error)
}
