package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Deck groups notes that are studied together and carries the per-deck
// scheduling settings.
type Deck struct {
	ID          uuid.UUID `json:"id"          db:"id"`
	Name        string    `json:"name"        db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at"  db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"  db:"updated_at"`
}

// NewDeck creates a deck with a trimmed name.
// Returns ErrEmptyContent when the name is blank.
func NewDeck(name, description string) (Deck, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Deck{}, ErrEmptyContent
	}
	now := time.Now().UTC()
	return Deck{
		ID:          uuid.New(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Note is the authored content a card is generated from. Fields is a JSON
// array of NoteField; Tags is a space-separated list.
type Note struct {
	ID        uuid.UUID `json:"id"         db:"id"`
	DeckID    uuid.UUID `json:"deck_id"    db:"deck_id"`
	ModelName string    `json:"model_name" db:"model_name"`
	Fields    string    `json:"fields"     db:"fields"`
	Tags      string    `json:"tags"       db:"tags"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
