package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/recite/internal/domain"
)

// CreateDeck inserts a new deck.
func (s *CardStore) CreateDeck(ctx context.Context, name, description string) (domain.Deck, error) {
	deck, err := domain.NewDeck(name, description)
	if err != nil {
		return domain.Deck{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decks (id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		deck.ID.String(), deck.Name, deck.Description, deck.CreatedAt, deck.UpdatedAt)
	if err != nil {
		return domain.Deck{}, fmt.Errorf("failed to insert deck: %w", err)
	}
	return deck, nil
}

// ListDecks returns all decks ordered by name.
func (s *CardStore) ListDecks(ctx context.Context) ([]domain.Deck, error) {
	var decks []domain.Deck
	err := s.db.SelectContext(ctx, &decks,
		`SELECT id, name, description, created_at, updated_at FROM decks ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	return decks, nil
}

// GetDeck loads a deck by id.
func (s *CardStore) GetDeck(ctx context.Context, id uuid.UUID) (domain.Deck, error) {
	var deck domain.Deck
	err := s.db.GetContext(ctx, &deck,
		`SELECT id, name, description, created_at, updated_at FROM decks WHERE id = ?`,
		id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Deck{}, ErrDeckNotFound
	}
	if err != nil {
		return domain.Deck{}, fmt.Errorf("failed to load deck: %w", err)
	}
	return deck, nil
}

// GetDeckByName loads a deck by exact name.
func (s *CardStore) GetDeckByName(ctx context.Context, name string) (domain.Deck, error) {
	var deck domain.Deck
	err := s.db.GetContext(ctx, &deck,
		`SELECT id, name, description, created_at, updated_at FROM decks WHERE name = ?`,
		strings.TrimSpace(name))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Deck{}, ErrDeckNotFound
	}
	if err != nil {
		return domain.Deck{}, fmt.Errorf("failed to load deck: %w", err)
	}
	return deck, nil
}

// AddNote inserts a note and its card in one transaction. The note's fields
// must be a JSON array of name/value pairs; the card starts New and due now.
// Returns the new card's id.
func (s *CardStore) AddNote(ctx context.Context, deckID uuid.UUID, modelName, fieldsJSON, tags string) (uuid.UUID, error) {
	var fields []domain.NoteField
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return uuid.Nil, fmt.Errorf("%w: note fields must be a JSON array", domain.ErrInvalidFormat)
	}
	if len(fields) == 0 {
		return uuid.Nil, domain.ErrEmptyContent
	}
	if modelName == "" {
		modelName = "basic"
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	noteID := uuid.New()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO notes (id, deck_id, model_name, fields, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		noteID.String(), deckID.String(), modelName, fieldsJSON,
		strings.TrimSpace(tags), now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert note: %w", err)
	}

	memory := domain.NewMemoryState(now)
	cardID := uuid.New()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO cards (id, deck_id, note_id, card_type, due_at, fsrs_state,
			fsrs_stability, fsrs_difficulty, fsrs_elapsed_days, fsrs_scheduled_days,
			fsrs_reps, fsrs_lapses, fsrs_last_review, fsrs_step,
			suspended, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		cardID.String(), deckID.String(), noteID.String(), modelName,
		memory.DueAt, int(memory.State), memory.Stability, memory.Difficulty,
		memory.ElapsedDays, memory.ScheduledDays, memory.Reps, memory.Lapses,
		memory.LastReviewAt, memory.LearningStepIndex, now, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert card: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit note: %w", err)
	}
	return cardID, nil
}

// CountCards returns per-state card counts for a deck.
func (s *CardStore) CountCards(ctx context.Context, deckID uuid.UUID) (map[domain.State]int, error) {
	var rows []struct {
		State int `db:"fsrs_state"`
		Count int `db:"n"`
	}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT fsrs_state, COUNT(*) AS n FROM cards
		WHERE deck_id = ? AND suspended = 0
		GROUP BY fsrs_state`, deckID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to count cards: %w", err)
	}
	counts := make(map[domain.State]int, len(rows))
	for _, r := range rows {
		counts[domain.State(r.State)] = r.Count
	}
	return counts, nil
}
