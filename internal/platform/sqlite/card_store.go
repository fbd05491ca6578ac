package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/phrazzld/recite/internal/domain"
	"github.com/phrazzld/recite/internal/session"
)

// Store errors.
var (
	ErrDeckNotFound   = errors.New("deck not found")
	ErrCardNotFound   = errors.New("card not found")
	ErrNoReviewToUndo = errors.New("no review to undo")
)

// defaultFetchLimit caps a due-card fetch when the scope does not set one.
const defaultFetchLimit = 50

// maxFetchLimit is the hard ceiling on a single fetch.
const maxFetchLimit = 200

// CardStore implements the session engine's persistence collaborator on the
// embedded database.
type CardStore struct {
	db     *DB
	logger *slog.Logger
}

// NewCardStore creates a CardStore.
func NewCardStore(db *DB, logger *slog.Logger) *CardStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CardStore{
		db:     db,
		logger: logger.With(slog.String("component", "card_store")),
	}
}

// cardRow is the flat scan target for a card joined with its note.
type cardRow struct {
	ID            string     `db:"id"`
	DeckID        string     `db:"deck_id"`
	NoteID        string     `db:"note_id"`
	CardType      string     `db:"card_type"`
	DueAt         time.Time  `db:"due_at"`
	State         int        `db:"fsrs_state"`
	Stability     float64    `db:"fsrs_stability"`
	Difficulty    float64    `db:"fsrs_difficulty"`
	ElapsedDays   float64    `db:"fsrs_elapsed_days"`
	ScheduledDays float64    `db:"fsrs_scheduled_days"`
	Reps          uint32     `db:"fsrs_reps"`
	Lapses        uint32     `db:"fsrs_lapses"`
	LastReview    *time.Time `db:"fsrs_last_review"`
	Step          uint32     `db:"fsrs_step"`
	Fields        string     `db:"fields"`
	Tags          string     `db:"tags"`
	SortPriority  int        `db:"sort_priority"`
}

func (r cardRow) snapshot() domain.CardSnapshot {
	return domain.CardSnapshot{
		ID:       uuid.MustParse(r.ID),
		NoteID:   uuid.MustParse(r.NoteID),
		DeckID:   uuid.MustParse(r.DeckID),
		CardType: r.CardType,
		Fields:   r.Fields,
		Tags:     r.Tags,
		Memory: domain.MemoryState{
			State:             domain.State(r.State),
			Stability:         r.Stability,
			Difficulty:        r.Difficulty,
			ElapsedDays:       r.ElapsedDays,
			ScheduledDays:     r.ScheduledDays,
			Reps:              r.Reps,
			Lapses:            r.Lapses,
			LastReviewAt:      r.LastReview,
			DueAt:             r.DueAt,
			LearningStepIndex: r.Step,
		},
	}
}

const cardColumns = `c.id, c.deck_id, c.note_id, c.card_type, c.due_at,
	c.fsrs_state, c.fsrs_stability, c.fsrs_difficulty, c.fsrs_elapsed_days,
	c.fsrs_scheduled_days, c.fsrs_reps, c.fsrs_lapses, c.fsrs_last_review,
	c.fsrs_step, n.fields, n.tags`

// FetchDue returns the batch of cards eligible for review now, in priority
// order: learning/relearning due now (no daily limit), then review cards up
// to the remaining daily review cap, then new cards up to the remaining
// daily new cap. Suspended and buried cards are excluded.
func (s *CardStore) FetchDue(ctx context.Context, scope session.FetchScope) (session.DueBatch, error) {
	var deck struct {
		ID   string `db:"id"`
		Name string `db:"name"`
	}
	err := s.db.GetContext(ctx, &deck,
		`SELECT id, name FROM decks WHERE id = ?`, scope.DeckID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return session.DueBatch{}, ErrDeckNotFound
	}
	if err != nil {
		return session.DueBatch{}, fmt.Errorf("failed to load deck: %w", err)
	}

	limit := scope.Limit
	if limit <= 0 {
		limit = defaultFetchLimit
	}
	if limit > maxFetchLimit {
		limit = maxFetchLimit
	}

	tagClause, tagArgs := tagFilter(scope.Tags)

	if scope.Cram {
		rows, err := s.fetchCram(ctx, scope, tagClause, tagArgs, limit)
		if err != nil {
			return session.DueBatch{}, err
		}
		return session.DueBatch{DeckName: deck.Name, Cards: rows}, nil
	}

	settings, err := s.GetSettings(ctx, scope.DeckID)
	if err != nil {
		return session.DueBatch{}, err
	}

	newDone, reviewDone, err := s.countToday(ctx, scope.DeckID)
	if err != nil {
		return session.DueBatch{}, err
	}

	newRemaining := settings.NewCardsPerDay - newDone
	if newRemaining < 0 {
		newRemaining = 0
	}
	reviewRemaining := settings.MaxReviewsPerDay - reviewDone
	if reviewRemaining < 0 {
		reviewRemaining = 0
	}

	now := time.Now().UTC()

	baseWhere := `c.deck_id = ? AND c.due_at <= ? AND c.suspended = 0
		AND (c.buried_until IS NULL OR c.buried_until <= ?)` + tagClause
	baseArgs := func() []interface{} {
		args := []interface{}{scope.DeckID.String(), now, now}
		return append(args, tagArgs...)
	}

	query := `SELECT * FROM (
		SELECT ` + cardColumns + `, 0 AS sort_priority
		FROM cards c JOIN notes n ON n.id = c.note_id
		WHERE c.fsrs_state IN (1, 3) AND ` + baseWhere + `
	UNION ALL
		SELECT * FROM (
			SELECT ` + cardColumns + `, 1 AS sort_priority
			FROM cards c JOIN notes n ON n.id = c.note_id
			WHERE c.fsrs_state = 2 AND ` + baseWhere + `
			ORDER BY c.due_at ASC
			LIMIT ?
		)
	UNION ALL
		SELECT * FROM (
			SELECT ` + cardColumns + `, 2 AS sort_priority
			FROM cards c JOIN notes n ON n.id = c.note_id
			WHERE c.fsrs_state = 0 AND ` + baseWhere + `
			ORDER BY c.due_at ASC
			LIMIT ?
		)
	)
	ORDER BY sort_priority ASC, due_at ASC
	LIMIT ?`

	var args []interface{}
	args = append(args, baseArgs()...)
	args = append(args, baseArgs()...)
	args = append(args, reviewRemaining)
	args = append(args, baseArgs()...)
	args = append(args, newRemaining)
	args = append(args, limit)

	var rows []cardRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return session.DueBatch{}, fmt.Errorf("failed to fetch due cards: %w", err)
	}

	cards := make([]domain.CardSnapshot, 0, len(rows))
	for _, r := range rows {
		cards = append(cards, r.snapshot())
	}
	return session.DueBatch{DeckName: deck.Name, Cards: cards}, nil
}

// fetchCram ignores due times and daily caps, ordering least-rehearsed cards
// first with random tie-breaking.
func (s *CardStore) fetchCram(ctx context.Context, scope session.FetchScope, tagClause string, tagArgs []interface{}, limit int) ([]domain.CardSnapshot, error) {
	stateClause := ""
	if scope.CramState != nil {
		switch *scope.CramState {
		case domain.StateNew:
			stateClause = ` AND c.fsrs_state = 0`
		case domain.StateLearning, domain.StateRelearning:
			stateClause = ` AND c.fsrs_state IN (1, 3)`
		case domain.StateReview:
			stateClause = ` AND c.fsrs_state = 2`
		}
	}

	now := time.Now().UTC()
	query := `SELECT ` + cardColumns + `, 0 AS sort_priority
		FROM cards c JOIN notes n ON n.id = c.note_id
		WHERE c.deck_id = ? AND c.suspended = 0
			AND (c.buried_until IS NULL OR c.buried_until <= ?)` +
		stateClause + tagClause + `
		ORDER BY c.fsrs_reps ASC, RANDOM()
		LIMIT ?`

	args := []interface{}{scope.DeckID.String(), now}
	args = append(args, tagArgs...)
	args = append(args, limit)

	var rows []cardRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch cram cards: %w", err)
	}

	cards := make([]domain.CardSnapshot, 0, len(rows))
	for _, r := range rows {
		cards = append(cards, r.snapshot())
	}
	return cards, nil
}

// memoryRow mirrors a card's scheduling columns, either live on the card or
// snapshotted on a review row under the prev_ prefix.
type memoryRow struct {
	DueAt         time.Time  `db:"due_at"`
	State         int        `db:"fsrs_state"`
	Stability     float64    `db:"fsrs_stability"`
	Difficulty    float64    `db:"fsrs_difficulty"`
	ElapsedDays   float64    `db:"fsrs_elapsed_days"`
	ScheduledDays float64    `db:"fsrs_scheduled_days"`
	Reps          uint32     `db:"fsrs_reps"`
	Lapses        uint32     `db:"fsrs_lapses"`
	LastReview    *time.Time `db:"fsrs_last_review"`
	Step          uint32     `db:"fsrs_step"`
}

func (r memoryRow) memory() domain.MemoryState {
	return domain.MemoryState{
		State:             domain.State(r.State),
		Stability:         r.Stability,
		Difficulty:        r.Difficulty,
		ElapsedDays:       r.ElapsedDays,
		ScheduledDays:     r.ScheduledDays,
		Reps:              r.Reps,
		Lapses:            r.Lapses,
		LastReviewAt:      r.LastReview,
		DueAt:             r.DueAt,
		LearningStepIndex: r.Step,
	}
}

// PersistGrade records a grading event: the card's new memory state plus a
// review log row. The review row keeps the card's full pre-grade memory
// state, so daily cap counting can bucket completions and an undo can
// restore the card without any other context.
func (s *CardStore) PersistGrade(ctx context.Context, cardID uuid.UUID, memory domain.MemoryState, grade domain.Grade, duration time.Duration) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var prev struct {
		DeckID string `db:"deck_id"`
		memoryRow
	}
	err = tx.GetContext(ctx, &prev,
		`SELECT deck_id, due_at, fsrs_state, fsrs_stability, fsrs_difficulty,
			fsrs_elapsed_days, fsrs_scheduled_days, fsrs_reps, fsrs_lapses,
			fsrs_last_review, fsrs_step
		FROM cards WHERE id = ?`, cardID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCardNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load card: %w", err)
	}

	if err := updateCardMemory(ctx, tx, cardID, memory); err != nil {
		return err
	}

	record := domain.NewReviewRecord(cardID, uuid.MustParse(prev.DeckID), grade,
		duration, domain.State(prev.State), time.Now())
	_, err = tx.ExecContext(ctx,
		`INSERT INTO reviews (id, card_id, deck_id, grade, duration_ms, state_at_review,
			prev_due_at, prev_fsrs_state, prev_fsrs_stability, prev_fsrs_difficulty,
			prev_fsrs_elapsed_days, prev_fsrs_scheduled_days, prev_fsrs_reps,
			prev_fsrs_lapses, prev_fsrs_last_review, prev_fsrs_step, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID.String(), record.CardID.String(), record.DeckID.String(),
		string(record.Grade), record.Duration.Milliseconds(), int(record.StateAtRev),
		prev.DueAt, prev.State, prev.Stability, prev.Difficulty,
		prev.ElapsedDays, prev.ScheduledDays, prev.Reps,
		prev.Lapses, prev.LastReview, prev.Step,
		record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}

	return tx.Commit()
}

// RevertGrade restores the card's memory state to a pre-grade snapshot and
// deletes the newest review log row for the card.
func (s *CardStore) RevertGrade(ctx context.Context, cardID uuid.UUID, memory domain.MemoryState) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := updateCardMemory(ctx, tx, cardID, memory); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM reviews WHERE id = (
			SELECT id FROM reviews WHERE card_id = ? ORDER BY created_at DESC LIMIT 1
		)`, cardID.String())
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}

	return tx.Commit()
}

// UndoLastReview reverts the newest logged review for the card using the
// memory snapshot stored on the review row: the card's scheduling state is
// restored, a suspension applied alongside the grade is lifted, and the row
// is deleted. Returns the restored memory state.
func (s *CardStore) UndoLastReview(ctx context.Context, cardID uuid.UUID) (domain.MemoryState, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.MemoryState{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var row struct {
		ID string `db:"review_id"`
		memoryRow
	}
	err = tx.GetContext(ctx, &row,
		`SELECT id AS review_id, prev_due_at AS due_at, prev_fsrs_state AS fsrs_state,
			prev_fsrs_stability AS fsrs_stability, prev_fsrs_difficulty AS fsrs_difficulty,
			prev_fsrs_elapsed_days AS fsrs_elapsed_days, prev_fsrs_scheduled_days AS fsrs_scheduled_days,
			prev_fsrs_reps AS fsrs_reps, prev_fsrs_lapses AS fsrs_lapses,
			prev_fsrs_last_review AS fsrs_last_review, prev_fsrs_step AS fsrs_step
		FROM reviews
		WHERE card_id = ? AND prev_fsrs_state IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1`, cardID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MemoryState{}, ErrNoReviewToUndo
	}
	if err != nil {
		return domain.MemoryState{}, fmt.Errorf("failed to load review snapshot: %w", err)
	}

	memory := row.memory()
	if err := updateCardMemory(ctx, tx, cardID, memory); err != nil {
		return domain.MemoryState{}, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE cards SET suspended = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		cardID.String())
	if err != nil {
		return domain.MemoryState{}, fmt.Errorf("failed to clear suspended flag: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, row.ID); err != nil {
		return domain.MemoryState{}, fmt.Errorf("failed to delete review: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.MemoryState{}, fmt.Errorf("failed to commit undo: %w", err)
	}
	return memory, nil
}

// GetCard loads one card with its note content.
func (s *CardStore) GetCard(ctx context.Context, cardID uuid.UUID) (domain.CardSnapshot, error) {
	var row cardRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+cardColumns+`, 0 AS sort_priority
		FROM cards c JOIN notes n ON n.id = c.note_id
		WHERE c.id = ?`, cardID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CardSnapshot{}, ErrCardNotFound
	}
	if err != nil {
		return domain.CardSnapshot{}, fmt.Errorf("failed to load card: %w", err)
	}
	return row.snapshot(), nil
}

// SetSuspended flips the card's suspended flag.
func (s *CardStore) SetSuspended(ctx context.Context, cardID uuid.UUID, suspended bool) error {
	flag := 0
	if suspended {
		flag = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE cards SET suspended = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		flag, cardID.String())
	if err != nil {
		return fmt.Errorf("failed to set suspended flag: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrCardNotFound
	}
	return nil
}

func updateCardMemory(ctx context.Context, tx *sqlx.Tx, cardID uuid.UUID, memory domain.MemoryState) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE cards SET
			due_at = ?,
			fsrs_state = ?,
			fsrs_stability = ?,
			fsrs_difficulty = ?,
			fsrs_elapsed_days = ?,
			fsrs_scheduled_days = ?,
			fsrs_reps = ?,
			fsrs_lapses = ?,
			fsrs_last_review = ?,
			fsrs_step = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		memory.DueAt, int(memory.State), memory.Stability, memory.Difficulty,
		memory.ElapsedDays, memory.ScheduledDays, memory.Reps, memory.Lapses,
		memory.LastReviewAt, memory.LearningStepIndex, cardID.String())
	if err != nil {
		return fmt.Errorf("failed to update card memory: %w", err)
	}
	return nil
}

// countToday counts completions since the last 4 AM UTC day rollover,
// bucketed by the card's state at review time.
func (s *CardStore) countToday(ctx context.Context, deckID uuid.UUID) (newDone, reviewDone int, err error) {
	var counts struct {
		NewDone    int `db:"new_done"`
		ReviewDone int `db:"review_done"`
	}
	err = s.db.GetContext(ctx, &counts,
		`SELECT
			COALESCE(SUM(CASE WHEN state_at_review = 0 THEN 1 ELSE 0 END), 0) AS new_done,
			COALESCE(SUM(CASE WHEN state_at_review = 2 THEN 1 ELSE 0 END), 0) AS review_done
		FROM reviews
		WHERE deck_id = ? AND created_at >= ?`,
		deckID.String(), dayStart(time.Now()))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count today's reviews: %w", err)
	}
	return counts.NewDone, counts.ReviewDone, nil
}

// dayStart returns the start of the study day: 4 AM UTC, matching the usual
// spaced-repetition rollover.
func dayStart(now time.Time) time.Time {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 4, 0, 0, 0, time.UTC)
	if now.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

// tagFilter builds a SQL clause matching notes carrying any of the tags.
// Tags are stored space-separated on the note.
func tagFilter(tags []string) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		conditions = append(conditions, `(' ' || n.tags || ' ') LIKE ?`)
		args = append(args, "% "+tag+" %")
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " AND (" + strings.Join(conditions, " OR ") + ")", args
}

// GetSettings loads the deck's scheduler settings, falling back to defaults
// when none are stored. Stored values are clamped on the way out.
func (s *CardStore) GetSettings(ctx context.Context, deckID uuid.UUID) (domain.DeckSettings, error) {
	var row struct {
		NewCardsPerDay   int     `db:"new_cards_per_day"`
		MaxReviewsPerDay int     `db:"max_reviews_per_day"`
		DesiredRetention float64 `db:"desired_retention"`
		MaxInterval      int     `db:"max_interval"`
		LeechThreshold   uint32  `db:"leech_threshold"`
		LearningSteps    string  `db:"learning_steps"`
		RelearningSteps  string  `db:"relearning_steps"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT new_cards_per_day, max_reviews_per_day, desired_retention,
			max_interval, leech_threshold, learning_steps, relearning_steps
		FROM deck_settings WHERE deck_id = ?`, deckID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultDeckSettings(deckID.String()), nil
	}
	if err != nil {
		return domain.DeckSettings{}, fmt.Errorf("failed to load deck settings: %w", err)
	}

	settings := domain.DeckSettings{
		DeckID:           deckID.String(),
		NewCardsPerDay:   row.NewCardsPerDay,
		MaxReviewsPerDay: row.MaxReviewsPerDay,
		DesiredRetention: row.DesiredRetention,
		MaximumInterval:  row.MaxInterval,
		LeechThreshold:   row.LeechThreshold,
		LearningSteps:    parseSteps(row.LearningSteps),
		RelearningSteps:  parseSteps(row.RelearningSteps),
	}
	settings.Clamp()
	return settings, nil
}

// PutSettings clamps and upserts the deck's scheduler settings.
func (s *CardStore) PutSettings(ctx context.Context, settings domain.DeckSettings) error {
	settings.Clamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deck_settings (deck_id, new_cards_per_day, max_reviews_per_day,
			desired_retention, max_interval, leech_threshold,
			learning_steps, relearning_steps, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(deck_id) DO UPDATE SET
			new_cards_per_day = excluded.new_cards_per_day,
			max_reviews_per_day = excluded.max_reviews_per_day,
			desired_retention = excluded.desired_retention,
			max_interval = excluded.max_interval,
			leech_threshold = excluded.leech_threshold,
			learning_steps = excluded.learning_steps,
			relearning_steps = excluded.relearning_steps,
			updated_at = excluded.updated_at`,
		settings.DeckID, settings.NewCardsPerDay, settings.MaxReviewsPerDay,
		settings.DesiredRetention, settings.MaximumInterval, settings.LeechThreshold,
		formatSteps(settings.LearningSteps), formatSteps(settings.RelearningSteps))
	if err != nil {
		return fmt.Errorf("failed to save deck settings: %w", err)
	}
	return nil
}

// parseSteps converts a comma-separated list of minute values into
// durations, dropping anything non-positive or unparseable.
func parseSteps(s string) []time.Duration {
	var steps []time.Duration
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		minutes, err := strconv.ParseFloat(part, 64)
		if err != nil || minutes <= 0 {
			continue
		}
		steps = append(steps, time.Duration(minutes*float64(time.Minute)))
	}
	return steps
}

// formatSteps renders step durations as a comma-separated minute list.
func formatSteps(steps []time.Duration) string {
	parts := make([]string, 0, len(steps))
	for _, d := range steps {
		parts = append(parts, strconv.FormatFloat(d.Minutes(), 'f', -1, 64))
	}
	return strings.Join(parts, ",")
}
