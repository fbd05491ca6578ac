package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/recite/internal/domain"
	"github.com/phrazzld/recite/internal/session"
)

func newTestStore(t *testing.T) *CardStore {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewCardStore(db, nil)
}

func addBasicNote(t *testing.T, store *CardStore, deckID uuid.UUID, front, back, tags string) uuid.UUID {
	t.Helper()
	fields := `[{"name":"Front","value":"` + front + `"},{"name":"Back","value":"` + back + `"}]`
	cardID, err := store.AddNote(context.Background(), deckID, "basic", fields, tags)
	require.NoError(t, err)
	return cardID
}

// forceCardState rewrites a card's scheduling state directly, bypassing the
// scheduler, to stage fetch scenarios.
func forceCardState(t *testing.T, store *CardStore, cardID uuid.UUID, state domain.State, dueAt time.Time) {
	t.Helper()
	_, err := store.db.Exec(
		`UPDATE cards SET fsrs_state = ?, due_at = ?, fsrs_reps = 1 WHERE id = ?`,
		int(state), dueAt, cardID.String())
	require.NoError(t, err)
}

func TestCreateAndGetDeck(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	deck, err := store.CreateDeck(ctx, "  German  ", "vocab")
	require.NoError(t, err)
	assert.Equal(t, "German", deck.Name)

	loaded, err := store.GetDeck(ctx, deck.ID)
	require.NoError(t, err)
	assert.Equal(t, deck.ID, loaded.ID)
	assert.Equal(t, "vocab", loaded.Description)

	byName, err := store.GetDeckByName(ctx, "German")
	require.NoError(t, err)
	assert.Equal(t, deck.ID, byName.ID)

	_, err = store.GetDeck(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrDeckNotFound)

	_, err = store.CreateDeck(ctx, "   ", "")
	assert.ErrorIs(t, err, domain.ErrEmptyContent)
}

func TestAddNoteCreatesNewCard(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	deck, err := store.CreateDeck(ctx, "German", "")
	require.NoError(t, err)
	cardID := addBasicNote(t, store, deck.ID, "Hund", "dog", "")

	card, err := store.GetCard(ctx, cardID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNew, card.Memory.State)
	assert.Zero(t, card.Memory.Reps)
	assert.Equal(t, deck.ID, card.DeckID)

	front, back := domain.RenderCard(card.Fields, card.CardType)
	assert.Equal(t, "Hund", front)
	assert.Equal(t, "dog", back)
}

func TestAddNoteRejectsBadFields(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	deck, err := store.CreateDeck(ctx, "German", "")
	require.NoError(t, err)

	_, err = store.AddNote(ctx, deck.ID, "basic", "not json", "")
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)

	_, err = store.AddNote(ctx, deck.ID, "basic", "[]", "")
	assert.ErrorIs(t, err, domain.ErrEmptyContent)
}

func TestFetchDuePriorityOrder(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	deck, err := store.CreateDeck(ctx, "German", "")
	require.NoError(t, err)

	newCard := addBasicNote(t, store, deck.ID, "new", "n", "")
	reviewCard := addBasicNote(t, store, deck.ID, "review", "r", "")
	learningCard := addBasicNote(t, store, deck.ID, "learning", "l", "")

	past := time.Now().UTC().Add(-time.Hour)
	forceCardState(t, store, reviewCard, domain.StateReview, past)
	forceCardState(t, store, learningCard, domain.StateLearning, past)

	batch, err := store.FetchDue(ctx, session.FetchScope{DeckID: deck.ID})
	require.NoError(t, err)
	require.Len(t, batch.Cards, 3)
	assert.Equal(t, "German", batch.DeckName)

	// learning first, then review, then new.
	assert.Equal(t, learningCard, batch.Cards[0].ID)
	assert.Equal(t, reviewCard, batch.Cards[1].ID)
	assert.Equal(t, newCard, batch.Cards[2].ID)
}

func TestFetchDueExcludesSuspendedAndFuture(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	deck, err := store.CreateDeck(ctx, "German", "")
	require.NoError(t, err)

	suspendedCard := addBasicNote(t, store, deck.ID, "suspended", "s", "")
	futureCard := addBasicNote(t, store, deck.ID, "future", "f", "")
	dueCard := addBasicNote(t, store, deck.ID, "due", "d", "")

	require.NoError(t, store.SetSuspended(ctx, suspendedCard, true))
	forceCardState(t, store, futureCard, domain.StateReview, time.Now().UTC().Add(48*time.Hour))

	batch, err := store.FetchDue(ctx, session.FetchScope{DeckID: deck.ID})
	require.NoError(t, err)
	require.Len(t, batch.Cards, 1)
	assert.Equal(t, dueCard, batch.Cards[0].ID)
}

func TestFetchDueRespectsDailyNewCap(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	deck, err := store.CreateDeck(ctx, "German", "")
	require.NoError(t, err)
	addBasicNote(t, store, deck.ID, "one", "1", "")
	addBasicNote(t, store, deck.ID, "two", "2", "")

	settings := domain.DefaultDeckSettings(deck.ID.String())
	settings.NewCardsPerDay = 1
	require.NoError(t, store.PutSettings(ctx, settings))

	batch, err := store.FetchDue(ctx, session.FetchScope{DeckID: deck.ID})
	require.NoError(t, err)
	assert.Len(t, batch.Cards, 1)

	// Grading the one new card uses up the day's allowance.
	card, err := store.GetCard(ctx, batch.Cards[0].ID)
	require.NoError(t, err)
	graded := card.Memory
	graded.State = domain.StateLearning
	graded.Reps = 1
	graded.DueAt = time.Now().UTC().Add(10 * time.Hour)
	require.NoError(t, store.PersistGrade(ctx, card.ID, graded, domain.GradeGood, time.Second))

	batch, err = store.FetchDue(ctx, session.FetchScope{DeckID: deck.ID})
	require.NoError(t, err)
	assert.Empty(t, batch.Cards, "new cap exhausted and graded card not yet due")
}

func TestFetchDueTagFilter(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	deck, err := store.CreateDeck(ctx, "Geo", "")
	require.NoError(t, err)
	tagged := addBasicNote(t, store, deck.ID, "Paris", "France", "geo capitals")
	addBasicNote(t, store, deck.ID, "Hund", "dog", "vocab")

	batch, err := store.FetchDue(ctx, session.FetchScope{DeckID: deck.ID, Tags: []string{"geo"}})
	require.NoError(t, err)
	require.Len(t, batch.Cards, 1)
	assert.Equal(t, tagged, batch.Cards[0].ID)

	// A tag only matches whole: "capital" is not "capitals".
	batch, err = store.FetchDue(ctx, session.FetchScope{DeckID: deck.ID, Tags: []string{"capital"}})
	require.NoError(t, err)
	assert.Empty(t, batch.Cards)
}

func TestFetchDueCramIgnoresDueTimes(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	deck, err := store.CreateDeck(ctx, "German", "")
	require.NoError(t, err)
	future := addBasicNote(t, store, deck.ID, "future", "f", "")
	forceCardState(t, store, future, domain.StateReview, time.Now().UTC().Add(72*time.Hour))

	batch, err := store.FetchDue(ctx, session.FetchScope{DeckID: deck.ID, Cram: true})
	require.NoError(t, err)
	assert.Len(t, batch.Cards, 1, "cram fetches regardless of due time")

	state := domain.StateNew
	batch, err = store.FetchDue(ctx, session.FetchScope{DeckID: deck.ID, Cram: true, CramState: &state})
	require.NoError(t, err)
	assert.Empty(t, batch.Cards, "state-narrowed cram excludes review cards")
}

func TestPersistAndRevertGrade(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	deck, err := store.CreateDeck(ctx, "German", "")
	require.NoError(t, err)
	cardID := addBasicNote(t, store, deck.ID, "Hund", "dog", "")

	before, err := store.GetCard(ctx, cardID)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	graded := before.Memory
	graded.State = domain.StateLearning
	graded.Stability = 2.5
	graded.Reps = 1
	graded.LastReviewAt = &now
	graded.DueAt = now.Add(10 * time.Minute)

	require.NoError(t, store.PersistGrade(ctx, cardID, graded, domain.GradeGood, 3*time.Second))

	after, err := store.GetCard(ctx, cardID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateLearning, after.Memory.State)
	assert.Equal(t, uint32(1), after.Memory.Reps)
	assert.InDelta(t, 2.5, after.Memory.Stability, 1e-9)

	var reviewCount int
	require.NoError(t, store.db.Get(&reviewCount, `SELECT COUNT(*) FROM reviews WHERE card_id = ?`, cardID.String()))
	assert.Equal(t, 1, reviewCount)

	require.NoError(t, store.RevertGrade(ctx, cardID, before.Memory))

	reverted, err := store.GetCard(ctx, cardID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNew, reverted.Memory.State)
	assert.Zero(t, reverted.Memory.Reps)

	require.NoError(t, store.db.Get(&reviewCount, `SELECT COUNT(*) FROM reviews WHERE card_id = ?`, cardID.String()))
	assert.Zero(t, reviewCount, "revert deletes the newest review row")
}

func TestUndoLastReviewRestoresSnapshot(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	deck, err := store.CreateDeck(ctx, "German", "")
	require.NoError(t, err)
	cardID := addBasicNote(t, store, deck.ID, "Hund", "dog", "")

	before, err := store.GetCard(ctx, cardID)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	graded := before.Memory
	graded.State = domain.StateLearning
	graded.Stability = 2.5
	graded.Reps = 1
	graded.LastReviewAt = &now
	graded.DueAt = now.Add(10 * time.Minute)
	require.NoError(t, store.PersistGrade(ctx, cardID, graded, domain.GradeGood, time.Second))

	// A leech suspension alongside the grade is lifted by the undo.
	require.NoError(t, store.SetSuspended(ctx, cardID, true))

	restored, err := store.UndoLastReview(ctx, cardID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNew, restored.State)
	assert.Zero(t, restored.Reps)

	after, err := store.GetCard(ctx, cardID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNew, after.Memory.State)

	var reviewCount int
	require.NoError(t, store.db.Get(&reviewCount, `SELECT COUNT(*) FROM reviews WHERE card_id = ?`, cardID.String()))
	assert.Zero(t, reviewCount, "undo deletes the review row")

	batch, err := store.FetchDue(ctx, session.FetchScope{DeckID: deck.ID})
	require.NoError(t, err)
	require.Len(t, batch.Cards, 1, "the unsuspended card is due again")
	assert.Equal(t, cardID, batch.Cards[0].ID)
}

func TestUndoLastReviewWithoutHistory(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	deck, err := store.CreateDeck(ctx, "German", "")
	require.NoError(t, err)
	cardID := addBasicNote(t, store, deck.ID, "Hund", "dog", "")

	_, err = store.UndoLastReview(ctx, cardID)
	assert.ErrorIs(t, err, ErrNoReviewToUndo)
}

func TestPersistGradeUnknownCard(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	err := store.PersistGrade(context.Background(), uuid.New(), domain.MemoryState{}, domain.GradeGood, 0)
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestSetSuspended(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	deck, err := store.CreateDeck(ctx, "German", "")
	require.NoError(t, err)
	cardID := addBasicNote(t, store, deck.ID, "Hund", "dog", "")

	require.NoError(t, store.SetSuspended(ctx, cardID, true))

	var suspended int
	require.NoError(t, store.db.Get(&suspended, `SELECT suspended FROM cards WHERE id = ?`, cardID.String()))
	assert.Equal(t, 1, suspended)

	require.NoError(t, store.SetSuspended(ctx, cardID, false))
	require.NoError(t, store.db.Get(&suspended, `SELECT suspended FROM cards WHERE id = ?`, cardID.String()))
	assert.Zero(t, suspended)

	assert.ErrorIs(t, store.SetSuspended(ctx, uuid.New(), true), ErrCardNotFound)
}

func TestSettingsRoundTripWithClamping(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	deck, err := store.CreateDeck(ctx, "German", "")
	require.NoError(t, err)

	// No stored row yet: defaults come back.
	settings, err := store.GetSettings(ctx, deck.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultNewCardsPerDay, settings.NewCardsPerDay)
	assert.Equal(t, domain.DefaultLearningSteps, settings.LearningSteps)

	settings.NewCardsPerDay = 5
	settings.DesiredRetention = 2.0 // out of range, clamped on save
	settings.LearningSteps = []time.Duration{30 * time.Second, 5 * time.Minute}
	require.NoError(t, store.PutSettings(ctx, settings))

	stored, err := store.GetSettings(ctx, deck.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.NewCardsPerDay)
	assert.Equal(t, 0.99, stored.DesiredRetention)
	assert.Equal(t, []time.Duration{30 * time.Second, 5 * time.Minute}, stored.LearningSteps)

	// Upsert overwrites.
	settings.NewCardsPerDay = 7
	require.NoError(t, store.PutSettings(ctx, settings))
	stored, err = store.GetSettings(ctx, deck.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, stored.NewCardsPerDay)
}

func TestCountCards(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	deck, err := store.CreateDeck(ctx, "German", "")
	require.NoError(t, err)
	addBasicNote(t, store, deck.ID, "a", "1", "")
	reviewCard := addBasicNote(t, store, deck.ID, "b", "2", "")
	forceCardState(t, store, reviewCard, domain.StateReview, time.Now().UTC())

	counts, err := store.CountCards(ctx, deck.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.StateNew])
	assert.Equal(t, 1, counts[domain.StateReview])
}

func TestDayStart(t *testing.T) {
	t.Parallel()

	// After 4 AM: today's 4 AM.
	noon := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC), dayStart(noon))

	// Before 4 AM: yesterday's 4 AM.
	early := time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 9, 4, 0, 0, 0, time.UTC), dayStart(early))
}

func TestParseAndFormatSteps(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []time.Duration{time.Minute, 10 * time.Minute}, parseSteps("1,10"))
	assert.Equal(t, []time.Duration{30 * time.Second}, parseSteps("0.5"))
	assert.Empty(t, parseSteps(""))
	assert.Empty(t, parseSteps("-1, junk"))

	assert.Equal(t, "1,10", formatSteps([]time.Duration{time.Minute, 10 * time.Minute}))
	assert.Equal(t, "0.5", formatSteps([]time.Duration{30 * time.Second}))
	assert.Equal(t, "", formatSteps(nil))
}
