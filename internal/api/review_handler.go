package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/recite/internal/api/shared"
	"github.com/phrazzld/recite/internal/domain"
	"github.com/phrazzld/recite/internal/domain/srs"
	"github.com/phrazzld/recite/internal/platform/logger"
	"github.com/phrazzld/recite/internal/platform/sqlite"
)

// ReviewHandler handles grading and due-card requests.
type ReviewHandler struct {
	store  *sqlite.CardStore
	logger *slog.Logger
}

// NewReviewHandler creates a ReviewHandler.
func NewReviewHandler(store *sqlite.CardStore, logger *slog.Logger) *ReviewHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ReviewHandler")
	}
	return &ReviewHandler{
		store:  store,
		logger: logger.With(slog.String("component", "review_handler")),
	}
}

// NextCardResponse is one due card with its rendered spoken text.
type NextCardResponse struct {
	ID       string    `json:"id"`
	DeckID   string    `json:"deck_id"`
	NoteID   string    `json:"note_id"`
	CardType string    `json:"card_type"`
	Front    string    `json:"front"`
	Back     string    `json:"back"`
	State    string    `json:"state"`
	DueAt    time.Time `json:"due_at"`
}

func cardToNextResponse(c domain.CardSnapshot) NextCardResponse {
	front, back := domain.RenderCard(c.Fields, c.CardType)
	return NextCardResponse{
		ID:       c.ID.String(),
		DeckID:   c.DeckID.String(),
		NoteID:   c.NoteID.String(),
		CardType: c.CardType,
		Front:    front,
		Back:     back,
		State:    c.Memory.State.String(),
		DueAt:    c.Memory.DueAt,
	}
}

// GetNextCard handles GET /decks/{id}/cards/next requests. Returns 204 when
// nothing is due.
func (h *ReviewHandler) GetNextCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	deckID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	batch, err := h.store.FetchDue(r.Context(), fetchScopeForDeck(deckID, 1))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if len(batch.Cards) == 0 {
		log.Debug("no cards due", slog.String("deck_id", deckID.String()))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, cardToNextResponse(batch.Cards[0]))
}

// SubmitReviewRequest is the request body for grading a card.
type SubmitReviewRequest struct {
	Grade      string `json:"grade" validate:"required,oneof=again hard good easy"`
	DurationMS int64  `json:"duration_ms"`
}

// SubmitReviewResponse reports the card's post-grade scheduling state.
type SubmitReviewResponse struct {
	CardID        string    `json:"card_id"`
	State         string    `json:"state"`
	Stability     float64   `json:"stability"`
	Difficulty    float64   `json:"difficulty"`
	ScheduledDays float64   `json:"scheduled_days"`
	Reps          uint32    `json:"reps"`
	Lapses        uint32    `json:"lapses"`
	DueAt         time.Time `json:"due_at"`
	Leech         bool      `json:"leech"`
}

// SubmitReview handles POST /cards/{id}/review requests. The grade runs
// through the deck's scheduler; a card whose lapse count reaches the leech
// threshold on Again is suspended as part of the same request.
func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	cardID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req SubmitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid review body", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	grade, err := domain.ParseGrade(req.Grade)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, GetSafeErrorMessage(domain.ErrInvalidGrade))
		return
	}

	card, err := h.store.GetCard(r.Context(), cardID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	settings, err := h.store.GetSettings(r.Context(), card.DeckID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	scheduler, err := srs.NewServiceWithParams(srs.ParamsFromSettings(settings))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to build scheduler", err)
		return
	}

	next, err := scheduler.Schedule(card.Memory, grade, time.Now())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if err := h.store.PersistGrade(r.Context(), cardID, next, grade, time.Duration(req.DurationMS)*time.Millisecond); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	leech := grade == domain.GradeAgain && scheduler.IsLeech(next.Lapses)
	if leech {
		if err := h.store.SetSuspended(r.Context(), cardID, true); err != nil {
			shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
			return
		}
		log.Info("card suspended as leech",
			slog.String("card_id", cardID.String()),
			slog.Uint64("lapses", uint64(next.Lapses)))
	}

	log.Debug("review submitted",
		slog.String("card_id", cardID.String()),
		slog.String("grade", string(grade)),
		slog.String("next_state", next.State.String()))

	shared.RespondWithJSON(w, r, http.StatusOK, SubmitReviewResponse{
		CardID:        cardID.String(),
		State:         next.State.String(),
		Stability:     next.Stability,
		Difficulty:    next.Difficulty,
		ScheduledDays: next.ScheduledDays,
		Reps:          next.Reps,
		Lapses:        next.Lapses,
		DueAt:         next.DueAt,
		Leech:         leech,
	})
}

// UndoReviewResponse reports the card's restored scheduling state.
type UndoReviewResponse struct {
	CardID string    `json:"card_id"`
	State  string    `json:"state"`
	Reps   uint32    `json:"reps"`
	Lapses uint32    `json:"lapses"`
	DueAt  time.Time `json:"due_at"`
}

// UndoReview handles POST /cards/{id}/review/undo requests. The newest
// logged review is deleted, the card's memory state is restored from the
// snapshot taken when it was graded, and a suspension applied alongside
// that grade is lifted.
func (h *ReviewHandler) UndoReview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	cardID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	memory, err := h.store.UndoLastReview(r.Context(), cardID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("review undone",
		slog.String("card_id", cardID.String()),
		slog.String("restored_state", memory.State.String()))

	shared.RespondWithJSON(w, r, http.StatusOK, UndoReviewResponse{
		CardID: cardID.String(),
		State:  memory.State.String(),
		Reps:   memory.Reps,
		Lapses: memory.Lapses,
		DueAt:  memory.DueAt,
	})
}

// SuspendRequest is the request body for setting a card's suspended flag.
type SuspendRequest struct {
	Suspended bool `json:"suspended"`
}

// SetSuspended handles POST /cards/{id}/suspend requests.
func (h *ReviewHandler) SetSuspended(w http.ResponseWriter, r *http.Request) {
	cardID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req SuspendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.store.SetSuspended(r.Context(), cardID, req.Suspended); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
