// Package api provides HTTP handlers for the API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/recite/internal/api/shared"
	"github.com/phrazzld/recite/internal/domain"
	"github.com/phrazzld/recite/internal/platform/logger"
	"github.com/phrazzld/recite/internal/platform/sqlite"
)

// DeckResponse is the response shape for a deck.
type DeckResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func deckToResponse(d domain.Deck) DeckResponse {
	return DeckResponse{
		ID:          d.ID.String(),
		Name:        d.Name,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// DeckHandler handles deck and note management requests.
type DeckHandler struct {
	store  *sqlite.CardStore
	logger *slog.Logger
}

// NewDeckHandler creates a DeckHandler.
func NewDeckHandler(store *sqlite.CardStore, logger *slog.Logger) *DeckHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for DeckHandler")
	}
	return &DeckHandler{
		store:  store,
		logger: logger.With(slog.String("component", "deck_handler")),
	}
}

// CreateDeckRequest is the request body for creating a deck.
type CreateDeckRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// CreateDeck handles POST /decks requests.
func (h *DeckHandler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateDeckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid deck creation body", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	deck, err := h.store.CreateDeck(r.Context(), req.Name, req.Description)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("deck created", slog.String("deck_id", deck.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, deckToResponse(deck))
}

// ListDecks handles GET /decks requests.
func (h *DeckHandler) ListDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := h.store.ListDecks(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]DeckResponse, 0, len(decks))
	for _, d := range decks {
		responses = append(responses, deckToResponse(d))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// GetDeck handles GET /decks/{id} requests.
func (h *DeckHandler) GetDeck(w http.ResponseWriter, r *http.Request) {
	deckID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	deck, err := h.store.GetDeck(r.Context(), deckID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, deckToResponse(deck))
}

// GetSettings handles GET /decks/{id}/settings requests.
func (h *DeckHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	deckID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	// Verify the deck exists so a typo'd id does not return defaults.
	if _, err := h.store.GetDeck(r.Context(), deckID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	settings, err := h.store.GetSettings(r.Context(), deckID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, settingsToResponse(settings))
}

// SettingsRequest is the request body for updating deck settings. Step
// sequences are given in minutes.
type SettingsRequest struct {
	NewCardsPerDay   int       `json:"new_cards_per_day"`
	MaxReviewsPerDay int       `json:"max_reviews_per_day"`
	DesiredRetention float64   `json:"desired_retention"`
	MaximumInterval  int       `json:"max_interval"`
	LeechThreshold   uint32    `json:"leech_threshold"`
	LearningSteps    []float64 `json:"learning_steps"`
	RelearningSteps  []float64 `json:"relearning_steps"`
}

// SettingsResponse mirrors SettingsRequest plus the deck id, reporting the
// clamped values actually stored.
type SettingsResponse struct {
	DeckID           string    `json:"deck_id"`
	NewCardsPerDay   int       `json:"new_cards_per_day"`
	MaxReviewsPerDay int       `json:"max_reviews_per_day"`
	DesiredRetention float64   `json:"desired_retention"`
	MaximumInterval  int       `json:"max_interval"`
	LeechThreshold   uint32    `json:"leech_threshold"`
	LearningSteps    []float64 `json:"learning_steps"`
	RelearningSteps  []float64 `json:"relearning_steps"`
}

func settingsToResponse(s domain.DeckSettings) SettingsResponse {
	return SettingsResponse{
		DeckID:           s.DeckID,
		NewCardsPerDay:   s.NewCardsPerDay,
		MaxReviewsPerDay: s.MaxReviewsPerDay,
		DesiredRetention: s.DesiredRetention,
		MaximumInterval:  s.MaximumInterval,
		LeechThreshold:   s.LeechThreshold,
		LearningSteps:    durationsToMinutes(s.LearningSteps),
		RelearningSteps:  durationsToMinutes(s.RelearningSteps),
	}
}

func durationsToMinutes(steps []time.Duration) []float64 {
	out := make([]float64, 0, len(steps))
	for _, d := range steps {
		out = append(out, d.Minutes())
	}
	return out
}

func minutesToDurations(minutes []float64) []time.Duration {
	out := make([]time.Duration, 0, len(minutes))
	for _, m := range minutes {
		out = append(out, time.Duration(m*float64(time.Minute)))
	}
	return out
}

// UpdateSettings handles PUT /decks/{id}/settings requests. Out-of-range
// values are clamped, not rejected; the response carries the stored values.
func (h *DeckHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	deckID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.store.GetDeck(r.Context(), deckID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid settings body", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	settings := domain.DeckSettings{
		DeckID:           deckID.String(),
		NewCardsPerDay:   req.NewCardsPerDay,
		MaxReviewsPerDay: req.MaxReviewsPerDay,
		DesiredRetention: req.DesiredRetention,
		MaximumInterval:  req.MaximumInterval,
		LeechThreshold:   req.LeechThreshold,
		LearningSteps:    minutesToDurations(req.LearningSteps),
		RelearningSteps:  minutesToDurations(req.RelearningSteps),
	}

	if err := h.store.PutSettings(r.Context(), settings); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	stored, err := h.store.GetSettings(r.Context(), deckID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("deck settings updated", slog.String("deck_id", deckID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, settingsToResponse(stored))
}

// AddNoteRequest is the request body for adding a note to a deck. Fields is a
// JSON array of {name, value} pairs; Tags is space-separated.
type AddNoteRequest struct {
	ModelName string             `json:"model_name"`
	Fields    []domain.NoteField `json:"fields" validate:"required,min=1"`
	Tags      string             `json:"tags"`
}

// AddNoteResponse reports the id of the card generated from the note.
type AddNoteResponse struct {
	CardID string `json:"card_id"`
}

// AddNote handles POST /decks/{id}/notes requests.
func (h *DeckHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	deckID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.store.GetDeck(r.Context(), deckID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	var req AddNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid note body", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	fieldsJSON, err := json.Marshal(req.Fields)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid note fields")
		return
	}

	cardID, err := h.store.AddNote(r.Context(), deckID, req.ModelName, string(fieldsJSON), req.Tags)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("note added",
		slog.String("deck_id", deckID.String()),
		slog.String("card_id", cardID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, AddNoteResponse{CardID: cardID.String()})
}

// parseIDParam extracts and parses a UUID path parameter, writing the error
// response itself when the value is missing or malformed.
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing id in URL path")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid id format")
		return uuid.Nil, false
	}
	return id, true
}
