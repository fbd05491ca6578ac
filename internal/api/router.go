package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/phrazzld/recite/internal/api/shared"
	"github.com/phrazzld/recite/internal/platform/sqlite"
	"github.com/phrazzld/recite/internal/session"
)

// NewRouter builds the HTTP API router.
func NewRouter(store *sqlite.CardStore, logger *slog.Logger) http.Handler {
	deckHandler := NewDeckHandler(store, logger)
	reviewHandler := NewReviewHandler(store, logger)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(traceMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/decks", func(r chi.Router) {
		r.Get("/", deckHandler.ListDecks)
		r.Post("/", deckHandler.CreateDeck)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", deckHandler.GetDeck)
			r.Get("/settings", deckHandler.GetSettings)
			r.Put("/settings", deckHandler.UpdateSettings)
			r.Post("/notes", deckHandler.AddNote)
			r.Get("/cards/next", reviewHandler.GetNextCard)
		})
	})

	r.Route("/cards/{id}", func(r chi.Router) {
		r.Post("/review", reviewHandler.SubmitReview)
		r.Post("/review/undo", reviewHandler.UndoReview)
		r.Post("/suspend", reviewHandler.SetSuspended)
	})

	return r
}

// traceMiddleware attaches a trace ID to every request context.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(shared.SetTraceID(r.Context())))
	})
}

// fetchScopeForDeck is the due-card scope an API fetch uses: one deck, no
// tag filter, normal (non-cram) scheduling.
func fetchScopeForDeck(deckID uuid.UUID, limit int) session.FetchScope {
	return session.FetchScope{DeckID: deckID, Limit: limit}
}
