package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/recite/internal/domain"
	"github.com/phrazzld/recite/internal/platform/sqlite"
)

// MapErrorToStatusCode maps domain and store errors to HTTP status codes.
// Unknown errors map to 500.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, sqlite.ErrDeckNotFound),
		errors.Is(err, sqlite.ErrCardNotFound),
		errors.Is(err, sqlite.ErrNoReviewToUndo):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidGrade),
		errors.Is(err, domain.ErrEmptyContent):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for an error. Raw error
// strings are only exposed for the known domain errors; everything else gets
// a generic message.
func GetSafeErrorMessage(err error) string {
	switch {
	case errors.Is(err, sqlite.ErrDeckNotFound):
		return "Deck not found"
	case errors.Is(err, sqlite.ErrCardNotFound):
		return "Card not found"
	case errors.Is(err, sqlite.ErrNoReviewToUndo):
		return "No undoable review found"
	case errors.Is(err, domain.ErrInvalidGrade):
		return "Invalid grade: must be one of again, hard, good, easy"
	case errors.Is(err, domain.ErrInvalidFormat):
		return "Invalid request format"
	case errors.Is(err, domain.ErrEmptyContent):
		return "Content cannot be empty"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidID):
		return "Invalid request"
	default:
		return "An internal error occurred"
	}
}
