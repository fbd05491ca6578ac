package gemini

import "errors"

// Errors returned by the explainer. Transient failures may be retried;
// the others are permanent for a given request.
var (
	ErrInvalidConfig    = errors.New("invalid explainer configuration")
	ErrEmptyCard        = errors.New("card text cannot be empty")
	ErrContentBlocked   = errors.New("content blocked by safety filters")
	ErrInvalidResponse  = errors.New("invalid response from LLM")
	ErrTransientFailure = errors.New("transient LLM failure")
)
