package srs

import "errors"

// Common errors returned by the scheduling service.
var (
	// ErrInvalidGrade is returned when a grade outside the four defined
	// values reaches the scheduler.
	ErrInvalidGrade = errors.New("invalid grade")

	// ErrInvalidWeights is returned when a model weight is outside its
	// published bounds.
	ErrInvalidWeights = errors.New("invalid model weights")
)
