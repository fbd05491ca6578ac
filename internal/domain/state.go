package domain

// State represents a card's position in the scheduling lifecycle.
// The numeric values are persisted, so they must remain stable.
type State int

// Possible scheduling states.
const (
	StateNew        State = 0
	StateLearning   State = 1
	StateReview     State = 2
	StateRelearning State = 3
)

// Valid reports whether s is one of the four defined states.
func (s State) Valid() bool {
	return s >= StateNew && s <= StateRelearning
}

// InSteps reports whether the state is inside a learning or relearning
// step sequence.
func (s State) InSteps() bool {
	return s == StateLearning || s == StateRelearning
}

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateLearning:
		return "learning"
	case StateReview:
		return "review"
	case StateRelearning:
		return "relearning"
	default:
		return "unknown"
	}
}
