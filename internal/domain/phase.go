package domain

// SessionPhase is the position of a live session within the
// question→answer→rating cycle. It gates which commands are legal.
type SessionPhase string

// Session phases.
const (
	PhaseQuestion SessionPhase = "question"
	PhaseRating   SessionPhase = "rating"
)
