package domain

import "time"

// Default deck settings, matching the values a new deck starts with.
const (
	DefaultNewCardsPerDay   = 20
	DefaultMaxReviewsPerDay = 200
	DefaultDesiredRetention = 0.9
	DefaultMaximumInterval  = 36500
	DefaultLeechThreshold   = 8
)

// DefaultLearningSteps and DefaultRelearningSteps are the step sequences a
// deck uses when none are configured.
var (
	DefaultLearningSteps   = []time.Duration{time.Minute, 10 * time.Minute}
	DefaultRelearningSteps = []time.Duration{10 * time.Minute}
)

// DeckSettings holds the per-deck scheduling configuration.
// Values outside the documented bounds are clamped, never rejected: the
// settings surface is user-facing and a bad value must not break reviewing.
type DeckSettings struct {
	DeckID           string          `json:"deck_id"             db:"deck_id"`
	NewCardsPerDay   int             `json:"new_cards_per_day"   db:"new_cards_per_day"`
	MaxReviewsPerDay int             `json:"max_reviews_per_day" db:"max_reviews_per_day"`
	DesiredRetention float64         `json:"desired_retention"   db:"desired_retention"`
	MaximumInterval  int             `json:"max_interval"        db:"max_interval"`
	LeechThreshold   uint32          `json:"leech_threshold"     db:"leech_threshold"`
	LearningSteps    []time.Duration `json:"learning_steps"      db:"-"`
	RelearningSteps  []time.Duration `json:"relearning_steps"    db:"-"`
}

// DefaultDeckSettings returns the settings used when a deck has none stored.
func DefaultDeckSettings(deckID string) DeckSettings {
	return DeckSettings{
		DeckID:           deckID,
		NewCardsPerDay:   DefaultNewCardsPerDay,
		MaxReviewsPerDay: DefaultMaxReviewsPerDay,
		DesiredRetention: DefaultDesiredRetention,
		MaximumInterval:  DefaultMaximumInterval,
		LeechThreshold:   DefaultLeechThreshold,
		LearningSteps:    DefaultLearningSteps,
		RelearningSteps:  DefaultRelearningSteps,
	}
}

// Clamp forces every field into its documented range:
// new/day and reviews/day into [0, 9999], retention into [0.5, 0.99],
// maximum interval into [1, 36500] days, leech threshold into [1, 99].
// Non-positive step delays are dropped; step order is preserved.
func (s *DeckSettings) Clamp() {
	s.NewCardsPerDay = clampInt(s.NewCardsPerDay, 0, 9999)
	s.MaxReviewsPerDay = clampInt(s.MaxReviewsPerDay, 0, 9999)
	s.DesiredRetention = clampFloat(s.DesiredRetention, 0.5, 0.99)
	s.MaximumInterval = clampInt(s.MaximumInterval, 1, 36500)
	if s.LeechThreshold < 1 {
		s.LeechThreshold = 1
	}
	if s.LeechThreshold > 99 {
		s.LeechThreshold = 99
	}
	s.LearningSteps = dropNonPositive(s.LearningSteps)
	s.RelearningSteps = dropNonPositive(s.RelearningSteps)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// dropNonPositive copies rather than filtering in place: settings frequently
// alias the shared default step slices.
func dropNonPositive(steps []time.Duration) []time.Duration {
	out := make([]time.Duration, 0, len(steps))
	for _, d := range steps {
		if d > 0 {
			out = append(out, d)
		}
	}
	return out
}
