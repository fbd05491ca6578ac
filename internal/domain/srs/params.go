package srs

import (
	"fmt"
	"time"

	"github.com/phrazzld/recite/internal/domain"
)

// Weights are the 21 trainable weights of the forgetting-curve model
// (FSRS v6). Indices follow the published parameterization: w[0..3] initial
// stability per grade, w[4..7] difficulty, w[8..10] recall stability,
// w[11..14] post-lapse stability, w[15..16] hard penalty / easy bonus,
// w[17..19] same-day review, w[20] decay exponent.
type Weights [21]float64

// DefaultWeights are the published FSRS v6 defaults.
var DefaultWeights = Weights{
	0.212, 1.2931, 2.3065, 8.2956,
	6.4133, 0.8334, 3.0194, 0.001,
	1.8722, 0.1666, 0.796, 1.4835,
	0.0614, 0.2629, 1.6483, 0.6014,
	1.8729, 0.5425, 0.0912, 0.0658,
	0.1542,
}

// weightLowerBounds and weightUpperBounds bound each weight; values outside
// indicate a corrupt or foreign parameter set rather than a tunable choice.
var weightLowerBounds = Weights{
	0.001, 0.001, 0.001, 0.001,
	1.0, 0.001, 0.001, 0.001,
	0.0, 0.0, 0.001, 0.001,
	0.001, 0.001, 0.0, 0.0,
	1.0, 0.0, 0.0, 0.0,
	0.1,
}

var weightUpperBounds = Weights{
	100.0, 100.0, 100.0, 100.0,
	10.0, 4.0, 4.0, 0.75,
	4.5, 0.8, 3.5, 5.0,
	0.25, 0.9, 4.0, 1.0,
	6.0, 2.0, 2.0, 0.8,
	0.8,
}

// Validate checks that every weight is inside its published bounds.
func (w Weights) Validate() error {
	for i := range w {
		if w[i] < weightLowerBounds[i] || w[i] > weightUpperBounds[i] {
			return fmt.Errorf("%w: w[%d] = %f, bounds [%f, %f]",
				ErrInvalidWeights, i, w[i], weightLowerBounds[i], weightUpperBounds[i])
		}
	}
	return nil
}

// Params defines all configurable parameters for the scheduling algorithm.
type Params struct {
	// Weights are the forgetting-curve model weights.
	Weights Weights

	// DesiredRetention is the recall probability the scheduler targets
	// when converting stability into an interval. Must be in (0, 1).
	DesiredRetention float64

	// MaximumInterval caps any scheduled interval, in days.
	MaximumInterval int

	// LearningSteps are the fixed delays a New/Learning card walks through
	// before graduating to interval scheduling. Empty means no steps.
	LearningSteps []time.Duration

	// RelearningSteps are the fixed delays a lapsed card walks through
	// before returning to Review. Empty means no steps.
	RelearningSteps []time.Duration

	// LeechThreshold is the lapse count at which a card is considered a
	// leech and must be suspended.
	LeechThreshold uint32
}

// NewDefaultParams creates a Params instance with default values.
func NewDefaultParams() *Params {
	return &Params{
		Weights:          DefaultWeights,
		DesiredRetention: domain.DefaultDesiredRetention,
		MaximumInterval:  domain.DefaultMaximumInterval,
		LearningSteps:    domain.DefaultLearningSteps,
		RelearningSteps:  domain.DefaultRelearningSteps,
		LeechThreshold:   domain.DefaultLeechThreshold,
	}
}

// ParamsFromSettings builds scheduler parameters from a deck's settings.
// The settings are clamped to their documented bounds first, so out-of-range
// stored values degrade gracefully instead of failing.
func ParamsFromSettings(settings domain.DeckSettings) *Params {
	settings.Clamp()
	p := NewDefaultParams()
	p.DesiredRetention = settings.DesiredRetention
	p.MaximumInterval = settings.MaximumInterval
	p.LeechThreshold = settings.LeechThreshold
	if settings.LearningSteps != nil {
		p.LearningSteps = settings.LearningSteps
	}
	if settings.RelearningSteps != nil {
		p.RelearningSteps = settings.RelearningSteps
	}
	return p
}

// normalize clamps params that arrived out of range. Boundary inputs are
// clamped, never rejected.
func (p *Params) normalize() {
	if p.DesiredRetention <= 0 || p.DesiredRetention >= 1 {
		p.DesiredRetention = domain.DefaultDesiredRetention
	}
	if p.MaximumInterval < 1 {
		p.MaximumInterval = domain.DefaultMaximumInterval
	}
	if p.LeechThreshold < 1 {
		p.LeechThreshold = domain.DefaultLeechThreshold
	}
}
