package srs

import (
	"math"

	"github.com/phrazzld/recite/internal/domain"
)

// model evaluates the forgetting-curve equations. It precomputes the decay
// exponent and curve factor so per-review work is a handful of float ops.
type model struct {
	w      Weights
	decay  float64 // -w[20]
	factor float64 // 0.9^(1/decay) - 1
}

func newModel(w Weights) model {
	decay := -w[20]
	return model{
		w:      w,
		decay:  decay,
		factor: math.Pow(0.9, 1.0/decay) - 1.0,
	}
}

// retrievability computes the probability of recall after elapsedDays given
// the card's stability: R(t, S) = (1 + factor*t/S)^decay.
func (m *model) retrievability(elapsedDays, stability float64) float64 {
	return math.Pow(1+m.factor*elapsedDays/stability, m.decay)
}

// initialStability returns the stability assigned on a card's first review.
func (m *model) initialStability(grade domain.Grade) float64 {
	return clampStability(m.w[grade.Ordinal()-1])
}

// initialDifficulty returns the difficulty assigned on a card's first review:
// D0(G) = w[4] - e^(w[5]*(G-1)) + 1.
// The mean-reversion target uses the unclamped value, so clamping is optional.
func (m *model) initialDifficulty(grade domain.Grade, clamp bool) float64 {
	d := m.w[4] - math.Exp(m.w[5]*float64(grade.Ordinal()-1)) + 1
	if clamp {
		return clampDifficulty(d)
	}
	return d
}

// intervalDays converts stability into a whole-day interval targeting the
// desired retention, clamped to [1, maxInterval].
func (m *model) intervalDays(stability, desiredRetention float64, maxInterval int) int {
	ivl := stability / m.factor * (math.Pow(desiredRetention, 1.0/m.decay) - 1)
	days := int(math.Round(ivl))
	if days < 1 {
		days = 1
	}
	if days > maxInterval {
		days = maxInterval
	}
	return days
}

// stabilitySameDay computes the updated stability for a review on the same
// day as the previous one, where the full forgetting curve does not apply.
func (m *model) stabilitySameDay(stability float64, grade domain.Grade) float64 {
	inc := math.Exp(m.w[17]*(float64(grade.Ordinal())-3+m.w[18])) * math.Pow(stability, -m.w[19])
	if grade == domain.GradeGood || grade == domain.GradeEasy {
		inc = math.Max(inc, 1.0)
	}
	return clampStability(stability * inc)
}

// nextDifficulty computes the updated difficulty after a review, applying
// linear damping and mean reversion toward the Easy initial difficulty.
func (m *model) nextDifficulty(difficulty float64, grade domain.Grade) float64 {
	deltaD := -m.w[6] * (float64(grade.Ordinal()) - 3)
	damped := difficulty + (10-difficulty)*deltaD/9
	target := m.initialDifficulty(domain.GradeEasy, false)
	return clampDifficulty(m.w[7]*target + (1-m.w[7])*damped)
}

// nextStability computes the updated stability after a cross-day review.
func (m *model) nextStability(difficulty, stability, retrievability float64, grade domain.Grade) float64 {
	if grade == domain.GradeAgain {
		return clampStability(m.stabilityAfterForget(difficulty, stability, retrievability))
	}
	return clampStability(m.stabilityAfterRecall(difficulty, stability, retrievability, grade))
}

// stabilityAfterRecall grows stability after a successful recall, with a
// penalty for Hard and a bonus for Easy.
func (m *model) stabilityAfterRecall(d, s, r float64, grade domain.Grade) float64 {
	hardPenalty := 1.0
	if grade == domain.GradeHard {
		hardPenalty = m.w[15]
	}
	easyBonus := 1.0
	if grade == domain.GradeEasy {
		easyBonus = m.w[16]
	}
	return s * (1 + math.Exp(m.w[8])*
		(11-d)*
		math.Pow(s, -m.w[9])*
		(math.Exp((1-r)*m.w[10])-1)*
		hardPenalty*easyBonus)
}

// stabilityAfterForget shrinks stability after a lapse. The result is capped
// by the same-day forget stability so a lapse never increases stability.
func (m *model) stabilityAfterForget(d, s, r float64) float64 {
	long := m.w[11] *
		math.Pow(d, -m.w[12]) *
		(math.Pow(s+1, m.w[13]) - 1) *
		math.Exp((1-r)*m.w[14])
	short := s / math.Exp(m.w[17]*m.w[18])
	return math.Min(long, short)
}

func clampStability(s float64) float64 {
	return math.Max(s, 0.001)
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, 1), 10)
}
