package srs

import (
	"time"

	"github.com/phrazzld/recite/internal/domain"
)

// minutesPerDay converts step delays into fractional scheduled days.
const minutesPerDay = 24 * 60

// Service defines the interface for scheduling operations.
// Schedule is a total function over the four grades: every grade produces a
// defined successor state for every card state.
type Service interface {
	// Schedule computes the card's next memory state after a grade.
	// The input state is not mutated. For a card with zero reps the memory
	// is initialized from scratch at now.
	//
	// Returns ErrInvalidGrade if the grade is not one of the four defined
	// values; no defined grade is ever invalid.
	Schedule(memory domain.MemoryState, grade domain.Grade, now time.Time) (domain.MemoryState, error)

	// IsLeech reports whether the given lapse count has reached the
	// configured leech threshold. Callers evaluate this only when the
	// applied grade was Again.
	IsLeech(lapses uint32) bool

	// Params returns the parameters the service schedules with.
	Params() *Params
}

// defaultService is the standard implementation of the Service interface.
// It layers fixed learning/relearning steps on top of the continuous
// forgetting-curve model: the model keeps stability, difficulty, reps and
// lapses current on every grade, while step logic overrides state and due
// time until the card graduates.
type defaultService struct {
	params *Params
	model  model
}

// NewDefaultService creates a scheduling service with default parameters.
func NewDefaultService() (Service, error) {
	return NewServiceWithParams(NewDefaultParams())
}

// NewServiceWithParams creates a scheduling service with custom parameters.
// Out-of-range retention, interval, and threshold values are clamped;
// weights outside their published bounds return ErrInvalidWeights.
func NewServiceWithParams(params *Params) (Service, error) {
	if params == nil {
		params = NewDefaultParams()
	}
	if err := params.Weights.Validate(); err != nil {
		return nil, err
	}
	params.normalize()
	return &defaultService{
		params: params,
		model:  newModel(params.Weights),
	}, nil
}

func (s *defaultService) Params() *Params {
	return s.params
}

func (s *defaultService) IsLeech(lapses uint32) bool {
	return lapses >= s.params.LeechThreshold
}

func (s *defaultService) Schedule(memory domain.MemoryState, grade domain.Grade, now time.Time) (domain.MemoryState, error) {
	if !grade.Valid() {
		return domain.MemoryState{}, ErrInvalidGrade
	}
	now = now.UTC()
	next := memory

	// Elapsed time since the previous review, in days.
	var elapsedDays float64
	if memory.LastReviewAt != nil {
		elapsedDays = now.Sub(*memory.LastReviewAt).Hours() / 24.0
		if elapsedDays < 0 {
			elapsedDays = 0
		}
	}
	next.ElapsedDays = elapsedDays

	// The model advances memory parameters on every grade, even while the
	// card is still walking steps.
	s.updateMemory(&next, memory, grade, elapsedDays)

	next.Reps = memory.Reps + 1
	next.Lapses = memory.Lapses
	if memory.State == domain.StateReview && grade == domain.GradeAgain {
		next.Lapses++
	}

	reviewedAt := now
	next.LastReviewAt = &reviewedAt

	// State transition: step walk or pure interval scheduling.
	switch memory.State {
	case domain.StateNew, domain.StateLearning:
		s.transitionLearning(&next, memory, grade, now, s.params.LearningSteps, domain.StateLearning)
	case domain.StateRelearning:
		s.transitionLearning(&next, memory, grade, now, s.params.RelearningSteps, domain.StateRelearning)
	case domain.StateReview:
		s.transitionReview(&next, grade, now)
	default:
		// Unknown persisted state: treat as Review rather than fail.
		s.transitionReview(&next, grade, now)
	}

	return next, nil
}

// updateMemory advances stability and difficulty for one grade.
func (s *defaultService) updateMemory(next *domain.MemoryState, prev domain.MemoryState, grade domain.Grade, elapsedDays float64) {
	if prev.Reps == 0 {
		next.Stability = s.model.initialStability(grade)
		next.Difficulty = s.model.initialDifficulty(grade, true)
		return
	}

	if elapsedDays < 1 {
		next.Stability = s.model.stabilitySameDay(prev.Stability, grade)
	} else {
		r := s.model.retrievability(elapsedDays, prev.Stability)
		next.Stability = s.model.nextStability(prev.Difficulty, prev.Stability, r, grade)
	}
	next.Difficulty = s.model.nextDifficulty(prev.Difficulty, grade)
}

// transitionLearning walks the step sequence for a New/Learning or
// Relearning card. steppedState is the state the card holds while still
// inside the sequence.
func (s *defaultService) transitionLearning(next *domain.MemoryState, prev domain.MemoryState, grade domain.Grade, now time.Time, steps []time.Duration, steppedState domain.State) {
	// No steps configured: fall through to pure interval scheduling.
	if len(steps) == 0 {
		s.graduate(next, now)
		return
	}

	idx := int(prev.LearningStepIndex)
	if idx >= len(steps) {
		// Step list shrank since this card was last scheduled.
		if grade != domain.GradeAgain {
			s.graduate(next, now)
			return
		}
		idx = len(steps) - 1
	}

	switch grade {
	case domain.GradeAgain:
		s.holdInSteps(next, now, steppedState, 0, steps[0])
	case domain.GradeHard:
		s.holdInSteps(next, now, steppedState, uint32(idx), hardDelay(steps, idx))
	case domain.GradeGood:
		if idx+1 < len(steps) {
			s.holdInSteps(next, now, steppedState, uint32(idx+1), steps[idx+1])
		} else {
			s.graduate(next, now)
		}
	case domain.GradeEasy:
		s.graduate(next, now)
	}
}

// transitionReview schedules a Review card. Again forces the card into the
// relearning sequence when one is configured; otherwise, and for all other
// grades, the pure interval result applies.
func (s *defaultService) transitionReview(next *domain.MemoryState, grade domain.Grade, now time.Time) {
	if grade == domain.GradeAgain && len(s.params.RelearningSteps) > 0 {
		s.holdInSteps(next, now, domain.StateRelearning, 0, s.params.RelearningSteps[0])
		return
	}
	s.graduate(next, now)
}

// holdInSteps keeps the card inside a step sequence: state and due time come
// from the step, not the model. Scheduled days keep sub-day precision here.
func (s *defaultService) holdInSteps(next *domain.MemoryState, now time.Time, state domain.State, idx uint32, delay time.Duration) {
	next.State = state
	next.LearningStepIndex = idx
	next.DueAt = now.Add(delay)
	next.ScheduledDays = delay.Minutes() / minutesPerDay
}

// graduate moves the card onto pure interval scheduling in the Review state.
func (s *defaultService) graduate(next *domain.MemoryState, now time.Time) {
	days := s.model.intervalDays(next.Stability, s.params.DesiredRetention, s.params.MaximumInterval)
	next.State = domain.StateReview
	next.LearningStepIndex = 0
	next.DueAt = now.Add(time.Duration(days) * 24 * time.Hour)
	next.ScheduledDays = float64(days)
}

// hardDelay computes the Hard delay at a given step position. At the first
// step it averages the first two steps, or scales a lone step by 1.5 capped
// at one day beyond the step. At later steps it replays the current delay.
func hardDelay(steps []time.Duration, idx int) time.Duration {
	if idx > 0 {
		if idx >= len(steps) {
			idx = len(steps) - 1
		}
		return steps[idx]
	}
	if len(steps) >= 2 {
		return (steps[0] + steps[1]) / 2
	}
	scaled := time.Duration(float64(steps[0]) * 1.5)
	if capped := steps[0] + 24*time.Hour; scaled > capped {
		return capped
	}
	return scaled
}
