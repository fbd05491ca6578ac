package srs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/recite/internal/domain"
)

func mustService(t *testing.T, params *Params) Service {
	t.Helper()
	svc, err := NewServiceWithParams(params)
	require.NoError(t, err)
	return svc
}

// reviewCard builds a card already graduated to interval scheduling, last
// seen elapsed ago.
func reviewCard(now time.Time, stability, difficulty float64, elapsed time.Duration) domain.MemoryState {
	last := now.Add(-elapsed)
	return domain.MemoryState{
		State:        domain.StateReview,
		Stability:    stability,
		Difficulty:   difficulty,
		Reps:         3,
		LastReviewAt: &last,
		DueAt:        now,
	}
}

func TestScheduleRejectsInvalidGrade(t *testing.T) {
	t.Parallel()

	svc, err := NewDefaultService()
	require.NoError(t, err)

	_, err = svc.Schedule(domain.NewMemoryState(time.Now()), domain.Grade("perfect"), time.Now())
	assert.ErrorIs(t, err, ErrInvalidGrade)
}

func TestScheduleDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	svc, err := NewDefaultService()
	require.NoError(t, err)

	now := time.Now()
	memory := domain.NewMemoryState(now)
	before := memory

	_, err = svc.Schedule(memory, domain.GradeGood, now)
	require.NoError(t, err)
	assert.Equal(t, before, memory)
}

func TestNewCardEntersLearningSteps(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	tests := []struct {
		name      string
		grade     domain.Grade
		wantState domain.State
		wantStep  uint32
		wantDelay time.Duration
	}{
		{
			name:      "again restarts at first step",
			grade:     domain.GradeAgain,
			wantState: domain.StateLearning,
			wantStep:  0,
			wantDelay: time.Minute,
		},
		{
			name:      "hard averages the first two steps",
			grade:     domain.GradeHard,
			wantState: domain.StateLearning,
			wantStep:  0,
			wantDelay: 5*time.Minute + 30*time.Second,
		},
		{
			name:      "good advances to the second step",
			grade:     domain.GradeGood,
			wantState: domain.StateLearning,
			wantStep:  1,
			wantDelay: 10 * time.Minute,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc, err := NewDefaultService()
			require.NoError(t, err)

			next, err := svc.Schedule(domain.NewMemoryState(now), tc.grade, now)
			require.NoError(t, err)

			assert.Equal(t, tc.wantState, next.State)
			assert.Equal(t, tc.wantStep, next.LearningStepIndex)
			assert.WithinDuration(t, now.Add(tc.wantDelay), next.DueAt, time.Second)
			assert.Equal(t, uint32(1), next.Reps)
			assert.Zero(t, next.Lapses)
			assert.Positive(t, next.Stability)
		})
	}
}

func TestNewCardEasyGraduatesImmediately(t *testing.T) {
	t.Parallel()

	svc, err := NewDefaultService()
	require.NoError(t, err)

	now := time.Now().UTC()
	next, err := svc.Schedule(domain.NewMemoryState(now), domain.GradeEasy, now)
	require.NoError(t, err)

	assert.Equal(t, domain.StateReview, next.State)
	assert.Zero(t, next.LearningStepIndex)
	assert.GreaterOrEqual(t, next.ScheduledDays, 1.0)
	assert.True(t, next.DueAt.Sub(now) >= 24*time.Hour)
}

func TestGoodAtLastStepGraduates(t *testing.T) {
	t.Parallel()

	svc, err := NewDefaultService()
	require.NoError(t, err)

	now := time.Now().UTC()
	last := now.Add(-time.Minute)
	memory := domain.MemoryState{
		State:             domain.StateLearning,
		Stability:         2.0,
		Difficulty:        5.0,
		Reps:              1,
		LastReviewAt:      &last,
		LearningStepIndex: 1, // last of the default [1m, 10m]
	}

	next, err := svc.Schedule(memory, domain.GradeGood, now)
	require.NoError(t, err)

	assert.Equal(t, domain.StateReview, next.State)
	assert.Zero(t, next.LearningStepIndex)
	assert.GreaterOrEqual(t, next.ScheduledDays, 1.0)
}

func TestHardDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		steps []time.Duration
		idx   int
		want  time.Duration
	}{
		{
			name:  "first step averages first two",
			steps: []time.Duration{time.Minute, 10 * time.Minute},
			idx:   0,
			want:  5*time.Minute + 30*time.Second,
		},
		{
			name:  "lone step scales by 1.5",
			steps: []time.Duration{10 * time.Minute},
			idx:   0,
			want:  15 * time.Minute,
		},
		{
			name:  "lone step scaling capped at one day beyond",
			steps: []time.Duration{72 * time.Hour},
			idx:   0,
			want:  96 * time.Hour,
		},
		{
			name:  "later step replays its own delay",
			steps: []time.Duration{time.Minute, 10 * time.Minute},
			idx:   1,
			want:  10 * time.Minute,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, hardDelay(tc.steps, tc.idx))
		})
	}
}

func TestEmptyLearningStepsSkipStraightToReview(t *testing.T) {
	t.Parallel()

	params := NewDefaultParams()
	params.LearningSteps = nil
	svc := mustService(t, params)

	now := time.Now().UTC()
	next, err := svc.Schedule(domain.NewMemoryState(now), domain.GradeGood, now)
	require.NoError(t, err)

	assert.Equal(t, domain.StateReview, next.State)
	assert.GreaterOrEqual(t, next.ScheduledDays, 1.0)
}

func TestReviewAgainEntersRelearning(t *testing.T) {
	t.Parallel()

	svc, err := NewDefaultService()
	require.NoError(t, err)

	now := time.Now().UTC()
	memory := reviewCard(now, 10.0, 5.0, 10*24*time.Hour)

	next, err := svc.Schedule(memory, domain.GradeAgain, now)
	require.NoError(t, err)

	assert.Equal(t, domain.StateRelearning, next.State)
	assert.Zero(t, next.LearningStepIndex)
	assert.Equal(t, memory.Lapses+1, next.Lapses)
	assert.WithinDuration(t, now.Add(10*time.Minute), next.DueAt, time.Second)
	assert.Less(t, next.Stability, memory.Stability)
}

func TestReviewAgainWithoutRelearningStepsStaysReview(t *testing.T) {
	t.Parallel()

	params := NewDefaultParams()
	params.RelearningSteps = nil
	svc := mustService(t, params)

	now := time.Now().UTC()
	next, err := svc.Schedule(reviewCard(now, 10.0, 5.0, 10*24*time.Hour), domain.GradeAgain, now)
	require.NoError(t, err)

	assert.Equal(t, domain.StateReview, next.State)
	assert.Equal(t, uint32(1), next.Lapses)
}

func TestRelearningGoodReturnsToReview(t *testing.T) {
	t.Parallel()

	svc, err := NewDefaultService()
	require.NoError(t, err)

	now := time.Now().UTC()
	last := now.Add(-10 * time.Minute)
	memory := domain.MemoryState{
		State:             domain.StateRelearning,
		Stability:         3.0,
		Difficulty:        6.0,
		Reps:              5,
		Lapses:            1,
		LastReviewAt:      &last,
		LearningStepIndex: 0, // last of the default [10m]
	}

	next, err := svc.Schedule(memory, domain.GradeGood, now)
	require.NoError(t, err)

	assert.Equal(t, domain.StateReview, next.State)
	assert.Equal(t, uint32(1), next.Lapses, "lapses only increment on Review+Again")
}

func TestLapsesOnlyIncrementOnReviewAgain(t *testing.T) {
	t.Parallel()

	svc, err := NewDefaultService()
	require.NoError(t, err)

	now := time.Now().UTC()

	// Again while still learning is not a lapse.
	learning, err := svc.Schedule(domain.NewMemoryState(now), domain.GradeAgain, now)
	require.NoError(t, err)
	assert.Zero(t, learning.Lapses)

	// Hard on a review card is not a lapse either.
	next, err := svc.Schedule(reviewCard(now, 10.0, 5.0, 5*24*time.Hour), domain.GradeHard, now)
	require.NoError(t, err)
	assert.Zero(t, next.Lapses)
}

func TestIntervalOrderingAcrossGrades(t *testing.T) {
	t.Parallel()

	svc, err := NewDefaultService()
	require.NoError(t, err)

	now := time.Now().UTC()
	memory := reviewCard(now, 15.0, 5.0, 15*24*time.Hour)

	schedule := func(grade domain.Grade) time.Duration {
		next, err := svc.Schedule(memory, grade, now)
		require.NoError(t, err)
		return next.DueAt.Sub(now)
	}

	again := schedule(domain.GradeAgain)
	hard := schedule(domain.GradeHard)
	good := schedule(domain.GradeGood)
	easy := schedule(domain.GradeEasy)

	assert.LessOrEqual(t, again, hard, "the relearning delay never exceeds the Hard interval")
	assert.LessOrEqual(t, hard, good)
	assert.LessOrEqual(t, good, easy)
}

func TestMaximumIntervalCapsSchedule(t *testing.T) {
	t.Parallel()

	params := NewDefaultParams()
	params.MaximumInterval = 5
	svc := mustService(t, params)

	now := time.Now().UTC()
	next, err := svc.Schedule(reviewCard(now, 500.0, 2.0, 30*24*time.Hour), domain.GradeEasy, now)
	require.NoError(t, err)

	assert.LessOrEqual(t, next.ScheduledDays, 5.0)
	assert.True(t, next.DueAt.Sub(now) <= 5*24*time.Hour)
}

func TestSameDayReviewKeepsMemoryBounded(t *testing.T) {
	t.Parallel()

	svc, err := NewDefaultService()
	require.NoError(t, err)

	now := time.Now().UTC()
	memory := reviewCard(now, 5.0, 5.0, 2*time.Hour)

	for _, grade := range domain.AllGrades {
		next, err := svc.Schedule(memory, grade, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, next.Stability, 0.001)
		assert.GreaterOrEqual(t, next.Difficulty, 1.0)
		assert.LessOrEqual(t, next.Difficulty, 10.0)
		assert.Equal(t, memory.Reps+1, next.Reps)
	}
}

func TestStepIndexBeyondShrunkSteps(t *testing.T) {
	t.Parallel()

	params := NewDefaultParams()
	params.LearningSteps = []time.Duration{time.Minute}
	svc := mustService(t, params)

	now := time.Now().UTC()
	last := now.Add(-time.Minute)
	memory := domain.MemoryState{
		State:             domain.StateLearning,
		Stability:         2.0,
		Difficulty:        5.0,
		Reps:              2,
		LastReviewAt:      &last,
		LearningStepIndex: 3, // beyond the single configured step
	}

	next, err := svc.Schedule(memory, domain.GradeGood, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StateReview, next.State)

	next, err = svc.Schedule(memory, domain.GradeAgain, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StateLearning, next.State)
	assert.Zero(t, next.LearningStepIndex)
}

func TestIsLeech(t *testing.T) {
	t.Parallel()

	params := NewDefaultParams()
	params.LeechThreshold = 3
	svc := mustService(t, params)

	assert.False(t, svc.IsLeech(0))
	assert.False(t, svc.IsLeech(2))
	assert.True(t, svc.IsLeech(3))
	assert.True(t, svc.IsLeech(10))
}

func TestWeightsValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultWeights.Validate())

	bad := DefaultWeights
	bad[20] = 5.0 // decay exponent far outside bounds
	assert.ErrorIs(t, bad.Validate(), ErrInvalidWeights)
}

func TestParamsFromSettingsClamps(t *testing.T) {
	t.Parallel()

	settings := domain.DeckSettings{
		DeckID:           "deck",
		DesiredRetention: 2.0,
		MaximumInterval:  -5,
		LeechThreshold:   0,
		LearningSteps:    []time.Duration{-time.Minute, 3 * time.Minute},
	}

	p := ParamsFromSettings(settings)
	assert.Equal(t, 0.99, p.DesiredRetention)
	assert.Equal(t, 1, p.MaximumInterval)
	assert.Equal(t, uint32(1), p.LeechThreshold)
	assert.Equal(t, []time.Duration{3 * time.Minute}, p.LearningSteps)
}
