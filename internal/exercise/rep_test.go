package exercise

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdimtricp/repcam/internal/pose"
)

func curlRepConfig(window int) RepConfig {
	return RepConfig{
		UpThreshold:   55,
		DownThreshold: 150,
		Trigger:       TriggerBelow,
		Inclusive:     true,
		InitialState:  StateDown,
		Window:        window,
		Messages:      RepMessages{Rep: "Rep %d!", NotVisible: "Not visible"},
	}
}

func TestRepCounter_CurlSequence(t *testing.T) {
	c, err := NewRepCounter(curlRepConfig(1))
	require.NoError(t, err)

	var outcomes []Outcome
	for _, v := range []float64{160, 150, 90, 50, 48, 160} {
		outcomes = append(outcomes, c.Update(v, true, true))
	}

	assert.Equal(t, 1, c.Count())
	assert.Equal(t, StateDown, c.State())
	assert.Equal(t, []Outcome{OutcomeHold, OutcomeHold, OutcomeHold, OutcomeRep, OutcomeHold, OutcomeDown}, outcomes)
}

func TestRepCounter_HysteresisNoDoubleCount(t *testing.T) {
	c, err := NewRepCounter(curlRepConfig(1))
	require.NoError(t, err)

	// Oscillating around the up threshold alone never re-arms the counter.
	for _, v := range []float64{54, 56, 54, 57, 53, 60, 55, 100, 54} {
		c.Update(v, true, true)
	}
	assert.Equal(t, 1, c.Count())

	c.Update(150, true, true)
	c.Update(50, true, true)
	assert.Equal(t, 2, c.Count())
}

func TestRepCounter_NonDecreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c, err := NewRepCounter(curlRepConfig(5))
	require.NoError(t, err)

	prev := 0
	for i := 0; i < 5000; i++ {
		c.Update(rng.Float64()*180, rng.Float64() > 0.2, true)
		require.GreaterOrEqual(t, c.Count(), prev)
		require.LessOrEqual(t, c.Count()-prev, 1)
		prev = c.Count()
	}
}

func TestRepCounter_VisibilityGate(t *testing.T) {
	c, err := NewRepCounter(curlRepConfig(1))
	require.NoError(t, err)

	assert.Equal(t, OutcomeNotVisible, c.Update(10, false, true))
	assert.Equal(t, 0, c.Count())
	assert.Equal(t, StateDown, c.State())
	assert.Equal(t, "Not visible", c.Feedback())
	assert.Equal(t, 0.0, c.Value())
}

func TestRepCounter_InvisibleSamplesSkipSmoothing(t *testing.T) {
	c, err := NewRepCounter(curlRepConfig(3))
	require.NoError(t, err)

	c.Update(160, true, true)
	c.Update(0, false, true)
	c.Update(0, false, true)
	assert.Equal(t, 160.0, c.Value())
}

func TestRepCounter_Blocked(t *testing.T) {
	c, err := NewRepCounter(curlRepConfig(1))
	require.NoError(t, err)

	assert.Equal(t, OutcomeBlocked, c.Update(40, true, false))
	assert.Equal(t, 0, c.Count())
	assert.Equal(t, StateDown, c.State())

	assert.Equal(t, OutcomeRep, c.Update(40, true, true))
	assert.Equal(t, 1, c.Count())
}

func TestRepCounter_TriggerAbove(t *testing.T) {
	c, err := NewRepCounter(RepConfig{
		UpThreshold:   0.8,
		DownThreshold: 0.2,
		Trigger:       TriggerAbove,
		InitialState:  StateDown,
		Window:        1,
	})
	require.NoError(t, err)

	for _, v := range []float64{0.1, 0.5, 0.9, 0.85, 0.5, 0.1, 0.95} {
		c.Update(v, true, true)
	}
	assert.Equal(t, 2, c.Count())
}

func TestRepCounter_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  RepConfig
	}{
		{"equal thresholds", RepConfig{UpThreshold: 90, DownThreshold: 90}},
		{"below trigger inverted", RepConfig{UpThreshold: 150, DownThreshold: 55, Trigger: TriggerBelow}},
		{"above trigger inverted", RepConfig{UpThreshold: 0.2, DownThreshold: 0.8, Trigger: TriggerAbove}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRepCounter(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestCurl_IndependentArms(t *testing.T) {
	c, err := NewCurl(CurlConfig{UpAngle: 55, DownAngle: 150, Window: 1, VisibilityFloor: 0.5})
	require.NoError(t, err)

	ctx := Context{Now: time.Now(), AllowReps: true}
	c.Process(armFrame(160, 160, 0.9), ctx)
	c.Process(armFrame(40, 160, 0.9), ctx)
	c.Process(armFrame(160, 40, 0.9), ctx)
	c.Process(armFrame(40, 160, 0.9), ctx)

	stats := c.Stats().Curl
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Left.Reps)
	assert.Equal(t, 1, stats.Right.Reps)
	assert.Equal(t, 3, stats.TotalReps)
	assert.InDelta(t, 11.5, stats.EstimatedWeight, 1e-9)
	assert.Equal(t, "L: 40°", stats.Left.Status)
}

func TestCurl_LowVisibilityHoldsCounts(t *testing.T) {
	c, err := NewCurl(DefaultCurlConfig())
	require.NoError(t, err)

	ctx := Context{Now: time.Now(), AllowReps: true}
	for i := 0; i < 10; i++ {
		c.Process(armFrame(30, 30, 0.2), ctx)
	}
	stats := c.Stats().Curl
	assert.Equal(t, 0, stats.TotalReps)
	assert.Equal(t, "L: Not visible", stats.Left.Status)
	assert.Equal(t, 0.0, stats.EstimatedWeight)
}

func TestCurl_SummaryAndReset(t *testing.T) {
	c, err := NewCurl(CurlConfig{UpAngle: 55, DownAngle: 150, Window: 1, VisibilityFloor: 0.5})
	require.NoError(t, err)

	ctx := Context{Now: time.Now(), AllowReps: true}
	c.Process(armFrame(40, 40, 1), ctx)

	sum := c.Summary(0)
	assert.Equal(t, 2, sum.TotalCount)
	details, ok := sum.Details.(CurlDetails)
	require.True(t, ok)
	assert.Equal(t, 1, details.LeftReps)
	assert.Equal(t, 1, details.RightReps)
	assert.InDelta(t, 11.0, details.EstimatedWeight, 1e-9)

	c.Reset()
	assert.Equal(t, 0, c.Stats().Curl.TotalReps)
	assert.Equal(t, StateDown, c.Arm("left").State())
}

func TestSitup_Counting(t *testing.T) {
	s, err := NewSitup(DefaultSitupConfig())
	require.NoError(t, err)

	ctx := Context{Now: time.Now(), AllowReps: true}

	// Starting bent does not count: the lying position must come first.
	s.Process(situpFrame(90, 0.9), ctx)
	assert.Equal(t, 0, s.Counter().Count())

	s.Process(situpFrame(160, 0.9), ctx)
	assert.Equal(t, "Go Up!", s.Stats().Feedback)
	s.Process(situpFrame(120, 0.9), ctx)
	assert.Equal(t, "Keep Going Up!", s.Stats().Feedback)
	s.Process(situpFrame(90, 0.9), ctx)
	assert.Equal(t, 1, s.Counter().Count())
	assert.Equal(t, "Rep 1! Go Down", s.Stats().Feedback)
	s.Process(situpFrame(120, 0.9), ctx)
	assert.Equal(t, "Go Down Slowly", s.Stats().Feedback)
	s.Process(situpFrame(160, 0.9), ctx)
	s.Process(situpFrame(80, 0.9), ctx)

	stats := s.Stats().Situp
	assert.Equal(t, 2, stats.Reps)
	assert.Equal(t, 79, stats.FormPercentage)
}

func TestSitup_TimeExpiredDoesNotCount(t *testing.T) {
	s, err := NewSitup(DefaultSitupConfig())
	require.NoError(t, err)

	expired := Context{Now: time.Now(), AllowReps: false}
	s.Process(situpFrame(160, 0.9), expired)
	s.Process(situpFrame(90, 0.9), expired)

	assert.Equal(t, 0, s.Counter().Count())
	assert.Equal(t, "Time's up! Stop exercising", s.Stats().Feedback)
}

func TestSitup_NoPose(t *testing.T) {
	s, err := NewSitup(DefaultSitupConfig())
	require.NoError(t, err)

	s.Process(situpFrame(160, 0.9), Context{AllowReps: true})
	s.Process(pose.NewFrame(0, 0), Context{AllowReps: true})
	assert.Equal(t, "No pose detected", s.Stats().Feedback)
	assert.Equal(t, StateDown, s.Counter().State())
}

func TestSitup_Summary(t *testing.T) {
	s, err := NewSitup(DefaultSitupConfig())
	require.NoError(t, err)

	ctx := Context{AllowReps: true}
	s.Process(situpFrame(160, 0.9), ctx)
	s.Process(situpFrame(90, 0.9), ctx)

	sum := s.Summary(125 * time.Second)
	details, ok := sum.Details.(SitupDetails)
	require.True(t, ok)
	assert.Equal(t, 1, details.RepsCompleted)
	assert.Equal(t, 77, details.FormQuality)
	assert.Equal(t, "2:05", details.TimerTime)
}
