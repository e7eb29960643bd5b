package session

import (
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdimtricp/repcam/internal/exercise"
	"github.com/kdimtricp/repcam/internal/models"
	"github.com/kdimtricp/repcam/internal/pose"
	"github.com/kdimtricp/repcam/internal/timeutil"
)

func TestMain(m *testing.M) {
	Logf = func(string, ...any) {}
	os.Exit(m.Run())
}

type recordingPublisher struct {
	mu           sync.Mutex
	records      []*models.SessionRecord
	measurements []*models.Measurement
}

func (p *recordingPublisher) PublishRecord(rec *models.SessionRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, rec)
}

func (p *recordingPublisher) PublishMeasurement(m *models.Measurement) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.measurements = append(p.measurements, m)
}

func (p *recordingPublisher) Records() []*models.SessionRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.SessionRecord(nil), p.records...)
}

func (p *recordingPublisher) Measurements() []*models.Measurement {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.Measurement(nil), p.measurements...)
}

var epoch = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestSession(t *testing.T, kind exercise.Kind, duration time.Duration, cal exercise.Calibration) (*Session, *timeutil.MockClock, *recordingPublisher) {
	t.Helper()
	clock := timeutil.NewMockClock(epoch)
	pub := &recordingPublisher{}
	cfg := exercise.DefaultConfigs()
	cfg.Measure.StabilityThreshold = 3
	s, err := New(Options{
		Exercise:    kind,
		UserEmail:   "athlete@example.com",
		Duration:    duration,
		Calibration: cal,
		Configs:     cfg,
		Clock:       clock,
		Publisher:   pub,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, clock, pub
}

// curlFrame bends both elbows to deg.
func curlFrame(deg float64) pose.Frame {
	f := pose.NewFrame(1000, 1000)
	rad := deg * math.Pi / 180
	for _, side := range []struct {
		shoulder, elbow, wrist pose.Joint
		x                      float64
	}{
		{pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, 0.3},
		{pose.RightShoulder, pose.RightElbow, pose.RightWrist, 0.7},
	} {
		f.Landmarks[side.shoulder] = pose.Landmark{X: side.x, Y: 0.3, Visibility: 0.9}
		f.Landmarks[side.elbow] = pose.Landmark{X: side.x, Y: 0.5, Visibility: 0.9}
		f.Landmarks[side.wrist] = pose.Landmark{X: side.x + 0.2*math.Sin(rad), Y: 0.5 - 0.2*math.Cos(rad), Visibility: 0.9}
	}
	return f
}

// situpFrame bends both hips to deg.
func situpFrame(deg float64) pose.Frame {
	f := pose.NewFrame(1000, 1000)
	rad := deg * math.Pi / 180
	for _, side := range []struct {
		shoulder, hip, knee pose.Joint
	}{
		{pose.LeftShoulder, pose.LeftHip, pose.LeftKnee},
		{pose.RightShoulder, pose.RightHip, pose.RightKnee},
	} {
		f.Landmarks[side.hip] = pose.Landmark{X: 0.5, Y: 0.6, Visibility: 0.9}
		f.Landmarks[side.knee] = pose.Landmark{X: 0.8, Y: 0.6, Visibility: 0.9}
		f.Landmarks[side.shoulder] = pose.Landmark{X: 0.5 + 0.3*math.Cos(rad), Y: 0.6 - 0.3*math.Sin(rad), Visibility: 0.9}
	}
	return f
}

func standingFrame() pose.Frame {
	f := pose.NewFrame(1000, 1000)
	lm := func(x, y float64) pose.Landmark { return pose.Landmark{X: x, Y: y, Visibility: 0.9} }
	f.Landmarks[pose.Nose] = lm(0.5, 0.1)
	f.Landmarks[pose.LeftShoulder] = lm(0.4, 0.2)
	f.Landmarks[pose.RightShoulder] = lm(0.6, 0.2)
	f.Landmarks[pose.LeftHip] = lm(0.45, 0.5)
	f.Landmarks[pose.RightHip] = lm(0.55, 0.5)
	f.Landmarks[pose.LeftHeel] = lm(0.45, 0.9)
	f.Landmarks[pose.RightHeel] = lm(0.55, 0.9)
	return f
}

func curlReps(t *testing.T, s *Session, n int) Snapshot {
	t.Helper()
	var snap Snapshot
	var err error
	for i := 0; i < n; i++ {
		for j := 0; j < 5; j++ {
			_, err = s.ProcessFrame(curlFrame(30))
			require.NoError(t, err)
		}
		for j := 0; j < 5; j++ {
			snap, err = s.ProcessFrame(curlFrame(170))
			require.NoError(t, err)
		}
	}
	return snap
}

func TestSession_StartStop(t *testing.T) {
	s, clock, pub := newTestSession(t, exercise.KindCurl, 0, exercise.Calibration{})

	snap, err := s.Start()
	require.NoError(t, err)
	assert.Equal(t, PhaseActive, snap.Lifecycle.Phase)

	snap = curlReps(t, s, 2)
	assert.Equal(t, 4, snap.Stats.Curl.TotalReps)
	assert.Equal(t, 20, snap.Frames)

	clock.Set(epoch.Add(42 * time.Second))
	rec, err := s.Stop()
	require.NoError(t, err)
	assert.Equal(t, models.ReasonManual, rec.Reason)
	assert.Equal(t, 4, rec.TotalCount)
	assert.Equal(t, 42.0, rec.DurationSeconds)
	assert.JSONEq(t, `{"left_reps":2,"right_reps":2,"total_reps":4,"estimated_weight":12}`, string(rec.Details))

	assert.Equal(t, PhaseCompleted, s.Status().Phase)
	assert.Equal(t, rec, s.LastRecord())
	assert.Len(t, pub.Records(), 1)
}

func TestSession_StopTwiceYieldsOneRecord(t *testing.T) {
	s, _, pub := newTestSession(t, exercise.KindCurl, 0, exercise.Calibration{})

	_, err := s.Start()
	require.NoError(t, err)

	_, err = s.Stop()
	require.NoError(t, err)
	_, err = s.Stop()
	assert.ErrorIs(t, err, ErrNotActive)

	assert.Len(t, pub.Records(), 1)
}

func TestSession_StopWhileIdle(t *testing.T) {
	s, _, pub := newTestSession(t, exercise.KindCurl, 0, exercise.Calibration{})

	_, err := s.Stop()
	assert.ErrorIs(t, err, ErrNotActive)
	assert.Equal(t, PhaseIdle, s.Status().Phase)
	assert.Empty(t, pub.Records())
}

func TestSession_StartWhileActiveKeepsCounters(t *testing.T) {
	s, _, _ := newTestSession(t, exercise.KindCurl, 0, exercise.Calibration{})

	_, err := s.Start()
	require.NoError(t, err)
	curlReps(t, s, 1)

	_, err = s.Start()
	assert.ErrorIs(t, err, ErrAlreadyActive)

	snap := s.Snapshot()
	assert.Equal(t, PhaseActive, snap.Lifecycle.Phase)
	assert.Equal(t, 2, snap.Stats.Curl.TotalReps)
	assert.Equal(t, 10, snap.Frames)
}

func TestSession_RestartAfterCompleted(t *testing.T) {
	s, _, pub := newTestSession(t, exercise.KindCurl, 0, exercise.Calibration{})

	_, err := s.Start()
	require.NoError(t, err)
	curlReps(t, s, 1)
	_, err = s.Stop()
	require.NoError(t, err)

	snap, err := s.Start()
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Stats.Curl.TotalReps)
	assert.Empty(t, snap.RecordID)

	_, err = s.Stop()
	require.NoError(t, err)
	assert.Len(t, pub.Records(), 2)
}

func TestSession_FramesRejectedUnlessActive(t *testing.T) {
	s, _, _ := newTestSession(t, exercise.KindCurl, 0, exercise.Calibration{})

	_, err := s.ProcessFrame(curlFrame(30))
	assert.ErrorIs(t, err, ErrNotActive)

	_, err = s.Start()
	require.NoError(t, err)
	_, err = s.Stop()
	require.NoError(t, err)

	_, err = s.ProcessFrame(curlFrame(30))
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestSession_ResetDiscards(t *testing.T) {
	s, clock, pub := newTestSession(t, exercise.KindSitup, 10*time.Second, exercise.Calibration{})

	_, err := s.Start()
	require.NoError(t, err)
	_, err = s.ProcessFrame(situpFrame(160))
	require.NoError(t, err)
	_, err = s.ProcessFrame(situpFrame(90))
	require.NoError(t, err)

	snap := s.Reset()
	assert.Equal(t, PhaseIdle, snap.Lifecycle.Phase)
	assert.Equal(t, 0, snap.Stats.Situp.Reps)
	assert.Equal(t, 0, snap.Frames)
	require.NotNil(t, snap.Lifecycle.RemainingSeconds)
	assert.Equal(t, 10.0, *snap.Lifecycle.RemainingSeconds)

	// The cancelled timer must not finalize anything.
	for i := 0; i < 15; i++ {
		clock.Advance(time.Second)
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, PhaseIdle, s.Status().Phase)
	assert.Empty(t, pub.Records())
}

func TestSession_TimerAutoFinalizesOnce(t *testing.T) {
	s, clock, pub := newTestSession(t, exercise.KindSitup, 180*time.Second, exercise.Calibration{})

	_, err := s.Start()
	require.NoError(t, err)

	for i := 0; i < 180; i++ {
		clock.Advance(time.Second)
	}

	require.Eventually(t, func() bool {
		return s.Status().Phase == PhaseCompleted
	}, time.Second, 5*time.Millisecond)

	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
	}
	time.Sleep(20 * time.Millisecond)

	records := pub.Records()
	require.Len(t, records, 1)
	assert.Equal(t, models.ReasonTimeout, records[0].Reason)
	assert.Equal(t, 180.0, records[0].DurationSeconds)
	assert.Equal(t, 0, records[0].TotalCount)
	assert.JSONEq(t, `{"reps_completed":0,"form_quality":0,"timer_time":"3:00"}`, string(records[0].Details))

	_, err = s.Stop()
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestSession_StopBeatsTimer(t *testing.T) {
	s, clock, pub := newTestSession(t, exercise.KindSitup, 5*time.Second, exercise.Calibration{})

	_, err := s.Start()
	require.NoError(t, err)
	clock.Advance(4 * time.Second)

	rec, err := s.Stop()
	require.NoError(t, err)
	assert.Equal(t, models.ReasonManual, rec.Reason)

	clock.Advance(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, pub.Records(), 1)
}

func TestSession_TimeExpiredBlocksReps(t *testing.T) {
	s, clock, _ := newTestSession(t, exercise.KindSitup, 10*time.Second, exercise.Calibration{})

	_, err := s.Start()
	require.NoError(t, err)

	// Set moves time without firing the ticker, so the session is still
	// active with no time remaining.
	clock.Set(epoch.Add(10 * time.Second))
	_, err = s.ProcessFrame(situpFrame(160))
	require.NoError(t, err)
	snap, err := s.ProcessFrame(situpFrame(90))
	require.NoError(t, err)

	assert.Equal(t, 0, snap.Stats.Situp.Reps)
	assert.Equal(t, "Time's up! Stop exercising", snap.Stats.Feedback)
	require.NotNil(t, snap.Lifecycle.RemainingSeconds)
	assert.Equal(t, 0.0, *snap.Lifecycle.RemainingSeconds)
}

func TestSession_SitupCountsWithinTime(t *testing.T) {
	s, clock, _ := newTestSession(t, exercise.KindSitup, 10*time.Second, exercise.Calibration{})

	_, err := s.Start()
	require.NoError(t, err)
	clock.Set(epoch.Add(3 * time.Second))

	for _, deg := range []float64{160, 90, 160, 90} {
		_, err = s.ProcessFrame(situpFrame(deg))
		require.NoError(t, err)
	}
	snap := s.Snapshot()
	assert.Equal(t, 2, snap.Stats.Situp.Reps)
	assert.InDelta(t, 7.0, *snap.Lifecycle.RemainingSeconds, 1e-9)
}

func TestSession_Calibrate(t *testing.T) {
	jump, _, _ := newTestSession(t, exercise.KindJump, 0, exercise.Calibration{})
	snap, err := jump.Calibrate(exercise.Calibration{PixelsPerCm: 2, BaselineY: ptr(500)})
	require.NoError(t, err)
	assert.True(t, snap.Stats.Jump.Calibrated)

	_, err = jump.Calibrate(exercise.Calibration{PixelsPerCm: -1})
	assert.Error(t, err)

	curl, _, _ := newTestSession(t, exercise.KindCurl, 0, exercise.Calibration{})
	_, err = curl.Calibrate(exercise.Calibration{PixelsPerCm: 2})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSession_StartDropsSessionCalibration(t *testing.T) {
	s, _, _ := newTestSession(t, exercise.KindJump, 0, exercise.Calibration{})

	_, err := s.Calibrate(exercise.Calibration{PixelsPerCm: 2, BaselineY: ptr(500)})
	require.NoError(t, err)

	snap, err := s.Start()
	require.NoError(t, err)
	assert.False(t, snap.Stats.Jump.Calibrated)
}

func TestSession_Measurements(t *testing.T) {
	s, clock, pub := newTestSession(t, exercise.KindMeasure, 0, exercise.Calibration{PixelsPerCm: 4})

	_, err := s.Start()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		clock.Set(epoch.Add(time.Duration(i) * time.Second))
		_, err = s.ProcessFrame(standingFrame())
		require.NoError(t, err)
	}

	measurements := pub.Measurements()
	require.Len(t, measurements, 1)
	assert.True(t, measurements[0].AutoSaved)
	assert.Equal(t, "measuring_stable", measurements[0].DetectionStatus)
	assert.InDelta(t, 200.0, measurements[0].HeightCm, 1e-6)
	assert.Equal(t, s.ID, measurements[0].SessionID)

	enabled, err := s.ToggleAutoSave()
	require.NoError(t, err)
	assert.False(t, enabled)

	m, err := s.SaveMeasurement()
	require.NoError(t, err)
	assert.False(t, m.AutoSaved)
	assert.Len(t, pub.Measurements(), 2)

	est, err := s.FinalEstimate()
	require.NoError(t, err)
	assert.Equal(t, 2, est.SampleCount)

	rec, err := s.Stop()
	require.NoError(t, err)
	assert.Equal(t, 2, rec.TotalCount)
	assert.InDelta(t, 200.0, rec.BestValue, 1e-6)
}

func TestSession_MeasurementOpsNeedEstimator(t *testing.T) {
	s, _, _ := newTestSession(t, exercise.KindCurl, 0, exercise.Calibration{})

	_, err := s.SaveMeasurement()
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = s.ToggleAutoSave()
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = s.FinalEstimate()
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSession_Subscribe(t *testing.T) {
	s, _, _ := newTestSession(t, exercise.KindCurl, 0, exercise.Calibration{})

	updates, unsubscribe := s.Subscribe()
	_, err := s.Start()
	require.NoError(t, err)

	select {
	case snap := <-updates:
		assert.Equal(t, PhaseActive, snap.Lifecycle.Phase)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after start")
	}

	unsubscribe()
	unsubscribe()
	_, open := <-updates
	assert.False(t, open)
}

func TestSession_CloseEndsSubscriptions(t *testing.T) {
	s, clock, _ := newTestSession(t, exercise.KindSitup, 5*time.Second, exercise.Calibration{})

	updates, _ := s.Subscribe()
	_, err := s.Start()
	require.NoError(t, err)
	s.Close()

	for range updates {
	}
	assert.Equal(t, 0, waitForTickers(clock))

	late, _ := s.Subscribe()
	_, open := <-late
	assert.False(t, open)
}

func TestSession_ConcurrentControl(t *testing.T) {
	s, _, _ := newTestSession(t, exercise.KindCurl, 0, exercise.Calibration{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, _ = s.ProcessFrame(curlFrame(float64(j % 180)))
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			_, _ = s.Start()
			_ = s.Snapshot()
			_, _ = s.Stop()
			s.Reset()
		}
	}()
	wg.Wait()

	phase := s.Status().Phase
	assert.Contains(t, []Phase{PhaseIdle, PhaseActive, PhaseCompleted}, phase)
}

func waitForTickers(clock *timeutil.MockClock) int {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if n := clock.ActiveTickers(); n == 0 {
			return 0
		}
		time.Sleep(5 * time.Millisecond)
	}
	return clock.ActiveTickers()
}

func ptr(v float64) *float64 { return &v }
