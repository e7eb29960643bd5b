package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kdimtricp/repcam/internal/exercise"
	"github.com/kdimtricp/repcam/internal/models"
	"github.com/kdimtricp/repcam/internal/pose"
	"github.com/kdimtricp/repcam/internal/timeutil"
)

const tickInterval = time.Second

type Options struct {
	Exercise  exercise.Kind
	UserEmail string
	// Duration bounds an active session. Zero means open-ended.
	Duration    time.Duration
	Calibration exercise.Calibration
	Configs     exercise.Configs
	Clock       timeutil.Clock
	Publisher   Publisher
}

// Session owns one tracker and its lifecycle. A single mutex serializes
// frame updates, lifecycle transitions and timer ticks.
type Session struct {
	ID        string
	Exercise  exercise.Kind
	UserEmail string
	CreatedAt time.Time

	clock     timeutil.Clock
	publisher Publisher
	duration  time.Duration

	mu         sync.Mutex
	tracker    exercise.Tracker
	phase      Phase
	startedAt  time.Time
	endedAt    time.Time
	elapsed    time.Duration
	frames     int
	generation uint64
	cancel     context.CancelFunc
	lastRecord *models.SessionRecord
	subs       map[chan Snapshot]struct{}
	closed     bool
}

func New(opts Options) (*Session, error) {
	if opts.Duration < 0 {
		return nil, fmt.Errorf("duration must be non-negative, got %s", opts.Duration)
	}
	tracker, err := exercise.New(opts.Exercise, opts.Configs, opts.Calibration)
	if err != nil {
		return nil, fmt.Errorf("creating %s tracker: %w", opts.Exercise, err)
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Publisher == nil {
		opts.Publisher = nopPublisher{}
	}

	return &Session{
		ID:        uuid.New().String(),
		Exercise:  opts.Exercise,
		UserEmail: opts.UserEmail,
		CreatedAt: opts.Clock.Now(),
		clock:     opts.Clock,
		publisher: opts.Publisher,
		duration:  opts.Duration,
		tracker:   tracker,
		phase:     PhaseIdle,
		subs:      make(map[chan Snapshot]struct{}),
	}, nil
}

// Start begins a fresh cycle from idle or completed. Counters, buffers and
// session-level calibration are cleared.
func (s *Session) Start() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Snapshot{}, ErrNotFound
	}
	if s.phase == PhaseActive {
		return Snapshot{}, ErrAlreadyActive
	}

	s.stopTimerLocked()
	s.tracker.Reset()
	s.frames = 0
	s.elapsed = 0
	s.endedAt = time.Time{}
	s.lastRecord = nil
	s.startedAt = s.clock.Now()
	s.phase = PhaseActive

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.runTimer(ctx, s.clock.NewTicker(tickInterval), s.generation)

	Logf("[SESSION] Started %s session %s (duration %s)", s.Exercise, s.ID, s.duration)
	snap := s.snapshotLocked()
	s.broadcastLocked(snap)
	return snap, nil
}

// Stop finalizes an active session. A second Stop returns ErrNotActive, so
// each cycle yields exactly one record.
func (s *Session) Stop() (*models.SessionRecord, error) {
	s.mu.Lock()
	if s.phase != PhaseActive {
		s.mu.Unlock()
		return nil, ErrNotActive
	}
	rec := s.finalizeLocked(models.ReasonManual)
	s.mu.Unlock()

	s.publisher.PublishRecord(rec)
	return rec, nil
}

// Reset returns to idle from any phase without producing a record.
func (s *Session) Reset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
	s.tracker.Reset()
	s.phase = PhaseIdle
	s.frames = 0
	s.elapsed = 0
	s.startedAt = time.Time{}
	s.endedAt = time.Time{}
	s.lastRecord = nil

	Logf("[SESSION] Reset session %s", s.ID)
	snap := s.snapshotLocked()
	s.broadcastLocked(snap)
	return snap
}

// ProcessFrame runs one frame through the tracker. Frames are only accepted
// while active; once a time limit has run out the tracker still sees frames
// but may not count reps.
func (s *Session) ProcessFrame(f pose.Frame) (Snapshot, error) {
	s.mu.Lock()
	if s.phase != PhaseActive {
		s.mu.Unlock()
		return Snapshot{}, ErrNotActive
	}

	now := s.clock.Now()
	s.elapsed = now.Sub(s.startedAt)
	res := s.tracker.Process(f, exercise.Context{
		Now:       now,
		AllowReps: s.duration <= 0 || s.elapsed < s.duration,
	})
	s.frames++

	snap := s.snapshotLocked()
	s.broadcastLocked(snap)
	var m *models.Measurement
	if res.AutoSaved != nil {
		m = s.measurementLocked(*res.AutoSaved)
	}
	s.mu.Unlock()

	if m != nil {
		Logf("[SESSION] Auto-saved measurement for session %s: %.1f cm, %.1f kg", s.ID, m.HeightCm, m.WeightKg)
		s.publisher.PublishMeasurement(m)
	}
	return snap, nil
}

// Calibrate applies calibration to exercises that use it. It is accepted in
// any phase and lasts until the next Start or Reset.
func (s *Session) Calibrate(c exercise.Calibration) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal, ok := s.tracker.(exercise.Calibratable)
	if !ok {
		return Snapshot{}, ErrUnsupported
	}
	if err := cal.Calibrate(c); err != nil {
		return Snapshot{}, fmt.Errorf("calibrating: %w", err)
	}
	snap := s.snapshotLocked()
	s.broadcastLocked(snap)
	return snap, nil
}

func (s *Session) estimatorLocked() (*exercise.Estimator, error) {
	e, ok := s.tracker.(*exercise.Estimator)
	if !ok {
		return nil, ErrUnsupported
	}
	return e, nil
}

// SaveMeasurement stores the latest height/weight sample on request.
func (s *Session) SaveMeasurement() (*models.Measurement, error) {
	s.mu.Lock()
	e, err := s.estimatorLocked()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	sample, err := e.Save()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	m := s.measurementLocked(sample)
	s.mu.Unlock()

	s.publisher.PublishMeasurement(m)
	return m, nil
}

func (s *Session) ToggleAutoSave() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.estimatorLocked()
	if err != nil {
		return false, err
	}
	return e.ToggleAutoSave(), nil
}

func (s *Session) FinalEstimate() (exercise.FinalEstimate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.estimatorLocked()
	if err != nil {
		return exercise.FinalEstimate{}, err
	}
	return e.FinalEstimate()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) Status() Lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lifecycleLocked()
}

// LastRecord returns the record of the current cycle once it has completed.
func (s *Session) LastRecord() *models.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRecord
}

// Subscribe returns a channel of snapshots pushed after every frame, tick
// and transition. Slow readers miss snapshots rather than stall the session.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)

	s.mu.Lock()
	if s.closed {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

// Close stops the timer and ends every subscription. An active session is
// discarded without a record.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.stopTimerLocked()
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}

func (s *Session) runTimer(ctx context.Context, ticker timeutil.Ticker, gen uint64) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if done := s.tick(gen); done {
				return
			}
		}
	}
}

// tick only advances elapsed time and, when the limit is reached, finalizes.
// It never touches the tracker's counters.
func (s *Session) tick(gen uint64) bool {
	s.mu.Lock()
	if s.generation != gen || s.phase != PhaseActive {
		s.mu.Unlock()
		return true
	}

	s.elapsed = s.clock.Now().Sub(s.startedAt)
	if s.duration <= 0 || s.elapsed < s.duration {
		s.broadcastLocked(s.snapshotLocked())
		s.mu.Unlock()
		return false
	}

	Logf("[SESSION] Time limit reached for session %s", s.ID)
	rec := s.finalizeLocked(models.ReasonTimeout)
	s.mu.Unlock()

	s.publisher.PublishRecord(rec)
	return true
}

// stopTimerLocked cancels the running timer and invalidates any tick that
// is already waiting on the lock.
func (s *Session) stopTimerLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
}

func (s *Session) finalizeLocked(reason models.EndReason) *models.SessionRecord {
	s.stopTimerLocked()

	now := s.clock.Now()
	s.elapsed = now.Sub(s.startedAt)
	if s.duration > 0 && s.elapsed > s.duration {
		s.elapsed = s.duration
	}
	s.endedAt = s.startedAt.Add(s.elapsed)
	s.phase = PhaseCompleted

	summary := s.tracker.Summary(s.elapsed)
	rec := models.NewSessionRecord(s.ID, string(s.Exercise), s.UserEmail, reason, s.startedAt, s.endedAt)
	rec.TotalCount = summary.TotalCount
	rec.BestValue = summary.BestValue
	if summary.Details != nil {
		details, err := json.Marshal(summary.Details)
		if err != nil {
			Logf("[SESSION] Error encoding details for session %s: %v", s.ID, err)
		} else {
			rec.Details = details
		}
	}
	s.lastRecord = rec

	Logf("[SESSION] Finalized %s session %s (%s): count=%d best=%.2f duration=%.0fs",
		s.Exercise, s.ID, reason, rec.TotalCount, rec.BestValue, rec.DurationSeconds)
	s.broadcastLocked(s.snapshotLocked())
	return rec
}

func (s *Session) measurementLocked(sample exercise.MeasurementSample) *models.Measurement {
	m := models.NewMeasurement(s.ID, s.UserEmail, sample.Timestamp)
	m.HeightCm = sample.HeightCm
	m.WeightKg = sample.WeightKg
	m.BMI = sample.BMI
	m.Confidence = sample.Confidence
	m.UncertaintyHeight = sample.UncertaintyHeight
	m.UncertaintyWeight = sample.UncertaintyWeight
	m.DetectionStatus = string(sample.Status)
	m.AutoSaved = sample.AutoSaved
	return m
}

func (s *Session) lifecycleLocked() Lifecycle {
	lc := Lifecycle{
		Phase:           s.phase,
		DurationSeconds: int(s.duration.Seconds()),
		ElapsedSeconds:  s.elapsed.Seconds(),
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		lc.StartedAt = &started
	}
	if !s.endedAt.IsZero() {
		ended := s.endedAt
		lc.EndedAt = &ended
	}
	if s.duration > 0 {
		remaining := (s.duration - s.elapsed).Seconds()
		if remaining < 0 || s.phase == PhaseCompleted {
			remaining = 0
		}
		if s.phase == PhaseIdle {
			remaining = s.duration.Seconds()
		}
		lc.RemainingSeconds = &remaining
	}
	return lc
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID: s.ID,
		Exercise:  s.Exercise,
		UserEmail: s.UserEmail,
		Lifecycle: s.lifecycleLocked(),
		Frames:    s.frames,
		Stats:     s.tracker.Stats(),
	}
	if s.lastRecord != nil {
		snap.RecordID = s.lastRecord.ID
	}
	return snap
}

func (s *Session) broadcastLocked(snap Snapshot) {
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
