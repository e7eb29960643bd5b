package exercise

import (
	"fmt"
	"math"
	"time"

	"github.com/kdimtricp/repcam/internal/pose"
)

type SitupConfig struct {
	UpAngle         float64 `json:"up_angle"`
	DownAngle       float64 `json:"down_angle"`
	Window          int     `json:"window"`
	VisibilityFloor float64 `json:"visibility_floor"`
	DurationSeconds int     `json:"duration_seconds"`
}

// DefaultSitupConfig keeps the sit-up module's own tuning: no smoothing
// and strict threshold comparisons.
func DefaultSitupConfig() SitupConfig {
	return SitupConfig{
		UpAngle:         100,
		DownAngle:       150,
		Window:          1,
		VisibilityFloor: 0.5,
		DurationSeconds: 180,
	}
}

func (c SitupConfig) Duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

type SitupStats struct {
	Reps           int       `json:"reps"`
	State          LimbState `json:"state"`
	Angle          float64   `json:"angle"`
	FormPercentage int       `json:"form_percentage"`
}

type SitupDetails struct {
	RepsCompleted int    `json:"reps_completed"`
	FormQuality   int    `json:"form_quality"`
	TimerTime     string `json:"timer_time"`
}

var situpJoints = []pose.Joint{
	pose.LeftShoulder, pose.LeftHip, pose.LeftKnee,
	pose.RightShoulder, pose.RightHip, pose.RightKnee,
}

// Situp counts sit-ups from the mean of both hip angles.
type Situp struct {
	cfg      SitupConfig
	counter  *RepCounter
	feedback string
}

func NewSitup(cfg SitupConfig) (*Situp, error) {
	counter, err := NewRepCounter(RepConfig{
		UpThreshold:   cfg.UpAngle,
		DownThreshold: cfg.DownAngle,
		Trigger:       TriggerBelow,
		InitialState:  StateUnknown,
		Window:        cfg.Window,
		Messages: RepMessages{
			Ready:      "Get Ready",
			NotVisible: "Position yourself properly",
			Rep:        "Rep %d! Go Down",
			Down:       "Go Up!",
			Rising:     "Keep Going Up!",
			Lowering:   "Go Down Slowly",
			Blocked:    "Time's up! Stop exercising",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("situp counter: %w", err)
	}
	s := &Situp{cfg: cfg, counter: counter}
	s.Reset()
	return s, nil
}

func (s *Situp) Kind() Kind { return KindSitup }

func hipAngle(f pose.Frame, shoulder, hip, knee pose.Joint) float64 {
	a, _ := f.Normalized(shoulder)
	b, _ := f.Normalized(hip)
	c, _ := f.Normalized(knee)
	return pose.Angle(a, b, c)
}

func (s *Situp) Process(f pose.Frame, ctx Context) Result {
	if f.Empty() {
		s.feedback = "No pose detected"
		return Result{}
	}

	visible := f.Visible(s.cfg.VisibilityFloor, situpJoints...)
	var angle float64
	if visible {
		left := hipAngle(f, pose.LeftShoulder, pose.LeftHip, pose.LeftKnee)
		right := hipAngle(f, pose.RightShoulder, pose.RightHip, pose.RightKnee)
		angle = (left + right) / 2
	}
	s.counter.Update(angle, visible, ctx.AllowReps)
	s.feedback = s.counter.Feedback()
	return Result{}
}

func (s *Situp) formPercentage() int {
	n := s.counter.Count()
	if n == 0 {
		return 0
	}
	return int(clamp(float64(75+n*2), 60, 95))
}

func (s *Situp) Stats() Stats {
	return Stats{
		Feedback: s.feedback,
		Situp: &SitupStats{
			Reps:           s.counter.Count(),
			State:          s.counter.State(),
			Angle:          math.Round(s.counter.Value()),
			FormPercentage: s.formPercentage(),
		},
	}
}

func (s *Situp) Summary(elapsed time.Duration) Summary {
	secs := int(elapsed.Seconds())
	return Summary{
		TotalCount: s.counter.Count(),
		BestValue:  float64(s.formPercentage()),
		Details: SitupDetails{
			RepsCompleted: s.counter.Count(),
			FormQuality:   s.formPercentage(),
			TimerTime:     fmt.Sprintf("%d:%02d", secs/60, secs%60),
		},
	}
}

func (s *Situp) Reset() {
	s.counter.Reset()
	s.feedback = "Get Ready"
}

func (s *Situp) Counter() *RepCounter { return s.counter }
