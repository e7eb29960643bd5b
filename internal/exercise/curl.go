package exercise

import (
	"fmt"
	"math"
	"time"

	"github.com/kdimtricp/repcam/internal/pose"
)

type CurlConfig struct {
	UpAngle         float64 `json:"up_angle"`
	DownAngle       float64 `json:"down_angle"`
	Window          int     `json:"window"`
	VisibilityFloor float64 `json:"visibility_floor"`
}

func DefaultCurlConfig() CurlConfig {
	return CurlConfig{
		UpAngle:         55,
		DownAngle:       150,
		Window:          5,
		VisibilityFloor: 0.5,
	}
}

type ArmStats struct {
	Reps   int       `json:"reps"`
	State  LimbState `json:"state"`
	Angle  float64   `json:"angle"`
	Status string    `json:"status"`
}

type CurlStats struct {
	Left            ArmStats `json:"left"`
	Right           ArmStats `json:"right"`
	TotalReps       int      `json:"total_reps"`
	EstimatedWeight float64  `json:"estimated_weight"`
}

type CurlDetails struct {
	LeftReps        int     `json:"left_reps"`
	RightReps       int     `json:"right_reps"`
	TotalReps       int     `json:"total_reps"`
	EstimatedWeight float64 `json:"estimated_weight"`
}

type arm struct {
	label    string
	shoulder pose.Joint
	elbow    pose.Joint
	wrist    pose.Joint
	counter  *RepCounter
	status   string
}

// Curl counts dumbbell curls with an independent counter per arm.
type Curl struct {
	cfg    CurlConfig
	left   *arm
	right  *arm
	weight float64
}

func NewCurl(cfg CurlConfig) (*Curl, error) {
	repCfg := RepConfig{
		UpThreshold:   cfg.UpAngle,
		DownThreshold: cfg.DownAngle,
		Trigger:       TriggerBelow,
		Inclusive:     true,
		InitialState:  StateDown,
		Window:        cfg.Window,
		Messages: RepMessages{
			Ready:      "Get Ready",
			NotVisible: "Not visible",
			Rep:        "Rep %d!",
			Down:       "Curl up",
			Rising:     "Keep curling",
			Lowering:   "Lower slowly",
			Blocked:    "Time's up!",
		},
	}

	left, err := NewRepCounter(repCfg)
	if err != nil {
		return nil, fmt.Errorf("left arm: %w", err)
	}
	right, err := NewRepCounter(repCfg)
	if err != nil {
		return nil, fmt.Errorf("right arm: %w", err)
	}

	c := &Curl{
		cfg:   cfg,
		left:  &arm{label: "L", shoulder: pose.LeftShoulder, elbow: pose.LeftElbow, wrist: pose.LeftWrist, counter: left},
		right: &arm{label: "R", shoulder: pose.RightShoulder, elbow: pose.RightElbow, wrist: pose.RightWrist, counter: right},
	}
	c.Reset()
	return c, nil
}

func (c *Curl) Kind() Kind { return KindCurl }

func (c *Curl) Process(f pose.Frame, ctx Context) Result {
	for _, a := range []*arm{c.left, c.right} {
		visible := f.Visible(c.cfg.VisibilityFloor, a.shoulder, a.elbow, a.wrist)
		var angle float64
		if visible {
			angle, visible = pose.JointAngle(f, a.shoulder, a.elbow, a.wrist)
		}
		if a.counter.Update(angle, visible, ctx.AllowReps) == OutcomeNotVisible {
			a.status = a.label + ": Not visible"
			continue
		}
		a.status = fmt.Sprintf("%s: %d°", a.label, int(math.Round(a.counter.Value())))
	}

	if total := c.total(); total > 0 {
		c.weight = clamp(10+float64(total)*0.5, 5, 25)
	}
	return Result{}
}

func (c *Curl) total() int {
	return c.left.counter.Count() + c.right.counter.Count()
}

func (c *Curl) Stats() Stats {
	armStats := func(a *arm) ArmStats {
		return ArmStats{
			Reps:   a.counter.Count(),
			State:  a.counter.State(),
			Angle:  math.Round(a.counter.Value()),
			Status: a.status,
		}
	}
	return Stats{
		Feedback: c.left.status + " | " + c.right.status,
		Curl: &CurlStats{
			Left:            armStats(c.left),
			Right:           armStats(c.right),
			TotalReps:       c.total(),
			EstimatedWeight: math.Round(c.weight*10) / 10,
		},
	}
}

func (c *Curl) Summary(time.Duration) Summary {
	weight := math.Round(c.weight*100) / 100
	return Summary{
		TotalCount: c.total(),
		BestValue:  weight,
		Details: CurlDetails{
			LeftReps:        c.left.counter.Count(),
			RightReps:       c.right.counter.Count(),
			TotalReps:       c.total(),
			EstimatedWeight: weight,
		},
	}
}

func (c *Curl) Reset() {
	for _, a := range []*arm{c.left, c.right} {
		a.counter.Reset()
		a.status = a.label + ": Not visible"
	}
	c.weight = 0
}

// Arm exposes one arm's counter; side is "left" or "right".
func (c *Curl) Arm(side string) *RepCounter {
	if side == "right" {
		return c.right.counter
	}
	return c.left.counter
}
