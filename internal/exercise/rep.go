package exercise

import (
	"fmt"

	"github.com/kdimtricp/repcam/internal/pose"
)

type LimbState string

const (
	StateUnknown LimbState = ""
	StateDown    LimbState = "down"
	StateUp      LimbState = "up"
)

// Trigger says which way the signal moves to enter the up phase.
type Trigger int

const (
	TriggerBelow Trigger = iota
	TriggerAbove
)

type Outcome int

const (
	OutcomeHold Outcome = iota
	OutcomeNotVisible
	OutcomeRep
	OutcomeDown
	OutcomeBlocked
)

// RepMessages holds the feedback text a counter emits. Rep may contain a %d
// verb for the new count.
type RepMessages struct {
	Ready      string
	NotVisible string
	Rep        string
	Down       string
	Rising     string
	Lowering   string
	Blocked    string
}

type RepConfig struct {
	UpThreshold   float64
	DownThreshold float64
	Trigger       Trigger
	// Inclusive makes the thresholds themselves count as crossed.
	Inclusive    bool
	InitialState LimbState
	Window       int
	Messages     RepMessages
}

func (c RepConfig) validate() error {
	if c.UpThreshold == c.DownThreshold {
		return fmt.Errorf("up and down thresholds must differ, both %.1f", c.UpThreshold)
	}
	if c.Trigger == TriggerBelow && c.UpThreshold > c.DownThreshold {
		return fmt.Errorf("up threshold %.1f must be below down threshold %.1f", c.UpThreshold, c.DownThreshold)
	}
	if c.Trigger == TriggerAbove && c.UpThreshold < c.DownThreshold {
		return fmt.Errorf("up threshold %.1f must be above down threshold %.1f", c.UpThreshold, c.DownThreshold)
	}
	return nil
}

// RepCounter is a hysteresis state machine over one smoothed signal. The
// count only moves on a down->up transition.
type RepCounter struct {
	cfg      RepConfig
	smoother *pose.Smoother
	state    LimbState
	count    int
	value    float64
	feedback string
}

func NewRepCounter(cfg RepConfig) (*RepCounter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &RepCounter{cfg: cfg, smoother: pose.NewSmoother(cfg.Window)}
	c.Reset()
	return c, nil
}

func (c *RepCounter) crossedUp(v float64) bool {
	if c.cfg.Trigger == TriggerBelow {
		if c.cfg.Inclusive {
			return v <= c.cfg.UpThreshold
		}
		return v < c.cfg.UpThreshold
	}
	if c.cfg.Inclusive {
		return v >= c.cfg.UpThreshold
	}
	return v > c.cfg.UpThreshold
}

func (c *RepCounter) crossedDown(v float64) bool {
	if c.cfg.Trigger == TriggerBelow {
		if c.cfg.Inclusive {
			return v >= c.cfg.DownThreshold
		}
		return v > c.cfg.DownThreshold
	}
	if c.cfg.Inclusive {
		return v <= c.cfg.DownThreshold
	}
	return v < c.cfg.DownThreshold
}

// Update feeds one raw sample. Invisible samples never reach the smoother
// or the state machine. allowRep=false blocks the increment (and the
// transition to up) without touching anything else.
func (c *RepCounter) Update(raw float64, visible, allowRep bool) Outcome {
	if !visible {
		c.feedback = c.cfg.Messages.NotVisible
		return OutcomeNotVisible
	}

	c.smoother.Push(raw)
	v := c.smoother.Average()
	c.value = v

	switch {
	case c.state == StateDown && c.crossedUp(v):
		if !allowRep {
			c.feedback = c.cfg.Messages.Blocked
			return OutcomeBlocked
		}
		c.state = StateUp
		c.count++
		c.feedback = c.repMessage()
		return OutcomeRep
	case c.state != StateDown && c.crossedDown(v):
		c.state = StateDown
		c.feedback = c.cfg.Messages.Down
		return OutcomeDown
	case c.state == StateDown:
		if !c.crossedDown(v) {
			c.feedback = c.cfg.Messages.Rising
		}
	case c.state == StateUp:
		c.feedback = c.cfg.Messages.Lowering
	default:
		c.feedback = c.cfg.Messages.Ready
	}
	return OutcomeHold
}

func (c *RepCounter) repMessage() string {
	if c.cfg.Messages.Rep == "" {
		return ""
	}
	return fmt.Sprintf(c.cfg.Messages.Rep, c.count)
}

func (c *RepCounter) Reset() {
	c.smoother.Reset()
	c.state = c.cfg.InitialState
	c.count = 0
	c.value = 0
	c.feedback = c.cfg.Messages.Ready
}

func (c *RepCounter) Count() int { return c.count }

func (c *RepCounter) State() LimbState { return c.state }

// Value is the last smoothed sample.
func (c *RepCounter) Value() float64 { return c.value }

func (c *RepCounter) Feedback() string { return c.feedback }
