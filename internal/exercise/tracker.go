package exercise

import (
	"errors"
	"fmt"
	"time"

	"github.com/kdimtricp/repcam/internal/pose"
)

type Kind string

const (
	KindCurl    Kind = "dumbbell_curl"
	KindSitup   Kind = "situp"
	KindJump    Kind = "vertical_jump"
	KindMeasure Kind = "height_weight"
)

var Kinds = []Kind{KindCurl, KindSitup, KindJump, KindMeasure}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown exercise %q", s)
}

var (
	ErrNotCalibratable = errors.New("exercise does not take calibration")
	ErrNoMeasurement   = errors.New("no valid measurement")
)

// Context carries the per-frame facts a tracker needs from its session.
type Context struct {
	Now time.Time
	// AllowReps is false once a time-boxed session has run out of time.
	AllowReps bool
}

// Result reports side effects of one processed frame.
type Result struct {
	AutoSaved *MeasurementSample
}

// Stats is the exercise part of a session snapshot. Exactly one of the
// per-exercise fields is set.
type Stats struct {
	Feedback string        `json:"feedback"`
	Curl     *CurlStats    `json:"curl,omitempty"`
	Situp    *SitupStats   `json:"situp,omitempty"`
	Jump     *JumpStats    `json:"jump,omitempty"`
	Measure  *MeasureStats `json:"measure,omitempty"`
}

// Summary is what a tracker contributes to a finalized session record.
type Summary struct {
	TotalCount int
	BestValue  float64
	Details    any
}

type Tracker interface {
	Kind() Kind
	Process(f pose.Frame, ctx Context) Result
	Stats() Stats
	Summary(elapsed time.Duration) Summary
	Reset()
}

// Calibratable trackers accept pixel-to-metric calibration.
type Calibratable interface {
	Calibrate(c Calibration) error
	Calibrated() bool
}

// Calibration maps pixel distances to centimetres for one session.
type Calibration struct {
	PixelsPerCm float64  `json:"pixels_per_cm"`
	BaselineY   *float64 `json:"baseline_y,omitempty"`
	// SubjectHeightCm lets the jump detector derive PixelsPerCm from the
	// standing body span.
	SubjectHeightCm float64 `json:"subject_height_cm,omitempty"`
}

func (c Calibration) Validate() error {
	if c.PixelsPerCm < 0 {
		return fmt.Errorf("pixels_per_cm must be non-negative, got %f", c.PixelsPerCm)
	}
	if c.SubjectHeightCm < 0 {
		return fmt.Errorf("subject_height_cm must be non-negative, got %f", c.SubjectHeightCm)
	}
	if c.BaselineY != nil && *c.BaselineY < 0 {
		return fmt.Errorf("baseline_y must be non-negative, got %f", *c.BaselineY)
	}
	return nil
}

// Configs bundles the tuning of every exercise.
type Configs struct {
	Curl    CurlConfig
	Situp   SitupConfig
	Jump    JumpConfig
	Measure MeasureConfig
}

func DefaultConfigs() Configs {
	return Configs{
		Curl:    DefaultCurlConfig(),
		Situp:   DefaultSitupConfig(),
		Jump:    DefaultJumpConfig(),
		Measure: DefaultMeasureConfig(),
	}
}

// New builds the tracker for kind. cal is the session's preset calibration
// and is ignored by exercises that do not use one.
func New(kind Kind, cfg Configs, cal Calibration) (Tracker, error) {
	switch kind {
	case KindCurl:
		return NewCurl(cfg.Curl)
	case KindSitup:
		return NewSitup(cfg.Situp)
	case KindJump:
		return NewJumpDetector(cfg.Jump, cal)
	case KindMeasure:
		return NewEstimator(cfg.Measure, cal)
	default:
		return nil, fmt.Errorf("unknown exercise %q", kind)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
