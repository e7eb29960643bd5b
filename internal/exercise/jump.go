package exercise

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kdimtricp/repcam/internal/pose"
)

type FlightState string

const (
	Ground   FlightState = "GROUND"
	Airborne FlightState = "AIRBORNE"
)

type JumpConfig struct {
	Window          int     `json:"window"`
	VisibilityFloor float64 `json:"visibility_floor"`
	// NoiseMarginPx is how far above the baseline the hip centroid must
	// rise before a flight starts.
	NoiseMarginPx float64 `json:"noise_margin_px"`
	// LandingFrames is the number of consecutive in-margin frames that
	// confirm a landing.
	LandingFrames        int     `json:"landing_frames"`
	CalibrationFrames    int     `json:"calibration_frames"`
	StillnessTolerancePx float64 `json:"stillness_tolerance_px"`
}

func DefaultJumpConfig() JumpConfig {
	return JumpConfig{
		Window:               5,
		VisibilityFloor:      0.5,
		NoiseMarginPx:        12,
		LandingFrames:        2,
		CalibrationFrames:    30,
		StillnessTolerancePx: 3,
	}
}

type JumpRecord struct {
	HeightCm  float64   `json:"height_cm"`
	Timestamp time.Time `json:"timestamp"`
}

type JumpStats struct {
	TotalJumps    int         `json:"total_jumps"`
	CurrentHeight float64     `json:"current_height"`
	MaxHeight     float64     `json:"max_height"`
	State         FlightState `json:"state"`
	Calibrated    bool        `json:"calibrated"`
	BaselineY     float64     `json:"baseline_y"`
	PixelsPerCm   float64     `json:"pixels_per_cm"`
}

type JumpDetails struct {
	TotalJumps    int          `json:"total_jumps"`
	MaxHeight     float64      `json:"max_height"`
	AverageHeight float64      `json:"average_height"`
	PixelsPerCm   float64      `json:"pixels_per_cm"`
	BaselineY     float64      `json:"baseline_y"`
	Jumps         []JumpRecord `json:"jumps"`
}

var (
	hipJoints  = []pose.Joint{pose.LeftHip, pose.RightHip}
	spanJoints = []pose.Joint{pose.Nose, pose.LeftHeel, pose.RightHeel}
)

// JumpDetector tracks the hip centroid against a standing baseline and
// records one JumpRecord per completed flight.
type JumpDetector struct {
	cfg      JumpConfig
	preset   Calibration
	smoother *pose.Smoother

	baselineY       float64
	hasBaseline     bool
	pixelsPerCm     float64
	subjectHeightCm float64
	calSamples      []float64
	calSpans        []float64

	state         FlightState
	minY          float64
	groundFrames  int
	jumpCount     int
	currentHeight float64
	maxHeightCm   float64
	history       []JumpRecord
	feedback      string
}

func NewJumpDetector(cfg JumpConfig, cal Calibration) (*JumpDetector, error) {
	if cfg.NoiseMarginPx <= 0 {
		return nil, fmt.Errorf("noise margin must be positive, got %f", cfg.NoiseMarginPx)
	}
	if cfg.LandingFrames <= 0 {
		cfg.LandingFrames = 1
	}
	if cfg.CalibrationFrames <= 0 {
		cfg.CalibrationFrames = 1
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	d := &JumpDetector{cfg: cfg, preset: cal, smoother: pose.NewSmoother(cfg.Window)}
	d.Reset()
	return d, nil
}

func (d *JumpDetector) Kind() Kind { return KindJump }

// Calibrate applies calibration on top of whatever the detector has already
// established. A zero PixelsPerCm keeps the current scale.
func (d *JumpDetector) Calibrate(c Calibration) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.PixelsPerCm > 0 {
		d.pixelsPerCm = c.PixelsPerCm
	}
	if c.SubjectHeightCm > 0 {
		d.subjectHeightCm = c.SubjectHeightCm
	}
	if c.BaselineY != nil {
		d.baselineY = *c.BaselineY
		d.hasBaseline = true
		d.calSamples = d.calSamples[:0]
		d.calSpans = d.calSpans[:0]
	}
	d.updateFeedback()
	return nil
}

func (d *JumpDetector) Calibrated() bool {
	return d.hasBaseline && d.pixelsPerCm > 0
}

func (d *JumpDetector) Process(f pose.Frame, ctx Context) Result {
	if !f.Visible(d.cfg.VisibilityFloor, hipJoints...) {
		d.feedback = "Body not visible"
		return Result{}
	}
	l, _ := f.Pixel(pose.LeftHip)
	r, _ := f.Pixel(pose.RightHip)
	y := (l.Y + r.Y) / 2

	span := math.NaN()
	if f.Visible(d.cfg.VisibilityFloor, spanJoints...) {
		nose, _ := f.Pixel(pose.Nose)
		lh, _ := f.Pixel(pose.LeftHeel)
		rh, _ := f.Pixel(pose.RightHeel)
		span = math.Max(lh.Y, rh.Y) - nose.Y
	}

	d.Observe(y, span, ctx.Now)
	return Result{}
}

// Observe feeds one reference-point sample in pixels. span is the standing
// head-to-heel pixel span, or NaN when unknown. It returns the completed
// jump when this sample confirmed a landing.
func (d *JumpDetector) Observe(y, span float64, now time.Time) *JumpRecord {
	d.smoother.Push(y)
	v := d.smoother.Average()

	if !d.Calibrated() {
		d.calibrateFrom(y, span)
		d.updateFeedback()
		return nil
	}

	rise := d.baselineY - v
	switch d.state {
	case Ground:
		if rise > d.cfg.NoiseMarginPx {
			d.state = Airborne
			d.minY = v
			d.groundFrames = 0
			d.currentHeight = rise / d.pixelsPerCm
			d.feedback = "In the air"
		}
	case Airborne:
		if v < d.minY {
			d.minY = v
			d.currentHeight = (d.baselineY - d.minY) / d.pixelsPerCm
		}
		if rise > d.cfg.NoiseMarginPx {
			d.groundFrames = 0
			return nil
		}
		d.groundFrames++
		if d.groundFrames >= d.cfg.LandingFrames {
			return d.land(now)
		}
	}
	return nil
}

func (d *JumpDetector) land(now time.Time) *JumpRecord {
	height := (d.baselineY - d.minY) / d.pixelsPerCm
	rec := JumpRecord{HeightCm: height, Timestamp: now}
	d.history = append(d.history, rec)
	d.jumpCount++
	d.maxHeightCm = math.Max(d.maxHeightCm, height)
	d.currentHeight = height
	d.state = Ground
	d.groundFrames = 0
	d.feedback = fmt.Sprintf("Jump %d: %.1f cm", d.jumpCount, height)
	return &rec
}

// calibrateFrom collects standing samples until a still window establishes
// the baseline and, when a subject height is known, the pixel scale.
func (d *JumpDetector) calibrateFrom(y, span float64) {
	if d.hasBaseline && d.pixelsPerCm > 0 {
		return
	}
	if d.hasBaseline && (d.subjectHeightCm <= 0 || math.IsNaN(span)) {
		return
	}

	d.calSamples = append(d.calSamples, y)
	if !math.IsNaN(span) {
		d.calSpans = append(d.calSpans, span)
	}
	if len(d.calSamples) > d.cfg.CalibrationFrames {
		d.calSamples = d.calSamples[1:]
	}
	if len(d.calSpans) > d.cfg.CalibrationFrames {
		d.calSpans = d.calSpans[1:]
	}
	if len(d.calSamples) < d.cfg.CalibrationFrames {
		return
	}
	if stat.StdDev(d.calSamples, nil) > d.cfg.StillnessTolerancePx {
		return
	}

	if !d.hasBaseline {
		d.baselineY = stat.Mean(d.calSamples, nil)
		d.hasBaseline = true
	}
	if d.pixelsPerCm <= 0 && d.subjectHeightCm > 0 && len(d.calSpans) >= d.cfg.CalibrationFrames/2 && len(d.calSpans) > 0 {
		d.pixelsPerCm = stat.Mean(d.calSpans, nil) / d.subjectHeightCm
	}
}

func (d *JumpDetector) updateFeedback() {
	switch {
	case d.Calibrated():
		if d.jumpCount == 0 {
			d.feedback = "Ready - jump!"
		}
	case !d.hasBaseline:
		d.feedback = "Calibrating - stand still"
	default:
		d.feedback = "Calibration needed: pixels per cm"
	}
}

func (d *JumpDetector) Stats() Stats {
	return Stats{
		Feedback: d.feedback,
		Jump: &JumpStats{
			TotalJumps:    d.jumpCount,
			CurrentHeight: math.Round(d.currentHeight*10) / 10,
			MaxHeight:     math.Round(d.maxHeightCm*10) / 10,
			State:         d.state,
			Calibrated:    d.Calibrated(),
			BaselineY:     d.baselineY,
			PixelsPerCm:   d.pixelsPerCm,
		},
	}
}

func (d *JumpDetector) averageHeight() float64 {
	if len(d.history) == 0 {
		return 0
	}
	heights := make([]float64, len(d.history))
	for i, j := range d.history {
		heights[i] = j.HeightCm
	}
	return stat.Mean(heights, nil)
}

func (d *JumpDetector) Summary(time.Duration) Summary {
	return Summary{
		TotalCount: d.jumpCount,
		BestValue:  d.maxHeightCm,
		Details: JumpDetails{
			TotalJumps:    d.jumpCount,
			MaxHeight:     d.maxHeightCm,
			AverageHeight: d.averageHeight(),
			PixelsPerCm:   d.pixelsPerCm,
			BaselineY:     d.baselineY,
			Jumps:         d.History(),
		},
	}
}

// Reset drops everything learned in the session and re-applies the preset
// calibration.
func (d *JumpDetector) Reset() {
	d.smoother.Reset()
	d.baselineY = 0
	d.hasBaseline = false
	d.pixelsPerCm = 0
	d.subjectHeightCm = 0
	d.calSamples = nil
	d.calSpans = nil
	d.state = Ground
	d.minY = 0
	d.groundFrames = 0
	d.jumpCount = 0
	d.currentHeight = 0
	d.maxHeightCm = 0
	d.history = nil
	_ = d.Calibrate(d.preset)
}

func (d *JumpDetector) State() FlightState { return d.state }

func (d *JumpDetector) JumpCount() int { return d.jumpCount }

func (d *JumpDetector) MaxHeightCm() float64 { return d.maxHeightCm }

// History returns a copy of the completed jumps.
func (d *JumpDetector) History() []JumpRecord {
	out := make([]JumpRecord, len(d.history))
	copy(out, d.history)
	return out
}
