package exercise

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kdimtricp/repcam/internal/pose"
)

type DetectionStatus string

const (
	NotVisible      DetectionStatus = "not_visible"
	Positioning     DetectionStatus = "positioning"
	GoodPosition    DetectionStatus = "good_position"
	MeasuringStable DetectionStatus = "measuring_stable"
)

func (s DetectionStatus) rank() int {
	switch s {
	case Positioning:
		return 1
	case GoodPosition:
		return 2
	case MeasuringStable:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether s is as strict as other or stricter.
func (s DetectionStatus) AtLeast(other DetectionStatus) bool {
	return s.rank() >= other.rank()
}

type MeasureConfig struct {
	// Below VisibilityFloor the subject counts as not visible; below
	// GoodConfidence as still positioning.
	VisibilityFloor    float64 `json:"visibility_floor"`
	GoodConfidence     float64 `json:"good_confidence"`
	StabilityThreshold int     `json:"stability_threshold"`
	StableToleranceCm  float64 `json:"stable_tolerance_cm"`
	BufferSize         int     `json:"buffer_size"`
	AutoSave           bool    `json:"auto_save"`
	AutoSaveCooldown   string  `json:"auto_save_cooldown"`
	BMIPrior           float64 `json:"bmi_prior"`
	ShoulderRatio      float64 `json:"shoulder_ratio"`
	MinScale           float64 `json:"min_scale"`
	MaxScale           float64 `json:"max_scale"`
}

func DefaultMeasureConfig() MeasureConfig {
	return MeasureConfig{
		VisibilityFloor:    0.5,
		GoodConfidence:     0.7,
		StabilityThreshold: 15,
		StableToleranceCm:  2,
		BufferSize:         30,
		AutoSave:           true,
		AutoSaveCooldown:   "3s",
		BMIPrior:           22,
		ShoulderRatio:      0.259,
		MinScale:           0.8,
		MaxScale:           1.25,
	}
}

func (c MeasureConfig) cooldown() time.Duration {
	d, err := time.ParseDuration(c.AutoSaveCooldown)
	if err != nil || d < 0 {
		return 3 * time.Second
	}
	return d
}

type MeasurementSample struct {
	HeightCm          float64         `json:"height_cm"`
	WeightKg          float64         `json:"weight_kg"`
	BMI               float64         `json:"bmi"`
	Confidence        float64         `json:"confidence"`
	UncertaintyHeight float64         `json:"uncertainty_height"`
	UncertaintyWeight float64         `json:"uncertainty_weight"`
	Status            DetectionStatus `json:"detection_status"`
	Calibrated        bool            `json:"calibrated"`
	AutoSaved         bool            `json:"auto_saved"`
	Timestamp         time.Time       `json:"timestamp"`
}

type MeasureStats struct {
	HeightCm     float64         `json:"height_cm"`
	WeightKg     float64         `json:"weight_kg"`
	BMI          float64         `json:"bmi"`
	Confidence   float64         `json:"confidence"`
	Status       DetectionStatus `json:"detection_status"`
	Calibrated   bool            `json:"calibrated"`
	StableFrames int             `json:"stable_frames"`
	SavedCount   int             `json:"saved_count"`
	AutoSave     bool            `json:"auto_save"`
}

type FinalEstimate struct {
	HeightCm       float64 `json:"final_height_cm"`
	WeightKg       float64 `json:"final_weight_kg"`
	BMI            float64 `json:"final_bmi"`
	HeightStdDev   float64 `json:"height_std_dev"`
	WeightStdDev   float64 `json:"weight_std_dev"`
	SampleCount    int     `json:"sample_count"`
	MeanConfidence float64 `json:"mean_confidence"`
}

type MeasureDetails struct {
	Estimate  *FinalEstimate      `json:"estimate,omitempty"`
	Instances []MeasurementSample `json:"instances"`
}

var (
	headJoints     = []pose.Joint{pose.Nose}
	shoulderJoints = []pose.Joint{pose.LeftShoulder, pose.RightShoulder}
	heelJoints     = []pose.Joint{pose.LeftHeel, pose.RightHeel}
	ankleJoints    = []pose.Joint{pose.LeftAnkle, pose.RightAnkle}
)

// Estimator infers height, weight and BMI from a standing pose and gates
// persistence on a run of stable frames.
type Estimator struct {
	cfg      MeasureConfig
	preset   Calibration
	cooldown time.Duration

	pixelsPerCm  float64
	heights      []float64
	weights      []float64
	stableFrames int
	autoSave     bool
	lastAutoSave time.Time

	latest   MeasurementSample
	saved    []MeasurementSample
	feedback string
}

func NewEstimator(cfg MeasureConfig, cal Calibration) (*Estimator, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.StabilityThreshold
	}
	e := &Estimator{cfg: cfg, preset: cal, cooldown: cfg.cooldown()}
	e.Reset()
	return e, nil
}

func (e *Estimator) Kind() Kind { return KindMeasure }

func (e *Estimator) Calibrate(c Calibration) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.PixelsPerCm > 0 {
		e.pixelsPerCm = c.PixelsPerCm
		e.clearStability()
	}
	return nil
}

func (e *Estimator) Calibrated() bool { return e.pixelsPerCm > 0 }

func (e *Estimator) clearStability() {
	e.heights = e.heights[:0]
	e.weights = e.weights[:0]
	e.stableFrames = 0
}

func footJoints(f pose.Frame, floor float64) []pose.Joint {
	if f.Visible(floor, heelJoints...) {
		return heelJoints
	}
	return ankleJoints
}

// Estimate computes one sample from f without touching saved instances.
func (e *Estimator) Estimate(f pose.Frame, now time.Time) MeasurementSample {
	feet := footJoints(f, e.cfg.VisibilityFloor)
	used := append(append(append([]pose.Joint{}, headJoints...), shoulderJoints...), feet...)
	conf := f.MinVisibility(used...)

	s := MeasurementSample{Confidence: conf, Calibrated: e.Calibrated(), Timestamp: now}

	if f.Empty() || conf < e.cfg.VisibilityFloor {
		e.clearStability()
		s.Status = NotVisible
		e.feedback = "Step into the frame - full body visible"
		return s
	}
	if conf < e.cfg.GoodConfidence {
		e.clearStability()
		s.Status = Positioning
		e.feedback = "Adjust position - stand straight facing the camera"
		return s
	}
	s.Status = GoodPosition

	if !e.Calibrated() {
		e.clearStability()
		e.feedback = "Uncalibrated - set pixels per cm"
		return s
	}

	nose, _ := f.Pixel(pose.Nose)
	f1, _ := f.Pixel(feet[0])
	f2, _ := f.Pixel(feet[1])
	spanPx := math.Max(f1.Y, f2.Y) - nose.Y
	if spanPx <= 0 {
		e.clearStability()
		s.Status = Positioning
		e.feedback = "Adjust position - stand upright"
		return s
	}

	ls, _ := f.Pixel(pose.LeftShoulder)
	rs, _ := f.Pixel(pose.RightShoulder)
	shoulderPx := math.Hypot(ls.X-rs.X, ls.Y-rs.Y)

	s.HeightCm = spanPx / e.pixelsPerCm
	hm := s.HeightCm / 100
	scale := clamp((shoulderPx/spanPx)/e.cfg.ShoulderRatio, e.cfg.MinScale, e.cfg.MaxScale)
	s.WeightKg = e.cfg.BMIPrior * hm * hm * scale
	s.BMI = s.WeightKg / (hm * hm)

	if len(e.heights) > 0 && math.Abs(s.HeightCm-stat.Mean(e.heights, nil)) > e.cfg.StableToleranceCm {
		e.clearStability()
	}
	e.heights = appendBounded(e.heights, s.HeightCm, e.cfg.BufferSize)
	e.weights = appendBounded(e.weights, s.WeightKg, e.cfg.BufferSize)
	e.stableFrames++

	s.UncertaintyHeight = stdDev(e.heights)
	s.UncertaintyWeight = stdDev(e.weights)

	if e.stableFrames >= e.cfg.StabilityThreshold {
		s.Status = MeasuringStable
		e.feedback = "Measuring - hold still"
	} else {
		e.feedback = "Good position - hold still"
	}
	return s
}

func (e *Estimator) Process(f pose.Frame, ctx Context) Result {
	s := e.Estimate(f, ctx.Now)
	e.latest = s

	if !e.autoSave || s.Status != MeasuringStable {
		return Result{}
	}
	if !e.lastAutoSave.IsZero() && ctx.Now.Sub(e.lastAutoSave) <= e.cooldown {
		return Result{}
	}
	s.AutoSaved = true
	e.saved = append(e.saved, s)
	e.lastAutoSave = ctx.Now
	e.feedback = "Measurement saved"
	return Result{AutoSaved: &s}
}

// Save stores the latest sample when the subject is in good position or
// better and the session is calibrated.
func (e *Estimator) Save() (MeasurementSample, error) {
	if !e.latest.Calibrated || !e.latest.Status.AtLeast(GoodPosition) || e.latest.HeightCm <= 0 {
		return MeasurementSample{}, ErrNoMeasurement
	}
	s := e.latest
	s.AutoSaved = false
	e.saved = append(e.saved, s)
	return s, nil
}

// ToggleAutoSave flips auto-save and returns the new setting.
func (e *Estimator) ToggleAutoSave() bool {
	e.autoSave = !e.autoSave
	return e.autoSave
}

// FinalEstimate aggregates the saved instances.
func (e *Estimator) FinalEstimate() (FinalEstimate, error) {
	if len(e.saved) == 0 {
		return FinalEstimate{}, ErrNoMeasurement
	}
	n := len(e.saved)
	heights := make([]float64, n)
	weights := make([]float64, n)
	confs := make([]float64, n)
	for i, s := range e.saved {
		heights[i] = s.HeightCm
		weights[i] = s.WeightKg
		confs[i] = s.Confidence
	}
	h := stat.Mean(heights, nil)
	w := stat.Mean(weights, nil)
	return FinalEstimate{
		HeightCm:       h,
		WeightKg:       w,
		BMI:            w / ((h / 100) * (h / 100)),
		HeightStdDev:   stdDev(heights),
		WeightStdDev:   stdDev(weights),
		SampleCount:    n,
		MeanConfidence: stat.Mean(confs, nil),
	}, nil
}

func (e *Estimator) Stats() Stats {
	s := e.latest
	return Stats{
		Feedback: e.feedback,
		Measure: &MeasureStats{
			HeightCm:     math.Round(s.HeightCm*10) / 10,
			WeightKg:     math.Round(s.WeightKg*10) / 10,
			BMI:          math.Round(s.BMI*10) / 10,
			Confidence:   math.Round(s.Confidence*100) / 100,
			Status:       s.Status,
			Calibrated:   e.Calibrated(),
			StableFrames: e.stableFrames,
			SavedCount:   len(e.saved),
			AutoSave:     e.autoSave,
		},
	}
}

func (e *Estimator) Summary(time.Duration) Summary {
	details := MeasureDetails{Instances: e.Saved()}
	var best float64
	if est, err := e.FinalEstimate(); err == nil {
		details.Estimate = &est
		best = est.HeightCm
	}
	return Summary{TotalCount: len(e.saved), BestValue: best, Details: details}
}

func (e *Estimator) Reset() {
	e.pixelsPerCm = 0
	e.heights = nil
	e.weights = nil
	e.stableFrames = 0
	e.autoSave = e.cfg.AutoSave
	e.lastAutoSave = time.Time{}
	e.latest = MeasurementSample{Status: NotVisible}
	e.saved = nil
	e.feedback = "Step into the frame - full body visible"
	_ = e.Calibrate(e.preset)
}

func (e *Estimator) Latest() MeasurementSample { return e.latest }

func (e *Estimator) Saved() []MeasurementSample {
	out := make([]MeasurementSample, len(e.saved))
	copy(out, e.saved)
	return out
}

func appendBounded(buf []float64, v float64, limit int) []float64 {
	buf = append(buf, v)
	if len(buf) > limit {
		buf = buf[len(buf)-limit:]
	}
	return buf
}

func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}
