package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kdimtricp/repcam/internal/exercise"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds optional overrides for every exercise and for the
// recorder. Nil fields keep the built-in defaults.
type TuningConfig struct {
	Curl     *CurlTuning     `json:"dumbbell_curl,omitempty"`
	Situp    *SitupTuning    `json:"situp,omitempty"`
	Jump     *JumpTuning     `json:"vertical_jump,omitempty"`
	Measure  *MeasureTuning  `json:"height_weight,omitempty"`
	Recorder *RecorderTuning `json:"recorder,omitempty"`
}

type CurlTuning struct {
	UpAngle         *float64 `json:"up_angle,omitempty"`
	DownAngle       *float64 `json:"down_angle,omitempty"`
	Window          *int     `json:"window,omitempty"`
	VisibilityFloor *float64 `json:"visibility_floor,omitempty"`
}

type SitupTuning struct {
	UpAngle         *float64 `json:"up_angle,omitempty"`
	DownAngle       *float64 `json:"down_angle,omitempty"`
	Window          *int     `json:"window,omitempty"`
	VisibilityFloor *float64 `json:"visibility_floor,omitempty"`
	DurationSeconds *int     `json:"duration_seconds,omitempty"`
}

type JumpTuning struct {
	Window               *int     `json:"window,omitempty"`
	VisibilityFloor      *float64 `json:"visibility_floor,omitempty"`
	NoiseMarginPx        *float64 `json:"noise_margin_px,omitempty"`
	LandingFrames        *int     `json:"landing_frames,omitempty"`
	CalibrationFrames    *int     `json:"calibration_frames,omitempty"`
	StillnessTolerancePx *float64 `json:"stillness_tolerance_px,omitempty"`
}

type MeasureTuning struct {
	VisibilityFloor    *float64 `json:"visibility_floor,omitempty"`
	GoodConfidence     *float64 `json:"good_confidence,omitempty"`
	StabilityThreshold *int     `json:"stability_threshold,omitempty"`
	StableToleranceCm  *float64 `json:"stable_tolerance_cm,omitempty"`
	BufferSize         *int     `json:"buffer_size,omitempty"`
	AutoSave           *bool    `json:"auto_save,omitempty"`
	AutoSaveCooldown   *string  `json:"auto_save_cooldown,omitempty"` // duration string like "3s"
	BMIPrior           *float64 `json:"bmi_prior,omitempty"`
	ShoulderRatio      *float64 `json:"shoulder_ratio,omitempty"`
	MinScale           *float64 `json:"min_scale,omitempty"`
	MaxScale           *float64 `json:"max_scale,omitempty"`
}

type RecorderTuning struct {
	QueueSize   *int    `json:"queue_size,omitempty"`
	SinkTimeout *string `json:"sink_timeout,omitempty"` // duration string like "10s"
}

func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must have
// a .json extension and be at most 1MB. Fields omitted from the file keep
// their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded; intended for
// test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func checkFloor(name string, v *float64) error {
	if v != nil && (*v < 0 || *v > 1) {
		return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
	}
	return nil
}

func checkPositive(name string, v *int) error {
	if v != nil && *v < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", name, *v)
	}
	return nil
}

func checkDuration(name string, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must be non-negative, got %s", name, *v)
	}
	return nil
}

// Validate checks field ranges, then builds every tracker from the merged
// configuration so threshold ordering is checked the same way sessions
// check it.
func (c *TuningConfig) Validate() error {
	var errs []error
	if t := c.Curl; t != nil {
		errs = append(errs,
			checkFloor("dumbbell_curl.visibility_floor", t.VisibilityFloor),
			checkPositive("dumbbell_curl.window", t.Window))
	}
	if t := c.Situp; t != nil {
		errs = append(errs,
			checkFloor("situp.visibility_floor", t.VisibilityFloor),
			checkPositive("situp.window", t.Window))
		if t.DurationSeconds != nil && *t.DurationSeconds < 0 {
			errs = append(errs, fmt.Errorf("situp.duration_seconds must be non-negative, got %d", *t.DurationSeconds))
		}
	}
	if t := c.Jump; t != nil {
		errs = append(errs,
			checkFloor("vertical_jump.visibility_floor", t.VisibilityFloor),
			checkPositive("vertical_jump.window", t.Window),
			checkPositive("vertical_jump.landing_frames", t.LandingFrames),
			checkPositive("vertical_jump.calibration_frames", t.CalibrationFrames))
	}
	if t := c.Measure; t != nil {
		errs = append(errs,
			checkFloor("height_weight.visibility_floor", t.VisibilityFloor),
			checkFloor("height_weight.good_confidence", t.GoodConfidence),
			checkPositive("height_weight.stability_threshold", t.StabilityThreshold),
			checkPositive("height_weight.buffer_size", t.BufferSize),
			checkDuration("height_weight.auto_save_cooldown", t.AutoSaveCooldown))
		if t.MinScale != nil && t.MaxScale != nil && *t.MinScale > *t.MaxScale {
			errs = append(errs, fmt.Errorf("height_weight.min_scale %f exceeds max_scale %f", *t.MinScale, *t.MaxScale))
		}
	}
	if t := c.Recorder; t != nil {
		errs = append(errs,
			checkPositive("recorder.queue_size", t.QueueSize),
			checkDuration("recorder.sink_timeout", t.SinkTimeout))
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	configs := c.Apply(exercise.DefaultConfigs())
	for _, kind := range exercise.Kinds {
		if _, err := exercise.New(kind, configs, exercise.Calibration{}); err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
	}
	return nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// Apply returns base with every non-nil override applied.
func (c *TuningConfig) Apply(base exercise.Configs) exercise.Configs {
	out := base
	if c == nil {
		return out
	}
	if t := c.Curl; t != nil {
		setFloat(&out.Curl.UpAngle, t.UpAngle)
		setFloat(&out.Curl.DownAngle, t.DownAngle)
		setInt(&out.Curl.Window, t.Window)
		setFloat(&out.Curl.VisibilityFloor, t.VisibilityFloor)
	}
	if t := c.Situp; t != nil {
		setFloat(&out.Situp.UpAngle, t.UpAngle)
		setFloat(&out.Situp.DownAngle, t.DownAngle)
		setInt(&out.Situp.Window, t.Window)
		setFloat(&out.Situp.VisibilityFloor, t.VisibilityFloor)
		setInt(&out.Situp.DurationSeconds, t.DurationSeconds)
	}
	if t := c.Jump; t != nil {
		setInt(&out.Jump.Window, t.Window)
		setFloat(&out.Jump.VisibilityFloor, t.VisibilityFloor)
		setFloat(&out.Jump.NoiseMarginPx, t.NoiseMarginPx)
		setInt(&out.Jump.LandingFrames, t.LandingFrames)
		setInt(&out.Jump.CalibrationFrames, t.CalibrationFrames)
		setFloat(&out.Jump.StillnessTolerancePx, t.StillnessTolerancePx)
	}
	if t := c.Measure; t != nil {
		setFloat(&out.Measure.VisibilityFloor, t.VisibilityFloor)
		setFloat(&out.Measure.GoodConfidence, t.GoodConfidence)
		setInt(&out.Measure.StabilityThreshold, t.StabilityThreshold)
		setFloat(&out.Measure.StableToleranceCm, t.StableToleranceCm)
		setInt(&out.Measure.BufferSize, t.BufferSize)
		if t.AutoSave != nil {
			out.Measure.AutoSave = *t.AutoSave
		}
		if t.AutoSaveCooldown != nil && *t.AutoSaveCooldown != "" {
			out.Measure.AutoSaveCooldown = *t.AutoSaveCooldown
		}
		setFloat(&out.Measure.BMIPrior, t.BMIPrior)
		setFloat(&out.Measure.ShoulderRatio, t.ShoulderRatio)
		setFloat(&out.Measure.MinScale, t.MinScale)
		setFloat(&out.Measure.MaxScale, t.MaxScale)
	}
	return out
}

// ExerciseConfigs is Apply over the built-in defaults.
func (c *TuningConfig) ExerciseConfigs() exercise.Configs {
	return c.Apply(exercise.DefaultConfigs())
}

func (c *TuningConfig) GetRecorderQueueSize() int {
	if c == nil || c.Recorder == nil || c.Recorder.QueueSize == nil {
		return 64
	}
	return *c.Recorder.QueueSize
}

func (c *TuningConfig) GetRecorderSinkTimeout() time.Duration {
	if c == nil || c.Recorder == nil || c.Recorder.SinkTimeout == nil || *c.Recorder.SinkTimeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(*c.Recorder.SinkTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
