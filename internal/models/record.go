package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EndReason string

const (
	ReasonManual  EndReason = "manual"
	ReasonTimeout EndReason = "timeout"
)

// SessionRecord is emitted once per completed session.
type SessionRecord struct {
	ID              string          `json:"id"`
	SessionID       string          `json:"session_id"`
	Exercise        string          `json:"exercise"`
	UserEmail       string          `json:"user_email"`
	Reason          EndReason       `json:"reason"`
	StartedAt       time.Time       `json:"started_at"`
	EndedAt         time.Time       `json:"ended_at"`
	DurationSeconds float64         `json:"duration_seconds"`
	TotalCount      int             `json:"total_count"`
	BestValue       float64         `json:"best_value"`
	Details         json.RawMessage `json:"details,omitempty"`
}

func NewSessionRecord(sessionID, exercise, userEmail string, reason EndReason, startedAt, endedAt time.Time) *SessionRecord {
	return &SessionRecord{
		ID:              uuid.New().String(),
		SessionID:       sessionID,
		Exercise:        exercise,
		UserEmail:       userEmail,
		Reason:          reason,
		StartedAt:       startedAt,
		EndedAt:         endedAt,
		DurationSeconds: endedAt.Sub(startedAt).Seconds(),
	}
}

// Measurement is one saved height/weight sample.
type Measurement struct {
	ID                string    `json:"id"`
	SessionID         string    `json:"session_id"`
	UserEmail         string    `json:"user_email"`
	HeightCm          float64   `json:"height_cm"`
	WeightKg          float64   `json:"weight_kg"`
	BMI               float64   `json:"bmi"`
	Confidence        float64   `json:"confidence"`
	UncertaintyHeight float64   `json:"uncertainty_height"`
	UncertaintyWeight float64   `json:"uncertainty_weight"`
	DetectionStatus   string    `json:"detection_status"`
	AutoSaved         bool      `json:"auto_saved"`
	RecordedAt        time.Time `json:"recorded_at"`
}

func NewMeasurement(sessionID, userEmail string, recordedAt time.Time) *Measurement {
	return &Measurement{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		UserEmail:  userEmail,
		RecordedAt: recordedAt,
	}
}

// RecordFilter narrows a record listing. Empty fields match everything.
type RecordFilter struct {
	Exercise  string
	UserEmail string
	Limit     int
}
