package session

import (
	"errors"
	"log"
	"time"

	"github.com/kdimtricp/repcam/internal/exercise"
	"github.com/kdimtricp/repcam/internal/models"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseActive    Phase = "active"
	PhaseCompleted Phase = "completed"
)

var (
	ErrAlreadyActive = errors.New("session already active")
	ErrNotActive     = errors.New("session not active")
	ErrNotFound      = errors.New("session not found")
	ErrUnsupported   = errors.New("operation not supported for this exercise")
)

// Logf is the package logger. Tests may replace it.
var Logf = log.Printf

// Publisher receives finalized records and saved measurements. Calls happen
// outside the session lock and must not block.
type Publisher interface {
	PublishRecord(rec *models.SessionRecord)
	PublishMeasurement(m *models.Measurement)
}

type nopPublisher struct{}

func (nopPublisher) PublishRecord(*models.SessionRecord)    {}
func (nopPublisher) PublishMeasurement(*models.Measurement) {}

type Lifecycle struct {
	Phase            Phase      `json:"phase"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	DurationSeconds  int        `json:"duration_seconds,omitempty"`
	ElapsedSeconds   float64    `json:"elapsed_seconds"`
	RemainingSeconds *float64   `json:"remaining_seconds,omitempty"`
}

// Snapshot is a point-in-time copy of a session. It shares no memory with
// the session that produced it.
type Snapshot struct {
	SessionID string         `json:"session_id"`
	Exercise  exercise.Kind  `json:"exercise"`
	UserEmail string         `json:"user_email,omitempty"`
	Lifecycle Lifecycle      `json:"lifecycle"`
	Frames    int            `json:"frames"`
	Stats     exercise.Stats `json:"stats"`
	RecordID  string         `json:"record_id,omitempty"`
}
