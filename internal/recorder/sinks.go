package recorder

import (
	"context"

	"github.com/kdimtricp/repcam/internal/database"
	"github.com/kdimtricp/repcam/internal/models"
)

// DatabaseSink writes to the session_records and measurements tables.
type DatabaseSink struct {
	records      *database.RecordRepository
	measurements *database.MeasurementRepository
}

func NewDatabaseSink(db *database.DB) *DatabaseSink {
	return &DatabaseSink{
		records:      database.NewRecordRepository(db),
		measurements: database.NewMeasurementRepository(db),
	}
}

func (s *DatabaseSink) Name() string { return "database" }

func (s *DatabaseSink) SaveRecord(ctx context.Context, rec *models.SessionRecord) error {
	return s.records.Create(ctx, rec)
}

func (s *DatabaseSink) SaveMeasurement(ctx context.Context, m *models.Measurement) error {
	return s.measurements.Create(ctx, m)
}
