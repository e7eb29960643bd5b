package database

import (
	"context"
	"fmt"

	"github.com/kdimtricp/repcam/internal/models"
)

const measurementColumns = `id, session_id, user_email, height_cm, weight_kg, bmi, confidence,
	uncertainty_height, uncertainty_weight, detection_status, auto_saved, recorded_at`

type MeasurementRepository struct {
	db *DB
}

func NewMeasurementRepository(db *DB) *MeasurementRepository {
	return &MeasurementRepository{db: db}
}

func (r *MeasurementRepository) Create(ctx context.Context, m *models.Measurement) error {
	query := r.db.rebind(`INSERT INTO measurements (` + measurementColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.conn.ExecContext(ctx, query,
		m.ID,
		m.SessionID,
		m.UserEmail,
		m.HeightCm,
		m.WeightKg,
		m.BMI,
		m.Confidence,
		m.UncertaintyHeight,
		m.UncertaintyWeight,
		m.DetectionStatus,
		m.AutoSaved,
		m.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert measurement: %w", err)
	}
	return nil
}

// ListBySession returns a session's measurements in the order they were taken.
func (r *MeasurementRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Measurement, error) {
	query := r.db.rebind(`SELECT ` + measurementColumns + ` FROM measurements
		WHERE session_id = ? ORDER BY recorded_at ASC`)
	return r.query(ctx, query, sessionID)
}

// ListByUser returns a user's most recent measurements first.
func (r *MeasurementRepository) ListByUser(ctx context.Context, userEmail string, limit int) ([]models.Measurement, error) {
	if limit <= 0 {
		limit = 100
	}
	query := r.db.rebind(`SELECT ` + measurementColumns + ` FROM measurements
		WHERE user_email = ? ORDER BY recorded_at DESC LIMIT ?`)
	return r.query(ctx, query, userEmail, limit)
}

func (r *MeasurementRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.Measurement, error) {
	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	measurements := []models.Measurement{}
	for rows.Next() {
		var m models.Measurement
		if err := rows.Scan(
			&m.ID,
			&m.SessionID,
			&m.UserEmail,
			&m.HeightCm,
			&m.WeightKg,
			&m.BMI,
			&m.Confidence,
			&m.UncertaintyHeight,
			&m.UncertaintyWeight,
			&m.DetectionStatus,
			&m.AutoSaved,
			&m.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		measurements = append(measurements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate measurements: %w", err)
	}
	return measurements, nil
}
