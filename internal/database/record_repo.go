package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kdimtricp/repcam/internal/models"
)

const recordColumns = `id, session_id, exercise, user_email, reason, started_at, ended_at,
	duration_seconds, total_count, best_value, details`

type RecordRepository struct {
	db *DB
}

func NewRecordRepository(db *DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Create(ctx context.Context, rec *models.SessionRecord) error {
	query := r.db.rebind(`INSERT INTO session_records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	var details interface{}
	if len(rec.Details) > 0 {
		details = string(rec.Details)
	}

	_, err := r.db.conn.ExecContext(ctx, query,
		rec.ID,
		rec.SessionID,
		rec.Exercise,
		rec.UserEmail,
		string(rec.Reason),
		rec.StartedAt.UTC(),
		rec.EndedAt.UTC(),
		rec.DurationSeconds,
		rec.TotalCount,
		rec.BestValue,
		details,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session record: %w", err)
	}
	return nil
}

func (r *RecordRepository) GetByID(ctx context.Context, id string) (*models.SessionRecord, error) {
	query := r.db.rebind(`SELECT ` + recordColumns + ` FROM session_records WHERE id = ?`)

	rec, err := scanRecord(r.db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session record: %w", err)
	}
	return rec, nil
}

// List returns records newest first.
func (r *RecordRepository) List(ctx context.Context, filter models.RecordFilter) ([]models.SessionRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Exercise != "" {
		where = append(where, "exercise = ?")
		args = append(args, filter.Exercise)
	}
	if filter.UserEmail != "" {
		where = append(where, "user_email = ?")
		args = append(args, filter.UserEmail)
	}

	query := `SELECT ` + recordColumns + ` FROM session_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ended_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.conn.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list session records: %w", err)
	}
	defer rows.Close()

	records := []models.SessionRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.SessionRecord, error) {
	var (
		rec     models.SessionRecord
		reason  string
		details sql.NullString
	)
	err := row.Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.Exercise,
		&rec.UserEmail,
		&reason,
		&rec.StartedAt,
		&rec.EndedAt,
		&rec.DurationSeconds,
		&rec.TotalCount,
		&rec.BestValue,
		&details,
	)
	if err != nil {
		return nil, err
	}
	rec.Reason = models.EndReason(reason)
	if details.Valid && details.String != "" {
		rec.Details = []byte(details.String)
	}
	return &rec, nil
}
