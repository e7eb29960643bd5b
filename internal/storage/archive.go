package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kdimtricp/repcam/internal/models"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ResultArchive writes finalized records and saved measurements as
// standalone JSON result files.
type ResultArchive struct {
	store Storage
}

func NewResultArchive(store Storage) *ResultArchive {
	return &ResultArchive{store: store}
}

func (a *ResultArchive) Name() string { return "archive" }

func safeName(s string) string {
	s = strings.ReplaceAll(s, "@", "_at_")
	s = unsafeChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "anonymous"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RecordFilename is <exercise>_result_<user>_<timestamp>_<id>.json.
func RecordFilename(rec *models.SessionRecord) string {
	return fmt.Sprintf("%s_result_%s_%s_%s.json",
		safeName(rec.Exercise), safeName(rec.UserEmail), rec.EndedAt.UTC().Format("20060102_150405"), shortID(rec.ID))
}

func MeasurementFilename(m *models.Measurement) string {
	return fmt.Sprintf("height_weight_measurement_%s_%s_%s.json",
		safeName(m.UserEmail), m.RecordedAt.UTC().Format("20060102_150405"), shortID(m.ID))
}

type recordFile struct {
	*models.SessionRecord
	ArchivedAt time.Time `json:"archived_at"`
}

type measurementFile struct {
	*models.Measurement
	ArchivedAt time.Time `json:"archived_at"`
}

func (a *ResultArchive) SaveRecord(_ context.Context, rec *models.SessionRecord) error {
	_, err := a.write(RecordFilename(rec), recordFile{SessionRecord: rec, ArchivedAt: time.Now().UTC()})
	return err
}

func (a *ResultArchive) SaveMeasurement(_ context.Context, m *models.Measurement) error {
	_, err := a.write(MeasurementFilename(m), measurementFile{Measurement: m, ArchivedAt: time.Now().UTC()})
	return err
}

func (a *ResultArchive) write(name string, v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return a.store.SaveFile(bytes.NewReader(data), FileInfo{
		Filename:    name,
		ContentType: "application/json",
		Size:        int64(len(data)),
	})
}
