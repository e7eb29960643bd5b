package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kdimtricp/repcam/internal/benchmark"
	"github.com/kdimtricp/repcam/internal/database"
	"github.com/kdimtricp/repcam/internal/exercise"
	"github.com/kdimtricp/repcam/internal/pose"
	"github.com/kdimtricp/repcam/internal/session"
	"github.com/kdimtricp/repcam/internal/storage"
)

const defaultMaxFrameSize = 1 << 20

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

// App carries the handler dependencies. Records, Measurements, Storage and
// Benchmarks are optional; their endpoints answer 503 when unset.
type App struct {
	Sessions     *session.Manager
	Records      *database.RecordRepository
	Measurements *database.MeasurementRepository
	Storage      storage.Storage
	Benchmarks   *benchmark.Table
	MaxFrameSize int64
}

type createSessionRequest struct {
	Exercise        string               `json:"exercise"`
	UserEmail       string               `json:"user_email"`
	DurationSeconds int                  `json:"duration_seconds"`
	Calibration     exercise.Calibration `json:"calibration"`
}

func (app *App) maxFrameSize() int64 {
	if app.MaxFrameSize > 0 {
		return app.MaxFrameSize
	}
	return defaultMaxFrameSize
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// sessionFromRequest resolves the {id} URL parameter, writing a 404 when the
// session does not exist.
func (app *App) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := app.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return s, true
}

func (app *App) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeJSON(w, r, app.maxFrameSize(), &req) {
		return
	}

	kind, err := exercise.ParseKind(strings.TrimSpace(req.Exercise))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	if err := req.Calibration.Validate(); err != nil {
		BadRequest(w, err.Error())
		return
	}

	s, err := app.Sessions.Create(session.CreateRequest{
		Exercise:        kind,
		UserEmail:       strings.TrimSpace(req.UserEmail),
		DurationSeconds: req.DurationSeconds,
		Calibration:     req.Calibration,
	})
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, s.Snapshot())
}

func (app *App) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions := app.Sessions.List()
	snaps := make([]session.Snapshot, 0, len(sessions))
	for _, s := range sessions {
		snaps = append(snaps, s.Snapshot())
	}
	WriteJSONOK(w, snaps)
}

func (app *App) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := app.sessionFromRequest(w, r)
	if !ok {
		return
	}
	WriteJSONOK(w, s.Snapshot())
}

func (app *App) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.Sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := app.sessionFromRequest(w, r)
	if !ok {
		return
	}
	snap, err := s.Start()
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, snap)
}

func (app *App) StopSessionHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := app.sessionFromRequest(w, r)
	if !ok {
		return
	}
	rec, err := s.Stop()
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, rec)
}

func (app *App) ResetSessionHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := app.sessionFromRequest(w, r)
	if !ok {
		return
	}
	WriteJSONOK(w, s.Reset())
}

func (app *App) StatusHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := app.sessionFromRequest(w, r)
	if !ok {
		return
	}
	WriteJSONOK(w, s.Status())
}

func (app *App) FrameHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := app.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req pose.FrameMessage
	if !decodeJSON(w, r, app.maxFrameSize(), &req) {
		return
	}

	snap, err := s.ProcessFrame(req.Frame())
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, snap)
}

func (app *App) CalibrationHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := app.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var cal exercise.Calibration
	if !decodeJSON(w, r, app.maxFrameSize(), &cal) {
		return
	}
	if err := cal.Validate(); err != nil {
		BadRequest(w, err.Error())
		return
	}

	snap, err := s.Calibrate(cal)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, snap)
}

func (app *App) SaveMeasurementHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := app.sessionFromRequest(w, r)
	if !ok {
		return
	}
	m, err := s.SaveMeasurement()
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, m)
}

func (app *App) ToggleAutoSaveHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := app.sessionFromRequest(w, r)
	if !ok {
		return
	}
	enabled, err := s.ToggleAutoSave()
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, map[string]bool{"auto_save": enabled})
}

func (app *App) EstimateHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := app.sessionFromRequest(w, r)
	if !ok {
		return
	}
	est, err := s.FinalEstimate()
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, est)
}
