package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kdimtricp/repcam/internal/benchmark"
	"github.com/kdimtricp/repcam/internal/database"
	"github.com/kdimtricp/repcam/internal/exercise"
	"github.com/kdimtricp/repcam/internal/pose"
	"github.com/kdimtricp/repcam/internal/recorder"
	"github.com/kdimtricp/repcam/internal/session"
	"github.com/kdimtricp/repcam/internal/storage"
	"github.com/kdimtricp/repcam/internal/timeutil"
)

const testAthletes = `Height_cm,Weight_kg,Age,Gender,Situps_per_min,Vertical_Jump_cm,Dumbbell_Curl_per_min
170,65,22,Female,38,45,18
182,80,25,Male,48,62,24
`

type testEnv struct {
	app    *App
	router http.Handler
	db     *database.DB
	store  storage.Storage
	clock  *timeutil.MockClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewDB(database.Config{Type: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "api.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.MigrateUp())

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rec := recorder.New(recorder.Config{}, recorder.NewDatabaseSink(db), storage.NewResultArchive(store))
	rec.Start(context.Background())
	t.Cleanup(func() { rec.Close(context.Background()) })

	table, err := benchmark.Load(strings.NewReader(testAthletes))
	require.NoError(t, err)

	cfg := exercise.DefaultConfigs()
	cfg.Measure.StabilityThreshold = 3
	clock := timeutil.NewMockClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	manager := session.NewManager(session.ManagerConfig{Configs: cfg, Clock: clock, Publisher: rec})
	t.Cleanup(manager.Shutdown)

	app := &App{
		Sessions:     manager,
		Records:      database.NewRecordRepository(db),
		Measurements: database.NewMeasurementRepository(db),
		Storage:      store,
		Benchmarks:   table,
	}
	return &testEnv{app: app, router: NewRouter(app), db: db, store: store, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (e *testEnv) createSession(t *testing.T, body map[string]interface{}) session.Snapshot {
	t.Helper()
	w := e.do(t, http.MethodPost, "/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var snap session.Snapshot
	decode(t, w, &snap)
	return snap
}

// curlFrame bends both elbows to deg.
func curlFrame(deg float64) pose.Frame {
	f := pose.NewFrame(1000, 1000)
	rad := deg * math.Pi / 180
	for _, side := range []struct {
		shoulder, elbow, wrist pose.Joint
		x                      float64
	}{
		{pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, 0.3},
		{pose.RightShoulder, pose.RightElbow, pose.RightWrist, 0.7},
	} {
		f.Landmarks[side.shoulder] = pose.Landmark{X: side.x, Y: 0.3, Visibility: 0.9}
		f.Landmarks[side.elbow] = pose.Landmark{X: side.x, Y: 0.5, Visibility: 0.9}
		f.Landmarks[side.wrist] = pose.Landmark{X: side.x + 0.2*math.Sin(rad), Y: 0.5 - 0.2*math.Cos(rad), Visibility: 0.9}
	}
	return f
}

func standingFrame() pose.Frame {
	f := pose.NewFrame(1000, 1000)
	lm := func(x, y float64) pose.Landmark { return pose.Landmark{X: x, Y: y, Visibility: 0.9} }
	f.Landmarks[pose.Nose] = lm(0.5, 0.1)
	f.Landmarks[pose.LeftShoulder] = lm(0.4, 0.2)
	f.Landmarks[pose.RightShoulder] = lm(0.6, 0.2)
	f.Landmarks[pose.LeftHip] = lm(0.45, 0.5)
	f.Landmarks[pose.RightHip] = lm(0.55, 0.5)
	f.Landmarks[pose.LeftHeel] = lm(0.45, 0.9)
	f.Landmarks[pose.RightHeel] = lm(0.55, 0.9)
	return f
}
