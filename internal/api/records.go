package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kdimtricp/repcam/internal/benchmark"
	"github.com/kdimtricp/repcam/internal/models"
)

const maxListLimit = 500

func unavailable(w http.ResponseWriter, what string) {
	WriteJSONError(w, http.StatusServiceUnavailable, what+" not configured")
}

func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, true
}

func (app *App) ListRecordsHandler(w http.ResponseWriter, r *http.Request) {
	if app.Records == nil {
		unavailable(w, "record store")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		BadRequest(w, "limit must be a non-negative integer")
		return
	}

	q := r.URL.Query()
	records, err := app.Records.List(r.Context(), models.RecordFilter{
		Exercise:  q.Get("exercise"),
		UserEmail: q.Get("user"),
		Limit:     limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, records)
}

func (app *App) GetRecordHandler(w http.ResponseWriter, r *http.Request) {
	if app.Records == nil {
		unavailable(w, "record store")
		return
	}
	rec, err := app.Records.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, rec)
}

func (app *App) ListMeasurementsHandler(w http.ResponseWriter, r *http.Request) {
	if app.Measurements == nil {
		unavailable(w, "measurement store")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		BadRequest(w, "limit must be a non-negative integer")
		return
	}

	q := r.URL.Query()
	var (
		measurements []models.Measurement
		err          error
	)
	switch {
	case q.Get("session") != "":
		measurements, err = app.Measurements.ListBySession(r.Context(), q.Get("session"))
	case q.Get("user") != "":
		measurements, err = app.Measurements.ListByUser(r.Context(), q.Get("user"), limit)
	default:
		BadRequest(w, "session or user is required")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, measurements)
}

func (app *App) ListResultsHandler(w http.ResponseWriter, r *http.Request) {
	if app.Storage == nil {
		unavailable(w, "result archive")
		return
	}
	files, err := app.Storage.ListFiles()
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, files)
}

func (app *App) DownloadResultHandler(w http.ResponseWriter, r *http.Request) {
	if app.Storage == nil {
		unavailable(w, "result archive")
		return
	}
	name := chi.URLParam(r, "name")

	file, err := app.Storage.OpenFile(name)
	if err != nil {
		writeError(w, err)
		return
	}
	defer file.Close()

	stat, err := file.(interface{ Stat() (os.FileInfo, error) }).Stat()
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	http.ServeContent(w, r, name, stat.ModTime(), file)
}

func (app *App) DeleteResultHandler(w http.ResponseWriter, r *http.Request) {
	if app.Storage == nil {
		unavailable(w, "result archive")
		return
	}
	if err := app.Storage.DeleteFile(chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryFloat(r *http.Request, key string) (float64, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil
}

// BenchmarksHandler matches a profile against the athlete table. When
// height or weight is missing and a user is given, the user's latest saved
// measurement fills them in.
func (app *App) BenchmarksHandler(w http.ResponseWriter, r *http.Request) {
	if app.Benchmarks == nil {
		unavailable(w, "athlete dataset")
		return
	}

	var profile benchmark.Profile
	for key, dst := range map[string]*float64{
		"height": &profile.HeightCm,
		"weight": &profile.WeightKg,
		"age":    &profile.Age,
	} {
		v, ok := queryFloat(r, key)
		if !ok {
			BadRequest(w, key+" must be a number")
			return
		}
		*dst = v
	}
	profile.Gender = r.URL.Query().Get("gender")

	user := r.URL.Query().Get("user")
	if (profile.HeightCm <= 0 || profile.WeightKg <= 0) && user != "" && app.Measurements != nil {
		latest, err := app.Measurements.ListByUser(r.Context(), user, 1)
		if err != nil {
			writeError(w, err)
			return
		}
		if len(latest) > 0 {
			if profile.HeightCm <= 0 {
				profile.HeightCm = latest[0].HeightCm
			}
			if profile.WeightKg <= 0 {
				profile.WeightKg = latest[0].WeightKg
			}
		}
	}

	targets, err := app.Benchmarks.Targets(profile)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, targets)
}
