package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", app.CreateSessionHandler)
		r.Get("/", app.ListSessionsHandler)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetSessionHandler)
			r.Delete("/", app.DeleteSessionHandler)

			r.Post("/start", app.StartSessionHandler)
			r.Post("/stop", app.StopSessionHandler)
			r.Post("/reset", app.ResetSessionHandler)

			r.Get("/stats", app.GetSessionHandler)
			r.Get("/status", app.StatusHandler)
			r.Get("/events", app.EventsHandler)

			r.Post("/frames", app.FrameHandler)
			r.Get("/ws", app.FramesSocketHandler)

			r.Post("/calibration", app.CalibrationHandler)
			r.Post("/measurements", app.SaveMeasurementHandler)
			r.Post("/autosave", app.ToggleAutoSaveHandler)
			r.Get("/estimate", app.EstimateHandler)
		})
	})

	r.Get("/records", app.ListRecordsHandler)
	r.Get("/records/{id}", app.GetRecordHandler)
	r.Get("/measurements", app.ListMeasurementsHandler)

	r.Get("/results", app.ListResultsHandler)
	r.Get("/results/{name}", app.DownloadResultHandler)
	r.Delete("/results/{name}", app.DeleteResultHandler)

	r.Get("/benchmarks", app.BenchmarksHandler)

	return r
}
