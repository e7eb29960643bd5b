package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/kdimtricp/repcam/internal/benchmark"
	"github.com/kdimtricp/repcam/internal/database"
	"github.com/kdimtricp/repcam/internal/exercise"
	"github.com/kdimtricp/repcam/internal/session"
	"github.com/kdimtricp/repcam/internal/storage"
)

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] failed to encode json response: %v", err)
	}
}

func WriteJSONOK(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, data)
}

func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusBadRequest, msg)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, database.ErrNotFound),
		errors.Is(err, storage.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrAlreadyActive),
		errors.Is(err, session.ErrNotActive):
		return http.StatusConflict
	case errors.Is(err, session.ErrUnsupported),
		errors.Is(err, exercise.ErrNotCalibratable),
		errors.Is(err, exercise.ErrNoMeasurement):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrInvalidPath),
		errors.Is(err, benchmark.ErrIncompleteProfile):
		return http.StatusBadRequest
	case errors.Is(err, benchmark.ErrNoAthletes):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[API] %v", err)
	}
	WriteJSONError(w, status, err.Error())
}
