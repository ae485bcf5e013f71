package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"restopos/internal/database"
	"restopos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Message: message})
}

// statusForError maps store and service errors onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case database.IsNotFound(err):
		return http.StatusNotFound
	case database.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, database.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSyncDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError hides internal failures behind a generic message; the
// detail only reaches the log.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	statusCode := statusForError(err)
	if statusCode == http.StatusInternalServerError {
		logger.Error().
			Err(err).
			Str("request_id", requestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, statusCode, "internal server error")
		return
	}
	writeError(w, statusCode, err.Error())
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return database.Invalidf("invalid JSON body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, database.Invalidf("invalid %s %q", name, raw)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, database.Invalidf("invalid %s %q", name, raw)
	}
	return v, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, database.Invalidf("invalid %s %q", name, raw)
	}
	return v, nil
}
