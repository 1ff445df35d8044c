package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/smith3v/study-tracker/pkg/auth"
	"github.com/smith3v/study-tracker/pkg/battle"
	"github.com/smith3v/study-tracker/pkg/db"
	"github.com/smith3v/study-tracker/pkg/flashcards"
	"github.com/smith3v/study-tracker/pkg/logger"
	"github.com/smith3v/study-tracker/pkg/scoring"
)

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps store and validation errors to HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, flashcards.ErrInvalidFlashcard),
		errors.Is(err, scoring.ErrInvalidSession):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, battle.ErrNoFlashcards):
		status, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, battle.ErrNoBattle):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, db.ErrNotAuthenticated):
		status, message = http.StatusUnauthorized, "not authenticated"
	case errors.Is(err, db.ErrRecordNotFound):
		status, message = http.StatusNotFound, "not found"
	case errors.Is(err, db.ErrConflict):
		status, message = http.StatusConflict, "conflicting update, please retry"
	case errors.Is(err, db.ErrStoreUnavailable):
		status, message = http.StatusServiceUnavailable, "store unavailable"
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// credentials returns the caller or writes a 401.
func credentials(w http.ResponseWriter, r *http.Request) (auth.Credentials, bool) {
	creds, err := auth.FromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return auth.Credentials{}, false
	}
	return creds, true
}

// intQuery reads a positive integer query parameter capped at max.
func intQuery(r *http.Request, name string, fallback, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", errBadRequest, name)
	}
	if value > max {
		value = max
	}
	return value, nil
}

func errMissingField(name string) error {
	return fmt.Errorf("%w: %s is required", errBadRequest, name)
}
