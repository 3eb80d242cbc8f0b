// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/pdiddy/aiwrite/internal/store"
	"github.com/pdiddy/aiwrite/internal/workflow"
)

// maxBody bounds request bodies; manuscripts are plain text.
const maxBody = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}

type errResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func writeStatus(w http.ResponseWriter, status string) {
	writeJSON(w, http.StatusOK, statusResponse{Status: status})
}

// writeError maps err onto an HTTP status and an {"error": ...} body.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	var verr validation.Errors
	switch {
	case errors.As(err, &verr), errors.Is(err, workflow.ErrInvalidInput), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrGeneration), errors.Is(err, workflow.ErrRetrieval):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errResponse{Error: err.Error()})
}

var errBadRequest = errors.New("bad request")

// decode reads a JSON body into v and validates it when v implements
// validation.Validatable.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	if val, ok := v.(validation.Validatable); ok {
		return val.Validate()
	}
	return nil
}
