// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the manuscript workflow over a JSON HTTP API.
// Each client keeps its own engine state, keyed by the X-Session-ID header.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pdiddy/aiwrite/internal/session"
)

// SessionHeader carries the session id in both directions.
const SessionHeader = "X-Session-ID"

type sessionKey struct{}

// SessionMiddleware reads the session id from the request, minting a new
// one when absent, and echoes it on the response.
func SessionMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionHeader)
			if id == "" {
				id = session.NewID()
			}
			w.Header().Set(SessionHeader, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
		})
	}
}

// sessionID returns the id stored by SessionMiddleware.
func sessionID(r *http.Request) string {
	id, _ := r.Context().Value(sessionKey{}).(string)
	return id
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LogMiddleware logs one line per request at debug level.
func LogMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}
