package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodlist/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers in the playlist service.
// Implementations handle specific endpoints (auth, session operations, playlist creation).
type Handler interface {
	http.Handler               // ServeHTTP handles the HTTP request and writes the response
	Routes() []Route           // Routes returns the method/path patterns this handler serves
}

// Route pairs an HTTP method with a path pattern.
type Route struct {
	Method string
	Path   string
}

// LoggingMiddleware logs each request with its duration.
func LoggingMiddleware(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}

// writeJSON serializes v to the response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps sentinel errors to HTTP statuses and writes a JSON
// error body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrRefreshFailed), errors.Is(err, shared.ErrNoRefreshToken):
		status = http.StatusUnauthorized
	case errors.Is(err, shared.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidStage):
		status = http.StatusConflict
	case errors.Is(err, shared.ErrNoMatches):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrNoSongsSelected),
		errors.Is(err, shared.ErrMissingArgument):
		status = http.StatusBadRequest
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
