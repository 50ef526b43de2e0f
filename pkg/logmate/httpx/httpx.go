// Package httpx holds the small JSON helpers shared by logmate's HTTP
// handlers and client.
package httpx

import (
	"errors"
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
	zlog "github.com/rs/zerolog/log"

	"pkg.jsn.cam/logmate/pkg/logmate/protocol"
)

// HandlerFunc is a function that handles HTTP requests and may return an error
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// StatusError carries the HTTP status a handler error should be reported with.
type StatusError struct {
	Status int
	Msg    string
}

func (e *StatusError) Error() string {
	return e.Msg
}

// Errorf returns a *StatusError with a formatted message.
func Errorf(status int, format string, args ...any) error {
	return &StatusError{Status: status, Msg: fmt.Sprintf(format, args...)}
}

// Wrap converts a HandlerFunc to an http.HandlerFunc. A *StatusError is
// written with its status; any other error becomes a 500.
func Wrap(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		var se *StatusError
		if errors.As(err, &se) {
			Error(w, se.Status, se.Msg)
			return
		}

		zlog.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		Error(w, http.StatusInternalServerError, err.Error())
	}
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error response with the given status code and message
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, protocol.ErrorResponse{Error: msg})
}

// Decode reads a JSON error body from resp, falling back to the status text.
func Decode(resp *http.Response) error {
	var body protocol.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body.Error)
}
