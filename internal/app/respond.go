package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// httpError is an error with the status and message a handler wants the
// client to see. Anything else becomes a 500.
type httpError struct {
	Status  int
	Message string
	Err     error
}

func (e *httpError) Error() string { return e.Message + ": " + e.Err.Error() }

func (e *httpError) Unwrap() error { return e.Err }

// handlerFunc is an http.HandlerFunc that may fail.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

type errorHandler struct {
	fn      handlerFunc
	message string
	log     *zap.Logger
}

// withErrors adapts fn; message titles the 500 body for unexpected errors.
func withErrors(log *zap.Logger, message string, fn handlerFunc) http.Handler {
	return errorHandler{fn: fn, message: message, log: log}
}

func (h errorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h.fn(w, r)
	if err == nil {
		return
	}
	var he *httpError
	if errors.As(err, &he) {
		writeJSON(w, he.Status, map[string]any{"error": he.Message, "details": he.Err.Error()})
		return
	}
	h.log.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": h.message, "details": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func millis(t time.Time) int64 { return t.UnixMilli() }
