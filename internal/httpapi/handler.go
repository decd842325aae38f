// Package httpapi exposes the sort operation over HTTP for direct
// invocation. POST /sort accepts either payload shape
// ({"key": "..."} or an S3 notification) and answers with the same
// {statusCode, body} document the Lambda returns, using statusCode as the
// HTTP status.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/line-sort/internal/linesort"
)

// maxBodySize caps the request payload. Invocation payloads are a few
// hundred bytes; the file content never travels through this endpoint.
const maxBodySize = 64 << 10

// Invoker handles one raw invocation payload.
type Invoker interface {
	Handle(ctx context.Context, payload []byte) linesort.Response
}

// Option configures the handler returned by NewHandler.
type Option func(*options)

type options struct {
	metrics *requestMetrics
}

// NewHandler returns the HTTP routes backed by inv.
func NewHandler(inv Invoker, opts ...Option) http.Handler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/sort", func(w http.ResponseWriter, r *http.Request) {
		handleSort(w, r, inv)
	})
	mux.HandleFunc("/healthz", handleHealth)
	if o.metrics != nil {
		mux.Handle("/metrics", o.metrics.handler)
	}
	return withRequestLogging(mux, o.metrics)
}

func handleSort(w http.ResponseWriter, r *http.Request, inv Invoker) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		httpError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(body) > maxBodySize {
		httpError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	resp := inv.Handle(r.Context(), body)
	respondJSON(w, resp.StatusCode, resp)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to encode JSON response")
	}
}

func httpError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func withRequestLogging(next http.Handler, m *requestMetrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sr, r)
		m.observe(r.URL.Path, sr.statusCode, time.Since(start))

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sr.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
