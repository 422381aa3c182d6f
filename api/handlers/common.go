// Package handlers implements the HTTP surface: report submission, run
// status, and the Slack actions webhook that resumes suspended runs.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/BaSui01/incidentflow/internal/metrics"
	"github.com/BaSui01/incidentflow/workflow"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps engine error codes onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := ""

	var engineErr *workflow.Error
	if errors.As(err, &engineErr) {
		code = string(engineErr.Code)
		switch engineErr.Code {
		case workflow.CodeInvalidInput:
			status = http.StatusBadRequest
		case workflow.CodeUnknownRun:
			status = http.StatusNotFound
		case workflow.CodeDuplicateRun, workflow.CodeInvalidTransition:
			status = http.StatusConflict
		case workflow.CodeConcurrentResume:
			status = http.StatusTooManyRequests
		case workflow.CodeStoreUnavailable:
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

// maxBodyBytes bounds inbound request bodies.
const maxBodyBytes = 1 << 20

// newLimitedDecoder decodes a request body with a size cap.
func newLimitedDecoder(r *http.Request) *json.Decoder {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// WithMetrics wraps a handler with request counting and latency
// observation.
func WithMetrics(next http.Handler, collector *metrics.Collector) http.Handler {
	if collector == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		collector.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status), time.Since(started))
	})
}
