package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/incidentflow/internal/metrics"
	"github.com/BaSui01/incidentflow/triage"
	"github.com/BaSui01/incidentflow/workflow"
)

// runTimeout bounds a background start/resume so a stuck collaborator
// call cannot pin a goroutine forever.
const runTimeout = 5 * time.Minute

const indexHTML = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Incident Reporter</title></head>
<body>
<h1>Report an Issue</h1>
<form id="reportForm">
<textarea id="report" name="report" required></textarea>
<button type="submit">Submit</button>
</form>
<div id="result"></div>
<script>
document.addEventListener('DOMContentLoaded', () => {
const form = document.getElementById('reportForm');
const result = document.getElementById('result');
form.addEventListener('submit', async (e) => {
e.preventDefault();
const report = document.getElementById('report').value.trim();
if (!report) return;
result.textContent = "Submitting...";
const res = await fetch('/api/report', {
method: 'POST',
headers: {'Content-Type': 'application/json'},
body: JSON.stringify({ report }),
});
const data = await res.json();
result.textContent = JSON.stringify(data);
});
});
</script>
</body>
</html>`

// ReportHandler serves report submission and run status.
type ReportHandler struct {
	engine  *workflow.Engine
	metrics *metrics.Collector
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewReportHandler creates the report handler.
func NewReportHandler(engine *workflow.Engine, collector *metrics.Collector, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{
		engine:  engine,
		metrics: collector,
		logger:  logger.With(zap.String("component", "report_handler")),
	}
}

// Register mounts the routes on mux.
func (h *ReportHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("POST /api/report", h.SubmitReport)
	mux.HandleFunc("GET /api/status/{runId}", h.Status)
}

// Index serves the report submission page.
func (h *ReportHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

type submitRequest struct {
	Report string `json:"report"`
}

type submitResponse struct {
	OK    bool   `json:"ok"`
	RunID string `json:"run_id"`
}

// SubmitReport starts a triage run on a background task and returns the
// run identifier immediately; clients poll Status for progress.
func (h *ReportHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	report, err := readReport(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(report) == "" {
		writeError(w, workflow.NewError(workflow.CodeInvalidInput, "report cannot be empty"))
		return
	}

	runID := "web-" + uuid.NewString()[:8]
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		if _, err := h.engine.Start(ctx, runID, workflow.State{triage.FieldReport: report}); err != nil {
			h.logger.Error("run failed", zap.String("run_id", runID), zap.Error(err))
			if h.metrics != nil {
				h.metrics.RecordRunFailure("start")
			}
			return
		}
		if h.metrics != nil {
			h.metrics.RecordRunStarted()
		}
	}()

	writeJSON(w, http.StatusAccepted, submitResponse{OK: true, RunID: runID})
}

// Status serves the current projected run state.
func (h *ReportHandler) Status(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")
	state, err := h.engine.GetState(r.Context(), runID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, triage.NewStatusView(runID, state))
}

// Wait blocks until all background runs have finished; called during
// shutdown.
func (h *ReportHandler) Wait() {
	h.wg.Wait()
}

// readReport accepts the report as JSON or a form field.
func readReport(r *http.Request) (string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var req submitRequest
		if err := decodeJSONBody(r, &req); err != nil {
			return "", err
		}
		return req.Report, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", workflow.NewError(workflow.CodeInvalidInput, "malformed form body").WithCause(err)
	}
	return r.PostFormValue("report"), nil
}

func decodeJSONBody(r *http.Request, target any) error {
	dec := newLimitedDecoder(r)
	if err := dec.Decode(target); err != nil {
		return workflow.NewError(workflow.CodeInvalidInput, "malformed JSON body").WithCause(err)
	}
	return nil
}
