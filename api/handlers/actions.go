package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/incidentflow/internal/metrics"
	"github.com/BaSui01/incidentflow/slack"
	"github.com/BaSui01/incidentflow/triage"
)

// MessageUpdater is the slice of the Slack client the actions handler
// needs to exhaust a clicked control.
type MessageUpdater interface {
	UpdateMessage(ctx context.Context, channel, ts, text string) error
}

// ActionsHandler receives Slack interactive-action callbacks, verifies
// them, and resumes the suspended run with the chosen severity.
type ActionsHandler struct {
	verifier *slack.SignatureVerifier
	updater  MessageUpdater
	trigger  *triage.ResumeTrigger
	metrics  *metrics.Collector
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewActionsHandler creates the actions handler.
func NewActionsHandler(verifier *slack.SignatureVerifier, updater MessageUpdater, trigger *triage.ResumeTrigger, collector *metrics.Collector, logger *zap.Logger) *ActionsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActionsHandler{
		verifier: verifier,
		updater:  updater,
		trigger:  trigger,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "actions_handler")),
	}
}

// Register mounts the webhook route on mux.
func (h *ActionsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /slack/actions", h.HandleAction)
}

// HandleAction processes one button click. The originating message is
// updated to an exhausted state before the run resumes, which is the
// de-duplication contract the resume trigger relies on; the resume itself
// happens on a background task so Slack gets its ack within its deadline.
func (h *ActionsHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read body"})
		return
	}

	if err := h.verifier.VerifyRequest(r, body); err != nil {
		h.logger.Warn("rejected unsigned action", zap.Error(err))
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "invalid signature"})
		return
	}

	payload, err := slack.ParseActionPayload(body)
	if err != nil {
		h.logger.Warn("malformed action payload", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed payload"})
		return
	}

	level := triage.Severity(payload.Value.Level)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		if h.updater != nil {
			text := fmt.Sprintf("Triage set to %s by <@%s>", level, payload.UserID)
			if err := h.updater.UpdateMessage(ctx, payload.Channel, payload.TS, text); err != nil {
				h.logger.Warn("failed to update source message", zap.Error(err))
			}
		}

		if _, err := h.trigger.ApplyDecision(ctx, payload.Value.RunID, level, payload.UserID); err != nil {
			h.logger.Error("resume failed",
				zap.String("run_id", payload.Value.RunID),
				zap.Error(err))
			if h.metrics != nil {
				h.metrics.RecordRunFailure("resume")
			}
			return
		}
		if h.metrics != nil {
			h.metrics.RecordRunResumed()
		}
	}()

	writeJSON(w, http.StatusOK, map[string]string{"text": "Processing your decision..."})
}

// Wait blocks until all background resumes have finished.
func (h *ActionsHandler) Wait() {
	h.wg.Wait()
}
