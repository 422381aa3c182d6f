package triage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/incidentflow/workflow"
)

// ResumeTrigger applies an external human decision to a suspended run and
// continues it past the pause point. Applying the same decision twice is a
// no-op; a conflicting decision fails with INVALID_TRANSITION. Callers are
// expected to de-duplicate actions before invoking it, typically by
// exhausting the originating control first.
type ResumeTrigger struct {
	engine *workflow.Engine
	logger *zap.Logger
}

// NewResumeTrigger creates a resume trigger for the engine.
func NewResumeTrigger(engine *workflow.Engine, logger *zap.Logger) *ResumeTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResumeTrigger{
		engine: engine,
		logger: logger.With(zap.String("component", "resume_trigger")),
	}
}

// ApplyDecision merges {triageDecision: {severityLevel, decidedBy}} into
// the run state and resumes execution.
func (t *ResumeTrigger) ApplyDecision(ctx context.Context, runID string, level Severity, decidedBy string) (workflow.State, error) {
	if !level.Valid() {
		return nil, workflow.NewError(workflow.CodeInvalidInput,
			fmt.Sprintf("unknown severity level %q", level))
	}
	if decidedBy == "" {
		return nil, workflow.NewError(workflow.CodeInvalidInput, "decision actor cannot be empty")
	}

	t.logger.Info("applying triage decision",
		zap.String("run_id", runID),
		zap.String("level", string(level)),
		zap.String("decided_by", decidedBy))

	merge := workflow.State{
		FieldDecision: Decision{SeverityLevel: level, DecidedBy: decidedBy},
	}
	return t.engine.Resume(ctx, runID, merge)
}
