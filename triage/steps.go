package triage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/incidentflow/slack"
	"github.com/BaSui01/incidentflow/workflow"
)

// Notifier is the collaboration-channel capability the steps depend on.
// *slack.Client satisfies it; tests substitute fakes.
type Notifier interface {
	PostMessage(ctx context.Context, channel, text, threadTS string, blocks []slack.Block) (*slack.MessageRef, error)
}

// Routing maps issue categories to notification channels, with an
// explicit default. Plain data, resolved in one place.
type Routing struct {
	Channels map[Category]string
	Default  string
}

// ChannelFor resolves the destination for a category, falling back to the
// default. An empty result means no destination is configured.
func (r Routing) ChannelFor(c Category) string {
	if ch, ok := r.Channels[c]; ok && ch != "" {
		return ch
	}
	return r.Default
}

// fallbackSteps is the static per-category remediation list used when the
// advisor is unreachable or returns too little content.
var fallbackSteps = map[Category][]string{
	CategoryApp: {
		"Check recent mobile release crash rate and top stack traces.",
		"Correlate crashes with OS/app version and device model.",
		"Review last app release notes and error telemetry.",
	},
	CategoryWebsite: {
		"Check upstream error rates and latency for affected endpoints.",
		"Verify recent deploys to web/app gateway and roll back if correlated.",
		"Inspect CDN/cache status and purge if serving stale/error content.",
	},
	CategoryPassenger: {
		"Review user-facing flows affected; replicate the issue if possible.",
		"Check payment/location services health and recent changes.",
		"Prepare status page update if widespread.",
	},
	CategoryChauffeur: {
		"Check chauffeur app API endpoints and auth flows.",
		"Validate geolocation and job assignment services.",
		"Coordinate with ops for manual dispatch fallback.",
	},
	CategoryServiceProvider: {
		"Contact the provider's status page/support for incident notices.",
		"Validate API error codes and rate limits.",
		"Implement retries/backoff and failover if available.",
	},
}

// genericFallbackStep is used when a category has no static list.
const genericFallbackStep = "Gather logs and metrics for the affected service."

// minAdviceSteps is the minimum remediation-step count a usable advisor
// response must carry.
const minAdviceSteps = 3

// Steps builds the three step executors from their collaborators.
type Steps struct {
	classifier Classifier
	advisor    Advisor
	notifier   Notifier
	routing    Routing
	logger     *zap.Logger
}

// NewSteps creates the step set. notifier may be nil when no collaboration
// channel is configured; notification is then skipped, not fatal.
func NewSteps(classifier Classifier, advisor Advisor, notifier Notifier, routing Routing, logger *zap.Logger) *Steps {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Steps{
		classifier: classifier,
		advisor:    advisor,
		notifier:   notifier,
		routing:    routing,
		logger:     logger.With(zap.String("component", "triage_steps")),
	}
}

// Classify assigns an issue category. An empty report is a caller error; a
// classifier fault propagates because classification routes everything
// downstream.
func (s *Steps) Classify(ctx context.Context, rc workflow.RunContext, state workflow.State) (workflow.State, error) {
	report := ReportFrom(state)
	if strings.TrimSpace(report) == "" {
		return nil, workflow.NewError(workflow.CodeInvalidInput, "report cannot be empty")
	}

	cls, err := s.classifier.Classify(ctx, report)
	if err != nil {
		return nil, err
	}

	rc.Logger.Info("report classified",
		zap.String("category", string(cls.Category)))
	return workflow.State{
		FieldCategory:  string(cls.Category),
		FieldRationale: cls.Rationale,
	}, nil
}

// Notify posts the triage notification with severity buttons. No
// configured destination and delivery failures both complete the step:
// the run must reach its pause point so a human can still intervene
// out-of-band.
func (s *Steps) Notify(ctx context.Context, rc workflow.RunContext, state workflow.State) (workflow.State, error) {
	category, ok := CategoryFrom(state)
	if !ok {
		return nil, workflow.NewError(workflow.CodeInvalidInput, "issue category missing before notify")
	}

	channel := s.routing.ChannelFor(category)
	if channel == "" || s.notifier == nil {
		rc.Logger.Warn("no notification channel configured, skipping post",
			zap.String("category", string(category)))
		return workflow.State{}, nil
	}

	text := fmt.Sprintf(":rotating_light: %s\nReport: %s\nReasoning: %s",
		category, ReportFrom(state), RationaleFrom(state))
	blocks := []slack.Block{
		slack.SectionBlock(text),
		slack.ActionsBlock("triage", severityButtons(rc.RunID, category)),
	}

	ref, err := s.notifier.PostMessage(ctx, channel, "Incident triage", "", blocks)
	if err != nil {
		rc.Logger.Warn("notification delivery failed", zap.Error(err))
		return workflow.State{
			FieldNotification: NotificationMeta{Error: err.Error()},
		}, nil
	}

	rc.Logger.Info("triage notification posted",
		zap.String("channel", ref.Channel),
		zap.String("ts", ref.TS))
	return workflow.State{
		FieldNotification: NotificationMeta{Channel: ref.Channel, TS: ref.TS},
	}, nil
}

// Advise generates remediation guidance once a severity decision exists.
// A premature invocation (missing category or decision) is a no-op so the
// resume trigger can be re-entered defensively. Advisor faults degrade to
// the static fallback; delivery faults are logged, never raised.
func (s *Steps) Advise(ctx context.Context, rc workflow.RunContext, state workflow.State) (workflow.State, error) {
	category, okCat := CategoryFrom(state)
	decision, okDec := DecisionFrom(state)
	if !okCat || !okDec {
		rc.Logger.Warn("missing category or triage decision, skipping advice")
		return workflow.State{}, nil
	}

	content := s.adviceFor(ctx, rc, category, decision.SeverityLevel, ReportFrom(state))
	advice := Advice{
		Summary: content.Summary,
		Steps:   content.Steps,
		Notify:  content.Notify,
		Level:   decision.SeverityLevel,
	}

	if meta, ok := NotificationFrom(state); ok && meta.Delivered() && s.notifier != nil {
		ref, err := s.notifier.PostMessage(ctx, meta.Channel, renderAdvice(category, advice), meta.TS, nil)
		if err != nil {
			rc.Logger.Warn("advice delivery failed", zap.Error(err))
		} else {
			advice.Posted = ref
		}
	} else {
		rc.Logger.Info("no delivery coordinates, advice recorded without posting")
	}

	return workflow.State{FieldAdvice: advice}, nil
}

// adviceFor returns usable advisor content or the static fallback.
func (s *Steps) adviceFor(ctx context.Context, rc workflow.RunContext, category Category, level Severity, report string) AdviceContent {
	if s.advisor != nil {
		content, err := s.advisor.Advise(ctx, category, level, report)
		if err == nil && len(content.Steps) >= minAdviceSteps {
			return *content
		}
		if err != nil {
			rc.Logger.Warn("advisor unavailable, using fallback", zap.Error(err))
		} else {
			rc.Logger.Warn("advisor returned too few steps, using fallback",
				zap.Int("steps", len(content.Steps)))
		}
	}

	steps := fallbackSteps[category]
	if len(steps) == 0 {
		steps = []string{genericFallbackStep}
	}
	content := AdviceContent{
		Summary: fmt.Sprintf("Triage guidance for %s at %s", category, level),
		Steps:   append([]string(nil), steps...),
	}
	if level.Urgent() {
		content.Steps = append(
			[]string{fmt.Sprintf("[PRIORITY %s] Page on-call and create an incident channel.", level)},
			content.Steps...,
		)
		content.Notify = []string{"on-call", "incident-commander"}
	}
	return content
}

func severityButtons(runID string, category Category) []slack.ButtonOption {
	levels := Severities()
	opts := make([]slack.ButtonOption, 0, len(levels))
	for _, lvl := range levels {
		opts = append(opts, slack.ButtonOption{
			Label: lvl.Label,
			Value: slack.ButtonValue{
				RunID:    runID,
				Level:    string(lvl.Level),
				Category: string(category),
			},
		})
	}
	return opts
}

func renderAdvice(category Category, advice Advice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Advice for %s at %s\nSummary: %s\n", category, advice.Level, advice.Summary)
	for _, step := range advice.Steps {
		fmt.Fprintf(&b, "- %s\n", step)
	}
	if len(advice.Notify) > 0 {
		fmt.Fprintf(&b, "Notify: %s", strings.Join(advice.Notify, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
