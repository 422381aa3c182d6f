package triage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/incidentflow/llm"
)

// Classification is the structured output of the text classifier.
type Classification struct {
	Category  Category `json:"type"`
	Rationale string   `json:"rationale"`
}

// AdviceContent is the structured output of the text advisor, before
// validation and fallback.
type AdviceContent struct {
	Summary string   `json:"summary"`
	Steps   []string `json:"steps"`
	Notify  []string `json:"notify,omitempty"`
}

// Classifier assigns an issue category to a free-text report.
type Classifier interface {
	Classify(ctx context.Context, report string) (*Classification, error)
}

// Advisor generates remediation guidance for a triaged issue.
type Advisor interface {
	Advise(ctx context.Context, category Category, level Severity, report string) (*AdviceContent, error)
}

const classifierPrompt = "You are a strict classifier. " +
	"Choose exactly one label from: APP, WEBSITE, PASSENGER, CHAUFFEUR, SERVICE_PROVIDER. " +
	"Return JSON with fields: type, rationale. Do not add extra fields."

const advisorPrompt = "You are an SRE triage advisor. Based on issue type, triage level, and the user report, " +
	"produce a concise summary and 3-5 safe, read-only diagnostic or procedural steps. " +
	"Tailor steps to the type. For P0/P1 include who to notify. " +
	"Return JSON with: summary, steps, notify (optional)."

// LLMClassifier implements Classifier over a chat provider.
type LLMClassifier struct {
	provider llm.Provider
	logger   *zap.Logger
}

// NewLLMClassifier creates a classifier backed by provider.
func NewLLMClassifier(provider llm.Provider, logger *zap.Logger) *LLMClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMClassifier{
		provider: provider,
		logger:   logger.With(zap.String("component", "classifier")),
	}
}

// Classify calls the provider and validates the category against the
// fixed enumeration. A category outside the enumeration is a fault, not a
// value: classification routes the rest of the workflow.
func (c *LLMClassifier) Classify(ctx context.Context, report string) (*Classification, error) {
	resp, err := c.provider.Completion(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: classifierPrompt},
			{Role: llm.RoleUser, Content: report},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("classifier call failed: %w", err)
	}

	var out Classification
	if err := llm.DecodeJSON(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("classifier output invalid: %w", err)
	}
	if !out.Category.Valid() {
		return nil, fmt.Errorf("classifier returned unknown category %q", out.Category)
	}
	return &out, nil
}

// LLMAdvisor implements Advisor over a chat provider.
type LLMAdvisor struct {
	provider llm.Provider
	logger   *zap.Logger
}

// NewLLMAdvisor creates an advisor backed by provider.
func NewLLMAdvisor(provider llm.Provider, logger *zap.Logger) *LLMAdvisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMAdvisor{
		provider: provider,
		logger:   logger.With(zap.String("component", "advisor")),
	}
}

// Advise calls the provider for remediation guidance. Content validation
// (minimum step count, escalation policy) stays with the advise step.
func (a *LLMAdvisor) Advise(ctx context.Context, category Category, level Severity, report string) (*AdviceContent, error) {
	resp, err := a.provider.Completion(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: advisorPrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf("type=%s, level=%s, report=%s", category, level, report)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("advisor call failed: %w", err)
	}

	var out AdviceContent
	if err := llm.DecodeJSON(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("advisor output invalid: %w", err)
	}
	return &out, nil
}
