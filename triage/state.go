// Package triage defines the incident-triage workflow: the run state
// fields, the classify/notify/advise steps, the workflow definition with
// its pause point, and the resume trigger that applies a human severity
// decision.
package triage

import (
	"github.com/BaSui01/incidentflow/slack"
	"github.com/BaSui01/incidentflow/workflow"
)

// Run state field names. All of them are append-only: once written by a
// step (or by the resume trigger) they may be read but never replaced.
const (
	FieldReport       = "report"
	FieldCategory     = "issueCategory"
	FieldRationale    = "classificationRationale"
	FieldNotification = "notificationMeta"
	FieldDecision     = "triageDecision"
	FieldAdvice       = "advice"
)

// ProtectedFields returns the append-only field set for the engine.
func ProtectedFields() []string {
	return []string{
		FieldReport,
		FieldCategory,
		FieldRationale,
		FieldNotification,
		FieldDecision,
		FieldAdvice,
	}
}

// Category is the issue category assigned by the classify step.
type Category string

const (
	CategoryApp             Category = "APP"
	CategoryWebsite         Category = "WEBSITE"
	CategoryPassenger       Category = "PASSENGER"
	CategoryChauffeur       Category = "CHAUFFEUR"
	CategoryServiceProvider Category = "SERVICE_PROVIDER"
)

// Categories returns the fixed enumeration in a stable order.
func Categories() []Category {
	return []Category{
		CategoryApp,
		CategoryWebsite,
		CategoryPassenger,
		CategoryChauffeur,
		CategoryServiceProvider,
	}
}

// Valid reports whether c is a member of the fixed enumeration.
func (c Category) Valid() bool {
	switch c {
	case CategoryApp, CategoryWebsite, CategoryPassenger, CategoryChauffeur, CategoryServiceProvider:
		return true
	}
	return false
}

// Severity is the triage level chosen by a human.
type Severity string

const (
	SeverityP0 Severity = "P0"
	SeverityP1 Severity = "P1"
	SeverityP2 Severity = "P2"
	SeverityP3 Severity = "P3"
)

// Severities returns the fixed enumeration with display labels, in the
// order the buttons are rendered.
func Severities() []struct {
	Label string
	Level Severity
} {
	return []struct {
		Label string
		Level Severity
	}{
		{"P0 Critical", SeverityP0},
		{"P1 High", SeverityP1},
		{"P2 Medium", SeverityP2},
		{"P3 Low", SeverityP3},
	}
}

// Valid reports whether s is a member of the fixed enumeration.
func (s Severity) Valid() bool {
	switch s {
	case SeverityP0, SeverityP1, SeverityP2, SeverityP3:
		return true
	}
	return false
}

// Urgent reports whether the level triggers the escalation policy.
func (s Severity) Urgent() bool {
	return s == SeverityP0 || s == SeverityP1
}

// Decision records the human triage choice.
type Decision struct {
	SeverityLevel Severity `json:"severityLevel"`
	DecidedBy     string   `json:"decidedBy"`
}

// NotificationMeta records where the triage notification landed, or why
// delivery failed. A delivery error is data, not a fault: the run must
// still reach its pause point.
type NotificationMeta struct {
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Delivered reports whether the notification reached a channel.
func (m *NotificationMeta) Delivered() bool {
	return m != nil && m.Channel != "" && m.TS != ""
}

// Advice is the terminal field: remediation guidance plus its delivery
// confirmation.
type Advice struct {
	Summary string            `json:"summary"`
	Steps   []string          `json:"steps"`
	Notify  []string          `json:"notify,omitempty"`
	Posted  *slack.MessageRef `json:"posted,omitempty"`
	Level   Severity          `json:"level"`
}

// ReportFrom reads the report text from run state.
func ReportFrom(s workflow.State) string {
	if v, ok := s[FieldReport].(string); ok {
		return v
	}
	return ""
}

// CategoryFrom reads the issue category from run state.
func CategoryFrom(s workflow.State) (Category, bool) {
	var raw string
	ok, err := workflow.DecodeField(s, FieldCategory, &raw)
	if !ok || err != nil {
		return "", false
	}
	c := Category(raw)
	return c, c.Valid()
}

// RationaleFrom reads the classification rationale from run state.
func RationaleFrom(s workflow.State) string {
	var raw string
	if ok, err := workflow.DecodeField(s, FieldRationale, &raw); ok && err == nil {
		return raw
	}
	return ""
}

// DecisionFrom reads the triage decision from run state.
func DecisionFrom(s workflow.State) (*Decision, bool) {
	var d Decision
	ok, err := workflow.DecodeField(s, FieldDecision, &d)
	if !ok || err != nil || !d.SeverityLevel.Valid() {
		return nil, false
	}
	return &d, true
}

// NotificationFrom reads the delivery coordinates from run state.
func NotificationFrom(s workflow.State) (*NotificationMeta, bool) {
	var m NotificationMeta
	ok, err := workflow.DecodeField(s, FieldNotification, &m)
	if !ok || err != nil {
		return nil, false
	}
	return &m, true
}

// AdviceFrom reads the advice record from run state.
func AdviceFrom(s workflow.State) (*Advice, bool) {
	var a Advice
	ok, err := workflow.DecodeField(s, FieldAdvice, &a)
	if !ok || err != nil {
		return nil, false
	}
	return &a, true
}

// StatusView is the read-only projection served by the status endpoint.
type StatusView struct {
	RunID     string            `json:"run_id"`
	HasReport bool              `json:"has_report"`
	Category  Category          `json:"category,omitempty"`
	Rationale string            `json:"rationale,omitempty"`
	Triage    *Decision         `json:"triage,omitempty"`
	Slack     *NotificationMeta `json:"slack,omitempty"`
	Advice    *Advice           `json:"advice,omitempty"`
}

// NewStatusView projects run state into the status shape.
func NewStatusView(runID string, s workflow.State) StatusView {
	view := StatusView{
		RunID:     runID,
		HasReport: ReportFrom(s) != "",
		Rationale: RationaleFrom(s),
	}
	if c, ok := CategoryFrom(s); ok {
		view.Category = c
	}
	if d, ok := DecisionFrom(s); ok {
		view.Triage = d
	}
	if m, ok := NotificationFrom(s); ok {
		view.Slack = m
	}
	if a, ok := AdviceFrom(s); ok {
		view.Advice = a
	}
	return view
}
