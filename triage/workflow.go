package triage

import (
	"go.uber.org/zap"

	"github.com/BaSui01/incidentflow/workflow"
)

// Workflow step names.
const (
	WorkflowName = "incident-triage"
	StepClassify = "classify"
	StepNotify   = "notify"
	StepAdvise   = "advise"
)

// Graph builds the triage workflow definition: a linear chain
// classify → notify → advise, paused after notify until a human severity
// decision arrives.
func (s *Steps) Graph() *workflow.Graph {
	return workflow.NewGraph(WorkflowName).
		AddStep(StepClassify, s.Classify).
		AddStep(StepNotify, s.Notify).
		AddStep(StepAdvise, s.Advise).
		SetEntry(StepClassify).
		AddEdge(StepClassify, StepNotify).
		AddEdge(StepNotify, StepAdvise).
		AddEdge(StepAdvise, workflow.Terminal).
		InterruptAfter(StepNotify)
}

// NewEngine wires the triage graph, the append-only field set, and a
// checkpoint store into a ready engine. Extra options (observers, for
// example) are appended after the triage defaults.
func NewEngine(steps *Steps, store workflow.Store, logger *zap.Logger, opts ...workflow.EngineOption) (*workflow.Engine, error) {
	base := []workflow.EngineOption{
		workflow.WithProtectedFields(ProtectedFields()...),
		workflow.WithLogger(logger),
	}
	return workflow.NewEngine(steps.Graph(), store, append(base, opts...)...)
}
