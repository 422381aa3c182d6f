package store

import (
	"context"
	"sync"

	"github.com/BaSui01/incidentflow/workflow"
)

// Memory is an in-memory checkpoint store. Checkpoints survive only for
// the lifetime of the process; it exists for tests and local development.
type Memory struct {
	mu   sync.RWMutex
	runs map[string][]*workflow.Checkpoint
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		runs: make(map[string][]*workflow.Checkpoint),
	}
}

// Put appends a checkpoint for its run.
func (s *Memory) Put(ctx context.Context, cp *workflow.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *cp
	copied.State = cp.State.Clone()
	s.runs[cp.RunID] = append(s.runs[cp.RunID], &copied)
	return nil
}

// Latest returns the checkpoint with the highest sequence number.
func (s *Memory) Latest(ctx context.Context, runID string) (*workflow.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cps := s.runs[runID]
	if len(cps) == 0 {
		return nil, workflow.ErrNotFound
	}
	latest := cps[0]
	for _, cp := range cps[1:] {
		if cp.Seq > latest.Seq {
			latest = cp
		}
	}
	copied := *latest
	copied.State = latest.State.Clone()
	return &copied, nil
}

// History returns all checkpoints for a run in insertion order.
func (s *Memory) History(ctx context.Context, runID string) ([]*workflow.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cps := s.runs[runID]
	out := make([]*workflow.Checkpoint, 0, len(cps))
	for _, cp := range cps {
		copied := *cp
		copied.State = cp.State.Clone()
		out = append(out, &copied)
	}
	return out, nil
}
