package workflow

import (
	"context"
	"time"
)

// Checkpoint is an immutable snapshot of a run: the full state plus the
// cursor position, ordered per run by a monotonically increasing sequence
// number. The store always serves the highest sequence number as current.
type Checkpoint struct {
	RunID     string    `json:"run_id"`
	Seq       int64     `json:"seq"`
	Next      string    `json:"next"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Done reports whether the run has reached the terminal marker.
func (c *Checkpoint) Done() bool {
	return c.Next == Terminal
}

// Store persists checkpoints. Put must be atomic with respect to
// concurrent readers: Latest never observes a partially written
// checkpoint. Implementations must support concurrent access for distinct
// run identifiers.
type Store interface {
	// Put appends a new checkpoint for its run.
	Put(ctx context.Context, cp *Checkpoint) error
	// Latest returns the current checkpoint for a run, or ErrNotFound.
	Latest(ctx context.Context, runID string) (*Checkpoint, error)
	// History returns all checkpoints for a run in sequence order.
	History(ctx context.Context, runID string) ([]*Checkpoint, error)
}
