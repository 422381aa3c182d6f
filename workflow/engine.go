package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Engine executes a Graph against a Store. It is stateless with respect to
// runs apart from an in-process guard that rejects concurrent Start/Resume
// calls for the same run identifier, and is safe to reconstruct per call as
// long as it shares the same graph and store.
type Engine struct {
	graph     *Graph
	store     Store
	protected map[string]bool
	logger    *zap.Logger
	observer  func(step string, duration time.Duration)

	mu       sync.Mutex
	inFlight map[string]bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithProtectedFields marks state fields as append-only: once a step or an
// external merge sets one, a later write with a different value fails with
// CodeInvalidTransition.
func WithProtectedFields(fields ...string) EngineOption {
	return func(e *Engine) {
		for _, f := range fields {
			e.protected[f] = true
		}
	}
}

// WithStepObserver registers a callback invoked with the name and duration
// of every successfully completed step.
func WithStepObserver(fn func(step string, duration time.Duration)) EngineOption {
	return func(e *Engine) {
		e.observer = fn
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine for the given graph and store. The graph is
// validated once here.
func NewEngine(graph *Graph, store Store, opts ...EngineOption) (*Engine, error) {
	if graph == nil {
		return nil, fmt.Errorf("graph cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		graph:     graph,
		store:     store,
		protected: make(map[string]bool),
		logger:    zap.NewNop(),
		inFlight:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "workflow_engine"),
		zap.String("workflow", graph.Name()))
	return e, nil
}

// Start creates a new run and executes it until the first interrupt point
// or the terminal marker. It fails with CodeDuplicateRun if the run
// identifier already has a checkpoint.
//
// The genesis checkpoint is persisted together with the first step's
// checkpoint, so a run whose first step rejects its input leaves no trace
// in the store and the identifier stays unknown.
func (e *Engine) Start(ctx context.Context, runID string, initial State) (State, error) {
	if runID == "" {
		return nil, NewError(CodeInvalidInput, "run id cannot be empty")
	}
	if !e.acquire(runID) {
		return nil, NewError(CodeConcurrentResume, fmt.Sprintf("run %q is already executing", runID))
	}
	defer e.release(runID)

	_, err := e.store.Latest(ctx, runID)
	switch {
	case err == nil:
		return nil, NewError(CodeDuplicateRun, fmt.Sprintf("run %q already exists", runID))
	case !errors.Is(err, ErrNotFound):
		return nil, NewError(CodeStoreUnavailable, "failed to check for existing run").WithCause(err)
	}

	genesis := &Checkpoint{
		RunID:     runID,
		Seq:       0,
		Next:      e.graph.Entry(),
		State:     initial.Clone(),
		CreatedAt: time.Now().UTC(),
	}
	e.logger.Info("starting run", zap.String("run_id", runID))
	return e.run(ctx, genesis, true)
}

// Resume loads the current checkpoint of a run, merges externally supplied
// state, and continues execution until the next interrupt point or the
// terminal marker. Resuming a terminal run returns the final state without
// writing a new checkpoint.
func (e *Engine) Resume(ctx context.Context, runID string, merge State) (State, error) {
	if !e.acquire(runID) {
		return nil, NewError(CodeConcurrentResume, fmt.Sprintf("run %q is already executing", runID))
	}
	defer e.release(runID)

	cp, err := e.loadLatest(ctx, runID)
	if err != nil {
		return nil, err
	}

	if len(merge) > 0 {
		merged, err := cp.State.Merge(merge, e.protected)
		if err != nil {
			return nil, err
		}
		cp.State = merged
	}

	e.logger.Info("resuming run",
		zap.String("run_id", runID),
		zap.Int64("seq", cp.Seq),
		zap.String("cursor", cp.Next))
	return e.run(ctx, cp, false)
}

// GetState returns a read-only projection of the current checkpoint's
// state.
func (e *Engine) GetState(ctx context.Context, runID string) (State, error) {
	cp, err := e.loadLatest(ctx, runID)
	if err != nil {
		return nil, err
	}
	return cp.State.Clone(), nil
}

func (e *Engine) loadLatest(ctx context.Context, runID string) (*Checkpoint, error) {
	cp, err := e.store.Latest(ctx, runID)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, NewError(CodeUnknownRun, fmt.Sprintf("no checkpoints for run %q", runID))
	case err != nil:
		return nil, NewError(CodeStoreUnavailable, "failed to load checkpoint").WithCause(err)
	}
	return cp, nil
}

// run executes steps from cp's cursor, persisting a checkpoint after each
// step, until an interrupt point suspends the run or the cursor reaches
// Terminal. A step fault aborts without advancing the cursor, so the step
// retries with identical inputs on the next Resume.
func (e *Engine) run(ctx context.Context, cp *Checkpoint, genesis bool) (State, error) {
	state := cp.State
	cursor := cp.Next
	seq := cp.Seq
	rc := RunContext{
		RunID:  cp.RunID,
		Logger: e.logger.With(zap.String("run_id", cp.RunID)),
	}

	for cursor != Terminal {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		fn, ok := e.graph.Step(cursor)
		if !ok {
			return nil, NewError(CodeInvalidTransition,
				fmt.Sprintf("checkpoint cursor %q is not a step of workflow %q", cursor, e.graph.Name()))
		}

		started := time.Now()
		update, err := fn(ctx, rc, state.Clone())
		if err != nil {
			return nil, fmt.Errorf("step %q failed: %w", cursor, err)
		}

		merged, err := state.Merge(update, e.protected)
		if err != nil {
			return nil, err
		}

		if genesis {
			// First successful step: the run now exists, persist the
			// genesis checkpoint ahead of the step's own.
			if err := e.store.Put(ctx, cp); err != nil {
				return nil, NewError(CodeStoreUnavailable, "failed to persist genesis checkpoint").WithCause(err)
			}
			genesis = false
		}

		next := e.graph.Successor(cursor)
		seq++
		step := &Checkpoint{
			RunID:     cp.RunID,
			Seq:       seq,
			Next:      next,
			State:     merged,
			CreatedAt: time.Now().UTC(),
		}
		if err := e.store.Put(ctx, step); err != nil {
			return nil, NewError(CodeStoreUnavailable, "failed to persist checkpoint").WithCause(err)
		}

		rc.Logger.Info("step completed",
			zap.String("step", cursor),
			zap.String("next", next),
			zap.Int64("seq", seq),
			zap.Duration("duration", time.Since(started)))
		if e.observer != nil {
			e.observer(cursor, time.Since(started))
		}

		state = merged
		if e.graph.IsInterrupt(cursor) {
			rc.Logger.Info("run suspended at interrupt point", zap.String("after", cursor))
			return state, nil
		}
		cursor = next
	}

	return state, nil
}

func (e *Engine) acquire(runID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[runID] {
		return false
	}
	e.inFlight[runID] = true
	return true
}

func (e *Engine) release(runID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, runID)
}
