// Package workflow implements a durable, resumable step workflow engine.
//
// A Graph declares a directed sequence of named steps over a shared State
// map. The Engine executes steps strictly in order, persisting a Checkpoint
// to a Store after every step. Steps declared as interrupt points suspend
// the run after executing; a later Resume call, possibly in a different
// process, merges externally supplied state and continues past the pause.
//
// The Engine holds no per-run state beyond an in-process resume guard; any
// Engine sharing the same Graph and Store can continue any run.
package workflow
