// Package store provides checkpoint store implementations for the workflow
// engine: an in-memory store for tests and single-shot tools, a SQLite
// store for durable single-node deployments, and a Redis store for
// deployments sharing a checkpoint log across restarts or hosts.
package store
