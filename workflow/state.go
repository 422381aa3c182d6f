package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// State is the evolving state of a single workflow run. Fields are
// open-ended; steps return partial updates that are merged into it.
type State map[string]any

// Clone returns a shallow copy of the state. Step updates replace whole
// fields, so sharing nested values between snapshots is safe.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge applies update to a copy of s and returns it. Fields listed in
// protected are append-only: once set to a non-nil value they may not be
// replaced. Re-applying an equal value is an idempotent no-op; a
// conflicting value fails with CodeInvalidTransition.
func (s State) Merge(update State, protected map[string]bool) (State, error) {
	out := s.Clone()
	for k, v := range update {
		existing, ok := out[k]
		if ok && existing != nil && protected[k] {
			if valuesEqual(existing, v) {
				continue
			}
			return nil, NewError(CodeInvalidTransition,
				fmt.Sprintf("field %q is already set and cannot be overwritten", k))
		}
		out[k] = v
	}
	return out, nil
}

// valuesEqual compares two state values through their JSON form. A value
// written in-process and the same value reloaded from a store decode to
// different Go types, so structural comparison must normalize first.
func valuesEqual(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

// DecodeField unmarshals a state field into target through JSON, so the
// caller gets the same typed view whether the value was produced by a step
// in this process or reloaded from a checkpoint.
func DecodeField(s State, field string, target any) (bool, error) {
	v, ok := s[field]
	if !ok || v == nil {
		return false, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("encode field %q: %w", field, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return false, fmt.Errorf("decode field %q: %w", field, err)
	}
	return true, nil
}
