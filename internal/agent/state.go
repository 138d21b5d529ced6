package agent

import "time"

// HistoryEntry records one merge into the workflow state: when it happened
// and the exact delta that was applied.
type HistoryEntry struct {
	Timestamp time.Time
	Updates   map[string]any
}

// State is the shared mutable state of one workflow invocation: a
// string-keyed map plus an append-only history of applied deltas. Keys are
// only ever added or overwritten, never removed. A State is owned by a
// single Orchestrator run and is not safe for concurrent use.
type State struct {
	values  map[string]any
	history []HistoryEntry
}

// NewState builds a fresh state from the caller's initial mapping. The
// mapping is copied so later merges never touch the caller's map.
func NewState(initial map[string]any) *State {
	values := make(map[string]any, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &State{values: values}
}

// Apply merges the delta into the state and appends a history entry
// recording it. The delta is copied before being stored.
func (s *State) Apply(delta map[string]any) {
	updates := make(map[string]any, len(delta))
	for k, v := range delta {
		updates[k] = v
		s.values[k] = v
	}

	s.history = append(s.history, HistoryEntry{
		Timestamp: time.Now().UTC(),
		Updates:   updates,
	})
}

// Snapshot returns a copy of the accumulated key/value mapping.
func (s *State) Snapshot() map[string]any {
	snapshot := make(map[string]any, len(s.values))
	for k, v := range s.values {
		snapshot[k] = v
	}
	return snapshot
}

// Get returns the value stored under key, if any.
func (s *State) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// History returns the ordered record of applied deltas, one entry per
// completed stage (plus one error entry for a failed run).
func (s *State) History() []HistoryEntry {
	history := make([]HistoryEntry, len(s.history))
	copy(history, s.history)
	return history
}

// Failed reports whether an error delta was merged into the state.
func (s *State) Failed() bool {
	_, ok := s.values[KeyError]
	return ok
}
