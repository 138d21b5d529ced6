package agent

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type stubAgent struct {
	name  string
	delta map[string]any
	err   error
	seen  []map[string]any
}

func (s *stubAgent) Execute(_ context.Context, input map[string]any) (map[string]any, error) {
	s.seen = append(s.seen, input)
	if s.err != nil {
		return nil, s.err
	}
	return s.delta, nil
}

func (s *stubAgent) Capabilities() []string { return []string{"stub"} }

func (s *stubAgent) Metadata() map[string]any {
	return map[string]any{"name": s.name, "capabilities": s.Capabilities()}
}

func TestOrchestratorMergesDeltasInOrder(t *testing.T) {
	first := &stubAgent{name: "first", delta: map[string]any{"a": 1, "shared": "first"}}
	second := &stubAgent{name: "second", delta: map[string]any{"b": 2, "shared": "second"}}

	o := NewOrchestrator("test", zap.NewNop())
	o.AddAgent("first", first)
	o.AddAgent("second", second)
	if err := o.SetWorkflow([]string{"first", "second"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state := o.Run(context.Background(), map[string]any{"initial": true})

	final := state.Snapshot()
	if final["a"] != 1 || final["b"] != 2 {
		t.Fatalf("expected both deltas merged, got %v", final)
	}

	if final["shared"] != "second" {
		t.Fatalf("expected later stage to win, got %v", final["shared"])
	}

	if len(second.seen) != 1 {
		t.Fatalf("expected second agent to run once, ran %d times", len(second.seen))
	}

	// Second stage must see the initial keys plus the first stage's output.
	input := second.seen[0]
	if input["initial"] != true || input["a"] != 1 {
		t.Fatalf("second stage saw incomplete state: %v", input)
	}

	if got := len(state.History()); got != 2 {
		t.Fatalf("expected 2 history entries, got %d", got)
	}

	if state.Failed() {
		t.Fatal("expected successful run")
	}
}

func TestOrchestratorStopsOnFirstFailure(t *testing.T) {
	first := &stubAgent{name: "first", delta: map[string]any{"a": 1}}
	failing := &stubAgent{name: "failing", err: errors.New("boom")}
	never := &stubAgent{name: "never", delta: map[string]any{"c": 3}}

	o := NewOrchestrator("test", zap.NewNop())
	o.AddAgent("first", first)
	o.AddAgent("failing", failing)
	o.AddAgent("never", never)
	if err := o.SetWorkflow([]string{"first", "failing", "never"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state := o.Run(context.Background(), nil)

	final := state.Snapshot()
	if final[KeyError] != "boom" {
		t.Fatalf("expected error message in state, got %v", final[KeyError])
	}

	if final[KeyFailedAgent] != "failing" {
		t.Fatalf("expected failed agent id, got %v", final[KeyFailedAgent])
	}

	if _, ok := final["c"]; ok {
		t.Fatal("agent after the failure point must not run")
	}

	if len(never.seen) != 0 {
		t.Fatal("agent after the failure point was invoked")
	}

	// One entry for the completed stage, one for the error delta.
	history := state.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}

	last := history[len(history)-1]
	if last.Updates[KeyError] != "boom" || last.Updates[KeyFailedAgent] != "failing" {
		t.Fatalf("unexpected final history entry: %v", last.Updates)
	}

	if !state.Failed() {
		t.Fatal("expected failed run")
	}
}

func TestOrchestratorExecuteReturnsMapping(t *testing.T) {
	a := &stubAgent{name: "only", delta: map[string]any{"done": true}}

	o := NewOrchestrator("test", zap.NewNop())
	o.AddAgent("only", a)
	if err := o.SetWorkflow([]string{"only"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final := o.Execute(context.Background(), map[string]any{"job_id": "j1"})
	if final["done"] != true || final["job_id"] != "j1" {
		t.Fatalf("unexpected final state: %v", final)
	}
}

func TestSetWorkflowRejectsUnknownAgent(t *testing.T) {
	o := NewOrchestrator("test", zap.NewNop())
	o.AddAgent("known", &stubAgent{name: "known"})

	err := o.SetWorkflow([]string{"known", "missing"})
	if !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestAddAgentLastWriteWins(t *testing.T) {
	first := &stubAgent{name: "first", delta: map[string]any{"who": "first"}}
	second := &stubAgent{name: "second", delta: map[string]any{"who": "second"}}

	o := NewOrchestrator("test", zap.NewNop())
	o.AddAgent("worker", first)
	o.AddAgent("worker", second)
	if err := o.SetWorkflow([]string{"worker"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	final := o.Execute(context.Background(), nil)
	if final["who"] != "second" {
		t.Fatalf("expected last registration to win, got %v", final["who"])
	}
}

func TestAgentCannotMutateSharedState(t *testing.T) {
	mutator := &stubAgent{name: "mutator", delta: map[string]any{}}
	o := NewOrchestrator("test", zap.NewNop())
	o.AddAgent("mutator", mutator)
	o.AddAgent("reader", &stubAgent{name: "reader", delta: map[string]any{}})
	if err := o.SetWorkflow([]string{"mutator", "reader"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state := o.Run(context.Background(), map[string]any{"guard": "original"})

	// The mutator writes into the snapshot it was given; the shared state
	// must be unaffected.
	mutator.seen[0]["guard"] = "tampered"

	if v, _ := state.Get("guard"); v != "original" {
		t.Fatalf("shared state was mutated through a snapshot: %v", v)
	}
}

func TestOrchestratorMetadata(t *testing.T) {
	o := NewOrchestrator("pipeline", zap.NewNop())
	o.AddAgent("a", &stubAgent{name: "a"})
	o.AddAgent("b", &stubAgent{name: "b"})
	if err := o.SetWorkflow([]string{"a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	meta := o.Metadata()
	if meta["orchestrator_name"] != "pipeline" {
		t.Fatalf("unexpected name: %v", meta["orchestrator_name"])
	}
	if meta["total_agents"] != 2 {
		t.Fatalf("unexpected agent count: %v", meta["total_agents"])
	}

	workflow, ok := meta["workflow"].([]string)
	if !ok || len(workflow) != 2 || workflow[0] != "a" {
		t.Fatalf("unexpected workflow metadata: %v", meta["workflow"])
	}
}
