package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Well-known state keys shared by the orchestrator and its callers.
const (
	// KeyError holds the failure message merged into state when a stage
	// errors out. Callers distinguish partial from full completion by
	// checking for this key.
	KeyError = "error"
	// KeyFailedAgent holds the id of the stage that produced KeyError.
	KeyFailedAgent = "failed_agent"
)

// Orchestrator composes registered agents into a named, ordered workflow
// over a shared state. It is configured once (agents added, workflow set)
// and may then be invoked any number of times; it holds no per-run state.
type Orchestrator struct {
	name     string
	logger   *zap.Logger
	agents   map[string]Agent
	workflow []string
}

// NewOrchestrator creates an empty orchestrator with the given name.
func NewOrchestrator(name string, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		name:   name,
		logger: logger,
		agents: make(map[string]Agent),
	}
}

// AddAgent registers an agent under the given id. Reusing an id silently
// replaces the previous registration; SetWorkflow is the validation point.
func (o *Orchestrator) AddAgent(id string, a Agent) {
	o.agents[id] = a
	o.logger.Debug("registered agent",
		zap.String("workflow", o.name),
		zap.String("agent_id", id),
	)
}

// SetWorkflow replaces the execution order. Every referenced id must have
// been registered via AddAgent.
func (o *Orchestrator) SetWorkflow(ids []string) error {
	for _, id := range ids {
		if _, ok := o.agents[id]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownAgent, id)
		}
	}

	o.workflow = make([]string, len(ids))
	copy(o.workflow, ids)

	o.logger.Debug("workflow configured",
		zap.String("workflow", o.name),
		zap.String("order", strings.Join(ids, " -> ")),
	)
	return nil
}

// Run executes the configured workflow over a fresh state built from the
// initial mapping and returns the full state including its history. Agents
// run strictly in order, each receiving a copy of the accumulated state; a
// stage error merges an error delta and stops the run. Stage errors never
// propagate as Go errors: callers inspect KeyError on the result.
func (o *Orchestrator) Run(ctx context.Context, initial map[string]any) *State {
	state := NewState(initial)

	o.logger.Debug("starting workflow", zap.String("workflow", o.name))

	for _, id := range o.workflow {
		a := o.agents[id]

		delta, err := a.Execute(ctx, state.Snapshot())
		if err != nil {
			o.logger.Warn("agent failed, stopping workflow",
				zap.String("workflow", o.name),
				zap.String("agent_id", id),
				zap.Error(err),
			)
			state.Apply(map[string]any{
				KeyError:       err.Error(),
				KeyFailedAgent: id,
			})
			break
		}

		state.Apply(delta)
		o.logger.Debug("agent completed",
			zap.String("workflow", o.name),
			zap.String("agent_id", id),
			zap.Int("delta_keys", len(delta)),
		)
	}

	o.logger.Debug("workflow finished",
		zap.String("workflow", o.name),
		zap.Bool("failed", state.Failed()),
	)
	return state
}

// Execute runs the workflow and returns the accumulated state mapping,
// whether or not a stage failed.
func (o *Orchestrator) Execute(ctx context.Context, initial map[string]any) map[string]any {
	return o.Run(ctx, initial).Snapshot()
}

// Metadata describes the orchestrator, its registered agents, and the
// configured execution order.
func (o *Orchestrator) Metadata() map[string]any {
	agents := make(map[string]any, len(o.agents))
	for id, a := range o.agents {
		agents[id] = a.Metadata()
	}

	workflow := make([]string, len(o.workflow))
	copy(workflow, o.workflow)

	return map[string]any{
		"orchestrator_name": o.name,
		"agents":            agents,
		"workflow":          workflow,
		"total_agents":      len(o.agents),
	}
}
