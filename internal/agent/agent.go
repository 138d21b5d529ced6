// Package agent holds the unit-of-work contract shared by all pipeline
// stages, the mutable workflow state, and the orchestrator that chains
// stages into workflows.
package agent

import (
	"context"
	"sync"

	"github.com/jobpilot-ai/jobpilot/internal/ai"
)

// Agent is a single pipeline stage. Execute receives a snapshot of the
// accumulated workflow state and returns a delta of new or updated keys
// only, never the full state. It must not mutate its input.
type Agent interface {
	Execute(ctx context.Context, input map[string]any) (map[string]any, error)
	Capabilities() []string
	Metadata() map[string]any
}

// GeneratorFactory builds a generation client on demand. Agents hold the
// factory rather than a client so construction cost (and credential
// validation) is deferred until the first model call.
type GeneratorFactory func(ctx context.Context) (ai.Generator, error)

// Base carries the static identity shared by all agents and owns the
// lazily-created generation client handle. The handle is created once on
// first use and reused for the lifetime of the agent, which may span many
// concurrent invocations.
type Base struct {
	Name        string
	Description string
	ModelID     string
	Caps        []string

	NewGenerator GeneratorFactory

	genOnce sync.Once
	gen     ai.Generator
	genErr  error
}

// Capabilities returns the agent's declared capability tags.
func (b *Base) Capabilities() []string {
	caps := make([]string, len(b.Caps))
	copy(caps, b.Caps)
	return caps
}

// Metadata returns the agent identity for introspection and health
// endpoints.
func (b *Base) Metadata() map[string]any {
	return map[string]any{
		"name":         b.Name,
		"description":  b.Description,
		"model_id":     b.ModelID,
		"capabilities": b.Capabilities(),
	}
}

// Generate runs the prompt through the agent's generation client, creating
// the client on first use.
func (b *Base) Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	gen, err := b.generator(ctx)
	if err != nil {
		return "", err
	}
	return gen.Generate(ctx, prompt, temperature, maxTokens)
}

func (b *Base) generator(ctx context.Context) (ai.Generator, error) {
	b.genOnce.Do(func() {
		if b.NewGenerator == nil {
			b.genErr = ErrNoGenerator
			return
		}
		b.gen, b.genErr = b.NewGenerator(ctx)
	})
	return b.gen, b.genErr
}
