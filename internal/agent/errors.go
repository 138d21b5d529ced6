package agent

import "errors"

var (
	// ErrUnknownAgent is returned by SetWorkflow when a workflow references
	// an agent id that was never registered.
	ErrUnknownAgent = errors.New("agent is not registered")

	// ErrNoGenerator is returned when an agent needs the generation service
	// but was constructed without a generator factory.
	ErrNoGenerator = errors.New("generation client is not configured")
)
