// Package ai defines the narrow interfaces the agents use to talk to the
// hosted generation model and the document retrieval engine. Concrete
// implementations live in subpackages (gemini) and in internal/retrieval.
package ai

import "context"

// Chunk is a single retrieval unit: a span of source text plus the metadata
// the corpus attaches to it. DocType distinguishes team profiles from past
// projects; the remaining fields are populated per document type.
type Chunk struct {
	Source  string   `yaml:"source"`
	Text    string   `yaml:"text"`
	DocType string   `yaml:"doc_type"`

	Name           string   `yaml:"name"`
	Role           string   `yaml:"role"`
	Description    string   `yaml:"description"`
	Expertise      []string `yaml:"expertise"`
	Domain         []string `yaml:"domain"`
	TechStack      []string `yaml:"tech_stack"`
	AICapabilities []string `yaml:"ai_capabilities"`
}

// Retriever returns the k chunks most similar to the query text, ordered by
// decreasing similarity. An empty corpus yields an empty slice, not an error.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]Chunk, error)
}

// Generator produces text for a prompt using the configured decoding
// parameters. A single blocking call per invocation, no streaming.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
	Model() string
}
