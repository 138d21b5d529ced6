package proposal

import (
	"context"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/jobpilot-ai/jobpilot/internal/agent"
	"github.com/jobpilot-ai/jobpilot/internal/ai"
)

const (
	contextRetrievalK  = 8
	maxEntriesPerGroup = 3
)

// Degradation placeholders for the retrieved_context key. Retrieval problems
// never fail this stage.
const (
	noRetrieverAvailable = "No context retrieval system available."
	noRelevantContext    = "No relevant company information found."
)

// ContextAgent assembles the company-experience block for the generation
// prompt from retrieved profile and project documents.
type ContextAgent struct {
	agent.Base

	retriever ai.Retriever
	logger    *zap.Logger
}

func NewContext(retriever ai.Retriever, log *zap.Logger) *ContextAgent {
	return &ContextAgent{
		Base: agent.Base{
			Name:        "ContextRetrievalAgent",
			Description: "Retrieves relevant company context for proposal writing",
			Caps:        []string{"rag_retrieval", "semantic_search", "context_building"},
		},
		retriever: retriever,
		logger:    log,
	}
}

func (a *ContextAgent) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	var in struct {
		JobTitle       string `mapstructure:"job_title"`
		JobDescription string `mapstructure:"job_description"`
	}
	if err := mapstructure.WeakDecode(input, &in); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}

	if a.retriever == nil {
		a.logger.Warn("no retriever configured for proposal context")
		return map[string]any{"retrieved_context": noRetrieverAvailable}, nil
	}

	query := fmt.Sprintf("Job Title: %s. Description: %s", in.JobTitle, in.JobDescription)

	chunks, err := a.retriever.Query(ctx, query, contextRetrievalK)
	if err != nil {
		a.logger.Warn("proposal context retrieval failed", zap.Error(err))
		return map[string]any{"retrieved_context": fmt.Sprintf("Error retrieving context: %s", err)}, nil
	}

	if len(chunks) == 0 {
		return map[string]any{"retrieved_context": noRelevantContext}, nil
	}

	var profiles, projects []ai.Chunk
	for _, chunk := range chunks {
		switch chunk.DocType {
		case "profile":
			profiles = append(profiles, chunk)
		case "project":
			projects = append(projects, chunk)
		}
	}

	a.logger.Info("proposal context retrieved",
		zap.Int("profiles", len(profiles)),
		zap.Int("projects", len(projects)),
	)

	return map[string]any{"retrieved_context": formatContext(profiles, projects)}, nil
}

func formatContext(profiles, projects []ai.Chunk) string {
	var parts []string

	if len(profiles) > 0 {
		parts = append(parts, "=== RELEVANT TEAM PROFILES ===")
		for _, p := range profiles[:min(len(profiles), maxEntriesPerGroup)] {
			parts = append(parts,
				fmt.Sprintf("\n- Name: %s", orDefault(p.Name, "N/A")),
				fmt.Sprintf("  Role: %s", orDefault(p.Role, "N/A")),
				fmt.Sprintf("  Expertise: %s", strings.Join(p.Expertise, ", ")),
			)
		}
	}

	if len(projects) > 0 {
		if len(parts) > 0 {
			parts = append(parts, "\n")
		}
		parts = append(parts, "=== RELEVANT PAST PROJECTS ===")
		for _, p := range projects[:min(len(projects), maxEntriesPerGroup)] {
			parts = append(parts,
				fmt.Sprintf("\n- Project: %s", orDefault(p.Name, "N/A")),
				fmt.Sprintf("  Domain: %s", strings.Join(p.Domain, ", ")),
				fmt.Sprintf("  Description: %s", orDefault(p.Description, "N/A")),
				fmt.Sprintf("  Tech Stack: %s", strings.Join(p.TechStack, ", ")),
			)
			if len(p.AICapabilities) > 0 {
				parts = append(parts, fmt.Sprintf("  AI Capabilities: %s", strings.Join(p.AICapabilities, ", ")))
			}
		}
	}

	return strings.Join(parts, "\n")
}
