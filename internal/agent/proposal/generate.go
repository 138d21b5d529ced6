package proposal

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/jobpilot-ai/jobpilot/internal/agent"
	"github.com/jobpilot-ai/jobpilot/internal/agent/matching"
	"github.com/jobpilot-ai/jobpilot/internal/logger"
)

//go:embed prompt.md
var generationPrompt string

const (
	proposalTemperature = 0.7
	proposalMaxTokens   = 2048
	logPreviewLength    = 200
)

// GenerationAgent writes the final proposal text from the state the earlier
// stages assembled.
type GenerationAgent struct {
	agent.Base

	logger *zap.Logger
}

func NewGeneration(newGenerator agent.GeneratorFactory, modelID string, log *zap.Logger) *GenerationAgent {
	return &GenerationAgent{
		Base: agent.Base{
			Name:        "ProposalGenerationAgent",
			Description: "Generates personalized job proposals",
			ModelID:     modelID,
			Caps: []string{
				"proposal_generation",
				"natural_language_generation",
				"personalization",
				"template_filling",
			},
			NewGenerator: newGenerator,
		},
		logger: logger.WithModelFields(log, "gemini", modelID),
	}
}

type generationInput struct {
	JobTitle           string   `mapstructure:"job_title"`
	JobDescription     string   `mapstructure:"job_description"`
	RetrievedContext   string   `mapstructure:"retrieved_context"`
	ProposalTemplate   string   `mapstructure:"proposal_template"`
	RelevanceScore     *float64 `mapstructure:"relevance_score"`
	ClosestProfileName string   `mapstructure:"closest_profile_name"`
}

// Execute drafts the proposal. A generation failure does not fail the
// workflow: the delta carries an error-message proposal plus an "error" key
// so callers can tell a draft from a failure note.
func (a *GenerationAgent) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	var in generationInput
	if err := mapstructure.WeakDecode(input, &in); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}

	prompt := buildGenerationPrompt(in)

	a.logger.Debug("proposal generation request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, logPreviewLength)),
	)

	text, err := a.Generate(ctx, prompt, proposalTemperature, proposalMaxTokens)
	if err != nil {
		a.logger.Error("proposal generation failed", zap.Error(err))
		return map[string]any{
			"final_proposal": fmt.Sprintf("Error generating proposal: %s", err),
			"error":          err.Error(),
		}, nil
	}

	a.logger.Info("proposal generated", zap.Int("proposal_length", utf8.RuneCountInString(text)))

	return map[string]any{
		"final_proposal":   strings.TrimSpace(text),
		"generation_model": a.ModelID,
	}, nil
}

func buildGenerationPrompt(in generationInput) string {
	var info strings.Builder
	if in.RelevanceScore != nil {
		fmt.Fprintf(&info, "Relevance Score: %.2f\n", *in.RelevanceScore)
	}
	if in.ClosestProfileName != "" {
		fmt.Fprintf(&info, "Closest Matching Profile: %s\n", in.ClosestProfileName)
		if in.ClosestProfileName == matching.SentinelProfile {
			info.WriteString("Guideline: Write from agency perspective, highlight team strength.\n")
		} else {
			fmt.Fprintf(&info, "Guideline: Feature %s as the key expert.\n", in.ClosestProfileName)
		}
	}

	replacer := strings.NewReplacer(
		"{{JOB_TITLE}}", orDefault(in.JobTitle, "N/A"),
		"{{JOB_DESCRIPTION}}", orDefault(in.JobDescription, "N/A"),
		"{{RELEVANCE_INFO}}", info.String(),
		"{{CONTEXT}}", orDefault(in.RetrievedContext, "No context available"),
		"{{TEMPLATE}}", orDefault(in.ProposalTemplate, "No template provided"),
	)

	return replacer.Replace(generationPrompt)
}
