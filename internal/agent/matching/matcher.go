// Package matching implements the job-scoring agents: a single-job matcher
// that combines retrieved company context with a scoring rubric, and a
// batch variant that applies it per job with independent error capture.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/jobpilot-ai/jobpilot/internal/agent"
	"github.com/jobpilot-ai/jobpilot/internal/ai"
	"github.com/jobpilot-ai/jobpilot/internal/logger"
)

//go:embed prompt.md
var promptTemplate string

const (
	retrievalK            = 9
	generationTemperature = 0.1
	generationMaxTokens   = 1500
	defaultMaxLogLength   = 200
)

// Degradation placeholders substituted for the retrieved context block.
// Retrieval problems must never abort scoring.
const (
	noRetrieverContext    = "No company context available."
	emptyCorpusContext    = "No specifically relevant company information found."
	retrievalErrorContext = "Error retrieving company context."
)

// Agent scores one job posting against the company profile.
type Agent struct {
	agent.Base

	retriever ai.Retriever
	logger    *zap.Logger
	maxLogLen int
}

type jobInput struct {
	JobID            string `mapstructure:"job_id"`
	JobTitle         string `mapstructure:"job_title"`
	JobDescription   string `mapstructure:"job_description"`
	ClientCountry    string `mapstructure:"client_country"`
	CategoryLabel    string `mapstructure:"category_label"`
	SubcategoryLabel string `mapstructure:"subcategory_label"`
}

// New creates the job-matching agent. The retriever may be nil, in which
// case scoring proceeds without company context.
func New(retriever ai.Retriever, newGenerator agent.GeneratorFactory, modelID string, log *zap.Logger, maxLogLength int) *Agent {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Agent{
		Base: agent.Base{
			Name:        "JobMatchingAgent",
			Description: "Analyzes freelance jobs for relevance to the company profile",
			ModelID:     modelID,
			Caps: []string{
				"job_relevance_analysis",
				"rag_context_retrieval",
				"technology_matching",
				"portfolio_matching",
				"location_analysis",
				"agency_detection",
			},
			NewGenerator: newGenerator,
		},
		retriever: retriever,
		logger:    logger.WithModelFields(log, "gemini", modelID),
		maxLogLen: maxLogLength,
	}
}

// Execute scores the job described by the input state and returns the
// analysis delta. Generation and parsing problems degrade to low-confidence
// results; only structurally unusable input produces an error.
func (a *Agent) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	var job jobInput
	if err := mapstructure.WeakDecode(input, &job); err != nil {
		return nil, fmt.Errorf("decode job input: %w", err)
	}

	if strings.TrimSpace(job.JobID) == "" {
		return nil, errors.New("job_id is required")
	}

	retrieved := a.retrieveContext(ctx, job.JobTitle, job.JobDescription)
	prompt := buildPrompt(job, retrieved)

	a.logger.Debug("job analysis request",
		zap.String("job_id", job.JobID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := a.Generate(ctx, prompt, generationTemperature, generationMaxTokens)
	if err != nil {
		a.logger.Warn("job analysis generation failed",
			zap.String("job_id", job.JobID),
			zap.Error(err),
		)
		return errorAnalysis(err).Delta(), nil
	}

	a.logger.Debug("job analysis response",
		zap.String("job_id", job.JobID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, a.maxLogLen)),
	)

	analysis := parseAnalysis(raw)

	a.logger.Info("job analyzed",
		zap.String("job_id", job.JobID),
		zap.Float64("relevance_score", analysis.Score),
		zap.String("relevance_category", analysis.Category),
	)

	return analysis.Delta(), nil
}

func (a *Agent) retrieveContext(ctx context.Context, title, description string) string {
	if a.retriever == nil {
		return noRetrieverContext
	}

	query := title + "\n" + description

	chunks, err := a.retriever.Query(ctx, query, retrievalK)
	if err != nil {
		a.logger.Warn("context retrieval failed, proceeding without context", zap.Error(err))
		return retrievalErrorContext
	}

	if len(chunks) == 0 {
		return emptyCorpusContext
	}

	var b strings.Builder
	b.WriteString("=== COMPANY CONTEXT (Retrieved via RAG) ===\n")
	for i, chunk := range chunks {
		source := chunk.Source
		if source == "" {
			source = "unknown"
		}
		fmt.Fprintf(&b, "\n[Context %d - Source: %s]\n%s\n", i+1, source, chunk.Text)
	}
	b.WriteString("\n=== END OF COMPANY CONTEXT ===")

	return b.String()
}

func buildPrompt(job jobInput, context string) string {
	replacer := strings.NewReplacer(
		"{{CONTEXT}}", context,
		"{{JOB_ID}}", job.JobID,
		"{{JOB_TITLE}}", orDefault(job.JobTitle, "N/A"),
		"{{JOB_DESCRIPTION}}", orDefault(job.JobDescription, "N/A"),
		"{{CLIENT_COUNTRY}}", orDefault(job.ClientCountry, "Not specified"),
		"{{CATEGORY}}", orDefault(job.CategoryLabel, "Not specified"),
		"{{SUBCATEGORY}}", orDefault(job.SubcategoryLabel, "Not specified"),
	)
	return replacer.Replace(promptTemplate)
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
