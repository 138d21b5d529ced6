package matching

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/jobpilot-ai/jobpilot/internal/agent"
)

// BatchAgent applies the single-job matcher to a list of jobs. Jobs run
// sequentially in input order; one job's failure never aborts the rest.
type BatchAgent struct {
	agent.Base

	single *Agent
	logger *zap.Logger
}

type batchInput struct {
	Jobs []map[string]any `mapstructure:"jobs"`
}

// NewBatch creates the batch matcher around an existing single-job agent.
func NewBatch(single *Agent, log *zap.Logger) *BatchAgent {
	if log == nil {
		log = zap.NewNop()
	}

	return &BatchAgent{
		Base: agent.Base{
			Name:        "BatchJobMatchingAgent",
			Description: "Batch processes multiple freelance jobs for relevance analysis",
			ModelID:     single.ModelID,
			Caps:        append([]string{"batch_job_analysis", "sequential_processing"}, single.Capabilities()...),
		},
		single: single,
		logger: log,
	}
}

// Execute scores every job in the input's "jobs" list, collecting per-job
// results plus success/failure counts. Result order matches input order; a
// failed job contributes an error entry with relevance_category "Error".
func (b *BatchAgent) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	var batch batchInput
	if err := mapstructure.Decode(input, &batch); err != nil {
		return nil, fmt.Errorf("decode batch input: %w", err)
	}

	b.logger.Info("batch job analysis started", zap.Int("jobs", len(batch.Jobs)))

	results := make([]map[string]any, 0, len(batch.Jobs))
	var successful, failed int

	for _, job := range batch.Jobs {
		jobID, _ := job["job_id"].(string)

		delta, err := b.single.Execute(ctx, job)
		if err != nil {
			b.logger.Warn("job analysis failed in batch",
				zap.String("job_id", jobID),
				zap.Error(err),
			)
			results = append(results, map[string]any{
				"job_id":             jobID,
				"error":              err.Error(),
				"relevance_category": "Error",
			})
			failed++
			continue
		}

		delta["job_id"] = jobID
		results = append(results, delta)
		successful++
	}

	b.logger.Info("batch job analysis finished",
		zap.Int("successful", successful),
		zap.Int("failed", failed),
	)

	return map[string]any{
		"results":         results,
		"total_processed": len(batch.Jobs),
		"successful":      successful,
		"failed":          failed,
	}, nil
}
