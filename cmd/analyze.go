package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobpilot-ai/jobpilot/internal/agent/matching"
	"github.com/jobpilot-ai/jobpilot/internal/governance"
	"github.com/jobpilot-ai/jobpilot/internal/logger"
	"github.com/jobpilot-ai/jobpilot/internal/store"
)

const maxBatchSize = 10

var analyzeCmd = &cobra.Command{
	Use:   "analyze <job-id> [job-id...]",
	Short: "Score stored jobs for relevance against the company profile",
	Args:  cobra.RangeArgs(1, maxBatchSize),
	Run: func(cmd *cobra.Command, args []string) {
		analyze(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().Bool("report", false, "print the governance report after the run")
}

func analyze(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	a := newAppContext()
	defer a.close()

	a.logger.Info("starting job analysis",
		zap.String("version", version),
		zap.Int("jobs", len(args)),
	)

	inputs := make([]map[string]any, 0, len(args))
	for _, id := range args {
		job, err := a.store.JobByID(ctx, id)
		if err != nil {
			a.logger.Fatal("loading job", zap.String("job_id", id), zap.Error(err))
		}
		inputs = append(inputs, jobInput(job))
	}

	matcher := matching.New(
		a.retriever,
		a.generatorFactory(a.config.AI.Gemini.MatchingModel),
		a.config.AI.Gemini.MatchingModel,
		a.logger,
		a.config.AI.Gemini.MaxLogLength,
	)

	var result map[string]any
	if len(inputs) == 1 {
		result = analyzeSingle(ctx, a, matcher, inputs[0])
	} else {
		result = analyzeBatch(ctx, a, matcher, inputs)
	}

	printJSON(a.logger, result)

	if cmd.Flag("report").Value.String() == "true" {
		a.printReport()
	}
}

func analyzeSingle(ctx context.Context, a *appContext, matcher *matching.Agent, input map[string]any) map[string]any {
	jobID, _ := input["job_id"].(string)
	title, _ := input["job_title"].(string)

	start := time.Now()
	delta, err := matcher.Execute(ctx, input)
	latency := float64(time.Since(start).Milliseconds())

	if err != nil {
		a.recorder.Record(modelJobMatching, "analyze_job", title, err.Error(), latency, governance.StatusFailure, "cli")
		a.logger.Fatal("analyzing job", zap.String("job_id", jobID), zap.Error(err))
	}

	a.recorder.Record(modelJobMatching, "analyze_job", title,
		logger.TruncateForLog(fmt.Sprintf("%v (%v)", delta["relevance_category"], delta["relevance_score"]), 200),
		latency, governance.StatusSuccess, "cli")

	persistAnalysis(ctx, a, jobID, delta)

	return delta
}

func analyzeBatch(ctx context.Context, a *appContext, matcher *matching.Agent, inputs []map[string]any) map[string]any {
	batch := matching.NewBatch(matcher, a.logger)

	start := time.Now()
	delta, err := batch.Execute(ctx, map[string]any{"jobs": inputs})
	latency := float64(time.Since(start).Milliseconds())

	if err != nil {
		a.recorder.Record(modelJobMatching, "analyze_batch", fmt.Sprintf("%d jobs", len(inputs)), err.Error(), latency, governance.StatusFailure, "cli")
		a.logger.Fatal("analyzing batch", zap.Error(err))
	}

	a.recorder.Record(modelJobMatching, "analyze_batch", fmt.Sprintf("%d jobs", len(inputs)),
		fmt.Sprintf("successful=%v failed=%v", delta["successful"], delta["failed"]),
		latency, governance.StatusSuccess, "cli")

	results, _ := delta["results"].([]map[string]any)
	for _, entry := range results {
		// Errored entries carry no analysis worth persisting.
		if _, failed := entry["error"]; failed {
			continue
		}
		jobID, _ := entry["job_id"].(string)
		persistAnalysis(ctx, a, jobID, entry)
	}

	return delta
}

func persistAnalysis(ctx context.Context, a *appContext, jobID string, delta map[string]any) {
	analysis, err := matching.AnalysisFromState(delta)
	if err != nil {
		a.logger.Warn("decoding analysis for persistence", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	rel := &store.Relevance{
		JobID:              jobID,
		Score:              analysis.Score,
		Category:           analysis.Category,
		Reasoning:          analysis.Reasoning,
		TechnologyMatch:    analysis.TechnologyMatch,
		PortfolioMatch:     analysis.PortfolioMatch,
		ProjectMatch:       analysis.ProjectMatch,
		LocationMatch:      analysis.LocationMatch,
		ClosestProfileName: analysis.ClosestProfileName,
		Tags:               analysis.Tags,
	}

	if err := a.store.UpsertRelevance(ctx, rel); err != nil {
		a.logger.Warn("persisting relevance", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	a.logger.Info("relevance persisted",
		zap.String("job_id", jobID),
		zap.Float64("relevance_score", analysis.Score),
		zap.String("relevance_category", analysis.Category),
	)
}

func jobInput(job *store.Job) map[string]any {
	return map[string]any{
		"job_id":            job.ID,
		"job_title":         job.Title,
		"job_description":   job.Description,
		"client_country":    job.ClientCountry,
		"category_label":    job.CategoryLabel,
		"subcategory_label": job.SubcategoryLabel,
	}
}
