// Package proposal implements the four-stage proposal drafting pipeline:
// job data retrieval, template loading, context retrieval, and proposal
// generation, chained through a single orchestrator. Stage 1 is the only
// stage allowed to fail the run; later stages degrade in place.
package proposal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/jobpilot-ai/jobpilot/internal/agent"
	"github.com/jobpilot-ai/jobpilot/internal/store"
)

// JobDataAgent loads the job row and any stored relevance analysis.
type JobDataAgent struct {
	agent.Base

	store  *store.Store
	logger *zap.Logger
}

// NewJobData creates the job data retrieval stage. The store handle may be
// nil; Execute then fails, which terminates the workflow.
func NewJobData(st *store.Store, log *zap.Logger) *JobDataAgent {
	return &JobDataAgent{
		Base: agent.Base{
			Name:        "JobDataRetrievalAgent",
			Description: "Retrieves job details from the database including relevance scores",
			Caps:        []string{"database_query", "job_data_retrieval", "relevance_lookup"},
		},
		store:  st,
		logger: log,
	}
}

// Execute fetches the job identified by job_id and emits the fields the
// later stages consume. relevance_score and closest_profile_name are nil
// when the job was never analyzed.
func (a *JobDataAgent) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	var in struct {
		JobID string `mapstructure:"job_id"`
	}
	if err := mapstructure.WeakDecode(input, &in); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}

	if strings.TrimSpace(in.JobID) == "" {
		return nil, errors.New("job_id is required")
	}

	if a.store == nil {
		return nil, errors.New("database handle not provided")
	}

	a.logger.Info("fetching job", zap.String("job_id", in.JobID))

	job, err := a.store.JobByID(ctx, in.JobID)
	if err != nil {
		return nil, err
	}

	delta := map[string]any{
		"job_id":               job.ID,
		"job_title":            orDefault(job.Title, "Untitled Job"),
		"job_description":      job.Description,
		"client_name":          "Client",
		"client_country":       job.ClientCountry,
		"category":             job.CategoryLabel,
		"subcategory":          job.SubcategoryLabel,
		"relevance_score":      nil,
		"closest_profile_name": nil,
	}

	rel, err := a.store.RelevanceByJobID(ctx, job.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// No analysis yet; generation falls back to its generic framing.
	case err != nil:
		return nil, err
	default:
		delta["relevance_score"] = rel.Score
		delta["closest_profile_name"] = rel.ClosestProfileName
	}

	return delta, nil
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
