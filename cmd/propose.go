package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobpilot-ai/jobpilot/internal/agent"
	"github.com/jobpilot-ai/jobpilot/internal/agent/proposal"
	"github.com/jobpilot-ai/jobpilot/internal/governance"
	"github.com/jobpilot-ai/jobpilot/internal/store"
)

var proposeCmd = &cobra.Command{
	Use:   "propose [job-id]",
	Short: "Draft a proposal for a stored job",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		propose(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(proposeCmd)

	proposeCmd.Flags().Bool("overwrite", false, "regenerate even if a proposal already exists for the job")
	proposeCmd.Flags().Bool("report", false, "print the governance report after the run")
}

func propose(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	a := newAppContext()
	defer a.close()

	a.logger.Info("starting proposal drafting", zap.String("version", version))

	jobID, err := resolveJobID(ctx, a, args)
	if err != nil {
		a.logger.Fatal("selecting a job", zap.Error(err))
	}

	overwrite := cmd.Flag("overwrite").Value.String() == "true"

	existing, err := a.store.ProposalByJobID(ctx, jobID)
	switch {
	case err == nil && !overwrite:
		a.logger.Info("proposal already exists, pass --overwrite to regenerate",
			zap.String("job_id", jobID),
			zap.Time("updated_at", existing.UpdatedAt),
		)
		fmt.Println(existing.Text)
		return
	case err != nil && !errors.Is(err, store.ErrNotFound):
		a.logger.Fatal("checking for an existing proposal", zap.String("job_id", jobID), zap.Error(err))
	}

	pipeline, err := proposal.NewPipeline(
		a.store,
		a.config.Template,
		a.retriever,
		a.generatorFactory(a.config.AI.Gemini.ProposalModel),
		a.config.AI.Gemini.ProposalModel,
		a.logger,
	)
	if err != nil {
		a.logger.Fatal("building the proposal pipeline", zap.Error(err))
	}

	start := time.Now()
	state := pipeline.Run(ctx, map[string]any{"job_id": jobID})
	latency := float64(time.Since(start).Milliseconds())

	snapshot := state.Snapshot()

	if state.Failed() {
		cause, _ := snapshot[agent.KeyError].(string)
		a.recorder.Record(modelProposalGeneration, "generate_proposal", jobID, cause, latency, governance.StatusFailure, "cli")
		a.logger.Fatal("proposal workflow failed",
			zap.String("job_id", jobID),
			zap.Any("failed_agent", snapshot[agent.KeyFailedAgent]),
			zap.String("cause", cause),
		)
	}

	text, _ := snapshot["final_proposal"].(string)
	if strings.TrimSpace(text) == "" {
		a.recorder.Record(modelProposalGeneration, "generate_proposal", jobID, "empty proposal", latency, governance.StatusFailure, "cli")
		a.logger.Fatal("workflow produced an empty proposal", zap.String("job_id", jobID))
	}

	a.recorder.Record(modelProposalGeneration, "generate_proposal", jobID, text, latency, governance.StatusSuccess, "cli")

	if err := a.store.SaveProposal(ctx, jobID, text); err != nil {
		a.logger.Fatal("saving the proposal", zap.String("job_id", jobID), zap.Error(err))
	}

	a.logger.Info("proposal saved",
		zap.String("job_id", jobID),
		zap.Any("generation_model", snapshot["generation_model"]),
		zap.Float64("latency_ms", latency),
	)

	fmt.Println(text)

	if cmd.Flag("report").Value.String() == "true" {
		a.printReport()
	}
}

// resolveJobID returns the explicit argument or asks the user to pick one of
// the stored jobs.
func resolveJobID(ctx context.Context, a *appContext, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	jobs, err := a.store.Jobs(ctx)
	if err != nil {
		return "", err
	}

	if len(jobs) == 0 {
		return "", errors.New("no jobs stored yet")
	}

	items := make([]string, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, fmt.Sprintf("%s %s / %s", job.ID, job.Title, job.ClientCountry))
	}

	jobPrompt := promptui.Select{
		Label: "Choose a job and press ENTER",
		Items: items,
	}

	_, selected, err := jobPrompt.Run()
	if err != nil {
		return "", err
	}

	return strings.Split(selected, " ")[0], nil
}
