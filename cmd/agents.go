package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobpilot-ai/jobpilot/internal/agent/matching"
	"github.com/jobpilot-ai/jobpilot/internal/agent/proposal"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Describe the configured agents and workflows",
	Run: func(_ *cobra.Command, _ []string) {
		agents()
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}

// agents prints the metadata of every agent without touching credentials:
// generation clients are created lazily, so description never needs a key.
func agents() {
	a := newAppContext()
	defer a.close()

	gcfg := a.config.AI.Gemini

	matcher := matching.New(a.retriever, a.generatorFactory(gcfg.MatchingModel), gcfg.MatchingModel, a.logger, gcfg.MaxLogLength)
	batch := matching.NewBatch(matcher, a.logger)

	pipeline, err := proposal.NewPipeline(a.store, a.config.Template, a.retriever, a.generatorFactory(gcfg.ProposalModel), gcfg.ProposalModel, a.logger)
	if err != nil {
		a.logger.Fatal("building the proposal pipeline", zap.Error(err))
	}

	printJSON(a.logger, map[string]any{
		"job_matching": map[string]any{
			"single": matcher.Metadata(),
			"batch":  batch.Metadata(),
		},
		"proposal_generation": pipeline.Metadata(),
	})
}
