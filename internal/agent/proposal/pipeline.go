package proposal

import (
	"go.uber.org/zap"

	"github.com/jobpilot-ai/jobpilot/internal/agent"
	"github.com/jobpilot-ai/jobpilot/internal/ai"
	"github.com/jobpilot-ai/jobpilot/internal/store"
)

// Workflow stage ids, in execution order.
const (
	StageJobRetrieval       = "job_retrieval"
	StageTemplateLoader     = "template_loader"
	StageContextRetrieval   = "context_retrieval"
	StageProposalGeneration = "proposal_generation"
)

// NewPipeline wires the four proposal stages into one orchestrator. The
// initial state passed to Run needs a job_id; everything else is produced
// along the way.
func NewPipeline(st *store.Store, templatePath string, retriever ai.Retriever, newGenerator agent.GeneratorFactory, modelID string, log *zap.Logger) (*agent.Orchestrator, error) {
	o := agent.NewOrchestrator("ProposalGenerationWorkflow", log)

	o.AddAgent(StageJobRetrieval, NewJobData(st, log))
	o.AddAgent(StageTemplateLoader, NewTemplate(templatePath, log))
	o.AddAgent(StageContextRetrieval, NewContext(retriever, log))
	o.AddAgent(StageProposalGeneration, NewGeneration(newGenerator, modelID, log))

	if err := o.SetWorkflow([]string{
		StageJobRetrieval,
		StageTemplateLoader,
		StageContextRetrieval,
		StageProposalGeneration,
	}); err != nil {
		return nil, err
	}

	return o, nil
}
