package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobpilot-ai/jobpilot/internal/agent"
	aipkg "github.com/jobpilot-ai/jobpilot/internal/ai"
	"github.com/jobpilot-ai/jobpilot/internal/ai/gemini"
	"github.com/jobpilot-ai/jobpilot/internal/governance"
	"github.com/jobpilot-ai/jobpilot/internal/logger"
	"github.com/jobpilot-ai/jobpilot/internal/retrieval"
	"github.com/jobpilot-ai/jobpilot/internal/secrets"
	"github.com/jobpilot-ai/jobpilot/internal/store"
)

// Governance model names, declared once per process.
const (
	modelJobMatching        = "job_matching"
	modelProposalGeneration = "proposal_generation"
)

// appContext bundles the shared collaborators the commands wire up on start.
type appContext struct {
	logger    *zap.Logger
	config    *Config
	store     *store.Store
	retriever aipkg.Retriever
	recorder  *governance.Recorder
}

func newAppContext() *appContext {
	zl, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zl.Fatal("getting a config", zap.Error(err))
	}

	st, err := store.Open(config.Database)
	if err != nil {
		zl.Fatal("opening the database", zap.Error(err), zap.String("path", config.Database))
	}

	var retriever aipkg.Retriever
	if config.Corpus != "" {
		index, err := retrieval.Load(config.Corpus)
		if err != nil {
			zl.Warn("loading the corpus failed, proceeding without retrieval",
				zap.String("path", config.Corpus),
				zap.Error(err),
			)
		} else {
			retriever = index
			zl.Info("corpus loaded",
				zap.String("path", config.Corpus),
				zap.Int("documents", index.Len()),
			)
		}
	}

	recorder := governance.NewRecorder(map[string]string{
		modelJobMatching:        config.AI.Gemini.MatchingModel,
		modelProposalGeneration: config.AI.Gemini.ProposalModel,
	})

	return &appContext{
		logger:    zl,
		config:    config,
		store:     st,
		retriever: retriever,
		recorder:  recorder,
	}
}

func (a *appContext) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing the database", zap.Error(err))
	}
}

// generatorFactory defers Gemini client construction until an agent first
// generates, so metadata-only paths never need credentials.
func (a *appContext) generatorFactory(model string) agent.GeneratorFactory {
	gcfg := a.config.AI.Gemini

	return func(ctx context.Context) (aipkg.Generator, error) {
		apiKey, err := secrets.Load(secrets.Source{
			Name:      "gemini api key",
			File:      gcfg.APIKeyFile,
			Env:       "GEMINI_API_KEY_FILE",
			EnvIsFile: true,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
		}

		return gemini.New(ctx, apiKey, model)
	}
}

func (a *appContext) printReport() {
	printJSON(a.logger, a.recorder.Report())
}

func printJSON(zl *zap.Logger, v any) {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		zl.Error("encoding output", zap.Error(err))
		return
	}
	fmt.Println(string(pretty))
}
