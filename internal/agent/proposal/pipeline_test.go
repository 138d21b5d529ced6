package proposal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/jobpilot-ai/jobpilot/internal/agent"
	"github.com/jobpilot-ai/jobpilot/internal/ai"
	"github.com/jobpilot-ai/jobpilot/internal/store"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string, _ float64, _ int) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubGenerator) Model() string { return "stub-model" }

type stubRetriever struct {
	chunks []ai.Chunk
	err    error
	lastK  int
	lastQ  string
}

func (s *stubRetriever) Query(_ context.Context, text string, k int) ([]ai.Chunk, error) {
	s.lastQ = text
	s.lastK = k
	if s.err != nil {
		return nil, s.err
	}
	return s.chunks, nil
}

func factoryFor(gen ai.Generator) agent.GeneratorFactory {
	return func(context.Context) (ai.Generator, error) {
		return gen, nil
	}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func seedJob(t *testing.T, st *store.Store) {
	t.Helper()

	err := st.SaveJob(context.Background(), &store.Job{
		ID:               "job-1",
		Title:            "Go backend engineer",
		Description:      "Build a data pipeline.",
		ClientCountry:    "US",
		CategoryLabel:    "Web Development",
		SubcategoryLabel: "Back-End Development",
	})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}
}

func TestJobDataRequiresStore(t *testing.T) {
	a := NewJobData(nil, zap.NewNop())

	if _, err := a.Execute(context.Background(), map[string]any{"job_id": "job-1"}); err == nil {
		t.Fatal("expected error without store handle")
	}
}

func TestJobDataUnknownJob(t *testing.T) {
	st := openTestStore(t)
	a := NewJobData(st, zap.NewNop())

	_, err := a.Execute(context.Background(), map[string]any{"job_id": "missing"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobDataWithoutRelevance(t *testing.T) {
	st := openTestStore(t)
	seedJob(t, st)

	a := NewJobData(st, zap.NewNop())

	delta, err := a.Execute(context.Background(), map[string]any{"job_id": "job-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if delta["job_title"] != "Go backend engineer" || delta["client_name"] != "Client" {
		t.Fatalf("unexpected delta: %v", delta)
	}

	if delta["relevance_score"] != nil || delta["closest_profile_name"] != nil {
		t.Fatalf("expected nil relevance fields, got %v / %v",
			delta["relevance_score"], delta["closest_profile_name"])
	}
}

func TestJobDataWithRelevance(t *testing.T) {
	st := openTestStore(t)
	seedJob(t, st)

	err := st.UpsertRelevance(context.Background(), &store.Relevance{
		JobID:              "job-1",
		Score:              0.85,
		Category:           "Strong",
		ClosestProfileName: "Bob",
	})
	if err != nil {
		t.Fatalf("seed relevance: %v", err)
	}

	a := NewJobData(st, zap.NewNop())

	delta, err := a.Execute(context.Background(), map[string]any{"job_id": "job-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if delta["relevance_score"] != 0.85 || delta["closest_profile_name"] != "Bob" {
		t.Fatalf("unexpected relevance fields: %v / %v",
			delta["relevance_score"], delta["closest_profile_name"])
	}
}

func TestJobDataDefaultsEmptyTitle(t *testing.T) {
	st := openTestStore(t)

	if err := st.SaveJob(context.Background(), &store.Job{ID: "job-2"}); err != nil {
		t.Fatalf("seed job: %v", err)
	}

	a := NewJobData(st, zap.NewNop())

	delta, err := a.Execute(context.Background(), map[string]any{"job_id": "job-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if delta["job_title"] != "Untitled Job" {
		t.Fatalf("expected default title, got %v", delta["job_title"])
	}
}

func TestTemplateFallsBackToDefault(t *testing.T) {
	a := NewTemplate(filepath.Join(t.TempDir(), "nope.md"), zap.NewNop())

	delta, err := a.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content, _ := delta["proposal_template"].(string)
	if content != DefaultTemplate() {
		t.Fatal("expected the built-in default template")
	}

	for _, placeholder := range []string{
		"{{client_name}}", "{{job_title}}", "{{relevant_experience}}",
		"{{project_value}}", "{{questions}}", "{{profile_name}}",
	} {
		if !strings.Contains(content, placeholder) {
			t.Fatalf("default template missing %s", placeholder)
		}
	}
}

func TestTemplateReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.md")
	if err := os.WriteFile(path, []byte("Hello {{client_name}}"), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	a := NewTemplate(path, zap.NewNop())

	delta, err := a.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if delta["proposal_template"] != "Hello {{client_name}}" {
		t.Fatalf("unexpected template: %v", delta["proposal_template"])
	}
}

func TestContextPartitionsAndCaps(t *testing.T) {
	var chunks []ai.Chunk
	for i := 0; i < 4; i++ {
		chunks = append(chunks, ai.Chunk{
			DocType:   "profile",
			Name:      "Profile",
			Role:      "Engineer",
			Expertise: []string{"Go"},
		})
	}
	for i := 0; i < 4; i++ {
		chunks = append(chunks, ai.Chunk{
			DocType:        "project",
			Name:           "Project",
			Domain:         []string{"fintech"},
			Description:    "A platform.",
			TechStack:      []string{"Go", "PostgreSQL"},
			AICapabilities: []string{"RAG"},
		})
	}

	retriever := &stubRetriever{chunks: chunks}
	a := NewContext(retriever, zap.NewNop())

	delta, err := a.Execute(context.Background(), map[string]any{
		"job_title":       "Go engineer",
		"job_description": "Backend work",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if retriever.lastK != contextRetrievalK {
		t.Fatalf("expected k=%d, got %d", contextRetrievalK, retriever.lastK)
	}

	if retriever.lastQ != "Job Title: Go engineer. Description: Backend work" {
		t.Fatalf("unexpected query: %q", retriever.lastQ)
	}

	text, _ := delta["retrieved_context"].(string)

	if !strings.Contains(text, "=== RELEVANT TEAM PROFILES ===") ||
		!strings.Contains(text, "=== RELEVANT PAST PROJECTS ===") {
		t.Fatalf("missing headings in context:\n%s", text)
	}

	// Four of each retrieved, at most three of each rendered.
	if got := strings.Count(text, "- Name:"); got != 3 {
		t.Fatalf("expected 3 profiles, got %d", got)
	}
	if got := strings.Count(text, "- Project:"); got != 3 {
		t.Fatalf("expected 3 projects, got %d", got)
	}

	if !strings.Contains(text, "AI Capabilities: RAG") {
		t.Fatalf("missing AI capabilities line:\n%s", text)
	}
}

func TestContextDegrades(t *testing.T) {
	// No retriever at all.
	a := NewContext(nil, zap.NewNop())
	delta, err := a.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delta["retrieved_context"] != noRetrieverAvailable {
		t.Fatalf("unexpected context: %v", delta["retrieved_context"])
	}

	// Retrieval failure.
	a = NewContext(&stubRetriever{err: errors.New("index offline")}, zap.NewNop())
	delta, err = a.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text, _ := delta["retrieved_context"].(string)
	if !strings.Contains(text, "Error retrieving context: index offline") {
		t.Fatalf("unexpected context: %q", text)
	}

	// Empty corpus.
	a = NewContext(&stubRetriever{}, zap.NewNop())
	delta, err = a.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delta["retrieved_context"] != noRelevantContext {
		t.Fatalf("unexpected context: %v", delta["retrieved_context"])
	}
}

func TestGenerationPromptGuidance(t *testing.T) {
	gen := &stubGenerator{response: "A proposal."}
	a := NewGeneration(factoryFor(gen), "gemini-2.5-flash", zap.NewNop())

	score := 0.85
	_, err := a.Execute(context.Background(), map[string]any{
		"job_title":            "Go engineer",
		"relevance_score":      score,
		"closest_profile_name": "Bob",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(gen.lastPrompt, "Relevance Score: 0.85") {
		t.Fatalf("missing score line:\n%s", gen.lastPrompt)
	}
	if !strings.Contains(gen.lastPrompt, "Feature Bob as the key expert") {
		t.Fatalf("missing expert guidance:\n%s", gen.lastPrompt)
	}

	_, err = a.Execute(context.Background(), map[string]any{
		"job_title":            "Go engineer",
		"closest_profile_name": "General Company Profile",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(gen.lastPrompt, "Write from agency perspective") {
		t.Fatalf("missing agency guidance:\n%s", gen.lastPrompt)
	}
	if strings.Contains(gen.lastPrompt, "Relevance Score:") {
		t.Fatalf("score line should be absent when no score given:\n%s", gen.lastPrompt)
	}
}

func TestGenerationFailureBecomesErrorDelta(t *testing.T) {
	gen := &stubGenerator{err: errors.New("model unavailable")}
	a := NewGeneration(factoryFor(gen), "m", zap.NewNop())

	delta, err := a.Execute(context.Background(), map[string]any{"job_title": "x"})
	if err != nil {
		t.Fatalf("generation failure must not fail the stage: %v", err)
	}

	text, _ := delta["final_proposal"].(string)
	if !strings.Contains(text, "Error generating proposal: model unavailable") {
		t.Fatalf("unexpected proposal text: %q", text)
	}

	if delta["error"] != "model unavailable" {
		t.Fatalf("expected error key, got %v", delta["error"])
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	st := openTestStore(t)
	seedJob(t, st)

	if err := st.UpsertRelevance(context.Background(), &store.Relevance{
		JobID:              "job-1",
		Score:              0.9,
		ClosestProfileName: "Bob",
	}); err != nil {
		t.Fatalf("seed relevance: %v", err)
	}

	gen := &stubGenerator{response: "  Final proposal text.  "}
	retriever := &stubRetriever{chunks: []ai.Chunk{
		{DocType: "project", Name: "Pipeline", Description: "Streaming system.", TechStack: []string{"Go"}},
	}}

	o, err := NewPipeline(st, "", retriever, factoryFor(gen), "gemini-2.5-flash", zap.NewNop())
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}

	state := o.Run(context.Background(), map[string]any{"job_id": "job-1"})
	if state.Failed() {
		t.Fatalf("pipeline failed: %v", state.Snapshot())
	}

	if got := len(state.History()); got != 4 {
		t.Fatalf("expected 4 history entries, got %d", got)
	}

	final := state.Snapshot()
	if final["final_proposal"] != "Final proposal text." {
		t.Fatalf("unexpected proposal: %v", final["final_proposal"])
	}
	if final["generation_model"] != "gemini-2.5-flash" {
		t.Fatalf("unexpected model: %v", final["generation_model"])
	}

	// Earlier stage outputs flow through to the prompt.
	for _, want := range []string{
		"Title: Go backend engineer",
		"Feature Bob as the key expert",
		"=== RELEVANT PAST PROJECTS ===",
		"{{client_name}}",
	} {
		if !strings.Contains(gen.lastPrompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, gen.lastPrompt)
		}
	}
}

func TestPipelineStopsOnUnknownJob(t *testing.T) {
	st := openTestStore(t)

	o, err := NewPipeline(st, "", nil, factoryFor(&stubGenerator{}), "m", zap.NewNop())
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}

	state := o.Run(context.Background(), map[string]any{"job_id": "missing"})
	if !state.Failed() {
		t.Fatal("expected failed state")
	}

	snapshot := state.Snapshot()
	if snapshot[agent.KeyFailedAgent] != StageJobRetrieval {
		t.Fatalf("unexpected failed agent: %v", snapshot[agent.KeyFailedAgent])
	}

	if got := len(state.History()); got != 1 {
		t.Fatalf("expected 1 history entry, got %d", got)
	}

	if _, ok := snapshot["final_proposal"]; ok {
		t.Fatal("generation stage must not run after a failure")
	}
}
