package proposal

import (
	"context"
	"os"
	"strings"

	_ "embed"

	"go.uber.org/zap"

	"github.com/jobpilot-ai/jobpilot/internal/agent"
)

//go:embed default_template.md
var defaultTemplate string

// TemplateAgent loads the proposal template from disk, falling back to the
// embedded default when the file cannot be read.
type TemplateAgent struct {
	agent.Base

	path   string
	logger *zap.Logger
}

func NewTemplate(path string, log *zap.Logger) *TemplateAgent {
	return &TemplateAgent{
		Base: agent.Base{
			Name:        "TemplateLoaderAgent",
			Description: "Loads and manages proposal templates",
			Caps:        []string{"template_loading", "template_management"},
		},
		path:   path,
		logger: log,
	}
}

// DefaultTemplate returns the built-in template text.
func DefaultTemplate() string {
	return defaultTemplate
}

func (a *TemplateAgent) Execute(_ context.Context, _ map[string]any) (map[string]any, error) {
	content := defaultTemplate

	if strings.TrimSpace(a.path) != "" {
		raw, err := os.ReadFile(a.path)
		if err != nil {
			a.logger.Warn("template file unreadable, using built-in default",
				zap.String("path", a.path),
				zap.Error(err),
			)
		} else {
			content = string(raw)
		}
	}

	return map[string]any{"proposal_template": content}, nil
}
