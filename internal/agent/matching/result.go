package matching

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Relevance categories the scoring rubric maps onto. The model's category
// string is passed through as-is, so values outside this set can appear.
const (
	CategoryStrong     = "Strong"
	CategoryMedium     = "Medium"
	CategoryLow        = "Low"
	CategoryIrrelevant = "Irrelevant"
)

// SentinelProfile is the closest-profile value meaning "no individual team
// member stood out"; downstream prompts switch to an agency framing on it.
const SentinelProfile = "General Company Profile"

// Analysis is the normalized outcome of scoring one job.
type Analysis struct {
	Score              float64  `mapstructure:"relevance_score"`
	Category           string   `mapstructure:"relevance_category"`
	Reasoning          string   `mapstructure:"reasoning"`
	TechnologyMatch    string   `mapstructure:"technology_match"`
	PortfolioMatch     string   `mapstructure:"portfolio_match"`
	ProjectMatch       string   `mapstructure:"project_match"`
	LocationMatch      string   `mapstructure:"location_match"`
	ClosestProfileName string   `mapstructure:"closest_profile_name"`
	Tags               []string `mapstructure:"tags"`
}

// Delta returns the analysis as the state delta merged by the orchestrator
// and persisted by the caller.
func (a Analysis) Delta() map[string]any {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"relevance_score":      a.Score,
		"relevance_category":   a.Category,
		"reasoning":            a.Reasoning,
		"technology_match":     a.TechnologyMatch,
		"portfolio_match":      a.PortfolioMatch,
		"project_match":        a.ProjectMatch,
		"location_match":       a.LocationMatch,
		"closest_profile_name": a.ClosestProfileName,
		"tags":                 tags,
	}
}

// AnalysisFromState decodes an analysis back out of a state mapping.
func AnalysisFromState(state map[string]any) (Analysis, error) {
	var analysis Analysis
	if err := mapstructure.WeakDecode(state, &analysis); err != nil {
		return Analysis{}, fmt.Errorf("decode analysis from state: %w", err)
	}
	return analysis, nil
}

// parseAnalysis extracts the analysis JSON from the raw model response. The
// model is told to emit a bare JSON object but routinely wraps it in prose
// or code fences, so the parser locates the first brace-delimited object
// anywhere in the text and falls back to parsing the whole response. An
// unparseable response yields the fixed low-confidence fallback.
func parseAnalysis(raw string) Analysis {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &data); err != nil {
			return fallbackAnalysis()
		}
	}
	return normalizeAnalysis(data)
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

func normalizeAnalysis(data map[string]any) Analysis {
	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		score = 0.0
	}
	score = clamp(score, 0.0, 1.0)

	category := coerceString(data["category"])
	if category == "" {
		category = CategoryIrrelevant
	}

	profile := coerceString(data["closest_profile_name"])
	if profile == "" {
		profile = SentinelProfile
	}

	reasoning := coerceString(data["reasoning"])
	if reasoning == "" {
		reasoning = "No reasoning provided"
	}

	return Analysis{
		Score:              score,
		Category:           category,
		Reasoning:          reasoning,
		TechnologyMatch:    coerceString(data["technology_match"]),
		PortfolioMatch:     coerceString(data["portfolio_match"]),
		ProjectMatch:       coerceString(data["project_match"]),
		LocationMatch:      coerceString(data["location_match"]),
		ClosestProfileName: profile,
		Tags:               coerceTags(data["tags"]),
	}
}

func fallbackAnalysis() Analysis {
	return Analysis{
		Score:              0.1,
		Category:           CategoryIrrelevant,
		Reasoning:          "Failed to parse AI analysis response",
		TechnologyMatch:    "Analysis failed",
		PortfolioMatch:     "Analysis failed",
		ProjectMatch:       "Analysis failed",
		LocationMatch:      "Analysis failed",
		ClosestProfileName: SentinelProfile,
		Tags:               []string{"parse_error"},
	}
}

func errorAnalysis(err error) Analysis {
	return Analysis{
		Score:              0.0,
		Category:           CategoryIrrelevant,
		Reasoning:          fmt.Sprintf("Error during analysis: %s", err),
		TechnologyMatch:    "Error",
		PortfolioMatch:     "Error",
		ProjectMatch:       "Error",
		LocationMatch:      "Error",
		ClosestProfileName: SentinelProfile,
		Tags:               []string{"error"},
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceTags(v any) []string {
	switch val := v.(type) {
	case []string:
		return append([]string(nil), val...)
	case []any:
		tags := make([]string, 0, len(val))
		for _, item := range val {
			if s := coerceString(item); s != "" {
				tags = append(tags, s)
			}
		}
		return tags
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
		return []string{}
	default:
		return []string{}
	}
}
