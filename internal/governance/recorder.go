// Package governance tracks model usage: per-model counters, running
// latency averages, and a bounded audit log of individual calls. The
// Recorder is an explicitly constructed dependency passed to call sites,
// not a package-level global.
package governance

import (
	"strings"
	"sync"
	"time"
)

const (
	// maxAuditEntries caps the audit log; the oldest entry is evicted first.
	maxAuditEntries = 1000
	// maxSummaryLen truncates input/output summaries before they enter the
	// audit log.
	maxSummaryLen = 200
)

// Status marks a recorded call as succeeded or failed.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// ModelMetrics is a point-in-time snapshot of one monitored model.
type ModelMetrics struct {
	ModelName     string     `json:"model_name"`
	ModelID       string     `json:"model_id"`
	TotalRequests int        `json:"total_requests"`
	Successful    int        `json:"successful"`
	Failed        int        `json:"failed"`
	SuccessRate   float64    `json:"success_rate"`
	AvgLatencyMS  float64    `json:"avg_latency_ms"`
	LastUsed      *time.Time `json:"last_used,omitempty"`
}

// AuditEntry records a single model call.
type AuditEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	ModelName     string    `json:"model_name"`
	Operation     string    `json:"operation"`
	InputSummary  string    `json:"input_summary"`
	OutputSummary string    `json:"output_summary"`
	LatencyMS     float64   `json:"latency_ms"`
	Status        Status    `json:"status"`
	UserID        string    `json:"user_id,omitempty"`
}

// Report aggregates governance state across all monitored models.
type Report struct {
	GeneratedAt        time.Time `json:"generated_at"`
	TotalModelCalls    int       `json:"total_model_calls"`
	ModelsMonitored    int       `json:"models_monitored"`
	OverallSuccessRate float64   `json:"overall_success_rate"`
	AuditEntries       int       `json:"audit_entries"`
	ComplianceStatus   string    `json:"compliance_status"`
}

// ModelDetail is the per-model deep dive: metrics plus recent audit usage
// and a health banding derived from the success rate.
type ModelDetail struct {
	Metrics     ModelMetrics `json:"metrics"`
	RecentUsage []AuditEntry `json:"recent_usage"`
	Health      string       `json:"health"`
}

type modelCounters struct {
	modelID      string
	total        int
	successful   int
	failed       int
	avgLatencyMS float64
	lastUsed     *time.Time
}

// Recorder holds process-wide usage counters and the audit log. All methods
// are safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	order  []string
	models map[string]*modelCounters
	audit  []AuditEntry
	now    func() time.Time
}

// NewRecorder creates a recorder monitoring the pre-declared models, given
// as a logical-name to model-identifier mapping. Calls recorded under other
// names still reach the audit log but update no counters.
func NewRecorder(models map[string]string) *Recorder {
	r := &Recorder{
		models: make(map[string]*modelCounters, len(models)),
		now:    time.Now,
	}
	for name, id := range models {
		r.order = append(r.order, name)
		r.models[name] = &modelCounters{modelID: id}
	}
	return r
}

// Record registers one model call: counters and running average latency for
// pre-declared models, audit log append for every call. The audit log is
// FIFO-capped and summaries are truncated.
func (r *Recorder) Record(modelName, operation, inputSummary, outputSummary string, latencyMS float64, status Status, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.now().UTC()

	if m, ok := r.models[modelName]; ok {
		m.total++
		if status == StatusSuccess {
			m.successful++
		} else {
			m.failed++
		}
		m.avgLatencyMS = (m.avgLatencyMS*float64(m.total-1) + latencyMS) / float64(m.total)
		m.lastUsed = &ts
	}

	r.audit = append(r.audit, AuditEntry{
		Timestamp:     ts,
		ModelName:     modelName,
		Operation:     operation,
		InputSummary:  truncate(inputSummary),
		OutputSummary: truncate(outputSummary),
		LatencyMS:     latencyMS,
		Status:        status,
		UserID:        userID,
	})

	if len(r.audit) > maxAuditEntries {
		r.audit = r.audit[len(r.audit)-maxAuditEntries:]
	}
}

// Metrics returns a snapshot for every monitored model, in declaration
// order.
func (r *Recorder) Metrics() []ModelMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	metrics := make([]ModelMetrics, 0, len(r.order))
	for _, name := range r.order {
		metrics = append(metrics, r.snapshot(name))
	}
	return metrics
}

// AuditTail returns the most recent audit entries, newest last. A
// non-positive limit returns everything retained.
func (r *Recorder) AuditTail(limit int) []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.audit
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	tail := make([]AuditEntry, len(entries))
	copy(tail, entries)
	return tail
}

// Report aggregates counters across all models into a single compliance
// overview.
func (r *Recorder) Report() Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	var calls, successful int
	for _, m := range r.models {
		calls += m.total
		successful += m.successful
	}

	rate := 100.0
	if calls > 0 {
		rate = float64(successful) / float64(calls) * 100
	}

	return Report{
		GeneratedAt:        r.now().UTC(),
		TotalModelCalls:    calls,
		ModelsMonitored:    len(r.models),
		OverallSuccessRate: rate,
		AuditEntries:       len(r.audit),
		ComplianceStatus:   complianceStatus(rate),
	}
}

// ModelDetail returns the deep-dive view for one monitored model. The
// second return value is false for unknown names.
func (r *Recorder) ModelDetail(modelName string) (ModelDetail, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[modelName]; !ok {
		return ModelDetail{}, false
	}

	metrics := r.snapshot(modelName)

	var recent []AuditEntry
	for _, entry := range r.audit {
		if entry.ModelName == modelName {
			recent = append(recent, entry)
		}
	}
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}

	return ModelDetail{
		Metrics:     metrics,
		RecentUsage: recent,
		Health:      healthStatus(metrics.SuccessRate, metrics.TotalRequests),
	}, true
}

// Reset clears all counters and the audit log, preserving the configured
// model identifiers.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.models {
		*m = modelCounters{modelID: m.modelID}
	}
	r.audit = nil
}

func (r *Recorder) snapshot(name string) ModelMetrics {
	m := r.models[name]

	rate := 0.0
	if m.total > 0 {
		rate = float64(m.successful) / float64(m.total) * 100
	}

	return ModelMetrics{
		ModelName:     name,
		ModelID:       m.modelID,
		TotalRequests: m.total,
		Successful:    m.successful,
		Failed:        m.failed,
		SuccessRate:   rate,
		AvgLatencyMS:  m.avgLatencyMS,
		LastUsed:      m.lastUsed,
	}
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxSummaryLen {
		return s
	}
	return string(runes[:maxSummaryLen])
}

func complianceStatus(rate float64) string {
	switch {
	case rate >= 95:
		return "Excellent"
	case rate >= 85:
		return "Good"
	case rate >= 70:
		return "Acceptable"
	default:
		return "Needs Attention"
	}
}

func healthStatus(rate float64, total int) string {
	if total == 0 {
		return "healthy"
	}
	switch {
	case rate >= 90:
		return "healthy"
	case rate >= 70:
		return "degraded"
	default:
		return "unhealthy"
	}
}
