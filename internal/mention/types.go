package mention

import (
	"fmt"
	"math"
	"strings"

	"github.com/raaihank/mention-sentinel/internal/entity"
	"github.com/raaihank/mention-sentinel/internal/simulation"
)

// Severity is an adapter-supplied hint of how serious a mention looks
type Severity string

const (
	SeverityUnknown  Severity = "unknown"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity validates a severity label from outside the pipeline
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow, nil
	case SeverityMedium:
		return SeverityMedium, nil
	case SeverityHigh:
		return SeverityHigh, nil
	case SeverityCritical:
		return SeverityCritical, nil
	case SeverityUnknown, "":
		return SeverityUnknown, nil
	default:
		return SeverityUnknown, fmt.Errorf("unknown severity %q", s)
	}
}

// NormalizeSeverity maps any label to a known severity, falling back to unknown
func NormalizeSeverity(s string) Severity {
	sev, err := ParseSeverity(s)
	if err != nil {
		return SeverityUnknown
	}
	return sev
}

// Stage is a compliance gate stage
type Stage string

const (
	StageGeneration Stage = "generation"
	StageApproval   Stage = "approval"
	StageDeployment Stage = "deployment"
	StageAccepted   Stage = "accepted"
)

// ParseStage validates a stage label read back from storage
func ParseStage(s string) (Stage, error) {
	switch Stage(strings.ToLower(strings.TrimSpace(s))) {
	case StageGeneration:
		return StageGeneration, nil
	case StageApproval:
		return StageApproval, nil
	case StageDeployment:
		return StageDeployment, nil
	case StageAccepted:
		return StageAccepted, nil
	default:
		return "", fmt.Errorf("unknown compliance stage %q", s)
	}
}

// Decision is the terminal outcome of an item
type Decision string

const (
	DecisionPending     Decision = ""
	DecisionAccepted    Decision = "accepted"
	DecisionQuarantined Decision = "quarantined"
	DecisionDiscarded   Decision = "discarded"
)

// Discard reasons
const (
	ReasonNoMatch       = "no entity match"
	ReasonLowConfidence = "confidence too low"
	ReasonCancelled     = "run cancelled"
)

// RawItem is a candidate mention as emitted by a source adapter
type RawItem struct {
	Platform   string   `json:"platform"`
	Content    string   `json:"content"`
	URL        string   `json:"url"`
	SourceType string   `json:"source_type"`
	Severity   Severity `json:"severity,omitempty"`
	Sentiment  float64  `json:"sentiment,omitempty"`
}

// Normalize cleans adapter hints at the pipeline boundary. Unknown severities
// become unknown and sentiment is clamped to [-1, 1].
func (r RawItem) Normalize() RawItem {
	r.Platform = strings.TrimSpace(r.Platform)
	r.URL = strings.TrimSpace(r.URL)
	r.SourceType = strings.ToLower(strings.TrimSpace(r.SourceType))
	r.Severity = NormalizeSeverity(string(r.Severity))
	if math.IsNaN(r.Sentiment) {
		r.Sentiment = 0
	}
	r.Sentiment = math.Max(-1, math.Min(1, r.Sentiment))
	return r
}

// Item is a RawItem annotated as it moves through the pipeline
type Item struct {
	RawItem
	Adapter   string             `json:"adapter"`
	Verdict   simulation.Verdict `json:"simulation_verdict"`
	Match     *entity.Match      `json:"match,omitempty"`
	Stage     Stage              `json:"compliance_stage"`
	Decision  Decision           `json:"final_decision,omitempty"`
	Reason    string             `json:"reason,omitempty"`
	RiskTerms []string           `json:"risk_terms,omitempty"`
}

// NewItem wraps a raw item entering the per-item gate at the approval stage
func NewItem(adapter string, raw RawItem) *Item {
	return &Item{
		RawItem: raw.Normalize(),
		Adapter: adapter,
		Stage:   StageApproval,
	}
}

// Snapshot returns a copy safe to retain after the pipeline moves on
func (i *Item) Snapshot() Item {
	out := *i
	if i.Match != nil {
		m := *i.Match
		m.ContextKeywords = append([]string(nil), i.Match.ContextKeywords...)
		out.Match = &m
	}
	out.RiskTerms = append([]string(nil), i.RiskTerms...)
	return out
}

// Terminal reports whether the item reached a final decision
func (i *Item) Terminal() bool {
	return i.Decision != DecisionPending
}
