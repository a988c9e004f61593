package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/raaihank/mention-sentinel/internal/entity"
)

// ScanStatistics is the end-of-run summary for one entity. It is the single
// source of truth for what a run accepted, quarantined and discarded.
type ScanStatistics struct {
	RunID               string                   `json:"run_id"`
	EntityName          string                   `json:"entity_name"`
	Queries             []string                 `json:"queries"`
	Total               int                      `json:"total"`
	Matched             int                      `json:"matched"`
	Accepted            int                      `json:"accepted"`
	Quarantined         int                      `json:"quarantined"`
	Discarded           int                      `json:"discarded"`
	ConfidenceBreakdown map[entity.MatchType]int `json:"confidence_breakdown"`
	DiscardReasons      map[string]int           `json:"discard_reasons"`
	QuarantineReasons   map[string]int           `json:"quarantine_reasons"`
	QuarantineByStage   map[string]int           `json:"quarantine_by_stage"`
	AdaptersSucceeded   int                      `json:"adapters_succeeded"`
	AdapterFailures     map[string]string        `json:"adapter_failures"`
	SinkErrors          int                      `json:"sink_errors"`
	QuarantineErrors    int                      `json:"quarantine_errors"`
	StartedAt           time.Time                `json:"started_at"`
	Duration            time.Duration            `json:"duration"`
}

// PrecisionRate is the share of seen items that matched the entity above the threshold
func (s ScanStatistics) PrecisionRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Matched) / float64(s.Total)
}

// Consistent reports whether every seen item reached exactly one terminal decision
func (s ScanStatistics) Consistent() bool {
	return s.Total == s.Accepted+s.Quarantined+s.Discarded
}

// Summary renders the one-line operator summary of a run
func (s ScanStatistics) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d items accepted, %d quarantined", s.Accepted, s.Quarantined)
	if len(s.QuarantineReasons) > 0 {
		fmt.Fprintf(&b, " (%s)", formatCounts(s.QuarantineReasons))
	}
	fmt.Fprintf(&b, ", %d discarded for low confidence", s.DiscardReasons[lowConfidence])

	other := make(map[string]int)
	for reason, n := range s.DiscardReasons {
		if reason != lowConfidence {
			other[reason] = n
		}
	}
	if len(other) > 0 {
		fmt.Fprintf(&b, ", %d discarded otherwise (%s)", s.Discarded-s.DiscardReasons[lowConfidence], formatCounts(other))
	}
	return b.String()
}

const lowConfidence = "confidence too low"

// formatCounts renders counts sorted by key for stable output
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}

// Aggregator accumulates run counters. All methods are safe for concurrent use.
type Aggregator struct {
	mu    sync.Mutex
	stats ScanStatistics
	now   func() time.Time
}

// New creates an aggregator for one run
func New(runID, entityName string) *Aggregator {
	a := &Aggregator{now: time.Now}
	a.stats = ScanStatistics{
		RunID:               runID,
		EntityName:          entityName,
		ConfidenceBreakdown: make(map[entity.MatchType]int),
		DiscardReasons:      make(map[string]int),
		QuarantineReasons:   make(map[string]int),
		QuarantineByStage:   make(map[string]int),
		AdapterFailures:     make(map[string]string),
		StartedAt:           a.now(),
	}
	return a
}

// SetQueries records the queries actually sent to adapters
func (a *Aggregator) SetQueries(queries []string) {
	a.mu.Lock()
	a.stats.Queries = append([]string(nil), queries...)
	a.mu.Unlock()
}

// RecordSeen counts an item entering the per-item pipeline
func (a *Aggregator) RecordSeen() {
	a.mu.Lock()
	a.stats.Total++
	a.mu.Unlock()
}

// RecordMatch counts a layer hit in the confidence breakdown. Only hits
// that clear the threshold count as matched.
func (a *Aggregator) RecordMatch(mt entity.MatchType, cleared bool) {
	a.mu.Lock()
	a.stats.ConfidenceBreakdown[mt]++
	if cleared {
		a.stats.Matched++
	}
	a.mu.Unlock()
}

// RecordAccepted counts an accepted item
func (a *Aggregator) RecordAccepted() {
	a.mu.Lock()
	a.stats.Accepted++
	a.mu.Unlock()
}

// RecordQuarantined counts an item quarantined at a stage for a reason kind
func (a *Aggregator) RecordQuarantined(stage, kind string) {
	a.mu.Lock()
	a.stats.Quarantined++
	a.stats.QuarantineByStage[stage]++
	a.stats.QuarantineReasons[kind]++
	a.mu.Unlock()
}

// RecordDiscarded counts an item dropped for an ordinary filtering reason
func (a *Aggregator) RecordDiscarded(reason string) {
	a.mu.Lock()
	a.stats.Discarded++
	a.stats.DiscardReasons[reason]++
	a.mu.Unlock()
}

// RecordSinkError counts an accepted item the sink failed to persist
func (a *Aggregator) RecordSinkError() {
	a.mu.Lock()
	a.stats.SinkErrors++
	a.mu.Unlock()
}

// RecordQuarantineError counts a quarantine record that could not be stored
func (a *Aggregator) RecordQuarantineError() {
	a.mu.Lock()
	a.stats.QuarantineErrors++
	a.mu.Unlock()
}

// RecordAdapterSuccess counts an adapter that returned results
func (a *Aggregator) RecordAdapterSuccess() {
	a.mu.Lock()
	a.stats.AdaptersSucceeded++
	a.mu.Unlock()
}

// RecordAdapterFailure notes an adapter that failed or timed out
func (a *Aggregator) RecordAdapterFailure(adapter string, err error) {
	a.mu.Lock()
	a.stats.AdapterFailures[adapter] = err.Error()
	a.mu.Unlock()
}

// Merge folds the item counters of another aggregator into this one
func (a *Aggregator) Merge(other *Aggregator) {
	o := other.Snapshot()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.Total += o.Total
	a.stats.Matched += o.Matched
	a.stats.Accepted += o.Accepted
	a.stats.Quarantined += o.Quarantined
	a.stats.Discarded += o.Discarded
	a.stats.SinkErrors += o.SinkErrors
	a.stats.QuarantineErrors += o.QuarantineErrors
	a.stats.AdaptersSucceeded += o.AdaptersSucceeded
	for k, v := range o.ConfidenceBreakdown {
		a.stats.ConfidenceBreakdown[k] += v
	}
	for k, v := range o.DiscardReasons {
		a.stats.DiscardReasons[k] += v
	}
	for k, v := range o.QuarantineReasons {
		a.stats.QuarantineReasons[k] += v
	}
	for k, v := range o.QuarantineByStage {
		a.stats.QuarantineByStage[k] += v
	}
	for k, v := range o.AdapterFailures {
		a.stats.AdapterFailures[k] = v
	}
}

// Snapshot returns a deep copy of the current counters
func (a *Aggregator) Snapshot() ScanStatistics {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.stats
	s.Queries = append([]string(nil), a.stats.Queries...)
	s.ConfidenceBreakdown = make(map[entity.MatchType]int, len(a.stats.ConfidenceBreakdown))
	for k, v := range a.stats.ConfidenceBreakdown {
		s.ConfidenceBreakdown[k] = v
	}
	s.DiscardReasons = copyCounts(a.stats.DiscardReasons)
	s.QuarantineReasons = copyCounts(a.stats.QuarantineReasons)
	s.QuarantineByStage = copyCounts(a.stats.QuarantineByStage)
	s.AdapterFailures = make(map[string]string, len(a.stats.AdapterFailures))
	for k, v := range a.stats.AdapterFailures {
		s.AdapterFailures[k] = v
	}
	s.Duration = a.now().Sub(a.stats.StartedAt)
	return s
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
