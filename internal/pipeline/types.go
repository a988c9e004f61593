package pipeline

import (
	"context"
	"errors"

	"github.com/raaihank/mention-sentinel/internal/mention"
	"github.com/raaihank/mention-sentinel/internal/quarantine"
	"github.com/raaihank/mention-sentinel/internal/stats"
)

var (
	// ErrNoAdapters is returned when an orchestrator has no source adapters
	ErrNoAdapters = errors.New("no source adapters configured")
	// ErrDuplicateAdapter is returned when two adapters share a name
	ErrDuplicateAdapter = errors.New("duplicate source adapter name")
	// ErrInvalidRequest is returned for scan requests that cannot start a run
	ErrInvalidRequest = errors.New("invalid scan request")
)

// Adapter fetches candidate items from one platform. Fetch may block on
// network I/O and must honour ctx.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, entityName string, queries []string) ([]mention.RawItem, error)
}

// Sink persists accepted items. It assigns its own identifier and timestamp.
type Sink interface {
	Store(ctx context.Context, item *mention.Item) error
}

// QuarantineRecorder stores items rejected by the compliance gate
type QuarantineRecorder interface {
	Record(ctx context.Context, record quarantine.Record) error
}

// Observer receives run events. Implementations must be safe for concurrent
// use because quarantine events arrive from every adapter worker.
type Observer interface {
	OnQuarantine(ctx context.Context, record quarantine.Record)
	OnRunComplete(ctx context.Context, s stats.ScanStatistics)
}

// Request starts a scan for one tracked entity
type Request struct {
	EntityName string `json:"entity_name"`
	// MinConfidence overrides the configured threshold when > 0
	MinConfidence float64 `json:"min_confidence,omitempty"`
}

// Result is everything a run produced. Every item that entered the pipeline
// appears in exactly one of Accepted, Quarantined or Discarded.
type Result struct {
	RunID       string               `json:"run_id"`
	Stats       stats.ScanStatistics `json:"stats"`
	Queries     []string             `json:"queries"`
	Accepted    []mention.Item       `json:"accepted"`
	Quarantined []quarantine.Record  `json:"quarantined"`
	Discarded   []mention.Item       `json:"discarded"`
}
