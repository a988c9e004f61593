package quarantine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raaihank/mention-sentinel/internal/mention"
	"github.com/raaihank/mention-sentinel/internal/simulation"
)

// Record is an item held back by the compliance gate
type Record struct {
	ID          string                `json:"id" db:"id"`
	RunID       string                `json:"run_id" db:"run_id"`
	EntityName  string                `json:"entity_name" db:"entity_name"`
	Adapter     string                `json:"adapter" db:"adapter"`
	Item        mention.Item          `json:"item" db:"-"`
	FailedStage mention.Stage         `json:"failed_stage" db:"failed_stage"`
	Kind        simulation.ReasonKind `json:"kind" db:"kind"`
	Reason      string                `json:"reason" db:"reason"`
	Timestamp   time.Time             `json:"timestamp" db:"created_at"`
}

// NewRecord snapshots an item that failed at the given stage
func NewRecord(runID, entityName string, item *mention.Item, stage mention.Stage, kind simulation.ReasonKind, reason string) Record {
	return Record{
		ID:          uuid.NewString(),
		RunID:       runID,
		EntityName:  entityName,
		Adapter:     item.Adapter,
		Item:        item.Snapshot(),
		FailedStage: stage,
		Kind:        kind,
		Reason:      reason,
		Timestamp:   time.Now().UTC(),
	}
}

// Filter narrows a quarantine listing
type Filter struct {
	EntityName string
	Stage      mention.Stage
	Limit      int
}

func (f Filter) matches(r Record) bool {
	if f.EntityName != "" && r.EntityName != f.EntityName {
		return false
	}
	if f.Stage != "" && r.FailedStage != f.Stage {
		return false
	}
	return true
}

// MemoryStore is an append-only in-memory quarantine safe for concurrent use.
// Records are never removed.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore creates an empty in-memory quarantine
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends a quarantine record
func (s *MemoryStore) Record(_ context.Context, r Record) error {
	s.mu.Lock()
	s.records = append(s.records, r)
	s.mu.Unlock()
	return nil
}

// List returns records matching the filter, newest first
func (s *MemoryStore) List(_ context.Context, f Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for i := len(s.records) - 1; i >= 0; i-- {
		if !f.matches(s.records[i]) {
			continue
		}
		out = append(out, s.records[i])
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of records held
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
