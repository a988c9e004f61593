package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/raaihank/mention-sentinel/internal/mention"
	"github.com/raaihank/mention-sentinel/internal/quarantine"
	"github.com/raaihank/mention-sentinel/internal/simulation"
)

// ResultRow is an accepted item as stored in scan_results
type ResultRow struct {
	ID              int64     `db:"id" json:"id"`
	ContentHash     string    `db:"content_hash" json:"content_hash"`
	EntityName      string    `db:"entity_name" json:"entity_name"`
	Adapter         string    `db:"adapter" json:"adapter"`
	Platform        string    `db:"platform" json:"platform"`
	Content         string    `db:"content" json:"content"`
	URL             string    `db:"url" json:"url"`
	SourceType      string    `db:"source_type" json:"source_type"`
	Severity        string    `db:"severity" json:"severity"`
	Sentiment       float64   `db:"sentiment" json:"sentiment"`
	MatchType       string    `db:"match_type" json:"match_type"`
	ConfidenceScore float64   `db:"confidence_score" json:"confidence_score"`
	MatchedText     string    `db:"matched_text" json:"matched_text"`
	RiskTerms       string    `db:"risk_terms" json:"risk_terms"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// newResultRow flattens an accepted item for insertion
func newResultRow(item *mention.Item) (*ResultRow, error) {
	if item.Match == nil {
		return nil, fmt.Errorf("accepted item from %s has no entity match", item.Adapter)
	}

	return &ResultRow{
		ContentHash:     contentHash(item.Match.EntityName, item.URL, item.Content),
		EntityName:      item.Match.EntityName,
		Adapter:         item.Adapter,
		Platform:        item.Platform,
		Content:         item.Content,
		URL:             item.URL,
		SourceType:      item.SourceType,
		Severity:        string(item.Severity),
		Sentiment:       item.Sentiment,
		MatchType:       string(item.Match.MatchType),
		ConfidenceScore: item.Match.ConfidenceScore,
		MatchedText:     item.Match.MatchedText,
		RiskTerms:       strings.Join(item.RiskTerms, ","),
	}, nil
}

// QuarantineRow is a quarantine record as stored in quarantine_records
type QuarantineRow struct {
	ID          string    `db:"id"`
	RunID       string    `db:"run_id"`
	EntityName  string    `db:"entity_name"`
	Adapter     string    `db:"adapter"`
	FailedStage string    `db:"failed_stage"`
	Kind        string    `db:"kind"`
	Reason      string    `db:"reason"`
	Item        string    `db:"item"`
	CreatedAt   time.Time `db:"created_at"`
}

func newQuarantineRow(r quarantine.Record) (*QuarantineRow, error) {
	item, err := json.Marshal(r.Item)
	if err != nil {
		return nil, fmt.Errorf("failed to encode quarantined item: %w", err)
	}

	return &QuarantineRow{
		ID:          r.ID,
		RunID:       r.RunID,
		EntityName:  r.EntityName,
		Adapter:     r.Adapter,
		FailedStage: string(r.FailedStage),
		Kind:        string(r.Kind),
		Reason:      r.Reason,
		Item:        string(item),
		CreatedAt:   r.Timestamp,
	}, nil
}

// toRecord validates a stored row at the boundary back into the pipeline
func (row *QuarantineRow) toRecord() (quarantine.Record, error) {
	stage, err := mention.ParseStage(row.FailedStage)
	if err != nil {
		return quarantine.Record{}, err
	}

	var item mention.Item
	if len(row.Item) > 0 {
		if err := json.Unmarshal([]byte(row.Item), &item); err != nil {
			return quarantine.Record{}, fmt.Errorf("failed to decode quarantined item: %w", err)
		}
	}

	return quarantine.Record{
		ID:          row.ID,
		RunID:       row.RunID,
		EntityName:  row.EntityName,
		Adapter:     row.Adapter,
		Item:        item,
		FailedStage: stage,
		Kind:        simulation.ReasonKind(row.Kind),
		Reason:      row.Reason,
		Timestamp:   row.CreatedAt,
	}, nil
}

// Stats summarizes what the store holds
type Stats struct {
	Results           int64            `json:"results"`
	Quarantined       int64            `json:"quarantined"`
	QuarantineByStage map[string]int64 `json:"quarantine_by_stage"`
}

// contentHash identifies an item per tracked entity so replays do not
// duplicate rows while one article can still be kept for several entities
func contentHash(entityName, url, content string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(entityName)) + "\x00" + url + "\x00" + content))
	return hex.EncodeToString(sum[:])
}
