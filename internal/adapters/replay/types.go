package replay

import (
	"path/filepath"
	"strings"

	"github.com/raaihank/mention-sentinel/internal/mention"
)

// Record is one previously harvested item as stored in a replay file
type Record struct {
	Platform   string  `csv:"platform" parquet:"platform" json:"platform"`
	Content    string  `csv:"content" parquet:"content" json:"content"`
	URL        string  `csv:"url" parquet:"url" json:"url"`
	SourceType string  `csv:"source_type" parquet:"source_type" json:"source_type"`
	Severity   string  `csv:"severity" parquet:"severity" json:"severity"`
	Sentiment  float64 `csv:"sentiment" parquet:"sentiment" json:"sentiment"`
}

func (r Record) toRawItem(defaultPlatform string) mention.RawItem {
	platform := strings.TrimSpace(r.Platform)
	if platform == "" {
		platform = defaultPlatform
	}
	return mention.RawItem{
		Platform:   platform,
		Content:    r.Content,
		URL:        r.URL,
		SourceType: r.SourceType,
		Severity:   mention.Severity(r.Severity),
		Sentiment:  r.Sentiment,
	}
}

// FileFormat represents supported replay file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "jsonl"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) (FileFormat, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, true
	case ".parquet":
		return FormatParquet, true
	case ".jsonl", ".ndjson", ".json":
		return FormatJSON, true
	default:
		return "", false
	}
}
