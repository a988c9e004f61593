package replay

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/raaihank/mention-sentinel/internal/config"
	"github.com/raaihank/mention-sentinel/internal/logger"
	"github.com/raaihank/mention-sentinel/internal/mention"
)

// ctxCheckInterval is how many records are read between cancellation checks
const ctxCheckInterval = 256

// Adapter replays previously harvested items from a CSV, JSON (array or lines) or
// Parquet file. Every record in the file is returned on each Fetch; the
// pipeline decides relevance.
type Adapter struct {
	name     string
	path     string
	platform string
	format   FileFormat
	logger   *logger.Logger
}

// New creates a replay adapter from its config entry
func New(cfg config.AdapterConfig, log *logger.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, fmt.Errorf("replay adapter requires a name")
	}

	format, ok := DetectFileFormat(cfg.Path)
	if !ok {
		return nil, fmt.Errorf("adapter %s: unsupported file format: %s", cfg.Name, cfg.Path)
	}

	return &Adapter{
		name:     cfg.Name,
		path:     cfg.Path,
		platform: cfg.Platform,
		format:   format,
		logger:   log.WithAdapter(cfg.Name),
	}, nil
}

// FromConfig builds every enabled adapter
func FromConfig(adapters []config.AdapterConfig, log *logger.Logger) ([]*Adapter, error) {
	var out []*Adapter
	for _, cfg := range adapters {
		if !cfg.Enabled {
			continue
		}
		a, err := New(cfg, log)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Name returns the adapter name
func (a *Adapter) Name() string {
	return a.name
}

// Fetch reads the replay file
func (a *Adapter) Fetch(ctx context.Context, entityName string, queries []string) ([]mention.RawItem, error) {
	file, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	defer file.Close()

	var records []Record
	switch a.format {
	case FormatCSV:
		records, err = a.readCSV(ctx, file)
	case FormatParquet:
		records, err = a.readParquet(ctx, file)
	case FormatJSON:
		records, err = a.readJSON(ctx, file)
	}
	if err != nil {
		return nil, err
	}

	items := make([]mention.RawItem, 0, len(records))
	for _, r := range records {
		items = append(items, r.toRawItem(a.platform))
	}

	a.logger.Debug("Replay file read",
		zap.String("file", a.path),
		zap.String("format", string(a.format)),
		zap.String("entity", entityName),
		zap.Int("queries", len(queries)),
		zap.Int("items", len(items)))

	return items, nil
}

// readCSV reads a CSV file with a header row. Columns are matched by name;
// only content is required.
func (a *Adapter) readCSV(ctx context.Context, r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["content"]; !ok {
		return nil, fmt.Errorf("CSV header has no content column: %v", header)
	}

	field := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []Record
	for line := 2; ; line++ {
		if line%ctxCheckInterval == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			a.logger.Warn("Failed to read CSV record", zap.Int("line", line), zap.Error(err))
			continue
		}

		record := Record{
			Platform:   field(row, "platform"),
			Content:    field(row, "content"),
			URL:        field(row, "url"),
			SourceType: field(row, "source_type"),
			Severity:   field(row, "severity"),
		}
		if s := field(row, "sentiment"); s != "" {
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				record.Sentiment = v
			}
		}
		records = append(records, record)
	}

	return records, nil
}

// readParquet reads a Parquet file whose columns follow Record's tags
func (a *Adapter) readParquet(ctx context.Context, file *os.File) ([]Record, error) {
	reader := parquet.NewReader(file)
	defer reader.Close()

	var records []Record
	for i := 1; ; i++ {
		if i%ctxCheckInterval == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var record Record
		err := reader.Read(&record)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read Parquet record: %w", err)
		}
		records = append(records, record)
	}

	return records, nil
}

// readJSON reads either a top-level array of objects or one JSON object per line
func (a *Adapter) readJSON(ctx context.Context, r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	array, err := startsWithArray(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON file: %w", err)
	}

	decoder := json.NewDecoder(br)
	if array {
		if _, err := decoder.Token(); err != nil {
			return nil, fmt.Errorf("failed to read JSON array: %w", err)
		}
	}

	var records []Record
	for i := 1; ; i++ {
		if i%ctxCheckInterval == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if array && !decoder.More() {
			break
		}

		var record Record
		err := decoder.Decode(&record)
		if !array && errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// a syntax error leaves the decoder unusable
			return nil, fmt.Errorf("failed to read JSON record %d: %w", i, err)
		}
		records = append(records, record)
	}

	if array {
		if _, err := decoder.Token(); err != nil {
			return nil, fmt.Errorf("unterminated JSON array: %w", err)
		}
	}

	return records, nil
}

// startsWithArray reports whether the first non-space byte opens a JSON array
func startsWithArray(br *bufio.Reader) (bool, error) {
	for {
		b, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b == '[', br.UnreadByte()
	}
}
