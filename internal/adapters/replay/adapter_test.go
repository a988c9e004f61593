package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/mention-sentinel/internal/config"
	"github.com/raaihank/mention-sentinel/internal/logger"
	"github.com/raaihank/mention-sentinel/internal/mention"
	"github.com/raaihank/mention-sentinel/internal/pipeline"
)

var fixtures = []Record{
	{Platform: "uk_news", Content: "Jane Smith faces fraud allegations in Glasgow", URL: "https://www.bbc.co.uk/news/1", SourceType: "news", Severity: "high", Sentiment: -0.7},
	{Platform: "Enhanced Intelligence", Content: "mock test sample placeholder entity", URL: "https://intel.io/1"},
	{Content: "Markets rallied on Tuesday as oil prices eased", URL: "https://www.reuters.com/markets/1"},
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newAdapter(t *testing.T, path string) *Adapter {
	t.Helper()
	a, err := New(config.AdapterConfig{Name: "replay", Type: "replay", Path: path, Platform: "rss", Enabled: true}, logger.NewNop())
	require.NoError(t, err)
	return a
}

func assertFixtures(t *testing.T, items []mention.RawItem) {
	t.Helper()
	require.Len(t, items, 3)
	assert.Equal(t, "uk_news", items[0].Platform)
	assert.Equal(t, mention.Severity("high"), items[0].Severity)
	assert.Equal(t, -0.7, items[0].Sentiment)
	assert.Equal(t, "Enhanced Intelligence", items[1].Platform)
	assert.Equal(t, "rss", items[2].Platform, "default platform fills blanks")
}

func TestDetectFileFormat(t *testing.T) {
	tests := map[string]FileFormat{
		"a.csv":        FormatCSV,
		"b.PARQUET":    FormatParquet,
		"c.jsonl":      FormatJSON,
		"d.ndjson":     FormatJSON,
		"dir/e.json":   FormatJSON,
		"f.txt":        "",
		"no-extension": "",
	}
	for name, want := range tests {
		got, ok := DetectFileFormat(name)
		assert.Equal(t, want, got, name)
		assert.Equal(t, want != "", ok, name)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(config.AdapterConfig{Name: "x", Path: "items.txt"}, logger.NewNop())
	assert.Error(t, err)
}

func TestFetchCSV(t *testing.T) {
	path := writeFile(t, "items.csv", `content,platform,url,source_type,severity,sentiment
"Jane Smith faces fraud allegations in Glasgow",uk_news,https://www.bbc.co.uk/news/1,news,high,-0.7
mock test sample placeholder entity,Enhanced Intelligence,https://intel.io/1,,,
Markets rallied on Tuesday as oil prices eased,,https://www.reuters.com/markets/1,,,
`)

	items, err := newAdapter(t, path).Fetch(context.Background(), "Jane Smith", []string{"Jane Smith"})
	require.NoError(t, err)
	assertFixtures(t, items)
}

func TestFetchCSVRequiresContentColumn(t *testing.T) {
	path := writeFile(t, "items.csv", "text,platform\nhello,rss\n")
	_, err := newAdapter(t, path).Fetch(context.Background(), "Jane Smith", nil)
	assert.Error(t, err)
}

func TestFetchJSONLines(t *testing.T) {
	path := writeFile(t, "items.jsonl", `{"platform":"uk_news","content":"Jane Smith faces fraud allegations in Glasgow","url":"https://www.bbc.co.uk/news/1","source_type":"news","severity":"high","sentiment":-0.7}
{"platform":"Enhanced Intelligence","content":"mock test sample placeholder entity","url":"https://intel.io/1"}
{"content":"Markets rallied on Tuesday as oil prices eased","url":"https://www.reuters.com/markets/1"}
`)

	items, err := newAdapter(t, path).Fetch(context.Background(), "Jane Smith", nil)
	require.NoError(t, err)
	assertFixtures(t, items)
}

func TestFetchJSONArray(t *testing.T) {
	path := writeFile(t, "items.json", `
[
  {"platform":"uk_news","content":"Jane Smith faces fraud allegations in Glasgow","url":"https://www.bbc.co.uk/news/1","source_type":"news","severity":"high","sentiment":-0.7},
  {"platform":"Enhanced Intelligence","content":"mock test sample placeholder entity","url":"https://intel.io/1"},
  {"content":"Markets rallied on Tuesday as oil prices eased","url":"https://www.reuters.com/markets/1"}
]
`)

	items, err := newAdapter(t, path).Fetch(context.Background(), "Jane Smith", nil)
	require.NoError(t, err)
	assertFixtures(t, items)

	empty := writeFile(t, "empty.json", "[]")
	items, err = newAdapter(t, empty).Fetch(context.Background(), "Jane Smith", nil)
	require.NoError(t, err)
	assert.Empty(t, items)

	broken := writeFile(t, "broken.json", `[{"content":"Jane Smith"}`)
	_, err = newAdapter(t, broken).Fetch(context.Background(), "Jane Smith", nil)
	assert.Error(t, err)
}

func TestFetchParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := parquet.NewGenericWriter[Record](f)
	_, err = w.Write(fixtures)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	items, err := newAdapter(t, path).Fetch(context.Background(), "Jane Smith", nil)
	require.NoError(t, err)
	assertFixtures(t, items)
}

func TestFetchMissingFile(t *testing.T) {
	_, err := newAdapter(t, filepath.Join(t.TempDir(), "gone.csv")).Fetch(context.Background(), "Jane Smith", nil)
	assert.Error(t, err)
}

func TestReplayThroughPipeline(t *testing.T) {
	path := writeFile(t, "items.jsonl", `{"platform":"uk_news","content":"Jane Smith faces fraud allegations in Glasgow","url":"https://www.bbc.co.uk/news/1"}
{"platform":"Enhanced Intelligence","content":"mock test sample placeholder entity","url":"https://intel.io/1"}
{"platform":"uk_news","content":"Markets rallied on Tuesday as oil prices eased","url":"https://www.reuters.com/markets/1"}
`)

	o, err := pipeline.New(config.DefaultPipelineConfig(), []pipeline.Adapter{newAdapter(t, path)}, logger.NewNop())
	require.NoError(t, err)

	res, err := o.Run(context.Background(), pipeline.Request{EntityName: "Jane Smith"})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Stats.Total)
	assert.Equal(t, 1, res.Stats.Accepted)
	assert.Equal(t, 1, res.Stats.Quarantined)
	assert.Equal(t, 1, res.Stats.Discarded)
}

func TestFromConfigSkipsDisabled(t *testing.T) {
	adapters, err := FromConfig([]config.AdapterConfig{
		{Name: "on", Type: "replay", Path: "a.csv", Enabled: true},
		{Name: "off", Type: "replay", Path: "b.csv", Enabled: false},
	}, logger.NewNop())
	require.NoError(t, err)
	require.Len(t, adapters, 1)
	assert.Equal(t, "on", adapters[0].Name())
}
