package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := GetDefaults()
	require.NoError(t, validateConfig(cfg))
	assert.Equal(t, 0.6, cfg.Pipeline.MinConfidence)
	assert.Contains(t, cfg.Pipeline.Simulation.BannedPlatforms, "Enhanced Intelligence")
	assert.Contains(t, cfg.Pipeline.Simulation.BannedKeywords, "lorem ipsum")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
pipeline:
  min_confidence: 0.4
  adapter_timeout: 5s
  max_concurrent_adapters: 2
adapters:
  - name: uk_news
    type: replay
    path: /data/uk_news.jsonl
    platform: uk_news
    enabled: true
logging:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 0.4, cfg.Pipeline.MinConfidence)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.AdapterTimeout)
	assert.Equal(t, 2, cfg.Pipeline.MaxConcurrentAdapters)
	require.Len(t, cfg.Adapters, 1)
	assert.Equal(t, "uk_news", cfg.Adapters[0].Name)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// untouched sections keep their defaults
	assert.NotEmpty(t, cfg.Pipeline.Simulation.BannedKeywords)
	assert.Equal(t, 10, cfg.Pipeline.Simulation.LivenessMinLength)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"threshold above one", func(c *Config) { c.Pipeline.MinConfidence = 1.5 }, "invalid min_confidence"},
		{"no adapter timeout", func(c *Config) { c.Pipeline.AdapterTimeout = 0 }, "invalid adapter_timeout"},
		{"no concurrency", func(c *Config) { c.Pipeline.MaxConcurrentAdapters = 0 }, "invalid max_concurrent_adapters"},
		{"empty keyword list", func(c *Config) { c.Pipeline.Simulation.BannedKeywords = nil }, "banned_keywords"},
		{"rate without burst", func(c *Config) {
			c.Pipeline.AdapterRateLimit = 2
			c.Pipeline.AdapterBurst = 0
		}, "adapter_burst"},
		{"duplicate adapter", func(c *Config) {
			c.Adapters = []AdapterConfig{
				{Name: "a", Type: "replay", Path: "x"},
				{Name: "a", Type: "replay", Path: "y"},
			}
		}, "duplicate adapter name"},
		{"unknown adapter type", func(c *Config) {
			c.Adapters = []AdapterConfig{{Name: "a", Type: "scraper", Path: "x"}}
		}, "unsupported type"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "invalid log level"},
		{"relative websocket path", func(c *Config) { c.WebSocket.Path = "ws" }, "invalid websocket path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaults()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	assert.Len(t, cfg.Adapters, 2)
	assert.Equal(t, []string{"glasgow", "scotland", "uk"}, cfg.Pipeline.Vocabulary.LocationContexts)
	assert.NotEmpty(t, cfg.Pipeline.Vocabulary.ContextualKeywords)
	assert.Equal(t, "/ws", cfg.WebSocket.Path)
}

func TestWatchReportsValidChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600))

	loader := NewLoader(path)
	_, err := loader.Load()
	require.NoError(t, err)

	changed := make(chan *Config, 4)
	loader.Watch(func(c *Config) { changed <- c }, nil)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0o600))

	// a truncating write may surface an intermediate event first
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Server.Port == 9191 {
				return
			}
		case <-deadline:
			t.Fatal("config change not observed")
		}
	}
}
