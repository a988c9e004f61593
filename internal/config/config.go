package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Loader reads configuration from file and environment variables.
// Each Loader owns its own viper instance so that tests and commands never
// share ambient configuration state.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader for the given config file path. An empty path
// searches the default locations.
func NewLoader(configPath string) *Loader {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/mention-sentinel/")
	v.AddConfigPath("$HOME/.mention-sentinel/")

	// Environment variable overrides
	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

// Load reads the config file (if any), merges it over the defaults and validates the result
func (l *Loader) Load() (*Config, error) {
	config := GetDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Watch starts watching the configuration file for changes. Invalid
// configurations are reported to onError and never reach callback.
func (l *Loader) Watch(callback func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := l.v.Unmarshal(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("failed to unmarshal changed config %s: %w", e.Name, err))
			}
			return
		}

		if err := validateConfig(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("changed config %s rejected: %w", e.Name, err))
			}
			return
		}

		callback(newConfig)
	})
	l.v.WatchConfig()
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if err := ValidatePipeline(config.Pipeline); err != nil {
		return err
	}

	seen := make(map[string]bool, len(config.Adapters))
	for i, adapter := range config.Adapters {
		if strings.TrimSpace(adapter.Name) == "" {
			return fmt.Errorf("adapter %d has no name", i)
		}
		if seen[adapter.Name] {
			return fmt.Errorf("duplicate adapter name: %s", adapter.Name)
		}
		seen[adapter.Name] = true

		if adapter.Type != "replay" {
			return fmt.Errorf("adapter %s: unsupported type %q (must be replay)", adapter.Name, adapter.Type)
		}
		if adapter.Path == "" {
			return fmt.Errorf("adapter %s: path is required", adapter.Name)
		}
	}

	if config.Database.Enabled && config.Database.DatabaseURL == "" {
		return fmt.Errorf("database enabled but database_url is empty")
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("cache enabled but redis_url is empty")
	}

	if config.WebSocket.Enabled && !strings.HasPrefix(config.WebSocket.Path, "/") {
		return fmt.Errorf("invalid websocket path: %q (must start with /)", config.WebSocket.Path)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// ValidatePipeline checks the enforcement settings of a PipelineConfig
func ValidatePipeline(p PipelineConfig) error {
	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		return fmt.Errorf("invalid min_confidence: %.2f (must be within [0,1])", p.MinConfidence)
	}

	if p.AdapterTimeout <= 0 {
		return fmt.Errorf("invalid adapter_timeout: %s", p.AdapterTimeout)
	}

	if p.MaxConcurrentAdapters < 1 {
		return fmt.Errorf("invalid max_concurrent_adapters: %d", p.MaxConcurrentAdapters)
	}

	if p.AdapterRateLimit < 0 {
		return fmt.Errorf("invalid adapter_rate_limit: %.2f", p.AdapterRateLimit)
	}

	if p.AdapterRateLimit > 0 && p.AdapterBurst < 1 {
		return fmt.Errorf("adapter_burst must be at least 1 when rate limiting is enabled")
	}

	if len(p.Simulation.BannedKeywords) == 0 {
		return fmt.Errorf("simulation.banned_keywords must not be empty")
	}

	if p.Simulation.LivenessMinLength < 0 {
		return fmt.Errorf("invalid simulation.liveness_min_length: %d", p.Simulation.LivenessMinLength)
	}

	if p.Simulation.DateWindowYears < 0 {
		return fmt.Errorf("invalid simulation.date_window_years: %d", p.Simulation.DateWindowYears)
	}

	return nil
}
