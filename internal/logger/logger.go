package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/raaihank/mention-sentinel/internal/stats"
)

// Logger wraps zap.Logger with additional functionality
type Logger struct {
	*zap.Logger
}

// Config contains logger configuration
type Config struct {
	Level  string
	Format string // json or console
	File   *FileConfig
}

// FileConfig contains file logging configuration
type FileConfig struct {
	Enabled bool
	Path    string
}

// New creates a new logger instance
func New(config Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	var encoderConfig zapcore.EncoderConfig
	if config.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var encoder zapcore.Encoder
	if config.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level),
	}

	if config.File != nil && config.File.Enabled {
		file, err := os.OpenFile(config.File.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}

		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(file),
			level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return &Logger{Logger: logger}, nil
}

// Wrap adapts an existing zap logger, mostly for tests
func Wrap(l *zap.Logger) *Logger {
	return &Logger{Logger: l}
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// WithComponent adds a component name to the logger context
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("component", component))}
}

// WithRunID adds a scan run ID to the logger context
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("run_id", runID))}
}

// WithEntity adds the tracked entity name to the logger context
func (l *Logger) WithEntity(entityName string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("entity", entityName))}
}

// WithAdapter adds a source adapter name to the logger context
func (l *Logger) WithAdapter(adapter string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("adapter", adapter))}
}

// WithRequestID adds an HTTP request ID to the logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("request_id", requestID))}
}

// LogScanStatistics logs the end-of-run summary for one entity
func (l *Logger) LogScanStatistics(s stats.ScanStatistics) {
	queries := s.Queries
	if len(queries) > 5 {
		queries = queries[:5]
	}

	l.Info("Scan statistics",
		zap.String("run_id", s.RunID),
		zap.String("entity", s.EntityName),
		zap.Int("query_count", len(s.Queries)),
		zap.Strings("queries_sample", queries),
		zap.Int("total", s.Total),
		zap.Int("matched", s.Matched),
		zap.Int("accepted", s.Accepted),
		zap.Int("quarantined", s.Quarantined),
		zap.Int("discarded", s.Discarded),
		zap.Float64("precision_rate", s.PrecisionRate()),
		zap.Any("confidence_breakdown", s.ConfidenceBreakdown),
		zap.Any("discard_reasons", s.DiscardReasons),
		zap.Any("quarantine_reasons", s.QuarantineReasons),
		zap.Int("adapters_succeeded", s.AdaptersSucceeded),
		zap.Any("adapter_failures", s.AdapterFailures),
		zap.Duration("duration", s.Duration),
	)

	if len(s.AdapterFailures) > 0 {
		l.Warn("Scan completed with adapter failures",
			zap.String("run_id", s.RunID),
			zap.Int("failed_adapters", len(s.AdapterFailures)),
		)
	}
}
