package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raaihank/mention-sentinel/internal/config"
	"github.com/raaihank/mention-sentinel/internal/logger"
	"github.com/raaihank/mention-sentinel/internal/quarantine"
	"github.com/raaihank/mention-sentinel/internal/stats"
)

// ErrReportNotFound is returned when no run report is cached for an entity
var ErrReportNotFound = errors.New("no cached report for entity")

const opTimeout = 2 * time.Second

// ReportCache keeps the latest run statistics per entity in Redis, along
// with a bounded history and running quarantine counters. It implements the
// pipeline Observer contract.
type ReportCache struct {
	client *redis.Client
	config config.CacheConfig
	logger *logger.Logger
}

// New creates a Redis-backed report cache
func New(cfg config.CacheConfig, log *logger.Logger) (*ReportCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.MaxConnections
	opts.MinIdleConns = cfg.MinIdleConns

	rc := &ReportCache{
		client: redis.NewClient(opts),
		config: cfg,
		logger: log.WithComponent("cache"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rc.client.Ping(ctx).Err(); err != nil {
		_ = rc.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	rc.logger.Info("Report cache initialized",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Int("max_connections", cfg.MaxConnections),
		zap.Duration("report_ttl", cfg.ReportTTL))

	return rc, nil
}

// OnRunComplete stores the run as the entity's latest report and prepends it to the history
func (rc *ReportCache) OnRunComplete(ctx context.Context, s stats.ScanStatistics) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := rc.StoreReport(ctx, s); err != nil {
		rc.logger.Warn("Failed to cache run report", zap.Error(err), zap.String("run_id", s.RunID))
	}
}

// OnQuarantine bumps the entity's quarantine counter for the record's reason kind
func (rc *ReportCache) OnQuarantine(ctx context.Context, r quarantine.Record) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := rc.key("quarantine", r.EntityName)
	pipe := rc.client.Pipeline()
	pipe.HIncrBy(ctx, key, string(r.Kind), 1)
	pipe.Expire(ctx, key, rc.config.ReportTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		rc.logger.Warn("Failed to count quarantine record", zap.Error(err), zap.String("record_id", r.ID))
	}
}

// StoreReport writes a run report
func (rc *ReportCache) StoreReport(ctx context.Context, s stats.ScanStatistics) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	latest := rc.key("report", s.EntityName)
	history := rc.key("history", s.EntityName)

	pipe := rc.client.TxPipeline()
	pipe.Set(ctx, latest, data, rc.config.ReportTTL)
	pipe.LPush(ctx, history, data)
	pipe.LTrim(ctx, history, 0, int64(rc.config.HistorySize-1))
	pipe.Expire(ctx, history, rc.config.ReportTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache report: %w", err)
	}

	rc.logger.Debug("Run report cached",
		zap.String("run_id", s.RunID),
		zap.String("entity", s.EntityName))

	return nil
}

// LatestReport returns the most recent run report for an entity
func (rc *ReportCache) LatestReport(ctx context.Context, entityName string) (*stats.ScanStatistics, error) {
	data, err := rc.client.Get(ctx, rc.key("report", entityName)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("report lookup failed: %w", err)
	}

	var s stats.ScanStatistics
	if err := json.Unmarshal(data, &s); err != nil {
		// drop the corrupted entry so the next run replaces it
		rc.client.Del(ctx, rc.key("report", entityName))
		return nil, fmt.Errorf("failed to unmarshal cached report: %w", err)
	}
	return &s, nil
}

// History returns up to limit previous reports, newest first
func (rc *ReportCache) History(ctx context.Context, entityName string, limit int) ([]stats.ScanStatistics, error) {
	if limit <= 0 || limit > rc.config.HistorySize {
		limit = rc.config.HistorySize
	}

	entries, err := rc.client.LRange(ctx, rc.key("history", entityName), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("history lookup failed: %w", err)
	}

	reports := make([]stats.ScanStatistics, 0, len(entries))
	for _, entry := range entries {
		var s stats.ScanStatistics
		if err := json.Unmarshal([]byte(entry), &s); err != nil {
			rc.logger.Warn("Skipping corrupted history entry", zap.Error(err))
			continue
		}
		reports = append(reports, s)
	}
	return reports, nil
}

// QuarantineCounts returns quarantine totals by reason kind for an entity
func (rc *ReportCache) QuarantineCounts(ctx context.Context, entityName string) (map[string]int64, error) {
	raw, err := rc.client.HGetAll(ctx, rc.key("quarantine", entityName)).Result()
	if err != nil {
		return nil, fmt.Errorf("quarantine counter lookup failed: %w", err)
	}

	counts := make(map[string]int64, len(raw))
	for kind, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		counts[kind] = n
	}
	return counts, nil
}

// DeleteReports removes everything cached for an entity
func (rc *ReportCache) DeleteReports(ctx context.Context, entityName string) error {
	keys := []string{
		rc.key("report", entityName),
		rc.key("history", entityName),
		rc.key("quarantine", entityName),
	}
	if err := rc.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cached reports: %w", err)
	}
	rc.logger.Info("Cached reports deleted", zap.String("entity", entityName))
	return nil
}

// Close closes the Redis connection
func (rc *ReportCache) Close() error {
	if rc.client != nil {
		return rc.client.Close()
	}
	return nil
}

// key builds a namespaced key from a hash of the normalized entity name
func (rc *ReportCache) key(kind, entityName string) string {
	return fmt.Sprintf("%s:%s:%s", rc.config.KeyPrefix, kind, entityKey(entityName))
}

func entityKey(entityName string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(entityName), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// maskRedisURL hides the password in a Redis URL for logging
func maskRedisURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), "***")
	return u.String()
}
