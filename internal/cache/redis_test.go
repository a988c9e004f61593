package cache

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/mention-sentinel/internal/config"
	"github.com/raaihank/mention-sentinel/internal/entity"
	"github.com/raaihank/mention-sentinel/internal/logger"
	"github.com/raaihank/mention-sentinel/internal/quarantine"
	"github.com/raaihank/mention-sentinel/internal/simulation"
	"github.com/raaihank/mention-sentinel/internal/stats"
)

func TestEntityKeyNormalizes(t *testing.T) {
	assert.Equal(t, entityKey("Jane Smith"), entityKey("  jane   SMITH "))
	assert.NotEqual(t, entityKey("Jane Smith"), entityKey("John Smith"))
	assert.Len(t, entityKey("Jane Smith"), 16)
}

func TestMaskRedisURL(t *testing.T) {
	assert.Equal(t, "redis://:***@localhost:6379/0", maskRedisURL("redis://:hunter2@localhost:6379/0"))
	assert.Equal(t, "redis://localhost:6379/0", maskRedisURL("redis://localhost:6379/0"))
}

// Runs against a real Redis when SENTINEL_TEST_REDIS_URL is set
func TestReportCacheIntegration(t *testing.T) {
	redisURL := os.Getenv("SENTINEL_TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("SENTINEL_TEST_REDIS_URL not set")
	}

	cfg := config.GetDefaults().Cache
	cfg.RedisURL = redisURL
	cfg.HistorySize = 2
	cfg.KeyPrefix = "mention-sentinel-test-" + uuid.NewString()

	rc, err := New(cfg, logger.NewNop())
	require.NoError(t, err)
	defer rc.Close()

	ctx := context.Background()
	entityName := "Jane Smith"
	defer func() { _ = rc.DeleteReports(ctx, entityName) }()

	_, err = rc.LatestReport(ctx, entityName)
	assert.ErrorIs(t, err, ErrReportNotFound)

	for i := 0; i < 3; i++ {
		agg := stats.New(uuid.NewString(), entityName)
		agg.RecordSeen()
		agg.RecordMatch(entity.MatchExact, true)
		agg.RecordAccepted()
		rc.OnRunComplete(ctx, agg.Snapshot())
	}

	latest, err := rc.LatestReport(ctx, entityName)
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Accepted)

	history, err := rc.History(ctx, entityName, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, latest.RunID, history[0].RunID)

	rc.OnQuarantine(ctx, quarantine.Record{ID: "r1", EntityName: entityName, Kind: simulation.ReasonBannedKeyword})
	rc.OnQuarantine(ctx, quarantine.Record{ID: "r2", EntityName: entityName, Kind: simulation.ReasonBannedKeyword})

	counts, err := rc.QuarantineCounts(ctx, entityName)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["banned_keyword"])
}
