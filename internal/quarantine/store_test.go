package quarantine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/mention-sentinel/internal/mention"
	"github.com/raaihank/mention-sentinel/internal/simulation"
)

func TestNewRecordSnapshotsItem(t *testing.T) {
	item := mention.NewItem("scanner", mention.RawItem{Platform: "Mock Scanner", Content: "fake"})
	item.RiskTerms = []string{"fraud"}

	r := NewRecord("run-1", "Jane Smith", item, mention.StageApproval, simulation.ReasonBannedPlatform, "banned platform: Mock Scanner")
	item.RiskTerms[0] = "changed"

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "scanner", r.Adapter)
	assert.Equal(t, mention.StageApproval, r.FailedStage)
	assert.Equal(t, "fraud", r.Item.RiskTerms[0])
	assert.False(t, r.Timestamp.IsZero())
}

func TestMemoryStoreConcurrentRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				item := mention.NewItem(fmt.Sprintf("adapter-%d", w), mention.RawItem{Content: "x"})
				assert.NoError(t, store.Record(ctx, NewRecord("run", "Jane Smith", item, mention.StageApproval, simulation.ReasonBannedKeyword, "banned")))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 400, store.Len())
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	item := mention.NewItem("a", mention.RawItem{Content: "x"})
	require.NoError(t, store.Record(ctx, NewRecord("r", "Jane Smith", item, mention.StageApproval, simulation.ReasonBannedKeyword, "first")))
	require.NoError(t, store.Record(ctx, NewRecord("r", "Jane Smith", item, mention.StageDeployment, simulation.ReasonMissingURL, "second")))
	require.NoError(t, store.Record(ctx, NewRecord("r", "John Doe", item, mention.StageApproval, simulation.ReasonBannedKeyword, "third")))

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Reason)

	jane, err := store.List(ctx, Filter{EntityName: "Jane Smith", Stage: mention.StageApproval})
	require.NoError(t, err)
	require.Len(t, jane, 1)
	assert.Equal(t, "first", jane[0].Reason)

	limited, err := store.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
