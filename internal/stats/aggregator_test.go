package stats

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raaihank/mention-sentinel/internal/entity"
)

func TestAggregatorCounts(t *testing.T) {
	a := New("run-1", "Jane Smith")
	a.SetQueries([]string{"Jane Smith", `"Jane Smith"`})

	for i := 0; i < 4; i++ {
		a.RecordSeen()
	}
	a.RecordMatch(entity.MatchExact, true)
	a.RecordAccepted()
	a.RecordMatch(entity.MatchFuzzy, false)
	a.RecordDiscarded("confidence too low")
	a.RecordDiscarded("no entity match")
	a.RecordQuarantined("approval", "banned_platform")
	a.RecordAdapterSuccess()
	a.RecordAdapterFailure("slow", errors.New("context deadline exceeded"))

	s := a.Snapshot()
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Matched)
	assert.Equal(t, 1, s.Accepted)
	assert.Equal(t, 1, s.Quarantined)
	assert.Equal(t, 2, s.Discarded)
	assert.True(t, s.Consistent())
	assert.Equal(t, 0.25, s.PrecisionRate())
	assert.Equal(t, 1, s.ConfidenceBreakdown[entity.MatchFuzzy])
	assert.Equal(t, 1, s.QuarantineByStage["approval"])
	assert.Equal(t, "context deadline exceeded", s.AdapterFailures["slow"])
	assert.Len(t, s.Queries, 2)
}

func TestLowConfidenceHitIsNotMatched(t *testing.T) {
	a := New("run-1", "Jane Smith")
	a.RecordSeen()
	a.RecordMatch(entity.MatchFuzzy, false)
	a.RecordDiscarded("confidence too low")

	s := a.Snapshot()
	assert.Equal(t, 0, s.Matched)
	assert.Equal(t, 0.0, s.PrecisionRate())
	assert.Equal(t, 1, s.ConfidenceBreakdown[entity.MatchFuzzy])
	assert.True(t, s.Consistent())
}

func TestSnapshotIsACopy(t *testing.T) {
	a := New("run", "Jane Smith")
	a.RecordDiscarded("no entity match")

	s := a.Snapshot()
	s.DiscardReasons["no entity match"] = 99

	assert.Equal(t, 1, a.Snapshot().DiscardReasons["no entity match"])
}

func TestMerge(t *testing.T) {
	run := New("run", "Jane Smith")
	var wg sync.WaitGroup

	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := New("run", "Jane Smith")
			for i := 0; i < 20; i++ {
				local.RecordSeen()
				local.RecordMatch(entity.MatchAlias, true)
				local.RecordAccepted()
			}
			local.RecordAdapterSuccess()
			run.Merge(local)
		}()
	}
	wg.Wait()

	s := run.Snapshot()
	assert.Equal(t, 200, s.Total)
	assert.Equal(t, 200, s.Accepted)
	assert.Equal(t, 200, s.ConfidenceBreakdown[entity.MatchAlias])
	assert.Equal(t, 10, s.AdaptersSucceeded)
	assert.True(t, s.Consistent())
}

func TestSummary(t *testing.T) {
	a := New("run", "Jane Smith")
	for i := 0; i < 6; i++ {
		a.RecordSeen()
	}
	a.RecordAccepted()
	a.RecordAccepted()
	a.RecordQuarantined("approval", "banned_keyword")
	a.RecordQuarantined("approval", "banned_platform")
	a.RecordDiscarded("confidence too low")
	a.RecordDiscarded("no entity match")

	assert.Equal(t,
		"2 items accepted, 2 quarantined (banned_keyword: 1, banned_platform: 1), 1 discarded for low confidence, 1 discarded otherwise (no entity match: 1)",
		a.Snapshot().Summary(),
	)

	assert.Equal(t, "0 items accepted, 0 quarantined, 0 discarded for low confidence", New("r", "e").Snapshot().Summary())
}
