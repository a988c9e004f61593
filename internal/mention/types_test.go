package mention

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/mention-sentinel/internal/entity"
)

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity(" HIGH ")
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, sev)

	sev, err = ParseSeverity("")
	require.NoError(t, err)
	assert.Equal(t, SeverityUnknown, sev)

	_, err = ParseSeverity("catastrophic")
	assert.Error(t, err)
	assert.Equal(t, SeverityUnknown, NormalizeSeverity("catastrophic"))
}

func TestParseStage(t *testing.T) {
	stage, err := ParseStage("Deployment")
	require.NoError(t, err)
	assert.Equal(t, StageDeployment, stage)

	_, err = ParseStage("review")
	assert.Error(t, err)
}

func TestRawItemNormalize(t *testing.T) {
	raw := RawItem{
		Platform:   "  reddit ",
		URL:        " https://reddit.com/r/glasgow/1 ",
		SourceType: " Social ",
		Severity:   "bogus",
		Sentiment:  -4.2,
	}

	got := raw.Normalize()
	assert.Equal(t, "reddit", got.Platform)
	assert.Equal(t, "https://reddit.com/r/glasgow/1", got.URL)
	assert.Equal(t, "social", got.SourceType)
	assert.Equal(t, SeverityUnknown, got.Severity)
	assert.Equal(t, -1.0, got.Sentiment)

	assert.Equal(t, 0.0, RawItem{Sentiment: math.NaN()}.Normalize().Sentiment)
}

func TestNewItem(t *testing.T) {
	item := NewItem("replay", RawItem{Content: "x", Severity: "Medium"})
	assert.Equal(t, StageApproval, item.Stage)
	assert.Equal(t, SeverityMedium, item.Severity)
	assert.False(t, item.Terminal())
}

func TestSnapshotIsIndependent(t *testing.T) {
	item := NewItem("replay", RawItem{Content: "x"})
	item.Match = &entity.Match{ContextKeywords: []string{"fraud"}}
	item.RiskTerms = []string{"fraud"}

	snap := item.Snapshot()
	item.Match.ContextKeywords[0] = "changed"
	item.RiskTerms[0] = "changed"
	item.Match.ConfidenceScore = 0.1

	assert.Equal(t, "fraud", snap.Match.ContextKeywords[0])
	assert.Equal(t, "fraud", snap.RiskTerms[0])
	assert.Equal(t, 0.0, snap.Match.ConfidenceScore)
}
