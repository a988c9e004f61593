package simulation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/mention-sentinel/internal/config"
	"github.com/raaihank/mention-sentinel/internal/logger"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	clock := func() time.Time { return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC) }
	d, err := New(config.DefaultPipelineConfig().Simulation, logger.NewNop(), WithClock(clock))
	require.NoError(t, err)
	return d
}

func TestNewRequiresKeywords(t *testing.T) {
	_, err := New(config.SimulationConfig{}, logger.NewNop())
	assert.Error(t, err)
}

func TestDetect(t *testing.T) {
	d := newTestDetector(t)

	tests := []struct {
		name     string
		content  string
		platform string
		url      string
		accepted bool
		kind     ReasonKind
	}{
		{
			name:     "banned platform wins over relevance",
			content:  "this is mock content about Acme",
			platform: "Enhanced Intelligence",
			kind:     ReasonBannedPlatform,
		},
		{
			name:     "banned platform ignores case and padding",
			content:  "Jane Smith spoke at the council on reddit",
			platform: "  mock   SCANNER ",
			kind:     ReasonBannedPlatform,
		},
		{
			name:     "banned keyword substring",
			content:  "Breaking: LOREM IPSUM dolor sit amet",
			platform: "uk_news",
			kind:     ReasonBannedKeyword,
		},
		{
			name:     "template phrase",
			content:  "Advanced AI analysis for Target Entity complete",
			platform: "rss",
			kind:     ReasonBannedKeyword,
		},
		{
			name:     "no live indicators",
			content:  "Jane Smith spoke at the council meeting",
			platform: "forum",
			kind:     ReasonNoLiveIndicator,
		},
		{
			name:     "platform name is a live indicator",
			content:  "Jane Smith spoke at the council meeting",
			platform: "uk_news",
			accepted: true,
		},
		{
			name:     "url domain is a live indicator",
			content:  "Jane Smith spoke at the council meeting",
			platform: "forum",
			url:      "https://www.heraldscotland.com/a/1",
			accepted: true,
		},
		{
			name:     "recency phrase",
			content:  "Jane Smith posted 3 hours ago",
			platform: "forum",
			accepted: true,
		},
		{
			name:     "current year",
			content:  "Jane Smith annual report 2025",
			platform: "forum",
			accepted: true,
		},
		{
			name:     "stale year is not live",
			content:  "Jane Smith annual report 1998",
			platform: "forum",
			kind:     ReasonNoLiveIndicator,
		},
		{
			name:     "short content skips liveness",
			content:  "hi jane",
			platform: "forum",
			accepted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := d.Detect(tt.content, tt.platform, tt.url)
			assert.Equal(t, tt.accepted, v.Accepted)
			assert.Equal(t, tt.kind, v.Kind)
			if !tt.accepted {
				assert.NotEmpty(t, v.Reason)
			}
		})
	}
}

func TestDetectReasons(t *testing.T) {
	d := newTestDetector(t)

	v := d.Detect("mock test sample placeholder entity", "Enhanced Intelligence", "")
	assert.Equal(t, "banned platform: Enhanced Intelligence", v.Reason)

	v = d.Detect("mock test sample placeholder entity", "uk_news", "")
	assert.Equal(t, "banned keyword detected: mock", v.Reason)

	v = d.Detect("Jane Smith spoke at the council meeting", "forum", "")
	assert.Equal(t, "lacks live indicators", v.Reason)
}

func TestCheckURL(t *testing.T) {
	d := newTestDetector(t)

	tests := []struct {
		name     string
		url      string
		accepted bool
		kind     ReasonKind
	}{
		{name: "valid", url: "https://www.bbc.co.uk/news/articles/1", accepted: true},
		{name: "empty", url: "  ", kind: ReasonMissingURL},
		{name: "scheme-less host", url: "www.bbc.co.uk/news/articles/1", accepted: true},
		{name: "scheme-less word", url: "n/a", kind: ReasonInvalidURL},
		{name: "relative", url: "/news/1", kind: ReasonInvalidURL},
		{name: "unsupported scheme", url: "ftp://files.bbc.co.uk/a", kind: ReasonInvalidURL},
		{name: "banned keyword in url", url: "https://mock-news.io/a", kind: ReasonBannedKeyword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := d.CheckURL(tt.url)
			assert.Equal(t, tt.accepted, v.Accepted)
			assert.Equal(t, tt.kind, v.Kind)
			if tt.accepted {
				assert.Equal(t, "www.bbc.co.uk", v.Indicator)
			}
		})
	}
}
