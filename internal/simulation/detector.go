package simulation

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/mention-sentinel/internal/config"
	"github.com/raaihank/mention-sentinel/internal/logger"
)

var (
	yearPattern  = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	monthPattern = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec|january|february|march|april|june|july|august|september|october|november|december)\b`)
)

// Detector rejects synthetic, placeholder and mock content. It holds no
// mutable state after construction and is safe for concurrent use.
type Detector struct {
	bannedKeywords   []string
	bannedPlatforms  map[string]struct{}
	domainIndicators []string
	recencyPhrases   []string
	platformNames    []string
	minLength        int
	dateWindow       int
	now              func() time.Time
	logger           *logger.Logger
}

// Option customizes a Detector
type Option func(*Detector)

// WithClock overrides the clock used to judge whether a year looks current
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// New creates a new simulation detector from the enforcement config
func New(cfg config.SimulationConfig, log *logger.Logger, opts ...Option) (*Detector, error) {
	if len(cfg.BannedKeywords) == 0 {
		return nil, fmt.Errorf("no banned keywords configured")
	}

	d := &Detector{
		bannedKeywords:   lowerAll(cfg.BannedKeywords),
		bannedPlatforms:  make(map[string]struct{}, len(cfg.BannedPlatforms)),
		domainIndicators: lowerAll(cfg.DomainIndicators),
		recencyPhrases:   lowerAll(cfg.RecencyPhrases),
		platformNames:    lowerAll(cfg.PlatformNames),
		minLength:        cfg.LivenessMinLength,
		dateWindow:       cfg.DateWindowYears,
		now:              time.Now,
		logger:           log,
	}

	for _, platform := range cfg.BannedPlatforms {
		if p := normalizePlatform(platform); p != "" {
			d.bannedPlatforms[p] = struct{}{}
		}
	}

	for _, opt := range opts {
		opt(d)
	}

	log.Info("Simulation detector initialized",
		zap.Int("banned_keywords", len(d.bannedKeywords)),
		zap.Int("banned_platforms", len(d.bannedPlatforms)),
		zap.Int("liveness_min_length", d.minLength),
	)

	return d, nil
}

// Detect evaluates content from a platform. Platform denylist membership is
// checked first, then banned keywords, then liveness indicators for content
// longer than the configured minimum. url may be empty; when present it can
// supply liveness indicators.
func (d *Detector) Detect(content, platform, rawURL string) Verdict {
	if v := d.CheckPlatform(platform); !v.Accepted {
		d.logRejection(v, platform)
		return v
	}

	if v := d.CheckKeywords(content); !v.Accepted {
		d.logRejection(v, platform)
		return v
	}

	if len([]rune(strings.TrimSpace(content))) > d.minLength {
		indicator, ok := d.liveIndicator(content, platform, rawURL)
		if !ok {
			v := Reject(ReasonNoLiveIndicator, "lacks live indicators", "")
			d.logRejection(v, platform)
			return v
		}
		return Accept(indicator)
	}

	return Accept("")
}

// CheckPlatform rejects platforms on the denylist
func (d *Detector) CheckPlatform(platform string) Verdict {
	if _, banned := d.bannedPlatforms[normalizePlatform(platform)]; banned {
		return Reject(ReasonBannedPlatform, fmt.Sprintf("banned platform: %s", strings.TrimSpace(platform)), platform)
	}
	return Accept("")
}

// CheckKeywords rejects text containing any banned keyword as a case-insensitive substring
func (d *Detector) CheckKeywords(text string) Verdict {
	lower := strings.ToLower(text)
	for _, keyword := range d.bannedKeywords {
		if strings.Contains(lower, keyword) {
			return Reject(ReasonBannedKeyword, fmt.Sprintf("banned keyword detected: %s", keyword), keyword)
		}
	}
	return Accept("")
}

// CheckURL validates a source URL immediately before storage: it must name a
// host, over http(s) or without a scheme, and must not carry a banned keyword.
func (d *Detector) CheckURL(rawURL string) Verdict {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return Reject(ReasonMissingURL, "missing source url", "")
	}

	u, err := parseSourceURL(trimmed)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Reject(ReasonInvalidURL, fmt.Sprintf("invalid source url: %s", trimmed), trimmed)
	}

	if v := d.CheckKeywords(trimmed); !v.Accepted {
		v.Reason = "url " + v.Reason
		return v
	}

	return Accept(u.Host)
}

// parseSourceURL parses raw, reading a scheme-less "host/path" as https.
// A scheme-less host must contain a dot.
func parseSourceURL(raw string) (*url.URL, error) {
	if strings.Contains(raw, "://") || strings.HasPrefix(raw, "/") {
		return url.Parse(raw)
	}

	u, err := url.Parse("https://" + raw)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(u.Hostname(), ".") {
		return nil, fmt.Errorf("not a host: %s", raw)
	}
	return u, nil
}

// liveIndicator returns the first liveness signal found in content, url or platform
func (d *Detector) liveIndicator(content, platform, rawURL string) (string, bool) {
	lowerContent := strings.ToLower(content)
	lowerURL := strings.ToLower(rawURL)
	lowerPlatform := strings.ToLower(platform)

	for _, domain := range d.domainIndicators {
		if strings.Contains(lowerContent, domain) || strings.Contains(lowerURL, domain) {
			return domain, true
		}
	}

	for _, phrase := range d.recencyPhrases {
		if strings.Contains(lowerContent, phrase) {
			return phrase, true
		}
	}

	if year, ok := d.currentYear(lowerContent); ok {
		return year, true
	}

	if month := monthPattern.FindString(lowerContent); month != "" {
		return month, true
	}

	for _, name := range d.platformNames {
		if strings.Contains(lowerPlatform, name) || strings.Contains(lowerContent, name) {
			return name, true
		}
	}

	return "", false
}

// currentYear finds a year token within the configured window around now
func (d *Detector) currentYear(text string) (string, bool) {
	current := d.now().Year()
	for _, token := range yearPattern.FindAllString(text, -1) {
		year, err := strconv.Atoi(token)
		if err != nil {
			continue
		}
		if year >= current-d.dateWindow && year <= current+1 {
			return token, true
		}
	}
	return "", false
}

func (d *Detector) logRejection(v Verdict, platform string) {
	d.logger.Debug("Synthetic content rejected",
		zap.String("kind", string(v.Kind)),
		zap.String("indicator", v.Indicator),
		zap.String("platform", platform),
	)
}

func normalizePlatform(platform string) string {
	return strings.ToLower(strings.Join(strings.Fields(platform), " "))
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
