package simulation

// ReasonKind classifies why content was rejected as synthetic
type ReasonKind string

const (
	ReasonNone            ReasonKind = ""
	ReasonBannedPlatform  ReasonKind = "banned_platform"
	ReasonBannedKeyword   ReasonKind = "banned_keyword"
	ReasonNoLiveIndicator ReasonKind = "lacks_live_indicators"
	ReasonEmptyContent    ReasonKind = "empty_content"
	ReasonMissingURL      ReasonKind = "missing_url"
	ReasonInvalidURL      ReasonKind = "invalid_url"
)

// Verdict is the accept/reject outcome of a simulation check
type Verdict struct {
	Accepted bool       `json:"accepted"`
	Kind     ReasonKind `json:"kind,omitempty"`
	Reason   string     `json:"reason,omitempty"`
	// Indicator is the keyword, platform or liveness signal that decided the verdict
	Indicator string `json:"indicator,omitempty"`
}

// Accept returns an accepting verdict
func Accept(indicator string) Verdict {
	return Verdict{Accepted: true, Indicator: indicator}
}

// Reject returns a rejecting verdict
func Reject(kind ReasonKind, reason, indicator string) Verdict {
	return Verdict{Accepted: false, Kind: kind, Reason: reason, Indicator: indicator}
}
