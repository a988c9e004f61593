package entity

import (
	"errors"
	"fmt"
)

// ErrEmptyEntityName is returned when a fingerprint is requested for a blank name
var ErrEmptyEntityName = errors.New("entity name is empty")

// MatchType identifies which confidence layer produced a match
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchAlias      MatchType = "alias"
	MatchContextual MatchType = "contextual"
	MatchFuzzy      MatchType = "fuzzy"
)

// Confidence weights per layer. Thresholding and statistics depend on these exact values.
const (
	ConfidenceExact      = 1.0
	ConfidenceAlias      = 0.85
	ConfidenceHandle     = 0.80
	ConfidenceContextual = 0.60
	ConfidenceFuzzy      = 0.40
)

// contextualSnippetLength bounds MatchedText for contextual matches
const contextualSnippetLength = 100

// ParseMatchType validates a match type coming from outside the process
func ParseMatchType(s string) (MatchType, error) {
	switch MatchType(s) {
	case MatchExact, MatchAlias, MatchContextual, MatchFuzzy:
		return MatchType(s), nil
	default:
		return "", fmt.Errorf("unknown match type: %q", s)
	}
}

// Fingerprint is the matching profile of one tracked entity. It is built once
// per scan cycle and shared read-only between adapter workers.
type Fingerprint struct {
	EntityName         string   `json:"entity_name"`
	ExactPhrases       []string `json:"exact_phrases"`
	AliasVariations    []string `json:"alias_variations"`
	SocialHandles      []string `json:"social_handles"`
	ContextualKeywords []string `json:"contextual_keywords"`
	BusinessContexts   []string `json:"business_contexts"`
	LocationContexts   []string `json:"location_contexts"`
	NegativeKeywords   []string `json:"negative_keywords"`
	FuzzyVariations    []string `json:"fuzzy_variations"`

	// first and last name tokens gate the contextual layer
	nameTokens []string
}

// Match is the outcome of scoring one text against a fingerprint
type Match struct {
	EntityName      string    `json:"entity_name"`
	MatchedText     string    `json:"matched_text"`
	MatchType       MatchType `json:"match_type"`
	ConfidenceScore float64   `json:"confidence_score"`
	MatchedAlias    string    `json:"matched_alias,omitempty"`
	ContextKeywords []string  `json:"context_keywords,omitempty"`
}
