package entity

import (
	"strings"
)

// Normalize lowercases and trims candidate text before matching
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// MatchText scores text against a fingerprint. Layers are tried in strict
// priority order and the first layer that hits wins; a later layer never
// overrides an earlier one. It returns nil when no layer matches.
func MatchText(text string, fp *Fingerprint) *Match {
	if fp == nil {
		return nil
	}

	content := Normalize(text)
	if content == "" {
		return nil
	}

	// Layer 1: exact phrase
	for _, phrase := range fp.ExactPhrases {
		if strings.Contains(content, phrase) {
			return &Match{
				EntityName:      fp.EntityName,
				MatchedText:     phrase,
				MatchType:       MatchExact,
				ConfidenceScore: ConfidenceExact,
				MatchedAlias:    phrase,
			}
		}
	}

	// Layer 2: alias variation
	for _, alias := range fp.AliasVariations {
		if strings.Contains(content, alias) {
			return &Match{
				EntityName:      fp.EntityName,
				MatchedText:     alias,
				MatchType:       MatchAlias,
				ConfidenceScore: ConfidenceAlias,
				MatchedAlias:    alias,
			}
		}
	}

	// Layer 3: social handle, reported as alias
	for _, handle := range fp.SocialHandles {
		if strings.Contains(content, handle) {
			return &Match{
				EntityName:      fp.EntityName,
				MatchedText:     handle,
				MatchType:       MatchAlias,
				ConfidenceScore: ConfidenceHandle,
				MatchedAlias:    handle,
			}
		}
	}

	// Layer 4: name fragment plus business, location or negative context
	if containsAny(content, fp.nameTokens) {
		var keywords []string
		keywords = append(keywords, containedIn(content, fp.BusinessContexts)...)
		keywords = append(keywords, containedIn(content, fp.LocationContexts)...)
		keywords = append(keywords, containedIn(content, fp.NegativeKeywords)...)

		if len(keywords) > 0 {
			return &Match{
				EntityName:      fp.EntityName,
				MatchedText:     snippet(content, contextualSnippetLength),
				MatchType:       MatchContextual,
				ConfidenceScore: ConfidenceContextual,
				ContextKeywords: dedupe(keywords),
			}
		}
	}

	// Layer 5: whitespace-stripped name forms
	for _, fuzzy := range fp.FuzzyVariations {
		if strings.Contains(content, fuzzy) {
			return &Match{
				EntityName:      fp.EntityName,
				MatchedText:     fuzzy,
				MatchType:       MatchFuzzy,
				ConfidenceScore: ConfidenceFuzzy,
				MatchedAlias:    fuzzy,
			}
		}
	}

	return nil
}

// RiskTerms returns the contextual risk keywords present in text
func RiskTerms(text string, fp *Fingerprint) []string {
	if fp == nil {
		return nil
	}
	return containedIn(Normalize(text), fp.ContextualKeywords)
}

func containsAny(content string, terms []string) bool {
	for _, term := range terms {
		if term != "" && strings.Contains(content, term) {
			return true
		}
	}
	return false
}

func containedIn(content string, terms []string) []string {
	var found []string
	for _, term := range terms {
		if term != "" && strings.Contains(content, term) {
			found = append(found, term)
		}
	}
	return found
}

// snippet cuts s to at most n runes
func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
