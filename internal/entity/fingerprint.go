package entity

import (
	"strings"
	"unicode/utf8"

	"github.com/raaihank/mention-sentinel/internal/config"
)

// Builder derives fingerprints from entity display names using a fixed risk vocabulary
type Builder struct {
	vocabulary config.VocabularyConfig
}

// NewBuilder creates a fingerprint builder. The vocabulary lists are
// lowercased and copied so later config changes cannot leak into fingerprints.
func NewBuilder(vocabulary config.VocabularyConfig) *Builder {
	return &Builder{
		vocabulary: config.VocabularyConfig{
			ContextualKeywords: normalizeList(vocabulary.ContextualKeywords),
			BusinessContexts:   normalizeList(vocabulary.BusinessContexts),
			LocationContexts:   normalizeList(vocabulary.LocationContexts),
			NegativeKeywords:   normalizeList(vocabulary.NegativeKeywords),
		},
	}
}

// Build creates the fingerprint for an entity name. A single-word name
// degenerates gracefully: first and last name are the same token.
func (b *Builder) Build(entityName string) (*Fingerprint, error) {
	name := strings.Join(strings.Fields(entityName), " ")
	if name == "" {
		return nil, ErrEmptyEntityName
	}

	lower := strings.ToLower(name)
	parts := strings.Fields(lower)
	first := parts[0]
	last := parts[len(parts)-1]
	stripped := strings.Join(parts, "")

	full, joined, underscored := first+" "+last, first+last, first+"_"+last
	if len(parts) == 1 {
		full, joined, underscored = first, first, first
	}

	fp := &Fingerprint{
		EntityName: name,
		ExactPhrases: dedupe([]string{
			lower,
			`"` + lower + `"`,
			"'" + lower + "'",
		}),
		AliasVariations: dedupe([]string{
			first + " " + initial(last) + ".",
			initial(first) + ". " + last,
			"mr. " + last,
			"mr " + last,
			full,
		}),
		SocialHandles: dedupe([]string{
			"@" + stripped,
			"@" + underscored,
			"@" + joined,
		}),
		ContextualKeywords: append([]string(nil), b.vocabulary.ContextualKeywords...),
		BusinessContexts:   append([]string(nil), b.vocabulary.BusinessContexts...),
		LocationContexts:   append([]string(nil), b.vocabulary.LocationContexts...),
		NegativeKeywords:   append([]string(nil), b.vocabulary.NegativeKeywords...),
		FuzzyVariations: dedupe([]string{
			stripped,
			joined,
		}),
		nameTokens: dedupe([]string{first, last}),
	}

	return fp, nil
}

// initial returns the first rune of s
func initial(s string) string {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return ""
	}
	return string(r)
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return dedupe(out)
}

// dedupe removes repeated values while keeping first-occurrence order
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
