package entity

// ExpandQueries turns a fingerprint into the deduplicated, ordered list of
// search queries handed to source adapters. It is a pure function.
func ExpandQueries(fp *Fingerprint) []string {
	if fp == nil {
		return nil
	}

	name := fp.EntityName
	quoted := quote(name)

	queries := []string{name, quoted}

	for _, group := range [][]string{fp.BusinessContexts, fp.LocationContexts, fp.NegativeKeywords} {
		for _, term := range group {
			queries = append(queries,
				quoted+" "+term,
				quoted+" "+quote(term),
			)
		}
	}

	for _, alias := range fp.AliasVariations {
		queries = append(queries, quote(alias))
	}

	queries = append(queries, fp.SocialHandles...)

	return dedupe(queries)
}

func quote(s string) string {
	return `"` + s + `"`
}
