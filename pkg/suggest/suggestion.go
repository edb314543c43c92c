// Package suggest is the prediction-serving core: it turns backend candidate
// scores into the ranked suggestion lists handed to the UI, applying
// personalization boosts, bounded top-K selection and request-level caching.
package suggest

import "sort"

// Suggestion is one ranked completion candidate. Two suggestions with the
// same Text are the same candidate regardless of score; deduplication during
// boosting relies on that.
type Suggestion struct {
	Text  string
	Score float64
}

// Before reports whether s ranks ahead of other: higher score first, then
// lexicographic text so equal scores order deterministically.
func (s Suggestion) Before(other Suggestion) bool {
	if s.Score != other.Score {
		return s.Score > other.Score
	}
	return s.Text < other.Text
}

// SortDescending orders items in place best-first under Suggestion.Before.
func SortDescending(items []Suggestion) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Before(items[j])
	})
}
