package schema

import (
	"sort"
	"strings"
)

// MatchIdentifiers filters items to those containing input (case-insensitive)
// and orders them exact match first, then prefix matches, then substring
// matches by match position. Items of equal rank keep their input order.
func MatchIdentifiers(input string, items []string) []string {
	if input == "" {
		return items
	}

	lowerInput := strings.ToLower(input)

	type scoredItem struct {
		index int
		score int
	}

	var scored []scoredItem
	for i, item := range items {
		lowerItem := strings.ToLower(item)

		// lower score is a better match
		switch {
		case lowerItem == lowerInput:
			scored = append(scored, scoredItem{i, 0})
		case strings.HasPrefix(lowerItem, lowerInput):
			scored = append(scored, scoredItem{i, 1})
		case strings.Contains(lowerItem, lowerInput):
			scored = append(scored, scoredItem{i, 100 + strings.Index(lowerItem, lowerInput)})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score < scored[j].score
	})

	result := make([]string, 0, len(scored))
	for _, s := range scored {
		result = append(result, items[s.index])
	}
	return result
}
