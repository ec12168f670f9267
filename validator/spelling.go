package validator

import (
	"strings"

	"github.com/agext/levenshtein"

	"github.com/TFMV/influx-assist/lang"
)

var dictionary = buildDictionary()

func buildDictionary() []string {
	var words []string
	for _, kw := range lang.KeywordWords() {
		if len(kw) > 2 {
			words = append(words, kw)
		}
	}
	return append(words, lang.FunctionNames()...)
}

func spellingCandidates() []string {
	return dictionary
}

// maxDistance is the largest edit distance accepted as a typo of word.
// Short words only tolerate a single edit.
func maxDistance(word string) int {
	if len(word) <= 4 {
		return 1
	}
	return 2
}

// closestMatch returns the candidate nearest to word. Ties prefer the
// candidate closest in length, then dictionary order.
func closestMatch(word string, candidates []string) (string, bool) {
	upper := strings.ToUpper(word)
	limit := maxDistance(word)

	best, bestDist, bestDelta := "", limit+1, 0
	for _, c := range candidates {
		delta := abs(len(c) - len(upper))
		if delta > limit {
			continue
		}
		d := editDistance(upper, c)
		if d == 0 || d > limit {
			continue
		}
		if d < bestDist || (d == bestDist && delta < bestDelta) {
			best, bestDist, bestDelta = c, d, delta
		}
	}
	return best, best != ""
}

// editDistance is the Levenshtein distance, except that a single swap of
// adjacent characters counts as one edit.
func editDistance(a, b string) int {
	if isTransposition(a, b) {
		return 1
	}
	return levenshtein.Distance(a, b, nil)
}

func isTransposition(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	first := -1
	for i := 0; i < len(a); i++ {
		if a[i] == b[i] {
			continue
		}
		if first >= 0 {
			return i == first+1 && a[first] == b[i] && a[i] == b[first] && a[i+1:] == b[i+1:]
		}
		first = i
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
