// Package similarity scores how alike two product name strings are.
//
// Receipt OCR and hand entry produce many near-duplicate spellings of the
// same product; the grouping engine uses these scores to propose merges.
package similarity

import (
	"strings"
	"unicode"
)

// Score computes a similarity score in [0, 1] between two product names.
// Rules are applied in priority order; the first matching rule wins:
//
//  1. Case-insensitive, whitespace-trimmed exact match scores 1.0.
//  2. One name containing the other scores 0.8.
//  3. Shared whitespace-separated tokens score common/max(token counts).
//  4. Otherwise, normalized Levenshtein distance.
//
// Deterministic and symmetric. No side effects.
func Score(a, b string) float64 {
	na := normalize(a)
	nb := normalize(b)

	if na == nb {
		return 1.0
	}

	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.8
	}

	tokensA := tokenize(na)
	tokensB := tokenize(nb)
	if common := commonTokens(tokensA, tokensB); common > 0 {
		total := len(tokensA)
		if len(tokensB) > total {
			total = len(tokensB)
		}
		return float64(common) / float64(total)
	}

	lenA := len([]rune(na))
	lenB := len([]rune(nb))
	maxLen := lenA
	if lenB > maxLen {
		maxLen = lenB
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(na, nb))/float64(maxLen)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// tokenize splits a normalized name on whitespace and trims punctuation from
// token edges, so "3%" and "3" compare equal. Tokens that are pure
// punctuation are kept as-is rather than dropped.
func tokenize(s string) []string {
	tokens := strings.Fields(s)
	for i, t := range tokens {
		trimmed := strings.TrimFunc(t, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if trimmed != "" {
			tokens[i] = trimmed
		}
	}
	return tokens
}

// commonTokens counts the multiset intersection of a and b: a token repeated
// in both sides counts min(occurrences), so the result is symmetric.
func commonTokens(a, b []string) int {
	countB := make(map[string]int, len(b))
	for _, t := range b {
		countB[t]++
	}

	common := 0
	for _, t := range a {
		if countB[t] > 0 {
			countB[t]--
			common++
		}
	}
	return common
}

// levenshtein computes the classic dynamic-programming edit distance with
// unit cost for insert, delete, and substitute.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			curr[j] = min3(
				prev[j]+1,      // delete
				curr[j-1]+1,    // insert
				prev[j-1]+cost, // substitute
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
