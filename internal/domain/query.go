package domain

import (
	"strings"
	"unicode/utf8"
)

// Query length bounds, in characters after trimming. Both are inclusive.
const (
	MinQueryLength = 2
	MaxQueryLength = 200
)

// ValidateQuery trims q and checks its length. It returns the trimmed query.
func ValidateQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	n := utf8.RuneCountInString(q)
	if n < MinQueryLength {
		return q, ErrQueryTooShort
	}
	if n > MaxQueryLength {
		return q, ErrQueryTooLong
	}
	return q, nil
}

// ClampQuery trims q and cuts it to MaxQueryLength runes. It bounds what is
// stored for queries that failed validation.
func ClampQuery(q string) string {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) <= MaxQueryLength {
		return q
	}
	return strings.TrimSpace(string([]rune(q)[:MaxQueryLength]))
}

// NormalizeQuery folds case and collapses whitespace so that trivially
// different spellings of a query share one cache entry.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
