// Package profanity masks configured words in chat messages.
package profanity

import "strings"

type Filter struct {
	words []string
}

func NewFilter(words []string) *Filter {
	lowered := make([]string, len(words))
	for i, w := range words {
		lowered[i] = strings.ToLower(w)
	}

	return &Filter{words: lowered}
}

// Sanitize replaces every configured word with asterisks of the same
// length. Matching is case-insensitive per whitespace-separated token.
func (f *Filter) Sanitize(text string) string {
	if len(f.words) == 0 {
		return text
	}

	fields := strings.Fields(text)
	changed := false
	for i, field := range fields {
		trimmed := strings.ToLower(strings.Trim(field, ".,!?;:\"'"))
		for _, w := range f.words {
			if trimmed == w {
				fields[i] = strings.Repeat("*", len(field))
				changed = true
				break
			}
		}
	}

	if !changed {
		return text
	}

	return strings.Join(fields, " ")
}
