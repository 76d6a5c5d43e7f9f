package grading

import "strings"

// normalize casefolds and trims surrounding whitespace. Inner spacing and punctuation are kept.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// textMatches reports whether a fill-in-the-blank response equals the key.
// An empty response or an empty key never matches.
func textMatches(response, key string) bool {
	r, k := normalize(response), normalize(key)
	if r == "" || k == "" {
		return false
	}
	return r == k
}
