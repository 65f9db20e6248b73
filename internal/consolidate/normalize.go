package consolidate

import "strings"

// NormalizeKey is the single equality key used for deduplication: trimmed, lowercased,
// with internal whitespace runs collapsed to one space.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
