// Package whitelist implements the allow-list membership predicate.
package whitelist

import "strings"

// Matches reports whether two app-name tokens cover each other:
// case-insensitive substring containment in either direction.
func Matches(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	la := strings.ToLower(a)
	lb := strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

// IsWhitelisted reports whether app is covered by any entry.
// Pure: no side effects, never errors. Short-circuits on empty app.
// Matching is intentionally lenient; a short entry like "c" matches broadly.
func IsWhitelisted(app string, entries []string) bool {
	if app == "" {
		return false
	}
	for _, entry := range entries {
		if Matches(app, entry) {
			return true
		}
	}
	return false
}
