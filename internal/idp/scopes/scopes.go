// Package scopes provides set operations over scope strings.
package scopes

import "strings"

// Intersect returns the members of requested that also appear in allowed,
// preserving requested order and dropping duplicates.
func Intersect(requested, allowed []string) []string {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, s := range allowed {
		allowedSet[s] = struct{}{}
	}

	seen := make(map[string]struct{}, len(requested))
	result := make([]string, 0, len(requested))
	for _, s := range requested {
		if _, ok := allowedSet[s]; !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		result = append(result, s)
	}
	return result
}

// Dedupe removes duplicate entries while preserving order.
func Dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// Join renders a scope set in the space-delimited wire form.
func Join(values []string) string {
	return strings.Join(values, " ")
}
