// Package util provides common utility functions used across the authclient library.
// These utilities handle string normalization that doesn't fit into
// domain-specific packages.
package util

import "strings"

// NormalizeUserID canonicalizes a user identifier for comparison.
// Two identifiers refer to the same user iff they are equal after
// trimming whitespace and lowercasing.
func NormalizeUserID(userID string) string {
	return strings.ToLower(strings.TrimSpace(userID))
}
