package models

import "strings"

// NormalizeKeyPart lower-cases s, trims it and collapses inner whitespace so that
// "  LeBron  James " and "lebron james" compare equal.
func NormalizeKeyPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	// Keep keys pipe-free, we join on '|'.
	s = strings.ReplaceAll(s, "|", " ")
	s = strings.Join(strings.Fields(s), " ")
	return s
}
