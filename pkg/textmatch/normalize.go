// Package textmatch canonicalizes free text and decides whether two strings
// ask the same thing.
package textmatch

import (
	"regexp"
	"strings"
)

var (
	controlWhitespace = regexp.MustCompile(`[\r\n\t]+`)
	nonAlphanumeric   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespaceRun     = regexp.MustCompile(`\s+`)
)

// Normalize lowercases text, replaces every character outside [a-z0-9] and
// whitespace with a space, collapses whitespace runs and trims.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	t := strings.ToLower(strings.TrimSpace(text))
	t = controlWhitespace.ReplaceAllString(t, " ")
	t = nonAlphanumeric.ReplaceAllString(t, " ")
	t = whitespaceRun.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Tokens splits already-normalized text into its set of words.
func Tokens(normalized string) map[string]struct{} {
	fields := strings.Fields(normalized)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func intersectionSize(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			n++
		}
	}
	return n
}
