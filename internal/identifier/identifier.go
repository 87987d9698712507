package identifier

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Separator joins the parts of a hierarchical identifier.
const Separator = "/"

const whitespace = `\s\v\p{Z}\x{FEFF}`

var (
	// disallowed matches everything that is not whitespace, a letter, a digit,
	// connector or dash punctuation, or a combining mark. Whitespace covers
	// the Unicode space separators as well as ASCII \s.
	disallowed = regexp.MustCompile(`[^` + whitespace + `\p{L}\p{N}\p{Pc}\p{Pd}\p{M}]+`)

	// gaps matches runs of whitespace and connector punctuation.
	gaps = regexp.MustCompile(`[` + whitespace + `\p{Pc}]+`)
)

// Normalize converts a display name into a slug.
//
// The name is lower-cased, stripped of every character outside the
// letter/digit/dash/connector/mark classes, and each run of whitespace or
// connector punctuation becomes a single "-". Normalize is idempotent.
//
// Example:
//
//	Normalize(`Someone's "device" #1-2_3`) // "someones-device-1-2-3"
func Normalize(name string) string {
	// A Caser is stateful, so each call gets its own.
	slug := cases.Lower(language.Und).String(name)
	slug = disallowed.ReplaceAllString(slug, "")
	return gaps.ReplaceAllString(slug, "-")
}

// Join normalizes each part independently and joins them with "/".
func Join(parts []string) string {
	normalized := make([]string, len(parts))
	for i, part := range parts {
		normalized[i] = Normalize(part)
	}
	return strings.Join(normalized, Separator)
}
