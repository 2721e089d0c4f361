// Package sanitize cleans text coming from track CSVs before it is used in
// file names or handed to spotdl.
//
// It removes problematic characters from fields:
//   - Invisible Unicode characters (zero-width spaces, BOM, etc.)
//   - Line breaks and runs of whitespace inside search queries
//   - Path separators and non-printable runes in folder names
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxNameLength is the rune limit applied by ForFilesystem.
const MaxNameLength = 200

var whitespaceRun = regexp.MustCompile(`\s+`)

// ForFilesystem turns a playlist or subfolder name into a single safe path
// component. Empty input becomes "Unknown"; non-printable runes and both
// path separators become replacement; the result is cut to MaxNameLength runes.
func ForFilesystem(name, replacement string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Unknown"
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			b.WriteString(replacement)
		case !unicode.IsPrint(r):
			b.WriteString(replacement)
		default:
			b.WriteRune(r)
		}
	}

	runes := []rune(b.String())
	if len(runes) > MaxNameLength {
		runes = runes[:MaxNameLength]
	}
	return string(runes)
}

// SanitizeQuery prepares a search string for spotdl: invisible characters
// are dropped and all whitespace (including CR/LF) collapses to one space.
func SanitizeQuery(q string) string {
	if q == "" {
		return q
	}
	q = removeInvisibleChars(q)
	q = whitespaceRun.ReplaceAllString(q, " ")
	return strings.TrimSpace(q)
}

// removeInvisibleChars removes zero-width and other invisible Unicode characters
func removeInvisibleChars(s string) string {
	// List of invisible characters to remove
	invisibleChars := []string{
		"\u200B", // Zero-width space
		"\u200C", // Zero-width non-joiner
		"\u200D", // Zero-width joiner
		"\uFEFF", // Zero-width no-break space (BOM)
		"\u00AD", // Soft hyphen
		"\u2060", // Word joiner
		"\u180E", // Mongolian vowel separator
	}

	for _, char := range invisibleChars {
		s = strings.ReplaceAll(s, char, "")
	}

	return s
}

// SanitizeField sanitizes a general CSV field
func SanitizeField(field string) string {
	if field == "" {
		return field
	}

	// Remove invisible characters
	field = removeInvisibleChars(field)

	// Trim whitespace
	return strings.TrimSpace(field)
}
