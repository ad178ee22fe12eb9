// Package unicodecheck validates identifiers that name auth providers,
// registrations and config maps. Those names appear in URLs, cache keys and
// secret paths, so characters that render invisibly or reorder text are refused.
package unicodecheck

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxIdentifierLength bounds identifiers in runes
const MaxIdentifierLength = 128

// ErrInvalidIdentifier is wrapped by every ValidateIdentifier failure
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Zero-width characters commonly used in spoofing attacks.
var zeroWidthChars = []rune{
	'\u200B', // Zero Width Space
	'\u200C', // Zero Width Non-Joiner
	'\u200D', // Zero Width Joiner
	'\u200E', // Left-to-Right Mark
	'\u200F', // Right-to-Left Mark
	'\uFEFF', // Byte Order Mark
}

// Bidirectional text override characters that can reorder displayed text.
var bidiOverrideChars = []rune{
	'\u202A', '\u202B', '\u202C', '\u202D', '\u202E',
	'\u2066', '\u2067', '\u2068', '\u2069',
}

// ContainsZeroWidthChars reports whether s holds an invisible spacing or direction mark
func ContainsZeroWidthChars(s string) bool {
	return strings.ContainsFunc(s, func(r rune) bool { return slices.Contains(zeroWidthChars, r) })
}

// ContainsBidiOverrides reports whether s holds a bidirectional embedding, override or isolate
func ContainsBidiOverrides(s string) bool {
	return strings.ContainsFunc(s, func(r rune) bool { return slices.Contains(bidiOverrideChars, r) })
}

// ContainsControlChars reports whether s holds any control character, whitespace included
func ContainsControlChars(s string) bool {
	return strings.ContainsFunc(s, unicode.IsControl)
}

// IsNFCNormalized reports whether s is already in canonical composition form
func IsNFCNormalized(s string) bool {
	return norm.NFC.IsNormalString(s)
}

// ValidateIdentifier checks a provider, registration or config map name.
// Names must be non-empty valid UTF-8 in NFC form, at most MaxIdentifierLength
// runes, with no whitespace, control, zero-width or bidi override characters.
func ValidateIdentifier(s string) error {
	switch {
	case s == "":
		return fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	case !utf8.ValidString(s):
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidIdentifier)
	case utf8.RuneCountInString(s) > MaxIdentifierLength:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidIdentifier, MaxIdentifierLength)
	case ContainsControlChars(s):
		return fmt.Errorf("%w: contains control characters", ErrInvalidIdentifier)
	case strings.ContainsFunc(s, unicode.IsSpace):
		return fmt.Errorf("%w: contains whitespace", ErrInvalidIdentifier)
	case ContainsZeroWidthChars(s):
		return fmt.Errorf("%w: contains zero-width characters", ErrInvalidIdentifier)
	case ContainsBidiOverrides(s):
		return fmt.Errorf("%w: contains bidirectional overrides", ErrInvalidIdentifier)
	case !IsNFCNormalized(s):
		return fmt.Errorf("%w: not NFC normalized", ErrInvalidIdentifier)
	}
	return nil
}

// SanitizeForLogging replaces control characters with [CTRL] and zero-width
// characters with [ZW] so untrusted names cannot forge log lines.
func SanitizeForLogging(s string) string {
	var result strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsControl(r):
			result.WriteString("[CTRL]")
		case slices.Contains(zeroWidthChars, r):
			result.WriteString("[ZW]")
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}
