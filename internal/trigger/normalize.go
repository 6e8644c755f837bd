package trigger

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// cliticPrefixes are removed in this order, each at most once.
var cliticPrefixes = []string{"ال", "و", "ف", "ب", "ل", "لل"}

// Hamza and madda marks survive decomposition so that أ, إ and آ recompose
// instead of collapsing to a bare alef.
func isStrippedMark(r rune) bool {
	if r >= 0x0653 && r <= 0x0655 {
		return false
	}
	return unicode.Is(unicode.Mn, r)
}

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.Predicate(isStrippedMark)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize returns the comparison form of a word or trigger: combining marks
// (including Arabic harakat and shadda) removed, surrounding punctuation and
// whitespace trimmed, and case folded.
func Normalize(s string) string {
	s = stripMarks(s)
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	// Casers carry state, so each call gets its own.
	return cases.Fold().String(s)
}

// StripClitics removes the leading clitic prefixes from an already
// normalized word.
func StripClitics(word string) string {
	for _, prefix := range cliticPrefixes {
		word = strings.TrimPrefix(word, prefix)
	}
	return word
}
