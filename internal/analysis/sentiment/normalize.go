// Package sentiment classifies Spanish financial headlines as positive,
// negative or neutral with a TF-IDF + multinomial naive Bayes model trained
// on a small bundled corpus.
package sentiment

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// minTokenRunes: tokens this short or shorter are dropped.
const minTokenRunes = 2

// Normalize lowercases text, replaces every rune outside a-z, áéíóúñü,
// digits and whitespace with a space, and drops stop-words and short tokens.
// The result is a single-space separated token string. Normalize is
// idempotent.
func Normalize(text string) string {
	return strings.Join(Tokens(text), " ")
}

// Tokens returns the normalized tokens of text.
func Tokens(text string) []string {
	// Caser carries state, so one per call.
	lower := cases.Lower(language.Spanish).String(text)

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if keepRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	fields := strings.Fields(b.String())
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) <= minTokenRunes || IsStopword(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func keepRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case unicode.IsSpace(r):
		return true
	}
	switch r {
	case 'á', 'é', 'í', 'ó', 'ú', 'ñ', 'ü':
		return true
	}
	return false
}

// Normalizer exposes Normalize as a headline cleaner for the news source.
type Normalizer struct{}

// Clean implements datasource.TextCleaner.
func (Normalizer) Clean(text string) string { return Normalize(text) }
