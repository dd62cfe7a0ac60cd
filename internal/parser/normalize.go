// Package parser turns free-form pt-BR expense descriptions into a structured
// interpretation. Everything here is pure: no I/O, no shared state.
package parser

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases text with pt-BR rules, composes accents (NFC) and
// collapses whitespace. Accents are preserved.
func Normalize(text string) string {
	s := norm.NFC.String(text)
	s = cases.Lower(language.BrazilianPortuguese).String(s)
	return strings.Join(strings.Fields(s), " ")
}

// fold strips diacritics so "família" and "familia" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

type token struct {
	folded     string
	start, end int
}

// tokenize splits normalized text into runs of letters and digits, keeping
// byte offsets into the original so matches can be reported literally.
func tokenize(text string) []token {
	var tokens []token
	start := -1
	for i, r := range text {
		wordy := unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
		switch {
		case wordy && start < 0:
			start = i
		case !wordy && start >= 0:
			tokens = append(tokens, token{folded: fold(text[start:i]), start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{folded: fold(text[start:]), start: start, end: len(text)})
	}
	return tokens
}
