package service

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// minQueryRunes is the shortest cleaned query the pipeline accepts.
const minQueryRunes = 2

var (
	// Keep letters, digits, underscore, whitespace, and basic sentence
	// punctuation. Everything else becomes a space.
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}_\s.!?]+`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Preparer normalizes raw user queries for retrieval: Unicode NFKC,
// lowercasing, control-character removal, punctuation collapse, whitespace
// collapse, trim. The cleaned form feeds embedding and lexical search; the
// raw query is what the generator sees.
type Preparer struct{}

// NewPreparer creates a Preparer.
func NewPreparer() *Preparer {
	return &Preparer{}
}

// Prepare cleans the query. Returns ErrEmptyQuery when the cleaned string is
// empty or shorter than the minimum length.
func (p *Preparer) Prepare(query string) (string, error) {
	s := norm.NFKC.String(query)
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
	s = punctRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if utf8.RuneCountInString(s) < minQueryRunes {
		return "", ErrEmptyQuery
	}
	return s, nil
}
