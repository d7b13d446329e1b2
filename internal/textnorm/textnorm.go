// Package textnorm holds the text helpers shared by the parser, the classifier
// and the digest formatter.
package textnorm

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/graphemes"
	"golang.org/x/text/unicode/norm"
)

const (
	// SummaryLen is the display length used for feed summaries.
	SummaryLen = 280
	// Ellipsis marks a truncated string.
	Ellipsis = "…"
)

var tagRe = regexp.MustCompile(`<[^>]+>`)

// StripMarkup removes tags, unescapes HTML entities and collapses whitespace.
// The result is composed to NFC so rune counts match what a reader sees.
func StripMarkup(text string) string {
	if text == "" {
		return ""
	}
	text = tagRe.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	return norm.NFC.String(collapse(text))
}

// Normalize projects text onto lowercase ASCII letters, digits and single
// spaces. It is only used for keyword matching, never for display.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return ' '
	}, text)
	return collapse(text)
}

// Truncate shortens text to at most maxLen characters, ending with Ellipsis.
// Text that already fits is returned unchanged. The cut falls on a grapheme
// cluster boundary, so combined characters and emoji sequences stay whole.
func Truncate(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 0 {
		return ""
	}

	limit := byteOffset(text, maxLen-1)
	cut := 0
	iter := graphemes.FromString(text)
	for iter.Next() {
		if iter.End() > limit {
			break
		}
		cut = iter.End()
	}

	return strings.TrimRightFunc(text[:cut], unicode.IsSpace) + Ellipsis
}

// byteOffset returns the byte index where rune number n starts.
func byteOffset(s string, n int) int {
	i := 0
	for pos := range s {
		if i == n {
			return pos
		}
		i++
	}
	return len(s)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
