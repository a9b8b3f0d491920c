package note

import (
	"bytes"
	"html/template"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"golang.org/x/text/cases"
)

// Fold applies full Unicode case folding to s (e.g. "ß" folds like "SS").
// A Caser is stateful, so one is built per call.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// Matches reports whether the derived title of n contains keyword, ignoring case.
// The keyword is trimmed; an empty keyword matches every note.
func Matches(n Note, keyword string) bool {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return true
	}
	return strings.Contains(Fold(n.DerivedTitle()), Fold(keyword))
}

// CountChars returns the character count as runes (not bytes).
// Used for the editor's character counter.
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// RenderHTML converts note content (markdown) to HTML using goldmark.
// On conversion failure the escaped raw text is returned.
func RenderHTML(content string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(content), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(content))
	}
	return template.HTML(buf.String())
}
