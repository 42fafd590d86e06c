package utils

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	sanitizer = bluemonday.UGCPolicy()
	stripper  = bluemonday.StrictPolicy()
)

// Sanitize cleans post and comment HTML to prevent XSS attacks.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

// StripTags removes all markup; used for titles and excerpts.
func StripTags(input string) string {
	return strings.TrimSpace(stripper.Sanitize(input))
}

// Excerpt returns the first max runes of the plain-text content, with an ellipsis when cut.
func Excerpt(content string, max int) string {
	text := strings.Join(strings.Fields(StripTags(content)), " ")
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:max-3])) + "..."
}
