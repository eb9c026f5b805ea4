package adapter

import (
	"html"
	"regexp"
	"strings"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// extractText flattens an HTML or HTML-encoded fragment to plain text.
// Entities are unescaped first (some boards double-encode their
// content), then tags are stripped and whitespace collapsed.
func extractText(content string) string {
	unescaped := html.UnescapeString(content)
	plain := htmlTagRegex.ReplaceAllString(unescaped, "")
	return strings.Join(strings.Fields(plain), " ")
}

// firstNonEmpty picks the first populated candidate. Board APIs expose
// some fields in more than one place; adapters list the candidates in
// preference order.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
