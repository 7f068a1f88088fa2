package parser

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML converts a message body to plain text. Tags become spaces, entities are decoded
// and whitespace runs collapse to a single space.
func StripHTML(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))

	var sb strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return CollapseSpace(sb.String())
		case html.TextToken:
			sb.Write(z.Text())
		default:
			sb.WriteByte(' ')
		}
	}
}

// CollapseSpace trims s and replaces every whitespace run with one space
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
