package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Text walks selectors in order and returns the cleaned text of the first
// matching element that has any. It returns "" when nothing matches.
func Text(doc *goquery.Document, selectors []cascadia.Selector) string {
	if doc == nil {
		return ""
	}
	for _, sel := range selectors {
		match := doc.FindMatcher(sel).First()
		if match.Length() == 0 {
			continue
		}
		if text := cleanText(match.Text()); text != "" {
			return text
		}
	}
	return ""
}

// cleanText trims s and collapses internal whitespace runs to one space.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
