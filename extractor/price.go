package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

var (
	priceRe   = regexp.MustCompile(`[$€£]*(\d+\.?\d*)`)
	metaPrice = cascadia.MustCompile(`meta[itemprop="price"], meta[property="product:price:amount"]`)
)

// ParsePrice pulls the first number out of a price label. Thousands
// separators are dropped; a leading currency symbol is allowed.
func ParsePrice(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	m := priceRe.FindStringSubmatch(strings.ReplaceAll(s, ",", ""))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Price prefers structured price metadata and falls back to the visible
// price cascade. A zero meta price is ignored.
func Price(doc *goquery.Document, selectors []cascadia.Selector) (float64, bool) {
	if doc == nil {
		return 0, false
	}
	if content, ok := doc.FindMatcher(metaPrice).First().Attr("content"); ok && content != "" {
		if v, ok := ParsePrice(content); ok && v != 0 {
			return v, true
		}
	}
	return ParsePrice(Text(doc, selectors))
}
