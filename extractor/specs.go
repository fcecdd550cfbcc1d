package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const specTableSelector = "table.specs-table, table.product-specs"

// Specs collects key/value pairs from definition lists and spec tables.
// Definition lists are read first, so a spec table wins on a shared key.
func Specs(doc *goquery.Document) map[string]string {
	specs := make(map[string]string)
	if doc == nil {
		return specs
	}

	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		terms := dl.Find("dt")
		defs := dl.Find("dd")
		n := min(terms.Length(), defs.Length())
		for i := 0; i < n; i++ {
			putSpec(specs, terms.Eq(i).Text(), defs.Eq(i).Text())
		}
	})

	doc.Find(specTableSelector).Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("th, td")
			if cells.Length() < 2 {
				return
			}
			putSpec(specs, cells.Eq(0).Text(), cells.Eq(1).Text())
		})
	})

	return specs
}

func putSpec(specs map[string]string, rawKey, rawValue string) {
	key := cleanText(strings.TrimSuffix(cleanText(rawKey), ":"))
	value := cleanText(rawValue)
	if key == "" || value == "" {
		return
	}
	specs[key] = value
}
