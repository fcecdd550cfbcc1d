// Package extractor turns a parsed product page into a models.Record using
// cascading CSS selectors.
package extractor

import (
	"log/slog"
	nurl "net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/use-agent/shelfscan/models"
)

// maxExcerpt caps a readability-derived description.
const maxExcerpt = 500

// Extractor is safe for concurrent use once built.
type Extractor struct {
	selectors           *SelectorSet
	brands              *BrandMatcher
	readabilityFallback bool
	now                 func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock overrides the capture timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithReadabilityFallback fills an empty description from the page's main
// article when enabled.
func WithReadabilityFallback(enabled bool) Option {
	return func(e *Extractor) { e.readabilityFallback = enabled }
}

// WithBrands replaces the recognised brand list.
func WithBrands(brands []string) Option {
	return func(e *Extractor) { e.brands = NewBrandMatcher(brands) }
}

// New builds an Extractor. A nil selector set means DefaultSelectors.
func New(selectors *SelectorSet, opts ...Option) *Extractor {
	if selectors == nil {
		selectors = DefaultSelectors()
	}
	e := &Extractor{
		selectors: selectors,
		brands:    defaultBrands,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Selectors returns the cascade in use.
func (e *Extractor) Selectors() *SelectorSet { return e.selectors }

// Extract builds a record from doc. It returns nil for a nil document. The
// record may still lack a name and SKU; callers check Record.Valid.
func (e *Extractor) Extract(doc *goquery.Document, pageURL string) *models.Record {
	if doc == nil {
		return nil
	}

	rec := models.NewRecord()
	for _, field := range textFields {
		rec.Fields[field] = Text(doc, e.selectors.Get(field))
	}

	if e.readabilityFallback && rec.Fields[models.FieldDescription] == "" {
		rec.Fields[models.FieldDescription] = articleExcerpt(doc, pageURL)
	}

	if price, ok := Price(doc, e.selectors.Get(KeyPrice)); ok {
		rec.Price = &price
	}

	blob := rec.Fields[models.FieldDescription] + " " + rec.Fields[models.FieldProductDetails]
	rec.Fields[models.FieldCompatibleBrands] = e.brands.Match(blob)

	for k, v := range Specs(doc) {
		rec.Fields[k] = v
	}

	// Provenance is written last so a spec row can never mask it.
	rec.Fields[models.FieldURL] = pageURL
	rec.Fields[models.FieldScrapedAt] = e.now().Format(time.RFC3339)
	return rec
}

// articleExcerpt runs readability over the page and returns its excerpt,
// or the head of the article text when there is no excerpt.
func articleExcerpt(doc *goquery.Document, pageURL string) string {
	parsedURL, err := nurl.Parse(pageURL)
	if err != nil {
		return ""
	}
	rawHTML, err := doc.Html()
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Debug("readability: extraction failed", "url", pageURL, "error", err)
		return ""
	}
	text := cleanText(article.Excerpt)
	if text == "" {
		text = cleanText(article.TextContent)
	}
	return truncateRunes(text, maxExcerpt)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
