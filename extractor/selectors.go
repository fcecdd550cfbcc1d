package extractor

import (
	"fmt"
	"sort"

	"github.com/andybalholm/cascadia"

	"github.com/use-agent/shelfscan/models"
)

// Selector set keys that are not record fields.
const (
	KeyProductLinks = "product_links"
	KeyPrice        = "price"
)

// textFields are the record fields filled by plain first-match text
// extraction, in the order they are evaluated.
var textFields = []string{
	models.FieldName,
	models.FieldSKU,
	models.FieldBrand,
	models.FieldCategory,
	models.FieldAvailability,
	models.FieldDescription,
	models.FieldReplacesModels,
	models.FieldProductDetails,
}

// DefaultSelectorMap is the stock cascade for common storefront themes.
// Lists are in priority order.
func DefaultSelectorMap() map[string][]string {
	return map[string][]string{
		KeyProductLinks: {`a[href*="product"]`, `a[href*="/p/"]`, `.product-item a`, `.product-card a`},
		models.FieldName: {`h1`, `.product-title`, `.product-name`},
		KeyPrice: {
			`[itemprop="price"]`, `.price-sales`, `.product-price .value`, `[data-price]`,
			`.price-wrapper`, `.price`, `.product-price`, `.current-price`, `.sale-price`,
		},
		models.FieldSKU:            {`.sku`, `.product-id`, `.item-number`, `[data-testid="sku"]`},
		models.FieldBrand:          {`.brand`, `.brand-name`, `.manufacturer`, `[itemprop="brand"]`},
		models.FieldCategory:       {`.breadcrumb`, `.category-path`},
		models.FieldAvailability:   {`.availability`, `.stock-status`, `p:contains("Stock")`},
		models.FieldDescription:    {`.product-description`, `.description`, `#description`, `[itemprop="description"]`},
		models.FieldReplacesModels: {`p:contains("is now")`, `div:contains("replaces")`},
		models.FieldProductDetails: {`.product-info`},
	}
}

// SelectorSet maps a field to its ordered, pre-compiled selector cascade.
type SelectorSet struct {
	raw      map[string][]string
	compiled map[string][]cascadia.Selector
}

// NewSelectorSet compiles every selector in fields. An invalid selector is
// reported with its field so a bad override fails before any fetch.
func NewSelectorSet(fields map[string][]string) (*SelectorSet, error) {
	s := &SelectorSet{
		raw:      make(map[string][]string, len(fields)),
		compiled: make(map[string][]cascadia.Selector, len(fields)),
	}
	for field, list := range fields {
		compiled := make([]cascadia.Selector, 0, len(list))
		for _, expr := range list {
			sel, err := cascadia.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("selector %q for field %q: %w", expr, field, err)
			}
			compiled = append(compiled, sel)
		}
		s.raw[field] = append([]string(nil), list...)
		s.compiled[field] = compiled
	}
	return s, nil
}

// DefaultSelectors returns the compiled stock cascade.
func DefaultSelectors() *SelectorSet {
	s, err := NewSelectorSet(DefaultSelectorMap())
	if err != nil {
		panic(err)
	}
	return s
}

// WithOverrides returns a copy of s where each field in overrides replaces
// the stock list.
func (s *SelectorSet) WithOverrides(overrides map[string][]string) (*SelectorSet, error) {
	merged := make(map[string][]string, len(s.raw)+len(overrides))
	for k, v := range s.raw {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return NewSelectorSet(merged)
}

// Get returns the compiled cascade for field, or nil.
func (s *SelectorSet) Get(field string) []cascadia.Selector {
	return s.compiled[field]
}

// Expressions returns the source text of field's cascade.
func (s *SelectorSet) Expressions(field string) []string {
	return s.raw[field]
}

// Fields returns the configured keys, sorted.
func (s *SelectorSet) Fields() []string {
	out := make([]string, 0, len(s.raw))
	for k := range s.raw {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
