package extractor

import (
	"regexp"
	"sort"
	"strings"
)

// KnownBrands are the appliance makers recognised in product copy.
var KnownBrands = []string{
	"Whirlpool", "KitchenAid", "Kenmore", "Amana", "Maytag", "Jenn-Air", "Samsung",
	"LG", "GE", "General Electric", "Frigidaire", "Bosch", "Electrolux", "EveryDrop",
}

// BrandMatcher finds whole-word, case-insensitive brand mentions.
type BrandMatcher struct {
	re        *regexp.Regexp
	canonical map[string]string
}

// NewBrandMatcher compiles a matcher for brands.
func NewBrandMatcher(brands []string) *BrandMatcher {
	// Longest first so "General Electric" is tried before "GE".
	ordered := append([]string(nil), brands...)
	sort.SliceStable(ordered, func(i, j int) bool { return len(ordered[i]) > len(ordered[j]) })

	quoted := make([]string, len(ordered))
	canonical := make(map[string]string, len(ordered))
	for i, b := range ordered {
		quoted[i] = regexp.QuoteMeta(b)
		canonical[strings.ToLower(b)] = b
	}
	return &BrandMatcher{
		re:        regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`),
		canonical: canonical,
	}
}

var defaultBrands = NewBrandMatcher(KnownBrands)

// Match returns the distinct brands mentioned in text, canonically spelled,
// sorted and joined with ", ".
func (m *BrandMatcher) Match(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	seen := make(map[string]struct{})
	for _, hit := range m.re.FindAllString(text, -1) {
		seen[m.canonical[strings.ToLower(hit)]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for b := range seen {
		out = append(out, b)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

// CompatibleBrands matches text against KnownBrands.
func CompatibleBrands(text string) string {
	return defaultBrands.Match(text)
}
