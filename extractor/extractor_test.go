package extractor

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/shelfscan/models"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func mustSet(t *testing.T, fields map[string][]string) *SelectorSet {
	t.Helper()
	s, err := NewSelectorSet(fields)
	require.NoError(t, err)
	return s
}

func TestTextFirstMatchWins(t *testing.T) {
	doc := mustDoc(t, `<html><body>
		<div class="product-title">Second</div>
		<h1>
		   Ice Maker
		   Assembly </h1>
	</body></html>`)

	set := mustSet(t, map[string][]string{"name": {"h1", ".product-title"}})
	assert.Equal(t, "Ice Maker Assembly", Text(doc, set.Get("name")))

	set = mustSet(t, map[string][]string{"name": {".missing", ".product-title", "h1"}})
	assert.Equal(t, "Second", Text(doc, set.Get("name")))
}

func TestTextNoMatchIsEmpty(t *testing.T) {
	doc := mustDoc(t, `<p>nothing here</p>`)
	set := mustSet(t, map[string][]string{"sku": {".sku", "#sku"}})
	assert.Equal(t, "", Text(doc, set.Get("sku")))
	assert.Equal(t, "", Text(nil, set.Get("sku")))
	assert.Equal(t, "", Text(doc, nil))
}

func TestTextSkipsBlankMatch(t *testing.T) {
	doc := mustDoc(t, `<span class="sku">  </span><span class="product-id">PS123</span>`)
	assert.Equal(t, "PS123", Text(doc, DefaultSelectors().Get(models.FieldSKU)))
}

func TestNewSelectorSetRejectsInvalid(t *testing.T) {
	_, err := NewSelectorSet(map[string][]string{"name": {"h1", "[[["}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "name"`)
}

func TestWithOverrides(t *testing.T) {
	set, err := DefaultSelectors().WithOverrides(map[string][]string{models.FieldName: {".title"}})
	require.NoError(t, err)
	assert.Equal(t, []string{".title"}, set.Expressions(models.FieldName))
	assert.NotEmpty(t, set.Get(KeyProductLinks))
	assert.Contains(t, set.Fields(), KeyPrice)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$1,234.50", 1234.50, true},
		{"1234.50", 1234.50, true},
		{"€ 19,99", 1999, true},
		{"£7", 7, true},
		{"Now only $42.00 (was $60)", 42, true},
		{"12.", 12, true},
		{"", 0, false},
		{"N/A", 0, false},
		{"Call for price", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePrice(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestParsePriceIdempotentOnClean(t *testing.T) {
	v, ok := ParsePrice("1234.5")
	require.True(t, ok)
	again, ok := ParsePrice("1234.5")
	require.True(t, ok)
	assert.Equal(t, v, again)
}

func TestPricePrefersMeta(t *testing.T) {
	sel := DefaultSelectors().Get(KeyPrice)

	doc := mustDoc(t, `<head><meta itemprop="price" content="89.99"></head><body><span class="price">$99.00</span></body>`)
	v, ok := Price(doc, sel)
	require.True(t, ok)
	assert.Equal(t, 89.99, v)

	// Zero meta falls through to the visible price.
	doc = mustDoc(t, `<head><meta property="product:price:amount" content="0"></head><body><span class="price">$99.00</span></body>`)
	v, ok = Price(doc, sel)
	require.True(t, ok)
	assert.Equal(t, 99.0, v)

	doc = mustDoc(t, `<body><span class="price">Sold out</span></body>`)
	_, ok = Price(doc, sel)
	assert.False(t, ok)
}

func TestSpecs(t *testing.T) {
	doc := mustDoc(t, `<body>
		<dl>
			<dt>Color:</dt><dd>White</dd>
			<dt>Width</dt><dd>10 in</dd>
			<dt>Orphan</dt>
		</dl>
		<dl><dt></dt><dd>no key</dd><dt>Height</dt><dd></dd></dl>
		<table class="specs-table">
			<tr><th>Color</th><td>Stainless</td></tr>
			<tr><td>Only one cell</td></tr>
			<tr><th>Voltage :</th><td>120 V</td><td>extra</td></tr>
		</table>
		<table class="other"><tr><th>Ignored</th><td>yes</td></tr></table>
	</body>`)

	specs := Specs(doc)
	assert.Equal(t, map[string]string{
		"Color":   "Stainless",
		"Width":   "10 in",
		"Voltage": "120 V",
	}, specs)
	assert.Empty(t, Specs(nil))
}

func TestCompatibleBrands(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"compatible with whirlpool and LG", "LG, Whirlpool"},
		{"Whirlpoolish", ""},
		{"WHIRLPOOL, Whirlpool, whirlpool", "Whirlpool"},
		{"Fits General Electric and GE units, plus jenn-air", "GE, General Electric, Jenn-Air"},
		{"Made for KitchenAid; not Kenmore-compatible", "Kenmore, KitchenAid"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CompatibleBrands(tt.in))
		})
	}
}

func TestExtract(t *testing.T) {
	const page = `<html><head><meta itemprop="price" content="44.95"></head><body>
		<nav class="breadcrumb">Home &gt; Refrigerator &gt; Filters</nav>
		<h1>EveryDrop Filter 1</h1>
		<span class="sku">EDR1RXD1</span>
		<div class="brand">EveryDrop</div>
		<div class="stock-status">In Stock</div>
		<div class="product-description">Replaces filters in Whirlpool and Maytag fridges.</div>
		<div class="product-info">Also fits select KitchenAid models.</div>
		<dl><dt>Capacity:</dt><dd>200 gal</dd><dt>url</dt><dd>spoofed</dd></dl>
	</body></html>`

	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	ex := New(nil, WithClock(func() time.Time { return fixed }))

	rec := ex.Extract(mustDoc(t, page), "https://shop.test/p/edr1")
	require.NotNil(t, rec)
	assert.True(t, rec.Valid())

	assert.Equal(t, "EveryDrop Filter 1", rec.Get(models.FieldName))
	assert.Equal(t, "EDR1RXD1", rec.Get(models.FieldSKU))
	assert.Equal(t, "EveryDrop", rec.Get(models.FieldBrand))
	assert.Equal(t, "Home > Refrigerator > Filters", rec.Get(models.FieldCategory))
	assert.Equal(t, "In Stock", rec.Get(models.FieldAvailability))
	assert.Equal(t, "KitchenAid, Maytag, Whirlpool", rec.Get(models.FieldCompatibleBrands))
	assert.Equal(t, "200 gal", rec.Get("Capacity"))
	assert.Equal(t, "https://shop.test/p/edr1", rec.Get(models.FieldURL))
	assert.Equal(t, "2024-05-06T07:08:09Z", rec.Get(models.FieldScrapedAt))
	require.NotNil(t, rec.Price)
	assert.Equal(t, 44.95, *rec.Price)
}

func TestExtractNilAndInvalid(t *testing.T) {
	ex := New(nil)
	assert.Nil(t, ex.Extract(nil, "https://shop.test/p/1"))

	rec := ex.Extract(mustDoc(t, `<div class="brand">Bosch</div><span class="price">$10</span>`), "https://shop.test/p/2")
	require.NotNil(t, rec)
	assert.False(t, rec.Valid())
	assert.Equal(t, "Bosch", rec.Get(models.FieldBrand))
}

func TestExtractReadabilityFallback(t *testing.T) {
	body := strings.Repeat("This replacement filter keeps drinking water clean and fresh for months. ", 12)
	page := `<html><head><title>Filter</title></head><body><h1>Filter</h1><article><p>` + body + `</p><p>` + body + `</p></article></body></html>`

	off := New(nil).Extract(mustDoc(t, page), "https://shop.test/p/3")
	assert.Equal(t, "", off.Get(models.FieldDescription))

	on := New(nil, WithReadabilityFallback(true)).Extract(mustDoc(t, page), "https://shop.test/p/3")
	desc := on.Get(models.FieldDescription)
	assert.Contains(t, desc, "replacement filter")
	assert.LessOrEqual(t, len([]rune(desc)), maxExcerpt)
}
