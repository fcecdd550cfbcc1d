package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/extractor"
	"github.com/use-agent/shelfscan/models"
)

const listingPage = `<html><body>
	<ul>
		<li><a href="/product/1">One</a></li>
		<li><a href="/product/1#reviews">One again</a></li>
		<li><a href="/p/2?ref=listing&utm=x">Two</a></li>
		<li><a href="http://other.test/product/9">Elsewhere</a></li>
		<li><a href="mailto:sales@shop.test?subject=product">Mail</a></li>
	</ul>
	<div class="product-card"><a href="/items/3">Three</a></div>
	<a href="/about">About</a>
</body></html>`

var detailPages = map[string]string{
	"/product/1": `<html><body><h1>Widget One</h1><span class="price">$1,234.50</span></body></html>`,
	"/p/2":       `<html><head><meta itemprop="price" content="19.99"></head><body><h1>Widget Two</h1></body></html>`,
	"/items/3":   `<html><body><div class="product-name">Widget Three</div><div class="current-price">£7.25</div></body></html>`,
}

// newShop serves the listing at / and the detail pages above.
func newShop(t *testing.T, listing string, details map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte(listing))
			return
		}
		if body, ok := details[r.URL.Path]; ok {
			_, _ = w.Write([]byte(body))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newSource(t *testing.T, rawURL string, maxProducts, maxPages int) *models.Source {
	t.Helper()
	src, err := models.NewSource(rawURL)
	require.NoError(t, err)
	src.MaxProducts = maxProducts
	src.MaxPages = maxPages
	require.NoError(t, src.Validate())
	return src
}

func httpFactory() EngineFactory {
	cfg := config.Load()
	cfg.Fetch.Timeout = 2 * time.Second
	return DefaultEngines(cfg)
}

func TestRunEndToEnd(t *testing.T) {
	srv, _ := newShop(t, listingPage, detailPages)
	src := newSource(t, srv.URL+"/", 10, 1)

	var events []models.Progress
	c := New(src, httpFactory(), extractor.New(nil), WithProgress(func(p models.Progress) {
		events = append(events, p)
	}))

	records, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	prices := map[string]float64{}
	for _, r := range records {
		require.NotNil(t, r.Price, r.Get(models.FieldName))
		prices[r.Get(models.FieldName)] = *r.Price
		assert.True(t, strings.HasPrefix(r.Get(models.FieldURL), srv.URL))
	}
	assert.Equal(t, map[string]float64{
		"Widget One":   1234.50,
		"Widget Two":   19.99,
		"Widget Three": 7.25,
	}, prices)

	require.NotEmpty(t, events)
	assert.Equal(t, PhaseDiscovery, events[0].Phase)
	last := events[len(events)-1]
	assert.Equal(t, PhaseExtraction, last.Phase)
	assert.Equal(t, 3, last.Done)
	assert.Equal(t, 3, last.Total)
	assert.Equal(t, 3, last.Kept)
	assert.Equal(t, 1.0, last.Fraction())
}

func TestDiscoverSameDomainSet(t *testing.T) {
	srv, _ := newShop(t, listingPage, nil)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)

	fetcher := NewFetcher(engine.NewHTTPEngine(config.FetchConfig{Timeout: 2 * time.Second}))
	disc := NewDiscoverer(fetcher, base, base.Host, extractor.DefaultSelectors().Get(extractor.KeyProductLinks))

	links := disc.Discover(context.Background(), srv.URL+"/")
	sort.Strings(links)
	assert.Equal(t, []string{
		srv.URL + "/items/3",
		srv.URL + "/p/2",
		srv.URL + "/product/1",
	}, links)

	seen := map[string]bool{}
	for _, l := range links {
		u, err := url.Parse(l)
		require.NoError(t, err)
		assert.Equal(t, base.Host, u.Host)
		assert.Empty(t, u.RawQuery)
		assert.False(t, seen[l], "duplicate %s", l)
		seen[l] = true
	}

	assert.Empty(t, disc.Discover(context.Background(), srv.URL+"/missing"))
}

func TestDiscoverFoldsHostCaseAndSelectorOverlap(t *testing.T) {
	base, err := url.Parse("https://shop.test/")
	require.NoError(t, err)
	disc := NewDiscoverer(nil, base, "shop.test", extractor.DefaultSelectors().Get(extractor.KeyProductLinks))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><body>
		<a href="/product/1">One</a>
		<a href="https://SHOP.test/product/1">One, shouting</a>
		<div class="product-card"><a href="/product/1?x=1">One in a card</a></div>
		<div class="product-card"><a href="HTTPS://Shop.Test/p/2">Two</a></div>
	</body></html>`))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://shop.test/product/1",
		"https://shop.test/p/2",
	}, disc.Links(doc))
}

func TestRunDropsRecordsWithoutNameOrSKU(t *testing.T) {
	srv, _ := newShop(t, listingPage, map[string]string{
		"/product/1": `<h1>Kept</h1>`,
		"/p/2":       `<div class="brand">Bosch</div><span class="price">$5</span>`,
		"/items/3":   `<span class="sku">SKU-3</span>`,
	})
	src := newSource(t, srv.URL, 10, 1)

	records, err := New(src, httpFactory(), extractor.New(nil)).Run(context.Background())
	require.NoError(t, err)

	var keys []string
	for _, r := range records {
		keys = append(keys, r.Get(models.FieldName)+r.Get(models.FieldSKU))
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"Kept", "SKU-3"}, keys)
}

func TestRunCapsProducts(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	details := map[string]string{}
	for i := 0; i < 8; i++ {
		path := fmt.Sprintf("/product/%d", i)
		fmt.Fprintf(&b, `<a href="%s">p</a>`, path)
		details[path] = fmt.Sprintf(`<h1>P%d</h1>`, i)
	}
	b.WriteString("</body></html>")

	srv, hits := newShop(t, b.String(), details)
	src := newSource(t, srv.URL, 3, 5)

	records, err := New(src, httpFactory(), extractor.New(nil)).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 3)
	// One listing fetch plus three detail fetches.
	assert.Equal(t, int32(4), hits.Load())
}

func TestRunSkipsFailedFetches(t *testing.T) {
	srv, _ := newShop(t, listingPage, map[string]string{
		"/product/1": `<h1>Only one</h1>`,
	})
	src := newSource(t, srv.URL, 10, 1)

	records, err := New(src, httpFactory(), extractor.New(nil)).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Only one", records[0].Get(models.FieldName))
}

func TestRunSetupFailureIsFatal(t *testing.T) {
	src := newSource(t, "https://shop.test/", 10, 1)
	factory := func(*models.Source) (engine.Engine, func(), error) {
		return nil, nil, models.NewScrapeError(models.ErrCodeSetup, models.SetupGuidance, errors.New("chrome not found"))
	}

	records, err := New(src, factory, extractor.New(nil)).Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, records)
	assert.Equal(t, models.ErrCodeSetup, models.CodeOf(err))
}

// staticEngine serves canned HTML and counts concurrent callers.
type staticEngine struct {
	pages    map[string]string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (e *staticEngine) Name() string { return "static" }

func (e *staticEngine) Fetch(_ context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		p := e.peak.Load()
		if n <= p || e.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	u, _ := url.Parse(req.URL)
	body, ok := e.pages[u.Path]
	if !ok {
		return nil, errors.New("not found")
	}
	return &engine.FetchResult{HTML: body, FinalURL: req.URL}, nil
}

type panickyExtractor struct {
	inner *extractor.Extractor
}

func (p panickyExtractor) Extract(doc *goquery.Document, pageURL string) *models.Record {
	if strings.HasSuffix(pageURL, "/p/2") {
		panic("malformed markup")
	}
	return p.inner.Extract(doc, pageURL)
}

func TestRunRecoversExtractionPanicAndReleases(t *testing.T) {
	pages := map[string]string{"/": listingPage}
	for k, v := range detailPages {
		pages[k] = v
	}
	eng := &staticEngine{pages: pages}

	var released atomic.Int32
	factory := func(*models.Source) (engine.Engine, func(), error) {
		return eng, func() { released.Add(1) }, nil
	}

	src := newSource(t, "https://shop.test/", 10, 1)
	records, err := New(src, factory, panickyExtractor{inner: extractor.New(nil)}).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int32(1), released.Load())
}

func TestRunBoundsExtractionConcurrency(t *testing.T) {
	pages := map[string]string{}
	var b strings.Builder
	for i := 0; i < 30; i++ {
		path := fmt.Sprintf("/product/%d", i)
		fmt.Fprintf(&b, `<a href="%s">p</a>`, path)
		pages[path] = fmt.Sprintf(`<h1>P%d</h1>`, i)
	}
	pages["/"] = b.String()
	eng := &staticEngine{pages: pages}

	src := newSource(t, "https://shop.test/", 30, 1)
	src.ExtractionWorkers = 4
	factory := func(*models.Source) (engine.Engine, func(), error) { return eng, nil, nil }

	records, err := New(src, factory, extractor.New(nil)).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 30)
	assert.LessOrEqual(t, eng.peak.Load(), int32(4))
}

func TestRunEmptyListingReleasesEngine(t *testing.T) {
	eng := &staticEngine{pages: map[string]string{"/": `<p>no links</p>`}}
	var released atomic.Int32
	factory := func(*models.Source) (engine.Engine, func(), error) {
		return eng, func() { released.Add(1) }, nil
	}

	src := newSource(t, "https://shop.test/", 10, 5)
	records, err := New(src, factory, extractor.New(nil)).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int32(1), released.Load())
}
