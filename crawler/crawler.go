// Package crawler runs the two-phase product crawl: discover product URLs
// from the listing page, then extract a record from each.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/extractor"
	"github.com/use-agent/shelfscan/models"
)

// Progress phases.
const (
	PhaseDiscovery  = "discovery"
	PhaseExtraction = "extraction"
)

// EngineFactory builds the fetch engine for a run. release, if non-nil,
// is always called when the run ends. A returned error aborts the run.
type EngineFactory func(src *models.Source) (eng engine.Engine, release func(), err error)

// RecordExtractor builds a record from a parsed page.
type RecordExtractor interface {
	Extract(doc *goquery.Document, pageURL string) *models.Record
}

// ProgressFunc receives progress updates. It is only ever called from the
// goroutine running Crawler.Run.
type ProgressFunc func(models.Progress)

// Crawler coordinates one run over a Source.
type Crawler struct {
	source        *models.Source
	factory       EngineFactory
	extractor     RecordExtractor
	linkSelectors []cascadia.Selector
	onProgress    ProgressFunc
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Crawler) { c.onProgress = fn }
}

// WithLinkSelectors overrides the product-link cascade.
func WithLinkSelectors(sel []cascadia.Selector) Option {
	return func(c *Crawler) { c.linkSelectors = sel }
}

// New builds a Crawler. src must already be validated.
func New(src *models.Source, factory EngineFactory, ex RecordExtractor, opts ...Option) *Crawler {
	c := &Crawler{
		source:    src,
		factory:   factory,
		extractor: ex,
	}
	if e, ok := ex.(*extractor.Extractor); ok {
		c.linkSelectors = e.Selectors().Get(extractor.KeyProductLinks)
	} else {
		c.linkSelectors = extractor.DefaultSelectors().Get(extractor.KeyProductLinks)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run discovers and extracts products. Only a setup failure is returned as
// an error; per-URL failures are logged and skipped. An empty result with
// a nil error means nothing matched.
func (c *Crawler) Run(ctx context.Context) ([]*models.Record, error) {
	start := time.Now()

	base, err := url.Parse(c.source.BaseURL)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "invalid base URL", err)
	}

	eng, release, err := c.factory(c.source)
	if err != nil {
		slog.Error("engine setup failed", "url", c.source.BaseURL, "error", err)
		return nil, err
	}
	if release != nil {
		defer release()
	}

	fetcher := NewFetcher(eng)
	disc := NewDiscoverer(fetcher, base, c.source.Domain, c.linkSelectors)

	c.report(models.Progress{Phase: PhaseDiscovery, Message: "Concurrently discovering product URLs..."})
	urls := c.discover(ctx, disc)
	if len(urls) > c.source.MaxProducts {
		urls = urls[:c.source.MaxProducts]
	}
	if len(urls) == 0 {
		slog.Warn("no product URLs discovered", "url", c.source.BaseURL, "engine", eng.Name())
		return nil, nil
	}

	c.report(models.Progress{
		Phase:   PhaseExtraction,
		Total:   len(urls),
		Message: fmt.Sprintf("Found %d products. Starting extraction...", len(urls)),
	})
	records := c.extract(ctx, fetcher, urls)

	slog.Info("crawl finished",
		"url", c.source.BaseURL,
		"engine", eng.Name(),
		"discovered", len(urls),
		"kept", len(records),
		"duration", time.Since(start),
	)
	return records, nil
}

// discover scans the frontier with a bounded pool. The frontier only ever
// holds the seed page: discovered product URLs are not scanned for more
// links.
func (c *Crawler) discover(ctx context.Context, disc *Discoverer) []string {
	frontier := []string{c.source.BaseURL}
	visited := make(map[string]struct{})
	found := newOrderedSet()

	results := make(chan []string, c.source.MaxPages)
	var g errgroup.Group
	g.SetLimit(c.source.DiscoveryWorkers)

	merge := func(links []string) {
		for _, l := range links {
			found.add(l)
		}
	}

	for i := 0; i < c.source.MaxPages; i++ {
		// Fold in whatever has already finished so the product cap is
		// checked against current totals.
	drain:
		for {
			select {
			case links := <-results:
				merge(links)
			default:
				break drain
			}
		}
		if len(frontier) == 0 || found.len() >= c.source.MaxProducts {
			break
		}

		page := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if _, ok := visited[page]; ok {
			continue
		}
		visited[page] = struct{}{}

		g.Go(func() error {
			results <- disc.Discover(ctx, page)
			return nil
		})
	}

	_ = g.Wait()
	close(results)
	for links := range results {
		merge(links)
	}

	slog.Info("discovery finished", "url", c.source.BaseURL, "pages", len(visited), "products", found.len())
	return found.items()
}

type outcome struct {
	url string
	rec *models.Record
	err error
}

// extract fetches and extracts every URL with a bounded pool, collecting
// outcomes in completion order.
func (c *Crawler) extract(ctx context.Context, fetcher *Fetcher, urls []string) []*models.Record {
	outcomes := make(chan outcome, len(urls))

	go func() {
		var g errgroup.Group
		g.SetLimit(c.source.ExtractionWorkers)
		for _, u := range urls {
			g.Go(func() error {
				outcomes <- c.extractOne(ctx, fetcher, u)
				return nil
			})
		}
		_ = g.Wait()
		close(outcomes)
	}()

	records := make([]*models.Record, 0, len(urls))
	done := 0
	for o := range outcomes {
		done++
		switch {
		case o.err != nil:
			slog.Error("error processing URL", "url", o.url, "error", o.err)
		case o.rec.Valid():
			records = append(records, o.rec)
		}
		c.report(models.Progress{
			Phase:   PhaseExtraction,
			Done:    done,
			Total:   len(urls),
			Kept:    len(records),
			Message: fmt.Sprintf("Scraped %d/%d products", len(records), len(urls)),
		})
	}
	return records
}

// extractOne never panics: a panic inside extraction becomes an
// ExtractionFailure for that URL.
func (c *Crawler) extractOne(ctx context.Context, fetcher *Fetcher, u string) (o outcome) {
	o.url = u
	defer func() {
		if r := recover(); r != nil {
			o.rec = nil
			o.err = models.NewScrapeError(models.ErrCodeExtraction, fmt.Sprintf("panic: %v", r), nil)
		}
	}()

	doc := fetcher.Fetch(ctx, u)
	if doc == nil {
		return o
	}
	o.rec = c.extractor.Extract(doc, u)
	return o
}

func (c *Crawler) report(p models.Progress) {
	if c.onProgress != nil {
		c.onProgress(p)
	}
}

// orderedSet keeps insertion order so the max-products cut is repeatable.
type orderedSet struct {
	index map[string]struct{}
	order []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{index: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.index[v]; ok {
		return
	}
	s.index[v] = struct{}{}
	s.order = append(s.order, v)
}

func (s *orderedSet) len() int { return len(s.order) }

func (s *orderedSet) items() []string { return s.order }
