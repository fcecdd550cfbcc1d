package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/use-agent/shelfscan/engine"
)

// Fetcher turns a URL into a parsed document. It never returns an error:
// every failure is logged and reported as a nil document.
type Fetcher struct {
	eng engine.Engine
}

// NewFetcher wraps eng.
func NewFetcher(eng engine.Engine) *Fetcher {
	return &Fetcher{eng: eng}
}

// Fetch retrieves and parses pageURL.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) *goquery.Document {
	res, err := f.eng.Fetch(ctx, &engine.FetchRequest{URL: pageURL})
	if err != nil {
		slog.Warn("failed to get content", "url", pageURL, "engine", f.eng.Name(), "error", err)
		return nil
	}

	root, err := html.Parse(strings.NewReader(res.HTML))
	if err != nil {
		slog.Warn("failed to parse content", "url", pageURL, "error", err)
		return nil
	}

	slog.Debug("page fetched", "url", pageURL, "engine", res.EngineName, "title", res.Title, "bytes", len(res.HTML))

	doc := goquery.NewDocumentFromNode(root)
	final := res.FinalURL
	if final == "" {
		final = pageURL
	}
	if u, err := url.Parse(final); err == nil {
		doc.Url = u
	}
	return doc
}
