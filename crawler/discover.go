package crawler

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Discoverer collects product URLs from a listing page.
type Discoverer struct {
	fetcher   *Fetcher
	base      *url.URL
	domain    string
	selectors []cascadia.Selector
}

// NewDiscoverer returns a Discoverer that resolves links against base and
// keeps only those on domain.
func NewDiscoverer(fetcher *Fetcher, base *url.URL, domain string, selectors []cascadia.Selector) *Discoverer {
	return &Discoverer{
		fetcher:   fetcher,
		base:      base,
		domain:    domain,
		selectors: selectors,
	}
}

// Discover fetches pageURL and returns its distinct same-domain product
// links. A failed fetch yields no links.
func (d *Discoverer) Discover(ctx context.Context, pageURL string) []string {
	doc := d.fetcher.Fetch(ctx, pageURL)
	if doc == nil {
		return nil
	}
	return d.Links(doc)
}

// Links extracts product links from an already parsed page, in first-seen
// order without duplicates.
func (d *Discoverer) Links(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var links []string
	for _, sel := range d.selectors {
		doc.FindMatcher(sel).Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok {
				return
			}
			link, ok := d.normalize(href)
			if !ok {
				return
			}
			if _, dup := seen[link]; dup {
				return
			}
			seen[link] = struct{}{}
			links = append(links, link)
		})
	}
	return links
}

// normalize resolves href against the base URL, drops the query string and
// fragment, and rejects anything off-domain or not http(s).
func (d *Discoverer) normalize(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := d.base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(abs.Host, d.domain) {
		return "", false
	}
	abs.Host = strings.ToLower(abs.Host)
	abs.RawQuery = ""
	abs.ForceQuery = false
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}
