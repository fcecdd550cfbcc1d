package models

import (
	"fmt"
	"net/url"
	"strings"
)

// Bounds on user-supplied crawl limits.
const (
	MinProducts = 1
	MaxProducts = 1000
	MinPages    = 1
	MaxPages    = 50
)

// Source describes one scraping run: where to start and how to fetch.
type Source struct {
	// BaseURL is the listing page the crawl starts from. Always has a scheme.
	BaseURL string

	// Domain is the host (with port, if any) of BaseURL. Discovered links
	// must live on this host.
	Domain string

	UseBrowser    bool
	Headless      bool
	DisableImages bool

	DiscoveryWorkers  int
	ExtractionWorkers int
	MaxProducts       int
	MaxPages          int
}

// NormalizeBaseURL trims raw, prefixes "https://" when no http(s) scheme is
// present, and returns the parsed URL. An empty or hostless URL is an
// InputFailure.
func NormalizeBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, NewScrapeError(ErrCodeInvalidInput, "please enter a website URL", nil)
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, NewScrapeError(ErrCodeInvalidInput, "invalid website URL", err)
	}
	if u.Host == "" {
		return nil, NewScrapeError(ErrCodeInvalidInput, fmt.Sprintf("website URL %q has no host", raw), nil)
	}
	return u, nil
}

// NewSource builds a Source from a user-entered URL. Limits start out at
// zero; call Validate after filling them in.
func NewSource(rawURL string) (*Source, error) {
	u, err := NormalizeBaseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return &Source{
		BaseURL: u.String(),
		Domain:  u.Host,
	}, nil
}

// Validate checks the crawl limits and fills in worker defaults.
func (s *Source) Validate() error {
	if s.MaxProducts < MinProducts || s.MaxProducts > MaxProducts {
		return NewScrapeError(ErrCodeInvalidInput,
			fmt.Sprintf("max products must be between %d and %d, got %d", MinProducts, MaxProducts, s.MaxProducts), nil)
	}
	if s.MaxPages < MinPages || s.MaxPages > MaxPages {
		return NewScrapeError(ErrCodeInvalidInput,
			fmt.Sprintf("max pages must be between %d and %d, got %d", MinPages, MaxPages, s.MaxPages), nil)
	}
	if s.DiscoveryWorkers <= 0 {
		s.DiscoveryWorkers = 5
	}
	if s.ExtractionWorkers <= 0 {
		s.ExtractionWorkers = 10
	}
	return nil
}
