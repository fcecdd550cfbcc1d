// Package engine holds the two page fetch modes: plain HTTP and a scripted
// browser.
package engine

import (
	"context"
	"time"
)

// Engine fetches one page. Implementations must be safe for concurrent use;
// an engine that cannot run requests in parallel serializes them itself.
type Engine interface {
	// Name is "http" or "browser".
	Name() string

	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest names the page to fetch. A zero Timeout means the engine's
// configured default.
type FetchRequest struct {
	URL     string
	Timeout time.Duration
}

// FetchResult is a fetched page. FinalURL is the address after redirects.
type FetchResult struct {
	HTML       string
	Title      string
	FinalURL   string
	EngineName string
}
