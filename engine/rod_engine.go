package engine

import (
	"context"
	"fmt"
	"sync"
)

// RodFetchFunc renders one page in the scripted browser. It is injected by
// the caller to avoid an engine -> scraper import.
type RodFetchFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// RodEngine is the scripted-browser fetch mode. The browser has a single
// tab, so calls to the render func never overlap no matter how many
// workers share the engine.
type RodEngine struct {
	mu        sync.Mutex
	fetchFunc RodFetchFunc
}

// NewRodEngine creates a RodEngine around fetchFunc, normally
// scraper.Session.Render.
func NewRodEngine(fetchFunc RodFetchFunc) *RodEngine {
	return &RodEngine{fetchFunc: fetchFunc}
}

func (e *RodEngine) Name() string { return "browser" }

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.fetchFunc == nil {
		return nil, fmt.Errorf("%s: fetchFunc not configured", e.Name())
	}

	e.mu.Lock()
	result, err := e.fetchFunc(ctx, req)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name(), err)
	}

	result.EngineName = e.Name()
	return result, nil
}
