package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/shelfscan/config"
)

func TestHTTPEngineFetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><head><title> Parts </title></head><body>hi</body></html>`))
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(`<h1>still parsed</h1>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e := NewHTTPEngine(config.FetchConfig{Timeout: 2 * time.Second})

	res, err := e.Fetch(context.Background(), &FetchRequest{URL: srv.URL + "/ok"})
	require.NoError(t, err)
	assert.Equal(t, "Parts", res.Title)
	assert.Equal(t, "http", res.EngineName)
	assert.Equal(t, config.DefaultUserAgent, gotUA)

	res, err = e.Fetch(context.Background(), &FetchRequest{URL: srv.URL + "/plain"})
	require.NoError(t, err)
	assert.Contains(t, res.HTML, "still parsed")

	_, err = e.Fetch(context.Background(), &FetchRequest{URL: srv.URL + "/missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestHTTPEngineTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	e := NewHTTPEngine(config.FetchConfig{Timeout: 50 * time.Millisecond})
	_, err := e.Fetch(context.Background(), &FetchRequest{URL: srv.URL})
	require.Error(t, err)
}

func TestHTTPEngineThrottle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	e := NewHTTPEngine(config.FetchConfig{Timeout: time.Second, RequestsPerSecond: 1000, Burst: 1})
	require.NotNil(t, e.limiter)
	for i := 0; i < 3; i++ {
		_, err := e.Fetch(context.Background(), &FetchRequest{URL: srv.URL})
		require.NoError(t, err)
	}
}

func TestRodEngineDelegates(t *testing.T) {
	e := NewRodEngine(func(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
		return &FetchResult{HTML: "<p>" + req.URL + "</p>"}, nil
	})
	res, err := e.Fetch(context.Background(), &FetchRequest{URL: "x"})
	require.NoError(t, err)
	assert.Equal(t, "browser", res.EngineName)
	assert.Equal(t, "<p>x</p>", res.HTML)

	failing := NewRodEngine(func(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
		return nil, errors.New("tab crashed")
	})
	_, err = failing.Fetch(context.Background(), &FetchRequest{URL: "x"})
	assert.EqualError(t, err, "browser: tab crashed")

	_, err = NewRodEngine(nil).Fetch(context.Background(), &FetchRequest{URL: "x"})
	assert.Error(t, err)
}

func TestRodEngineSerializesRenders(t *testing.T) {
	var inFlight, peak atomic.Int32
	e := NewRodEngine(func(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return &FetchResult{HTML: req.URL}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Fetch(context.Background(), &FetchRequest{URL: "x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
}
