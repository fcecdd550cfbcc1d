package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/engine"
	"github.com/use-agent/shelfscan/models"
)

// readTimeout bounds reading the DOM once the page has loaded or given up
// settling.
const readTimeout = 5 * time.Second

// Session owns one browser process and one tab for the duration of a run.
// The tab is not reentrant, so Render calls are serialized.
type Session struct {
	mu        sync.Mutex
	launcher  *launcher.Launcher
	browser   *rod.Browser
	page      *rod.Page
	router    *rod.HijackRouter
	cfg       config.BrowserConfig
	closeOnce sync.Once
}

// NewSession launches the browser and opens the shared tab. Any failure is
// a SetupFailure and the partially started browser is torn down.
func NewSession(cfg config.BrowserConfig, userAgent string) (*Session, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("log-level"), "3")
	if cfg.DisableImages {
		l.Set(flags.Flag("blink-settings"), "imagesEnabled=false")
	}
	if cfg.Stealth {
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSetup, models.SetupGuidance, err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "headless", cfg.Headless)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewScrapeError(models.ErrCodeSetup, models.SetupGuidance, err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, models.NewScrapeError(models.ErrCodeSetup, models.SetupGuidance, err)
	}

	s := &Session{
		launcher: l,
		browser:  browser,
		page:     page,
		cfg:      cfg,
	}
	s.prepare(userAgent)
	return s, nil
}

// prepare applies per-tab settings that must be in place before the first
// navigation. Every step is best-effort.
func (s *Session) prepare(userAgent string) {
	if s.cfg.Stealth {
		if _, err := s.page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	if userAgent != "" {
		if err := (proto.NetworkSetUserAgentOverride{UserAgent: userAgent}).Call(s.page); err != nil {
			slog.Warn("user agent override failed", "error", err)
		}
	}
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"Accept-Language": "en-US,en;q=0.9"}),
	}.Call(s.page)

	s.router = setupHijack(s.page, s.cfg.DisableImages, s.cfg.BlockTrackers)
}

// Render navigates the shared tab to req.URL and returns the rendered HTML.
// It matches engine.RodFetchFunc.
func (s *Session) Render(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timeout := s.cfg.NavigationTimeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	return renderStages{
		navigate: func(ctx context.Context) error {
			return s.page.Context(ctx).Navigate(req.URL)
		},
		settle: func(ctx context.Context) {
			p := s.page.Context(ctx)
			if err := p.WaitLoad(); err != nil {
				slog.Debug("load event did not fire, proceeding with current DOM", "url", req.URL, "error", err)
			}
			if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
				slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "url", req.URL, "error", err)
			}
		},
		read: func(ctx context.Context) (*engine.FetchResult, error) {
			p := s.page.Context(ctx)
			rawHTML, err := p.HTML()
			if err != nil {
				return nil, err
			}
			finalURL := evalStringOrEmpty(p, `() => window.location.href`)
			if finalURL == "" {
				finalURL = req.URL
			}
			return &engine.FetchResult{
				HTML:     rawHTML,
				Title:    evalStringOrEmpty(p, `() => document.title`),
				FinalURL: finalURL,
			}, nil
		},
	}.run(ctx, timeout)
}

// renderStages splits one page render so each stage gets its own deadline:
// a page that never settles is still read as rendered.
type renderStages struct {
	navigate func(ctx context.Context) error
	settle   func(ctx context.Context)
	read     func(ctx context.Context) (*engine.FetchResult, error)
}

func (r renderStages) run(ctx context.Context, timeout time.Duration) (*engine.FetchResult, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	err := r.navigate(navCtx)
	cancel()
	if err != nil {
		return nil, categorizeError(err, "navigation to product page failed")
	}

	settleCtx, cancel := context.WithTimeout(ctx, timeout)
	r.settle(settleCtx)
	cancel()

	readCtx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	res, err := r.read(readCtx)
	if err != nil {
		return nil, categorizeError(err, "failed to read rendered HTML")
	}
	return res, nil
}

// Close stops interception, closes the tab and kills the browser. It is
// safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.router != nil {
			_ = s.router.Stop()
		}
		if s.page != nil {
			_ = s.page.Close()
		}
		if err := s.browser.Close(); err != nil {
			slog.Warn("browser close failed", "error", err)
		}
		s.launcher.Kill()
		s.launcher.Cleanup()
		slog.Info("browser session closed")
	})
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw rod errors into typed ScrapeErrors.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
