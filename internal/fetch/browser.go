package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solver-cli/internal/resilience"
)

// BrowserSource fetches pages through a headless browser so that
// JS-rendered task pages serve the same HTML a human would see. One
// browser is launched per run, shared across tasks, and must be closed
// on every exit path.
type BrowserSource struct {
	mu      sync.Mutex
	browser *rod.Browser
	timeout time.Duration
}

// NewBrowserSource creates a BrowserSource. The browser is launched
// lazily on first fetch.
func NewBrowserSource(timeout time.Duration) *BrowserSource {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &BrowserSource{timeout: timeout}
}

func (s *BrowserSource) Name() string { return "browser" }

// ensureBrowser starts the browser if it is not already running.
// Must be called with s.mu held.
func (s *BrowserSource) ensureBrowser() error {
	if s.browser != nil {
		return nil
	}

	l := launcher.New().Headless(true)
	url, err := l.Launch()
	if err != nil {
		return eris.Wrap(err, "fetch: launch browser")
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return eris.Wrap(err, "fetch: connect to browser")
	}
	s.browser = browser
	return nil
}

// Fetch navigates a fresh page to the URL, waits for load, and returns
// the rendered HTML.
func (s *BrowserSource) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	s.mu.Lock()
	if err := s.ensureBrowser(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	browser := s.browser
	s.mu.Unlock()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create page")
	}
	defer func() { _ = page.Close() }()

	// Headless navigation fails transiently (DNS blips, net::ERR_ABORTED
	// on redirects), so retry it once before giving up on the task.
	navCfg := resilience.RetryConfig{
		MaxAttempts: 2,
		Backoff:     500 * time.Millisecond,
		ShouldRetry: func(error) bool { return true },
		OnRetry:     resilience.RetryLogger("fetch", "navigate"),
	}
	if err := resilience.Do(ctx, navCfg, func(ctx context.Context) error {
		return page.Context(ctx).Navigate(rawURL)
	}); err != nil {
		return nil, eris.Wrapf(err, "fetch: navigate to %s", rawURL)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := page.Context(waitCtx).WaitLoad(); err != nil {
		// The page may have rendered enough even if WaitLoad times out.
		zap.L().Debug("fetch: wait load timed out", zap.String("url", rawURL), zap.Error(err))
	}

	html, err := page.HTML()
	if err != nil {
		return nil, eris.Wrap(err, "fetch: read rendered html")
	}

	return &Page{URL: rawURL, HTML: html, StatusCode: 200}, nil
}

// Close shuts the browser down. Safe to call more than once.
func (s *BrowserSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	return err
}
