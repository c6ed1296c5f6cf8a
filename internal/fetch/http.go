package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/solver-cli/internal/resilience"
)

const maxPageBytes = 2 << 20 // 2 MiB is far beyond any quiz page

// HTTPOptions configures the HTTP source.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
}

// HTTPSource fetches pages via net/http with a rate limiter and bounded
// retries on transient statuses. Non-2xx after retries is an error.
type HTTPSource struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTPSource creates an HTTPSource with sensible defaults.
func NewHTTPSource(opts HTTPOptions) *HTTPSource {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "solver-cli/1.0"
	}
	return &HTTPSource{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:    opts,
		limiter: rate.NewLimiter(10, 10),
	}
}

func (s *HTTPSource) Name() string { return "http" }

// Close is a no-op; the HTTP source holds no per-run resources.
func (s *HTTPSource) Close() error { return nil }

// Fetch retrieves a URL and returns the page. Transient statuses (429,
// 5xx) are retried with backoff; any remaining failure is returned to the
// caller, which treats it as fatal to the current task.
func (s *HTTPSource) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	cfg := resilience.RetryConfig{
		MaxAttempts: s.opts.MaxRetries,
		Backoff:     time.Second,
		OnRetry:     resilience.RetryLogger("fetch", "get"),
	}

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Page, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetch: create request")
		}
		req.Header.Set("User-Agent", s.opts.UserAgent)

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "fetch: get"), 0)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "fetch: read body"), 0)
		}

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(
				eris.Errorf("fetch: status %d from %s", resp.StatusCode, rawURL), resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, eris.Errorf("fetch: status %d from %s", resp.StatusCode, rawURL)
		}

		return &Page{
			URL:        rawURL,
			HTML:       string(body),
			StatusCode: resp.StatusCode,
		}, nil
	})
}

// Download fetches an arbitrary resource (csv/xlsx/pdf link) and returns
// its bytes. Shares the page fetcher's limiter and retry policy.
func (s *HTTPSource) Download(ctx context.Context, rawURL string) ([]byte, error) {
	page, err := s.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return []byte(page.HTML), nil
}
