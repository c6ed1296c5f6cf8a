// Package submit posts answer payloads to a discovered submit endpoint
// with bounded retries inside the task's time budget, and normalizes the
// provider-specific response shape.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solver-cli/internal/fetch"
	"github.com/sells-group/solver-cli/internal/model"
	"github.com/sells-group/solver-cli/internal/resilience"
)

// ErrEndpointNotFound reports that no submit endpoint could be discovered
// on a task page. Fatal to the run: the chain cannot continue without a
// place to submit.
var ErrEndpointNotFound = eris.New("submit: no submit endpoint found on page")

var submitURLRe = regexp.MustCompile(`(?i)"(https?://[^"]*submit[^"]*)"`)

// DiscoverEndpoint finds the submit URL on a task page: first a quoted
// absolute URL containing "submit" anywhere in the raw content, then any
// anchor whose text or href mentions submit (resolved against the task
// URL).
func DiscoverEndpoint(page *fetch.Page) (string, error) {
	if m := submitURLRe.FindStringSubmatch(page.HTML); m != nil {
		return m[1], nil
	}

	for _, link := range page.Links() {
		if strings.Contains(strings.ToLower(link.Text), "submit") ||
			strings.Contains(strings.ToLower(link.Href), "submit") {
			return link.Href, nil
		}
	}

	return "", ErrEndpointNotFound
}

// Options configures the Submitter.
type Options struct {
	// MaxAttempts is the total number of attempts per Submit call.
	// Default: 2.
	MaxAttempts int
	// Backoff is the fixed delay between attempts. Default: 1.5s.
	Backoff time.Duration
	// Timeout bounds a single POST. Default: 45s.
	Timeout time.Duration
}

// Submitter posts payloads and parses responses leniently.
type Submitter struct {
	client *http.Client
	opts   Options
}

// NewSubmitter creates a Submitter.
func NewSubmitter(opts Options) *Submitter {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 2
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 1500 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	return &Submitter{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

// Submit posts the payload as JSON. Transient transport failures retry
// with a short fixed backoff while time remains before deadline; the
// retry budget bounds attempts independent of time. Exhaustion surfaces
// an error the navigator treats as fatal to the run.
func (s *Submitter) Submit(ctx context.Context, endpoint string, payload model.SubmissionPayload, deadline time.Time) (*model.SubmissionResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "submit: marshal payload")
	}

	cfg := resilience.RetryConfig{
		MaxAttempts: s.opts.MaxAttempts,
		Backoff:     s.opts.Backoff,
		Deadline:    deadline,
		OnRetry:     resilience.RetryLogger("submit", "post"),
	}

	result, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*model.SubmissionResult, error) {
		return s.post(ctx, endpoint, body)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "submit: post to %s", endpoint)
	}
	return result, nil
}

func (s *Submitter) post(ctx context.Context, endpoint string, body []byte) (*model.SubmissionResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "submit: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "submit: send"), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "submit: read response"), 0)
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("submit: status %d from %s", resp.StatusCode, endpoint), resp.StatusCode)
	}

	result := ParseResult(resp.StatusCode, respBody)
	zap.L().Debug("submit: response",
		zap.Int("status", resp.StatusCode),
		zap.String("next_url", result.NextURL),
		zap.Int("correct", int(result.Correct)),
	)
	return result, nil
}

// nextURLKeys is the first-match priority for the next-task pointer.
var nextURLKeys = []string{"url", "next_url", "nextTaskUrl"}

// ParseResult normalizes a submit response. Non-JSON bodies are wrapped
// into an opaque result (status code plus truncated text) instead of
// failing the attempt.
func ParseResult(statusCode int, body []byte) *model.SubmissionResult {
	result := &model.SubmissionResult{
		StatusCode: statusCode,
		Correct:    model.CorrectUnknown,
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		truncated := string(body)
		if len(truncated) > 200 {
			truncated = truncated[:200]
		}
		raw, _ := json.Marshal(map[string]any{"status": statusCode, "raw": truncated})
		result.Raw = raw
		return result
	}

	result.Raw = json.RawMessage(body)

	if correct, ok := obj["correct"].(bool); ok {
		if correct {
			result.Correct = model.CorrectYes
		} else {
			result.Correct = model.CorrectNo
		}
	}

	for _, key := range nextURLKeys {
		if v, ok := obj[key].(string); ok && v != "" {
			result.NextURL = v
			break
		}
	}

	if delay, ok := obj["delay"].(float64); ok && delay > 0 {
		result.RetryDelay = time.Duration(delay * float64(time.Second))
	}

	return result
}
