// Package fetch retrieves task pages over HTTP or a headless browser and
// exposes lightweight document queries over the raw HTML.
package fetch

import "context"

// Source fetches a single URL and returns the rendered page. A fetch
// failure (transport error or non-success status after bounded retries)
// is fatal to the current task; retry policy across tasks lives with the
// caller.
type Source interface {
	Fetch(ctx context.Context, url string) (*Page, error)
	Name() string
	// Close releases any long-lived resources (browser contexts). It must
	// be safe to call on every exit path.
	Close() error
}
