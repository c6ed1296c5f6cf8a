package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solver-cli/internal/classify"
	"github.com/sells-group/solver-cli/internal/fetch"
)

var (
	atobRe    = regexp.MustCompile(`atob\(\s*["']([A-Za-z0-9+/=]+)["']\s*\)`)
	jsonObjRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// Encoded scans inline script content for base64-encoded payloads behind
// an atob(...) call pattern, decodes each, and parses the first JSON
// object found in the decoded text. The parsed object is treated as a
// payload template under the same override rule as the structured
// extractor.
type Encoded struct{}

// NewEncoded creates the encoded-data extractor.
func NewEncoded() *Encoded { return &Encoded{} }

func (e *Encoded) Name() string { return "encoded" }

// Supports always returns true: pages without scripts fall through fast.
func (e *Encoded) Supports(classify.Category) bool { return true }

// Extract decodes every atob candidate across all scripts and returns a
// candidate for the first decodable JSON object.
func (e *Encoded) Extract(_ context.Context, page *fetch.Page) (*Candidate, error) {
	for _, script := range page.Scripts() {
		for _, m := range atobRe.FindAllStringSubmatch(script, -1) {
			decoded, err := base64.StdEncoding.DecodeString(m[1])
			if err != nil {
				continue
			}

			blob := jsonObjRe.FindString(string(decoded))
			if blob == "" {
				continue
			}

			var obj map[string]any
			if err := json.Unmarshal([]byte(blob), &obj); err != nil {
				continue
			}

			return candidateFromTemplate(obj)
		}
	}
	return nil, eris.New("encoded: no decodable payload found")
}
