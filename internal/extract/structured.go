package extract

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solver-cli/internal/classify"
	"github.com/sells-group/solver-cli/internal/fetch"
	"github.com/sells-group/solver-cli/internal/model"
)

// Structured looks for a single preformatted JSON block in the document.
// A parsed block becomes the payload template: server-declared fields
// (an "answer" key in particular) are preserved verbatim, while identity
// and task-url fields are overridden downstream.
type Structured struct{}

// NewStructured creates the structured-data extractor.
func NewStructured() *Structured { return &Structured{} }

func (e *Structured) Name() string { return "structured" }

// Supports always returns true: the pre-block probe is cheap.
func (e *Structured) Supports(classify.Category) bool { return true }

// Extract parses the first <pre> block as a JSON object.
func (e *Structured) Extract(_ context.Context, page *fetch.Page) (*Candidate, error) {
	text, ok := page.FirstPre()
	if !ok {
		return nil, nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, eris.Wrap(err, "structured: parse pre block")
	}

	return candidateFromTemplate(obj)
}

// candidateFromTemplate builds a candidate around a server-provided
// payload template, deriving the answer from its "answer" key when set.
func candidateFromTemplate(obj map[string]any) (*Candidate, error) {
	answer := model.Null()
	if raw, ok := obj["answer"]; ok {
		a, err := model.FromValue(raw)
		if err != nil {
			return nil, err
		}
		answer = a
	}
	return &Candidate{Answer: answer, Template: obj}, nil
}
