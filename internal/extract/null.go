package extract

import (
	"context"

	"github.com/sells-group/solver-cli/internal/classify"
	"github.com/sells-group/solver-cli/internal/fetch"
	"github.com/sells-group/solver-cli/internal/model"
)

// Null is the terminal fallback: a null answer with an explanatory note,
// so the run submits something and continues rather than stalling.
type Null struct{}

// NewNull creates the null-fallback extractor.
func NewNull() *Null { return &Null{} }

func (e *Null) Name() string { return "null" }

// Supports always returns true; the null fallback may never be skipped.
func (e *Null) Supports(classify.Category) bool { return true }

// Extract never fails.
func (e *Null) Extract(context.Context, *fetch.Page) (*Candidate, error) {
	return &Candidate{
		Answer: model.Null(),
		Note:   "could not auto-solve",
	}, nil
}
