package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/solver-cli/internal/classify"
	"github.com/sells-group/solver-cli/internal/fetch"
)

// Chain tries extractors in fixed priority order, returning the first
// success. The order never changes per task; classification only skips
// entries whose Supports says the page is obviously irrelevant.
type Chain struct {
	extractors []Extractor
}

// NewChain creates a Chain over the given extractors, tried in order.
func NewChain(extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors}
}

// DefaultChain wires the full strategy order: structured, encoded, table,
// file, llm, null. The trailing null extractor guarantees Extract always
// yields a candidate.
func DefaultChain(dl Downloader, analyzer Analyzer, pdf PDFText, asker Asker) *Chain {
	return NewChain(
		NewStructured(),
		NewEncoded(),
		NewTable(analyzer),
		NewFile(dl, analyzer, pdf, asker),
		NewLLM(asker),
		NewNull(),
	)
}

// Extract runs the chain for one page. Exactly one extractor contributes
// the candidate; extractors after it are not evaluated (short-circuit).
func (c *Chain) Extract(ctx context.Context, page *fetch.Page, cat classify.Category) *Candidate {
	for _, e := range c.extractors {
		if !e.Supports(cat) {
			zap.L().Debug("extract: strategy skipped by classification",
				zap.String("extractor", e.Name()),
				zap.String("category", string(cat)),
			)
			continue
		}

		cand, err := e.Extract(ctx, page)
		if err != nil {
			zap.L().Debug("extract: strategy failed, trying next",
				zap.String("extractor", e.Name()),
				zap.String("url", page.URL),
				zap.Error(err),
			)
			continue
		}
		if cand == nil {
			continue
		}

		cand.Source = e.Name()
		zap.L().Info("extract: strategy succeeded",
			zap.String("extractor", e.Name()),
			zap.String("url", page.URL),
			zap.String("answer_kind", string(cand.Answer.Kind())),
		)
		return cand
	}

	// Unreachable when the chain ends with the null extractor; kept as a
	// hard guarantee that the run can always continue.
	return &Candidate{Note: "no extractor applied", Source: "none"}
}
