package extract

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solver-cli/internal/classify"
	"github.com/sells-group/solver-cli/internal/fetch"
	"github.com/sells-group/solver-cli/internal/model"
	"github.com/sells-group/solver-cli/internal/tabular"
)

// Table parses the first HTML table on the page and sums its preferred
// numeric column. Tables with no numeric column are delegated to the
// analyzer with the page text as the question.
type Table struct {
	analyzer Analyzer
}

// NewTable creates the table extractor.
func NewTable(analyzer Analyzer) *Table {
	return &Table{analyzer: analyzer}
}

func (e *Table) Name() string { return "table" }

// Supports skips media pages where a stray markup table cannot be the
// task content.
func (e *Table) Supports(cat classify.Category) bool {
	return cat != classify.Audio && cat != classify.HeatmapImage
}

// Extract sums the preferred numeric column of the first table: a header
// containing "value" wins, else the first column with any coercible
// number. Integral sums submit as integers.
func (e *Table) Extract(ctx context.Context, page *fetch.Page) (*Candidate, error) {
	rows := page.FirstTable()
	if rows == nil {
		return nil, nil
	}

	t, err := tabular.FromRows(rows)
	if err != nil {
		return nil, eris.Wrap(err, "table: parse rows")
	}

	if col, ok := t.PreferredNumericColumn(); ok {
		var sum float64
		for _, v := range t.Column(col) {
			sum += v
		}
		return &Candidate{Answer: model.Number(sum)}, nil
	}

	// No numeric column: hand the open question to the analyzer.
	answer := e.analyzer.Analyze(ctx, t, questionText(page))
	return &Candidate{Answer: answer}, nil
}
