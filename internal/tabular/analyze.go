package tabular

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/solver-cli/internal/model"
)

// Asker answers a free-text question. Satisfied by the solve package's
// provider chain; kept narrow here so tabular does not depend on it.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Analyzer derives an Answer from a table, optionally guided by a
// question string, with LLM delegation for tables it cannot aggregate.
type Analyzer struct {
	asker Asker // may be nil
}

// NewAnalyzer creates an Analyzer. asker may be nil, in which case
// open-ended tables fall back to a raw-row preview.
func NewAnalyzer(asker Asker) *Analyzer {
	return &Analyzer{asker: asker}
}

// aggVerbs maps question keywords to aggregations in first-match priority:
// sum beats mean beats min beats max beats count when several appear.
var aggVerbs = []struct {
	keywords []string
	name     string
}{
	{[]string{"sum", "total"}, "sum"},
	{[]string{"mean", "average"}, "mean"},
	{[]string{"min", "lowest", "smallest"}, "min"},
	{[]string{"max", "highest", "largest"}, "max"},
	{[]string{"count", "how many"}, "count"},
}

// matchVerb finds the highest-priority aggregation verb in a question.
func matchVerb(question string) (string, bool) {
	lower := strings.ToLower(question)
	for _, v := range aggVerbs {
		for _, kw := range v.keywords {
			if strings.Contains(lower, kw) {
				return v.name, true
			}
		}
	}
	return "", false
}

// matchColumn finds the first table column whose header appears in the
// question, case-insensitive.
func matchColumn(t *Table, question string) (int, bool) {
	lower := strings.ToLower(question)
	for i, h := range t.Header {
		header := strings.ToLower(strings.TrimSpace(h))
		if header == "" {
			continue
		}
		if strings.Contains(lower, header) {
			return i, true
		}
	}
	return 0, false
}

func aggregate(vals []float64, verb string) float64 {
	switch verb {
	case "count":
		return float64(len(vals))
	case "sum":
		var sum float64
		for _, v := range vals {
			sum += v
		}
		return sum
	case "mean":
		if len(vals) == 0 {
			return 0
		}
		var sum float64
		for _, v := range vals {
			sum += v
		}
		return sum / float64(len(vals))
	case "min":
		if len(vals) == 0 {
			return 0
		}
		m := vals[0]
		for _, v := range vals[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case "max":
		if len(vals) == 0 {
			return 0
		}
		m := vals[0]
		for _, v := range vals[1:] {
			if v > m {
				m = v
			}
		}
		return m
	}
	return 0
}

// Analyze derives an Answer from the table. If question names a column
// and an aggregation verb, the single scalar aggregation over that column
// is returned. Otherwise per-numeric-column summary statistics. Tables
// with no numeric columns go to the asker when one is available, else a
// raw-row preview.
func (a *Analyzer) Analyze(ctx context.Context, t *Table, question string) model.Answer {
	if question != "" {
		if verb, ok := matchVerb(question); ok {
			if col, ok := matchColumn(t, question); ok {
				vals := t.Column(col)
				zap.L().Debug("tabular: question aggregation",
					zap.String("verb", verb),
					zap.String("column", t.Header[col]),
					zap.Int("values", len(vals)),
				)
				return model.Number(aggregate(vals, verb))
			}
		}
	}

	numeric := t.NumericColumns()
	if len(numeric) > 0 {
		return a.summarize(t, numeric)
	}

	if a.asker != nil && question != "" {
		prompt := question + "\n\nTable:\n" + t.Render(50)
		text, err := a.asker.Ask(ctx, prompt)
		if err == nil {
			return model.Text(text)
		}
		zap.L().Warn("tabular: asker delegation failed", zap.Error(err))
	}

	return a.preview(t)
}

// summarize builds {sum, mean, min, max, count} per numeric column.
func (a *Analyzer) summarize(t *Table, cols []int) model.Answer {
	out := make(map[string]model.Answer, len(cols))
	for _, i := range cols {
		vals := t.Column(i)
		out[t.Header[i]] = model.Mapping(map[string]model.Answer{
			"sum":   model.Number(aggregate(vals, "sum")),
			"mean":  model.Number(aggregate(vals, "mean")),
			"min":   model.Number(aggregate(vals, "min")),
			"max":   model.Number(aggregate(vals, "max")),
			"count": model.Number(aggregate(vals, "count")),
		})
	}
	return model.Mapping(out)
}

// preview returns the first rows verbatim for tables nothing else could
// handle.
func (a *Analyzer) preview(t *Table) model.Answer {
	const maxRows = 10
	rows := make([]model.Answer, 0, maxRows+1)

	header := make([]model.Answer, len(t.Header))
	for i, h := range t.Header {
		header[i] = model.Text(h)
	}
	rows = append(rows, model.Sequence(header))

	for i, row := range t.Rows {
		if i >= maxRows {
			break
		}
		cells := make([]model.Answer, len(row))
		for j, c := range row {
			cells[j] = model.Text(c)
		}
		rows = append(rows, model.Sequence(cells))
	}
	return model.Sequence(rows)
}
