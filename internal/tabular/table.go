// Package tabular turns header+rows matrices from HTML tables, CSV, and
// XLSX files into answers: direct numeric aggregations when a question
// names one, summary statistics otherwise.
package tabular

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a parsed tabular structure: one header row plus data rows.
// Rows may be ragged; queries treat missing cells as missing values.
type Table struct {
	Header []string
	Rows   [][]string
}

// FromRows builds a Table from raw rows, taking the first row as header.
func FromRows(rows [][]string) (*Table, error) {
	if len(rows) < 2 {
		return nil, eris.New("tabular: need a header row and at least one data row")
	}
	return &Table{Header: rows[0], Rows: rows[1:]}, nil
}

var nonNumericRe = regexp.MustCompile(`[^0-9.\-]`)

// CoerceNumeric parses a cell as a number, stripping currency symbols,
// commas, and units. Returns (0, false) for cells with no numeric content.
func CoerceNumeric(cell string) (float64, bool) {
	cleaned := nonNumericRe.ReplaceAllString(cell, "")
	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Column returns the numeric values of column i, excluding cells that do
// not coerce. Missing cells in ragged rows are excluded too.
func (t *Table) Column(i int) []float64 {
	var out []float64
	for _, row := range t.Rows {
		if i >= len(row) {
			continue
		}
		if v, ok := CoerceNumeric(row[i]); ok {
			out = append(out, v)
		}
	}
	return out
}

// ColumnIndex finds a column whose header equals or contains name,
// case-insensitive. Exact matches win over substring matches.
func (t *Table) ColumnIndex(name string) (int, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for i, h := range t.Header {
		if strings.ToLower(strings.TrimSpace(h)) == lower {
			return i, true
		}
	}
	for i, h := range t.Header {
		if strings.Contains(strings.ToLower(h), lower) {
			return i, true
		}
	}
	return 0, false
}

// PreferredNumericColumn selects the column to aggregate when no question
// names one: a column whose header contains "value" wins; otherwise the
// first column where at least one row coerces to a number.
func (t *Table) PreferredNumericColumn() (int, bool) {
	for i, h := range t.Header {
		if strings.Contains(strings.ToLower(h), "value") && len(t.Column(i)) > 0 {
			return i, true
		}
	}
	for i := range t.Header {
		if len(t.Column(i)) > 0 {
			return i, true
		}
	}
	return 0, false
}

// NumericColumns returns the indices of all columns with at least one
// numeric value.
func (t *Table) NumericColumns() []int {
	var out []int
	for i := range t.Header {
		if len(t.Column(i)) > 0 {
			out = append(out, i)
		}
	}
	return out
}

// Render writes the table as plain text (tab-separated, header first),
// capped to maxRows data rows. Used for LLM delegation and previews.
func (t *Table) Render(maxRows int) string {
	var b strings.Builder
	b.WriteString(strings.Join(t.Header, "\t"))
	for i, row := range t.Rows {
		if maxRows > 0 && i >= maxRows {
			break
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(row, "\t"))
	}
	return b.String()
}
