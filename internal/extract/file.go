package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/solver-cli/internal/classify"
	"github.com/sells-group/solver-cli/internal/fetch"
	"github.com/sells-group/solver-cli/internal/model"
	"github.com/sells-group/solver-cli/internal/tabular"
)

// File scans anchors for downloadable tabular files (csv/xlsx/xls),
// downloads the first, and applies the same numeric-column summation rule
// as the table extractor. PDF links go through text extraction into the
// tabular analyzer.
type File struct {
	dl       Downloader
	analyzer Analyzer
	pdf      PDFText
	asker    Asker // may be nil
}

// NewFile creates the downloadable-file extractor.
func NewFile(dl Downloader, analyzer Analyzer, pdf PDFText, asker Asker) *File {
	return &File{dl: dl, analyzer: analyzer, pdf: pdf, asker: asker}
}

func (e *File) Name() string { return "file" }

// Supports skips media pages.
func (e *File) Supports(cat classify.Category) bool {
	return cat != classify.Audio && cat != classify.HeatmapImage
}

// Extract downloads the first tabular or PDF link and derives an answer
// from its contents.
func (e *File) Extract(ctx context.Context, page *fetch.Page) (*Candidate, error) {
	for _, link := range page.Links() {
		lower := strings.ToLower(link.Href)
		switch {
		case strings.HasSuffix(lower, ".csv"),
			strings.HasSuffix(lower, ".xlsx"),
			strings.HasSuffix(lower, ".xls"):
			return e.extractTabular(ctx, page, link.Href)
		case strings.HasSuffix(lower, ".pdf"):
			return e.extractPDF(ctx, page, link.Href)
		}
	}
	return nil, nil
}

func (e *File) extractTabular(ctx context.Context, page *fetch.Page, href string) (*Candidate, error) {
	data, err := e.dl.Download(ctx, href)
	if err != nil {
		return nil, eris.Wrapf(err, "file: download %s", href)
	}

	var rows [][]string
	if strings.HasSuffix(strings.ToLower(href), ".csv") {
		rows, err = parseCSV(data)
	} else {
		rows, err = parseXLSX(data)
	}
	if err != nil {
		return nil, err
	}

	t, err := tabular.FromRows(rows)
	if err != nil {
		return nil, eris.Wrapf(err, "file: tabular shape of %s", href)
	}

	if col, ok := t.PreferredNumericColumn(); ok {
		var sum float64
		for _, v := range t.Column(col) {
			sum += v
		}
		return &Candidate{Answer: model.Number(sum)}, nil
	}

	answer := e.analyzer.Analyze(ctx, t, questionText(page))
	return &Candidate{Answer: answer}, nil
}

// extractPDF concatenates the PDF's page text, recovers the first
// table-like block if any, and feeds the analyzer.
func (e *File) extractPDF(ctx context.Context, page *fetch.Page, href string) (*Candidate, error) {
	if e.pdf == nil {
		return nil, eris.New("file: no pdf extractor configured")
	}

	data, err := e.dl.Download(ctx, href)
	if err != nil {
		return nil, eris.Wrapf(err, "file: download %s", href)
	}

	text, err := e.pdf.ExtractText(ctx, data)
	if err != nil {
		return nil, err
	}

	question := questionText(page)

	if rows := parseTextTable(text); rows != nil {
		t, terr := tabular.FromRows(rows)
		if terr == nil {
			return &Candidate{Answer: e.analyzer.Analyze(ctx, t, question)}, nil
		}
	}

	if e.asker != nil {
		prompt := question + "\n\nDocument text:\n" + truncate(text, maxQuestionLen)
		reply, aerr := e.asker.Ask(ctx, prompt)
		if aerr == nil {
			return &Candidate{Answer: model.Text(reply)}, nil
		}
	}

	return nil, eris.New("file: pdf yielded no table and no provider answered")
}

func parseCSV(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "file: read csv row")
		}
		for i, f := range record {
			record[i] = strings.TrimSpace(f)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func parseXLSX(data []byte) ([][]string, error) {
	dir, err := os.MkdirTemp("", "solver-xlsx-")
	if err != nil {
		return nil, eris.Wrap(err, "file: create temp dir")
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, "sheet.xlsx")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, eris.Wrap(err, "file: write temp xlsx")
	}

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "file: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("file: xlsx has no sheets")
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

var columnGapRe = regexp.MustCompile(`\s{2,}`)

// parseTextTable recovers a table from layout-preserved text: the longest
// run of consecutive lines sharing the same column count (>= 2) when
// split on two-or-more spaces.
func parseTextTable(text string) [][]string {
	var best, current [][]string
	currentCols := 0

	flush := func() {
		if len(current) > len(best) && len(current) >= 2 {
			best = current
		}
		current = nil
		currentCols = 0
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		cols := columnGapRe.Split(line, -1)
		if len(cols) < 2 {
			flush()
			continue
		}
		if currentCols != 0 && len(cols) != currentCols {
			flush()
		}
		currentCols = len(cols)
		current = append(current, cols)
	}
	flush()

	if len(best) < 2 {
		return nil
	}
	return best
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
