// Package extract derives an answer from a fetched task page through an
// ordered chain of strategies: structured JSON, base64-encoded payloads,
// HTML tables, downloadable files, LLM fallback, and a null fallback that
// guarantees the chain always yields a submittable payload.
package extract

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/solver-cli/internal/classify"
	"github.com/sells-group/solver-cli/internal/fetch"
	"github.com/sells-group/solver-cli/internal/model"
	"github.com/sells-group/solver-cli/internal/tabular"
)

// Candidate is the outcome of a successful extraction: the answer plus,
// for structured extractors, the server-provided payload template whose
// non-identity fields are preserved verbatim.
type Candidate struct {
	Answer   model.Answer
	Template map[string]any
	Note     string
	Source   string
}

// Extractor attempts to derive an answer from a page. A nil candidate or
// an error means this strategy does not apply; the chain proceeds to the
// next one.
type Extractor interface {
	Name() string
	// Supports lets classification skip obviously-irrelevant strategies.
	// It must err on the side of true: classification is advisory.
	Supports(cat classify.Category) bool
	Extract(ctx context.Context, page *fetch.Page) (*Candidate, error)
}

// Asker answers a free-text question; satisfied by the llm chain.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Downloader retrieves a linked resource (csv/xlsx/pdf) as raw bytes;
// satisfied by the HTTP fetch source.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Analyzer turns a parsed table into an answer; satisfied by the tabular
// analyzer.
type Analyzer interface {
	Analyze(ctx context.Context, t *tabular.Table, question string) model.Answer
}

// PDFText extracts text from PDF bytes; satisfied by the pdftext package.
type PDFText interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// maxQuestionLen bounds the page text sent to LLM providers.
const maxQuestionLen = 4000

// questionText renders the page as a free-text question for the analyzer
// and the LLM fallback. The page title, when present, leads the question
// as context. Truncation lands on a rune boundary so the prompt stays
// valid UTF-8.
func questionText(page *fetch.Page) string {
	text := page.PlainText()
	if title := page.Title(); title != "" && !strings.Contains(text, title) {
		text = title + "\n\n" + text
	}
	if len(text) > maxQuestionLen {
		cut := maxQuestionLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}
