package extract

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/solver-cli/internal/classify"
	"github.com/sells-group/solver-cli/internal/fetch"
	"github.com/sells-group/solver-cli/internal/model"
)

// LLM answers free-text pages through the provider chain. A provider
// failure is not fatal: the chain falls through to the null extractor.
type LLM struct {
	asker Asker
}

// NewLLM creates the LLM fallback extractor. asker may be nil when no
// provider is configured, in which case the extractor never applies.
func NewLLM(asker Asker) *LLM {
	return &LLM{asker: asker}
}

func (e *LLM) Name() string { return "llm" }

// Supports always returns true: by this point in the chain every more
// specific strategy has already declined the page.
func (e *LLM) Supports(classify.Category) bool { return true }

// Extract sends the page text as a question to the provider chain.
func (e *LLM) Extract(ctx context.Context, page *fetch.Page) (*Candidate, error) {
	if e.asker == nil {
		return nil, eris.New("llm: no provider configured")
	}

	question := questionText(page)
	if question == "" {
		return nil, eris.New("llm: page has no text to ask about")
	}

	text, err := e.asker.Ask(ctx, question)
	if err != nil {
		return nil, err
	}

	return &Candidate{Answer: model.Text(text)}, nil
}
