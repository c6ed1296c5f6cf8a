package main

import (
	"github.com/sells-group/solver-cli/internal/config"
	"github.com/sells-group/solver-cli/internal/extract"
	"github.com/sells-group/solver-cli/internal/fetch"
	"github.com/sells-group/solver-cli/internal/llm"
	"github.com/sells-group/solver-cli/internal/pdftext"
	"github.com/sells-group/solver-cli/internal/solve"
	"github.com/sells-group/solver-cli/internal/submit"
	"github.com/sells-group/solver-cli/internal/tabular"
	"github.com/sells-group/solver-cli/pkg/aipipe"
	"github.com/sells-group/solver-cli/pkg/anthropic"
)

// newRunner wires a Runner for a single run. Each run gets its own fetch
// source so a browser context is opened once per run and closed with it.
func newRunner(cfg *config.Config) *solve.Runner {
	httpSrc := fetch.NewHTTPSource(fetch.HTTPOptions{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.Fetch.Timeout(),
	})

	var src fetch.Source = httpSrc
	if cfg.Fetch.Mode == "browser" {
		src = fetch.NewBrowserSource(cfg.Fetch.Timeout())
	}

	providers := llm.NewChain(newProviders(cfg)...)
	var asker extract.Asker
	var tabAsker tabular.Asker
	if providers.Available() {
		asker = providers
		tabAsker = providers
	}

	chain := extract.DefaultChain(
		httpSrc,
		tabular.NewAnalyzer(tabAsker),
		pdftext.NewPdfToText(cfg.PDFText.PdfToTextPath),
		asker,
	)

	submitter := submit.NewSubmitter(submit.Options{
		MaxAttempts: cfg.Budgets.SubmitRetries,
		Backoff:     cfg.Budgets.SubmitBackoff(),
	})

	return solve.NewRunner(src, chain, submitter, cfg.Budgets)
}

// newProviders builds the primary-then-secondary provider fan-out from
// configured credentials. A missing primary key simply removes the
// primary; it never aborts the run.
func newProviders(cfg *config.Config) []llm.AnswerProvider {
	var providers []llm.AnswerProvider
	if cfg.Anthropic.Key != "" {
		providers = append(providers, llm.NewAnthropic(
			anthropic.NewClient(cfg.Anthropic.Key),
			cfg.Anthropic.Model,
			cfg.Anthropic.MaxTokens,
			cfg.Anthropic.Temperature,
		))
	}
	if cfg.AIPipe.Key != "" {
		providers = append(providers, llm.NewAIPipe(
			aipipe.NewClient(cfg.AIPipe.BaseURL, cfg.AIPipe.Key),
			cfg.AIPipe.Model,
		))
	}
	return providers
}
