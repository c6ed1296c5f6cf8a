// Package llm answers free-text questions through a primary provider with
// a single fallback to a secondary HTTP gateway. Callers degrade a failed
// chain to a null answer; provider failure is never fatal to a run.
package llm

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/solver-cli/pkg/aipipe"
	"github.com/sells-group/solver-cli/pkg/anthropic"
)

// ErrUnavailable reports that every configured provider failed or none
// was configured. Callers convert it into a null-answer fallback.
var ErrUnavailable = eris.New("llm: no provider available")

// systemPrompt constrains output to a bare answer so the value can be
// submitted verbatim.
const systemPrompt = "You answer quiz questions. Reply with the bare answer only: no explanation, no punctuation around it, no markdown."

// AnswerProvider answers a free-text question.
type AnswerProvider interface {
	Name() string
	Ask(ctx context.Context, question string) (string, error)
}

// Anthropic is the primary provider, backed by the Messages API.
type Anthropic struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropic creates the primary provider.
func NewAnthropic(client anthropic.Client, model string, maxTokens int, temperature float64) *Anthropic {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	return &Anthropic{
		client:      client,
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: temperature,
	}
}

func (p *Anthropic) Name() string { return "anthropic" }

// Ask sends the question with the bare-answer system instruction.
func (p *Anthropic) Ask(ctx context.Context, question string) (string, error) {
	temp := p.temperature
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		System:      systemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: question}},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogUsage(p.model)

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.New("llm: anthropic returned empty answer")
	}
	return text, nil
}

// AIPipe is the secondary provider, backed by a generic HTTP gateway.
type AIPipe struct {
	client aipipe.Client
	model  string
}

// NewAIPipe creates the secondary provider.
func NewAIPipe(client aipipe.Client, model string) *AIPipe {
	return &AIPipe{client: client, model: model}
}

func (p *AIPipe) Name() string { return "aipipe" }

// Ask sends the question through the gateway and normalizes the text field.
func (p *AIPipe) Ask(ctx context.Context, question string) (string, error) {
	resp, err := p.client.Generate(ctx, aipipe.GenerateRequest{
		Model:  p.model,
		Prompt: systemPrompt + "\n\n" + question,
	})
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.New("llm: aipipe returned empty answer")
	}
	return text, nil
}

// Chain composes providers as a fixed primary-then-secondary fallback:
// exactly one attempt per provider, never more.
type Chain struct {
	providers []AnswerProvider
}

// NewChain builds a provider chain; nil entries are skipped, so an absent
// primary credential simply removes the primary from the fan-out.
func NewChain(providers ...AnswerProvider) *Chain {
	c := &Chain{}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

// Available reports whether at least one provider is configured.
func (c *Chain) Available() bool { return len(c.providers) > 0 }

func (c *Chain) Name() string { return "chain" }

// Ask tries each provider once in order, returning the first success.
// All failing (or none configured) yields ErrUnavailable.
func (c *Chain) Ask(ctx context.Context, question string) (string, error) {
	var lastErr error
	for _, p := range c.providers {
		text, err := p.Ask(ctx, question)
		if err == nil {
			return text, nil
		}
		zap.L().Warn("llm: provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)
		lastErr = err
	}
	if lastErr != nil {
		return "", eris.Wrap(lastErr, "llm: all providers failed")
	}
	return "", ErrUnavailable
}
