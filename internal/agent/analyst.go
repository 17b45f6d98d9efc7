package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seenimoa/marketbrief/internal/agent/prompts"
	"github.com/seenimoa/marketbrief/internal/llm"
	"github.com/seenimoa/marketbrief/pkg/models"
)

// Analyst turns the quantitative results of a run into a narrative report
// by prompting a language model. It never fails: when the model cannot be
// reached the narrative carries a fixed explanatory message instead.
type Analyst struct {
	provider llm.LLMProvider
	opts     *llm.ChatOptions
	log      zerolog.Logger
}

// AnalystOption configures an Analyst.
type AnalystOption func(*Analyst)

// WithChatOptions sets the options sent with every request.
func WithChatOptions(opts *llm.ChatOptions) AnalystOption {
	return func(a *Analyst) { a.opts = opts }
}

// WithAnalystLogger sets the logger.
func WithAnalystLogger(l zerolog.Logger) AnalystOption {
	return func(a *Analyst) { a.log = l }
}

// NewAnalyst creates an analyst backed by provider. A nil provider makes
// every narrative a fallback.
func NewAnalyst(provider llm.LLMProvider, opts ...AnalystOption) *Analyst {
	a := &Analyst{provider: provider, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Narrate builds the prompt from in and asks the model for the report.
func (a *Analyst) Narrate(ctx context.Context, in prompts.AnalystInput) models.Narrative {
	if a.provider == nil {
		return a.fallback("", llm.ErrNoProviders)
	}

	prompt, err := prompts.RenderAnalyst(in)
	if err != nil {
		return a.fallback(a.provider.Name(), fmt.Errorf("render prompt: %w", err))
	}

	resp, err := a.provider.Chat(ctx, []llm.Message{
		llm.SystemMessage(prompts.AnalystSystemPrompt),
		llm.UserMessage(prompt),
	}, a.opts)
	if err != nil {
		return a.fallback(a.provider.Name(), err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return a.fallback(resp.Provider, llm.ErrEmptyResponse)
	}
	return models.Narrative{
		Text:     text,
		Provider: resp.Provider,
		Model:    resp.Model,
	}
}

func (a *Analyst) fallback(provider string, err error) models.Narrative {
	a.log.Warn().Err(err).Str("provider", provider).Msg("llm unavailable, using fallback narrative")
	return models.Narrative{
		Text:     FallbackNarrative(provider, err),
		Provider: provider,
		Fallback: true,
		Error:    err.Error(),
	}
}

// FallbackNarrative is the message shown in place of the report when the
// model could not produce one.
func FallbackNarrative(provider string, err error) string {
	var sb strings.Builder
	sb.WriteString("No fue posible contactar al modelo LLM")
	if provider != "" {
		sb.WriteString(" a través de " + provider)
	}
	sb.WriteString(".\n")
	if err != nil {
		fmt.Fprintf(&sb, "Error: %v\n", err)
	}
	sb.WriteString("\nSin embargo, el sistema sí generó los datos cuantitativos y de sentimiento " +
		"que pueden consultarse en las otras salidas.")
	return sb.String()
}
