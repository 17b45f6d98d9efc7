package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/seenimoa/marketbrief/internal/agent/prompts"
	"github.com/seenimoa/marketbrief/internal/llm"
	"github.com/seenimoa/marketbrief/pkg/models"
)

func analystInput() prompts.AnalystInput {
	return prompts.AnalystInput{
		Query:   "¿Cómo va AAPL?",
		Tickers: []string{"AAPL"},
		Summary: models.NewMarketSummary(),
		Sentiments: models.SentimentByTicker{
			"AAPL": {Overall: models.SentimentNeutral, Neutral: 1, Labels: []models.SentimentLabel{models.SentimentNeutral}},
		},
		News: models.NewsByTicker{
			"AAPL": {Ticker: "AAPL", Items: []models.NewsItem{{Headline: "Apple celebra junta"}}},
		},
	}
}

func TestAnalystNilProvider(t *testing.T) {
	n := NewAnalyst(nil).Narrate(context.Background(), analystInput())
	if !n.Fallback || n.Provider != "" {
		t.Fatalf("narrative: %+v", n)
	}
	if !strings.HasPrefix(n.Text, "No fue posible contactar al modelo LLM.\n") {
		t.Fatalf("text: %q", n.Text)
	}
	if n.Error != llm.ErrNoProviders.Error() {
		t.Fatalf("error: %q", n.Error)
	}
}

func TestAnalystEmptyResponse(t *testing.T) {
	n := NewAnalyst(simpleProvider(" \n\t")).Narrate(context.Background(), analystInput())
	if !n.Fallback || n.Error != llm.ErrEmptyResponse.Error() {
		t.Fatalf("narrative: %+v", n)
	}
}

func TestAnalystForwardsOptions(t *testing.T) {
	opts := &llm.ChatOptions{Temperature: 0.3, MaxTokens: 512}
	p := simpleProvider("ok")

	n := NewAnalyst(p, WithChatOptions(opts)).Narrate(context.Background(), analystInput())
	if n.Fallback || n.Text != "ok" {
		t.Fatalf("narrative: %+v", n)
	}
	if p.lastOpts != opts {
		t.Fatal("chat options were not forwarded")
	}
	if len(p.lastMsgs) != 2 {
		t.Fatalf("messages: %d", len(p.lastMsgs))
	}
	if p.lastMsgs[0].Role != llm.RoleSystem || p.lastMsgs[0].Content != prompts.AnalystSystemPrompt {
		t.Fatal("first message should be the analyst system prompt")
	}
	user := p.lastMsgs[1]
	if user.Role != llm.RoleUser || !strings.Contains(user.Content, "¿Cómo va AAPL?") ||
		!strings.Contains(user.Content, "Apple celebra junta") {
		t.Fatalf("user prompt:\n%s", user.Content)
	}
}

func TestAnalystProviderError(t *testing.T) {
	boom := errors.New("connection refused")
	n := NewAnalyst(failingProvider(boom)).Narrate(context.Background(), analystInput())
	if !n.Fallback || n.Provider != "mock" || n.Error != "connection refused" {
		t.Fatalf("narrative: %+v", n)
	}
}

func TestFallbackNarrative(t *testing.T) {
	got := FallbackNarrative("ollama", errors.New("dial tcp"))
	want := "No fue posible contactar al modelo LLM a través de ollama.\n" +
		"Error: dial tcp\n\n" +
		"Sin embargo, el sistema sí generó los datos cuantitativos y de sentimiento " +
		"que pueden consultarse en las otras salidas."
	if got != want {
		t.Fatalf("got %q", got)
	}
}
