package pipeline

import (
	"context"
	"strings"

	"github.com/trailsec/ragtrail/internal/api/openai"
)

// OpenAIGenerator generates answers with the chat completions API.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	n           int
}

// NewOpenAIGenerator creates a generator requesting n candidates per prompt.
func NewOpenAIGenerator(client *openai.Client, model string, temperature float32, n int) *OpenAIGenerator {
	if n < 1 {
		n = 1
	}
	return &OpenAIGenerator{client: client, model: model, temperature: temperature, n: n}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (*Generation, error) {
	resp, err := g.client.CreateChatCompletion(ctx, &openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    []openai.ChatCompletionMessage{{Role: "user", Content: prompt}},
		Temperature: &g.temperature,
		N:           g.n,
	})
	if err != nil {
		return nil, err
	}

	gen := &Generation{Model: resp.Model}
	for _, choice := range resp.Choices {
		text := strings.TrimSpace(choice.Message.Content)
		if text == "" {
			continue
		}
		gen.Texts = append(gen.Texts, text)
	}
	return gen, nil
}

func (g *OpenAIGenerator) Params() map[string]any {
	return map[string]any{
		"model":       g.model,
		"temperature": g.temperature,
		"n":           g.n,
	}
}

var _ Generator = (*OpenAIGenerator)(nil)
