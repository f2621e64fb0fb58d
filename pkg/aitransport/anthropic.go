package aitransport

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
)

// AnthropicTransport submits heartbeat prompts through Claude. It ignores
// the structured flag: the prompt template already instructs the model to
// reply with the expected JSON shape, and Claude's API has no equivalent
// of OpenAI's response_format for arbitrary per-key schemas.
type AnthropicTransport struct {
	client anthropic.Client
	log    zerolog.Logger
}

// NewAnthropicTransport builds a transport against the given API key and
// optional base URL override (for a proxying gateway).
func NewAnthropicTransport(apiKey, baseURL string, log zerolog.Logger) *AnthropicTransport {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicTransport{
		client: anthropic.NewClient(opts...),
		log:    log.With().Str("transport", "anthropic").Logger(),
	}
}

// Send submits prompt as a single user message and returns the
// concatenated text content of the reply.
func (t *AnthropicTransport) Send(ctx context.Context, prompt, model string, maxTokens int, structured bool) (string, error) {
	resp, err := t.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic transport: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	t.log.Debug().Int("input_tokens", int(resp.Usage.InputTokens)).Int("output_tokens", int(resp.Usage.OutputTokens)).Msg("heartbeat AI call complete")
	return text.String(), nil
}
