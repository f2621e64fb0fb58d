package aitransport

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/rs/zerolog"
)

// OpenAITransport submits heartbeat prompts through the chat completions
// API. When structured is requested it sets response_format to a JSON
// schema describing the expected per-agent actions shape, so the model's
// output is constrained rather than merely instructed.
type OpenAITransport struct {
	client openai.Client
	log    zerolog.Logger
}

// NewOpenAITransport builds a transport against the given API key and
// optional base URL override.
func NewOpenAITransport(apiKey, baseURL string, log zerolog.Logger) *OpenAITransport {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAITransport{
		client: openai.NewClient(opts...),
		log:    log.With().Str("transport", "openai").Logger(),
	}
}

// Send submits prompt as a single user message and returns the first
// choice's content.
func (t *OpenAITransport) Send(ctx context.Context, prompt, model string, maxTokens int, structured bool) (string, error) {
	req := openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}

	if structured {
		req.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "heartbeat_actions",
					Schema: actionReplySchema,
					Strict: openai.Bool(false),
				},
			},
		}
	}

	resp, err := t.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai transport: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai transport: empty choices")
	}
	t.log.Debug().Int("prompt_tokens", int(resp.Usage.PromptTokens)).Int("completion_tokens", int(resp.Usage.CompletionTokens)).Msg("heartbeat AI call complete")
	return resp.Choices[0].Message.Content, nil
}
