// ABOUTME: OpenAI Chat Completions adapter for the Client interface, with custom base URL support.
// ABOUTME: Structured generation uses JSON-schema response format; parse failures surface as SchemaMismatchError.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient implements Client against the OpenAI Chat Completions API.
// A custom base URL enables OpenAI-compatible providers (OpenRouter,
// Cerebras, local gateways).
type OpenAIClient struct {
	client     openai.Client
	model      string
	maxRetries int
}

// OpenAIOption is a functional option for configuring an OpenAIClient.
type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	baseURL    string
	maxRetries int
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) {
		c.baseURL = url
	}
}

// WithMaxRetries sets how many times rate-limited requests are retried.
func WithMaxRetries(n int) OpenAIOption {
	return func(c *openAIConfig) {
		c.maxRetries = n
	}
}

// NewOpenAIClient creates a Chat Completions client for the given model.
func NewOpenAIClient(apiKey, model string, opts ...OpenAIOption) *OpenAIClient {
	cfg := openAIConfig{maxRetries: 3}
	for _, opt := range opts {
		opt(&cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &OpenAIClient{
		client:     openai.NewClient(reqOpts...),
		model:      model,
		maxRetries: cfg.maxRetries,
	}
}

// Generate produces a free-text completion for the conversation.
func (c *OpenAIClient) Generate(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: convertMessages(messages),
	}

	resp, err := c.complete(ctx, params)
	if err != nil {
		return "", &GenerationError{Provider: "openai", Cause: err}
	}
	if len(resp.Choices) == 0 {
		return "", &GenerationError{Provider: "openai", Cause: fmt.Errorf("empty choices in response")}
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStructured produces a completion constrained to the given JSON
// schema and unmarshals it into out.
func (c *OpenAIClient) GenerateStructured(ctx context.Context, messages []Message, schema ResponseSchema, out any) error {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: convertMessages(messages),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        schema.Name,
					Description: openai.String(schema.Description),
					Schema:      schema.Schema,
					Strict:      openai.Bool(true),
				},
			},
		},
	}

	resp, err := c.complete(ctx, params)
	if err != nil {
		return &GenerationError{Provider: "openai", Cause: err}
	}
	if len(resp.Choices) == 0 {
		return &GenerationError{Provider: "openai", Cause: fmt.Errorf("empty choices in response")}
	}

	raw := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &SchemaMismatchError{Schema: schema.Name, Raw: raw, Cause: err}
	}
	return nil
}

// complete sends the request, retrying rate-limited attempts with
// exponential backoff (2s base, 3x multiplier).
func (c *OpenAIClient) complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	var lastErr error
	delay := 2 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("component=llm.openai action=rate_limit_retry attempt=%d delay=%s err=%v", attempt, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 3
		}

		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRateLimitError(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// isRateLimitError detects 429 responses from the provider SDK, which
// surfaces status codes in its error messages.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit")
}

// convertMessages maps client messages onto the SDK's union params. Assistant
// speaker names are folded into the content as a "name: " prefix since Chat
// Completions has no per-message name slot on all providers.
func convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			converted = append(converted, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			content := msg.Content
			if msg.Name != "" {
				content = msg.Name + ": " + content
			}
			converted = append(converted, openai.AssistantMessage(content))
		default:
			converted = append(converted, openai.UserMessage(msg.Content))
		}
	}
	return converted
}
