package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIClient wraps the official OpenAI SDK
type OpenAIClient struct {
	client openai.Client
	model  openai.ChatModel
	logger *slog.Logger
}

// NewOpenAIClient creates an OpenAI client. An empty baseURL uses the SDK default.
func NewOpenAIClient(apiKey, baseURL, model string, logger *slog.Logger) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  openai.ChatModel(model),
		logger: logger.With("provider", "openai", "model", model),
	}
}

func (c *OpenAIClient) name() string { return "openai" }

func (c *OpenAIClient) complete(ctx context.Context, req CompletionRequest) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       c.model,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	response := completion.Choices[0].Message.Content
	c.logger.Debug("openai completion",
		"prompt_length", len(req.User),
		"response_length", len(response),
		"tokens_used", completion.Usage.TotalTokens,
	)

	return response, nil
}
