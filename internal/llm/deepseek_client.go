package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// DeepSeekClient talks to DeepSeek's OpenAI-compatible chat endpoint
type DeepSeekClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewDeepSeekClient creates a client against baseURL (https://api.deepseek.com by default)
func NewDeepSeekClient(apiKey, baseURL, model string, logger *slog.Logger) *DeepSeekClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &DeepSeekClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger.With("provider", "deepseek", "model", model),
	}
}

func (c *DeepSeekClient) name() string { return "deepseek" }

func (c *DeepSeekClient) complete(ctx context.Context, req CompletionRequest) (string, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("deepseek completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("deepseek returned no choices")
	}

	response := resp.Choices[0].Message.Content
	c.logger.Debug("deepseek completion",
		"prompt_length", len(req.User),
		"response_length", len(response),
		"tokens_used", resp.Usage.TotalTokens,
	)

	return response, nil
}
