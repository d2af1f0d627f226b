package llm

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// GeminiClient wraps Google's Generative AI SDK
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiClient creates a new Gemini API client
func NewGeminiClient(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  model,
		logger: logger.With("provider", "gemini", "model", model),
	}, nil
}

func (c *GeminiClient) name() string { return "gemini" }

func (c *GeminiClient) complete(ctx context.Context, req CompletionRequest) (string, error) {
	var systemInstruction *genai.Content
	if req.System != "" {
		systemInstruction = genai.Text(req.System)[0]
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		Temperature:       ptrFloat32(req.Temperature),
	}
	if req.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.User), genConfig)
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no content parts")
	}

	text := candidate.Content.Parts[0].Text
	c.logger.Debug("gemini completion",
		"prompt_length", len(req.User),
		"response_length", len(text),
	)

	return text, nil
}

func ptrFloat32(f float64) *float32 {
	f32 := float32(f)
	return &f32
}
