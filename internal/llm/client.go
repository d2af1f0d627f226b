package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rohankatakam/scholargraph/internal/config"
	"github.com/rohankatakam/scholargraph/internal/errors"
)

// verifyTimeout bounds the startup probe
const verifyTimeout = 20 * time.Second

// Client provides a multi-provider completion interface
type Client struct {
	provider provider
	limiter  Limiter
	model    string
	logger   *slog.Logger
}

// NewClient builds the client for cfg.Provider. When cfg.VerifyOnStart is
// set, a short probe completion must succeed or no client is returned.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "llm")

	if cfg.APIKey == "" {
		return nil, errors.ServiceUnavailableError(fmt.Sprintf("no API key configured for %s", cfg.Provider))
	}

	var p provider
	switch cfg.Provider {
	case config.ProviderDeepSeek, "":
		if !strings.HasPrefix(cfg.APIKey, "sk-") {
			return nil, errors.ConfigError("deepseek API key must start with \"sk-\"")
		}
		p = NewDeepSeekClient(cfg.APIKey, cfg.BaseURL, cfg.Model, logger)
	case config.ProviderOpenAI:
		p = NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model, logger)
	case config.ProviderGemini:
		gemini, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, logger)
		if err != nil {
			return nil, err
		}
		p = gemini
	default:
		return nil, errors.ConfigErrorf("unknown llm provider %q", cfg.Provider)
	}

	limiter, err := NewLimiter(ctx, cfg.RateLimit, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	c := newClient(p, limiter, cfg.Model, logger)

	if cfg.VerifyOnStart {
		if err := c.Verify(ctx); err != nil {
			c.Close()
			return nil, err
		}
	}

	logger.Info("llm client initialized",
		"provider", p.name(),
		"model", cfg.Model,
		"key", config.MaskAPIKey(cfg.APIKey),
		"rate_limited", limiter != nil)
	return c, nil
}

func newClient(p provider, limiter Limiter, model string, logger *slog.Logger) *Client {
	return &Client{
		provider: p,
		limiter:  limiter,
		model:    model,
		logger:   logger,
	}
}

// Verify sends a minimal "Hi" completion to confirm the key and endpoint work
func (c *Client) Verify(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	_, err := c.Complete(ctx, CompletionRequest{
		User:        "Hi",
		Temperature: 0,
		MaxTokens:   10,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeServiceUnavailable, errors.SeverityHigh,
			fmt.Sprintf("%s connection test failed", c.provider.name()))
	}
	c.logger.Info("llm connection verified", "provider", c.provider.name())
	return nil
}

// Complete implements Completer
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	start := time.Now()
	text, err := c.provider.complete(ctx, req)
	if err != nil {
		c.logger.Warn("completion failed",
			"provider", c.provider.name(),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return "", err
	}

	c.logger.Debug("completion finished",
		"provider", c.provider.name(),
		"duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

// Model implements Completer
func (c *Client) Model() string {
	return c.model
}

// Provider returns the active provider name
func (c *Client) Provider() string {
	return c.provider.name()
}

// Close releases the limiter's resources
func (c *Client) Close() error {
	if c.limiter != nil {
		return c.limiter.Close()
	}
	return nil
}
