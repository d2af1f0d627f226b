package config

import (
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "ScholarGraph"
)

// KeyringManager handles LLM API keys stored in the OS keychain.
// One item per provider: "deepseek-api-key", "openai-api-key", "gemini-api-key".
type KeyringManager struct {
	logger *slog.Logger
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: slog.Default().With("component", "keyring"),
	}
}

func keyringItem(provider string) string {
	return provider + "-api-key"
}

// SaveAPIKey stores a provider API key in the OS keychain
func (km *KeyringManager) SaveAPIKey(provider, apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("api key cannot be empty")
	}

	if err := keyring.Set(KeyringService, keyringItem(provider), apiKey); err != nil {
		km.logger.Error("failed to save API key to keychain", "provider", provider, "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}

	km.logger.Info("api key saved to keychain", "service", KeyringService, "provider", provider)
	return nil
}

// GetAPIKey retrieves a provider API key from the OS keychain.
// A missing entry is not an error.
func (km *KeyringManager) GetAPIKey(provider string) (string, error) {
	apiKey, err := keyring.Get(KeyringService, keyringItem(provider))
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to get API key from keychain", "provider", provider, "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}

	km.logger.Debug("api key retrieved from keychain", "provider", provider)
	return apiKey, nil
}

// DeleteAPIKey removes a provider API key from the OS keychain
func (km *KeyringManager) DeleteAPIKey(provider string) error {
	err := keyring.Delete(KeyringService, keyringItem(provider))
	if err == keyring.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}
	return nil
}

// IsAvailable checks if OS keychain is available.
// Returns false on headless systems where no secret service is running.
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "test-availability")
	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.Debug("keychain not available", "error", err)
		return false
	}
	return true
}

// MaskAPIKey masks an API key for display.
// Shows the first 7 and last 4 characters: "sk-abcd...wxyz".
func MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return "(not set)"
	}
	if len(apiKey) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", apiKey[:7], apiKey[len(apiKey)-4:])
}
