package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, "neo4j", cfg.Neo4j.User)
	assert.Equal(t, 5000, cfg.HTTP.Port)
	assert.Equal(t, "/api", cfg.HTTP.Prefix)
	assert.Equal(t, ProviderDeepSeek, cfg.LLM.Provider)
	assert.Equal(t, "https://api.deepseek.com", cfg.LLM.BaseURL)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.Equal(t, 50, cfg.Graph.DefaultNodeLimit)
	assert.Empty(t, cfg.AI.AuditPath)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scholargraph.yaml")
	content := `
http:
  port: 8080
  prefix: /v1
neo4j:
  uri: bolt://graph:7687
  query_timeout: 10s
graph:
  default_node_limit: 25
ai:
  read_only: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("NEO4J_PASSWORD", "secret-from-env")
	t.Setenv("DEEPSEEK_API_KEY", "sk-test-key-123456")
	t.Setenv("SCHOLARGRAPH_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "/v1", cfg.HTTP.Prefix)
	assert.Equal(t, "bolt://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, 10*time.Second, cfg.Neo4j.QueryTimeout)
	assert.Equal(t, "secret-from-env", cfg.Neo4j.Password)
	assert.Equal(t, 25, cfg.Graph.DefaultNodeLimit)
	assert.True(t, cfg.AI.ReadOnly)
	assert.Equal(t, "sk-test-key-123456", cfg.LLM.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched sections keep defaults
	assert.Equal(t, 500, cfg.Graph.MaxNodeLimit)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
}

func TestLoad_ProviderSelectsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scholargraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0644))

	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "gemini-key", cfg.LLM.APIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Empty(t, cfg.LLM.BaseURL)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		ctx        ValidationContext
		wantErrors bool
		wantWarn   bool
	}{
		{
			name:     "defaults serve without key warns",
			mutate:   func(c *Config) {},
			ctx:      ValidationContextServe,
			wantWarn: true,
		},
		{
			name:       "bad scheme",
			mutate:     func(c *Config) { c.Neo4j.URI = "http://localhost:7474" },
			ctx:        ValidationContextCypher,
			wantErrors: true,
		},
		{
			name:       "ask requires key",
			mutate:     func(c *Config) {},
			ctx:        ValidationContextAsk,
			wantErrors: true,
		},
		{
			name: "ask with key",
			mutate: func(c *Config) {
				c.LLM.APIKey = "sk-abc"
			},
			ctx: ValidationContextAsk,
		},
		{
			name:       "port out of range",
			mutate:     func(c *Config) { c.HTTP.Port = 70000; c.LLM.APIKey = "sk-abc" },
			ctx:        ValidationContextServe,
			wantErrors: true,
		},
		{
			name:       "default limit over max",
			mutate:     func(c *Config) { c.Graph.DefaultNodeLimit = 1000 },
			ctx:        ValidationContextCypher,
			wantErrors: true,
		},
		{
			name:       "unknown provider",
			mutate:     func(c *Config) { c.LLM.Provider = "llama"; c.LLM.APIKey = "k" },
			ctx:        ValidationContextAsk,
			wantErrors: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			result := cfg.Validate(tt.ctx)
			assert.Equal(t, tt.wantErrors, result.HasErrors(), result.Error())
			assert.Equal(t, tt.wantWarn, len(result.Warnings) > 0)
			if tt.wantErrors {
				assert.Error(t, result.AsError())
			} else {
				assert.NoError(t, result.AsError())
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "(not set)", MaskAPIKey(""))
	assert.Equal(t, "***", MaskAPIKey("sk-short"))
	assert.Equal(t, "sk-abcd...wxyz", MaskAPIKey("sk-abcdefghijklmnopqrstuvwxyz"))
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("SG_TEST_INT", "42")
	t.Setenv("SG_TEST_BAD_INT", "x")
	t.Setenv("SG_TEST_BOOL", "true")

	assert.Equal(t, 42, GetInt("SG_TEST_INT", 1))
	assert.Equal(t, 1, GetInt("SG_TEST_BAD_INT", 1))
	assert.True(t, GetBool("SG_TEST_BOOL", false))
	assert.Equal(t, "fallback", GetString("SG_TEST_UNSET", "fallback"))
}
