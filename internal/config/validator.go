package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rohankatakam/scholargraph/internal/errors"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextServe - the HTTP server needs Neo4j; the LLM is optional
	ValidationContextServe ValidationContext = "serve"
	// ValidationContextCypher - direct statement execution needs Neo4j only
	ValidationContextCypher ValidationContext = "cypher"
	// ValidationContextAsk - the NL bridge from the CLI needs Neo4j and an LLM key
	ValidationContextAsk ValidationContext = "ask"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}

	return sb.String()
}

// AsError converts a failed result into a typed config error, nil otherwise
func (vr *ValidationResult) AsError() error {
	if !vr.HasErrors() {
		return nil
	}
	return errors.ConfigError(strings.TrimSpace(vr.Error()))
}

// Validate validates configuration for the given context
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	c.validateNeo4j(result)

	switch ctx {
	case ValidationContextServe:
		c.validateHTTP(result)
		c.validateGraph(result)
		if c.LLM.APIKey == "" {
			result.AddWarning("no %s API key configured; /ai-cypher will answer service_check", c.LLM.Provider)
		} else {
			c.validateLLM(result)
		}
	case ValidationContextAsk:
		if c.LLM.APIKey == "" {
			result.AddError("%s API key is required (set %s_API_KEY)", c.LLM.Provider, strings.ToUpper(c.LLM.Provider))
		}
		c.validateLLM(result)
	case ValidationContextCypher:
		c.validateGraph(result)
	}

	return result
}

func (c *Config) validateNeo4j(result *ValidationResult) {
	if c.Neo4j.URI == "" {
		result.AddError("neo4j.uri is required")
		return
	}
	u, err := url.Parse(c.Neo4j.URI)
	if err != nil {
		result.AddError("neo4j.uri is not a valid URI: %v", err)
		return
	}
	switch u.Scheme {
	case "bolt", "bolt+s", "bolt+ssc", "neo4j", "neo4j+s", "neo4j+ssc":
	default:
		result.AddError("neo4j.uri scheme %q is not supported", u.Scheme)
	}
	if c.Neo4j.User == "" || c.Neo4j.Password == "" {
		result.AddWarning("neo4j credentials are empty; connecting without authentication")
	}
	if c.Neo4j.MaxPoolSize < 0 {
		result.AddError("neo4j.max_pool_size must not be negative")
	}
}

func (c *Config) validateHTTP(result *ValidationResult) {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		result.AddError("http.port %d is out of range", c.HTTP.Port)
	}
	if c.HTTP.Prefix != "" && !strings.HasPrefix(c.HTTP.Prefix, "/") {
		result.AddError("http.prefix must start with '/' (got %q)", c.HTTP.Prefix)
	}
}

func (c *Config) validateGraph(result *ValidationResult) {
	if c.Graph.DefaultNodeLimit < 0 {
		result.AddError("graph.default_node_limit must not be negative")
	}
	if c.Graph.MaxNodeLimit > 0 && c.Graph.DefaultNodeLimit > c.Graph.MaxNodeLimit {
		result.AddError("graph.default_node_limit (%d) exceeds graph.max_node_limit (%d)",
			c.Graph.DefaultNodeLimit, c.Graph.MaxNodeLimit)
	}
}

func (c *Config) validateLLM(result *ValidationResult) {
	switch c.LLM.Provider {
	case ProviderDeepSeek, ProviderOpenAI, ProviderGemini:
	default:
		result.AddError("llm.provider %q is not supported (deepseek, openai, gemini)", c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		result.AddError("llm.max_tokens must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		result.AddError("llm.temperature %.2f is outside [0, 2]", c.LLM.Temperature)
	}
	if c.LLM.RateLimit.RequestsPerMinute < 0 {
		result.AddError("llm.rate_limit.requests_per_minute must not be negative")
	}
}
