package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LLM providers understood by internal/llm
const (
	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
)

// Config holds all configuration settings
type Config struct {
	HTTP  HTTPConfig  `mapstructure:"http"`
	Neo4j Neo4jConfig `mapstructure:"neo4j"`
	LLM   LLMConfig   `mapstructure:"llm"`
	AI    AIConfig    `mapstructure:"ai"`
	Graph GraphConfig `mapstructure:"graph"`
	Log   LogConfig   `mapstructure:"log"`
}

type HTTPConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Prefix         string        `mapstructure:"prefix"` // Route prefix, "/api"
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	Debug          bool          `mapstructure:"debug"` // gin debug mode
}

type Neo4jConfig struct {
	URI            string        `mapstructure:"uri"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Database       string        `mapstructure:"database"`
	MaxPoolSize    int           `mapstructure:"max_pool_size"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"` // 0 disables the per-query deadline
}

type LLMConfig struct {
	Provider      string          `mapstructure:"provider"` // "deepseek", "openai", "gemini"
	APIKey        string          `mapstructure:"api_key"`
	BaseURL       string          `mapstructure:"base_url"`
	Model         string          `mapstructure:"model"`
	Temperature   float64         `mapstructure:"temperature"`
	MaxTokens     int             `mapstructure:"max_tokens"`
	VerifyOnStart bool            `mapstructure:"verify_on_start"`
	UseKeychain   bool            `mapstructure:"use_keychain"`
	RateLimit     RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerMinute int    `mapstructure:"requests_per_minute"` // 0 = unlimited
	RedisAddr         string `mapstructure:"redis_addr"`          // shared limiter when set
	RedisPassword     string `mapstructure:"redis_password"`
}

type AIConfig struct {
	ReadOnly   bool   `mapstructure:"read_only"`   // run generated statements in read access mode
	SchemaFile string `mapstructure:"schema_file"` // overrides the embedded prompt schema
	AuditPath  string `mapstructure:"audit_path"`  // bbolt file; empty disables the audit log
}

type GraphConfig struct {
	DefaultNodeLimit int `mapstructure:"default_node_limit"`
	MaxNodeLimit     int `mapstructure:"max_node_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
	File   string `mapstructure:"file"`
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{
		HTTP: HTTPConfig{
			Host:           "0.0.0.0",
			Port:           5000,
			Prefix:         "/api",
			AllowedOrigins: []string{"*"},
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   60 * time.Second, // LLM round trips are slow
			IdleTimeout:    60 * time.Second,
		},
		Neo4j: Neo4jConfig{
			URI:            "bolt://localhost:7687",
			User:           "neo4j",
			Password:       "neo4j12345678",
			Database:       "neo4j",
			MaxPoolSize:    50,
			ConnectTimeout: 5 * time.Second,
			QueryTimeout:   30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:      ProviderDeepSeek,
			Temperature:   0.1,
			MaxTokens:     500,
			VerifyOnStart: true,
		},
		Graph: GraphConfig{
			DefaultNodeLimit: 50,
			MaxNodeLimit:     500,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
	cfg.LLM.applyProviderDefaults()
	return cfg
}

// Load loads configuration from file, .env files and environment
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	setDefaults(v, cfg)

	v.SetEnvPrefix("SCHOLARGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("scholargraph")
		v.AddConfigPath(".scholargraph")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".scholargraph"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	// Model and base URL defaults depend on the provider, so they are
	// resolved after the file and environment have been applied.
	cfg.LLM.Model = ""
	cfg.LLM.BaseURL = ""
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.LLM.applyProviderDefaults()

	if cfg.LLM.APIKey == "" && cfg.LLM.UseKeychain {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if key, err := km.GetAPIKey(cfg.LLM.Provider); err == nil && key != "" {
				cfg.LLM.APIKey = key
			}
		}
	}

	return cfg, nil
}

// setDefaults registers every leaf key so AutomaticEnv can see
// SCHOLARGRAPH_NEO4J_URI style variables during Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("http.host", cfg.HTTP.Host)
	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("http.prefix", cfg.HTTP.Prefix)
	v.SetDefault("http.allowed_origins", cfg.HTTP.AllowedOrigins)
	v.SetDefault("http.read_timeout", cfg.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", cfg.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", cfg.HTTP.IdleTimeout)
	v.SetDefault("http.debug", cfg.HTTP.Debug)

	v.SetDefault("neo4j.uri", cfg.Neo4j.URI)
	v.SetDefault("neo4j.user", cfg.Neo4j.User)
	v.SetDefault("neo4j.password", cfg.Neo4j.Password)
	v.SetDefault("neo4j.database", cfg.Neo4j.Database)
	v.SetDefault("neo4j.max_pool_size", cfg.Neo4j.MaxPoolSize)
	v.SetDefault("neo4j.connect_timeout", cfg.Neo4j.ConnectTimeout)
	v.SetDefault("neo4j.query_timeout", cfg.Neo4j.QueryTimeout)

	v.SetDefault("llm.provider", cfg.LLM.Provider)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", cfg.LLM.Temperature)
	v.SetDefault("llm.max_tokens", cfg.LLM.MaxTokens)
	v.SetDefault("llm.verify_on_start", cfg.LLM.VerifyOnStart)
	v.SetDefault("llm.use_keychain", cfg.LLM.UseKeychain)
	v.SetDefault("llm.rate_limit.requests_per_minute", cfg.LLM.RateLimit.RequestsPerMinute)
	v.SetDefault("llm.rate_limit.redis_addr", cfg.LLM.RateLimit.RedisAddr)
	v.SetDefault("llm.rate_limit.redis_password", cfg.LLM.RateLimit.RedisPassword)

	v.SetDefault("ai.read_only", cfg.AI.ReadOnly)
	v.SetDefault("ai.schema_file", cfg.AI.SchemaFile)
	v.SetDefault("ai.audit_path", cfg.AI.AuditPath)

	v.SetDefault("graph.default_node_limit", cfg.Graph.DefaultNodeLimit)
	v.SetDefault("graph.max_node_limit", cfg.Graph.MaxNodeLimit)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.file", cfg.Log.File)
}

// loadEnvFiles loads .env files in order of precedence.
// godotenv never overwrites variables that are already set, so the first file wins.
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".scholargraph", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		_ = godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies the conventional (unprefixed) variable names
func applyEnvOverrides(cfg *Config) {
	// Neo4j
	cfg.Neo4j.URI = GetString("NEO4J_URI", cfg.Neo4j.URI)
	cfg.Neo4j.User = GetString("NEO4J_USER", cfg.Neo4j.User)
	cfg.Neo4j.Password = GetString("NEO4J_PASSWORD", cfg.Neo4j.Password)
	cfg.Neo4j.Database = GetString("NEO4J_DATABASE", cfg.Neo4j.Database)

	// HTTP
	cfg.HTTP.Port = GetInt("PORT", cfg.HTTP.Port)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.HTTP.AllowedOrigins = splitList(origins)
	}

	// LLM: provider first, since the key/model variable names depend on it
	cfg.LLM.Provider = strings.ToLower(GetString("LLM_PROVIDER", cfg.LLM.Provider))
	prefix := strings.ToUpper(cfg.LLM.Provider)
	cfg.LLM.APIKey = GetString(prefix+"_API_KEY", GetString("LLM_API_KEY", cfg.LLM.APIKey))
	cfg.LLM.BaseURL = GetString(prefix+"_BASE_URL", GetString("LLM_BASE_URL", cfg.LLM.BaseURL))
	cfg.LLM.Model = GetString(prefix+"_MODEL", GetString("LLM_MODEL", cfg.LLM.Model))
	cfg.LLM.VerifyOnStart = GetBool("LLM_VERIFY_ON_START", cfg.LLM.VerifyOnStart)
	cfg.LLM.RateLimit.RequestsPerMinute = GetInt("LLM_RATE_LIMIT_RPM", cfg.LLM.RateLimit.RequestsPerMinute)
	cfg.LLM.RateLimit.RedisAddr = GetString("REDIS_ADDR", cfg.LLM.RateLimit.RedisAddr)
	cfg.LLM.RateLimit.RedisPassword = GetString("REDIS_PASSWORD", cfg.LLM.RateLimit.RedisPassword)

	// AI bridge
	cfg.AI.ReadOnly = GetBool("AI_READ_ONLY", cfg.AI.ReadOnly)
	if path := os.Getenv("AI_SCHEMA_FILE"); path != "" {
		cfg.AI.SchemaFile = expandPath(path)
	}
	if path := os.Getenv("AI_AUDIT_PATH"); path != "" {
		cfg.AI.AuditPath = expandPath(path)
	}

	// Logging
	cfg.Log.Level = GetString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = GetString("LOG_FORMAT", cfg.Log.Format)
	if path := os.Getenv("LOG_FILE"); path != "" {
		cfg.Log.File = expandPath(path)
	}
}

// applyProviderDefaults fills model and endpoint for the selected provider
func (l *LLMConfig) applyProviderDefaults() {
	switch l.Provider {
	case ProviderDeepSeek:
		if l.BaseURL == "" {
			l.BaseURL = "https://api.deepseek.com"
		}
		if l.Model == "" {
			l.Model = "deepseek-chat"
		}
	case ProviderOpenAI:
		if l.Model == "" {
			l.Model = "gpt-4o-mini"
		}
	case ProviderGemini:
		if l.Model == "" {
			l.Model = "gemini-2.0-flash"
		}
	}
}

// Addr returns the host:port the HTTP server listens on
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
