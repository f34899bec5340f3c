package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultDelimiter separates chunks in the context handed to the model.
const DefaultDelimiter = "\n=== End of Row ===\n"

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Store         StoreConfig         `yaml:"store"`
	Prompt        PromptConfig        `yaml:"prompt"`
	Database      DatabaseConfig      `yaml:"database"`
	Interactions  InteractionsConfig  `yaml:"interactions"`
	Observability ObservabilityConfig `yaml:"observability"`
	Admin         AdminConfig         `yaml:"admin"`
	Environment   string              `yaml:"environment"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// ProvidersConfig holds hosted model configuration
type ProvidersConfig struct {
	OpenAI OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig holds OpenAI settings for both chat and embeddings
type OpenAIConfig struct {
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	ChatModel      string        `yaml:"chat_model"`
	Temperature    float64       `yaml:"temperature"`
	MaxTokens      int           `yaml:"max_tokens"`
	EmbeddingModel string        `yaml:"embedding_model"`
}

// RetrievalConfig controls how context is gathered for a question
type RetrievalConfig struct {
	Debug            bool   `yaml:"debug"`
	Delimiter        string `yaml:"delimiter"`
	MaxContextTokens int    `yaml:"max_context_tokens"`
	TopK             int    `yaml:"top_k"`
	// Encoding is a tiktoken encoding or model name. Empty means the chat model.
	Encoding string `yaml:"encoding"`
}

// StoreConfig locates the persisted vector store and its inputs
type StoreConfig struct {
	IndexPath          string `yaml:"index_path"`
	StorePath          string `yaml:"store_path"`
	DataDir            string `yaml:"data_dir"`
	EmbeddingBatchSize int    `yaml:"embedding_batch_size"`
	QueryCacheSize     int    `yaml:"query_cache_size"`
}

// PromptConfig holds the answer synthesis prompt override
type PromptConfig struct {
	SystemPromptFile string `yaml:"system_prompt_file"`
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string        `yaml:"url"`
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	User             string        `yaml:"user"`
	Password         string        `yaml:"password"`
	Database         string        `yaml:"name"`
	SSLMode          string        `yaml:"sslmode"`
	MaxOpenConns     int           `yaml:"max_open_conns"`
	MaxIdleConns     int           `yaml:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `yaml:"conn_max_lifetime"`
}

// InteractionsConfig controls the asynchronous interaction log
type InteractionsConfig struct {
	Enabled         bool          `yaml:"enabled"`
	BufferSize      int           `yaml:"buffer_size"`
	WorkerCount     int           `yaml:"worker_count"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RedactPII       bool          `yaml:"redact_pii"`
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"` // json or console
	LogOutput      string `yaml:"log_output"` // file path, stdout or stderr
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// AdminConfig gates operational endpoints
type AdminConfig struct {
	ReloadEnabled bool `yaml:"reload_enabled"`
}

// New builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables, in that order of precedence.
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5003,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				BaseURL:        "https://api.openai.com/v1",
				Timeout:        60 * time.Second,
				MaxRetries:     2,
				ChatModel:      "gpt-3.5-turbo",
				Temperature:    0,
				MaxTokens:      256,
				EmbeddingModel: "text-embedding-ada-002",
			},
		},
		Retrieval: RetrievalConfig{
			Debug:            true,
			Delimiter:        DefaultDelimiter,
			MaxContextTokens: 3375,
			TopK:             4,
		},
		Store: StoreConfig{
			IndexPath:          "docs.index",
			StorePath:          "store.json",
			DataDir:            "Data/",
			EmbeddingBatchSize: 100,
			QueryCacheSize:     512,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "ragqa",
			Database:        "ragqa",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Interactions: InteractionsConfig{
			BufferSize:      1000,
			WorkerCount:     2,
			ShutdownTimeout: 5 * time.Second,
			RedactPII:       true,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			MetricsEnabled: true,
		},
	}
}

// LoadFile overlays the YAML document at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getPort(c.Server.Port)
	c.Server.ReadTimeout = getEnvAsDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvAsDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.RequestTimeout = getEnvAsDuration("SERVER_REQUEST_TIMEOUT", c.Server.RequestTimeout)
	c.Server.ShutdownTimeout = getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.CORSOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", c.Server.CORSOrigins)

	oa := &c.Providers.OpenAI
	oa.APIKey = getEnv("OPENAI_API_KEY", oa.APIKey)
	oa.BaseURL = getEnv("OPENAI_BASE_URL", oa.BaseURL)
	oa.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", oa.Timeout)
	oa.MaxRetries = getEnvAsInt("OPENAI_MAX_RETRIES", oa.MaxRetries)
	oa.ChatModel = getEnv("CHAT_MODEL", oa.ChatModel)
	oa.Temperature = getEnvAsFloat("CHAT_TEMPERATURE", oa.Temperature)
	oa.MaxTokens = getEnvAsInt("CHAT_MAX_TOKENS", oa.MaxTokens)
	oa.EmbeddingModel = getEnv("EMBEDDING_MODEL", oa.EmbeddingModel)

	c.Retrieval.Debug = getEnvAsBool("RETRIEVAL_DEBUG", c.Retrieval.Debug)
	c.Retrieval.Delimiter = getEnv("RETRIEVAL_DELIMITER", c.Retrieval.Delimiter)
	c.Retrieval.MaxContextTokens = getEnvAsInt("MAX_CONTEXT_TOKENS", c.Retrieval.MaxContextTokens)
	c.Retrieval.TopK = getEnvAsInt("TOP_K", c.Retrieval.TopK)
	c.Retrieval.Encoding = getEnv("TOKEN_ENCODING", c.Retrieval.Encoding)

	c.Store.IndexPath = getEnv("INDEX_PATH", c.Store.IndexPath)
	c.Store.StorePath = getEnv("STORE_PATH", c.Store.StorePath)
	c.Store.DataDir = getEnv("DATA_DIR", c.Store.DataDir)
	c.Store.EmbeddingBatchSize = getEnvAsInt("EMBEDDING_BATCH_SIZE", c.Store.EmbeddingBatchSize)
	c.Store.QueryCacheSize = getEnvAsInt("QUERY_CACHE_SIZE", c.Store.QueryCacheSize)

	c.Prompt.SystemPromptFile = getEnv("SYSTEM_PROMPT_FILE", c.Prompt.SystemPromptFile)

	c.Database = loadDatabaseConfig(c.Database)

	c.Interactions.Enabled = getEnvAsBool("INTERACTION_LOG_ENABLED", c.Interactions.Enabled)
	c.Interactions.BufferSize = getEnvAsInt("INTERACTION_LOG_BUFFER", c.Interactions.BufferSize)
	c.Interactions.WorkerCount = getEnvAsInt("INTERACTION_LOG_WORKERS", c.Interactions.WorkerCount)
	c.Interactions.ShutdownTimeout = getEnvAsDuration("INTERACTION_LOG_SHUTDOWN_TIMEOUT", c.Interactions.ShutdownTimeout)
	c.Interactions.RedactPII = getEnvAsBool("INTERACTION_LOG_REDACT_PII", c.Interactions.RedactPII)

	c.Observability.LogLevel = getEnv("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = getEnv("LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.LogOutput = getEnv("LOG_OUTPUT", c.Observability.LogOutput)
	c.Observability.MetricsEnabled = getEnvAsBool("METRICS_ENABLED", c.Observability.MetricsEnabled)

	c.Admin.ReloadEnabled = getEnvAsBool("ADMIN_RELOAD_ENABLED", c.Admin.ReloadEnabled)
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Providers.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.Providers.OpenAI.ChatModel == "" {
		return fmt.Errorf("chat model is required")
	}
	if c.Providers.OpenAI.MaxTokens <= 0 {
		return fmt.Errorf("chat max tokens must be positive")
	}

	if c.Retrieval.Delimiter == "" {
		return fmt.Errorf("retrieval delimiter must not be empty")
	}
	if c.Retrieval.MaxContextTokens <= 0 {
		return fmt.Errorf("max context tokens must be positive")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("top k must be positive")
	}

	if c.Store.IndexPath == "" || c.Store.StorePath == "" {
		return fmt.Errorf("index and store paths are required")
	}

	// The database only backs the interaction log.
	if c.Interactions.Enabled {
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// TokenEncoding returns the encoding used to count context tokens.
func (c *Config) TokenEncoding() string {
	if c.Retrieval.Encoding != "" {
		return c.Retrieval.Encoding
	}
	return c.Providers.OpenAI.ChatModel
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig applies DATABASE_URL or DB_* env vars over base
func loadDatabaseConfig(base DatabaseConfig) DatabaseConfig {
	base.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", base.MaxOpenConns)
	base.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", base.MaxIdleConns)
	base.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", base.ConnMaxLifetime)

	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		base.ConnectionString = dbURL
		return base
	}
	base.Host = getEnv("DB_HOST", base.Host)
	base.Port = getEnvAsInt("DB_PORT", base.Port)
	base.User = getEnv("DB_USER", base.User)
	base.Password = getEnv("DB_PASSWORD", base.Password)
	base.Database = getEnv("DB_NAME", base.Database)
	base.SSLMode = getEnv("DB_SSLMODE", base.SSLMode)
	return base
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars
func getPort(defaultPort int) int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return defaultPort
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
