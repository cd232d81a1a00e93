package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerConfig    ServerConfig    `json:"server"`
	DatabaseConfig  DatabaseConfig  `json:"database"`
	RedisConfig     RedisConfig     `json:"redis"`
	MilvusConfig    MilvusConfig    `json:"milvus"`
	VaultConfig     VaultConfig     `json:"vault"`
	ProvidersConfig ProvidersConfig `json:"providers"`
	EngineConfig    EngineConfig    `json:"engine"`
	LoggingConfig   LoggingConfig   `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins
	ReadTimeout     int    `json:"read_timeout"`    // Seconds
	WriteTimeout    int    `json:"write_timeout"`   // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
	MaxConns int    `json:"max_conns"`
}

// DSN renders the pgx connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// RedisConfig holds Redis configuration for signal caching
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
	TTL      int    `json:"ttl"` // Seconds a cached signal stays fresh
}

// MilvusConfig holds the vector index configuration for pattern search
type MilvusConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Collection string `json:"collection"`
	TopK       int    `json:"top_k"` // ANN candidates fetched per query
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`  // KV secrets engine mount path
	SecretPath string `json:"secret_path"` // Path prefix for provider API keys
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// ProvidersConfig holds upstream analysis provider configuration
type ProvidersConfig struct {
	TechnicalBaseURL string `json:"technical_base_url"`
	TechnicalAPIKey  string `json:"technical_api_key"`
	SentimentBaseURL string `json:"sentiment_base_url"`
	SentimentAPIKey  string `json:"sentiment_api_key"`
	RequestTimeout   int    `json:"request_timeout"` // Seconds
}

// EngineConfig holds signal generation tunables
type EngineConfig struct {
	PatternFetchLimit int           `json:"pattern_fetch_limit"`
	BatchChunkSize    int           `json:"batch_chunk_size"`
	BatchChunkDelay   time.Duration `json:"batch_chunk_delay"`
	AnalysisTimeout   time.Duration `json:"analysis_timeout"`
	MinSimilarity     float64       `json:"min_similarity"`
	PatternTopK       int           `json:"pattern_top_k"`
}

type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json or console
	Output string `json:"output"` // stdout, stderr, or file path
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Provider API keys may come from the environment or from Vault; Vault wins
// when enabled.
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "*")
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 60)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", "localhost")
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", 5432)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", "signals")
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", "signals")
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")
	cfg.DatabaseConfig.MaxConns = getEnvIntOrDefault("DB_MAX_CONNS", 10)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "true") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", "localhost:6379")
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", 0)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", 10)
	cfg.RedisConfig.TTL = getEnvIntOrDefault("REDIS_SIGNAL_TTL", 300)

	// Milvus config
	cfg.MilvusConfig.Enabled = getEnvOrDefault("MILVUS_ENABLED", "false") == "true"
	cfg.MilvusConfig.Address = getEnvOrDefault("MILVUS_ADDRESS", "localhost:19530")
	cfg.MilvusConfig.Collection = getEnvOrDefault("MILVUS_COLLECTION", "historical_patterns")
	cfg.MilvusConfig.TopK = getEnvIntOrDefault("MILVUS_TOP_K", 200)

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", "http://localhost:8200")
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", "secret")
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", "signal-engine/api-keys")
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", "false") == "true"
	cfg.VaultConfig.CACert = getEnvOrDefault("VAULT_CA_CERT", cfg.VaultConfig.CACert)

	// Provider config
	cfg.ProvidersConfig.TechnicalBaseURL = getEnvOrDefault("TECHNICAL_BASE_URL", cfg.ProvidersConfig.TechnicalBaseURL)
	cfg.ProvidersConfig.TechnicalAPIKey = getEnvOrDefault("TECHNICAL_API_KEY", cfg.ProvidersConfig.TechnicalAPIKey)
	cfg.ProvidersConfig.SentimentBaseURL = getEnvOrDefault("SENTIMENT_BASE_URL", cfg.ProvidersConfig.SentimentBaseURL)
	cfg.ProvidersConfig.SentimentAPIKey = getEnvOrDefault("SENTIMENT_API_KEY", cfg.ProvidersConfig.SentimentAPIKey)
	cfg.ProvidersConfig.RequestTimeout = getEnvIntOrDefault("PROVIDER_REQUEST_TIMEOUT", 15)

	// Engine config
	cfg.EngineConfig.PatternFetchLimit = getEnvIntOrDefault("ENGINE_PATTERN_FETCH_LIMIT", 200)
	cfg.EngineConfig.BatchChunkSize = getEnvIntOrDefault("ENGINE_BATCH_CHUNK_SIZE", 5)
	cfg.EngineConfig.BatchChunkDelay = getEnvDurationOrDefault("ENGINE_BATCH_CHUNK_DELAY", 500*time.Millisecond)
	cfg.EngineConfig.AnalysisTimeout = getEnvDurationOrDefault("ENGINE_ANALYSIS_TIMEOUT", 30*time.Second)
	cfg.EngineConfig.MinSimilarity = getEnvFloatOrDefault("ENGINE_MIN_SIMILARITY", 0.7)
	cfg.EngineConfig.PatternTopK = getEnvIntOrDefault("ENGINE_PATTERN_TOP_K", 5)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.LoggingConfig.Format = getEnvOrDefault("LOG_FORMAT", "json")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Config{
		ServerConfig: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			AllowedOrigins:  "*",
			ReadTimeout:     30,
			WriteTimeout:    60,
			ShutdownTimeout: 10,
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "signals",
			Password: "change_me",
			Database: "signals",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		RedisConfig: RedisConfig{
			Enabled:  true,
			Address:  "localhost:6379",
			PoolSize: 10,
			TTL:      300,
		},
		MilvusConfig: MilvusConfig{
			Enabled:    false,
			Address:    "localhost:19530",
			Collection: "historical_patterns",
			TopK:       200,
		},
		ProvidersConfig: ProvidersConfig{
			TechnicalBaseURL: "https://technical.example.com",
			SentimentBaseURL: "https://sentiment.example.com",
			RequestTimeout:   15,
		},
		EngineConfig: EngineConfig{
			PatternFetchLimit: 200,
			BatchChunkSize:    5,
			BatchChunkDelay:   500 * time.Millisecond,
			AnalysisTimeout:   30 * time.Second,
			MinSimilarity:     0.7,
			PatternTopK:       5,
		},
		LoggingConfig: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
