package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerPort string
	JWTSecret  string
	TokenTTL   time.Duration
	Postgres   PostgresConfig
	Mongo      MongoConfig
	Gemini     GeminiConfig
	Logging    LoggingConfig
}

type PostgresConfig struct {
	DSN               string
	Host              string
	Port              int
	User              string
	Password          string
	Database          string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ConnectTimeout    time.Duration
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type GeminiConfig struct {
	APIKey          string
	Model           string
	Endpoint        string
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
	RequestTimeout  time.Duration
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
}

func LoadConfig() (*Config, error) {
	pgPort, _ := strconv.Atoi(envOrDefault("POSTGRES_PORT", "5432"))
	maxConns := parseInt32(envOrDefault("POSTGRES_MAX_CONNS", "8"), 8)
	minConns := parseInt32(envOrDefault("POSTGRES_MIN_CONNS", "1"), 1)

	cfg := &Config{
		ServerPort: envOrDefault("PORT", "5001"),
		JWTSecret:  strings.TrimSpace(os.Getenv("JWT_SECRET")),
		TokenTTL:   parseDuration(envOrDefault("TOKEN_TTL", "720h"), 720*time.Hour),
		Postgres: PostgresConfig{
			DSN:               os.Getenv("POSTGRES_DSN"),
			Host:              envOrDefault("POSTGRES_HOST", "localhost"),
			Port:              pgPort,
			User:              envOrDefault("POSTGRES_USER", "postgres"),
			Password:          os.Getenv("POSTGRES_PASSWORD"),
			Database:          envOrDefault("POSTGRES_DB", "bigsam"),
			MaxConns:          maxConns,
			MinConns:          minConns,
			MaxConnLifetime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_LIFETIME", "1h"), time.Hour),
			MaxConnIdleTime:   parseDuration(envOrDefault("POSTGRES_MAX_CONN_IDLE", "30m"), 30*time.Minute),
			HealthCheckPeriod: parseDuration(envOrDefault("POSTGRES_HEALTH_CHECK_PERIOD", "1m"), time.Minute),
			ConnectTimeout:    parseDuration(envOrDefault("POSTGRES_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		Mongo: MongoConfig{
			URI:            envOrDefault("MONGO_URI", "mongodb://localhost:27017"),
			Database:       envOrDefault("MONGO_DATABASE", "bigsam"),
			ConnectTimeout: parseDuration(envOrDefault("MONGO_CONNECT_TIMEOUT", "5s"), 5*time.Second),
		},
		Gemini: GeminiConfig{
			APIKey:          strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:           envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
			Endpoint:        strings.TrimRight(envOrDefault("GEMINI_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta"), "/"),
			Temperature:     parseFloat(envOrDefault("GEMINI_TEMPERATURE", "0.75"), 0.75),
			TopK:            int(parseInt32(envOrDefault("GEMINI_TOP_K", "40"), 40)),
			TopP:            parseFloat(envOrDefault("GEMINI_TOP_P", "0.95"), 0.95),
			MaxOutputTokens: int(parseInt32(envOrDefault("GEMINI_MAX_OUTPUT_TOKENS", "2048"), 2048)),
			RequestTimeout:  parseDuration(envOrDefault("GEMINI_REQUEST_TIMEOUT", "30s"), 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
			Encoding:     strings.ToLower(envOrDefault("LOG_ENCODING", "console")),
			Development:  parseBool(envOrDefault("LOG_DEVELOPMENT", "false"), false),
			EnableCaller: parseBool(envOrDefault("LOG_CALLER", "false"), false),
			ServiceName:  envOrDefault("SERVICE_NAME", "bigsam-server"),
		},
	}

	return cfg, cfg.validate()
}

// validate rejects configurations that would let the server start and then
// silently fail every request.
func (c *Config) validate() error {
	missing := make([]string, 0, 2)

	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if c.Gemini.APIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

func (c PostgresConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt32(value string, fallback int32) int32 {
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return int32(i)
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}
