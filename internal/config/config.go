package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Engine   EngineConfig
	LLM      LLMConfig
	Market   MarketConfig
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// EngineConfig bounds a single session run.
type EngineConfig struct {
	MaxSteps    int
	MaxReplans  int
	StepTimeout time.Duration
	RunTimeout  time.Duration
}

// LLMConfig holds settings for the planner's chat-completion collaborator.
// An empty APIKey selects the deterministic rule-based planner.
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// MarketConfig holds settings for the market-data and news providers.
type MarketConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("STOCKAI_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("STOCKAI_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("STOCKAI_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("STOCKAI_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("STOCKAI_SERVER_WRITE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxSteps, err := getEnvInt("STOCKAI_ENGINE_MAX_STEPS", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxReplans, err := getEnvInt("STOCKAI_ENGINE_MAX_REPLANS", 3)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	stepTimeout, err := getEnvDuration("STOCKAI_ENGINE_STEP_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	runTimeout, err := getEnvDuration("STOCKAI_ENGINE_RUN_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	llmTimeout, err := getEnvDuration("STOCKAI_LLM_TIMEOUT", 90*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	llmTemp, err := getEnvFloat("STOCKAI_LLM_TEMPERATURE", 0.2)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	marketTimeout, err := getEnvDuration("STOCKAI_MARKET_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("STOCKAI_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("STOCKAI_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("STOCKAI_DB_USER", "stockai"),
			Password: getEnv("STOCKAI_DB_PASSWORD", ""),
			DBName:   getEnv("STOCKAI_DB_NAME", "stockai_dev"),
			SSLMode:  getEnv("STOCKAI_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("STOCKAI_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("STOCKAI_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Server: ServerConfig{
			Addr:         getEnv("STOCKAI_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		Engine: EngineConfig{
			MaxSteps:    maxSteps,
			MaxReplans:  maxReplans,
			StepTimeout: stepTimeout,
			RunTimeout:  runTimeout,
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("STOCKAI_LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      getEnv("STOCKAI_LLM_API_KEY", ""),
			Model:       getEnv("STOCKAI_LLM_MODEL", "gpt-4o-mini"),
			Temperature: llmTemp,
			Timeout:     llmTimeout,
		},
		Market: MarketConfig{
			BaseURL: getEnv("STOCKAI_MARKET_BASE_URL", "http://localhost:9000"),
			Timeout: marketTimeout,
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("STOCKAI_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("STOCKAI_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("STOCKAI_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("STOCKAI_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Engine.MaxSteps < 1 {
		return fmt.Errorf("STOCKAI_ENGINE_MAX_STEPS must be >= 1, got %d", c.Engine.MaxSteps)
	}
	if c.Engine.MaxReplans < 0 {
		return fmt.Errorf("STOCKAI_ENGINE_MAX_REPLANS must be >= 0, got %d", c.Engine.MaxReplans)
	}
	if c.Engine.StepTimeout <= 0 {
		return fmt.Errorf("STOCKAI_ENGINE_STEP_TIMEOUT must be positive, got %s", c.Engine.StepTimeout)
	}
	if c.Engine.RunTimeout < c.Engine.StepTimeout {
		return errors.New("STOCKAI_ENGINE_RUN_TIMEOUT must be >= STOCKAI_ENGINE_STEP_TIMEOUT")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("STOCKAI_LLM_TEMPERATURE must be 0-2, got %g", c.LLM.Temperature)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
