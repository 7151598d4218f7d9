package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	GeminiAPIKey         string        `yaml:"geminiAPIKey"`
	GeminiModel          string        `yaml:"geminiModel"`
	HTTPPort             string        `yaml:"httpPort"`
	LogLevel             string        `yaml:"logLevel"`
	Environment          string        `yaml:"environment"`
	AnalysisTimeout      time.Duration `yaml:"analysisTimeout"`
	ChatTimeout          time.Duration `yaml:"chatTimeout"`
	MaxHistoryTurns      int           `yaml:"maxHistoryTurns"`
	MaxUploadBytes       int64         `yaml:"maxUploadBytes"`
	LLMRequestsPerMinute int           `yaml:"llmRequestsPerMinute"`

	// DotEnvLoaded reports whether a .env file was found. Logged by the caller
	// once the logger exists.
	DotEnvLoaded bool `yaml:"-"`
}

func Defaults() Config {
	return Config{
		GeminiModel:          "gemini-3-flash-preview",
		HTTPPort:             "8080",
		LogLevel:             "INFO",
		Environment:          "development",
		AnalysisTimeout:      45 * time.Second,
		ChatTimeout:          45 * time.Second,
		MaxHistoryTurns:      20,
		MaxUploadBytes:       10 << 20,
		LLMRequestsPerMinute: 60,
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and the environment (a .env file is loaded first if present).
// Environment values win over the file.
func Load() (Config, error) {
	dotEnvErr := godotenv.Load()

	cfg := Defaults()
	cfg.DotEnvLoaded = dotEnvErr == nil
	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", getEnv("API_KEY", cfg.GeminiAPIKey))
	cfg.GeminiModel = getEnv("GEMINI_MODEL", cfg.GeminiModel)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Environment = getEnv("APP_ENV", cfg.Environment)
	cfg.AnalysisTimeout = getEnvAsDuration("ANALYSIS_TIMEOUT", cfg.AnalysisTimeout)
	cfg.ChatTimeout = getEnvAsDuration("CHAT_TIMEOUT", cfg.ChatTimeout)
	cfg.MaxHistoryTurns = getEnvAsInt("MAX_HISTORY_TURNS", cfg.MaxHistoryTurns)
	cfg.MaxUploadBytes = int64(getEnvAsInt("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes)))
	cfg.LLMRequestsPerMinute = getEnvAsInt("LLM_REQUESTS_PER_MINUTE", cfg.LLMRequestsPerMinute)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return errors.New("config: GEMINI_API_KEY environment variable is required")
	}
	if c.GeminiModel == "" {
		return errors.New("config: GEMINI_MODEL must not be empty")
	}
	if c.HTTPPort == "" {
		return errors.New("config: HTTP_PORT must not be empty")
	}
	if c.AnalysisTimeout <= 0 || c.ChatTimeout <= 0 {
		return errors.New("config: ANALYSIS_TIMEOUT and CHAT_TIMEOUT must be positive")
	}
	if c.MaxHistoryTurns < 0 {
		return errors.New("config: MAX_HISTORY_TURNS must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("config: MAX_UPLOAD_BYTES must be positive")
	}
	if c.LLMRequestsPerMinute <= 0 {
		return errors.New("config: LLM_REQUESTS_PER_MINUTE must be positive")
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
