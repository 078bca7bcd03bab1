package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL   string
	MigrationsDir string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// LLM
	LLMProvider       string
	LLMAPIKey         string
	LLMBaseURL        string
	LLMModel          string
	LLMFastModel      string
	LLMConcurrentReqs int
	LLMTemperature    float64

	// Workers
	SettlementWorkers int

	// Logging
	LogMode string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:              getEnvOrDefault("PORT", "8080"),
		Env:               getEnvOrDefault("ENV", "development"),
		DatabaseURL:       mustGetEnv("DATABASE_URL"),
		MigrationsDir:     getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		RedisURL:          mustGetEnv("REDIS_URL"),
		JWTSecret:         mustGetEnv("JWT_SECRET"),
		LLMProvider:       getEnvOrDefault("LLM_PROVIDER", "gemini"),
		LLMAPIKey:         mustGetEnv("LLM_API_KEY"),
		LLMBaseURL:        getEnvOrDefault("LLM_BASE_URL", ""),
		LLMModel:          getEnvOrDefault("LLM_MODEL", ""),
		LLMFastModel:      getEnvOrDefault("LLM_FAST_MODEL", ""),
		LLMConcurrentReqs: getEnvAsIntOrDefault("LLM_CONCURRENT_REQUESTS", 5),
		LLMTemperature:    getEnvAsFloatOrDefault("LLM_TEMPERATURE", 0.7),
		SettlementWorkers: getEnvAsIntOrDefault("SETTLEMENT_WORKERS", 2),
		LogMode:           getEnvOrDefault("LOG_MODE", "development"),
		FrontendURL:       getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
	}

	return cfg
}

// IsDevelopment reports whether development-only routes should be mounted.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
