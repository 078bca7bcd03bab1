package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// ClientConfig configures the terminal chat client.
type ClientConfig struct {
	APIURL    string
	Token     string
	CachePath string
	LogMode   string
}

func LoadClient() *ClientConfig {
	godotenv.Load()

	return &ClientConfig{
		APIURL:    getEnvOrDefault("INKSINK_API_URL", "http://localhost:8080/api/v1"),
		Token:     getEnvOrDefault("INKSINK_TOKEN", ""),
		CachePath: getEnvOrDefault("INKSINK_CACHE", defaultCachePath()),
		LogMode:   getEnvOrDefault("LOG_MODE", "production"),
	}
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".inksink", "chats.db")
	}
	return filepath.Join(home, ".inksink", "chats.db")
}
