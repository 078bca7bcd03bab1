package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsFloatOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal float64
		expected   float64
	}{
		{"parses float", "TEST_FLOAT_1", "0.25", 0.7, 0.25},
		{"uses default for empty", "TEST_FLOAT_2", "", 0.7, 0.7},
		{"uses default for garbage", "TEST_FLOAT_3", "warm", 0.7, 0.7},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvAsFloatOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, result)
			}
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func TestLoad_RequiredAndDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/inksink")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("LLM_API_KEY", "key")
	t.Setenv("ENV", "")

	cfg := Load()
	if cfg.LLMProvider != "gemini" {
		t.Errorf("Expected default provider gemini, got %q", cfg.LLMProvider)
	}
	if !cfg.IsDevelopment() {
		t.Error("Expected development env by default")
	}
	if cfg.SettlementWorkers != 2 {
		t.Errorf("Expected 2 settlement workers, got %d", cfg.SettlementWorkers)
	}
}

func TestLoadClient_Defaults(t *testing.T) {
	t.Setenv("INKSINK_API_URL", "")
	t.Setenv("INKSINK_TOKEN", "tok")
	t.Setenv("INKSINK_CACHE", "")

	cfg := LoadClient()
	if cfg.APIURL != "http://localhost:8080/api/v1" {
		t.Errorf("Unexpected API URL %q", cfg.APIURL)
	}
	if cfg.Token != "tok" {
		t.Errorf("Expected token from env, got %q", cfg.Token)
	}
	if filepath.Base(cfg.CachePath) != "chats.db" {
		t.Errorf("Unexpected cache path %q", cfg.CachePath)
	}
}
