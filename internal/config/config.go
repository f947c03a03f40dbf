// Package config loads the host configuration from a JSON file, with
// environment variables overriding individual fields.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Config represents application configuration
type Config struct {
	Provider string `json:"provider"` // "openai", "openrouter", "groq", ...
	Model    string `json:"model"`
	BaseURL  string `json:"base_url,omitempty"` // overrides the provider's default endpoint
	APIKey   string `json:"api_key,omitempty"`  // environment variables take precedence when empty

	ListenAddr string `json:"listen_addr"` // WebSocket bridge address

	MaxConcurrent  int `json:"max_concurrent"`          // concurrent chunk requests per generation
	MaxRetries     int `json:"max_retries"`             // additional attempts after a failed LLM call
	RequestTimeout int `json:"request_timeout_seconds"` // ceiling per outbound LLM call

	CacheTTL        int `json:"cache_ttl_seconds"`
	MaxCacheEntries int `json:"max_cache_entries"`

	LogLevel string `json:"log_level"` // debug, info, warn, error, none
	LogPath  string `json:"-"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "testweaver")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", "testweaver")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "testweaver")
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, "testweaver")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", "testweaver")
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, "testweaver")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", "testweaver")
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "testweaver")
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Provider:        "openai",
		Model:           "gpt-4o-mini",
		ListenAddr:      "127.0.0.1:8790",
		MaxConcurrent:   3,
		MaxRetries:      2,
		RequestTimeout:  120,
		CacheTTL:        1800,
		MaxCacheEntries: 128,
		LogLevel:        "info",
		LogPath:         filepath.Join(defaultStateDir(), "testweaver.log"),
	}
}

// Load loads configuration from file, applying environment overrides. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			config.applyEnvOverrides()
			return config, nil
		}
		return nil, err
	}

	// Unmarshal into default config (overrides only provided fields)
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	// Ensure critical fields have defaults if still empty
	if config.ListenAddr == "" {
		config.ListenAddr = "127.0.0.1:8790"
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 3
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 120
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogPath == "" {
		config.LogPath = filepath.Join(defaultStateDir(), "testweaver.log")
	}

	config.applyEnvOverrides()
	return config, nil
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("TESTWEAVER_PROVIDER")); v != "" {
		c.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("TESTWEAVER_MODEL")); v != "" {
		c.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("TESTWEAVER_BASE_URL")); v != "" {
		c.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TESTWEAVER_LISTEN_ADDR")); v != "" {
		c.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("TESTWEAVER_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("TESTWEAVER_MAX_CONCURRENT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxConcurrent = n
		}
	}
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}
