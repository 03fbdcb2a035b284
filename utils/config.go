package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config represents the application configuration
type Config struct {
	Server ServerConfig `json:"server"`
	Auth   AuthConfig   `json:"auth"`
	Chat   ChatConfig   `json:"chat"`
	UI     UIConfig     `json:"ui"`
	Data   DataConfig   `json:"data"`
}

// ServerConfig points the client at the ReRent backend
type ServerConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// AuthConfig controls how the bearer token is obtained. Token takes
// precedence; TokenFile is re-read on every request so a login performed
// elsewhere is picked up without a restart.
type AuthConfig struct {
	Token     string `json:"token,omitempty"`
	TokenFile string `json:"token_file,omitempty"`
}

// ChatConfig tunes the chat widget
type ChatConfig struct {
	PageSize int `json:"page_size"`
}

// UIConfig represents UI configuration
type UIConfig struct {
	WindowWidth  int `json:"window_width"`
	WindowHeight int `json:"window_height"`
	FontSize     int `json:"font_size"`
}

// DataConfig represents local data storage configuration
type DataConfig struct {
	CachePath string `json:"cache_path"`
}

// TokenProvider returns a function resolving the current bearer token
// from the configured source
func (c *Config) TokenProvider() func() string {
	if c.Auth.Token != "" {
		token := c.Auth.Token
		return func() string { return token }
	}
	if c.Auth.TokenFile != "" {
		path := expandPath(c.Auth.TokenFile)
		return func() string {
			data, err := os.ReadFile(path)
			if err != nil {
				return ""
			}
			return strings.TrimSpace(string(data))
		}
	}
	return func() string { return "" }
}

// LoadConfig loads configuration from file
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.Data.CachePath == "" {
		config.Data.CachePath = "./data/chat-cache.db"
	}
	config.Data.CachePath = expandPath(config.Data.CachePath)
	if config.Chat.PageSize <= 0 {
		config.Chat.PageSize = 30
	}
	if config.Server.TimeoutSeconds <= 0 {
		config.Server.TimeoutSeconds = 30
	}

	return &config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(configPath string, config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ and relative paths
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}

	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}

	absPath, err := filepath.Abs(path)
	if err == nil {
		return absPath
	}

	return path
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "./config/default.json"
	}

	return filepath.Join(configDir, "rerent-chat-client", "config.json")
}

// EnsureDefaultConfig creates a default config file if it doesn't exist
func EnsureDefaultConfig() (string, error) {
	configPath := GetConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	}

	defaultConfig := &Config{
		Server: ServerConfig{
			BaseURL:        "http://localhost:8088",
			TimeoutSeconds: 30,
		},
		Auth: AuthConfig{
			TokenFile: "~/.rerent/auth_token",
		},
		Chat: ChatConfig{
			PageSize: 30,
		},
		UI: UIConfig{
			WindowWidth:  420,
			WindowHeight: 640,
			FontSize:     13,
		},
		Data: DataConfig{
			CachePath: "./data/chat-cache.db",
		},
	}

	if err := SaveConfig(configPath, defaultConfig); err != nil {
		return "", err
	}

	return configPath, nil
}
