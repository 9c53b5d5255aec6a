package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Chat        ChatConfig                `json:"chat"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	JWTSecret     string `json:"jwt_secret"`
	TokenTTLHours int    `json:"token_ttl_hours"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// ProviderConfig carries model selection and generation settings for one
// upstream. Generation parameters are fixed at startup; pointer fields stay
// nil when absent from the file, so an explicit 0 is distinguishable from
// unset.
type ProviderConfig struct {
	BaseURL         string   `json:"base_url"`
	Model           string   `json:"model"`
	APIKey          string   `json:"api_key"`
	Temperature     *float32 `json:"temperature"`
	TopP            *float32 `json:"top_p"`
	TopK            *int32   `json:"top_k"`
	MaxOutputTokens int      `json:"max_output_tokens"`
	BlockThreshold  string   `json:"block_threshold"`
}

type ChatConfig struct {
	Provider            string `json:"provider"`
	Store               string `json:"store"`
	HistoryWindow       int    `json:"history_window"`
	ReplyTimeoutSeconds int    `json:"reply_timeout_seconds"`
}

const jwtSecretEnv = "MOODMATE_JWT_SECRET"

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if env := os.Getenv(jwtSecretEnv); env != "" {
		cfg.BasicConfig.JWTSecret = env
	}
	if cfg.BasicConfig.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret must be configured (or set %s)", jwtSecretEnv)
	}
	if cfg.BasicConfig.TokenTTLHours <= 0 {
		cfg.BasicConfig.TokenTTLHours = 24
	}
	if cfg.Chat.HistoryWindow <= 0 {
		cfg.Chat.HistoryWindow = 30
	}
	if cfg.Chat.ReplyTimeoutSeconds <= 0 {
		cfg.Chat.ReplyTimeoutSeconds = 90
	}
	if cfg.Chat.Provider == "" {
		cfg.Chat.Provider = "gemini"
	}

	return &cfg, nil
}
