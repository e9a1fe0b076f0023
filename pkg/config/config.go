package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so filter_values can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Server  ServerConfig  `json:"server"`
	Session SessionConfig `json:"session"`
	Store   StoreConfig   `json:"store"`
	Log     LogConfig     `json:"log"`
	mu      sync.RWMutex
}

type ServerConfig struct {
	Domain                       string   `json:"domain" env:"VANCHAT_SERVER_DOMAIN"`
	ChatURL                      string   `json:"chat_url,omitempty" env:"VANCHAT_SERVER_CHAT_URL"`
	ConfigURL                    string   `json:"config_url,omitempty" env:"VANCHAT_SERVER_CONFIG_URL"`
	FileUploadServiceEndpointURL string   `json:"file_upload_service_endpoint_url,omitempty" env:"VANCHAT_SERVER_FILE_UPLOAD_SERVICE_ENDPOINT_URL"`
	CertificatePins              []string `json:"certificate_pins,omitempty" env:"VANCHAT_SERVER_CERTIFICATE_PINS"`
}

type SessionConfig struct {
	UserToken                        string              `json:"user_token,omitempty" env:"VANCHAT_SESSION_USER_TOKEN"`
	Skill                            string              `json:"skill,omitempty" env:"VANCHAT_SESSION_SKILL"`
	LanguageCode                     string              `json:"language_code" env:"VANCHAT_SESSION_LANGUAGE_CODE"`
	FilterValues                     FlexibleStringSlice `json:"filter_values,omitempty" env:"VANCHAT_SESSION_FILTER_VALUES"`
	Clean                            bool                `json:"clean" env:"VANCHAT_SESSION_CLEAN"`
	PollIntervalMS                   int                 `json:"poll_interval_ms" env:"VANCHAT_SESSION_POLL_INTERVAL_MS"`
	StartNewConversationOnResumeFail bool                `json:"start_new_conversation_on_resume_failure" env:"VANCHAT_SESSION_START_NEW_CONVERSATION_ON_RESUME_FAILURE"`
	UploadExpirySeconds              int                 `json:"upload_expiry_seconds,omitempty" env:"VANCHAT_SESSION_UPLOAD_EXPIRY_SECONDS"`
}

type StoreConfig struct {
	Path string `json:"path" env:"VANCHAT_STORE_PATH"`
}

type LogConfig struct {
	Level  string `json:"level" env:"VANCHAT_LOG_LEVEL"`
	Format string `json:"format" env:"VANCHAT_LOG_FORMAT"` // json or console
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{},
		Session: SessionConfig{
			LanguageCode:                     "en-US",
			Clean:                            false,
			PollIntervalMS:                   2500,
			StartNewConversationOnResumeFail: true,
		},
		Store: StoreConfig{
			Path: "~/.vanchat/vanchat.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		// No file yet; env overrides still apply below.
	default:
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// StorePath returns the store path with a leading ~ expanded.
func (c *Config) StorePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Store.Path)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
