package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hession/searchbridge/internal/websearch"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SEARCH_"

var (
	// configDir is the configuration directory path
	// Can be set via SetConfigDir before loading config
	configDir     string
	configDirInit bool
)

// SetConfigDir sets a custom configuration directory
// Must be called before any config loading functions
func SetConfigDir(dir string) {
	configDir = dir
	configDirInit = true
}

// GetConfigDir returns the configuration directory
// Priority: 1. Manually set via SetConfigDir, 2. ./config in current directory
func GetConfigDir() string {
	if !configDirInit {
		cwd, err := os.Getwd()
		if err == nil {
			configDir = filepath.Join(cwd, "config")
		}
		configDirInit = true
	}
	return configDir
}

// Config application configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Search    SearchConfig    `yaml:"search"`
	Providers ProvidersConfig `yaml:"providers"`
	History   HistoryConfig   `yaml:"history"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig HTTP listener configuration
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	GinMode     string   `yaml:"gin_mode"`
}

// SearchConfig settings shared by every provider
type SearchConfig struct {
	DefaultEngine  string `yaml:"default_engine"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
}

// ProvidersConfig per-provider credentials and endpoints
type ProvidersConfig struct {
	Google     GoogleConfig     `yaml:"google"`
	Bing       BingConfig       `yaml:"bing"`
	DuckDuckGo DuckDuckGoConfig `yaml:"duckduckgo"`
}

type GoogleConfig struct {
	APIKey  string `yaml:"api_key"`
	CX      string `yaml:"cx"`
	BaseURL string `yaml:"base_url"`
}

type BingConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type DuckDuckGoConfig struct {
	BaseURL string `yaml:"base_url"`
}

// HistoryConfig search history storage configuration
type HistoryConfig struct {
	Enabled    bool   `yaml:"enabled"`
	DBPath     string `yaml:"db_path"`
	MaxEntries int    `yaml:"max_entries"`
}

// LogConfig logging configuration
type LogConfig struct {
	Level   string `yaml:"level"`
	MaxDays int    `yaml:"max_days"`
	Console bool   `yaml:"console"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8000,
			CORSOrigins: []string{"*"},
			GinMode:     "release",
		},
		Search: SearchConfig{
			DefaultEngine:  websearch.DefaultEngine,
			TimeoutSeconds: 30,
			UserAgent:      "",
		},
		Providers: ProvidersConfig{
			Google:     GoogleConfig{BaseURL: "https://www.googleapis.com/customsearch/v1"},
			Bing:       BingConfig{BaseURL: "https://api.bing.microsoft.com/v7.0/search"},
			DuckDuckGo: DuckDuckGoConfig{BaseURL: "https://html.duckduckgo.com/html/"},
		},
		History: HistoryConfig{
			Enabled:    true,
			DBPath:     filepath.Join(homeDir, ".searchbridge", "history.db"),
			MaxEntries: 1000,
		},
		Log: LogConfig{
			Level:   "info",
			MaxDays: 7,
			Console: true,
		},
	}
}

// ConfigDir returns the configuration directory path
func ConfigDir() (string, error) {
	dir := GetConfigDir()
	if dir == "" {
		return "", fmt.Errorf("failed to determine config directory")
	}
	return dir, nil
}

// LogDir returns the log directory path
func LogDir() string {
	dir := GetConfigDir()
	if dir == "" {
		return "logs"
	}
	return filepath.Join(dir, "logs")
}

// ConfigPath returns the configuration file path
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config file (creating it with defaults when absent), fills
// missing credentials from the secrets file and applies SEARCH_* environment
// overrides, including those from a .env file in the working directory.
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	secrets, err := LoadSecrets()
	if err != nil {
		return nil, fmt.Errorf("failed to parse secrets file: %w", err)
	}
	cfg.applySecrets(secrets)

	// .env is optional; a missing file is not an error
	_ = godotenv.Load()
	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applySecrets(s *Secrets) {
	if c.Providers.Google.APIKey == "" {
		c.Providers.Google.APIKey = s.GetGoogleAPIKey()
	}
	if c.Providers.Google.CX == "" {
		c.Providers.Google.CX = s.GetGoogleCX()
	}
	if c.Providers.Bing.APIKey == "" {
		c.Providers.Bing.APIKey = s.GetBingAPIKey()
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("GOOGLE_API_KEY", &c.Providers.Google.APIKey)
	str("GOOGLE_CX", &c.Providers.Google.CX)
	str("BING_API_KEY", &c.Providers.Bing.APIKey)
	str("API_HOST", &c.Server.Host)
	str("LOG_LEVEL", &c.Log.Level)
	str("DEFAULT_ENGINE", &c.Search.DefaultEngine)
	str("HISTORY_DB_PATH", &c.History.DBPath)

	if v, ok := lookup(EnvPrefix + "API_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v, ok := lookup(EnvPrefix + "TIMEOUT_SECONDS"); ok {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Search.TimeoutSeconds = secs
		}
	}
	if v, ok := lookup(EnvPrefix + "HISTORY_ENABLED"); ok {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.History.Enabled = enabled
		}
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
}

// Save saves configuration to file
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	content := "# SearchBridge Configuration File\n# Credentials may also be set in .secrets or SEARCH_* environment variables\n\n" + string(data)

	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	err := validation.Errors{
		"server": validation.ValidateStruct(&c.Server,
			validation.Field(&c.Server.Port, validation.Required, validation.Min(1), validation.Max(65535)),
			validation.Field(&c.Server.GinMode, validation.In("debug", "release", "test")),
		),
		"search": validation.ValidateStruct(&c.Search,
			validation.Field(&c.Search.DefaultEngine, validation.Required, validation.In(engineNames()...)),
			validation.Field(&c.Search.TimeoutSeconds, validation.Required, validation.Min(1)),
		),
		"history": validation.ValidateStruct(&c.History,
			validation.Field(&c.History.DBPath, validation.When(c.History.Enabled, validation.Required)),
			validation.Field(&c.History.MaxEntries, validation.Min(0)),
		),
		"log": validation.ValidateStruct(&c.Log,
			validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "error")),
		),
	}.Filter()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

func engineNames() []any {
	names := websearch.Engines()
	out := make([]any, len(names))
	for i, name := range names {
		out[i] = name
	}
	return out
}

// Timeout returns the provider transport timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Search.TimeoutSeconds) * time.Second
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SearchSettings converts the provider sections into websearch settings.
func (c *Config) SearchSettings() websearch.Settings {
	return websearch.Settings{
		GoogleAPIKey:      c.Providers.Google.APIKey,
		GoogleCX:          c.Providers.Google.CX,
		BingAPIKey:        c.Providers.Bing.APIKey,
		GoogleBaseURL:     c.Providers.Google.BaseURL,
		BingBaseURL:       c.Providers.Bing.BaseURL,
		DuckDuckGoBaseURL: c.Providers.DuckDuckGo.BaseURL,
		UserAgent:         c.Search.UserAgent,
		Timeout:           c.Timeout(),
	}
}

// String returns string representation of config (hides sensitive info)
func (c *Config) String() string {
	return fmt.Sprintf(`SearchBridge Configuration:
  Server:
    Address: %s
    CORS Origins: %s
    Gin Mode: %s
  Search:
    Default Engine: %s
    Timeout Seconds: %d
    User Agent: %s
  Providers:
    Google API Key: %s
    Google CX: %s
    Google Base URL: %s
    Bing API Key: %s
    Bing Base URL: %s
    DuckDuckGo Base URL: %s
  History:
    Enabled: %v
    DB Path: %s
    Max Entries: %d
  Log:
    Level: %s
    Max Days: %d
    Console: %v`,
		c.Addr(),
		strings.Join(c.Server.CORSOrigins, ", "),
		c.Server.GinMode,
		c.Search.DefaultEngine,
		c.Search.TimeoutSeconds,
		orDefault(c.Search.UserAgent, "(browser default)"),
		redactAPIKey(c.Providers.Google.APIKey),
		redactAPIKey(c.Providers.Google.CX),
		c.Providers.Google.BaseURL,
		redactAPIKey(c.Providers.Bing.APIKey),
		c.Providers.Bing.BaseURL,
		c.Providers.DuckDuckGo.BaseURL,
		c.History.Enabled,
		c.History.DBPath,
		c.History.MaxEntries,
		c.Log.Level,
		c.Log.MaxDays,
		c.Log.Console,
	)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func redactAPIKey(value string) string {
	if value == "" {
		return "(not configured)"
	}
	if len(value) > 8 {
		return value[:8] + "..."
	}
	return "***"
}
