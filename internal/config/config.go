package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Store backends
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// Config holds all application configuration
type Config struct {
	// Gateway settings
	APIURL         string        `mapstructure:"api_url" yaml:"api_url"`
	AccessToken    string        `mapstructure:"access_token" yaml:"access_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	Chat   ChatConfig   `mapstructure:"chat" yaml:"chat"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
	UI     UIConfig     `mapstructure:"ui" yaml:"ui"`
	Source SourceConfig `mapstructure:"source" yaml:"source"`
}

// ChatConfig tunes the generation state machine
type ChatConfig struct {
	// StopDrainTimeout bounds how long a stopped stream may keep running
	// before the request is settled as failed.
	StopDrainTimeout time.Duration `mapstructure:"stop_drain_timeout" yaml:"stop_drain_timeout"`
}

// StoreConfig selects the local key/value store
type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// UIConfig holds terminal front end switches
type UIConfig struct {
	RenderMarkdown bool `mapstructure:"render_markdown" yaml:"render_markdown"`
	ShowSpinner    bool `mapstructure:"show_spinner" yaml:"show_spinner"`

	// DescriptionLeads are the bold lead-in words that mark a list of
	// course descriptions in a program outline.
	DescriptionLeads []string `mapstructure:"description_leads" yaml:"description_leads"`
}

// SourceConfig tunes fetching of reference pages given as source material
type SourceConfig struct {
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxWorkers int           `mapstructure:"max_workers" yaml:"max_workers"`
	MaxBytes   int64         `mapstructure:"max_bytes" yaml:"max_bytes"`
	MaxWords   int           `mapstructure:"max_words" yaml:"max_words"`
	UserAgent  string        `mapstructure:"user_agent" yaml:"user_agent"`

	// RequestsPerSecond caps page fetches across workers; 0 disables the cap.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		APIURL:         "http://localhost:8000",
		RequestTimeout: 60 * time.Second,

		Chat: ChatConfig{
			StopDrainTimeout: 10 * time.Second,
		},

		Store: StoreConfig{
			Backend: StoreFile,
			Path:    expandHome("~/.coursegen/state.json"),
		},

		UI: UIConfig{
			RenderMarkdown: true,
			ShowSpinner:    true,

			DescriptionLeads: []string{"Courses"},
		},

		Source: SourceConfig{
			Timeout:    15 * time.Second,
			MaxWorkers: 4,
			MaxBytes:   2 * 1024 * 1024,
			MaxWords:   1500,
			UserAgent:  "Mozilla/5.0 (compatible; coursegen/1.0)",

			RequestsPerSecond: 4,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("api url cannot be empty")
	}
	parsed, err := url.Parse(c.APIURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api url must include scheme and host (e.g. https://api.example.com)")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.Chat.StopDrainTimeout <= 0 {
		return fmt.Errorf("chat.stop_drain_timeout must be positive")
	}
	switch c.Store.Backend {
	case StoreFile, StoreSQLite:
	default:
		return fmt.Errorf("unsupported store.backend %q", c.Store.Backend)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path cannot be empty")
	}
	if c.Source.Timeout <= 0 {
		return fmt.Errorf("source.timeout must be positive")
	}
	if c.Source.MaxWorkers < 1 {
		return fmt.Errorf("source.max_workers must be at least 1")
	}
	if c.Source.MaxBytes <= 0 {
		return fmt.Errorf("source.max_bytes must be positive")
	}
	if c.Source.RequestsPerSecond < 0 {
		return fmt.Errorf("source.requests_per_second cannot be negative")
	}
	return nil
}

// expandHome expands the ~ in file paths to the user's home directory
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		return getHomeDir() + path[1:]
	}
	return path
}

// getHomeDir returns the user's home directory
func getHomeDir() string {
	if home := GetEnv("HOME"); home != "" {
		return home
	}
	// Fallback for Windows
	if home := GetEnv("USERPROFILE"); home != "" {
		return home
	}
	return "."
}

// GetEnv is a wrapper around os.Getenv for easier testing
var GetEnv = os.Getenv
