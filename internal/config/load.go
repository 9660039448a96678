package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides (COURSEGEN_API_URL, ...).
const EnvPrefix = "COURSEGEN"

// DefaultConfigPath returns the config location under the user's home.
func DefaultConfigPath() string {
	return expandHome("~/.coursegen/config.yaml")
}

// Load reads configuration from path, layering environment overrides on top.
// A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	cfg := NewConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_url", cfg.APIURL)
	v.SetDefault("access_token", cfg.AccessToken)
	v.SetDefault("request_timeout", cfg.RequestTimeout)
	v.SetDefault("chat.stop_drain_timeout", cfg.Chat.StopDrainTimeout)
	v.SetDefault("store.backend", cfg.Store.Backend)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("ui.render_markdown", cfg.UI.RenderMarkdown)
	v.SetDefault("ui.show_spinner", cfg.UI.ShowSpinner)
	v.SetDefault("ui.description_leads", cfg.UI.DescriptionLeads)
	v.SetDefault("source.timeout", cfg.Source.Timeout)
	v.SetDefault("source.max_workers", cfg.Source.MaxWorkers)
	v.SetDefault("source.max_bytes", cfg.Source.MaxBytes)
	v.SetDefault("source.max_words", cfg.Source.MaxWords)
	v.SetDefault("source.user_agent", cfg.Source.UserAgent)
	v.SetDefault("source.requests_per_second", cfg.Source.RequestsPerSecond)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Store.Path = expandHome(os.ExpandEnv(cfg.Store.Path))
	return cfg, nil
}

// WriteDefault writes the default config to path. Existing files are kept
// unless overwrite is set.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	data, err := yaml.Marshal(NewConfig())
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}
