package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Relay        RelayConfig
	Database     DatabaseConfig
	Push         PushConfig
	Notification NotificationConfig
	Affection    AffectionConfig
	Log          LogConfig
}

// RelayConfig points at the notification relay service.
type RelayConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// PushConfig describes where the local push token comes from.
type PushConfig struct {
	Token     string
	TokenFile string `mapstructure:"token_file"`
	InboxFile string `mapstructure:"inbox_file"`
}

// NotificationConfig holds outgoing notification settings.
type NotificationConfig struct {
	Title string
}

// AffectionConfig overrides the preset catalogue.
type AffectionConfig struct {
	Presets []string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Path  string
	Level string
}

// Load reads configuration from file and env. Env var overrides use prefix LOVENUDGE_.
// An explicit path wins over LOVENUDGE_CONFIG, which wins over the default location.
func Load(path string) (Config, error) {
	v := viper.New()
	home := os.Getenv("HOME")

	v.SetDefault("relay.base_url", "http://localhost:3000")
	v.SetDefault("relay.timeout", "10s")
	v.SetDefault("database.path", filepath.Join(home, ".local", "share", "lovenudge", "lovenudge.db"))
	v.SetDefault("push.token", "")
	v.SetDefault("push.token_file", "")
	v.SetDefault("push.inbox_file", "")
	v.SetDefault("notification.title", "")
	v.SetDefault("affection.presets", []string{})
	v.SetDefault("log.path", filepath.Join(home, ".local", "state", "lovenudge", "lovenudge.log"))
	v.SetDefault("log.level", "info")

	v.SetConfigType("toml")

	if path == "" {
		path = os.Getenv("LOVENUDGE_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(home, ".config", "lovenudge"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("LOVENUDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// a missing default file is fine; an explicit one must exist
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Relay.BaseURL = strings.TrimRight(strings.TrimSpace(c.Relay.BaseURL), "/")
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// Validate checks the fields the client cannot run without.
func (c Config) Validate() error {
	if c.Relay.BaseURL == "" {
		return fmt.Errorf("relay.base_url cannot be empty")
	}
	u, err := url.Parse(c.Relay.BaseURL)
	if err != nil {
		return fmt.Errorf("relay.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("relay.base_url must be http or https, got %q", u.Scheme)
	}
	if c.Relay.Timeout <= 0 {
		return fmt.Errorf("relay.timeout must be > 0")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path cannot be empty")
	}
	return nil
}
