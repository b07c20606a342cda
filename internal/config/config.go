// Package config loads replaybot configuration from an optional YAML file
// with environment overrides. The bot token comes from TG_BOT_TOKEN and
// is the only required setting.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

const (
	EnvToken    = "TG_BOT_TOKEN"
	EnvUsername = "TG_BOT_USERNAME"

	defaultUsername = "@replaymsgbot"
)

// Duration wraps time.Duration so YAML can carry "10s" / "1m30s" strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

type TelegramConfig struct {
	Token       string   `yaml:"token"`
	Username    string   `yaml:"username"`
	PollTimeout Duration `yaml:"poll_timeout"`
}

type StorageConfig struct {
	Path        string   `yaml:"path"`
	BusyTimeout Duration `yaml:"busy_timeout"`
}

type LogConfig struct {
	Level   string        `yaml:"level"`
	Console *bool         `yaml:"console"`
	File    LogFileConfig `yaml:"file"`
}

type LogFileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ConsoleEnabled defaults to true when the config file says nothing.
func (l LogConfig) ConsoleEnabled() bool {
	return l.Console == nil || *l.Console
}

func defaults() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Username:    defaultUsername,
			PollTimeout: Duration(10 * time.Second),
		},
		Storage: StorageConfig{
			Path:        "./replaybot.db",
			BusyTimeout: Duration(5 * time.Second),
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides, and validates. A missing token is fatal by
// contract: the process must not start without it.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(strings.NewReader(string(b)))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvUsername)); v != "" {
		cfg.Telegram.Username = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New(EnvToken + " is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path must not be empty")
	}
	return nil
}
