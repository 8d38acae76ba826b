package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v4"
)

const (
	UIBubbletea = "bubbletea"
	UITview     = "tview"
)

// Config is the application configuration. The same file configures the
// client and the bundled mail service.
type Config struct {
	// BaseURL is the root of the mail service, e.g. http://localhost:8085.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// UI selects the terminal front end: "bubbletea" or "tview".
	UI string `mapstructure:"ui" yaml:"ui"`

	LogFile  string `mapstructure:"log_file" yaml:"log_file"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// HTTPTimeout bounds each request to the mail service. Zero means none.
	HTTPTimeout time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`

	Server ServerConfig `mapstructure:"server" yaml:"server"`
}

// ServerConfig configures `xmail serve`.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr" yaml:"addr"`
	DBPath         string   `mapstructure:"db_path" yaml:"db_path"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	// RateLimit is the request rate allowed per second; zero disables it.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int     `mapstructure:"burst" yaml:"burst"`

	// SMTPAddr enables the SMTP intake listener when set.
	SMTPAddr   string `mapstructure:"smtp_addr" yaml:"smtp_addr"`
	SMTPDomain string `mapstructure:"smtp_domain" yaml:"smtp_domain"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"base-url":     "base_url",
	"ui":           "ui",
	"log-file":     "log_file",
	"log-level":    "log_level",
	"http-timeout": "http_timeout",
	"addr":         "server.addr",
	"db":           "server.db_path",
	"rate-limit":   "server.rate_limit",
	"smtp-addr":    "server.smtp_addr",
}

// DefaultConfigPath returns ~/.config/xmail/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "xmail", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "http://localhost:8085")
	v.SetDefault("ui", UIBubbletea)
	v.SetDefault("log_file", "xmail.log")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_timeout", time.Duration(0))
	v.SetDefault("server.addr", "127.0.0.1:8085")
	v.SetDefault("server.db_path", "mail.db")
	v.SetDefault("server.allowed_origins", []string{"http://localhost", "http://127.0.0.1"})
	v.SetDefault("server.rate_limit", 0.0)
	v.SetDefault("server.burst", 10)
	v.SetDefault("server.smtp_addr", "")
	v.SetDefault("server.smtp_domain", "localhost")
}

// Load reads configuration from the YAML file at path, then applies
// XMAIL_* environment variables and any flags that were set explicitly.
// A missing file is not an error; defaults are used instead.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("XMAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			var pathErr *os.PathError
			if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base_url %q: scheme must be http or https", c.BaseURL)
	}
	switch c.UI {
	case UIBubbletea, UITview:
	default:
		return fmt.Errorf("invalid ui %q: want %q or %q", c.UI, UIBubbletea, UITview)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("invalid http_timeout %s", c.HTTPTimeout)
	}
	if c.Server.RateLimit < 0 || c.Server.Burst < 0 {
		return fmt.Errorf("invalid server rate limit %v/%d", c.Server.RateLimit, c.Server.Burst)
	}
	return nil
}

// YAML renders the configuration in the format Load reads.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return out, nil
}
