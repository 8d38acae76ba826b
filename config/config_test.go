package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8085", cfg.BaseURL)
	assert.Equal(t, UIBubbletea, cfg.UI)
	assert.Equal(t, "xmail.log", cfg.LogFile)
	assert.Equal(t, time.Duration(0), cfg.HTTPTimeout)
	assert.Equal(t, "127.0.0.1:8085", cfg.Server.Addr)
	assert.Equal(t, "mail.db", cfg.Server.DBPath)
	assert.Empty(t, cfg.Server.SMTPAddr)
	assert.Equal(t, "localhost", cfg.Server.SMTPDomain)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
base_url: http://mail.internal:9000/api
ui: tview
http_timeout: 5s
server:
  addr: 0.0.0.0:9000
  allowed_origins:
    - http://example.com
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "http://mail.internal:9000/api", cfg.BaseURL)
	assert.Equal(t, UITview, cfg.UI)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"http://example.com"}, cfg.Server.AllowedOrigins)
}

func TestLoadEnvAndFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "base_url: http://file:1\nlog_level: warn\n")
	t.Setenv("XMAIL_LOG_LEVEL", "debug")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("base-url", "", "")
	require.NoError(t, flags.Parse([]string{"--base-url", "http://flag:2"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "http://flag:2", cfg.BaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadUnsetFlagDoesNotOverride(t *testing.T) {
	path := writeConfig(t, "base_url: http://file:1\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("base-url", "http://flag-default:2", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "http://file:1", cfg.BaseURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	for name, body := range map[string]string{
		"ui":     "ui: gtk\n",
		"scheme": "base_url: ftp://host\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body), nil)
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "base_url: [unterminated\n"), nil)
	assert.Error(t, err)
}

func TestYAMLRoundTrip(t *testing.T) {
	path := writeConfig(t, `
base_url: https://mail.example.com
http_timeout: 1m30s
server:
  rate_limit: 2.5
  burst: 4
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.Server.RateLimit)
	assert.Equal(t, 4, cfg.Server.Burst)

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "http_timeout: 1m30s")

	again, err := Load(writeConfig(t, string(out)), nil)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadRejectsNegativeRateLimit(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  rate_limit: -1\n"), nil)
	assert.Error(t, err)
}
