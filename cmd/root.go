// Package cmd wires configuration, logging and the xmail packages into the
// command-line interface.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/bassamadnan/xmail/config"
	"github.com/bassamadnan/xmail/mailapi"
	"github.com/bassamadnan/xmail/tui"
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "xmail",
		Short:         "xmail is a terminal client for a read-only mail service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			return runClient(cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", config.DefaultConfigPath(), "path to the YAML config file")
	pf.String("base-url", "", "base URL of the mail service")
	pf.String("ui", "", "terminal front end: bubbletea or tview")
	pf.String("log-file", "", "log file used while the terminal UI runs")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.Duration("http-timeout", 0, "per-request timeout, 0 for none")

	root.AddCommand(
		newListCmd(&configPath),
		newShowCmd(&configPath),
		newServeCmd(&configPath),
		newImportCmd(&configPath),
		newConfigCmd(&configPath),
	)
	return root
}

// runClient runs the configured terminal UI. The terminal belongs to the UI,
// so logs go to the log file.
func runClient(cfg *config.Config) error {
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o660)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	logger := setupLogger(cfg.LogLevel, logFile)
	slog.SetDefault(logger)
	logger.Info("xmail starting", "base_url", cfg.BaseURL, "ui", cfg.UI)

	client := newClient(cfg, logger)
	switch cfg.UI {
	case config.UITview:
		err = tui.NewApp(client, client.BaseURL(), logger).Run()
	default:
		m := tui.NewModel(client, client.BaseURL(), logger)
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
		_, err = p.Run()
		m.Shutdown()
	}
	if err != nil {
		logger.Error("terminal UI stopped", "error", err)
		return err
	}
	logger.Info("xmail stopped")
	return nil
}

func newClient(cfg *config.Config, logger *slog.Logger) *mailapi.Client {
	return mailapi.NewClient(cfg.BaseURL,
		mailapi.WithTimeout(cfg.HTTPTimeout),
		mailapi.WithLogger(logger))
}

func setupLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
