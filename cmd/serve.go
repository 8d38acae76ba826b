package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bassamadnan/xmail/config"
	"github.com/bassamadnan/xmail/server"
	"github.com/bassamadnan/xmail/storage"
)

func newServeCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve stored mail over the HTTP API the client reads, optionally receiving mail over SMTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath, cmd.Flags())
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel, cmd.ErrOrStderr())

			store, err := storage.Open(cfg.Server.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(store, cfg.Server.Addr, cfg.Server.AllowedOrigins, logger)
			srv.SetRateLimit(cfg.Server.RateLimit, cfg.Server.Burst)

			if cfg.Server.SMTPAddr == "" {
				logger.Info("starting mail API", "addr", cfg.Server.Addr, "db", cfg.Server.DBPath)
				return srv.Run(ctx)
			}

			// The first listener to fail stops the other.
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			intake := server.NewSMTP(store, cfg.Server.SMTPAddr, cfg.Server.SMTPDomain, logger)
			errCh := make(chan error, 2)
			go func() { errCh <- srv.Run(ctx) }()
			go func() { errCh <- intake.Run(ctx) }()

			logger.Info("starting mail API and SMTP intake",
				"addr", cfg.Server.Addr, "smtp", cfg.Server.SMTPAddr, "db", cfg.Server.DBPath)
			var errs []error
			for range 2 {
				if err := <-errCh; err != nil {
					errs = append(errs, err)
				}
				cancel()
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringP("addr", "a", "", "listen address of the mail API")
	cmd.Flags().String("db", "", "path to the mail database")
	cmd.Flags().Float64("rate-limit", 0, "requests per second, 0 for unlimited")
	cmd.Flags().String("smtp-addr", "", "listen address for incoming SMTP mail, empty to disable")
	return cmd
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
