package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bassamadnan/xmail/config"
	"github.com/bassamadnan/xmail/storage"
)

func newImportCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "import mbox or single message files into the mail database",
		Args:  cobra.MinimumNArgs(1),
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

			ctx := contextOrBackground(cmd.Context())
			for _, path := range args {
				res, err := store.ImportFile(ctx, path)
				if err != nil && res.Imported == 0 {
					return err
				}
				if err != nil {
					logger.Warn("skipped messages", "file", path, "skipped", res.Skipped, "error", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: imported %d, skipped %d\n", path, res.Imported, res.Skipped)
			}
			return nil
		},
	}
	cmd.Flags().String("db", "", "path to the mail database")
	return cmd
}
