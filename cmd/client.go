package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/bassamadnan/xmail/config"
	"github.com/bassamadnan/xmail/mailapi"
	"github.com/bassamadnan/xmail/mailview"
	"github.com/bassamadnan/xmail/tui"
)

const showWidth = 100

var errUnknownMail = errors.New("no mail with that ID")

func newListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list the mail index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath, cmd.Flags())
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel, cmd.ErrOrStderr())

			start := func(s *mailview.Session, _ *mailview.Loop, finish func()) {
				s.Subscribe(func(snap mailview.Snapshot) {
					if !snap.IndexLoading && (snap.IndexLoaded || snap.IndexErr != nil) {
						finish()
					}
				})
				s.LoadIndex()
			}
			snap, err := runHeadless(cmd.Context(), newClient(cfg, logger), logger, start)
			if err != nil {
				return err
			}
			if snap.IndexErr != nil {
				return fmt.Errorf("loading mail index: %w", snap.IndexErr)
			}
			return printIndex(cmd.OutOrStdout(), snap.Index)
		},
	}
}

func newShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <ID>",
		Short: "print one mail with its rendered content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath, cmd.Flags())
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel, cmd.ErrOrStderr())
			id := mailapi.MailID(args[0])

			var unknown bool
			start := func(s *mailview.Session, loop *mailview.Loop, finish func()) {
				selected := false
				s.Subscribe(func(snap mailview.Snapshot) {
					switch {
					case !selected && snap.IndexLoaded:
						selected = true
						// Select notifies observers itself, so it runs as its own update.
						loop.Post(func() {
							if !s.Select(id) {
								unknown = true
								finish()
							}
						})
					case !selected && snap.IndexErr != nil && !snap.IndexLoading:
						finish()
					case selected && snap.Open && !snap.Loading:
						finish()
					}
				})
				s.LoadIndex()
			}

			snap, err := runHeadless(cmd.Context(), newClient(cfg, logger), logger, start)
			switch {
			case err != nil:
				return err
			case unknown:
				return fmt.Errorf("%w: %s", errUnknownMail, id)
			case snap.IndexErr != nil:
				return fmt.Errorf("loading mail index: %w", snap.IndexErr)
			case snap.DetailErr != nil:
				return fmt.Errorf("loading mail %s: %w", id, snap.DetailErr)
			}
			return printMail(cmd.OutOrStdout(), snap.Mail)
		},
	}
}

// runHeadless drives a session on a mailview.Loop. start runs on the loop
// and calls finish once the session holds the wanted state.
func runHeadless(
	ctx context.Context,
	fetcher mailview.Fetcher,
	logger *slog.Logger,
	start func(s *mailview.Session, loop *mailview.Loop, finish func()),
) (mailview.Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := mailview.NewLoop()
	session := mailview.NewSession(fetcher, loop, logger)
	defer session.Stop()

	result := make(chan mailview.Snapshot, 1)
	finish := func() {
		select {
		case result <- session.Snapshot():
		default:
		}
	}
	loop.Post(func() { start(session, loop, finish) })

	go func() { _ = loop.Run(ctx) }()

	select {
	case snap := <-result:
		return snap, nil
	case <-ctx.Done():
		return mailview.Snapshot{}, ctx.Err()
	}
}

func printIndex(w io.Writer, idx mailview.Index) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "SUBJECT", "FROM", "TO", "DATE")
	for _, s := range idx.Summaries() {
		t.Row(s.ID.String(), s.Subject, s.From, string(s.To), s.Date)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func printMail(w io.Writer, mail mailview.DisplayedMail) error {
	_, err := fmt.Fprintf(w, "Subject: %s\nFrom:    %s\nTo:      %s\nDate:    %s\n\n%s\n",
		mail.Subject, mail.From, mail.To, mail.Date, tui.RenderContent(mail, showWidth))
	return err
}
