package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-smtp"
)

const maxMessageBytes = 25 << 20

// MessageImporter stores a raw RFC 5322 message.
type MessageImporter interface {
	ImportMessage(ctx context.Context, r io.Reader) (int64, error)
}

// SMTPServer accepts mail over SMTP and hands every message to the store,
// where the HTTP API picks it up.
type SMTPServer struct {
	importer MessageImporter
	addr     string
	domain   string
	logger   *slog.Logger
}

func NewSMTP(importer MessageImporter, addr, domain string, logger *slog.Logger) *SMTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPServer{importer: importer, addr: addr, domain: domain, logger: logger}
}

// Run listens on the configured address until ctx is cancelled.
func (s *SMTPServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *SMTPServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := smtp.NewServer(&smtpBackend{ctx: ctx, importer: s.importer, logger: s.logger})
	srv.Domain = s.domain
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.MaxMessageBytes = maxMessageBytes
	srv.MaxRecipients = 100
	srv.ErrorLog = slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("SMTP intake listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving SMTP: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down SMTP intake")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down SMTP: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, smtp.ErrServerClosed) {
		return err
	}
	return nil
}

type smtpBackend struct {
	ctx      context.Context
	importer MessageImporter
	logger   *slog.Logger
}

func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{backend: b, remote: c.Conn().RemoteAddr().String()}, nil
}

// smtpSession holds one envelope at a time.
type smtpSession struct {
	backend *smtpBackend
	remote  string
	from    string
	to      []string
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.to = append(s.to, to)
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	id, err := s.backend.importer.ImportMessage(s.backend.ctx, r)
	if err != nil {
		s.backend.logger.Error("storing received mail", "remote", s.remote, "from", s.from, "error", err)
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "message could not be stored",
		}
	}
	s.backend.logger.Info("mail received", "id", id, "from", s.from, "rcpt", s.to)
	return nil
}

func (s *smtpSession) Reset() {
	s.from = ""
	s.to = nil
}

func (s *smtpSession) Logout() error { return nil }
