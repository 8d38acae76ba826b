// Package server serves stored mail over the read-only HTTP API the client
// consumes: GET /mail and GET /mail/{mailID}/content.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/bassamadnan/xmail/storage"
)

const shutdownTimeout = 5 * time.Second

var errRateLimited = errors.New("too many requests")

// MailStore is the storage the server reads from.
type MailStore interface {
	List(ctx context.Context) ([]storage.Mail, error)
	Body(ctx context.Context, id int64) (*storage.Body, error)
}

// Server is the mail API server.
type Server struct {
	store          MailStore
	addr           string
	allowedOrigins []string
	logger         *slog.Logger
	limiter        *rate.Limiter
}

// New creates a server listening on addr. allowedOrigins feeds the CORS
// policy so browser front ends on those origins may call the API.
func New(store MailStore, addr string, allowedOrigins []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:          store,
		addr:           addr,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// SetRateLimit throttles the API to perSecond requests with the given
// burst. A zero rate disables throttling.
func (s *Server) SetRateLimit(perSecond float64, burst int) {
	if perSecond <= 0 {
		s.limiter = nil
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
}

// Handler returns the routed API wrapped in CORS, request logging and the
// optional rate limit.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/mail", s.handleListMail).Methods(http.MethodGet)
	r.HandleFunc("/mail/{mailID}/content", s.handleMailContent).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	})
	// Wrapped outside the router so unmatched routes are logged too.
	return c.Handler(s.logRequests(s.throttle(r)))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mail API listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving mail API: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down mail API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down mail API: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

const requestIDHeader = "X-Request-ID"

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, reqID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start))
	})
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.writeError(w, http.StatusTooManyRequests, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
