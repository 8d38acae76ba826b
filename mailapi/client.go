package mailapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	listPath        = "/mail"
	contentPathTmpl = "/mail/%s/content"

	// maxErrorBody bounds how much of an error response is kept for the message.
	maxErrorBody = 4 << 10
)

// Client is a thin HTTP client for the read-only mail service endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets a per-request timeout. Zero means no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the service rooted at baseURL, for example
// http://localhost:8085 or a path prefix such as http://host/api.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// ListMail fetches the mail index.
func (c *Client) ListMail(ctx context.Context) ([]Summary, error) {
	resp, err := c.get(ctx, listPath, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var summaries []Summary
	if err := json.NewDecoder(resp.Body).Decode(&summaries); err != nil {
		return nil, fmt.Errorf("%w: decoding mail index: %v", ErrMalformed, err)
	}
	c.logger.Debug("mail index fetched", "count", len(summaries))
	return summaries, nil
}

// FetchContent opens the content of one message. It returns as soon as the
// response headers arrive; the caller reads the body with ReadText.
func (c *Client) FetchContent(ctx context.Context, id MailID) (*Content, error) {
	path := fmt.Sprintf(contentPathTmpl, url.PathEscape(id.String()))
	resp, err := c.get(ctx, path, "")
	if err != nil {
		return nil, err
	}
	return NewContent(resp.Header.Get("Content-Type"), resp.Body), nil
}

// get issues a GET and returns the response only for 2xx statuses; the
// caller owns the body.
func (c *Client) get(ctx context.Context, path, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", path, err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrNetwork, path, err)
	}
	c.logger.Debug("mail service request",
		"path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, &StatusError{
			Code:    resp.StatusCode,
			Path:    path,
			Message: errorMessage(resp.Body),
		}
	}
	return resp, nil
}

// errorMessage extracts {"Message": ...} from an error body, falling back
// to the raw text.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	var payload struct {
		Message string `json:"Message"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(data))
}
