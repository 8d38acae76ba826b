package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassamadnan/xmail/mailapi"
	"github.com/bassamadnan/xmail/storage"
)

func seededServer(t *testing.T) (*httptest.Server, *storage.Store) {
	t.Helper()
	st, err := storage.Open(filepath.Join(t.TempDir(), "mail.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	_, err = st.Save(ctx,
		&storage.Mail{Subject: "Hi", From: "a@x", To: storage.Recipients{"b@x"}, Date: "2024-01-01"},
		&storage.Body{ContentType: "text/html; charset=utf-8", Data: []byte("<p>Hello</p>")})
	require.NoError(t, err)
	_, err = st.Save(ctx,
		&storage.Mail{Subject: "Plain", From: "c@x", To: storage.Recipients{"d@x", "e@x"}, Date: "2024-01-02"},
		&storage.Body{ContentType: "text/plain; charset=utf-8", Data: []byte("hello")})
	require.NoError(t, err)

	srv := httptest.NewServer(New(st, "", []string{"http://localhost"}, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func TestListMailJSON(t *testing.T) {
	srv, _ := seededServer(t)

	resp, err := http.Get(srv.URL + "/mail")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var raw []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	require.Len(t, raw, 2)
	for _, key := range []string{"ID", "Subject", "From", "To", "Date"} {
		assert.Contains(t, raw[0], key)
	}
	assert.Equal(t, float64(1), raw[0]["ID"])
}

func TestMailContentTypes(t *testing.T) {
	srv, _ := seededServer(t)

	resp, err := http.Get(srv.URL + "/mail/1/content")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "<p>Hello</p>", string(body))

	resp, err = http.Get(srv.URL + "/mail/2/content")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "hello", string(body))
}

func TestMailContentErrors(t *testing.T) {
	srv, _ := seededServer(t)

	tests := []struct {
		path string
		code int
	}{
		{"/mail/99/content", http.StatusNotFound},
		{"/mail/abc/content", http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.path)
		require.NoError(t, err)
		var payload errorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		resp.Body.Close()
		assert.Equal(t, tt.code, resp.StatusCode, tt.path)
		assert.NotEmpty(t, payload.Message, tt.path)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := seededServer(t)

	resp, err := http.Post(srv.URL+"/mail", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORSAllowedOrigin(t *testing.T) {
	srv, _ := seededServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/mail", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestClientAgainstServer(t *testing.T) {
	srv, _ := seededServer(t)
	client := mailapi.NewClient(srv.URL)
	ctx := context.Background()

	summaries, err := client.ListMail(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, mailapi.Summary{ID: "2", Subject: "Plain", From: "c@x", To: "d@x, e@x", Date: "2024-01-02"}, summaries[1])

	content, err := client.FetchContent(ctx, summaries[0].ID)
	require.NoError(t, err)
	assert.True(t, content.IsHTML())
	text, err := content.ReadText()
	require.NoError(t, err)
	assert.Equal(t, "<p>Hello</p>", text)
}

type failingStore struct{}

func (failingStore) List(context.Context) ([]storage.Mail, error) {
	return nil, errors.New("database is locked")
}

func (failingStore) Body(context.Context, int64) (*storage.Body, error) {
	return nil, errors.New("database is locked")
}

func TestStoreFailureIsInternalError(t *testing.T) {
	srv := httptest.NewServer(New(failingStore{}, "", nil, nil).Handler())
	t.Cleanup(srv.Close)

	_, err := mailapi.NewClient(srv.URL).ListMail(context.Background())
	var statusErr *mailapi.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Equal(t, "database is locked", statusErr.Message)
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(failingStore{}, "", nil, nil).Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := seededServer(t)

	resp, err := http.Get(srv.URL + "/mail")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/mail", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))

	for _, path := range []string{"/nowhere", "/mail/1"} {
		resp, err = http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"), path)
	}

	resp, err = http.Post(srv.URL+"/mail", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	s := New(failingStore{}, "", nil, nil)
	s.SetRateLimit(0.001, 1)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/mail")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/mail")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
