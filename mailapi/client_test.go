package mailapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestListMail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /mail", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"ID":1,"Subject":"Hi","From":"a@x","To":["b@x","c@x"],"Date":"2024-01-01","MessageID":"<m1>"},
			{"ID":"abc","Subject":"Yo","From":"d@x","To":"e@x","Date":"2024-01-02"}
		]`))
	})
	client := newTestServer(t, mux)

	got, err := client.ListMail(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Summary{ID: "1", Subject: "Hi", From: "a@x", To: "b@x, c@x", Date: "2024-01-01"}, got[0])
	assert.Equal(t, Summary{ID: "abc", Subject: "Yo", From: "d@x", To: "e@x", Date: "2024-01-02"}, got[1])
}

func TestListMailMalformed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /mail", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	})
	client := newTestServer(t, mux)

	_, err := client.ListMail(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestListMailStatusError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /mail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"Message":"database is locked"}`))
	})
	client := newTestServer(t, mux)

	_, err := client.ListMail(context.Background())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Equal(t, "database is locked", statusErr.Message)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestListMailNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NewServeMux())
	client := NewClient(srv.URL)
	srv.Close()

	_, err := client.ListMail(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestFetchContent(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantHTML    bool
	}{
		{name: "html with charset", contentType: "text/html; charset=utf-8", body: "<b>hi</b>", wantHTML: true},
		{name: "plain", contentType: "text/plain", body: "hello", wantHTML: false},
		{name: "absent header", contentType: "", body: "hello", wantHTML: false},
		{name: "uppercase is not html", contentType: "TEXT/HTML", body: "<b>x</b>", wantHTML: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /mail/{id}/content", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "42", r.PathValue("id"))
				if tt.contentType == "" {
					// Suppress net/http's content sniffing.
					w.Header()["Content-Type"] = nil
				} else {
					w.Header().Set("Content-Type", tt.contentType)
				}
				_, _ = w.Write([]byte(tt.body))
			})
			client := newTestServer(t, mux)

			content, err := client.FetchContent(context.Background(), "42")
			require.NoError(t, err)
			assert.Equal(t, tt.wantHTML, content.IsHTML())

			text, err := content.ReadText()
			require.NoError(t, err)
			assert.Equal(t, tt.body, text)
		})
	}
}

func TestFetchContentNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /mail/{id}/content", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such mail", http.StatusNotFound)
	})
	client := newTestServer(t, mux)

	_, err := client.FetchContent(context.Background(), "7")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, "no such mail", statusErr.Message)
}

func TestIsHTMLContentType(t *testing.T) {
	assert.True(t, IsHTMLContentType("text/html"))
	assert.True(t, IsHTMLContentType("text/html; charset=utf-8"))
	assert.False(t, IsHTMLContentType("text/plain; charset=utf-8"))
	assert.False(t, IsHTMLContentType(""))
	assert.False(t, IsHTMLContentType("Text/Html"))
	assert.False(t, IsHTMLContentType(" text/html"))
}

func TestTimeoutDoesNotTouchCallerClient(t *testing.T) {
	hc := &http.Client{}
	c := NewClient("http://mail.test", WithHTTPClient(hc), WithTimeout(3*time.Second))
	assert.Equal(t, time.Duration(0), hc.Timeout)
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)

	c = NewClient("http://mail.test", WithTimeout(time.Second), WithHTTPClient(hc))
	assert.Equal(t, time.Second, c.httpClient.Timeout)
	assert.Equal(t, time.Duration(0), hc.Timeout)

	c = NewClient("http://mail.test", WithHTTPClient(hc))
	assert.Same(t, hc, c.httpClient)
}
