package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassamadnan/xmail/server"
	"github.com/bassamadnan/xmail/storage"
)

const testMbox = `From alice@example.com Mon Jan  1 10:00:00 2024
From: Alice <alice@example.com>
To: bob@example.com
Subject: first
Date: Mon, 01 Jan 2024 10:00:00 +0000
Content-Type: text/plain

body one

From carol@example.com Tue Jan  2 10:00:00 2024
From: carol@example.com
To: bob@example.com, dan@example.com
Subject: second
Date: Tue, 02 Jan 2024 10:00:00 +0000
Content-Type: text/html

<p>body <b>two</b></p>
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// seeded imports testMbox into a fresh database and serves it.
func seeded(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "mail.db")
	mboxPath := filepath.Join(dir, "inbox.mbox")
	require.NoError(t, os.WriteFile(mboxPath, []byte(testMbox), 0o644))

	out, err := run(t, "import", "--db", dbPath, mboxPath)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2, skipped 0")

	store, err := storage.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := httptest.NewServer(server.New(store, "", nil, slog.Default()).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestListCommand(t *testing.T) {
	baseURL := seeded(t)

	out, err := run(t, "list", "--base-url", baseURL)
	require.NoError(t, err)
	assert.Contains(t, out, "SUBJECT")
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "Alice <alice@example.com>")
	assert.Contains(t, out, "bob@example.com, dan@example.com")
}

func TestShowCommand(t *testing.T) {
	baseURL := seeded(t)

	out, err := run(t, "show", "2", "--base-url", baseURL)
	require.NoError(t, err)
	assert.Contains(t, out, "Subject: second")
	assert.Contains(t, out, "To:      bob@example.com, dan@example.com")
	assert.Contains(t, out, "body two")
	assert.NotContains(t, out, "<p>")

	out, err = run(t, "show", "1", "--base-url", baseURL)
	require.NoError(t, err)
	assert.Contains(t, out, "body one")
}

func TestShowUnknownID(t *testing.T) {
	baseURL := seeded(t)

	_, err := run(t, "show", "99", "--base-url", baseURL)
	assert.ErrorIs(t, err, errUnknownMail)
}

func TestListServiceDown(t *testing.T) {
	srv := httptest.NewServer(nil)
	baseURL := srv.URL
	srv.Close()

	_, err := run(t, "list", "--base-url", baseURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading mail index")
}

func TestImportMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "import", "--db", filepath.Join(dir, "mail.db"), filepath.Join(dir, "nope.mbox"))
	assert.Error(t, err)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	_, err := run(t, "list", "--base-url", "ftp://example.com")
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger("warn", &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	assert.True(t, setupLogger("DEBUG", &buf).Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, setupLogger("bogus", &buf).Enabled(context.Background(), slog.LevelDebug))
}

func TestConfigCommandPrintsEffectiveConfig(t *testing.T) {
	out, err := run(t, "config", "--base-url", "http://mail.test:1", "--ui", "tview")
	require.NoError(t, err)
	assert.Contains(t, out, "base_url: http://mail.test:1")
	assert.Contains(t, out, "ui: tview")
	assert.Contains(t, out, "db_path: mail.db")
}
