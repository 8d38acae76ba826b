package tui

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bassamadnan/xmail/mailapi"
	"github.com/bassamadnan/xmail/mailview"
)

func TestListItemText(t *testing.T) {
	now := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)

	mainText, secondary := listItemText(mailapi.Summary{
		Subject: "Hi [there]",
		From:    "Alice <alice@example.com>",
		Date:    "Mon, 01 Jan 2024 10:00:00 +0000",
	}, now)
	assert.Equal(t, "Hi [there[]", mainText)
	assert.Equal(t, "[::d]from: Alice · 10:00", secondary)

	mainText, secondary = listItemText(mailapi.Summary{Date: "someday"}, now)
	assert.Equal(t, "(No Subject)", mainText)
	assert.Equal(t, "[::d]from: (Unknown Sender) · someday", secondary)
}

func TestMailListViewSetSummaries(t *testing.T) {
	var selected mailapi.Summary
	mlv := NewMailListView(func(s mailapi.Summary) { selected = s })

	summaries := []mailapi.Summary{{ID: "1", Subject: "a"}, {ID: "2", Subject: "b"}}
	mlv.SetSummaries(summaries)
	assert.Equal(t, 2, mlv.GetItemCount())

	mlv.SetCurrentItem(1)
	mlv.SetSummaries([]mailapi.Summary{{ID: "1", Subject: "a"}})
	assert.Equal(t, 1, mlv.GetItemCount())
	assert.Equal(t, 0, mlv.GetCurrentItem())
	assert.Empty(t, selected.ID)
}

func TestOverlayText(t *testing.T) {
	snap := mailview.Snapshot{
		Open: true,
		Mail: mailview.DisplayedMail{
			ID: "1", Subject: "s", From: "a@x", To: "b@x", Date: "today",
			Content: "<p>hi <b>there</b></p>", IsHTML: true,
		},
	}
	got := overlayText(snap)
	assert.Contains(t, got, "[::b]From:[::-] a@x")
	assert.Contains(t, got, "[::b]To:[::-]   b@x")
	assert.Contains(t, got, "hi")
	assert.Contains(t, got, "there")
	assert.NotContains(t, got, "<p>")

	snap.Loading = true
	assert.Contains(t, overlayText(snap), "Loading...")

	snap.DetailErr = errors.New("boom")
	assert.Contains(t, overlayText(snap), "Could not load mail: boom")
}

func TestOverlayTextShowsNewSelectionBeforeHeaders(t *testing.T) {
	snap := mailview.Snapshot{
		Open:    true,
		Loading: true,
		Mail: mailview.DisplayedMail{
			ID: "1", Subject: "old", From: "a@x", To: "b@x", Date: "today",
			Content: "old body",
		},
		Pending: mailapi.Summary{ID: "2", Subject: "new", From: "c@x", To: "d@x, e@x", Date: "tomorrow"},
	}
	got := overlayText(snap)
	assert.Contains(t, got, "[::b]From:[::-] c@x")
	assert.Contains(t, got, "[::b]To:[::-]   d@x, e@x")
	assert.NotContains(t, got, "a@x")
	assert.NotContains(t, got, "old body")

	snap.Loading = false
	snap.DetailErr = errors.New("gone")
	got = overlayText(snap)
	assert.Contains(t, got, "Could not load mail: gone")
	assert.NotContains(t, got, "old body")

	o := NewMailOverlay(func() {})
	o.SetSnapshot(snap)
	assert.Equal(t, mailapi.MailID("2"), o.shown.ID)
}

func TestStatusText(t *testing.T) {
	snap := mailview.Snapshot{Index: mailview.NewIndex([]mailapi.Summary{{ID: "1"}, {ID: "2"}, {ID: "1"}})}
	assert.Contains(t, statusText(snap, "src"), "src | 2 mails")

	snap.IndexLoading = true
	assert.Contains(t, statusText(snap, "src"), "Loading src...")

	snap.IndexErr = errors.New("down")
	assert.Contains(t, statusText(snap, "src"), "Could not load mail: down")
}
