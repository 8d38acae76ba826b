package tui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/bassamadnan/xmail/mailapi"
	"github.com/bassamadnan/xmail/mailview"
)

const (
	PageMailList = "mailList"
	PageOverlay  = "overlay"
)

// MailListView lists the summaries of the index.
type MailListView struct {
	*tview.List
	summaries []mailapi.Summary
	now       func() time.Time
}

func NewMailListView(onSelect func(mailapi.Summary)) *MailListView {
	list := tview.NewList().
		ShowSecondaryText(true).
		SetSecondaryTextColor(tcell.ColorDimGray)
	list.SetBackgroundColor(tcell.ColorDefault)
	list.SetSelectedStyle(tcell.StyleDefault.
		Foreground(tcell.ColorWhite).
		Background(tcell.ColorSteelBlue).
		Attributes(tcell.AttrBold))
	list.SetBorder(true).SetTitle("Mail")

	mlv := &MailListView{List: list, now: time.Now}
	list.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		if index >= 0 && index < len(mlv.summaries) {
			onSelect(mlv.summaries[index])
		}
	})
	return mlv
}

// SetSummaries replaces the items, keeping the cursor where it was. It does
// nothing when the summaries are unchanged.
func (mlv *MailListView) SetSummaries(summaries []mailapi.Summary) {
	if slices.Equal(mlv.summaries, summaries) && mlv.List.GetItemCount() == len(summaries) {
		return
	}
	mlv.summaries = summaries

	current := mlv.List.GetCurrentItem()
	mlv.List.Clear()
	now := mlv.now()
	for _, s := range summaries {
		mainText, secondaryText := listItemText(s, now)
		mlv.List.AddItem(mainText, secondaryText, 0, nil)
	}
	if n := mlv.List.GetItemCount(); n > 0 {
		mlv.List.SetCurrentItem(min(max(current, 0), n-1))
	}
}

func listItemText(s mailapi.Summary, now time.Time) (mainText, secondaryText string) {
	subject := s.Subject
	if subject == "" {
		subject = "(No Subject)"
	}
	from := shortSender(s.From)
	if from == "" {
		from = "(Unknown Sender)"
	}
	mainText = tview.Escape(truncate(subject, 60))
	secondaryText = fmt.Sprintf("[::d]from: %s · %s", tview.Escape(truncate(from, 30)), tview.Escape(formatMailDate(s.Date, now)))
	return mainText, secondaryText
}

// MailOverlay shows the displayed mail above the list.
type MailOverlay struct {
	*tview.Flex
	frame       *tview.Frame
	textView    *tview.TextView
	closeButton *tview.Button
	shown       mailview.DisplayedMail
}

func NewMailOverlay(onClose func()) *MailOverlay {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	textView.SetBackgroundColor(tcell.ColorDefault)

	frame := tview.NewFrame(textView)
	frame.SetBorder(true).SetBackgroundColor(tcell.ColorDefault)

	closeButton := tview.NewButton("Close").SetSelectedFunc(onClose)

	box := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(frame, 0, 1, true).
		AddItem(closeButton, 1, 0, false)

	root := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(box, 0, 8, true).
			AddItem(nil, 0, 1, false), 0, 8, true).
		AddItem(nil, 0, 1, false)

	// A click outside the box dismisses the overlay.
	root.SetMouseCapture(func(action tview.MouseAction, event *tcell.EventMouse) (tview.MouseAction, *tcell.EventMouse) {
		if action == tview.MouseLeftClick {
			if x, y := event.Position(); !box.InRect(x, y) {
				onClose()
				return action, nil
			}
		}
		return action, event
	})

	return &MailOverlay{
		Flex:        root,
		frame:       frame,
		textView:    textView,
		closeButton: closeButton,
	}
}

// SetSnapshot shows the displayed mail and load status of snap.
func (o *MailOverlay) SetSnapshot(snap mailview.Snapshot) {
	shown := snap.Shown()
	subject := shown.Subject
	if subject == "" && shown.ID != "" {
		subject = "(No Subject)"
	}
	o.frame.Clear().
		AddText(truncate(subject, 70), true, tview.AlignCenter, tcell.ColorYellow).
		AddText("Esc or Close to go back", false, tview.AlignCenter, tcell.ColorDimGray)

	o.textView.SetText(overlayText(snap))
	if shown.ID != o.shown.ID {
		o.textView.ScrollToBeginning()
	}
	o.shown = shown
}

func overlayText(snap mailview.Snapshot) string {
	mail := snap.Shown()
	var b strings.Builder
	fmt.Fprintf(&b, "[::b]From:[::-] %s\n", tview.Escape(mail.From))
	fmt.Fprintf(&b, "[::b]To:[::-]   %s\n", tview.Escape(mail.To))
	fmt.Fprintf(&b, "[::b]Date:[::-] %s\n", tview.Escape(mail.Date))
	b.WriteString(strings.Repeat(BoxHorizontal, 60) + "\n")
	switch {
	case snap.DetailErr != nil:
		fmt.Fprintf(&b, "[red]Could not load mail: %s[-]\n", tview.Escape(snap.DetailErr.Error()))
	case snap.Loading:
		b.WriteString("[::d]Loading...[::-]\n")
	}
	b.WriteString("\n")
	b.WriteString(tview.TranslateANSI(tview.Escape(RenderContent(mail, 0))))
	return b.String()
}
