package tui

import (
	"fmt"
	"log/slog"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/bassamadnan/xmail/mailview"
)

// App is the tview client. Like Model it drives a mailview.Session, posting
// completions through QueueUpdateDraw.
type App struct {
	*tview.Application
	session   *mailview.Session
	source    string
	logger    *slog.Logger
	rootPages *tview.Pages
	mailList  *MailListView
	overlay   *MailOverlay
	statusBar *tview.TextView

	overlayShown bool
}

type drawPoster struct{ app *tview.Application }

func (p drawPoster) Post(fn func()) { p.app.QueueUpdateDraw(fn) }

func NewApp(fetcher mailview.Fetcher, source string, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Application: tview.NewApplication(),
		source:      source,
		logger:      logger,
	}
	a.session = mailview.NewSession(fetcher, drawPoster{a.Application}, logger)

	a.mailList = NewMailListView(a.session.SelectSummary)
	a.overlay = NewMailOverlay(a.session.Close)

	a.statusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.statusBar.SetBackgroundColor(tcell.ColorDefault)

	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.mailList.List, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)
	main.SetBackgroundColor(tcell.ColorDefault)

	a.rootPages = tview.NewPages().
		AddPage(PageMailList, main, true, true).
		AddPage(PageOverlay, a.overlay, true, false)

	a.Application.SetRoot(a.rootPages, true).EnableMouse(true)
	a.setGlobalKeybindings()
	a.session.Subscribe(a.render)
	a.render(a.session.Snapshot())
	return a
}

// Run loads the index and blocks until the user quits.
func (a *App) Run() error {
	defer a.session.Stop()
	a.QueueUpdate(a.session.LoadIndex)
	a.SetFocus(a.mailList.List)
	return a.Application.Run()
}

func (a *App) setGlobalKeybindings() {
	a.Application.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			a.Stop()
			return nil
		}
		if a.overlayShown {
			if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
				a.session.Close()
				return nil
			}
			return event
		}
		switch event.Rune() {
		case 'q':
			a.Stop()
			return nil
		case 'r':
			a.session.Refresh()
			return nil
		case 'j':
			return tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone)
		case 'k':
			return tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)
		}
		return event
	})
}

// render is the session observer. It runs on the tview loop.
func (a *App) render(snap mailview.Snapshot) {
	a.mailList.SetSummaries(snap.Index.Summaries())
	a.statusBar.SetText(statusText(snap, a.source))

	if snap.Open {
		a.overlay.SetSnapshot(snap)
	}
	if snap.Open == a.overlayShown {
		return
	}
	a.overlayShown = snap.Open
	if snap.Open {
		a.rootPages.ShowPage(PageOverlay)
		a.SetFocus(a.overlay.textView)
	} else {
		a.rootPages.HidePage(PageOverlay)
		a.SetFocus(a.mailList.List)
	}
}

func statusText(snap mailview.Snapshot, source string) string {
	hints := "[::b]↑↓/jk[::-]:Nav [::b]Enter[::-]:Open [::b]r[::-]:Refresh [::b]q[::-]:Quit"
	if snap.Open {
		hints = "[::b]Esc[::-]:Close [::b]Ctrl+C[::-]:Quit"
	}
	switch {
	case snap.IndexErr != nil:
		return fmt.Sprintf(" [red]Could not load mail: %s[-] | %s", tview.Escape(snap.IndexErr.Error()), hints)
	case snap.IndexLoading:
		return fmt.Sprintf(" [::d]Loading %s...[::-] | %s", tview.Escape(source), hints)
	}
	return fmt.Sprintf(" [::d]%s | %d mails[::-] | %s", tview.Escape(source), snap.Index.Len(), hints)
}
