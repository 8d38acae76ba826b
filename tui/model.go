package tui

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bassamadnan/xmail/mailview"
)

const (
	mailListItemHeight = 4
	statusBarHeight    = 1
	tempStatusDuration = 3 * time.Second

	// overlayChromeLines are the overlay lines around the content viewport:
	// title, From, To, Date, separator, load status and the hint line.
	overlayChromeLines = 7
	minOverlayWidth    = 30
	minOverlayHeight   = 12
)

// Model is the bubbletea client. All session calls happen inside Update,
// which bubbletea runs on its event loop.
type Model struct {
	session *mailview.Session
	poster  *channelPoster
	keys    KeyMap
	source  string
	now     func() time.Time

	snap mailview.Snapshot

	selectedIdx     int
	viewportTopLine int
	refreshing      bool

	spinner       spinner.Model
	viewport      viewport.Model
	rendered      mailview.DisplayedMail
	renderedWidth int

	width, height int
	tempStatus    string
	tempSeq       int
}

// NewModel creates a client reading from fetcher. source names the mail
// service in the title and status bar.
func NewModel(fetcher mailview.Fetcher, source string, logger *slog.Logger) Model {
	poster := newChannelPoster()
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		session:  mailview.NewSession(fetcher, poster, logger),
		poster:   poster,
		keys:     DefaultKeyMap(),
		source:   source,
		now:      time.Now,
		spinner:  sp,
		viewport: viewport.New(0, 0),
	}
	m.snap = m.session.Snapshot()
	return m
}

// Shutdown cancels in-flight requests and releases the poster. Call it once
// the program has exited.
func (m Model) Shutdown() {
	m.session.Stop()
	m.poster.stop()
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForUpdateCmd(m.poster),
		loadIndexCmd,
		m.spinner.Tick,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case loadIndexMsg:
		m.session.LoadIndex()

	case postedMsg:
		msg.fn()
		cmds = append(cmds, waitForUpdateCmd(m.poster))

	case updatesClosedMsg:

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case clearTempStatusMsg:
		if msg.seq == m.tempSeq {
			m.tempStatus = ""
		}

	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case tea.MouseMsg:
		if cmd := m.handleMouse(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	if cmd := m.sync(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		return tea.Quit
	}

	if m.snap.Open {
		if key.Matches(msg, m.keys.Close) {
			m.session.Close()
			return nil
		}
		// j/k, arrows and paging scroll the content.
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, m.keys.Close):
		if msg.String() == "q" {
			return tea.Quit
		}
	case key.Matches(msg, m.keys.Up):
		if m.selectedIdx > 0 {
			m.selectedIdx--
			m.ensureSelectedVisible()
		}
	case key.Matches(msg, m.keys.Down):
		if m.selectedIdx < m.snap.Index.Len()-1 {
			m.selectedIdx++
			m.ensureSelectedVisible()
		}
	case key.Matches(msg, m.keys.Select):
		m.openSelected()
	case key.Matches(msg, m.keys.Refresh):
		m.refreshing = true
		m.session.Refresh()
	}
	return nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if m.snap.Open {
		if msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress {
			x, y, w, h := m.overlayBounds()
			outside := msg.X < x || msg.X >= x+w || msg.Y < y || msg.Y >= y+h
			// The hint line at the bottom of the box is the close button.
			onClose := !outside && msg.Y == y+h-2
			if outside || onClose {
				m.session.Close()
				return nil
			}
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if m.selectedIdx > 0 {
			m.selectedIdx--
			m.ensureSelectedVisible()
		}
	case tea.MouseButtonWheelDown:
		if m.selectedIdx < m.snap.Index.Len()-1 {
			m.selectedIdx++
			m.ensureSelectedVisible()
		}
	case tea.MouseButtonLeft:
		if msg.Action != tea.MouseActionPress {
			return nil
		}
		row := msg.Y - m.listHeaderHeight()
		if row < 0 {
			return nil
		}
		idx := m.viewportTopLine + row/mailListItemHeight
		if idx < m.snap.Index.Len() && row/mailListItemHeight < m.numItemsThatFit() {
			m.selectedIdx = idx
			m.openSelected()
		}
	}
	return nil
}

func (m *Model) openSelected() {
	if m.selectedIdx < 0 || m.selectedIdx >= m.snap.Index.Len() {
		return
	}
	m.session.SelectSummary(m.snap.Index.At(m.selectedIdx))
}

// sync pulls the session state into the model after every message.
func (m *Model) sync() tea.Cmd {
	m.snap = m.session.Snapshot()

	if n := m.snap.Index.Len(); m.selectedIdx >= n {
		m.selectedIdx = max(n-1, 0)
	}
	m.ensureSelectedVisible()

	var cmd tea.Cmd
	if m.refreshing && !m.snap.IndexLoading {
		m.refreshing = false
		if m.snap.IndexErr == nil {
			cmd = m.showTemporaryStatus(fmt.Sprintf("Refreshed: %d mails", m.snap.Index.Len()))
		}
	}

	m.layoutViewport()
	return cmd
}

func (m *Model) showTemporaryStatus(text string) tea.Cmd {
	m.tempSeq++
	m.tempStatus = text
	return clearTempStatusCmd(m.tempSeq, tempStatusDuration)
}

// layoutViewport sizes the content viewport to the overlay and re-renders
// the displayed mail when it or the width changed.
func (m *Model) layoutViewport() {
	_, _, w, h := m.overlayBounds()
	innerWidth := max(w-OverlayStyle.GetHorizontalFrameSize(), 1)
	m.viewport.Width = innerWidth
	m.viewport.Height = max(h-OverlayStyle.GetVerticalFrameSize()-overlayChromeLines, 1)

	mail := m.snap.Shown()
	if mail == m.rendered && innerWidth == m.renderedWidth {
		return
	}
	m.viewport.SetContent(RenderContent(mail, innerWidth))
	if mail.ID != m.rendered.ID {
		m.viewport.GotoTop()
	}
	m.rendered = mail
	m.renderedWidth = innerWidth
}

func (m Model) contentHeight() int {
	return max(m.height-statusBarHeight, 0)
}

// overlayBounds returns the position and outer size of the overlay box.
func (m Model) overlayBounds() (x, y, w, h int) {
	ch := m.contentHeight()
	w = m.width * 4 / 5
	if w < minOverlayWidth {
		w = min(m.width, minOverlayWidth)
	}
	h = ch - 2
	if h < minOverlayHeight {
		h = ch
	}
	x = int(math.Round(float64(m.width-w) / 2))
	y = int(math.Round(float64(ch-h) / 2))
	return x, y, w, h
}

func (m Model) listHeaderHeight() int {
	h := lipgloss.Height(MailListTitleStyle.Render(" "))
	if m.snap.IndexErr != nil {
		h++
	}
	return h
}

func (m Model) numItemsThatFit() int {
	return max((m.contentHeight()-m.listHeaderHeight())/mailListItemHeight, 0)
}

func (m *Model) ensureSelectedVisible() {
	n := m.snap.Index.Len()
	if n == 0 {
		m.viewportTopLine = 0
		return
	}
	itemsThatFit := m.numItemsThatFit()
	if itemsThatFit <= 0 {
		m.viewportTopLine = m.selectedIdx
		return
	}
	if m.selectedIdx < m.viewportTopLine {
		m.viewportTopLine = m.selectedIdx
	} else if m.selectedIdx >= m.viewportTopLine+itemsThatFit {
		m.viewportTopLine = m.selectedIdx - itemsThatFit + 1
	}
	m.viewportTopLine = max(min(m.viewportTopLine, n-itemsThatFit), 0)
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing terminal size..."
	}

	var main string
	if m.snap.Open {
		main = lipgloss.Place(m.width, m.contentHeight(), lipgloss.Center, lipgloss.Center, m.renderOverlay())
	} else {
		main = m.renderMailList(m.width, m.contentHeight())
	}
	return AppStyle.Render(lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar()))
}

func (m Model) renderMailList(paneWidth, paneHeight int) string {
	parts := []string{MailListTitleStyle.Render("Mail · " + m.source)}
	if err := m.snap.IndexErr; err != nil {
		parts = append(parts, ErrorBanner.Width(paneWidth).Render(
			truncate("Could not load mail: "+err.Error(), paneWidth-2)))
	}

	n := m.snap.Index.Len()
	switch {
	case n == 0 && m.snap.IndexLoading:
		parts = append(parts, " "+m.spinner.View()+" Loading mail...")
	case n == 0 && m.snap.IndexLoaded:
		parts = append(parts, HintStyle.Render(" No mail."))
	}

	textWidth := max(paneWidth-MailListItemStyle.GetHorizontalPadding()-4, 10)
	end := min(m.viewportTopLine+m.numItemsThatFit(), n)
	now := m.now()
	for i := m.viewportTopLine; i < end; i++ {
		parts = append(parts, formatMailListItem(m.snap.Index.At(i), i == m.selectedIdx, textWidth, now))
	}

	return lipgloss.NewStyle().Width(paneWidth).Height(paneHeight).MaxHeight(paneHeight).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderOverlay() string {
	_, _, w, _ := m.overlayBounds()
	inner := max(w-OverlayStyle.GetHorizontalFrameSize(), 1)
	mail := m.snap.Shown()

	subject := mail.Subject
	if subject == "" && mail.ID != "" {
		subject = "(No Subject)"
	}
	title := TitleStyle.Render(truncate(subject, inner-TitleStyle.GetHorizontalPadding()))

	var status string
	switch {
	case m.snap.DetailErr != nil:
		status = ErrorBanner.Render(truncate("Could not load mail: "+m.snap.DetailErr.Error(), inner-2))
	case m.snap.Loading:
		status = m.spinner.View() + " Loading..."
	}

	hint := HintStyle.Render(truncate("[ Close ]  "+helpLine(m.keys.Close, m.keys.Down, m.keys.Up), inner))

	box := lipgloss.JoinVertical(lipgloss.Left,
		title,
		headerRow("From", mail.From, inner),
		headerRow("To", mail.To, inner),
		headerRow("Date", mail.Date, inner),
		HintStyle.Render(strings.Repeat(BoxHorizontal, inner)),
		status,
		m.viewport.View(),
		hint,
	)
	return OverlayStyle.Width(w - OverlayStyle.GetHorizontalBorderSize()).Render(box)
}

func headerRow(name, value string, width int) string {
	keyCell := HeaderKeyStyle.Render(name + ":")
	return keyCell + " " + HeaderValStyle.Render(truncate(value, width-lipgloss.Width(keyCell)-1))
}

func (m Model) renderStatusBar() string {
	style := StatusBarNormalStyle
	var text string
	switch {
	case m.tempStatus != "":
		style = StatusBarSuccessStyle
		text = m.tempStatus
	case m.snap.IndexErr != nil:
		style = StatusBarErrorStyle
		text = "Error: " + m.snap.IndexErr.Error()
	case m.snap.IndexLoading:
		text = "Loading " + m.source
	default:
		text = fmt.Sprintf("%s | %d mails", m.source, m.snap.Index.Len())
	}

	hints := helpLine(m.keys.Up, m.keys.Down, m.keys.Select, m.keys.Refresh, m.keys.Quit)
	if m.snap.Open {
		hints = helpLine(m.keys.Close, m.keys.Quit)
	}
	return style.Width(m.width).Render(truncate(text+" | "+hints, m.width-style.GetHorizontalPadding()))
}
