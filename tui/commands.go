package tui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// channelPoster hands session completions to the bubbletea loop. Posts
// after Shutdown are dropped.
type channelPoster struct {
	updates  chan func()
	done     chan struct{}
	stopOnce sync.Once
}

func newChannelPoster() *channelPoster {
	return &channelPoster{
		updates: make(chan func(), 16),
		done:    make(chan struct{}),
	}
}

func (p *channelPoster) Post(fn func()) {
	select {
	case p.updates <- fn:
	case <-p.done:
	}
}

func (p *channelPoster) stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

// waitForUpdateCmd delivers the next posted completion as a postedMsg. The
// model re-queues it after every delivery.
func waitForUpdateCmd(p *channelPoster) tea.Cmd {
	return func() tea.Msg {
		select {
		case fn := <-p.updates:
			return postedMsg{fn: fn}
		case <-p.done:
			return updatesClosedMsg{}
		}
	}
}

func loadIndexCmd() tea.Msg { return loadIndexMsg{} }

func clearTempStatusCmd(seq int, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return clearTempStatusMsg{seq: seq}
	})
}
