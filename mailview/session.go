// Package mailview holds the state behind the mail list and the detail
// overlay: the mail index, the currently displayed mail and whether the
// overlay is open. A Session is owned by one UI event loop; network work
// runs on background goroutines and is posted back to that loop.
package mailview

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bassamadnan/xmail/mailapi"
)

// Fetcher is the remote side of a session.
type Fetcher interface {
	ListMail(ctx context.Context) ([]mailapi.Summary, error)
	FetchContent(ctx context.Context, id mailapi.MailID) (*mailapi.Content, error)
}

// DisplayedMail is the single slot shown in the overlay. The header phase
// and the body phase of a load write disjoint fields.
type DisplayedMail struct {
	ID      mailapi.MailID
	Subject string
	From    string
	To      string
	Date    string
	Content string
	IsHTML  bool
}

// Snapshot is a read-only view of a session handed to renderers.
type Snapshot struct {
	Index        Index
	IndexLoaded  bool
	IndexLoading bool
	IndexErr     error

	Mail DisplayedMail
	Open bool

	// Loading is set from selection until the body has been merged or the
	// load failed.
	Loading bool
	// Pending is the summary of the selection currently in flight or last
	// completed.
	Pending   mailapi.Summary
	DetailErr error
}

// Shown is what the overlay draws. Until the header phase of the current
// selection lands, Mail still belongs to an earlier selection, so the
// selected summary's headers are shown with an empty content cell instead.
func (s Snapshot) Shown() DisplayedMail {
	if s.Pending.ID == "" || s.Mail.ID == s.Pending.ID {
		return s.Mail
	}
	return DisplayedMail{
		ID:      s.Pending.ID,
		Subject: s.Pending.Subject,
		From:    s.Pending.From,
		To:      string(s.Pending.To),
		Date:    s.Pending.Date,
	}
}

// Session is the per-view state container.
type Session struct {
	fetcher Fetcher
	poster  Poster
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	indexStarted bool
	indexLoading bool
	indexLoaded  bool
	indexErr     error
	index        Index

	mail      DisplayedMail
	open      bool
	loading   bool
	pending   mailapi.Summary
	detailErr error

	// selection counts selections; completions carrying an older value
	// belong to a superseded load and are dropped.
	selection    uint64
	cancelDetail context.CancelFunc

	observers  []observer
	nextHandle int
}

type observer struct {
	handle int
	fn     func(Snapshot)
}

// NewSession creates an empty session. All methods except Stop must be
// called on the loop that poster feeds.
func NewSession(fetcher Fetcher, poster Poster, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		fetcher: fetcher,
		poster:  poster,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		index:   NewIndex(nil),
	}
}

// Subscribe registers fn to be called with a fresh snapshot after every
// state change. The returned function removes it.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.nextHandle++
	handle := s.nextHandle
	s.observers = append(s.observers, observer{handle: handle, fn: fn})
	return func() {
		for i, o := range s.observers {
			if o.handle == handle {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Index:        s.index,
		IndexLoaded:  s.indexLoaded,
		IndexLoading: s.indexLoading,
		IndexErr:     s.indexErr,
		Mail:         s.mail,
		Open:         s.open,
		Loading:      s.loading,
		Pending:      s.pending,
		DetailErr:    s.detailErr,
	}
}

func (s *Session) notify() {
	if len(s.observers) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, o := range s.observers {
		o.fn(snap)
	}
}

// LoadIndex fetches the mail index. Only the first call in a session's
// lifetime does anything.
func (s *Session) LoadIndex() {
	if s.indexStarted {
		return
	}
	s.indexStarted = true
	s.fetchIndex()
}

// Refresh re-fetches the index on explicit user request. It is a no-op
// while a fetch is already in flight.
func (s *Session) Refresh() {
	if s.indexLoading {
		return
	}
	s.indexStarted = true
	s.fetchIndex()
}

func (s *Session) fetchIndex() {
	s.indexLoading = true
	s.notify()

	go func() {
		summaries, err := s.fetcher.ListMail(s.ctx)
		s.poster.Post(func() {
			s.indexLoading = false
			if err != nil {
				// The previous index stays visible.
				if !errors.Is(err, context.Canceled) {
					s.logger.Error("loading mail index", "error", err)
				}
				s.indexErr = err
				s.notify()
				return
			}
			s.index = NewIndex(summaries)
			s.indexLoaded = true
			s.indexErr = nil
			s.logger.Info("mail index loaded", "mails", s.index.Len())
			s.notify()
		})
	}()
}

// Select looks id up in the index and selects it. It reports false when
// the index has no such ID.
func (s *Session) Select(id mailapi.MailID) bool {
	summary, ok := s.index.Get(id)
	if !ok {
		s.logger.Warn("selecting unknown mail", "id", id)
		return false
	}
	s.SelectSummary(summary)
	return true
}

// SelectSummary opens the overlay immediately and starts loading the
// content of summary. A load still in flight for an earlier selection is
// cancelled and its results are ignored.
func (s *Session) SelectSummary(summary mailapi.Summary) {
	if s.cancelDetail != nil {
		s.cancelDetail()
	}
	s.selection++
	gen := s.selection
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelDetail = cancel

	s.open = true
	s.loading = true
	s.pending = summary
	s.detailErr = nil
	s.notify()

	go s.loadDetail(ctx, gen, summary)
}

func (s *Session) loadDetail(ctx context.Context, gen uint64, summary mailapi.Summary) {
	content, err := s.fetcher.FetchContent(ctx, summary.ID)
	if err != nil {
		s.poster.Post(func() { s.failDetail(gen, summary, err) })
		return
	}

	isHTML := content.IsHTML()
	s.poster.Post(func() {
		if gen != s.selection {
			return
		}
		s.mail = DisplayedMail{
			ID:      summary.ID,
			Subject: summary.Subject,
			From:    summary.From,
			To:      string(summary.To),
			Date:    summary.Date,
			IsHTML:  isHTML,
		}
		s.notify()
	})

	if ctx.Err() != nil {
		_ = content.Close()
		return
	}
	text, err := content.ReadText()
	s.poster.Post(func() {
		if err != nil {
			s.failDetail(gen, summary, err)
			return
		}
		if gen != s.selection {
			return
		}
		// Only the body is merged; header fields stay as written above.
		s.mail.Content = text
		s.loading = false
		s.notify()
	})
}

func (s *Session) failDetail(gen uint64, summary mailapi.Summary, err error) {
	if gen != s.selection {
		return
	}
	s.loading = false
	if errors.Is(err, context.Canceled) {
		s.notify()
		return
	}
	s.logger.Error("loading mail content", "id", summary.ID, "error", err)
	s.detailErr = err
	s.notify()
}

// Close hides the overlay. The displayed mail is kept on purpose: it stays
// in the slot until the next selection overwrites it.
func (s *Session) Close() {
	if !s.open {
		return
	}
	s.open = false
	s.notify()
}

// Stop cancels every in-flight request. It may be called from any goroutine.
func (s *Session) Stop() {
	s.cancel()
}
