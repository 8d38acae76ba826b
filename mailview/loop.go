package mailview

import "context"

// Poster schedules a state update on the UI event loop. Implementations
// must run posted functions one at a time, in posting order, on the
// goroutine that owns the Session.
type Poster interface {
	Post(fn func())
}

// PosterFunc adapts a function to Poster.
type PosterFunc func(fn func())

func (f PosterFunc) Post(fn func()) { f(fn) }

// Loop is a minimal event loop for sessions that are not driven by a
// terminal UI, such as the headless commands.
type Loop struct {
	updates chan func()
	done    chan struct{}
}

// NewLoop creates a loop with room for a few pending updates.
func NewLoop() *Loop {
	return &Loop{
		updates: make(chan func(), 16),
		done:    make(chan struct{}),
	}
}

// Post queues fn. Updates posted after Run has returned are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case l.updates <- fn:
	case <-l.done:
	}
}

// Run executes posted updates until ctx is done. Anything that touches the
// session must happen inside a posted function once Run has started.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.updates:
			fn()
		}
	}
}
