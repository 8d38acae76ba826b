package tui

// postedMsg carries a session completion onto the bubbletea loop.
type postedMsg struct{ fn func() }

// loadIndexMsg asks the model to start the one index load of its session.
type loadIndexMsg struct{}

// updatesClosedMsg signals that the poster has shut down.
type updatesClosedMsg struct{}

// Message to clear a temporary status message after a timeout.
type clearTempStatusMsg struct{ seq int }
