// Package tmux defines the Multiplexer capability contract the harness
// needs from a terminal multiplexer, plus a real tmux-backed driver and an
// in-memory fake for tests. The multiplexer's own control-mode protocol is
// out of scope (spec §1 non-goals) — only the handful of operations the
// harness's policy delivery, resolver and mailbox flush need are modeled.
package tmux

import "context"

// Session is a multiplexer session.
type Session struct {
	ID string
}

// Window is a window within a session.
type Window struct {
	ID     string
	Name   string
	Active bool
}

// Pane is a pane within a window.
type Pane struct {
	ID     string
	Active bool
}

// Multiplexer is the set of capabilities the harness's core requires from
// an external terminal multiplexer (spec §6).
type Multiplexer interface {
	// FindSessionByName returns the session with the given name, or
	// ok=false if none exists.
	FindSessionByName(ctx context.Context, name string) (Session, bool, error)

	// ListWindows returns the windows belonging to a session.
	ListWindows(ctx context.Context, sessionID string) ([]Window, error)

	// ListPanes returns the panes belonging to a window.
	ListPanes(ctx context.Context, windowID string) ([]Pane, error)

	// CapturePaneContent returns up to lines of a pane's scrollback.
	CapturePaneContent(ctx context.Context, paneID string, lines int) (string, error)

	// ExecuteTmux is an escape hatch for raw control commands; the core
	// uses it only for display-message liveness probes.
	ExecuteTmux(ctx context.Context, args ...string) (string, error)

	// SendKeys sends literal keystrokes to a pane, used by approval
	// delivery and mailbox flush.
	SendKeys(ctx context.Context, paneID string, keys string) error
}

// ActivePreferred returns the active window/pane from a list, or the first
// element if none is flagged active (spec §4.2 "active-pane rule").
func ActivePreferred[T interface{ IsActive() bool }](items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	for _, item := range items {
		if item.IsActive() {
			return item, true
		}
	}
	return items[0], true
}

// IsActive implements the ActivePreferred constraint for Window.
func (w Window) IsActive() bool { return w.Active }

// IsActive implements the ActivePreferred constraint for Pane.
func (p Pane) IsActive() bool { return p.Active }
