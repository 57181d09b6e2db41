package tmux

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Multiplexer for tests that does not require a
// running tmux server. Sessions, windows and panes are registered directly
// rather than discovered, and SendKeys/display-message probes are recorded
// for assertions.
type Fake struct {
	mu sync.Mutex

	sessions map[string]Session           // name -> session
	windows  map[string][]Window          // session id -> windows
	panes    map[string][]Pane            // window id -> panes
	content  map[string]string            // pane id -> captured content
	dead     map[string]bool              // pane id -> probe should fail
	sent     []SentKeys
	executed [][]string
	nextID   int
}

// SentKeys records a single SendKeys call observed by the fake.
type SentKeys struct {
	PaneID string
	Keys   string
}

// NewFake returns an empty Fake multiplexer.
func NewFake() *Fake {
	return &Fake{
		sessions: map[string]Session{},
		windows:  map[string][]Window{},
		panes:    map[string][]Pane{},
		content:  map[string]string{},
		dead:     map[string]bool{},
	}
}

// AddSession registers a session under name.
func (f *Fake) AddSession(name, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[name] = Session{ID: id}
}

// AddWindow registers a window within a session.
func (f *Fake) AddWindow(sessionID string, w Window) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows[sessionID] = append(f.windows[sessionID], w)
}

// AddPane registers a pane within a window.
func (f *Fake) AddPane(windowID string, p Pane) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panes[windowID] = append(f.panes[windowID], p)
}

// SetContent sets the scrollback content a subsequent CapturePaneContent
// call returns for paneID.
func (f *Fake) SetContent(paneID, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content[paneID] = content
}

// Kill marks paneID as dead: ExecuteTmux probes against it return an error.
func (f *Fake) Kill(paneID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dead[paneID] = true
}

// SentKeys returns every SendKeys call observed so far, in order.
func (f *Fake) SentKeys() []SentKeys {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentKeys, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *Fake) FindSessionByName(_ context.Context, name string) (Session, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[name]
	return s, ok, nil
}

func (f *Fake) ListWindows(_ context.Context, sessionID string) ([]Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Window{}, f.windows[sessionID]...), nil
}

func (f *Fake) ListPanes(_ context.Context, windowID string) ([]Pane, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Pane{}, f.panes[windowID]...), nil
}

func (f *Fake) CapturePaneContent(_ context.Context, paneID string, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.content[paneID], nil
}

func (f *Fake) ExecuteTmux(_ context.Context, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, append([]string{}, args...))

	if len(args) >= 3 && args[0] == "display-message" {
		paneID := args[2]
		if f.dead[paneID] {
			return "", fmt.Errorf("no such pane %s", paneID)
		}
		return paneID, nil
	}

	if len(args) > 0 && args[0] == "new-window" {
		var sessionName, windowName string
		for i := 0; i < len(args)-1; i++ {
			switch args[i] {
			case "-t":
				sessionName = args[i+1]
			case "-n":
				windowName = args[i+1]
			}
		}
		session, ok := f.sessions[sessionName]
		if !ok {
			return "", fmt.Errorf("no such session %s", sessionName)
		}
		f.nextID++
		windowID := fmt.Sprintf("@%d", f.nextID)
		f.nextID++
		paneID := fmt.Sprintf("%%%d", f.nextID)
		f.windows[session.ID] = append(f.windows[session.ID], Window{ID: windowID, Name: windowName, Active: true})
		f.panes[windowID] = append(f.panes[windowID], Pane{ID: paneID, Active: true})
		return "", nil
	}

	return "", nil
}

// ExecutedCommands returns every ExecuteTmux argument list observed so far,
// in order.
func (f *Fake) ExecutedCommands() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.executed))
	copy(out, f.executed)
	return out
}

func (f *Fake) SendKeys(_ context.Context, paneID string, keys string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dead[paneID] {
		return fmt.Errorf("no such pane %s", paneID)
	}
	f.sent = append(f.sent, SentKeys{PaneID: paneID, Keys: keys})
	return nil
}

var _ Multiplexer = (*Fake)(nil)
