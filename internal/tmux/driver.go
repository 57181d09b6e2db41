package tmux

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kestrelrun/genie/internal/log"
)

// probeTimeout bounds how long a liveness probe (display-message) is
// allowed to run before it is treated as a dead pane (spec §5).
const probeTimeout = 2 * time.Second

// Driver is the real Multiplexer backed by the tmux CLI via os/exec.
type Driver struct {
	// tmuxPath is the tmux executable to invoke. Defaults to "tmux".
	tmuxPath string
}

// NewDriver returns a Driver that shells out to tmuxPath (or "tmux" if
// empty).
func NewDriver(tmuxPath string) *Driver {
	if tmuxPath == "" {
		tmuxPath = "tmux"
	}
	return &Driver{tmuxPath: tmuxPath}
}

func (d *Driver) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, d.tmuxPath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Debug(log.CatTmux, "tmux command failed", "args", strings.Join(args, " "), "stderr", stderr.String())
		return "", fmt.Errorf("tmux %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return out.String(), nil
}

// FindSessionByName implements Multiplexer.
func (d *Driver) FindSessionByName(ctx context.Context, name string) (Session, bool, error) {
	out, err := d.run(ctx, "list-sessions", "-F", "#{session_name}:#{session_id}")
	if err != nil {
		// tmux returns non-zero when the server has no sessions at all.
		return Session{}, false, nil
	}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if parts[0] == name {
			return Session{ID: parts[1]}, true, nil
		}
	}
	return Session{}, false, nil
}

// ListWindows implements Multiplexer.
func (d *Driver) ListWindows(ctx context.Context, sessionID string) ([]Window, error) {
	out, err := d.run(ctx, "list-windows", "-t", sessionID,
		"-F", "#{window_id}\t#{window_name}\t#{window_active}")
	if err != nil {
		return nil, err
	}
	return parseWindows(out), nil
}

func parseWindows(out string) []Window {
	var windows []Window
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			continue
		}
		windows = append(windows, Window{
			ID:     fields[0],
			Name:   fields[1],
			Active: fields[2] == "1",
		})
	}
	return windows
}

// ListPanes implements Multiplexer.
func (d *Driver) ListPanes(ctx context.Context, windowID string) ([]Pane, error) {
	out, err := d.run(ctx, "list-panes", "-t", windowID, "-F", "#{pane_id}\t#{pane_active}")
	if err != nil {
		return nil, err
	}
	return parsePanes(out), nil
}

func parsePanes(out string) []Pane {
	var panes []Pane
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) != 2 {
			continue
		}
		panes = append(panes, Pane{ID: fields[0], Active: fields[1] == "1"})
	}
	return panes
}

// CapturePaneContent implements Multiplexer.
func (d *Driver) CapturePaneContent(ctx context.Context, paneID string, lines int) (string, error) {
	start := "-"
	if lines > 0 {
		start = "-" + strconv.Itoa(lines)
	}
	return d.run(ctx, "capture-pane", "-t", paneID, "-p", "-S", start)
}

// ExecuteTmux implements Multiplexer. Used for the resolver's
// display-message liveness probes and for spawn.Launcher's new-window;
// every call is bounded by probeTimeout.
func (d *Driver) ExecuteTmux(ctx context.Context, args ...string) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return d.run(probeCtx, args...)
}

// SendKeys implements Multiplexer. paneID must already have been validated
// by the caller (policy engine / mailbox) against ^%\d+$ — this function
// does not re-validate, since it is also used by trusted internal callers
// against window/session targets.
func (d *Driver) SendKeys(ctx context.Context, paneID string, keys string) error {
	_, err := d.run(ctx, "send-keys", "-t", paneID, keys, "Enter")
	return err
}

// Probe checks whether paneID is alive via a display-message round-trip.
// Returns false on any error, including timeout.
func Probe(ctx context.Context, mux Multiplexer, paneID string) bool {
	_, err := mux.ExecuteTmux(ctx, "display-message", "-t", paneID, "-p", "#{pane_id}")
	return err == nil
}

var _ Multiplexer = (*Driver)(nil)
