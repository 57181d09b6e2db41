package worker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kestrelrun/genie/internal/log"
	"github.com/kestrelrun/genie/internal/tmux"
)

// ResolvedTarget is the outcome of resolving a user-visible identifier to a
// live multiplexer pane handle.
type ResolvedTarget struct {
	PaneID      string `json:"paneId"`
	WorkerID    string `json:"workerId,omitempty"`  // empty when resolved via a raw pane/window/session handle
	Session     string `json:"session,omitempty"`   // optional; the owning tmux session name, when known
	PaneIndex   int    `json:"paneIndex,omitempty"` // optional; sub-pane index requested via "<id>:<n>", 0 for the primary pane
	ResolvedVia string `json:"resolvedVia"`         // one of: "raw", "worker", "session:window", "session"
}

// DeadPaneCleanup is invoked when the resolver discovers that a worker's
// recorded pane handle no longer corresponds to a live pane. Implementations
// typically unregister the worker or mark it errored.
type DeadPaneCleanup func(ctx context.Context, workerID string, paneIndex int) error

// Resolver turns worker ids, pane ids, window ids and session:window pairs
// into live pane handles, consulting the registry and the multiplexer in
// the order described by spec §4.2.
type Resolver struct {
	registry *Registry
	mux      tmux.Multiplexer
	cleanup  DeadPaneCleanup
	probe    bool // whether to liveness-probe resolved panes (disabled in tests that use a Fake without dead-pane wiring)
}

// NewResolver returns a Resolver. cleanup may be nil, in which case dead
// panes are reported but not cleaned up.
func NewResolver(registry *Registry, mux tmux.Multiplexer, cleanup DeadPaneCleanup) *Resolver {
	return &Resolver{registry: registry, mux: mux, cleanup: cleanup, probe: true}
}

// WithLivenessProbe toggles the liveness probe performed on a worker-derived
// pane before it is returned, returning the Resolver for chaining.
func (r *Resolver) WithLivenessProbe(enabled bool) *Resolver {
	r.probe = enabled
	return r
}

// Resolve resolves target using the 5-level chain:
//
//  1. raw pane id (^%\d+$) — returned as-is, no registry lookup.
//  1.5. raw window id (^@\d+$) — the registered worker whose WindowID
//     matches, returning its primary pane; error if no worker matches.
//  2a. "<id>:<n>" — if <id> names a registered worker, pane index n;
//     otherwise falls through to session:window (<session>:<window name>).
//  2b. fallthrough from 2a — <session>:<window-name> via the multiplexer.
//  3. bare worker id — the worker's primary pane, liveness-probed with
//     dead-pane cleanup.
//  4. bare session name — the session's active-preferred window's
//     active-preferred pane.
func (r *Resolver) Resolve(ctx context.Context, target string) (ResolvedTarget, error) {
	if IsValidPaneID(target) {
		return ResolvedTarget{PaneID: target, ResolvedVia: "raw"}, nil
	}

	if IsValidWindowID(target) {
		w, ok := r.registry.FindByWindow(target)
		if !ok {
			return ResolvedTarget{}, fmt.Errorf("no worker with window %s: %w", target, ErrNoMatch)
		}
		return r.resolveWorkerIndex(ctx, w, 0)
	}

	if idx := strings.LastIndex(target, ":"); idx >= 0 {
		left, right := target[:idx], target[idx+1:]
		if w, ok := r.registry.Get(left); ok {
			n, err := strconv.Atoi(right)
			if err != nil {
				return ResolvedTarget{}, fmt.Errorf("invalid pane index %q in target %q", right, target)
			}
			return r.resolveWorkerIndex(ctx, w, n)
		}
		// Fall through: <session>:<window-name>.
		pane, err := r.resolveSessionWindow(ctx, left, right)
		if err != nil {
			return ResolvedTarget{}, err
		}
		return ResolvedTarget{PaneID: pane, Session: left, ResolvedVia: "session:window"}, nil
	}

	if w, ok := r.registry.Get(target); ok {
		return r.resolveWorkerIndex(ctx, w, 0)
	}

	pane, err := r.resolveSessionActive(ctx, target)
	if err != nil {
		return ResolvedTarget{}, err
	}
	return ResolvedTarget{PaneID: pane, Session: target, ResolvedVia: "session"}, nil
}

func (r *Resolver) resolveWorkerIndex(ctx context.Context, w Worker, index int) (ResolvedTarget, error) {
	pane, ok := w.Pane(index)
	if !ok {
		return ResolvedTarget{}, fmt.Errorf("worker %s has no pane at index %d", w.ID, index)
	}

	if r.probe && !tmux.Probe(ctx, r.mux, pane) {
		log.Warn(log.CatRegistry, "resolved pane is dead", "worker", w.ID, "pane", pane, "index", index)
		if r.cleanup != nil {
			if err := r.cleanup(ctx, w.ID, index); err != nil {
				log.ErrorErr(log.CatRegistry, "dead-pane cleanup failed", err, "worker", w.ID)
			}
		}
		return ResolvedTarget{}, fmt.Errorf("worker %s pane %s: %w", w.ID, pane, ErrPaneDead)
	}

	return ResolvedTarget{PaneID: pane, WorkerID: w.ID, Session: w.SessionName, PaneIndex: index, ResolvedVia: "worker"}, nil
}

func (r *Resolver) resolveWindowPanes(ctx context.Context, windowID string) (string, error) {
	panes, err := r.mux.ListPanes(ctx, windowID)
	if err != nil {
		return "", fmt.Errorf("listing panes for window %s: %w", windowID, err)
	}
	pane, ok := tmux.ActivePreferred(panes)
	if !ok {
		return "", fmt.Errorf("window %s has no panes", windowID)
	}
	return pane.ID, nil
}

func (r *Resolver) resolveSessionWindow(ctx context.Context, sessionName, windowName string) (string, error) {
	session, ok, err := r.mux.FindSessionByName(ctx, sessionName)
	if err != nil {
		return "", fmt.Errorf("finding session %s: %w", sessionName, err)
	}
	if !ok {
		return "", fmt.Errorf("no session named %q", sessionName)
	}
	windows, err := r.mux.ListWindows(ctx, session.ID)
	if err != nil {
		return "", fmt.Errorf("listing windows for session %s: %w", sessionName, err)
	}
	for _, w := range windows {
		if w.Name == windowName {
			return r.resolveWindowPanes(ctx, w.ID)
		}
	}
	return "", fmt.Errorf("no window named %q in session %q", windowName, sessionName)
}

func (r *Resolver) resolveSessionActive(ctx context.Context, sessionName string) (string, error) {
	session, ok, err := r.mux.FindSessionByName(ctx, sessionName)
	if err != nil {
		return "", fmt.Errorf("finding session %s: %w", sessionName, err)
	}
	if !ok {
		return "", fmt.Errorf("%q: %w", sessionName, ErrNoMatch)
	}
	windows, err := r.mux.ListWindows(ctx, session.ID)
	if err != nil {
		return "", fmt.Errorf("listing windows for session %s: %w", sessionName, err)
	}
	window, ok := tmux.ActivePreferred(windows)
	if !ok {
		return "", fmt.Errorf("session %q has no windows", sessionName)
	}
	return r.resolveWindowPanes(ctx, window.ID)
}
