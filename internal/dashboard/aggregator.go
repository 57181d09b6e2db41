// Package dashboard implements the event aggregator (C5): folding a stream
// of normalized agent events into per-pane dashboard state, with a
// registry-derived fallback when no event file exists yet for a pane.
package dashboard

import (
	"sync"
	"time"

	"github.com/kestrelrun/genie/internal/events"
	"github.com/kestrelrun/genie/internal/worker"
)

// Status is the coarse-grained status shown on the dashboard for a pane.
type Status string

const (
	StatusRunning Status = "running"
	StatusIdle    Status = "idle"
	StatusWaiting Status = "waiting"
	StatusStopped Status = "stopped"
)

// LastEvent summarizes the most recent event folded into a pane's state.
type LastEvent struct {
	Type      events.Type `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	ToolName  string      `json:"toolName,omitempty"`
	WishID    string      `json:"wishId,omitempty"`
}

// WorkerDashboardState is the aggregator's per-pane derived state. It is
// pure fold output and may be rebuilt from scratch at any time.
type WorkerDashboardState struct {
	PaneID         string     `json:"paneId"`
	Status         Status     `json:"status"`
	LastEvent      *LastEvent `json:"lastEvent,omitempty"`
	EventCount     int        `json:"eventCount"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
	WishID         string     `json:"wishId,omitempty"`
}

// registryStateMap maps a worker's run state to a dashboard Status for
// fallback mode, per spec §4.5.
var registryStateMap = map[worker.RunState]Status{
	worker.StateWorking:    StatusRunning,
	worker.StateSpawning:   StatusRunning,
	worker.StateIdle:       StatusIdle,
	worker.StatePermission: StatusWaiting,
	worker.StateQuestion:   StatusWaiting,
	worker.StateDone:       StatusStopped,
	worker.StateError:      StatusStopped,
}

// Aggregator folds NormalizedEvent records into WorkerDashboardState, one
// per pane. It is purely in-memory except when falling back to the
// registry for a pane it has never observed an event for.
type Aggregator struct {
	mu       sync.Mutex
	states   map[string]*WorkerDashboardState
	registry *worker.Registry
}

// NewAggregator returns an empty Aggregator. registry is consulted only for
// fallback-mode panes that have produced no events yet.
func NewAggregator(registry *worker.Registry) *Aggregator {
	return &Aggregator{states: make(map[string]*WorkerDashboardState), registry: registry}
}

// Fold applies a single event to the aggregator's state. Events missing
// PaneID are ignored.
func (a *Aggregator) Fold(ev events.NormalizedEvent) {
	if ev.PaneID == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.states[ev.PaneID]
	if !ok {
		s = &WorkerDashboardState{PaneID: ev.PaneID}
		a.states[ev.PaneID] = s
	}

	switch ev.Type {
	case events.TypeSessionStart:
		s.Status = StatusRunning
	case events.TypeToolCall:
		s.Status = StatusRunning
	case events.TypePermissionRequest:
		s.Status = StatusWaiting
	case events.TypeSessionEnd:
		s.Status = StatusStopped
	}

	s.EventCount++
	s.LastActivityAt = ev.Timestamp.UTC()
	s.LastEvent = &LastEvent{
		Type:      ev.Type,
		Timestamp: ev.Timestamp.UTC(),
		ToolName:  ev.ToolName,
		WishID:    ev.WishID,
	}
	if ev.WishID != "" {
		s.WishID = ev.WishID
	}
}

// States returns the dashboard state for every pane the aggregator has
// observed an event for. Panes known only to the registry (no events yet)
// are not included here; use StateForPane to get fallback coverage for a
// specific pane.
func (a *Aggregator) States() []WorkerDashboardState {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]WorkerDashboardState, 0, len(a.states))
	for _, s := range a.states {
		out = append(out, *s)
	}
	return out
}

// StateForPane returns the event-derived state for paneID if any event has
// been folded for it; otherwise it falls back to deriving a state from the
// worker registry entry whose PaneID or a sub-pane matches paneID.
func (a *Aggregator) StateForPane(paneID string) (WorkerDashboardState, bool) {
	a.mu.Lock()
	s, ok := a.states[paneID]
	a.mu.Unlock()
	if ok {
		return *s, true
	}

	if a.registry == nil {
		return WorkerDashboardState{}, false
	}
	w, ok := a.registry.FindByPane(paneID)
	if !ok {
		return WorkerDashboardState{}, false
	}

	status, ok := registryStateMap[w.State]
	if !ok {
		return WorkerDashboardState{}, false
	}
	return WorkerDashboardState{
		PaneID:         paneID,
		Status:         status,
		LastActivityAt: w.LastStateChangeAt,
		WishID:         w.WishSlug,
	}, true
}

// Reset clears all accumulated in-memory state.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.states = make(map[string]*WorkerDashboardState)
}
