package dashboard

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelrun/genie/internal/events"
	"github.com/kestrelrun/genie/internal/worker"
)

func TestFoldingRulesTable(t *testing.T) {
	tests := []struct {
		name   string
		evType events.Type
		want   Status
	}{
		{"session_start means running", events.TypeSessionStart, StatusRunning},
		{"tool_call means running", events.TypeToolCall, StatusRunning},
		{"permission_request means waiting", events.TypePermissionRequest, StatusWaiting},
		{"session_end means stopped", events.TypeSessionEnd, StatusStopped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(nil)
			agg.Fold(events.NormalizedEvent{Type: tt.evType, PaneID: "%1", Timestamp: time.Now()})

			states := agg.States()
			require.Len(t, states, 1)
			assert.Equal(t, tt.want, states[0].Status)
		})
	}
}

func TestFoldIgnoresEventsMissingPaneID(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Fold(events.NormalizedEvent{Type: events.TypeSessionStart, Timestamp: time.Now()})
	assert.Empty(t, agg.States())
}

func TestFoldBumpsEventCountAndLatchesWishID(t *testing.T) {
	agg := NewAggregator(nil)
	now := time.Now()

	agg.Fold(events.NormalizedEvent{Type: events.TypeSessionStart, PaneID: "%1", Timestamp: now, WishID: "wish-a"})
	agg.Fold(events.NormalizedEvent{Type: events.TypeToolCall, PaneID: "%1", Timestamp: now.Add(time.Second), ToolName: "Bash"})

	states := agg.States()
	require.Len(t, states, 1)
	assert.Equal(t, 2, states[0].EventCount)
	assert.Equal(t, "wish-a", states[0].WishID)
	assert.Equal(t, "Bash", states[0].LastEvent.ToolName)
}

func TestStateForPaneFallsBackToRegistry(t *testing.T) {
	reg := worker.NewRegistry(filepath.Join(t.TempDir(), "workers.json"))
	require.NoError(t, reg.Register(worker.Worker{ID: "bd-1", PaneID: "%7", State: worker.StatePermission, WishSlug: "wish-x"}))

	agg := NewAggregator(reg)
	state, ok := agg.StateForPane("%7")
	require.True(t, ok)
	assert.Equal(t, StatusWaiting, state.Status)
	assert.Equal(t, "wish-x", state.WishID)
}

// Property 12 (aggregator fold determinism): folding the same ordered event
// sequence into two independently-constructed aggregators yields identical
// final states, regardless of any state either aggregator started from
// before the sequence (Reset brings both to the same empty starting point).
func TestFoldIsDeterministicAcrossAggregatorInstances(t *testing.T) {
	now := time.Now()
	seq := []events.NormalizedEvent{
		{Type: events.TypeSessionStart, PaneID: "%1", Timestamp: now, WishID: "wish-a"},
		{Type: events.TypeToolCall, PaneID: "%1", Timestamp: now.Add(time.Second), ToolName: "Bash"},
		{Type: events.TypePermissionRequest, PaneID: "%1", Timestamp: now.Add(2 * time.Second)},
		{Type: events.TypeSessionEnd, PaneID: "%1", Timestamp: now.Add(3 * time.Second)},
	}

	agg1 := NewAggregator(nil)
	for _, ev := range seq {
		agg1.Fold(ev)
	}

	// agg2 starts from unrelated prior state, then Reset, then the same
	// sequence: the fold must not depend on history predating Reset.
	agg2 := NewAggregator(nil)
	agg2.Fold(events.NormalizedEvent{Type: events.TypeSessionStart, PaneID: "%9", Timestamp: now})
	agg2.Reset()
	for _, ev := range seq {
		agg2.Fold(ev)
	}

	assert.Equal(t, agg1.States(), agg2.States())
}

func TestResetClearsState(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Fold(events.NormalizedEvent{Type: events.TypeSessionStart, PaneID: "%1", Timestamp: time.Now()})
	require.Len(t, agg.States(), 1)

	agg.Reset()
	assert.Empty(t, agg.States())
}
