package worker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "workers.json"))

	require.NoError(t, reg.Register(Worker{ID: "bd-1", PaneID: "%1"}))

	w, ok := reg.Get("bd-1")
	require.True(t, ok)
	assert.Equal(t, "%1", w.PaneID)
	assert.False(t, w.StartedAt.IsZero())
	assert.Equal(t, w.StartedAt, w.LastStateChangeAt)
}

func TestRegisterDuplicateIDFails(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "workers.json"))

	require.NoError(t, reg.Register(Worker{ID: "bd-1", PaneID: "%1"}))
	err := reg.Register(Worker{ID: "bd-1", PaneID: "%2"})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegisterInvalidWorkerFails(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "workers.json"))
	err := reg.Register(Worker{ID: "bd-1", PaneID: "not-a-pane"})
	assert.Error(t, err)
}

func TestUnregisterIsNoopWhenMissing(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "workers.json"))
	assert.NoError(t, reg.Unregister("nobody"))
}

func TestUpdateStateBumpsLastStateChangeAt(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "workers.json"))
	require.NoError(t, reg.Register(Worker{ID: "bd-1", PaneID: "%1"}))

	w, _ := reg.Get("bd-1")
	before := w.LastStateChangeAt

	require.NoError(t, reg.UpdateState("bd-1", StateWorking))

	w, ok := reg.Get("bd-1")
	require.True(t, ok)
	assert.Equal(t, StateWorking, w.State)
	assert.False(t, w.LastStateChangeAt.Before(before))
}

func TestUpdateUnknownWorkerErrors(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "workers.json"))
	err := reg.UpdateState("nobody", StateWorking)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSortedByID(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "workers.json"))
	require.NoError(t, reg.Register(Worker{ID: "bd-2", PaneID: "%2"}))
	require.NoError(t, reg.Register(Worker{ID: "bd-1", PaneID: "%1"}))

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "bd-1", list[0].ID)
	assert.Equal(t, "bd-2", list[1].ID)
}

func TestFindByWindow(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "workers.json"))
	require.NoError(t, reg.Register(Worker{ID: "bd-1", PaneID: "%1", WindowID: "@4"}))

	w, ok := reg.FindByWindow("@4")
	require.True(t, ok)
	assert.Equal(t, "bd-1", w.ID)

	_, ok = reg.FindByWindow("@99")
	assert.False(t, ok)
}

func TestAddAndRemoveSubPane(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "workers.json"))
	require.NoError(t, reg.Register(Worker{ID: "bd-1", PaneID: "%1"}))
	require.NoError(t, reg.AddSubPane("bd-1", "%22"))
	require.NoError(t, reg.AddSubPane("bd-1", "%23"))

	pane, err := reg.GetPane("bd-1", 2)
	require.NoError(t, err)
	assert.Equal(t, "%23", pane)

	require.NoError(t, reg.RemoveSubPane("bd-1", 1))
	w, _ := reg.Get("bd-1")
	assert.Equal(t, []string{"%23"}, w.SubPanes)
}

func TestGenerateWorkerIDFirstUsesBareTaskID(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "workers.json"))
	assert.Equal(t, "task-a", reg.GenerateWorkerID("task-a", ""))
}

func TestGenerateWorkerIDSubsequentSuffixes(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "workers.json"))
	require.NoError(t, reg.Register(Worker{ID: "task-a", PaneID: "%1", TaskID: "task-a"}))

	assert.Equal(t, "task-a-2", reg.GenerateWorkerID("task-a", ""))
}

func TestGenerateWorkerIDCustomNameVerbatim(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "workers.json"))
	assert.Equal(t, "my-name", reg.GenerateWorkerID("task-a", "my-name"))
}

// Property 7 (registry freshness): the registry never caches in memory, so
// an external process rewriting workers.json is observed by the very next
// call on a Registry handle constructed (or already held) before the
// rewrite happened.
func TestRegistryObservesExternalRewriteWithoutCaching(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workers.json")
	reg := NewRegistry(path)
	require.NoError(t, reg.Register(Worker{ID: "bd-1", PaneID: "%1"}))

	_, ok := reg.Get("bd-2")
	require.False(t, ok)

	// Simulate an external writer (a second orchestrator process) replacing
	// the file wholesale, bypassing this Registry handle entirely.
	external := snapshot{Workers: map[string]Worker{
		"bd-2": {ID: "bd-2", PaneID: "%2"},
	}}
	data, err := json.MarshalIndent(external, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	w, ok := reg.Get("bd-2")
	require.True(t, ok, "existing Registry handle must observe the external rewrite, not a cached snapshot")
	assert.Equal(t, "%2", w.PaneID)

	_, ok = reg.Get("bd-1")
	assert.False(t, ok, "external rewrite replaced the file wholesale; bd-1 must no longer be visible")
}
