package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	return NewManager(filepath.Join(dir, "batches"), filepath.Join(dir, "batches", ".counter"))
}

func TestCreateBatchAllocatesMonotonicIDs(t *testing.T) {
	m := newTestManager(t)

	b1, err := m.CreateBatch([]string{"wish-a"}, Options{})
	require.NoError(t, err)
	b2, err := m.CreateBatch([]string{"wish-b"}, Options{})
	require.NoError(t, err)
	b3, err := m.CreateBatch([]string{"wish-c"}, Options{})
	require.NoError(t, err)

	assert.Equal(t, "batch-001", b1.ID)
	assert.Equal(t, "batch-002", b2.ID)
	assert.Equal(t, "batch-003", b3.ID)
	assert.Equal(t, StatusActive, b1.Status)
	assert.Equal(t, SubStateQueued, b1.States["wish-a"])
}

func TestDeleteBatchNeverReusesID(t *testing.T) {
	m := newTestManager(t)

	b1, err := m.CreateBatch([]string{"wish-a"}, Options{})
	require.NoError(t, err)
	require.NoError(t, m.DeleteBatch(b1.ID))

	b2, err := m.CreateBatch([]string{"wish-b"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "batch-002", b2.ID)

	_, ok, err := m.GetBatch(b1.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCounterFallbackScansExistingFiles(t *testing.T) {
	dir := t.TempDir()
	batchesDir := filepath.Join(dir, "batches")
	require.NoError(t, os.MkdirAll(batchesDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(batchesDir, "batch-005.json"), []byte(`{"id":"batch-005","status":"active","states":{}}`), 0o644))

	// No .counter file exists yet: the manager must scan for the highest
	// existing id instead of starting back at 1.
	m := NewManager(batchesDir, filepath.Join(batchesDir, ".counter"))
	b, err := m.CreateBatch(nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "batch-006", b.ID)
}

func TestListBatchesSkipsMalformedFiles(t *testing.T) {
	m := newTestManager(t)
	b1, err := m.CreateBatch([]string{"wish-a"}, Options{})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(m.dir, "batch-999.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(m.dir, "not-a-batch.txt"), []byte("ignored"), 0o644))

	list, err := m.ListBatches()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b1.ID, list[0].ID)
}

// S7: a batch with workers {w1:complete, w2:failed, w3:cancelled} reports
// complete=true and the full aggregate Summary, and an active batch's
// persisted status transitions to complete.
func TestScenarioS7ThreeTerminalWorkersCompleteWithFullSummary(t *testing.T) {
	m := newTestManager(t)
	b, err := m.CreateBatch([]string{"w1", "w2", "w3"}, Options{})
	require.NoError(t, err)

	_, err = m.UpdateBatch(b.ID, func(b *Batch) {
		b.Status = StatusActive
		b.States["w1"] = SubStateComplete
		b.States["w2"] = SubStateFailed
		b.States["w3"] = SubStateCancelled
	})
	require.NoError(t, err)

	result, err := m.CheckBatchCompletion(b.ID)
	require.NoError(t, err)
	assert.True(t, result.Complete)
	assert.Equal(t, Summary{Total: 3, Complete: 1, Failed: 1, Cancelled: 1, Running: 0, Queued: 0, Waiting: 0}, result.Summary)

	stored, ok, err := m.GetBatch(b.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusComplete, stored.Status)
}

func TestCheckBatchCompletionEmptyWorkerSetIsVacuouslyComplete(t *testing.T) {
	m := newTestManager(t)
	b, err := m.CreateBatch(nil, Options{})
	require.NoError(t, err)

	result, err := m.CheckBatchCompletion(b.ID)
	require.NoError(t, err)
	assert.True(t, result.Complete)
	assert.Equal(t, 0, result.Summary.Total)
}

func TestCheckBatchCompletionTransitionsStatusOnlyOnce(t *testing.T) {
	m := newTestManager(t)
	b, err := m.CreateBatch([]string{"wish-a", "wish-b"}, Options{})
	require.NoError(t, err)

	_, err = m.UpdateBatch(b.ID, func(b *Batch) {
		b.States["wish-a"] = SubStateComplete
		b.States["wish-b"] = SubStateRunning
	})
	require.NoError(t, err)

	result, err := m.CheckBatchCompletion(b.ID)
	require.NoError(t, err)
	assert.False(t, result.Complete)
	assert.Equal(t, 1, result.Summary.Complete)
	assert.Equal(t, 1, result.Summary.Running)

	_, err = m.UpdateBatch(b.ID, func(b *Batch) {
		b.States["wish-b"] = SubStateFailed
	})
	require.NoError(t, err)

	result, err = m.CheckBatchCompletion(b.ID)
	require.NoError(t, err)
	assert.True(t, result.Complete)

	stored, ok, err := m.GetBatch(b.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusComplete, stored.Status)
}

func TestSpawningCountsUnderRunning(t *testing.T) {
	m := newTestManager(t)
	b, err := m.CreateBatch([]string{"wish-a"}, Options{})
	require.NoError(t, err)

	_, err = m.UpdateBatch(b.ID, func(b *Batch) {
		b.States["wish-a"] = SubStateSpawning
	})
	require.NoError(t, err)

	result, err := m.CheckBatchCompletion(b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Running)
	assert.Equal(t, 0, result.Summary.Queued)
}
