package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStateDir(t *testing.T) {
	t.Run("appends .genie to a repo root", func(t *testing.T) {
		got := ResolveStateDir("/tmp/repo")
		assert.Equal(t, "/tmp/repo/.genie", got)
	})

	t.Run("passes through an existing .genie path", func(t *testing.T) {
		got := ResolveStateDir("/tmp/repo/.genie")
		assert.Equal(t, "/tmp/repo/.genie", got)
	})

	t.Run("defaults to cwd when empty", func(t *testing.T) {
		got := ResolveStateDir("")
		assert.Equal(t, ".genie", got)
	})

	t.Run("follows a redirect file", func(t *testing.T) {
		dir := t.TempDir()
		stateDir := filepath.Join(dir, ".genie")
		require.NoError(t, os.MkdirAll(stateDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(stateDir, "redirect"), []byte("../main/.genie\n"), 0o644))

		got := ResolveStateDir(dir)
		assert.Equal(t, filepath.Clean(filepath.Join(stateDir, "../main/.genie")), got)
	})
}

func TestDerivedPaths(t *testing.T) {
	state := "/tmp/repo/.genie"
	assert.Equal(t, "/tmp/repo/.genie/workers.json", WorkersFile(state))
	assert.Equal(t, "/tmp/repo/.genie/batches", BatchesDir(state))
	assert.Equal(t, "/tmp/repo/.genie/batches/.counter", BatchCounterFile(state))
	assert.Equal(t, "/tmp/repo/.genie/mailbox", MailboxDir(state))
	assert.Equal(t, "/tmp/repo/.genie/mailbox/bd-42.json", MailboxFile(state, "bd-42"))
	assert.Equal(t, "/tmp/repo/.genie/events", EventsDir(state))
	assert.Equal(t, "/tmp/repo/.genie/auto-approve-audit.jsonl", AuditLogFile(state))
	assert.Equal(t, "/tmp/repo/.genie/auto-approve.yaml", RepoAutoApproveFile(state))
}
