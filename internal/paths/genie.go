// Package paths provides path resolution utilities for the harness's
// per-repository state directory.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// StateDirName is the conventional per-repository state directory name.
const StateDirName = ".genie"

// ResolveStateDir resolves the .genie directory path from a repository
// root. It normalizes the input (accepting either the repo root or the
// .genie dir itself) and follows a redirect file so git worktrees can
// share one primary worktree's state.
//
// Input normalization:
//   - "/path/to/repo"        -> "/path/to/repo/.genie"
//   - "/path/to/repo/.genie" -> "/path/to/repo/.genie"
//   - ""                     -> ".genie"
//
// Redirect handling:
//   - If .genie/redirect exists, follows it to the actual .genie location.
//     This supports git worktrees where .genie contains a redirect to the
//     main worktree so workers, batches and mailboxes are shared.
func ResolveStateDir(repoRoot string) string {
	if repoRoot == "" {
		repoRoot = "."
	}
	repoRoot = filepath.Clean(repoRoot)

	if filepath.Base(repoRoot) == StateDirName {
		return followRedirect(repoRoot)
	}

	stateDir := filepath.Join(repoRoot, StateDirName)
	return followRedirect(stateDir)
}

// WorkersFile returns the path to the worker registry file.
func WorkersFile(stateDir string) string {
	return filepath.Join(stateDir, "workers.json")
}

// BatchesDir returns the path to the batches directory.
func BatchesDir(stateDir string) string {
	return filepath.Join(stateDir, "batches")
}

// BatchCounterFile returns the path to the batch id counter file.
func BatchCounterFile(stateDir string) string {
	return filepath.Join(BatchesDir(stateDir), ".counter")
}

// MailboxDir returns the path to the mailbox directory.
func MailboxDir(stateDir string) string {
	return filepath.Join(stateDir, "mailbox")
}

// MailboxFile returns the path to a specific worker's mailbox file.
func MailboxFile(stateDir, workerID string) string {
	return filepath.Join(MailboxDir(stateDir), workerID+".json")
}

// EventsDir returns the path to the normalized-event JSONL directory.
func EventsDir(stateDir string) string {
	return filepath.Join(stateDir, "events")
}

// AuditLogFile returns the path to the policy engine's audit log.
func AuditLogFile(stateDir string) string {
	return filepath.Join(stateDir, "auto-approve-audit.jsonl")
}

// RepoAutoApproveFile returns the path to the repo-local policy override.
func RepoAutoApproveFile(stateDir string) string {
	return filepath.Join(stateDir, "auto-approve.yaml")
}

// GlobalAutoApproveFile returns the path to the user-global policy
// defaults file, conventionally under the user's config directory.
func GlobalAutoApproveFile(userConfigDir string) string {
	return filepath.Join(userConfigDir, "auto-approve.yaml")
}

// followRedirect checks for a redirect file and follows it if present.
func followRedirect(stateDir string) string {
	redirectPath := filepath.Join(stateDir, "redirect")

	content, err := os.ReadFile(redirectPath) //nolint:gosec // redirect path is within .genie dir
	if err != nil {
		return stateDir
	}

	redirectTarget := strings.TrimSpace(string(content))
	if redirectTarget == "" {
		return stateDir
	}

	resolvedPath := filepath.Join(stateDir, redirectTarget)
	return filepath.Clean(resolvedPath)
}
