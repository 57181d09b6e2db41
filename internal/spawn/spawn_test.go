package spawn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelrun/genie/internal/tmux"
	"github.com/kestrelrun/genie/internal/worker"
)

func TestBuildClaudeArgsInteractiveMode(t *testing.T) {
	args := buildClaudeArgs(Options{
		Provider:           worker.ProviderClaude,
		Model:              "sonnet",
		ResumeSessionID:    "sess-1",
		SkipPermissions:    true,
		AppendSystemPrompt: "be terse",
	})

	assert.Equal(t, []string{
		"--resume", "sess-1",
		"--model", "sonnet",
		"--dangerously-skip-permissions",
		"--append-system-prompt", "be terse",
	}, args)

	// Headless-only flags never appear in an interactive launch.
	assert.NotContains(t, args, "--print")
	assert.NotContains(t, args, "--output-format")
}

func TestBuildCodexArgsResumeDropsOtherFlags(t *testing.T) {
	args := buildCodexArgs(Options{
		ResumeSessionID: "thread-9",
		Model:           "o1",
		WorkDir:         "/tmp/x",
	})
	assert.Equal(t, []string{"resume", "thread-9"}, args)
}

func TestBuildCodexArgsNewSession(t *testing.T) {
	args := buildCodexArgs(Options{
		Model:           "o1",
		SkipPermissions: true,
		WorkDir:         "/tmp/x",
	})
	assert.Equal(t, []string{
		"-m", "o1",
		"--dangerously-bypass-approvals-and-sandbox",
		"-C", "/tmp/x",
	}, args)
}

func fakeResolver(name string) (string, error) {
	return "/usr/bin/" + name, nil
}

func TestLaunchCreatesWindowAndReturnsPane(t *testing.T) {
	fake := tmux.NewFake()
	fake.AddSession("genie", "$1")

	l := NewLauncher(fake).WithExecutableResolver(fakeResolver)
	pane, err := l.Launch(context.Background(), "genie", "worker-1", Options{
		Provider: worker.ProviderCodex,
		WorkDir:  "/repo",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pane.ID)

	found := false
	for _, call := range fake.ExecutedCommands() {
		if len(call) > 0 && call[0] == "new-window" {
			found = true
		}
	}
	assert.True(t, found, "expected a new-window tmux command to be issued")
}

func TestLaunchSendsInitialPrompt(t *testing.T) {
	fake := tmux.NewFake()
	fake.AddSession("genie", "$1")

	l := NewLauncher(fake).WithExecutableResolver(fakeResolver)
	pane, err := l.Launch(context.Background(), "genie", "worker-1", Options{
		Provider:      worker.ProviderClaude,
		WorkDir:       "/repo",
		InitialPrompt: "implement the feature",
	})
	require.NoError(t, err)

	sent := fake.SentKeys()
	require.Len(t, sent, 1)
	assert.Equal(t, pane.ID, sent[0].PaneID)
	assert.Contains(t, sent[0].Keys, "implement the feature")
}

func TestLaunchUnknownSessionErrors(t *testing.T) {
	fake := tmux.NewFake()
	l := NewLauncher(fake).WithExecutableResolver(fakeResolver)
	_, err := l.Launch(context.Background(), "missing", "w", Options{Provider: worker.ProviderClaude})
	assert.Error(t, err)
}

func TestBuildCommandUnknownProviderErrors(t *testing.T) {
	_, _, err := BuildCommand(Options{Provider: "amp"})
	assert.Error(t, err)
}
