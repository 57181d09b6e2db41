// Package spawn launches the two supported agent providers (claude, codex)
// as foreground processes inside a fresh tmux pane. Unlike the teacher's
// headless client package — which pipes an agent's stdout through a
// streaming-JSON parser — a worker here runs interactively and visibly in
// its pane; the harness observes it only through the NormalizedEvent JSONL
// files the agent's own hooks write (internal/events), never through stdout.
package spawn

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kestrelrun/genie/internal/log"
	"github.com/kestrelrun/genie/internal/tmux"
	"github.com/kestrelrun/genie/internal/worker"
)

// Options configures a single worker launch. Fields not meaningful to a
// provider are silently ignored by that provider's arg builder.
type Options struct {
	Provider worker.Provider

	WorkDir string

	// Model, when set, is passed through to the provider's model flag.
	Model string

	// ResumeSessionID, when set, resumes a prior session instead of
	// starting a new one.
	ResumeSessionID string

	// SkipPermissions launches the provider in its "skip all approval
	// prompts" mode. The policy engine's own auto-approve decisioning is
	// the harness's normal gate; this exists for providers/workflows that
	// want to bypass it entirely.
	SkipPermissions bool

	// AppendSystemPrompt is appended to the provider's default system
	// prompt (Claude only; ignored by Codex, which has no equivalent
	// flag).
	AppendSystemPrompt string

	// InitialPrompt, when set, is sent to the pane as a line of input
	// immediately after the process starts.
	InitialPrompt string
}

// resolveExecutable mirrors the teacher's claude.findExecutable lookup:
// prefer the PATH entry, since workers run wherever the operator's shell
// environment already resolves these binaries.
func resolveExecutable(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s executable not found on PATH: %w", name, err)
	}
	return path, nil
}

// ExecutableResolver resolves a provider's binary name to an absolute path.
// Overridable per Launcher so tests never depend on the providers actually
// being installed.
type ExecutableResolver func(name string) (string, error)

// BuildCommand returns the executable and argument list for opts, resolving
// the binary against PATH. Exported so callers can log or dry-run a launch.
func BuildCommand(opts Options) (execPath string, args []string, err error) {
	return buildCommand(resolveExecutable, opts)
}

func buildCommand(resolve ExecutableResolver, opts Options) (execPath string, args []string, err error) {
	switch opts.Provider {
	case worker.ProviderClaude:
		execPath, err = resolve("claude")
		if err != nil {
			return "", nil, err
		}
		return execPath, buildClaudeArgs(opts), nil
	case worker.ProviderCodex:
		execPath, err = resolve("codex")
		if err != nil {
			return "", nil, err
		}
		return execPath, buildCodexArgs(opts), nil
	default:
		return "", nil, fmt.Errorf("spawn: unknown provider %q", opts.Provider)
	}
}

// buildClaudeArgs constructs an interactive (non---print) claude invocation.
// Grounded on the teacher's claude.buildArgs, with the headless-only flags
// (--print, --output-format, --verbose) dropped since the worker attaches
// to a visible pane rather than a piped stdout stream.
func buildClaudeArgs(opts Options) []string {
	var args []string

	if opts.ResumeSessionID != "" {
		args = append(args, "--resume", opts.ResumeSessionID)
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.SkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	if opts.AppendSystemPrompt != "" {
		args = append(args, "--append-system-prompt", opts.AppendSystemPrompt)
	}
	return args
}

// buildCodexArgs constructs an interactive codex invocation. Grounded on
// the client/providers/codex.buildArgs TOML-flag layout, with the headless
// "exec --json" subcommand dropped in favor of the bare interactive TUI
// entrypoint.
func buildCodexArgs(opts Options) []string {
	if opts.ResumeSessionID != "" {
		return []string{"resume", opts.ResumeSessionID}
	}

	var args []string
	if opts.Model != "" {
		args = append(args, "-m", opts.Model)
	}
	if opts.SkipPermissions {
		args = append(args, "--dangerously-bypass-approvals-and-sandbox")
	}
	if opts.WorkDir != "" {
		args = append(args, "-C", opts.WorkDir)
	}
	return args
}

// Launcher starts worker processes inside fresh tmux windows.
type Launcher struct {
	mux     tmux.Multiplexer
	resolve ExecutableResolver
}

// NewLauncher returns a Launcher that issues tmux commands through mux,
// resolving provider binaries against PATH.
func NewLauncher(mux tmux.Multiplexer) *Launcher {
	return &Launcher{mux: mux, resolve: resolveExecutable}
}

// WithExecutableResolver overrides how provider binary names are resolved
// to a path, for tests that should not depend on claude/codex being
// installed.
func (l *Launcher) WithExecutableResolver(r ExecutableResolver) *Launcher {
	l.resolve = r
	return l
}

// Launch creates a new window in sessionName running the given provider,
// returning the pane id of the new window's single pane (spec §4.2's
// worker.PaneID). If opts.InitialPrompt is set, it is typed into the pane
// as a line of input once the process has started.
func (l *Launcher) Launch(ctx context.Context, sessionName, windowName string, opts Options) (tmux.Pane, error) {
	execPath, args, err := buildCommand(l.resolve, opts)
	if err != nil {
		return tmux.Pane{}, err
	}

	cmdLine := shellJoin(append([]string{execPath}, args...))
	log.Debug(log.CatSpawn, "launching worker", "provider", string(opts.Provider), "session", sessionName, "window", windowName)

	if _, err := l.mux.ExecuteTmux(ctx, "new-window",
		"-t", sessionName,
		"-n", windowName,
		"-c", opts.WorkDir,
		cmdLine,
	); err != nil {
		return tmux.Pane{}, fmt.Errorf("spawning %s in %s:%s: %w", opts.Provider, sessionName, windowName, err)
	}

	session, ok, err := l.mux.FindSessionByName(ctx, sessionName)
	if err != nil {
		return tmux.Pane{}, fmt.Errorf("locating session %s after spawn: %w", sessionName, err)
	}
	if !ok {
		return tmux.Pane{}, fmt.Errorf("session %s vanished after spawn", sessionName)
	}

	windows, err := l.mux.ListWindows(ctx, session.ID)
	if err != nil {
		return tmux.Pane{}, fmt.Errorf("listing windows after spawn: %w", err)
	}
	var target tmux.Window
	found := false
	for _, w := range windows {
		if w.Name == windowName {
			target, found = w, true
		}
	}
	if !found {
		return tmux.Pane{}, fmt.Errorf("window %q not found after spawn in session %s", windowName, sessionName)
	}

	panes, err := l.mux.ListPanes(ctx, target.ID)
	if err != nil {
		return tmux.Pane{}, fmt.Errorf("listing panes of new window %s: %w", target.ID, err)
	}
	pane, ok := tmux.ActivePreferred(panes)
	if !ok {
		return tmux.Pane{}, fmt.Errorf("new window %s has no panes", target.ID)
	}

	if opts.InitialPrompt != "" {
		if err := l.mux.SendKeys(ctx, pane.ID, opts.InitialPrompt+"\n"); err != nil {
			return pane, fmt.Errorf("sending initial prompt to %s: %w", pane.ID, err)
		}
	}

	return pane, nil
}

// shellJoin renders args as a single tmux command-line string, quoting any
// argument that contains whitespace or shell metacharacters so tmux's own
// command parser hands the process a single argv entry per element.
func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = quoteIfNeeded(a)
	}
	return strings.Join(quoted, " ")
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return "''"
	}
	needsQuote := strings.ContainsAny(s, " \t\n\"'$`\\&|;<>()[]{}*?!~")
	if !needsQuote {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
