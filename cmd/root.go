package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kestrelrun/genie/internal/batch"
	"github.com/kestrelrun/genie/internal/config"
	"github.com/kestrelrun/genie/internal/dashboard"
	"github.com/kestrelrun/genie/internal/events"
	"github.com/kestrelrun/genie/internal/log"
	"github.com/kestrelrun/genie/internal/mailbox"
	"github.com/kestrelrun/genie/internal/paths"
	"github.com/kestrelrun/genie/internal/policy"
	"github.com/kestrelrun/genie/internal/spawn"
	"github.com/kestrelrun/genie/internal/tmux"
	"github.com/kestrelrun/genie/internal/tracing"
	"github.com/kestrelrun/genie/internal/worker"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE any
	// Bubble Tea program starts (the "dashboard" subcommand), preventing the
	// terminal's OSC 11 response from racing with Bubble Tea's input loop.
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var (
	version string = "dev"

	repoRoot    string
	sessionName string
	cfgFile     string
	debugFlag   bool
)

var rootCmd = &cobra.Command{
	Use:     "genie",
	Short:   "Multi-agent tmux orchestration harness",
	Long:    `genie spawns, monitors and mediates a fleet of terminal-attached coding agent workers across tmux panes.`,
	Version: version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string, called from main with ldflags values.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&repoRoot, "repo", "r", "", "repository root (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&sessionName, "session", "s", "genie", "tmux session name workers are spawned into")
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "app config file (default: ~/.config/genie/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}

// app bundles the wiring every subcommand needs: C1-C5 plus the
// integration surface, all rooted at a single repo's state directory.
type app struct {
	cfg      config.AppConfig
	stateDir string

	mux       tmux.Multiplexer
	registry  *worker.Registry
	resolver  *worker.Resolver
	mailRoute *mailbox.Router
	batches   *batch.Manager
	aggr      *dashboard.Aggregator
	launcher  *spawn.Launcher
	audit     *policy.AuditLog
	engine    *policy.Engine
	tailer    *events.Tailer
	tracer    *tracing.Provider
}

// newApp resolves the repo root and state directory, then constructs every
// component wired against that state. Callers must call close() when done.
func newApp() (*app, error) {
	repo := repoRoot
	if repo == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		repo = wd
	}
	repo, err := filepath.Abs(repo)
	if err != nil {
		return nil, fmt.Errorf("resolving repo root %s: %w", repo, err)
	}

	configPath := cfgFile
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if debugFlag {
		if _, err := log.Init(filepath.Join(cfg.UserConfigDir, "debug.log")); err != nil {
			log.Warn(log.CatConfig, "failed to initialize debug log", "error", err.Error())
		}
		log.SetEnabled(true)
	}

	stateDir := paths.ResolveStateDir(repo)
	registry := worker.NewRegistry(paths.WorkersFile(stateDir))
	mux := tmux.NewDriver("tmux")
	resolver := worker.NewResolver(registry, mux, nil)
	mailRoute := mailbox.NewRouter(paths.MailboxDir(stateDir), registry)
	batches := batch.NewManager(paths.BatchesDir(stateDir), paths.BatchCounterFile(stateDir))
	aggr := dashboard.NewAggregator(registry)
	launcher := spawn.NewLauncher(mux)

	audit, err := policy.NewAuditLog(paths.AuditLogFile(stateDir))
	if err != nil {
		return nil, err
	}
	deliver := func(ctx context.Context, paneID string) error {
		if d := cfg.Timeouts.DeliveryRetry; d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return mux.SendKeys(ctx, paneID, "")
	}
	autoApprove := policy.LoadLayered(policy.LoadLayeredOptions{
		GlobalConfigPath: paths.GlobalAutoApproveFile(cfg.UserConfigDir),
		RepoConfigPath:   paths.RepoAutoApproveFile(stateDir),
		RepoPath:         repo,
	})
	engine := policy.NewEngine(autoApprove, audit, deliver)
	engine.Start()

	tracer, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("initializing tracer: %w", err)
	}

	tailer, err := events.New(events.DefaultConfig(paths.EventsDir(stateDir)))
	if err != nil {
		return nil, err
	}
	stream, err := tailer.Start()
	if err != nil {
		return nil, err
	}
	go func() {
		for ev := range stream {
			aggr.Fold(ev)

			if ev.Type != events.TypeToolCall && ev.Type != events.TypePermissionRequest {
				continue
			}
			req := policy.PermissionRequest{
				ID:        uuid.New().String(),
				ToolName:  policy.ToolName(ev.ToolName),
				ToolInput: ev.ToolInput,
				PaneID:    ev.PaneID,
				WishID:    ev.WishID,
				SessionID: ev.SessionID,
				Cwd:       ev.Cwd,
				Timestamp: ev.Timestamp,
			}
			if _, err := engine.Evaluate(context.Background(), req); err != nil {
				log.ErrorErr(log.CatPolicy, "policy evaluation failed", err, "pane", ev.PaneID)
			}
		}
	}()

	return &app{
		cfg:       cfg,
		stateDir:  stateDir,
		mux:       mux,
		registry:  registry,
		resolver:  resolver,
		mailRoute: mailRoute,
		batches:   batches,
		aggr:      aggr,
		launcher:  launcher,
		audit:     audit,
		engine:    engine,
		tailer:    tailer,
		tracer:    tracer,
	}, nil
}

// span starts a trace span named "genie.<operation>" using the app's
// tracer provider, returning the derived context and an end func. With
// tracing disabled (the default) this is a zero-overhead no-op.
func (a *app) span(ctx context.Context, operation string) (context.Context, func()) {
	ctx, span := a.tracer.Tracer().Start(ctx, "genie."+operation)
	return ctx, func() { span.End() }
}

func (a *app) close() {
	a.engine.Stop()
	_ = a.audit.Close()
	_ = a.tailer.Stop()
	_ = a.tracer.Shutdown(context.Background())
}
