package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrelrun/genie/internal/spawn"
	"github.com/kestrelrun/genie/internal/worker"
)

var (
	spawnModel      string
	spawnResume     string
	spawnSkipPerms  bool
	spawnSystemMsg  string
	spawnWishSlug   string
	spawnTaskID     string
	spawnInitialMsg string
)

var workersSpawnCmd = &cobra.Command{
	Use:   "spawn <worker-id> <claude|codex>",
	Short: "Launch a new worker process in a fresh tmux window and register it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		provider := worker.Provider(args[1])
		if provider != worker.ProviderClaude && provider != worker.ProviderCodex {
			return fmt.Errorf("unknown provider %q: must be claude or codex", args[1])
		}

		opts := spawn.Options{
			Provider:           provider,
			WorkDir:            repoRoot,
			Model:              spawnModel,
			ResumeSessionID:    spawnResume,
			SkipPermissions:    spawnSkipPerms,
			AppendSystemPrompt: spawnSystemMsg,
			InitialPrompt:      spawnInitialMsg,
		}

		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Timeouts.WorkerSpawn)
		defer cancel()

		windowName := args[0]
		pane, err := a.launcher.Launch(ctx, sessionName, windowName, opts)
		if err != nil {
			return fmt.Errorf("spawning worker %s: %w", args[0], err)
		}

		w := worker.Worker{
			ID:                args[0],
			PaneID:            pane.ID,
			SessionName:       sessionName,
			RepoRoot:          repoRoot,
			WishSlug:          spawnWishSlug,
			TaskID:            spawnTaskID,
			Provider:          provider,
			Transport:         worker.TransportTmux,
			State:             worker.StateSpawning,
			StartedAt:         time.Now().UTC(),
			LastStateChangeAt: time.Now().UTC(),
		}
		if err := a.registry.Register(w); err != nil {
			return fmt.Errorf("registering worker %s: %w", args[0], err)
		}
		return printJSON(w)
	},
}

func init() {
	workersSpawnCmd.Flags().StringVar(&spawnModel, "model", "", "model name passed to the provider")
	workersSpawnCmd.Flags().StringVar(&spawnResume, "resume", "", "resume an existing provider session id")
	workersSpawnCmd.Flags().BoolVar(&spawnSkipPerms, "skip-permissions", false, "launch with the provider's own approval bypass flag")
	workersSpawnCmd.Flags().StringVar(&spawnSystemMsg, "append-system-prompt", "", "text appended to the provider's system prompt (Claude only)")
	workersSpawnCmd.Flags().StringVar(&spawnWishSlug, "wish", "", "wish slug this worker is assigned to")
	workersSpawnCmd.Flags().StringVar(&spawnTaskID, "task", "", "task id this worker is assigned to")
	workersSpawnCmd.Flags().StringVar(&spawnInitialMsg, "initial-prompt", "", "line of input sent to the pane once the process starts")

	workersCmd.AddCommand(workersSpawnCmd)
}
