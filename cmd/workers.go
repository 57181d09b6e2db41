package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Inspect registered workers",
}

var workersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every worker in the registry, as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		workers := a.registry.List()
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(workers)
	},
}

var workersResolveCmd = &cobra.Command{
	Use:   "resolve <target>",
	Short: "Resolve a worker id, pane id, window id or session:window pair to a live pane handle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, end := a.span(context.Background(), "workers.resolve")
		defer end()

		target, err := a.resolver.Resolve(ctx, args[0])
		if err != nil {
			return fmt.Errorf("resolving %q: %w", args[0], err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(target)
	},
}

func init() {
	workersCmd.AddCommand(workersListCmd, workersResolveCmd)
	rootCmd.AddCommand(workersCmd)
}
