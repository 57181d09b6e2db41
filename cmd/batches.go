package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kestrelrun/genie/internal/batch"
)

var (
	batchSkill         string
	batchAutoApprove   bool
	batchMaxConcurrent int
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Create and inspect batches of wishes",
}

var batchesCreateCmd = &cobra.Command{
	Use:   "create <wish-id> [wish-id...]",
	Short: "Create a new batch over the given wish ids",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		b, err := a.batches.CreateBatch(args, batch.Options{
			Skill:         batchSkill,
			AutoApprove:   batchAutoApprove,
			MaxConcurrent: batchMaxConcurrent,
		})
		if err != nil {
			return fmt.Errorf("creating batch: %w", err)
		}
		return printJSON(b)
	},
}

var batchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every batch, as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		batches, err := a.batches.ListBatches()
		if err != nil {
			return err
		}
		return printJSON(batches)
	},
}

var batchesShowCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Show a single batch's state, as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		b, ok, err := a.batches.GetBatch(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("batch %q not found", args[0])
		}
		return printJSON(b)
	},
}

var batchesCompleteCheckCmd = &cobra.Command{
	Use:   "complete-check <batch-id>",
	Short: "Fold a batch's worker sub-states into a completion summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		result, err := a.batches.CheckBatchCompletion(args[0])
		if err != nil {
			return fmt.Errorf("checking batch %q: %w", args[0], err)
		}
		return printJSON(result)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	batchesCreateCmd.Flags().StringVar(&batchSkill, "skill", "", "skill name to pass to each spawned worker")
	batchesCreateCmd.Flags().BoolVar(&batchAutoApprove, "auto-approve", false, "enable auto-approve for this batch's workers")
	batchesCreateCmd.Flags().IntVar(&batchMaxConcurrent, "max-concurrent", 0, "cap on concurrently spawned workers (0 = unbounded)")

	batchesCmd.AddCommand(batchesCreateCmd, batchesListCmd, batchesShowCmd, batchesCompleteCheckCmd)
	rootCmd.AddCommand(batchesCmd)
}
