package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kestrelrun/genie/internal/batch"
	"github.com/kestrelrun/genie/internal/dashboardui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Launch a live terminal view of worker and batch state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		batchesFn := func() []batch.Batch {
			bs, err := a.batches.ListBatches()
			if err != nil {
				return nil
			}
			return bs
		}
		summaryFn := func(b batch.Batch) batch.Summary {
			result, err := a.batches.CheckBatchCompletion(b.ID)
			if err != nil {
				return batch.Summary{}
			}
			return result.Summary
		}

		model := dashboardui.New(a.aggr.States, batchesFn, summaryFn, a.cfg.Theme)
		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("running dashboard: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
