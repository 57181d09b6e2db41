package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrelrun/genie/internal/paths"
	"github.com/kestrelrun/genie/internal/policy"
)

var auditTailCount int

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Inspect the permission-decision audit trail",
}

var approveAuditTailCmd = &cobra.Command{
	Use:   "audit-tail",
	Short: "Print the most recent audit log entries, as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		entries, err := policy.ReadAuditEntries(paths.AuditLogFile(a.stateDir))
		if err != nil {
			return fmt.Errorf("reading audit log: %w", err)
		}
		if auditTailCount > 0 && len(entries) > auditTailCount {
			entries = entries[len(entries)-auditTailCount:]
		}
		return printJSON(entries)
	},
}

func init() {
	approveAuditTailCmd.Flags().IntVarP(&auditTailCount, "count", "n", 20, "number of most recent entries to print (0 = all)")
	approveCmd.AddCommand(approveAuditTailCmd)
	rootCmd.AddCommand(approveCmd)
}
