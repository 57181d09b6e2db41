package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrelrun/genie/internal/mailbox"
)

var mailboxCmd = &cobra.Command{
	Use:   "mailbox",
	Short: "Send and inspect inter-worker mailbox messages",
}

var mailboxSendCmd = &cobra.Command{
	Use:   "send <from> <to> <body>",
	Short: "Send a message to a worker's mailbox",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		result, err := a.mailRoute.Send(context.Background(), args[0], args[1], args[2])
		if err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
		return printJSON(result)
	},
}

var mailboxInboxCmd = &cobra.Command{
	Use:   "inbox <worker-id>",
	Short: "List a worker's mailbox messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		messages, err := a.mailRoute.Inbox(args[0])
		if err != nil {
			return fmt.Errorf("reading inbox for %s: %w", args[0], err)
		}
		return printJSON(messages)
	},
}

var mailboxFlushCmd = &cobra.Command{
	Use:   "flush <worker-id>",
	Short: "Deliver every pending message for a worker into its pane",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		deliver := func(ctx context.Context, workerID string, msg mailbox.Message) error {
			target, err := a.resolver.Resolve(ctx, workerID)
			if err != nil {
				return fmt.Errorf("resolving recipient %s: %w", workerID, err)
			}
			return a.mux.SendKeys(ctx, target.PaneID, msg.Body)
		}
		if err := a.mailRoute.FlushPending(context.Background(), args[0], deliver); err != nil {
			return fmt.Errorf("flushing mailbox for %s: %w", args[0], err)
		}
		return nil
	},
}

func init() {
	mailboxCmd.AddCommand(mailboxSendCmd, mailboxInboxCmd, mailboxFlushCmd)
	rootCmd.AddCommand(mailboxCmd)
}
