package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/queue"
)

func newClearCommand(ctx *commandContext) *cobra.Command {
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove completed and failed items from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLockedStore(func(cfg *config.Config, store *queue.Store) error {
				items, _, err := store.Load(cmd.Context())
				if err != nil {
					return fmt.Errorf("load queue: %w", err)
				}

				kept := items[:0]
				removed := 0
				for _, item := range items {
					if item.Terminal() || clearAll {
						removed++
						continue
					}
					kept = append(kept, item)
				}
				if removed == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to clear")
					return nil
				}
				if err := store.Save(cmd.Context(), kept); err != nil {
					return fmt.Errorf("persist cleared queue: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d items\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearAll, "all", false, "Also drop pending items")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Re-arm failed items for another round of attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLockedStore(func(cfg *config.Config, store *queue.Store) error {
				items, _, err := store.Load(cmd.Context())
				if err != nil {
					return fmt.Errorf("load queue: %w", err)
				}

				retried := 0
				for _, item := range items {
					if item.Status != queue.StatusFailed {
						continue
					}
					item.Status = queue.StatusPending
					item.Attempts = 0
					item.LastError = ""
					retried++
				}
				if retried == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No failed items to retry")
					return nil
				}
				if err := store.Save(cmd.Context(), items); err != nil {
					return fmt.Errorf("persist retried items: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Re-armed %d failed items; they will upload on the next daemon pass\n", retried)
				return nil
			})
		},
	}
}
