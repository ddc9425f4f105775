package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/queue"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				health, err := store.CheckHealth(cmd.Context())

				fmt.Fprintf(out, "Database path:   %s\n", health.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(health.DatabaseExists))
				fmt.Fprintf(out, "Readable:        %s\n", yesNo(health.DatabaseReadable))
				fmt.Fprintf(out, "Snapshot stored: %s\n", yesNo(health.SnapshotExists))
				if health.SnapshotExists {
					fmt.Fprintf(out, "Snapshot size:   %d bytes\n", health.SnapshotBytes)
					if !health.SnapshotUpdated.IsZero() {
						fmt.Fprintf(out, "Last write:      %s\n", health.SnapshotUpdated.Format(time.RFC3339))
					}
				}
				if health.FreeDiskBytes > 0 {
					fmt.Fprintf(out, "Free disk:       %.1f MiB\n", float64(health.FreeDiskBytes)/(1024*1024))
				}
				if err != nil {
					return fmt.Errorf("queue database unhealthy: %w", err)
				}
				fmt.Fprintln(out, "Queue database healthy")
				return nil
			})
		},
	}
}
