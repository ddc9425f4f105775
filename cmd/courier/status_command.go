package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"courier/internal/config"
	"courier/internal/queue"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

var kindTitler = cases.Title(language.English)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queued driver actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				items, _, err := store.Load(cmd.Context())
				if err != nil {
					return fmt.Errorf("load queue: %w", err)
				}

				filter := strings.TrimSpace(statusFilter)
				if filter != "" {
					status, ok := queue.ParseStatus(filter)
					if !ok {
						return fmt.Errorf("unknown status %q (known: %s)", filter, statusNames())
					}
					filtered := items[:0]
					for _, item := range items {
						if item.Status == status {
							filtered = append(filtered, item)
						}
					}
					items = filtered
				}

				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}

				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.ID,
						kindLabel(item.Kind),
						statusCell(item.Status, colorize),
						fmt.Sprintf("%d/%d", item.Attempts, item.MaxAttempts),
						fmt.Sprintf("%d", item.Priority),
						age(item.CreatedAt),
						truncate(item.LastError, 48),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Kind", "Status", "Attempts", "Priority", "Age", "Last Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))

				summary := queue.Summarize(items)
				fmt.Fprintf(out, "%d items: %d pending, %d in-flight, %d completed, %d failed\n",
					summary.Total, summary.Pending, summary.InFlight, summary.Completed, summary.Failed)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show items in this state")
	return cmd
}

// kindLabel renders a kind constant as a human title: "Delivery Evidence Upload".
func kindLabel(kind queue.Kind) string {
	return kindTitler.String(strings.ReplaceAll(string(kind), "-", " "))
}

func statusCell(status queue.Status, colorize bool) string {
	if !colorize {
		return string(status)
	}
	switch status {
	case queue.StatusCompleted:
		return ansiGreen + string(status) + ansiReset
	case queue.StatusFailed:
		return ansiRed + string(status) + ansiReset
	case queue.StatusInFlight:
		return ansiYellow + string(status) + ansiReset
	default:
		return string(status)
	}
}

func statusNames() string {
	names := make([]string, 0, 4)
	for _, status := range queue.AllStatuses() {
		names = append(names, string(status))
	}
	return strings.Join(names, ", ")
}

func age(created time.Time) string {
	if created.IsZero() {
		return "-"
	}
	d := time.Since(created).Round(time.Second)
	if d < 0 {
		d = 0
	}
	return d.String()
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
