package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/plexlinker/plexlinker/internal/linker"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one link pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(runContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(cfg, appOptions{withServices: true})
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.job.Run(signalCtx)
			if err != nil {
				return fmt.Errorf("link pass: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, report)
			}
			printReport(out, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the pass report as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(w io.Writer, report *linker.PassReport) {
	if report == nil {
		fmt.Fprintln(w, "Another pass is running; nothing to do.")
		return
	}
	if report.Skipped {
		fmt.Fprintf(w, "Pass skipped: %s\n", report.SkipReason)
		return
	}

	if len(report.Outcomes) > 0 {
		rows := make([][]string, 0, len(report.Outcomes))
		for _, o := range report.Outcomes {
			detail := o.Destination
			if detail == "" {
				detail = o.Reason
			}
			if o.RescanFailed {
				detail += " (rescan failed)"
			}
			rows = append(rows, []string{o.Movie, o.Show, string(o.Kind), detail})
		}
		fmt.Fprintln(w, renderTable([]string{"Movie", "Show", "Result", "Detail"}, rows, nil))
	}

	summary := [][]string{
		{"Rules", strconv.Itoa(report.Rules)},
		{"Invalid rules", strconv.Itoa(report.InvalidRules)},
		{"Movies matched", strconv.Itoa(report.Matched)},
		{"Movies skipped", strconv.Itoa(report.MoviesSkipped)},
		{"Links created", strconv.Itoa(report.Linked)},
		{"Shows skipped", strconv.Itoa(report.ShowsSkipped)},
		{"Errors", strconv.Itoa(report.Errors)},
		{"Rescans failed", strconv.Itoa(report.RescanFailed)},
		{"Broken links pruned", strconv.Itoa(report.Pruned)},
		{"Duration", report.Duration().Round(time.Millisecond).String()},
	}
	fmt.Fprintln(w, renderTable([]string{"Pass " + report.ID, ""}, summary, []columnAlignment{alignLeft, alignRight}))
}

// runContext returns the command context, or Background for commands
// invoked without one.
func runContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
