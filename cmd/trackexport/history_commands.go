package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"trackexport/internal/history"
)

var errHistoryDisabled = errors.New("export history is disabled (paths.history_db is empty)")

type runRow struct {
	ID          string  `json:"id"`
	Project     string  `json:"project"`
	Mode        string  `json:"mode"`
	Format      string  `json:"format"`
	Destination string  `json:"destination"`
	Status      string  `json:"status"`
	Total       int     `json:"total"`
	Exported    int     `json:"exported"`
	Failed      int     `json:"failed"`
	Reason      string  `json:"reason,omitempty"`
	StartedAt   string  `json:"started_at"`
	Seconds     float64 `json:"duration_seconds,omitempty"`
}

func newRunRow(run *history.Run) runRow {
	return runRow{
		ID:          run.ID,
		Project:     run.Project,
		Mode:        string(run.Mode),
		Format:      run.Format,
		Destination: run.Destination,
		Status:      string(run.Status),
		Total:       run.Total,
		Exported:    run.Exported,
		Failed:      run.Failed,
		Reason:      run.Reason,
		StartedAt:   run.StartedAt.Format(time.RFC3339),
		Seconds:     run.Duration().Seconds(),
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent export runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				rows := make([]runRow, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, newRunRow(run))
				}
				if asJSON {
					return writeJSON(cmd, rows)
				}
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No export runs recorded")
					return nil
				}
				table := make([][]string, 0, len(rows))
				for _, r := range rows {
					table = append(table, []string{
						shortID(r.ID),
						r.StartedAt,
						r.Project,
						titleLabel(r.Mode),
						r.Format,
						titleLabel(r.Status),
						fmt.Sprintf("%d/%d", r.Exported, r.Total),
						strconv.Itoa(r.Failed),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Started", "Project", "Mode", "Format", "Status", "Exported", "Failed"},
					table,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")

	cmd.AddCommand(newHistoryShowCommand(ctx))
	cmd.AddCommand(newHistoryClearCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the tracks of one export run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("export run %s not found", args[0])
				}
				jobs, err := store.Jobs(cmd.Context(), run.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run:         %s\n", run.ID)
				fmt.Fprintf(out, "Project:     %s\n", run.Project)
				fmt.Fprintf(out, "Mode:        %s (%s)\n", titleLabel(string(run.Mode)), run.Format)
				fmt.Fprintf(out, "Destination: %s\n", run.Destination)
				fmt.Fprintf(out, "Status:      %s, %d of %d exported\n", titleLabel(string(run.Status)), run.Exported, run.Total)
				if run.Reason != "" {
					fmt.Fprintf(out, "Reason:      %s\n", run.Reason)
				}
				if len(jobs) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{strconv.Itoa(job.Seq), job.Track, job.OutputPath, titleLabel(string(job.Status)), job.ErrorMessage})
				}
				fmt.Fprintln(out, renderTable([]string{"#", "Track", "Output", "Status", "Error"}, rows, []columnAlignment{alignRight}))
				return nil
			})
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded export runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d export run(s)\n", removed)
				return nil
			})
		},
	}
}

func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	store, err := ctx.openHistory()
	if err != nil {
		return err
	}
	if store == nil {
		return errHistoryDisabled
	}
	defer store.Close()
	return fn(store)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
