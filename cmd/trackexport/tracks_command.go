package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"trackexport/internal/config"
	"trackexport/internal/export"
	"trackexport/internal/multirender"
	"trackexport/internal/project"
)

type trackRow struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Pattern bool   `json:"pattern"`
	Muted   bool   `json:"muted"`
	Seq     int    `json:"seq,omitempty"`
	Stem    string `json:"stem,omitempty"`
}

func newTracksCommand(ctx *commandContext) *cobra.Command {
	var format string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tracks <project>",
		Short: "List project tracks and the stems an export would write",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve project path: %w", err)
			}
			proj, err := project.Load(path)
			if err != nil {
				return err
			}
			settings, err := export.SettingsFromConfig(cfg.Render)
			if err != nil {
				return err
			}
			resolved, err := export.ResolveFormat(format, "", true, settings.Format)
			if err != nil {
				return err
			}

			rows := planRows(proj.Tracks, resolved.Extension())
			if asJSON {
				return writeJSON(cmd, rows)
			}

			table := make([][]string, 0, len(rows))
			for _, r := range rows {
				seq := "-"
				if r.Seq > 0 {
					seq = strconv.Itoa(r.Seq)
				}
				kind := titleLabel(r.Kind)
				if r.Pattern {
					kind += " (pattern)"
				}
				stem := r.Stem
				if stem == "" {
					stem = "-"
				}
				table = append(table, []string{seq, r.Name, kind, yesNo(r.Muted), stem})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"#", "Track", "Kind", "Muted", "Stem"}, table, []columnAlignment{alignRight}))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Format used for the stem file names")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print tracks as JSON")
	return cmd
}

// planRows lists every track in project order, numbering the ones a stem
// export would render.
func planRows(set project.TrackSet, ext string) []trackRow {
	planned := make(map[*project.Track]multirender.Job)
	for _, job := range multirender.Plan(set) {
		planned[job.Track] = job
	}
	var rows []trackRow
	add := func(track *project.Track, pattern bool) {
		row := trackRow{Name: track.Name(), Kind: track.Kind().String(), Pattern: pattern, Muted: track.Muted()}
		if job, ok := planned[track]; ok {
			row.Seq = job.Seq
			row.Stem = filepath.Base(multirender.OutputPath("", job.Seq, track.Name(), ext))
		}
		rows = append(rows, row)
	}
	for _, track := range set.Main {
		add(track, false)
	}
	for _, track := range set.Patterns {
		add(track, true)
	}
	return rows
}
