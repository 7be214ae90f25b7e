package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trackexport/internal/render"
)

type formatRow struct {
	Name        string `json:"name"`
	Extension   string `json:"extension"`
	Description string `json:"description"`
	Lossy       bool   `json:"lossy"`
}

func newFormatsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:         "formats",
		Short:       "List supported export formats",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows []formatRow
			for _, f := range render.Formats() {
				rows = append(rows, formatRow{Name: f.String(), Extension: f.Extension(), Description: f.Description(), Lossy: f.Lossy()})
			}
			if asJSON {
				return writeJSON(cmd, rows)
			}
			table := make([][]string, 0, len(rows))
			for _, r := range rows {
				quality := "bit depth"
				if r.Lossy {
					quality = "bitrate"
				}
				table = append(table, []string{r.Name, r.Extension, r.Description, quality})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Format", "Extension", "Description", "Quality"}, table, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print formats as JSON")
	return cmd
}
