package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCategoriesCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the effect catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := ctx.catalog()
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, cat.Categories)
			}
			rows := make([][]string, 0, cat.Len())
			for _, c := range cat.Categories {
				rows = append(rows, []string{
					c.ID,
					strings.Join(c.Triggers, " "),
					c.Search,
					fmt.Sprintf("%+.0f dB", c.VolumeDB),
					fmt.Sprintf("%.0fs", c.CooldownSeconds),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"ID", "Triggers", "Search", "Volume", "Cooldown"}, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight}))
			fmt.Fprintf(out, "Negative tags: %s\n", strings.Join(cat.NegativeTags, ", "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print categories as JSON")
	return cmd
}
