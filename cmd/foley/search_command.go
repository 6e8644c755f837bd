package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"foley/internal/assetcache"
	"foley/internal/scoring"
	"foley/internal/services/ytdlp"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "search <category>",
		Short: "Rank yt-dlp search candidates for a category without downloading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cat, err := ctx.catalog()
			if err != nil {
				return err
			}
			category, ok := cat.Lookup(strings.TrimSpace(args[0]))
			if !ok {
				return fmt.Errorf("unknown category %q (see foley categories)", args[0])
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("limit") {
				limit = cfg.Fetch.SearchResults
			}

			searchCtx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.Fetch.SearchTimeoutSeconds)*time.Second)
			defer cancel()
			client := ytdlp.New(cfg.Fetch.Binary, ytdlp.WithLogger(logger))
			query := assetcache.SearchQuery(category)
			candidates, err := client.Search(searchCtx, query, limit)
			if err != nil {
				return err
			}
			ranked := scoring.Rank(candidates, category.Positive, cat.NegativeTags)
			if jsonOut {
				return writeJSON(cmd, ranked)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Query: %s\n", query)
			if len(ranked) == 0 {
				fmt.Fprintf(out, "No candidates; a run would fetch %s\n", assetcache.FallbackLocator(category))
				return nil
			}
			rows := make([][]string, 0, len(ranked))
			for i, r := range ranked {
				marker := ""
				if i == 0 {
					marker = "*"
				}
				rows = append(rows, []string{
					marker,
					fmt.Sprintf("%d", r.Score),
					fmt.Sprintf("%.1fs", r.Candidate.Duration),
					r.Candidate.Title,
					strings.Join(r.Reasons, " "),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"", "Score", "Duration", "Title", "Reasons"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Number of results (default fetch.search_results)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print ranked candidates as JSON")
	return cmd
}
