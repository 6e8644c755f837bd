package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"foley/internal/assetcache"
	"foley/internal/assetindex"
)

const stampLayout = "2006-01-02 15:04"

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the sound effect cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))
	cacheCmd.AddCommand(newCacheHistoryCommand(ctx))

	return cacheCmd
}

// openCache builds a manager over the configured namespace. It never
// fetches, so no search client is attached.
func openCache(ctx *commandContext) (*assetcache.Manager, *assetindex.Index, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	index, err := assetindex.Open(cfg.Cache.IndexPath)
	if err != nil {
		return nil, nil, err
	}
	opts := assetcache.OptionsFromConfig(cfg)
	opts.Recorder = index
	if opts.Logger, err = ctx.ensureLogger(); err != nil {
		_ = index.Close()
		return nil, nil, err
	}
	manager, err := assetcache.NewManager(opts)
	if err != nil {
		_ = index.Close()
		return nil, nil, err
	}
	return manager, index, nil
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list [category]",
		Short: "List cached clips",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, index, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer index.Close()

			category := ""
			if len(args) == 1 {
				category = strings.TrimSpace(args[0])
			}
			files, err := manager.List(category)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, files)
			}
			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintf(out, "No cached clips in %s\n", manager.Dir())
				return nil
			}
			rows := make([][]string, 0, len(files))
			for _, f := range files {
				rows = append(rows, []string{f.Name, f.Category, humanBytes(f.SizeBytes), f.ModifiedAt.Local().Format(stampLayout)})
			}
			fmt.Fprintln(out, renderTable([]string{"File", "Category", "Size", "Modified"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print clips as JSON")
	return cmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache usage per category",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, index, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer index.Close()

			stats, err := manager.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Namespace: %s (%s)\n", stats.Namespace, stats.Dir)
			fmt.Fprintf(out, "Clips:     %d\n", stats.Files)
			fmt.Fprintf(out, "Size:      %s\n", humanBytes(stats.TotalBytes))
			fmt.Fprintf(out, "Disk:      %s free of %s\n", humanBytes(int64(stats.FreeBytes)), humanBytes(int64(stats.TotalFSBytes)))
			if len(stats.Categories) > 0 {
				rows := make([][]string, 0, len(stats.Categories))
				for _, cs := range stats.Categories {
					rows = append(rows, []string{cs.Category, fmt.Sprintf("%d", cs.Files), humanBytes(cs.TotalBytes)})
				}
				fmt.Fprintln(out, renderTable([]string{"Category", "Clips", "Size"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print stats as JSON")
	return cmd
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "prune [category]",
		Short: "Delete cached clips of a category (or --all)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category := ""
			if len(args) == 1 {
				category = strings.TrimSpace(args[0])
			}
			if category == "" && !all {
				return errors.New("name a category or pass --all")
			}
			if category != "" && all {
				return errors.New("--all cannot be combined with a category")
			}

			manager, index, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer index.Close()

			removed, err := manager.Prune(cmd.Context(), category)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if removed == 0 {
				fmt.Fprintln(out, "No cached clips pruned")
				return nil
			}
			fmt.Fprintf(out, "Pruned %d clip(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Prune every category in the namespace")
	return cmd
}

func newCacheHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "history [category]",
		Short: "Show where cached clips came from",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			index, err := assetindex.Open(cfg.Cache.IndexPath)
			if err != nil {
				return err
			}
			defer index.Close()

			category := ""
			if len(args) == 1 {
				category = strings.TrimSpace(args[0])
			}
			entries, err := index.History(cmd.Context(), cfg.Cache.Namespace, category, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No provenance recorded")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				source := e.Title
				if e.Fallback {
					source = "(fallback) " + e.Locator
				}
				rows = append(rows, []string{
					e.FetchedAt.Local().Format(stampLayout),
					e.FileName,
					fmt.Sprintf("%d", e.Score),
					fmt.Sprintf("%.2fs", e.DurationSeconds),
					fmt.Sprintf("%.3f", e.RateFactor),
					source,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Fetched", "File", "Score", "Duration", "Rate", "Source"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight}))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print entries as JSON")
	return cmd
}
