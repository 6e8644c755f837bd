package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"foley/internal/config"
	"foley/internal/logging"
	"foley/internal/services/whisperx"
	"foley/internal/trigger"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var showDecisions bool
	var gap float64

	cmd := &cobra.Command{
		Use:   "match <words.json>",
		Short: "Run the trigger matcher over a word file",
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
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			words, err := whisperx.LoadWords(path)
			if err != nil {
				return fmt.Errorf("load words: %w", err)
			}
			if !cmd.Flags().Changed("gap") {
				gap = cfg.Matcher.GlobalGapSeconds
			}

			logger := logging.NewNop()
			if showDecisions {
				if logger, err = ctx.ensureLogger(); err != nil {
					return err
				}
			}
			matcher := trigger.NewMatcher(cat.Categories, gap, trigger.WithLogger(logger))
			events := matcher.Match(words)
			if jsonOut {
				return writeJSON(cmd, events)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Words: %d  Events: %d  Global gap: %.1fs\n", len(words), len(events), gap)
			printEvents(out, events)
			if showDecisions {
				printDecisions(out, matcher.Decisions())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print events as JSON")
	cmd.Flags().BoolVar(&showDecisions, "decisions", false, "Also list rejected trigger hits")
	cmd.Flags().Float64Var(&gap, "gap", 0, "Override matcher.global_gap_seconds")
	return cmd
}

func printEvents(out io.Writer, events []trigger.Event) {
	if len(events) == 0 {
		fmt.Fprintln(out, "No events")
		return
	}
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		duration := ""
		if ev.Duration > 0 {
			duration = fmt.Sprintf("%.1fs", ev.Duration)
		}
		rows = append(rows, []string{formatSeconds(ev.Start), ev.Category, ev.Word, ev.Trigger, duration})
	}
	fmt.Fprintln(out, renderTable([]string{"Time", "Category", "Word", "Trigger", "Duration"}, rows, []columnAlignment{alignRight}))
}

func printDecisions(out io.Writer, decisions []trigger.Decision) {
	rows := make([][]string, 0, len(decisions))
	for _, d := range decisions {
		wait := ""
		if d.Wait > 0 {
			wait = fmt.Sprintf("%.1fs", d.Wait)
		}
		rows = append(rows, []string{formatSeconds(d.Start), d.Word, d.Category, string(d.Outcome), wait})
	}
	fmt.Fprintln(out, renderTable([]string{"Time", "Word", "Category", "Outcome", "Wait"}, rows, []columnAlignment{alignRight}))
}
