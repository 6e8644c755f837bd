package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"foley/internal/config"
	"foley/internal/pipeline"
	"foley/internal/preflight"
)

type runFlags struct {
	output        string
	planner       bool
	seed          int64
	parallel      bool
	language      string
	words         string
	dryRun        bool
	jsonOut       bool
	reportPath    string
	skipPreflight bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <narration>",
		Short: "Transcribe a narration, place sound effects and export the mix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			input, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if !flags.skipPreflight && !flags.dryRun {
				if failed := runPreflight(cmd, cfg, flags.words != ""); len(failed) > 0 {
					return fmt.Errorf("preflight failed: %s (use --skip-preflight to override)", failedNames(failed))
				}
			}

			rt, err := pipeline.Build(signalCtx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			req := pipeline.Request{
				Input:      input,
				Output:     flags.output,
				WordsPath:  flags.words,
				Language:   flags.language,
				UsePlanner: cfg.Planner.Enabled || flags.planner,
				Seed:       cfg.Decorrelate.Seed,
				DryRun:     flags.dryRun,
			}
			if cmd.Flags().Changed("seed") {
				req.Seed = flags.seed
			}
			if cmd.Flags().Changed("parallel") {
				req.Parallel = &flags.parallel
			}
			if req.Output == "" {
				req.Output = pipeline.DefaultOutputPath(input, cfg.Paths.OutputDir, cfg.Mix.OutputFormat)
			} else if req.Output, err = config.ExpandPath(req.Output); err != nil {
				return err
			}
			if req.WordsPath != "" {
				if req.WordsPath, err = config.ExpandPath(req.WordsPath); err != nil {
					return err
				}
			}

			report, runErr := rt.Pipeline.Run(signalCtx, req)
			if report != nil && flags.reportPath != "" {
				if err := report.WriteJSON(flags.reportPath); err != nil {
					return errors.Join(runErr, fmt.Errorf("write report: %w", err))
				}
			}
			if report != nil {
				if flags.jsonOut {
					if err := writeJSON(cmd, report); err != nil {
						return err
					}
				} else {
					printReport(cmd.OutOrStdout(), report)
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file (default {output_dir}/{name}_foley.mp3)")
	cmd.Flags().BoolVar(&flags.planner, "planner", false, "Derive events with the language-model planner")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "Seed for the decorrelation transform (0 picks one)")
	cmd.Flags().BoolVar(&flags.parallel, "parallel", false, "Resolve categories concurrently")
	cmd.Flags().StringVar(&flags.language, "language", "", "Transcription language hint (default transcription.language)")
	cmd.Flags().StringVar(&flags.words, "words", "", "Use a WhisperX JSON word file instead of transcribing")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Stop after event matching")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "Print the run report as JSON")
	cmd.Flags().StringVar(&flags.reportPath, "report", "", "Also write the run report as JSON to this path")
	cmd.Flags().BoolVar(&flags.skipPreflight, "skip-preflight", false, "Skip dependency and directory checks")
	return cmd
}

// runPreflight prints and returns the failed checks. The uvx check is
// ignored when a word file replaces transcription.
func runPreflight(cmd *cobra.Command, cfg *config.Config, haveWords bool) []preflight.Result {
	var failed []preflight.Result
	for _, r := range preflight.Failed(preflight.RunAll(cmd.Context(), cfg)) {
		if haveWords && r.Name == "uvx" {
			continue
		}
		failed = append(failed, r)
	}
	colorize := shouldColorize(cmd.ErrOrStderr())
	for _, r := range failed {
		fmt.Fprintln(cmd.ErrOrStderr(), resultLine(r, statusError, colorize))
	}
	return failed
}

func failedNames(results []preflight.Result) string {
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}

func printReport(out io.Writer, report *pipeline.Report) {
	fmt.Fprintf(out, "Run:      %s (seed %d)\n", report.RunID, report.Seed)
	fmt.Fprintf(out, "Input:    %s\n", report.Input)
	fmt.Fprintf(out, "Words:    %d (%s)\n", report.Words, report.Transcript)
	source := report.EventSource
	if report.PlannerError != "" {
		source = fmt.Sprintf("%s (planner failed: %s)", source, report.PlannerError)
	}
	fmt.Fprintf(out, "Events:   %d from %s\n", len(report.Events), source)

	if report.DryRun {
		printEvents(out, report.Events)
		return
	}

	fmt.Fprintf(out, "Placed:   %d (%d cached, %d downloaded)\n", len(report.Placed), report.CacheHits, report.FreshDownloads)
	if len(report.Placed) > 0 {
		rows := make([][]string, 0, len(report.Placed))
		for _, p := range report.Placed {
			rows = append(rows, []string{formatSeconds(p.Start), p.Category, p.Word, filepath.Base(p.AssetPath), yesNo(p.Cached)})
		}
		fmt.Fprintln(out, renderTable([]string{"Time", "Category", "Word", "Asset", "Cached"}, rows, []columnAlignment{alignRight}))
	}
	if len(report.Dropped) > 0 {
		fmt.Fprintf(out, "Dropped:  %d\n", len(report.Dropped))
		rows := make([][]string, 0, len(report.Dropped))
		for _, d := range report.Dropped {
			rows = append(rows, []string{formatSeconds(d.Time), d.Category, string(d.Kind), d.Reason})
		}
		fmt.Fprintln(out, renderTable([]string{"Time", "Category", "Kind", "Reason"}, rows, []columnAlignment{alignRight}))
	}
	if report.Output != "" {
		label := "Output:"
		if report.Partial {
			label = "Partial:"
		}
		fmt.Fprintf(out, "%-9s %s\n", label, report.Output)
	}
}
