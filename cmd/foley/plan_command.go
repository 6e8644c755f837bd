package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"foley/internal/config"
	"foley/internal/pipeline"
	"foley/internal/planner"
	"foley/internal/services/whisperx"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var promptOnly bool
	var schemaOnly bool

	cmd := &cobra.Command{
		Use:   "plan [words.json]",
		Short: "Ask the language-model planner for cues over a word file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if schemaOnly {
				schema, err := planner.ResponseSchemaJSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, schema)
				return nil
			}
			if len(args) == 0 {
				return errors.New("a word file is required unless --schema is set")
			}

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

			if promptOnly {
				fmt.Fprintln(out, planner.SystemPrompt)
				fmt.Fprintln(out)
				fmt.Fprint(out, planner.BuildPrompt(words, cat.IDs()))
				return nil
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			backend, err := pipeline.NewBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if backend == nil {
				return fmt.Errorf("planner provider %q has no API key configured", cfg.Planner.Provider)
			}
			events, err := planner.New(backend, cat.IDs(), cfg.Planner.MinSpacingSeconds, logger).Plan(cmd.Context(), words)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, events)
			}
			fmt.Fprintf(out, "Provider: %s  Cues: %d\n", cfg.Planner.Provider, len(events))
			printEvents(out, events)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print cues as JSON")
	cmd.Flags().BoolVar(&promptOnly, "prompt", false, "Print the prompts instead of calling the planner")
	cmd.Flags().BoolVar(&schemaOnly, "schema", false, "Print the response JSON schema")
	return cmd
}
