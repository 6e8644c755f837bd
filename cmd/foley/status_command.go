package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"foley/internal/language"
	"foley/internal/preflight"
	"foley/internal/services/gemini"
)

const statusProbeTimeout = 15 * time.Second

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var listModels bool
	var skipPlanner bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration, dependency and planner health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var lines []string
			lines = append(lines, renderSectionHeader("Configuration", colorize)...)
			configPath := ctx.configPath
			if configPath == "" {
				configPath = "(defaults)"
			}
			lines = append(lines,
				renderStatusLine("Config", statusInfo, configPath, colorize),
				renderStatusLine("Namespace", statusInfo, cfg.Cache.Namespace, colorize),
				renderStatusLine("Catalog", statusInfo, catalogLabel(cfg.Matcher.CatalogPath), colorize),
				renderStatusLine("Language", statusInfo, fmt.Sprintf("%s (%s)", language.DisplayName(cfg.Transcription.Language), cfg.Transcription.Language), colorize),
				renderStatusLine("Planner enabled", statusInfo, yesNo(cfg.Planner.Enabled), colorize),
				renderStatusLine("Parallel fetch", statusInfo, yesNo(cfg.Pipeline.Parallel), colorize),
			)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Directories", colorize)...)
			lines = append(lines,
				resultLine(preflight.CheckDirectoryAccess("Cache", cfg.NamespaceDir()), statusError, colorize),
				resultLine(preflight.CheckFreeSpace("Cache free space", cfg.NamespaceDir(), preflight.MinFreeBytes), statusWarn, colorize),
				resultLine(preflight.CheckDirectoryAccess("Work", cfg.Paths.WorkDir), statusError, colorize),
				resultLine(preflight.CheckDirectoryAccess("Logs", cfg.Paths.LogDir), statusWarn, colorize),
			)
			if cfg.Paths.OutputDir != "" {
				lines = append(lines, resultLine(preflight.CheckDirectoryAccess("Output", cfg.Paths.OutputDir), statusError, colorize))
			}

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(preflight.CheckSystemDeps(cfg), colorize)...)

			if !skipPlanner {
				probeCtx, cancel := context.WithTimeout(cmd.Context(), statusProbeTimeout)
				planner := preflight.PlannerStatusFromConfig(probeCtx, cfg)
				cancel()
				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Planner", colorize)...)
				lines = append(lines, resultLine(planner, statusWarn, colorize))
			}

			fmt.Fprintln(out, strings.Join(lines, "\n"))

			if listModels {
				return printGeminiModels(cmd, ctx)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&listModels, "models", false, "List Gemini models that support generateContent")
	cmd.Flags().BoolVar(&skipPlanner, "offline", false, "Skip the planner connectivity check")
	return cmd
}

func catalogLabel(path string) string {
	if strings.TrimSpace(path) == "" {
		return "built-in"
	}
	return path
}

func printGeminiModels(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	probeCtx, cancel := context.WithTimeout(cmd.Context(), statusProbeTimeout)
	defer cancel()

	client, err := gemini.New(probeCtx, gemini.ConfigFrom(cfg.Gemini))
	if err != nil {
		return fmt.Errorf("gemini client: %w", err)
	}
	models, err := client.ListModels(probeCtx)
	if err != nil {
		return fmt.Errorf("list gemini models: %w", err)
	}
	rows := make([][]string, 0, len(models))
	for _, m := range models {
		marker := ""
		if m.Name == client.Model() {
			marker = "*"
		}
		rows = append(rows, []string{marker, m.Name, m.DisplayName})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable([]string{"", "Model", "Display name"}, rows, nil))
	return nil
}
