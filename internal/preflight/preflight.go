package preflight

import (
	"context"
	"fmt"

	"foley/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Planner connectivity is only checked when the planner is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Cache namespace and work directory (always checked)
	results = append(results, CheckDirectoryAccess("Cache directory", cfg.NamespaceDir()))
	results = append(results, CheckFreeSpace("Cache free space", cfg.NamespaceDir(), MinFreeBytes))
	results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir))

	if cfg.Paths.OutputDir != "" {
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	}

	for _, status := range CheckSystemDeps(cfg) {
		if status.Optional && !status.Available {
			continue
		}
		detail := status.Command
		if !status.Available {
			detail = status.Detail
		}
		results = append(results, Result{Name: status.Name, Passed: status.Available, Detail: detail})
	}

	if cfg.Planner.Enabled {
		results = append(results, CheckPlanner(ctx, cfg))
	}

	return results
}

// CheckPlanner runs the connectivity check for the configured planner provider.
func CheckPlanner(ctx context.Context, cfg *config.Config) Result {
	switch cfg.Planner.Provider {
	case "gemini":
		return CheckGemini(ctx, "Planner (gemini)", cfg.Gemini)
	case "openrouter":
		return CheckLLM(ctx, "Planner (openrouter)", cfg.GetLLM())
	default:
		return Result{Name: "Planner", Detail: fmt.Sprintf("unsupported provider %q", cfg.Planner.Provider)}
	}
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
