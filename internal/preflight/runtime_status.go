package preflight

import (
	"context"
	"strings"

	"foley/internal/config"
)

// PlannerStatusFromConfig evaluates planner readiness for status output
// without failing when the planner is disabled.
func PlannerStatusFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Planner"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Planner.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled (lexical matcher)"}
	}
	switch cfg.Planner.Provider {
	case "gemini":
		if strings.TrimSpace(cfg.Gemini.APIKey) == "" {
			return Result{Name: name, Detail: "Missing Gemini API key"}
		}
	case "openrouter":
		if strings.TrimSpace(cfg.LLM.APIKey) == "" {
			return Result{Name: name, Detail: "Missing OpenRouter API key"}
		}
	}
	check := CheckPlanner(ctx, cfg)
	check.Name = name
	return check
}
