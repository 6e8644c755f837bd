package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"foley/internal/assetcache"
	"foley/internal/assetindex"
	"foley/internal/catalog"
	"foley/internal/compositor"
	"foley/internal/config"
	"foley/internal/logging"
	"foley/internal/planner"
	"foley/internal/services/gemini"
	"foley/internal/services/llm"
	"foley/internal/services/whisperx"
	"foley/internal/services/ytdlp"
)

// Runtime bundles a configured pipeline with the resources it owns.
type Runtime struct {
	Pipeline *Pipeline
	Catalog  *catalog.Catalog
	Cache    *assetcache.Manager
	Index    *assetindex.Index
	Planner  *planner.Planner
}

// Build wires every collaborator from cfg. The caller must Close the runtime.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	cat, err := catalog.Load(cfg.Matcher.CatalogPath)
	if err != nil {
		return nil, err
	}

	index, err := assetindex.Open(cfg.Cache.IndexPath)
	if err != nil {
		return nil, err
	}

	cacheOpts := assetcache.OptionsFromConfig(cfg)
	cacheOpts.Fetcher = ytdlp.New(cfg.Fetch.Binary, ytdlp.WithLogger(logger))
	cacheOpts.Recorder = index
	cacheOpts.Logger = logger
	cacheOpts.NegativeTags = cat.NegativeTags
	cache, err := assetcache.NewManager(cacheOpts)
	if err != nil {
		_ = index.Close()
		return nil, err
	}

	transcriber := whisperx.NewService(whisperx.Config{
		Model:       cfg.Transcription.Model,
		CUDAEnabled: cfg.Transcription.CUDAEnabled,
		VADMethod:   cfg.Transcription.VADMethod,
		HFToken:     cfg.Transcription.HFToken,
		WorkDir:     cfg.Paths.WorkDir,
	}, cfg.FFmpegBinary(), logger)

	rt := &Runtime{Catalog: cat, Cache: cache, Index: index}

	var eventPlanner EventPlanner
	backend, err := NewBackend(ctx, cfg)
	switch {
	case err != nil:
		logging.WarnWithContext(logger, "planner backend unavailable", "planner_backend_unavailable",
			logging.String("provider", cfg.Planner.Provider),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set the provider API key or disable the planner"),
			logging.String(logging.FieldImpact, "events come from the lexical matcher"),
		)
	case backend != nil:
		rt.Planner = planner.New(backend, cat.IDs(), cfg.Planner.MinSpacingSeconds, logger)
		eventPlanner = rt.Planner
	}

	rt.Pipeline = New(cat, transcriber, eventPlanner, cache,
		compositor.New(compositor.OptionsFromConfig(cfg), nil, logger),
		Options{
			GlobalGap:           cfg.Matcher.GlobalGapSeconds,
			PlannerFallback:     cfg.Planner.Fallback,
			Parallel:            cfg.Pipeline.Parallel,
			EmitPartialOnCancel: cfg.Pipeline.EmitPartialOnCancel,
			Language:            cfg.Transcription.Language,
			WorkDir:             cfg.Paths.WorkDir,
			FFmpegBinary:        cfg.FFmpegBinary(),
		}, logger)
	return rt, nil
}

// Close releases the provenance index.
func (r *Runtime) Close() error {
	if r == nil || r.Index == nil {
		return nil
	}
	return r.Index.Close()
}

// NewBackend returns the configured planner backend, or nil when the
// provider has no API key.
func NewBackend(ctx context.Context, cfg *config.Config) (planner.Backend, error) {
	switch cfg.Planner.Provider {
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, nil
		}
		schema, err := planner.ResponseSchema()
		if err != nil {
			return nil, err
		}
		gcfg := gemini.ConfigFrom(cfg.Gemini)
		gcfg.ResponseSchema = schema
		client, err := gemini.New(ctx, gcfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "openrouter":
		llmCfg := cfg.GetLLM()
		if llmCfg.APIKey == "" {
			return nil, nil
		}
		return llm.NewClient(llm.ConfigFrom(llmCfg)), nil
	default:
		return nil, fmt.Errorf("unsupported planner provider %q", cfg.Planner.Provider)
	}
}
