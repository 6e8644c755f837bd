package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"foley/internal/assetcache"
	"foley/internal/catalog"
	"foley/internal/compositor"
	"foley/internal/fileutil"
	"foley/internal/logging"
	"foley/internal/media/audio"
	"foley/internal/media/ffmpeg"
	"foley/internal/services"
	"foley/internal/services/whisperx"
	"foley/internal/textutil"
	"foley/internal/trigger"
)

// Stage names stamped on the context and logs.
const (
	StageTranscription = "transcription"
	StageEvents        = "events"
	StageAssets        = "assets"
	StageCompositing   = "compositing"
)

// Planner fallback modes.
const (
	FallbackLexical = "lexical"
	FallbackNone    = "none"
)

// Transcriber turns a narration file into timed words.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) ([]trigger.Word, error)
}

// EventPlanner derives events from words with a language model.
type EventPlanner interface {
	Plan(ctx context.Context, words []trigger.Word) ([]trigger.Event, error)
}

// Resolver returns an asset for a category.
type Resolver interface {
	Resolve(ctx context.Context, rot *assetcache.Rotation, cat catalog.Category) (assetcache.Asset, error)
}

// Renderer mixes a timeline over a narration and writes the result.
type Renderer interface {
	Render(ctx context.Context, basePath, outPath string, timeline []compositor.Entry) (compositor.Result, error)
}

// Options holds run-independent behaviour.
type Options struct {
	GlobalGap           float64
	PlannerFallback     string
	Parallel            bool
	EmitPartialOnCancel bool
	Language            string
	WorkDir             string
	FFmpegBinary        string
	ConvertRunner       ffmpeg.Runner
}

// Pipeline wires the collaborators of a run.
type Pipeline struct {
	catalog     *catalog.Catalog
	transcriber Transcriber
	planner     EventPlanner
	resolver    Resolver
	renderer    Renderer
	opts        Options
	logger      *slog.Logger
}

// Request describes one invocation.
type Request struct {
	Input  string
	Output string
	// WordsPath skips transcription and loads WhisperX-style JSON instead.
	WordsPath  string
	Language   string
	UsePlanner bool
	Seed       int64
	// Parallel overrides Options.Parallel when set.
	Parallel *bool
	// DryRun stops after event derivation.
	DryRun bool
}

// New builds a pipeline. Planner may be nil when no backend is configured.
func New(cat *catalog.Catalog, transcriber Transcriber, planner EventPlanner, resolver Resolver, renderer Renderer, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.PlannerFallback == "" {
		opts.PlannerFallback = FallbackLexical
	}
	return &Pipeline{
		catalog:     cat,
		transcriber: transcriber,
		planner:     planner,
		resolver:    resolver,
		renderer:    renderer,
		opts:        opts,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
	}
}

// DefaultOutputPath names the mix after the input: {dir}/{stem}_foley.{format}.
func DefaultOutputPath(input, outputDir, format string) string {
	stem := textutil.SanitizeFileName(strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)))
	if format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), "."); format == "" {
		format = string(audio.FormatMP3)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(input)
	}
	return filepath.Join(outputDir, stem+"_foley."+format)
}

// Run executes req. The returned report is populated as far as the run got,
// including on error. Cancellation returns context.Canceled and leaves no
// output unless partial emission is enabled.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	session := NewSession(req.Seed)
	report := &Report{
		RunID:     session.RunID,
		Seed:      session.Seed,
		Input:     req.Input,
		DryRun:    req.DryRun,
		StartedAt: time.Now(),
		Placed:    []Placed{},
		Dropped:   []Dropped{},
	}
	defer func() { report.FinishedAt = time.Now() }()

	ctx = services.WithRunID(ctx, session.RunID)
	logger := logging.WithContext(ctx, p.logger)
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("input", req.Input),
		logging.Int64("seed", session.Seed),
		logging.Bool("planner", req.UsePlanner),
	)

	if strings.TrimSpace(req.Input) == "" && (strings.TrimSpace(req.WordsPath) == "" || !req.DryRun) {
		return report, services.Wrap(services.ErrValidation, "", "run", "input path required", nil)
	}

	words, err := p.words(ctx, req, report)
	if services.Fatal(err) {
		p.logFailure(services.WithStage(ctx, StageTranscription), "transcription failed", err)
		return report, err
	}
	report.Words = len(words)

	events, err := p.events(services.WithStage(ctx, StageEvents), req, words, report)
	if err != nil {
		return report, err
	}
	report.Events = events
	if req.DryRun {
		logger.Info("dry run complete",
			logging.String(logging.FieldEventType, "run_dry"),
			logging.Int("events", len(events)),
		)
		return report, nil
	}

	parallel := p.opts.Parallel
	if req.Parallel != nil {
		parallel = *req.Parallel
	}
	timeline, resolveErr := p.resolve(services.WithStage(ctx, StageAssets), session, events, parallel, report)
	if resolveErr != nil && (!errors.Is(resolveErr, context.Canceled) || !p.opts.EmitPartialOnCancel) {
		logger.Warn("run canceled before compositing",
			logging.String(logging.FieldEventType, "run_canceled"),
			logging.Int("resolved", len(timeline)),
		)
		return report, resolveErr
	}

	renderCtx := ctx
	if resolveErr != nil {
		report.Partial = true
		renderCtx = context.WithoutCancel(ctx)
	}
	if err := p.render(services.WithStage(renderCtx, StageCompositing), req, timeline, report); err != nil {
		p.logFailure(services.WithStage(ctx, StageCompositing), "compositing failed", err)
		return report, err
	}

	logger.Info("run complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("output", report.Output),
		logging.Int("placed", len(report.Placed)),
		logging.Int("dropped", len(report.Dropped)),
		logging.Bool("partial", report.Partial),
	)
	if resolveErr != nil {
		return report, resolveErr
	}
	return report, nil
}

func (p *Pipeline) words(ctx context.Context, req Request, report *Report) ([]trigger.Word, error) {
	if path := strings.TrimSpace(req.WordsPath); path != "" {
		report.Transcript = SourceWords
		words, err := whisperx.LoadWords(path)
		if err != nil {
			return nil, services.Wrap(services.ErrTranscription, StageTranscription, "load words", path, err)
		}
		return words, nil
	}
	report.Transcript = SourceWhisperX
	if p.transcriber == nil {
		return nil, services.Wrap(services.ErrTranscription, StageTranscription, "transcribe", "no transcriber configured", nil)
	}
	language := req.Language
	if language == "" {
		language = p.opts.Language
	}
	words, err := p.transcriber.Transcribe(services.WithStage(ctx, StageTranscription), req.Input, language)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, services.ErrTranscription) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrTranscription, StageTranscription, "transcribe", req.Input, err)
	}
	return words, nil
}

// events runs the planner when requested and falls back per configuration;
// otherwise it runs the lexical matcher.
func (p *Pipeline) events(ctx context.Context, req Request, words []trigger.Word, report *Report) ([]trigger.Event, error) {
	logger := logging.WithContext(ctx, p.logger)
	if req.UsePlanner {
		if p.planner == nil {
			report.PlannerError = "planner not configured"
		} else {
			events, err := p.planner.Plan(ctx, words)
			if err == nil {
				report.EventSource = SourcePlanner
				return p.knownEvents(ctx, events, report), nil
			}
			if services.Fatal(err) {
				return nil, err
			}
			report.PlannerError = err.Error()
		}
		attrs := []logging.Attr{
			logging.String("fallback", p.opts.PlannerFallback),
			logging.String("reason", report.PlannerError),
			logging.String(logging.FieldErrorHint, "check planner credentials with foley status"),
		}
		if p.opts.PlannerFallback == FallbackNone {
			attrs = append(attrs, logging.String(logging.FieldImpact, "no effects will be placed"))
			logging.WarnWithContext(logger, "planner unavailable", "planner_failed", attrs...)
			report.EventSource = FallbackNone
			return []trigger.Event{}, nil
		}
		attrs = append(attrs, logging.String(logging.FieldImpact, "effects placed by the lexical matcher"))
		logging.WarnWithContext(logger, "planner unavailable", "planner_failed", attrs...)
	}

	report.EventSource = SourceLexical
	matcher := trigger.NewMatcher(p.catalog.Categories, p.opts.GlobalGap, trigger.WithLogger(logger))
	events := matcher.Match(words)
	if events == nil {
		events = []trigger.Event{}
	}
	logger.Info("events matched",
		logging.String(logging.FieldEventType, "events_matched"),
		logging.Int("words", len(words)),
		logging.Int("events", len(events)),
		logging.Int("decisions", len(matcher.Decisions())),
	)
	return events, nil
}

// knownEvents drops planner events whose category is not in the catalog.
func (p *Pipeline) knownEvents(ctx context.Context, events []trigger.Event, report *Report) []trigger.Event {
	kept := make([]trigger.Event, 0, len(events))
	for _, ev := range events {
		if _, ok := p.catalog.Lookup(ev.Category); ok {
			kept = append(kept, ev)
			continue
		}
		err := services.Wrap(services.ErrPlanner, StageEvents, "lookup", fmt.Sprintf("unknown category %q", ev.Category), nil)
		p.logDrop(ctx, report.drop(ev.Category, ev.Start, err), err)
	}
	return kept
}

func (p *Pipeline) render(ctx context.Context, req Request, timeline []compositor.Entry, report *Report) error {
	if p.renderer == nil {
		return services.Wrap(services.ErrCompositing, StageCompositing, "render", "no renderer configured", nil)
	}
	out := req.Output
	if out == "" {
		out = DefaultOutputPath(req.Input, "", "")
	}
	base, cleanup, err := p.baseAudio(ctx, req.Input)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := p.renderer.Render(ctx, base, out, timeline)
	for _, skipped := range result.Skipped {
		at := float64(skipped.Entry.PositionMS) / 1000
		p.logDrop(ctx, report.drop(skipped.Entry.Category, at, skipped.Err), skipped.Err)
		report.unplace(skipped.Entry)
	}
	if err != nil {
		return err
	}
	report.Output = result.OutputPath
	report.DurationMS = result.DurationMS
	return nil
}

// baseAudio returns a path the compositor can decode, converting other
// containers to WAV with ffmpeg.
func (p *Pipeline) baseAudio(ctx context.Context, input string) (string, func(), error) {
	if _, err := audio.FormatFromPath(input); err == nil {
		return input, func() {}, nil
	}
	dir := p.opts.WorkDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, services.Wrap(services.ErrCompositing, StageCompositing, "prepare narration", dir, err)
	}
	wav := fileutil.TempPath(dir, ".wav")
	cleanup := func() { _ = os.Remove(wav) }
	if err := ffmpeg.ToWAV(ctx, p.opts.ConvertRunner, p.opts.FFmpegBinary, input, wav, 0, 0); err != nil {
		cleanup()
		return "", nil, services.Wrap(services.ErrCompositing, StageCompositing, "convert narration", input, err)
	}
	return wav, cleanup, nil
}

func (p *Pipeline) logDrop(ctx context.Context, d Dropped, err error) {
	logger := logging.WithContext(services.WithCategory(ctx, d.Category), p.logger)
	attrs := []logging.Attr{
		logging.Float64("time", d.Time),
		logging.String("kind", string(d.Kind)),
		logging.Error(err),
	}
	if services.Expected(err) {
		logging.WarnWithContext(logger, "event dropped", "event_dropped", append(attrs, logging.String(logging.FieldErrorHint, hintFor(d.Kind)))...)
		return
	}
	logging.ErrorWithContext(logger, "event dropped", "event_dropped", attrs...)
}

func (p *Pipeline) logFailure(ctx context.Context, msg string, err error) {
	logger := logging.WithContext(ctx, p.logger)
	if errors.Is(err, context.Canceled) {
		logger.Warn(msg, logging.String(logging.FieldEventType, "run_canceled"), logging.Error(err))
		return
	}
	logging.ErrorWithContext(logger, msg, "run_failed",
		logging.String("kind", string(services.Classify(err))),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hintFor(services.Classify(err))),
	)
}

func hintFor(kind services.FailureKind) string {
	switch kind {
	case services.KindTranscription:
		return "check uvx, ffmpeg and the WhisperX model, or pass --words"
	case services.KindPlanner:
		return "check the planner response or category list"
	case services.KindAssetFetch:
		return "check yt-dlp and network access, or seed the cache manually"
	case services.KindQualityGate:
		return "clip rejected by quality bounds; relax [quality] or try again"
	case services.KindCompositing:
		return "inspect the cached clip; foley cache prune removes it"
	default:
		return "check logs for details"
	}
}

func positionMS(seconds float64) int {
	return int(math.Round(seconds * 1000))
}
