package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"foley/internal/assetcache"
	"foley/internal/catalog"
	"foley/internal/compositor"
	"foley/internal/config"
	"foley/internal/media/audio"
	"foley/internal/services"
	"foley/internal/trigger"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Category{
		{ID: "door_open", Triggers: []string{"door"}, Search: "door creak", VolumeDB: -5, CooldownSeconds: 10},
		{ID: "knock", Triggers: []string{"knock"}, Search: "door knock", VolumeDB: -3, CooldownSeconds: 5},
	}, nil)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return cat
}

var storyWords = []trigger.Word{
	{Text: "the", Start: 0.2},
	{Text: "door", Start: 1.0},
	{Text: "then", Start: 3.0},
	{Text: "knocked", Start: 6.0},
	{Text: "door", Start: 8.0},
	{Text: "door", Start: 12.5},
}

type fakeTranscriber struct {
	words []trigger.Word
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(context.Context, string, string) ([]trigger.Word, error) {
	f.calls++
	return f.words, f.err
}

type fakePlanner struct {
	events []trigger.Event
	err    error
}

func (f *fakePlanner) Plan(context.Context, []trigger.Word) ([]trigger.Event, error) {
	return f.events, f.err
}

type fakeResolver struct {
	mu       sync.Mutex
	errs     map[string]error
	calls    []string
	onCall   func(n int)
	counters map[string]int
}

func (f *fakeResolver) Resolve(_ context.Context, _ *assetcache.Rotation, cat catalog.Category) (assetcache.Asset, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cat.ID)
	n := len(f.calls)
	if f.counters == nil {
		f.counters = map[string]int{}
	}
	f.counters[cat.ID]++
	pos := f.counters[cat.ID]
	err := f.errs[cat.ID]
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(n)
	}
	if err != nil {
		return assetcache.Asset{}, err
	}
	return assetcache.Asset{Category: cat.ID, Path: "/cache/" + cat.ID + ".mp3", Position: pos, Cached: pos > 1}, nil
}

type fakeRenderer struct {
	called   bool
	timeline []compositor.Entry
	out      string
	skip     map[string]error
	err      error
}

func (f *fakeRenderer) Render(_ context.Context, _, outPath string, timeline []compositor.Entry) (compositor.Result, error) {
	f.called = true
	f.timeline = timeline
	f.out = outPath
	res := compositor.Result{OutputPath: outPath, DurationMS: 15000}
	for _, e := range timeline {
		if err, ok := f.skip[e.Category]; ok {
			res.Skipped = append(res.Skipped, compositor.Skipped{Entry: e, Err: err})
		}
	}
	res.Overlays = len(timeline) - len(res.Skipped)
	if f.err != nil {
		return compositor.Result{Skipped: res.Skipped}, f.err
	}
	return res, nil
}

func newTestPipeline(t *testing.T, tr Transcriber, pl EventPlanner, res Resolver, rend Renderer, opts Options) *Pipeline {
	t.Helper()
	if opts.GlobalGap == 0 {
		opts.GlobalGap = 2
	}
	return New(testCatalog(t), tr, pl, res, rend, opts, nil)
}

func TestRunPlacesEventsInOrder(t *testing.T) {
	resolver := &fakeResolver{}
	renderer := &fakeRenderer{}
	p := newTestPipeline(t, &fakeTranscriber{words: storyWords}, nil, resolver, renderer, Options{})

	report, err := p.Run(context.Background(), Request{Input: "/stories/tale.wav", Seed: 7})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.EventSource != SourceLexical || report.Transcript != SourceWhisperX || report.Seed != 7 {
		t.Fatalf("unexpected report header %+v", report)
	}
	// door@1, knock@6, door@12.5 (door@8 is inside the 10 s cooldown).
	wantCats := []string{"door_open", "knock", "door_open"}
	wantPos := []int{1000, 6000, 12500}
	if len(renderer.timeline) != len(wantCats) {
		t.Fatalf("timeline = %+v", renderer.timeline)
	}
	for i, e := range renderer.timeline {
		if e.Category != wantCats[i] || e.PositionMS != wantPos[i] {
			t.Errorf("entry %d = %+v", i, e)
		}
	}
	if renderer.timeline[0].VolumeDB != -5 || renderer.timeline[1].VolumeDB != -3 {
		t.Errorf("volumes not taken from catalog: %+v", renderer.timeline)
	}
	if renderer.out != filepath.Join("/stories", "tale_foley.mp3") || report.Output != renderer.out {
		t.Errorf("unexpected output %q / %q", renderer.out, report.Output)
	}
	if len(report.Placed) != 3 || report.CacheHits != 1 || report.FreshDownloads != 2 {
		t.Errorf("unexpected placement summary %+v", report)
	}
	if len(report.Dropped) != 0 {
		t.Errorf("unexpected drops %+v", report.Dropped)
	}
}

func TestRunDropsFailedEventsAndContinues(t *testing.T) {
	resolver := &fakeResolver{errs: map[string]error{
		"knock": services.Wrap(services.ErrQualityGate, StageAssets, "gate", "too short", nil),
	}}
	renderer := &fakeRenderer{}
	p := newTestPipeline(t, &fakeTranscriber{words: storyWords}, nil, resolver, renderer, Options{})

	report, err := p.Run(context.Background(), Request{Input: "tale.wav", Output: "out.wav"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(renderer.timeline) != 2 {
		t.Fatalf("expected two entries, got %+v", renderer.timeline)
	}
	if len(report.Dropped) != 1 {
		t.Fatalf("expected one drop, got %+v", report.Dropped)
	}
	d := report.Dropped[0]
	if d.Category != "knock" || d.Time != 6.0 || d.Kind != services.KindQualityGate || !strings.Contains(d.Reason, "too short") {
		t.Fatalf("unexpected drop %+v", d)
	}
	if report.DroppedByKind()[services.KindQualityGate] != 1 {
		t.Fatalf("unexpected counts %v", report.DroppedByKind())
	}
}

func TestRunTranscriptionFailureIsFatal(t *testing.T) {
	renderer := &fakeRenderer{}
	p := newTestPipeline(t, &fakeTranscriber{err: errors.New("uvx exploded")}, nil, &fakeResolver{}, renderer, Options{})

	_, err := p.Run(context.Background(), Request{Input: "tale.wav"})
	if !errors.Is(err, services.ErrTranscription) || !services.Fatal(err) {
		t.Fatalf("expected fatal transcription error, got %v", err)
	}
	if renderer.called {
		t.Fatal("renderer must not run after transcription failure")
	}
}

func TestRunLoadsWordsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.json")
	data, _ := json.Marshal(storyWords)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	tr := &fakeTranscriber{}
	renderer := &fakeRenderer{}
	p := newTestPipeline(t, tr, nil, &fakeResolver{}, renderer, Options{})

	report, err := p.Run(context.Background(), Request{Input: "tale.wav", WordsPath: path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr.calls != 0 || report.Transcript != SourceWords || report.Words != len(storyWords) {
		t.Fatalf("words file not used: calls=%d report=%+v", tr.calls, report)
	}
	if len(renderer.timeline) != 3 {
		t.Fatalf("unexpected timeline %+v", renderer.timeline)
	}
}

func TestRunPlannerEvents(t *testing.T) {
	planner := &fakePlanner{events: []trigger.Event{
		{Category: "knock", Start: 2.5, Duration: 0.8},
		{Category: "thunder", Start: 4},
		{Category: "door_open", Start: 9},
	}}
	renderer := &fakeRenderer{}
	p := newTestPipeline(t, &fakeTranscriber{words: storyWords}, planner, &fakeResolver{}, renderer, Options{})

	report, err := p.Run(context.Background(), Request{Input: "tale.wav", UsePlanner: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.EventSource != SourcePlanner {
		t.Fatalf("expected planner source, got %q", report.EventSource)
	}
	if len(renderer.timeline) != 2 || renderer.timeline[0].TargetMS != 800 || renderer.timeline[1].TargetMS != 0 {
		t.Fatalf("unexpected timeline %+v", renderer.timeline)
	}
	if len(report.Dropped) != 1 || report.Dropped[0].Category != "thunder" || report.Dropped[0].Kind != services.KindPlanner {
		t.Fatalf("unknown category should be dropped as planner failure, got %+v", report.Dropped)
	}
}

func TestRunPlannerFallback(t *testing.T) {
	failing := &fakePlanner{err: services.Wrap(services.ErrPlanner, "planner", "parse", "", errors.New("no json"))}

	renderer := &fakeRenderer{}
	p := newTestPipeline(t, &fakeTranscriber{words: storyWords}, failing, &fakeResolver{}, renderer, Options{PlannerFallback: FallbackLexical})
	report, err := p.Run(context.Background(), Request{Input: "tale.wav", UsePlanner: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.EventSource != SourceLexical || report.PlannerError == "" || len(renderer.timeline) != 3 {
		t.Fatalf("expected lexical fallback, got %+v", report)
	}

	renderer = &fakeRenderer{}
	p = newTestPipeline(t, &fakeTranscriber{words: storyWords}, failing, &fakeResolver{}, renderer, Options{PlannerFallback: FallbackNone})
	report, err = p.Run(context.Background(), Request{Input: "tale.wav", UsePlanner: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.EventSource != FallbackNone || len(report.Events) != 0 || !renderer.called || len(renderer.timeline) != 0 {
		t.Fatalf("expected empty mix, got %+v timeline=%+v", report, renderer.timeline)
	}
}

func TestRunParallelMatchesSequential(t *testing.T) {
	words := []trigger.Word{}
	for i := 0; i < 8; i++ {
		words = append(words, trigger.Word{Text: "door", Start: float64(i * 11)}, trigger.Word{Text: "knock", Start: float64(i*11 + 5)})
	}
	run := func(parallel bool) []compositor.Entry {
		renderer := &fakeRenderer{}
		p := newTestPipeline(t, &fakeTranscriber{words: words}, nil, &fakeResolver{}, renderer, Options{Parallel: parallel})
		if _, err := p.Run(context.Background(), Request{Input: "tale.wav"}); err != nil {
			t.Fatalf("Run(parallel=%v): %v", parallel, err)
		}
		return renderer.timeline
	}
	seq, par := run(false), run(true)
	if len(seq) != 16 || len(par) != len(seq) {
		t.Fatalf("unexpected lengths %d %d", len(seq), len(par))
	}
	for i := range seq {
		if seq[i] != par[i] {
			t.Fatalf("entry %d differs: %+v vs %+v", i, seq[i], par[i])
		}
	}
}

func TestRunAbortsOnFatalResolveError(t *testing.T) {
	resolver := &fakeResolver{errs: map[string]error{
		"knock": services.Wrap(services.ErrAssetUnavailable, StageAssets, "fetch", "knock", context.Canceled),
	}}
	renderer := &fakeRenderer{}
	p := newTestPipeline(t, &fakeTranscriber{words: storyWords}, nil, resolver, renderer, Options{})

	report, err := p.Run(context.Background(), Request{Input: "tale.wav", Output: "out.wav"})
	if !errors.Is(err, context.Canceled) || !services.Fatal(err) {
		t.Fatalf("expected fatal cancellation, got %v", err)
	}
	if renderer.called {
		t.Fatal("renderer must not run after a fatal resolve error")
	}
	if len(report.Dropped) != 0 {
		t.Fatalf("fatal errors must not be recorded as drops, got %+v", report.Dropped)
	}
}

func TestRunCanceledWritesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	resolver := &fakeResolver{onCall: func(int) { cancel() }}
	renderer := &fakeRenderer{}
	p := newTestPipeline(t, &fakeTranscriber{words: storyWords}, nil, resolver, renderer, Options{})

	_, err := p.Run(ctx, Request{Input: "tale.wav"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if renderer.called {
		t.Fatal("no output may be written on cancellation")
	}
	if len(resolver.calls) != 1 {
		t.Fatalf("resolution must stop between events, got %v", resolver.calls)
	}
}

func TestRunCanceledEmitsPartialWhenEnabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	resolver := &fakeResolver{onCall: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	renderer := &fakeRenderer{}
	p := newTestPipeline(t, &fakeTranscriber{words: storyWords}, nil, resolver, renderer, Options{EmitPartialOnCancel: true})

	report, err := p.Run(ctx, Request{Input: "tale.wav"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !renderer.called || len(renderer.timeline) != 2 || !report.Partial || report.Output == "" {
		t.Fatalf("expected partial mix of resolved events, got %+v timeline=%+v", report, renderer.timeline)
	}
}

func TestRunSkippedOverlayBecomesDrop(t *testing.T) {
	renderer := &fakeRenderer{skip: map[string]error{
		"knock": services.Wrap(services.ErrCompositing, StageCompositing, "decode", "bad clip", nil),
	}}
	p := newTestPipeline(t, &fakeTranscriber{words: storyWords}, nil, &fakeResolver{}, renderer, Options{})

	report, err := p.Run(context.Background(), Request{Input: "tale.wav"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Dropped) != 1 || report.Dropped[0].Kind != services.KindCompositing || report.Dropped[0].Time != 6 {
		t.Fatalf("unexpected drops %+v", report.Dropped)
	}
	if len(report.Placed) != 2 {
		t.Fatalf("skipped overlay must leave placements, got %+v", report.Placed)
	}
}

func TestRunDryRunStopsBeforeResolution(t *testing.T) {
	resolver := &fakeResolver{}
	renderer := &fakeRenderer{}
	p := newTestPipeline(t, &fakeTranscriber{words: storyWords}, nil, resolver, renderer, Options{})

	report, err := p.Run(context.Background(), Request{Input: "tale.wav", DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Events) != 3 || len(resolver.calls) != 0 || renderer.called {
		t.Fatalf("dry run did too much: %+v", report)
	}
}

func TestRunRequiresInput(t *testing.T) {
	p := newTestPipeline(t, &fakeTranscriber{}, nil, &fakeResolver{}, &fakeRenderer{}, Options{})
	if _, err := p.Run(context.Background(), Request{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDefaultOutputPath(t *testing.T) {
	cases := []struct {
		input, dir, format, want string
	}{
		{"/a/story.m4a", "", "", "/a/story_foley.mp3"},
		{"/a/story.wav", "/out", "wav", "/out/story_foley.wav"},
		{"story.mp3", "/out", ".MP3", "/out/story_foley.mp3"},
		{"/a/part 1: intro?.wav", "", "", "/a/part 1- intro_foley.mp3"},
	}
	for _, tc := range cases {
		if got := DefaultOutputPath(tc.input, tc.dir, tc.format); got != filepath.FromSlash(tc.want) {
			t.Errorf("DefaultOutputPath(%q, %q, %q) = %q, want %q", tc.input, tc.dir, tc.format, got, tc.want)
		}
	}
}

func TestNewSession(t *testing.T) {
	a, b := NewSession(42), NewSession(0)
	if a.Seed != 42 || b.Seed == 0 || a.RunID == "" || a.RunID == b.RunID {
		t.Fatalf("unexpected sessions %+v %+v", a, b)
	}
	if a.Rotation.Last("door_open") != -1 {
		t.Fatal("rotation must start fresh")
	}
}

func tone(durationMS int, freq float64) *audio.Segment {
	const rate = 44100
	seg := audio.Silent(durationMS, rate, 1)
	for i := range seg.Channels[0] {
		seg.Channels[0][i] = 0.4 * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return seg
}

func TestRunEndToEndWithCachedAssets(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache", "story")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"door_open_1.mp3", "knock_1.mp3"} {
		if err := audio.Encode(filepath.Join(cacheDir, name), tone(600, 880)); err != nil {
			t.Fatalf("encode clip: %v", err)
		}
	}
	narration := filepath.Join(dir, "tale.wav")
	if err := audio.Encode(narration, tone(10000, 220)); err != nil {
		t.Fatalf("encode narration: %v", err)
	}

	manager, err := assetcache.NewManager(assetcache.Options{Dir: cacheDir, Namespace: "story"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	p := New(testCatalog(t), &fakeTranscriber{words: storyWords}, nil, manager,
		compositor.New(compositor.DefaultOptions(), nil, nil), Options{GlobalGap: 2}, nil)

	out := filepath.Join(dir, "out", "tale_foley.wav")
	report, err := p.Run(context.Background(), Request{Input: narration, Output: out})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.CacheHits != 3 || len(report.Dropped) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	mix, err := audio.Decode(out)
	if err != nil {
		t.Fatalf("decode mix: %v", err)
	}
	// The last door effect starts at 12.5 s, past the 10 s narration.
	if mix.DurationMS() < 12500 {
		t.Fatalf("mix must extend past the narration, got %d ms", mix.DurationMS())
	}
}

func TestBuildWiresRuntime(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.CacheDir = filepath.Join(dir, "cache")
	cfg.Paths.WorkDir = filepath.Join(dir, "work")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Cache.IndexPath = filepath.Join(dir, "cache", "index.db")

	rt, err := Build(context.Background(), &cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()
	if rt.Pipeline == nil || rt.Cache == nil || rt.Index == nil || rt.Catalog.Len() == 0 {
		t.Fatalf("incomplete runtime %+v", rt)
	}
	if rt.Planner != nil {
		t.Fatal("planner must stay nil without an API key")
	}
	if rt.Cache.Dir() != cfg.NamespaceDir() {
		t.Fatalf("cache dir %q, want %q", rt.Cache.Dir(), cfg.NamespaceDir())
	}
}

func TestNewBackendSelectsProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Planner.Provider = "openrouter"
	if b, err := NewBackend(context.Background(), &cfg); err != nil || b != nil {
		t.Fatalf("expected nil backend without key, got %v %v", b, err)
	}
	cfg.LLM.APIKey = "k"
	if b, err := NewBackend(context.Background(), &cfg); err != nil || b == nil {
		t.Fatalf("expected openrouter backend, got %v %v", b, err)
	}
	cfg.Planner.Provider = "gemini"
	cfg.Gemini.APIKey = "k"
	if b, err := NewBackend(context.Background(), &cfg); err != nil || b == nil {
		t.Fatalf("expected gemini backend, got %v %v", b, err)
	}
	cfg.Planner.Provider = "bogus"
	if _, err := NewBackend(context.Background(), &cfg); err == nil {
		t.Fatal("expected unsupported provider error")
	}
}
