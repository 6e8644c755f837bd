package assetcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"foley/internal/assetindex"
	"foley/internal/catalog"
	"foley/internal/config"
	"foley/internal/fileutil"
	"foley/internal/logging"
	"foley/internal/media/audio"
	"foley/internal/media/ffprobe"
	"foley/internal/scoring"
	"foley/internal/services"
)

const (
	searchSuffix      = " sound effect no copyright"
	fallbackTemplate  = "ytsearch1:%s sound effect short no copyright"
	stageName         = "asset"
	defaultSampleRate = 44100
	staleTempMargin   = 10 * time.Minute
	defaultStaleAfter = time.Hour
)

// Constraints are the download limits handed to the fetcher.
type Constraints struct {
	MaxFileSizeBytes   int64
	MaxDurationSeconds int
}

// Fetcher searches for and downloads candidate clips.
type Fetcher interface {
	Search(ctx context.Context, query string, limit int) ([]scoring.Candidate, error)
	// Fetch downloads locator to destStem plus an extension of the fetcher's
	// choosing and returns the produced path.
	Fetch(ctx context.Context, locator, destStem string, limits Constraints) (string, error)
}

// Recorder persists provenance for admitted clips.
type Recorder interface {
	Record(ctx context.Context, entry assetindex.Entry) error
	Forget(ctx context.Context, namespace string, fileNames ...string) error
}

// Prober measures a clip's duration in seconds.
type Prober func(ctx context.Context, path string) (float64, error)

// Gate bounds what a freshly fetched clip must satisfy.
type Gate struct {
	MinDurationSeconds float64
	MaxDurationSeconds float64
	MinSizeBytes       int64
	MaxSizeBytes       int64
}

// Decorrelation configures the random speed change applied on admission.
type Decorrelation struct {
	Enabled      bool
	MaxDeviation float64
	SampleRate   int
}

// Options configures a Manager.
type Options struct {
	Dir             string
	Namespace       string
	Fetcher         Fetcher
	Recorder        Recorder
	Probe           Prober
	Logger          *slog.Logger
	Gate            Gate
	Decorrelation   Decorrelation
	Limits          Constraints
	SearchResults   int
	SearchTimeout   time.Duration
	DownloadTimeout time.Duration
	Concurrency     int
	NegativeTags    []string
	// RunID is recorded with provenance when the context carries none.
	RunID           string
	// StaleAfter is the age past which a staged temp file counts as abandoned.
	// It defaults to twice DownloadTimeout plus a margin.
	StaleAfter      time.Duration
}

// OptionsFromConfig maps configuration onto Options. Fetcher and Recorder are
// left for the caller to supply.
func OptionsFromConfig(cfg *config.Config) Options {
	ffprobeBinary := cfg.FFprobeBinary()
	return Options{
		Dir:       cfg.NamespaceDir(),
		Namespace: cfg.Cache.Namespace,
		Probe:     ProbeDuration(ffprobeBinary),
		Gate: Gate{
			MinDurationSeconds: cfg.Quality.MinDurationSeconds,
			MaxDurationSeconds: cfg.Quality.MaxDurationSeconds,
			MinSizeBytes:       cfg.Quality.MinSizeBytes,
			MaxSizeBytes:       int64(cfg.Fetch.MaxFileSizeMB) << 20,
		},
		Decorrelation: Decorrelation{
			Enabled:      cfg.Decorrelate.Enabled,
			MaxDeviation: cfg.Decorrelate.MaxRateDeviation,
			SampleRate:   cfg.Decorrelate.SampleRate,
		},
		Limits: Constraints{
			MaxFileSizeBytes:   int64(cfg.Fetch.MaxFileSizeMB) << 20,
			MaxDurationSeconds: cfg.Fetch.MaxDurationSeconds,
		},
		SearchResults:   cfg.Fetch.SearchResults,
		SearchTimeout:   time.Duration(cfg.Fetch.SearchTimeoutSeconds) * time.Second,
		DownloadTimeout: time.Duration(cfg.Fetch.DownloadTimeoutSeconds) * time.Second,
		Concurrency:     cfg.Fetch.Concurrency,
	}
}

// ProbeDuration measures duration with ffprobe and falls back to decoding the
// file when ffprobe is missing or cannot read it.
func ProbeDuration(ffprobeBinary string) Prober {
	return func(ctx context.Context, path string) (float64, error) {
		if clip, err := ffprobe.Probe(ctx, ffprobeBinary, path); err == nil && clip.DurationSeconds > 0 {
			return clip.DurationSeconds, nil
		}
		return DecodeDuration(ctx, path)
	}
}

// DecodeDuration measures duration by decoding the whole file.
func DecodeDuration(_ context.Context, path string) (float64, error) {
	seg, err := audio.Decode(path)
	if err != nil {
		return 0, err
	}
	return seg.Duration().Seconds(), nil
}

// Provenance describes how an admitted clip was obtained.
type Provenance struct {
	Query           string  `json:"query"`
	Title           string  `json:"title,omitempty"`
	Locator         string  `json:"locator"`
	Score           int     `json:"score"`
	Fallback        bool    `json:"fallback"`
	DurationSeconds float64 `json:"duration_seconds"`
	RateFactor      float64 `json:"rate_factor"`
}

// Asset is a resolved clip ready for compositing.
type Asset struct {
	Category   string      `json:"category"`
	Path       string      `json:"path"`
	Position   int         `json:"position"`
	Cached     bool        `json:"cached"`
	SizeBytes  int64       `json:"size_bytes"`
	Provenance *Provenance `json:"provenance,omitempty"`
}

// Manager owns one namespace directory of the cache.
type Manager struct {
	opts   Options
	logger *slog.Logger
	sem    chan struct{}

	mu       sync.Mutex
	catLocks map[string]*sync.Mutex
}

// NewManager validates opts and prepares the namespace directory.
func NewManager(opts Options) (*Manager, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("assetcache: directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("assetcache: create %s: %w", opts.Dir, err)
	}
	if opts.Namespace == "" {
		opts.Namespace = filepath.Base(opts.Dir)
	}
	if opts.Probe == nil {
		opts.Probe = DecodeDuration
	}
	if opts.SearchResults <= 0 {
		opts.SearchResults = 5
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.NegativeTags == nil {
		opts.NegativeTags = catalog.DefaultNegativeTags
	}
	if opts.Decorrelation.SampleRate <= 0 {
		opts.Decorrelation.SampleRate = defaultSampleRate
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = defaultStaleAfter
		if opts.DownloadTimeout > 0 {
			opts.StaleAfter = 2*opts.DownloadTimeout + staleTempMargin
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "assetcache"),
		sem:      make(chan struct{}, opts.Concurrency),
		catLocks: make(map[string]*sync.Mutex),
	}
	if removed, err := fileutil.RemoveStaleTemps(opts.Dir, opts.StaleAfter); err == nil && removed > 0 {
		m.logger.Info("removed stale staged downloads", logging.Int("count", removed))
	}
	return m, nil
}

// Dir returns the namespace directory.
func (m *Manager) Dir() string {
	return m.opts.Dir
}

// Namespace returns the namespace name.
func (m *Manager) Namespace() string {
	return m.opts.Namespace
}

func (m *Manager) categoryLock(category string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.catLocks[category]
	if !ok {
		lock = &sync.Mutex{}
		m.catLocks[category] = lock
	}
	return lock
}

// Resolve returns a clip for cat. Cached clips rotate round-robin within the
// run; an empty category is fetched, gated, decorrelated and admitted. Every
// failure wraps services.ErrAssetUnavailable or services.ErrQualityGate.
func (m *Manager) Resolve(ctx context.Context, rot *Rotation, cat catalog.Category) (Asset, error) {
	if rot == nil {
		return Asset{}, errors.New("assetcache: rotation is required")
	}
	lock := m.categoryLock(cat.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return Asset{}, services.Wrap(services.ErrAssetUnavailable, stageName, "resolve", cat.ID, err)
	}

	files, err := scanDir(m.opts.Dir, cat.ID)
	if err != nil {
		return Asset{}, services.Wrap(services.ErrAssetUnavailable, stageName, "list cache", cat.ID, err)
	}
	if len(files) > 0 {
		pos := rot.Next(cat.ID, len(files))
		chosen := files[pos]
		m.logger.Debug("serving cached asset",
			logging.String("category", cat.ID),
			logging.String("file", chosen.Name),
			logging.Int("position", pos),
			logging.Int("available", len(files)),
		)
		return Asset{Category: cat.ID, Path: chosen.Path, Position: pos, Cached: true, SizeBytes: chosen.SizeBytes}, nil
	}

	staged, prov, err := m.acquire(ctx, rot, cat)
	if err != nil {
		return Asset{}, err
	}
	asset, err := m.admit(ctx, staged, cat, prov)
	if err != nil {
		_ = os.Remove(staged)
		return Asset{}, services.Wrap(services.ErrAssetUnavailable, stageName, "admit", cat.ID, err)
	}
	rot.Set(cat.ID, asset.Position)
	return asset, nil
}

// SearchQuery is the candidate search issued for cat on a cache miss.
func SearchQuery(cat catalog.Category) string {
	return strings.TrimSpace(cat.Search) + searchSuffix
}

// FallbackLocator is fetched when no candidate can be selected for cat.
func FallbackLocator(cat catalog.Category) string {
	return fmt.Sprintf(fallbackTemplate, strings.TrimSpace(cat.Search))
}

// acquire downloads, gates and decorrelates a new clip into a staged temp file.
func (m *Manager) acquire(ctx context.Context, rot *Rotation, cat catalog.Category) (string, Provenance, error) {
	query := SearchQuery(cat)
	prov := Provenance{Query: query, RateFactor: 1}
	if m.opts.Fetcher == nil {
		return "", prov, services.Wrap(services.ErrAssetUnavailable, stageName, "fetch", cat.ID, errors.New("no fetcher configured and nothing cached"))
	}

	candidates, err := m.search(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return "", prov, services.Wrap(services.ErrAssetUnavailable, stageName, "search", cat.ID, ctx.Err())
		}
		logging.WarnWithContext(m.logger, "candidate search failed; using fallback query", "asset_search_failed",
			logging.String("category", cat.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check yt-dlp is installed and the network is reachable"),
			logging.String(logging.FieldImpact, "fallback query decides the clip"),
		)
	}

	if best, ok := scoring.Select(candidates, cat.Positive, m.opts.NegativeTags); ok {
		prov.Title = best.Candidate.Title
		prov.Locator = best.Candidate.Locator
		prov.Score = best.Score
		attrs := append(logging.DecisionAttrs("candidate_select", "selected", strings.Join(best.Reasons, ",")),
			logging.String("category", cat.ID),
			logging.String("title", best.Candidate.Title),
			logging.Int("score", best.Score),
		)
		m.logger.Info("candidate selected", logging.Args(attrs...)...)
	} else {
		prov.Locator = FallbackLocator(cat)
		prov.Fallback = true
		m.logger.Info("no candidate selected; using fallback",
			logging.String("category", cat.ID),
			logging.String("locator", prov.Locator),
		)
	}

	staged, err := m.fetch(ctx, prov.Locator)
	if err != nil {
		if ctx.Err() != nil {
			return "", prov, services.Wrap(services.ErrAssetUnavailable, stageName, "fetch", cat.ID, ctx.Err())
		}
		return "", prov, services.Wrap(services.ErrAssetUnavailable, stageName, "fetch", cat.ID, err)
	}

	duration, err := m.gate(ctx, staged, cat.ID)
	if err != nil {
		_ = os.Remove(staged)
		if ctx.Err() != nil {
			return "", prov, services.Wrap(services.ErrAssetUnavailable, stageName, "measure", cat.ID, ctx.Err())
		}
		if errors.Is(err, services.ErrQualityGate) {
			logging.WarnWithContext(m.logger, "fetched asset rejected", "asset_quality_gate",
				logging.String("category", cat.ID),
				logging.String("locator", prov.Locator),
				logging.Error(err),
				logging.String(logging.FieldImpact, "event dropped; the category stays empty"),
			)
		}
		return "", prov, err
	}
	prov.DurationSeconds = duration

	final, factor, err := m.decorrelate(staged, rot)
	if err != nil {
		_ = os.Remove(staged)
		return "", prov, services.Wrap(services.ErrQualityGate, stageName, "decorrelate", cat.ID, err)
	}
	prov.RateFactor = factor
	if factor != 0 && factor != 1 {
		prov.DurationSeconds = duration / factor
	}
	return final, prov, nil
}

func (m *Manager) acquireSlot(ctx context.Context) (func(), error) {
	select {
	case m.sem <- struct{}{}:
		return func() { <-m.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) search(ctx context.Context, query string) ([]scoring.Candidate, error) {
	if m.opts.Fetcher == nil {
		return nil, errors.New("no fetcher configured")
	}
	release, err := m.acquireSlot(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	searchCtx, cancel := withTimeout(ctx, m.opts.SearchTimeout)
	defer cancel()
	return m.opts.Fetcher.Search(searchCtx, query, m.opts.SearchResults)
}

func (m *Manager) fetch(ctx context.Context, locator string) (string, error) {
	if m.opts.Fetcher == nil {
		return "", errors.New("no fetcher configured")
	}
	release, err := m.acquireSlot(ctx)
	if err != nil {
		return "", err
	}
	defer release()
	fetchCtx, cancel := withTimeout(ctx, m.opts.DownloadTimeout)
	defer cancel()
	stem := fileutil.TempPath(m.opts.Dir, "")
	path, err := m.opts.Fetcher.Fetch(fetchCtx, locator, stem, m.opts.Limits)
	if err != nil {
		cleanupStaged(stem)
		return "", err
	}
	return path, nil
}

func cleanupStaged(stem string) {
	matches, _ := filepath.Glob(stem + "*")
	for _, match := range matches {
		_ = os.Remove(match)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// gate checks size and duration of a staged file. Out-of-bounds clips wrap
// services.ErrQualityGate; a staged file that cannot be read or measured wraps
// services.ErrAssetUnavailable.
func (m *Manager) gate(ctx context.Context, path, category string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, services.Wrap(services.ErrAssetUnavailable, stageName, "stat staged clip", category, err)
	}
	reject := func(format string, args ...any) error {
		return services.Wrap(services.ErrQualityGate, stageName, "quality gate", category, fmt.Errorf(format, args...))
	}
	g := m.opts.Gate
	if info.Size() < g.MinSizeBytes {
		return 0, reject("size %d below minimum %d bytes", info.Size(), g.MinSizeBytes)
	}
	if g.MaxSizeBytes > 0 && info.Size() > g.MaxSizeBytes {
		return 0, reject("size %d above maximum %d bytes", info.Size(), g.MaxSizeBytes)
	}
	duration, err := m.opts.Probe(ctx, path)
	if err != nil {
		return 0, services.Wrap(services.ErrAssetUnavailable, stageName, "measure duration", category, err)
	}
	if duration < g.MinDurationSeconds || (g.MaxDurationSeconds > 0 && duration > g.MaxDurationSeconds) {
		return 0, reject("duration %.2fs outside [%.2f, %.2f]", duration, g.MinDurationSeconds, g.MaxDurationSeconds)
	}
	return duration, nil
}

// decorrelate replaces the staged file with a speed-shifted MP3 and returns
// the path of the result. Non-MP3 downloads are always re-encoded.
func (m *Manager) decorrelate(path string, rot *Rotation) (string, float64, error) {
	d := m.opts.Decorrelation
	isMP3 := strings.EqualFold(filepath.Ext(path), assetExt)
	if !d.Enabled && isMP3 {
		return path, 1, nil
	}
	seg, err := audio.Decode(path)
	if err != nil {
		return "", 0, err
	}
	factor := 1.0
	if d.Enabled {
		factor = rot.Factor(d.MaxDeviation)
		seg = seg.ChangeSpeed(factor, d.SampleRate)
	}
	out := path
	if !isMP3 {
		out = strings.TrimSuffix(path, filepath.Ext(path)) + assetExt
	}
	if err := audio.Encode(out, seg); err != nil {
		return "", 0, err
	}
	if out != path {
		_ = os.Remove(path)
	}
	return out, factor, nil
}

// admit moves a staged clip to the next free index under the category file
// lock and records its provenance.
func (m *Manager) admit(ctx context.Context, staged string, cat catalog.Category, prov Provenance) (Asset, error) {
	lock := flock.New(filepath.Join(m.opts.Dir, lockName(cat.ID)))
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return Asset{}, fmt.Errorf("lock category: %w", err)
	}
	if !locked {
		return Asset{}, errors.New("lock category: not acquired")
	}
	defer func() { _ = lock.Unlock() }()

	existing, err := scanDir(m.opts.Dir, cat.ID)
	if err != nil {
		return Asset{}, err
	}
	name := FileName(cat.ID, nextIndex(existing))
	final := filepath.Join(m.opts.Dir, name)
	if err := os.Rename(staged, final); err != nil {
		return Asset{}, fmt.Errorf("rename into cache: %w", err)
	}

	files, err := scanDir(m.opts.Dir, cat.ID)
	if err != nil {
		return Asset{}, err
	}
	pos := positionOf(files, name)
	asset := Asset{Category: cat.ID, Path: final, Position: pos, Provenance: &prov}
	if pos >= 0 {
		asset.SizeBytes = files[pos].SizeBytes
	}

	m.record(ctx, cat.ID, name, asset.SizeBytes, prov)
	m.logger.Info("asset admitted",
		logging.String(logging.FieldEventType, "asset_admitted"),
		logging.String("category", cat.ID),
		logging.String("file", name),
		logging.Float64("duration_seconds", prov.DurationSeconds),
		logging.Float64("rate_factor", prov.RateFactor),
		logging.Bool("fallback", prov.Fallback),
	)
	return asset, nil
}

func (m *Manager) record(ctx context.Context, category, name string, size int64, prov Provenance) {
	if m.opts.Recorder == nil {
		return
	}
	runID := m.opts.RunID
	if id, ok := services.RunIDFromContext(ctx); ok {
		runID = id
	}
	err := m.opts.Recorder.Record(ctx, assetindex.Entry{
		Namespace:       m.opts.Namespace,
		Category:        category,
		FileName:        name,
		Title:           prov.Title,
		Locator:         prov.Locator,
		Query:           prov.Query,
		Score:           prov.Score,
		Fallback:        prov.Fallback,
		DurationSeconds: prov.DurationSeconds,
		SizeBytes:       size,
		RateFactor:      prov.RateFactor,
		RunID:           runID,
		FetchedAt:       time.Now(),
	})
	if err != nil {
		logging.WarnWithContext(m.logger, "failed to record asset provenance", "asset_index_write_failed",
			logging.String("category", category),
			logging.Error(err),
			logging.String(logging.FieldImpact, "clip is cached but has no provenance entry"),
		)
	}
}
