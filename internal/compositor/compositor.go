package compositor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"foley/internal/config"
	"foley/internal/logging"
	"foley/internal/media/audio"
	"foley/internal/services"
)

const (
	minTargetFadeMS = 150
	maxTargetFadeMS = 400
	stageName       = "compositing"
)

// Entry places one clip on the timeline.
type Entry struct {
	Category   string  `json:"category"`
	AssetPath  string  `json:"asset_path"`
	PositionMS int     `json:"position_ms"`
	VolumeDB   float64 `json:"volume_db"`
	// TargetMS, when positive, caps the clip length after cropping.
	TargetMS int `json:"target_ms,omitempty"`
}

// Skipped is an entry that could not be mixed.
type Skipped struct {
	Entry Entry
	Err   error
}

// Loader decodes a clip from disk.
type Loader func(path string) (*audio.Segment, error)

// Options holds the mix parameters.
type Options struct {
	HighPassHz         float64
	HeadroomDB         float64
	SilenceThresholdDB float64
	MinSilenceMS       int
	CropPaddingMS      int
	FadeInMS           int
	FadeOutMS          int
}

// DefaultOptions returns the standard mix parameters.
func DefaultOptions() Options {
	return Options{
		HighPassHz:         100,
		HeadroomDB:         audio.DefaultHeadroomDB,
		SilenceThresholdDB: -40,
		MinSilenceMS:       300,
		CropPaddingMS:      100,
		FadeInMS:           10,
		FadeOutMS:          400,
	}
}

// OptionsFromConfig maps the mix section of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		HighPassHz:         cfg.Mix.HighPassHz,
		HeadroomDB:         audio.DefaultHeadroomDB,
		SilenceThresholdDB: cfg.Mix.SilenceThresholdDB,
		MinSilenceMS:       cfg.Mix.MinSilenceMS,
		CropPaddingMS:      cfg.Mix.CropPaddingMS,
		FadeInMS:           cfg.Mix.FadeInMS,
		FadeOutMS:          cfg.Mix.FadeOutMS,
	}
}

// Compositor mixes timelines over a narration.
type Compositor struct {
	opts   Options
	load   Loader
	logger *slog.Logger
}

// New builds a compositor. A nil loader decodes with audio.Decode.
func New(opts Options, load Loader, logger *slog.Logger) *Compositor {
	if load == nil {
		load = audio.Decode
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Compositor{opts: opts, load: load, logger: logging.NewComponentLogger(logger, "compositor")}
}

// Compose mixes timeline over base with default options.
func Compose(ctx context.Context, base *audio.Segment, timeline []Entry, load Loader) (*audio.Segment, []Skipped, error) {
	return New(DefaultOptions(), load, nil).Compose(ctx, base, timeline)
}

// Compose preprocesses base and overlays every entry in ascending position.
// Entries that fail are returned as skipped while the rest are mixed. The
// only error is cancellation.
func (c *Compositor) Compose(ctx context.Context, base *audio.Segment, timeline []Entry) (*audio.Segment, []Skipped, error) {
	if base == nil || base.Frames() == 0 {
		return nil, nil, services.Wrap(services.ErrCompositing, stageName, "prepare base", "", audio.ErrEmpty)
	}
	mix := c.prepareBase(base)

	ordered := make([]Entry, len(timeline))
	copy(ordered, timeline)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].PositionMS < ordered[j].PositionMS })

	clips := make(map[string]*audio.Segment)
	var skipped []Skipped
	for _, entry := range ordered {
		if err := ctx.Err(); err != nil {
			return mix, skipped, err
		}
		if err := c.place(mix, entry, clips); err != nil {
			err = services.Wrap(services.ErrCompositing, stageName, "overlay", entry.Category, err)
			skipped = append(skipped, Skipped{Entry: entry, Err: err})
			logging.WarnWithContext(c.logger, "overlay skipped", "overlay_skipped",
				logging.String("category", entry.Category),
				logging.String("asset", entry.AssetPath),
				logging.Int("position_ms", entry.PositionMS),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "delete the cached clip so it is fetched again"),
			)
		}
	}
	c.logger.Info("timeline composed",
		logging.Int("overlays", len(ordered)-len(skipped)),
		logging.Int("skipped", len(skipped)),
		logging.Int("duration_ms", mix.DurationMS()),
	)
	return mix, skipped, nil
}

func (c *Compositor) prepareBase(base *audio.Segment) *audio.Segment {
	out := base
	if c.opts.HighPassHz > 0 {
		out = out.HighPass(c.opts.HighPassHz)
	} else {
		out = out.Clone()
	}
	return out.Normalize(c.opts.HeadroomDB)
}

func (c *Compositor) place(mix *audio.Segment, entry Entry, cache map[string]*audio.Segment) error {
	if strings.TrimSpace(entry.AssetPath) == "" {
		return errors.New("asset path is empty")
	}
	clip, ok := cache[entry.AssetPath]
	if !ok {
		loaded, err := c.load(entry.AssetPath)
		if err != nil {
			return fmt.Errorf("load clip: %w", err)
		}
		if loaded.Frames() == 0 {
			return audio.ErrEmpty
		}
		clip = loaded
		cache[entry.AssetPath] = clip
	}
	shaped := c.Shape(clip, entry)
	if shaped.SampleRate != mix.SampleRate {
		shaped = shaped.Resample(mix.SampleRate)
	}
	if shaped.NumChannels() != mix.NumChannels() {
		shaped = shaped.WithChannels(mix.NumChannels())
	}
	return mix.MixAt(shaped, entry.PositionMS)
}

// Shape applies crop, target length, gain and fades to a clip.
func (c *Compositor) Shape(clip *audio.Segment, entry Entry) *audio.Segment {
	out := c.crop(clip)
	if entry.TargetMS > 0 && out.DurationMS() > entry.TargetMS {
		fade := min(max(entry.TargetMS/4, minTargetFadeMS), maxTargetFadeMS)
		out = out.Slice(0, entry.TargetMS).FadeOut(fade)
	}
	return out.Gain(entry.VolumeDB).FadeIn(c.opts.FadeInMS).FadeOut(c.opts.FadeOutMS)
}

// crop keeps the first audible region plus padding, or the whole clip when
// nothing rises above the threshold.
func (c *Compositor) crop(clip *audio.Segment) *audio.Segment {
	ranges := clip.DetectNonSilent(c.opts.MinSilenceMS, c.opts.SilenceThresholdDB, 1)
	if len(ranges) == 0 {
		return clip
	}
	first := ranges[0]
	start := max(0, first.StartMS-c.opts.CropPaddingMS)
	end := min(clip.DurationMS(), first.EndMS+c.opts.CropPaddingMS)
	return clip.Slice(start, end)
}
