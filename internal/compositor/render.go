package compositor

import (
	"context"
	"fmt"

	"foley/internal/logging"
	"foley/internal/media/audio"
	"foley/internal/services"
)

// Result summarizes a rendered mix.
type Result struct {
	OutputPath string    `json:"output_path"`
	DurationMS int       `json:"duration_ms"`
	Overlays   int       `json:"overlays"`
	Skipped    []Skipped `json:"-"`
}

// Render decodes basePath, composes timeline and writes the mix to outPath in
// the format named by its extension. The file appears atomically. Canceling
// ctx before the export leaves no output.
func (c *Compositor) Render(ctx context.Context, basePath, outPath string, timeline []Entry) (Result, error) {
	base, err := audio.Decode(basePath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrCompositing, stageName, "decode narration", basePath, err)
	}
	mix, skipped, err := c.Compose(ctx, base, timeline)
	if err != nil {
		return Result{Skipped: skipped}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{Skipped: skipped}, err
	}
	return c.Export(mix, outPath, len(timeline)-len(skipped), skipped)
}

// Export writes an already composed mix.
func (c *Compositor) Export(mix *audio.Segment, outPath string, overlays int, skipped []Skipped) (Result, error) {
	if _, err := audio.FormatFromPath(outPath); err != nil {
		return Result{Skipped: skipped}, services.Wrap(services.ErrCompositing, stageName, "export", outPath, err)
	}
	if err := audio.Encode(outPath, mix); err != nil {
		return Result{Skipped: skipped}, services.Wrap(services.ErrCompositing, stageName, "export", outPath, fmt.Errorf("encode: %w", err))
	}
	c.logger.Info("mix exported",
		logging.String(logging.FieldEventType, "mix_exported"),
		logging.String("output", outPath),
		logging.Int("duration_ms", mix.DurationMS()),
		logging.Int("overlays", overlays),
	)
	return Result{OutputPath: outPath, DurationMS: mix.DurationMS(), Overlays: overlays, Skipped: skipped}, nil
}
