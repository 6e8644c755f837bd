package planner

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"foley/internal/logging"
	"foley/internal/services"
	"foley/internal/trigger"
)

const stageName = "planner"

// Backend completes a system/user prompt pair and returns raw model text.
type Backend interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, system, user string) (string, error)

// Complete calls f.
func (f BackendFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// SystemPrompt instructs the model to place effects.
const SystemPrompt = `You are a sound designer placing short sound effects under a narrated story.
You receive the transcript as lines "[mm:ss.s] word" and the list of allowed effect categories.
Place an effect only where the narration describes that sound actually happening.
Skip negated or hypothetical mentions (for example "the door did not open").
Use only category IDs from the list. Times are in seconds from the start of the recording.
Respond with JSON only: {"sfx": [{"sfx": "<category id>", "time": <seconds>, "duration": <optional seconds>}]}.`

// Planner turns a transcript into events with a Backend.
type Planner struct {
	backend    Backend
	categories []string
	known      map[string]bool
	minSpacing float64
	logger     *slog.Logger
}

// New builds a planner limited to categoryIDs.
func New(backend Backend, categoryIDs []string, minSpacing float64, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = logging.NewNop()
	}
	known := make(map[string]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		known[id] = true
	}
	return &Planner{
		backend:    backend,
		categories: append([]string(nil), categoryIDs...),
		known:      known,
		minSpacing: math.Max(0, minSpacing),
		logger:     logging.NewComponentLogger(logger, "planner"),
	}
}

// FormatTimestamp renders seconds as mm:ss.s.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	tenths := int(math.Round(seconds * 10))
	return fmt.Sprintf("%02d:%02d.%d", tenths/600, tenths%600/10, tenths%10)
}

// BuildPrompt renders the user prompt for words.
func BuildPrompt(words []trigger.Word, categoryIDs []string) string {
	var b strings.Builder
	b.WriteString("Allowed categories: ")
	b.WriteString(strings.Join(categoryIDs, ", "))
	b.WriteString("\n\nTranscript:\n")
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s\n", FormatTimestamp(w.Start), text)
	}
	return b.String()
}

// Plan asks the backend for cues and converts the surviving ones into
// events. Every failure wraps services.ErrPlanner.
func (p *Planner) Plan(ctx context.Context, words []trigger.Word) ([]trigger.Event, error) {
	if p.backend == nil {
		return nil, services.Wrap(services.ErrPlanner, stageName, "plan", "no backend configured", nil)
	}
	if len(words) == 0 {
		return nil, nil
	}
	content, err := p.backend.Complete(ctx, SystemPrompt, BuildPrompt(words, p.categories))
	if err != nil {
		return nil, services.Wrap(services.ErrPlanner, stageName, "complete", "", err)
	}
	cues, shape, err := ParseResponse(content)
	if err != nil {
		return nil, services.Wrap(services.ErrPlanner, stageName, "parse", "", err)
	}
	kept, dropped := Filter(cues, p.known, p.minSpacing)
	p.logger.Info("planner cues parsed",
		logging.String(logging.FieldEventType, "planner_parsed"),
		logging.String("shape", string(shape)),
		logging.Int("cues", len(cues)),
		logging.Int("kept", len(kept)),
		logging.Int("dropped", dropped),
	)

	events := make([]trigger.Event, 0, len(kept))
	for _, cue := range kept {
		event := trigger.Event{
			Category: cue.SFX,
			Start:    cue.Time,
			Word:     nearestWord(words, cue.Time),
			Trigger:  "planner",
		}
		if cue.Duration != nil {
			event.Duration = *cue.Duration
		}
		events = append(events, event)
	}
	return events, nil
}

func nearestWord(words []trigger.Word, t float64) string {
	best := ""
	bestDist := math.Inf(1)
	for _, w := range words {
		if d := math.Abs(w.Start - t); d < bestDist {
			best, bestDist = w.Text, d
		}
	}
	return best
}
