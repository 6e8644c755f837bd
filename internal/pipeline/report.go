package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"foley/internal/compositor"
	"foley/internal/fileutil"
	"foley/internal/services"
	"foley/internal/trigger"
)

// Event sources recorded in the report.
const (
	SourceLexical  = "lexical"
	SourcePlanner  = "planner"
	SourceWords    = "words_file"
	SourceWhisperX = "whisperx"
)

// Placed is an accepted event together with the asset mixed for it.
type Placed struct {
	trigger.Event
	AssetPath string `json:"asset_path"`
	Cached    bool   `json:"cached"`
	Position  int    `json:"position"`
}

// Dropped is an event that did not make it into the mix.
type Dropped struct {
	Category string               `json:"category"`
	Time     float64              `json:"time"`
	Kind     services.FailureKind `json:"kind"`
	Reason   string               `json:"reason"`
}

// Report summarizes a run.
type Report struct {
	RunID          string          `json:"run_id"`
	Seed           int64           `json:"seed"`
	Input          string          `json:"input"`
	Output         string          `json:"output,omitempty"`
	Partial        bool            `json:"partial,omitempty"`
	DryRun         bool            `json:"dry_run,omitempty"`
	Transcript     string          `json:"transcript_source"`
	EventSource    string          `json:"event_source"`
	PlannerError   string          `json:"planner_error,omitempty"`
	Words          int             `json:"words"`
	Events         []trigger.Event `json:"events"`
	Placed         []Placed        `json:"placed"`
	Dropped        []Dropped       `json:"dropped"`
	DurationMS     int             `json:"duration_ms,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	CacheHits      int             `json:"cache_hits"`
	FreshDownloads int             `json:"fresh_downloads"`
}

func (r *Report) drop(category string, at float64, err error) Dropped {
	d := Dropped{Category: category, Time: at, Kind: services.Classify(err), Reason: err.Error()}
	r.Dropped = append(r.Dropped, d)
	return d
}

// DroppedByKind counts dropped events per failure kind.
func (r *Report) DroppedByKind() map[services.FailureKind]int {
	counts := make(map[services.FailureKind]int)
	for _, d := range r.Dropped {
		counts[d.Kind]++
	}
	return counts
}

// WriteJSON stores the report atomically at path.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return fileutil.WriteAtomic(path, func(f *os.File) error {
		_, err := f.Write(append(data, '\n'))
		return err
	})
}

// unplace removes the placement a skipped timeline entry came from.
func (r *Report) unplace(entry compositor.Entry) {
	for i, placed := range r.Placed {
		if placed.Category == entry.Category && placed.AssetPath == entry.AssetPath && positionMS(placed.Start) == entry.PositionMS {
			r.Placed = append(r.Placed[:i], r.Placed[i+1:]...)
			return
		}
	}
}
