package pipeline

import (
	"time"

	"github.com/google/uuid"

	"foley/internal/assetcache"
)

// Session is the per-run state shared by every stage.
type Session struct {
	RunID    string
	Seed     int64
	Rotation *assetcache.Rotation
}

// NewSession starts a run. A zero seed picks a time-based one so repeated
// runs decorrelate differently; the chosen seed is kept for the report.
func NewSession(seed int64) *Session {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Session{
		RunID:    uuid.NewString(),
		Seed:     seed,
		Rotation: assetcache.NewRotation(seed),
	}
}
