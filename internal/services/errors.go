package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Failure markers for the run error taxonomy. Only ErrTranscription aborts a
// run; the others drop a single event or overlay.
var (
	ErrTranscription    = errors.New("transcription failure")
	ErrPlanner          = errors.New("planner failure")
	ErrAssetUnavailable = errors.New("asset unavailable")
	ErrQualityGate      = errors.New("quality gate rejection")
	ErrCompositing      = errors.New("compositing failure")
)

// FailureKind names the taxonomy bucket an error belongs to.
type FailureKind string

const (
	KindTranscription FailureKind = "transcription"
	KindPlanner       FailureKind = "planner"
	KindAssetFetch    FailureKind = "asset_fetch"
	KindQualityGate   FailureKind = "quality_gate"
	KindCompositing   FailureKind = "compositing"
	KindCanceled      FailureKind = "canceled"
	KindUnexpected    FailureKind = "unexpected"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error onto the failure taxonomy. Quality gate rejections are
// checked before asset failures because a rejection is also an unavailable asset.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrTranscription):
		return KindTranscription
	case errors.Is(err, ErrPlanner):
		return KindPlanner
	case errors.Is(err, ErrQualityGate):
		return KindQualityGate
	case errors.Is(err, ErrAssetUnavailable), errors.Is(err, ErrTimeout), errors.Is(err, ErrNotFound):
		return KindAssetFetch
	case errors.Is(err, ErrCompositing):
		return KindCompositing
	default:
		return KindUnexpected
	}
}

// Expected reports whether err is an anticipated, event-scoped failure that is
// logged at warning level rather than error level.
func Expected(err error) bool {
	switch Classify(err) {
	case KindPlanner, KindAssetFetch, KindQualityGate, KindCompositing:
		return true
	default:
		return false
	}
}

// Fatal reports whether err must abort the whole run.
func Fatal(err error) bool {
	switch Classify(err) {
	case KindTranscription, KindCanceled:
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
