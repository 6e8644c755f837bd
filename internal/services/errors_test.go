package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"foley/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "resolve", "fetch", "yt-dlp failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"resolve", "fetch", "yt-dlp failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.FailureKind
	}{
		{"nil", nil, ""},
		{"transcription", services.Wrap(services.ErrTranscription, "transcribe", "whisperx", "exit 1", nil), services.KindTranscription},
		{"planner", services.Wrap(services.ErrPlanner, "plan", "parse", "bad shape", nil), services.KindPlanner},
		{"gate wrapped in asset", fmt.Errorf("%w: %w", services.ErrAssetUnavailable, services.ErrQualityGate), services.KindQualityGate},
		{"asset", services.Wrap(services.ErrAssetUnavailable, "resolve", "fetch", "", nil), services.KindAssetFetch},
		{"timeout", services.Wrap(services.ErrTimeout, "resolve", "search", "", context.DeadlineExceeded), services.KindAssetFetch},
		{"compositing", services.Wrap(services.ErrCompositing, "mix", "decode", "", nil), services.KindCompositing},
		{"canceled", fmt.Errorf("run: %w", context.Canceled), services.KindCanceled},
		{"unexpected", errors.New("disk on fire"), services.KindUnexpected},
	}
	for _, tc := range cases {
		if got := services.Classify(tc.err); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestFatalOnlyForTranscription(t *testing.T) {
	if !services.Fatal(services.Wrap(services.ErrTranscription, "", "", "", nil)) {
		t.Fatal("expected transcription failure to be fatal")
	}
	for _, marker := range []error{services.ErrPlanner, services.ErrAssetUnavailable, services.ErrQualityGate, services.ErrCompositing} {
		err := services.Wrap(marker, "", "", "", nil)
		if services.Fatal(err) {
			t.Fatalf("expected %v to be non-fatal", err)
		}
		if !services.Expected(err) {
			t.Fatalf("expected %v to be an expected failure", err)
		}
	}
	if services.Expected(errors.New("boom")) {
		t.Fatal("plain errors must not be treated as expected")
	}
}
