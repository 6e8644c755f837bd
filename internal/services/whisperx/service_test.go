package whisperx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"foley/internal/services"
)

const whisperxOutput = `{
  "segments": [
    {"text": "فتح الباب", "start": 0.5, "end": 1.6, "words": [
      {"word": "فتح", "start": 0.5, "end": 0.9, "score": 0.91},
      {"word": "الباب", "start": 1.0, "end": 1.6, "score": 0.88}
    ]},
    {"text": "في 3 ثوان", "start": 5.0, "end": 6.5, "words": [
      {"word": "في", "start": 5.0, "end": 5.2},
      {"word": "3"},
      {"word": "ثوان", "start": 5.8, "end": 6.5}
    ]}
  ]
}`

func TestParseWordsFlattensSegments(t *testing.T) {
	words, err := ParseWords([]byte(whisperxOutput))
	if err != nil {
		t.Fatalf("ParseWords: %v", err)
	}
	if len(words) != 5 {
		t.Fatalf("expected 5 words, got %d", len(words))
	}
	if words[1].Text != "الباب" || words[1].Start != 1.0 {
		t.Fatalf("unexpected second word %+v", words[1])
	}
	if words[3].Text != "3" || words[3].Start != 5.2 {
		t.Fatalf("unaligned word should inherit previous end, got %+v", words[3])
	}
}

func TestParseWordsAcceptsFlatList(t *testing.T) {
	words, err := ParseWords([]byte(` [{"word": "door", "start": 2.0}]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 1 || words[0].Text != "door" || words[0].Start != 2.0 {
		t.Fatalf("unexpected words %+v", words)
	}
	if _, err := ParseWords([]byte(`{"segments": 3}`)); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTranscribeRunsFFmpegThenWhisperX(t *testing.T) {
	dir := t.TempDir()
	narration := filepath.Join(dir, "story.mp3")
	if err := os.WriteFile(narration, []byte("fake"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := NewService(Config{WorkDir: filepath.Join(dir, "work")}, "", nil)
	var calls []string
	svc.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		calls = append(calls, name)
		if name == UVXCommand {
			if !slices.Contains(args, "--language") || args[slices.Index(args, "--language")+1] != "ar" {
				t.Fatalf("expected arabic language hint, got %v", args)
			}
			outDir := args[slices.Index(args, "--output_dir")+1]
			src := args[slices.Index(args, "whisperx")+1]
			jsonPath := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(src), ".wav")+".json")
			return os.WriteFile(jsonPath, []byte(whisperxOutput), 0o644)
		}
		return nil
	})

	words, err := svc.Transcribe(context.Background(), narration, "arabic")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(words) != 5 {
		t.Fatalf("expected 5 words, got %d", len(words))
	}
	if strings.Join(calls, ",") != "ffmpeg,uvx" {
		t.Fatalf("unexpected command order %v", calls)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "work"))
	if len(entries) != 0 {
		t.Fatalf("expected per-run work dir to be cleaned up, found %d entries", len(entries))
	}
}

func TestTranscribeFailureIsTranscriptionError(t *testing.T) {
	dir := t.TempDir()
	narration := filepath.Join(dir, "story.wav")
	if err := os.WriteFile(narration, []byte("fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	svc := NewService(Config{WorkDir: dir}, "", nil)
	svc.WithCommandRunner(func(_ context.Context, name string, _ ...string) error {
		if name == UVXCommand {
			return errors.New("model download failed")
		}
		return nil
	})
	_, err := svc.Transcribe(context.Background(), narration, "ar")
	if !errors.Is(err, services.ErrTranscription) || !services.Fatal(err) {
		t.Fatalf("expected fatal transcription error, got %v", err)
	}
	if _, err := svc.Transcribe(context.Background(), filepath.Join(dir, "missing.wav"), "ar"); !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription error for missing file, got %v", err)
	}
}

func TestBuildArgsCPUAndPyannote(t *testing.T) {
	svc := NewService(Config{VADMethod: VADMethodPyannote, HFToken: "hf"}, "", nil)
	args := strings.Join(svc.buildArgs("in.wav", "/out", ""), " ")
	for _, want := range []string{"--device cpu", "--compute_type int8", "--hf_token hf", "--output_format json"} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in %q", want, args)
		}
	}
	if strings.Contains(args, "--language") {
		t.Fatal("language flag should be omitted when unknown")
	}
}
