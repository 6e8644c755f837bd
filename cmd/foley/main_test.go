package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"foley/internal/deps"
	"foley/internal/pipeline"
	"foley/internal/scoring"
	"foley/internal/trigger"
)

func TestCLIConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "fresh", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") || !strings.Contains(out, "GEMINI_API_KEY") {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, env.configPath) || !strings.Contains(out, "(2 categories)") || !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}
}

func TestCLIConfigInitStdout(t *testing.T) {
	setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "init", "--stdout"}, "")
	if err != nil {
		t.Fatalf("config init --stdout: %v", err)
	}
	if !strings.Contains(out, "[planner]") {
		t.Fatalf("expected sample config on stdout, got %q", out)
	}
}

func TestCLIConfigValidateRejectsBadProvider(t *testing.T) {
	env := setupCLITestEnv(t)
	bad := filepath.Join(env.baseDir, "bad.toml")
	writeFile(t, bad, "[planner]\nprovider = \"carrier-pigeon\"\n")

	if _, _, err := runCLI(t, []string{"config", "validate"}, bad); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestCLICategories(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"categories"}, env.configPath)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	for _, want := range []string{"door_open", "knock", "-5 dB", "Negative tags: music"} {
		if !strings.Contains(out, want) {
			t.Fatalf("categories output missing %q:\n%s", want, out)
		}
	}
}

func TestCLIMatchJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"match", env.wordsPath, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	var events []trigger.Event
	if err := json.Unmarshal([]byte(out), &events); err != nil {
		t.Fatalf("decode events: %v\n%s", err, out)
	}
	got := make([]string, 0, len(events))
	for _, ev := range events {
		got = append(got, ev.Category)
	}
	want := []string{"door_open", "knock", "door_open"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if events[2].Start != 12.5 {
		t.Fatalf("third event at %v, want 12.5", events[2].Start)
	}
}

func TestCLIMatchTable(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"match", env.wordsPath, "--gap", "0"}, env.configPath)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !strings.Contains(out, "Words: 6  Events: 3") || !strings.Contains(out, "knocked") {
		t.Fatalf("unexpected match output:\n%s", out)
	}
}

func TestCLIPlanPromptAndSchema(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"plan", "--schema"}, env.configPath)
	if err != nil {
		t.Fatalf("plan --schema: %v", err)
	}
	var schema map[string]any
	if err := json.Unmarshal([]byte(out), &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}

	out, _, err = runCLI(t, []string{"plan", env.wordsPath, "--prompt"}, env.configPath)
	if err != nil {
		t.Fatalf("plan --prompt: %v", err)
	}
	if !strings.Contains(out, "door_open") || !strings.Contains(out, "knocked") {
		t.Fatalf("prompt missing categories or words:\n%s", out)
	}

	if _, _, err := runCLI(t, []string{"plan", env.wordsPath}, env.configPath); err == nil {
		t.Fatal("expected plan without an API key to fail")
	}
}

func TestCLISearchRanksCandidates(t *testing.T) {
	env := setupCLITestEnv(t)
	stub := filepath.Join(env.baseDir, "bin", "yt-dlp")
	writeFile(t, stub, `#!/bin/sh
cat <<'JSON'
{"entries": [
  {"id": "a1", "title": "Door Open Song Remix", "duration": 200},
  {"id": "b2", "title": "Old door creak SFX", "duration": 3.2}
]}
JSON
`)
	if err := os.Chmod(stub, 0o755); err != nil {
		t.Fatalf("chmod stub: %v", err)
	}
	appendFile(t, env.configPath, fmt.Sprintf("\n[fetch]\nytdlp_binary = %q\n", stub))

	out, _, err := runCLI(t, []string{"search", "door_open", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var ranked []scoring.Scored
	if err := json.Unmarshal([]byte(out), &ranked); err != nil {
		t.Fatalf("decode ranked: %v\n%s", err, out)
	}
	if len(ranked) != 2 || ranked[0].Candidate.Title != "Old door creak SFX" {
		t.Fatalf("unexpected ranking: %+v", ranked)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Fatalf("expected descending scores, got %d then %d", ranked[0].Score, ranked[1].Score)
	}

	if _, _, err := runCLI(t, []string{"search", "thunder"}, env.configPath); err == nil {
		t.Fatal("expected unknown category to fail")
	}
}

func TestCLICacheListStatsPrune(t *testing.T) {
	env := setupCLITestEnv(t)
	nsDir := filepath.Join(env.cacheDir, "story")
	writeFile(t, filepath.Join(nsDir, "door_open_1.mp3"), strings.Repeat("x", 2048))
	writeFile(t, filepath.Join(nsDir, "door_open_2.mp3"), strings.Repeat("x", 1024))
	writeFile(t, filepath.Join(nsDir, "knock_1.mp3"), strings.Repeat("x", 512))

	out, _, err := runCLI(t, []string{"cache", "list", "door_open"}, env.configPath)
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	if !strings.Contains(out, "door_open_1.mp3") || !strings.Contains(out, "door_open_2.mp3") || strings.Contains(out, "knock_1.mp3") {
		t.Fatalf("unexpected list output:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"cache", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	if !strings.Contains(out, "Clips:     3") || !strings.Contains(out, "knock") {
		t.Fatalf("unexpected stats output:\n%s", out)
	}

	if _, _, err := runCLI(t, []string{"cache", "prune"}, env.configPath); err == nil {
		t.Fatal("expected prune without a category to fail")
	}
	out, _, err = runCLI(t, []string{"cache", "prune", "door_open"}, env.configPath)
	if err != nil {
		t.Fatalf("cache prune: %v", err)
	}
	if !strings.Contains(out, "Pruned 2 clip(s)") {
		t.Fatalf("unexpected prune output: %q", out)
	}
	if _, err := os.Stat(filepath.Join(nsDir, "knock_1.mp3")); err != nil {
		t.Fatalf("knock clip should survive: %v", err)
	}

	out, _, err = runCLI(t, []string{"cache", "prune", "--all"}, env.configPath)
	if err != nil {
		t.Fatalf("cache prune --all: %v", err)
	}
	if !strings.Contains(out, "Pruned 1 clip(s)") {
		t.Fatalf("unexpected prune --all output: %q", out)
	}
}

func TestCLICacheHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"cache", "history"}, env.configPath)
	if err != nil {
		t.Fatalf("cache history: %v", err)
	}
	if !strings.Contains(out, "No provenance recorded") {
		t.Fatalf("unexpected history output: %q", out)
	}
}

func TestCLIRunDryRunWithWords(t *testing.T) {
	env := setupCLITestEnv(t)
	reportPath := filepath.Join(env.baseDir, "report.json")

	out, _, err := runCLI(t, []string{
		"run", filepath.Join(env.baseDir, "tale.mp3"),
		"--words", env.wordsPath,
		"--dry-run", "--json", "--seed", "11",
		"--report", reportPath,
	}, env.configPath)
	if err != nil {
		t.Fatalf("run --dry-run: %v", err)
	}
	var report pipeline.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if !report.DryRun || report.Seed != 11 || len(report.Events) != 3 || len(report.Placed) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Transcript != pipeline.SourceWords || report.EventSource != pipeline.SourceLexical {
		t.Fatalf("sources = %q/%q", report.Transcript, report.EventSource)
	}
	if _, err := os.Stat(reportPath); err != nil {
		t.Fatalf("report file missing: %v", err)
	}
}

func TestCLIStatusOffline(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status", "--offline"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"== Configuration ==", "story", "Arabic (ar)", "== Directories ==", "== Dependencies ==", "FFmpeg"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "== Planner ==") {
		t.Fatalf("offline status should skip planner:\n%s", out)
	}
}

func TestCLIStatusPlannerDisabled(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Disabled (lexical matcher)") {
		t.Fatalf("expected disabled planner line:\n%s", out)
	}
}

func TestRenderStatusLine(t *testing.T) {
	got := renderStatusLine("Cache", statusError, "not writable", false)
	if !strings.HasPrefix(got, statusIndent+"Cache:") || !strings.HasSuffix(got, "[ERROR] not writable") {
		t.Fatalf("renderStatusLine = %q", got)
	}
	colored := renderStatusLine("Cache", statusOK, "", true)
	if !strings.HasPrefix(colored, ansiGreen) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected green line, got %q", colored)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "FFmpeg", Command: "ffmpeg", Available: true},
		{Name: "yt-dlp", Command: "yt-dlp", Detail: "binary \"yt-dlp\" not found"},
		{Name: "FFprobe", Command: "ffprobe", Optional: true, Detail: "binary \"ffprobe\" not found"},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[OK] ffmpeg") {
		t.Fatalf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR]") || !strings.Contains(lines[2], "[WARN]") {
		t.Fatalf("unexpected kinds: %q / %q", lines[1], lines[2])
	}
	if !strings.Contains(lines[3], "Missing dependencies") || !strings.Contains(lines[3], "yt-dlp") || strings.Contains(lines[3], "FFprobe") {
		t.Fatalf("summary = %q", lines[3])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected non-file writer to disable color")
	}
}

func TestHumanBytes(t *testing.T) {
	cases := map[int64]string{0: "0 B", 512: "512 B"}
	for in, want := range cases {
		if got := humanBytes(in); got != want {
			t.Fatalf("humanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
