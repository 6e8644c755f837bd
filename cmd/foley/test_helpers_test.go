package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

const testCatalog = `
negative_tags = ["music"]

[[category]]
id = "door_open"
triggers = ["door"]
search = "door open sound effect"
positive = ["creak"]
volume_db = -5.0
cooldown_seconds = 10.0

[[category]]
id = "knock"
triggers = ["knock"]
search = "knock sound effect"
volume_db = -3.0
cooldown_seconds = 5.0
`

const testWords = `{"segments": [{"start": 0.0, "end": 14.0, "words": [
	{"word": "the", "start": 0.2, "end": 0.4},
	{"word": "door", "start": 1.0, "end": 1.4},
	{"word": "then", "start": 3.0, "end": 3.2},
	{"word": "knocked", "start": 6.0, "end": 6.5},
	{"word": "door", "start": 8.0, "end": 8.3},
	{"word": "door", "start": 12.5, "end": 12.9}
]}]}`

type cliTestEnv struct {
	baseDir    string
	configPath string
	cacheDir   string
	wordsPath  string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("XDG_CACHE_HOME", filepath.Join(home, ".cache"))
	t.Setenv("FOLEY_CACHE_DIR", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		cacheDir:   filepath.Join(base, "cache"),
		wordsPath:  filepath.Join(base, "words.json"),
	}
	catalogPath := filepath.Join(base, "catalog.toml")
	writeFile(t, catalogPath, testCatalog)
	writeFile(t, env.wordsPath, testWords)

	content := fmt.Sprintf(`[paths]
cache_dir = %q
work_dir = %q
log_dir = %q
output_dir = %q

[cache]
namespace = "story"

[matcher]
global_gap_seconds = 1.0
catalog_path = %q

[logging]
level = "error"
`,
		env.cacheDir,
		filepath.Join(base, "work"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "out"),
		catalogPath,
	)
	writeFile(t, env.configPath, content)
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append %s: %v", path, err)
	}
}
