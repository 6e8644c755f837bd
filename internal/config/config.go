package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CacheDir  string `toml:"cache_dir"`
	WorkDir   string `toml:"work_dir"`
	LogDir    string `toml:"log_dir"`
	OutputDir string `toml:"output_dir"`
}

// Cache selects the cache subtree used for a run context.
type Cache struct {
	Namespace string `toml:"namespace"`
	IndexPath string `toml:"index_path"`
}

// Matcher contains trigger matching settings.
type Matcher struct {
	GlobalGapSeconds float64 `toml:"global_gap_seconds"`
	CatalogPath      string  `toml:"catalog_path"`
}

// Quality bounds a freshly fetched asset must satisfy before it is cached.
type Quality struct {
	MinDurationSeconds float64 `toml:"min_duration_seconds"`
	MaxDurationSeconds float64 `toml:"max_duration_seconds"`
	MinSizeBytes       int64   `toml:"min_size_bytes"`
}

// Decorrelate configures the random resample applied to new assets.
type Decorrelate struct {
	Enabled          bool    `toml:"enabled"`
	MaxRateDeviation float64 `toml:"max_rate_deviation"`
	SampleRate       int     `toml:"sample_rate"`
	Seed             int64   `toml:"seed"`
}

// Mix contains compositing parameters.
type Mix struct {
	HighPassHz         float64 `toml:"highpass_hz"`
	SilenceThresholdDB float64 `toml:"silence_threshold_db"`
	MinSilenceMS       int     `toml:"min_silence_ms"`
	CropPaddingMS      int     `toml:"crop_padding_ms"`
	FadeInMS           int     `toml:"fade_in_ms"`
	FadeOutMS          int     `toml:"fade_out_ms"`
	OutputFormat       string  `toml:"output_format"`
}

// Fetch configures candidate search and asset download.
type Fetch struct {
	Binary                 string `toml:"ytdlp_binary"`
	SearchResults          int    `toml:"search_results"`
	MaxFileSizeMB          int    `toml:"max_filesize_mb"`
	MaxDurationSeconds     int    `toml:"max_duration_seconds"`
	SearchTimeoutSeconds   int    `toml:"search_timeout_seconds"`
	DownloadTimeoutSeconds int    `toml:"download_timeout_seconds"`
	Concurrency            int    `toml:"concurrency"`
}

// Transcription contains WhisperX settings.
type Transcription struct {
	Language    string `toml:"language"`
	Model       string `toml:"model"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
}

// Planner configures the optional language-model cue planner.
type Planner struct {
	Enabled           bool    `toml:"enabled"`
	Provider          string  `toml:"provider"`
	MinSpacingSeconds float64 `toml:"min_spacing_seconds"`
	Fallback          string  `toml:"fallback"`
}

// LLM contains OpenRouter connection settings.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Gemini contains Google Gemini connection settings.
type Gemini struct {
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Pipeline contains run orchestration settings.
type Pipeline struct {
	Parallel            bool `toml:"parallel"`
	EmitPartialOnCancel bool `toml:"emit_partial_on_cancel"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for foley.
//
// Configuration sections by subsystem:
//   - Paths: cache, work, log and output directories
//   - Cache: namespace subtree and provenance index location
//   - Matcher: global gap and optional catalog override
//   - Quality / Decorrelate: admission rules for fetched assets
//   - Mix: compositor parameters
//   - Fetch: yt-dlp search and download limits
//   - Transcription: WhisperX settings
//   - Planner / LLM / Gemini: optional language-model cue planning
//   - Pipeline: parallelism and cancellation behaviour
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Cache         Cache         `toml:"cache"`
	Matcher       Matcher       `toml:"matcher"`
	Quality       Quality       `toml:"quality"`
	Decorrelate   Decorrelate   `toml:"decorrelate"`
	Mix           Mix           `toml:"mix"`
	Fetch         Fetch         `toml:"fetch"`
	Transcription Transcription `toml:"transcription"`
	Planner       Planner       `toml:"planner"`
	LLM           LLM           `toml:"llm"`
	Gemini        Gemini        `toml:"gemini"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file in the working directory, or next to
// the config file, is loaded first without overriding variables already set.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	loadDotEnv(resolvedPath)

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			// godotenv.Load never overrides variables already present.
			_ = godotenv.Load(candidate)
		}
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("foley.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache, work and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.NamespaceDir(), c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// NamespaceDir returns the cache subtree holding assets for the configured namespace.
func (c *Config) NamespaceDir() string {
	return filepath.Join(c.Paths.CacheDir, c.Cache.Namespace)
}

// FFprobeBinary returns the ffprobe executable name used for quality checks.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// FFmpegBinary returns the ffmpeg executable name used by yt-dlp and whisperx.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "foley", "sfx")
	}
	return "~/.cache/foley/sfx"
}

// Sample returns the annotated sample configuration.
func Sample() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the OpenRouter settings used by the planner.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the OpenRouter connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
