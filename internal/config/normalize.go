package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"foley/internal/textutil"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCache(); err != nil {
		return err
	}
	if err := c.normalizeMatcher(); err != nil {
		return err
	}
	c.normalizeQuality()
	c.normalizeMix()
	c.normalizeFetch()
	c.normalizeTranscription()
	c.normalizePlanner()
	c.normalizeLLM()
	c.normalizeGemini()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("FOLEY_CACHE_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.CacheDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}

	var err error
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCache() error {
	namespace := strings.TrimSpace(c.Cache.Namespace)
	if namespace == "" {
		namespace = defaultNamespace
	}
	c.Cache.Namespace = textutil.SanitizeToken(namespace)

	if strings.TrimSpace(c.Cache.IndexPath) == "" {
		c.Cache.IndexPath = filepath.Join(c.Paths.CacheDir, defaultIndexFile)
		return nil
	}
	var err error
	if c.Cache.IndexPath, err = expandPath(c.Cache.IndexPath); err != nil {
		return fmt.Errorf("cache.index_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeMatcher() error {
	c.Matcher.CatalogPath = strings.TrimSpace(c.Matcher.CatalogPath)
	if c.Matcher.CatalogPath == "" {
		return nil
	}
	var err error
	if c.Matcher.CatalogPath, err = expandPath(c.Matcher.CatalogPath); err != nil {
		return fmt.Errorf("matcher.catalog_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeQuality() {
	if c.Quality.MaxDurationSeconds <= 0 {
		c.Quality.MaxDurationSeconds = defaultMaxDurationSeconds
	}
	if c.Quality.MinSizeBytes < 0 {
		c.Quality.MinSizeBytes = 0
	}
	if c.Decorrelate.SampleRate <= 0 {
		c.Decorrelate.SampleRate = defaultSampleRate
	}
}

func (c *Config) normalizeMix() {
	c.Mix.OutputFormat = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Mix.OutputFormat), "."))
	if c.Mix.OutputFormat == "" {
		c.Mix.OutputFormat = defaultOutputFormat
	}
	if c.Mix.MinSilenceMS <= 0 {
		c.Mix.MinSilenceMS = defaultMinSilenceMS
	}
	if c.Mix.CropPaddingMS < 0 {
		c.Mix.CropPaddingMS = 0
	}
	if c.Mix.FadeInMS < 0 {
		c.Mix.FadeInMS = 0
	}
	if c.Mix.FadeOutMS < 0 {
		c.Mix.FadeOutMS = 0
	}
}

func (c *Config) normalizeFetch() {
	c.Fetch.Binary = strings.TrimSpace(c.Fetch.Binary)
	if c.Fetch.Binary == "" {
		c.Fetch.Binary = defaultYTDLPBinary
	}
	if c.Fetch.SearchResults <= 0 {
		c.Fetch.SearchResults = defaultSearchResults
	}
	if c.Fetch.MaxFileSizeMB <= 0 {
		c.Fetch.MaxFileSizeMB = defaultMaxFileSizeMB
	}
	if c.Fetch.MaxDurationSeconds <= 0 {
		c.Fetch.MaxDurationSeconds = defaultFetchMaxDuration
	}
	if c.Fetch.SearchTimeoutSeconds <= 0 {
		c.Fetch.SearchTimeoutSeconds = defaultSearchTimeoutSeconds
	}
	if c.Fetch.DownloadTimeoutSeconds <= 0 {
		c.Fetch.DownloadTimeoutSeconds = defaultDownloadTimeoutSeconds
	}
	if c.Fetch.Concurrency <= 0 {
		c.Fetch.Concurrency = defaultFetchConcurrency
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	if c.Transcription.Language == "" {
		c.Transcription.Language = defaultLanguage
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultWhisperModel
	}
	c.Transcription.VADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.VADMethod))
	if c.Transcription.VADMethod == "" {
		c.Transcription.VADMethod = defaultVADMethod
	}
	c.Transcription.HFToken = strings.TrimSpace(c.Transcription.HFToken)
	if c.Transcription.HFToken == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			c.Transcription.HFToken = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Transcription.HFToken = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizePlanner() {
	c.Planner.Provider = strings.ToLower(strings.TrimSpace(c.Planner.Provider))
	if c.Planner.Provider == "" {
		c.Planner.Provider = defaultPlannerProvider
	}
	c.Planner.Fallback = strings.ToLower(strings.TrimSpace(c.Planner.Fallback))
	if c.Planner.Fallback == "" {
		c.Planner.Fallback = defaultPlannerFallback
	}
	if c.Planner.MinSpacingSeconds < 0 {
		c.Planner.MinSpacingSeconds = 0
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if strings.TrimSpace(c.LLM.Referer) == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	if strings.TrimSpace(c.LLM.Title) == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeGemini() {
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultGeminiModel
	}
	c.Gemini.BaseURL = strings.TrimSpace(c.Gemini.BaseURL)
	if c.Gemini.TimeoutSeconds <= 0 {
		c.Gemini.TimeoutSeconds = defaultGeminiTimeoutSeconds
	}
	c.Gemini.APIKey = strings.TrimSpace(c.Gemini.APIKey)
	if c.Gemini.APIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Gemini.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("GOOGLE_API_KEY"); ok {
			c.Gemini.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
