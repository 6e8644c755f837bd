package config

const (
	defaultConfigPath             = "~/.config/foley/config.toml"
	defaultWorkDir                = "~/.local/share/foley/work"
	defaultLogDir                 = "~/.local/share/foley/logs"
	defaultOutputDir              = "."
	defaultNamespace              = "default"
	defaultIndexFile              = "index.db"
	defaultGlobalGapSeconds       = 4.0
	defaultMinDurationSeconds     = 0.2
	defaultMaxDurationSeconds     = 120.0
	defaultMinSizeBytes           = 1024
	defaultMaxRateDeviation       = 0.04
	defaultSampleRate             = 44100
	defaultHighPassHz             = 100.0
	defaultSilenceThresholdDB     = -40.0
	defaultMinSilenceMS           = 300
	defaultCropPaddingMS          = 100
	defaultFadeInMS               = 10
	defaultFadeOutMS              = 400
	defaultOutputFormat           = "mp3"
	defaultYTDLPBinary            = "yt-dlp"
	defaultSearchResults          = 5
	defaultMaxFileSizeMB          = 20
	defaultFetchMaxDuration       = 120
	defaultSearchTimeoutSeconds   = 30
	defaultDownloadTimeoutSeconds = 120
	defaultFetchConcurrency       = 2
	defaultLanguage               = "ar"
	defaultWhisperModel           = "large-v3"
	defaultVADMethod              = "silero"
	defaultPlannerProvider        = "gemini"
	defaultPlannerFallback        = "lexical"
	defaultLLMBaseURL             = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel               = "google/gemini-2.5-flash"
	defaultLLMReferer             = "https://github.com/foley-audio/foley"
	defaultLLMTitle               = "foley cue planner"
	defaultLLMTimeoutSeconds      = 60
	defaultGeminiModel            = "gemini-2.5-flash"
	defaultGeminiTimeoutSeconds   = 60
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir:  defaultCacheDir(),
			WorkDir:   defaultWorkDir,
			LogDir:    defaultLogDir,
			OutputDir: defaultOutputDir,
		},
		Cache: Cache{
			Namespace: defaultNamespace,
		},
		Matcher: Matcher{
			GlobalGapSeconds: defaultGlobalGapSeconds,
		},
		Quality: Quality{
			MinDurationSeconds: defaultMinDurationSeconds,
			MaxDurationSeconds: defaultMaxDurationSeconds,
			MinSizeBytes:       defaultMinSizeBytes,
		},
		Decorrelate: Decorrelate{
			Enabled:          true,
			MaxRateDeviation: defaultMaxRateDeviation,
			SampleRate:       defaultSampleRate,
		},
		Mix: Mix{
			HighPassHz:         defaultHighPassHz,
			SilenceThresholdDB: defaultSilenceThresholdDB,
			MinSilenceMS:       defaultMinSilenceMS,
			CropPaddingMS:      defaultCropPaddingMS,
			FadeInMS:           defaultFadeInMS,
			FadeOutMS:          defaultFadeOutMS,
			OutputFormat:       defaultOutputFormat,
		},
		Fetch: Fetch{
			Binary:                 defaultYTDLPBinary,
			SearchResults:          defaultSearchResults,
			MaxFileSizeMB:          defaultMaxFileSizeMB,
			MaxDurationSeconds:     defaultFetchMaxDuration,
			SearchTimeoutSeconds:   defaultSearchTimeoutSeconds,
			DownloadTimeoutSeconds: defaultDownloadTimeoutSeconds,
			Concurrency:            defaultFetchConcurrency,
		},
		Transcription: Transcription{
			Language:  defaultLanguage,
			Model:     defaultWhisperModel,
			VADMethod: defaultVADMethod,
		},
		Planner: Planner{
			Provider:          defaultPlannerProvider,
			MinSpacingSeconds: defaultGlobalGapSeconds,
			Fallback:          defaultPlannerFallback,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Gemini: Gemini{
			Model:          defaultGeminiModel,
			TimeoutSeconds: defaultGeminiTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
