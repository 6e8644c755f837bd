package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMatcher(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	if err := c.validateDecorrelate(); err != nil {
		return err
	}
	if err := c.validateMix(); err != nil {
		return err
	}
	if err := c.validatePlanner(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMatcher() error {
	if c.Matcher.GlobalGapSeconds < 0 {
		return errors.New("matcher.global_gap_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateQuality() error {
	if c.Quality.MinDurationSeconds < 0 {
		return errors.New("quality.min_duration_seconds must be >= 0")
	}
	if c.Quality.MinDurationSeconds >= c.Quality.MaxDurationSeconds {
		return fmt.Errorf("quality.min_duration_seconds (%.2f) must be below quality.max_duration_seconds (%.2f)",
			c.Quality.MinDurationSeconds, c.Quality.MaxDurationSeconds)
	}
	return nil
}

func (c *Config) validateDecorrelate() error {
	if c.Decorrelate.MaxRateDeviation < 0 || c.Decorrelate.MaxRateDeviation >= 0.5 {
		return errors.New("decorrelate.max_rate_deviation must be within [0, 0.5)")
	}
	return nil
}

func (c *Config) validateMix() error {
	switch c.Mix.OutputFormat {
	case "mp3", "wav":
	default:
		return fmt.Errorf("mix.output_format: unsupported value %q (use mp3 or wav)", c.Mix.OutputFormat)
	}
	if c.Mix.SilenceThresholdDB > 0 {
		return errors.New("mix.silence_threshold_db must be <= 0 dBFS")
	}
	if c.Mix.HighPassHz < 0 {
		return errors.New("mix.highpass_hz must be >= 0")
	}
	return nil
}

func (c *Config) validatePlanner() error {
	switch c.Planner.Provider {
	case "gemini", "openrouter":
	default:
		return fmt.Errorf("planner.provider: unsupported value %q (use gemini or openrouter)", c.Planner.Provider)
	}
	switch c.Planner.Fallback {
	case "lexical", "none":
	default:
		return fmt.Errorf("planner.fallback: unsupported value %q (use lexical or none)", c.Planner.Fallback)
	}
	if !c.Planner.Enabled {
		return nil
	}
	switch c.Planner.Provider {
	case "gemini":
		if c.Gemini.APIKey == "" {
			return errors.New("gemini.api_key is required when planner.enabled is true (or export GEMINI_API_KEY)")
		}
	case "openrouter":
		if c.LLM.APIKey == "" {
			return errors.New("llm.api_key is required when planner.provider is openrouter (or export OPENROUTER_API_KEY)")
		}
	}
	return nil
}
