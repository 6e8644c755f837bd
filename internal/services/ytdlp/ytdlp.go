package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"foley/internal/assetcache"
	"foley/internal/logging"
	"foley/internal/scoring"
)

// DefaultBinary is the executable looked up on PATH.
const DefaultBinary = "yt-dlp"

// Runner executes a command and returns its stdout. Implementations should
// include stderr in the returned error.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client implements assetcache.Fetcher.
type Client struct {
	binary string
	run    Runner
	logger *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithRunner replaces command execution (for tests).
func WithRunner(r Runner) Option {
	return func(c *Client) {
		if r != nil {
			c.run = r
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logging.NewComponentLogger(logger, "ytdlp")
		}
	}
}

// New builds a client for binary (DefaultBinary when empty).
func New(binary string, opts ...Option) *Client {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	c := &Client{binary: binary, run: execRunner, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ assetcache.Fetcher = (*Client)(nil)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

type searchResult struct {
	Entries []searchEntry `json:"entries"`
}

type searchEntry struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Duration   *float64 `json:"duration"`
	URL        string   `json:"url"`
	WebpageURL string   `json:"webpage_url"`
}

// SearchArgs builds the flat-playlist search invocation.
func SearchArgs(query string, limit int) []string {
	if limit <= 0 {
		limit = 1
	}
	return []string{
		"--flat-playlist",
		"--no-warnings",
		"-J",
		fmt.Sprintf("ytsearch%d:%s", limit, query),
	}
}

// Search returns up to limit candidates for query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]scoring.Candidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("ytdlp search: query required")
	}
	out, err := c.run(ctx, c.binary, SearchArgs(query, limit)...)
	if err != nil {
		return nil, fmt.Errorf("ytdlp search: %w", err)
	}
	candidates, err := ParseSearch(out)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("ytdlp search complete",
		logging.String("query", query),
		logging.Int("results", len(candidates)),
	)
	return candidates, nil
}

// ParseSearch converts yt-dlp -J output into candidates. Entries without any
// usable locator are skipped; a missing duration is reported as zero.
func ParseSearch(data []byte) ([]scoring.Candidate, error) {
	var result searchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("ytdlp search: parse json: %w", err)
	}
	candidates := make([]scoring.Candidate, 0, len(result.Entries))
	for _, entry := range result.Entries {
		locator := entryLocator(entry)
		if locator == "" {
			continue
		}
		var duration float64
		if entry.Duration != nil {
			duration = *entry.Duration
		}
		candidates = append(candidates, scoring.Candidate{
			Title:    entry.Title,
			Duration: duration,
			Locator:  locator,
		})
	}
	return candidates, nil
}

func entryLocator(entry searchEntry) string {
	switch {
	case strings.TrimSpace(entry.WebpageURL) != "":
		return entry.WebpageURL
	case strings.TrimSpace(entry.URL) != "":
		return entry.URL
	case strings.TrimSpace(entry.ID) != "":
		return "https://www.youtube.com/watch?v=" + entry.ID
	default:
		return ""
	}
}

// FetchArgs builds the audio download invocation writing to destStem.<ext>.
func FetchArgs(locator, destStem string, limits assetcache.Constraints) []string {
	args := []string{
		"--no-warnings",
		"--no-progress",
		"--no-playlist",
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "mp3",
	}
	if limits.MaxFileSizeBytes > 0 {
		args = append(args, "--max-filesize", strconv.FormatInt(limits.MaxFileSizeBytes, 10))
	}
	if limits.MaxDurationSeconds > 0 {
		args = append(args, "--match-filter", "duration<="+strconv.Itoa(limits.MaxDurationSeconds))
	}
	return append(args, "-o", destStem+".%(ext)s", locator)
}

// Fetch downloads locator and returns the path of the produced MP3. destStem
// is the output path without extension.
func (c *Client) Fetch(ctx context.Context, locator, destStem string, limits assetcache.Constraints) (string, error) {
	if strings.TrimSpace(locator) == "" {
		return "", errors.New("ytdlp fetch: locator required")
	}
	if err := os.MkdirAll(filepath.Dir(destStem), 0o755); err != nil {
		return "", fmt.Errorf("ytdlp fetch: create directory: %w", err)
	}
	if _, err := c.run(ctx, c.binary, FetchArgs(locator, destStem, limits)...); err != nil {
		return "", fmt.Errorf("ytdlp fetch: %w", err)
	}

	path := destStem + ".mp3"
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	// --max-filesize and --match-filter skip silently, leaving nothing behind.
	matches, _ := filepath.Glob(destStem + ".*")
	for _, m := range matches {
		if !strings.HasSuffix(m, ".part") {
			return m, nil
		}
	}
	return "", fmt.Errorf("ytdlp fetch: no file produced for %s (filtered by size or duration?)", locator)
}
