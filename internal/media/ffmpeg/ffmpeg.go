// Package ffmpeg converts arbitrary input audio into PCM WAV files that the
// rest of the pipeline can read without a codec of its own.
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultBinary is the executable looked up on PATH.
const DefaultBinary = "ffmpeg"

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec
}

// WAVArgs builds the argument list that decodes source and writes 16-bit PCM
// to dest. A non-positive sampleRate or channels keeps the source value.
func WAVArgs(source, dest string, sampleRate, channels int) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
	}
	if channels > 0 {
		args = append(args, "-ac", strconv.Itoa(channels))
	}
	if sampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(sampleRate))
	}
	return append(args, "-c:a", "pcm_s16le", dest)
}

// ToWAV converts source to a PCM WAV at dest using runner, or os/exec when
// runner is nil.
func ToWAV(ctx context.Context, runner Runner, binary, source, dest string, sampleRate, channels int) error {
	if strings.TrimSpace(source) == "" || strings.TrimSpace(dest) == "" {
		return fmt.Errorf("ffmpeg convert: source and destination are required")
	}
	if binary == "" {
		binary = DefaultBinary
	}
	if runner == nil {
		runner = ExecRunner
	}
	if output, err := runner(ctx, binary, WAVArgs(source, dest, sampleRate, channels)...); err != nil {
		return fmt.Errorf("ffmpeg convert: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
