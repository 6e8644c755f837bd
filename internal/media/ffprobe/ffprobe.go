package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Clip is the subset of ffprobe output the asset cache needs for one file:
// the container duration and size plus the first audio stream.
type Clip struct {
	Codec           string
	SampleRate      int
	Channels        int
	DurationSeconds float64
	SizeBytes       int64
}

type probeOutput struct {
	Streams []struct {
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
		Duration   string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// Args returns the ffprobe arguments used by Probe.
func Args(path string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "format=duration,size:stream=codec_name,sample_rate,channels,duration",
		"-of", "json",
		"--", path,
	}
}

// Probe runs binary (ffprobe when empty) against path.
func Probe(ctx context.Context, binary, path string) (Clip, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return Clip{}, errors.New("ffprobe: empty path")
	}

	output, err := exec.CommandContext(ctx, binary, Args(path)...).Output() //nolint:gosec
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Clip{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Clip{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return Parse(output)
}

// Parse decodes ffprobe JSON. A file without an audio stream is an error.
// The container duration wins over the stream duration when both exist.
func Parse(data []byte) (Clip, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Clip{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	if len(out.Streams) == 0 {
		return Clip{}, errors.New("ffprobe: no audio stream")
	}
	stream := out.Streams[0]
	clip := Clip{Codec: stream.CodecName, Channels: stream.Channels}

	var err error
	if clip.DurationSeconds, err = number(out.Format.Duration, stream.Duration); err != nil {
		return Clip{}, fmt.Errorf("ffprobe duration: %w", err)
	}
	if rate, err := number(stream.SampleRate); err == nil {
		clip.SampleRate = int(rate)
	}
	if size, err := number(out.Format.Size); err == nil {
		clip.SizeBytes = int64(size)
	}
	return clip, nil
}

// number parses the first non-empty value. Empty input yields 0.
func number(values ...string) (float64, error) {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || v == "N/A" {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, err
		}
		if parsed < 0 {
			return 0, fmt.Errorf("negative value %q", v)
		}
		return parsed, nil
	}
	return 0, nil
}
