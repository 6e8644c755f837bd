package planner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"foley/internal/textutil"
)

// ErrUnrecognizedShape is returned when model output matches none of the
// accepted response shapes.
var ErrUnrecognizedShape = errors.New("planner: unrecognized response shape")

// Shape names the response layout that was recognized.
type Shape string

const (
	ShapeArray     Shape = "array"
	ShapeSFXKey    Shape = "sfx_key"
	ShapeSingleKey Shape = "single_key"
)

// Cue is one effect placement proposed by the model.
type Cue struct {
	SFX      string   `json:"sfx" jsonschema:"description=category ID from the provided list"`
	Time     float64  `json:"time" jsonschema:"description=start offset in seconds,minimum=0"`
	Duration *float64 `json:"duration,omitempty" jsonschema:"description=desired clip length in seconds"`
}

// Response is the canonical shape requested from the model.
type Response struct {
	SFX []Cue `json:"sfx"`
}

// UnmarshalJSON accepts "category" as an alias of "sfx" and numbers encoded
// as strings.
func (c *Cue) UnmarshalJSON(data []byte) error {
	var raw struct {
		SFX      string          `json:"sfx"`
		Category string          `json:"category"`
		Time     json.RawMessage `json:"time"`
		Duration json.RawMessage `json:"duration"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.SFX = strings.TrimSpace(raw.SFX)
	if c.SFX == "" {
		c.SFX = strings.TrimSpace(raw.Category)
	}
	t, ok, err := flexibleNumber(raw.Time)
	if err != nil {
		return fmt.Errorf("time: %w", err)
	}
	if !ok {
		return errors.New("time is required")
	}
	c.Time = t
	c.Duration = nil
	if d, ok, err := flexibleNumber(raw.Duration); err != nil {
		return fmt.Errorf("duration: %w", err)
	} else if ok {
		c.Duration = &d
	}
	return nil
}

func flexibleNumber(raw json.RawMessage) (float64, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// ParseResponse decodes model output into cues. Shapes are tried in order:
// a bare array, an object whose "sfx" key holds an array, then an object with
// exactly one array-valued key.
func ParseResponse(content string) ([]Cue, Shape, error) {
	payload := []byte(textutil.ExtractJSON(content))
	if len(payload) == 0 {
		return nil, "", fmt.Errorf("%w: empty output", ErrUnrecognizedShape)
	}

	var cues []Cue
	if isArray(payload) {
		if err := json.Unmarshal(payload, &cues); err == nil {
			return cues, ShapeArray, nil
		}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, "", fmt.Errorf("%w: %s", ErrUnrecognizedShape, textutil.Snippet(string(payload), 120))
	}
	if value, ok := obj["sfx"]; ok && isArray(value) {
		if err := json.Unmarshal(value, &cues); err == nil {
			return cues, ShapeSFXKey, nil
		}
	}

	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var found []Cue
	matches := 0
	for _, key := range keys {
		if !isArray(obj[key]) {
			continue
		}
		var candidate []Cue
		if err := json.Unmarshal(obj[key], &candidate); err == nil {
			found = candidate
			matches++
		}
	}
	if matches == 1 {
		return found, ShapeSingleKey, nil
	}
	return nil, "", fmt.Errorf("%w: %s", ErrUnrecognizedShape, textutil.Snippet(string(payload), 120))
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Filter drops cues with unknown categories or invalid times, sorts the rest
// by time (stable) and keeps only cues at least minSpacing seconds after the
// previously kept cue. It returns the kept cues and the number dropped.
func Filter(cues []Cue, known map[string]bool, minSpacing float64) ([]Cue, int) {
	valid := make([]Cue, 0, len(cues))
	for _, cue := range cues {
		if !known[cue.SFX] || cue.Time < 0 || math.IsNaN(cue.Time) || math.IsInf(cue.Time, 0) {
			continue
		}
		if cue.Duration != nil && (*cue.Duration <= 0 || math.IsNaN(*cue.Duration)) {
			cue.Duration = nil
		}
		valid = append(valid, cue)
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Time < valid[j].Time })

	kept := make([]Cue, 0, len(valid))
	last := math.Inf(-1)
	for _, cue := range valid {
		if cue.Time-last < minSpacing {
			continue
		}
		kept = append(kept, cue)
		last = cue.Time
	}
	return kept, len(cues) - len(kept)
}
