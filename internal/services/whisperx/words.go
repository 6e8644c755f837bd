package whisperx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"foley/internal/trigger"
)

// alignedWord is a word as WhisperX writes it. Words the aligner could not
// place (often numerals) have no start.
type alignedWord struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string        `json:"text"`
	Start float64       `json:"start"`
	End   float64       `json:"end"`
	Words []alignedWord `json:"words"`
}

type payload struct {
	Segments []Segment `json:"segments"`
}

// LoadWords reads a transcript file. Both WhisperX JSON ({"segments": [...]})
// and a flat array of {"word", "start"} objects are accepted.
func LoadWords(path string) ([]trigger.Word, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseWords(data)
}

// ParseWords decodes transcript JSON, see LoadWords. Unaligned words inherit
// the end of the previous word, or their segment's start.
func ParseWords(data []byte) ([]trigger.Word, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var flat []trigger.Word
		if err := json.Unmarshal(data, &flat); err != nil {
			return nil, fmt.Errorf("parse word list: %w", err)
		}
		return flat, nil
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	var words []trigger.Word
	for _, seg := range p.Segments {
		cursor := seg.Start
		for _, w := range seg.Words {
			text := strings.TrimSpace(w.Word)
			if text == "" {
				continue
			}
			start := cursor
			if w.Start != nil {
				start = *w.Start
			}
			end := start
			if w.End != nil {
				end = *w.End
			}
			cursor = end
			words = append(words, trigger.Word{Text: text, Start: start, End: end})
		}
	}
	return words, nil
}
