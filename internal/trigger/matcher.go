package trigger

import (
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"foley/internal/catalog"
	"foley/internal/logging"
)

// DefaultGlobalGap is the minimum spacing in seconds between any two events.
const DefaultGlobalGap = 4.0

// longTriggerRunes is the length from which a trigger may match anywhere in a word.
const longTriggerRunes = 4

// maxSuffixRunes bounds how much longer than a short trigger a word may be.
const maxSuffixRunes = 3

// Word is a single transcribed token with its start offset in seconds.
type Word struct {
	Text  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end,omitempty"`
}

// Event asks for one effect of Category at Start seconds. Duration, when
// positive, is the desired clip length in seconds.
type Event struct {
	Category string  `json:"category"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration,omitempty"`
	Word     string  `json:"word,omitempty"`
	Trigger  string  `json:"trigger,omitempty"`
}

// Outcome classifies a matcher decision.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeGlobalGap Outcome = "global_gap"
	OutcomeCooldown  Outcome = "cooldown"
)

// Decision records why a word produced, or did not produce, an event.
// Words that match no category are not recorded.
type Decision struct {
	Word     string
	Start    float64
	Category string
	Trigger  string
	Outcome  Outcome
	Wait     float64
}

type compiledTrigger struct {
	raw   string
	form  string
	runes int
}

// Matcher holds the per-run clocks used to enforce the global gap and the
// per-category cooldowns. A Matcher is not safe for concurrent use.
type Matcher struct {
	categories []catalog.Category
	triggers   [][]compiledTrigger
	globalGap  float64
	logger     *slog.Logger

	lastGlobal   float64
	lastCategory map[string]float64
	decisions    []Decision
}

// Option customizes a Matcher.
type Option func(*Matcher)

// WithLogger routes decision logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMatcher compiles the trigger lists of categories, preserving their order.
func NewMatcher(categories []catalog.Category, globalGap float64, opts ...Option) *Matcher {
	if globalGap < 0 {
		globalGap = 0
	}
	m := &Matcher{
		categories: categories,
		triggers:   make([][]compiledTrigger, len(categories)),
		globalGap:  globalGap,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	for i, cat := range categories {
		compiled := make([]compiledTrigger, 0, len(cat.Triggers))
		for _, raw := range cat.Triggers {
			form := Normalize(raw)
			if form == "" {
				continue
			}
			compiled = append(compiled, compiledTrigger{raw: raw, form: form, runes: utf8.RuneCountInString(form)})
		}
		m.triggers[i] = compiled
	}
	m.Reset()
	return m
}

// Reset clears the clocks and the decision log.
func (m *Matcher) Reset() {
	m.lastGlobal = math.Inf(-1)
	m.lastCategory = make(map[string]float64, len(m.categories))
	m.decisions = nil
}

// Match scans words in order and returns the accepted events. State is reset
// at the start of every call.
func (m *Matcher) Match(words []Word) []Event {
	m.Reset()
	var events []Event
	for _, word := range words {
		if ev, ok := m.Observe(word); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Observe feeds one word through the matcher without resetting state.
func (m *Matcher) Observe(word Word) (Event, bool) {
	if word.Start-m.lastGlobal < m.globalGap {
		// Skipped before category lookup; only logged when it would have matched.
		if idx, trig, ok := m.lookup(word.Text); ok {
			m.record(word, m.categories[idx].ID, trig, OutcomeGlobalGap, m.lastGlobal+m.globalGap-word.Start)
		}
		return Event{}, false
	}

	idx, trig, ok := m.lookup(word.Text)
	if !ok {
		return Event{}, false
	}
	cat := m.categories[idx]
	if last, seen := m.lastCategory[cat.ID]; seen && word.Start-last < cat.CooldownSeconds {
		m.record(word, cat.ID, trig, OutcomeCooldown, last+cat.CooldownSeconds-word.Start)
		return Event{}, false
	}

	m.lastCategory[cat.ID] = word.Start
	m.lastGlobal = word.Start
	m.record(word, cat.ID, trig, OutcomeAccepted, 0)
	return Event{
		Category: cat.ID,
		Start:    word.Start,
		Word:     word.Text,
		Trigger:  trig,
	}, true
}

// Decisions returns the decisions recorded since the last reset.
func (m *Matcher) Decisions() []Decision {
	out := make([]Decision, len(m.decisions))
	copy(out, m.decisions)
	return out
}

// lookup returns the index of the first category with a trigger matching text.
func (m *Matcher) lookup(text string) (int, string, bool) {
	raw := Normalize(text)
	if raw == "" {
		return 0, "", false
	}
	stem := StripClitics(raw)
	stemRunes := utf8.RuneCountInString(stem)
	for i, compiled := range m.triggers {
		for _, trig := range compiled {
			if matches(raw, stem, stemRunes, trig) {
				return i, trig.raw, true
			}
		}
	}
	return 0, "", false
}

func matches(raw, stem string, stemRunes int, trig compiledTrigger) bool {
	if trig.runes >= longTriggerRunes {
		return strings.Contains(raw, trig.form)
	}
	return strings.HasPrefix(stem, trig.form) && stemRunes <= trig.runes+maxSuffixRunes
}

func (m *Matcher) record(word Word, category, trig string, outcome Outcome, wait float64) {
	m.decisions = append(m.decisions, Decision{
		Word:     word.Text,
		Start:    word.Start,
		Category: category,
		Trigger:  trig,
		Outcome:  outcome,
		Wait:     wait,
	})
	attrs := []logging.Attr{
		logging.String(logging.FieldCategory, category),
		logging.String("word", word.Text),
		logging.Float64("start_seconds", word.Start),
		logging.String("trigger", trig),
	}
	if wait > 0 {
		attrs = append(attrs, logging.Float64("wait_seconds", wait))
	}
	attrs = append(attrs, logging.DecisionAttrs("trigger_match", string(outcome), reasonFor(outcome))...)
	m.logger.Debug("trigger decision", logging.Args(attrs...)...)
}

func reasonFor(outcome Outcome) string {
	switch outcome {
	case OutcomeGlobalGap:
		return "within global gap of previous event"
	case OutcomeCooldown:
		return "category cooling down"
	default:
		return "matched"
	}
}

// Match is a convenience wrapper that runs a fresh Matcher over words.
func Match(words []Word, categories []catalog.Category, globalGap float64) []Event {
	return NewMatcher(categories, globalGap).Match(words)
}
