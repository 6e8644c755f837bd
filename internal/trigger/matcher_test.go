package trigger

import (
	"math/rand"
	"testing"

	"foley/internal/catalog"
)

func doorCatalog() []catalog.Category {
	return []catalog.Category{
		{ID: "door_open", Triggers: []string{"door"}, Search: "door open", CooldownSeconds: 30},
		{ID: "rain", Triggers: []string{"rain", "مطر"}, Search: "rain heavy", CooldownSeconds: 0},
	}
}

func TestSingleDoorProducesOneEvent(t *testing.T) {
	events := Match([]Word{{Text: "door", Start: 2.0}}, doorCatalog(), 4)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Category != "door_open" || events[0].Start != 2.0 {
		t.Fatalf("unexpected event %+v", events[0])
	}
}

func TestRepeatedDoorWithinCooldownIsRejected(t *testing.T) {
	m := NewMatcher(doorCatalog(), 4)
	events := m.Match([]Word{{Text: "door", Start: 2.0}, {Text: "door", Start: 10.0}})
	if len(events) != 1 || events[0].Start != 2.0 {
		t.Fatalf("expected only the first door event, got %+v", events)
	}
	decisions := m.Decisions()
	if len(decisions) != 2 || decisions[1].Outcome != OutcomeCooldown {
		t.Fatalf("expected cooldown decision, got %+v", decisions)
	}
	if decisions[1].Wait != 22 {
		t.Fatalf("expected 22s remaining cooldown, got %v", decisions[1].Wait)
	}
}

func TestCooldownRejectionDoesNotAdvanceGlobalClock(t *testing.T) {
	events := Match([]Word{
		{Text: "door", Start: 0},
		{Text: "door", Start: 5},
		{Text: "rain", Start: 6},
	}, doorCatalog(), 4)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %+v", events)
	}
	if events[1].Category != "rain" || events[1].Start != 6 {
		t.Fatalf("expected rain at 6s, got %+v", events[1])
	}
}

func TestGlobalGapSkipsWords(t *testing.T) {
	m := NewMatcher(doorCatalog(), 4)
	events := m.Match([]Word{
		{Text: "door", Start: 0},
		{Text: "rain", Start: 3},
		{Text: "rain", Start: 4},
	})
	if len(events) != 2 || events[1].Start != 4 {
		t.Fatalf("expected rain at exactly the gap boundary, got %+v", events)
	}
	if got := m.Decisions()[1].Outcome; got != OutcomeGlobalGap {
		t.Fatalf("expected global gap decision, got %s", got)
	}
}

func TestShortTriggerRules(t *testing.T) {
	cats := doorCatalog()
	tests := []struct {
		word string
		want bool
	}{
		{"مطر", true},
		{"المطر", true},
		{"ومطرها", true},
		{"مَطَرٌ", true},
		{"مطرهاجدا", false},
		{"امطر", false},
		{"Rainfall", true},
	}
	for _, tt := range tests {
		events := Match([]Word{{Text: tt.word, Start: 1}}, cats, 4)
		if got := len(events) == 1; got != tt.want {
			t.Errorf("word %q matched=%v, want %v", tt.word, got, tt.want)
		}
	}
}

func TestFirstCategoryInOrderWins(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	events := Match([]Word{{Text: "قفل", Start: 1}}, cat.Categories, DefaultGlobalGap)
	if len(events) != 1 || events[0].Category != "door_slam" {
		t.Fatalf("expected door_slam to win over lock, got %+v", events)
	}
}

func TestEmptyTranscriptYieldsNoEvents(t *testing.T) {
	if events := Match(nil, doorCatalog(), 4); len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
	if events := Match([]Word{{Text: "hello", Start: 1}, {Text: "", Start: 2}}, doorCatalog(), 4); len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
}

func TestMatchResetsBetweenCalls(t *testing.T) {
	m := NewMatcher(doorCatalog(), 4)
	words := []Word{{Text: "door", Start: 1}}
	if len(m.Match(words)) != 1 || len(m.Match(words)) != 1 {
		t.Fatal("expected state to reset for each Match call")
	}
}

func TestSpacingInvariantsHoldOnDefaultCatalog(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	var vocab []string
	for _, c := range cat.Categories {
		vocab = append(vocab, c.Triggers...)
	}
	vocab = append(vocab, "و", "كان", "هناك", "رجل")

	rng := rand.New(rand.NewSource(7))
	words := make([]Word, 0, 2000)
	start := 0.0
	for range 2000 {
		start += rng.Float64() * 1.5
		words = append(words, Word{Text: vocab[rng.Intn(len(vocab))], Start: start})
	}

	events := Match(words, cat.Categories, DefaultGlobalGap)
	if len(events) == 0 {
		t.Fatal("expected some events from trigger vocabulary")
	}
	lastByCategory := map[string]float64{}
	for i, ev := range events {
		if i > 0 && ev.Start-events[i-1].Start < DefaultGlobalGap {
			t.Fatalf("events %d and %d closer than the global gap", i-1, i)
		}
		c, _ := cat.Lookup(ev.Category)
		if last, ok := lastByCategory[ev.Category]; ok && ev.Start-last < c.CooldownSeconds {
			t.Fatalf("%s events closer than cooldown: %v then %v", ev.Category, last, ev.Start)
		}
		lastByCategory[ev.Category] = ev.Start
	}
}
