package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if cat.Len() != 22 {
		t.Fatalf("expected 22 categories, got %d", cat.Len())
	}
	ids := cat.IDs()
	if ids[0] != "slide" || ids[len(ids)-1] != "paper" {
		t.Fatalf("unexpected catalog order: first=%s last=%s", ids[0], ids[len(ids)-1])
	}

	door, ok := cat.Lookup("door_open")
	if !ok {
		t.Fatal("door_open missing from default catalog")
	}
	if door.CooldownSeconds != 30 || door.VolumeDB != -5 {
		t.Fatalf("unexpected door_open settings: %+v", door)
	}
	if door.Search != "door open squeak sound effect" {
		t.Fatalf("unexpected door_open search: %q", door.Search)
	}
	if len(cat.NegativeTags) != len(DefaultNegativeTags) {
		t.Fatalf("unexpected negative tags: %v", cat.NegativeTags)
	}
	if _, ok := cat.Lookup("spaceship"); ok {
		t.Fatal("lookup of unknown id should fail")
	}
}

func TestParseDefaultsNegativeTags(t *testing.T) {
	cat, err := Parse([]byte(`
[[category]]
id = "door_open"
triggers = [" door ", ""]
search = "door open"
positive = ["Creak"]
volume_db = -5.0
cooldown_seconds = 30.0
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := cat.Categories[0]
	if len(got.Triggers) != 1 || got.Triggers[0] != "door" {
		t.Fatalf("triggers not normalized: %q", got.Triggers)
	}
	if got.Positive[0] != "creak" {
		t.Fatalf("positive tags not lowercased: %q", got.Positive)
	}
	if strings.Join(cat.NegativeTags, ",") != strings.Join(DefaultNegativeTags, ",") {
		t.Fatalf("expected default negative tags, got %v", cat.NegativeTags)
	}
}

func TestValidateRejectsBadCatalogs(t *testing.T) {
	cases := map[string]string{
		"empty":      ``,
		"duplicate":  "[[category]]\nid=\"a\"\ntriggers=[\"x\"]\nsearch=\"s\"\n[[category]]\nid=\"a\"\ntriggers=[\"y\"]\nsearch=\"s\"\n",
		"no trigger": "[[category]]\nid=\"a\"\ntriggers=[]\nsearch=\"s\"\n",
		"bad id":     "[[category]]\nid=\"Door Open\"\ntriggers=[\"x\"]\nsearch=\"s\"\n",
		"cooldown":   "[[category]]\nid=\"a\"\ntriggers=[\"x\"]\nsearch=\"s\"\ncooldown_seconds=-1.0\n",
		"no search":  "[[category]]\nid=\"a\"\ntriggers=[\"x\"]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(body)); err == nil {
				t.Fatalf("expected %s catalog to fail validation", name)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.toml")
	body := "negative_tags = [\"Spam\"]\n[[category]]\nid=\"rain\"\ntriggers=[\"rain\"]\nsearch=\"rain heavy\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Len() != 1 || len(cat.NegativeTags) != 1 || cat.NegativeTags[0] != "spam" {
		t.Fatalf("unexpected catalog: %+v", cat)
	}

	def, err := Load("  ")
	if err != nil || def.Len() != 22 {
		t.Fatalf("blank path should load the embedded catalog: %v", err)
	}
}
