package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"foley/internal/textutil"
)

//go:embed categories.toml
var defaultCatalog []byte

// DefaultNegativeTags penalize candidate titles that are unlikely to be a
// clean, isolated effect. Used when a catalog file does not list its own.
var DefaultNegativeTags = []string{
	"cartoon", "funny", "meme", "remix", "song", "music",
	"intro", "compilation", "lofi", "beat", "voice", "talking",
}

// Category describes one kind of sound effect.
type Category struct {
	ID              string   `toml:"id"`
	Triggers        []string `toml:"triggers"`
	Search          string   `toml:"search"`
	Positive        []string `toml:"positive"`
	VolumeDB        float64  `toml:"volume_db"`
	CooldownSeconds float64  `toml:"cooldown_seconds"`
}

// Catalog is an ordered set of categories plus the global negative tags.
// Category order is significant: the trigger matcher takes the first match.
type Catalog struct {
	NegativeTags []string   `toml:"negative_tags"`
	Categories   []Category `toml:"category"`

	index map[string]int
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	cat, err := Parse(defaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("embedded catalog: %w", err)
	}
	return cat, nil
}

// Load reads a catalog from path, or returns the embedded catalog when path
// is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes and validates catalog TOML.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := toml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	cat.normalize()
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	cat.buildIndex()
	return &cat, nil
}

// New builds a catalog from in-memory categories. Tests and the planner use it
// to work with subsets of the default table.
func New(categories []Category, negativeTags []string) (*Catalog, error) {
	cat := Catalog{
		NegativeTags: append([]string(nil), negativeTags...),
		Categories:   append([]Category(nil), categories...),
	}
	cat.normalize()
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	cat.buildIndex()
	return &cat, nil
}

func (c *Catalog) normalize() {
	for i := range c.Categories {
		cat := &c.Categories[i]
		cat.ID = strings.TrimSpace(cat.ID)
		cat.Search = strings.TrimSpace(cat.Search)
		cat.Triggers = trimAll(cat.Triggers, false)
		cat.Positive = trimAll(cat.Positive, true)
	}
	if c.NegativeTags == nil {
		c.NegativeTags = append([]string(nil), DefaultNegativeTags...)
	}
	c.NegativeTags = trimAll(c.NegativeTags, true)
}

func trimAll(values []string, lower bool) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate reports the first structural problem in the catalog.
func (c *Catalog) Validate() error {
	if len(c.Categories) == 0 {
		return errors.New("catalog defines no categories")
	}
	seen := make(map[string]struct{}, len(c.Categories))
	for i, cat := range c.Categories {
		if cat.ID == "" {
			return fmt.Errorf("category #%d: id is required", i+1)
		}
		if textutil.SanitizeToken(cat.ID) != cat.ID {
			return fmt.Errorf("category %q: id must be a lowercase token usable in file names", cat.ID)
		}
		if _, dup := seen[cat.ID]; dup {
			return fmt.Errorf("category %q: duplicate id", cat.ID)
		}
		seen[cat.ID] = struct{}{}
		if len(cat.Triggers) == 0 {
			return fmt.Errorf("category %q: at least one trigger is required", cat.ID)
		}
		if cat.Search == "" {
			return fmt.Errorf("category %q: search phrase is required", cat.ID)
		}
		if cat.CooldownSeconds < 0 {
			return fmt.Errorf("category %q: cooldown_seconds must be >= 0", cat.ID)
		}
	}
	return nil
}

func (c *Catalog) buildIndex() {
	c.index = make(map[string]int, len(c.Categories))
	for i, cat := range c.Categories {
		c.index[cat.ID] = i
	}
}

// Lookup returns the category with the given id.
func (c *Catalog) Lookup(id string) (Category, bool) {
	if c == nil {
		return Category{}, false
	}
	i, ok := c.index[strings.TrimSpace(id)]
	if !ok {
		return Category{}, false
	}
	return c.Categories[i], true
}

// IDs returns category ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.Categories))
	for i, cat := range c.Categories {
		ids[i] = cat.ID
	}
	return ids
}

// Len returns the number of categories.
func (c *Catalog) Len() int {
	return len(c.Categories)
}
