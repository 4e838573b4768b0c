// Package catalog loads the read-only item catalog used for matching.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// ErrMalformed is returned when a catalog document cannot be decoded.
var ErrMalformed = errors.New("malformed catalog")

// Item is one catalog entry.
type Item struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

type document struct {
	Items []Item `json:"items" yaml:"items"`
}

// Catalog is an ordered, immutable set of items keyed by name. Order matters:
// matching walks items in document order and breaks ties by it.
type Catalog struct {
	items []Item
	index map[string]int
}

// New builds a catalog from items. Entries with an empty name are skipped and
// later duplicates of a name are ignored.
func New(items []Item) *Catalog {
	c := &Catalog{index: make(map[string]int, len(items))}
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		if _, dup := c.index[name]; dup {
			continue
		}
		c.index[name] = len(c.items)
		c.items = append(c.items, Item{Name: name, Value: it.Value})
	}
	return c
}

// Empty returns a catalog without items. Nothing ever matches it.
func Empty() *Catalog {
	return New(nil)
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Items returns a copy of the items in catalog order.
func (c *Catalog) Items() []Item {
	if c == nil {
		return nil
	}
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Lookup returns the item with the given name.
func (c *Catalog) Lookup(name string) (Item, bool) {
	if c == nil {
		return Item{}, false
	}
	i, ok := c.index[name]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Without returns the items whose names are not in used, in catalog order.
func (c *Catalog) Without(used map[string]bool) []Item {
	if c == nil {
		return nil
	}
	out := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		if !used[it.Name] {
			out = append(out, it)
		}
	}
	return out
}

// Parse decodes a catalog document. format is "json" or "yaml".
func Parse(data []byte, format string) (*Catalog, error) {
	var doc document
	var err error
	switch format {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &doc)
	case "json", "":
		err = json.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrMalformed, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return New(doc.Items), nil
}

// LoadFile reads a catalog document, picking the decoder from the extension.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data, formatFor(path))
}

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}
