// Package catalog holds the fixed, ordered set of quiz questions.
//
// A Catalog is built once at startup and never mutated, so it is safe for
// concurrent reads without locking.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrOutOfRange is returned when an item index is outside the catalog.
	ErrOutOfRange = errors.New("catalog: index out of range")
	// ErrEmpty is returned when a catalog has no questions.
	ErrEmpty = errors.New("catalog: no questions")
)

//go:embed default.yaml
var defaultYAML []byte

// Item is a single multiple-choice question.
type Item struct {
	Prompt  string   `yaml:"prompt"`
	Options []string `yaml:"options"`
	Correct int      `yaml:"correct"`
}

// CorrectText returns the text of the correct option.
func (it Item) CorrectText() string {
	return it.Options[it.Correct]
}

// Catalog is an immutable ordered list of items.
type Catalog struct {
	items []Item
}

type document struct {
	Questions []Item `yaml:"questions"`
}

// New validates items and returns a catalog holding private copies of them.
func New(items []Item) (*Catalog, error) {
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	copied := make([]Item, len(items))
	for i, it := range items {
		if err := validate(it); err != nil {
			return nil, fmt.Errorf("catalog: question %d: %w", i+1, err)
		}
		copied[i] = Item{
			Prompt:  it.Prompt,
			Options: append([]string(nil), it.Options...),
			Correct: it.Correct,
		}
	}
	return &Catalog{items: copied}, nil
}

func validate(it Item) error {
	if strings.TrimSpace(it.Prompt) == "" {
		return errors.New("empty prompt")
	}
	if len(it.Options) < 2 {
		return fmt.Errorf("need at least 2 options, got %d", len(it.Options))
	}
	for j, opt := range it.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("option %d is empty", j)
		}
	}
	if it.Correct < 0 || it.Correct >= len(it.Options) {
		return fmt.Errorf("correct index %d outside [0,%d)", it.Correct, len(it.Options))
	}
	return nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}
	return New(doc.Questions)
}

// Load reads a YAML catalog from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the catalog embedded in the binary.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return c
}

// Size reports the number of items.
func (c *Catalog) Size() int {
	return len(c.items)
}

// ItemAt returns a copy of the item at index.
func (c *Catalog) ItemAt(index int) (Item, error) {
	if index < 0 || index >= len(c.items) {
		return Item{}, fmt.Errorf("%w: %d (size %d)", ErrOutOfRange, index, len(c.items))
	}
	it := c.items[index]
	it.Options = append([]string(nil), it.Options...)
	return it, nil
}
