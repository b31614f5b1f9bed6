// Package tables loads the static vocabularies used by the keyword expander,
// the relevance scorer and the attribute comparators.
//
// A Tables value is built once at startup and never mutated afterwards, so it
// can be shared freely between goroutines.
package tables

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTables []byte

var (
	ErrEmptyTable     = errors.New("table is empty")
	ErrDuplicateEntry = errors.New("duplicate table entry")
)

// Category is the static configuration of one Discovery category.
type Category struct {
	PrimaryType string   `yaml:"primary_type"`
	Keywords    []string `yaml:"keywords"`
	BonusTerms  []string `yaml:"bonus_terms"`
}

// Expansion maps free-text triggers to extra search phrases.
type Expansion struct {
	Match   []string `yaml:"match"`
	Phrases []string `yaml:"phrases"`
}

// TypeRule overrides the provider type hint when free-text mentions a trigger.
type TypeRule struct {
	Match []string `yaml:"match"`
	Type  string   `yaml:"type"`
}

// Service is a specific intent (training, grooming, ...) detected from free-text.
type Service struct {
	Name     string   `yaml:"name"`
	Triggers []string `yaml:"triggers"`
	Terms    []string `yaml:"terms"`
}

type file struct {
	MaxExpansions int                 `yaml:"max_expansions"`
	Categories    map[string]Category `yaml:"categories"`
	Expansions    []Expansion         `yaml:"expansions"`
	TypeRules     []TypeRule          `yaml:"type_rules"`
	Services      []Service           `yaml:"services"`
	BreedSynonyms [][]string          `yaml:"breed_synonyms"`
	ColorSynonyms [][]string          `yaml:"color_synonyms"`
	FeatureTerms  []string            `yaml:"feature_terms"`
	SizeOrder     []string            `yaml:"size_order"`
}

// Tables is the immutable, indexed form of the vocabulary file.
type Tables struct {
	maxExpansions int
	categories    map[string]Category
	expansions    []Expansion
	typeRules     []TypeRule
	services      []Service
	breedBuckets  map[string]int
	colorBuckets  map[string]int
	featureTerms  []string
	sizeRank      map[string]int
}

// DefaultCategory is used when a query names a category the tables do not know.
const DefaultCategory = "services"

// Default returns the tables compiled into the binary.
func Default() (*Tables, error) {
	return Parse(defaultTables)
}

// MustDefault is Default for tests and package-level wiring.
func MustDefault() *Tables {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Load reads tables from path, or returns the embedded defaults when path is empty.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and indexes a YAML vocabulary document.
func Parse(data []byte) (*Tables, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode tables: %w", err)
	}

	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("categories: %w", ErrEmptyTable)
	}
	if _, ok := f.Categories[DefaultCategory]; !ok {
		return nil, fmt.Errorf("categories: missing default category %q", DefaultCategory)
	}
	if len(f.SizeOrder) == 0 {
		return nil, fmt.Errorf("size_order: %w", ErrEmptyTable)
	}
	if f.MaxExpansions <= 0 {
		f.MaxExpansions = 4
	}

	t := &Tables{
		maxExpansions: f.MaxExpansions,
		categories:    make(map[string]Category, len(f.Categories)),
		expansions:    f.Expansions,
		typeRules:     f.TypeRules,
		services:      f.Services,
		sizeRank:      make(map[string]int, len(f.SizeOrder)),
	}

	for name, c := range f.Categories {
		if len(c.Keywords) == 0 {
			return nil, fmt.Errorf("category %q keywords: %w", name, ErrEmptyTable)
		}
		t.categories[Normalize(name)] = c
	}

	var err error
	if t.breedBuckets, err = indexBuckets(f.BreedSynonyms); err != nil {
		return nil, fmt.Errorf("breed_synonyms: %w", err)
	}
	if t.colorBuckets, err = indexBuckets(f.ColorSynonyms); err != nil {
		return nil, fmt.Errorf("color_synonyms: %w", err)
	}

	for _, term := range f.FeatureTerms {
		if n := Normalize(term); n != "" {
			t.featureTerms = append(t.featureTerms, n)
		}
	}

	for i, size := range f.SizeOrder {
		key := Normalize(size)
		if _, dup := t.sizeRank[key]; dup {
			return nil, fmt.Errorf("size_order %q: %w", size, ErrDuplicateEntry)
		}
		t.sizeRank[key] = i
	}

	return t, nil
}

func indexBuckets(buckets [][]string) (map[string]int, error) {
	idx := make(map[string]int)
	for i, bucket := range buckets {
		for _, word := range bucket {
			key := Normalize(word)
			if key == "" {
				continue
			}
			if _, dup := idx[key]; dup {
				return nil, fmt.Errorf("%q: %w", word, ErrDuplicateEntry)
			}
			idx[key] = i
		}
	}
	return idx, nil
}

// Normalize lowercases s, folds '-' and '_' to spaces and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// MaxExpansions caps the number of expansion phrases added to a free-text query.
func (t *Tables) MaxExpansions() int { return t.maxExpansions }

// Category returns the named category, falling back to DefaultCategory.
func (t *Tables) Category(name string) (Category, string) {
	key := Normalize(name)
	if c, ok := t.categories[key]; ok {
		return c, key
	}
	return t.categories[DefaultCategory], DefaultCategory
}

func (t *Tables) Expansions() []Expansion { return t.expansions }
func (t *Tables) TypeRules() []TypeRule   { return t.typeRules }
func (t *Tables) Services() []Service     { return t.services }

// FeatureTerms returns a copy of the distinctive-feature vocabulary.
func (t *Tables) FeatureTerms() []string {
	out := make([]string, len(t.featureTerms))
	copy(out, t.featureTerms)
	return out
}

// BreedBucket returns the synonym bucket of a breed string.
func (t *Tables) BreedBucket(breed string) (int, bool) {
	b, ok := t.breedBuckets[Normalize(breed)]
	return b, ok
}

// ColorBucket returns the synonym bucket of a color string.
func (t *Tables) ColorBucket(color string) (int, bool) {
	b, ok := t.colorBuckets[Normalize(color)]
	return b, ok
}

// SizeRank returns the position of size in the size order.
func (t *Tables) SizeRank(size string) (int, bool) {
	r, ok := t.sizeRank[Normalize(size)]
	return r, ok
}
