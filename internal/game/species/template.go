// Package species provides the static character and enemy templates combatants are generated from.
package species

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/battlecore/internal/game/element"
)

// BaseStats are a template's stats at level 0.
type BaseStats struct {
	MaxHP   int `yaml:"max_hp"`
	Attack  int `yaml:"attack"`
	Defense int `yaml:"defense"`
	Speed   int `yaml:"speed"`
}

// Template defines a character or enemy species loaded from YAML.
type Template struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Element     element.Element `yaml:"element"`
	// ModelKey is an opaque key the presentation layer uses to pick a model.
	ModelKey string    `yaml:"model"`
	Base     BaseStats `yaml:"base"`
	// Ability is the mask power id equipped when no override is supplied; empty means none.
	Ability string `yaml:"ability"`
}

// Validate checks that the template satisfies basic invariants.
//
// Precondition: t must not be nil.
// Postcondition: Returns nil iff ID and Name are non-empty and every base stat is >= 0.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("species template: id must not be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("species template %q: name must not be empty", t.ID)
	}
	if t.Base.MaxHP < 0 || t.Base.Attack < 0 || t.Base.Defense < 0 || t.Base.Speed < 0 {
		return fmt.Errorf("species template %q: base stats must be >= 0", t.ID)
	}
	return nil
}

// LoadTemplateFromBytes parses a single template from raw YAML bytes.
//
// Postcondition: Returns a validated *Template, or an error.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// Registry is a read-only lookup of templates keyed by species id.
// It is safe for concurrent reads once populated.
type Registry struct {
	byID map[string]*Template
}

// NewRegistry builds a Registry from templates; later duplicates replace earlier ones.
func NewRegistry(templates ...*Template) *Registry {
	r := &Registry{byID: make(map[string]*Template, len(templates))}
	for _, t := range templates {
		r.byID[t.ID] = t
	}
	return r
}

// Get returns the template for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*Template, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.byID[id]
	return t, ok
}

// IDs returns every registered species id in sorted order.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LoadDirectory reads all *.yaml files in dir and returns a populated Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns the Registry or an error on the first parse or validate failure.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading species dir %q: %w", dir, err)
	}

	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		tmpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		templates = append(templates, tmpl)
	}
	return NewRegistry(templates...), nil
}
