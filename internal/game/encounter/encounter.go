// Package encounter provides enemy encounter definitions, their loot tables,
// the collection ledger and the encounter visibility rule.
package encounter

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/battlecore/internal/game/element"
)

// Slot is one enemy in a wave.
type Slot struct {
	SpeciesID string `yaml:"species"`
	Level     int    `yaml:"level"`
}

// Wave is one group of enemies that must be cleared before the next begins.
type Wave struct {
	Enemies []Slot `yaml:"enemies"`
}

// LootEntry is a rare drop an enemy of Element may yield with probability Chance.
type LootEntry struct {
	DropID  string          `yaml:"drop"`
	Element element.Element `yaml:"element"`
	Chance  float64         `yaml:"chance"`
	// RequiresQuest, when set, makes the entry eligible only once that quest is completed.
	RequiresQuest string `yaml:"requires_quest"`
}

// Encounter is a fixed sequence of enemy waves offered to the player.
type Encounter struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Tier orders encounters sharing a headliner; 1 is the easiest.
	Tier int `yaml:"tier"`
	// Headliner is the species identifying the encounter family across tiers.
	Headliner      string      `yaml:"headliner"`
	RequiredQuests []string    `yaml:"required_quests"`
	Waves          []Wave      `yaml:"waves"`
	Loot           []LootEntry `yaml:"loot"`
}

// Validate checks that the encounter satisfies basic invariants.
//
// Precondition: e must not be nil.
// Postcondition: Returns nil iff ID, Name and Headliner are non-empty, Tier >= 1, there is at
// least one wave, every wave has at least one enemy with a species and level >= 1, and every
// loot entry names a drop with chance in (0, 1].
func (e *Encounter) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("encounter: id must not be empty")
	}
	if e.Name == "" {
		return fmt.Errorf("encounter %q: name must not be empty", e.ID)
	}
	if e.Headliner == "" {
		return fmt.Errorf("encounter %q: headliner must not be empty", e.ID)
	}
	if e.Tier < 1 {
		return fmt.Errorf("encounter %q: tier must be >= 1, got %d", e.ID, e.Tier)
	}
	if len(e.Waves) == 0 {
		return fmt.Errorf("encounter %q: at least one wave is required", e.ID)
	}
	for i, w := range e.Waves {
		if len(w.Enemies) == 0 {
			return fmt.Errorf("encounter %q: wave[%d] has no enemies", e.ID, i)
		}
		for j, s := range w.Enemies {
			if s.SpeciesID == "" {
				return fmt.Errorf("encounter %q: wave[%d] enemy[%d] must name a species", e.ID, i, j)
			}
			if s.Level < 1 {
				return fmt.Errorf("encounter %q: wave[%d] enemy[%d] level must be >= 1, got %d", e.ID, i, j, s.Level)
			}
		}
	}
	for i, l := range e.Loot {
		if l.DropID == "" {
			return fmt.Errorf("encounter %q: loot[%d] must have a non-empty drop id", e.ID, i)
		}
		if l.Chance <= 0 || l.Chance > 1.0 {
			return fmt.Errorf("encounter %q: loot[%d] chance must be in (0, 1.0], got %f", e.ID, i, l.Chance)
		}
	}
	return nil
}

// SlotCount returns the number of enemies across all waves.
func (e *Encounter) SlotCount() int {
	n := 0
	for _, w := range e.Waves {
		n += len(w.Enemies)
	}
	return n
}

// EnemyID returns the combatant id of the enemy in slot of wave, both zero-based.
func EnemyID(wave, slot int) string {
	return fmt.Sprintf("w%d-e%d", wave+1, slot+1)
}

// LastWave returns the index of the final wave.
func (e *Encounter) LastWave() int { return len(e.Waves) - 1 }

// Gated reports whether some required quest is missing from completed.
func (e *Encounter) Gated(completed map[string]bool) bool {
	for _, q := range e.RequiredQuests {
		if !completed[q] {
			return true
		}
	}
	return false
}

// LoadFromBytes parses a single encounter from raw YAML bytes.
//
// Postcondition: Returns a validated *Encounter, or an error.
func LoadFromBytes(data []byte) (*Encounter, error) {
	var enc Encounter
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&enc); err != nil {
		return nil, fmt.Errorf("parsing encounter YAML: %w", err)
	}
	if err := enc.Validate(); err != nil {
		return nil, err
	}
	return &enc, nil
}

// Registry is a read-only lookup of encounters keyed by id.
type Registry struct {
	byID map[string]*Encounter
}

// NewRegistry builds a Registry; later duplicates replace earlier ones.
func NewRegistry(encs ...*Encounter) *Registry {
	r := &Registry{byID: make(map[string]*Encounter, len(encs))}
	for _, e := range encs {
		r.byID[e.ID] = e
	}
	return r
}

// Get returns the encounter for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*Encounter, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// All returns every encounter ordered by headliner, then tier, then id.
func (r *Registry) All() []*Encounter {
	out := make([]*Encounter, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Headliner != b.Headliner {
			return a.Headliner < b.Headliner
		}
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		return a.ID < b.ID
	})
	return out
}

// LoadDirectory reads all *.yaml files in dir and returns a populated Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns the Registry or an error naming the first file that fails.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading encounter dir %q: %w", dir, err)
	}
	var encs []*Encounter
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		enc, err := LoadFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		encs = append(encs, enc)
	}
	return NewRegistry(encs...), nil
}
