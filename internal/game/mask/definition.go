package mask

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is what a mask power does while active.
type Kind string

const (
	KindAttackMultiplier   Kind = "attack_multiplier"
	KindDamageMitigation   Kind = "damage_mitigation"
	KindHeal               Kind = "heal"
	KindUntargetable       Kind = "untargetable"
	KindSpeedMultiplier    Kind = "speed_multiplier"
	KindAccuracyMultiplier Kind = "accuracy_multiplier"
	KindConfusion          Kind = "confusion"
)

// Scope is who a mask power affects.
type Scope string

const (
	ScopeSelf        Scope = "self"
	ScopeSingleEnemy Scope = "single_enemy"
	ScopeAllEnemies  Scope = "all_enemies"
)

// Reactive reports whether powers of this kind protect the wielder against incoming attacks.
func (k Kind) Reactive() bool {
	return k == KindDamageMitigation || k == KindUntargetable
}

// Effect is the static description of what a power does and for how long.
type Effect struct {
	Kind  Kind  `yaml:"kind"`
	Scope Scope `yaml:"scope"`
	// Multiplier is optional; nil means the kind's default factor applies.
	Multiplier *float64  `yaml:"multiplier"`
	Duration   Countdown `yaml:"duration"`
}

// Factor returns the effect multiplier, or def when none is configured.
func (e Effect) Factor(def float64) float64 {
	if e.Multiplier == nil {
		return def
	}
	return *e.Multiplier
}

// Definition is the static definition of a mask power, loaded from YAML.
type Definition struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	MaskName    string    `yaml:"mask_name"`
	Description string    `yaml:"description"`
	Effect      Effect    `yaml:"effect"`
	Cooldown    Countdown `yaml:"cooldown"`
}

var validKinds = map[Kind]bool{
	KindAttackMultiplier: true, KindDamageMitigation: true, KindHeal: true, KindUntargetable: true,
	KindSpeedMultiplier: true, KindAccuracyMultiplier: true, KindConfusion: true,
}

var validScopes = map[Scope]bool{ScopeSelf: true, ScopeSingleEnemy: true, ScopeAllEnemies: true}

// Validate checks that the definition satisfies basic invariants.
//
// Postcondition: Returns nil iff ID and Name are non-empty, kind and scope are known,
// the duration has a unit and amount >= 1, and the cooldown uses a turn or wave unit
// with amount >= 0.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("mask power: id must not be empty")
	}
	if d.Name == "" {
		return fmt.Errorf("mask power %q: name must not be empty", d.ID)
	}
	if !validKinds[d.Effect.Kind] {
		return fmt.Errorf("mask power %q: unknown effect kind %q", d.ID, d.Effect.Kind)
	}
	if !validScopes[d.Effect.Scope] {
		return fmt.Errorf("mask power %q: unknown effect scope %q", d.ID, d.Effect.Scope)
	}
	if d.Effect.Multiplier != nil && *d.Effect.Multiplier < 0 {
		return fmt.Errorf("mask power %q: multiplier must be >= 0", d.ID)
	}
	if d.Effect.Duration.Unit == UnitNone {
		return fmt.Errorf("mask power %q: duration unit must be set", d.ID)
	}
	if d.Effect.Duration.Amount < 1 {
		return fmt.Errorf("mask power %q: duration amount must be >= 1", d.ID)
	}
	if d.Cooldown.Unit != UnitTurn && d.Cooldown.Unit != UnitWave {
		return fmt.Errorf("mask power %q: cooldown unit must be turn or wave, got %s", d.ID, d.Cooldown.Unit)
	}
	if d.Cooldown.Amount < 0 {
		return fmt.Errorf("mask power %q: cooldown amount must be >= 0", d.ID)
	}
	return nil
}

// Registry holds all known power Definitions keyed by ID.
type Registry struct {
	defs map[string]*Definition
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds def to the registry, overwriting any existing entry with the same ID.
// Precondition: def must not be nil and def.ID must not be empty.
func (r *Registry) Register(def *Definition) {
	r.defs[def.ID] = def
}

// Get returns the Definition for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*Definition, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// All returns a snapshot slice of all registered Definitions.
func (r *Registry) All() []*Definition {
	out := make([]*Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	return out
}

// LoadDefinitionFromBytes parses and validates a single Definition.
func LoadDefinitionFromBytes(data []byte) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("parsing mask power YAML: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadDirectory reads every *.yaml file in dir, parses each as a Definition,
// and returns a populated Registry.
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails to parse.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading mask power dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		def, err := LoadDefinitionFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		reg.Register(def)
	}
	return reg, nil
}
