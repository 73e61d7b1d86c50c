// Package evolution decides when a roster member may transform into a stronger form.
//
// Every evolution family shares one shape: a base form, a level threshold, an optional
// quest gate and a transform that either swaps the character id or raises the stage.
// The families live in one ordered rule table.
package evolution

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry is a roster member as persisted by the caller.
type Entry struct {
	CharacterID string
	Level       int
	Experience  int
	// Stage is the form override; 0 is the base form.
	Stage int
}

// Rule is one row of the evolution table.
//
// Exactly one of EvolvedID and Stage is set: EvolvedID replaces the character id,
// Stage sets the stage override.
type Rule struct {
	Family         string `yaml:"family"`
	BaseID         string `yaml:"base"`
	EvolvedID      string `yaml:"evolved"`
	Stage          int    `yaml:"stage"`
	LevelThreshold int    `yaml:"level"`
	QuestGate      string `yaml:"quest"`
}

// Validate checks that the rule satisfies basic invariants.
//
// Postcondition: Returns nil iff Family and BaseID are non-empty, LevelThreshold >= 1, and
// exactly one of EvolvedID (different from BaseID) and Stage (>= 1) is set.
func (r Rule) Validate() error {
	if r.Family == "" {
		return fmt.Errorf("evolution rule: family must not be empty")
	}
	if r.BaseID == "" {
		return fmt.Errorf("evolution rule %q: base must not be empty", r.Family)
	}
	if r.LevelThreshold < 1 {
		return fmt.Errorf("evolution rule %q/%q: level must be >= 1", r.Family, r.BaseID)
	}
	switch {
	case r.EvolvedID != "" && r.Stage != 0:
		return fmt.Errorf("evolution rule %q/%q: set either evolved or stage, not both", r.Family, r.BaseID)
	case r.EvolvedID == "" && r.Stage < 1:
		return fmt.Errorf("evolution rule %q/%q: one of evolved or stage >= 1 is required", r.Family, r.BaseID)
	case r.EvolvedID == r.BaseID:
		return fmt.Errorf("evolution rule %q/%q: evolved id must differ from base", r.Family, r.BaseID)
	}
	return nil
}

// inBaseForm reports whether e is the untransformed form this rule applies to.
func (r Rule) inBaseForm(e Entry) bool {
	if e.CharacterID != r.BaseID {
		return false
	}
	if r.EvolvedID != "" {
		return true
	}
	return e.Stage < r.Stage
}

// Eligible reports whether e may evolve under this rule given the completed quests.
func (r Rule) Eligible(e Entry, completed map[string]bool) bool {
	if !r.inBaseForm(e) || e.Level < r.LevelThreshold {
		return false
	}
	return r.QuestGate == "" || completed[r.QuestGate]
}

// Apply returns e transformed by this rule. Level and experience are preserved.
func (r Rule) Apply(e Entry) Entry {
	if !r.inBaseForm(e) {
		return e
	}
	if r.EvolvedID != "" {
		e.CharacterID = r.EvolvedID
		return e
	}
	e.Stage = r.Stage
	return e
}

// Table is an ordered set of evolution rules; the first matching row wins.
type Table struct {
	rules []Rule
}

// NewTable builds a Table from rules in order.
func NewTable(rules ...Rule) *Table {
	return &Table{rules: append([]Rule(nil), rules...)}
}

// Rules returns a copy of the rows in table order.
func (t *Table) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// Rule returns the first row whose base form matches e.
func (t *Table) Rule(e Entry) (Rule, bool) {
	for _, r := range t.rules {
		if r.inBaseForm(e) {
			return r, true
		}
	}
	return Rule{}, false
}

// CanEvolve reports whether e may evolve now.
//
// Postcondition: Returns false when e is below the level threshold regardless of quests,
// and false when e is already in its evolved form.
func (t *Table) CanEvolve(e Entry, completedQuests []string) bool {
	r, ok := t.Rule(e)
	if !ok {
		return false
	}
	return r.Eligible(e, questSet(completedQuests))
}

// ApplyEvolution transforms e by its matching rule. An entry with no matching rule,
// including one that has already evolved, is returned unchanged.
//
// Postcondition: Experience and Level are unchanged; the bool reports whether e changed.
func (t *Table) ApplyEvolution(e Entry) (Entry, bool) {
	r, ok := t.Rule(e)
	if !ok {
		return e, false
	}
	return r.Apply(e), true
}

// Evolve applies the matching rule only when e is eligible.
func (t *Table) Evolve(e Entry, completedQuests []string) (Entry, bool) {
	if !t.CanEvolve(e, completedQuests) {
		return e, false
	}
	return t.ApplyEvolution(e)
}

func questSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

type tableFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadFromBytes parses a rule table from raw YAML bytes.
//
// Postcondition: Returns a Table whose every row passed Validate, or an error.
func LoadFromBytes(data []byte) (*Table, error) {
	var f tableFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing evolution table YAML: %w", err)
	}
	for i, r := range f.Rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule[%d]: %w", i, err)
		}
	}
	return NewTable(f.Rules...), nil
}

// LoadFile reads and parses the rule table at path.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading evolution table %q: %w", path, err)
	}
	t, err := LoadFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", path, err)
	}
	return t, nil
}
