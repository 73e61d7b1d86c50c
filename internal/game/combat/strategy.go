package combat

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/battlecore/internal/game/dice"
	"github.com/cory-johannsen/battlecore/internal/game/element"
	"github.com/cory-johannsen/battlecore/internal/scripting"
)

// Strategy picks the target of an attack.
type Strategy interface {
	// ChooseTarget returns one of candidates, or nil when candidates is empty.
	//
	// Precondition: every candidate has HP > 0.
	ChooseTarget(self *Combatant, candidates []*Combatant) *Combatant
}

// Strategy names accepted by NewStrategy.
const (
	StrategyLowestHP      = "lowest_hp"
	StrategyMostEffective = "most_effective"
	StrategyRandom        = "random"
	scriptPrefix          = "script:"
)

// LowestHP targets the candidate with the least current HP; ties go to the earliest.
type LowestHP struct{}

// ChooseTarget implements Strategy.
func (LowestHP) ChooseTarget(_ *Combatant, candidates []*Combatant) *Combatant {
	var best *Combatant
	for _, c := range candidates {
		if best == nil || c.HP < best.HP {
			best = c
		}
	}
	return best
}

// MostEffective targets the candidate maximising base damage times elemental effectiveness;
// ties go to the earliest.
type MostEffective struct{}

// ChooseTarget implements Strategy.
func (MostEffective) ChooseTarget(self *Combatant, candidates []*Combatant) *Combatant {
	var best *Combatant
	bestScore := -1.0
	for _, c := range candidates {
		score := float64(BaseDamage(self, c)) * element.Effectiveness(self.Element, c.Element)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// Random targets a uniformly chosen candidate: floor(random() * len(candidates)).
type Random struct {
	Src dice.Source
}

// ChooseTarget implements Strategy.
func (r Random) ChooseTarget(_ *Combatant, candidates []*Combatant) *Combatant {
	if len(candidates) == 0 {
		return nil
	}
	i := int(r.Src.Float64() * float64(len(candidates)))
	if i >= len(candidates) {
		i = len(candidates) - 1
	}
	return candidates[i]
}

// Scripted delegates target choice to a Lua hook. Script failures fall back to Fallback,
// or to the first candidate when Fallback is nil.
type Scripted struct {
	Scripts  *scripting.Manager
	Hook     string
	Fallback Strategy
}

// ChooseTarget implements Strategy.
func (s Scripted) ChooseTarget(self *Combatant, candidates []*Combatant) *Combatant {
	if len(candidates) == 0 {
		return nil
	}
	infos := make([]scripting.CombatantInfo, len(candidates))
	for i, c := range candidates {
		infos[i] = infoOf(c)
	}
	if s.Scripts != nil {
		if idx, ok := s.Scripts.ChooseTarget(s.Hook, infoOf(self), infos); ok {
			return candidates[idx]
		}
	}
	if s.Fallback != nil {
		return s.Fallback.ChooseTarget(self, candidates)
	}
	return candidates[0]
}

func infoOf(c *Combatant) scripting.CombatantInfo {
	info := scripting.CombatantInfo{
		UID:     c.ID,
		Name:    c.Name,
		Element: c.Element.String(),
		Level:   c.Level,
		HP:      c.HP,
		MaxHP:   c.MaxHP,
		Attack:  c.Attack,
		Defense: c.Defense,
		Speed:   c.Speed,
	}
	if c.Effect != nil && c.Effect.Active {
		info.Effects = []string{string(c.Effect.Kind())}
	}
	return info
}

// NewStrategy resolves a strategy by name. "script:<hook>" selects a Lua hook from the
// scripts loaded into scripts.
//
// Postcondition: Returns a non-nil Strategy, or an error for unknown names.
func NewStrategy(name string, src dice.Source, scripts *scripting.Manager) (Strategy, error) {
	switch {
	case name == StrategyLowestHP:
		return LowestHP{}, nil
	case name == StrategyMostEffective:
		return MostEffective{}, nil
	case name == StrategyRandom:
		if src == nil {
			return nil, fmt.Errorf("strategy %q requires a randomness source", name)
		}
		return Random{Src: src}, nil
	case strings.HasPrefix(name, scriptPrefix):
		hook := strings.TrimPrefix(name, scriptPrefix)
		if hook == "" || scripts == nil {
			return nil, fmt.Errorf("strategy %q requires a hook name and loaded scripts", name)
		}
		return Scripted{Scripts: scripts, Hook: hook, Fallback: MostEffective{}}, nil
	default:
		return nil, fmt.Errorf("unknown target strategy %q", name)
	}
}

// ValidStrategyName reports whether name is accepted by NewStrategy.
func ValidStrategyName(name string) bool {
	switch name {
	case StrategyLowestHP, StrategyMostEffective, StrategyRandom:
		return true
	}
	return strings.HasPrefix(name, scriptPrefix) && len(name) > len(scriptPrefix)
}
