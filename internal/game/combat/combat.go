// Package combat implements combatant generation, target selection, damage and
// round resolution for the battle engine.
package combat

import (
	"github.com/cory-johannsen/battlecore/internal/game/element"
	"github.com/cory-johannsen/battlecore/internal/game/mask"
)

// Side distinguishes the player's team from the enemy wave.
type Side int

const (
	SideTeam Side = iota
	SideEnemy
)

// String returns a human-readable side label.
func (s Side) String() string {
	if s == SideTeam {
		return "team"
	}
	return "enemy"
}

// Opposes reports whether two sides are opponents.
func (s Side) Opposes(o Side) bool { return s != o }

// Combatant is one participant in a battle, either a roster member or an enemy.
type Combatant struct {
	ID        string
	Name      string
	SpeciesID string
	// ModelKey is opaque to the engine and forwarded to the presentation layer.
	ModelKey string
	Side     Side
	Level    int
	Element  element.Element

	MaxHP   int
	HP      int
	Attack  int
	Defense int
	Speed   int

	// Effect is the equipped mask power; nil means none.
	Effect *mask.StatusEffect
	// WillUseAbility is set by the controller before a round to request activation.
	WillUseAbility bool
	// Strategy overrides the resolver's default for this combatant's side when non-nil.
	Strategy Strategy
	// DefeatOrder is the battle-wide sequence number at which HP reached zero; 0 while standing.
	DefeatOrder int
}

// IsDefeated reports whether the combatant has no hit points left.
func (c *Combatant) IsDefeated() bool { return c.HP <= 0 }

// ApplyDamage reduces HP by amount, flooring at zero.
// Precondition: amount must be >= 0.
// Postcondition: 0 <= HP <= MaxHP.
func (c *Combatant) ApplyDamage(amount int) {
	if amount < 0 {
		return
	}
	c.HP -= amount
	if c.HP < 0 {
		c.HP = 0
	}
}

// Heal restores amount hit points, capped at MaxHP. Defeated combatants are not revived.
//
// Postcondition: Returns the number of hit points actually restored.
func (c *Combatant) Heal(amount int) int {
	if amount <= 0 || c.IsDefeated() {
		return 0
	}
	before := c.HP
	c.HP += amount
	if c.HP > c.MaxHP {
		c.HP = c.MaxHP
	}
	return c.HP - before
}

// HasEffect reports whether the combatant's own power is active and of kind k.
func (c *Combatant) HasEffect(k mask.Kind) bool {
	return c.Effect != nil && c.Effect.Is(k)
}

// Clone returns a deep copy of c, including its effect.
func (c *Combatant) Clone() *Combatant {
	cp := *c
	if c.Effect != nil {
		e := *c.Effect
		e.Bound = append([]string(nil), c.Effect.Bound...)
		cp.Effect = &e
	}
	return &cp
}

// Living returns the combatants of cs that still have hit points.
//
// Postcondition: All returned combatants have HP > 0.
func Living(cs []*Combatant) []*Combatant {
	var alive []*Combatant
	for _, c := range cs {
		if !c.IsDefeated() {
			alive = append(alive, c)
		}
	}
	return alive
}

// AllDefeated reports whether every combatant in cs has zero HP. An empty slice counts as defeated.
func AllDefeated(cs []*Combatant) bool {
	for _, c := range cs {
		if !c.IsDefeated() {
			return false
		}
	}
	return true
}
