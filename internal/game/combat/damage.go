package combat

import (
	"math"

	"github.com/cory-johannsen/battlecore/internal/game/element"
)

// Damage is the itemised result of one attack's damage computation.
type Damage struct {
	// Base is max(1, attack - defense).
	Base int
	// Variance is the random bonus added to Base.
	Variance      int
	Effectiveness float64
	AttackFactor  float64
	Mitigation    float64
	// Total is the damage applied to the defender.
	Total int
}

// BaseDamage returns max(1, attacker.Attack - defender.Defense).
func BaseDamage(attacker, defender *Combatant) int {
	d := attacker.Attack - defender.Defense
	if d < 1 {
		return 1
	}
	return d
}

// ComputeDamage combines base damage, variance, elemental effectiveness and the given modifiers.
// Any zero factor (full mitigation) yields zero damage; otherwise at least 1 damage is dealt.
//
// Precondition: variance >= 0.
// Postcondition: Total >= 0.
func ComputeDamage(attacker, defender *Combatant, variance int, atk, def Modifiers) Damage {
	d := Damage{
		Base:          BaseDamage(attacker, defender),
		Variance:      variance,
		Effectiveness: element.Effectiveness(attacker.Element, defender.Element),
		AttackFactor:  atk.Attack,
		Mitigation:    def.Mitigation,
	}
	factor := d.Effectiveness * d.AttackFactor * d.Mitigation
	if factor <= 0 {
		return d
	}
	total := int(math.Floor(float64(d.Base+d.Variance) * factor))
	if total < 1 {
		total = 1
	}
	d.Total = total
	return d
}
