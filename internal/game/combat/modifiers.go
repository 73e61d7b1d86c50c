package combat

import (
	"slices"

	"github.com/cory-johannsen/battlecore/internal/game/mask"
)

// Default factors for powers whose definition leaves the multiplier unset.
const (
	DefaultAttackFactor     = 1.5
	DefaultMitigationFactor = 0.5
	DefaultHealFactor       = 0.25
	DefaultSpeedFactor      = 2.0
	DefaultAccuracyFactor   = 0.5
)

var defaultFactors = map[mask.Kind]float64{
	mask.KindAttackMultiplier:   DefaultAttackFactor,
	mask.KindDamageMitigation:   DefaultMitigationFactor,
	mask.KindHeal:               DefaultHealFactor,
	mask.KindSpeedMultiplier:    DefaultSpeedFactor,
	mask.KindAccuracyMultiplier: DefaultAccuracyFactor,
}

// Affects reports whether owner's active power applies to subject under its scope.
func Affects(owner, subject *Combatant) bool {
	if owner.Effect == nil || !owner.Effect.Active {
		return false
	}
	switch owner.Effect.Scope() {
	case mask.ScopeSelf:
		return owner.ID == subject.ID
	case mask.ScopeAllEnemies:
		return owner.Side.Opposes(subject.Side)
	case mask.ScopeSingleEnemy:
		return owner.Side.Opposes(subject.Side) && slices.Contains(owner.Effect.Bound, subject.ID)
	default:
		return false
	}
}

// Modifiers is the combined influence of every active power on one combatant.
type Modifiers struct {
	Attack       float64
	Mitigation   float64
	Speed        float64
	Accuracy     float64
	Untargetable bool
	Confused     bool
}

// ModifiersFor folds the active powers of field that affect subject.
//
// Postcondition: Multiplicative factors are 1 when no power applies.
func ModifiersFor(field []*Combatant, subject *Combatant) Modifiers {
	m := Modifiers{Attack: 1, Mitigation: 1, Speed: 1, Accuracy: 1}
	for _, owner := range field {
		if !Affects(owner, subject) {
			continue
		}
		kind := owner.Effect.Kind()
		f := owner.Effect.Factor(defaultFactors[kind])
		switch kind {
		case mask.KindAttackMultiplier:
			m.Attack *= f
		case mask.KindDamageMitigation:
			m.Mitigation *= f
		case mask.KindSpeedMultiplier:
			m.Speed *= f
		case mask.KindAccuracyMultiplier:
			m.Accuracy *= f
		case mask.KindUntargetable:
			m.Untargetable = true
		case mask.KindConfusion:
			m.Confused = true
		}
	}
	return m
}

// EffectiveSpeed returns subject's speed after speed powers, floored at zero.
func EffectiveSpeed(field []*Combatant, subject *Combatant) int {
	s := int(float64(subject.Speed) * ModifiersFor(field, subject).Speed)
	if s < 0 {
		return 0
	}
	return s
}
