package element

// Damage multipliers produced by the advantage table.
const (
	Weak    = 0.5
	Neutral = 1.0
	Strong  = 1.5
)

// strongAgainst lists, for each cycle element, the element it deals bonus damage to.
// The defender of each pair takes reduced damage when attacking back.
var strongAgainst = map[Element]Element{
	Fire:  Ice,
	Ice:   Water,
	Water: Fire,
	Air:   Stone,
	Stone: Earth,
	Earth: Air,
}

// Effectiveness returns the damage multiplier of attacker against defender.
//
// Postcondition: Returns one of Weak, Neutral or Strong. Light and Shadow always yield Neutral.
func Effectiveness(attacker, defender Element) float64 {
	if target, ok := strongAgainst[attacker]; ok && target == defender {
		return Strong
	}
	if target, ok := strongAgainst[defender]; ok && target == attacker {
		return Weak
	}
	return Neutral
}
