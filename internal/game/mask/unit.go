// Package mask implements mask powers: equip-once special abilities whose activation,
// duration and cooldown are driven by independent event clocks.
package mask

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Unit identifies the battle event that advances a countdown.
// The zero value (UnitNone) matches no event.
type Unit int

const (
	UnitNone   Unit = iota
	UnitAttack      // the wielder performed an attack
	UnitHit         // the wielder was targeted by an attack
	UnitTurn        // any single actor finished its turn
	UnitRound       // every actor finished acting this round
	UnitWave        // a wave was cleared and the next one began
)

var unitNames = map[Unit]string{
	UnitNone:   "none",
	UnitAttack: "attack",
	UnitHit:    "hit",
	UnitTurn:   "turn",
	UnitRound:  "round",
	UnitWave:   "wave",
}

// String returns the content name of the unit.
func (u Unit) String() string {
	if n, ok := unitNames[u]; ok {
		return n
	}
	return "unknown"
}

// ParseUnit converts a content name into a Unit.
//
// Postcondition: Returns the matching Unit, or an error for unknown names.
func ParseUnit(s string) (Unit, error) {
	for u, n := range unitNames {
		if n == s && u != UnitNone {
			return u, nil
		}
	}
	return UnitNone, fmt.Errorf("unknown countdown unit %q", s)
}

// UnmarshalYAML decodes a unit from its content name.
func (u *Unit) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseUnit(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// Countdown is an amount that decreases by one each time its Unit's event fires.
// Invariant: Amount >= 0.
type Countdown struct {
	Unit   Unit `yaml:"unit"`
	Amount int  `yaml:"amount"`
}

// step returns c decremented by one when ev matches its unit, flooring at zero.
func (c Countdown) step(ev Unit) (Countdown, bool) {
	if ev == UnitNone || c.Unit != ev {
		return c, false
	}
	if c.Amount > 0 {
		c.Amount--
	}
	return c, true
}
