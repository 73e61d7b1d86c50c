// Package reward settles a finished or abandoned battle into experience,
// participating roster members and rare drop awards.
package reward

import (
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/battlecore/internal/game/combat"
	"github.com/cory-johannsen/battlecore/internal/game/dice"
	"github.com/cory-johannsen/battlecore/internal/game/element"
	"github.com/cory-johannsen/battlecore/internal/game/encounter"
	"github.com/cory-johannsen/battlecore/internal/game/species"
)

// ExpPerLevel is the experience granted per level of each defeated enemy.
const ExpPerLevel = 5

// Outcome is how a battle ended.
type Outcome int

const (
	Victory Outcome = iota
	Defeat
	Retreated
)

// String returns a human-readable outcome label.
func (o Outcome) String() string {
	switch o {
	case Victory:
		return "victory"
	case Defeat:
		return "defeat"
	default:
		return "retreated"
	}
}

// Input is everything the calculator needs to settle one battle.
type Input struct {
	Encounter *encounter.Encounter
	Outcome   Outcome
	// WaveIndex is the wave in progress when the battle ended.
	WaveIndex int
	// Enemies are the live combatants of wave WaveIndex.
	Enemies []*combat.Combatant
	// Team are the roster combatants that took part.
	Team            []*combat.Combatant
	CompletedQuests []string
	Ledger          encounter.Ledger
}

// DropAward is one rare drop granted by a defeated enemy.
type DropAward struct {
	InstanceID string
	DropID     string
	Element    element.Element
	// EnemyID identifies the enemy that yielded the drop.
	EnemyID string
}

// Result is the settlement of a battle.
type Result struct {
	Outcome        Outcome
	DefeatedCount  int
	ExpTotal       int
	ParticipantIDs []string
	Drops          []DropAward
}

// ExpShare splits ExpTotal evenly between participants, rounding down.
func (r Result) ExpShare() int {
	if len(r.ParticipantIDs) == 0 {
		return 0
	}
	return r.ExpTotal / len(r.ParticipantIDs)
}

// Entries returns the awarded drops as ledger entries.
func (r Result) Entries() []encounter.Entry {
	out := make([]encounter.Entry, len(r.Drops))
	for i, d := range r.Drops {
		out[i] = encounter.Entry{Element: d.Element, DropID: d.DropID}
	}
	return out
}

// fallen is one defeated enemy in defeat order.
type fallen struct {
	id      string
	level   int
	element element.Element
	known   bool
}

// Calculator computes battle rewards. It holds only read-only references and is safe for
// concurrent use.
type Calculator struct {
	species *species.Registry
	roller  *dice.Roller
	logger  *zap.Logger
}

// NewCalculator creates a Calculator. speciesReg resolves the element of enemies from waves
// that were cleared before the battle ended.
//
// Precondition: roller must be non-nil.
func NewCalculator(speciesReg *species.Registry, roller *dice.Roller, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{species: speciesReg, roller: roller, logger: logger}
}

// Settle computes the rewards for in.
//
// On Victory every slot of every wave counts as defeated. On Defeat or Retreated only the
// slots of waves before WaveIndex count, plus the enemies of the current wave with hp <= 0,
// the latter in the order they fell.
//
// Postcondition: ExpTotal == sum(level * ExpPerLevel) over defeated enemies; no awarded drop is
// present in in.Ledger for its element and no drop type is awarded twice per element.
func (c *Calculator) Settle(in Input) Result {
	res := Result{Outcome: in.Outcome, ParticipantIDs: participants(in.Team)}
	if in.Encounter == nil {
		return res
	}

	defeated := c.defeated(in)
	res.DefeatedCount = len(defeated)
	for _, f := range defeated {
		res.ExpTotal += f.level * ExpPerLevel
	}
	res.Drops = c.rollDrops(in, defeated)

	c.logger.Info("battle settled",
		zap.String("encounter", in.Encounter.ID),
		zap.Stringer("outcome", in.Outcome),
		zap.Int("defeated", res.DefeatedCount),
		zap.Int("exp", res.ExpTotal),
		zap.Int("drops", len(res.Drops)),
	)
	return res
}

func (c *Calculator) defeated(in Input) []fallen {
	waves := in.Encounter.Waves
	cleared := in.WaveIndex
	if in.Outcome == Victory {
		cleared = len(waves)
	}
	if cleared > len(waves) {
		cleared = len(waves)
	}

	var out []fallen
	for w := 0; w < cleared; w++ {
		if in.Outcome == Victory && w == in.WaveIndex && len(in.Enemies) == len(waves[w].Enemies) {
			out = append(out, fallenInOrder(in.Enemies)...)
			continue
		}
		for j, slot := range waves[w].Enemies {
			f := fallen{id: encounter.EnemyID(w, j), level: slot.Level}
			if t, ok := c.species.Get(slot.SpeciesID); ok {
				f.element, f.known = t.Element, true
			} else {
				c.logger.Warn("data integrity: unknown species in cleared wave, no drop roll",
					zap.String("encounter", in.Encounter.ID),
					zap.String("species", slot.SpeciesID),
				)
			}
			out = append(out, f)
		}
	}
	if in.Outcome != Victory && in.WaveIndex >= 0 && in.WaveIndex < len(waves) {
		out = append(out, fallenInOrder(in.Enemies)...)
	}
	return out
}

// fallenInOrder returns the defeated combatants of cs ordered by DefeatOrder.
// Combatants without a recorded order keep their position after those with one.
func fallenInOrder(cs []*combat.Combatant) []fallen {
	var dead []*combat.Combatant
	for _, e := range cs {
		if e.IsDefeated() {
			dead = append(dead, e)
		}
	}
	sort.SliceStable(dead, func(i, j int) bool {
		a, b := dead[i].DefeatOrder, dead[j].DefeatOrder
		if a == 0 || b == 0 {
			return a != 0 && b == 0
		}
		return a < b
	})
	out := make([]fallen, len(dead))
	for i, e := range dead {
		out[i] = fallen{id: e.ID, level: e.Level, element: e.Element, known: true}
	}
	return out
}

func (c *Calculator) rollDrops(in Input, defeated []fallen) []DropAward {
	if len(in.Encounter.Loot) == 0 {
		return nil
	}
	done := make(map[string]bool, len(in.CompletedQuests))
	for _, q := range in.CompletedQuests {
		done[q] = true
	}
	awarded := encounter.NewLedger()

	var drops []DropAward
	for _, f := range defeated {
		if !f.known {
			continue
		}
		for _, entry := range in.Encounter.Loot {
			if entry.Element != f.element {
				continue
			}
			if entry.RequiresQuest != "" && !done[entry.RequiresQuest] {
				continue
			}
			if in.Ledger.Has(entry.Element, entry.DropID) || awarded.Has(entry.Element, entry.DropID) {
				continue
			}
			if !c.roller.Chance("drop:"+entry.DropID, entry.Chance) {
				continue
			}
			awarded.Add(entry.Element, entry.DropID)
			drops = append(drops, DropAward{
				InstanceID: uuid.New().String(),
				DropID:     entry.DropID,
				Element:    entry.Element,
				EnemyID:    f.id,
			})
			break
		}
	}
	return drops
}

func participants(team []*combat.Combatant) []string {
	seen := make(map[string]bool, len(team))
	out := make([]string, 0, len(team))
	for _, c := range team {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c.ID)
	}
	return out
}
