package combat

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/battlecore/internal/game/element"
	"github.com/cory-johannsen/battlecore/internal/game/mask"
	"github.com/cory-johannsen/battlecore/internal/game/species"
)

// Per-level stat growth.
const (
	HPPerLevel      = 10
	AttackPerLevel  = 3
	DefensePerLevel = 2
	SpeedPerLevel   = 1
)

// UnknownSpeciesError reports a combatant generated from a species id with no template.
type UnknownSpeciesError struct {
	SpeciesID string
}

func (e *UnknownSpeciesError) Error() string {
	return fmt.Sprintf("unknown species %q", e.SpeciesID)
}

// Generator derives battle-ready combatants from species templates.
// It only reads its registries and is safe for concurrent use.
type Generator struct {
	species *species.Registry
	powers  *mask.Registry
	logger  *zap.Logger
}

// NewGenerator creates a Generator.
//
// Precondition: speciesReg must be non-nil. powers may be nil (no abilities).
func NewGenerator(speciesReg *species.Registry, powers *mask.Registry, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if powers == nil {
		powers = mask.NewRegistry()
	}
	return &Generator{species: speciesReg, powers: powers, logger: logger}
}

// Generate builds a combatant for speciesID at level. abilityOverride, when non-empty,
// replaces the template's default mask power.
//
// A missing template is a content bug, not a battle failure: the returned combatant is
// always usable, built from level growth alone, and the error is an *UnknownSpeciesError.
// A missing ability definition means no ability is equipped and is not an error.
//
// Postcondition: MaxHP == base+10L, Attack == base+3L, Defense == base+2L,
// Speed == base+L, HP == MaxHP, with L clamped to >= 1.
func (g *Generator) Generate(id, speciesID string, level int, abilityOverride string) (*Combatant, error) {
	if level < 1 {
		g.logger.Warn("combatant level below 1, clamping",
			zap.String("id", id),
			zap.Int("level", level),
		)
		level = 1
	}

	var err error
	tmpl, ok := g.species.Get(speciesID)
	if !ok {
		g.logger.Warn("data integrity: unknown species",
			zap.String("id", id),
			zap.String("species", speciesID),
		)
		err = &UnknownSpeciesError{SpeciesID: speciesID}
		tmpl = &species.Template{ID: speciesID, Name: speciesID, Element: element.Light}
	}

	c := &Combatant{
		ID:        id,
		Name:      tmpl.Name,
		SpeciesID: speciesID,
		ModelKey:  tmpl.ModelKey,
		Level:     level,
		Element:   tmpl.Element,
		MaxHP:     tmpl.Base.MaxHP + level*HPPerLevel,
		Attack:    tmpl.Base.Attack + level*AttackPerLevel,
		Defense:   tmpl.Base.Defense + level*DefensePerLevel,
		Speed:     tmpl.Base.Speed + level*SpeedPerLevel,
	}
	c.HP = c.MaxHP

	abilityID := abilityOverride
	if abilityID == "" {
		abilityID = tmpl.Ability
	}
	if abilityID != "" {
		if def, found := g.powers.Get(abilityID); found {
			eff := mask.New(def)
			c.Effect = &eff
		} else {
			g.logger.Warn("data integrity: unknown mask power, equipping none",
				zap.String("id", id),
				zap.String("ability", abilityID),
			)
		}
	}
	return c, err
}
