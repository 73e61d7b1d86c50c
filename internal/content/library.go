// Package content loads the static game data the battle engine runs on.
package content

import (
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/battlecore/internal/config"
	"github.com/cory-johannsen/battlecore/internal/game/encounter"
	"github.com/cory-johannsen/battlecore/internal/game/evolution"
	"github.com/cory-johannsen/battlecore/internal/game/mask"
	"github.com/cory-johannsen/battlecore/internal/game/species"
	"github.com/cory-johannsen/battlecore/internal/scripting"
)

// Library is the read-only set of content registries.
// It is safe for concurrent reads once loaded.
type Library struct {
	Species    *species.Registry
	Powers     *mask.Registry
	Encounters *encounter.Registry
	Evolutions *evolution.Table
}

// Load reads every content directory named by cfg.
//
// Precondition: the species, abilities and encounters directories must be readable.
// Postcondition: Returns a fully populated Library, or an error naming the first
// file that failed to load. A missing evolutions file yields an empty table.
func Load(cfg config.ContentConfig, logger *zap.Logger) (*Library, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()

	speciesReg, err := species.LoadDirectory(cfg.SpeciesDir)
	if err != nil {
		return nil, fmt.Errorf("loading species: %w", err)
	}
	powers, err := mask.LoadDirectory(cfg.AbilitiesDir)
	if err != nil {
		return nil, fmt.Errorf("loading abilities: %w", err)
	}
	encounters, err := encounter.LoadDirectory(cfg.EncountersDir)
	if err != nil {
		return nil, fmt.Errorf("loading encounters: %w", err)
	}

	evolutions := evolution.NewTable()
	if cfg.EvolutionsFile != "" {
		if _, statErr := os.Stat(cfg.EvolutionsFile); statErr == nil {
			evolutions, err = evolution.LoadFile(cfg.EvolutionsFile)
			if err != nil {
				return nil, fmt.Errorf("loading evolutions: %w", err)
			}
		} else {
			logger.Warn("evolutions file not found, evolution disabled",
				zap.String("path", cfg.EvolutionsFile))
		}
	}

	lib := &Library{
		Species:    speciesReg,
		Powers:     powers,
		Encounters: encounters,
		Evolutions: evolutions,
	}
	logger.Info("content loaded",
		zap.Int("species", len(speciesReg.IDs())),
		zap.Int("abilities", len(powers.All())),
		zap.Int("encounters", len(encounters.All())),
		zap.Int("evolution_rules", len(evolutions.Rules())),
		zap.Duration("elapsed", time.Since(start)),
	)
	for _, problem := range lib.Check() {
		logger.Warn("content reference problem", zap.String("problem", problem))
	}
	return lib, nil
}

// Check reports dangling references between registries.
// Dangling references are not fatal: the generator substitutes defaults at battle time.
//
// Postcondition: Returns one sorted message per dangling reference; empty when consistent.
func (l *Library) Check() []string {
	var problems []string
	for _, id := range l.Species.IDs() {
		tmpl, _ := l.Species.Get(id)
		if tmpl.Ability == "" {
			continue
		}
		if _, ok := l.Powers.Get(tmpl.Ability); !ok {
			problems = append(problems, fmt.Sprintf("species %q: unknown ability %q", id, tmpl.Ability))
		}
	}
	for _, enc := range l.Encounters.All() {
		if _, ok := l.Species.Get(enc.Headliner); enc.Headliner != "" && !ok {
			problems = append(problems, fmt.Sprintf("encounter %q: unknown headliner %q", enc.ID, enc.Headliner))
		}
		for wi, wave := range enc.Waves {
			for si, slot := range wave.Enemies {
				if _, ok := l.Species.Get(slot.SpeciesID); !ok {
					problems = append(problems, fmt.Sprintf("encounter %q: %s: unknown species %q",
						enc.ID, encounter.EnemyID(wi, si), slot.SpeciesID))
				}
			}
		}
	}
	for _, rule := range l.Evolutions.Rules() {
		if _, ok := l.Species.Get(rule.BaseID); !ok {
			problems = append(problems, fmt.Sprintf("evolution %q: unknown base %q", rule.Family, rule.BaseID))
		}
		if rule.EvolvedID == "" {
			continue
		}
		if _, ok := l.Species.Get(rule.EvolvedID); !ok {
			problems = append(problems, fmt.Sprintf("evolution %q: unknown evolved form %q", rule.Family, rule.EvolvedID))
		}
	}
	sort.Strings(problems)
	return problems
}

// LoadScripts loads the Lua target strategies in dir into mgr.
//
// Postcondition: Returns false without error when dir is empty or absent.
func LoadScripts(mgr *scripting.Manager, dir string, instLimit int) (bool, error) {
	if dir == "" {
		return false, nil
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false, nil
	}
	if err := mgr.Load(dir, instLimit); err != nil {
		return false, fmt.Errorf("loading strategy scripts: %w", err)
	}
	return true, nil
}
