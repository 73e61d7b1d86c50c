package combat_test

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/battlecore/internal/game/combat"
	"github.com/cory-johannsen/battlecore/internal/game/dice"
	"github.com/cory-johannsen/battlecore/internal/game/element"
	"github.com/cory-johannsen/battlecore/internal/game/mask"
)

// fixedSource returns 0 from Intn and f from Float64.
type fixedSource struct{ f float64 }

func (fixedSource) Intn(int) int        { return 0 }
func (s fixedSource) Float64() float64 { return s.f }

// testField is an in-memory combat.Field.
type testField struct {
	mu      sync.Mutex
	cs      []*combat.Combatant
	halted  atomic.Bool
	commits int
}

func newField(cs ...*combat.Combatant) *testField { return &testField{cs: cs} }

func (f *testField) Combatants() []*combat.Combatant { return f.cs }

func (f *testField) Lookup(id string) (*combat.Combatant, bool) {
	for _, c := range f.cs {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

func (f *testField) Halted() bool { return f.halted.Load() }

func (f *testField) Commit(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
	f.commits++
}

func fighter(id string, side combat.Side, el element.Element, hp, atk, def, spd int) *combat.Combatant {
	return &combat.Combatant{
		ID: id, Name: id, Side: side, Level: 1, Element: el,
		MaxHP: hp, HP: hp, Attack: atk, Defense: def, Speed: spd,
	}
}

func power(kind mask.Kind, scope mask.Scope, dur mask.Countdown, cd mask.Countdown) *mask.StatusEffect {
	e := mask.New(&mask.Definition{
		ID:       string(kind),
		Name:     string(kind),
		Effect:   mask.Effect{Kind: kind, Scope: scope, Duration: dur},
		Cooldown: cd,
	})
	return &e
}

func active(kind mask.Kind, scope mask.Scope, bound ...string) *mask.StatusEffect {
	e := power(kind, scope, mask.Countdown{Unit: mask.UnitRound, Amount: 3}, mask.Countdown{Unit: mask.UnitTurn, Amount: 2})
	next, _ := mask.Activate(*e, bound...)
	return &next
}

func newResolver(src dice.Source, cfg combat.ResolverConfig) (*combat.Resolver, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	r, err := combat.NewResolver(dice.NewLoggedRoller(src, logger), cfg, logger)
	if err != nil {
		panic(err)
	}
	return r, logs
}
