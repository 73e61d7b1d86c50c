package combat_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/battlecore/internal/game/combat"
	"github.com/cory-johannsen/battlecore/internal/game/dice"
	"github.com/cory-johannsen/battlecore/internal/game/element"
	"github.com/cory-johannsen/battlecore/internal/scripting"
)

func candidatesFor() (*combat.Combatant, []*combat.Combatant) {
	self := fighter("t1", combat.SideTeam, element.Fire, 100, 20, 5, 10)
	return self, []*combat.Combatant{
		fighter("e1", combat.SideEnemy, element.Water, 30, 10, 5, 5),
		fighter("e2", combat.SideEnemy, element.Ice, 30, 10, 5, 5),
		fighter("e3", combat.SideEnemy, element.Stone, 12, 10, 5, 5),
	}
}

func TestLowestHP(t *testing.T) {
	self, cs := candidatesFor()
	assert.Equal(t, "e3", combat.LowestHP{}.ChooseTarget(self, cs).ID)
	cs[2].HP = 30
	assert.Equal(t, "e1", combat.LowestHP{}.ChooseTarget(self, cs).ID, "ties go to the earliest")
	assert.Nil(t, combat.LowestHP{}.ChooseTarget(self, nil))
}

func TestMostEffective(t *testing.T) {
	self, cs := candidatesFor()
	assert.Equal(t, "e2", combat.MostEffective{}.ChooseTarget(self, cs).ID)

	// Base damage outweighs a neutral element.
	cs[2].Defense = 0
	cs[1].Defense = 15
	assert.Equal(t, "e3", combat.MostEffective{}.ChooseTarget(self, cs).ID)

	neutralSelf := fighter("t2", combat.SideTeam, element.Light, 100, 20, 5, 10)
	_, cs = candidatesFor()
	assert.Equal(t, "e1", combat.MostEffective{}.ChooseTarget(neutralSelf, cs).ID, "ties go to the earliest")
	assert.Nil(t, combat.MostEffective{}.ChooseTarget(self, nil))
}

func TestRandom_UsesFloorOfDraw(t *testing.T) {
	self, cs := candidatesFor()
	assert.Equal(t, "e1", combat.Random{Src: fixedSource{f: 0}}.ChooseTarget(self, cs).ID)
	assert.Equal(t, "e2", combat.Random{Src: fixedSource{f: 0.5}}.ChooseTarget(self, cs).ID)
	assert.Equal(t, "e3", combat.Random{Src: fixedSource{f: 0.9999}}.ChooseTarget(self, cs).ID)
	assert.Nil(t, combat.Random{Src: fixedSource{}}.ChooseTarget(self, nil))
}

func TestProperty_Random_AlwaysReturnsACandidate(t *testing.T) {
	src := dice.NewSeededSource(42)
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(rt, "n")
		cs := make([]*combat.Combatant, n)
		for i := range cs {
			cs[i] = fighter(string(rune('a'+i)), combat.SideEnemy, element.Fire, 10, 1, 1, 1)
		}
		got := combat.Random{Src: src}.ChooseTarget(nil, cs)
		assert.Contains(rt, cs, got)
	})
}

func TestNewStrategy(t *testing.T) {
	src := fixedSource{}
	s, err := combat.NewStrategy(combat.StrategyLowestHP, src, nil)
	require.NoError(t, err)
	assert.IsType(t, combat.LowestHP{}, s)

	s, err = combat.NewStrategy(combat.StrategyMostEffective, src, nil)
	require.NoError(t, err)
	assert.IsType(t, combat.MostEffective{}, s)

	s, err = combat.NewStrategy(combat.StrategyRandom, src, nil)
	require.NoError(t, err)
	assert.IsType(t, combat.Random{}, s)

	_, err = combat.NewStrategy(combat.StrategyRandom, nil, nil)
	assert.Error(t, err)
	_, err = combat.NewStrategy("script:pick", src, nil)
	assert.Error(t, err, "scripts must be loaded")
	_, err = combat.NewStrategy("strongest", src, nil)
	assert.Error(t, err)

	assert.True(t, combat.ValidStrategyName("random"))
	assert.True(t, combat.ValidStrategyName("script:pick"))
	assert.False(t, combat.ValidStrategyName("script:"))
	assert.False(t, combat.ValidStrategyName("strongest"))
}

func TestScripted_ChoosesByHookAndFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "targets.lua"), []byte(`
		function prefer_stone(self, candidates)
			for i, c in ipairs(candidates) do
				if c.element == "stone" then return i end
			end
			return nil
		end
	`), 0644))
	logger := zap.NewNop()
	mgr := scripting.NewManager(dice.NewLoggedRoller(dice.NewSeededSource(1), logger), logger)
	require.NoError(t, mgr.Load(dir, 0))
	defer mgr.Close()

	s, err := combat.NewStrategy("script:prefer_stone", fixedSource{}, mgr)
	require.NoError(t, err)
	self, cs := candidatesFor()
	assert.Equal(t, "e3", s.ChooseTarget(self, cs).ID)

	// No stone candidate: the hook returns nil and MostEffective decides.
	assert.Equal(t, "e2", s.ChooseTarget(self, cs[:2]).ID)

	bare := combat.Scripted{Hook: "prefer_stone"}
	assert.Equal(t, "e1", bare.ChooseTarget(self, cs).ID)
	assert.Nil(t, bare.ChooseTarget(self, nil))
}
