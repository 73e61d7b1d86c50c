package battle_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/battlecore/internal/game/battle"
	"github.com/cory-johannsen/battlecore/internal/game/combat"
	"github.com/cory-johannsen/battlecore/internal/game/dice"
	"github.com/cory-johannsen/battlecore/internal/game/element"
	"github.com/cory-johannsen/battlecore/internal/game/encounter"
	"github.com/cory-johannsen/battlecore/internal/game/mask"
	"github.com/cory-johannsen/battlecore/internal/game/reward"
	"github.com/cory-johannsen/battlecore/internal/game/species"
)

// zeroSource makes damage variance 0 and every chance roll succeed.
type zeroSource struct{}

func (zeroSource) Intn(int) int     { return 0 }
func (zeroSource) Float64() float64 { return 0 }

func speciesRegistry() *species.Registry {
	return species.NewRegistry(
		&species.Template{ID: "tahu", Name: "Tahu", Element: element.Fire,
			Base: species.BaseStats{MaxHP: 100, Attack: 30, Defense: 10, Speed: 20}},
		&species.Template{ID: "gali", Name: "Gali", Element: element.Water,
			Base: species.BaseStats{MaxHP: 20, Attack: 5, Defense: 0, Speed: 15}},
		&species.Template{ID: "tahnok", Name: "Tahnok", Element: element.Fire,
			Base: species.BaseStats{MaxHP: 0, Attack: 5, Defense: 0, Speed: 0}},
		&species.Template{ID: "pahrak", Name: "Pahrak", Element: element.Stone,
			Base: species.BaseStats{MaxHP: 0, Attack: 5, Defense: 0, Speed: 30}, Ability: "pakari"},
		&species.Template{ID: "nuhvok", Name: "Nuhvok", Element: element.Earth,
			Base: species.BaseStats{MaxHP: 500, Attack: 80, Defense: 50, Speed: 50}},
	)
}

func powerRegistry() *mask.Registry {
	reg := mask.NewRegistry()
	reg.Register(&mask.Definition{
		ID: "hau", Name: "Shielding",
		Effect:   mask.Effect{Kind: mask.KindAttackMultiplier, Scope: mask.ScopeSelf, Duration: mask.Countdown{Unit: mask.UnitRound, Amount: 1}},
		Cooldown: mask.Countdown{Unit: mask.UnitWave, Amount: 2},
	})
	reg.Register(&mask.Definition{
		ID: "pakari", Name: "Strength",
		Effect:   mask.Effect{Kind: mask.KindAttackMultiplier, Scope: mask.ScopeSelf, Duration: mask.Countdown{Unit: mask.UnitTurn, Amount: 3}},
		Cooldown: mask.Countdown{Unit: mask.UnitTurn, Amount: 5},
	})
	return reg
}

func slots(speciesID string, n int) encounter.Wave {
	w := encounter.Wave{}
	for i := 0; i < n; i++ {
		w.Enemies = append(w.Enemies, encounter.Slot{SpeciesID: speciesID, Level: 1})
	}
	return w
}

// twoWaves is one tahnok, then two. Level 1 tahu one-shots each tahnok.
func twoWaves() *encounter.Encounter {
	return &encounter.Encounter{
		ID: "tahnok_nest", Name: "Tahnok Nest", Tier: 1, Headliner: "tahnok",
		Waves: []encounter.Wave{slots("tahnok", 1), slots("tahnok", 2)},
		Loot:  []encounter.LootEntry{{DropID: "krana_xa", Element: element.Fire, Chance: 1}},
	}
}

type fixture struct {
	b    *battle.Battle
	logs *observer.ObservedLogs
}

func newFixture(t *testing.T, opts battle.Options, p combat.Presenter) fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	roller := dice.NewLoggedRoller(zeroSource{}, logger)
	sp := speciesRegistry()
	resolver, err := combat.NewResolver(roller, combat.ResolverConfig{Presenter: p}, logger)
	require.NoError(t, err)
	b := battle.New(
		combat.NewGenerator(sp, powerRegistry(), logger),
		resolver,
		reward.NewCalculator(sp, roller, logger),
		opts,
		logger,
	)
	return fixture{b: b, logs: logs}
}

func start(t *testing.T, b *battle.Battle, enc *encounter.Encounter, members ...battle.Member) {
	t.Helper()
	require.NoError(t, b.StartBattle(enc))
	require.NoError(t, b.ConfirmTeam(members))
}

func TestPhaseMachine_CommandsRejectedOutOfPhase(t *testing.T) {
	f := newFixture(t, battle.Options{AutoAdvanceWaves: true}, nil)
	b := f.b
	assert.Equal(t, battle.PhaseIdle, b.Phase())

	_, err := b.PlayActionQueue(context.Background())
	assert.ErrorIs(t, err, battle.ErrInvalidPhase)
	assert.ErrorIs(t, b.ConfirmTeam([]battle.Member{{CharacterID: "tahu", Level: 1}}), battle.ErrInvalidPhase)
	assert.ErrorIs(t, b.Retreat(), battle.ErrInvalidPhase)
	assert.ErrorIs(t, b.AdvanceWave(), battle.ErrInvalidPhase)
	_, err = b.Settle(nil, nil)
	assert.ErrorIs(t, err, battle.ErrInvalidPhase)

	require.NoError(t, b.StartBattle(twoWaves()))
	assert.Equal(t, battle.PhasePreparing, b.Phase())
	assert.ErrorIs(t, b.ConfirmTeam(nil), battle.ErrEmptyTeam)
	assert.Error(t, b.ConfirmTeam([]battle.Member{{CharacterID: "tahu", Level: 1}, {CharacterID: "tahu", Level: 2}}))
	assert.Equal(t, battle.PhasePreparing, b.Phase())

	require.NoError(t, b.ConfirmTeam([]battle.Member{{CharacterID: "tahu", Level: 1}}))
	assert.Equal(t, battle.PhaseInProgress, b.Phase())
	assert.ErrorIs(t, b.StartBattle(twoWaves()), battle.ErrInvalidPhase)

	snap := b.Snapshot()
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "tahnok_nest", snap.EncounterID)
	assert.Equal(t, 0, snap.WaveIndex)
	assert.Equal(t, 2, snap.WaveCount)
	require.Len(t, snap.Enemies, 1)
	assert.Equal(t, "w1-e1", snap.Enemies[0].ID)
	assert.Equal(t, combat.SideEnemy, snap.Enemies[0].Side)
	require.Len(t, snap.Team, 1)
	assert.Equal(t, combat.SideTeam, snap.Team[0].Side)
}

func TestPlayActionQueue_AutoAdvanceToVictory(t *testing.T) {
	f := newFixture(t, battle.Options{AutoAdvanceWaves: true}, nil)
	b := f.b
	start(t, b, twoWaves(), battle.Member{CharacterID: "tahu", Level: 1})

	report, err := b.PlayActionQueue(context.Background())
	require.NoError(t, err)
	assert.True(t, report.WaveAdvanced)
	assert.Equal(t, 1, report.WaveIndex)
	assert.Equal(t, battle.PhaseInProgress, report.Phase)
	require.Len(t, report.Events, 1)
	assert.Equal(t, "w1-e1", report.Events[0].TargetID)

	report, err = b.PlayActionQueue(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Events, 2)
	assert.Equal(t, "w2-e1", report.Events[0].TargetID)
	assert.Equal(t, "w2-e2", report.Events[1].ActorID)

	report, err = b.PlayActionQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, battle.PhaseVictory, report.Phase)
	assert.False(t, report.WaveAdvanced)

	snap := b.Snapshot()
	assert.Equal(t, 2, snap.Enemies[0].DefeatOrder)
	assert.Equal(t, 3, snap.Enemies[1].DefeatOrder)
	assert.Equal(t, 109, snap.Team[0].HP)

	res, err := b.Settle(encounter.NewLedger(), nil)
	require.NoError(t, err)
	assert.Equal(t, reward.Victory, res.Outcome)
	assert.Equal(t, 15, res.ExpTotal)
	assert.Equal(t, []string{"tahu"}, res.ParticipantIDs)
	require.Len(t, res.Drops, 1)
	assert.Equal(t, "krana_xa", res.Drops[0].DropID)

	_, err = b.PlayActionQueue(context.Background())
	assert.ErrorIs(t, err, battle.ErrInvalidPhase)

	require.NoError(t, b.StartBattle(twoWaves()), "a finished battle may select a new encounter")
	assert.NotEqual(t, snap.ID, b.Snapshot().ID)
}

func TestAdvanceWave_Manual(t *testing.T) {
	f := newFixture(t, battle.Options{}, nil)
	b := f.b
	start(t, b, twoWaves(), battle.Member{CharacterID: "tahu", Level: 1})

	report, err := b.PlayActionQueue(context.Background())
	require.NoError(t, err)
	assert.False(t, report.WaveAdvanced)
	assert.Equal(t, 0, report.WaveIndex)
	assert.Equal(t, battle.PhaseInProgress, report.Phase)

	require.NoError(t, b.AdvanceWave())
	assert.Equal(t, 1, b.Snapshot().WaveIndex)
	assert.ErrorIs(t, b.AdvanceWave(), battle.ErrNoMoreWaves)
}

func TestAdvanceWave_NotCleared(t *testing.T) {
	f := newFixture(t, battle.Options{}, nil)
	start(t, f.b, twoWaves(), battle.Member{CharacterID: "tahu", Level: 1})
	assert.ErrorIs(t, f.b.AdvanceWave(), battle.ErrWaveNotCleared)
}

func TestPlayActionQueue_Defeat(t *testing.T) {
	f := newFixture(t, battle.Options{AutoAdvanceWaves: true}, nil)
	b := f.b
	enc := &encounter.Encounter{ID: "lair", Name: "Lair", Tier: 1, Headliner: "nuhvok",
		Waves: []encounter.Wave{slots("nuhvok", 1)}}
	start(t, b, enc, battle.Member{CharacterID: "gali", Level: 1})

	report, err := b.PlayActionQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, battle.PhaseDefeat, report.Phase)
	require.Len(t, report.Events, 1, "gali falls before acting")
	assert.True(t, report.Events[0].Defeated)

	res, err := b.Settle(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, reward.Defeat, res.Outcome)
	assert.Equal(t, 0, res.ExpTotal)
	assert.Equal(t, []string{"gali"}, res.ParticipantIDs)
}

func TestRetreat_DuringRoundDropsRemainingSteps(t *testing.T) {
	var b *battle.Battle
	p := combat.PresenterFunc(func(context.Context, string, string, combat.ActionKind) error {
		return b.Retreat()
	})
	f := newFixture(t, battle.Options{AutoAdvanceWaves: true}, p)
	b = f.b
	start(t, b, twoWaves(), battle.Member{CharacterID: "tahu", Level: 1})

	report, err := b.PlayActionQueue(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Halted)
	assert.Empty(t, report.Events)
	assert.Equal(t, battle.PhaseRetreated, report.Phase)
	snap := b.Snapshot()
	assert.Equal(t, snap.Enemies[0].MaxHP, snap.Enemies[0].HP, "in-flight damage not applied")

	res, err := b.Settle(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, reward.Retreated, res.Outcome)
	assert.Equal(t, 0, res.ExpTotal)
	assert.ErrorIs(t, b.Retreat(), battle.ErrInvalidPhase)
}

func TestSetWillUseAbility(t *testing.T) {
	f := newFixture(t, battle.Options{}, nil)
	b := f.b
	assert.ErrorIs(t, b.SetWillUseAbility("tahu", true), battle.ErrInvalidPhase)
	start(t, b, twoWaves(), battle.Member{CharacterID: "tahu", Level: 1, Ability: "hau"})
	assert.ErrorIs(t, b.SetWillUseAbility("onua", true), battle.ErrUnknownCombatant)
	assert.ErrorIs(t, b.SetWillUseAbility("w1-e1", true), battle.ErrUnknownCombatant, "enemies decide for themselves")
	require.NoError(t, b.SetWillUseAbility("tahu", true))
	assert.True(t, b.Snapshot().Team[0].WillUseAbility)
}

// A round-scoped power used in the round that clears a wave must not stay active in the next
// wave, and the wave advance decrements its wave cooldown exactly once.
func TestWaveBoundary_RoundScopedPowerDoesNotLinger(t *testing.T) {
	f := newFixture(t, battle.Options{AutoAdvanceWaves: true}, nil)
	b := f.b
	enc := twoWaves()
	enc.Waves = append(enc.Waves, slots("tahnok", 1))
	start(t, b, enc, battle.Member{CharacterID: "tahu", Level: 1, Ability: "hau"})
	require.NoError(t, b.SetWillUseAbility("tahu", true))

	report, err := b.PlayActionQueue(context.Background())
	require.NoError(t, err)
	require.True(t, report.WaveAdvanced)
	require.Len(t, report.Events, 2)
	assert.Equal(t, combat.ActionAbility, report.Events[0].Kind)
	assert.Equal(t, 1.5, report.Events[1].Damage.AttackFactor)

	tahu := b.Snapshot().Team[0]
	assert.False(t, tahu.Effect.Active)
	assert.Equal(t, 1, tahu.Effect.Cooldown.Amount, "static cooldown 2, one wave advance")
	assert.False(t, tahu.WillUseAbility)

	report, err = b.PlayActionQueue(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, report.Events)
	assert.Equal(t, "w2-e1", report.Events[0].TargetID, "resolver sees the new wave")
	assert.Equal(t, 1.0, report.Events[0].Damage.AttackFactor)

	// Wave 1 needs a second round; clearing it advances again and readies the power.
	report, err = b.PlayActionQueue(context.Background())
	require.NoError(t, err)
	require.True(t, report.WaveAdvanced)
	assert.True(t, b.Snapshot().Team[0].Effect.Ready())
}

func TestEnemiesRequestReadyPowers(t *testing.T) {
	f := newFixture(t, battle.Options{}, nil)
	b := f.b
	enc := &encounter.Encounter{ID: "pahrak", Name: "Pahrak", Tier: 1, Headliner: "pahrak",
		Waves: []encounter.Wave{slots("pahrak", 1)}}
	start(t, b, enc, battle.Member{CharacterID: "tahu", Level: 1})

	// Pahrak outpaces Tahu, so its turn-scoped power opens the round.
	report, err := b.PlayActionQueue(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(report.Events), 2)
	assert.Equal(t, combat.ActionAbility, report.Events[0].Kind)
	assert.Equal(t, "w1-e1", report.Events[0].ActorID)
	assert.Equal(t, "w1-e1", report.Events[1].ActorID)
	assert.Equal(t, 1.5, report.Events[1].Damage.AttackFactor)
}

func TestConfirmTeam_UnknownSpeciesIsNotFatal(t *testing.T) {
	f := newFixture(t, battle.Options{}, nil)
	enc := &encounter.Encounter{ID: "mystery", Name: "Mystery", Tier: 1, Headliner: "makuta",
		Waves: []encounter.Wave{slots("makuta", 1)}}
	start(t, f.b, enc, battle.Member{CharacterID: "tahu", Level: 1, Ability: "no_such_mask"})
	assert.Equal(t, battle.PhaseInProgress, f.b.Phase())
	snap := f.b.Snapshot()
	assert.Equal(t, element.Light, snap.Enemies[0].Element)
	assert.Nil(t, snap.Team[0].Effect)
	assert.GreaterOrEqual(t, f.logs.FilterLevelExact(zap.WarnLevel).Len(), 2)
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	f := newFixture(t, battle.Options{}, nil)
	start(t, f.b, twoWaves(), battle.Member{CharacterID: "tahu", Level: 1, Ability: "hau"})
	snap := f.b.Snapshot()
	snap.Team[0].HP = 1
	snap.Team[0].Effect.Active = true
	again := f.b.Snapshot()
	assert.Equal(t, again.Team[0].MaxHP, again.Team[0].HP)
	assert.False(t, again.Team[0].Effect.Active)
}

func TestPlayActionQueue_RejectsConcurrentCommands(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	p := combat.PresenterFunc(func(ctx context.Context, _, _ string, _ combat.ActionKind) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	})
	f := newFixture(t, battle.Options{}, p)
	b := f.b
	start(t, b, twoWaves(), battle.Member{CharacterID: "tahu", Level: 1})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := b.PlayActionQueue(context.Background())
		assert.NoError(t, err)
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("round never reached the presenter")
	}
	assert.True(t, b.Snapshot().RoundInProgress)
	_, err := b.PlayActionQueue(context.Background())
	assert.ErrorIs(t, err, battle.ErrRoundInProgress)
	assert.ErrorIs(t, b.SetWillUseAbility("tahu", true), battle.ErrRoundInProgress)
	assert.ErrorIs(t, b.AdvanceWave(), battle.ErrRoundInProgress)

	close(release)
	wg.Wait()
	assert.False(t, b.Snapshot().RoundInProgress)
}

func TestSettle_WaitsForHaltedRoundToReturn(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	p := combat.PresenterFunc(func(ctx context.Context, _, _ string, _ combat.ActionKind) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return nil
	})
	f := newFixture(t, battle.Options{}, p)
	b := f.b
	start(t, b, twoWaves(), battle.Member{CharacterID: "tahu", Level: 1})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		report, err := b.PlayActionQueue(context.Background())
		assert.NoError(t, err)
		assert.True(t, report.Halted)
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("round never reached the presenter")
	}
	require.NoError(t, b.Retreat())
	_, err := b.Settle(encounter.Ledger{}, nil)
	assert.ErrorIs(t, err, battle.ErrRoundInProgress)

	close(release)
	wg.Wait()
	res, err := b.Settle(encounter.Ledger{}, nil)
	require.NoError(t, err)
	assert.Equal(t, reward.Retreated, res.Outcome)
	for _, e := range b.Snapshot().Enemies {
		assert.Equal(t, e.MaxHP, e.HP, "the halted step never committed")
	}
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "in_progress", battle.PhaseInProgress.String())
	assert.True(t, battle.PhaseRetreated.Terminal())
	assert.False(t, battle.PhasePreparing.Terminal())
}
