// Package battle implements the wave controller and the battle phase machine:
// encounter selection, team confirmation, round execution, wave advance, retreat
// and settlement.
package battle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/battlecore/internal/game/combat"
	"github.com/cory-johannsen/battlecore/internal/game/encounter"
	"github.com/cory-johannsen/battlecore/internal/game/mask"
	"github.com/cory-johannsen/battlecore/internal/game/reward"
)

var (
	// ErrInvalidPhase is returned when a command is not allowed in the current phase.
	ErrInvalidPhase = errors.New("command not allowed in current phase")
	// ErrWaveNotCleared is returned by AdvanceWave while enemies of the current wave stand.
	ErrWaveNotCleared = errors.New("current wave not cleared")
	// ErrNoMoreWaves is returned by AdvanceWave on the final wave.
	ErrNoMoreWaves = errors.New("no more waves")
	// ErrRoundInProgress is returned when a command needs the round to have finished.
	ErrRoundInProgress = errors.New("round in progress")
	// ErrEmptyTeam is returned by ConfirmTeam without members.
	ErrEmptyTeam = errors.New("team must not be empty")
	// ErrUnknownCombatant is returned when a command names no team member.
	ErrUnknownCombatant = errors.New("unknown combatant")
)

// Member is one roster member confirmed for battle.
type Member struct {
	CharacterID string
	Level       int
	// Ability overrides the species' default mask power when non-empty.
	Ability string
}

// Options configures a Battle.
type Options struct {
	// AutoAdvanceWaves advances to the next wave as soon as a round clears the current one.
	AutoAdvanceWaves bool
}

// Snapshot is a consistent copy of a battle's state.
type Snapshot struct {
	ID              string
	Phase           Phase
	EncounterID     string
	WaveIndex       int
	WaveCount       int
	Team            []*combat.Combatant
	Enemies         []*combat.Combatant
	RoundInProgress bool
}

// RoundReport is the outcome of one PlayActionQueue call.
type RoundReport struct {
	Events []combat.RoundEvent
	Phase  Phase
	// WaveIndex is the current wave after any automatic advance.
	WaveIndex    int
	WaveAdvanced bool
	// Halted is true when a retreat cut the round short.
	Halted bool
}

// Battle is one battle instance. All commands are safe for concurrent use; a round runs on the
// caller of PlayActionQueue while Retreat and Snapshot may be called from other goroutines.
//
// Battle implements combat.Field: the resolver re-reads the committed team and enemy arrays on
// every step, so a wave advance is never hidden behind a stale copy.
type Battle struct {
	mu        sync.Mutex
	id        string
	phase     Phase
	enc       *encounter.Encounter
	waveIndex int
	team      []*combat.Combatant
	enemies   []*combat.Combatant
	running   bool
	defeatSeq int

	retreat atomic.Bool

	gen      *combat.Generator
	resolver *combat.Resolver
	rewards  *reward.Calculator
	opts     Options
	logger   *zap.Logger
}

// New creates an Idle battle.
//
// Precondition: gen, resolver and rewards must be non-nil.
func New(gen *combat.Generator, resolver *combat.Resolver, rewards *reward.Calculator, opts Options, logger *zap.Logger) *Battle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Battle{
		gen:      gen,
		resolver: resolver,
		rewards:  rewards,
		opts:     opts,
		logger:   logger,
	}
}

// StartBattle selects enc and enters Preparing. A finished battle may select a new encounter.
//
// Precondition: enc must have passed Validate.
// Postcondition: Phase is Preparing with a fresh battle id, or ErrInvalidPhase while in progress.
func (b *Battle) StartBattle(enc *encounter.Encounter) error {
	if enc == nil || len(enc.Waves) == 0 {
		return fmt.Errorf("start battle: encounter has no waves")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.phase == PhaseInProgress {
		return fmt.Errorf("start battle in %s: %w", b.phase, ErrInvalidPhase)
	}
	if b.running {
		return ErrRoundInProgress
	}
	b.id = uuid.New().String()
	b.phase = PhasePreparing
	b.enc = enc
	b.waveIndex = 0
	b.team = nil
	b.enemies = nil
	b.defeatSeq = 0
	b.retreat.Store(false)
	b.logger.Info("battle preparing",
		zap.String("battle", b.id),
		zap.String("encounter", enc.ID),
	)
	return nil
}

// ConfirmTeam materializes the team and the first wave and enters InProgress.
// Unknown species and abilities are logged and never abort the battle.
//
// Postcondition: Phase is InProgress with WaveIndex 0, or an error and the phase is unchanged.
func (b *Battle) ConfirmTeam(members []Member) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.phase != PhasePreparing {
		return fmt.Errorf("confirm team in %s: %w", b.phase, ErrInvalidPhase)
	}
	if len(members) == 0 {
		return ErrEmptyTeam
	}

	team := make([]*combat.Combatant, 0, len(members))
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if seen[m.CharacterID] {
			return fmt.Errorf("confirm team: %q listed twice", m.CharacterID)
		}
		seen[m.CharacterID] = true
		c, err := b.gen.Generate(m.CharacterID, m.CharacterID, m.Level, m.Ability)
		if err != nil {
			b.logger.Warn("team member generated from partial data",
				zap.String("battle", b.id),
				zap.String("member", m.CharacterID),
				zap.Error(err),
			)
		}
		c.Side = combat.SideTeam
		team = append(team, c)
	}

	b.team = team
	b.waveIndex = 0
	b.spawnWaveLocked()
	b.phase = PhaseInProgress
	b.logger.Info("battle started",
		zap.String("battle", b.id),
		zap.String("encounter", b.enc.ID),
		zap.Int("team", len(team)),
		zap.Int("waves", len(b.enc.Waves)),
	)
	return nil
}

// spawnWaveLocked replaces the enemy array with fresh combatants for the current wave.
// b.mu must be held.
func (b *Battle) spawnWaveLocked() {
	slots := b.enc.Waves[b.waveIndex].Enemies
	enemies := make([]*combat.Combatant, 0, len(slots))
	for j, s := range slots {
		id := encounter.EnemyID(b.waveIndex, j)
		c, err := b.gen.Generate(id, s.SpeciesID, s.Level, "")
		if err != nil {
			b.logger.Warn("enemy generated from partial data",
				zap.String("battle", b.id),
				zap.String("enemy", id),
				zap.Error(err),
			)
		}
		c.Side = combat.SideEnemy
		enemies = append(enemies, c)
	}
	b.enemies = enemies
}

// SetWillUseAbility sets the activation request of a team member for the next round.
func (b *Battle) SetWillUseAbility(id string, use bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.phase != PhaseInProgress {
		return fmt.Errorf("set ability in %s: %w", b.phase, ErrInvalidPhase)
	}
	if b.running {
		return ErrRoundInProgress
	}
	for _, c := range b.team {
		if c.ID == id {
			c.WillUseAbility = use
			return nil
		}
	}
	return fmt.Errorf("set ability for %q: %w", id, ErrUnknownCombatant)
}

// AdvanceWave moves to the next wave once the current one is cleared, firing the per-wave
// event once on every surviving team member's effect.
func (b *Battle) AdvanceWave() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.phase != PhaseInProgress {
		return fmt.Errorf("advance wave in %s: %w", b.phase, ErrInvalidPhase)
	}
	if b.running {
		return ErrRoundInProgress
	}
	if b.waveIndex >= b.enc.LastWave() {
		return ErrNoMoreWaves
	}
	if !combat.AllDefeated(b.enemies) {
		return ErrWaveNotCleared
	}
	b.advanceLocked()
	return nil
}

// advanceLocked performs a wave advance. b.mu must be held.
func (b *Battle) advanceLocked() {
	b.resolver.TickAll(combat.Living(b.team), mask.UnitWave)
	b.waveIndex++
	b.spawnWaveLocked()
	b.logger.Info("wave advanced",
		zap.String("battle", b.id),
		zap.Int("wave", b.waveIndex),
		zap.Int("enemies", len(b.enemies)),
	)
}

// Retreat abandons the battle. A round in flight stops before its next step is committed.
func (b *Battle) Retreat() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.phase != PhaseInProgress {
		return fmt.Errorf("retreat in %s: %w", b.phase, ErrInvalidPhase)
	}
	b.retreat.Store(true)
	b.phase = PhaseRetreated
	b.logger.Info("battle retreated",
		zap.String("battle", b.id),
		zap.Int("wave", b.waveIndex),
	)
	return nil
}

// PlayActionQueue runs one round and returns once every action of the round has been
// presented and committed. Afterwards it settles the phase: Defeat when the team has fallen,
// Victory when the final wave is cleared, and an automatic wave advance when enabled.
//
// Postcondition: Returns the committed events; a retreat during the round is not an error.
func (b *Battle) PlayActionQueue(ctx context.Context) (RoundReport, error) {
	b.mu.Lock()
	if b.phase != PhaseInProgress {
		phase := b.phase
		b.mu.Unlock()
		return RoundReport{Phase: phase}, fmt.Errorf("play round in %s: %w", phase, ErrInvalidPhase)
	}
	if b.running {
		b.mu.Unlock()
		return RoundReport{Phase: PhaseInProgress}, ErrRoundInProgress
	}
	b.running = true
	for _, e := range b.enemies {
		if !e.IsDefeated() && e.Effect != nil && e.Effect.Ready() {
			e.WillUseAbility = true
		}
	}
	b.mu.Unlock()

	events, err := b.resolver.ResolveRound(ctx, b)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = false
	report := RoundReport{Events: events, WaveIndex: b.waveIndex}
	switch {
	case errors.Is(err, combat.ErrRoundHalted):
		report.Halted = true
		report.Phase = b.phase
		return report, nil
	case err != nil:
		report.Phase = b.phase
		return report, fmt.Errorf("play round: %w", err)
	case b.phase != PhaseInProgress:
		// Retreated after the last step was committed.
		report.Phase = b.phase
		return report, nil
	}

	switch {
	case combat.AllDefeated(b.team):
		b.phase = PhaseDefeat
	case combat.AllDefeated(b.enemies) && b.waveIndex >= b.enc.LastWave():
		b.phase = PhaseVictory
	case combat.AllDefeated(b.enemies) && b.opts.AutoAdvanceWaves:
		b.advanceLocked()
		report.WaveAdvanced = true
	}
	if b.phase.Terminal() {
		b.logger.Info("battle ended",
			zap.String("battle", b.id),
			zap.Stringer("phase", b.phase),
			zap.Int("wave", b.waveIndex),
		)
	}
	report.Phase = b.phase
	report.WaveIndex = b.waveIndex
	return report, nil
}

// Settle computes the rewards of a finished battle.
//
// Precondition: the battle is in a terminal phase and no round is still unwinding.
// Postcondition: Returns ErrRoundInProgress while a halted round has not yet returned.
func (b *Battle) Settle(ledger encounter.Ledger, completedQuests []string) (reward.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.phase.Terminal() {
		return reward.Result{}, fmt.Errorf("settle in %s: %w", b.phase, ErrInvalidPhase)
	}
	if b.running {
		return reward.Result{}, ErrRoundInProgress
	}
	return b.rewards.Settle(reward.Input{
		Encounter:       b.enc,
		Outcome:         b.phase.outcome(),
		WaveIndex:       b.waveIndex,
		Enemies:         b.enemies,
		Team:            b.team,
		CompletedQuests: completedQuests,
		Ledger:          ledger,
	}), nil
}

// Snapshot returns a deep copy of the battle state.
func (b *Battle) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Snapshot{
		ID:              b.id,
		Phase:           b.phase,
		WaveIndex:       b.waveIndex,
		Team:            cloneAll(b.team),
		Enemies:         cloneAll(b.enemies),
		RoundInProgress: b.running,
	}
	if b.enc != nil {
		s.EncounterID = b.enc.ID
		s.WaveCount = len(b.enc.Waves)
	}
	return s
}

// Phase returns the current phase.
func (b *Battle) Phase() Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// Combatants implements combat.Field.
func (b *Battle) Combatants() []*combat.Combatant {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*combat.Combatant, 0, len(b.team)+len(b.enemies))
	out = append(out, b.team...)
	return append(out, b.enemies...)
}

// Lookup implements combat.Field.
func (b *Battle) Lookup(id string) (*combat.Combatant, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.team {
		if c.ID == id {
			return c, true
		}
	}
	for _, c := range b.enemies {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Halted implements combat.Field.
func (b *Battle) Halted() bool { return b.retreat.Load() }

// Commit implements combat.Field. Combatants that fell during fn receive the next defeat order.
func (b *Battle) Commit(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn()
	for _, group := range [][]*combat.Combatant{b.team, b.enemies} {
		for _, c := range group {
			if c.IsDefeated() && c.DefeatOrder == 0 {
				b.defeatSeq++
				c.DefeatOrder = b.defeatSeq
			}
		}
	}
}

func cloneAll(cs []*combat.Combatant) []*combat.Combatant {
	out := make([]*combat.Combatant, len(cs))
	for i, c := range cs {
		out[i] = c.Clone()
	}
	return out
}
