package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/battlecore/internal/game/battle"
	"github.com/cory-johannsen/battlecore/internal/game/combat"
	"github.com/cory-johannsen/battlecore/internal/game/encounter"
	"github.com/cory-johannsen/battlecore/internal/game/reward"
	"github.com/cory-johannsen/battlecore/internal/observability"
)

// simulation drives one battle from encounter selection to settlement.
type simulation struct {
	battle    *battle.Battle
	maxRounds int
	out       io.Writer
	logger    *zap.Logger
}

// run plays enc with members until the battle ends, the round limit is reached, or ctx is canceled.
// Cancellation and the round limit both end the battle as a retreat.
//
// Postcondition: Returns the settled rewards of a terminal battle, or an error.
func (s *simulation) run(ctx context.Context, enc *encounter.Encounter, members []battle.Member,
	ledger encounter.Ledger, quests []string) (reward.Result, error) {
	if err := s.battle.StartBattle(enc); err != nil {
		return reward.Result{}, fmt.Errorf("starting battle: %w", err)
	}
	if err := s.battle.ConfirmTeam(members); err != nil {
		return reward.Result{}, fmt.Errorf("confirming team: %w", err)
	}
	snap := s.battle.Snapshot()
	s.logger = observability.ForBattle(s.logger, snap.ID, enc.ID)
	fmt.Fprintf(s.out, "== %s: wave 1/%d ==\n", enc.Name, snap.WaveCount)

	for round := 1; !s.battle.Phase().Terminal(); round++ {
		if round > s.maxRounds {
			s.logger.Warn("round limit reached, retreating", zap.Int("max_rounds", s.maxRounds))
			if err := s.battle.Retreat(); err != nil {
				return reward.Result{}, fmt.Errorf("retreating: %w", err)
			}
			break
		}
		if ctx.Err() != nil {
			if err := s.battle.Retreat(); err != nil && !errors.Is(err, battle.ErrInvalidPhase) {
				return reward.Result{}, fmt.Errorf("retreating: %w", err)
			}
			break
		}

		report, err := s.battle.PlayActionQueue(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return reward.Result{}, fmt.Errorf("round %d: %w", round, err)
		}
		for _, ev := range report.Events {
			fmt.Fprintln(s.out, "  "+ev.Narrative)
		}
		if report.WaveAdvanced {
			fmt.Fprintf(s.out, "== wave %d/%d ==\n", report.WaveIndex+1, snap.WaveCount)
		}
		if report.Phase != battle.PhaseInProgress {
			continue
		}
		switch err := s.battle.AdvanceWave(); {
		case err == nil:
			fmt.Fprintf(s.out, "== wave %d/%d ==\n", s.battle.Snapshot().WaveIndex+1, snap.WaveCount)
		case errors.Is(err, battle.ErrWaveNotCleared), errors.Is(err, battle.ErrNoMoreWaves):
		default:
			return reward.Result{}, fmt.Errorf("advancing wave: %w", err)
		}
	}

	res, err := s.battle.Settle(ledger, quests)
	if err != nil {
		return reward.Result{}, fmt.Errorf("settling: %w", err)
	}
	s.report(res)
	return res, nil
}

func (s *simulation) report(res reward.Result) {
	fmt.Fprintf(s.out, "== %s ==\n", res.Outcome)
	fmt.Fprintf(s.out, "defeated: %d  exp: %d (%d each)\n", res.DefeatedCount, res.ExpTotal, res.ExpShare())
	for _, d := range res.Drops {
		fmt.Fprintf(s.out, "drop: %s (%s) from %s\n", d.DropID, d.Element, d.EnemyID)
	}
}

// pacedPresenter stands in for animations by waiting a fixed delay per action.
func pacedPresenter(delay time.Duration, logger *zap.Logger) combat.Presenter {
	return combat.PresenterFunc(func(ctx context.Context, actorID, targetID string, kind combat.ActionKind) error {
		logger.Debug("presenting action",
			zap.String("actor", actorID),
			zap.String("target", targetID),
			zap.Stringer("kind", kind),
		)
		if delay <= 0 {
			return nil
		}
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
