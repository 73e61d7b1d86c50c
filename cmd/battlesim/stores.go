package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/cory-johannsen/battlecore/internal/game/battle"
	"github.com/cory-johannsen/battlecore/internal/game/encounter"
	"github.com/cory-johannsen/battlecore/internal/game/evolution"
	"github.com/cory-johannsen/battlecore/internal/game/reward"
	"github.com/cory-johannsen/battlecore/internal/storage/postgres"
)

// stores groups the repositories that hold the player's progress.
type stores struct {
	roster     *postgres.RosterRepository
	collection *postgres.CollectionRepository
	quests     *postgres.QuestRepository
}

func newStores(pool *postgres.Pool) *stores {
	return &stores{
		roster:     postgres.NewRosterRepository(pool.DB()),
		collection: postgres.NewCollectionRepository(pool.DB()),
		quests:     postgres.NewQuestRepository(pool.DB()),
	}
}

// progress loads the collection ledger and completed quests.
func (s *stores) progress(ctx context.Context) (encounter.Ledger, []string, error) {
	ledger, err := s.collection.Ledger(ctx)
	if err != nil {
		return nil, nil, err
	}
	quests, err := s.quests.Completed(ctx)
	if err != nil {
		return nil, nil, err
	}
	return ledger, quests, nil
}

// enroll replaces each member's level with its persisted one, adding unknown characters
// to the roster at the requested level.
func (s *stores) enroll(ctx context.Context, members []battle.Member) ([]battle.Member, error) {
	out := make([]battle.Member, len(members))
	for i, m := range members {
		entry, err := s.roster.Get(ctx, m.CharacterID)
		switch {
		case errors.Is(err, postgres.ErrNotFound):
			entry = evolution.Entry{CharacterID: m.CharacterID, Level: m.Level}
			if err := s.roster.Upsert(ctx, entry); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		}
		m.Level = entry.Level
		out[i] = m
	}
	return out, nil
}

// record stores new drops, credits experience to the participants and applies every
// evolution that became eligible.
//
// Postcondition: Returns the entries that evolved.
func (s *stores) record(ctx context.Context, res reward.Result, table *evolution.Table, quests []string) ([]evolution.Entry, error) {
	if _, err := s.collection.Record(ctx, res.Drops); err != nil {
		return nil, err
	}
	if share := res.ExpShare(); share > 0 {
		if err := s.roster.AddExperience(ctx, res.ParticipantIDs, share); err != nil {
			return nil, err
		}
	}
	var evolved []evolution.Entry
	for _, id := range res.ParticipantIDs {
		entry, err := s.roster.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("reloading %q: %w", id, err)
		}
		next, ok := table.Evolve(entry, quests)
		if !ok {
			continue
		}
		if err := s.roster.ReplaceEvolved(ctx, id, next); err != nil {
			return nil, err
		}
		evolved = append(evolved, next)
	}
	return evolved, nil
}
