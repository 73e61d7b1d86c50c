package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/battlecore/internal/game/evolution"
)

// RosterRepository persists the player's characters: level, experience and evolution stage.
type RosterRepository struct {
	db *pgxpool.Pool
}

// NewRosterRepository creates a RosterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRosterRepository(db *pgxpool.Pool) *RosterRepository {
	return &RosterRepository{db: db}
}

// Get returns the roster entry for characterID.
//
// Postcondition: Returns the entry, or ErrNotFound when no row exists.
func (r *RosterRepository) Get(ctx context.Context, characterID string) (evolution.Entry, error) {
	var e evolution.Entry
	err := r.db.QueryRow(ctx, `
		SELECT character_id, level, experience, stage
		FROM roster WHERE character_id = $1`,
		characterID,
	).Scan(&e.CharacterID, &e.Level, &e.Experience, &e.Stage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return evolution.Entry{}, ErrNotFound
		}
		return evolution.Entry{}, fmt.Errorf("querying roster entry %q: %w", characterID, err)
	}
	return e, nil
}

// List returns every roster entry ordered by character id.
func (r *RosterRepository) List(ctx context.Context) ([]evolution.Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT character_id, level, experience, stage
		FROM roster ORDER BY character_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing roster: %w", err)
	}
	defer rows.Close()

	var out []evolution.Entry
	for rows.Next() {
		var e evolution.Entry
		if err := rows.Scan(&e.CharacterID, &e.Level, &e.Experience, &e.Stage); err != nil {
			return nil, fmt.Errorf("scanning roster entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Upsert inserts e or overwrites the existing row with the same character id.
//
// Precondition: e.CharacterID must be non-empty.
func (r *RosterRepository) Upsert(ctx context.Context, e evolution.Entry) error {
	if e.CharacterID == "" {
		return fmt.Errorf("upserting roster entry: character id must not be empty")
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO roster (character_id, level, experience, stage)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (character_id) DO UPDATE
		SET level = EXCLUDED.level, experience = EXCLUDED.experience,
		    stage = EXCLUDED.stage, updated_at = NOW()`,
		e.CharacterID, e.Level, e.Experience, e.Stage,
	)
	if err != nil {
		return fmt.Errorf("upserting roster entry %q: %w", e.CharacterID, err)
	}
	return nil
}

// AddExperience credits amount experience to each listed character.
//
// Precondition: amount must be >= 0.
// Postcondition: Every id is updated atomically; an id with no roster row yields ErrNotFound
// and nothing is written.
func (r *RosterRepository) AddExperience(ctx context.Context, characterIDs []string, amount int) error {
	if amount < 0 {
		return fmt.Errorf("adding experience: amount must be >= 0, got %d", amount)
	}
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		for _, id := range characterIDs {
			tag, err := tx.Exec(ctx, `
				UPDATE roster SET experience = experience + $2, updated_at = NOW()
				WHERE character_id = $1`,
				id, amount,
			)
			if err != nil {
				return fmt.Errorf("adding experience to %q: %w", id, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("adding experience to %q: %w", id, ErrNotFound)
			}
		}
		return nil
	})
}

// ReplaceEvolved stores an evolved entry in place of the row for previousID.
//
// Postcondition: When the evolution changed the character id the old row is removed;
// returns ErrNotFound if previousID has no row.
func (r *RosterRepository) ReplaceEvolved(ctx context.Context, previousID string, evolved evolution.Entry) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM roster WHERE character_id = $1`, previousID)
		if err != nil {
			return fmt.Errorf("removing roster entry %q: %w", previousID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("evolving %q: %w", previousID, ErrNotFound)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO roster (character_id, level, experience, stage)
			VALUES ($1, $2, $3, $4)`,
			evolved.CharacterID, evolved.Level, evolved.Experience, evolved.Stage,
		)
		if err != nil {
			return fmt.Errorf("inserting evolved entry %q: %w", evolved.CharacterID, err)
		}
		return nil
	})
}
