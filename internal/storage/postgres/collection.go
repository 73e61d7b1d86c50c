package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/battlecore/internal/game/element"
	"github.com/cory-johannsen/battlecore/internal/game/encounter"
	"github.com/cory-johannsen/battlecore/internal/game/reward"
)

// CollectionRepository persists the collection ledger of rare drops.
type CollectionRepository struct {
	db *pgxpool.Pool
}

// NewCollectionRepository creates a CollectionRepository backed by the given pool.
func NewCollectionRepository(db *pgxpool.Pool) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// Ledger loads every collected drop into a ledger.
func (r *CollectionRepository) Ledger(ctx context.Context) (encounter.Ledger, error) {
	rows, err := r.db.Query(ctx, `SELECT element, drop_id FROM collection`)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}
	defer rows.Close()

	ledger := encounter.NewLedger()
	for rows.Next() {
		var name, dropID string
		if err := rows.Scan(&name, &dropID); err != nil {
			return nil, fmt.Errorf("scanning collection row: %w", err)
		}
		el, err := element.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("collection row %q: %w", dropID, err)
		}
		ledger.Add(el, dropID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating collection: %w", err)
	}
	return ledger, nil
}

// Record stores newly awarded drops.
//
// Postcondition: Returns how many awards were new; awards already in the ledger are ignored.
func (r *CollectionRepository) Record(ctx context.Context, awards []reward.DropAward) (int, error) {
	if len(awards) == 0 {
		return 0, nil
	}
	inserted := 0
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, a := range awards {
			instance, err := uuid.Parse(a.InstanceID)
			if err != nil {
				return fmt.Errorf("drop %s/%s: instance id: %w", a.Element, a.DropID, err)
			}
			batch.Queue(`
				INSERT INTO collection (instance_id, element, drop_id)
				VALUES ($1, $2, $3)
				ON CONFLICT (element, drop_id) DO NOTHING`,
				[16]byte(instance), a.Element.String(), a.DropID,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for _, a := range awards {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return fmt.Errorf("recording drop %s/%s: %w", a.Element, a.DropID, err)
			}
			inserted += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
