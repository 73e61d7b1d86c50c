package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestRepository persists the ids of completed quests.
type QuestRepository struct {
	db *pgxpool.Pool
}

// NewQuestRepository creates a QuestRepository backed by the given pool.
func NewQuestRepository(db *pgxpool.Pool) *QuestRepository {
	return &QuestRepository{db: db}
}

// Completed returns every completed quest id in sorted order.
func (r *QuestRepository) Completed(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT quest_id FROM completed_quests ORDER BY quest_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying completed quests: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning quest id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Complete marks questID as completed. Completing a quest twice is a no-op.
func (r *QuestRepository) Complete(ctx context.Context, questID string) error {
	if questID == "" {
		return fmt.Errorf("completing quest: id must not be empty")
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO completed_quests (quest_id) VALUES ($1)
		ON CONFLICT (quest_id) DO NOTHING`,
		questID,
	)
	if err != nil {
		return fmt.Errorf("completing quest %q: %w", questID, err)
	}
	return nil
}
