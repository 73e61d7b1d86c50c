package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/battlecore/internal/game/element"
	"github.com/cory-johannsen/battlecore/internal/game/evolution"
	"github.com/cory-johannsen/battlecore/internal/game/reward"
	"github.com/cory-johannsen/battlecore/internal/storage/postgres"
	"github.com/cory-johannsen/battlecore/internal/testutil"
)

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func award(el element.Element, dropID string) reward.DropAward {
	return reward.DropAward{InstanceID: uuid.NewString(), DropID: dropID, Element: el, EnemyID: "w1-e1"}
}

func TestRosterRepository(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewRosterRepository(pool)
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.Get(ctx, "nobody")
		assert.ErrorIs(t, err, postgres.ErrNotFound)
	})

	t.Run("upsert and get", func(t *testing.T) {
		id := uniqueID("tahu")
		require.NoError(t, repo.Upsert(ctx, evolution.Entry{CharacterID: id, Level: 3, Experience: 40}))
		require.NoError(t, repo.Upsert(ctx, evolution.Entry{CharacterID: id, Level: 4, Experience: 55, Stage: 1}))

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, evolution.Entry{CharacterID: id, Level: 4, Experience: 55, Stage: 1}, got)
	})

	t.Run("upsert empty id", func(t *testing.T) {
		assert.Error(t, repo.Upsert(ctx, evolution.Entry{}))
	})

	t.Run("add experience", func(t *testing.T) {
		a, b := uniqueID("gali"), uniqueID("kopaka")
		require.NoError(t, repo.Upsert(ctx, evolution.Entry{CharacterID: a, Level: 1, Experience: 10}))
		require.NoError(t, repo.Upsert(ctx, evolution.Entry{CharacterID: b, Level: 1}))

		require.NoError(t, repo.AddExperience(ctx, []string{a, b}, 25))

		ga, err := repo.Get(ctx, a)
		require.NoError(t, err)
		gb, err := repo.Get(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, 35, ga.Experience)
		assert.Equal(t, 25, gb.Experience)
	})

	t.Run("add experience is atomic", func(t *testing.T) {
		a := uniqueID("onua")
		require.NoError(t, repo.Upsert(ctx, evolution.Entry{CharacterID: a, Level: 1}))

		err := repo.AddExperience(ctx, []string{a, "missing"}, 10)
		assert.ErrorIs(t, err, postgres.ErrNotFound)

		got, err := repo.Get(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Experience, "rolled back")
	})

	t.Run("negative experience", func(t *testing.T) {
		assert.Error(t, repo.AddExperience(ctx, []string{"x"}, -1))
	})

	t.Run("replace evolved", func(t *testing.T) {
		base := uniqueID("lewa")
		require.NoError(t, repo.Upsert(ctx, evolution.Entry{CharacterID: base, Level: 30, Experience: 900}))

		evolved := evolution.Entry{CharacterID: base + "_nuva", Level: 30, Experience: 900}
		require.NoError(t, repo.ReplaceEvolved(ctx, base, evolved))

		_, err := repo.Get(ctx, base)
		assert.ErrorIs(t, err, postgres.ErrNotFound)
		got, err := repo.Get(ctx, evolved.CharacterID)
		require.NoError(t, err)
		assert.Equal(t, evolved, got)
	})

	t.Run("replace evolved with stage keeps id", func(t *testing.T) {
		id := uniqueID("tahnok")
		require.NoError(t, repo.Upsert(ctx, evolution.Entry{CharacterID: id, Level: 15}))
		require.NoError(t, repo.ReplaceEvolved(ctx, id, evolution.Entry{CharacterID: id, Level: 15, Stage: 1}))

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Stage)
	})

	t.Run("replace missing", func(t *testing.T) {
		err := repo.ReplaceEvolved(ctx, "ghost", evolution.Entry{CharacterID: "ghost_nuva"})
		assert.ErrorIs(t, err, postgres.ErrNotFound)
	})

	t.Run("list is sorted", func(t *testing.T) {
		all, err := repo.List(ctx)
		require.NoError(t, err)
		for i := 1; i < len(all); i++ {
			assert.Less(t, all[i-1].CharacterID, all[i].CharacterID)
		}
	})

	t.Run("property experience accumulates", func(t *testing.T) {
		rapid.Check(t, func(rt *rapid.T) {
			id := uniqueID("matoran")
			require.NoError(rt, repo.Upsert(ctx, evolution.Entry{CharacterID: id, Level: 1}))
			grants := rapid.SliceOfN(rapid.IntRange(0, 500), 1, 5).Draw(rt, "grants")
			total := 0
			for _, g := range grants {
				require.NoError(rt, repo.AddExperience(ctx, []string{id}, g))
				total += g
			}
			got, err := repo.Get(ctx, id)
			require.NoError(rt, err)
			assert.Equal(rt, total, got.Experience)
		})
	})
}

func TestCollectionRepository(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewCollectionRepository(pool)
	ctx := context.Background()

	t.Run("empty ledger", func(t *testing.T) {
		ledger, err := repo.Ledger(ctx)
		require.NoError(t, err)
		assert.Empty(t, ledger.Entries())
	})

	t.Run("record nothing", func(t *testing.T) {
		n, err := repo.Record(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("record and reload", func(t *testing.T) {
		n, err := repo.Record(ctx, []reward.DropAward{
			award(element.Fire, "xa"),
			award(element.Water, "xa"),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		ledger, err := repo.Ledger(ctx)
		require.NoError(t, err)
		assert.True(t, ledger.Has(element.Fire, "xa"))
		assert.True(t, ledger.Has(element.Water, "xa"))
		assert.False(t, ledger.Has(element.Air, "xa"))
	})

	t.Run("duplicates are ignored", func(t *testing.T) {
		n, err := repo.Record(ctx, []reward.DropAward{
			award(element.Fire, "xa"),
			award(element.Fire, "vu"),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		ledger, err := repo.Ledger(ctx)
		require.NoError(t, err)
		assert.Len(t, ledger.Entries(), 3)
	})
}

func TestQuestRepository(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewQuestRepository(pool)
	ctx := context.Background()

	done, err := repo.Completed(ctx)
	require.NoError(t, err)
	assert.Empty(t, done)

	require.NoError(t, repo.Complete(ctx, "great_disks"))
	require.NoError(t, repo.Complete(ctx, "bohrok_kal"))
	require.NoError(t, repo.Complete(ctx, "great_disks"))
	assert.Error(t, repo.Complete(ctx, ""))

	done, err = repo.Completed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bohrok_kal", "great_disks"}, done)
}
