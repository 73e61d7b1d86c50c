// Package main provides battlesim, a headless runner that plays one encounter end to end
// and settles its rewards.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/battlecore/internal/config"
	"github.com/cory-johannsen/battlecore/internal/content"
	"github.com/cory-johannsen/battlecore/internal/game/battle"
	"github.com/cory-johannsen/battlecore/internal/game/combat"
	"github.com/cory-johannsen/battlecore/internal/game/dice"
	"github.com/cory-johannsen/battlecore/internal/game/encounter"
	"github.com/cory-johannsen/battlecore/internal/game/reward"
	"github.com/cory-johannsen/battlecore/internal/observability"
	"github.com/cory-johannsen/battlecore/internal/scripting"
	"github.com/cory-johannsen/battlecore/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	encounterID := flag.String("encounter", "", "id of the encounter to play")
	teamSpec := flag.String("team", "", "team as id:level[:ability],...")
	list := flag.Bool("list", false, "list the encounters currently available and exit")
	persist := flag.Bool("persist", false, "read and write roster, collection and quests in PostgreSQL")
	pace := flag.Duration("pace", 0, "delay standing in for each action animation")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	var src dice.Source
	if cfg.Battle.Seed != 0 {
		src = dice.NewSeededSource(cfg.Battle.Seed)
	} else {
		src = dice.NewCryptoSource()
	}
	roller := dice.NewLoggedRoller(src, logger)

	lib, err := content.Load(cfg.Content, logger)
	if err != nil {
		logger.Fatal("loading content", zap.Error(err))
	}

	scriptMgr := scripting.NewManager(roller, logger)
	defer scriptMgr.Close()
	loaded, err := content.LoadScripts(scriptMgr, cfg.Content.ScriptsDir, cfg.Battle.ScriptInstructionLimit)
	if err != nil {
		logger.Fatal("loading scripts", zap.Error(err))
	}
	if !loaded {
		scriptMgr = nil
	}

	var store *stores
	if *persist {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		store = newStores(pool)
	}

	ledger, quests := encounter.NewLedger(), []string(nil)
	if store != nil {
		if ledger, quests, err = store.progress(ctx); err != nil {
			logger.Fatal("loading progress", zap.Error(err))
		}
	}
	visible := encounter.Visible(lib.Encounters.All(), ledger, quests)

	if *list {
		for _, enc := range visible {
			fmt.Printf("%-20s tier %d  %s\n", enc.ID, enc.Tier, enc.Name)
		}
		return
	}

	enc, ok := lib.Encounters.Get(*encounterID)
	if !ok {
		logger.Fatal("unknown encounter", zap.String("encounter", *encounterID))
	}
	if !contains(visible, enc.ID) {
		logger.Fatal("encounter not available", zap.String("encounter", enc.ID))
	}
	members, err := parseTeam(*teamSpec)
	if err != nil {
		logger.Fatal("parsing team", zap.Error(err))
	}
	if store != nil {
		if members, err = store.enroll(ctx, members); err != nil {
			logger.Fatal("loading roster", zap.Error(err))
		}
	}

	teamStrategy, err := combat.NewStrategy(cfg.Battle.TeamStrategy, src, scriptMgr)
	if err != nil {
		logger.Fatal("team strategy", zap.Error(err))
	}
	enemyStrategy, err := combat.NewStrategy(cfg.Battle.EnemyStrategy, src, scriptMgr)
	if err != nil {
		logger.Fatal("enemy strategy", zap.Error(err))
	}
	resolver, err := combat.NewResolver(roller, combat.ResolverConfig{
		Presenter:           pacedPresenter(*pace, logger),
		PresentationTimeout: cfg.Battle.PresentationTimeout,
		Variance:            cfg.Battle.DamageVariance,
		TeamStrategy:        teamStrategy,
		EnemyStrategy:       enemyStrategy,
	}, logger)
	if err != nil {
		logger.Fatal("creating resolver", zap.Error(err))
	}

	b := battle.New(
		combat.NewGenerator(lib.Species, lib.Powers, logger),
		resolver,
		reward.NewCalculator(lib.Species, roller, logger),
		battle.Options{AutoAdvanceWaves: cfg.Battle.AutoAdvanceWaves},
		logger,
	)
	go func() {
		<-ctx.Done()
		_ = b.Retreat()
	}()

	logger.Info("battle ready",
		zap.String("encounter", enc.ID),
		zap.Int("team", len(members)),
		zap.Duration("elapsed", time.Since(start)),
	)

	sim := &simulation{battle: b, maxRounds: cfg.Battle.MaxRounds, out: os.Stdout, logger: logger}
	res, err := sim.run(ctx, enc, members, ledger, quests)
	if err != nil {
		logger.Fatal("running battle", zap.Error(err))
	}

	if store != nil {
		// Settlement writes must survive an interrupt that ended the battle.
		evolved, err := store.record(context.WithoutCancel(ctx), res, lib.Evolutions, quests)
		if err != nil {
			logger.Fatal("recording rewards", zap.Error(err))
		}
		for _, e := range evolved {
			fmt.Printf("evolved: %s (stage %d)\n", e.CharacterID, e.Stage)
		}
	}
	logger.Info("battlesim finished", zap.Duration("elapsed", time.Since(start)))
}

func contains(encs []*encounter.Encounter, id string) bool {
	for _, e := range encs {
		if e.ID == id {
			return true
		}
	}
	return false
}
