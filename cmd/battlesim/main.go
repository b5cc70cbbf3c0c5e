// Package main provides the battle simulator binary: it loads a scenario and
// plays it out between two AI agents, optionally storing the event log.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/battlegrid/internal/config"
	"github.com/cory-johannsen/battlegrid/internal/game/ai"
	"github.com/cory-johannsen/battlegrid/internal/game/battle"
	"github.com/cory-johannsen/battlegrid/internal/game/grid"
	"github.com/cory-johannsen/battlegrid/internal/game/scenario"
	"github.com/cory-johannsen/battlegrid/internal/game/sim"
	"github.com/cory-johannsen/battlegrid/internal/game/terrain"
	"github.com/cory-johannsen/battlegrid/internal/lifecycle"
	"github.com/cory-johannsen/battlegrid/internal/observability"
	"github.com/cory-johannsen/battlegrid/internal/scripting"
	"github.com/cory-johannsen/battlegrid/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	scenarioPath := flag.String("scenario", "", "scenario YAML; overrides battle.scenario")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *scenarioPath != "" {
		cfg.Battle.Scenario = *scenarioPath
	}

	logger, err := observability.NewLogger(cfg.Logging, "battlesim")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	table, err := terrain.LoadTable(cfg.Battle.TerrainTable)
	if err != nil {
		logger.Fatal("loading terrain table", zap.Error(err))
	}
	sc, err := scenario.Load(cfg.Battle.Scenario)
	if err != nil {
		logger.Fatal("loading scenario", zap.Error(err))
	}
	logger.Info("scenario loaded",
		zap.String("scenario", sc.ID),
		zap.Int("rows", sc.Grid.Rows()),
		zap.Int("cols", sc.Grid.Cols()),
		zap.Int("players", len(sc.Grid.Roster(grid.SidePlayer))),
		zap.Int("opponents", len(sc.Grid.Roster(grid.SideOpponent))),
	)

	ctrl, err := battle.NewController(sc.Grid, table, logger.Named("battle"))
	if err != nil {
		logger.Fatal("creating battle controller", zap.Error(err))
	}

	lc := lifecycle.NewLifecycle(logger)

	var caller ai.ScriptCaller
	if cfg.AI.ScriptDir != "" {
		mgr := scripting.NewManager(logger.Named("lua"))
		mgr.GetUnit = ai.UnitLookup(sc.Grid)
		if err := mgr.LoadGlobal(cfg.AI.ScriptDir, cfg.AI.InstructionLimit); err != nil {
			logger.Fatal("loading AI scripts", zap.Error(err))
		}
		caller = mgr
		lc.Add("scripting", &lifecycle.FuncService{
			StartFn: func(context.Context) error { return nil },
			StopFn:  mgr.Close,
		})
	}

	var sink sim.EventSink
	if cfg.Database.Enabled {
		pool, err := postgres.NewPool(ctx, cfg.Database, logger.Named("postgres"))
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		sink = pool.Reports()
		lc.Add("database", pool)
	}

	runner, err := sim.NewRunner(ctrl,
		ai.NewAgent(grid.SidePlayer, caller, logger.Named("ai")),
		ai.NewAgent(grid.SideOpponent, caller, logger.Named("ai")),
		cfg.Battle.MaxRounds, sink, logger.Named("sim"),
	)
	if err != nil {
		logger.Fatal("creating simulation", zap.Error(err))
	}
	lc.Add("simulation", &lifecycle.FuncService{
		StartFn: func(ctx context.Context) error {
			res, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			logger.Info("simulation result",
				zap.Stringer("battle_id", res.BattleID),
				zap.Stringer("winner", res.Winner),
				zap.Int("rounds", res.Rounds),
				zap.Int("events", res.Events),
			)
			return nil
		},
	})

	logger.Info("battle simulator ready", zap.Duration("startup", time.Since(start)))
	if err := lc.Run(ctx); err != nil {
		logger.Fatal("battle simulator failed", zap.Error(err))
	}
}
