// Package sim runs a battle between two agents round by round.
package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/battlegrid/internal/game/battle"
	"github.com/cory-johannsen/battlegrid/internal/game/grid"
	"github.com/cory-johannsen/battlegrid/internal/observability"
)

// Agent acts for one side during its turn.
type Agent interface {
	Side() grid.Side
	TakeTurn(ctrl *battle.Controller) ([]battle.Event, error)
}

// EventSink receives the events of every finished round.
type EventSink interface {
	SaveEvents(ctx context.Context, battleID uuid.UUID, events []battle.Event) error
}

// Result summarises a finished simulation.
type Result struct {
	BattleID uuid.UUID
	Rounds   int
	// Winner is SideNone when max rounds ran out first.
	Winner grid.Side
	Events int
}

// Runner drives a Controller with a player agent and an opponent agent.
type Runner struct {
	id        uuid.UUID
	ctrl      *battle.Controller
	player    Agent
	opponent  Agent
	maxRounds int
	sink      EventSink
	logger    *zap.Logger
}

// NewRunner creates a Runner with a fresh battle id. sink may be nil.
//
// Precondition: ctrl, player, opponent and logger are non-nil; player acts
// for SidePlayer and opponent for SideOpponent; maxRounds >= 1.
func NewRunner(ctrl *battle.Controller, player, opponent Agent, maxRounds int, sink EventSink, logger *zap.Logger) (*Runner, error) {
	if ctrl == nil || player == nil || opponent == nil || logger == nil {
		return nil, fmt.Errorf("sim.NewRunner: controller, agents and logger must not be nil")
	}
	if player.Side() != grid.SidePlayer || opponent.Side() != grid.SideOpponent {
		return nil, fmt.Errorf("sim.NewRunner: agents must command player and opponent sides, got %s and %s", player.Side(), opponent.Side())
	}
	if maxRounds < 1 {
		return nil, fmt.Errorf("sim.NewRunner: maxRounds must be >= 1, got %d", maxRounds)
	}
	id := uuid.New()
	return &Runner{
		id:        id,
		ctrl:      ctrl,
		player:    player,
		opponent:  opponent,
		maxRounds: maxRounds,
		sink:      sink,
		logger:    observability.ForBattle(logger, id),
	}, nil
}

// BattleID returns the id events are stored under.
func (r *Runner) BattleID() uuid.UUID { return r.id }

// Run plays rounds until one side is wiped out, maxRounds is reached or ctx
// is cancelled. Each round the player side acts first.
//
// Postcondition: Returns the result so far; a non-nil error reports a
// cancelled context, an agent failure or a sink failure.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	res := Result{BattleID: r.id}

	for !r.ctrl.BattleOver() && res.Rounds < r.maxRounds {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("battle %s interrupted: %w", r.id, err)
		}
		res.Rounds = r.ctrl.StartRound()

		for _, a := range []Agent{r.player, r.opponent} {
			if _, err := a.TakeTurn(r.ctrl); err != nil {
				return res, fmt.Errorf("round %d %s turn: %w", res.Rounds, a.Side(), err)
			}
		}

		events := r.ctrl.DrainEvents()
		res.Events += len(events)
		for _, ev := range events {
			r.logger.Info("battle event",
				zap.Int("round", ev.Round),
				zap.Stringer("side", ev.Side),
				zap.String("actor", ev.ActorID),
				zap.Stringer("outcome", ev.Outcome),
				zap.Stringer("from", ev.From),
				zap.Stringer("to", ev.To),
				zap.String("target", ev.TargetID),
				zap.Int("target_health", ev.TargetHealth),
			)
		}
		if r.sink != nil && len(events) > 0 {
			if err := r.sink.SaveEvents(ctx, r.id, events); err != nil {
				return res, fmt.Errorf("storing round %d: %w", res.Rounds, err)
			}
		}
	}

	res.Winner = r.ctrl.Winner()
	r.logger.Info("battle finished",
		zap.Int("rounds", res.Rounds),
		zap.Stringer("winner", res.Winner),
		zap.Int("events", res.Events),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}
