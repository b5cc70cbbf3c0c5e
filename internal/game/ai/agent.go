// Package ai drives one side of a battle through the battle.Controller, the
// same way a human player would.
package ai

import (
	"errors"
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/battlegrid/internal/game/battle"
	"github.com/cory-johannsen/battlegrid/internal/game/grid"
)

// ScoreHook is the Lua global consulted for every candidate destination:
//
//	score_destination(actor_id, row, col, occupant, target_health) -> number | false | nil
//
// occupant is "empty", "hostile" or "corpse"; target_health is 0 for empty
// tiles. A number replaces the built-in score, false excludes the
// destination and nil keeps the built-in score.
const ScoreHook = "score_destination"

// attackBonus lifts every attack on a living hostile above every plain move.
const attackBonus = 1_000_000

// ScriptCaller is the interface required by the Agent to consult Lua hooks.
type ScriptCaller interface {
	// CallHook calls a named Lua function in the given scope's VM.
	// Returns (LNil, nil) if the function is not defined.
	CallHook(scope, hook string, args ...lua.LValue) (lua.LValue, error)
}

// Agent plays every unit of one side for a turn.
//
// Invariant: side is SidePlayer or SideOpponent; logger is non-nil.
type Agent struct {
	side   grid.Side
	caller ScriptCaller
	logger *zap.Logger
}

// NewAgent constructs an Agent for side. caller may be nil to use only the
// built-in scoring.
//
// Precondition: side is SidePlayer or SideOpponent; logger must not be nil.
func NewAgent(side grid.Side, caller ScriptCaller, logger *zap.Logger) *Agent {
	if side != grid.SidePlayer && side != grid.SideOpponent {
		panic("ai.NewAgent: side must be player or opponent")
	}
	if logger == nil {
		panic("ai.NewAgent: logger must not be nil")
	}
	return &Agent{side: side, caller: caller, logger: logger.With(zap.Stringer("side", side))}
}

// Side returns the side this agent commands.
func (a *Agent) Side() grid.Side { return a.side }

// candidate is one scored destination.
type candidate struct {
	pos   grid.Position
	score float64
}

// TakeTurn hands the turn to the agent's side and acts once with every
// living, turn-eligible unit in id order. Units without a usable destination
// are skipped.
//
// Precondition: ctrl must not be nil.
// Postcondition: Returns the events produced this turn. Stops early without
// error once the battle is over; grid consistency errors are returned as-is.
func (a *Agent) TakeTurn(ctrl *battle.Controller) ([]battle.Event, error) {
	if ctrl.BattleOver() {
		return nil, nil
	}
	if a.side == grid.SidePlayer {
		ctrl.SetTurnPlayer()
	} else {
		ctrl.SetTurnOpponent()
	}

	g := ctrl.Grid()
	var events []battle.Event
	for _, unit := range g.Roster(a.side) {
		if ctrl.BattleOver() {
			break
		}
		if unit.IsDead() || !unit.HasTurn {
			continue
		}
		pos, ok := g.Locate(a.side, unit.ID)
		if !ok {
			return events, fmt.Errorf("%w: living %s unit %q is not on the grid", grid.ErrInconsistentState, a.side, unit.ID)
		}
		if err := ctrl.SelectTile(pos); err != nil {
			return events, fmt.Errorf("selecting %q: %w", unit.ID, err)
		}

		best, ok := a.choose(ctrl, unit.ID)
		if !ok {
			a.logger.Debug("no usable destination", zap.String("unit", unit.ID))
			ctrl.CancelSelection()
			continue
		}

		ev, err := ctrl.ResolveMove(best.pos)
		if err != nil {
			if errors.Is(err, grid.ErrInconsistentState) {
				return events, err
			}
			// Rejected destinations leave the controller Idle; the unit waits.
			a.logger.Warn("chosen destination rejected",
				zap.String("unit", unit.ID),
				zap.Stringer("to", best.pos),
				zap.Error(err),
			)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// choose scores every in-bounds destination of the current selection and
// returns the highest. Ties keep the earliest position in (Row, Col) order.
func (a *Agent) choose(ctrl *battle.Controller, actorID string) (candidate, bool) {
	g := ctrl.Grid()
	hostile := a.side.Opposite()
	targets := a.hostilePositions(g)

	best := candidate{score: math.Inf(-1)}
	found := false
	for _, p := range ctrl.AvailableMoves() {
		if !g.InBounds(p) {
			continue
		}
		tile, err := g.TileAt(p)
		if err != nil {
			continue
		}

		var (
			occupant     string
			targetHealth int
			score        float64
			usable       bool
		)
		switch {
		case tile.IsEmpty():
			occupant = "empty"
			score, usable = -float64(nearest(p, targets)), len(targets) > 0
		case tile.Owner == hostile:
			target, _, err := g.CharacterAt(p)
			if err != nil {
				continue
			}
			targetHealth = target.CurrentHealth
			if tile.Occupant == grid.OccupantCorpse {
				occupant = "corpse"
			} else {
				occupant = "hostile"
				score, usable = float64(attackBonus-targetHealth), true
			}
		default:
			continue
		}

		if s, override := a.scriptScore(actorID, p, occupant, targetHealth); override {
			score, usable = s, !math.IsInf(s, -1)
		}
		if usable && score > best.score {
			best = candidate{pos: p, score: score}
			found = true
		}
	}
	return best, found
}

// scriptScore consults ScoreHook. A false result is reported as -Inf.
func (a *Agent) scriptScore(actorID string, p grid.Position, occupant string, targetHealth int) (float64, bool) {
	if a.caller == nil {
		return 0, false
	}
	ret, err := a.caller.CallHook(a.side.String(), ScoreHook,
		lua.LString(actorID),
		lua.LNumber(p.Row),
		lua.LNumber(p.Col),
		lua.LString(occupant),
		lua.LNumber(targetHealth),
	)
	if err != nil {
		a.logger.Warn("score hook failed", zap.Error(err))
		return 0, false
	}
	switch v := ret.(type) {
	case lua.LNumber:
		return float64(v), true
	case lua.LBool:
		if !bool(v) {
			return math.Inf(-1), true
		}
	}
	return 0, false
}

func (a *Agent) hostilePositions(g *grid.Grid) []grid.Position {
	var out []grid.Position
	for _, c := range g.Roster(a.side.Opposite()) {
		if c.IsDead() {
			continue
		}
		if p, ok := g.Locate(a.side.Opposite(), c.ID); ok {
			out = append(out, p)
		}
	}
	return out
}

func nearest(p grid.Position, targets []grid.Position) int {
	best := math.MaxInt
	for _, t := range targets {
		if d := p.Distance(t); d < best {
			best = d
		}
	}
	return best
}
