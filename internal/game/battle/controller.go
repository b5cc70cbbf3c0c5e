package battle

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/battlegrid/internal/game/character"
	"github.com/cory-johannsen/battlegrid/internal/game/grid"
	"github.com/cory-johannsen/battlegrid/internal/game/terrain"
)

// Controller owns one battle's grid and drives it through select → move-or-attack.
// Human input and the AI agent both act only through SelectTile, ResolveMove,
// SetTurnPlayer, SetTurnOpponent and StartRound.
//
// Controller is not safe for concurrent use; the caller must serialise access.
type Controller struct {
	grid    *grid.Grid
	terrain terrain.Table
	logger  *zap.Logger

	round     int
	turn      grid.Side
	battleEnd bool

	tileSelected bool
	selectedPos  grid.Position
	selected     *character.Character
	available    map[grid.Position]struct{}
	availableSeq []grid.Position

	events []Event
}

// NewController creates a Controller for g. The player side moves first.
//
// Precondition: g, table, and logger must be non-nil.
// Postcondition: Returns a Controller in Idle, or an error wrapping
// terrain.ErrUnmapped if the table misses a terrain code used by g.
func NewController(g *grid.Grid, table terrain.Table, logger *zap.Logger) (*Controller, error) {
	if g == nil {
		panic("battle.NewController: grid must not be nil")
	}
	if logger == nil {
		panic("battle.NewController: logger must not be nil")
	}
	if err := table.Covers(g.TerrainCodes()); err != nil {
		return nil, fmt.Errorf("terrain table does not cover grid: %w", err)
	}
	c := &Controller{
		grid:    g,
		terrain: table,
		logger:  logger,
		turn:    grid.SidePlayer,
	}
	c.clearSelection()
	c.battleEnd = g.LivingCount(grid.SidePlayer) == 0 || g.LivingCount(grid.SideOpponent) == 0
	return c, nil
}

// Grid returns the battle grid for read access.
func (c *Controller) Grid() *grid.Grid { return c.grid }

// Round returns the current round number; 0 before the first StartRound.
func (c *Controller) Round() int { return c.round }

// Turn returns the side currently acting.
func (c *Controller) Turn() grid.Side { return c.turn }

// State returns Selecting while a unit is selected, Idle otherwise.
func (c *Controller) State() State {
	if c.tileSelected {
		return Selecting
	}
	return Idle
}

// Selected returns the selected unit and its position, or (nil, {}, false) when Idle.
func (c *Controller) Selected() (*character.Character, grid.Position, bool) {
	if !c.tileSelected {
		return nil, grid.Position{}, false
	}
	return c.selected, c.selectedPos, true
}

// AvailableMoves returns a copy of the stored reachable set, sorted by (Row, Col).
// It is nil when Idle.
func (c *Controller) AvailableMoves() []grid.Position {
	if c.availableSeq == nil {
		return nil
	}
	return append([]grid.Position(nil), c.availableSeq...)
}

// BattleOver reports whether one side has no living characters left.
func (c *Controller) BattleOver() bool { return c.battleEnd }

// Winner returns the surviving side once the battle is over, SideNone otherwise.
func (c *Controller) Winner() grid.Side {
	if !c.battleEnd {
		return grid.SideNone
	}
	switch {
	case c.grid.LivingCount(grid.SideOpponent) == 0 && c.grid.LivingCount(grid.SidePlayer) > 0:
		return grid.SidePlayer
	case c.grid.LivingCount(grid.SidePlayer) == 0 && c.grid.LivingCount(grid.SideOpponent) > 0:
		return grid.SideOpponent
	default:
		return grid.SideNone
	}
}

// SetTurnPlayer hands the turn to the player side and drops any selection.
func (c *Controller) SetTurnPlayer() { c.setTurn(grid.SidePlayer) }

// SetTurnOpponent hands the turn to the opponent side and drops any selection.
func (c *Controller) SetTurnOpponent() { c.setTurn(grid.SideOpponent) }

func (c *Controller) setTurn(s grid.Side) {
	c.clearSelection()
	c.turn = s
	c.logger.Debug("turn changed", zap.Stringer("side", s), zap.Int("round", c.round))
}

// StartRound advances the round counter, makes every living character
// turn-eligible again and gives the turn to the player side.
//
// Postcondition: Round() is incremented; State() == Idle; Turn() == SidePlayer.
func (c *Controller) StartRound() int {
	c.round++
	for _, side := range []grid.Side{grid.SidePlayer, grid.SideOpponent} {
		for _, ch := range c.grid.Roster(side) {
			ch.HasTurn = !ch.IsDead()
		}
	}
	c.setTurn(grid.SidePlayer)
	c.logger.Info("round started", zap.Int("round", c.round))
	return c.round
}

// TurnDone reports whether no living unit of side is still turn-eligible.
func (c *Controller) TurnDone(side grid.Side) bool {
	for _, ch := range c.grid.Roster(side) {
		if !ch.IsDead() && ch.HasTurn {
			return false
		}
	}
	return true
}

// CancelSelection returns to Idle without acting.
func (c *Controller) CancelSelection() {
	if c.tileSelected {
		c.logger.Debug("selection cancelled", zap.Stringer("pos", c.selectedPos))
	}
	c.clearSelection()
}

func (c *Controller) clearSelection() {
	c.tileSelected = false
	c.selectedPos = grid.Position{Row: -1, Col: -1}
	c.selected = nil
	c.available = nil
	c.availableSeq = nil
}

// ReachableTiles computes the reachable set of the unit on pos from its
// agility and the terrain modifier of pos. It does not change controller state.
//
// Postcondition: Returns the Manhattan diamond of radius MovementBudget
// around pos (pos excluded), or an error if pos holds no unit or its terrain is unmapped.
func (c *Controller) ReachableTiles(pos grid.Position) ([]grid.Position, error) {
	ch, _, err := c.grid.CharacterAt(pos)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, fmt.Errorf("no unit on %s", pos)
	}
	return c.reachableFor(ch, pos)
}

func (c *Controller) reachableFor(ch *character.Character, pos grid.Position) ([]grid.Position, error) {
	tile, err := c.grid.TileAt(pos)
	if err != nil {
		return nil, err
	}
	mod, err := c.terrain.Modifier(tile.TerrainCode)
	if err != nil {
		return nil, err
	}
	return SearchReachable(pos, MovementBudget(ch.Agility, mod)), nil
}

// SelectTile selects the unit on pos and stores its reachable set.
// Selecting again while Selecting replaces the previous selection.
//
// Precondition: pos holds a living unit of the acting side with HasTurn set.
// Postcondition: on success State() == Selecting; on error the controller
// state is unchanged. Errors wrap ErrInvalidSelection, ErrBattleOver,
// terrain.ErrUnmapped, or grid.ErrInconsistentState.
func (c *Controller) SelectTile(pos grid.Position) error {
	if c.battleEnd {
		return ErrBattleOver
	}
	ch, side, err := c.grid.CharacterAt(pos)
	switch {
	case errors.Is(err, grid.ErrOutOfBounds):
		return c.rejectSelection(pos, fmt.Errorf("%w: %w", ErrInvalidSelection, err))
	case errors.Is(err, grid.ErrInconsistentState):
		c.logger.Error("grid inconsistency on select", zap.Stringer("pos", pos), zap.Error(err))
		return err
	case err != nil:
		return err
	}

	switch {
	case ch == nil:
		return c.rejectSelection(pos, fmt.Errorf("%w: no unit on %s", ErrInvalidSelection, pos))
	case side != c.turn:
		return c.rejectSelection(pos, fmt.Errorf("%w: %s unit %q is not commanded by %s", ErrInvalidSelection, side, ch.ID, c.turn))
	case ch.IsDead():
		return c.rejectSelection(pos, fmt.Errorf("%w: unit %q is defeated", ErrInvalidSelection, ch.ID))
	case !ch.HasTurn:
		return c.rejectSelection(pos, fmt.Errorf("%w: unit %q has already acted", ErrInvalidSelection, ch.ID))
	}

	reach, err := c.reachableFor(ch, pos)
	if err != nil {
		c.logger.Error("computing reachable tiles", zap.Stringer("pos", pos), zap.Error(err))
		return err
	}

	c.tileSelected = true
	c.selectedPos = pos
	c.selected = ch
	c.availableSeq = reach
	c.available = make(map[grid.Position]struct{}, len(reach))
	for _, p := range reach {
		c.available[p] = struct{}{}
	}
	c.logger.Debug("unit selected",
		zap.String("unit", ch.ID),
		zap.Stringer("pos", pos),
		zap.Int("reachable", len(reach)),
	)
	return nil
}

func (c *Controller) rejectSelection(pos grid.Position, err error) error {
	c.logger.Warn("selection rejected", zap.Stringer("pos", pos), zap.Error(err))
	return err
}

// ResolveMove resolves the selected unit's action on dest: a move onto an
// empty tile, or a melee attack on a hostile unit or hostile corpse. The
// mover never enters an occupied tile. Any success ends the mover's turn.
//
// Precondition: State() == Selecting.
// Postcondition: on success or on ErrOutOfRange/ErrInvalidDestination the
// controller is Idle. A grid.ErrInconsistentState error leaves state untouched.
func (c *Controller) ResolveMove(dest grid.Position) (Event, error) {
	if c.battleEnd {
		return Event{}, ErrBattleOver
	}
	if !c.tileSelected {
		return Event{}, ErrNoSelection
	}
	if _, ok := c.available[dest]; !ok {
		return Event{}, c.rejectMove(dest, fmt.Errorf("%w: %s not reachable from %s", ErrOutOfRange, dest, c.selectedPos))
	}
	tile, err := c.grid.TileAt(dest)
	if err != nil {
		return Event{}, c.rejectMove(dest, fmt.Errorf("%w: %w", ErrInvalidDestination, err))
	}

	hostile := c.turn.Opposite()
	switch {
	case tile.IsEmpty():
		return c.move(dest)
	case tile.Owner == hostile:
		return c.attack(dest, tile)
	default:
		return Event{}, c.rejectMove(dest, fmt.Errorf("%w: %s holds %s %s %q", ErrInvalidDestination, dest, tile.Owner, tile.Occupant, tile.OccupantID))
	}
}

func (c *Controller) rejectMove(dest grid.Position, err error) error {
	c.logger.Warn("move rejected",
		zap.Stringer("from", c.selectedPos),
		zap.Stringer("to", dest),
		zap.Error(err),
	)
	c.clearSelection()
	return err
}

func (c *Controller) move(dest grid.Position) (Event, error) {
	if err := c.grid.MoveOccupant(c.selectedPos, dest); err != nil {
		return Event{}, c.rejectMove(dest, fmt.Errorf("%w: %w", ErrInvalidDestination, err))
	}
	ev := Event{
		Round:   c.round,
		Side:    c.turn,
		ActorID: c.selected.ID,
		Outcome: OutcomeMoved,
		From:    c.selectedPos,
		To:      dest,
	}
	return c.finish(ev), nil
}

// attack resolves melee against the unit or corpse on dest.
func (c *Controller) attack(dest grid.Position, tile grid.Tile) (Event, error) {
	target, _, err := c.grid.CharacterAt(dest)
	if err != nil {
		c.logger.Error("grid inconsistency on attack", zap.Stringer("pos", dest), zap.Error(err))
		return Event{}, err
	}

	wasAlive := !target.IsDead()
	shieldBefore, healthBefore := target.Shield, target.CurrentHealth
	target.TakeDamage(c.selected.Attack)

	ev := Event{
		Round:          c.round,
		Side:           c.turn,
		ActorID:        c.selected.ID,
		Outcome:        OutcomeAttacked,
		From:           c.selectedPos,
		To:             dest,
		TargetID:       target.ID,
		ShieldAbsorbed: shieldBefore - target.Shield,
		HealthLost:     healthBefore - target.CurrentHealth,
		TargetHealth:   target.CurrentHealth,
	}

	if wasAlive && target.IsDead() && tile.Occupant != grid.OccupantCorpse {
		ev.Outcome = OutcomeKilled
		if target.NoCorpse {
			err = c.grid.ClearOccupant(dest)
		} else {
			err = c.grid.MarkCorpse(dest)
		}
		if err != nil {
			return Event{}, err
		}
	}
	c.checkBattleEnd()
	return c.finish(ev), nil
}

// checkBattleEnd ends the battle once the side not on turn has no living units.
func (c *Controller) checkBattleEnd() {
	if c.battleEnd || c.grid.LivingCount(c.turn.Opposite()) > 0 {
		return
	}
	c.battleEnd = true
	c.logger.Info("battle over", zap.Stringer("winner", c.turn), zap.Int("round", c.round))
}

// finish ends the mover's turn, records ev and returns to Idle.
func (c *Controller) finish(ev Event) Event {
	c.selected.HasTurn = false
	c.events = append(c.events, ev)
	c.logger.Debug("action resolved",
		zap.String("unit", ev.ActorID),
		zap.Stringer("outcome", ev.Outcome),
		zap.Stringer("from", ev.From),
		zap.Stringer("to", ev.To),
		zap.String("target", ev.TargetID),
		zap.Int("health_lost", ev.HealthLost),
	)
	c.clearSelection()
	return ev
}

// Events returns a copy of every event recorded since the last DrainEvents.
func (c *Controller) Events() []Event {
	return append([]Event(nil), c.events...)
}

// DrainEvents returns the recorded events and clears the log.
func (c *Controller) DrainEvents() []Event {
	out := c.events
	c.events = nil
	return out
}
