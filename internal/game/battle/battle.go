// Package battle implements the turn controller for one battle on the grid:
// tile selection, movement range, and move or melee resolution.
package battle

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/battlegrid/internal/game/grid"
)

var (
	// ErrInvalidSelection is returned when the chosen tile holds no unit the
	// acting side may command this turn.
	ErrInvalidSelection = errors.New("battle: invalid selection")
	// ErrNoSelection is returned by ResolveMove when no unit is selected.
	ErrNoSelection = errors.New("battle: no unit selected")
	// ErrOutOfRange is returned when the destination is not in the reachable set.
	ErrOutOfRange = errors.New("battle: destination out of range")
	// ErrInvalidDestination is returned when the destination cannot be moved
	// onto or attacked.
	ErrInvalidDestination = errors.New("battle: invalid destination")
	// ErrBattleOver is returned for any action after one side has been wiped out.
	ErrBattleOver = errors.New("battle: battle is over")
)

// State is the controller's interaction state.
type State int

const (
	// Idle means no unit is selected.
	Idle State = iota
	// Selecting means a unit is selected and its reachable set is stored.
	Selecting
)

// String returns a human-readable state label.
func (s State) String() string {
	if s == Selecting {
		return "selecting"
	}
	return "idle"
}

// Outcome classifies a successful ResolveMove.
type Outcome int

const (
	OutcomeMoved Outcome = iota
	OutcomeAttacked
	OutcomeKilled
)

// String returns a human-readable outcome label.
func (o Outcome) String() string {
	switch o {
	case OutcomeMoved:
		return "moved"
	case OutcomeAttacked:
		return "attacked"
	case OutcomeKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	for _, o := range []Outcome{OutcomeMoved, OutcomeAttacked, OutcomeKilled} {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

// Event records one resolved action.
type Event struct {
	Round   int
	Side    grid.Side
	ActorID string
	Outcome Outcome
	From    grid.Position
	To      grid.Position
	// TargetID is empty for plain moves.
	TargetID string
	// ShieldAbsorbed and HealthLost split the attack damage.
	ShieldAbsorbed int
	HealthLost     int
	// TargetHealth is the target's health after the attack.
	TargetHealth int
}
