package ai

import (
	"github.com/cory-johannsen/battlegrid/internal/game/grid"
	"github.com/cory-johannsen/battlegrid/internal/scripting"
)

// UnitLookup returns a scripting.Manager GetUnit callback backed by g.
// side is "player" or "opponent"; unknown sides or ids yield nil.
// Row and Col are -1 for units no longer on the grid.
func UnitLookup(g *grid.Grid) func(side, id string) *scripting.UnitInfo {
	return func(side, id string) *scripting.UnitInfo {
		s, ok := grid.ParseSide(side)
		if !ok {
			return nil
		}
		c, ok := g.Character(s, id)
		if !ok {
			return nil
		}
		info := &scripting.UnitInfo{
			ID:        c.ID,
			Name:      c.Name,
			Side:      side,
			Health:    c.CurrentHealth,
			MaxHealth: c.MaxHealth,
			Attack:    c.Attack,
			Shield:    c.Shield,
			Agility:   c.Agility,
			Dead:      c.IsDead(),
			Row:       -1,
			Col:       -1,
		}
		if p, ok := g.Locate(s, id); ok {
			info.Row, info.Col = p.Row, p.Col
		}
		return info
	}
}
