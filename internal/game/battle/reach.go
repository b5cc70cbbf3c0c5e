package battle

import (
	"sort"

	"github.com/cory-johannsen/battlegrid/internal/game/grid"
)

// MovementBudget returns the number of expansion rounds a unit gets: its
// agility plus the modifier of the tile it starts on, never less than 1.
//
// Postcondition: Returns >= 1.
func MovementBudget(agility, terrainModifier int) int {
	b := agility + terrainModifier
	if b < 1 {
		return 1
	}
	return b
}

// SearchReachable returns every position within Manhattan distance budget of
// origin, excluding origin. The search expands the four orthogonal neighbours
// of the previous frontier once per round. It does not clip to grid bounds or
// skip occupied tiles; ResolveMove enforces both.
//
// Precondition: budget >= 1 (smaller values are treated as 1).
// Postcondition: Returns positions sorted by (Row, Col) without duplicates.
func SearchReachable(origin grid.Position, budget int) []grid.Position {
	if budget < 1 {
		budget = 1
	}
	seen := map[grid.Position]struct{}{origin: {}}
	var frontier []grid.Position
	for _, n := range origin.Neighbors() {
		seen[n] = struct{}{}
		frontier = append(frontier, n)
	}
	out := append([]grid.Position(nil), frontier...)

	for round := 1; round < budget; round++ {
		var next []grid.Position
		for _, p := range frontier {
			for _, n := range p.Neighbors() {
				if _, dup := seen[n]; dup {
					continue
				}
				seen[n] = struct{}{}
				next = append(next, n)
			}
		}
		out = append(out, next...)
		frontier = next
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}
