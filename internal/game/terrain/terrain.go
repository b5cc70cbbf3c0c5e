// Package terrain holds the tile-type to agility modifier table that tunes
// movement range on the battle grid.
package terrain

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnmapped is returned when a tile type code has no entry in the table.
// It indicates broken content, not bad player input.
var ErrUnmapped = errors.New("terrain: unmapped tile type")

// Table maps a tile type code to the agility modifier applied to a unit
// standing on that tile.
type Table map[byte]int

// Modifier returns the agility modifier for code.
//
// Postcondition: Returns (modifier, nil) if code is mapped, or an error wrapping ErrUnmapped.
func (t Table) Modifier(code byte) (int, error) {
	m, ok := t[code]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnmapped, code)
	}
	return m, nil
}

// Covers reports the first code in codes missing from the table.
//
// Postcondition: Returns nil when every code is mapped.
func (t Table) Covers(codes []byte) error {
	for _, c := range codes {
		if _, ok := t[c]; !ok {
			return fmt.Errorf("%w %q", ErrUnmapped, c)
		}
	}
	return nil
}

// Codes returns the mapped tile type codes in ascending order.
func (t Table) Codes() []byte {
	out := make([]byte, 0, len(t))
	for c := range t {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
