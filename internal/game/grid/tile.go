// Package grid provides the battle grid: fixed-layout tile records, their
// packed string form, and the two rosters the tiles point into.
package grid

import (
	"errors"
	"fmt"
)

// ErrMalformedTile is returned when a packed tile record cannot be decoded.
var ErrMalformedTile = errors.New("grid: malformed tile record")

// Packed tile layout.
const (
	// PackedWidth is the length of one packed tile record.
	PackedWidth = 10

	terrainVisualWidth  = 3
	occupantVisualWidth = 2
	occupantIDWidth     = 2
	idSeparator         = '#'
)

// emptySentinel fills the occupant visual and id fields of an unoccupied tile.
const emptySentinel = "__"

// Position addresses one tile by row and column. Positions outside the grid
// are representable; the grid rejects them on access.
type Position struct {
	Row int
	Col int
}

// String returns "(row,col)".
func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Neighbors returns the four orthogonally adjacent positions: up, down, right, left.
func (p Position) Neighbors() [4]Position {
	return [4]Position{
		{p.Row - 1, p.Col},
		{p.Row + 1, p.Col},
		{p.Row, p.Col + 1},
		{p.Row, p.Col - 1},
	}
}

// Distance returns the Manhattan distance between p and q.
func (p Position) Distance(q Position) int {
	return abs(p.Row-q.Row) + abs(p.Col-q.Col)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Side identifies which roster a character belongs to.
type Side int

const (
	SideNone Side = iota
	SidePlayer
	SideOpponent
)

// String returns a human-readable side label.
func (s Side) String() string {
	switch s {
	case SidePlayer:
		return "player"
	case SideOpponent:
		return "opponent"
	default:
		return "none"
	}
}

// ParseSide is the inverse of Side.String for the two roster sides.
func ParseSide(s string) (Side, bool) {
	switch s {
	case "player":
		return SidePlayer, true
	case "opponent":
		return SideOpponent, true
	default:
		return SideNone, false
	}
}

// Opposite returns the hostile side. SideNone maps to itself.
func (s Side) Opposite() Side {
	switch s {
	case SidePlayer:
		return SideOpponent
	case SideOpponent:
		return SidePlayer
	default:
		return SideNone
	}
}

// OccupantKind is the occupant marker of a tile.
type OccupantKind int

const (
	OccupantNone OccupantKind = iota
	OccupantPlayer
	OccupantEnemy
	OccupantCorpse
)

// Marker returns the packed marker byte for k.
func (k OccupantKind) Marker() byte {
	switch k {
	case OccupantPlayer:
		return 'P'
	case OccupantEnemy:
		return 'E'
	case OccupantCorpse:
		return 'C'
	default:
		return '_'
	}
}

// String returns a human-readable occupant label.
func (k OccupantKind) String() string {
	switch k {
	case OccupantPlayer:
		return "player"
	case OccupantEnemy:
		return "enemy"
	case OccupantCorpse:
		return "corpse"
	default:
		return "empty"
	}
}

func kindForMarker(m byte) (OccupantKind, bool) {
	switch m {
	case 'P':
		return OccupantPlayer, true
	case 'E':
		return OccupantEnemy, true
	case 'C':
		return OccupantCorpse, true
	case '_':
		return OccupantNone, true
	default:
		return OccupantNone, false
	}
}

// kindForSide returns the live occupant marker for a side.
func kindForSide(s Side) OccupantKind {
	switch s {
	case SidePlayer:
		return OccupantPlayer
	case SideOpponent:
		return OccupantEnemy
	default:
		return OccupantNone
	}
}

// Tile is one grid cell. Terrain fields never change after construction;
// occupant fields change on every move and death.
//
// Invariant: Occupant == OccupantNone iff OccupantID == "".
type Tile struct {
	TerrainCode   byte
	TerrainVisual string

	Occupant       OccupantKind
	OccupantVisual string
	OccupantID     string
	// Owner is the roster OccupantID belongs to. For corpses it is resolved
	// when the grid is built or when the unit dies.
	Owner Side
}

// IsEmpty reports whether no unit or corpse occupies the tile.
func (t Tile) IsEmpty() bool { return t.Occupant == OccupantNone }

// clearOccupant resets the occupant fields, keeping terrain.
func (t *Tile) clearOccupant() {
	t.Occupant = OccupantNone
	t.OccupantVisual = ""
	t.OccupantID = ""
	t.Owner = SideNone
}

// EncodeTile packs t into its 10-character boundary form, e.g. "g01*P01#01".
//
// Precondition: TerrainVisual is 3 characters; an occupied tile has a
// 2-character OccupantID and OccupantVisual.
// Postcondition: Returns the packed record or an error wrapping ErrMalformedTile.
func EncodeTile(t Tile) (string, error) {
	if len(t.TerrainVisual) != terrainVisualWidth {
		return "", fmt.Errorf("%w: terrain visual %q must be %d characters", ErrMalformedTile, t.TerrainVisual, terrainVisualWidth)
	}
	visual, id := emptySentinel, emptySentinel
	if !t.IsEmpty() {
		if len(t.OccupantID) != occupantIDWidth {
			return "", fmt.Errorf("%w: occupant id %q must be %d characters", ErrMalformedTile, t.OccupantID, occupantIDWidth)
		}
		if len(t.OccupantVisual) != occupantVisualWidth {
			return "", fmt.Errorf("%w: occupant visual %q must be %d characters", ErrMalformedTile, t.OccupantVisual, occupantVisualWidth)
		}
		visual, id = t.OccupantVisual, t.OccupantID
	}
	buf := make([]byte, 0, PackedWidth)
	buf = append(buf, t.TerrainCode)
	buf = append(buf, t.TerrainVisual...)
	buf = append(buf, t.Occupant.Marker())
	buf = append(buf, visual...)
	buf = append(buf, idSeparator)
	buf = append(buf, id...)
	return string(buf), nil
}

// DecodeTile parses a packed tile record. Owner is set for live occupants;
// corpse ownership is left as SideNone for the grid to resolve.
//
// Postcondition: Returns the Tile or an error wrapping ErrMalformedTile.
func DecodeTile(s string) (Tile, error) {
	if len(s) != PackedWidth {
		return Tile{}, fmt.Errorf("%w: %q is %d characters, want %d", ErrMalformedTile, s, len(s), PackedWidth)
	}
	if s[7] != idSeparator {
		return Tile{}, fmt.Errorf("%w: %q missing %q separator", ErrMalformedTile, s, idSeparator)
	}
	kind, ok := kindForMarker(s[4])
	if !ok {
		return Tile{}, fmt.Errorf("%w: %q has unknown occupant marker %q", ErrMalformedTile, s, s[4])
	}
	t := Tile{
		TerrainCode:   s[0],
		TerrainVisual: s[1:4],
		Occupant:      kind,
	}
	visual, id := s[5:7], s[8:10]
	if kind == OccupantNone {
		if id != emptySentinel || visual != emptySentinel {
			return Tile{}, fmt.Errorf("%w: %q is empty but carries occupant data", ErrMalformedTile, s)
		}
		return t, nil
	}
	if id == emptySentinel {
		return Tile{}, fmt.Errorf("%w: %q has occupant marker but no id", ErrMalformedTile, s)
	}
	t.OccupantVisual = visual
	t.OccupantID = id
	switch kind {
	case OccupantPlayer:
		t.Owner = SidePlayer
	case OccupantEnemy:
		t.Owner = SideOpponent
	}
	return t, nil
}
