package grid

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cory-johannsen/battlegrid/internal/game/character"
)

// ErrOutOfBounds is returned when a position lies outside the grid.
var ErrOutOfBounds = errors.New("grid: position out of bounds")

// ErrInconsistentState marks a tile whose occupant does not agree with its
// roster entry. It signals a broken invariant and must not be recovered locally.
var ErrInconsistentState = errors.New("grid: tile and roster disagree")

// ConsistencyError describes a tile whose occupant marker has no roster entry,
// or whose roster entry is alive on a corpse tile or dead on a live one.
type ConsistencyError struct {
	Pos    Position
	Marker byte
	ID     string
	// Reason is empty when the id has no roster entry.
	Reason string
}

// Error implements error.
func (e *ConsistencyError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("grid: tile %s marker %q id %q: %s", e.Pos, e.Marker, e.ID, e.Reason)
	}
	return fmt.Sprintf("grid: tile %s marker %q references id %q with no roster entry", e.Pos, e.Marker, e.ID)
}

// Unwrap lets errors.Is match ErrInconsistentState.
func (e *ConsistencyError) Unwrap() error { return ErrInconsistentState }

// Grid is the tile array plus the player and opponent rosters.
//
// Invariant: every P/E tile resolves to a living entry of its roster, every
// corpse tile resolves to a dead roster entry, and no living character occupies
// more than one tile. Grid is not safe for concurrent use.
type Grid struct {
	rows, cols int
	tiles      [][]Tile
	players    map[string]*character.Character
	opponents  map[string]*character.Character
}

// New decodes packed tile rows and builds a Grid.
//
// Precondition: rows is rectangular and non-empty.
// Postcondition: Returns a Grid satisfying all invariants, or a non-nil error.
func New(rows [][]string, players, opponents []*character.Character) (*Grid, error) {
	tiles := make([][]Tile, len(rows))
	for r, row := range rows {
		tiles[r] = make([]Tile, len(row))
		for c, packed := range row {
			t, err := DecodeTile(packed)
			if err != nil {
				return nil, fmt.Errorf("tile %s: %w", Position{r, c}, err)
			}
			tiles[r][c] = t
		}
	}
	return FromTiles(tiles, players, opponents)
}

// FromTiles builds a Grid from decoded tiles. The tiles are copied.
//
// Precondition: tiles is rectangular and non-empty; roster ids are unique per side.
// Postcondition: Returns a Grid satisfying all invariants, or a non-nil error.
func FromTiles(tiles [][]Tile, players, opponents []*character.Character) (*Grid, error) {
	if len(tiles) == 0 || len(tiles[0]) == 0 {
		return nil, errors.New("grid must have at least one row and one column")
	}
	g := &Grid{
		rows:      len(tiles),
		cols:      len(tiles[0]),
		tiles:     make([][]Tile, len(tiles)),
		players:   make(map[string]*character.Character, len(players)),
		opponents: make(map[string]*character.Character, len(opponents)),
	}
	for r, row := range tiles {
		if len(row) != g.cols {
			return nil, fmt.Errorf("grid row %d has %d columns, want %d", r, len(row), g.cols)
		}
		g.tiles[r] = append([]Tile(nil), row...)
	}
	if err := fillRoster(g.players, players, SidePlayer); err != nil {
		return nil, err
	}
	if err := fillRoster(g.opponents, opponents, SideOpponent); err != nil {
		return nil, err
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func fillRoster(dst map[string]*character.Character, src []*character.Character, side Side) error {
	for _, c := range src {
		if c == nil {
			return fmt.Errorf("%s roster contains a nil character", side)
		}
		if _, dup := dst[c.ID]; dup {
			return fmt.Errorf("%s roster has duplicate id %q", side, c.ID)
		}
		dst[c.ID] = c
	}
	return nil
}

// validate checks the tile/roster invariants and resolves corpse owners.
func (g *Grid) validate() error {
	seen := make(map[Side]map[string]Position)
	for r := range g.tiles {
		for c := range g.tiles[r] {
			pos := Position{r, c}
			t := &g.tiles[r][c]
			switch t.Occupant {
			case OccupantNone:
				t.clearOccupant()
				continue
			case OccupantPlayer:
				t.Owner = SidePlayer
			case OccupantEnemy:
				t.Owner = SideOpponent
			case OccupantCorpse:
				if t.Owner == SideNone {
					t.Owner = g.corpseOwner(t.OccupantID)
				}
				ch := g.roster(t.Owner)[t.OccupantID]
				if ch == nil {
					return &ConsistencyError{Pos: pos, Marker: t.Occupant.Marker(), ID: t.OccupantID}
				}
				if err := checkLiveness(pos, *t, ch); err != nil {
					return err
				}
				continue
			}
			ch := g.roster(t.Owner)[t.OccupantID]
			if ch == nil {
				return &ConsistencyError{Pos: pos, Marker: t.Occupant.Marker(), ID: t.OccupantID}
			}
			if err := checkLiveness(pos, *t, ch); err != nil {
				return err
			}
			if seen[t.Owner] == nil {
				seen[t.Owner] = make(map[string]Position)
			}
			if prev, dup := seen[t.Owner][t.OccupantID]; dup {
				return fmt.Errorf("%s %q occupies both %s and %s", t.Owner, t.OccupantID, prev, pos)
			}
			seen[t.Owner][t.OccupantID] = pos
		}
	}
	return nil
}

// checkLiveness reports a ConsistencyError when ch is alive on a corpse tile
// or dead on a live one.
func checkLiveness(pos Position, t Tile, ch *character.Character) error {
	switch {
	case t.Occupant == OccupantCorpse && !ch.IsDead():
		return &ConsistencyError{Pos: pos, Marker: t.Occupant.Marker(), ID: t.OccupantID, Reason: fmt.Sprintf("corpse resolves to living %s unit", t.Owner)}
	case t.Occupant != OccupantCorpse && ch.IsDead():
		return &ConsistencyError{Pos: pos, Marker: t.Occupant.Marker(), ID: t.OccupantID, Reason: fmt.Sprintf("%s unit is dead but not marked as a corpse", t.Owner)}
	}
	return nil
}

// corpseOwner picks the roster a packed corpse id belongs to. The packed
// form does not record it, so a dead entry wins over a living one and
// opponents are tried before players.
func (g *Grid) corpseOwner(id string) Side {
	for _, s := range [...]Side{SideOpponent, SidePlayer} {
		if ch := g.roster(s)[id]; ch != nil && ch.IsDead() {
			return s
		}
	}
	if _, ok := g.opponents[id]; ok {
		return SideOpponent
	}
	if _, ok := g.players[id]; ok {
		return SidePlayer
	}
	return SideNone
}

func (g *Grid) roster(s Side) map[string]*character.Character {
	switch s {
	case SidePlayer:
		return g.players
	case SideOpponent:
		return g.opponents
	default:
		return nil
	}
}

// Rows returns the number of rows.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of columns.
func (g *Grid) Cols() int { return g.cols }

// InBounds reports whether p addresses a tile of the grid.
func (g *Grid) InBounds(p Position) bool {
	return p.Row >= 0 && p.Row < g.rows && p.Col >= 0 && p.Col < g.cols
}

// TileAt returns a copy of the tile at p.
//
// Postcondition: Returns (tile, nil) or an error wrapping ErrOutOfBounds.
func (g *Grid) TileAt(p Position) (Tile, error) {
	if !g.InBounds(p) {
		return Tile{}, fmt.Errorf("%w: %s", ErrOutOfBounds, p)
	}
	return g.tiles[p.Row][p.Col], nil
}

// CharacterAt returns the character on p and the roster it belongs to.
// Corpse tiles return the dead character they represent.
//
// Postcondition: empty tile → (nil, SideNone, nil); an occupant that is
// unresolvable, or whose liveness disagrees with its marker →
// *ConsistencyError; out of bounds → ErrOutOfBounds.
func (g *Grid) CharacterAt(p Position) (*character.Character, Side, error) {
	t, err := g.TileAt(p)
	if err != nil {
		return nil, SideNone, err
	}
	if t.IsEmpty() {
		return nil, SideNone, nil
	}
	ch := g.roster(t.Owner)[t.OccupantID]
	if ch == nil {
		return nil, SideNone, &ConsistencyError{Pos: p, Marker: t.Occupant.Marker(), ID: t.OccupantID}
	}
	if err := checkLiveness(p, t, ch); err != nil {
		return nil, SideNone, err
	}
	return ch, t.Owner, nil
}

// Character returns the roster entry for id on side.
func (g *Grid) Character(side Side, id string) (*character.Character, bool) {
	ch, ok := g.roster(side)[id]
	return ch, ok
}

// Roster returns side's characters ordered by id.
func (g *Grid) Roster(side Side) []*character.Character {
	r := g.roster(side)
	out := make([]*character.Character, 0, len(r))
	for _, c := range r {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LivingCount returns the number of characters on side that are not dead.
func (g *Grid) LivingCount(side Side) int {
	n := 0
	for _, c := range g.roster(side) {
		if !c.IsDead() {
			n++
		}
	}
	return n
}

// Locate finds the tile holding the living character id of side.
//
// Postcondition: Returns (pos, true) if found, or (Position{}, false) otherwise.
func (g *Grid) Locate(side Side, id string) (Position, bool) {
	want := kindForSide(side)
	for r := range g.tiles {
		for c, t := range g.tiles[r] {
			if t.Occupant == want && t.OccupantID == id {
				return Position{r, c}, true
			}
		}
	}
	return Position{}, false
}

// MoveOccupant copies the occupant of from onto to, keeping to's terrain,
// and clears from. Destination occupancy is not checked.
//
// Postcondition: to carries from's former occupant; from is empty.
func (g *Grid) MoveOccupant(from, to Position) error {
	if !g.InBounds(from) {
		return fmt.Errorf("%w: source %s", ErrOutOfBounds, from)
	}
	if !g.InBounds(to) {
		return fmt.Errorf("%w: destination %s", ErrOutOfBounds, to)
	}
	if from == to {
		return nil
	}
	src := &g.tiles[from.Row][from.Col]
	dst := &g.tiles[to.Row][to.Col]
	dst.Occupant = src.Occupant
	dst.OccupantVisual = src.OccupantVisual
	dst.OccupantID = src.OccupantID
	dst.Owner = src.Owner
	src.clearOccupant()
	return nil
}

// MarkCorpse rewrites the occupant of p as a corpse, keeping its id and owner.
//
// Precondition: p holds a unit.
func (g *Grid) MarkCorpse(p Position) error {
	if !g.InBounds(p) {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, p)
	}
	t := &g.tiles[p.Row][p.Col]
	if t.IsEmpty() {
		return fmt.Errorf("tile %s has no occupant to mark as corpse", p)
	}
	t.Occupant = OccupantCorpse
	return nil
}

// ClearOccupant removes whatever occupies p.
func (g *Grid) ClearOccupant(p Position) error {
	if !g.InBounds(p) {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, p)
	}
	g.tiles[p.Row][p.Col].clearOccupant()
	return nil
}

// TerrainCodes returns every distinct terrain code on the grid in first-seen order.
func (g *Grid) TerrainCodes() []byte {
	var out []byte
	seen := make(map[byte]bool)
	for r := range g.tiles {
		for _, t := range g.tiles[r] {
			if !seen[t.TerrainCode] {
				seen[t.TerrainCode] = true
				out = append(out, t.TerrainCode)
			}
		}
	}
	return out
}

// Encode packs the whole grid back into its boundary form.
//
// Postcondition: New(g.Encode()) reproduces the same tiles for the same rosters.
func (g *Grid) Encode() ([][]string, error) {
	out := make([][]string, g.rows)
	for r := range g.tiles {
		out[r] = make([]string, g.cols)
		for c, t := range g.tiles[r] {
			s, err := EncodeTile(t)
			if err != nil {
				return nil, fmt.Errorf("tile %s: %w", Position{r, c}, err)
			}
			out[r][c] = s
		}
	}
	return out, nil
}
