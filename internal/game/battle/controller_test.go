package battle_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/battlegrid/internal/game/battle"
	"github.com/cory-johannsen/battlegrid/internal/game/character"
	"github.com/cory-johannsen/battlegrid/internal/game/grid"
	"github.com/cory-johannsen/battlegrid/internal/game/terrain"
)

var testTable = terrain.Table{'g': 0, 'f': -1, 'm': -5, 'r': 1}

func pos(r, c int) grid.Position { return grid.Position{Row: r, Col: c} }

type unit struct {
	id      string
	hp      int
	attack  int
	shield  int
	agility int
}

func makeUnit(t testing.TB, u unit) *character.Character {
	t.Helper()
	agi := u.agility
	if agi == 0 {
		agi = 2
	}
	c, err := character.New(u.id, "Unit "+u.id, character.Stats{
		Health: u.hp, MaxHealth: u.hp, Attack: u.attack, Shield: u.shield, Agility: agi,
	})
	require.NoError(t, err)
	return c
}

// openLayout is a 5x5 grass field with the player "01" at (2,2) and the
// enemy "11" at (2,3) and enemy "12" at (4,4).
var openLayout = []string{
	"g01*___#__ g01*___#__ g01*___#__ g01*___#__ g01*___#__",
	"g01*___#__ g01*___#__ g01*___#__ g01*___#__ g01*___#__",
	"g01*___#__ g01*___#__ g01*P01#01 g01*E02#11 g01*___#__",
	"g01*___#__ g01*___#__ g01*___#__ g01*___#__ g01*___#__",
	"g01*___#__ g01*___#__ g01*___#__ g01*___#__ g01*E02#12",
}

func buildGrid(t testing.TB, layout []string, players, opponents []*character.Character) *grid.Grid {
	t.Helper()
	rows := make([][]string, len(layout))
	for i, l := range layout {
		rows[i] = strings.Fields(l)
	}
	g, err := grid.New(rows, players, opponents)
	require.NoError(t, err)
	return g
}

type fixture struct {
	ctrl  *battle.Controller
	grid  *grid.Grid
	hero  *character.Character
	enemy *character.Character
	other *character.Character
}

func newFixture(t testing.TB) fixture {
	t.Helper()
	hero := makeUnit(t, unit{id: "01", hp: 20, attack: 5, agility: 2})
	enemy := makeUnit(t, unit{id: "11", hp: 10, attack: 3, shield: 1})
	other := makeUnit(t, unit{id: "12", hp: 10, attack: 3})
	g := buildGrid(t, openLayout, []*character.Character{hero}, []*character.Character{enemy, other})
	ctrl, err := battle.NewController(g, testTable, zap.NewNop())
	require.NoError(t, err)
	ctrl.StartRound()
	return fixture{ctrl: ctrl, grid: g, hero: hero, enemy: enemy, other: other}
}

func encode(t testing.TB, g *grid.Grid) [][]string {
	t.Helper()
	rows, err := g.Encode()
	require.NoError(t, err)
	return rows
}

func TestNewController_RejectsUncoveredTerrain(t *testing.T) {
	hero := makeUnit(t, unit{id: "01", hp: 5})
	foe := makeUnit(t, unit{id: "11", hp: 5})
	g := buildGrid(t, []string{"x01*P01#01 g01*E01#11"}, []*character.Character{hero}, []*character.Character{foe})
	_, err := battle.NewController(g, testTable, zap.NewNop())
	assert.ErrorIs(t, err, terrain.ErrUnmapped)
}

func TestNewController_StartsIdleOnPlayerTurn(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, battle.Idle, f.ctrl.State())
	assert.Equal(t, grid.SidePlayer, f.ctrl.Turn())
	assert.Equal(t, 1, f.ctrl.Round())
	assert.Nil(t, f.ctrl.AvailableMoves())
	assert.False(t, f.ctrl.BattleOver())
}

func TestEndToEnd_ReachableSetOnOpenGrid(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.SelectTile(pos(2, 2)))
	assert.Equal(t, battle.Selecting, f.ctrl.State())

	want := []grid.Position{
		pos(0, 2),
		pos(1, 1), pos(1, 2), pos(1, 3),
		pos(2, 0), pos(2, 1), pos(2, 3), pos(2, 4),
		pos(3, 1), pos(3, 2), pos(3, 3),
		pos(4, 2),
	}
	assert.Equal(t, want, f.ctrl.AvailableMoves())

	sel, at, ok := f.ctrl.Selected()
	require.True(t, ok)
	assert.Same(t, f.hero, sel)
	assert.Equal(t, pos(2, 2), at)
}

func TestEndToEnd_OutOfRangeCancelsAndLeavesGrid(t *testing.T) {
	f := newFixture(t)
	before := encode(t, f.grid)
	require.NoError(t, f.ctrl.SelectTile(pos(2, 2)))

	_, err := f.ctrl.ResolveMove(pos(0, 0))
	assert.ErrorIs(t, err, battle.ErrOutOfRange)
	assert.Equal(t, battle.Idle, f.ctrl.State())
	assert.Nil(t, f.ctrl.AvailableMoves())
	assert.Equal(t, before, encode(t, f.grid))
	assert.True(t, f.hero.HasTurn, "a cancelled move does not spend the turn")
}

func TestEndToEnd_AttackLivingEnemy(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.SelectTile(pos(2, 2)))

	ev, err := f.ctrl.ResolveMove(pos(2, 3))
	require.NoError(t, err)

	// attack 5 against shield 1: shield soaks 1, health loses 4.
	assert.Equal(t, 0, f.enemy.Shield)
	assert.Equal(t, 6, f.enemy.CurrentHealth)
	assert.Equal(t, battle.OutcomeAttacked, ev.Outcome)
	assert.Equal(t, "11", ev.TargetID)
	assert.Equal(t, 1, ev.ShieldAbsorbed)
	assert.Equal(t, 4, ev.HealthLost)
	assert.Equal(t, 6, ev.TargetHealth)

	p, ok := f.grid.Locate(grid.SidePlayer, "01")
	require.True(t, ok)
	assert.Equal(t, pos(2, 2), p, "attacker stays on its tile")
	assert.False(t, f.hero.HasTurn)
	assert.Equal(t, battle.Idle, f.ctrl.State())
}

func TestResolveMove_EmptyTileMoves(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.SelectTile(pos(2, 2)))

	ev, err := f.ctrl.ResolveMove(pos(0, 2))
	require.NoError(t, err)
	assert.Equal(t, battle.OutcomeMoved, ev.Outcome)
	assert.Equal(t, pos(2, 2), ev.From)
	assert.Equal(t, pos(0, 2), ev.To)

	tile, err := f.grid.TileAt(pos(0, 2))
	require.NoError(t, err)
	assert.Equal(t, grid.OccupantPlayer, tile.Occupant)
	assert.Equal(t, "01", tile.OccupantID)
	old, _ := f.grid.TileAt(pos(2, 2))
	assert.True(t, old.IsEmpty())
	assert.False(t, f.hero.HasTurn)
	assert.Equal(t, battle.Idle, f.ctrl.State())
}

func TestSelectTile_RejectsAfterActing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.SelectTile(pos(2, 2)))
	_, err := f.ctrl.ResolveMove(pos(1, 2))
	require.NoError(t, err)

	err = f.ctrl.SelectTile(pos(1, 2))
	assert.ErrorIs(t, err, battle.ErrInvalidSelection)
	assert.Equal(t, battle.Idle, f.ctrl.State())
	assert.True(t, f.ctrl.TurnDone(grid.SidePlayer))
}

func TestSelectTile_Rejections(t *testing.T) {
	for name, p := range map[string]grid.Position{
		"empty":         pos(0, 0),
		"enemy":         pos(2, 3),
		"out of bounds": pos(9, 9),
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			err := f.ctrl.SelectTile(p)
			assert.ErrorIs(t, err, battle.ErrInvalidSelection)
			assert.Equal(t, battle.Idle, f.ctrl.State())
			assert.Nil(t, f.ctrl.AvailableMoves())
		})
	}
}

func TestSelectTile_FailureKeepsExistingSelection(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.SelectTile(pos(2, 2)))
	before := f.ctrl.AvailableMoves()

	assert.ErrorIs(t, f.ctrl.SelectTile(pos(0, 0)), battle.ErrInvalidSelection)
	assert.Equal(t, battle.Selecting, f.ctrl.State())
	assert.Equal(t, before, f.ctrl.AvailableMoves())
}

func TestSelectTile_RejectionIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	hero := makeUnit(t, unit{id: "01", hp: 5})
	foe := makeUnit(t, unit{id: "11", hp: 5})
	g := buildGrid(t, []string{"g01*P01#01 g01*___#__ g01*E01#11"}, []*character.Character{hero}, []*character.Character{foe})
	ctrl, err := battle.NewController(g, testTable, zap.New(core))
	require.NoError(t, err)

	_ = ctrl.SelectTile(pos(0, 1))
	require.Equal(t, 1, logs.FilterMessage("selection rejected").Len())
}

func TestResolveMove_WithoutSelection(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.ResolveMove(pos(1, 2))
	assert.ErrorIs(t, err, battle.ErrNoSelection)
}

func TestResolveMove_OutOfBoundsIsInvalidDestination(t *testing.T) {
	hero := makeUnit(t, unit{id: "01", hp: 5})
	foe := makeUnit(t, unit{id: "11", hp: 5})
	g := buildGrid(t, []string{"g01*P01#01 g01*___#__ g01*E01#11"}, []*character.Character{hero}, []*character.Character{foe})
	ctrl, err := battle.NewController(g, testTable, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, ctrl.SelectTile(pos(0, 0)))
	assert.Contains(t, ctrl.AvailableMoves(), pos(-1, 0))

	_, err = ctrl.ResolveMove(pos(-1, 0))
	assert.ErrorIs(t, err, battle.ErrInvalidDestination)
	assert.ErrorIs(t, err, grid.ErrOutOfBounds)
	assert.Equal(t, battle.Idle, ctrl.State())
	assert.True(t, hero.HasTurn)
}

func TestResolveMove_FriendlyOccupantIsInvalid(t *testing.T) {
	a := makeUnit(t, unit{id: "01", hp: 5})
	b := makeUnit(t, unit{id: "02", hp: 5})
	foe := makeUnit(t, unit{id: "11", hp: 5})
	g := buildGrid(t, []string{"g01*P01#01 g01*P01#02 g01*E01#11"}, []*character.Character{a, b}, []*character.Character{foe})
	ctrl, err := battle.NewController(g, testTable, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, ctrl.SelectTile(pos(0, 0)))
	_, err = ctrl.ResolveMove(pos(0, 1))
	assert.ErrorIs(t, err, battle.ErrInvalidDestination)
	assert.Equal(t, battle.Idle, ctrl.State())
	assert.Equal(t, 5, b.CurrentHealth)
	assert.True(t, a.HasTurn)
}

func TestResolveMove_KillLeavesCorpseThatStaysAttackable(t *testing.T) {
	f := newFixture(t)
	f.hero.IncreaseAttack(10) // 15 attack against 1 shield + 10 health

	require.NoError(t, f.ctrl.SelectTile(pos(2, 2)))
	ev, err := f.ctrl.ResolveMove(pos(2, 3))
	require.NoError(t, err)
	assert.Equal(t, battle.OutcomeKilled, ev.Outcome)
	assert.True(t, f.enemy.IsDead())

	tile, _ := f.grid.TileAt(pos(2, 3))
	assert.Equal(t, grid.OccupantCorpse, tile.Occupant)
	assert.Equal(t, "11", tile.OccupantID)

	f.ctrl.StartRound()
	require.NoError(t, f.ctrl.SelectTile(pos(2, 2)))
	ev, err = f.ctrl.ResolveMove(pos(2, 3))
	require.NoError(t, err)
	assert.Equal(t, battle.OutcomeAttacked, ev.Outcome)
	assert.Equal(t, "11", ev.TargetID)
	assert.Equal(t, -19, f.enemy.CurrentHealth)
	tile, _ = f.grid.TileAt(pos(2, 3))
	assert.Equal(t, grid.OccupantCorpse, tile.Occupant)
}

func TestResolveMove_NoCorpseClearsTile(t *testing.T) {
	f := newFixture(t)
	f.enemy.NoCorpse = true
	f.hero.IncreaseAttack(20)

	require.NoError(t, f.ctrl.SelectTile(pos(2, 2)))
	_, err := f.ctrl.ResolveMove(pos(2, 3))
	require.NoError(t, err)

	tile, _ := f.grid.TileAt(pos(2, 3))
	assert.True(t, tile.IsEmpty())
	assert.Equal(t, byte('g'), tile.TerrainCode)
}

func TestTerrainModifiesRange(t *testing.T) {
	tests := []struct {
		terrain byte
		want    int
	}{
		{'g', 12}, // budget 2
		{'f', 4},  // budget 1
		{'m', 4},  // budget floored to 1
		{'r', 24}, // budget 3
	}
	for _, tc := range tests {
		hero := makeUnit(t, unit{id: "01", hp: 5, agility: 2})
		foe := makeUnit(t, unit{id: "11", hp: 5})
		layout := []string{string(tc.terrain) + "01*P01#01 g01*E01#11"}
		g := buildGrid(t, layout, []*character.Character{hero}, []*character.Character{foe})
		ctrl, err := battle.NewController(g, testTable, zap.NewNop())
		require.NoError(t, err)

		reach, err := ctrl.ReachableTiles(pos(0, 0))
		require.NoError(t, err)
		assert.Len(t, reach, tc.want, "terrain %q", tc.terrain)
		assert.Equal(t, battle.Idle, ctrl.State(), "ReachableTiles does not select")
	}
}

func TestOpponentTurnMirrorsSides(t *testing.T) {
	f := newFixture(t)
	f.ctrl.SetTurnOpponent()

	assert.ErrorIs(t, f.ctrl.SelectTile(pos(2, 2)), battle.ErrInvalidSelection)
	require.NoError(t, f.ctrl.SelectTile(pos(2, 3)))
	ev, err := f.ctrl.ResolveMove(pos(2, 2))
	require.NoError(t, err)
	assert.Equal(t, grid.SideOpponent, ev.Side)
	assert.Equal(t, "01", ev.TargetID)
	assert.Equal(t, 17, f.hero.CurrentHealth)
	assert.False(t, f.enemy.HasTurn)
}

func TestSetTurnDropsSelection(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.SelectTile(pos(2, 2)))
	f.ctrl.SetTurnOpponent()
	assert.Equal(t, battle.Idle, f.ctrl.State())
	f.ctrl.SetTurnPlayer()
	assert.Equal(t, grid.SidePlayer, f.ctrl.Turn())
}

func TestCancelSelection(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.SelectTile(pos(2, 2)))
	f.ctrl.CancelSelection()
	assert.Equal(t, battle.Idle, f.ctrl.State())
	assert.True(t, f.hero.HasTurn)
}

func TestStartRoundRestoresTurns(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.SelectTile(pos(2, 2)))
	_, err := f.ctrl.ResolveMove(pos(1, 2))
	require.NoError(t, err)
	f.enemy.TakeDamage(100)

	round := f.ctrl.StartRound()
	assert.Equal(t, 2, round)
	assert.True(t, f.hero.HasTurn)
	assert.False(t, f.enemy.HasTurn, "dead units stay ineligible")
	assert.True(t, f.other.HasTurn)
}

func TestBattleEndsWhenSideWipedOut(t *testing.T) {
	hero := makeUnit(t, unit{id: "01", hp: 5, attack: 50})
	foe := makeUnit(t, unit{id: "11", hp: 5})
	g := buildGrid(t, []string{"g01*P01#01 g01*E01#11"}, []*character.Character{hero}, []*character.Character{foe})
	ctrl, err := battle.NewController(g, testTable, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, ctrl.SelectTile(pos(0, 0)))
	ev, err := ctrl.ResolveMove(pos(0, 1))
	require.NoError(t, err)
	assert.Equal(t, battle.OutcomeKilled, ev.Outcome)
	assert.True(t, ctrl.BattleOver())
	assert.Equal(t, grid.SidePlayer, ctrl.Winner())

	ctrl.StartRound()
	assert.ErrorIs(t, ctrl.SelectTile(pos(0, 0)), battle.ErrBattleOver)
	_, err = ctrl.ResolveMove(pos(0, 1))
	assert.ErrorIs(t, err, battle.ErrBattleOver)
}

func TestResolveMove_FallenAllyCorpseIgnoresLivingNamesake(t *testing.T) {
	ally := makeUnit(t, unit{id: "02", hp: 20, attack: 50})
	fallen := makeUnit(t, unit{id: "01", hp: 10})
	fallen.TakeDamage(100)
	foe := makeUnit(t, unit{id: "01", hp: 10})
	layout := []string{
		"g01*___#__ g01*___#__ g01*___#__ g01*___#__ g01*___#__",
		"g01*___#__ g01*___#__ g01*___#__ g01*___#__ g01*___#__",
		"g01*___#__ g01*___#__ g01*P02#02 g01*C01#01 g01*___#__",
		"g01*___#__ g01*___#__ g01*___#__ g01*___#__ g01*___#__",
		"g01*___#__ g01*___#__ g01*___#__ g01*___#__ g01*E01#01",
	}
	g := buildGrid(t, layout, []*character.Character{ally, fallen}, []*character.Character{foe})
	ctrl, err := battle.NewController(g, testTable, zap.NewNop())
	require.NoError(t, err)
	ctrl.StartRound()
	before := encode(t, g)

	require.NoError(t, ctrl.SelectTile(pos(2, 2)))
	_, err = ctrl.ResolveMove(pos(2, 3))
	assert.ErrorIs(t, err, battle.ErrInvalidDestination)
	assert.Equal(t, battle.Idle, ctrl.State())
	assert.Equal(t, 10, foe.CurrentHealth)
	assert.False(t, foe.IsDead())
	assert.Equal(t, before, encode(t, g))
}

func TestBattleEndsWhenLastHostileFallsOutsideMelee(t *testing.T) {
	f := newFixture(t)
	f.enemy.TakeDamage(100)
	require.NoError(t, f.grid.MarkCorpse(pos(2, 3)))
	f.other.TakeDamage(100)
	require.NoError(t, f.grid.MarkCorpse(pos(4, 4)))
	require.False(t, f.ctrl.BattleOver())

	require.NoError(t, f.ctrl.SelectTile(pos(2, 2)))
	ev, err := f.ctrl.ResolveMove(pos(2, 3))
	require.NoError(t, err)
	assert.Equal(t, battle.OutcomeAttacked, ev.Outcome)
	assert.True(t, f.ctrl.BattleOver())
	assert.Equal(t, grid.SidePlayer, f.ctrl.Winner())
}

func TestSelectTile_ConsistencyErrorKeepsSelection(t *testing.T) {
	f := newFixture(t)
	f.ctrl.SetTurnOpponent()
	require.NoError(t, f.ctrl.SelectTile(pos(2, 3)))
	f.other.Dead = true

	err := f.ctrl.SelectTile(pos(4, 4))
	var ce *grid.ConsistencyError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, pos(4, 4), ce.Pos)
	assert.NotErrorIs(t, err, battle.ErrInvalidSelection)

	assert.Equal(t, battle.Selecting, f.ctrl.State())
	ch, at, ok := f.ctrl.Selected()
	require.True(t, ok)
	assert.Same(t, f.enemy, ch)
	assert.Equal(t, pos(2, 3), at)
}

func TestResolveMove_ConsistencyErrorKeepsSelection(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.SelectTile(pos(2, 2)))
	reach := f.ctrl.AvailableMoves()
	f.enemy.Dead = true

	_, err := f.ctrl.ResolveMove(pos(2, 3))
	var ce *grid.ConsistencyError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.ErrorIs(t, err, grid.ErrInconsistentState)

	assert.Equal(t, battle.Selecting, f.ctrl.State())
	ch, at, ok := f.ctrl.Selected()
	require.True(t, ok)
	assert.Same(t, f.hero, ch)
	assert.Equal(t, pos(2, 2), at)
	assert.Equal(t, reach, f.ctrl.AvailableMoves())
	assert.True(t, f.hero.HasTurn)
	assert.Equal(t, 10, f.enemy.CurrentHealth)
	assert.Empty(t, f.ctrl.Events())
}

func TestEventsAndDrain(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.SelectTile(pos(2, 2)))
	_, err := f.ctrl.ResolveMove(pos(3, 2))
	require.NoError(t, err)
	_, _ = f.ctrl.ResolveMove(pos(3, 3)) // no selection, not recorded

	assert.Len(t, f.ctrl.Events(), 1)
	drained := f.ctrl.DrainEvents()
	require.Len(t, drained, 1)
	assert.Equal(t, 1, drained[0].Round)
	assert.Equal(t, "01", drained[0].ActorID)
	assert.Empty(t, f.ctrl.Events())
}

func TestSelectTile_Property_InvalidNeverSelects(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t)
		p := pos(rapid.IntRange(-2, 6).Draw(rt, "row"), rapid.IntRange(-2, 6).Draw(rt, "col"))
		if p == pos(2, 2) {
			f.hero.HasTurn = false
		}
		err := f.ctrl.SelectTile(p)
		assert.ErrorIs(rt, err, battle.ErrInvalidSelection)
		assert.Equal(rt, battle.Idle, f.ctrl.State())
		assert.Nil(rt, f.ctrl.AvailableMoves())
	})
}

func TestResolveMove_Property_OutsideReachableAlwaysIdle(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t)
		require.NoError(rt, f.ctrl.SelectTile(pos(2, 2)))
		reach := make(map[grid.Position]bool)
		for _, p := range f.ctrl.AvailableMoves() {
			reach[p] = true
		}
		dest := pos(rapid.IntRange(-3, 7).Draw(rt, "row"), rapid.IntRange(-3, 7).Draw(rt, "col"))
		if reach[dest] {
			rt.Skip("destination reachable")
		}
		before := encode(t, f.grid)

		_, err := f.ctrl.ResolveMove(dest)
		assert.ErrorIs(rt, err, battle.ErrOutOfRange)
		assert.Equal(rt, battle.Idle, f.ctrl.State())
		assert.Nil(rt, f.ctrl.AvailableMoves())
		assert.Equal(rt, before, encode(t, f.grid))
	})
}

func TestParseOutcome(t *testing.T) {
	for _, o := range []battle.Outcome{battle.OutcomeMoved, battle.OutcomeAttacked, battle.OutcomeKilled} {
		got, err := battle.ParseOutcome(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}
	_, err := battle.ParseOutcome("fled")
	assert.Error(t, err)
}
