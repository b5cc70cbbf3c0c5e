package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers the battle.* Lua table into L:
//
//	battle.log.debug|info|warn|error(msg)
//	battle.distance(r1, c1, r2, c2) -> Manhattan distance
//	battle.unit(side, id) -> table or nil
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: battle global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	mod := L.NewTable()

	logTbl := L.NewTable()
	for name, fn := range map[string]func(string, ...zap.Field){
		"debug": m.logger.Debug,
		"info":  m.logger.Info,
		"warn":  m.logger.Warn,
		"error": m.logger.Error,
	} {
		write := fn
		L.SetField(logTbl, name, L.NewFunction(func(L *lua.LState) int {
			write(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	L.SetField(mod, "log", logTbl)

	L.SetField(mod, "distance", L.NewFunction(luaDistance))
	L.SetField(mod, "unit", L.NewFunction(m.luaUnit))

	L.SetGlobal("battle", mod)
}

func luaDistance(L *lua.LState) int {
	dr := L.CheckInt(1) - L.CheckInt(3)
	dc := L.CheckInt(2) - L.CheckInt(4)
	if dr < 0 {
		dr = -dr
	}
	if dc < 0 {
		dc = -dc
	}
	L.Push(lua.LNumber(dr + dc))
	return 1
}

func (m *Manager) luaUnit(L *lua.LState) int {
	side, id := L.CheckString(1), L.CheckString(2)
	if m.GetUnit == nil {
		L.Push(lua.LNil)
		return 1
	}
	u := m.GetUnit(side, id)
	if u == nil {
		L.Push(lua.LNil)
		return 1
	}
	t := L.NewTable()
	t.RawSetString("id", lua.LString(u.ID))
	t.RawSetString("name", lua.LString(u.Name))
	t.RawSetString("side", lua.LString(u.Side))
	t.RawSetString("health", lua.LNumber(u.Health))
	t.RawSetString("max_health", lua.LNumber(u.MaxHealth))
	t.RawSetString("attack", lua.LNumber(u.Attack))
	t.RawSetString("shield", lua.LNumber(u.Shield))
	t.RawSetString("agility", lua.LNumber(u.Agility))
	t.RawSetString("dead", lua.LBool(u.Dead))
	t.RawSetString("row", lua.LNumber(u.Row))
	t.RawSetString("col", lua.LNumber(u.Col))
	L.Push(t)
	return 1
}
