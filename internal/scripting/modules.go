package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers all engine.* Lua tables into L:
//
//	engine.log.debug|info|warn|error(msg)
//	engine.dice.roll(expr) -> {total, dice, modifier}
//	engine.random(n) -> integer in [1, n]
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()

	logTbl := L.NewTable()
	levels := map[string]func(string, ...zap.Field){
		"debug": m.logger.Debug,
		"info":  m.logger.Info,
		"warn":  m.logger.Warn,
		"error": m.logger.Error,
	}
	for name, fn := range levels {
		logFn := fn
		L.SetField(logTbl, name, L.NewFunction(func(L *lua.LState) int {
			logFn("lua: " + L.CheckString(1))
			return 0
		}))
	}
	L.SetField(engine, "log", logTbl)

	diceTbl := L.NewTable()
	L.SetField(diceTbl, "roll", L.NewFunction(func(L *lua.LState) int {
		res, err := m.roller.RollExpr(L.CheckString(1))
		if err != nil {
			L.RaiseError("engine.dice.roll: %s", err.Error())
			return 0
		}
		sum := 0
		for _, d := range res.Dice {
			sum += d
		}
		out := L.NewTable()
		L.SetField(out, "total", lua.LNumber(res.Total()))
		L.SetField(out, "dice", lua.LNumber(sum))
		L.SetField(out, "modifier", lua.LNumber(res.Modifier))
		L.Push(out)
		return 1
	}))
	L.SetField(engine, "dice", diceTbl)

	L.SetField(engine, "random", L.NewFunction(func(L *lua.LState) int {
		n := L.CheckInt(1)
		if n <= 0 {
			L.ArgError(1, "n must be > 0")
			return 0
		}
		L.Push(lua.LNumber(m.roller.Source().Intn(n) + 1))
		return 1
	}))

	L.SetGlobal("engine", engine)
}

// combatantToTable converts a CombatantInfo into a Lua table.
func combatantToTable(L *lua.LState, c CombatantInfo) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "uid", lua.LString(c.UID))
	L.SetField(t, "name", lua.LString(c.Name))
	L.SetField(t, "element", lua.LString(c.Element))
	L.SetField(t, "level", lua.LNumber(c.Level))
	L.SetField(t, "hp", lua.LNumber(c.HP))
	L.SetField(t, "max_hp", lua.LNumber(c.MaxHP))
	L.SetField(t, "attack", lua.LNumber(c.Attack))
	L.SetField(t, "defense", lua.LNumber(c.Defense))
	L.SetField(t, "speed", lua.LNumber(c.Speed))
	effects := L.NewTable()
	for _, e := range c.Effects {
		effects.Append(lua.LString(e))
	}
	L.SetField(t, "effects", effects)
	return t
}
