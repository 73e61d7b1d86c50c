package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/battlecore/internal/game/dice"
)

// CombatantInfo is a snapshot of a combatant's state passed to Lua callbacks.
type CombatantInfo struct {
	UID     string
	Name    string
	Element string
	Level   int
	HP      int
	MaxHP   int
	Attack  int
	Defense int
	Speed   int
	// Effects lists the kinds of the combatant's active powers.
	Effects []string
}

// Manager owns the sandboxed LState of the loaded strategy scripts and dispatches
// target hooks into it.
//
// Manager is safe for concurrent ChooseTarget after Load completes. Calls are serialized
// because an LState is single-threaded.
type Manager struct {
	mu        sync.Mutex
	L         *lua.LState
	instLimit int
	roller    *dice.Roller
	logger    *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: roller and logger must be non-nil; NewManager panics otherwise.
// Postcondition: Returns a non-nil Manager with no scripts loaded.
func NewManager(roller *dice.Roller, logger *zap.Logger) *Manager {
	if roller == nil {
		panic("scripting: NewManager requires a non-nil roller")
	}
	if logger == nil {
		panic("scripting: NewManager requires a non-nil logger")
	}
	return &Manager{roller: roller, logger: logger}
}

// Load creates a sandboxed VM, registers all engine.* modules, then executes every
// *.lua file in scriptDir in lexicographic order.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: The new VM replaces any previously loaded one; on error the previous
// VM stays in place.
func (m *Manager) Load(scriptDir string, instLimit int) error {
	L := NewSandboxedState(instLimit)
	m.RegisterModules(L)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q: %w", scriptDir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		resetBudget(L, instLimit)
		if err := L.DoFile(path); err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}

	m.mu.Lock()
	if m.L != nil {
		m.L.Close()
	}
	m.L = L
	m.instLimit = instLimit
	m.mu.Unlock()
	m.logger.Debug("scripting: loaded scripts",
		zap.String("dir", scriptDir),
		zap.Int("files", len(luaFiles)),
	)
	return nil
}

// ChooseTarget calls hook(self, candidates) and interprets its result as a 1-based
// index into candidates. Lua runtime errors are logged at Warn level and never propagated.
//
// Postcondition: Returns (index, true) with 0 <= index < len(candidates), or
// (0, false) when nothing is loaded or the hook is missing, fails, or returns anything else.
func (m *Manager) ChooseTarget(hook string, self CombatantInfo, candidates []CombatantInfo) (int, bool) {
	if len(candidates) == 0 {
		return 0, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.L == nil {
		m.logger.Info("scripting: no scripts loaded", zap.String("hook", hook))
		return 0, false
	}
	list := m.L.NewTable()
	for _, c := range candidates {
		list.Append(combatantToTable(m.L, c))
	}
	ret := m.callLocked(hook, combatantToTable(m.L, self), list)
	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, false
	}
	idx := int(n) - 1
	if float64(idx+1) != float64(n) || idx < 0 || idx >= len(candidates) {
		m.logger.Warn("scripting: target hook returned out-of-range index",
			zap.String("hook", hook),
			zap.Float64("index", float64(n)),
			zap.Int("candidates", len(candidates)),
		)
		return 0, false
	}
	return idx, true
}

// Close releases the VM.
//
// Postcondition: No scripts remain loaded.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.L != nil {
		m.L.Close()
		m.L = nil
	}
}

// callLocked invokes hook with args. m.mu must be held.
func (m *Manager) callLocked(hook string, args ...lua.LValue) lua.LValue {
	fn := m.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil
	}

	cancel := resetBudget(m.L, m.instLimit)
	defer cancel()
	if err := m.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil
	}

	ret := m.L.Get(-1)
	m.L.Pop(1)
	return ret
}
