package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// globalScope is the reserved key for shared scripts loaded via LoadGlobal.
// CallHook falls back to this VM when no scope VM is found.
const globalScope = "__global__"

// UnitInfo is a snapshot of a battle unit passed to Lua callbacks.
type UnitInfo struct {
	ID        string
	Name      string
	Side      string
	Health    int
	MaxHealth int
	Attack    int
	Shield    int
	Agility   int
	Dead      bool
	Row, Col  int
}

// scopeVM is one loaded LState. An LState is single-threaded, so every
// access goes through mu.
type scopeVM struct {
	mu     sync.Mutex
	L      *lua.LState
	limit  int
	cancel context.CancelFunc
}

// Manager owns one sandboxed LState per scope (typically a battle side) and
// exposes hook dispatch.
//
// Manager is safe for concurrent CallHook after all Load calls complete.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*scopeVM
	logger *zap.Logger

	// Injected after construction. nil makes battle.unit return nil.
	GetUnit func(side, id string) *UnitInfo
}

// NewManager creates a Manager.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no scopes loaded.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		vms:    make(map[string]*scopeVM),
		logger: logger,
	}
}

// LoadScope creates a sandboxed VM for scope, registers the battle.* module,
// then executes every *.lua file in scriptDir in lexicographic order.
//
// Precondition: scope must be non-empty; scriptDir must be a readable directory.
// Postcondition: Scope VM is registered; returns error on Lua load failure.
func (m *Manager) LoadScope(scope, scriptDir string, instLimit int) error {
	if scope == "" {
		return fmt.Errorf("scripting: scope must not be empty")
	}
	return m.loadInto(scope, scriptDir, instLimit)
}

// LoadGlobal creates the shared VM used as a CallHook fallback from any scope.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Global VM is registered; returns error on Lua load failure.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(globalScope, scriptDir, instLimit)
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int) error {
	L, cancel := NewSandboxedState(instLimit)
	m.RegisterModules(L)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	if old, ok := m.vms[key]; ok {
		old.close()
	}
	m.vms[key] = &scopeVM{L: L, limit: instLimit, cancel: cancel}
	m.mu.Unlock()

	m.logger.Debug("scripting: scope loaded",
		zap.String("scope", key),
		zap.Int("files", len(luaFiles)),
	)
	return nil
}

// HasHook reports whether hook is a function in scope's VM or the global VM.
func (m *Manager) HasHook(scope, hook string) bool {
	vm := m.lookup(scope)
	if vm == nil {
		return false
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.L.GetGlobal(hook).Type() == lua.LTFunction
}

func (m *Manager) lookup(scope string) *scopeVM {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if vm, ok := m.vms[scope]; ok {
		return vm
	}
	return m.vms[globalScope]
}

// CallHook calls the named Lua global function in scope's VM. If the scope has
// no VM, the global VM is tried as a fallback. Returns (LNil, nil) if the
// hook is not defined or no VM exists. Each call gets a fresh instruction
// budget. Lua runtime errors are logged at Warn level and never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(scope, hook string, args ...lua.LValue) (lua.LValue, error) {
	vm := m.lookup(scope)
	if vm == nil {
		m.logger.Info("scripting: no VM for scope",
			zap.String("scope", scope),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()

	fn := vm.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	vm.cancel()
	vm.cancel = Budget(vm.L, vm.limit)

	if err := vm.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("scope", scope),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := vm.L.Get(-1)
	vm.L.Pop(1)
	return ret, nil
}

// Close releases every VM. CallHook afterwards behaves as if nothing was loaded.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, vm := range m.vms {
		vm.close()
		delete(m.vms, key)
	}
}

func (vm *scopeVM) close() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.cancel != nil {
		vm.cancel()
	}
	vm.L.Close()
}
