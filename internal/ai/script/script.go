// Package script is the optional scripted-NPC-decision hook: when an NPC's
// archetype names a script, the Decision system consults a Lua
// decide(npc) -> behavior function instead of the built-in chase/wander
// FSM. Each script runs in its own VM; a call that errors, loads nothing,
// or returns an unrecognized value simply falls back to the built-in FSM.
package script

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"zonecore/server/internal/model"
)

// Engine loads and runs per-archetype NPC decision scripts. Each script
// gets its own Lua VM, keyed by its script name (model.NPCExtra.ScriptRef),
// so that two archetypes can each define a global "decide" function without
// colliding. Single-goroutine access only: a Zone's tick loop is the sole
// caller.
type Engine struct {
	scriptsDir string
	log        *zap.Logger
	vms        map[string]*lua.LState
}

// NewEngine constructs an Engine that lazily loads scripts named
// "<name>.lua" out of scriptsDir. No scripts are read until a script name
// is first requested, so a zone with no scripted archetypes never touches
// the filesystem.
func NewEngine(scriptsDir string, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		scriptsDir: scriptsDir,
		log:        log,
		vms:        make(map[string]*lua.LState),
	}
}

// Decide calls the named script's decide(npc) function and maps its return
// value to an NPCBehavior. It reports ok=false whenever the script cannot
// be loaded, defines no "decide" global, or returns anything other than
// one of "chase", "wander", "idle" — callers fall back to the built-in FSM
// in every such case.
func (e *Engine) Decide(scriptName string, npc *model.Mob, now int64) (behavior model.NPCBehavior, ok bool) {
	vm, err := e.vmFor(scriptName)
	if err != nil {
		e.log.Error("ai script load failed", zap.String("script", scriptName), zap.Error(err))
		return "", false
	}

	fn := vm.GetGlobal("decide")
	if fn == lua.LNil {
		return "", false
	}

	t := npcTable(vm, npc, now)

	if err := vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("ai script decide error", zap.String("script", scriptName), zap.String("npc", npc.ID), zap.Error(err))
		return "", false
	}

	result := vm.Get(-1)
	vm.Pop(1)

	s, isStr := result.(lua.LString)
	if !isStr {
		return "", false
	}

	switch model.NPCBehavior(s) {
	case model.BehaviorChase, model.BehaviorWander, model.BehaviorIdle:
		return model.NPCBehavior(s), true
	default:
		return "", false
	}
}

func npcTable(vm *lua.LState, npc *model.Mob, now int64) *lua.LTable {
	t := vm.NewTable()
	t.RawSetString("id", lua.LString(npc.ID))
	t.RawSetString("now", lua.LNumber(now))
	t.RawSetString("x", lua.LNumber(npc.Position.X))
	t.RawSetString("y", lua.LNumber(npc.Position.Y))
	t.RawSetString("z", lua.LNumber(npc.Position.Z))
	t.RawSetString("hp", lua.LNumber(npc.HP.Current))
	t.RawSetString("max_hp", lua.LNumber(npc.HP.Max))

	if npc.NPC == nil {
		t.RawSetString("in_combat", lua.LFalse)
		t.RawSetString("has_target", lua.LFalse)
		return t
	}

	aw := npc.NPC.Awareness
	if aw.InCombat {
		t.RawSetString("in_combat", lua.LTrue)
	} else {
		t.RawSetString("in_combat", lua.LFalse)
	}

	ts := npc.NPC.TargetSelected
	if ts.HasTarget {
		t.RawSetString("has_target", lua.LTrue)
		t.RawSetString("target_id", lua.LString(ts.TargetID))
		t.RawSetString("target_x", lua.LNumber(ts.Position.X))
		t.RawSetString("target_y", lua.LNumber(ts.Position.Y))
		t.RawSetString("target_z", lua.LNumber(ts.Position.Z))
	} else {
		t.RawSetString("has_target", lua.LFalse)
	}

	return t
}

// vmFor returns the cached VM for scriptName, loading "<scriptsDir>/<scriptName>.lua"
// into a fresh state on first use.
func (e *Engine) vmFor(scriptName string) (*lua.LState, error) {
	if vm, ok := e.vms[scriptName]; ok {
		return vm, nil
	}

	path := filepath.Join(e.scriptsDir, scriptName+".lua")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat script %s: %w", path, err)
	}

	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	if err := vm.DoFile(path); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load script %s: %w", path, err)
	}

	e.vms[scriptName] = vm
	return vm, nil
}

// Close shuts down every loaded script's Lua VM.
func (e *Engine) Close() {
	for _, vm := range e.vms {
		vm.Close()
	}
}
