// Package ai implements the NPC AI pipeline: five systems run in a fixed
// order over every NPC each tick (Sensing, TargetSelection, Decision,
// Steering), plus the AbilityIntent system that submits an NPC's queued
// ability intent to the ability engine. Every system is a free function
// over *model.Mob, matching the zone's ownership rule that engines
// reference mobs by id and hold no reverse references.
package ai

import (
	"math"
	"math/rand"

	"zonecore/server/internal/ability"
	"zonecore/server/internal/config"
	"zonecore/server/internal/model"
	"zonecore/server/internal/navmesh"
)

// ScriptDecider is the subset of script.Engine Decision needs. Declared
// here rather than imported directly so internal/ai never depends on
// gopher-lua when no archetype names a script; the script hook is optional.
type ScriptDecider interface {
	Decide(scriptName string, npc *model.Mob, now int64) (model.NPCBehavior, bool)
}

// LookupFunc resolves a mob id to its mob, or false if unknown.
type LookupFunc func(id string) (*model.Mob, bool)

// Sensing copies the NPC's in-combat flag and top-aggro source id into its
// awareness.
func Sensing(npc *model.Mob) {
	if npc.NPC == nil {
		return
	}
	topID, ok := topAggro(npc)
	npc.NPC.Awareness = model.NPCAwareness{
		InCombat:    npc.InCombat,
		TopAggroID:  topID,
		HasTopAggro: ok,
	}
}

func topAggro(npc *model.Mob) (string, bool) {
	var best float64
	var id string
	var ok bool
	for k, v := range npc.Aggro {
		if !ok || v > best {
			best, id, ok = v, k, true
		}
	}
	return id, ok
}

// TargetSelection snapshots the aware top-aggro target's position and yaw,
// or clears the selection if the NPC is not in combat, has no top-aggro
// entry, or the target is no longer live.
func TargetSelection(npc *model.Mob, lookup LookupFunc) {
	if npc.NPC == nil {
		return
	}
	aw := npc.NPC.Awareness
	if !aw.InCombat || !aw.HasTopAggro {
		npc.NPC.TargetSelected = model.NPCTargetSelection{}
		return
	}
	target, ok := lookup(aw.TopAggroID)
	if !ok || target.HP.Current <= 0 {
		npc.NPC.TargetSelected = model.NPCTargetSelection{}
		return
	}
	npc.NPC.TargetSelected = model.NPCTargetSelection{
		HasTarget: true,
		TargetID:  target.ID,
		Position:  target.Position,
		Yaw:       model.YawFromTo(npc.Position, target.Position, npc.FacingYaw),
	}
}

// Decision sets the NPC's behavior for this tick. When the NPC's archetype
// names a script and scripts is non-nil, the script's decide(npc) result
// is used in place of the built-in FSM; any other case (no script named,
// no decider wired, or the script declining to produce a decision) falls
// back to the built-in FSM: chase toward a present target (switching to
// idle once inside melee range), else wander/idle on a randomized cadence.
func Decision(npc *model.Mob, now int64, c config.Constants, rng *rand.Rand, scripts ScriptDecider) {
	if npc.NPC == nil {
		return
	}
	ext := npc.NPC
	ts := ext.TargetSelected

	if scripts != nil && ext.ScriptRef != "" {
		if b, ok := scripts.Decide(ext.ScriptRef, npc, now); ok {
			applyScriptedDecision(npc, ext, ts, now, c, rng, b)
			return
		}
	}

	if ts.HasTarget {
		ext.Behavior = model.BehaviorChase
		if npc.Position.DistanceSq(ts.Position) <= c.MeleeRange*c.MeleeRange {
			ext.Behavior = model.BehaviorIdle
			ext.MovingUntil = uint64(now)
		}
		return
	}

	if now >= ext.NextDecisionAt {
		ext.TargetYaw = rng.Float64() * 2 * math.Pi
		moveDur := c.NPCWanderMinMs + rng.Int63n(max1(c.NPCWanderMaxMs-c.NPCWanderMinMs))
		idleDur := c.NPCWanderMinMs + rng.Int63n(max1(c.NPCWanderMaxMs-c.NPCWanderMinMs))
		ext.MovingUntil = uint64(now + moveDur)
		ext.NextDecisionAt = uint64(now + moveDur + idleDur)
	}

	if now <= int64(ext.MovingUntil) {
		ext.Behavior = model.BehaviorWander
	} else {
		ext.Behavior = model.BehaviorIdle
	}
}

// applyScriptedDecision maps a script's chase/wander/idle decision onto the
// same behavior-state fields the built-in FSM maintains, so Steering (which
// reads ext.Behavior, ext.TargetYaw, ext.MovingUntil) never needs to know
// whether a decision came from a script or the FSM.
func applyScriptedDecision(npc *model.Mob, ext *model.NPCExtra, ts model.NPCTargetSelection, now int64, c config.Constants, rng *rand.Rand, b model.NPCBehavior) {
	switch b {
	case model.BehaviorChase:
		if !ts.HasTarget {
			ext.Behavior = model.BehaviorIdle
			ext.MovingUntil = uint64(now)
			return
		}
		ext.Behavior = model.BehaviorChase
		if npc.Position.DistanceSq(ts.Position) <= c.MeleeRange*c.MeleeRange {
			ext.Behavior = model.BehaviorIdle
			ext.MovingUntil = uint64(now)
		}
	case model.BehaviorWander:
		if now >= ext.NextDecisionAt {
			ext.TargetYaw = rng.Float64() * 2 * math.Pi
			moveDur := c.NPCWanderMinMs + rng.Int63n(max1(c.NPCWanderMaxMs-c.NPCWanderMinMs))
			ext.MovingUntil = uint64(now + moveDur)
			ext.NextDecisionAt = uint64(now + moveDur)
		}
		ext.Behavior = model.BehaviorWander
	default:
		ext.Behavior = model.BehaviorIdle
		ext.MovingUntil = uint64(now)
	}
}

func max1(v int64) int64 {
	if v < 1 {
		return 1
	}
	return v
}

// Steering produces the NPC's per-tick movement direction: chase follows
// the current smooth-path waypoint (recomputed when the path is empty or
// exhausted, or when the target has drifted past NPCPathMoveThreshold from
// the position the path was computed for and NPCPathRecomputeCooldownMs has
// elapsed; a change of target id is not checked, so it only triggers a
// recompute through that drift test), wander follows targetYaw, idle emits
// zero direction while preserving facing toward a present target.
func Steering(npc *model.Mob, now int64, mesh navmesh.Mesh, c config.Constants) {
	if npc.NPC == nil {
		return
	}
	ext := npc.NPC

	switch ext.Behavior {
	case model.BehaviorChase:
		steerChase(npc, ext, now, mesh, c)
	case model.BehaviorWander:
		dir := model.Vec2{X: math.Sin(ext.TargetYaw), Z: math.Cos(ext.TargetYaw)}
		ext.SteerDirection = dir
		npc.FacingYaw = ext.TargetYaw
	default: // idle
		ext.SteerDirection = model.Vec2{}
		if ext.TargetSelected.HasTarget {
			npc.FacingYaw = ext.TargetSelected.Yaw
		}
	}
}

func steerChase(npc *model.Mob, ext *model.NPCExtra, now int64, mesh navmesh.Mesh, c config.Constants) {
	target := ext.TargetSelected.Position

	needsRecompute := len(ext.PathWaypoints) == 0 || ext.PathIndex >= len(ext.PathWaypoints)
	if !needsRecompute && target.DistanceSq(ext.PathTargetPos) > c.NPCPathMoveThreshold*c.NPCPathMoveThreshold {
		if now-ext.PathRecomputeAt >= c.NPCPathRecomputeCooldownMs {
			needsRecompute = true
		}
	}
	if needsRecompute {
		ext.PathWaypoints = mesh.SmoothPath(npc.Position, target)
		ext.PathIndex = 0
		ext.PathTargetPos = target
		ext.PathRecomputeAt = now
	}

	if ext.PathIndex >= len(ext.PathWaypoints) {
		ext.SteerDirection = model.Vec2{}
		return
	}

	waypoint := ext.PathWaypoints[ext.PathIndex]
	toWaypoint := waypoint.Sub(npc.Position.Horizontal())
	if toWaypoint.LengthSq() <= c.NPCWaypointAdvanceDistance*c.NPCWaypointAdvanceDistance {
		ext.PathIndex++
		if ext.PathIndex >= len(ext.PathWaypoints) {
			ext.SteerDirection = model.Vec2{}
			return
		}
		waypoint = ext.PathWaypoints[ext.PathIndex]
		toWaypoint = waypoint.Sub(npc.Position.Horizontal())
	}

	dir := toWaypoint.Normalized()
	ext.SteerDirection = dir
	if dir.LengthSq() > 1e-9 {
		npc.FacingYaw = dir.Yaw()
	}
}

// SubmitAbilityIntent converts a queued AbilityIntent into a synthetic
// AbilityUseRequest and submits it to the ability engine, discarding the
// ack; the intent is cleared whether or not it was admitted. Runs as a
// system separate from the rest of the AI pipeline.
func SubmitAbilityIntent(npc *model.Mob, now int64, tick uint64, engine *ability.Engine, lookup ability.LookupFunc, candidates ability.CandidatesFunc, los ability.LoSFunc) {
	if npc.NPC == nil || npc.NPC.AbilityIntent == nil {
		return
	}
	req := *npc.NPC.AbilityIntent
	npc.NPC.AbilityIntent = nil
	engine.Submit(now, tick, req, lookup, candidates, los, func(model.AbilityAck) {})
}
