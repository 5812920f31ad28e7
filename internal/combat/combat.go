// Package combat implements the CombatEngine: aggro-table updates and
// in-combat flag transitions driven by AbilityResolved events, plus the
// per-tick "should remain in combat" sweep.
package combat

import (
	"context"

	"zonecore/server/internal/aggro"
	"zonecore/server/internal/config"
	"zonecore/server/internal/eventlog"
	"zonecore/server/internal/model"
	"zonecore/server/logging"
	combatlog "zonecore/server/logging/combat"
)

// LookupFunc resolves a mob id to its mob, or false if unknown.
type LookupFunc func(id string) (*model.Mob, bool)

// NPCsFunc returns every live NPC mob, for aggro-reference propagation and
// the exit-combat sweep.
type NPCsFunc func() []*model.Mob

// Engine reacts to ability.Resolved events and drives the exit-combat sweep.
// It holds no mob references between calls; every method takes the
// collaborators it needs.
type Engine struct {
	Constants config.Constants
	Log       *eventlog.Log
	Pub       logging.Publisher
}

// HandleResolved reacts to one completed cast: awards aggro for each
// use-check-successful effect outcome, then marks the actor and its
// hostile targets in-combat.
func (e *Engine) HandleResolved(tick uint64, now int64, actorID string, def model.AbilityDef, result model.CastResult, lookup LookupFunc, npcs NPCsFunc) {
	if !result.UseCheckOK {
		return
	}
	actor, ok := lookup(actorID)
	if !ok {
		return
	}

	entered := map[string]bool{}

	for _, outcome := range result.PerTarget {
		if outcome.EffectIndex >= len(def.Effects) {
			continue
		}
		effect := def.Effects[outcome.EffectIndex]
		target, ok := lookup(outcome.TargetID)
		if !ok {
			continue
		}

		switch outcome.Outcome {
		case model.OutcomeDamage:
			e.onDamage(actor, target, outcome.Amount, entered)
		case model.OutcomeHeal:
			e.onHeal(actor, target, outcome.Amount, npcs, entered)
		case model.OutcomeStatus:
			e.onStatus(actor, target, effect, npcs, entered)
		}
	}

	for id := range entered {
		if m, ok := lookup(id); ok {
			e.markInCombat(tick, now, m)
		}
	}
}

// onDamage: damage on an enemy NPC adds damage*DAMAGE_AGGRO_MULTIPLIER to
// that NPC's aggro table against the actor.
func (e *Engine) onDamage(actor, target *model.Mob, amount float64, entered map[string]bool) {
	if target.Kind != model.KindNPC || target.FactionID == actor.FactionID {
		return
	}
	aggro.Add(target, actor.ID, amount*e.Constants.DamageAggroMultiplier)
	entered[actor.ID] = true
	entered[target.ID] = true
}

// onHeal: healing on an ally adds healing*HEALING_AGGRO_MULTIPLIER to every
// NPC currently in combat whose aggro table references the healed ally.
func (e *Engine) onHeal(actor, target *model.Mob, amount float64, npcs NPCsFunc, entered map[string]bool) {
	if target.FactionID != actor.FactionID {
		return
	}
	e.propagateToReferencingNPCs(target.ID, amount*e.Constants.HealingAggroMultiplier, actor.ID, npcs, entered)
}

// onStatus: a debuff applied directly to an enemy NPC adds
// STATUS_AGGRO_AMOUNT to that NPC's aggro table; a buff applied to an ally
// propagates the same way healing does.
func (e *Engine) onStatus(actor, target *model.Mob, effect model.AbilityEffectDef, npcs NPCsFunc, entered map[string]bool) {
	if effect.Kind != model.EffectStatus {
		return
	}
	amount := e.Constants.StatusAggroAmount

	if effect.Status.Category == model.StatusDebuff && target.Kind == model.KindNPC && target.FactionID != actor.FactionID {
		aggro.Add(target, actor.ID, amount)
		entered[actor.ID] = true
		entered[target.ID] = true
		return
	}

	if effect.Status.Category == model.StatusBuff && target.FactionID == actor.FactionID {
		e.propagateToReferencingNPCs(target.ID, amount, actor.ID, npcs, entered)
	}
}

// propagateToReferencingNPCs awards aggro against sourceID on every NPC
// that is in combat and already holds an aggro entry referencing
// referencedID (the healed/buffed ally).
func (e *Engine) propagateToReferencingNPCs(referencedID string, amount float64, sourceID string, npcs NPCsFunc, entered map[string]bool) {
	if npcs == nil || amount <= 0 {
		return
	}
	for _, npc := range npcs() {
		if !npc.InCombat {
			continue
		}
		if _, ok := npc.Aggro[referencedID]; !ok {
			continue
		}
		aggro.Add(npc, sourceID, amount)
		entered[sourceID] = true
		entered[npc.ID] = true
	}
}

// markInCombat sets inCombat=true and refreshes lastHostileActionTimeMs,
// appending a MobEnterCombat event the first time the mob transitions.
func (e *Engine) markInCombat(tick uint64, now int64, m *model.Mob) {
	m.Ability.LastHostileActionTimeMs = now
	if m.InCombat {
		return
	}
	m.InCombat = true

	payload := combatlog.CombatFlagPayload{Reason: "hostile_action"}
	loc := eventlog.SourceLocation{CauseType: "combat", CauseID: m.ID, Position: m.Position}
	e.Log.AppendLocated(tick, combatlog.EventEnterCombat, payload, loc)
	combatlog.EnterCombat(context.Background(), e.Pub, tick, m.EntityRef(), payload)
}

// shouldRemainInCombat implements the exit-combat retention test: an NPC
// remains in combat while it has any aggro entry; a player remains in
// combat while it appears in some NPC's aggro table.
func shouldRemainInCombat(m *model.Mob, npcs []*model.Mob) bool {
	if m.Kind == model.KindNPC {
		return len(m.Aggro) > 0
	}
	for _, npc := range npcs {
		if _, ok := npc.Aggro[m.ID]; ok {
			return true
		}
	}
	return false
}

// FixedTick prunes every NPC's aggro table against live combatant ids, then
// sweeps all in-combat mobs: any that no longer satisfies
// shouldRemainInCombat transitions to inCombat=false, emits MobExitCombat
// with reason "timeout", and (for NPCs) clears its aggro table.
func (e *Engine) FixedTick(tick uint64, liveIDs map[string]bool, all []*model.Mob) {
	var npcs []*model.Mob
	for _, m := range all {
		if m.Kind == model.KindNPC {
			npcs = append(npcs, m)
		}
	}

	for _, npc := range npcs {
		aggro.Prune(npc, liveIDs)
	}

	for _, m := range all {
		if !m.InCombat {
			continue
		}
		if shouldRemainInCombat(m, npcs) {
			continue
		}
		m.InCombat = false
		if m.Kind == model.KindNPC {
			aggro.Clear(m)
		}

		payload := combatlog.CombatFlagPayload{Reason: "timeout"}
		loc := eventlog.SourceLocation{CauseType: "combat", CauseID: m.ID, Position: m.Position}
		e.Log.AppendLocated(tick, combatlog.EventExitCombat, payload, loc)
		combatlog.ExitCombat(context.Background(), e.Pub, tick, m.EntityRef(), payload)
	}
}
