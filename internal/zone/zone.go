// Package zone implements the Zone tick orchestrator: a single-writer
// fixed-timestep loop driving the ability engine, combat engine, NPC
// lifecycle, AI pipeline, ability-intent system, movement controller, and
// line-of-sight tracker in a fixed order each tick.
package zone

import (
	"context"
	"math/rand"

	"zonecore/server/internal/ability"
	"zonecore/server/internal/ai"
	"zonecore/server/internal/collision"
	"zonecore/server/internal/combat"
	"zonecore/server/internal/config"
	"zonecore/server/internal/eventlog"
	"zonecore/server/internal/los"
	"zonecore/server/internal/model"
	"zonecore/server/internal/movement"
	"zonecore/server/internal/navmesh"
	"zonecore/server/internal/stats"
	"zonecore/server/internal/status"
	"zonecore/server/internal/targeting"
	"zonecore/server/logging"
	lifecyclelog "zonecore/server/logging/lifecycle"
	simlog "zonecore/server/logging/simulation"
)

// moveQueueWarningStep is how many consecutive rejections an actor's move
// queue accumulates before another backpressure warning fires — periodic
// rather than one log line per rejection.
const moveQueueWarningStep = 10

// Zone owns a set of mobs and the engines that drive them. It holds no
// references into the engines' internals beyond the engines themselves;
// engines in turn reference mobs only via the id-lookup closures Zone
// passes in each tick.
type Zone struct {
	Constants config.Constants
	Mesh      navmesh.Mesh
	World     collision.World

	Ability  *ability.Engine
	Combat   *combat.Engine
	Movement *movement.Controller
	LOS      *los.Tracker
	Log      *eventlog.Log
	Pub      logging.Publisher

	// AIScript is the optional Lua decision hook; nil means every NPC uses
	// the built-in chase/wander FSM regardless of archetype.
	AIScript ai.ScriptDecider

	mobs      map[string]*model.Mob
	order     []string
	baseStats map[string]stats.BaseStats

	tick  uint64
	nowMs int64
	rng   *rand.Rand
}

// New constructs a Zone wired from its constants, external geometry
// collaborators, ability catalog, and shared event log/publisher.
func New(c config.Constants, mesh navmesh.Mesh, world collision.World, catalog ability.Catalog, log *eventlog.Log, pub logging.Publisher) *Zone {
	z := &Zone{
		Constants: c,
		Mesh:      mesh,
		World:     world,
		Log:       log,
		Pub:       pub,
		mobs:      make(map[string]*model.Mob),
		baseStats: make(map[string]stats.BaseStats),
		rng:       rand.New(rand.NewSource(1)),
	}
	z.Ability = &ability.Engine{Catalog: catalog, Constants: c, Log: log, Pub: pub}
	z.Combat = &combat.Engine{Constants: c, Log: log, Pub: pub}
	z.Movement = &movement.Controller{Constants: c, Mesh: mesh, World: world, Log: log, Pub: pub}
	z.LOS = los.NewTracker(c, world)
	z.Ability.OnResolve = z.handleResolved
	return z
}

// AddMob registers a mob with the zone, recording its unmodified primary
// stat baseline for the stats controller. Insertion order becomes this
// mob's position in every per-tick processing pass.
func (z *Zone) AddMob(m *model.Mob, base stats.BaseStats) {
	if _, exists := z.mobs[m.ID]; exists {
		return
	}
	z.mobs[m.ID] = m
	z.order = append(z.order, m.ID)
	z.baseStats[m.ID] = base
}

// RemoveMob drops a mob and its zone-owned bookkeeping (base stats, LoS
// refresh state).
func (z *Zone) RemoveMob(id string) {
	if _, ok := z.mobs[id]; !ok {
		return
	}
	delete(z.mobs, id)
	delete(z.baseStats, id)
	z.LOS.Forget(id)
	for i, oid := range z.order {
		if oid == id {
			z.order = append(z.order[:i], z.order[i+1:]...)
			break
		}
	}
}

// Tick returns the zone's current server tick counter.
func (z *Zone) Tick() uint64 { return z.tick }

// NowMs returns the monotonic server time of the zone's last FixedTick.
func (z *Zone) NowMs() int64 { return z.nowMs }

// Lookup resolves a mob by id, for callers outside the zone package (the
// websocket session layer) that need read access without holding a
// long-lived reference.
func (z *Zone) Lookup(id string) (*model.Mob, bool) { return z.lookup(id) }

// Players returns the zone's players in insertion order.
func (z *Zone) Players() []*model.Mob { return z.players() }

// Mobs returns every mob (players and NPCs) in insertion order.
func (z *Zone) Mobs() []*model.Mob { return z.ordered() }

// SubmitAbility submits an ability use request through the zone's ability
// engine, supplying the zone's own lookup/candidate/LoS collaborators.
func (z *Zone) SubmitAbility(now int64, req model.AbilityUseRequest, ack model.AckSink) {
	z.Ability.Submit(now, z.tick, req, z.lookup, z.candidates, z.losFunc, ack)
}

// CancelAbility cancels an actor's in-flight cast or buffered request.
func (z *Zone) CancelAbility(now int64, req model.AbilityCancelRequest) {
	z.Ability.Cancel(now, z.tick, req, z.lookup)
}

// SetSelectedTarget records a player's advisory target-change; it does not
// affect ability targeting, which always resolves from the explicit
// TargetSpec in each ability_use request.
func (z *Zone) SetSelectedTarget(playerID, targetID string) {
	m, ok := z.lookup(playerID)
	if !ok || m.Player == nil {
		return
	}
	m.Player.SelectedTargetID = targetID
}

// QueueMoveInput appends a client move input to a player's pending queue,
// enforcing the bounded queue size and the snap-lock protocol: while
// snapLocked, the player's pending-input queue stays empty and no inputs
// are processed. Returns false when the input was refused (unknown player,
// queue full, or snap-locked). On a full queue, every moveQueueWarningStep-th
// consecutive rejection for the same actor publishes a warning instead of
// one log line per rejection.
func (z *Zone) QueueMoveInput(playerID string, in model.QueuedMoveInput) bool {
	m, ok := z.lookup(playerID)
	if !ok || m.Player == nil {
		return false
	}
	ext := m.Player
	if ext.SnapLocked {
		return false
	}
	if len(ext.Pending) >= z.Constants.MaxPendingInputs {
		ext.RejectedInputCount++
		if ext.RejectedInputCount%moveQueueWarningStep == 0 {
			simlog.CommandQueueBackpressure(context.Background(), z.Pub, z.tick, m.EntityRef(), simlog.CommandQueueBackpressurePayload{
				QueueCapacity:  z.Constants.MaxPendingInputs,
				RejectedStreak: ext.RejectedInputCount,
			})
		}
		return false
	}
	ext.RejectedInputCount = 0
	ext.Pending = append(ext.Pending, in)
	return true
}

// AcknowledgeSnap clears a player's snap-lock once the client echoes the seq
// the server snapped on; any other seq leaves the lock in place.
func (z *Zone) AcknowledgeSnap(playerID string, seq uint64) bool {
	m, ok := z.lookup(playerID)
	if !ok || m.Player == nil {
		return false
	}
	ext := m.Player
	if ext.SnapPending == nil || ext.SnapPending.Seq != seq {
		return false
	}
	ext.SnapLocked = false
	ext.SnapTarget = nil
	ext.SnapPending = nil
	return true
}

func (z *Zone) lookup(id string) (*model.Mob, bool) {
	m, ok := z.mobs[id]
	return m, ok
}

func (z *Zone) liveIDs() map[string]bool {
	out := make(map[string]bool, len(z.mobs))
	for id := range z.mobs {
		out[id] = true
	}
	return out
}

func (z *Zone) ordered() []*model.Mob {
	out := make([]*model.Mob, 0, len(z.order))
	for _, id := range z.order {
		out = append(out, z.mobs[id])
	}
	return out
}

func (z *Zone) npcs() []*model.Mob {
	var out []*model.Mob
	for _, id := range z.order {
		if m := z.mobs[id]; m.Kind == model.KindNPC {
			out = append(out, m)
		}
	}
	return out
}

func (z *Zone) players() []*model.Mob {
	var out []*model.Mob
	for _, id := range z.order {
		if m := z.mobs[id]; m.Kind == model.KindPlayer {
			out = append(out, m)
		}
	}
	return out
}

func (z *Zone) candidates(actorID string) []targeting.Candidate {
	out := make([]targeting.Candidate, 0, len(z.order))
	for _, id := range z.order {
		if id == actorID {
			continue
		}
		m := z.mobs[id]
		out = append(out, targeting.Candidate{ID: m.ID, Position: m.Position})
	}
	return out
}

func (z *Zone) losFunc(actor, target model.Vec3) bool {
	if z.World == nil {
		return true
	}
	return z.World.LineOfSight(actor, target)
}

func (z *Zone) handleResolved(r ability.Resolved) {
	def := z.Ability.Catalog[r.Cast.AbilityID]
	z.Combat.HandleResolved(r.Tick, z.nowMs, r.ActorID, def, r.Cast.Result, z.lookup, z.npcs)
}

// FixedTick advances the zone by one tick at the given monotonic server
// time, running every component in a fixed order.
func (z *Zone) FixedTick(nowMs int64) {
	z.tick++
	z.nowMs = nowMs
	tick := z.tick
	all := z.ordered()

	z.Ability.FixedTick(nowMs, tick, all, z.lookup, z.candidates, z.losFunc)
	z.Combat.FixedTick(tick, z.liveIDs(), all)
	z.runLifecycle(tick, nowMs, all)

	for _, npc := range z.npcs() {
		ai.Sensing(npc)
		ai.TargetSelection(npc, z.lookup)
		ai.Decision(npc, nowMs, z.Constants, z.rng, z.AIScript)
		ai.Steering(npc, nowMs, z.Mesh, z.Constants)
	}

	for _, npc := range z.npcs() {
		ai.SubmitAbilityIntent(npc, nowMs, tick, z.Ability, z.lookup, z.candidates, z.losFunc)
	}

	for _, npc := range z.npcs() {
		z.Movement.StepNPC(tick, nowMs, npc)
	}
	for _, p := range z.players() {
		z.Movement.StepPlayer(tick, tick, p)
	}

	z.LOS.FixedTick(tick, z.players(), all)
}

// runLifecycle expires statuses, recomputes dirty stats, and drives NPC
// defeat/respawn.
func (z *Zone) runLifecycle(tick uint64, nowMs int64, all []*model.Mob) {
	for _, m := range all {
		if status.ExpireTick(m, nowMs) {
			stats.MarkDirty(m)
		}
		stats.Recompute(m, z.baseStats[m.ID])

		if m.Kind != model.KindNPC || m.NPC == nil {
			continue
		}
		if m.HP.Current <= 0 {
			if m.NPC.RespawnAtMs == 0 {
				m.NPC.RespawnAtMs = nowMs + z.Constants.NPCRespawnDelayMs
			}
			if nowMs >= m.NPC.RespawnAtMs {
				z.respawnNPC(tick, m)
			}
		}
	}
}

func (z *Zone) respawnNPC(tick uint64, m *model.Mob) {
	m.Position = m.NPC.SpawnPoint
	m.HP.Current = m.HP.Max
	m.NPC.RespawnAtMs = 0
	m.InCombat = false
	for id := range m.Aggro {
		delete(m.Aggro, id)
	}
	lifecyclelog.NPCRespawned(context.Background(), z.Pub, tick, m.EntityRef(), lifecyclelog.NPCRespawnedPayload{
		SpawnX: m.Position.X, SpawnY: m.Position.Y, SpawnZ: m.Position.Z,
	})
}
