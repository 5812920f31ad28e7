// Package ability implements the AbilityEngine: request validation, the
// cast/buffer state machine, deterministic cast resolution, and the
// AbilityCastStart/Finish/Interrupt and AbilityEffectApplied/AbilityResolved
// event emission.
package ability

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sort"
	"strconv"

	"zonecore/server/internal/config"
	"zonecore/server/internal/eventlog"
	"zonecore/server/internal/model"
	"zonecore/server/internal/status"
	"zonecore/server/internal/targeting"
	"zonecore/server/logging"
	combatlog "zonecore/server/logging/combat"
)

// Catalog is the static ability definition table, keyed by ability id.
type Catalog map[string]model.AbilityDef

// Resolved fires once per completed cast, after resource costs are paid and
// every per-target effect has been applied, so CombatEngine can react to
// already-applied damage/heal/status outcomes to update aggro and combat
// flags.
type Resolved struct {
	Tick    uint64
	ActorID string
	Cast    model.ActiveCast
}

// ResolvedListener receives one Resolved event per completed cast.
type ResolvedListener func(Resolved)

// Engine is the zone's ability engine. It is constructed once per zone and
// driven every tick by the zone orchestrator; it holds no mob references
// between calls beyond what is passed into each method.
type Engine struct {
	Catalog   Catalog
	Constants config.Constants
	Log       *eventlog.Log
	Pub       logging.Publisher
	OnResolve ResolvedListener

	nextCastID uint64
}

// LookupFunc resolves a mob id to its mob, or false if unknown.
type LookupFunc func(id string) (*model.Mob, bool)

// CandidatesFunc returns the targeting candidate list visible to actorID.
type CandidatesFunc func(actorID string) []targeting.Candidate

// LoSFunc reports whether a LoS ray from actor to target point is clear.
type LoSFunc func(actor, target model.Vec3) bool

// callCtx bundles the per-call collaborators Submit/FixedTick need, so
// internal helpers don't grow an ever-longer parameter list.
type callCtx struct {
	lookup     LookupFunc
	candidates CandidatesFunc
	los        LoSFunc
}

// Submit validates and either accepts, buffers, or rejects an ability use
// request, synchronously invoking ack for every outcome except a successful
// buffer admission (which acks later, from FixedTick).
func (e *Engine) Submit(now int64, tick uint64, req model.AbilityUseRequest, lookup LookupFunc, candidates CandidatesFunc, los LoSFunc, ack model.AckSink) {
	if ack == nil {
		return
	}
	actor, ok := lookup(req.ActorID)
	if !ok {
		return
	}
	ctx := callCtx{lookup: lookup, candidates: candidates, los: los}

	if actor.ActiveCast == nil {
		e.submitIdle(now, tick, actor, req, ctx, ack)
		return
	}
	e.submitWhileCasting(now, tick, actor, req, ctx, ack)
}

func (e *Engine) submitIdle(now int64, tick uint64, actor *model.Mob, req model.AbilityUseRequest, ctx callCtx, ack model.AckSink) {
	def, ok := e.Catalog[req.AbilityID]
	if !ok {
		e.rejectAck(now, tick, req, model.RejectIllegal, ack)
		return
	}

	gcdActive := actor.Ability.GCDEndTimeMs > now
	if def.OnGCD && gcdActive {
		if actor.Buffered != nil {
			e.rejectAck(now, tick, req, model.RejectBufferFull, ack)
			return
		}
		req.IgnoreGCD = true
		if reason, valid := e.validate(now, actor, req, def, ctx); !valid {
			e.rejectAck(now, tick, req, reason, ack)
			return
		}
		actor.Buffered = &model.BufferedRequest{Request: req, ReceivedAtMs: now, ServerTick: tick, Ack: ack}
		return
	}

	if reason, valid := e.validate(now, actor, req, def, ctx); !valid {
		e.rejectAck(now, tick, req, reason, ack)
		return
	}
	e.accept(now, tick, actor, req, def, ctx, ack)
}

func (e *Engine) submitWhileCasting(now int64, tick uint64, actor *model.Mob, req model.AbilityUseRequest, ctx callCtx, ack model.AckSink) {
	def, ok := e.Catalog[req.AbilityID]
	if !ok || !def.OnGCD {
		e.rejectAck(now, tick, req, model.RejectIllegal, ack)
		return
	}
	if actor.Buffered != nil {
		e.rejectAck(now, tick, req, model.RejectBufferFull, ack)
		return
	}
	if !bufferWindowOpen(actor, now, e.Constants) {
		e.rejectAck(now, tick, req, model.RejectBufferWindowClosed, ack)
		return
	}

	req.IgnoreGCD = true
	if reason, valid := e.validate(now, actor, req, def, ctx); !valid {
		e.rejectAck(now, tick, req, reason, ack)
		return
	}
	actor.Buffered = &model.BufferedRequest{Request: req, ReceivedAtMs: now, ServerTick: tick, Ack: ack}
}

// bufferWindowOpen reports whether now falls in the tail window of the
// actor's active cast or GCD, where a request may be buffered instead of
// rejected outright.
func bufferWindowOpen(actor *model.Mob, now int64, c config.Constants) bool {
	end := actor.Ability.GCDEndTimeMs
	if actor.ActiveCast != nil && actor.ActiveCast.CastEndTimeMs > end {
		end = actor.ActiveCast.CastEndTimeMs
	}
	if end == 0 {
		return true
	}
	return now >= end-c.BufferOpenMS
}

// validate runs the rejection checks in a fixed priority order so a request
// with multiple disqualifying conditions always reports the same reason.
func (e *Engine) validate(now int64, actor *model.Mob, req model.AbilityUseRequest, def model.AbilityDef, ctx callCtx) (model.RejectReason, bool) {
	candidates := ctx.candidates(actor.ID)

	targetRes, err := targeting.Resolve(def, actor.Position, actor.FacingYaw, req.Target, candidates)
	if err != nil {
		return model.RejectIllegal, false
	}

	if actor.StatusFlag.Stunned {
		return model.RejectStunned, false
	}
	if actor.StatusFlag.Silenced {
		return model.RejectSilenced, false
	}
	if actor.StatusFlag.Disarmed {
		return model.RejectDisarmed, false
	}
	if actor.StatusFlag.Rooted {
		return model.RejectRooted, false
	}
	if status.IsBlocked(actor, req.AbilityID) {
		return model.RejectIllegal, false
	}

	if def.OnGCD && !req.IgnoreGCD && actor.Ability.GCDEndTimeMs > now {
		return model.RejectCooldown, false
	}
	if actor.Ability.InternalCooldownEndTimeMs > now {
		return model.RejectCooldown, false
	}
	if ready, ok := actor.Cooldowns[req.AbilityID]; ok && ready > now {
		return model.RejectCooldown, false
	}

	if !canPay(actor, def.Cost) {
		return model.RejectResources, false
	}

	if def.Range > 0 {
		targetPoint, ok := primaryPosition(def, actor.Position, req.Target, candidates)
		if ok {
			if actor.Position.Distance(targetPoint) > def.Range {
				return model.RejectOutOfRange, false
			}
			if ctx.los != nil && !ctx.los(actor.Position, targetPoint) {
				return model.RejectOutOfRange, false
			}
		}
	}

	_ = targetRes
	return "", true
}

func primaryPosition(def model.AbilityDef, actor model.Vec3, spec model.TargetSpec, candidates []targeting.Candidate) (model.Vec3, bool) {
	switch def.TargetType {
	case model.TargetSelf:
		return actor, true
	case model.TargetGround:
		if spec.TargetPoint != nil {
			return *spec.TargetPoint, true
		}
		return model.Vec3{}, false
	default:
		for _, c := range candidates {
			if c.ID == spec.TargetEntityID {
				return c.Position, true
			}
		}
		return model.Vec3{}, false
	}
}

func canPay(actor *model.Mob, cost model.ResourceCost) bool {
	return actor.HP.Current >= cost.HP && actor.Mana.Current >= cost.Mana && actor.Stamina.Current >= cost.Stamina
}

// Cancel clears the actor's active cast and buffered request. It never acks.
func (e *Engine) Cancel(now int64, tick uint64, req model.AbilityCancelRequest, lookup LookupFunc) {
	actor, ok := lookup(req.ActorID)
	if !ok {
		return
	}
	actor.Buffered = nil
	if actor.ActiveCast == nil {
		return
	}
	castID := actor.ActiveCast.CastID
	abilityID := actor.ActiveCast.AbilityID
	actor.ActiveCast = nil
	actor.Ability.CastStartTimeMs = 0
	actor.Ability.CastEndTimeMs = 0
	actor.Ability.CastAbilityID = ""
	actor.Ability.CastID = 0
	actor.Ability.GCDEndTimeMs = now
	actor.Ability.InternalCooldownEndTimeMs = now

	payload := combatlog.CastPayload{CastID: castID, AbilityID: abilityID, Reason: string(req.Reason)}
	combatlog.CastInterrupt(context.Background(), e.Pub, tick, actor.EntityRef(), payload)
	e.Log.AppendLocated(tick, combatlog.EventCastInterrupt, payload, eventlog.SourceLocation{CauseType: "ability", CauseID: abilityID, Position: actor.Position})
}

// FixedTick advances every actor's cast/buffer state machine: resolves
// completed casts and admits buffered requests.
func (e *Engine) FixedTick(now int64, tick uint64, actors []*model.Mob, lookup LookupFunc, candidates CandidatesFunc, los LoSFunc) {
	ctx := callCtx{lookup: lookup, candidates: candidates, los: los}

	completed := dueToResolve(actors, now)
	sort.Slice(completed, func(i, j int) bool {
		a, b := completed[i].ActiveCast, completed[j].ActiveCast
		if a.CastEndTimeMs != b.CastEndTimeMs {
			return a.CastEndTimeMs < b.CastEndTimeMs
		}
		if a.ServerTick != b.ServerTick {
			return a.ServerTick < b.ServerTick
		}
		return a.Sequence < b.Sequence
	})

	for _, actor := range completed {
		e.resolve(now, tick, actor, ctx)
		actor.ActiveCast = nil
		actor.Ability.CastStartTimeMs = 0
		actor.Ability.CastEndTimeMs = 0
		actor.Ability.CastAbilityID = ""
		actor.Ability.CastID = 0
	}

	for _, actor := range actors {
		if actor.ActiveCast == nil && actor.Buffered != nil {
			e.admitBuffered(now, tick, actor, ctx)
		}
	}
}

func dueToResolve(actors []*model.Mob, now int64) []*model.Mob {
	var out []*model.Mob
	for _, a := range actors {
		if a.ActiveCast != nil && now >= a.ActiveCast.CastEndTimeMs {
			out = append(out, a)
		}
	}
	return out
}

func (e *Engine) admitBuffered(now int64, tick uint64, actor *model.Mob, ctx callCtx) {
	buffered := actor.Buffered
	if buffered == nil {
		return
	}
	def, ok := e.Catalog[buffered.Request.AbilityID]
	if !ok || !def.OnGCD {
		actor.Buffered = nil
		e.rejectAck(now, tick, buffered.Request, model.RejectIllegal, buffered.Ack)
		return
	}
	if actor.Ability.GCDEndTimeMs > now {
		return // still on GCD; leave buffered for a later tick.
	}

	actor.Buffered = nil
	req := buffered.Request
	req.IgnoreGCD = false
	reason, valid := e.validate(now, actor, req, def, ctx)
	if !valid {
		e.rejectAck(now, tick, req, reason, buffered.Ack)
		return
	}
	e.accept(now, tick, actor, req, def, ctx, buffered.Ack)
}

func (e *Engine) accept(now int64, tick uint64, actor *model.Mob, req model.AbilityUseRequest, def model.AbilityDef, ctx callCtx, ack model.AckSink) {
	e.nextCastID++
	castID := e.nextCastID

	castStart := now
	castEnd := now + def.CastTimeMs

	var gcdStart, gcdEnd *int64
	if def.OnGCD {
		dur := e.Constants.GCDMs()
		if def.CastTimeMs > dur {
			dur = def.CastTimeMs
		}
		start, end := now, now+dur
		gcdStart, gcdEnd = &start, &end
		actor.Ability.GCDEndTimeMs = end
	}
	if def.CastTimeMs < e.Constants.InternalCooldownMS {
		actor.Ability.InternalCooldownEndTimeMs = now + e.Constants.InternalCooldownMS
	}

	candidates := ctx.candidates(actor.ID)
	result := e.precompute(req, actor, def, tick, candidates)

	cast := model.ActiveCast{
		CastID:          castID,
		ActorID:         req.ActorID,
		AbilityID:       req.AbilityID,
		RequestID:       req.RequestID,
		Sequence:        req.Sequence,
		ServerTick:      tick,
		CastStartTimeMs: castStart,
		CastEndTimeMs:   castEnd,
		Result:          result,
		OnGCD:           def.OnGCD,
	}
	if gcdStart != nil {
		cast.GCDStartTimeMs = *gcdStart
		cast.GCDEndTimeMs = *gcdEnd
	}
	actor.ActiveCast = &cast
	actor.Ability.CastStartTimeMs = castStart
	actor.Ability.CastEndTimeMs = castEnd
	actor.Ability.CastAbilityID = req.AbilityID
	actor.Ability.CastID = castID

	payload := combatlog.CastPayload{CastID: castID, AbilityID: req.AbilityID}
	combatlog.CastStart(context.Background(), e.Pub, tick, actor.EntityRef(), payload)
	e.Log.AppendLocated(tick, combatlog.EventCastStart, payload, eventlog.SourceLocation{CauseType: "ability", CauseID: req.AbilityID, Position: actor.Position})

	ack(model.AbilityAck{
		RequestID:       req.RequestID,
		Sequence:        req.Sequence,
		Accepted:        true,
		ServerTimeMs:    now,
		ServerTick:      tick,
		CastStartTimeMs: castStart,
		CastEndTimeMs:   castEnd,
		GCDStartTimeMs:  gcdStart,
		GCDEndTimeMs:    gcdEnd,
		Result:          &result,
	})
}

func (e *Engine) rejectAck(now int64, tick uint64, req model.AbilityUseRequest, reason model.RejectReason, ack model.AckSink) {
	if ack == nil {
		return
	}
	ack(model.AbilityAck{
		RequestID:    req.RequestID,
		Sequence:     req.Sequence,
		Accepted:     false,
		ServerTimeMs: now,
		ServerTick:   tick,
		RejectReason: reason,
	})
}

// resolve applies an actor's completed cast: pays costs, emits
// AbilityCastFinish/AbilityEffectApplied, applies each effect to its target
// via Apply, then notifies OnResolve so internal/combat can react with
// aggro/combat-flag updates on the now-applied outcome.
func (e *Engine) resolve(now int64, tick uint64, actor *model.Mob, ctx callCtx) {
	cast := actor.ActiveCast
	def, known := e.Catalog[cast.AbilityID]

	if cast.Result.UseCheckOK {
		payResources(actor, def.Cost)
	}

	finishPayload := combatlog.CastPayload{CastID: cast.CastID, AbilityID: cast.AbilityID}
	combatlog.CastFinish(context.Background(), e.Pub, tick, actor.EntityRef(), finishPayload)
	castLoc := eventlog.SourceLocation{CauseType: "ability", CauseID: cast.AbilityID, Position: actor.Position}
	e.Log.AppendLocated(tick, combatlog.EventCastFinish, finishPayload, castLoc)

	for _, outcome := range cast.Result.PerTarget {
		kind := string(outcome.Outcome)
		var effect model.AbilityEffectDef
		if known && outcome.EffectIndex < len(def.Effects) {
			effect = def.Effects[outcome.EffectIndex]
			kind = string(effect.Kind)
		}
		payload := combatlog.EffectPayload{
			AbilityID:  cast.AbilityID,
			TargetID:   outcome.TargetID,
			EffectKind: kind,
			Amount:     outcome.Amount,
			Outcome:    string(outcome.Outcome),
		}
		e.Log.AppendLocated(tick, combatlog.EventEffectApplied, payload, castLoc)

		targetRef := logging.EntityRef{ID: outcome.TargetID, Kind: logging.EntityKind("unknown")}
		var target *model.Mob
		if ctx.lookup != nil {
			if t, ok := ctx.lookup(outcome.TargetID); ok {
				target = t
				targetRef = t.EntityRef()
			}
		}
		combatlog.EffectApplied(context.Background(), e.Pub, tick, actor.EntityRef(), targetRef, payload)

		if target != nil && cast.Result.UseCheckOK && known {
			Apply(effect, actor, target, outcome, now)
		}
	}

	if e.OnResolve != nil {
		e.OnResolve(Resolved{Tick: tick, ActorID: actor.ID, Cast: *cast})
	}
}

func payResources(actor *model.Mob, cost model.ResourceCost) {
	actor.HP.Current -= cost.HP
	actor.Mana.Current -= cost.Mana
	actor.Stamina.Current -= cost.Stamina
	actor.HP.Clamp()
	actor.Mana.Clamp()
	actor.Stamina.Clamp()
}

// precompute runs the deterministic use-check + per-effect target
// resolution seeded by hash(requestId, actorId, serverTick).
func (e *Engine) precompute(req model.AbilityUseRequest, actor *model.Mob, def model.AbilityDef, tick uint64, candidates []targeting.Candidate) model.CastResult {
	targetRes, err := targeting.Resolve(def, actor.Position, actor.FacingYaw, req.Target, candidates)
	if err != nil {
		return model.CastResult{UseCheckOK: false}
	}

	seed := seedFor(req.RequestID, req.ActorID, tick)
	rng := rand.New(rand.NewSource(int64(seed)))

	targets := make(map[string]bool, len(targetRes.TargetIDs))
	for _, id := range targetRes.TargetIDs {
		targets[id] = true
	}

	result := model.CastResult{
		UseCheckOK:   true,
		DirectionYaw: targetRes.Direction,
		Targets:      targets,
	}

	for idx, effect := range def.Effects {
		for _, targetID := range targetRes.TargetIDs {
			outcome := model.EffectTargetResult{EffectIndex: idx, TargetID: targetID}
			switch effect.Kind {
			case model.EffectDamage:
				outcome.Outcome = model.OutcomeDamage
				outcome.Amount = rollAmount(rng, effect.Amount)
			case model.EffectHeal:
				outcome.Outcome = model.OutcomeHeal
				outcome.Amount = rollAmount(rng, effect.Amount)
			case model.EffectStatus:
				outcome.Outcome = model.OutcomeStatus
			default:
				outcome.Outcome = model.OutcomeNoEffect
			}
			result.PerTarget = append(result.PerTarget, outcome)
		}
	}

	return result
}

// rollAmount applies a deterministic +/-5% variance to a base amount; the
// variance itself is seeded, so replays of the same (requestId, actorId,
// serverTick) reproduce identical damage/healing.
func rollAmount(rng *rand.Rand, base float64) float64 {
	variance := 1 + (rng.Float64()*0.1 - 0.05)
	return base * variance
}

// seedFor computes the fixed 32-bit hash seed from (requestId, actorId,
// serverTick), so the same inputs always reproduce the same resolution.
func seedFor(requestID, actorID string, tick uint64) uint32 {
	h := fnv.New32a()
	h.Write([]byte(requestID))
	h.Write([]byte(actorID))
	h.Write([]byte(strconv.FormatUint(tick, 10)))
	return h.Sum32()
}

// Apply applies a single effect-target outcome to the target mob: damage
// clamps into [0,maxHp], healing clamps up to maxHp, status calls
// status.Apply with the per-status maxDurationMs clamp baked into the
// status definition. Called by resolve for each effect-target outcome,
// before OnResolve hands the Resolved event to the aggro/combat-flag update.
func Apply(effect model.AbilityEffectDef, source, target *model.Mob, outcome model.EffectTargetResult, now int64) {
	switch outcome.Outcome {
	case model.OutcomeDamage:
		target.HP.Current -= outcome.Amount
		target.HP.Clamp()
	case model.OutcomeHeal:
		target.HP.Current += outcome.Amount
		target.HP.Clamp()
	case model.OutcomeStatus:
		status.Apply(target, effect.Status, source, now)
	}
}
