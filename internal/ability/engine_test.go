package ability

import (
	"math/rand"
	"reflect"
	"testing"

	"zonecore/server/internal/config"
	"zonecore/server/internal/eventlog"
	"zonecore/server/internal/model"
	"zonecore/server/internal/targeting"
	"zonecore/server/logging"
)

var testCatalog = Catalog{
	"strike": model.AbilityDef{
		ID:         "strike",
		CastTimeMs: 0,
		OnGCD:      true,
		Range:      5,
		TargetType: model.TargetEnemy,
		Effects:    []model.AbilityEffectDef{{Kind: model.EffectDamage, Amount: 10}},
	},
	"fireball": model.AbilityDef{
		ID:         "fireball",
		CastTimeMs: 1200,
		OnGCD:      true,
		Range:      40,
		TargetType: model.TargetEnemy,
		Cost:       model.ResourceCost{Mana: 15},
		Effects:    []model.AbilityEffectDef{{Kind: model.EffectDamage, Amount: 30}},
	},
	"quickstrike": model.AbilityDef{
		ID:         "quickstrike",
		CastTimeMs: 50,
		OnGCD:      false,
		Range:      5,
		TargetType: model.TargetEnemy,
		Effects:    []model.AbilityEffectDef{{Kind: model.EffectDamage, Amount: 5}},
	},
}

func newTestEngine() *Engine {
	return &Engine{
		Catalog:   testCatalog,
		Constants: config.Defaults(),
		Log:       eventlog.New(64),
		Pub:       logging.NopPublisher{},
	}
}

func newTestActor(id string) *model.Mob {
	m := model.NewMob(id, model.KindPlayer)
	m.HP = model.Resource{Current: 100, Max: 100}
	m.Mana = model.Resource{Current: 100, Max: 100}
	m.Stamina = model.Resource{Current: 100, Max: 100}
	m.Player = &model.PlayerExtra{}
	return m
}

func lookupOf(mobs ...*model.Mob) LookupFunc {
	return func(id string) (*model.Mob, bool) {
		for _, m := range mobs {
			if m.ID == id {
				return m, true
			}
		}
		return nil, false
	}
}

func candidatesOf(mobs ...*model.Mob) CandidatesFunc {
	return func(string) []targeting.Candidate {
		out := make([]targeting.Candidate, 0, len(mobs))
		for _, m := range mobs {
			out = append(out, targeting.Candidate{ID: m.ID, Position: m.Position})
		}
		return out
	}
}

func alwaysLoS(model.Vec3, model.Vec3) bool { return true }

func captureAck() (model.AckSink, *model.AbilityAck) {
	var ack model.AbilityAck
	sink := func(a model.AbilityAck) { ack = a }
	return sink, &ack
}

func useReq(requestID, actorID, abilityID, targetID string, seq uint64) model.AbilityUseRequest {
	return model.AbilityUseRequest{
		RequestID: requestID,
		Sequence:  seq,
		ActorID:   actorID,
		AbilityID: abilityID,
		Target:    model.TargetSpec{TargetEntityID: targetID},
	}
}

func TestSubmitIdle_AcceptsInstantCastAndSetsGCD(t *testing.T) {
	e := newTestEngine()
	actor := newTestActor("p1")
	target := newTestActor("npc1")

	sink, ack := captureAck()
	e.Submit(0, 1, useReq("r1", "p1", "strike", "npc1", 1), lookupOf(actor, target), candidatesOf(actor, target), alwaysLoS, sink)

	if !ack.Accepted {
		t.Fatalf("expected strike to be accepted, got reject reason %q", ack.RejectReason)
	}
	if actor.ActiveCast == nil {
		t.Fatalf("expected an active cast to be recorded")
	}
	if actor.Ability.GCDEndTimeMs != 2500 {
		t.Fatalf("expected GCD end at 2500ms (default GCD), got %d", actor.Ability.GCDEndTimeMs)
	}
}

func TestSubmitIdle_RejectsOutOfRange(t *testing.T) {
	e := newTestEngine()
	actor := newTestActor("p1")
	target := newTestActor("npc1")
	target.Position = model.Vec3{X: 1000}

	sink, ack := captureAck()
	e.Submit(0, 1, useReq("r1", "p1", "strike", "npc1", 1), lookupOf(actor, target), candidatesOf(actor, target), alwaysLoS, sink)

	if ack.Accepted || ack.RejectReason != model.RejectOutOfRange {
		t.Fatalf("expected RejectOutOfRange, got accepted=%v reason=%q", ack.Accepted, ack.RejectReason)
	}
}

func TestSubmitIdle_RejectsInsufficientResources(t *testing.T) {
	e := newTestEngine()
	actor := newTestActor("p1")
	actor.Mana.Current = 0
	target := newTestActor("npc1")

	sink, ack := captureAck()
	e.Submit(0, 1, useReq("r1", "p1", "fireball", "npc1", 1), lookupOf(actor, target), candidatesOf(actor, target), alwaysLoS, sink)

	if ack.Accepted || ack.RejectReason != model.RejectResources {
		t.Fatalf("expected RejectResources, got accepted=%v reason=%q", ack.Accepted, ack.RejectReason)
	}
}

func TestSubmitIdle_RejectsPerAbilityCooldown(t *testing.T) {
	e := newTestEngine()
	actor := newTestActor("p1")
	actor.Cooldowns["strike"] = 5000
	target := newTestActor("npc1")

	sink, ack := captureAck()
	e.Submit(0, 1, useReq("r1", "p1", "strike", "npc1", 1), lookupOf(actor, target), candidatesOf(actor, target), alwaysLoS, sink)

	if ack.Accepted || ack.RejectReason != model.RejectCooldown {
		t.Fatalf("expected RejectCooldown from the per-ability cooldown map, got accepted=%v reason=%q", ack.Accepted, ack.RejectReason)
	}
}

// TestSubmitIdle_GCDGatingBuffersRatherThanRejects covers the GCD-vs-internal-
// cooldown split: a second on-GCD ability submitted idle while the GCD is
// still active gets buffered (not rejected outright): submitIdle validates it
// with the GCD check skipped and buffers it, rejecting only for a full buffer
// slot or a failed validation.
func TestSubmitIdle_GCDGatingBuffersRatherThanRejects(t *testing.T) {
	e := newTestEngine()
	actor := newTestActor("p1")
	target := newTestActor("npc1")
	lookup := lookupOf(actor, target)
	candidates := candidatesOf(actor, target)

	sink1, ack1 := captureAck()
	e.Submit(0, 1, useReq("r1", "p1", "strike", "npc1", 1), lookup, candidates, alwaysLoS, sink1)
	if !ack1.Accepted {
		t.Fatalf("setup: expected strike to be accepted, got %q", ack1.RejectReason)
	}

	// Resolve the instant cast so the actor goes idle again, still under GCD.
	e.FixedTick(0, 1, []*model.Mob{actor, target}, lookup, candidates, alwaysLoS)
	if actor.ActiveCast != nil {
		t.Fatalf("expected the 0ms cast to resolve on the next tick")
	}

	// strike's cast also set a 500ms internal cooldown (CastTimeMs 0 <
	// InternalCooldownMS); wait past it so only the GCD gates the retry.
	sink2, ack2 := captureAck()
	e.Submit(600, 2, useReq("r2", "p1", "fireball", "npc1", 2), lookup, candidates, alwaysLoS, sink2)
	if ack2.Accepted || ack2.RejectReason != "" {
		t.Fatalf("expected the buffered submit to not ack synchronously, got accepted=%v reason=%q", ack2.Accepted, ack2.RejectReason)
	}
	if actor.Buffered == nil || actor.Buffered.Request.AbilityID != "fireball" {
		t.Fatalf("expected fireball to be buffered while the GCD from strike is still active")
	}
}

// TestInternalCooldown_GatesIndependentlyOfGCD isolates the internal-cooldown
// check from the GCD check by using an OnGCD=false ability: CastTimeMs (50)
// is shorter than Constants.InternalCooldownMS (500), so accept extends the
// internal cooldown independently of any GCD clock.
func TestInternalCooldown_GatesIndependentlyOfGCD(t *testing.T) {
	e := newTestEngine()
	actor := newTestActor("p1")
	target := newTestActor("npc1")
	lookup := lookupOf(actor, target)
	candidates := candidatesOf(actor, target)

	sink1, ack1 := captureAck()
	e.Submit(0, 1, useReq("r1", "p1", "quickstrike", "npc1", 1), lookup, candidates, alwaysLoS, sink1)
	if !ack1.Accepted {
		t.Fatalf("setup: expected quickstrike to be accepted, got %q", ack1.RejectReason)
	}
	if actor.Ability.GCDEndTimeMs != 0 {
		t.Fatalf("quickstrike is not OnGCD, expected GCD to stay untouched, got %d", actor.Ability.GCDEndTimeMs)
	}
	if actor.Ability.InternalCooldownEndTimeMs != 500 {
		t.Fatalf("expected internal cooldown end at 500ms, got %d", actor.Ability.InternalCooldownEndTimeMs)
	}

	// Resolve the cast (ends at 50ms) so the actor is idle again.
	e.FixedTick(50, 2, []*model.Mob{actor, target}, lookup, candidates, alwaysLoS)

	sink2, ack2 := captureAck()
	e.Submit(100, 3, useReq("r2", "p1", "quickstrike", "npc1", 2), lookup, candidates, alwaysLoS, sink2)
	if ack2.Accepted || ack2.RejectReason != model.RejectCooldown {
		t.Fatalf("expected RejectCooldown before the internal cooldown ends, got accepted=%v reason=%q", ack2.Accepted, ack2.RejectReason)
	}

	sink3, ack3 := captureAck()
	e.Submit(500, 4, useReq("r3", "p1", "quickstrike", "npc1", 3), lookup, candidates, alwaysLoS, sink3)
	if !ack3.Accepted {
		t.Fatalf("expected quickstrike to be accepted once the internal cooldown elapses, got %q", ack3.RejectReason)
	}
}

func TestSubmitWhileCasting_RejectsOutsideBufferWindow(t *testing.T) {
	e := newTestEngine()
	actor := newTestActor("p1")
	target := newTestActor("npc1")
	lookup := lookupOf(actor, target)
	candidates := candidatesOf(actor, target)

	sink1, ack1 := captureAck()
	e.Submit(0, 1, useReq("r1", "p1", "fireball", "npc1", 1), lookup, candidates, alwaysLoS, sink1)
	if !ack1.Accepted {
		t.Fatalf("setup: expected fireball to be accepted, got %q", ack1.RejectReason)
	}
	// GCD end = 2500ms (GCDMs dominates fireball's 1200ms cast), buffer opens
	// at 2500-400=2100ms.

	sink2, ack2 := captureAck()
	e.Submit(1000, 2, useReq("r2", "p1", "strike", "npc1", 2), lookup, candidates, alwaysLoS, sink2)
	if ack2.Accepted || ack2.RejectReason != model.RejectBufferWindowClosed {
		t.Fatalf("expected RejectBufferWindowClosed before the tail window opens, got accepted=%v reason=%q", ack2.Accepted, ack2.RejectReason)
	}
	if actor.Buffered != nil {
		t.Fatalf("a rejected buffer attempt must not occupy the buffer slot")
	}
}

func TestSubmitWhileCasting_BuffersWithinWindowThenRejectsSecond(t *testing.T) {
	e := newTestEngine()
	actor := newTestActor("p1")
	target := newTestActor("npc1")
	lookup := lookupOf(actor, target)
	candidates := candidatesOf(actor, target)

	sink1, ack1 := captureAck()
	e.Submit(0, 1, useReq("r1", "p1", "fireball", "npc1", 1), lookup, candidates, alwaysLoS, sink1)
	if !ack1.Accepted {
		t.Fatalf("setup: expected fireball to be accepted, got %q", ack1.RejectReason)
	}

	sink2, ack2 := captureAck()
	e.Submit(2200, 2, useReq("r2", "p1", "strike", "npc1", 2), lookup, candidates, alwaysLoS, sink2)
	if ack2.Accepted || ack2.RejectReason != "" {
		t.Fatalf("expected the in-window buffer attempt to not ack synchronously, got accepted=%v reason=%q", ack2.Accepted, ack2.RejectReason)
	}
	if actor.Buffered == nil || actor.Buffered.Request.AbilityID != "strike" {
		t.Fatalf("expected strike to occupy the buffer slot")
	}

	sink3, ack3 := captureAck()
	e.Submit(2300, 3, useReq("r3", "p1", "strike", "npc1", 3), lookup, candidates, alwaysLoS, sink3)
	if ack3.Accepted || ack3.RejectReason != model.RejectBufferFull {
		t.Fatalf("expected RejectBufferFull with the slot already occupied, got accepted=%v reason=%q", ack3.Accepted, ack3.RejectReason)
	}
}

func TestFixedTick_AdmitsBufferedRequestOnceGCDElapses(t *testing.T) {
	e := newTestEngine()
	actor := newTestActor("p1")
	target := newTestActor("npc1")
	lookup := lookupOf(actor, target)
	candidates := candidatesOf(actor, target)

	sink1, ack1 := captureAck()
	e.Submit(0, 1, useReq("r1", "p1", "fireball", "npc1", 1), lookup, candidates, alwaysLoS, sink1)
	if !ack1.Accepted {
		t.Fatalf("setup: expected fireball to be accepted, got %q", ack1.RejectReason)
	}

	sink2, ack2 := captureAck()
	e.Submit(2200, 2, useReq("r2", "p1", "strike", "npc1", 2), lookup, candidates, alwaysLoS, sink2)
	if ack2.Accepted {
		t.Fatalf("setup: expected strike to buffer rather than ack immediately")
	}

	// Resolve the fireball cast (ends at 1200ms); strike stays buffered
	// because the GCD (ends at 2500ms) is still active.
	e.FixedTick(1200, 2, []*model.Mob{actor, target}, lookup, candidates, alwaysLoS)
	if actor.Buffered == nil {
		t.Fatalf("expected strike to remain buffered while the GCD is still active")
	}

	// Advance past the GCD: the buffered strike should now be admitted and
	// ack synchronously via the ack stored on BufferedRequest.
	e.FixedTick(2600, 3, []*model.Mob{actor, target}, lookup, candidates, alwaysLoS)
	if actor.Buffered != nil {
		t.Fatalf("expected the buffer slot to be cleared once the request is admitted")
	}
	if !ack2.Accepted {
		t.Fatalf("expected the buffered strike's original ack to fire as accepted, got reason %q", ack2.RejectReason)
	}
	if actor.ActiveCast == nil || actor.ActiveCast.AbilityID != "strike" {
		t.Fatalf("expected strike to become the actor's active cast")
	}
}

func TestCancel_ClearsCastAndResetsCooldownClocks(t *testing.T) {
	e := newTestEngine()
	actor := newTestActor("p1")
	target := newTestActor("npc1")
	lookup := lookupOf(actor, target)
	candidates := candidatesOf(actor, target)

	sink, ack := captureAck()
	e.Submit(0, 1, useReq("r1", "p1", "fireball", "npc1", 1), lookup, candidates, alwaysLoS, sink)
	if !ack.Accepted {
		t.Fatalf("setup: expected fireball to be accepted, got %q", ack.RejectReason)
	}

	e.Cancel(300, 2, model.AbilityCancelRequest{ActorID: "p1", Reason: model.CancelManual}, lookup)

	if actor.ActiveCast != nil {
		t.Fatalf("expected the active cast to be cleared")
	}
	if actor.Buffered != nil {
		t.Fatalf("expected the buffer slot to be cleared")
	}
	if actor.Ability.CastAbilityID != "" || actor.Ability.CastID != 0 {
		t.Fatalf("expected cast bookkeeping fields to be reset")
	}
	if actor.Ability.GCDEndTimeMs != 300 || actor.Ability.InternalCooldownEndTimeMs != 300 {
		t.Fatalf("expected both cooldown clocks to reset to the cancel time, got gcd=%d internal=%d", actor.Ability.GCDEndTimeMs, actor.Ability.InternalCooldownEndTimeMs)
	}
}

func TestCancel_ClearsOnlyBufferedRequestWhenNotCasting(t *testing.T) {
	e := newTestEngine()
	actor := newTestActor("p1")
	actor.Buffered = &model.BufferedRequest{Request: useReq("r1", "p1", "strike", "npc1", 1)}

	e.Cancel(100, 1, model.AbilityCancelRequest{ActorID: "p1", Reason: model.CancelOther}, lookupOf(actor))

	if actor.Buffered != nil {
		t.Fatalf("expected the buffered request to be cleared")
	}
	if actor.Ability.GCDEndTimeMs != 0 {
		t.Fatalf("expected no cooldown reset when there was no active cast, got %d", actor.Ability.GCDEndTimeMs)
	}
}

func TestSeedFor_DeterministicGivenSameInputs(t *testing.T) {
	a := seedFor("req-1", "actor-1", 42)
	b := seedFor("req-1", "actor-1", 42)
	if a != b {
		t.Fatalf("expected identical (requestId, actorId, tick) to reproduce the same seed, got %d vs %d", a, b)
	}
}

func TestSeedFor_VariesWithEachInput(t *testing.T) {
	base := seedFor("req-1", "actor-1", 42)
	if v := seedFor("req-2", "actor-1", 42); v == base {
		t.Fatalf("expected a different requestId to change the seed")
	}
	if v := seedFor("req-1", "actor-2", 42); v == base {
		t.Fatalf("expected a different actorId to change the seed")
	}
	if v := seedFor("req-1", "actor-1", 43); v == base {
		t.Fatalf("expected a different serverTick to change the seed")
	}
}

func TestPrecompute_DeterministicForFixedInputs(t *testing.T) {
	e := newTestEngine()
	actor := newTestActor("p1")
	target := newTestActor("npc1")
	def := testCatalog["fireball"]
	req := useReq("r1", "p1", "fireball", "npc1", 1)
	candidates := []targeting.Candidate{{ID: target.ID, Position: target.Position}}

	first := e.precompute(req, actor, def, 7, candidates)
	second := e.precompute(req, actor, def, 7, candidates)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected precompute to be deterministic for identical (requestId, actorId, tick), got %+v vs %+v", first, second)
	}
	if len(first.PerTarget) != 1 || first.PerTarget[0].Amount <= 0 {
		t.Fatalf("expected a single positive damage roll, got %+v", first.PerTarget)
	}

	third := e.precompute(req, actor, def, 8, candidates)
	if reflect.DeepEqual(first, third) {
		t.Fatalf("expected a different serverTick to change the rolled outcome")
	}
}

func TestRollAmount_DeterministicForFixedSeed(t *testing.T) {
	seed := seedFor("req-1", "actor-1", 7)

	a := rollAmount(rand.New(rand.NewSource(int64(seed))), 30)
	b := rollAmount(rand.New(rand.NewSource(int64(seed))), 30)
	if a != b {
		t.Fatalf("expected the same seed to roll the same amount, got %v vs %v", a, b)
	}
	if a < 30*0.95-1e-9 || a > 30*1.05+1e-9 {
		t.Fatalf("expected the roll to stay within +/-5%% of the base amount, got %v", a)
	}
}
