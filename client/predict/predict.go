// Package predict is the client-side ability-gating prediction state
// machine. It mirrors internal/ability's GCD/internal-cooldown/per-ability-
// cooldown gating so a client can show instant local feedback on an
// ability_use request, then reconcile against the server's ability_ack
// without waiting a round trip.
//
// State is single-threaded per client, so it holds no locks.
package predict

import "zonecore/server/internal/model"

// cooldownWindow is the optimistic local window for one ability's cooldown.
type cooldownWindow struct {
	Start int64
	End   int64
}

// Prediction is the outstanding request tracked while waiting for its ack.
type Prediction struct {
	AbilityID                  string
	AppliesOptimisticCooldowns bool
}

// State tracks one player's optimistic ability gates and the in-flight
// request predictions awaiting ack reconciliation.
type State struct {
	gcdStartMs            int64
	gcdEndMs              int64
	internalCooldownEndMs int64
	cooldowns             map[string]cooldownWindow
	queuedAbilityID        string

	pending      map[string]Prediction
	pendingOrder []string
	capacity     int

	haveLastAck  bool
	lastAckSeq   uint64
	lastAckReqID string
}

// NewState constructs a State tracking at most capacity in-flight
// predictions.
func NewState(capacity int) *State {
	if capacity < 1 {
		capacity = 1
	}
	return &State{
		cooldowns: make(map[string]cooldownWindow),
		pending:   make(map[string]Prediction),
		capacity:  capacity,
	}
}

// CanAttempt reports whether def may be attempted at now under the locally
// predicted gates.
func (s *State) CanAttempt(def model.AbilityDef, now int64) bool {
	if def.OnGCD && now < s.gcdEndMs {
		return false
	}
	if now < s.internalCooldownEndMs {
		return false
	}
	if cw, ok := s.cooldowns[def.ID]; ok && now < cw.End {
		return false
	}
	return true
}

// CanBuffer reports whether def may be buffered at now: it fails only while
// now falls inside the ability's own cooldown interval.
func (s *State) CanBuffer(def model.AbilityDef, now int64) bool {
	cw, ok := s.cooldowns[def.ID]
	if !ok {
		return true
	}
	return now < cw.Start || now >= cw.End
}

// OnRequest records the optimistic effect of submitting def as requestID at
// now: it sets the GCD and internal-cooldown gates (mirroring the server's
// own accept-time gate updates in internal/ability.Engine) and tracks the
// request in a bounded LRU so a later ack can be reconciled or rolled back.
// gcdMs and internalCooldownMs are the zone's configured GCD_MS and
// INTERNAL_COOLDOWN_MS constants.
func (s *State) OnRequest(requestID string, def model.AbilityDef, now, gcdMs, internalCooldownMs int64) {
	applied := false
	if def.OnGCD {
		s.gcdStartMs = now
		s.gcdEndMs = now + gcdMs
		applied = true
	}
	if def.CastTimeMs < internalCooldownMs {
		s.internalCooldownEndMs = now + internalCooldownMs
		applied = true
	}
	if def.CooldownMs > 0 {
		s.cooldowns[def.ID] = cooldownWindow{Start: now, End: now + def.CooldownMs}
		applied = true
	}
	s.queuedAbilityID = def.ID
	s.track(requestID, Prediction{AbilityID: def.ID, AppliesOptimisticCooldowns: applied})
}

func (s *State) track(requestID string, pred Prediction) {
	if _, exists := s.pending[requestID]; !exists {
		s.pendingOrder = append(s.pendingOrder, requestID)
	}
	s.pending[requestID] = pred
	for len(s.pendingOrder) > s.capacity {
		oldest := s.pendingOrder[0]
		s.pendingOrder = s.pendingOrder[1:]
		delete(s.pending, oldest)
	}
}

func (s *State) forget(requestID string) {
	delete(s.pending, requestID)
	for i, id := range s.pendingOrder {
		if id == requestID {
			s.pendingOrder = append(s.pendingOrder[:i], s.pendingOrder[i+1:]...)
			break
		}
	}
}

// OnAck reconciles an ability_ack against the tracked prediction for its
// requestId. Stale acks (behind the last-seen sequence, or
// matching the last sequence under a different request) are dropped.
func (s *State) OnAck(now int64, ack model.AbilityAck) {
	if s.haveLastAck {
		if ack.Sequence < s.lastAckSeq {
			return
		}
		if ack.Sequence == s.lastAckSeq && ack.RequestID != s.lastAckReqID {
			return
		}
	}
	s.haveLastAck = true
	s.lastAckSeq = ack.Sequence
	s.lastAckReqID = ack.RequestID

	pred, tracked := s.pending[ack.RequestID]
	s.forget(ack.RequestID)

	if ack.Accepted {
		s.adopt(ack)
		s.queuedAbilityID = ""
		return
	}

	switch ack.RejectReason {
	case model.RejectCooldown, model.RejectBufferFull, model.RejectBufferWindowClosed:
		// Keep the optimistic cooldowns the client already applied.
	default:
		if tracked && pred.AppliesOptimisticCooldowns {
			s.rollback(pred.AbilityID, now)
		}
	}
}

// adopt pulls the server's GCD window into the local state whenever it is
// tighter (ends sooner) than what the client predicted.
func (s *State) adopt(ack model.AbilityAck) {
	if ack.GCDStartTimeMs != nil && ack.GCDEndTimeMs != nil {
		if *ack.GCDEndTimeMs < s.gcdEndMs {
			s.gcdStartMs = *ack.GCDStartTimeMs
			s.gcdEndMs = *ack.GCDEndTimeMs
		}
	}
}

// rollback reverts the optimistic GCD, internal-cooldown, and per-ability
// cooldown gates to now, as if the rejected request had never been applied.
func (s *State) rollback(abilityID string, now int64) {
	s.gcdStartMs = now
	s.gcdEndMs = now
	s.internalCooldownEndMs = now
	if _, ok := s.cooldowns[abilityID]; ok {
		s.cooldowns[abilityID] = cooldownWindow{Start: now, End: now}
	}
}

// OnAcceptedCancel clears the locally queued ability following an accepted
// ability_cancel.
func (s *State) OnAcceptedCancel() {
	s.queuedAbilityID = ""
}

// OnCastInterrupt collapses the predicted gates for abilityID to now,
// following a server-originated AbilityCastInterrupt event.
func (s *State) OnCastInterrupt(abilityID string, now int64) {
	if s.queuedAbilityID == abilityID {
		s.queuedAbilityID = ""
	}
	s.gcdEndMs = now
	s.internalCooldownEndMs = now
	if _, ok := s.cooldowns[abilityID]; ok {
		s.cooldowns[abilityID] = cooldownWindow{Start: now, End: now}
	}
}

// QueuedAbilityID returns the ability id the client believes is queued
// (requested while on GCD, awaiting buffer admission), or "" if none.
func (s *State) QueuedAbilityID() string { return s.queuedAbilityID }

// TrackedCount reports how many request predictions are currently tracked,
// for tests asserting the LRU bound holds.
func (s *State) TrackedCount() int { return len(s.pending) }
