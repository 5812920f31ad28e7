// Package combat publishes the category=Combat replicated events named in
// the zone event log (AbilityCastStart, AbilityCastFinish,
// AbilityCastInterrupt, AbilityEffectApplied, MobEnterCombat, MobExitCombat).
package combat

import (
	"context"

	"zonecore/server/logging"
)

const (
	// EventCastStart mirrors eventlog.TypeAbilityCastStart for router/sink consumers.
	EventCastStart logging.EventType = "combat.ability_cast_start"
	// EventCastFinish mirrors eventlog.TypeAbilityCastFinish.
	EventCastFinish logging.EventType = "combat.ability_cast_finish"
	// EventCastInterrupt mirrors eventlog.TypeAbilityCastInterrupt.
	EventCastInterrupt logging.EventType = "combat.ability_cast_interrupt"
	// EventEffectApplied mirrors eventlog.TypeAbilityEffectApplied.
	EventEffectApplied logging.EventType = "combat.ability_effect_applied"
	// EventEnterCombat mirrors eventlog.TypeMobEnterCombat.
	EventEnterCombat logging.EventType = "combat.mob_enter_combat"
	// EventExitCombat mirrors eventlog.TypeMobExitCombat.
	EventExitCombat logging.EventType = "combat.mob_exit_combat"
)

// CastPayload captures the fields shared by cast start/finish/interrupt telemetry.
type CastPayload struct {
	CastID    uint64 `json:"castId"`
	AbilityID string `json:"abilityId"`
	Reason    string `json:"reason,omitempty"`
}

// EffectPayload captures a single effect application against a target.
type EffectPayload struct {
	AbilityID  string  `json:"abilityId"`
	TargetID   string  `json:"targetId"`
	EffectKind string  `json:"effectKind"`
	Amount     float64 `json:"amount,omitempty"`
	Outcome    string  `json:"outcome"`
}

// CombatFlagPayload captures the reason a mob entered or exited combat.
type CombatFlagPayload struct {
	Reason string `json:"reason,omitempty"`
}

// CastStart publishes an AbilityCastStart telemetry event.
func CastStart(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CastPayload) {
	publish(ctx, pub, EventCastStart, tick, actor, nil, payload)
}

// CastFinish publishes an AbilityCastFinish telemetry event.
func CastFinish(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CastPayload) {
	publish(ctx, pub, EventCastFinish, tick, actor, nil, payload)
}

// CastInterrupt publishes an AbilityCastInterrupt telemetry event.
func CastInterrupt(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CastPayload) {
	publish(ctx, pub, EventCastInterrupt, tick, actor, nil, payload)
}

// EffectApplied publishes an AbilityEffectApplied telemetry event.
func EffectApplied(ctx context.Context, pub logging.Publisher, tick uint64, actor, target logging.EntityRef, payload EffectPayload) {
	publish(ctx, pub, EventEffectApplied, tick, actor, []logging.EntityRef{target}, payload)
}

// EnterCombat publishes a MobEnterCombat telemetry event.
func EnterCombat(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CombatFlagPayload) {
	publish(ctx, pub, EventEnterCombat, tick, actor, nil, payload)
}

// ExitCombat publishes a MobExitCombat telemetry event.
func ExitCombat(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CombatFlagPayload) {
	publish(ctx, pub, EventExitCombat, tick, actor, nil, payload)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, tick uint64, actor logging.EntityRef, targets []logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Tick:     tick,
		Actor:    actor,
		Targets:  targets,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}
