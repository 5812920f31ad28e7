package model

// TargetType enumerates an ability's targeting mode.
type TargetType string

const (
	TargetSelf   TargetType = "self"
	TargetEnemy  TargetType = "enemy"
	TargetAlly   TargetType = "ally"
	TargetGround TargetType = "ground"
)

// AOEShapeKind enumerates the supported area shapes.
type AOEShapeKind string

const (
	ShapeSingle AOEShapeKind = "single"
	ShapeCircle AOEShapeKind = "circle"
	ShapeCone   AOEShapeKind = "cone"
	ShapeLine   AOEShapeKind = "line"
)

// AOEShape describes the geometry of an ability's area of effect. Only the
// fields relevant to Kind are meaningful.
type AOEShape struct {
	Kind     AOEShapeKind
	Radius   float64 // circle
	AngleDeg float64 // cone
	Length   float64 // cone, line
	Width    float64 // line
}

// DirectionMode selects how an ability's facing/aim direction is resolved.
type DirectionMode string

const (
	DirectionFacing DirectionMode = "facing"
	DirectionTarget DirectionMode = "target"
	DirectionCursor DirectionMode = "cursor"
)

// EffectKind enumerates what an ability effect does to its targets.
type EffectKind string

const (
	EffectDamage EffectKind = "damage"
	EffectHeal   EffectKind = "heal"
	EffectStatus EffectKind = "status"
)

// StatusCategory distinguishes buffs from debuffs for aggro propagation.
type StatusCategory string

const (
	StatusBuff   StatusCategory = "buff"
	StatusDebuff StatusCategory = "debuff"
)

// StackMode selects how a repeated status application combines with an
// existing entry.
type StackMode string

const (
	StackReplace     StackMode = "replace"
	StackRefresh     StackMode = "refresh"
	StackStack       StackMode = "stack"
	StackIndependent StackMode = "independent"
)

// StatusEffectDef is the static definition of a status an ability can apply.
type StatusEffectDef struct {
	ID              string
	Category        StatusCategory
	Stacking        StackMode
	MaxStacks       int
	DurationMs      int64
	MaxDurationMs   int64 // clamp applied at apply time
	TickIntervalMs  int64 // 0 == non-ticking
	Modifiers       []StatModifier
	Flags           StatusFlagSet
	BlocksAbilities []string
	Immunities      []string
}

// StatusFlagSet names the boolean gates a status can assert.
type StatusFlagSet struct {
	Stunned     bool
	Silenced    bool
	Disarmed    bool
	Rooted      bool
	Immobilized bool
}

// AbilityEffectDef is one effect an ability applies to its resolved targets.
type AbilityEffectDef struct {
	Kind   EffectKind
	Amount float64         // damage or heal base amount
	Status StatusEffectDef // meaningful when Kind == EffectStatus
}

// ResourceCost is what an ability spends from the caster's pools.
type ResourceCost struct {
	HP      float64
	Mana    float64
	Stamina float64
}

// AbilityDef is the static catalog entry for an ability.
type AbilityDef struct {
	ID           string
	CastTimeMs   int64
	OnGCD        bool
	CooldownMs   int64
	Range        float64
	TargetType   TargetType
	AOEShape     AOEShape
	DirectionMode DirectionMode
	Cost         ResourceCost
	Effects      []AbilityEffectDef
}

// TargetSpec is the client-supplied target descriptor for an ability use.
type TargetSpec struct {
	TargetEntityID string
	TargetPoint    *Vec3
	Direction      *Vec3
}

// AbilityUseRequest mirrors the wire `ability_use` message.
type AbilityUseRequest struct {
	RequestID    string
	Sequence     uint64
	ClientTick   uint64
	ActorID      string
	AbilityID    string
	Target       TargetSpec
	ClientTimeMs int64

	// IgnoreGCD is set internally when validating a request for buffer
	// admission: the GCD check is skipped while deciding whether to buffer,
	// and the flag is cleared again when the buffered request is admitted.
	IgnoreGCD bool
}

// CancelReason mirrors the wire `ability_cancel` reason enum.
type CancelReason string

const (
	CancelManual   CancelReason = "manual"
	CancelMovement CancelReason = "movement"
	CancelOther    CancelReason = "other"
)

// AbilityCancelRequest mirrors the wire `ability_cancel` message.
type AbilityCancelRequest struct {
	RequestID    string
	Sequence     uint64
	ClientTick   uint64
	ActorID      string
	Reason       CancelReason
	ClientTimeMs int64
}

// RejectReason enumerates the ability_ack rejection taxonomy.
type RejectReason string

const (
	RejectIllegal            RejectReason = "illegal"
	RejectCooldown           RejectReason = "cooldown"
	RejectResources          RejectReason = "resources"
	RejectOutOfRange         RejectReason = "out_of_range"
	RejectBufferFull         RejectReason = "buffer_full"
	RejectBufferWindowClosed RejectReason = "buffer_window_closed"
	RejectStunned            RejectReason = "stunned"
	RejectSilenced           RejectReason = "silenced"
	RejectDisarmed           RejectReason = "disarmed"
	RejectRooted             RejectReason = "rooted"
	RejectOther              RejectReason = "other"
)

// TargetOutcome is the per-target result of resolving one ability effect.
type TargetOutcome string

const (
	OutcomeDamage  TargetOutcome = "damage"
	OutcomeHeal    TargetOutcome = "heal"
	OutcomeStatus  TargetOutcome = "status"
	OutcomeNoEffect TargetOutcome = "no_effect"
)

// EffectTargetResult is one (effect index, target) resolution, precomputed
// deterministically at cast acceptance time.
type EffectTargetResult struct {
	EffectIndex int
	TargetID    string
	Outcome     TargetOutcome
	Amount      float64
}

// CastResult is the precomputed, deterministic outcome of a cast, seeded by
// hash(requestId, actorId, serverTick) at acceptance time and applied
// verbatim at resolution time.
type CastResult struct {
	UseCheckOK  bool
	DirectionYaw float64
	Targets     map[string]bool // resolved target set (ids), for event emission
	PerTarget   []EffectTargetResult
}

// ActiveCast is the single in-flight cast a mob may have.
type ActiveCast struct {
	CastID        uint64
	ActorID       string
	AbilityID     string
	RequestID     string
	Sequence      uint64
	ServerTick    uint64
	CastStartTimeMs int64
	CastEndTimeMs   int64
	Result        CastResult
	GCDStartTimeMs int64
	GCDEndTimeMs   int64
	OnGCD          bool
}

// AckSink delivers an AbilityAck to whatever originated the request (a
// websocket session, a test harness, or nothing for synthetic NPC intents).
type AckSink func(AbilityAck)

// BufferedRequest is the one-slot pending-on-GCD request.
type BufferedRequest struct {
	Request     AbilityUseRequest
	ReceivedAtMs int64
	ServerTick  uint64
	Ack         AckSink
}

// AbilityAck mirrors the wire `ability_ack` message.
type AbilityAck struct {
	RequestID      string
	Sequence       uint64
	Accepted       bool
	ServerTimeMs   int64
	ServerTick     uint64
	CastStartTimeMs int64
	CastEndTimeMs   int64
	GCDStartTimeMs  *int64
	GCDEndTimeMs    *int64
	RejectReason    RejectReason
	Result          *CastResult
}

// ActiveStatus is one entry in a mob's status list.
type ActiveStatus struct {
	ID          string
	SourceID    string
	Def         StatusEffectDef
	AppliedAtMs int64
	ExpiresAtMs int64
	Stacks      int
	NextTickAtMs int64 // 0 == non-ticking
	SourceStats PrimaryStats
	TargetStats PrimaryStats
}
