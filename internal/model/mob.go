package model

import "zonecore/server/logging"

// FactionID identifies a mob's allegiance; equal ids mean ally, distinct
// ids mean enemy.
type FactionID string

// Resource is a clamped current/max pool (hp, mana, stamina).
type Resource struct {
	Current float64 `json:"current"`
	Max     float64 `json:"max"`
}

// Clamp restricts Current to [0, Max].
func (r *Resource) Clamp() {
	if r.Max < 0 {
		r.Max = 0
	}
	r.Current = Clamp(r.Current, 0, r.Max)
}

// PrimaryStats are the four base attributes that derived stats fold from.
type PrimaryStats struct {
	Strength     float64 `json:"strength"`
	Dexterity    float64 `json:"dexterity"`
	Intelligence float64 `json:"intelligence"`
	Constitution float64 `json:"constitution"`
}

// Clamp enforces the "each >= 1 after clamping" invariant.
func (p *PrimaryStats) Clamp() {
	p.Strength = clampMin1(p.Strength)
	p.Dexterity = clampMin1(p.Dexterity)
	p.Intelligence = clampMin1(p.Intelligence)
	p.Constitution = clampMin1(p.Constitution)
}

func clampMin1(v float64) float64 {
	if v < 1 {
		return 1
	}
	return v
}

// AbilityState is the gating surface consulted by the ability engine and
// mirrored (in spirit) by the client's prediction state.
type AbilityState struct {
	CastStartTimeMs           int64
	CastEndTimeMs             int64
	CastAbilityID             string // empty string == none
	CastID                    uint64 // 0 == none
	GCDEndTimeMs              int64
	InternalCooldownEndTimeMs int64
	LastHostileActionTimeMs   int64
}

// StatModifierOp selects how a modifier combines with the base value.
type StatModifierOp string

const (
	ModifierAdd      StatModifierOp = "add"
	ModifierMul      StatModifierOp = "mul"
	ModifierOverride StatModifierOp = "override"
)

// Stat names folded by the stats controller.
type StatName string

const (
	StatStrength     StatName = "strength"
	StatDexterity    StatName = "dexterity"
	StatIntelligence StatName = "intelligence"
	StatConstitution StatName = "constitution"
	StatMaxHP        StatName = "maxHp"
	StatMaxMana      StatName = "maxMana"
	StatMaxStamina   StatName = "maxStamina"
)

// StatModifier is one contribution from a modifier source (equipment, a
// status effect snapshot, etc) to a named stat.
type StatModifier struct {
	Stat   StatName
	Op     StatModifierOp
	Amount float64
}

// DerivedStats holds the folded, clamped secondary stats the stats
// controller produces each time it is recomputed.
type DerivedStats struct {
	MaxHP      float64
	MaxMana    float64
	MaxStamina float64
}

// Mob is the shared representation for players and NPCs: a tagged variant
// with a shared record header. Kind distinguishes the two and Player/NPC
// carry the capability-specific extra state.
type Mob struct {
	ID         string
	Kind       MobKind
	Position   Vec3
	FacingYaw  float64
	VelocityY  float64
	Grounded   bool
	NavNodeRef string
	FactionID  FactionID

	HP      Resource
	Mana    Resource
	Stamina Resource
	Primary PrimaryStats

	Ability    AbilityState
	Cooldowns  map[string]int64 // abilityId -> absolute ready-time ms
	ActiveCast *ActiveCast
	Buffered   *BufferedRequest

	Statuses   []ActiveStatus
	StatusFlag StatusFlags // lazily recomputed cache, see internal/status

	Derived     DerivedStats
	StatsDirty  bool
	ModSources  []StatModifierSource // equipment/buffs contributing secondary stats

	VisibleTargets []string // sorted; players only

	Aggro        map[string]float64 // NPCs only: sourceID -> raw value
	AggroPercent map[string]int     // cached projection, NPCs only

	InCombat bool

	Player *PlayerExtra
	NPC    *NPCExtra
}

// MobKind distinguishes the two Mob variants.
type MobKind int

const (
	KindPlayer MobKind = iota
	KindNPC
)

// NewMob constructs a zeroed mob with its maps initialized.
func NewMob(id string, kind MobKind) *Mob {
	return &Mob{
		ID:        id,
		Kind:      kind,
		Cooldowns: make(map[string]int64),
		Aggro:     make(map[string]float64),
	}
}

// EntityRef builds the logging.EntityRef identifying this mob, for
// subsystems that publish telemetry (internal/ability, internal/combat).
func (m *Mob) EntityRef() logging.EntityRef {
	kind := logging.EntityKind("player")
	if m.Kind == KindNPC {
		kind = logging.EntityKind("npc")
	}
	return logging.EntityRef{ID: m.ID, Kind: kind}
}

// StatModifierSource is a named contributor of StatModifier values (gear,
// buffs, debuffs). Equipment is out of this core's scope; status snapshots
// are the only producer implemented here (see internal/status).
type StatModifierSource struct {
	SourceID  string
	Modifiers []StatModifier
}

// StatusFlags is the lazily-recomputed cache of boolean gates and tag sets
// derived from a mob's active statuses.
type StatusFlags struct {
	Stunned      bool
	Silenced     bool
	Disarmed     bool
	Rooted       bool
	Immobilized  bool
	BlockedAbil  map[string]bool
	Immunities   map[string]bool
}

// PlayerExtra holds player-only state: the pending input queue and
// snap-lock protocol.
type PlayerExtra struct {
	Pending          []QueuedMoveInput
	InputBudgetTicks int
	ClientTickOffset *int64
	LastProcessedSeq uint64
	SnapLocked       bool
	SnapTarget       *Vec3
	SnapPending      *SnapPending
	DisconnectedAt   *int64 // server time ms the disconnect grace timer started

	SelectedTargetID string // last `target_change` sent by the client; advisory only

	// RejectedInputCount counts consecutive move inputs refused because
	// Pending was already full; reset on the next accepted input. Drives
	// the command-queue backpressure warning in internal/zone.
	RejectedInputCount uint64
}

// SnapPending is the authoritative correction awaiting client echo.
type SnapPending struct {
	X, Y, Z float64
	Seq     uint64
}

// QueuedMoveInput is one buffered client move intent.
type QueuedMoveInput struct {
	DirectionX   float64
	DirectionZ   float64
	JumpPressed  bool
	IsSprinting  bool
	Seq          uint64
	Tick         uint64 // client's view of the server tick
	PredictedX   float64
	PredictedY   float64
	PredictedZ   float64
}

// NPCExtra holds NPC-only AI state.
type NPCExtra struct {
	Archetype string
	ScriptRef string // optional Lua decision script name (internal/ai/script)

	MoveSpeed float64

	Awareness      NPCAwareness
	TargetSelected NPCTargetSelection
	Behavior       NPCBehavior
	SteerDirection Vec2

	NextDecisionAt uint64
	MovingUntil    uint64
	TargetYaw      float64

	PathWaypoints   []Vec2
	PathIndex       int
	PathTargetPos   Vec3
	PathRecomputeAt int64

	AbilityIntent *AbilityUseRequest

	RespawnAtMs int64 // >0 when dead and awaiting respawn
	SpawnPoint  Vec3
}

// NPCAwareness is the Sensing system's output.
type NPCAwareness struct {
	InCombat     bool
	TopAggroID   string
	HasTopAggro  bool
}

// NPCTargetSelection is the TargetSelection system's output.
type NPCTargetSelection struct {
	HasTarget bool
	TargetID  string
	Position  Vec3
	Yaw       float64
}

// NPCBehavior enumerates the Decision system's output states.
type NPCBehavior string

const (
	BehaviorIdle   NPCBehavior = "idle"
	BehaviorChase  NPCBehavior = "chase"
	BehaviorWander NPCBehavior = "wander"
)
