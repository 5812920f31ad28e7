// Package proto defines the wire message shapes for the zone session: a
// Ver-stamped Type discriminator per message, encode/decode helpers built on
// encoding/json, and outbound frames built as anonymous structs so the wire
// Type constant can't drift from the Go type.
package proto

import (
	"encoding/json"
	"fmt"

	"zonecore/server/internal/eventlog"
	"zonecore/server/internal/model"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	typeMove                  = "move"
	typeAbilityUse            = "ability_use"
	typeAbilityCancel         = "ability_cancel"
	typeTargetChange          = "target_change"
	typeEventStreamResyncReq  = "event_stream_resync_request"
	typeSnapAck               = "snap_ack"
	typeSnap                  = "snap"
	typeAbilityAck            = "ability_ack"
	typeEventStreamBatch      = "event_stream_batch"
	typeEventStreamResyncResp = "event_stream_resync_response"
	typeReplicatedState       = "replicated_state"
)

// Exported aliases for outbound message type identifiers.
const (
	TypeSnap                  = typeSnap
	TypeAbilityAck             = typeAbilityAck
	TypeEventStreamBatch       = typeEventStreamBatch
	TypeEventStreamResyncResp  = typeEventStreamResyncResp
	TypeReplicatedState        = typeReplicatedState
)

// envelope is decoded first to discriminate the inbound message kind before
// unmarshaling into its concrete shape.
type envelope struct {
	Type string `json:"type"`
}

// MoveInput mirrors the wire `move` message.
type MoveInput struct {
	DirectionX  float64 `json:"directionX"`
	DirectionZ  float64 `json:"directionZ"`
	JumpPressed bool    `json:"jumpPressed"`
	IsSprinting bool    `json:"isSprinting"`
	Seq         uint64  `json:"seq"`
	Tick        uint64  `json:"tick"`
	PredictedX  float64 `json:"predictedX"`
	PredictedY  float64 `json:"predictedY"`
	PredictedZ  float64 `json:"predictedZ"`
}

// ToModel converts a decoded MoveInput into the internal queued-input shape.
func (m MoveInput) ToModel() model.QueuedMoveInput {
	return model.QueuedMoveInput{
		DirectionX:  m.DirectionX,
		DirectionZ:  m.DirectionZ,
		JumpPressed: m.JumpPressed,
		IsSprinting: m.IsSprinting,
		Seq:         m.Seq,
		Tick:        m.Tick,
		PredictedX:  m.PredictedX,
		PredictedY:  m.PredictedY,
		PredictedZ:  m.PredictedZ,
	}
}

// targetSpec mirrors the wire `target` object embedded in ability_use.
type targetSpec struct {
	TargetEntityID string  `json:"targetEntityId,omitempty"`
	TargetPoint    *vec3   `json:"targetPoint,omitempty"`
	Direction      *vec3   `json:"direction,omitempty"`
}

type vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v vec3) toModel() model.Vec3 { return model.Vec3{X: v.X, Y: v.Y, Z: v.Z} }

func (t targetSpec) toModel() model.TargetSpec {
	out := model.TargetSpec{TargetEntityID: t.TargetEntityID}
	if t.TargetPoint != nil {
		p := t.TargetPoint.toModel()
		out.TargetPoint = &p
	}
	if t.Direction != nil {
		d := t.Direction.toModel()
		out.Direction = &d
	}
	return out
}

// AbilityUse mirrors the wire `ability_use` message.
type AbilityUse struct {
	Type         string     `json:"type"`
	RequestID    string     `json:"requestId"`
	Sequence     uint64     `json:"sequence"`
	ClientTick   uint64     `json:"clientTick"`
	ActorID      string     `json:"actorId"`
	AbilityID    string     `json:"abilityId"`
	Target       targetSpec `json:"target"`
	ClientTimeMs int64      `json:"clientTimeMs"`
}

// ToModel converts a decoded AbilityUse into the internal request shape.
func (a AbilityUse) ToModel() model.AbilityUseRequest {
	return model.AbilityUseRequest{
		RequestID:    a.RequestID,
		Sequence:     a.Sequence,
		ClientTick:   a.ClientTick,
		ActorID:      a.ActorID,
		AbilityID:    a.AbilityID,
		Target:       a.Target.toModel(),
		ClientTimeMs: a.ClientTimeMs,
	}
}

// AbilityCancel mirrors the wire `ability_cancel` message.
type AbilityCancel struct {
	Type         string             `json:"type"`
	RequestID    string             `json:"requestId"`
	Sequence     uint64             `json:"sequence"`
	ClientTick   uint64             `json:"clientTick"`
	ActorID      string             `json:"actorId"`
	Reason       model.CancelReason `json:"reason"`
	ClientTimeMs int64              `json:"clientTimeMs"`
}

// ToModel converts a decoded AbilityCancel into the internal request shape.
func (a AbilityCancel) ToModel() model.AbilityCancelRequest {
	return model.AbilityCancelRequest{
		RequestID:    a.RequestID,
		Sequence:     a.Sequence,
		ClientTick:   a.ClientTick,
		ActorID:      a.ActorID,
		Reason:       a.Reason,
		ClientTimeMs: a.ClientTimeMs,
	}
}

// TargetChange mirrors the wire `target_change` message.
type TargetChange struct {
	TargetEntityID string `json:"targetEntityId,omitempty"`
}

// EventStreamResyncRequest mirrors the wire `event_stream_resync_request`
// message.
type EventStreamResyncRequest struct {
	SinceEventID uint64 `json:"sinceEventId"`
}

// SnapAck mirrors the client's echo of a snap correction's seq.
type SnapAck struct {
	Seq uint64 `json:"seq"`
}

// DecodeInbound inspects payload's "type" field and decodes it into one of
// the inbound message shapes. The returned value's concrete type is one of
// MoveInput, AbilityUse, AbilityCancel, TargetChange,
// EventStreamResyncRequest, or SnapAck.
func DecodeInbound(payload []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("proto: decode envelope: %w", err)
	}

	switch env.Type {
	case typeMove, "":
		var msg MoveInput
		return msg, json.Unmarshal(payload, &msg)
	case typeAbilityUse:
		var msg AbilityUse
		return msg, json.Unmarshal(payload, &msg)
	case typeAbilityCancel:
		var msg AbilityCancel
		return msg, json.Unmarshal(payload, &msg)
	case typeTargetChange:
		var msg TargetChange
		return msg, json.Unmarshal(payload, &msg)
	case typeEventStreamResyncReq:
		var msg EventStreamResyncRequest
		return msg, json.Unmarshal(payload, &msg)
	case typeSnapAck:
		var msg SnapAck
		return msg, json.Unmarshal(payload, &msg)
	default:
		return nil, fmt.Errorf("proto: unknown inbound type %q", env.Type)
	}
}

// Snap mirrors the wire `snap` message.
type Snap struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Z   float64 `json:"z"`
	Seq uint64  `json:"seq"`
}

// EncodeSnap renders a snap correction frame.
func EncodeSnap(msg Snap) ([]byte, error) {
	frame := struct {
		Ver  int     `json:"ver"`
		Type string  `json:"type"`
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
		Z    float64 `json:"z"`
		Seq  uint64  `json:"seq"`
	}{Ver: Version, Type: typeSnap, X: msg.X, Y: msg.Y, Z: msg.Z, Seq: msg.Seq}
	return json.Marshal(frame)
}

// AbilityAck mirrors the wire `ability_ack` message, built directly from the
// internal model.AbilityAck the ability engine produces.
type AbilityAck struct {
	RequestID       string             `json:"requestId"`
	Sequence        uint64             `json:"sequence"`
	Accepted        bool               `json:"accepted"`
	ServerTimeMs    int64              `json:"serverTimeMs"`
	ServerTick      uint64             `json:"serverTick"`
	CastStartTimeMs int64              `json:"castStartTimeMs"`
	CastEndTimeMs   int64              `json:"castEndTimeMs"`
	GCDStartTimeMs  *int64             `json:"gcdStartTimeMs,omitempty"`
	GCDEndTimeMs    *int64             `json:"gcdEndTimeMs,omitempty"`
	RejectReason    model.RejectReason `json:"rejectReason,omitempty"`
	Result          *model.CastResult  `json:"result,omitempty"`
}

// AbilityAckFromModel converts the engine's ack into its wire shape.
func AbilityAckFromModel(a model.AbilityAck) AbilityAck {
	return AbilityAck{
		RequestID:       a.RequestID,
		Sequence:        a.Sequence,
		Accepted:        a.Accepted,
		ServerTimeMs:    a.ServerTimeMs,
		ServerTick:      a.ServerTick,
		CastStartTimeMs: a.CastStartTimeMs,
		CastEndTimeMs:   a.CastEndTimeMs,
		GCDStartTimeMs:  a.GCDStartTimeMs,
		GCDEndTimeMs:    a.GCDEndTimeMs,
		RejectReason:    a.RejectReason,
		Result:          a.Result,
	}
}

// EncodeAbilityAck renders an ability_ack frame.
func EncodeAbilityAck(msg AbilityAck) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		AbilityAck
	}{Ver: Version, Type: typeAbilityAck, AbilityAck: msg}
	return json.Marshal(frame)
}

// EventStreamBatch mirrors the wire `event_stream_batch` message.
type EventStreamBatch struct {
	FromEventID uint64           `json:"fromEventId"`
	ToEventID   uint64           `json:"toEventId"`
	ServerTick  uint64           `json:"serverTick"`
	Events      []eventlog.Entry `json:"events"`
}

// EncodeEventStreamBatch renders an event_stream_batch frame.
func EncodeEventStreamBatch(msg EventStreamBatch) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		EventStreamBatch
	}{Ver: Version, Type: typeEventStreamBatch, EventStreamBatch: msg}
	return json.Marshal(frame)
}

// EncodeEventStreamResyncResponse renders an event_stream_resync_response
// frame; shape-identical to the batch frame but with a distinct Type so the
// client can tell a push from a resync reply apart.
func EncodeEventStreamResyncResponse(msg EventStreamBatch) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		EventStreamBatch
	}{Ver: Version, Type: typeEventStreamResyncResp, EventStreamBatch: msg}
	return json.Marshal(frame)
}

// ReplicatedMob is one mob's replicated fields: position, facing, resources,
// in-flight cast, combat flag, visible-target set, and the NPC
// aggro-percentage projection.
type ReplicatedMob struct {
	ID             string         `json:"id"`
	Kind           string         `json:"kind"`
	X              float64        `json:"x"`
	Y              float64        `json:"y"`
	Z              float64        `json:"z"`
	FacingYaw      float64        `json:"facingYaw"`
	HP             model.Resource `json:"hp"`
	Mana           model.Resource `json:"mana"`
	Stamina        model.Resource `json:"stamina"`
	CastStartMs    int64          `json:"castStartMs,omitempty"`
	CastEndMs      int64          `json:"castEndMs,omitempty"`
	CastAbilityID  string         `json:"castAbilityId,omitempty"`
	InCombat       bool           `json:"inCombat"`
	VisibleTargets []string       `json:"visibleTargets,omitempty"`
	AggroPercent   map[string]int `json:"aggroPercent,omitempty"`
}

// ReplicatedMobFromModel projects a mob's authoritative state into its
// replicated wire shape.
func ReplicatedMobFromModel(m *model.Mob) ReplicatedMob {
	kind := "player"
	if m.Kind == model.KindNPC {
		kind = "npc"
	}
	return ReplicatedMob{
		ID:             m.ID,
		Kind:           kind,
		X:              m.Position.X,
		Y:              m.Position.Y,
		Z:              m.Position.Z,
		FacingYaw:      m.FacingYaw,
		HP:             m.HP,
		Mana:           m.Mana,
		Stamina:        m.Stamina,
		CastStartMs:    m.Ability.CastStartTimeMs,
		CastEndMs:      m.Ability.CastEndTimeMs,
		CastAbilityID:  m.Ability.CastAbilityID,
		InCombat:       m.InCombat,
		VisibleTargets: m.VisibleTargets,
		AggroPercent:   m.AggroPercent,
	}
}

// ReplicatedState mirrors the wire "Replicated state" payload: the full set
// of replicated mobs at the tick the snapshot was taken.
type ReplicatedState struct {
	ServerTick uint64          `json:"serverTick"`
	Mobs       []ReplicatedMob `json:"mobs"`
}

// EncodeReplicatedState renders a replicated-state frame.
func EncodeReplicatedState(msg ReplicatedState) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		ReplicatedState
	}{Ver: Version, Type: typeReplicatedState, ReplicatedState: msg}
	return json.Marshal(frame)
}
