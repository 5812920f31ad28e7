package proto

import (
	"encoding/json"
	"testing"

	"zonecore/server/internal/eventlog"
	"zonecore/server/internal/model"
	"zonecore/server/logging"
)

func TestDecodeInboundMoveDefaultsToMoveType(t *testing.T) {
	raw := []byte(`{"directionX":1,"directionZ":0,"seq":4,"tick":10}`)
	msg, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	move, ok := msg.(MoveInput)
	if !ok {
		t.Fatalf("expected MoveInput, got %T", msg)
	}
	if move.Seq != 4 || move.Tick != 10 {
		t.Fatalf("unexpected move fields: %+v", move)
	}
}

func TestDecodeInboundAbilityUseConvertsTargetToModel(t *testing.T) {
	raw := []byte(`{"type":"ability_use","requestId":"r1","sequence":2,"actorId":"p1","abilityId":"fireball","target":{"targetEntityId":"npc-1"}}`)
	msg, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	use, ok := msg.(AbilityUse)
	if !ok {
		t.Fatalf("expected AbilityUse, got %T", msg)
	}
	req := use.ToModel()
	if req.RequestID != "r1" || req.AbilityID != "fireball" || req.Target.TargetEntityID != "npc-1" {
		t.Fatalf("unexpected converted request: %+v", req)
	}
}

func TestDecodeInboundAbilityCancelConvertsReason(t *testing.T) {
	raw := []byte(`{"type":"ability_cancel","requestId":"r2","reason":"movement"}`)
	msg, err := DecodeInbound(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	cancel, ok := msg.(AbilityCancel)
	if !ok {
		t.Fatalf("expected AbilityCancel, got %T", msg)
	}
	if cancel.ToModel().Reason != model.CancelMovement {
		t.Fatalf("expected movement cancel reason, got %v", cancel.Reason)
	}
}

func TestDecodeInboundUnknownTypeErrors(t *testing.T) {
	if _, err := DecodeInbound([]byte(`{"type":"bogus"}`)); err == nil {
		t.Fatalf("expected error for unknown inbound type")
	}
}

func TestEncodeAbilityAckRoundTripsRejectReason(t *testing.T) {
	ack := model.AbilityAck{RequestID: "r3", Accepted: false, RejectReason: model.RejectOutOfRange}
	raw, err := EncodeAbilityAck(AbilityAckFromModel(ack))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded struct {
		Type         string `json:"type"`
		RejectReason string `json:"rejectReason"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != typeAbilityAck || decoded.RejectReason != string(model.RejectOutOfRange) {
		t.Fatalf("unexpected encoded ack: %+v", decoded)
	}
}

func TestEncodeEventStreamBatchCarriesEvents(t *testing.T) {
	batch := EventStreamBatch{
		FromEventID: 1,
		ToEventID:   2,
		ServerTick:  5,
		Events: []eventlog.Entry{
			{Seq: 1, Tick: 5, Type: logging.EventType("combat.ability_cast_finish")},
			{Seq: 2, Tick: 5, Type: logging.EventType("combat.ability_effect_applied")},
		},
	}
	raw, err := EncodeEventStreamBatch(batch)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded struct {
		Type   string `json:"type"`
		Events []struct {
			Seq uint64 `json:"Seq"`
		} `json:"events"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != typeEventStreamBatch || len(decoded.Events) != 2 {
		t.Fatalf("unexpected encoded batch: %+v", decoded)
	}
}

func TestReplicatedMobFromModelProjectsVisibleTargetsAndAggro(t *testing.T) {
	m := model.NewMob("npc-1", model.KindNPC)
	m.VisibleTargets = []string{"p1", "p2"}
	m.AggroPercent = map[string]int{"p1": 70, "p2": 30}

	rm := ReplicatedMobFromModel(m)
	if rm.Kind != "npc" || len(rm.VisibleTargets) != 2 || rm.AggroPercent["p1"] != 70 {
		t.Fatalf("unexpected replicated mob: %+v", rm)
	}
}
