package aggro

import (
	"testing"

	"zonecore/server/internal/model"
)

func TestAddAccumulates(t *testing.T) {
	npc := model.NewMob("npc-1", model.KindNPC)
	Add(npc, "player-1", 5)
	Add(npc, "player-1", 3)
	if npc.Aggro["player-1"] != 8 {
		t.Fatalf("expected 8, got %v", npc.Aggro["player-1"])
	}
}

func TestAddIgnoresNonPositiveDelta(t *testing.T) {
	npc := model.NewMob("npc-1", model.KindNPC)
	Add(npc, "player-1", 0)
	Add(npc, "player-1", -5)
	if len(npc.Aggro) != 0 {
		t.Fatalf("expected no entry, got %v", npc.Aggro)
	}
}

func TestPercentagesClampsToAtLeastOne(t *testing.T) {
	npc := model.NewMob("npc-1", model.KindNPC)
	Add(npc, "top", 100)
	Add(npc, "tiny", 0.01)
	pct := Percentages(npc)
	if pct["top"] != 100 {
		t.Fatalf("expected top=100, got %v", pct["top"])
	}
	if pct["tiny"] < 1 {
		t.Fatalf("expected tiny to be clamped to >=1, got %v", pct["tiny"])
	}
}

func TestPruneRemovesAbsentIDs(t *testing.T) {
	npc := model.NewMob("npc-1", model.KindNPC)
	Add(npc, "a", 1)
	Add(npc, "b", 1)
	Prune(npc, map[string]bool{"a": true})
	if _, ok := npc.Aggro["b"]; ok {
		t.Fatalf("expected b to be pruned")
	}
	if _, ok := npc.Aggro["a"]; !ok {
		t.Fatalf("expected a to remain")
	}
}

func TestTopPicksHighestValue(t *testing.T) {
	npc := model.NewMob("npc-1", model.KindNPC)
	Add(npc, "a", 5)
	Add(npc, "b", 9)
	id, ok := Top(npc)
	if !ok || id != "b" {
		t.Fatalf("expected b, got %q ok=%v", id, ok)
	}
}
