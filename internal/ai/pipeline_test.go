package ai

import (
	"math"
	"math/rand"
	"testing"

	"zonecore/server/internal/config"
	"zonecore/server/internal/model"
	"zonecore/server/internal/navmesh"
)

func newNPC(id string) *model.Mob {
	npc := model.NewMob(id, model.KindNPC)
	npc.NPC = &model.NPCExtra{}
	return npc
}

func TestSensingCopiesInCombatAndTopAggro(t *testing.T) {
	npc := newNPC("npc-1")
	npc.InCombat = true
	npc.Aggro["player-1"] = 5
	npc.Aggro["player-2"] = 12

	Sensing(npc)

	if !npc.NPC.Awareness.InCombat {
		t.Fatalf("expected InCombat copied")
	}
	if npc.NPC.Awareness.TopAggroID != "player-2" {
		t.Fatalf("expected top aggro player-2, got %s", npc.NPC.Awareness.TopAggroID)
	}
}

func TestTargetSelectionClearsWhenNotInCombat(t *testing.T) {
	npc := newNPC("npc-1")
	npc.NPC.Awareness = model.NPCAwareness{InCombat: false}
	npc.NPC.TargetSelected = model.NPCTargetSelection{HasTarget: true}

	TargetSelection(npc, func(string) (*model.Mob, bool) { return nil, false })

	if npc.NPC.TargetSelected.HasTarget {
		t.Fatalf("expected target cleared")
	}
}

func TestTargetSelectionSnapshotsLiveTopAggroTarget(t *testing.T) {
	npc := newNPC("npc-1")
	player := model.NewMob("player-1", model.KindPlayer)
	player.HP = model.Resource{Current: 50, Max: 50}
	player.Position = model.Vec3{X: 10, Z: 0}
	npc.NPC.Awareness = model.NPCAwareness{InCombat: true, HasTopAggro: true, TopAggroID: player.ID}

	TargetSelection(npc, func(id string) (*model.Mob, bool) {
		if id == player.ID {
			return player, true
		}
		return nil, false
	})

	if !npc.NPC.TargetSelected.HasTarget || npc.NPC.TargetSelected.TargetID != player.ID {
		t.Fatalf("expected target snapshot of %s", player.ID)
	}
	if npc.NPC.TargetSelected.Position != player.Position {
		t.Fatalf("expected position snapshot to match target position")
	}
}

func TestDecisionChasesThenGoesIdleInMeleeRange(t *testing.T) {
	c := config.Defaults()
	npc := newNPC("npc-1")
	npc.NPC.TargetSelected = model.NPCTargetSelection{HasTarget: true, Position: model.Vec3{X: 10}}

	Decision(npc, 0, c, rand.New(rand.NewSource(1)), nil)
	if npc.NPC.Behavior != model.BehaviorChase {
		t.Fatalf("expected chase behavior, got %s", npc.NPC.Behavior)
	}

	npc.NPC.TargetSelected.Position = model.Vec3{X: 1}
	Decision(npc, 0, c, rand.New(rand.NewSource(1)), nil)
	if npc.NPC.Behavior != model.BehaviorIdle {
		t.Fatalf("expected idle behavior inside melee range, got %s", npc.NPC.Behavior)
	}
}

func TestDecisionWandersThenIdlesOnCadence(t *testing.T) {
	c := config.Defaults()
	npc := newNPC("npc-1")
	rng := rand.New(rand.NewSource(7))

	Decision(npc, 0, c, rng, nil)
	if npc.NPC.Behavior != model.BehaviorWander {
		t.Fatalf("expected wander behavior, got %s", npc.NPC.Behavior)
	}

	Decision(npc, int64(npc.NPC.MovingUntil)+1, c, rng, nil)
	if npc.NPC.Behavior != model.BehaviorIdle {
		t.Fatalf("expected idle behavior after moving window elapses, got %s", npc.NPC.Behavior)
	}
}

func TestSteeringWanderUsesTargetYaw(t *testing.T) {
	c := config.Defaults()
	npc := newNPC("npc-1")
	npc.NPC.Behavior = model.BehaviorWander
	npc.NPC.TargetYaw = math.Pi / 2

	Steering(npc, 0, navmesh.Fake{}, c)

	want := model.Vec2{X: math.Sin(math.Pi / 2), Z: math.Cos(math.Pi / 2)}
	if math.Abs(npc.NPC.SteerDirection.X-want.X) > 1e-9 || math.Abs(npc.NPC.SteerDirection.Z-want.Z) > 1e-9 {
		t.Fatalf("expected direction %v, got %v", want, npc.NPC.SteerDirection)
	}
}

func TestSteeringIdlePreservesFacingTowardTarget(t *testing.T) {
	c := config.Defaults()
	npc := newNPC("npc-1")
	npc.NPC.Behavior = model.BehaviorIdle
	npc.NPC.TargetSelected = model.NPCTargetSelection{HasTarget: true, Yaw: 1.23}

	Steering(npc, 0, navmesh.Fake{}, c)

	if npc.NPC.SteerDirection != (model.Vec2{}) {
		t.Fatalf("expected zero steer direction while idle")
	}
	if npc.FacingYaw != 1.23 {
		t.Fatalf("expected facing preserved toward target, got %v", npc.FacingYaw)
	}
}

func TestSteeringChaseFollowsSmoothPathWaypoints(t *testing.T) {
	c := config.Defaults()
	npc := newNPC("npc-1")
	npc.Position = model.Vec3{X: 0, Z: 0}
	npc.NPC.Behavior = model.BehaviorChase
	npc.NPC.TargetSelected = model.NPCTargetSelection{HasTarget: true, Position: model.Vec3{X: 10, Z: 0}}

	Steering(npc, 0, navmesh.Fake{}, c)

	if len(npc.NPC.PathWaypoints) == 0 {
		t.Fatalf("expected a computed path")
	}
	if npc.NPC.SteerDirection.X <= 0 {
		t.Fatalf("expected steering direction pointed toward +X, got %v", npc.NPC.SteerDirection)
	}
}

func TestSteeringChaseRecomputesPathOnlyAfterThresholdAndCooldown(t *testing.T) {
	c := config.Defaults()
	npc := newNPC("npc-1")
	npc.NPC.Behavior = model.BehaviorChase
	npc.NPC.TargetSelected = model.NPCTargetSelection{HasTarget: true, Position: model.Vec3{X: 10, Z: 0}}

	Steering(npc, 0, navmesh.Fake{}, c)
	firstRecompute := npc.NPC.PathRecomputeAt

	// Small drift under threshold and within cooldown: no recompute.
	npc.NPC.TargetSelected.Position = model.Vec3{X: 10.1, Z: 0}
	Steering(npc, 10, navmesh.Fake{}, c)
	if npc.NPC.PathRecomputeAt != firstRecompute {
		t.Fatalf("expected no recompute for small drift within cooldown")
	}

	// Large drift past cooldown: recompute.
	npc.NPC.TargetSelected.Position = model.Vec3{X: 20, Z: 0}
	Steering(npc, int64(c.NPCPathRecomputeCooldownMs)+10, navmesh.Fake{}, c)
	if npc.NPC.PathRecomputeAt == firstRecompute {
		t.Fatalf("expected recompute after threshold drift and cooldown elapsed")
	}
}
