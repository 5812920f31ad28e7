package movement

import (
	"testing"

	"zonecore/server/internal/collision"
	"zonecore/server/internal/config"
	"zonecore/server/internal/eventlog"
	"zonecore/server/internal/model"
	"zonecore/server/internal/navmesh"
	"zonecore/server/logging"
)

func newController() *Controller {
	return &Controller{
		Constants: config.Defaults(),
		Mesh:      navmesh.Fake{},
		World:     collision.Fake{},
		Log:       eventlog.New(64),
		Pub:       logging.NopPublisher{},
	}
}

func newPlayer(id string) *model.Mob {
	p := model.NewMob(id, model.KindPlayer)
	p.Player = &model.PlayerExtra{}
	return p
}

func TestStepNPCMovesAlongSteerDirection(t *testing.T) {
	c := newController()
	npc := model.NewMob("npc-1", model.KindNPC)
	npc.NPC = &model.NPCExtra{SteerDirection: model.Vec2{X: 1, Z: 0}, MoveSpeed: 4}

	c.StepNPC(1, 0, npc)

	if npc.Position.X <= 0 {
		t.Fatalf("expected npc to move in +X, got %v", npc.Position)
	}
}

func TestStepNPCIdleDoesNotMove(t *testing.T) {
	c := newController()
	npc := model.NewMob("npc-1", model.KindNPC)
	npc.NPC = &model.NPCExtra{}

	c.StepNPC(1, 0, npc)

	if npc.Position != (model.Vec3{}) {
		t.Fatalf("expected no movement with zero steer direction")
	}
}

func TestStepPlayerAppliesQueuedInputInOrder(t *testing.T) {
	c := newController()
	player := newPlayer("p1")
	player.Player.Pending = []model.QueuedMoveInput{
		{DirectionX: 1, Seq: 1, Tick: 10},
	}

	c.StepPlayer(1, 10, player)

	if player.Position.X <= 0 {
		t.Fatalf("expected player to move, got %v", player.Position)
	}
	if player.Player.LastProcessedSeq != 1 {
		t.Fatalf("expected lastProcessedSeq updated to 1")
	}
	if len(player.Player.Pending) != 0 {
		t.Fatalf("expected queue drained")
	}
}

func TestStepPlayerDropsStaleInput(t *testing.T) {
	c := newController()
	player := newPlayer("p1")
	player.Player.Pending = []model.QueuedMoveInput{
		{DirectionX: 1, Seq: 1, Tick: 0},
	}
	zero := int64(0)
	player.Player.ClientTickOffset = &zero

	c.StepPlayer(1, uint64(c.Constants.MaxInputLagTicks)+100, player)

	if player.Player.LastProcessedSeq != 0 {
		t.Fatalf("expected stale input dropped without processing")
	}
	if len(player.Player.Pending) != 0 {
		t.Fatalf("expected stale input removed from queue")
	}
}

func TestStepPlayerLeavesFutureInputQueued(t *testing.T) {
	c := newController()
	player := newPlayer("p1")
	player.Player.Pending = []model.QueuedMoveInput{
		{DirectionX: 1, Seq: 1, Tick: 50},
	}
	zero := int64(0)
	player.Player.ClientTickOffset = &zero

	c.StepPlayer(1, 10, player)

	if len(player.Player.Pending) != 1 {
		t.Fatalf("expected future input left queued, got %d", len(player.Player.Pending))
	}
	if player.Player.LastProcessedSeq != 0 {
		t.Fatalf("expected no processing of future input")
	}
}

func TestStepPlayerSkipsAlreadyProcessedSeq(t *testing.T) {
	c := newController()
	player := newPlayer("p1")
	player.Player.LastProcessedSeq = 5
	player.Player.Pending = []model.QueuedMoveInput{
		{DirectionX: 1, Seq: 5, Tick: 10},
		{DirectionX: 1, Seq: 6, Tick: 10},
	}

	c.StepPlayer(1, 10, player)

	if player.Player.LastProcessedSeq != 6 {
		t.Fatalf("expected only seq 6 processed, got %d", player.Player.LastProcessedSeq)
	}
}

type snappingWorld struct{}

func (snappingWorld) Step(in collision.StepInput) collision.StepResult {
	return collision.StepResult{Position: model.Vec3{X: 100}, Grounded: true, MovementRatio: 1}
}
func (snappingWorld) LineOfSight(from, to model.Vec3) bool { return true }

func TestStepPlayerSnapLocksOnExcessiveDrift(t *testing.T) {
	c := newController()
	c.World = snappingWorld{}
	player := newPlayer("p1")
	player.Player.Pending = []model.QueuedMoveInput{
		{DirectionX: 1, Seq: 1, Tick: 10, PredictedX: 0},
		{DirectionX: 1, Seq: 2, Tick: 11, PredictedX: 0},
	}

	c.StepPlayer(1, 10, player)

	if !player.Player.SnapLocked {
		t.Fatalf("expected snap lock on excessive drift")
	}
	if player.Player.SnapPending == nil || player.Player.SnapPending.Seq != 1 {
		t.Fatalf("expected snap pending recorded for seq 1")
	}
	if len(player.Player.Pending) != 0 {
		t.Fatalf("expected remaining queued inputs dropped after snap lock")
	}
}
