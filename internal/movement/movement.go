// Package movement implements the zone's MovementController: NPC steering
// integration against the navmesh, then per-player buffered input draining
// against the collision world, with the server-authoritative snap-lock
// protocol on excessive client/server drift.
package movement

import (
	"context"
	"math"

	"zonecore/server/internal/collision"
	"zonecore/server/internal/config"
	"zonecore/server/internal/eventlog"
	"zonecore/server/internal/model"
	"zonecore/server/internal/navmesh"
	"zonecore/server/logging"
	movementlog "zonecore/server/logging/movement"
)

// Controller drives NPC and player movement for a zone's fixed tick.
type Controller struct {
	Constants config.Constants
	Mesh      navmesh.Mesh
	World     collision.World
	Log       *eventlog.Log
	Pub       logging.Publisher
}

// StepNPC integrates one NPC's current steering direction against the
// navmesh for one tick. If the navmesh reports the NPC barely moved
// (collided and movementRatio < 0.01), the NPC's current wander is
// interrupted by freezing movingUntil to now.
func (c *Controller) StepNPC(tick uint64, now int64, npc *model.Mob) {
	if npc.NPC == nil {
		return
	}
	dir := npc.NPC.SteerDirection
	if dir.LengthSq() == 0 {
		return
	}

	dt := float64(c.Constants.TickMS) / 1000
	speed := npc.NPC.MoveSpeed
	if speed <= 0 {
		speed = c.Constants.PlayerSpeed
	}
	delta := model.Vec3{X: dir.X * speed * dt, Z: dir.Z * speed * dt}

	result := c.Mesh.MoveAlongSurface(npc.NavNodeRef, npc.Position, delta)
	moved := result.Position != npc.Position
	npc.Position = result.Position
	npc.NavNodeRef = result.NodeRef

	if result.Collided && result.Ratio < 0.01 {
		npc.NPC.MovingUntil = uint64(now)
	}

	if moved {
		payload := movementlog.MovementPayload{
			X: npc.Position.X, Y: npc.Position.Y, Z: npc.Position.Z,
			VelocityY: npc.VelocityY, Grounded: npc.Grounded, NodeRef: npc.NavNodeRef,
		}
		c.Log.Append(tick, movementlog.EventMobMovement, payload)
		movementlog.Moved(context.Background(), c.Pub, tick, npc.EntityRef(), payload)
	}
}

// StepPlayer drains a player's buffered move-input queue for one tick,
// applying the collision world's step simulation in order, enforcing
// idempotence/staleness/lag rules, and triggering the snap-lock protocol on
// excessive drift.
func (c *Controller) StepPlayer(tick uint64, serverTick uint64, player *model.Mob) {
	if player.Player == nil {
		return
	}
	ext := player.Player

	ext.InputBudgetTicks++
	if ext.InputBudgetTicks > c.Constants.MaxInputCatchUpTicks {
		ext.InputBudgetTicks = c.Constants.MaxInputCatchUpTicks
	}

	if len(ext.Pending) == 0 {
		return
	}

	if ext.ClientTickOffset == nil {
		offset := int64(serverTick) - int64(ext.Pending[0].Tick)
		ext.ClientTickOffset = &offset
	}

	attempted := false
	moved := false
	remaining := ext.Pending[:0:0]

	for _, in := range ext.Pending {
		mappedTick := uint64(int64(in.Tick) + *ext.ClientTickOffset)

		if int64(serverTick)-int64(mappedTick) > int64(c.Constants.MaxInputLagTicks) {
			continue // stale: drop
		}
		if mappedTick > serverTick || ext.InputBudgetTicks == 0 {
			remaining = append(remaining, in)
			continue
		}
		if in.Seq <= ext.LastProcessedSeq {
			continue // idempotence: already applied
		}

		attempted = true
		speed := c.Constants.PlayerSpeed
		if in.IsSprinting {
			speed *= c.Constants.PlayerSprintMultiplier
		}
		step := collision.StepInput{
			Position:    player.Position,
			VelocityY:   player.VelocityY,
			Grounded:    player.Grounded,
			DirectionX:  clamp1(in.DirectionX),
			DirectionZ:  clamp1(in.DirectionZ),
			Speed:       speed,
			JumpPressed: in.JumpPressed,
			DeltaTimeMs: c.Constants.TickMS,
		}
		result := c.World.Step(step)

		before := player.Position
		player.Position = result.Position
		player.VelocityY = result.VelocityY
		player.Grounded = result.Grounded
		ext.LastProcessedSeq = in.Seq
		ext.InputBudgetTicks--
		if result.Position != before {
			moved = true
		}

		predicted := model.Vec3{X: in.PredictedX, Y: in.PredictedY, Z: in.PredictedZ}
		drift := result.Position.DistanceSq(predicted)
		if drift > c.Constants.ServerSnapDistance*c.Constants.ServerSnapDistance {
			ext.SnapLocked = true
			target := result.Position
			ext.SnapTarget = &target
			ext.SnapPending = &model.SnapPending{X: target.X, Y: target.Y, Z: target.Z, Seq: in.Seq}
			remaining = nil
			break
		}
	}

	ext.Pending = remaining

	if attempted || moved {
		payload := movementlog.MovementPayload{
			X: player.Position.X, Y: player.Position.Y, Z: player.Position.Z,
			VelocityY: player.VelocityY, Grounded: player.Grounded,
		}
		c.Log.Append(tick, movementlog.EventMobMovement, payload)
		movementlog.Moved(context.Background(), c.Pub, tick, player.EntityRef(), payload)
	}
}

func clamp1(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
