// Package movement publishes the category=Movement replicated events named
// in the zone event log (MobMovement).
package movement

import (
	"context"

	"zonecore/server/logging"
)

const (
	// EventMobMovement mirrors eventlog.TypeMobMovement for router/sink consumers.
	EventMobMovement logging.EventType = "movement.mob_movement"
)

// MovementPayload captures the position/velocity a mob moved to this tick.
type MovementPayload struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	VelocityY float64 `json:"velocityY"`
	Grounded  bool    `json:"grounded"`
	NodeRef   string  `json:"nodeRef,omitempty"`
}

// Moved publishes a MobMovement telemetry event.
func Moved(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload MovementPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMobMovement,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryMovement,
		Payload:  payload,
	})
}
