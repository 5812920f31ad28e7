package simulation

import (
	"context"

	"zonecore/server/logging"
)

const (
	// EventTickBudgetOverrun is emitted when the simulation loop exceeds the allotted tick budget.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventTickBudgetAlarm is emitted when the server schedules recovery due to a severe tick budget breach.
	EventTickBudgetAlarm logging.EventType = "simulation.tick_budget_alarm"
	// EventCommandQueueBackpressure is emitted when an actor's buffered
	// input queue keeps rejecting new input because it stays full.
	EventCommandQueueBackpressure logging.EventType = "simulation.command_queue_backpressure"
)

// CommandQueueBackpressurePayload captures which actor's queue is under
// sustained pressure and how long it has been rejecting input.
type CommandQueueBackpressurePayload struct {
	QueueCapacity  int    `json:"queueCapacity"`
	RejectedStreak uint64 `json:"rejectedStreak"`
}

// CommandQueueBackpressure publishes one sustained-backpressure warning for
// an actor's input queue on each call; the caller sets the cadence
// (internal/zone calls it every moveQueueWarningStep-th consecutive
// rejection).
func CommandQueueBackpressure(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CommandQueueBackpressurePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandQueueBackpressure,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
}

// TickBudgetOverrun publishes a warning when the simulation exceeds the configured tick budget.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// TickBudgetAlarmPayload captures details when the server escalates an overrun into a resynchronisation alarm.
type TickBudgetAlarmPayload struct {
	DurationMillis  int64   `json:"durationMillis"`
	BudgetMillis    int64   `json:"budgetMillis"`
	Ratio           float64 `json:"ratio"`
	Streak          uint64  `json:"streak"`
	ResyncScheduled bool    `json:"resyncScheduled"`
	ThresholdRatio  float64 `json:"thresholdRatio"`
	ThresholdStreak uint64  `json:"thresholdStreak"`
}

// TickBudgetAlarm publishes an error event when the server forces a resync due to sustained tick budget overruns.
func TickBudgetAlarm(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetAlarmPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTickBudgetAlarm,
		Tick:     tick,
		Severity: logging.SeverityError,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
