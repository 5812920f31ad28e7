// Package config loads the zone core's tunable constants. Defaults are
// compiled in (Defaults); Load overlays an optional TOML manifest read with
// BurntSushi/toml, then ZONECORE_-prefixed environment variables through
// viper.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Constants are the zone's authoritative tunables.
type Constants struct {
	TickMS                        int64   `toml:"tick_ms"`
	GCDSeconds                    float64 `toml:"gcd_seconds"`
	InternalCooldownMS            int64   `toml:"internal_cooldown_ms"`
	BufferOpenMS                  int64   `toml:"buffer_open_ms"`
	MaxInputCatchUpTicks          int     `toml:"max_input_catch_up_ticks"`
	MaxInputLagTicks              int     `toml:"max_input_lag_ticks"`
	MaxPendingInputs              int     `toml:"max_pending_inputs"`
	ServerSnapDistance             float64 `toml:"server_snap_distance"`
	ClientReconcileDistanceEpsilon float64 `toml:"client_reconcile_distance_epsilon"`
	NavmeshRecoveryDistance        float64 `toml:"navmesh_recovery_distance"`
	MaxTrackedRequestPredictions  int     `toml:"max_tracked_request_predictions"`
	DefaultEventRange             float64 `toml:"default_event_range"`
	LOSCellSize                   float64 `toml:"los_cell_size"`
	LOSMaxRange                   float64 `toml:"los_max_range"`
	LOSUpdateStride               int     `toml:"los_update_stride"`
	LOSMoveThreshold               float64 `toml:"los_move_threshold"`
	LOSMaxStaleTicks               int     `toml:"los_max_stale_ticks"`
	PlayerSpeed                   float64 `toml:"player_speed"`
	PlayerSprintMultiplier        float64 `toml:"player_sprint_multiplier"`
	MeleeRange                    float64 `toml:"melee_range"`
	DamageAggroMultiplier         float64 `toml:"damage_aggro_multiplier"`
	HealingAggroMultiplier        float64 `toml:"healing_aggro_multiplier"`
	StatusAggroAmount             float64 `toml:"status_aggro_amount"`
	EventLogCapacity              int     `toml:"event_log_capacity"`
	DisconnectGraceSeconds        int64   `toml:"disconnect_grace_seconds"`
	NPCWanderMinMs                int64   `toml:"npc_wander_min_ms"`
	NPCWanderMaxMs                int64   `toml:"npc_wander_max_ms"`
	NPCPathRecomputeCooldownMs    int64   `toml:"npc_path_recompute_cooldown_ms"`
	NPCPathMoveThreshold          float64 `toml:"npc_path_move_threshold"`
	NPCWaypointAdvanceDistance    float64 `toml:"npc_waypoint_advance_distance"`
	NPCRespawnDelayMs             int64   `toml:"npc_respawn_delay_ms"`
}

// GCDMs returns GCDSeconds expressed in milliseconds.
func (c Constants) GCDMs() int64 { return int64(c.GCDSeconds * 1000) }

// TickDuration returns TickMS as a time.Duration.
func (c Constants) TickDuration() time.Duration { return time.Duration(c.TickMS) * time.Millisecond }

// Defaults returns the out-of-the-box constants (GCD 2.5s, internal cooldown
// 500ms) plus reasonable defaults for everything else.
func Defaults() Constants {
	return Constants{
		TickMS:                         50,
		GCDSeconds:                     2.5,
		InternalCooldownMS:             500,
		BufferOpenMS:                   400,
		MaxInputCatchUpTicks:           6,
		MaxInputLagTicks:               20,
		MaxPendingInputs:               32,
		ServerSnapDistance:             1.5,
		ClientReconcileDistanceEpsilon: 0.05,
		NavmeshRecoveryDistance:        0.5,
		MaxTrackedRequestPredictions:   64,
		DefaultEventRange:              40,
		LOSCellSize:                    8,
		LOSMaxRange:                    30,
		LOSUpdateStride:                4,
		LOSMoveThreshold:               1.0,
		LOSMaxStaleTicks:               20,
		PlayerSpeed:                    4.0,
		PlayerSprintMultiplier:         1.6,
		MeleeRange:                     2.0,
		DamageAggroMultiplier:          1.0,
		HealingAggroMultiplier:         0.5,
		StatusAggroAmount:              5.0,
		EventLogCapacity:               4096,
		DisconnectGraceSeconds:         120,
		NPCWanderMinMs:                 1500,
		NPCWanderMaxMs:                 4000,
		NPCPathRecomputeCooldownMs:     100,
		NPCPathMoveThreshold:           0.5,
		NPCWaypointAdvanceDistance:     0.15,
		NPCRespawnDelayMs:              15000,
	}
}

// Load reads defaults, overlays a TOML sidecar at manifestPath if non-empty,
// then overlays ZONECORE_-prefixed environment variables via viper (highest
// priority, for operator overrides without redeploying the manifest).
func Load(manifestPath string) (Constants, error) {
	cfg := Defaults()

	if manifestPath != "" {
		if _, err := toml.DecodeFile(manifestPath, &cfg); err != nil {
			return Constants{}, fmt.Errorf("config: decode manifest %s: %w", manifestPath, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("zonecore")
	v.AutomaticEnv()
	bindEnvOverrides(v, &cfg)

	return cfg, nil
}

// bindEnvOverrides applies any ZONECORE_* environment variables that are
// set, overlaying them onto cfg. Only the handful of constants operators
// plausibly need to tune per-deployment (tick rate, snap distance, event
// log capacity, disconnect grace period) are wired; the rest stay
// manifest/default-only.
func bindEnvOverrides(v *viper.Viper, cfg *Constants) {
	if v.IsSet("tick_ms") {
		cfg.TickMS = v.GetInt64("tick_ms")
	}
	if v.IsSet("event_log_capacity") {
		cfg.EventLogCapacity = v.GetInt("event_log_capacity")
	}
	if v.IsSet("server_snap_distance") {
		cfg.ServerSnapDistance = v.GetFloat64("server_snap_distance")
	}
	if v.IsSet("disconnect_grace_seconds") {
		cfg.DisconnectGraceSeconds = v.GetInt64("disconnect_grace_seconds")
	}
}
