// Package los implements the zone's LineOfSightTracker: a per-tick spatial
// hash over all mobs, refreshed for each player on a staggered schedule,
// feeding each player's replicated visibleTargets list. The hash is a
// cell-size grid keyed by floor-div coordinates, bucketed into slices of
// ids.
package los

import (
	"math"
	"sort"

	"zonecore/server/internal/collision"
	"zonecore/server/internal/config"
	"zonecore/server/internal/model"
)

// cellKey identifies a grid cell in the LoS spatial hash.
type cellKey struct {
	X int
	Z int
}

// Tracker owns no mob references; it keys its per-player refresh bookkeeping
// by mob id and receives the live mob set fresh on every FixedTick call.
type Tracker struct {
	Constants config.Constants
	World     collision.World

	state map[string]*playerState
}

type playerState struct {
	lastPosition   model.Vec3
	lastUpdateTick uint64
	ordinal        int
}

// NewTracker constructs an empty Tracker.
func NewTracker(c config.Constants, world collision.World) *Tracker {
	return &Tracker{Constants: c, World: world, state: make(map[string]*playerState)}
}

// FixedTick refreshes visibleTargets for players due this tick. players and
// allMobs are both the zone's current live mob sets; allMobs includes
// players and NPCs alike as LoS candidates.
func (t *Tracker) FixedTick(tick uint64, players []*model.Mob, allMobs []*model.Mob) {
	if len(players) == 0 {
		return
	}
	grid := t.buildGrid(allMobs)

	for i, player := range players {
		ps, ok := t.state[player.ID]
		if !ok {
			ps = &playerState{ordinal: i}
			t.state[player.ID] = ps
		}
		ps.ordinal = i

		if !t.due(tick, player, ps) {
			continue
		}
		t.refresh(player, grid)
		ps.lastPosition = player.Position
		ps.lastUpdateTick = tick
	}
}

func (t *Tracker) due(tick uint64, player *model.Mob, ps *playerState) bool {
	stride := t.Constants.LOSUpdateStride
	if stride < 1 {
		stride = 1
	}
	if int(tick)%stride == ps.ordinal%stride {
		return true
	}
	if player.Position.DistanceSq(ps.lastPosition) >= t.Constants.LOSMoveThreshold*t.Constants.LOSMoveThreshold {
		return true
	}
	if int64(tick)-int64(ps.lastUpdateTick) >= int64(t.Constants.LOSMaxStaleTicks) {
		return true
	}
	return false
}

func (t *Tracker) buildGrid(mobs []*model.Mob) map[cellKey][]*model.Mob {
	grid := make(map[cellKey][]*model.Mob, len(mobs))
	size := t.Constants.LOSCellSize
	if size <= 0 {
		size = 1
	}
	for _, m := range mobs {
		key := cellKey{X: int(math.Floor(m.Position.X / size)), Z: int(math.Floor(m.Position.Z / size))}
		grid[key] = append(grid[key], m)
	}
	return grid
}

func (t *Tracker) refresh(player *model.Mob, grid map[cellKey][]*model.Mob) {
	size := t.Constants.LOSCellSize
	if size <= 0 {
		size = 1
	}
	cellRadius := int(math.Ceil(t.Constants.LOSMaxRange / size))
	centerX := int(math.Floor(player.Position.X / size))
	centerZ := int(math.Floor(player.Position.Z / size))
	maxRangeSq := t.Constants.LOSMaxRange * t.Constants.LOSMaxRange

	visible := make([]string, 0)
	for dx := -cellRadius; dx <= cellRadius; dx++ {
		for dz := -cellRadius; dz <= cellRadius; dz++ {
			for _, candidate := range grid[cellKey{X: centerX + dx, Z: centerZ + dz}] {
				if candidate.ID == player.ID {
					continue
				}
				if player.Position.DistanceSq(candidate.Position) > maxRangeSq {
					continue
				}
				if !t.World.LineOfSight(player.Position, candidate.Position) {
					continue
				}
				visible = append(visible, candidate.ID)
			}
		}
	}
	sort.Strings(visible)

	if !sameIDs(player.VisibleTargets, visible) {
		player.VisibleTargets = visible
	}
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Forget drops a player's refresh bookkeeping, called when a player leaves
// the zone.
func (t *Tracker) Forget(playerID string) {
	delete(t.state, playerID)
}
