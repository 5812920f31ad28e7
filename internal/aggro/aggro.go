// Package aggro implements the per-NPC aggro table: a nonnegative raw-value
// scalar per source, projected to a replicated percentage.
package aggro

import "zonecore/server/internal/model"

// Add adds delta (must be > 0) to npc's aggro entry for sourceID, creating
// the entry if absent.
func Add(npc *model.Mob, sourceID string, delta float64) {
	if delta <= 0 || sourceID == "" {
		return
	}
	if npc.Aggro == nil {
		npc.Aggro = make(map[string]float64)
	}
	npc.Aggro[sourceID] += delta
}

// Prune removes aggro entries whose source id is not in the live set.
func Prune(npc *model.Mob, live map[string]bool) {
	for id := range npc.Aggro {
		if !live[id] {
			delete(npc.Aggro, id)
		}
	}
}

// Clear empties the aggro table entirely (used on combat-exit).
func Clear(npc *model.Mob) {
	for id := range npc.Aggro {
		delete(npc.Aggro, id)
	}
}

// Top returns the source id with the highest raw aggro value and whether one
// exists. Ties are broken by first-seen order of map iteration; since map
// iteration order is unspecified, callers that need determinism should not
// rely on tie-breaking.
func Top(npc *model.Mob) (sourceID string, ok bool) {
	var best float64
	for id, v := range npc.Aggro {
		if !ok || v > best {
			best = v
			sourceID = id
			ok = true
		}
	}
	return sourceID, ok
}

// Percentages projects the raw aggro table to the replicated percent form:
// round(raw/topRaw * 100), clamped to [1,100] so any nonzero entry stays
// visible.
func Percentages(npc *model.Mob) map[string]int {
	if len(npc.Aggro) == 0 {
		return nil
	}
	top, _ := Top(npc)
	topRaw := npc.Aggro[top]
	if topRaw <= 0 {
		return nil
	}
	out := make(map[string]int, len(npc.Aggro))
	for id, raw := range npc.Aggro {
		if raw <= 0 {
			continue
		}
		pct := int(raw/topRaw*100 + 0.5)
		if pct < 1 {
			pct = 1
		}
		if pct > 100 {
			pct = 100
		}
		out[id] = pct
	}
	return out
}

// Refresh recomputes npc.AggroPercent from npc.Aggro.
func Refresh(npc *model.Mob) {
	npc.AggroPercent = Percentages(npc)
}
