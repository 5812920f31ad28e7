// Package status implements the StatusController: per-mob active-status
// list with stacking modes, expiry, and lazily recomputed caches of stat
// modifiers, state flags, blocked-ability tags, and immunities. It operates
// on *model.Mob as a set of free functions, matching the zone's "engines
// reference mobs by id, mobs hold no reverse references" ownership rule.
package status

import (
	"zonecore/server/internal/model"
)

// Apply applies effect (sourced from source's current primary stats) to
// target at time now, per the stacking mode in effect.Stacking.
func Apply(target *model.Mob, effect model.StatusEffectDef, source *model.Mob, now int64) {
	expires := now + effect.DurationMs
	if effect.MaxDurationMs > 0 && effect.DurationMs > effect.MaxDurationMs {
		expires = now + effect.MaxDurationMs
	}

	switch effect.Stacking {
	case model.StackReplace:
		removeByID(target, effect.ID)
		target.Statuses = append(target.Statuses, newEntry(effect, source, target, now, expires))

	case model.StackRefresh:
		if idx := findByID(target, effect.ID); idx >= 0 {
			target.Statuses[idx].ExpiresAtMs = expires
		} else {
			target.Statuses = append(target.Statuses, newEntry(effect, source, target, now, expires))
		}

	case model.StackStack:
		if idx := findByID(target, effect.ID); idx >= 0 {
			entry := &target.Statuses[idx]
			max := effect.MaxStacks
			if max <= 0 {
				max = 1
			}
			if entry.Stacks < max {
				entry.Stacks++
			}
			entry.ExpiresAtMs = expires
		} else {
			target.Statuses = append(target.Statuses, newEntry(effect, source, target, now, expires))
		}

	case model.StackIndependent:
		target.Statuses = append(target.Statuses, newEntry(effect, source, target, now, expires))

	default:
		target.Statuses = append(target.Statuses, newEntry(effect, source, target, now, expires))
	}

	Recompute(target)
}

func newEntry(effect model.StatusEffectDef, source, target *model.Mob, now, expires int64) model.ActiveStatus {
	entry := model.ActiveStatus{
		ID:          effect.ID,
		Def:         effect,
		AppliedAtMs: now,
		ExpiresAtMs: expires,
		Stacks:      1,
		TargetStats: targetPrimary(target),
	}
	if effect.TickIntervalMs > 0 {
		entry.NextTickAtMs = now + effect.TickIntervalMs
	}
	if source != nil {
		entry.SourceID = source.ID
		entry.SourceStats = source.Primary
	}
	return entry
}

func targetPrimary(target *model.Mob) model.PrimaryStats {
	if target == nil {
		return model.PrimaryStats{}
	}
	return target.Primary
}

func findByID(m *model.Mob, id string) int {
	for i := range m.Statuses {
		if m.Statuses[i].ID == id {
			return i
		}
	}
	return -1
}

func removeByID(m *model.Mob, id string) {
	out := m.Statuses[:0]
	for _, s := range m.Statuses {
		if s.ID != id {
			out = append(out, s)
		}
	}
	m.Statuses = out
}

// Remove deletes a status by id, if present.
func Remove(m *model.Mob, id string) {
	if findByID(m, id) < 0 {
		return
	}
	removeByID(m, id)
	Recompute(m)
}

// ClearAll removes every status on m.
func ClearAll(m *model.Mob) {
	if len(m.Statuses) == 0 {
		return
	}
	m.Statuses = nil
	Recompute(m)
}

// ExpireTick removes statuses whose expiresAtMs has passed, then recomputes
// caches if anything changed. Returns true if any status expired.
func ExpireTick(m *model.Mob, now int64) bool {
	if len(m.Statuses) == 0 {
		return false
	}
	changed := false
	out := m.Statuses[:0]
	for _, s := range m.Statuses {
		if s.ExpiresAtMs > 0 && now >= s.ExpiresAtMs {
			changed = true
			continue
		}
		out = append(out, s)
	}
	m.Statuses = out
	if changed {
		Recompute(m)
	}
	return changed
}

// Recompute rebuilds m.StatusFlag and m.ModSources (the status-contributed
// entries) from the current status list. Callers that change m.Statuses
// directly must call this afterward; Apply/Remove/ClearAll/ExpireTick do so
// themselves.
func Recompute(m *model.Mob) {
	flags := model.StatusFlags{
		BlockedAbil: make(map[string]bool),
		Immunities:  make(map[string]bool),
	}

	// Drop any previously contributed status modifier sources, then rebuild.
	sources := m.ModSources[:0]
	for _, src := range m.ModSources {
		if !isStatusSource(src.SourceID) {
			sources = append(sources, src)
		}
	}

	for _, s := range m.Statuses {
		f := s.Def.Flags
		flags.Stunned = flags.Stunned || f.Stunned
		flags.Silenced = flags.Silenced || f.Silenced
		flags.Disarmed = flags.Disarmed || f.Disarmed
		flags.Rooted = flags.Rooted || f.Rooted
		flags.Immobilized = flags.Immobilized || f.Immobilized

		for _, a := range s.Def.BlocksAbilities {
			flags.BlockedAbil[a] = true
		}
		for _, imm := range s.Def.Immunities {
			flags.Immunities[imm] = true
		}

		if len(s.Def.Modifiers) > 0 {
			mods := make([]model.StatModifier, len(s.Def.Modifiers))
			for i, mod := range s.Def.Modifiers {
				mods[i] = scaleForStacks(mod, s.Stacks)
			}
			sources = append(sources, model.StatModifierSource{
				SourceID:  statusSourceID(s.ID),
				Modifiers: mods,
			})
		}
	}

	m.ModSources = sources
	m.StatusFlag = flags
	m.StatsDirty = true
}

func scaleForStacks(mod model.StatModifier, stacks int) model.StatModifier {
	if mod.Op == model.ModifierOverride || stacks <= 1 {
		return mod
	}
	return model.StatModifier{Stat: mod.Stat, Op: mod.Op, Amount: mod.Amount * float64(stacks)}
}

const statusSourcePrefix = "status:"

func statusSourceID(statusID string) string { return statusSourcePrefix + statusID }

func isStatusSource(sourceID string) bool {
	return len(sourceID) >= len(statusSourcePrefix) && sourceID[:len(statusSourcePrefix)] == statusSourcePrefix
}

// IsBlocked reports whether abilityID is blocked by any active status tag.
func IsBlocked(m *model.Mob, abilityID string) bool {
	return m.StatusFlag.BlockedAbil[abilityID]
}

// IsImmune reports whether m carries the named immunity tag.
func IsImmune(m *model.Mob, tag string) bool {
	return m.StatusFlag.Immunities[tag]
}
