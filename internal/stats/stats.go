// Package stats implements the StatsController: folds a mob's primary stats
// and modifier sources into derived secondary stats, then clamps current
// resources to the new maxima.
package stats

import (
	"math"

	"zonecore/server/internal/model"
)

// BaseStats is the mob's unmodified primary-stat baseline, set once at
// creation (equipment/leveling is out of scope for this core).
type BaseStats struct {
	Primary model.PrimaryStats
}

// Recompute folds base + m.ModSources into m.Primary and m.Derived, then
// clamps current resources to the new maxima. It is a no-op when
// m.StatsDirty is false.
func Recompute(m *model.Mob, base BaseStats) {
	if !m.StatsDirty {
		return
	}

	primary := foldPrimary(base.Primary, m.ModSources)
	primary.Clamp()
	m.Primary = primary

	derived := model.DerivedStats{
		MaxHP:      100 + primary.Constitution*25,
		MaxMana:    50 + primary.Intelligence*15,
		MaxStamina: 50 + primary.Strength*10,
	}
	derived = foldSecondary(derived, m.ModSources)
	derived.MaxHP = round1(clampMin1(derived.MaxHP))
	derived.MaxMana = round1(clampMin1(derived.MaxMana))
	derived.MaxStamina = round1(clampMin1(derived.MaxStamina))
	m.Derived = derived

	m.HP.Max = derived.MaxHP
	m.Mana.Max = derived.MaxMana
	m.Stamina.Max = derived.MaxStamina
	m.HP.Clamp()
	m.Mana.Clamp()
	m.Stamina.Clamp()

	m.StatsDirty = false
}

// foldPrimary applies every StatModifier targeting a primary stat, in the
// fixed order: all adds, then all muls, then all overrides.
func foldPrimary(base model.PrimaryStats, sources []model.StatModifierSource) model.PrimaryStats {
	result := base
	applyOrdered(sources, isPrimaryStat, func(stat model.StatName, op model.StatModifierOp, amount float64) {
		ptr := primaryPtr(&result, stat)
		if ptr == nil {
			return
		}
		applyOp(ptr, op, amount)
	})
	return result
}

func foldSecondary(base model.DerivedStats, sources []model.StatModifierSource) model.DerivedStats {
	result := base
	applyOrdered(sources, isSecondaryStat, func(stat model.StatName, op model.StatModifierOp, amount float64) {
		ptr := secondaryPtr(&result, stat)
		if ptr == nil {
			return
		}
		applyOp(ptr, op, amount)
	})
	return result
}

// applyOrdered walks sources three times (add, mul, override) so every
// modifier of an earlier kind is folded before any of a later kind: all
// adds first, then muls, then overrides.
func applyOrdered(sources []model.StatModifierSource, keep func(model.StatName) bool, apply func(model.StatName, model.StatModifierOp, float64)) {
	for _, op := range []model.StatModifierOp{model.ModifierAdd, model.ModifierMul, model.ModifierOverride} {
		for _, src := range sources {
			for _, mod := range src.Modifiers {
				if mod.Op != op || !keep(mod.Stat) {
					continue
				}
				apply(mod.Stat, mod.Op, mod.Amount)
			}
		}
	}
}

func applyOp(ptr *float64, op model.StatModifierOp, amount float64) {
	switch op {
	case model.ModifierAdd:
		*ptr += amount
	case model.ModifierMul:
		*ptr *= amount
	case model.ModifierOverride:
		*ptr = amount
	}
}

func isPrimaryStat(s model.StatName) bool {
	switch s {
	case model.StatStrength, model.StatDexterity, model.StatIntelligence, model.StatConstitution:
		return true
	}
	return false
}

func isSecondaryStat(s model.StatName) bool {
	switch s {
	case model.StatMaxHP, model.StatMaxMana, model.StatMaxStamina:
		return true
	}
	return false
}

func primaryPtr(p *model.PrimaryStats, stat model.StatName) *float64 {
	switch stat {
	case model.StatStrength:
		return &p.Strength
	case model.StatDexterity:
		return &p.Dexterity
	case model.StatIntelligence:
		return &p.Intelligence
	case model.StatConstitution:
		return &p.Constitution
	}
	return nil
}

func secondaryPtr(d *model.DerivedStats, stat model.StatName) *float64 {
	switch stat {
	case model.StatMaxHP:
		return &d.MaxHP
	case model.StatMaxMana:
		return &d.MaxMana
	case model.StatMaxStamina:
		return &d.MaxStamina
	}
	return nil
}

func clampMin1(v float64) float64 {
	if v < 1 {
		return 1
	}
	return v
}

func round1(v float64) float64 { return math.Round(v) }

// MarkDirty flags m for recomputation on the next Recompute call. Callers
// that mutate m.ModSources directly (outside of internal/status) must call
// this.
func MarkDirty(m *model.Mob) { m.StatsDirty = true }
