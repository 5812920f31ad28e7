package status

import (
	"testing"

	"zonecore/server/internal/model"
)

func statusDef(id string, mode model.StackMode, durationMs int64) model.StatusEffectDef {
	return model.StatusEffectDef{ID: id, Stacking: mode, DurationMs: durationMs, MaxStacks: 3}
}

func TestApplyReplaceDropsExisting(t *testing.T) {
	m := model.NewMob("p1", model.KindPlayer)
	Apply(m, statusDef("burn", model.StackReplace, 1000), nil, 0)
	Apply(m, statusDef("burn", model.StackReplace, 2000), nil, 500)
	if len(m.Statuses) != 1 {
		t.Fatalf("expected 1 status, got %d", len(m.Statuses))
	}
	if m.Statuses[0].AppliedAtMs != 500 {
		t.Fatalf("expected replaced entry, got %+v", m.Statuses[0])
	}
}

func TestApplyRefreshExtendsExpiry(t *testing.T) {
	m := model.NewMob("p1", model.KindPlayer)
	Apply(m, statusDef("slow", model.StackRefresh, 1000), nil, 0)
	Apply(m, statusDef("slow", model.StackRefresh, 1000), nil, 500)
	if len(m.Statuses) != 1 {
		t.Fatalf("expected 1 status, got %d", len(m.Statuses))
	}
	if m.Statuses[0].ExpiresAtMs != 1500 {
		t.Fatalf("expected expiry 1500, got %d", m.Statuses[0].ExpiresAtMs)
	}
}

func TestApplyStackIncrementsUpToMax(t *testing.T) {
	m := model.NewMob("p1", model.KindPlayer)
	def := statusDef("poison", model.StackStack, 1000)
	for i := 0; i < 5; i++ {
		Apply(m, def, nil, 0)
	}
	if len(m.Statuses) != 1 {
		t.Fatalf("expected 1 status entry, got %d", len(m.Statuses))
	}
	if m.Statuses[0].Stacks != 3 {
		t.Fatalf("expected stacks clamped to 3, got %d", m.Statuses[0].Stacks)
	}
}

func TestApplyIndependentKeepsSeparateEntries(t *testing.T) {
	m := model.NewMob("p1", model.KindPlayer)
	def := statusDef("dot", model.StackIndependent, 1000)
	Apply(m, def, nil, 0)
	Apply(m, def, nil, 100)
	if len(m.Statuses) != 2 {
		t.Fatalf("expected 2 independent entries, got %d", len(m.Statuses))
	}
}

func TestExpireTickRemovesPastExpiry(t *testing.T) {
	m := model.NewMob("p1", model.KindPlayer)
	Apply(m, statusDef("stun", model.StackReplace, 500), nil, 0)
	if ExpireTick(m, 499) {
		t.Fatalf("expected no expiry yet")
	}
	if !ExpireTick(m, 500) {
		t.Fatalf("expected expiry at boundary")
	}
	if len(m.Statuses) != 0 {
		t.Fatalf("expected status removed, got %+v", m.Statuses)
	}
}

func TestRecomputeAggregatesFlags(t *testing.T) {
	m := model.NewMob("p1", model.KindPlayer)
	def := statusDef("stun", model.StackReplace, 1000)
	def.Flags = model.StatusFlagSet{Stunned: true}
	def.BlocksAbilities = []string{"shield_bash"}
	Apply(m, def, nil, 0)

	if !m.StatusFlag.Stunned {
		t.Fatalf("expected stunned flag set")
	}
	if !IsBlocked(m, "shield_bash") {
		t.Fatalf("expected shield_bash blocked")
	}
}

func TestRecomputeScalesModifiersByStacks(t *testing.T) {
	m := model.NewMob("p1", model.KindPlayer)
	def := statusDef("empower", model.StackStack, 1000)
	def.Modifiers = []model.StatModifier{{Stat: model.StatStrength, Op: model.ModifierAdd, Amount: 2}}
	Apply(m, def, nil, 0)
	Apply(m, def, nil, 0)

	if len(m.ModSources) != 1 {
		t.Fatalf("expected 1 contributed mod source, got %d", len(m.ModSources))
	}
	got := m.ModSources[0].Modifiers[0].Amount
	if got != 4 {
		t.Fatalf("expected amount scaled to 4 for 2 stacks, got %v", got)
	}
}
