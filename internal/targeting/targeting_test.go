package targeting

import (
	"math"
	"testing"

	"zonecore/server/internal/model"
)

func TestResolveSelfSingleTarget(t *testing.T) {
	ability := model.AbilityDef{TargetType: model.TargetSelf, AOEShape: model.AOEShape{Kind: model.ShapeSingle}}
	res, err := Resolve(ability, model.Vec3{}, 0, model.TargetSpec{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.TargetIDs) != 0 {
		t.Fatalf("expected no entity id for self single, got %v", res.TargetIDs)
	}
}

func TestResolveEnemyMissingTargetErrors(t *testing.T) {
	ability := model.AbilityDef{TargetType: model.TargetEnemy, AOEShape: model.AOEShape{Kind: model.ShapeSingle}}
	_, err := Resolve(ability, model.Vec3{}, 0, model.TargetSpec{}, nil)
	if err != ErrMissingTarget {
		t.Fatalf("expected ErrMissingTarget, got %v", err)
	}
}

func TestResolveCircleIncludesWithinRadius(t *testing.T) {
	ability := model.AbilityDef{
		TargetType: model.TargetGround,
		AOEShape:   model.AOEShape{Kind: model.ShapeCircle, Radius: 5},
	}
	point := model.Vec3{X: 0, Y: 0, Z: 0}
	candidates := []Candidate{
		{ID: "near", Position: model.Vec3{X: 2, Y: 0, Z: 0}},
		{ID: "far", Position: model.Vec3{X: 20, Y: 0, Z: 0}},
	}
	res, err := Resolve(ability, model.Vec3{X: -10}, 0, model.TargetSpec{TargetPoint: &point}, candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.TargetIDs) != 1 || res.TargetIDs[0] != "near" {
		t.Fatalf("expected only 'near', got %v", res.TargetIDs)
	}
}

func TestResolveConeRequiresFacingAngle(t *testing.T) {
	ability := model.AbilityDef{
		TargetType: model.TargetGround,
		AOEShape:   model.AOEShape{Kind: model.ShapeCone, AngleDeg: 90, Length: 10},
	}
	// A ground-targeted cone opens from the target point along the actor's
	// facing (yaw 0 is +Z here).
	point := model.Vec3{X: 0, Y: 0, Z: 10}
	candidates := []Candidate{
		{ID: "ahead", Position: model.Vec3{X: 0, Y: 0, Z: 15}},
		{ID: "behind", Position: model.Vec3{X: 0, Y: 0, Z: 5}},
	}
	res, err := Resolve(ability, model.Vec3{}, 0, model.TargetSpec{TargetPoint: &point}, candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.TargetIDs) != 1 || res.TargetIDs[0] != "ahead" {
		t.Fatalf("expected only 'ahead', got %v", res.TargetIDs)
	}
}

func TestResolveDirectionFallsBackToFacingOnZeroVector(t *testing.T) {
	ability := model.AbilityDef{TargetType: model.TargetSelf, DirectionMode: model.DirectionTarget, AOEShape: model.AOEShape{Kind: model.ShapeSingle}}
	res, err := Resolve(ability, model.Vec3{X: 1, Z: 1}, 1.23, model.TargetSpec{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(res.Direction-1.23) > 1e-9 {
		t.Fatalf("expected fallback to facing yaw 1.23, got %v", res.Direction)
	}
}
