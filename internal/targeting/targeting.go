// Package targeting implements the pure ability-target resolver. It takes
// no mutable state: given an ability definition, the acting mob, the
// client-supplied target spec, and a candidate list, it returns the
// resolved target id set and direction yaw, or an error when the request
// cannot be resolved at all (a missing required target).
package targeting

import (
	"errors"
	"math"
	"sort"

	"zonecore/server/internal/model"
)

// ErrMissingTarget is returned when the ability's targetType requires a
// target entity or point that the request did not supply, or the named
// entity is not among the candidates.
var ErrMissingTarget = errors.New("targeting: missing required target")

// Candidate is a resolvable entity: a position and, for enemy/ally checks
// elsewhere, an id. Candidates are supplied by the caller (typically every
// mob in the actor's zone) pre-filtered or not — Resolve itself does not
// filter by faction; that is the caller's job via the candidate list it
// passes in.
type Candidate struct {
	ID       string
	Position model.Vec3
}

// Result is the resolved target set and cast direction.
type Result struct {
	TargetIDs []string
	Direction float64 // yaw radians
}

// Resolve computes the target set and direction for one ability use.
func Resolve(ability model.AbilityDef, actor model.Vec3, actorYaw float64, spec model.TargetSpec, candidates []Candidate) (Result, error) {
	primaryID, primaryPoint, havePrimaryPoint, err := resolvePrimary(ability.TargetType, actor, spec, candidates)
	if err != nil {
		return Result{}, err
	}

	origin := actor
	if ability.TargetType == model.TargetGround && havePrimaryPoint {
		origin = primaryPoint
	}

	var ids []string
	switch ability.AOEShape.Kind {
	case model.ShapeSingle, "":
		if primaryID != "" {
			ids = []string{primaryID}
		}
	case model.ShapeCircle:
		center := actor
		if ability.TargetType != model.TargetSelf {
			center = primaryPoint
		}
		ids = withinCircle(candidates, center, ability.AOEShape.Radius)
	case model.ShapeCone:
		forward := model.YawFromTo(origin, primaryPoint, actorYaw)
		ids = withinCone(candidates, origin, forward, ability.AOEShape.AngleDeg, ability.AOEShape.Length)
	case model.ShapeLine:
		forward := model.YawFromTo(origin, primaryPoint, actorYaw)
		ids = withinLine(candidates, origin, forward, ability.AOEShape.Length, ability.AOEShape.Width)
	}

	sort.Strings(ids)

	direction := resolveDirection(ability.DirectionMode, actor, actorYaw, primaryPoint, havePrimaryPoint, spec)

	return Result{TargetIDs: ids, Direction: direction}, nil
}

func resolvePrimary(targetType model.TargetType, actor model.Vec3, spec model.TargetSpec, candidates []Candidate) (id string, point model.Vec3, havePoint bool, err error) {
	switch targetType {
	case model.TargetSelf:
		return "", actor, true, nil
	case model.TargetEnemy, model.TargetAlly:
		if spec.TargetEntityID == "" {
			return "", model.Vec3{}, false, ErrMissingTarget
		}
		for _, c := range candidates {
			if c.ID == spec.TargetEntityID {
				return c.ID, c.Position, true, nil
			}
		}
		return "", model.Vec3{}, false, ErrMissingTarget
	case model.TargetGround:
		if spec.TargetPoint == nil {
			return "", model.Vec3{}, false, ErrMissingTarget
		}
		return "", *spec.TargetPoint, true, nil
	default:
		return "", model.Vec3{}, false, ErrMissingTarget
	}
}

func withinCircle(candidates []Candidate, center model.Vec3, radius float64) []string {
	var ids []string
	r2 := radius * radius
	for _, c := range candidates {
		if c.Position.DistanceSq(center) <= r2 {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func withinCone(candidates []Candidate, origin model.Vec3, forwardYaw, angleDeg, length float64) []string {
	var ids []string
	halfAngle := (angleDeg / 2) * (math.Pi / 180)
	l2 := length * length
	for _, c := range candidates {
		delta := c.Position.Sub(origin)
		horiz := delta.Horizontal()
		if horiz.LengthSq() < 1e-9 {
			continue
		}
		if horiz.LengthSq() > l2 {
			continue
		}
		toYaw := horiz.Yaw()
		if model.AngleBetween(toYaw, forwardYaw) <= halfAngle {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func withinLine(candidates []Candidate, origin model.Vec3, forwardYaw, length, width float64) []string {
	var ids []string
	fwd := model.Vec2{X: math.Sin(forwardYaw), Z: math.Cos(forwardYaw)}
	for _, c := range candidates {
		delta := c.Position.Sub(origin).Horizontal()
		forward := delta.X*fwd.X + delta.Z*fwd.Z
		if forward < 0 || forward > length {
			continue
		}
		lateral := delta.X*fwd.Z - delta.Z*fwd.X
		if lateral < -width/2 || lateral > width/2 {
			continue
		}
		ids = append(ids, c.ID)
	}
	return ids
}

func resolveDirection(mode model.DirectionMode, actor model.Vec3, actorYaw float64, primary model.Vec3, havePrimary bool, spec model.TargetSpec) float64 {
	switch mode {
	case model.DirectionTarget:
		if havePrimary {
			return model.YawFromTo(actor, primary, actorYaw)
		}
		return actorYaw
	case model.DirectionCursor:
		if spec.Direction != nil {
			dir := spec.Direction.Horizontal()
			if dir.LengthSq() > 1e-9 {
				return dir.Yaw()
			}
		}
		if spec.TargetPoint != nil {
			return model.YawFromTo(actor, *spec.TargetPoint, actorYaw)
		}
		return actorYaw
	default: // DirectionFacing and unknown modes fall back to facing.
		return actorYaw
	}
}
