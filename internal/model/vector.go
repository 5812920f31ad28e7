// Package model defines the zone's core data model: mobs (players and NPCs),
// ability/status/cast state, and the plain request/ack/event payload types
// that the ability engine, combat engine, AI pipeline, movement controller,
// and LoS tracker all operate over. Types here carry no behavior beyond
// small value-type helpers; every subsystem receives mobs as call arguments
// (free functions in internal/status, internal/stats and internal/ai;
// engine methods in internal/ability, internal/combat, internal/movement
// and internal/los), so mobs never hold references back into the engines
// that mutate them.
package model

import "math"

// Vec2 is a horizontal (x, z) vector.
type Vec2 struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Vec3 is a world-space position or direction.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Z: v.Z + o.Z} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Z: v.Z - o.Z} }
func (v Vec2) Scale(s float64) Vec2 { return Vec2{X: v.X * s, Z: v.Z * s} }
func (v Vec2) LengthSq() float64    { return v.X*v.X + v.Z*v.Z }
func (v Vec2) Length() float64      { return math.Sqrt(v.LengthSq()) }

// Normalized returns the unit vector, or the zero vector if v is (near) zero.
func (v Vec2) Normalized() Vec2 {
	l := v.Length()
	if l < 1e-9 {
		return Vec2{}
	}
	return Vec2{X: v.X / l, Z: v.Z / l}
}

// ClampMagnitude clamps the vector's length to at most max, leaving shorter
// vectors untouched.
func (v Vec2) ClampMagnitude(max float64) Vec2 {
	l := v.Length()
	if l <= max || l < 1e-9 {
		return v
	}
	return v.Scale(max / l)
}

// Yaw returns the facing angle (radians, 0 = +Z) for a horizontal direction.
func (v Vec2) Yaw() float64 { return math.Atan2(v.X, v.Z) }

func (v Vec3) Horizontal() Vec2 { return Vec2{X: v.X, Z: v.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

// DistanceSq returns the squared 3D distance between two positions.
func (v Vec3) DistanceSq(o Vec3) float64 {
	d := v.Sub(o)
	return d.X*d.X + d.Y*d.Y + d.Z*d.Z
}

func (v Vec3) Distance(o Vec3) float64 { return math.Sqrt(v.DistanceSq(o)) }

// YawFromTo returns the facing yaw from `from` to `to`, falling back to the
// provided default when the horizontal distance is (near) zero.
func YawFromTo(from, to Vec3, fallback float64) float64 {
	dir := to.Horizontal().Sub(from.Horizontal())
	if dir.LengthSq() < 1e-9 {
		return fallback
	}
	return dir.Yaw()
}

// AngleBetween returns the absolute angle in radians between two yaws,
// normalized to [0, pi].
func AngleBetween(a, b float64) float64 {
	d := math.Mod(a-b, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	}
	if d < -math.Pi {
		d += 2 * math.Pi
	}
	return math.Abs(d)
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
