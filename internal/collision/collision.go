// Package collision specifies the external collision-world collaborator's
// interface: capsule step simulation and line-of-sight ray queries. This
// core never implements physics geometry; Fake below is a minimal
// unobstructed stand-in used by tests and local development.
package collision

import "zonecore/server/internal/model"

// StepInput is one capsule-movement request.
type StepInput struct {
	Position    model.Vec3
	VelocityY   float64
	Grounded    bool
	DirectionX  float64 // in [-1,1]
	DirectionZ  float64 // in [-1,1]
	Speed       float64
	JumpPressed bool
	DeltaTimeMs int64
}

// StepResult is the outcome of a capsule-movement step.
type StepResult struct {
	Position      model.Vec3
	VelocityY     float64
	Grounded      bool
	MovementRatio float64 // fraction of the requested displacement actually applied, in [0,1]
	Collided      bool
}

// World is the external collision-world collaborator's interface.
type World interface {
	// Step simulates one capsule movement step.
	Step(in StepInput) StepResult
	// LineOfSight reports whether a ray from "from" to "to" is unobstructed.
	LineOfSight(from, to model.Vec3) bool
}

// Fake is an unobstructed flat-ground world: every step fully applies the
// requested displacement and every LoS ray is clear. It exists so
// internal/movement and internal/los can be developed and tested without
// the real geometry collaborator.
type Fake struct{}

func (Fake) Step(in StepInput) StepResult {
	dt := float64(in.DeltaTimeMs) / 1000
	pos := in.Position
	pos.X += in.DirectionX * in.Speed * dt
	pos.Z += in.DirectionZ * in.Speed * dt
	return StepResult{Position: pos, VelocityY: 0, Grounded: true, MovementRatio: 1, Collided: false}
}

func (Fake) LineOfSight(from, to model.Vec3) bool { return true }
