// Package navmesh specifies the external navmesh collaborator's interface:
// point-on-mesh tests, nearest-point queries, height sampling, and the
// smooth "move along surface" primitive the NPC steering system and
// movement controller drive through. This core never implements mesh
// geometry; Fake below is a minimal flat-plane stand-in used by tests and
// local development.
package navmesh

import "zonecore/server/internal/model"

// MoveResult is the outcome of a "move along surface" query.
type MoveResult struct {
	Position  model.Vec3
	NodeRef   string
	Collided  bool
	Ratio     float64 // fraction of the requested displacement actually applied, in [0,1]
}

// Mesh is the external navmesh collaborator's interface.
type Mesh interface {
	// OnMesh reports whether p lies on a walkable surface.
	OnMesh(p model.Vec3) bool
	// NearestPoint finds the closest walkable point to p within radius,
	// returning false if none exists.
	NearestPoint(p model.Vec3, radius float64) (model.Vec3, bool)
	// Height samples the walkable surface height below (x, z), if any.
	Height(x, z float64) (float64, bool)
	// SmoothPath returns waypoints from "from" toward "to" hugging the mesh
	// surface, for NPC steering.
	SmoothPath(from, to model.Vec3) []model.Vec2
	// MoveAlongSurface steps from "from" toward "from + delta", sliding
	// along mesh boundaries, returning the final position/nodeRef and a
	// collided/ratio indicator.
	MoveAlongSurface(nodeRef string, from model.Vec3, delta model.Vec3) MoveResult
}

// Fake is an unbounded flat-plane mesh at y=0: every point is on-mesh,
// movement is never obstructed, and SmoothPath is a single straight
// waypoint at the destination. It exists so internal/ai and
// internal/movement can be developed and tested without the real geometry
// collaborator.
type Fake struct{}

func (Fake) OnMesh(model.Vec3) bool { return true }

func (Fake) NearestPoint(p model.Vec3, radius float64) (model.Vec3, bool) { return p, true }

func (Fake) Height(x, z float64) (float64, bool) { return 0, true }

func (Fake) SmoothPath(from, to model.Vec3) []model.Vec2 {
	return []model.Vec2{to.Horizontal()}
}

func (Fake) MoveAlongSurface(nodeRef string, from model.Vec3, delta model.Vec3) MoveResult {
	return MoveResult{Position: from.Add(delta), NodeRef: nodeRef, Collided: false, Ratio: 1}
}
