// SPDX-License-Identifier: EPL-2.0

package movement

import (
	"math"

	"github.com/ik5/soundscape/geom"
	"gonum.org/v1/gonum/spatial/r2"
)

func spawnAgent(s *State, a Agent, ctx *Context) {
	s.MaxSpeed = a.MaxSpeed.At(s.float())
	s.MaxForce = a.MaxForce.At(s.float())
	s.MaxRotation = a.MaxRotation.At(s.float())
	s.Directional = a.Directional

	s.Pos = s.pointIn(ctx.Installation)
	if len(ctx.Areas) > 0 {
		s.Target = s.pickTarget(ctx.Areas)
	} else {
		s.Target = s.pointIn(ctx.Installation)
	}

	desired := geom.Heading(r2.Sub(s.Target, s.Pos))
	speed := s.float() * s.MaxSpeed
	s.Heading = geom.WrapAngle(desired + s.float()*2 - 1)
	s.Vel = geom.FromPolar(s.Heading, speed)
}

func advanceAgent(s *State, dt float64, ctx *Context) {
	if len(ctx.Areas) > 0 && s.targetUnavailable(ctx.Areas) {
		s.Target = s.pickTarget(ctx.Areas)
	}

	vel := r2.Add(s.Vel, r2.Scale(dt, s.seek()))
	vel = geom.Limit(vel, s.MaxSpeed)

	if r2.Norm(s.Vel) > 0 && r2.Norm(vel) > 0 {
		prev := geom.Heading(s.Vel)
		turn := geom.WrapAngle(geom.Heading(vel) - prev)
		if limit := s.MaxRotation * dt; math.Abs(turn) > limit {
			vel = geom.FromPolar(prev+math.Copysign(limit, turn), r2.Norm(vel))
		}
	}

	s.Vel = vel
	if r2.Norm(vel) > 0 {
		s.Heading = geom.Heading(vel)
	}

	s.Pos = ctx.Limit.Clamp(r2.Add(s.Pos, r2.Scale(dt, vel)))

	if len(ctx.Areas) > 0 && geom.Distance(s.Pos, s.Target) <= ArriveDistance {
		s.Target = s.pickTarget(ctx.Areas)
	}
}

// seek is the steering force toward the target, limited to MaxForce.
func (s *State) seek() r2.Vec {
	d := r2.Sub(s.Target, s.Pos)
	n := r2.Norm(d)
	if n == 0 {
		return geom.Limit(r2.Scale(-1, s.Vel), s.MaxForce)
	}

	desired := r2.Scale(s.MaxSpeed/n, d)

	return geom.Limit(r2.Sub(desired, s.Vel), s.MaxForce)
}

// targetUnavailable reports whether the installation nearest the target is
// full while the agent is not already inside it.
func (s *State) targetUnavailable(areas []Area) bool {
	t := nearest(s.Target, areas)
	if areas[t].Available != 0 {
		return false
	}

	return nearest(s.Pos, areas) != t
}

func nearest(p r2.Vec, areas []Area) int {
	best, bestDist := 0, math.Inf(1)
	for i := range areas {
		if d := r2.Norm2(r2.Sub(p, areas[i].Bounds.Middle())); d < bestDist {
			best, bestDist = i, d
		}
	}

	return best
}

// pickTarget chooses a point inside one of the areas, strongly favouring the
// most suitable ones.
func (s *State) pickTarget(areas []Area) r2.Vec {
	u := s.float()
	idx := min(int(u*u*u*u*float64(len(areas))), len(areas)-1)

	for i := range areas {
		if rank(areas, i) == idx {
			return s.pointIn(areas[i].Bounds)
		}
	}

	return s.pointIn(areas[0].Bounds)
}

// rank is the position of areas[i] in suitability order, ties broken by index.
func rank(areas []Area, i int) int {
	r := 0
	for j := range areas {
		if j != i && better(&areas[j], &areas[i], j < i) {
			r++
		}
	}

	return r
}

func better(a, b *Area, earlier bool) bool {
	switch {
	case a.Available != 0 && b.Available == 0:
		return true
	case a.Available == 0 && b.Available != 0:
		return false
	case a.Needed != b.Needed:
		return a.Needed > b.Needed
	case a.NeededToTarget != b.NeededToTarget:
		return a.NeededToTarget > b.NeededToTarget
	}

	return earlier
}
