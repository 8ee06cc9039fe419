// SPDX-License-Identifier: EPL-2.0

package movement

import (
	"math"

	"github.com/ik5/soundscape/geom"
	"gonum.org/v1/gonum/spatial/r2"
)

func spawnNgon(s *State, n Ngon, ctx *Context) {
	s.Vertices = n.Vertices.At(s.float())
	s.Step = n.Step.At(s.float())
	s.Speed = n.Speed.At(s.float())
	s.Dimensions = n.Dimensions
	s.Offset = n.RadiansOffset
	s.Start = 0
	s.End = s.Step % s.Vertices
	s.Pos = s.vertex(ctx.Installation, 0)
}

// vertex i of the polygon inscribed in r.
func (s *State) vertex(r geom.Rect, i int) r2.Vec {
	mid := r.Middle()
	hw := r.Width() * s.Dimensions.X / 2
	hh := r.Height() * s.Dimensions.Y / 2
	a := 2*math.Pi*float64(i)/float64(s.Vertices) + s.Offset

	return r2.Vec{X: mid.X + hw*math.Cos(a), Y: mid.Y + hh*math.Sin(a)}
}

// advanceNgon walks the polygon edges at Speed, carrying travel left over at
// a vertex onto the next edge. The vertices follow the installation when its
// bounds change.
func advanceNgon(s *State, dt float64, ctx *Context) {
	travel := s.Speed * dt

	// Each lap visits at most Vertices edges; cap the loop so a degenerate
	// polygon with long travel terminates.
	for range s.Vertices + 1 {
		start := s.vertex(ctx.Installation, s.Start)
		end := s.vertex(ctx.Installation, s.End)
		p := r2.Add(start, r2.Scale(s.Lerp, r2.Sub(end, start)))
		remaining := geom.Distance(p, end)

		if travel == 0 || remaining == 0 {
			s.Pos = p

			return
		}

		if travel < remaining {
			edge := geom.Distance(start, end)
			s.Lerp = (edge - (remaining - travel)) / edge
			s.Pos = r2.Add(start, r2.Scale(s.Lerp, r2.Sub(end, start)))

			return
		}

		travel -= remaining
		s.Lerp = 0
		s.Start = s.End
		s.End = (s.End + s.Step) % s.Vertices
		s.Pos = end
	}
}
