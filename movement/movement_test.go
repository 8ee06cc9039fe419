// SPDX-License-Identifier: EPL-2.0

package movement

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/ik5/soundscape/geom"
	"github.com/ik5/soundscape/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func room(w, h float64) geom.Rect {
	return geom.Rect{Max: r2.Vec{X: w, Y: h}}
}

func TestFixed(t *testing.T) {
	t.Parallel()

	m := Default()
	m.Fixed.Point = r2.Vec{X: 0.25, Y: 0.75}
	ctx := &Context{Installation: room(8, 4), Limit: room(8, 4)}

	s := Spawn(m, 1, ctx)
	assert.Equal(t, r2.Vec{X: 2, Y: 3}, s.Pos)

	for range 100 {
		s = Advance(s, 0.1, ctx)
	}
	assert.Equal(t, r2.Vec{X: 2, Y: 3}, s.Pos)
	assert.Zero(t, s.Rotation())
}

func TestAgentApproachesTargetMonotonically(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		pos    r2.Vec
		target r2.Vec
		speed  float64
		force  float64
	}{
		{"short hop", r2.Vec{X: 1, Y: 1}, r2.Vec{X: 4, Y: 5}, 1, 2.4},
		{"across the room", r2.Vec{X: 0, Y: 0}, r2.Vec{X: 19, Y: 9}, 5, 3.6},
		{"slow and weak", r2.Vec{X: 10, Y: 2}, r2.Vec{X: 2, Y: 8}, 0.5, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := &Context{Installation: room(20, 10), Limit: room(20, 10)}
			s := State{
				Kind:        KindAgent,
				Pos:         tt.pos,
				Target:      tt.target,
				MaxSpeed:    tt.speed,
				MaxForce:    tt.force,
				MaxRotation: 100 * math.Pi,
			}

			const dt = 1.0 / 60
			prev := geom.Distance(s.Pos, s.Target)
			steps := 0
			for prev > ArriveDistance {
				s = Advance(s, dt, ctx)
				d := geom.Distance(s.Pos, s.Target)
				require.Less(t, d, prev, "step %d", steps)
				require.LessOrEqual(t, r2.Norm(s.Vel), tt.speed+1e-9)
				prev = d
				steps++
				require.Less(t, steps, 100000, "agent never arrived")
			}
		})
	}
}

func TestAgentStaysInLimitAndRetargets(t *testing.T) {
	t.Parallel()

	m := Default()
	m.Kind = KindAgent
	areas := []Area{
		{Bounds: room(5, 5), Available: 2},
		{Bounds: geom.Rect{Min: r2.Vec{X: 10, Y: 0}, Max: r2.Vec{X: 15, Y: 5}}, Available: 2},
	}
	limit := areas[0].Bounds.Union(areas[1].Bounds).Expand(1)
	ctx := &Context{Installation: areas[0].Bounds, Limit: limit, Areas: areas}

	s := Spawn(m, 42, ctx)
	require.True(t, areas[0].Bounds.Contains(s.Pos))
	require.True(t, m.Agent.MaxSpeed.Contains(s.MaxSpeed))
	require.True(t, m.Agent.MaxForce.Contains(s.MaxForce))

	targets := map[r2.Vec]struct{}{s.Target: {}}
	for range 60 * 120 {
		s = Advance(s, 1.0/60, ctx)
		require.True(t, limit.Contains(s.Pos), "position %v escaped %v", s.Pos, limit)
		targets[s.Target] = struct{}{}
	}
	assert.Greater(t, len(targets), 2, "agent should keep picking new targets")
	assert.InDelta(t, s.Heading, s.Rotation(), 0)
}

func TestAgentAvoidsFullInstallation(t *testing.T) {
	t.Parallel()

	areas := []Area{
		{Bounds: geom.Rect{Min: r2.Vec{X: 0, Y: 10}, Max: r2.Vec{X: 5, Y: 15}}, Available: 1},
		{Bounds: geom.Rect{Min: r2.Vec{X: 50, Y: 0}, Max: r2.Vec{X: 55, Y: 5}}, Available: 0},
	}
	ctx := &Context{Installation: areas[0].Bounds, Limit: room(60, 20), Areas: areas}

	// A stationary agent never arrives, so only the availability check retargets.
	s := State{Kind: KindAgent, Pos: r2.Vec{X: 2, Y: 2}, Target: r2.Vec{X: 52, Y: 2}}
	s.Rng.Seed(1, 2)
	for range 30 {
		s = Advance(s, 1.0/60, ctx)
	}
	assert.True(t, areas[0].Bounds.Contains(s.Target), "target %v should move to the available installation", s.Target)
	assert.Equal(t, r2.Vec{X: 2, Y: 2}, s.Pos)
}

func TestPickTargetPrefersSuitableAreas(t *testing.T) {
	t.Parallel()

	areas := []Area{
		{Bounds: room(1, 1), Available: 0, Needed: 5},
		{Bounds: geom.Rect{Min: r2.Vec{X: 10}, Max: r2.Vec{X: 11, Y: 1}}, Available: 3, Needed: 0},
		{Bounds: geom.Rect{Min: r2.Vec{X: 20}, Max: r2.Vec{X: 21, Y: 1}}, Available: 3, Needed: 2},
	}

	assert.Equal(t, 2, rank(areas, 0))
	assert.Equal(t, 1, rank(areas, 1))
	assert.Equal(t, 0, rank(areas, 2))

	var s State
	s.Rng.Seed(7, 7)
	hits := make([]int, len(areas))
	for range 2000 {
		p := s.pickTarget(areas)
		for i := range areas {
			if areas[i].Bounds.Contains(p) {
				hits[i]++
			}
		}
	}
	assert.Greater(t, hits[2], hits[1])
	assert.Greater(t, hits[1], hits[0])
}

func TestNgonWalk(t *testing.T) {
	t.Parallel()

	r := room(2, 2)
	ctx := &Context{Installation: r, Limit: r}
	s := State{Kind: KindNgon, Vertices: 4, Step: 1, Speed: 1, Dimensions: r2.Vec{X: 1, Y: 1}, End: 1}
	s.Pos = s.vertex(r, 0)

	edge := geom.Distance(s.vertex(r, 0), s.vertex(r, 1))
	require.InDelta(t, math.Sqrt2, edge, 1e-12)

	s = Advance(s, edge/2, ctx)
	assert.InDelta(t, 0.5, s.Lerp, 1e-9)
	assert.Equal(t, 0, s.Start)

	// Travel past the vertex carries the remainder onto the next edge.
	s = Advance(s, edge*0.75, ctx)
	assert.Equal(t, 1, s.Start)
	assert.Equal(t, 2, s.End)
	assert.InDelta(t, 0.25, s.Lerp, 1e-9)

	for range 1000 {
		s = Advance(s, 0.37, ctx)
		require.True(t, r.Expand(1e-9).Contains(s.Pos))
	}
}

func TestNgonStepSkipsVertices(t *testing.T) {
	t.Parallel()

	m := Default()
	m.Kind = KindNgon
	m.Ngon.Vertices = utils.Range[int]{Min: 5, Max: 5}
	m.Ngon.Step = utils.Range[int]{Min: 2, Max: 2}
	m.Ngon.RadiansOffset = 0
	ctx := &Context{Installation: room(10, 10), Limit: room(10, 10)}

	s := Spawn(m, 3, ctx)
	require.Equal(t, 5, s.Vertices)
	assert.Equal(t, 2, s.End)
	assert.InDelta(t, 10, s.Pos.X, 1e-9)
	assert.InDelta(t, 5, s.Pos.Y, 1e-9)

	visited := []int{s.Start}
	for len(visited) < 6 {
		s = Advance(s, 0.05, ctx)
		if s.Start != visited[len(visited)-1] {
			visited = append(visited, s.Start)
		}
	}
	assert.Equal(t, []int{0, 2, 4, 1, 3, 0}, visited)
}

func TestDeterministicSpawnAndAdvance(t *testing.T) {
	t.Parallel()

	m := Default()
	m.Kind = KindAgent
	ctx := &Context{Installation: room(6, 6), Limit: room(6, 6), Areas: []Area{{Bounds: room(6, 6), Available: 1}}}

	run := func(seed uint64) []r2.Vec {
		s := Spawn(m, seed, ctx)
		out := []r2.Vec{s.Pos}
		for range 500 {
			s = Advance(s, 0.01, ctx)
			out = append(out, s.Pos)
		}

		return out
	}

	assert.Equal(t, run(9), run(9))
	assert.NotEqual(t, run(9), run(10))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Model)
		wantErr bool
	}{
		{"default", func(*Model) {}, false},
		{"fixed outside", func(m *Model) { m.Fixed.Point.X = 1.5 }, true},
		{"agent reversed speed", func(m *Model) {
			m.Kind = KindAgent
			m.Agent.MaxSpeed = utils.Range[float64]{Min: 3, Max: 1}
		}, true},
		{"agent default", func(m *Model) { m.Kind = KindAgent }, false},
		{"ngon zero vertices", func(m *Model) {
			m.Kind = KindNgon
			m.Ngon.Vertices.Min = 0
		}, true},
		{"ngon default", func(m *Model) { m.Kind = KindNgon }, false},
		{"unknown kind", func(m *Model) { m.Kind = 9 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := Default()
			tt.mutate(&m)
			err := m.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKindJSON(t *testing.T) {
	t.Parallel()

	m := Default()
	m.Kind = KindNgon
	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"kind":"ngon"`)

	var back Model
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, m, back)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"spiral"}`), &back))
}

func TestAdvanceDoesNotAllocate(t *testing.T) {
	m := Default()
	m.Kind = KindAgent
	ctx := &Context{Installation: room(6, 6), Limit: room(6, 6), Areas: []Area{{Bounds: room(6, 6), Available: 1}}}
	s := Spawn(m, 1, ctx)

	allocs := testing.AllocsPerRun(100, func() {
		s = Advance(s, 0.01, ctx)
	})
	if allocs != 0 {
		t.Errorf("Advance allocated %v times per run", allocs)
	}
}
