// SPDX-License-Identifier: EPL-2.0

package movement

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/ik5/soundscape/geom"
	"github.com/ik5/soundscape/utils"
	"gonum.org/v1/gonum/spatial/r2"
)

// Kind selects the movement model of a source.
type Kind uint8

const (
	KindFixed Kind = iota
	KindAgent
	KindNgon
)

var kindNames = [...]string{
	KindFixed: "fixed",
	KindAgent: "agent",
	KindNgon:  "ngon",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return fmt.Sprintf("Kind(%d)", k)
}

func (k Kind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, k)
	}

	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if name == string(b) {
			*k = Kind(i)

			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrUnknownKind, b)
}

var (
	ErrUnknownKind  = errors.New("unknown movement kind")
	ErrInvalidModel = errors.New("invalid movement model")
)

// ArriveDistance is how close an agent must get to its target before it picks
// the next one.
const ArriveDistance = 1.0

// Fixed places the sound at a normalised point of its installation.
type Fixed struct {
	Point r2.Vec `json:"point"`
}

// Agent parameters. Each range is sampled once per spawned sound.
type Agent struct {
	MaxSpeed    utils.Range[float64] `json:"max_speed"`    // m/s
	MaxForce    utils.Range[float64] `json:"max_force"`    // m/s²
	MaxRotation utils.Range[float64] `json:"max_rotation"` // rad/s
	Directional bool                 `json:"directional"`
}

// Ngon parameters. Each range is sampled once per spawned sound.
type Ngon struct {
	Vertices      utils.Range[int]     `json:"vertices"`
	Step          utils.Range[int]     `json:"step"`
	Dimensions    r2.Vec               `json:"dimensions"` // normalised to the installation
	RadiansOffset float64              `json:"radians_offset"`
	Speed         utils.Range[float64] `json:"speed"` // m/s
}

// Model is the movement description stored on a source.
type Model struct {
	Kind  Kind  `json:"kind"`
	Fixed Fixed `json:"fixed"`
	Agent Agent `json:"agent"`
	Ngon  Ngon  `json:"ngon"`
}

// Default returns a fixed model centred in the installation, with agent and
// ngon parameters preset for when the kind is switched.
func Default() Model {
	return Model{
		Kind:  KindFixed,
		Fixed: Fixed{Point: r2.Vec{X: 0.5, Y: 0.5}},
		Agent: Agent{
			MaxSpeed:    utils.Range[float64]{Min: 1, Max: 5},
			MaxForce:    utils.Range[float64]{Min: 2.4, Max: 3.6},
			MaxRotation: utils.Range[float64]{Min: 100 * math.Pi, Max: 100 * math.Pi},
			Directional: true,
		},
		Ngon: Ngon{
			Vertices:      utils.Range[int]{Min: 3, Max: 8},
			Step:          utils.Range[int]{Min: 1, Max: 3},
			Dimensions:    r2.Vec{X: 1, Y: 1},
			RadiansOffset: math.Pi / 2,
			Speed:         utils.Range[float64]{Min: 1, Max: 5},
		},
	}
}

// Validate checks the parameters of the selected kind.
func (m Model) Validate() error {
	bad := func(what string) error { return fmt.Errorf("%w: %s %s", ErrInvalidModel, m.Kind, what) }

	switch m.Kind {
	case KindFixed:
		if !(geom.Rect{Max: r2.Vec{X: 1, Y: 1}}).Contains(m.Fixed.Point) {
			return bad("point outside the unit square")
		}
	case KindAgent:
		a := m.Agent
		if !a.MaxSpeed.Valid() || a.MaxSpeed.Min < 0 {
			return bad("max speed")
		}
		if !a.MaxForce.Valid() || a.MaxForce.Min < 0 {
			return bad("max force")
		}
		if !a.MaxRotation.Valid() || a.MaxRotation.Min < 0 {
			return bad("max rotation")
		}
	case KindNgon:
		n := m.Ngon
		if !n.Vertices.Valid() || n.Vertices.Min < 1 {
			return bad("vertices")
		}
		if !n.Step.Valid() || n.Step.Min < 1 {
			return bad("step")
		}
		if !n.Speed.Valid() || n.Speed.Min < 0 {
			return bad("speed")
		}
		if n.Dimensions.X < 0 || n.Dimensions.Y < 0 {
			return bad("dimensions")
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, m.Kind)
	}

	return nil
}

// Area describes an installation an agent may head for.
type Area struct {
	Bounds geom.Rect
	// Available is how many more sounds fit before the installation max.
	Available int
	// Needed is how many sounds are missing to reach the installation min.
	Needed int
	// NeededToTarget is how many sounds are missing to reach the current
	// simultaneous-sound target. Negative when above it.
	NeededToTarget int
}

// Context is the layout information a movement step reads.
type Context struct {
	// Installation is the bounding rectangle of the sound's installation.
	Installation geom.Rect
	// Limit bounds every position.
	Limit geom.Rect
	// Areas are the installations the source is permitted at.
	Areas []Area
}

// State is the per-sound movement state. It is a plain value: Advance
// returns the next state and never mutates shared data.
type State struct {
	Kind    Kind
	Pos     r2.Vec
	Vel     r2.Vec
	Heading float64

	// agent
	Target      r2.Vec
	MaxSpeed    float64
	MaxForce    float64
	MaxRotation float64
	Directional bool

	// ngon
	Vertices   int
	Step       int
	Speed      float64
	Dimensions r2.Vec
	Offset     float64
	Start, End int
	Lerp       float64

	Rng rand.PCG
}

// Rotation is the angle the sound's channel ring is turned by its movement.
func (s *State) Rotation() float64 {
	if s.Kind == KindAgent && s.Directional {
		return s.Heading
	}

	return 0
}

func (s *State) float() float64 {
	return float64(s.Rng.Uint64()>>11) * 0x1p-53
}

func (s *State) pointIn(r geom.Rect) r2.Vec {
	x := s.float()
	y := s.float()

	return r.At(r2.Vec{X: x, Y: y})
}

// Spawn draws the concrete parameters and the initial state for a new sound
// whose installation is ctx.Installation.
func Spawn(m Model, seed uint64, ctx *Context) State {
	s := State{Kind: m.Kind}
	s.Rng.Seed(seed, seed^0x9e3779b97f4a7c15)

	switch m.Kind {
	case KindAgent:
		spawnAgent(&s, m.Agent, ctx)
	case KindNgon:
		spawnNgon(&s, m.Ngon, ctx)
	default:
		s.Pos = ctx.Installation.At(m.Fixed.Point)
	}

	return s
}

// Advance moves s forward by dt seconds.
func Advance(s State, dt float64, ctx *Context) State {
	switch s.Kind {
	case KindAgent:
		advanceAgent(&s, dt, ctx)
	case KindNgon:
		advanceNgon(&s, dt, ctx)
	}

	return s
}
