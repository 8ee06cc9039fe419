// SPDX-License-Identifier: EPL-2.0

package scheduler_test

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/ik5/soundscape/engine"
	"github.com/ik5/soundscape/project"
	"github.com/ik5/soundscape/scheduler"
	"github.com/ik5/soundscape/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	rate = 48000
	tick = 16 * time.Millisecond
)

type spawned struct {
	at    time.Duration
	sound *engine.Sound
}

// sink accepts every sound and ends it once its duration has passed.
type sink struct {
	now     time.Duration
	sounds  []spawned
	playing []spawned
	targets map[project.InstallationID]int
	refuse  bool
}

func newSink() *sink { return &sink{targets: make(map[project.InstallationID]int)} }

func (k *sink) Spawn(s *engine.Sound) bool {
	if k.refuse {
		return false
	}
	k.sounds = append(k.sounds, spawned{k.now, s})
	k.playing = append(k.playing, spawned{k.now, s})

	return true
}

func (k *sink) SetTarget(id project.InstallationID, n int) { k.targets[id] = n }

func (k *sink) advance(s *scheduler.Scheduler, dt time.Duration) {
	k.now += dt
	s.Tick(dt)

	kept := k.playing[:0]
	for _, p := range k.playing {
		length := time.Duration(p.sound.Duration) * time.Second / rate
		if p.sound.Duration > 0 && k.now-p.at >= length {
			s.Ended(p.sound)
			continue
		}
		kept = append(kept, p)
	}
	k.playing = kept
}

// inInstallation and inGroup count what the sink is playing, independent of
// the scheduler's own bookkeeping.
func (k *sink) inInstallation(id project.InstallationID) int {
	n := 0
	for _, p := range k.playing {
		if p.sound.Installation == id {
			n++
		}
	}

	return n
}

func (k *sink) inGroup(id project.GroupID) int {
	n := 0
	for _, p := range k.playing {
		if p.sound.Grouped && p.sound.Group == id {
			n++
		}
	}

	return n
}

func room(p *project.Project, id project.InstallationID, x0, y0 float64) {
	corners := []r2.Vec{{X: x0, Y: y0}, {X: x0 + 4, Y: y0}, {X: x0, Y: y0 + 4}, {X: x0 + 4, Y: y0 + 4}}
	for _, c := range corners {
		p.Speakers = append(p.Speakers, project.Speaker{
			ID:            p.NextSpeakerID(),
			Position:      c,
			Channel:       len(p.Speakers),
			Installations: []project.InstallationID{id},
		})
	}
}

func gallery(seed uint64) *project.Project {
	p := project.New("gallery")
	p.Seed = [2]uint64{seed, seed + 1}
	room(p, 1, 0, 0)
	p.Installations = []project.Installation{
		{ID: 1, Name: "hall", Simultaneous: utils.Range[int]{Min: 1, Max: 3}},
	}
	p.Groups = []project.Group{{
		ID:             1,
		OccurrenceRate: utils.Range[float64]{Min: 1.0 / 60, Max: 1.0 / 5},
		Simultaneous:   utils.Range[int]{Min: 0, Max: 3},
	}}

	src := project.DefaultSource(1, "birds", "birds.wav")
	src.Installations = []project.InstallationID{1}
	src.Groups = []project.GroupID{1}
	src.Duration = utils.Range[float64]{Min: 2000, Max: 20000}
	src.Attack = utils.Range[float64]{Min: 100, Max: 500}
	src.Release = utils.Range[float64]{Min: 100, Max: 500}
	p.Sources = []project.Source{src}

	return p
}

func TestSpawnCountsOverTwoMinutes(t *testing.T) {
	t.Parallel()

	for seed := range uint64(8) {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			t.Parallel()

			k := newSink()
			s := scheduler.New(scheduler.Config{SampleRate: rate}, k)
			s.Load(gallery(seed))

			for range int(120 * time.Second / tick) {
				k.advance(s, tick)
				require.LessOrEqual(t, k.inInstallation(1), 3)
				require.Equal(t, k.inInstallation(1), s.InstallationActive(1))
			}

			assert.GreaterOrEqual(t, len(k.sounds), 2)
			assert.LessOrEqual(t, len(k.sounds), 24)
			assert.EqualValues(t, len(k.sounds), s.Spawns())
		})
	}
}

func TestSpawnsAreSpacedByMaxRate(t *testing.T) {
	t.Parallel()

	k := newSink()
	s := scheduler.New(scheduler.Config{SampleRate: rate}, k)
	s.Load(gallery(3))

	for range int(60 * time.Second / tick) {
		k.advance(s, tick)
	}

	for i := 1; i < len(k.sounds); i++ {
		gap := k.sounds[i].at - k.sounds[i-1].at
		assert.GreaterOrEqual(t, gap, 5*time.Second, "spawn %d", i)
	}
}

func TestSameSeedSameSpawns(t *testing.T) {
	t.Parallel()

	run := func(seed uint64) []string {
		k := newSink()
		s := scheduler.New(scheduler.Config{SampleRate: rate}, k)
		s.Load(gallery(seed))
		for range int(90 * time.Second / tick) {
			k.advance(s, tick)
		}

		out := make([]string, 0, len(k.sounds))
		for _, sp := range k.sounds {
			snd := sp.sound
			out = append(out, fmt.Sprintf("%v %d %d %v %.6f,%.6f",
				sp.at, snd.ID, snd.Duration, snd.Movement.Kind, snd.Movement.Pos.X, snd.Movement.Pos.Y))
		}

		return out
	}

	a, b := run(42), run(42)
	require.NotEmpty(t, a)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, run(43))
}

func TestNeverExceedsCaps(t *testing.T) {
	t.Parallel()

	gen := rand.New(rand.NewPCG(1, 2))

	for c := range 16 {
		p := project.New("random")
		p.Seed = [2]uint64{gen.Uint64(), gen.Uint64()}

		nInst := 1 + gen.IntN(3)
		for i := range nInst {
			id := project.InstallationID(i + 1)
			room(p, id, float64(i)*5, 0)
			lo := gen.IntN(3)
			p.Installations = append(p.Installations, project.Installation{
				ID:           id,
				Name:         fmt.Sprintf("room %d", i),
				Simultaneous: utils.Range[int]{Min: lo, Max: lo + gen.IntN(4)},
			})
		}

		nGroup := 1 + gen.IntN(3)
		for g := range nGroup {
			lo := gen.IntN(2)
			p.Groups = append(p.Groups, project.Group{
				ID:             project.GroupID(g + 1),
				OccurrenceRate: utils.Range[float64]{Min: 0.01 + gen.Float64()*0.1, Max: 0.2 + gen.Float64()*2},
				Simultaneous:   utils.Range[int]{Min: lo, Max: lo + gen.IntN(4)},
			})
		}

		for i := range 1 + gen.IntN(5) {
			src := project.DefaultSource(project.SourceID(i+1), "s", "s.wav")
			src.Installations = []project.InstallationID{project.InstallationID(1 + gen.IntN(nInst))}
			src.Groups = []project.GroupID{project.GroupID(1 + gen.IntN(nGroup))}
			src.Duration = utils.Range[float64]{Min: 500, Max: 15000}
			p.Sources = append(p.Sources, src)
		}

		t.Run(fmt.Sprintf("config %d", c), func(t *testing.T) {
			k := newSink()
			s := scheduler.New(scheduler.Config{SampleRate: rate}, k)
			s.Load(p)

			for range int(60 * time.Second / tick) {
				k.advance(s, tick)

				for _, in := range p.Installations {
					require.LessOrEqual(t, k.inInstallation(in.ID), in.Simultaneous.Max, "%v", in.ID)
				}
				for _, g := range p.Groups {
					require.LessOrEqual(t, k.inGroup(g.ID), g.Simultaneous.Max, "%v", g.ID)
				}
			}
			for id, n := range k.targets {
				i, _ := p.Installation(id)
				r := p.Installations[i].Simultaneous
				assert.True(t, n >= r.Min && n <= r.Max, "%v target %d", id, n)
			}
		})
	}
}

func TestRefusedSpawnIsForgotten(t *testing.T) {
	t.Parallel()

	k := newSink()
	k.refuse = true
	s := scheduler.New(scheduler.Config{SampleRate: rate}, k)
	s.Load(gallery(1))

	for range int(20 * time.Second / tick) {
		k.advance(s, tick)
	}

	assert.Zero(t, s.Active())
	assert.Zero(t, s.Spawns())
}

func TestEndedReleasesCounts(t *testing.T) {
	t.Parallel()

	k := newSink()
	s := scheduler.New(scheduler.Config{SampleRate: rate}, k)
	p := gallery(5)
	p.Sources[0].Duration = utils.Range[float64]{Min: project.DayMS, Max: project.DayMS}
	s.Load(p)

	for range int(30 * time.Second / tick) {
		k.advance(s, tick)
	}
	require.NotEmpty(t, k.sounds)
	assert.Zero(t, k.sounds[0].sound.Duration, "a day means forever")

	n := s.InstallationActive(1)
	s.Ended(k.sounds[0].sound)
	assert.Equal(t, n-1, s.InstallationActive(1))
	assert.Equal(t, n-1, s.GroupActive(1))

	s.Ended(k.sounds[0].sound)
	assert.Equal(t, n-1, s.InstallationActive(1), "ending twice is a no-op")
}

func TestUpdateKeepsPlayingCounts(t *testing.T) {
	t.Parallel()

	k := newSink()
	s := scheduler.New(scheduler.Config{SampleRate: rate}, k)
	p := gallery(9)
	p.Sources[0].Duration = utils.Range[float64]{Min: project.DayMS, Max: project.DayMS}
	s.Load(p)
	for range int(10 * time.Second / tick) {
		k.advance(s, tick)
	}
	before := s.InstallationActive(1)
	require.Positive(t, before)

	edited := p.Clone()
	edited.Groups[0].OccurrenceRate.Max = 1
	s.Update(edited)

	assert.Equal(t, before, s.InstallationActive(1))
	assert.Equal(t, before, s.GroupActive(1))
}

func TestPreviewIsUngrouped(t *testing.T) {
	t.Parallel()

	k := newSink()
	s := scheduler.New(scheduler.Config{SampleRate: rate}, k)
	p := gallery(2)
	room(p, 2, 5, 0)
	p.Installations = append(p.Installations, project.DefaultInstallation(2, "annex"))
	s.Load(p)

	_, ok := s.Preview(9, 1)
	assert.False(t, ok, "unknown source")
	_, ok = s.Preview(1, 9)
	assert.False(t, ok, "unknown installation")
	_, ok = s.Preview(1, 2)
	assert.False(t, ok, "source not permitted there")

	snd, ok := s.Preview(1, 1)
	require.True(t, ok)
	assert.False(t, snd.Grouped)
	assert.Equal(t, project.InstallationID(1), snd.Installation)
	assert.Positive(t, snd.Duration)

	s.Track(snd)
	assert.Equal(t, 1, s.InstallationActive(1))
	assert.Zero(t, s.GroupActive(1))

	s.Ended(snd)
	assert.Zero(t, s.InstallationActive(1))
}
