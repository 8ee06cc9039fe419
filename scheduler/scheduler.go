// SPDX-License-Identifier: EPL-2.0

package scheduler

import (
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/ik5/soundscape/engine"
	"github.com/ik5/soundscape/geom"
	"github.com/ik5/soundscape/movement"
	"github.com/ik5/soundscape/project"
	"github.com/sirupsen/logrus"
)

// DefaultWalkSigma is the noise-walk step deviation, in sounds per √second.
const DefaultWalkSigma = 0.5

// Sink receives the scheduler's decisions. Spawn reports whether the sound
// was handed over; a sound that was not is forgotten.
type Sink interface {
	Spawn(s *engine.Sound) bool
	SetTarget(id project.InstallationID, n int)
}

type Config struct {
	SampleRate int
	WalkSigma  float64
}

type installation struct {
	id       project.InstallationID
	bounds   geom.Rect
	min, max int
	walk     float64
	target   int
	sent     int // last target passed to the sink, -1 before the first
	active   int
}

type group struct {
	id       project.GroupID
	minRate  float64
	maxRate  float64
	min, max int
	walk     float64
	active   int
	last     time.Duration
	// sources[k] lists the source indices of this group permitted at
	// installation k.
	sources [][]int
}

// Scheduler decides when and where sounds are born. It is driven entirely
// by Tick, so it runs the same in simulated and wall-clock time. It is not
// safe for concurrent use.
type Scheduler struct {
	cfg  Config
	sink Sink

	pcg rand.PCG
	rng *rand.Rand

	project *project.Project
	insts   []installation
	groups  []group
	limits  []geom.Rect // per source
	areas   []movement.Area

	live   map[engine.SoundID]*engine.Sound
	now    time.Duration
	nextID engine.SoundID
	spawns uint64
}

func New(cfg Config, sink Sink) *Scheduler {
	if cfg.WalkSigma == 0 {
		cfg.WalkSigma = DefaultWalkSigma
	}

	s := &Scheduler{
		cfg:    cfg,
		sink:   sink,
		live:   make(map[engine.SoundID]*engine.Sound),
		nextID: 1,
	}
	s.rng = rand.New(&s.pcg)

	return s
}

// Load starts over with p: the generator is reseeded from the project seed
// and the walks restart. Sounds still playing keep counting.
func (s *Scheduler) Load(p *project.Project) {
	s.pcg.Seed(p.Seed[0], p.Seed[1])
	s.now = 0
	s.rebuild(p, nil, nil)
}

// Update applies an edited project without reseeding. Walks of surviving
// installations and groups carry over.
func (s *Scheduler) Update(p *project.Project) {
	walksI := make(map[project.InstallationID]float64, len(s.insts))
	for _, in := range s.insts {
		walksI[in.id] = in.walk
	}
	walksG := make(map[project.GroupID]group, len(s.groups))
	for _, g := range s.groups {
		walksG[g.id] = g
	}

	s.rebuild(p, walksI, walksG)
}

func (s *Scheduler) rebuild(p *project.Project, walksI map[project.InstallationID]float64, prevG map[project.GroupID]group) {
	s.project = p

	s.insts = make([]installation, len(p.Installations))
	for i, in := range p.Installations {
		st := installation{id: in.ID, min: in.Simultaneous.Min, max: in.Simultaneous.Max, sent: -1}
		st.bounds, _ = p.Bounds(in.ID)
		if w, ok := walksI[in.ID]; ok {
			st.walk = reflect(w, float64(st.min), float64(st.max))
		} else {
			st.walk = float64(st.min) + s.rng.Float64()*float64(st.max-st.min)
		}
		s.insts[i] = st
	}

	s.groups = make([]group, len(p.Groups))
	for i, g := range p.Groups {
		st := group{
			id:      g.ID,
			minRate: g.OccurrenceRate.Min,
			maxRate: g.OccurrenceRate.Max,
			min:     g.Simultaneous.Min,
			max:     g.Simultaneous.Max,
			last:    s.now,
			sources: make([][]int, len(p.Installations)),
		}
		if prev, ok := prevG[g.ID]; ok {
			st.walk = reflect(prev.walk, float64(st.min), float64(st.max))
			st.last = prev.last
		} else {
			st.walk = float64(st.min) + s.rng.Float64()*float64(st.max-st.min)
		}

		for k, in := range p.Installations {
			for si := range p.Sources {
				src := &p.Sources[si]
				if slices.Contains(src.Groups, g.ID) && slices.Contains(src.Installations, in.ID) {
					st.sources[k] = append(st.sources[k], si)
				}
			}
		}
		s.groups[i] = st
	}

	s.limits = make([]geom.Rect, len(p.Sources))
	for i := range p.Sources {
		s.limits[i], _ = p.SourceLimit(&p.Sources[i])
	}
	s.areas = make([]movement.Area, 0, len(p.Installations))

	// Recount what is still playing against the new layout.
	for _, snd := range s.live {
		if i := s.installation(snd.Installation); i >= 0 {
			s.insts[i].active++
		}
		if g := s.group(snd.Group); g >= 0 && snd.Grouped {
			s.groups[g].active++
		}
	}
}

func (s *Scheduler) installation(id project.InstallationID) int {
	for i := range s.insts {
		if s.insts[i].id == id {
			return i
		}
	}

	return -1
}

func (s *Scheduler) group(id project.GroupID) int {
	for i := range s.groups {
		if s.groups[i].id == id {
			return i
		}
	}

	return -1
}

// Ended releases a sound that the engine finished or rejected.
func (s *Scheduler) Ended(snd *engine.Sound) {
	if _, ok := s.live[snd.ID]; !ok {
		return
	}
	delete(s.live, snd.ID)

	if i := s.installation(snd.Installation); i >= 0 {
		s.insts[i].active = max(s.insts[i].active-1, 0)
	}
	if g := s.group(snd.Group); g >= 0 && snd.Grouped {
		s.groups[g].active = max(s.groups[g].active-1, 0)
	}
}

// Track counts a sound spawned outside the scheduler, such as a preview.
func (s *Scheduler) Track(snd *engine.Sound) {
	s.live[snd.ID] = snd
	if i := s.installation(snd.Installation); i >= 0 {
		s.insts[i].active++
	}
	if g := s.group(snd.Group); g >= 0 && snd.Grouped {
		s.groups[g].active++
	}
}

// NextID reserves a sound id.
func (s *Scheduler) NextID() engine.SoundID {
	id := s.nextID
	s.nextID++

	return id
}

// Spawns counts sounds handed to the sink since creation.
func (s *Scheduler) Spawns() uint64 { return s.spawns }

// Active is the number of sounds the scheduler believes are playing.
func (s *Scheduler) Active() int { return len(s.live) }

// InstallationActive reports the sound count at an installation.
func (s *Scheduler) InstallationActive(id project.InstallationID) int {
	if i := s.installation(id); i >= 0 {
		return s.insts[i].active
	}

	return 0
}

// GroupActive reports the sound count of a group.
func (s *Scheduler) GroupActive(id project.GroupID) int {
	if g := s.group(id); g >= 0 {
		return s.groups[g].active
	}

	return 0
}

// Tick advances the soundscape by dt.
func (s *Scheduler) Tick(dt time.Duration) {
	if s.project == nil || dt <= 0 {
		return
	}
	s.now += dt
	secs := dt.Seconds()
	step := s.cfg.WalkSigma * math.Sqrt(secs)

	for i := range s.insts {
		in := &s.insts[i]
		in.walk = reflect(in.walk+s.rng.NormFloat64()*step, float64(in.min), float64(in.max))
		in.target = int(math.Round(in.walk))
		if in.target != in.sent {
			s.sink.SetTarget(in.id, in.target)
			in.sent = in.target
		}
	}

	for gi := range s.groups {
		g := &s.groups[gi]
		g.walk = reflect(g.walk+s.rng.NormFloat64()*step, float64(g.min), float64(g.max))
		s.tickGroup(gi, secs)
	}
}

func (s *Scheduler) tickGroup(gi int, secs float64) {
	g := &s.groups[gi]
	if g.maxRate <= 0 || g.active >= g.max {
		return
	}

	elapsed := (s.now - g.last).Seconds()
	if elapsed < 1/g.maxRate {
		return
	}

	// An installation short of its minimum takes priority.
	needy := false
	for k := range s.insts {
		in := &s.insts[k]
		if len(g.sources[k]) > 0 && in.active < in.min && in.active < in.max {
			needy = true
			break
		}
	}

	force := needy || (g.minRate > 0 && elapsed >= 1/g.minRate)
	if !force {
		span := max(1, float64(g.max-g.min))
		pressure := clamp01(0.5 + (math.Round(g.walk)-float64(g.active))/(2*span))
		rate := g.minRate + (g.maxRate-g.minRate)*pressure
		if s.rng.Float64() >= 1-math.Exp(-rate*secs) {
			return
		}
	}

	s.attempt(gi, needy)
}

// attempt spawns one sound of group gi, choosing the installation weighted
// by remaining capacity and then a permitted source uniformly. With needy
// set only installations below their minimum are considered.
func (s *Scheduler) attempt(gi int, needy bool) {
	g := &s.groups[gi]

	total := 0
	for k := range s.insts {
		total += s.weight(g, k, needy)
	}
	if total == 0 {
		logrus.WithFields(logrus.Fields{
			"function": "Scheduler.attempt",
			"group":    g.id,
		}).Debug("no candidate installation")

		return
	}

	pick := s.rng.IntN(total)
	k := 0
	for ; k < len(s.insts); k++ {
		w := s.weight(g, k, needy)
		if pick < w {
			break
		}
		pick -= w
	}

	cands := g.sources[k]
	si := cands[s.rng.IntN(len(cands))]
	snd := s.build(si, k, g.id)

	if !s.sink.Spawn(snd) {
		return
	}

	g.last = s.now
	s.Track(snd)
	s.spawns++

	logrus.WithFields(logrus.Fields{
		"function":     "Scheduler.attempt",
		"sound":        snd.ID,
		"source":       snd.Source,
		"installation": snd.Installation,
		"group":        snd.Group,
	}).Debug("spawned sound")
}

func (s *Scheduler) weight(g *group, k int, needy bool) int {
	in := &s.insts[k]
	if len(g.sources[k]) == 0 || (needy && in.active >= in.min) {
		return 0
	}

	return max(in.max-in.active, 0)
}

// Preview builds an ungrouped sound of source src at installation inst,
// outside the occurrence logic. It fails unless src may play at inst. Once
// the engine has the sound, pass it to Track.
func (s *Scheduler) Preview(src project.SourceID, inst project.InstallationID) (*engine.Sound, bool) {
	if s.project == nil {
		return nil, false
	}

	si, ok := s.project.Source(src)
	k := s.installation(inst)
	if !ok || k < 0 || !slices.Contains(s.project.Sources[si].Installations, inst) {
		return nil, false
	}

	snd := s.build(si, k, 0)
	snd.Grouped = false

	return snd, true
}

// build draws a new sound of source si at installation k.
func (s *Scheduler) build(si, k int, gid project.GroupID) *engine.Sound {
	src := &s.project.Sources[si]
	in := &s.insts[k]

	s.areas = s.areas[:0]
	for _, id := range src.Installations {
		if j := s.installation(id); j >= 0 {
			a := &s.insts[j]
			s.areas = append(s.areas, movement.Area{
				Bounds:         a.bounds,
				Available:      max(a.max-a.active, 0),
				Needed:         max(a.min-a.active, 0),
				NeededToTarget: a.target - a.active,
			})
		}
	}
	ctx := &movement.Context{Installation: in.bounds, Limit: s.limits[si], Areas: s.areas}

	snd := &engine.Sound{
		ID:           s.NextID(),
		Source:       src.ID,
		Installation: in.id,
		Group:        gid,
		Grouped:      true,
		Movement:     movement.Spawn(src.Movement, s.rng.Uint64(), ctx),
		Attack:       s.frames(src.Attack.At(s.rng.Float64())),
		Release:      s.frames(src.Release.At(s.rng.Float64())),
	}
	if d := src.Duration.At(s.rng.Float64()); d < project.DayMS {
		snd.Duration = max(s.frames(d), 1)
	}

	return snd
}

func (s *Scheduler) frames(ms float64) int {
	return int(ms / 1000 * float64(s.cfg.SampleRate))
}

// reflect folds v back into [lo, hi] at the edges.
func reflect(v, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}

	for v < lo || v > hi {
		if v < lo {
			v = 2*lo - v
		}
		if v > hi {
			v = 2*hi - v
		}
	}

	return v
}

func clamp01(v float64) float64 { return min(max(v, 0), 1) }
