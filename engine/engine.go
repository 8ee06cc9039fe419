// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"fmt"
	"math"
	"slices"

	"github.com/ik5/soundscape/analysis"
	"github.com/ik5/soundscape/control"
	"github.com/ik5/soundscape/dbap"
	"github.com/ik5/soundscape/movement"
	"github.com/ik5/soundscape/project"
	"gonum.org/v1/gonum/spatial/r2"
)

// MaxCommandsPerBlock bounds the commands applied before one block renders.
const MaxCommandsPerBlock = 256

type Config struct {
	SampleRate        int
	BlockFrames       int
	OutputChannels    int
	InputChannels     int
	InputLatency      int // frames
	MaxSounds         int
	MaxSpeakers       int
	MaxSourceChannels int
	CommandQueue      int
	EventQueue        int
	Rolloff           float64
	Blur              float64
}

func (c *Config) validate() error {
	for _, v := range []int{c.SampleRate, c.BlockFrames, c.OutputChannels, c.MaxSounds, c.MaxSpeakers, c.MaxSourceChannels} {
		if v <= 0 {
			return fmt.Errorf("%w: sizes must be positive: %+v", ErrConfig, *c)
		}
	}
	if c.InputChannels < 0 || c.InputLatency < 0 {
		return fmt.Errorf("%w: negative input settings", ErrConfig)
	}

	// One block can end every sound, reject every drained spawn and report
	// the replaced layout.
	c.CommandQueue = max(c.CommandQueue, MaxCommandsPerBlock)
	c.EventQueue = max(c.EventQueue, 2*c.MaxSounds+MaxCommandsPerBlock+1)

	return nil
}

type voice struct {
	sound  *Sound
	prev   []float64 // gains per channel and installation speaker
	cur    []float64
	primed bool
}

// Engine renders the soundscape. Process runs on the real-time goroutine and
// owns every Sound and Layout handed to it; everything else talks to it
// through Commands and Events.
type Engine struct {
	cfg Config

	layout *Layout
	voices []voice
	active int

	acc     [][]float32 // per speaker
	samples []float32   // one source block, interleaved
	input   []float32
	inputOK bool
	ring    *control.SampleRing
	reader  *control.RingReader

	commands *control.Queue[Command]
	events   *control.Queue[Event]
	backlog  []Event // ended and rejected events waiting for queue room
	lost     uint64
	analyzer *analysis.Analyzer
	ctx      movement.Context

	master   float64
	rolloff  float64
	playing  bool
	timeline uint64
}

// New sizes every buffer the engine will ever use. analyzer may be nil.
func New(cfg Config, analyzer *analysis.Analyzer) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		voices:   make([]voice, cfg.MaxSounds),
		acc:      make([][]float32, cfg.MaxSpeakers),
		samples:  make([]float32, cfg.BlockFrames*cfg.MaxSourceChannels),
		commands: control.NewQueue[Command]("engine-commands", cfg.CommandQueue),
		events:   control.NewQueue[Event]("engine-events", cfg.EventQueue),
		backlog:  make([]Event, 0, cfg.MaxSounds+cfg.CommandQueue),
		analyzer: analyzer,
		master:   1,
		rolloff:  cfg.Rolloff,
		playing:  true,
	}

	gains := cfg.MaxSourceChannels * cfg.MaxSpeakers
	for i := range e.voices {
		e.voices[i].prev = make([]float64, gains)
		e.voices[i].cur = make([]float64, gains)
	}
	for i := range e.acc {
		e.acc[i] = make([]float32, cfg.BlockFrames)
	}

	if cfg.InputChannels > 0 {
		e.input = make([]float32, cfg.BlockFrames*cfg.InputChannels)
		e.ring = control.NewSampleRing(cfg.InputChannels, 4*(cfg.InputLatency+cfg.BlockFrames))
		e.reader = control.NewRingReader(e.ring, cfg.InputLatency)
	}

	return e, nil
}

// Commands is the inbound queue.
func (e *Engine) Commands() *control.Queue[Command] { return e.commands }

// Events is the outbound queue.
func (e *Engine) Events() *control.Queue[Event] { return e.events }

// Input is where the capture stream writes live input, or nil without input
// channels.
func (e *Engine) Input() *control.SampleRing { return e.ring }

func (e *Engine) Config() Config { return e.cfg }

// Active is the number of sounds playing. Like Timeline it may only be read
// from the goroutine calling Process.
func (e *Engine) Active() int { return e.active }

// Timeline is the number of frames rendered while playing.
func (e *Engine) Timeline() uint64 { return e.timeline }

// Lost counts ended and rejected events that overflowed the backlog.
func (e *Engine) Lost() uint64 { return e.lost }

// Process renders interleaved output. len(out) should be a whole number of
// frames; a trailing partial frame is silenced. Process never blocks and
// does not allocate.
func (e *Engine) Process(out []float32) {
	ch := e.cfg.OutputChannels
	frames := len(out) / ch
	clear(out[frames*ch:])

	for off := 0; off < frames; {
		n := min(e.cfg.BlockFrames, frames-off)
		e.render(out[off*ch:(off+n)*ch], n)
		off += n
	}
}

func (e *Engine) render(out []float32, n int) {
	e.flush()
	e.drain()
	clear(out)

	l := e.layout
	if !e.playing || l == nil {
		return
	}

	for s := range l.Speakers {
		clear(e.acc[s][:n])
	}
	if e.reader != nil {
		e.inputOK = e.reader.Read(e.input[:n*e.cfg.InputChannels])
	}

	solo := false
	for i := range l.Sources {
		solo = solo || l.Sources[i].solo
	}

	dt := float64(n) / float64(e.cfg.SampleRate)
	for i := 0; i < e.active; {
		if e.play(&e.voices[i], n, dt, solo) {
			i++
			continue
		}
		e.finish(i, true)
	}

	outCh := e.cfg.OutputChannels
	master := float32(e.master)
	for s, spk := range l.Speakers {
		acc := e.acc[s][:n]
		for f := range acc {
			acc[f] *= master
		}
		if spk.Channel < 0 || spk.Channel >= outCh {
			continue
		}
		for f, x := range acc {
			out[f*outCh+spk.Channel] += x
		}
	}

	if e.analyzer != nil {
		e.analyzer.Process(e.acc[:len(l.Speakers)], n)
	}

	e.timeline += uint64(n)
}

// play renders one block of v into the speaker accumulators and reports
// whether the sound keeps playing.
func (e *Engine) play(v *voice, n int, dt float64, solo bool) bool {
	snd := v.sound
	l := e.layout
	src := &l.Sources[snd.src]
	inst := &l.Installations[snd.inst]

	e.ctx.Installation = inst.Bounds
	e.ctx.Limit = src.Limit
	e.ctx.Areas = e.areas(l, src)
	snd.Movement = movement.Advance(snd.Movement, dt, &e.ctx)

	channels, eof := e.read(snd, src, n)
	e.pan(v, snd, src, inst, channels)

	vol := src.volume
	if src.muted || (solo && !src.solo) {
		vol = 0
	}
	a0 := snd.gain(snd.elapsed) * vol
	a1 := snd.gain(snd.elapsed+n) * vol

	stride := e.cfg.MaxSpeakers
	for c := range channels {
		for k, spk := range inst.Speakers {
			p, q := v.prev[c*stride+k], v.cur[c*stride+k]
			if (p == 0 && q == 0) || (a0 == 0 && a1 == 0) {
				continue
			}

			acc := e.acc[spk][:n]
			for f := range acc {
				t := float64(f) / float64(n)
				g := (p + (q-p)*t) * (a0 + (a1-a0)*t)
				acc[f] += e.samples[f*channels+c] * float32(g)
			}
		}
		copy(v.prev[c*stride:c*stride+len(inst.Speakers)], v.cur[c*stride:c*stride+len(inst.Speakers)])
	}

	snd.elapsed += n
	snd.cursor += n

	return !eof && !snd.done()
}

// read fills e.samples with n frames of the sound's audio and returns the
// channel count. eof is set when a non-looping sample has run out.
func (e *Engine) read(snd *Sound, src *Source, n int) (channels int, eof bool) {
	limit := e.cfg.MaxSourceChannels

	if src.Kind == project.Live {
		channels = min(len(src.InputChannels), limit)
		if channels == 0 {
			clear(e.samples[:n])
			return 1, false
		}

		dst := e.samples[:n*channels]
		clear(dst)

		inCh := e.cfg.InputChannels
		for c, in := range src.InputChannels[:channels] {
			if in >= inCh {
				e.warn(snd, WarnChannelMismatch)
				continue
			}
			for f := range n {
				dst[f*channels+c] = e.input[f*inCh+in]
			}
		}
		if inCh > 0 && !e.inputOK {
			e.warn(snd, WarnInputUnderrun)
		}

		return channels, false
	}

	buf := src.Sample.Buffer()
	if buf.Frames() == 0 {
		e.warn(snd, WarnMissingSamples)
		channels = min(max(src.Channels, 1), limit)
		clear(e.samples[:n*channels])

		return channels, false
	}

	channels = buf.Channels
	if channels > limit || (src.Channels > 0 && src.Channels != channels) {
		e.warn(snd, WarnChannelMismatch)
	}
	if channels > limit {
		channels = limit
		clear(e.samples[:n*channels])

		return channels, false
	}

	dst := e.samples[:n*channels]
	total := buf.Frames()

	if src.Playback == project.Continuous {
		snd.cursor = int(e.timeline % uint64(total))
		buf.ReadFrames(dst, snd.cursor, true)

		return channels, false
	}

	got := buf.ReadFrames(dst, snd.cursor, src.Loop)
	clear(dst[got*channels:])

	return channels, !src.Loop && snd.cursor+n >= total
}

// pan computes the gains of every sound channel for this block. The ring of
// channel points is turned by the source rotation plus the heading of
// directional movement.
func (e *Engine) pan(v *voice, snd *Sound, src *Source, inst *Installation, channels int) {
	stride := e.cfg.MaxSpeakers
	np := len(inst.Speakers)
	pos := snd.Movement.Pos
	rot := src.Rotation + snd.Movement.Rotation()

	if !finite(pos.X) || !finite(pos.Y) || !finite(rot) {
		e.warn(snd, WarnNaNGain)
		for c := range channels {
			clear(v.cur[c*stride : c*stride+np])
			clear(v.prev[c*stride : c*stride+np])
		}

		return
	}

	for c := range channels {
		p := pos
		if channels > 1 {
			a := rot + 2*math.Pi*float64(c)/float64(channels)
			p = r2.Add(pos, r2.Vec{X: -src.Spread * math.Cos(a), Y: src.Spread * math.Sin(a)})
		}

		g := dbap.Gains(v.cur[c*stride:c*stride+np], p, inst.panners, e.rolloff, e.cfg.Blur)
		if slices.ContainsFunc(g, func(x float64) bool { return math.IsNaN(x) || math.IsInf(x, 0) }) {
			e.warn(snd, WarnNaNGain)
			clear(g)
		}
	}

	if !v.primed {
		for c := range channels {
			copy(v.prev[c*stride:c*stride+np], v.cur[c*stride:c*stride+np])
		}
		v.primed = true
	}
}

func (e *Engine) areas(l *Layout, src *Source) []movement.Area {
	a := l.areas[:0]
	for _, k := range src.Installations {
		if len(a) == cap(a) {
			break
		}
		in := &l.Installations[k]
		a = append(a, movement.Area{
			Bounds:         in.Bounds,
			Available:      max(in.Max-in.count, 0),
			Needed:         max(in.Min-in.count, 0),
			NeededToTarget: in.target - in.count,
		})
	}

	return a
}

func (e *Engine) warn(snd *Sound, w Warning) {
	if snd.warned&uint8(w) != 0 {
		return
	}
	snd.warned |= uint8(w)
	e.events.TryPush(Event{Kind: EventWarning, Sound: snd, Warning: w})
}

// finish removes voice i, reporting the sound as ended. counted is false
// when the sound's layout indices are no longer valid.
func (e *Engine) finish(i int, counted bool) {
	snd := e.voices[i].sound
	if counted {
		e.layout.Installations[snd.inst].count--
		if snd.grp >= 0 {
			e.layout.Groups[snd.grp].count--
		}
	}

	last := e.active - 1
	e.voices[i], e.voices[last] = e.voices[last], e.voices[i]
	e.voices[last].sound = nil
	e.active--

	snd.ended = true
	e.report(Event{Kind: EventEnded, Sound: snd})
}

// report delivers an event the control side needs to release capacity. If
// the queue is full it waits in the backlog, in order, for a later block.
func (e *Engine) report(ev Event) {
	if len(e.backlog) == 0 && e.room() && e.events.TryPush(ev) {
		return
	}
	if len(e.backlog) == cap(e.backlog) {
		e.lost++
		return
	}
	e.backlog = append(e.backlog, ev)
}

// room reports free queue space. The engine is the only producer.
func (e *Engine) room() bool { return e.events.Len() < e.events.Cap() }

func (e *Engine) flush() {
	n := 0
	for n < len(e.backlog) && e.room() && e.events.TryPush(e.backlog[n]) {
		n++
	}
	if n == 0 {
		return
	}
	rest := copy(e.backlog, e.backlog[n:])
	clear(e.backlog[rest:])
	e.backlog = e.backlog[:rest]
}

func (e *Engine) drain() {
	for range MaxCommandsPerBlock {
		cmd, ok := e.commands.TryPop()
		if !ok {
			return
		}
		e.apply(cmd)
	}
}

func (e *Engine) apply(cmd Command) {
	switch cmd.Kind {
	case CmdSpawn:
		e.spawn(cmd.Sound)
	case CmdStop:
		for i := range e.active {
			if s := e.voices[i].sound; s.ID == cmd.SoundID {
				s.stop()
			}
		}
	case CmdStopAll:
		for i := range e.active {
			e.voices[i].sound.stop()
		}
	case CmdSetMasterVolume:
		e.master = clamp01(cmd.Value)
	case CmdSetRolloff:
		if cmd.Value >= 0 && !math.IsInf(cmd.Value, 0) {
			e.rolloff = cmd.Value
		}
	case CmdSetPlaying:
		e.playing = cmd.Flag
	case CmdSetLayout:
		e.setLayout(cmd.Layout)
	case CmdSetSourceVolume, CmdSetMute, CmdSetSolo:
		e.setSourceMix(cmd)
	case CmdSetTarget:
		if e.layout == nil {
			return
		}
		if k := e.layout.installation(cmd.Installation); k >= 0 {
			e.layout.Installations[k].target = int(cmd.Value)
		}
	}
}

func (e *Engine) setSourceMix(cmd Command) {
	if e.layout == nil {
		return
	}
	k := e.layout.source(cmd.Source)
	if k < 0 {
		return
	}

	src := &e.layout.Sources[k]
	switch cmd.Kind {
	case CmdSetSourceVolume:
		src.volume = clamp01(cmd.Value)
	case CmdSetMute:
		src.muted = cmd.Flag
	case CmdSetSolo:
		src.solo = cmd.Flag
	}
}

func (e *Engine) spawn(snd *Sound) {
	if snd == nil {
		return
	}

	if r := e.resolve(snd); r != ReasonNone {
		e.report(Event{Kind: EventRejected, Sound: snd, Reason: r})
		return
	}

	if e.active == len(e.voices) {
		e.report(Event{Kind: EventRejected, Sound: snd, Reason: ReasonTooManySounds})
		return
	}

	inst := &e.layout.Installations[snd.inst]
	if inst.count >= inst.Max {
		e.report(Event{Kind: EventRejected, Sound: snd, Reason: ReasonInstallationFull})
		return
	}
	if snd.grp >= 0 {
		if g := &e.layout.Groups[snd.grp]; g.count >= g.Max {
			e.report(Event{Kind: EventRejected, Sound: snd, Reason: ReasonGroupFull})
			return
		}
		e.layout.Groups[snd.grp].count++
	}
	inst.count++

	snd.reset()
	v := &e.voices[e.active]
	v.sound = snd
	v.primed = false
	e.active++
}

// resolve maps the sound's ids onto the current layout.
func (e *Engine) resolve(snd *Sound) Reason {
	l := e.layout
	if l == nil {
		return ReasonUnknownSource
	}

	if snd.src = l.source(snd.Source); snd.src < 0 {
		return ReasonUnknownSource
	}
	if snd.inst = l.installation(snd.Installation); snd.inst < 0 {
		return ReasonUnknownInstallation
	}

	src := &l.Sources[snd.src]
	if !slices.Contains(src.Installations, snd.inst) {
		return ReasonNotPermitted
	}

	snd.grp = -1
	if snd.Grouped {
		if snd.grp = l.group(snd.Group); snd.grp < 0 {
			return ReasonUnknownGroup
		}
		if !slices.Contains(src.Groups, snd.grp) {
			return ReasonNotPermitted
		}
	}

	return ReasonNone
}

func (e *Engine) setLayout(nl *Layout) {
	if nl == nil {
		return
	}
	if len(nl.Speakers) > e.cfg.MaxSpeakers {
		e.events.TryPush(Event{Kind: EventLayoutRejected, Layout: nl})
		return
	}

	old := e.layout
	e.layout = nl

	for i := 0; i < e.active; {
		v := &e.voices[i]
		if e.resolve(v.sound) != ReasonNone {
			// The edit removed what this sound referred to.
			e.finish(i, false)
			continue
		}

		nl.Installations[v.sound.inst].count++
		if v.sound.grp >= 0 {
			nl.Groups[v.sound.grp].count++
		}
		v.primed = false
		i++
	}

	if e.analyzer != nil {
		e.analyzer.SetLayout(len(nl.Speakers), nl.analysisGroups, nl.Generation)
	}

	if old != nil {
		e.events.TryPush(Event{Kind: EventLayoutReplaced, Layout: old})
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}

	return min(max(v, 0), 1)
}
