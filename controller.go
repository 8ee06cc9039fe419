// SPDX-License-Identifier: EPL-2.0

package soundscape

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ik5/soundscape/control"
	"github.com/ik5/soundscape/engine"
	"github.com/ik5/soundscape/oscio"
	"github.com/ik5/soundscape/project"
	"github.com/ik5/soundscape/scheduler"
)

// Controller owns the editable project and everything on the control side
// of the engine: the scheduler, sample loading and analysis routing. Every
// change is validated, snapshotted into a fresh layout and sent to the
// engine as a command; the engine never sees a half-applied edit.
//
// Controller is safe for concurrent use.
type Controller struct {
	limits   project.Limits
	commands *control.Queue[engine.Command]
	samples  *SampleLoader
	sender   *oscio.Sender

	mu         sync.Mutex
	project    *project.Project
	generation uint64
	sched      *scheduler.Scheduler
	playing    bool
}

func NewController(limits project.Limits, commands *control.Queue[engine.Command],
	samples *SampleLoader, sched scheduler.Config, sender *oscio.Sender,
) *Controller {
	c := &Controller{
		limits:   limits,
		commands: commands,
		samples:  samples,
		sender:   sender,
		playing:  true,
	}
	c.sched = scheduler.New(sched, sink{c})

	return c
}

// sink forwards scheduler decisions as engine commands. It is only called
// with c.mu held.
type sink struct{ c *Controller }

func (s sink) Spawn(snd *engine.Sound) bool { return s.c.commands.Push(engine.Spawn(snd)) }

func (s sink) SetTarget(id project.InstallationID, n int) {
	s.c.commands.Push(engine.SetTarget(id, n))
}

// Project returns a copy of the current project, or nil before Load.
func (c *Controller) Project() *project.Project {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.project == nil {
		return nil
	}

	return c.project.Clone()
}

// Load replaces the whole project and reseeds the scheduler.
func (c *Controller) Load(p *project.Project) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := p.Clone()
	if err := c.commit(next); err != nil {
		return err
	}

	c.sched.Load(next)
	c.commands.Push(engine.SetMasterVolume(next.MasterVolume))
	c.commands.Push(engine.SetRolloff(next.Rolloff))

	logrus.WithFields(logrus.Fields{
		"function":      "Controller.Load",
		"project":       next.Name,
		"speakers":      len(next.Speakers),
		"installations": len(next.Installations),
		"groups":        len(next.Groups),
		"sources":       len(next.Sources),
		"generation":    c.generation,
	}).Info("project loaded")

	return nil
}

// commit validates next and sends its layout. On success next becomes the
// current project.
func (c *Controller) commit(next *project.Project) error {
	if err := next.Validate(c.limits); err != nil {
		return err
	}

	gen := c.generation + 1
	layout, err := engine.BuildLayout(next, c.samples.Ensure(next), gen)
	if err != nil {
		return err
	}

	if !c.commands.Push(engine.SetLayout(layout)) {
		return fmt.Errorf("%w: layout not sent", ErrBusy)
	}

	c.generation = gen
	c.project = next
	if c.sender != nil {
		c.sender.SetRoutes(gen, oscio.Routes(next))
	}

	return nil
}

// edit applies fn to a copy of the project and commits it.
func (c *Controller) edit(fn func(p *project.Project) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.project == nil {
		return ErrNoProject
	}

	next := c.project.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := c.commit(next); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Controller.edit",
			"error":    err,
		}).Warn("edit rejected")

		return err
	}
	c.sched.Update(next)

	return nil
}

func notFound(what fmt.Stringer) error { return fmt.Errorf("%v: %w", what, project.ErrNotFound) }

// upsert replaces the item with the same id or appends it.
func upsert[T any](items []T, v T, same func(*T) bool) []T {
	if i := slices.IndexFunc(items, func(t T) bool { return same(&t) }); i >= 0 {
		items[i] = v
		return items
	}

	return append(items, v)
}

// EditSpeaker adds s or replaces the speaker with its id.
func (c *Controller) EditSpeaker(s project.Speaker) error {
	return c.edit(func(p *project.Project) error {
		p.Speakers = upsert(p.Speakers, s, func(o *project.Speaker) bool { return o.ID == s.ID })
		return nil
	})
}

func (c *Controller) RemoveSpeaker(id project.SpeakerID) error {
	return c.edit(func(p *project.Project) error {
		i, ok := p.Speaker(id)
		if !ok {
			return notFound(id)
		}
		p.Speakers = slices.Delete(p.Speakers, i, i+1)

		return nil
	})
}

// EditInstallation adds in or replaces the installation with its id. The
// listed speakers join it in the same edit, so a new installation can be
// created with the speakers it needs.
func (c *Controller) EditInstallation(in project.Installation, speakers ...project.SpeakerID) error {
	return c.edit(func(p *project.Project) error {
		p.Installations = upsert(p.Installations, in, func(o *project.Installation) bool { return o.ID == in.ID })
		for _, id := range speakers {
			k, ok := p.Speaker(id)
			if !ok {
				return notFound(id)
			}
			p.Speakers[k].Installations = join(p.Speakers[k].Installations, in.ID)
		}

		return nil
	})
}

// RemoveInstallation also drops it from every speaker and source.
func (c *Controller) RemoveInstallation(id project.InstallationID) error {
	return c.edit(func(p *project.Project) error {
		i, ok := p.Installation(id)
		if !ok {
			return notFound(id)
		}
		p.Installations = slices.Delete(p.Installations, i, i+1)

		for k := range p.Speakers {
			p.Speakers[k].Installations = without(p.Speakers[k].Installations, id)
		}
		for k := range p.Sources {
			p.Sources[k].Installations = without(p.Sources[k].Installations, id)
		}

		return nil
	})
}

// EditGroup adds g or replaces the group with its id. The listed sources
// join it in the same edit.
func (c *Controller) EditGroup(g project.Group, members ...project.SourceID) error {
	return c.edit(func(p *project.Project) error {
		p.Groups = upsert(p.Groups, g, func(o *project.Group) bool { return o.ID == g.ID })
		for _, id := range members {
			k, ok := p.Source(id)
			if !ok {
				return notFound(id)
			}
			p.Sources[k].Groups = join(p.Sources[k].Groups, g.ID)
		}

		return nil
	})
}

// RemoveGroup also drops it from every source.
func (c *Controller) RemoveGroup(id project.GroupID) error {
	return c.edit(func(p *project.Project) error {
		i, ok := p.Group(id)
		if !ok {
			return notFound(id)
		}
		p.Groups = slices.Delete(p.Groups, i, i+1)

		for k := range p.Sources {
			p.Sources[k].Groups = without(p.Sources[k].Groups, id)
		}

		return nil
	})
}

// EditSource adds s or replaces the source with its id. A new path starts
// loading in the background.
func (c *Controller) EditSource(s project.Source) error {
	return c.edit(func(p *project.Project) error {
		p.Sources = upsert(p.Sources, s, func(o *project.Source) bool { return o.ID == s.ID })
		return nil
	})
}

// RemoveSource ends its playing sounds with the next layout.
func (c *Controller) RemoveSource(id project.SourceID) error {
	return c.edit(func(p *project.Project) error {
		i, ok := p.Source(id)
		if !ok {
			return notFound(id)
		}
		p.Sources = slices.Delete(p.Sources, i, i+1)

		return nil
	})
}

func without[T comparable](ids []T, id T) []T {
	return slices.DeleteFunc(ids, func(v T) bool { return v == id })
}

func join[T comparable](ids []T, id T) []T {
	if slices.Contains(ids, id) {
		return ids
	}

	return append(ids, id)
}

// mix updates master or per-source state that the engine applies without a
// new layout.
func (c *Controller) mix(cmd engine.Command, fn func(p *project.Project) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.project == nil {
		return ErrNoProject
	}

	next := c.project.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if !c.commands.Push(cmd) {
		return ErrBusy
	}
	c.project = next

	return nil
}

func (c *Controller) source(p *project.Project, id project.SourceID) (*project.Source, error) {
	i, ok := p.Source(id)
	if !ok {
		return nil, notFound(id)
	}

	return &p.Sources[i], nil
}

// SetMasterVolume clamps v to 0..1.
func (c *Controller) SetMasterVolume(v float64) error {
	v = clamp01(v)

	return c.mix(engine.SetMasterVolume(v), func(p *project.Project) error {
		p.MasterVolume = v
		return nil
	})
}

// SetSourceVolume clamps v to 0..1.
func (c *Controller) SetSourceVolume(id project.SourceID, v float64) error {
	v = clamp01(v)

	return c.mix(engine.SetSourceVolume(id, v), func(p *project.Project) error {
		s, err := c.source(p, id)
		if err != nil {
			return err
		}
		s.Volume = v

		return nil
	})
}

func (c *Controller) SetMute(id project.SourceID, muted bool) error {
	return c.mix(engine.SetMute(id, muted), func(p *project.Project) error {
		s, err := c.source(p, id)
		if err != nil {
			return err
		}
		s.Muted = muted

		return nil
	})
}

func (c *Controller) SetSolo(id project.SourceID, solo bool) error {
	return c.mix(engine.SetSolo(id, solo), func(p *project.Project) error {
		s, err := c.source(p, id)
		if err != nil {
			return err
		}
		s.Solo = solo

		return nil
	})
}

// SetRolloff sets the DBAP rolloff in dB per doubling of distance.
func (c *Controller) SetRolloff(db float64) error {
	if math.IsNaN(db) || math.IsInf(db, 0) || db < 0 {
		return &project.ValidationError{Field: "rolloff_db", Reason: "must be a non-negative number"}
	}

	return c.mix(engine.SetRolloff(db), func(p *project.Project) error {
		p.Rolloff = db
		return nil
	})
}

// SetPlaying pauses or resumes playback and the scheduler with it.
func (c *Controller) SetPlaying(playing bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.commands.Push(engine.SetPlaying(playing)) {
		return ErrBusy
	}
	c.playing = playing

	return nil
}

func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.playing
}

// Preview plays src at installation inst once, outside the scheduler's
// groups. It still counts against the installation and the engine caps.
func (c *Controller) Preview(src project.SourceID, inst project.InstallationID) (engine.SoundID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snd, ok := c.sched.Preview(src, inst)
	if !ok {
		return 0, fmt.Errorf("%w: %v at %v", ErrPreview, src, inst)
	}
	if !c.commands.Push(engine.Spawn(snd)) {
		return 0, ErrBusy
	}
	c.sched.Track(snd)

	return snd.ID, nil
}

func (c *Controller) Stop(id engine.SoundID) error {
	if !c.commands.Push(engine.Stop(id)) {
		return ErrBusy
	}

	return nil
}

func (c *Controller) StopAll() error {
	if !c.commands.Push(engine.StopAll()) {
		return ErrBusy
	}

	return nil
}

// Tick advances the scheduler while playing.
func (c *Controller) Tick(dt time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playing && c.project != nil {
		c.sched.Tick(dt)
	}
}

// Active is the number of sounds the scheduler counts as playing.
func (c *Controller) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sched.Active()
}

// Spawns counts sounds the scheduler has started.
func (c *Controller) Spawns() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sched.Spawns()
}

// HandleEvent reacts to one engine event: ended and rejected sounds are
// released, warnings logged.
func (c *Controller) HandleEvent(ev engine.Event) {
	switch ev.Kind {
	case engine.EventEnded, engine.EventRejected:
		c.mu.Lock()
		c.sched.Ended(ev.Sound)
		c.mu.Unlock()

		if ev.Kind == engine.EventRejected {
			logrus.WithFields(logrus.Fields{
				"function": "Controller.HandleEvent",
				"sound":    ev.Sound.ID,
				"source":   ev.Sound.Source,
				"reason":   ev.Reason.String(),
			}).Debug("sound rejected")
		}

	case engine.EventWarning:
		fields := logrus.Fields{
			"function": "Controller.HandleEvent",
			"warning":  ev.Warning.String(),
		}
		if ev.Sound != nil {
			fields["sound"] = ev.Sound.ID
			fields["source"] = ev.Sound.Source
		}
		logrus.WithFields(fields).Warn("audio degraded")

	case engine.EventLayoutReplaced:
		if ev.Layout != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "Controller.HandleEvent",
				"generation": ev.Layout.Generation,
			}).Debug("layout retired")
		}

	case engine.EventLayoutRejected:
		fields := logrus.Fields{"function": "Controller.HandleEvent"}
		if ev.Layout != nil {
			fields["generation"] = ev.Layout.Generation
		}
		logrus.WithFields(fields).Error("engine rejected layout")
	}
}

func clamp01(v float64) float64 { return min(max(v, 0), 1) }
