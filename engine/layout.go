// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/ik5/soundscape/audio"
	"github.com/ik5/soundscape/dbap"
	"github.com/ik5/soundscape/geom"
	"github.com/ik5/soundscape/movement"
	"github.com/ik5/soundscape/project"
	"gonum.org/v1/gonum/spatial/r2"
)

// Sample holds the decoded audio of a stored source. It is filled once the
// file has been decoded off the audio goroutine; until then sounds of the
// source play silence.
type Sample struct {
	Path string
	buf  atomic.Pointer[audio.Buffer]
}

func NewSample(path string) *Sample { return &Sample{Path: path} }

// Store publishes the decoded buffer.
func (s *Sample) Store(b *audio.Buffer) { s.buf.Store(b) }

// Buffer is the decoded audio, or nil while it is still loading.
func (s *Sample) Buffer() *audio.Buffer {
	if s == nil {
		return nil
	}

	return s.buf.Load()
}

type Speaker struct {
	ID       project.SpeakerID
	Position r2.Vec
	Channel  int
}

type Installation struct {
	ID       project.InstallationID
	Name     string
	Bounds   geom.Rect
	Min, Max int
	// Speakers are indices into Layout.Speakers.
	Speakers []int
	panners  []dbap.Speaker

	count  int // active sounds, owned by the engine
	target int
}

type Group struct {
	ID    project.GroupID
	Max   int
	count int
}

type Source struct {
	ID            project.SourceID
	Kind          project.SourceKind
	Playback      project.Playback
	Loop          bool
	Channels      int
	InputChannels []int
	Spread        float64
	Rotation      float64
	// Installations and Groups are indices into the Layout.
	Installations []int
	Groups        []int
	Limit         geom.Rect
	Sample        *Sample

	volume      float64
	muted, solo bool
}

// Layout is an immutable snapshot of the exhibition built on the control
// side. Once sent with SetLayout the engine owns it: the control side must
// not touch it again until it comes back in an EventLayoutReplaced.
type Layout struct {
	Generation    uint64
	Speakers      []Speaker
	Installations []Installation
	Groups        []Group
	Sources       []Source

	analysisGroups [][]int
	areas          []movement.Area
}

func (l *Layout) installation(id project.InstallationID) int {
	return slices.IndexFunc(l.Installations, func(i Installation) bool { return i.ID == id })
}

func (l *Layout) group(id project.GroupID) int {
	return slices.IndexFunc(l.Groups, func(g Group) bool { return g.ID == id })
}

func (l *Layout) source(id project.SourceID) int {
	for i := range l.Sources {
		if l.Sources[i].ID == id {
			return i
		}
	}

	return -1
}

// BuildLayout snapshots p. samples supplies the decoded audio of stored
// sources by id; a missing entry plays silence. p must already be valid.
func BuildLayout(p *project.Project, samples map[project.SourceID]*Sample, generation uint64) (*Layout, error) {
	l := &Layout{
		Generation:    generation,
		Speakers:      make([]Speaker, len(p.Speakers)),
		Installations: make([]Installation, len(p.Installations)),
		Groups:        make([]Group, len(p.Groups)),
		Sources:       make([]Source, len(p.Sources)),
	}

	for i, s := range p.Speakers {
		l.Speakers[i] = Speaker{ID: s.ID, Position: s.Position, Channel: s.Channel}
	}

	l.analysisGroups = make([][]int, len(p.Installations))
	for i, in := range p.Installations {
		li := Installation{
			ID:     in.ID,
			Name:   in.Name,
			Min:    in.Simultaneous.Min,
			Max:    in.Simultaneous.Max,
			target: in.Simultaneous.Min,
		}
		li.Bounds, _ = p.Bounds(in.ID)

		for k, s := range p.Speakers {
			if slices.Contains(s.Installations, in.ID) {
				li.Speakers = append(li.Speakers, k)
				li.panners = append(li.panners, dbap.Speaker{Pos: s.Position, Weight: 1})
			}
		}

		l.Installations[i] = li
		l.analysisGroups[i] = li.Speakers
	}
	l.areas = make([]movement.Area, 0, len(l.Installations))

	for i, g := range p.Groups {
		l.Groups[i] = Group{ID: g.ID, Max: g.Simultaneous.Max}
	}

	for i := range p.Sources {
		s := &p.Sources[i]
		ls := Source{
			ID:            s.ID,
			Kind:          s.Kind,
			Playback:      s.Playback,
			Loop:          s.Loop,
			Channels:      s.ChannelCount(),
			InputChannels: slices.Clone(s.InputChannels),
			Spread:        s.Spread,
			Rotation:      s.Rotation,
			volume:        s.Volume,
			muted:         s.Muted,
			solo:          s.Solo,
		}
		ls.Limit, _ = p.SourceLimit(s)

		for _, id := range s.Installations {
			k := l.installation(id)
			if k < 0 {
				return nil, fmt.Errorf("%w: %v refers to unknown %v", ErrLayout, s.ID, id)
			}
			ls.Installations = append(ls.Installations, k)
		}
		for _, id := range s.Groups {
			k := l.group(id)
			if k < 0 {
				return nil, fmt.Errorf("%w: %v refers to unknown %v", ErrLayout, s.ID, id)
			}
			ls.Groups = append(ls.Groups, k)
		}

		if s.Kind == project.Stored {
			ls.Sample = samples[s.ID]
		}

		l.Sources[i] = ls
	}

	return l, nil
}
