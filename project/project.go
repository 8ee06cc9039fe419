// SPDX-License-Identifier: EPL-2.0

package project

import (
	"fmt"
	"math"
	"slices"

	"github.com/ik5/soundscape/geom"
	"github.com/ik5/soundscape/utils"
	"gonum.org/v1/gonum/spatial/r2"
)

type (
	SpeakerID      uint32
	InstallationID uint32
	GroupID        uint32
	SourceID       uint32
)

// DayMS is the longest playback duration, used as "play forever".
const DayMS = 24 * 60 * 60 * 1000.0

// Speaker is an output loudspeaker placed in the exhibition.
type Speaker struct {
	ID            SpeakerID        `json:"id"`
	Name          string           `json:"name,omitempty"`
	Position      r2.Vec           `json:"position"` // metres
	Channel       int              `json:"channel"`  // device output channel
	Installations []InstallationID `json:"installations"`
}

// Installation is a named area served by a subset of speakers.
type Installation struct {
	ID           InstallationID   `json:"id"`
	Name         string           `json:"name"`
	Simultaneous utils.Range[int] `json:"simultaneous"`
	// Targets receive this installation's analysis as host:port endpoints.
	Targets []string `json:"targets,omitempty"`
}

// Group is a soundscape group: sources that share an occurrence rate and a
// simultaneous-sound range.
type Group struct {
	ID   GroupID `json:"id"`
	Name string  `json:"name,omitempty"`
	// OccurrenceRate is in spawns per second.
	OccurrenceRate utils.Range[float64] `json:"occurrence_rate"`
	Simultaneous   utils.Range[int]     `json:"simultaneous"`
}

// Project is the complete exhibition description.
type Project struct {
	Name          string         `json:"name"`
	Seed          [2]uint64      `json:"seed"`
	MasterVolume  float64        `json:"master_volume"`
	Rolloff       float64        `json:"rolloff_db"`
	Speakers      []Speaker      `json:"speakers"`
	Installations []Installation `json:"installations"`
	Groups        []Group        `json:"groups"`
	Sources       []Source       `json:"sources"`
}

// New returns an empty project with default master settings.
func New(name string) *Project {
	return &Project{Name: name, MasterVolume: 1, Rolloff: 6}
}

// Clone returns a deep copy that can be edited without affecting p.
func (p *Project) Clone() *Project {
	c := *p
	c.Speakers = slices.Clone(p.Speakers)
	for i := range c.Speakers {
		c.Speakers[i].Installations = slices.Clone(c.Speakers[i].Installations)
	}
	c.Installations = slices.Clone(p.Installations)
	for i := range c.Installations {
		c.Installations[i].Targets = slices.Clone(c.Installations[i].Targets)
	}
	c.Groups = slices.Clone(p.Groups)
	c.Sources = slices.Clone(p.Sources)
	for i := range c.Sources {
		s := &c.Sources[i]
		s.InputChannels = slices.Clone(s.InputChannels)
		s.Installations = slices.Clone(s.Installations)
		s.Groups = slices.Clone(s.Groups)
	}

	return &c
}

func (p *Project) Speaker(id SpeakerID) (int, bool) {
	return index(p.Speakers, func(s *Speaker) bool { return s.ID == id })
}

func (p *Project) Installation(id InstallationID) (int, bool) {
	return index(p.Installations, func(s *Installation) bool { return s.ID == id })
}

func (p *Project) Group(id GroupID) (int, bool) {
	return index(p.Groups, func(s *Group) bool { return s.ID == id })
}

func (p *Project) Source(id SourceID) (int, bool) {
	return index(p.Sources, func(s *Source) bool { return s.ID == id })
}

func index[T any](items []T, match func(*T) bool) (int, bool) {
	for i := range items {
		if match(&items[i]) {
			return i, true
		}
	}

	return -1, false
}

// Bounds is the rectangle spanned by the speakers of an installation. ok is
// false when it has no speakers.
func (p *Project) Bounds(id InstallationID) (r geom.Rect, ok bool) {
	for i := range p.Speakers {
		s := &p.Speakers[i]
		if !slices.Contains(s.Installations, id) {
			continue
		}
		if !ok {
			r, ok = geom.Rect{Min: s.Position, Max: s.Position}, true
			continue
		}
		r = r.With(s.Position)
	}

	return r, ok
}

// SourceLimit is the area a sound of src may move through: the union of its
// installations' bounds grown by the channel spread.
func (p *Project) SourceLimit(src *Source) (geom.Rect, bool) {
	var (
		r  geom.Rect
		ok bool
	)

	for _, id := range src.Installations {
		b, has := p.Bounds(id)
		if !has {
			continue
		}
		if !ok {
			r, ok = b, true
			continue
		}
		r = r.Union(b)
	}

	return r.Expand(src.Spread), ok
}

// ActiveAt reports whether group g has a member source permitted at
// installation i.
func (p *Project) ActiveAt(g GroupID, i InstallationID) bool {
	for k := range p.Sources {
		s := &p.Sources[k]
		if slices.Contains(s.Groups, g) && slices.Contains(s.Installations, i) {
			return true
		}
	}

	return false
}

// NextSpeakerID and friends return an unused id one above the current
// maximum.
func (p *Project) NextSpeakerID() SpeakerID {
	var id SpeakerID
	for _, s := range p.Speakers {
		id = max(id, s.ID+1)
	}

	return id
}

func (p *Project) NextInstallationID() InstallationID {
	var id InstallationID
	for _, s := range p.Installations {
		id = max(id, s.ID+1)
	}

	return id
}

func (p *Project) NextGroupID() GroupID {
	var id GroupID
	for _, s := range p.Groups {
		id = max(id, s.ID+1)
	}

	return id
}

func (p *Project) NextSourceID() SourceID {
	var id SourceID
	for _, s := range p.Sources {
		id = max(id, s.ID+1)
	}

	return id
}

// DefaultInstallation has no sounds required and room for one.
func DefaultInstallation(id InstallationID, name string) Installation {
	return Installation{ID: id, Name: name, Simultaneous: utils.Range[int]{Min: 0, Max: 1}}
}

// DefaultGroup spawns at most twice a second and at least once an hour.
func DefaultGroup(id GroupID) Group {
	return Group{
		ID:             id,
		OccurrenceRate: utils.Range[float64]{Min: 1.0 / 3600, Max: 2},
		Simultaneous:   utils.Range[int]{Min: 0, Max: 1},
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func (id SpeakerID) String() string      { return fmt.Sprintf("speaker %d", uint32(id)) }
func (id InstallationID) String() string { return fmt.Sprintf("installation %d", uint32(id)) }
func (id GroupID) String() string        { return fmt.Sprintf("group %d", uint32(id)) }
func (id SourceID) String() string       { return fmt.Sprintf("source %d", uint32(id)) }
