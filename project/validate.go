// SPDX-License-Identifier: EPL-2.0

package project

import (
	"net"
	"slices"

	"github.com/ik5/soundscape/utils"
)

// Limits bounds a project to what the engine was sized for. Zero fields are
// not checked.
type Limits struct {
	MaxSpeakers       int
	MaxChannels       int // device output channels
	MaxSourceChannels int
	MaxInstallations  int
}

// Validate checks references, ranges and limits. The first problem found is
// returned as a *ValidationError.
func (p *Project) Validate(lim Limits) error {
	if !finite(p.MasterVolume) || p.MasterVolume < 0 || p.MasterVolume > 1 {
		return invalid(nil, "master_volume", "%v outside 0..1", p.MasterVolume)
	}
	if !finite(p.Rolloff) || p.Rolloff < 0 {
		return invalid(nil, "rolloff_db", "%v must be a non-negative number", p.Rolloff)
	}
	if lim.MaxSpeakers > 0 && len(p.Speakers) > lim.MaxSpeakers {
		return invalid(nil, "speakers", "%d speakers exceed the limit of %d", len(p.Speakers), lim.MaxSpeakers)
	}
	if lim.MaxInstallations > 0 && len(p.Installations) > lim.MaxInstallations {
		return invalid(nil, "installations", "%d installations exceed the limit of %d",
			len(p.Installations), lim.MaxInstallations)
	}

	for i := range p.Installations {
		if err := p.validateInstallation(i); err != nil {
			return err
		}
	}
	for i := range p.Speakers {
		if err := p.validateSpeaker(i, lim); err != nil {
			return err
		}
	}
	for i := range p.Groups {
		if err := p.validateGroup(i); err != nil {
			return err
		}
	}
	for i := range p.Sources {
		if err := p.validateSource(i, lim); err != nil {
			return err
		}
	}

	return p.validateMembers()
}

// validateMembers rejects an installation no speaker serves and a group no
// source belongs to.
func (p *Project) validateMembers() error {
	for _, in := range p.Installations {
		if !slices.ContainsFunc(p.Speakers, func(s Speaker) bool { return slices.Contains(s.Installations, in.ID) }) {
			return invalid(in.ID, "speakers", "no speakers")
		}
	}
	for _, g := range p.Groups {
		if !slices.ContainsFunc(p.Sources, func(s Source) bool { return slices.Contains(s.Groups, g.ID) }) {
			return invalid(g.ID, "sources", "no member sources")
		}
	}

	return nil
}

func (p *Project) validateInstallation(i int) error {
	in := &p.Installations[i]
	if slices.ContainsFunc(p.Installations[:i], func(o Installation) bool { return o.ID == in.ID }) {
		return invalid(in.ID, "id", "duplicate id")
	}
	if err := validCount(in.ID, "simultaneous", in.Simultaneous); err != nil {
		return err
	}
	for _, t := range in.Targets {
		if _, _, err := net.SplitHostPort(t); err != nil {
			return invalid(in.ID, "targets", "%q: %v", t, err)
		}
	}

	return nil
}

func (p *Project) validateSpeaker(i int, lim Limits) error {
	s := &p.Speakers[i]
	if slices.ContainsFunc(p.Speakers[:i], func(o Speaker) bool { return o.ID == s.ID }) {
		return invalid(s.ID, "id", "duplicate id")
	}
	if !finite(s.Position.X) || !finite(s.Position.Y) {
		return invalid(s.ID, "position", "%v is not finite", s.Position)
	}
	if s.Channel < 0 || (lim.MaxChannels > 0 && s.Channel >= lim.MaxChannels) {
		return invalid(s.ID, "channel", "%d outside the device's %d channels", s.Channel, lim.MaxChannels)
	}
	for _, id := range s.Installations {
		if _, ok := p.Installation(id); !ok {
			return invalid(s.ID, "installations", "unknown %v", id)
		}
	}

	return nil
}

func (p *Project) validateGroup(i int) error {
	g := &p.Groups[i]
	if slices.ContainsFunc(p.Groups[:i], func(o Group) bool { return o.ID == g.ID }) {
		return invalid(g.ID, "id", "duplicate id")
	}
	r := g.OccurrenceRate
	if !finite(r.Min) || !finite(r.Max) || r.Min < 0 || !r.Valid() {
		return invalid(g.ID, "occurrence_rate", "%v..%v is not a range of non-negative rates", r.Min, r.Max)
	}

	return validCount(g.ID, "simultaneous", g.Simultaneous)
}

func (p *Project) validateSource(i int, lim Limits) error {
	s := &p.Sources[i]
	if slices.ContainsFunc(p.Sources[:i], func(o Source) bool { return o.ID == s.ID }) {
		return invalid(s.ID, "id", "duplicate id")
	}

	switch s.Kind {
	case Stored:
		if s.Path == "" {
			return invalid(s.ID, "path", "a stored source needs a file")
		}
		if s.Channels < 0 {
			return invalid(s.ID, "channels", "%d is negative", s.Channels)
		}
	case Live:
		if len(s.InputChannels) == 0 {
			return invalid(s.ID, "input_channels", "a live source needs at least one input channel")
		}
		for _, c := range s.InputChannels {
			if c < 0 {
				return invalid(s.ID, "input_channels", "%d is negative", c)
			}
		}
	default:
		return invalid(s.ID, "kind", "unknown kind %d", s.Kind)
	}

	if n := s.ChannelCount(); lim.MaxSourceChannels > 0 && n > lim.MaxSourceChannels {
		return invalid(s.ID, "channels", "%d channels exceed the limit of %d", n, lim.MaxSourceChannels)
	}
	if !finite(s.Spread) || s.Spread < 0 {
		return invalid(s.ID, "spread", "%v must be a non-negative number", s.Spread)
	}
	if !finite(s.Rotation) {
		return invalid(s.ID, "rotation", "%v is not finite", s.Rotation)
	}
	if !finite(s.Volume) || s.Volume < 0 || s.Volume > 1 {
		return invalid(s.ID, "volume", "%v outside 0..1", s.Volume)
	}

	for _, id := range s.Installations {
		if _, ok := p.Installation(id); !ok {
			return invalid(s.ID, "installations", "unknown %v", id)
		}
	}
	for _, id := range s.Groups {
		if _, ok := p.Group(id); !ok {
			return invalid(s.ID, "groups", "unknown %v", id)
		}
	}

	if err := s.Movement.Validate(); err != nil {
		return invalid(s.ID, "movement", "%v", err)
	}

	for _, d := range []struct {
		field string
		r     utils.Range[float64]
	}{
		{"duration_ms", s.Duration},
		{"attack_ms", s.Attack},
		{"release_ms", s.Release},
	} {
		if !finite(d.r.Min) || !finite(d.r.Max) || d.r.Min < 0 || !d.r.Valid() {
			return invalid(s.ID, d.field, "%v..%v is not a range of non-negative durations", d.r.Min, d.r.Max)
		}
	}

	return nil
}

func validCount(entity interface{ String() string }, field string, r utils.Range[int]) error {
	if r.Min < 0 || !r.Valid() {
		return invalid(entity, field, "%d..%d is not a range of non-negative counts", r.Min, r.Max)
	}

	return nil
}
