// SPDX-License-Identifier: EPL-2.0

package project

import (
	"fmt"
	"math"

	"github.com/ik5/soundscape/movement"
	"github.com/ik5/soundscape/utils"
)

// SourceKind tells where a source's audio comes from.
type SourceKind uint8

const (
	// Stored sources play a decoded audio file.
	Stored SourceKind = iota
	// Live sources play device input channels.
	Live
)

// Playback is how a stored source is positioned when a sound spawns.
type Playback uint8

const (
	// Retrigger starts every sound at the beginning of the file.
	Retrigger Playback = iota
	// Continuous plays every sound from a shared timeline, keeping
	// concurrent sounds of the source in sync.
	Continuous
)

var (
	sourceKindNames = []string{Stored: "stored", Live: "live"}
	playbackNames   = []string{Retrigger: "retrigger", Continuous: "continuous"}
)

func (k SourceKind) String() string               { return enumString(sourceKindNames, k) }
func (k SourceKind) MarshalText() ([]byte, error) { return enumMarshal(sourceKindNames, k) }
func (k *SourceKind) UnmarshalText(b []byte) error {
	return enumUnmarshal(sourceKindNames, b, k)
}

func (p Playback) String() string               { return enumString(playbackNames, p) }
func (p Playback) MarshalText() ([]byte, error) { return enumMarshal(playbackNames, p) }
func (p *Playback) UnmarshalText(b []byte) error {
	return enumUnmarshal(playbackNames, b, p)
}

func enumString[E ~uint8](names []string, e E) string {
	if int(e) < len(names) {
		return names[e]
	}

	return fmt.Sprintf("%d", e)
}

func enumMarshal[E ~uint8](names []string, e E) ([]byte, error) {
	if int(e) >= len(names) {
		return nil, fmt.Errorf("%w: unknown value %d", ErrInvalid, e)
	}

	return []byte(names[e]), nil
}

func enumUnmarshal[E ~uint8](names []string, b []byte, dst *E) error {
	for i, n := range names {
		if n == string(b) {
			*dst = E(i)

			return nil
		}
	}

	return fmt.Errorf("%w: unknown value %q", ErrInvalid, b)
}

// Source is a sound that the soundscape may place in installations.
type Source struct {
	ID   SourceID   `json:"id"`
	Name string     `json:"name"`
	Kind SourceKind `json:"kind"`

	// Stored sources.
	Path     string   `json:"path,omitempty"`
	Loop     bool     `json:"loop,omitempty"`
	Playback Playback `json:"playback"`

	// InputChannels maps each channel of a live source to a device input
	// channel.
	InputChannels []int `json:"input_channels,omitempty"`

	// Channels is the channel count of a stored source. Zero takes the
	// file's count on load.
	Channels int `json:"channels,omitempty"`

	Spread   float64 `json:"spread"`   // metres
	Rotation float64 `json:"rotation"` // radians
	Volume   float64 `json:"volume"`
	Muted    bool    `json:"muted,omitempty"`
	Solo     bool    `json:"solo,omitempty"`

	Installations []InstallationID `json:"installations"`
	Groups        []GroupID        `json:"groups"`
	Movement      movement.Model   `json:"movement"`

	// Envelope ranges in milliseconds, sampled for every spawned sound.
	Duration utils.Range[float64] `json:"duration_ms"`
	Attack   utils.Range[float64] `json:"attack_ms"`
	Release  utils.Range[float64] `json:"release_ms"`
}

// DefaultSource returns a stored source with the usual soundscape settings:
// stereo channels to either side, playing forever.
func DefaultSource(id SourceID, name, path string) Source {
	return Source{
		ID:       id,
		Name:     name,
		Kind:     Stored,
		Path:     path,
		Loop:     true,
		Playback: Retrigger,
		Spread:   2.5,
		Rotation: math.Pi / 2,
		Volume:   0.6,
		Movement: movement.Default(),
		Duration: utils.Range[float64]{Min: DayMS, Max: DayMS},
	}
}

// ChannelCount is the number of channels a sound of s carries.
func (s *Source) ChannelCount() int {
	if s.Kind == Live {
		return len(s.InputChannels)
	}

	return s.Channels
}
