// SPDX-License-Identifier: EPL-2.0

package engine

import "github.com/ik5/soundscape/project"

// CommandKind selects what a Command does.
type CommandKind uint8

const (
	CmdSpawn CommandKind = iota
	CmdStop
	CmdStopAll
	CmdSetMasterVolume
	CmdSetSourceVolume
	CmdSetMute
	CmdSetSolo
	CmdSetLayout
	CmdSetRolloff
	CmdSetPlaying
	CmdSetTarget
)

// Command is a message from the control side, applied at the next block
// boundary. Only the fields its Kind names are read.
type Command struct {
	Kind         CommandKind
	Sound        *Sound
	SoundID      SoundID
	Source       project.SourceID
	Installation project.InstallationID
	Value        float64
	Flag         bool
	Layout       *Layout
}

func Spawn(s *Sound) Command  { return Command{Kind: CmdSpawn, Sound: s} }
func Stop(id SoundID) Command { return Command{Kind: CmdStop, SoundID: id} }
func StopAll() Command        { return Command{Kind: CmdStopAll} }

func SetMasterVolume(v float64) Command { return Command{Kind: CmdSetMasterVolume, Value: v} }

func SetSourceVolume(id project.SourceID, v float64) Command {
	return Command{Kind: CmdSetSourceVolume, Source: id, Value: v}
}

func SetMute(id project.SourceID, muted bool) Command {
	return Command{Kind: CmdSetMute, Source: id, Flag: muted}
}

func SetSolo(id project.SourceID, solo bool) Command {
	return Command{Kind: CmdSetSolo, Source: id, Flag: solo}
}

func SetLayout(l *Layout) Command     { return Command{Kind: CmdSetLayout, Layout: l} }
func SetRolloff(db float64) Command   { return Command{Kind: CmdSetRolloff, Value: db} }
func SetPlaying(playing bool) Command { return Command{Kind: CmdSetPlaying, Flag: playing} }

// SetTarget tells the engine how many sounds the soundscape currently aims
// for at an installation; agents steer toward installations below target.
func SetTarget(id project.InstallationID, n int) Command {
	return Command{Kind: CmdSetTarget, Installation: id, Value: float64(n)}
}

// EventKind tells what an Event reports.
type EventKind uint8

const (
	// EventEnded returns a Sound that finished or was stopped.
	EventEnded EventKind = iota
	// EventRejected returns a Sound whose spawn was refused; see Reason.
	EventRejected
	// EventWarning reports a degraded block for a sound; see Warning.
	EventWarning
	// EventLayoutReplaced returns the previous layout after SetLayout.
	EventLayoutReplaced
	// EventLayoutRejected returns a layout the engine cannot hold.
	EventLayoutRejected
)

// Reason explains a rejected spawn.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonTooManySounds
	ReasonUnknownSource
	ReasonUnknownInstallation
	ReasonUnknownGroup
	ReasonNotPermitted
	ReasonInstallationFull
	ReasonGroupFull
)

var reasonNames = [...]string{
	ReasonNone:                "none",
	ReasonTooManySounds:       "too many sounds",
	ReasonUnknownSource:       "unknown source",
	ReasonUnknownInstallation: "unknown installation",
	ReasonUnknownGroup:        "unknown group",
	ReasonNotPermitted:        "not permitted",
	ReasonInstallationFull:    "installation full",
	ReasonGroupFull:           "group full",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}

	return "unknown"
}

// Warning is a real-time degradation. Each is reported at most once per
// sound.
type Warning uint8

const (
	WarnMissingSamples Warning = 1 << iota
	WarnChannelMismatch
	WarnNaNGain
	WarnInputUnderrun
)

func (w Warning) String() string {
	switch w {
	case WarnMissingSamples:
		return "sample data not loaded"
	case WarnChannelMismatch:
		return "channel count mismatch"
	case WarnNaNGain:
		return "non-finite gain"
	case WarnInputUnderrun:
		return "input underrun"
	}

	return "unknown"
}

// Event is a message from the engine to the control side. A warning's Sound
// is still playing: only its identity fields may be read.
type Event struct {
	Kind    EventKind
	Sound   *Sound
	Reason  Reason
	Warning Warning
	Layout  *Layout
}
