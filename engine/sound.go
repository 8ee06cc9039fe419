// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"time"

	"github.com/ik5/soundscape/movement"
	"github.com/ik5/soundscape/project"
)

type SoundID uint64

// Sound is one playing instance of a source. The control side fills the
// exported fields and hands the Sound over with a Spawn command; from then
// on only the engine touches it until it comes back in an EventEnded or
// EventRejected.
type Sound struct {
	ID           SoundID
	Source       project.SourceID
	Installation project.InstallationID
	// Group is ignored unless Grouped is set, as for previews.
	Group    project.GroupID
	Grouped  bool
	Movement movement.State

	// Envelope lengths in frames. Duration 0 plays until stopped.
	Duration int
	Attack   int
	Release  int

	src, inst, grp int

	elapsed   int
	cursor    int
	releaseAt int // elapsed frame the release starts, -1 while not scheduled
	stopping  bool
	warned    uint8
	ended     bool
}

// Frames converts d to frames at rate.
func Frames(d time.Duration, rate int) int {
	return int(d.Seconds() * float64(rate))
}

// Elapsed is how many frames the sound has played.
func (s *Sound) Elapsed() int { return s.elapsed }

// Cursor is the sound's position in its sample, in frames.
func (s *Sound) Cursor() int { return s.cursor }

func (s *Sound) reset() {
	s.elapsed = 0
	s.cursor = 0
	s.stopping = false
	s.warned = 0
	s.ended = false

	s.releaseAt = -1
	if s.Duration > 0 {
		s.releaseAt = max(s.Duration-s.Release, 0)
	}
}

// stop starts the release now unless it is already under way.
func (s *Sound) stop() {
	if s.stopping || (s.releaseAt >= 0 && s.elapsed >= s.releaseAt) {
		return
	}
	s.stopping = true
	s.releaseAt = s.elapsed
}

// gain is the envelope level at elapsed frame e.
func (s *Sound) gain(e int) float64 {
	g := 1.0
	if s.Attack > 0 && e < s.Attack {
		g = float64(e) / float64(s.Attack)
	}

	if s.releaseAt >= 0 && e >= s.releaseAt {
		if s.Release == 0 {
			return 0
		}
		g = min(g, max(1-float64(e-s.releaseAt)/float64(s.Release), 0))
	}

	return g
}

// done reports whether the envelope has fully closed.
func (s *Sound) done() bool {
	if s.releaseAt >= 0 && s.elapsed >= s.releaseAt+s.Release {
		return true
	}

	return s.Duration > 0 && s.elapsed >= s.Duration
}
