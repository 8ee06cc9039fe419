// SPDX-License-Identifier: EPL-2.0

package soundscape

import (
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ik5/soundscape/audio"
	"github.com/ik5/soundscape/engine"
	"github.com/ik5/soundscape/formats/aiff"
	"github.com/ik5/soundscape/formats/mp3"
	"github.com/ik5/soundscape/formats/vorbis"
	"github.com/ik5/soundscape/formats/wav"
	"github.com/ik5/soundscape/project"
)

// LoadConcurrency bounds the samples decoded at once.
const LoadConcurrency = 4

// NewRegistry returns a registry with every supported sample format.
func NewRegistry() *audio.Registry {
	reg := audio.NewRegistry()
	reg.Register("wav", wav.Decoder{})
	reg.Register("wave", wav.Decoder{})
	reg.Register("aif", aiff.Decoder{})
	reg.Register("aiff", aiff.Decoder{})
	reg.Register("mp3", mp3.Decoder{})
	reg.Register("ogg", vorbis.Decoder{})

	return reg
}

// SampleLoader decodes stored sources in the background. Each path is
// decoded once; its Sample is handed out immediately and fills in when the
// decode finishes, so layouts never wait on disk.
type SampleLoader struct {
	reg         *audio.Registry
	rate        int
	maxChannels int

	mu      sync.Mutex
	samples map[string]*engine.Sample
	pending sync.WaitGroup
}

func NewSampleLoader(reg *audio.Registry, sampleRate, maxChannels int) *SampleLoader {
	return &SampleLoader{
		reg:         reg,
		rate:        sampleRate,
		maxChannels: maxChannels,
		samples:     make(map[string]*engine.Sample),
	}
}

// Ensure returns the samples of every stored source of p by source id and
// starts decoding the paths it has not seen before.
func (l *SampleLoader) Ensure(p *project.Project) map[project.SourceID]*engine.Sample {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[project.SourceID]*engine.Sample, len(p.Sources))
	var fresh []*engine.Sample

	for i := range p.Sources {
		src := &p.Sources[i]
		if src.Kind != project.Stored || src.Path == "" {
			continue
		}

		s, ok := l.samples[src.Path]
		if !ok {
			s = engine.NewSample(src.Path)
			l.samples[src.Path] = s
			fresh = append(fresh, s)
		}
		out[src.ID] = s
	}

	if len(fresh) > 0 {
		l.pending.Add(1)
		go l.load(fresh)
	}

	return out
}

// Wait blocks until every decode started so far has finished.
func (l *SampleLoader) Wait() { l.pending.Wait() }

func (l *SampleLoader) load(samples []*engine.Sample) {
	defer l.pending.Done()

	var g errgroup.Group
	g.SetLimit(LoadConcurrency)

	for _, s := range samples {
		g.Go(func() error {
			if err := l.decode(s); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "SampleLoader.load",
					"path":     s.Path,
					"error":    err,
				}).Error("failed to load sample, source will be silent")
			}

			return nil
		})
	}

	_ = g.Wait()
}

func (l *SampleLoader) decode(s *engine.Sample) error {
	src, err := l.reg.DecodeFile(s.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	buf, err := audio.Load(src, l.rate, l.maxChannels)
	if err != nil {
		return err
	}
	s.Store(buf)

	logrus.WithFields(logrus.Fields{
		"function": "SampleLoader.decode",
		"path":     s.Path,
		"frames":   buf.Frames(),
		"channels": buf.Channels,
	}).Debug("sample loaded")

	return nil
}
