// SPDX-License-Identifier: EPL-2.0

package soundscape

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ik5/soundscape/analysis"
	"github.com/ik5/soundscape/config"
	"github.com/ik5/soundscape/device"
	"github.com/ik5/soundscape/engine"
	"github.com/ik5/soundscape/oscio"
	"github.com/ik5/soundscape/project"
	"github.com/ik5/soundscape/scheduler"
)

// Server runs one exhibition: engine, analyzer, scheduler, OSC and the
// audio device.
type Server struct {
	ID  uuid.UUID
	cfg *config.Config

	engine   *engine.Engine
	analyzer *analysis.Analyzer
	ctrl     *Controller
	sender   *oscio.Sender
}

// New builds a server for cfg and loads p. cfg must be valid.
func New(cfg *config.Config, p *project.Project) (*Server, error) {
	a := &cfg.Audio

	analyzer, err := analysis.New(analysis.Config{
		SampleRate:  a.SampleRate,
		FFTSize:     cfg.Analysis.FFTSize,
		ReportRate:  cfg.Analysis.ReportRate,
		MaxSpeakers: a.MaxSpeakers,
		MaxGroups:   a.MaxSpeakers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	eng, err := engine.New(engine.Config{
		SampleRate:        a.SampleRate,
		BlockFrames:       a.BlockFrames,
		OutputChannels:    a.OutputChannels,
		InputChannels:     a.InputChannels,
		InputLatency:      a.InputLatencyFrames(),
		MaxSounds:         a.MaxSounds,
		MaxSpeakers:       a.MaxSpeakers,
		MaxSourceChannels: a.MaxSourceChannels,
		CommandQueue:      a.CommandQueue,
		EventQueue:        a.EventQueue,
		Rolloff:           cfg.DBAP.Rolloff,
		Blur:              cfg.DBAP.Blur,
	}, analyzer)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	s := &Server{
		ID:       uuid.New(),
		cfg:      cfg,
		engine:   eng,
		analyzer: analyzer,
		sender:   oscio.NewSender(cfg.OSC.MaxSendRate, nil),
	}

	limits := project.Limits{
		MaxSpeakers:       a.MaxSpeakers,
		MaxChannels:       a.OutputChannels,
		MaxSourceChannels: a.MaxSourceChannels,
		MaxInstallations:  a.MaxSpeakers,
	}
	loader := NewSampleLoader(NewRegistry(), a.SampleRate, a.MaxSourceChannels)
	s.ctrl = NewController(limits, eng.Commands(), loader,
		scheduler.Config{SampleRate: a.SampleRate, WalkSigma: cfg.Scheduler.WalkSigma}, s.sender)

	if err := s.ctrl.Load(p); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Server) Controller() *Controller { return s.ctrl }

func (s *Server) log(function string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"function": function, "session": s.ID.String()})
}

// Run opens the configured device and runs until ctx is done or a part
// fails. A device failure ends the run; the caller may restart it.
func (s *Server) Run(ctx context.Context) error {
	a := &s.cfg.Audio

	dev, err := device.Open(string(a.Backend), device.Config{
		SampleRate:     a.SampleRate,
		BlockFrames:    a.BlockFrames,
		OutputChannels: a.OutputChannels,
		InputChannels:  a.InputChannels,
	}, s.engine, s.engine.Input())
	if err != nil {
		return fmt.Errorf("failed to open %s device: %w", a.Backend, err)
	}

	s.log("Server.Run").WithField("device", dev.Name()).Info("soundscape starting")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return dev.Run(ctx) })
	g.Go(func() error { return s.control(ctx) })
	g.Go(func() error { return s.sender.Run(ctx, s.analyzer.Out(), s.analyzer.Release) })

	if s.cfg.OSC.Listen != "" {
		recv := oscio.NewReceiver(s.ctrl)
		g.Go(func() error { return recv.ListenAndServe(ctx, s.cfg.OSC.Listen) })
	}

	err = g.Wait()
	s.log("Server.Run").WithField("error", err).Info("soundscape stopped")

	return err
}

// control ticks the scheduler and drains engine events.
func (s *Server) control(ctx context.Context) error {
	tick := time.NewTicker(s.cfg.Scheduler.Tick.Duration)
	defer tick.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.engine.Events().C():
			s.ctrl.HandleEvent(ev)
		case now := <-tick.C:
			s.ctrl.Tick(now.Sub(last))
			last = now
		}
	}
}

// drain handles every waiting event and analysis frame.
func (s *Server) drain() {
	for {
		ev, ok := s.engine.Events().TryPop()
		if !ok {
			break
		}
		s.ctrl.HandleEvent(ev)
	}

	for {
		f, ok := s.analyzer.Out().TryPop()
		if !ok {
			break
		}
		s.sender.Send(f)
		s.analyzer.Release(f)
	}
}

// Render plays the exhibition offline for d, ticking the scheduler in
// rendered time, and writes every output channel to w as one WAV. Samples
// are fully loaded first so the result depends only on the project seed.
func (s *Server) Render(w io.WriteSeeker, d time.Duration) error {
	s.ctrl.samples.Wait()

	a := &s.cfg.Audio
	cfg := device.Config{
		SampleRate:     a.SampleRate,
		BlockFrames:    a.BlockFrames,
		OutputChannels: a.OutputChannels,
	}

	step := s.cfg.Scheduler.Tick.Duration
	var scheduled time.Duration

	err := device.Render(w, cfg, s.engine, d, func(at time.Duration) {
		s.drain()
		for ; scheduled+step <= at; scheduled += step {
			s.ctrl.Tick(step)
		}
	})
	s.drain()

	if err != nil {
		return err
	}

	s.log("Server.Render").WithFields(logrus.Fields{
		"duration": d,
		"spawns":   s.ctrl.Spawns(),
	}).Info("render finished")

	return nil
}
