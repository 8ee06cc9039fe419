// SPDX-License-Identifier: EPL-2.0

// Command soundscaped plays a soundscape project on the configured audio
// device, renders it offline to a WAV file, or probes a sample file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ik5/soundscape"
	"github.com/ik5/soundscape/audio"
	"github.com/ik5/soundscape/config"
	"github.com/ik5/soundscape/device"
	"github.com/ik5/soundscape/internal/logging"
	"github.com/ik5/soundscape/project"
)

var (
	configPath  = flag.String("config", "", "Engine configuration file (JSON with comments)")
	projectPath = flag.String("project", "", "Project file to play")
	backend     = flag.String("backend", "", "Override audio.backend: portaudio, oto or headless")
	renderPath  = flag.String("render", "", "Render offline to this WAV file instead of playing")
	duration    = flag.Duration("duration", time.Minute, "Length of an offline render")
	probePath   = flag.String("probe", "", "Decode a sample file at the engine rate, print its shape and exit")
	restart     = flag.Bool("restart", false, "Reopen the audio device after a device failure")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			logrus.WithError(err).Fatal("failed to load configuration")
		}
	}
	if *backend != "" {
		cfg.Audio.Backend = config.Backend(*backend)
		if err := cfg.Validate(); err != nil {
			logrus.WithError(err).Fatal("invalid backend")
		}
	}

	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		logrus.WithError(err).Fatal("failed to set up logging")
	}

	if *probePath != "" {
		if err := probe(cfg, *probePath); err != nil {
			logrus.WithError(err).Fatal("probe failed")
		}
		return
	}

	if *projectPath == "" {
		logrus.Fatal("a project file is required")
	}
	p, err := project.Load(*projectPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load project")
	}

	srv, err := soundscape.New(cfg, p)
	if err != nil {
		logrus.WithError(err).Fatal("failed to start soundscape")
	}

	if *renderPath != "" {
		if err := render(srv, *renderPath, *duration); err != nil {
			logrus.WithError(err).Fatal("render failed")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		err = srv.Run(ctx)
		if !*restart || !errors.Is(err, device.ErrStream) || ctx.Err() != nil {
			break
		}
		logrus.WithError(err).Warn("audio device failed, reopening")
		time.Sleep(time.Second)
	}
	if err != nil {
		logrus.WithError(err).Fatal("soundscape stopped")
	}
}

func render(srv *soundscape.Server, path string, d time.Duration) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := srv.Render(f, d); err != nil {
		return err
	}

	return f.Close()
}

func probe(cfg *config.Config, path string) error {
	src, err := soundscape.NewRegistry().DecodeFile(path)
	if err != nil {
		return err
	}
	defer src.Close()

	in := fmt.Sprintf("%d Hz, %d channels", src.SampleRate(), src.Channels())

	buf, err := audio.Load(src, cfg.Audio.SampleRate, cfg.Audio.MaxSourceChannels)
	if err != nil {
		return err
	}

	seconds := float64(buf.Frames()) / float64(buf.SampleRate)
	fmt.Printf("%s: %s -> %d Hz, %d channels, %d frames (%.2fs)\n",
		path, in, buf.SampleRate, buf.Channels, buf.Frames(), seconds)

	return nil
}
