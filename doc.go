// SPDX-License-Identifier: EPL-2.0

// Package soundscape runs a generative spatial soundscape across many
// loudspeakers.
//
// A Server ties the pieces together: the engine renders every playing
// sound through distance-based amplitude panning on the device's real-time
// goroutine, the scheduler decides when sounds are born, the analyzer
// measures each speaker, and OSC carries analysis out and control in.
//
// # Quick Start
//
//	cfg := config.Default()
//	p, _ := project.Load("gallery.hujson")
//
//	srv, err := soundscape.New(cfg, p)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(srv.Run(ctx))
//
// # Editing
//
// All changes go through the Controller. Every edit is validated against
// the engine's limits; a rejected edit leaves the running exhibition
// untouched and returns a *project.ValidationError:
//
//	ctrl := srv.Controller()
//	err := ctrl.EditSpeaker(project.Speaker{ID: 4, Position: r2.Vec{X: 2, Y: 6}, Channel: 4,
//	    Installations: []project.InstallationID{1}})
//
// # Offline Rendering
//
// Render plays the exhibition without hardware and writes every output
// channel to one WAV file, which makes a seed reproducible end to end:
//
//	f, _ := os.Create("render.wav")
//	err := srv.Render(f, 2*time.Minute)
//
// # Sample Formats
//
// Stored sources decode from WAV, AIFF, MP3 and Ogg Vorbis, and are
// resampled to the engine rate when loaded.
package soundscape
