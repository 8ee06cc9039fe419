// SPDX-License-Identifier: EPL-2.0

package oscio

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/chabad360/go-osc/osc"
	"github.com/sirupsen/logrus"

	"github.com/ik5/soundscape/project"
)

// Control input addresses.
const (
	AddrMasterVolume = "/soundscape/master/volume"
	AddrSourceVolume = "/soundscape/source/volume"
	AddrPlaying      = "/soundscape/playing"
)

// Controls is what remote control input can change.
type Controls interface {
	SetMasterVolume(v float64) error
	SetSourceVolume(id project.SourceID, v float64) error
	SetPlaying(playing bool) error
}

// Receiver maps incoming OSC messages onto Controls. Volumes outside 0..1
// are clamped.
type Receiver struct {
	controls Controls
	server   *osc.Server
}

func NewReceiver(c Controls) *Receiver {
	r := &Receiver{controls: c}

	d := osc.NewStandardDispatcher()
	_ = d.AddMsgMethod(AddrMasterVolume, func(m *osc.Message) { r.Handle(m) })
	_ = d.AddMsgMethod(AddrSourceVolume, func(m *osc.Message) { r.Handle(m) })
	_ = d.AddMsgMethod(AddrPlaying, func(m *osc.Message) { r.Handle(m) })

	r.server = &osc.Server{Dispatcher: d}

	return r
}

// ListenAndServe receives on addr until ctx is done.
func (r *Receiver) ListenAndServe(ctx context.Context, addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("osc listen %s: %w", addr, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Receiver.ListenAndServe",
		"addr":     conn.LocalAddr().String(),
	}).Info("listening for OSC control")

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	err = r.server.Serve(conn)
	if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}

// Handle applies one message. Unknown addresses and malformed arguments are
// logged and ignored.
func (r *Receiver) Handle(m *osc.Message) {
	err := r.apply(m)
	if err == nil {
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "Receiver.Handle",
		"address":  m.Address,
		"args":     m.Arguments,
		"error":    err,
	}).Warn("ignored OSC control message")
}

func (r *Receiver) apply(m *osc.Message) error {
	switch m.Address {
	case AddrMasterVolume:
		if len(m.Arguments) != 1 {
			return fmt.Errorf("%w: want 1 argument", ErrArgument)
		}
		v, err := float(m.Arguments[0])
		if err != nil {
			return err
		}

		return r.controls.SetMasterVolume(clamp01(v))

	case AddrSourceVolume:
		if len(m.Arguments) != 2 {
			return fmt.Errorf("%w: want 2 arguments", ErrArgument)
		}
		id, ok := m.Arguments[0].(int32)
		if !ok || id < 0 {
			return fmt.Errorf("%w: source id %v", ErrArgument, m.Arguments[0])
		}
		v, err := float(m.Arguments[1])
		if err != nil {
			return err
		}

		return r.controls.SetSourceVolume(project.SourceID(id), clamp01(v))

	case AddrPlaying:
		if len(m.Arguments) != 1 {
			return fmt.Errorf("%w: want 1 argument", ErrArgument)
		}
		switch v := m.Arguments[0].(type) {
		case bool:
			return r.controls.SetPlaying(v)
		case int32:
			return r.controls.SetPlaying(v != 0)
		}

		return fmt.Errorf("%w: playing %v", ErrArgument, m.Arguments[0])
	}

	return fmt.Errorf("%w: unknown address", ErrArgument)
}

func float(v any) (float64, error) {
	switch f := v.(type) {
	case float32:
		return float64(f), nil
	case float64:
		return f, nil
	case int32:
		return float64(f), nil
	}

	return 0, fmt.Errorf("%w: %v is not a number", ErrArgument, v)
}

func clamp01(v float64) float64 { return min(max(v, 0), 1) }
