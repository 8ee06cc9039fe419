// SPDX-License-Identifier: EPL-2.0

package oscio

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/chabad360/go-osc/osc"
	"github.com/sirupsen/logrus"

	"github.com/ik5/soundscape/analysis"
	"github.com/ik5/soundscape/control"
)

// Transport delivers messages to one target.
type Transport interface {
	Send(msg *osc.Message) error
}

// Dialer opens the transport for a "host:port" target.
type Dialer func(target string) (Transport, error)

type udpClient struct{ c *osc.Client }

func (u udpClient) Send(msg *osc.Message) error { return u.c.Send(msg) }

// DialUDP is the default Dialer.
func DialUDP(target string) (Transport, error) {
	host, port, err := net.SplitHostPort(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrTarget, target, err)
	}

	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return nil, fmt.Errorf("%w: %q: bad port", ErrTarget, target)
	}

	return udpClient{c: osc.NewClient(host, p)}, nil
}

type targetKey struct {
	address string
	target  string
}

type sent struct {
	at   time.Time
	args []any
}

// Sender forwards analysis frames as OSC messages, one per installation
// route and target. A target hears from an installation at most MaxRate
// times a second and never receives the same message twice in a row.
type Sender struct {
	dial    Dialer
	maxRate float64
	now     func() time.Time

	mu         sync.Mutex
	generation uint64
	routes     []Route

	clients map[string]Transport
	last    map[targetKey]sent
	sends   uint64
}

func NewSender(maxRate float64, dial Dialer) *Sender {
	if dial == nil {
		dial = DialUDP
	}

	return &Sender{
		dial:    dial,
		maxRate: maxRate,
		now:     time.Now,
		clients: make(map[string]Transport),
		last:    make(map[targetKey]sent),
	}
}

// SetRoutes installs the routes of the layout with the given generation.
// Frames of any other generation are dropped.
func (s *Sender) SetRoutes(generation uint64, routes []Route) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation = generation
	s.routes = routes
}

// Run sends every frame arriving on frames and hands it back to release.
func (s *Sender) Run(ctx context.Context, frames *control.Queue[*analysis.Frame], release func(*analysis.Frame)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-frames.C():
			s.Send(f)
			release(f)
		}
	}
}

// Send forwards one frame.
func (s *Sender) Send(f *analysis.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.Generation != s.generation {
		return
	}

	now := s.now()
	for _, r := range s.routes {
		if r.Installation >= len(f.Installations) {
			continue
		}
		args := payload(f, r)

		for _, target := range r.Targets {
			s.sendTo(target, r.Address, args, now)
		}
	}
}

// Sends counts messages delivered to transports.
func (s *Sender) Sends() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sends
}

func (s *Sender) sendTo(target, address string, args []any, now time.Time) {
	key := targetKey{address: address, target: target}
	prev, seen := s.last[key]
	if seen {
		if s.maxRate > 0 && now.Sub(prev.at).Seconds() < 1/s.maxRate {
			return
		}
		if slices.Equal(prev.args, args) {
			return
		}
	}

	client, err := s.client(target)
	if err != nil {
		return
	}

	if err := client.Send(osc.NewMessage(address, args...)); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Sender.sendTo",
			"target":   target,
			"address":  address,
			"error":    err,
		}).Warn("failed to send analysis")

		return
	}

	s.last[key] = sent{at: now, args: args}
	s.sends++
}

func (s *Sender) client(target string) (Transport, error) {
	if c, ok := s.clients[target]; ok {
		return c, nil
	}

	c, err := s.dial(target)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Sender.client",
			"target":   target,
			"error":    err,
		}).Error("failed to open OSC target")

		return nil, err
	}
	s.clients[target] = c

	return c, nil
}

// payload lays out avg peak, avg rms, fft3, fft8, then index, peak and rms
// for each speaker of the route.
func payload(f *analysis.Frame, r Route) []any {
	avg := f.Installations[r.Installation]

	args := make([]any, 0, 13+3*len(r.Speakers))
	args = append(args, avg.Peak, avg.RMS)
	for _, v := range avg.FFT3 {
		args = append(args, v)
	}
	for _, v := range avg.FFT8 {
		args = append(args, v)
	}

	for i, k := range r.Speakers {
		if k >= len(f.Speakers) {
			continue
		}
		sp := f.Speakers[k]
		args = append(args, int32(i), sp.Peak, sp.RMS)
	}

	return args
}
