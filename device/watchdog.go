// SPDX-License-Identifier: EPL-2.0

package device

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// StallBlocks is how many block periods a stream may go without a callback
// before it is declared dead.
const StallBlocks = 16

// MinStall keeps scheduler jitter at small block sizes from reading as a
// stall.
const MinStall = 500 * time.Millisecond

// StallWindow is the silence after which a stream with cfg's block period
// is considered dead.
func StallWindow(cfg Config) time.Duration {
	period := time.Duration(cfg.BlockFrames) * time.Second / time.Duration(cfg.SampleRate)
	return max(StallBlocks*period, MinStall)
}

// Watchdog notices a stream whose callback stopped running. The callback
// calls Beat once per block; Watch fails once a whole window passes without
// one.
type Watchdog struct {
	name       string
	window     time.Duration
	beats      atomic.Uint64
	underflows atomic.Uint64
}

func NewWatchdog(name string, window time.Duration) *Watchdog {
	return &Watchdog{name: name, window: window}
}

// Beat and Underflow are safe to call from the real-time goroutine.
func (w *Watchdog) Beat()      { w.beats.Add(1) }
func (w *Watchdog) Underflow() { w.underflows.Add(1) }

func (w *Watchdog) Beats() uint64      { return w.beats.Load() }
func (w *Watchdog) Underflows() uint64 { return w.underflows.Load() }

// Watch blocks until ctx is done, returning nil, or until the stream
// stalls, returning an error wrapping ErrStream. Underflows seen during a
// window are logged at its end.
func (w *Watchdog) Watch(ctx context.Context) error {
	t := time.NewTicker(w.window)
	defer t.Stop()

	last := w.beats.Load()
	var reported uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}

		beats := w.beats.Load()
		if beats == last {
			return fmt.Errorf("%w: %s: no callback for %v", ErrStream, w.name, w.window)
		}
		last = beats

		if u := w.underflows.Load(); u != reported {
			logrus.WithFields(logrus.Fields{
				"function":   "Watchdog.Watch",
				"stream":     w.name,
				"underflows": u,
				"new":        u - reported,
			}).Warn("stream underflow")
			reported = u
		}
	}
}
