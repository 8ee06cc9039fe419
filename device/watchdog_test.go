// SPDX-License-Identifier: EPL-2.0

package device_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/soundscape/device"
)

func TestWatchdogStalledStreamFails(t *testing.T) {
	t.Parallel()

	w := device.NewWatchdog("test", 20*time.Millisecond)
	w.Beat()

	start := time.Now()
	err := w.Watch(context.Background())
	require.ErrorIs(t, err, device.ErrStream)
	assert.ErrorContains(t, err, "test")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWatchdogBeatingStreamRuns(t *testing.T) {
	t.Parallel()

	w := device.NewWatchdog("test", 50*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	go func() {
		tick := time.NewTicker(time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				w.Beat()
				w.Underflow()
			}
		}
	}()

	require.NoError(t, w.Watch(ctx))
	assert.Positive(t, w.Beats())
	assert.Positive(t, w.Underflows())
}

func TestStallWindow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  device.Config
		want time.Duration
	}{
		{"short blocks use the floor", device.Config{SampleRate: 48000, BlockFrames: 480, OutputChannels: 2}, device.MinStall},
		{"long blocks", device.Config{SampleRate: 8000, BlockFrames: 512, OutputChannels: 2}, 1024 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, device.StallWindow(tt.cfg))
		})
	}
}
