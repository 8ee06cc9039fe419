// SPDX-License-Identifier: EPL-2.0

//go:build headless

package device

import (
	"fmt"

	"github.com/ik5/soundscape/control"
)

func openPortAudio(Config, Renderer, *control.SampleRing) (Device, error) {
	return nil, fmt.Errorf("%w: built without portaudio", ErrUnsupported)
}

func openOto(Config, Renderer) (Device, error) {
	return nil, fmt.Errorf("%w: built without oto", ErrUnsupported)
}
