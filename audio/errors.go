// SPDX-License-Identifier: EPL-2.0

package audio

import "errors"

var (
	ErrInvalidDstSize = errors.New("dst size must be multiple of channels")
	ErrUnknownFormat  = errors.New("no decoder registered for format")
	ErrEmptySource    = errors.New("source produced no samples")
	ErrBadFormat      = errors.New("invalid sample rate or channel count")
)
