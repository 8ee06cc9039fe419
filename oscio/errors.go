// SPDX-License-Identifier: EPL-2.0

package oscio

import "errors"

var (
	ErrTarget   = errors.New("invalid OSC target")
	ErrArgument = errors.New("invalid OSC argument")
)
