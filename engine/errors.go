// SPDX-License-Identifier: EPL-2.0

package engine

import "errors"

var (
	ErrConfig = errors.New("invalid engine config")
	ErrLayout = errors.New("invalid layout")
)
