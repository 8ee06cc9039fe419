// SPDX-License-Identifier: EPL-2.0

package soundscape

import "errors"

var (
	// ErrBusy means the engine's command queue was full and the change was
	// not applied.
	ErrBusy      = errors.New("engine busy")
	ErrNoProject = errors.New("no project loaded")
	ErrPreview   = errors.New("cannot preview")
)
