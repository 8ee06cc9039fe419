// SPDX-License-Identifier: EPL-2.0

// Package oscio speaks OSC with the outside world. The Sender publishes each
// installation's analysis at /<slug of its name> and the Receiver accepts
// master volume, source volume and play/pause control.
package oscio
