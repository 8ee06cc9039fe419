// SPDX-License-Identifier: EPL-2.0

// Package movement implements how a sound travels through its installation.
//
// A Model is a closed tagged variant (fixed point, steering agent, polygon
// path) stored on a source. Spawn samples the model's parameter ranges into a
// State; Advance is a pure step function over that State. Randomness comes
// from a PCG generator carried inside the State, so identical seeds produce
// identical paths.
package movement
