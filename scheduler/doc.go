// SPDX-License-Identifier: EPL-2.0

// Package scheduler is the control-rate soundscape: per installation and
// per group noise walks pick a target occupancy, occurrence-rate windows
// force or suppress spawns, and candidates are drawn by remaining capacity.
// All randomness comes from one PCG generator seeded by the project, so a
// seed and a tick sequence always replay the same spawns.
package scheduler
