// SPDX-License-Identifier: EPL-2.0

// Package project is the exhibition data model: speakers, installations,
// soundscape groups and sources, plus the derived geometry (installation
// bounds, movement limits) and validation that guard every edit.
package project
