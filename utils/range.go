// SPDX-License-Identifier: EPL-2.0

package utils

import "cmp"

// Number is the set of types a Range can span.
type Number interface {
	~int | ~int64 | ~float64
}

// Range is an inclusive [Min, Max] interval.
type Range[T Number] struct {
	Min T `json:"min"`
	Max T `json:"max"`
}

// Valid reports whether Min <= Max.
func (r Range[T]) Valid() bool { return cmp.Compare(r.Min, r.Max) <= 0 }

func (r Range[T]) Contains(v T) bool { return v >= r.Min && v <= r.Max }

// At maps t in [0, 1] onto the range. Integer ranges round down, with t == 1
// landing on Max.
func (r Range[T]) At(t float64) T {
	if t >= 1 {
		return r.Max
	}

	span := float64(r.Max-r.Min) + 1
	var zero T
	switch any(zero).(type) {
	case float64:
		span--
	}

	return r.Min + T(t*span)
}

// Clamp limits v to the range.
func (r Range[T]) Clamp(v T) T {
	return min(max(v, r.Min), r.Max)
}
