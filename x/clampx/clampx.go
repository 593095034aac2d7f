// Package clampx holds small generic numeric helpers, the same role
// the retrieved devicecode-go repo's x/mathx package plays for its own
// ramp/timing math: clamp/min/max/saturating-add over ordered types,
// built on golang.org/x/exp/constraints instead of hand-rolled
// per-type copies.
package clampx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Min returns the smaller of a and b.
func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// SaturatingAdd adds delta to v, clamping at max instead of wrapping.
// Used for counters like Task.Stats().RunCount that must saturate
// rather than overflow back to zero.
func SaturatingAdd[T constraints.Unsigned](v, delta, max T) T {
	if max-v < delta {
		return max
	}
	return v + delta
}
