// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"errors"
	"math"
	"math/bits"
)

// PartsPerMillion is the resolution at which Portion applies fractions.
const PartsPerMillion uint64 = 1_000_000

// Unsigned is a constraint that permits any unsigned integer type.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

var (
	ErrOverflow        = errors.New("overflow")
	ErrUnderflow       = errors.New("underflow")
	ErrInvalidFraction = errors.New("fraction must be within [0, 1]")
)

// MaxUint returns the maximum value of an unsigned integer of type T.
func MaxUint[T Unsigned]() T {
	return ^T(0)
}

// Add returns:
// 1) a + b
// 2) If there is overflow, an error
func Add[T Unsigned](a, b T) (T, error) {
	if a > MaxUint[T]()-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub returns:
// 1) a - b
// 2) If there is underflow, an error
func Sub[T Unsigned](a, b T) (T, error) {
	if a < b {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// Portion returns floor(amount * fraction), with the fraction rounded to
// the nearest part per million. The intermediate product is computed in
// 128 bits so the full uint64 range is accepted.
func Portion(amount uint64, fraction float64) (uint64, error) {
	if math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
		return 0, ErrInvalidFraction
	}
	ppm := uint64(math.Round(fraction * float64(PartsPerMillion)))
	hi, lo := bits.Mul64(amount, ppm)
	quo, _ := bits.Div64(hi, lo, PartsPerMillion)
	return quo, nil
}

// Clamp bounds v to [lo, hi]. NaN is mapped to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return max(lo, min(v, hi))
}
