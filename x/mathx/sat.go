package mathx

import "golang.org/x/exp/constraints"

// SatInc increments v unless it already holds the maximum value of T.
// ok reports whether the increment happened.
func SatInc[T constraints.Unsigned](v T) (next T, ok bool) {
	if v == ^T(0) {
		return v, false
	}
	return v + 1, true
}

// SatDec decrements v unless it is already zero.
func SatDec[T constraints.Unsigned](v T) (next T, ok bool) {
	if v == 0 {
		return 0, false
	}
	return v - 1, true
}
