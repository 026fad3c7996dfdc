package mathx

import "golang.org/x/exp/constraints"

// CeilDiv returns ceil(a/b). b == 0 yields 0.
func CeilDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}

// AlignDown rounds v down to a multiple of align. align == 0 returns v.
func AlignDown[T constraints.Unsigned](v, align T) T {
	if align == 0 {
		return v
	}
	return (v / align) * align
}
