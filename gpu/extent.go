package gpu

import (
	"golang.org/x/exp/constraints"
)

// Extent is the size of an image in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

// IsZero reports whether either dimension is zero, which is what a
// minimized window reports.
func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

// Min returns the per-axis minimum of both extents.
func (e Extent) Min(o Extent) Extent {
	return Extent{Width: Min(e.Width, o.Width), Height: Min(e.Height, o.Height)}
}

// Clamp restricts e to the range [lo, hi] on both axes.
func (e Extent) Clamp(lo, hi Extent) Extent {
	return Extent{
		Width:  Clamp(e.Width, lo.Width, hi.Width),
		Height: Clamp(e.Height, lo.Height, hi.Height),
	}
}

func Min[T constraints.Integer | constraints.Float](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T constraints.Integer | constraints.Float](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func Clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	return Max(lo, Min(v, hi))
}

// Fits reports whether n bytes at offset lie inside a size byte range. It
// cannot be fooled by offset+n wrapping around.
func Fits[T constraints.Unsigned](offset, n, size T) bool {
	return offset <= size && n <= size-offset
}
