// Package alloc sub-allocates ranges of a fixed size block, such as one
// device memory allocation shared by many images and buffers.
package alloc

import (
	"fmt"
)

// Allocation is a range inside a block.
type Allocation struct {
	Offset uint64
	Size   uint64
}

func (a *Allocation) String() string {
	return fmt.Sprintf("[%d %d]", a.Offset, a.Size)
}

// End is the first offset past the allocation.
func (a *Allocation) End() uint64 {
	return a.Offset + a.Size
}

// Allocator hands out ranges of a block.
type Allocator interface {
	Allocate(size uint64, align uint64) *Allocation
	Free(a *Allocation) bool
}

// Linear is a first-fit allocator over a block of Size bytes. Allocations
// are kept sorted by offset so gaps left by Free are reused.
type Linear struct {
	Size   uint64
	allocs []*Allocation
}

// NewLinear returns an allocator over a block of size bytes.
func NewLinear(size uint64) *Linear {
	return &Linear{Size: size}
}

// AlignUp rounds a up to the next multiple of align.
func AlignUp(a uint64, align uint64) uint64 {
	if align <= 1 {
		return a
	}
	m := a % align
	if m == 0 {
		return a
	}
	return (a - m) + align
}

// Free releases a, reporting whether it belonged to this allocator.
func (p *Linear) Free(fa *Allocation) bool {
	for i, a := range p.allocs {
		if a == fa {
			p.allocs = append(p.allocs[:i], p.allocs[i+1:]...)
			return true
		}
	}
	return false
}

// Allocate returns a range of size bytes starting at a multiple of align, or
// nil when no gap is large enough.
func (p *Linear) Allocate(size uint64, align uint64) *Allocation {
	if size == 0 || size > p.Size {
		return nil
	}

	var prevEnd uint64
	for i, c := range p.allocs {
		l := AlignUp(prevEnd, align)
		if l <= c.Offset && c.Offset-l >= size {
			na := &Allocation{Offset: l, Size: size}
			p.allocs = append(p.allocs[:i], append([]*Allocation{na}, p.allocs[i:]...)...)
			return na
		}
		prevEnd = c.End()
	}

	l := AlignUp(prevEnd, align)
	if l > p.Size || p.Size-l < size {
		return nil
	}
	na := &Allocation{Offset: l, Size: size}
	p.allocs = append(p.allocs, na)
	return na
}

// Used returns the number of bytes currently handed out.
func (p *Linear) Used() uint64 {
	var n uint64
	for _, a := range p.allocs {
		n += a.Size
	}
	return n
}

// Len returns the number of live allocations.
func (p *Linear) Len() int {
	return len(p.allocs)
}

func (p *Linear) String() string {
	return fmt.Sprintf("%v", p.allocs)
}
