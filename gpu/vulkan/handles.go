package vulkan

import (
	"github.com/Totterynine/ColdSrc/gpu"
)

// table maps opaque handles to native objects. Handles come from a shared
// counter and are never reused, so a stale handle never aliases a new object.
type table[T any] map[gpu.Handle]T

func (t table[T]) put(next *gpu.Handle, v T) gpu.Handle {
	*next++
	t[*next] = v
	return *next
}

func (t table[T]) take(h gpu.Handle) (T, bool) {
	v, ok := t[h]
	delete(t, h)
	return v, ok
}
