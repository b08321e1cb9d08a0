package rendersystem

import (
	"fmt"

	"github.com/Totterynine/ColdSrc/gpu"
)

// Buffer is host visible device memory used as a uniform, storage or index
// buffer.
type Buffer struct {
	rs *RenderSystem

	handle gpu.Buffer
	size   uint64
	usage  gpu.BufferUsage

	destroyed bool
}

// CreateBuffer allocates a size byte buffer.
func (rs *RenderSystem) CreateBuffer(usage gpu.BufferUsage, size uint64) (*Buffer, error) {
	if err := rs.ready(); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, rs.misuse("CreateBuffer", fmt.Errorf("%w: zero sized buffer", ErrInvalidExtent))
	}
	h, err := rs.device.CreateBuffer(gpu.BufferDescriptor{
		Allocator: rs.allocator,
		Size:      size,
		Usage:     usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer: %w", err)
	}
	b := &Buffer{rs: rs, handle: h, size: size, usage: usage}
	rs.tracked.add(b)
	return b, nil
}

// Handle returns the underlying buffer, or zero once destroyed.
func (b *Buffer) Handle() gpu.Buffer { return b.handle }

// Size returns the size of the buffer in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Usage returns the ways the buffer may be bound.
func (b *Buffer) Usage() gpu.BufferUsage { return b.usage }

// Destroyed reports whether Destroy has been called.
func (b *Buffer) Destroyed() bool { return b.destroyed }

// Write copies data into the buffer at offset.
func (b *Buffer) Write(offset uint64, data []byte) error {
	if b.destroyed {
		return b.rs.misuse("Buffer.Write", ErrResourceDestroyed)
	}
	if !gpu.Fits(offset, uint64(len(data)), b.size) {
		return b.rs.misuse("Buffer.Write", fmt.Errorf("%w: %d bytes at %d in a %d byte buffer", ErrBufferUsage, len(data), offset, b.size))
	}
	return b.rs.device.WriteBuffer(b.handle, offset, data)
}

// Destroy frees the buffer. During a frame the memory is kept until the
// frame has finished on the GPU.
func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	rs := b.rs
	rs.tracked.remove(b)
	if rs.rec.index == b {
		rs.rec.index = nil
	}
	rs.retire(Release{Kind: ReleaseBuffer, Handle: gpu.Handle(b.handle)})
	b.handle = 0
}
