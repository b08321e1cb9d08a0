package rendersystem

import (
	"errors"
	"fmt"

	"github.com/Totterynine/ColdSrc/gpu"
)

// DescriptorLayoutBuilder collects bindings for a DescriptorLayout.
type DescriptorLayoutBuilder struct {
	rs      *RenderSystem
	entries []gpu.DescriptorLayoutEntry
}

// NewDescriptorLayoutBuilder returns an empty builder.
func (rs *RenderSystem) NewDescriptorLayoutBuilder() *DescriptorLayoutBuilder {
	return &DescriptorLayoutBuilder{rs: rs}
}

// AddBinding declares binding as a t visible to stages.
func (b *DescriptorLayoutBuilder) AddBinding(binding uint32, t gpu.DescriptorType, stages gpu.ShaderStage) *DescriptorLayoutBuilder {
	b.entries = append(b.entries, gpu.DescriptorLayoutEntry{Binding: binding, Type: t, Stages: stages})
	return b
}

// Build creates the layout from the declared bindings and empties the
// builder, whether or not it succeeds.
func (b *DescriptorLayoutBuilder) Build() (*DescriptorLayout, error) {
	entries := b.entries
	b.entries = nil
	return b.rs.BuildDescriptorLayout(entries)
}

// DescriptorLayout is an immutable list of bindings.
type DescriptorLayout struct {
	rs      *RenderSystem
	handle  gpu.DescriptorLayout
	entries []gpu.DescriptorLayoutEntry

	destroyed bool
}

// BuildDescriptorLayout creates a layout from entries. Each binding number
// may appear once.
func (rs *RenderSystem) BuildDescriptorLayout(entries []gpu.DescriptorLayoutEntry) (*DescriptorLayout, error) {
	if err := rs.ready(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, rs.misuse("BuildDescriptorLayout", ErrEmptyLayout)
	}
	seen := make(map[uint32]bool, len(entries))
	for _, e := range entries {
		if seen[e.Binding] {
			return nil, rs.misuse("BuildDescriptorLayout", fmt.Errorf("%w: %d", ErrDuplicateBinding, e.Binding))
		}
		seen[e.Binding] = true
	}

	entries = append([]gpu.DescriptorLayoutEntry(nil), entries...)
	h, err := rs.device.CreateDescriptorLayout(entries)
	if err != nil {
		return nil, fmt.Errorf("create descriptor layout: %w", err)
	}
	l := &DescriptorLayout{rs: rs, handle: h, entries: entries}
	rs.tracked.add(l)
	return l, nil
}

// Handle returns the underlying layout, or zero once destroyed.
func (l *DescriptorLayout) Handle() gpu.DescriptorLayout { return l.handle }

// Entries returns a copy of the layout's bindings.
func (l *DescriptorLayout) Entries() []gpu.DescriptorLayoutEntry {
	return append([]gpu.DescriptorLayoutEntry(nil), l.entries...)
}

func (l *DescriptorLayout) entry(binding uint32) (gpu.DescriptorLayoutEntry, bool) {
	for _, e := range l.entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return gpu.DescriptorLayoutEntry{}, false
}

// Destroy releases the layout. Shaders built from it keep working.
func (l *DescriptorLayout) Destroy() {
	if l.destroyed {
		return
	}
	l.destroyed = true
	l.rs.tracked.remove(l)
	l.rs.device.DestroyDescriptorLayout(l.handle)
	l.handle = 0
}

// descriptorAllocator hands out sets from a list of pools, adding a pool
// whenever the newest one is full. Pools live until Destroy.
type descriptorAllocator struct {
	pools       []gpu.DescriptorPool
	setsPerPool int
}

func (rs *RenderSystem) newDescriptorPool() (gpu.DescriptorPool, error) {
	n := rs.descriptors.setsPerPool
	pool, err := rs.device.CreateDescriptorPool(gpu.DescriptorPoolDescriptor{
		MaxSets: n,
		Sizes: []gpu.PoolSize{
			{Type: gpu.DescriptorUniformBuffer, Count: 4 * n},
			{Type: gpu.DescriptorStorageBuffer, Count: 4 * n},
			{Type: gpu.DescriptorStorageImage, Count: 4 * n},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("create descriptor pool: %w", err)
	}
	rs.release.Push(ReleaseDescriptorPool, gpu.Handle(pool))
	rs.descriptors.pools = append(rs.descriptors.pools, pool)
	rs.log.Debug("descriptor pool added", "pools", len(rs.descriptors.pools), "sets", n)
	return pool, nil
}

func (rs *RenderSystem) allocateDescriptorSet(layout gpu.DescriptorLayout) (gpu.DescriptorSet, error) {
	pools := rs.descriptors.pools
	if len(pools) > 0 {
		set, err := rs.device.AllocateDescriptorSet(pools[len(pools)-1], layout)
		if err == nil {
			return set, nil
		}
		if !errors.Is(err, gpu.ErrPoolExhausted) {
			return 0, fmt.Errorf("allocate descriptor set: %w", err)
		}
	}
	pool, err := rs.newDescriptorPool()
	if err != nil {
		return 0, err
	}
	set, err := rs.device.AllocateDescriptorSet(pool, layout)
	if err != nil {
		return 0, fmt.Errorf("allocate descriptor set: %w", err)
	}
	return set, nil
}

// bindable is a resource a descriptor set can refer to.
type bindable interface {
	Destroyed() bool
}

// stagedWrite is a write waiting for Update and the resource it came from,
// nil for raw views.
type stagedWrite struct {
	write gpu.DescriptorWrite
	owner bindable
}

// DescriptorSet binds resources to the bindings of a layout. Resources are
// staged with the Bind methods and written by Update.
type DescriptorSet struct {
	rs      *RenderSystem
	layout  *DescriptorLayout
	handle  gpu.DescriptorSet
	pending []stagedWrite
	// bound is the resource written to each binding by Update.
	bound   map[uint32]bindable
	updated bool
}

// BuildDescriptorSet allocates a set for layout.
func (rs *RenderSystem) BuildDescriptorSet(layout *DescriptorLayout) (*DescriptorSet, error) {
	if err := rs.ready(); err != nil {
		return nil, err
	}
	switch {
	case layout == nil:
		return nil, rs.misuse("BuildDescriptorSet", ErrNilResource)
	case layout.destroyed:
		return nil, rs.misuse("BuildDescriptorSet", ErrResourceDestroyed)
	}
	h, err := rs.allocateDescriptorSet(layout.handle)
	if err != nil {
		return nil, err
	}
	return &DescriptorSet{rs: rs, layout: layout, handle: h}, nil
}

// Handle returns the underlying set.
func (s *DescriptorSet) Handle() gpu.DescriptorSet { return s.handle }

// Layout returns the layout the set was allocated for.
func (s *DescriptorSet) Layout() *DescriptorLayout { return s.layout }

// Updated reports whether Update has been called at least once.
func (s *DescriptorSet) Updated() bool { return s.updated }

// Pending returns the number of staged writes.
func (s *DescriptorSet) Pending() int { return len(s.pending) }

func (s *DescriptorSet) stage(op string, w gpu.DescriptorWrite, owner bindable) error {
	e, ok := s.layout.entry(w.Binding)
	if !ok {
		return s.rs.misuse(op, fmt.Errorf("%w: %d", ErrUnknownBinding, w.Binding))
	}
	if e.Type != w.Type {
		return s.rs.misuse(op, fmt.Errorf("%w: binding %d is %s, got %s", ErrBindingType, w.Binding, e.Type, w.Type))
	}
	sw := stagedWrite{write: w, owner: owner}
	for i, p := range s.pending {
		if p.write.Binding == w.Binding {
			s.pending[i] = sw
			return nil
		}
	}
	s.pending = append(s.pending, sw)
	return nil
}

// BindImage stages view for the storage image at binding. The caller keeps
// view alive while the set is in use.
func (s *DescriptorSet) BindImage(binding uint32, view gpu.ImageView) error {
	if view == 0 {
		return s.rs.misuse("BindImage", ErrNilResource)
	}
	return s.stage("BindImage", gpu.DescriptorWrite{Binding: binding, Type: gpu.DescriptorStorageImage, View: view}, nil)
}

// BindRenderTarget stages rt's view for the storage image at binding.
func (s *DescriptorSet) BindRenderTarget(binding uint32, rt *RenderTarget) error {
	switch {
	case rt == nil:
		return s.rs.misuse("BindRenderTarget", ErrNilResource)
	case rt.destroyed:
		return s.rs.misuse("BindRenderTarget", ErrResourceDestroyed)
	}
	return s.stage("BindRenderTarget", gpu.DescriptorWrite{Binding: binding, Type: gpu.DescriptorStorageImage, View: rt.view}, rt)
}

// BindBuffer stages the whole of b for the buffer at binding. The binding's
// type decides whether b is read as a uniform or a storage buffer.
func (s *DescriptorSet) BindBuffer(binding uint32, b *Buffer) error {
	switch {
	case b == nil:
		return s.rs.misuse("BindBuffer", ErrNilResource)
	case b.destroyed:
		return s.rs.misuse("BindBuffer", ErrResourceDestroyed)
	}
	e, ok := s.layout.entry(binding)
	if !ok {
		return s.rs.misuse("BindBuffer", fmt.Errorf("%w: %d", ErrUnknownBinding, binding))
	}
	var need gpu.BufferUsage
	switch e.Type {
	case gpu.DescriptorUniformBuffer:
		need = gpu.BufferUsageUniform
	case gpu.DescriptorStorageBuffer:
		need = gpu.BufferUsageStorage
	default:
		return s.rs.misuse("BindBuffer", fmt.Errorf("%w: binding %d is %s", ErrBindingType, binding, e.Type))
	}
	if b.usage&need == 0 {
		return s.rs.misuse("BindBuffer", fmt.Errorf("%w: %s binding", ErrBufferUsage, e.Type))
	}
	return s.stage("BindBuffer", gpu.DescriptorWrite{
		Binding: binding,
		Type:    e.Type,
		Buffer:  b.handle,
		Range:   b.size,
	}, b)
}

// Update writes the staged resources into the set. The set must not be in
// use by a frame the GPU has not finished. Resources destroyed since they
// were staged are skipped.
func (s *DescriptorSet) Update() {
	writes := make([]gpu.DescriptorWrite, 0, len(s.pending))
	for _, p := range s.pending {
		if p.owner != nil && p.owner.Destroyed() {
			s.rs.log.Error("resource destroyed before descriptor update", "binding", p.write.Binding)
			continue
		}
		if s.bound == nil {
			s.bound = make(map[uint32]bindable)
		}
		if p.owner != nil {
			s.bound[p.write.Binding] = p.owner
		} else {
			delete(s.bound, p.write.Binding)
		}
		writes = append(writes, p.write)
	}
	s.rs.device.UpdateDescriptorSet(s.handle, writes)
	s.pending = nil
	s.updated = true
}

// destroyedBinding returns the first binding whose resource has been
// destroyed since Update wrote it.
func (s *DescriptorSet) destroyedBinding() (uint32, bool) {
	for binding, r := range s.bound {
		if r.Destroyed() {
			return binding, true
		}
	}
	return 0, false
}
