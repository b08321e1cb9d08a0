// Package fake is an in-memory gpu.Backend for tests. It executes nothing,
// but it tracks the state a driver would validate (object lifetimes, fence
// and semaphore signals, image layouts, command buffer states) and records
// every misuse as a violation instead of crashing.
//
// Submitted work completes when the fence it signals is waited on, or when
// the device is waited idle.
package fake

import (
	"fmt"
	"sort"

	"golang.org/x/exp/slices"

	"github.com/Totterynine/ColdSrc/gpu"
)

// Kind is the type of a tracked object.
type Kind int

const (
	KindInstance Kind = iota
	KindSurface
	KindDevice
	KindAllocator
	KindSwapchain
	KindImage
	KindImageView
	KindFence
	KindSemaphore
	KindCommandPool
	KindCommandBuffer
	KindBuffer
	KindDescriptorPool
	KindDescriptorLayout
	KindDescriptorSet
	KindPipelineLayout
	KindPipeline
	KindShaderModule
)

var kindNames = [...]string{
	"instance", "surface", "device", "allocator", "swapchain", "image",
	"image view", "fence", "semaphore", "command pool", "command buffer",
	"buffer", "descriptor pool", "descriptor layout", "descriptor set",
	"pipeline layout", "pipeline", "shader module",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

type object struct {
	kind   Kind
	parent gpu.Handle

	// images
	layout    gpu.ImageLayout
	extent    gpu.Extent
	format    gpu.Format
	swapchain bool

	// fences and semaphores
	signaled bool
	pending  bool

	// command buffers
	recording bool
	inFlight  gpu.Fence
	rendering bool
	bound     map[gpu.PipelineBindPoint]gpu.Handle
	// refs are the objects recorded commands refer to.
	refs []gpu.Handle

	// descriptors
	entries []gpu.DescriptorLayoutEntry
	writes  map[uint32]gpu.DescriptorWrite
	updated bool
	maxSets int
	used    int

	// pipelines
	bindPoint gpu.PipelineBindPoint
	topology  gpu.Topology

	// swapchains
	images   []gpu.Image
	next     uint32
	buffer   []byte
	bufUsage gpu.BufferUsage
}

// Command is one recorded command.
type Command struct {
	CommandBuffer gpu.CommandBuffer
	Name          string
	Args          []any
}

// Stats counts the calls tests usually assert on.
type Stats struct {
	SwapchainsCreated int
	Acquires          int
	Submits           int
	Presents          int
	FenceWaits        int
	DescriptorPools   int
}

// Backend is a fake gpu.Backend.
type Backend struct {
	// Adapters are the physical devices OpenDevice chooses from.
	Adapters []gpu.AdapterInfo
	// InstanceVersion is the highest API version the fake loader offers.
	InstanceVersion gpu.Version
	// SwapchainImageCount is the number of images per swapchain.
	SwapchainImageCount int
	// SurfaceExtent, when non-zero, overrides the extent swapchains are
	// created with, the way a window manager dictates the surface size.
	SurfaceExtent gpu.Extent

	Stats      Stats
	Commands   []Command
	DestroyLog []gpu.Handle
	Violations []string

	next      gpu.Handle
	objects   map[gpu.Handle]*object
	destroyed map[gpu.Handle]Kind
	failures  map[string][]error
	acquire   []error
	present   []error
	device    *Device
}

var _ gpu.Backend = (*Backend)(nil)

// New returns a fake with one discrete adapter that has a dedicated
// transfer queue and supports API version 1.3.
func New() *Backend {
	return &Backend{
		Adapters: []gpu.AdapterInfo{{
			Name:           "fake discrete",
			APIVersion:     gpu.Version{Major: 1, Minor: 3},
			Discrete:       true,
			GraphicsFamily: 0,
			PresentFamily:  0,
			TransferFamily: 1,
		}},
		InstanceVersion:     gpu.Version{Major: 1, Minor: 3},
		SwapchainImageCount: 3,
		objects:             make(map[gpu.Handle]*object),
		destroyed:           make(map[gpu.Handle]Kind),
		failures:            make(map[string][]error),
	}
}

// FailNext makes the next call to op fail with err. Supported ops are the
// names of the Backend and Device methods that create objects, plus
// ResetCommandBuffer, BeginCommandBuffer, EndCommandBuffer and Submit.
func (b *Backend) FailNext(op string, err error) {
	b.failures[op] = append(b.failures[op], err)
}

// InjectAcquire queues results for AcquireNextImage. A nil entry acquires
// normally.
func (b *Backend) InjectAcquire(errs ...error) {
	b.acquire = append(b.acquire, errs...)
}

// InjectPresent queues results for Present.
func (b *Backend) InjectPresent(errs ...error) {
	b.present = append(b.present, errs...)
}

// Device returns the device opened last, or nil.
func (b *Backend) Device() *Device {
	return b.device
}

// Live returns the number of live objects.
func (b *Backend) Live() int {
	return len(b.objects)
}

// LiveOf returns the live handles of kind k in creation order.
func (b *Backend) LiveOf(k Kind) []gpu.Handle {
	var hs []gpu.Handle
	for h, o := range b.objects {
		if o.kind == k {
			hs = append(hs, h)
		}
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

// IsLive reports whether h has been created and not destroyed.
func (b *Backend) IsLive(h gpu.Handle) bool {
	_, ok := b.objects[h]
	return ok
}

// KindOf returns the kind of a live or destroyed handle.
func (b *Backend) KindOf(h gpu.Handle) (Kind, bool) {
	if o, ok := b.objects[h]; ok {
		return o.kind, true
	}
	k, ok := b.destroyed[h]
	return k, ok
}

// ImageLayout returns the layout an image was last transitioned to.
func (b *Backend) ImageLayout(img gpu.Image) gpu.ImageLayout {
	if o, ok := b.objects[gpu.Handle(img)]; ok {
		return o.layout
	}
	return gpu.LayoutUndefined
}

// FenceSignaled reports whether a fence is signaled.
func (b *Backend) FenceSignaled(f gpu.Fence) bool {
	if o, ok := b.objects[gpu.Handle(f)]; ok {
		return o.signaled
	}
	return false
}

// BufferData returns a copy of what was written to a buffer.
func (b *Backend) BufferData(buf gpu.Buffer) []byte {
	if o, ok := b.objects[gpu.Handle(buf)]; ok {
		return append([]byte(nil), o.buffer...)
	}
	return nil
}

// DescriptorSetEntries returns the layout entries a set was allocated with.
func (b *Backend) DescriptorSetEntries(set gpu.DescriptorSet) []gpu.DescriptorLayoutEntry {
	if o, ok := b.objects[gpu.Handle(set)]; ok {
		return append([]gpu.DescriptorLayoutEntry(nil), o.entries...)
	}
	return nil
}

// CommandNames returns the names of all recorded commands in order.
func (b *Backend) CommandNames() []string {
	names := make([]string, len(b.Commands))
	for i, c := range b.Commands {
		names[i] = c.Name
	}
	return names
}

// Count returns how many commands named name were recorded.
func (b *Backend) Count(name string) int {
	n := 0
	for _, c := range b.Commands {
		if c.Name == name {
			n++
		}
	}
	return n
}

// ResetCommands clears the command log.
func (b *Backend) ResetCommands() {
	b.Commands = nil
}

func (b *Backend) violate(format string, args ...any) {
	b.Violations = append(b.Violations, fmt.Sprintf(format, args...))
}

func (b *Backend) fail(op string) error {
	errs := b.failures[op]
	if len(errs) == 0 {
		return nil
	}
	b.failures[op] = errs[1:]
	return errs[0]
}

func (b *Backend) create(k Kind, parent gpu.Handle) (gpu.Handle, *object) {
	b.next++
	o := &object{kind: k, parent: parent}
	b.objects[b.next] = o
	return b.next, o
}

// use returns the live object h of kind k, recording a violation when h is
// unknown, destroyed or of another kind.
func (b *Backend) use(op string, h gpu.Handle, k Kind) *object {
	o, ok := b.objects[h]
	if !ok {
		if dk, dead := b.destroyed[h]; dead {
			b.violate("%s: use of destroyed %s %d", op, dk, h)
		} else {
			b.violate("%s: unknown %s %d", op, k, h)
		}
		return nil
	}
	if o.kind != k {
		b.violate("%s: handle %d is a %s, not a %s", op, h, o.kind, k)
		return nil
	}
	return o
}

func (b *Backend) children(h gpu.Handle, k Kind) int {
	n := 0
	for _, o := range b.objects {
		if o.parent == h && o.kind == k {
			n++
		}
	}
	return n
}

// useIn is use for an object referred to by a command recorded into cb.
func (b *Backend) useIn(cb *object, op string, h gpu.Handle, k Kind) *object {
	o := b.use(op, h, k)
	if o != nil && cb != nil {
		cb.refs = append(cb.refs, h)
	}
	return o
}

// checkIdle records a violation when h is referred to by a command buffer
// the GPU has not finished executing.
func (b *Backend) checkIdle(op string, h gpu.Handle, k Kind) {
	for ch, c := range b.objects {
		if c.kind == KindCommandBuffer && c.inFlight != 0 && slices.Contains(c.refs, h) {
			b.violate("%s: %s %d is still used by command buffer %d", op, k, h, ch)
		}
	}
}

func (b *Backend) destroy(op string, h gpu.Handle, k Kind) *object {
	o := b.use(op, h, k)
	if o == nil {
		return nil
	}
	b.checkIdle(op, h, k)
	delete(b.objects, h)
	b.destroyed[h] = k
	b.DestroyLog = append(b.DestroyLog, h)
	return o
}

func (b *Backend) record(op string, cb gpu.CommandBuffer, args ...any) *object {
	o := b.use(op, gpu.Handle(cb), KindCommandBuffer)
	if o == nil {
		return nil
	}
	if !o.recording {
		b.violate("%s: command buffer %d is not recording", op, cb)
	}
	b.Commands = append(b.Commands, Command{CommandBuffer: cb, Name: op, Args: args})
	return o
}

func (b *Backend) CreateInstance(desc gpu.InstanceDescriptor) (gpu.Instance, error) {
	if err := b.fail("CreateInstance"); err != nil {
		return 0, err
	}
	if !b.InstanceVersion.AtLeast(desc.APIVersion) {
		return 0, fmt.Errorf("%w: want %s, have %s", gpu.ErrUnsupportedVersion, desc.APIVersion, b.InstanceVersion)
	}
	h, _ := b.create(KindInstance, 0)
	return gpu.Instance(h), nil
}

func (b *Backend) DestroyInstance(inst gpu.Instance) {
	if n := b.children(gpu.Handle(inst), KindSurface) + b.children(gpu.Handle(inst), KindDevice); n > 0 {
		b.violate("DestroyInstance: %d surfaces or devices still alive", n)
	}
	b.destroy("DestroyInstance", gpu.Handle(inst), KindInstance)
}

func (b *Backend) CreateSurface(inst gpu.Instance, src gpu.SurfaceSource) (gpu.Surface, error) {
	if b.use("CreateSurface", gpu.Handle(inst), KindInstance) == nil {
		return 0, fmt.Errorf("fake: invalid instance %d", inst)
	}
	if src == nil {
		return 0, gpu.ErrNoSurfaceSource
	}
	if err := b.fail("CreateSurface"); err != nil {
		return 0, err
	}
	h, _ := b.create(KindSurface, gpu.Handle(inst))
	return gpu.Surface(h), nil
}

func (b *Backend) DestroySurface(inst gpu.Instance, s gpu.Surface) {
	if n := b.children(gpu.Handle(s), KindSwapchain); n > 0 {
		b.violate("DestroySurface: %d swapchains still alive", n)
	}
	b.destroy("DestroySurface", gpu.Handle(s), KindSurface)
}

func (b *Backend) OpenDevice(inst gpu.Instance, s gpu.Surface, req gpu.DeviceRequirements) (gpu.Device, error) {
	b.use("OpenDevice", gpu.Handle(inst), KindInstance)
	b.use("OpenDevice", gpu.Handle(s), KindSurface)
	if err := b.fail("OpenDevice"); err != nil {
		return nil, err
	}

	best := -1
	for i, a := range b.Adapters {
		if !a.APIVersion.AtLeast(req.MinAPIVersion) {
			continue
		}
		if req.DedicatedTransferQueue && (a.TransferFamily < 0 || a.TransferFamily == a.GraphicsFamily) {
			continue
		}
		if best == -1 || (a.Discrete && !b.Adapters[best].Discrete) {
			best = i
		}
	}
	if best == -1 {
		return nil, gpu.ErrNoSuitableDevice
	}

	h, _ := b.create(KindDevice, gpu.Handle(inst))
	d := &Device{b: b, handle: h, info: b.Adapters[best]}
	d.graphics = GraphicsQueue
	d.present = GraphicsQueue
	if d.info.PresentFamily != d.info.GraphicsFamily {
		d.present = PresentQueue
	}
	b.device = d
	return d, nil
}
