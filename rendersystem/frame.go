package rendersystem

import (
	"errors"
	"fmt"

	"github.com/Totterynine/ColdSrc/gpu"
)

// FramesInFlight is the number of frames the CPU may record ahead of the
// GPU.
const FramesInFlight = 2

// FrameState is where the current frame is in its
// BeginRendering, EndRendering, Present cycle.
type FrameState int

const (
	FrameIdle FrameState = iota
	FrameRecording
	FrameSubmitted
	FrameSkipped
)

func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "idle"
	case FrameRecording:
		return "recording"
	case FrameSubmitted:
		return "submitted"
	case FrameSkipped:
		return "skipped"
	}
	return fmt.Sprintf("FrameState(%d)", int(s))
}

// frameSlot is the synchronization owned by one frame in flight.
type frameSlot struct {
	inFlight       gpu.Fence
	imageAvailable gpu.Semaphore
	renderFinished gpu.Semaphore

	// retired holds objects destroyed while this slot was recording. They
	// go once the slot's fence has signaled.
	retired ReleaseQueue
	// lost is set when a dropped frame could not be handed back to the
	// queue, so inFlight may never signal. The next wait on the slot waits
	// for the device instead.
	lost bool
}

type frameScheduler struct {
	slots [FramesInFlight]frameSlot
	index int
	state FrameState

	imageIndex uint32
	cmd        gpu.CommandBuffer

	// recreate is set when acquisition reported a suboptimal swapchain; it
	// is rebuilt once the acquired image has been presented.
	recreate bool

	presented uint64
}

// createFrameSlots creates the fences and semaphores of every frame slot.
// Fences start signaled so the first wait on each slot returns at once.
func (rs *RenderSystem) createFrameSlots() error {
	for i := range rs.frame.slots {
		slot := &rs.frame.slots[i]
		f, err := rs.device.CreateFence(true)
		if err != nil {
			return fmt.Errorf("create frame fence: %w", err)
		}
		rs.release.Push(ReleaseFence, gpu.Handle(f))
		slot.inFlight = f

		for _, sem := range []*gpu.Semaphore{&slot.imageAvailable, &slot.renderFinished} {
			s, err := rs.device.CreateSemaphore()
			if err != nil {
				return fmt.Errorf("create frame semaphore: %w", err)
			}
			rs.release.Push(ReleaseSemaphore, gpu.Handle(s))
			*sem = s
		}
	}
	return nil
}

// CurrentFrameIndex returns the frame slot the next frame records into. It
// advances by one modulo FramesInFlight on every presented frame.
func (rs *RenderSystem) CurrentFrameIndex() int {
	return rs.frame.index
}

// FrameState returns the state of the current frame.
func (rs *RenderSystem) FrameState() FrameState {
	return rs.frame.state
}

// FramesPresented returns the number of frames handed to the presentation
// engine.
func (rs *RenderSystem) FramesPresented() uint64 {
	return rs.frame.presented
}

// BeginRendering waits for the current frame slot to retire, acquires a
// backbuffer and starts recording.
//
// ErrFrameSkipped is returned when the window is minimized or the swapchain
// was out of date and had to be rebuilt. The frame is then in FrameSkipped:
// recording calls do nothing and Present returns to FrameIdle without
// advancing the frame index.
func (rs *RenderSystem) BeginRendering() error {
	if err := rs.ready(); err != nil {
		return err
	}
	f := &rs.frame
	if f.state != FrameIdle {
		return rs.misuse("BeginRendering", fmt.Errorf("%w: %s", ErrInvalidFrameState, f.state))
	}

	s := &rs.surface
	if s.desired.IsZero() {
		f.state = FrameSkipped
		return ErrFrameSkipped
	}
	if s.stale || s.swapchain == 0 {
		if err := rs.RecreateSwapchain(); err != nil {
			f.state = FrameSkipped
			return fmt.Errorf("%w: %w", ErrFrameSkipped, err)
		}
	}

	slot := &f.slots[f.index]
	if err := rs.waitSlot(slot); err != nil {
		return fmt.Errorf("wait for frame %d: %w", f.index, err)
	}

	idx, err := rs.device.AcquireNextImage(s.swapchain, slot.imageAvailable, rs.cfg.FenceTimeout)
	switch {
	case errors.Is(err, gpu.ErrOutOfDate):
		rs.log.Debug("swapchain out of date on acquire, frame skipped", "frame", f.index)
		if rerr := rs.RecreateSwapchain(); rerr != nil {
			rs.log.Warn("rebuild after out of date acquire", "err", rerr)
		}
		f.state = FrameSkipped
		return ErrFrameSkipped
	case errors.Is(err, gpu.ErrSuboptimal):
		f.recreate = true
	case err != nil:
		return fmt.Errorf("acquire next image: %w", err)
	}

	cmd := s.commands[f.index]
	if err := rs.device.ResetCommandBuffer(cmd); err != nil {
		return rs.dropFrame(slot, false, fmt.Errorf("reset command buffer: %w", err))
	}
	if err := rs.device.BeginCommandBuffer(cmd); err != nil {
		return rs.dropFrame(slot, false, fmt.Errorf("begin command buffer: %w", err))
	}
	// The fence is reset last. Any failure before leaves it signaled, so the
	// next wait on this slot returns.
	if err := rs.device.ResetFence(slot.inFlight); err != nil {
		return rs.dropFrame(slot, true, fmt.Errorf("reset frame fence: %w", err))
	}

	bb := &s.images[idx]
	rs.device.CmdTransitionImage(cmd, bb.image, gpu.LayoutUndefined, gpu.LayoutGeneral)
	bb.layout = gpu.LayoutGeneral

	f.imageIndex = idx
	f.cmd = cmd
	f.state = FrameRecording
	rs.rec.reset()
	return nil
}

// EndRendering closes any open render pass, moves the backbuffer to the
// present layout and submits the frame. Bindings made during the frame are
// cleared.
func (rs *RenderSystem) EndRendering() error {
	f := &rs.frame
	if f.state == FrameSkipped {
		return nil
	}
	if f.state != FrameRecording {
		return rs.misuse("EndRendering", fmt.Errorf("%w: %s", ErrInvalidFrameState, f.state))
	}

	rs.endPass()
	bb := &rs.surface.images[f.imageIndex]
	rs.device.CmdTransitionImage(f.cmd, bb.image, bb.layout, gpu.LayoutPresentSrc)
	bb.layout = gpu.LayoutPresentSrc
	rs.rec.reset()

	slot := &f.slots[f.index]
	if err := rs.device.EndCommandBuffer(f.cmd); err != nil {
		return rs.dropFrame(slot, true, fmt.Errorf("end command buffer: %w", err))
	}
	err := rs.device.Submit(rs.device.GraphicsQueue(), gpu.SubmitDescriptor{
		CommandBuffer: f.cmd,
		Wait:          slot.imageAvailable,
		Signal:        slot.renderFinished,
		Fence:         slot.inFlight,
	})
	if err != nil {
		return rs.dropFrame(slot, true, fmt.Errorf("submit frame %d: %w", f.index, err))
	}
	slot.lost = false
	f.state = FrameSubmitted
	return nil
}

// waitSlot blocks until the last submission of slot has finished and
// destroys what was retired while it was recorded.
func (rs *RenderSystem) waitSlot(slot *frameSlot) error {
	if slot.lost {
		if err := rs.device.WaitIdle(); err != nil {
			return err
		}
	} else if err := rs.device.WaitForFence(slot.inFlight, rs.cfg.FenceTimeout); err != nil {
		return err
	}
	slot.retired.Release(rs.releaseTarget())
	return nil
}

// releaseRetired destroys everything retired by any slot. The device must
// be idle.
func (rs *RenderSystem) releaseRetired() {
	for i := range rs.frame.slots {
		rs.frame.slots[i].retired.Release(rs.releaseTarget())
	}
}

// dropFrame abandons the frame after an image was acquired. An empty
// submission consumes the image available semaphore and, when the fence was
// already reset, signals it again. The acquired image is never presented,
// so the swapchain is rebuilt before the next frame. The frame ends up
// skipped and the returned error wraps ErrFrameSkipped and cause.
func (rs *RenderSystem) dropFrame(slot *frameSlot, fenceReset bool, cause error) error {
	desc := gpu.SubmitDescriptor{Wait: slot.imageAvailable}
	if fenceReset {
		desc.Fence = slot.inFlight
	}
	if err := rs.device.Submit(rs.device.GraphicsQueue(), desc); err != nil {
		rs.log.Error("releasing dropped frame", "frame", rs.frame.index, "err", err)
		slot.lost = true
		rs.replaceImageAvailable(slot)
	} else if fenceReset {
		slot.lost = false
	}
	rs.log.Warn("frame dropped", "frame", rs.frame.index, "err", cause)

	rs.rec.reset()
	rs.surface.stale = true
	rs.frame.cmd = 0
	rs.frame.recreate = false
	rs.frame.state = FrameSkipped
	return fmt.Errorf("%w: %w", ErrFrameSkipped, cause)
}

// replaceImageAvailable gives slot a fresh image available semaphore. The
// old one is still signaled and is destroyed once the device is idle.
func (rs *RenderSystem) replaceImageAvailable(slot *frameSlot) {
	sem, err := rs.device.CreateSemaphore()
	if err != nil {
		rs.log.Error("replace frame semaphore", "err", err)
		return
	}
	old := slot.imageAvailable
	rs.release.Replace(gpu.Handle(old), gpu.Handle(sem))
	slot.retired.Push(ReleaseSemaphore, gpu.Handle(old))
	slot.imageAvailable = sem
}

// Present queues the submitted backbuffer for display and advances the
// frame index. An out of date or suboptimal swapchain is rebuilt here.
func (rs *RenderSystem) Present() error {
	f := &rs.frame
	switch f.state {
	case FrameSkipped:
		f.state = FrameIdle
		return nil
	case FrameSubmitted:
	default:
		return rs.misuse("Present", fmt.Errorf("%w: %s", ErrInvalidFrameState, f.state))
	}

	slot := &f.slots[f.index]
	err := rs.device.Present(rs.device.PresentQueue(), rs.surface.swapchain, f.imageIndex, slot.renderFinished)
	f.index = (f.index + 1) % FramesInFlight
	f.state = FrameIdle
	f.cmd = 0
	f.presented++

	recreate := f.recreate
	f.recreate = false
	switch {
	case errors.Is(err, gpu.ErrOutOfDate), errors.Is(err, gpu.ErrSuboptimal):
		recreate = true
	case err != nil:
		return fmt.Errorf("present: %w", err)
	}
	if recreate {
		if err := rs.RecreateSwapchain(); err != nil {
			rs.log.Warn("rebuild after present", "err", err)
		}
	}
	return nil
}
