/*
Package rendersystem is the render backend of the ColdSrc engine. It owns a
graphics device, a presentable surface, the per-frame synchronization and
the resources needed to record and submit GPU work every frame.

Overview

A RenderSystem is built on a gpu.Backend (gpu/vulkan in an application,
gpu/fake in tests) and driven from a single goroutine:

	backend, err := vulkan.New(&vulkan.Options{GetInstanceProcAddr: glfw.GetVulkanGetInstanceProcAddress()})
	rs, err := rendersystem.New(rendersystem.WithBackend(backend))
	rs.Create()
	rs.AttachWindow(window, 1280, 720)

	for !window.ShouldClose() {
		if err := rs.BeginRendering(); err != nil {
			// ErrFrameSkipped: the swapchain was rebuilt or the window is
			// minimized, the recording calls below are no-ops.
		}
		rs.SetRenderTarget(target)
		rs.ClearColor()
		rs.BindShader(shader, gpu.BindPointCompute)
		rs.BindDescriptorSet(set, gpu.BindPointCompute)
		rs.Dispatch(640, 360, 1)
		rs.CopyRenderTargetToBackBuffer()
		rs.EndRendering()
		rs.Present()
	}
	rs.Destroy()

Frames

Two frames may be in flight. Each frame slot has a fence, an image available
semaphore, a render finished semaphore and a command buffer. BeginRendering
waits on the slot fence before touching the slot, so the CPU never reuses a
command buffer the GPU is still executing.

Building resources

Descriptor layouts, descriptor sets and shader pipelines are built in two
phases. Bindings are declared and then Build locks them into an immutable
layout. Resources are written into a set and then Update flushes them in
one batch. Stage modules and fixed function state are set on a Shader and
then BuildPipeline creates the pipeline. Using an object before its build or
update step returns an error wrapping ErrProgramming.

Teardown

Objects the system needs for itself are pushed onto a ReleaseQueue as they
are acquired and destroyed in reverse order by Destroy. Render targets,
buffers, layouts, shaders and shader modules created by the caller are
tracked and destroyed before that if the caller has not done so already.

A RenderSystem is not safe for concurrent use.
*/
package rendersystem
