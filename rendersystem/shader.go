package rendersystem

import (
	"fmt"

	"github.com/Totterynine/ColdSrc/gpu"
)

// ShaderKind is the pipeline a Shader builds. It is fixed by the first stage
// module set.
type ShaderKind int

const (
	ShaderNone ShaderKind = iota
	ShaderGraphics
	ShaderCompute
)

func (k ShaderKind) String() string {
	switch k {
	case ShaderNone:
		return "none"
	case ShaderGraphics:
		return "graphics"
	case ShaderCompute:
		return "compute"
	}
	return fmt.Sprintf("ShaderKind(%d)", int(k))
}

// graphicsState is the stage modules and fixed function state of a
// graphics pipeline.
type graphicsState struct {
	vertex   *ShaderModule
	fragment *ShaderModule

	topology    gpu.Topology
	polygonMode gpu.PolygonMode
	cullMode    gpu.CullMode
	winding     gpu.Winding
	colorFormat gpu.Format
}

// Shader is a graphics or compute pipeline under construction. Stage
// modules and state are set first; BuildPipeline then creates the pipeline
// and the shader can no longer change.
type Shader struct {
	rs   *RenderSystem
	kind ShaderKind

	graphics graphicsState
	compute  *ShaderModule

	layout         *DescriptorLayout
	pipelineLayout gpu.PipelineLayout
	pipeline       gpu.Pipeline

	built     bool
	destroyed bool
}

// CreateShader returns an empty shader. Graphics state defaults to filled,
// back-face culled, counter-clockwise triangles. Unless SetColorFormat is
// called the shader draws to the swapchain format current at BuildPipeline.
func (rs *RenderSystem) CreateShader() (*Shader, error) {
	if err := rs.ready(); err != nil {
		return nil, err
	}
	sh := &Shader{
		rs: rs,
		graphics: graphicsState{
			topology:    gpu.TopologyTriangles,
			polygonMode: gpu.PolygonFill,
			cullMode:    gpu.CullBack,
			winding:     gpu.CounterClockwise,
		},
	}
	rs.tracked.add(sh)
	return sh, nil
}

// Kind returns the pipeline kind, ShaderNone until a stage module is set.
func (sh *Shader) Kind() ShaderKind { return sh.kind }

// Built reports whether BuildPipeline has succeeded.
func (sh *Shader) Built() bool { return sh.built }

// Layout returns the descriptor layout the pipeline was built with.
func (sh *Shader) Layout() *DescriptorLayout { return sh.layout }

// Pipeline returns the pipeline, or zero before BuildPipeline.
func (sh *Shader) Pipeline() gpu.Pipeline { return sh.pipeline }

// PipelineLayout returns the pipeline layout, or zero before BuildPipeline.
func (sh *Shader) PipelineLayout() gpu.PipelineLayout { return sh.pipelineLayout }

func (sh *Shader) bindPoint() gpu.PipelineBindPoint {
	if sh.kind == ShaderCompute {
		return gpu.BindPointCompute
	}
	return gpu.BindPointGraphics
}

func (sh *Shader) mutable(op string) error {
	switch {
	case sh.destroyed:
		return sh.rs.misuse(op, ErrResourceDestroyed)
	case sh.built:
		return sh.rs.misuse(op, ErrPipelineBuilt)
	}
	return nil
}

// setStage takes ownership of m for the stage at slot. A module already in
// the slot is released.
func (sh *Shader) setStage(op string, kind ShaderKind, slot **ShaderModule, m *ShaderModule) error {
	if err := sh.mutable(op); err != nil {
		return err
	}
	switch {
	case m == nil:
		return sh.rs.misuse(op, ErrNilResource)
	case m.destroyed:
		return sh.rs.misuse(op, ErrResourceDestroyed)
	case m.owner != nil && m.owner != sh:
		return sh.rs.misuse(op, fmt.Errorf("module %s already owned by another shader", m.name))
	case sh.kind != ShaderNone && sh.kind != kind:
		return sh.rs.misuse(op, fmt.Errorf("%w: %s stage on a %s shader", ErrMixedStages, kind, sh.kind))
	}
	if old := *slot; old != nil && old != m {
		old.owner = nil
		old.release()
	}
	m.owner = sh
	sh.rs.tracked.remove(m)
	*slot = m
	sh.kind = kind
	return nil
}

// SetVertexModule takes ownership of m as the vertex stage.
func (sh *Shader) SetVertexModule(m *ShaderModule) error {
	return sh.setStage("SetVertexModule", ShaderGraphics, &sh.graphics.vertex, m)
}

// SetFragmentModule takes ownership of m as the fragment stage.
func (sh *Shader) SetFragmentModule(m *ShaderModule) error {
	return sh.setStage("SetFragmentModule", ShaderGraphics, &sh.graphics.fragment, m)
}

// SetComputeModule takes ownership of m as the compute stage.
func (sh *Shader) SetComputeModule(m *ShaderModule) error {
	return sh.setStage("SetComputeModule", ShaderCompute, &sh.compute, m)
}

// SetTopology sets the primitive topology draws with this shader must use.
func (sh *Shader) SetTopology(t gpu.Topology) error {
	if err := sh.mutable("SetTopology"); err != nil {
		return err
	}
	sh.graphics.topology = t
	return nil
}

// SetPolygonMode sets how triangles are rasterized.
func (sh *Shader) SetPolygonMode(m gpu.PolygonMode) error {
	if err := sh.mutable("SetPolygonMode"); err != nil {
		return err
	}
	sh.graphics.polygonMode = m
	return nil
}

// SetCullMode sets which faces are discarded.
func (sh *Shader) SetCullMode(c gpu.CullMode) error {
	if err := sh.mutable("SetCullMode"); err != nil {
		return err
	}
	sh.graphics.cullMode = c
	return nil
}

// SetWinding sets the winding of front faces.
func (sh *Shader) SetWinding(w gpu.Winding) error {
	if err := sh.mutable("SetWinding"); err != nil {
		return err
	}
	sh.graphics.winding = w
	return nil
}

// SetColorFormat sets the format of the targets the shader draws to.
// FormatUndefined selects the swapchain format.
func (sh *Shader) SetColorFormat(f gpu.Format) error {
	if err := sh.mutable("SetColorFormat"); err != nil {
		return err
	}
	sh.graphics.colorFormat = f
	return nil
}

// BuildPipeline creates the pipeline layout from layout and the pipeline
// from the stages set so far. A graphics shader needs both a vertex and a
// fragment module, a compute shader its compute module.
func (sh *Shader) BuildPipeline(layout *DescriptorLayout) error {
	const op = "BuildPipeline"
	if err := sh.mutable(op); err != nil {
		return err
	}
	switch {
	case layout == nil:
		return sh.rs.misuse(op, ErrNilResource)
	case layout.destroyed:
		return sh.rs.misuse(op, ErrResourceDestroyed)
	}
	switch sh.kind {
	case ShaderNone:
		return sh.rs.misuse(op, ErrNoStages)
	case ShaderGraphics:
		if sh.graphics.vertex == nil {
			return sh.rs.misuse(op, fmt.Errorf("%w: vertex", ErrMissingStage))
		}
		if sh.graphics.fragment == nil {
			return sh.rs.misuse(op, fmt.Errorf("%w: fragment", ErrMissingStage))
		}
	}
	colorFormat := sh.graphics.colorFormat
	if sh.kind == ShaderGraphics && colorFormat == gpu.FormatUndefined {
		colorFormat = sh.rs.surface.format
		if colorFormat == gpu.FormatUndefined {
			return fmt.Errorf("build pipeline: no color format set and no swapchain: %w", gpu.ErrUnsupportedFormat)
		}
	}

	dev := sh.rs.device
	pl, err := dev.CreatePipelineLayout(layout.handle)
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}

	var p gpu.Pipeline
	switch sh.kind {
	case ShaderGraphics:
		g := &sh.graphics
		p, err = dev.CreateGraphicsPipeline(gpu.GraphicsPipelineDescriptor{
			Layout:      pl,
			Vertex:      g.vertex.handle,
			Fragment:    g.fragment.handle,
			EntryPoint:  sh.rs.cfg.ShaderEntryPoint,
			Topology:    g.topology,
			PolygonMode: g.polygonMode,
			CullMode:    g.cullMode,
			Winding:     g.winding,
			ColorFormat: colorFormat,
		})
	case ShaderCompute:
		p, err = dev.CreateComputePipeline(gpu.ComputePipelineDescriptor{
			Layout:     pl,
			Compute:    sh.compute.handle,
			EntryPoint: sh.rs.cfg.ShaderEntryPoint,
		})
	}
	if err != nil {
		dev.DestroyPipelineLayout(pl)
		return fmt.Errorf("create %s pipeline: %w", sh.kind, err)
	}

	sh.graphics.colorFormat = colorFormat
	sh.layout = layout
	sh.pipelineLayout = pl
	sh.pipeline = p
	sh.built = true
	return nil
}

// Destroy releases the pipeline, its layout and the stage modules the
// shader owns. A pipeline destroyed during a frame is freed once the frame
// has finished on the GPU.
func (sh *Shader) Destroy() {
	if sh.destroyed {
		return
	}
	sh.destroyed = true
	rs := sh.rs
	rs.tracked.remove(sh)
	for bp, bound := range rs.rec.shaders {
		if bound == sh {
			rs.rec.shaders[bp] = nil
		}
	}
	if sh.built {
		rs.retire(
			Release{Kind: ReleasePipeline, Handle: gpu.Handle(sh.pipeline)},
			Release{Kind: ReleasePipelineLayout, Handle: gpu.Handle(sh.pipelineLayout)},
		)
		sh.pipeline = 0
		sh.pipelineLayout = 0
	}
	for _, m := range []*ShaderModule{sh.graphics.vertex, sh.graphics.fragment, sh.compute} {
		if m != nil {
			m.owner = nil
			m.release()
		}
	}
	sh.graphics.vertex, sh.graphics.fragment, sh.compute = nil, nil, nil
}
