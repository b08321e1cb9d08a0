package vulkan

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/Totterynine/ColdSrc/gpu"
)

// createPipelineCache makes the cache every pipeline of the device is built
// through. It only lives as long as the device.
func (d *Device) createPipelineCache() error {
	var info = vk.PipelineCacheCreateInfo{}
	info.SType = vk.StructureTypePipelineCacheCreateInfo
	return result("creating pipeline cache", vk.CreatePipelineCache(d.vk, &info, nil, &d.pipelineCache))
}

func (d *Device) CreatePipelineLayout(h gpu.DescriptorLayout) (gpu.PipelineLayout, error) {
	setLayout, ok := d.setLayouts[gpu.Handle(h)]
	if !ok {
		return 0, fmt.Errorf("vulkan: unknown descriptor layout %d", h)
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout},
	}
	var layout vk.PipelineLayout
	if err := result("creating pipeline layout", vk.CreatePipelineLayout(d.vk, &info, nil, &layout)); err != nil {
		return 0, err
	}
	return gpu.PipelineLayout(d.pipelineLayouts.put(&d.next, layout)), nil
}

func (d *Device) DestroyPipelineLayout(h gpu.PipelineLayout) {
	if l, ok := d.pipelineLayouts.take(gpu.Handle(h)); ok {
		vk.DestroyPipelineLayout(d.vk, l, nil)
	}
}

func (d *Device) shaderStage(h gpu.ShaderModule, stage vk.ShaderStageFlagBits, entryPoint string) (vk.PipelineShaderStageCreateInfo, error) {
	m, ok := d.shaderModules[gpu.Handle(h)]
	if !ok {
		return vk.PipelineShaderStageCreateInfo{}, fmt.Errorf("vulkan: unknown shader module %d", h)
	}
	if entryPoint == "" {
		entryPoint = "main"
	}
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: m,
		PName:  safeString(entryPoint),
	}, nil
}

// graphicsPipelineInfo describes a pipeline drawing into a single color
// attachment of desc.ColorFormat without vertex input or depth. Viewport and
// scissor are dynamic.
func (d *Device) graphicsPipelineInfo(desc gpu.GraphicsPipelineDescriptor) (vk.GraphicsPipelineCreateInfo, error) {
	layout, ok := d.pipelineLayouts[gpu.Handle(desc.Layout)]
	if !ok {
		return vk.GraphicsPipelineCreateInfo{}, fmt.Errorf("vulkan: unknown pipeline layout %d", desc.Layout)
	}
	vertex, err := d.shaderStage(desc.Vertex, vk.ShaderStageVertexBit, desc.EntryPoint)
	if err != nil {
		return vk.GraphicsPipelineCreateInfo{}, err
	}
	fragment, err := d.shaderStage(desc.Fragment, vk.ShaderStageFragmentBit, desc.EntryPoint)
	if err != nil {
		return vk.GraphicsPipelineCreateInfo{}, err
	}
	format, err := vkFormat(desc.ColorFormat)
	if err != nil {
		return vk.GraphicsPipelineCreateInfo{}, err
	}
	pass, err := d.passes.renderPass(format)
	if err != nil {
		return vk.GraphicsPipelineCreateInfo{}, err
	}

	var vertexInputState = vk.PipelineVertexInputStateCreateInfo{}
	vertexInputState.SType = vk.StructureTypePipelineVertexInputStateCreateInfo

	var inputAssemblyState = vk.PipelineInputAssemblyStateCreateInfo{}
	inputAssemblyState.SType = vk.StructureTypePipelineInputAssemblyStateCreateInfo
	inputAssemblyState.Topology = vkTopology(desc.Topology)
	inputAssemblyState.PrimitiveRestartEnable = vk.False

	var viewportState = vk.PipelineViewportStateCreateInfo{}
	viewportState.SType = vk.StructureTypePipelineViewportStateCreateInfo
	viewportState.ViewportCount = 1
	viewportState.ScissorCount = 1

	var rasterState = vk.PipelineRasterizationStateCreateInfo{}
	rasterState.SType = vk.StructureTypePipelineRasterizationStateCreateInfo
	rasterState.DepthClampEnable = vk.False
	rasterState.RasterizerDiscardEnable = vk.False
	rasterState.PolygonMode = vkPolygonMode(desc.PolygonMode)
	rasterState.LineWidth = 1.0
	rasterState.CullMode = vkCullMode(desc.CullMode)
	rasterState.FrontFace = vkFrontFace(desc.Winding)
	rasterState.DepthBiasEnable = vk.False

	var multisampleState = vk.PipelineMultisampleStateCreateInfo{}
	multisampleState.SType = vk.StructureTypePipelineMultisampleStateCreateInfo
	multisampleState.SampleShadingEnable = vk.False
	multisampleState.RasterizationSamples = vk.SampleCount1Bit

	blendAttachments := []vk.PipelineColorBlendAttachmentState{{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
		BlendEnable:    vk.False,
	}}
	var colorBlendState = vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		PDynamicStates:    dynamicStates,
		DynamicStateCount: uint32(len(dynamicStates)),
	}

	stages := []vk.PipelineShaderStageCreateInfo{vertex, fragment}
	return vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputState,
		PInputAssemblyState: &inputAssemblyState,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterState,
		PMultisampleState:   &multisampleState,
		PColorBlendState:    &colorBlendState,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          pass,
		Subpass:             0,
	}, nil
}

func (d *Device) CreateGraphicsPipeline(desc gpu.GraphicsPipelineDescriptor) (gpu.Pipeline, error) {
	info, err := d.graphicsPipelineInfo(desc)
	if err != nil {
		return 0, err
	}
	pipelines := make([]vk.Pipeline, 1)
	r := vk.CreateGraphicsPipelines(d.vk, d.pipelineCache, 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines)
	if err := result("creating graphics pipeline", r); err != nil {
		return 0, err
	}
	p := pipeline{vk: pipelines[0], bindPoint: gpu.BindPointGraphics}
	return gpu.Pipeline(d.pipelines.put(&d.next, p)), nil
}

func (d *Device) CreateComputePipeline(desc gpu.ComputePipelineDescriptor) (gpu.Pipeline, error) {
	layout, ok := d.pipelineLayouts[gpu.Handle(desc.Layout)]
	if !ok {
		return 0, fmt.Errorf("vulkan: unknown pipeline layout %d", desc.Layout)
	}
	stage, err := d.shaderStage(desc.Compute, vk.ShaderStageComputeBit, desc.EntryPoint)
	if err != nil {
		return 0, err
	}
	var info = vk.ComputePipelineCreateInfo{}
	info.SType = vk.StructureTypeComputePipelineCreateInfo
	info.Stage = stage
	info.Layout = layout

	pipelines := make([]vk.Pipeline, 1)
	r := vk.CreateComputePipelines(d.vk, d.pipelineCache, 1, []vk.ComputePipelineCreateInfo{info}, nil, pipelines)
	if err := result("creating compute pipeline", r); err != nil {
		return 0, err
	}
	p := pipeline{vk: pipelines[0], bindPoint: gpu.BindPointCompute}
	return gpu.Pipeline(d.pipelines.put(&d.next, p)), nil
}

func (d *Device) DestroyPipeline(h gpu.Pipeline) {
	if p, ok := d.pipelines.take(gpu.Handle(h)); ok {
		vk.DestroyPipeline(d.vk, p.vk, nil)
	}
}
