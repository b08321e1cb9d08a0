package rendersystem

import (
	"errors"
	"fmt"
)

var (
	ErrNoBackend       = errors.New("rendersystem: no backend configured")
	ErrNotCreated      = errors.New("rendersystem: Create has not succeeded")
	ErrAlreadyCreated  = errors.New("rendersystem: already created")
	ErrNotAttached     = errors.New("rendersystem: no window attached")
	ErrAlreadyAttached = errors.New("rendersystem: window already attached")
	ErrDestroyed       = errors.New("rendersystem: destroyed")

	// ErrFrameSkipped is returned by BeginRendering when no image could be
	// acquired this frame. Recording calls until the next Present do
	// nothing and Present does not advance the frame index.
	ErrFrameSkipped = errors.New("rendersystem: frame skipped")

	// ErrEmptyShader and ErrShaderAlignment reject shader files that cannot
	// hold SPIR-V words.
	ErrEmptyShader     = errors.New("rendersystem: shader code is empty")
	ErrShaderAlignment = errors.New("rendersystem: shader code length is not a multiple of 4")
)

// ErrProgramming is wrapped by every error caused by using the API in the
// wrong order or with the wrong arguments. Each also wraps one of the more
// specific errors below.
var ErrProgramming = errors.New("rendersystem: programming error")

var (
	ErrInvalidFrameState       = errors.New("call not valid in the current frame state")
	ErrNoRenderTarget          = errors.New("no render target bound")
	ErrDescriptorSetNotUpdated = errors.New("descriptor set used before Update")
	ErrLayoutMismatch          = errors.New("descriptor set layout differs from the pipeline layout")
	ErrUnknownBinding          = errors.New("binding not declared in the layout")
	ErrBindingType             = errors.New("resource does not match the binding type")
	ErrDuplicateBinding        = errors.New("binding declared twice")
	ErrEmptyLayout             = errors.New("descriptor layout has no bindings")
	ErrNoStages                = errors.New("no shader stage set")
	ErrMissingStage            = errors.New("required shader stage missing")
	ErrMixedStages             = errors.New("graphics and compute stages mixed")
	ErrPipelineBuilt           = errors.New("pipeline already built")
	ErrPipelineNotBuilt        = errors.New("pipeline not built")
	ErrNoShaderBound           = errors.New("no shader bound for the bind point")
	ErrBindPointMismatch       = errors.New("shader kind does not match the bind point")
	ErrTopologyMismatch        = errors.New("draw topology differs from the pipeline topology")
	ErrAttachmentFormat        = errors.New("render target format differs from the pipeline color format")
	ErrNoIndexBuffer           = errors.New("no index buffer set")
	ErrBufferUsage             = errors.New("buffer usage does not allow this use")
	ErrResourceDestroyed       = errors.New("resource already destroyed")
	ErrNilResource             = errors.New("nil resource")
	ErrInvalidExtent           = errors.New("extent must be non-zero")
)

// misuse logs err and returns it wrapped in ErrProgramming.
func (rs *RenderSystem) misuse(op string, err error) error {
	err = fmt.Errorf("%w: %s: %w", ErrProgramming, op, err)
	rs.log.Error("render system misuse", "op", op, "err", err)
	return err
}
