package gpu

import "errors"

var (
	// ErrOutOfDate is returned by acquire and present when the swapchain no
	// longer matches the surface and must be recreated.
	ErrOutOfDate = errors.New("gpu: swapchain out of date")

	// ErrSuboptimal is returned alongside a valid image index when the
	// swapchain still works but should be recreated.
	ErrSuboptimal = errors.New("gpu: swapchain suboptimal")

	ErrNoSuitableDevice    = errors.New("gpu: no suitable physical device")
	ErrUnsupportedVersion  = errors.New("gpu: required API version unavailable")
	ErrPoolExhausted       = errors.New("gpu: descriptor pool exhausted")
	ErrOutOfDeviceMemory   = errors.New("gpu: out of device memory")
	ErrTimeout             = errors.New("gpu: wait timed out")
	ErrNoSurfaceSource     = errors.New("gpu: nil surface source")
	ErrUnsupportedFormat   = errors.New("gpu: unsupported format")
	ErrInvalidShaderModule = errors.New("gpu: invalid shader code")
)
