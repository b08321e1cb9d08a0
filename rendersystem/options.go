package rendersystem

import (
	"log/slog"
	"math"
	"time"

	"github.com/Totterynine/ColdSrc/gpu"
)

// Config holds the settings of a RenderSystem. It is filled by New from
// its defaults and the supplied options.
type Config struct {
	// Backend creates every hardware object. Required.
	Backend gpu.Backend

	// Logger receives the system's log records. Defaults to Logger().
	Logger *slog.Logger

	AppName    string
	EngineName string
	AppVersion gpu.Version

	// Validation asks the backend to enable its validation layers.
	Validation bool

	// MinAPIVersion is the lowest API version a device may support.
	MinAPIVersion gpu.Version

	// RequireDedicatedTransfer only accepts devices with a queue family
	// that can transfer but not draw.
	RequireDedicatedTransfer bool

	// FenceTimeout bounds the per-frame fence wait and image acquisition.
	// The default never times out.
	FenceTimeout time.Duration

	// DescriptorPoolSize is the number of sets each descriptor pool holds.
	// A new pool is created when the current one is full.
	DescriptorPoolSize int

	// ShaderCacheSize is the number of shader files whose code is kept in
	// memory. Zero disables the cache.
	ShaderCacheSize int

	// ShaderEntryPoint is the entry point of every shader stage.
	ShaderEntryPoint string

	// MemoryBlockSize is the size of the device memory blocks images and
	// buffers are sub-allocated from.
	MemoryBlockSize uint64
}

// Option configures a RenderSystem.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		AppName:                  "ColdSrc",
		EngineName:               "ColdSrc",
		MinAPIVersion:            gpu.Version{Major: 1, Minor: 2},
		RequireDedicatedTransfer: true,
		FenceTimeout:             time.Duration(math.MaxInt64),
		DescriptorPoolSize:       64,
		ShaderCacheSize:          32,
		ShaderEntryPoint:         "main",
		MemoryBlockSize:          64 << 20,
	}
}

// WithBackend sets the hardware backend.
func WithBackend(b gpu.Backend) Option {
	return func(c *Config) {
		c.Backend = b
	}
}

// WithLogger sets the logger of this render system only.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithAppName sets the application name reported to the driver.
func WithAppName(name string) Option {
	return func(c *Config) {
		c.AppName = name
	}
}

// WithValidation enables or disables validation layers.
func WithValidation(enabled bool) Option {
	return func(c *Config) {
		c.Validation = enabled
	}
}

// WithMinAPIVersion sets the lowest acceptable API version.
func WithMinAPIVersion(major, minor int) Option {
	return func(c *Config) {
		c.MinAPIVersion = gpu.Version{Major: major, Minor: minor}
	}
}

// WithRequireDedicatedTransfer toggles the dedicated transfer queue
// requirement.
func WithRequireDedicatedTransfer(required bool) Option {
	return func(c *Config) {
		c.RequireDedicatedTransfer = required
	}
}

// WithFenceTimeout bounds the per-frame waits.
func WithFenceTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.FenceTimeout = d
	}
}

// WithDescriptorPoolSize sets how many sets each descriptor pool holds.
func WithDescriptorPoolSize(sets int) Option {
	return func(c *Config) {
		c.DescriptorPoolSize = sets
	}
}

// WithShaderCacheSize sets how many shader files are cached.
func WithShaderCacheSize(files int) Option {
	return func(c *Config) {
		c.ShaderCacheSize = files
	}
}

// WithShaderEntryPoint sets the entry point used for every stage.
func WithShaderEntryPoint(name string) Option {
	return func(c *Config) {
		c.ShaderEntryPoint = name
	}
}

// WithMemoryBlockSize sets the device memory block size.
func WithMemoryBlockSize(size uint64) Option {
	return func(c *Config) {
		c.MemoryBlockSize = size
	}
}
