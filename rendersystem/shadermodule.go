package rendersystem

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/Totterynine/ColdSrc/gpu"
)

// ShaderModule is compiled SPIR-V code for one stage. Once handed to a
// Shader it belongs to that shader and is destroyed with it.
type ShaderModule struct {
	rs     *RenderSystem
	handle gpu.ShaderModule
	name   string
	owner  *Shader

	destroyed bool
}

// LoadShaderModule reads a SPIR-V file and creates a module from it. The
// decoded code of recently loaded files is cached by path.
func (rs *RenderSystem) LoadShaderModule(path string) (*ShaderModule, error) {
	if err := rs.ready(); err != nil {
		return nil, err
	}
	code, ok := rs.cachedShaderCode(path)
	if !ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read shader %s: %w", path, err)
		}
		code, err = decodeSPIRV(data)
		if err != nil {
			return nil, fmt.Errorf("shader %s: %w", path, err)
		}
		if rs.shaderCode != nil {
			rs.shaderCode.Add(path, code)
		}
	}
	return rs.createShaderModule(path, code)
}

// CreateShaderModule creates a module from SPIR-V bytes already in memory.
func (rs *RenderSystem) CreateShaderModule(name string, data []byte) (*ShaderModule, error) {
	if err := rs.ready(); err != nil {
		return nil, err
	}
	code, err := decodeSPIRV(data)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", name, err)
	}
	return rs.createShaderModule(name, code)
}

func (rs *RenderSystem) cachedShaderCode(path string) ([]uint32, bool) {
	if rs.shaderCode == nil {
		return nil, false
	}
	return rs.shaderCode.Get(path)
}

func (rs *RenderSystem) createShaderModule(name string, code []uint32) (*ShaderModule, error) {
	h, err := rs.device.CreateShaderModule(code)
	if err != nil {
		return nil, fmt.Errorf("create shader module %s: %w", name, err)
	}
	m := &ShaderModule{rs: rs, handle: h, name: name}
	rs.tracked.add(m)
	return m, nil
}

// decodeSPIRV turns little endian SPIR-V bytes into words.
func decodeSPIRV(data []byte) ([]uint32, error) {
	if len(data) == 0 {
		return nil, ErrEmptyShader
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShaderAlignment, len(data))
	}
	code := make([]uint32, len(data)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return code, nil
}

// Handle returns the underlying module, or zero once released.
func (m *ShaderModule) Handle() gpu.ShaderModule { return m.handle }

// Name returns the name the module was loaded under.
func (m *ShaderModule) Name() string { return m.name }

// Owner returns the shader the module was handed to, if any.
func (m *ShaderModule) Owner() *Shader { return m.owner }

// Destroy releases a module that was never handed to a shader. Modules
// owned by a shader are released by the shader.
func (m *ShaderModule) Destroy() {
	if m.destroyed {
		return
	}
	if m.owner != nil {
		m.rs.log.Error("shader module destroyed while owned", "module", m.name)
		return
	}
	m.release()
}

func (m *ShaderModule) release() {
	if m.destroyed {
		return
	}
	m.destroyed = true
	m.rs.tracked.remove(m)
	m.rs.device.DestroyShaderModule(m.handle)
	m.handle = 0
}
