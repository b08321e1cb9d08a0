package vulkan

import (
	"fmt"
	"strings"

	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slices"

	"github.com/Totterynine/ColdSrc/gpu"
)

const (
	validationLayer      = "VK_LAYER_KHRONOS_validation"
	debugReportExtension = "VK_EXT_debug_report"
	swapchainExtension   = "VK_KHR_swapchain"
)

func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = safeString(list[i])
	}
	return out
}

// supportedLayers lists the instance layers the loader offers.
func supportedLayers() ([]string, error) {
	var n uint32
	if err := result("enumerating layers", vk.EnumerateInstanceLayerProperties(&n, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.LayerProperties, n)
	if err := result("enumerating layers", vk.EnumerateInstanceLayerProperties(&n, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, n)
	for _, p := range props {
		p.Deref()
		names = append(names, vk.ToString(p.LayerName[:]))
	}
	return names, nil
}

// supportedExtensions lists the instance extensions the loader offers.
func supportedExtensions() ([]string, error) {
	var n uint32
	if err := result("enumerating extensions", vk.EnumerateInstanceExtensionProperties("", &n, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, n)
	if err := result("enumerating extensions", vk.EnumerateInstanceExtensionProperties("", &n, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, n)
	for _, p := range props {
		p.Deref()
		names = append(names, vk.ToString(p.ExtensionName[:]))
	}
	return names, nil
}

// surfaceExtensions picks every window system surface extension out of
// supported, so any window the platform can make is presentable.
func surfaceExtensions(supported []string) []string {
	var out []string
	for _, e := range supported {
		if strings.HasSuffix(e, "_surface") {
			out = append(out, e)
		}
	}
	return out
}

func (b *Backend) CreateInstance(desc gpu.InstanceDescriptor) (gpu.Instance, error) {
	exts, err := supportedExtensions()
	if err != nil {
		return 0, err
	}
	enabled := surfaceExtensions(exts)
	if len(enabled) == 0 {
		return 0, fmt.Errorf("vulkan: loader offers no surface extensions")
	}

	var layers []string
	debug := false
	if desc.Validation {
		supported, err := supportedLayers()
		if err != nil {
			return 0, err
		}
		if slices.Contains(supported, validationLayer) {
			layers = append(layers, validationLayer)
		} else {
			b.log.Warn("validation layer not available", "layer", validationLayer)
		}
		if slices.Contains(exts, debugReportExtension) {
			enabled = append(enabled, debugReportExtension)
			debug = true
		}
	}

	api := desc.APIVersion
	if api.Major < 1 {
		api = gpu.Version{Major: 1}
	}
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         makeVersion(api),
		ApplicationVersion: makeVersion(desc.AppVersion),
		PApplicationName:   safeString(desc.AppName),
		PEngineName:        safeString(desc.EngineName),
	}
	names := safeStrings(enabled)
	layerNames := safeStrings(layers)
	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(names)),
		PpEnabledExtensionNames: names,
		EnabledLayerCount:       uint32(len(layerNames)),
		PpEnabledLayerNames:     layerNames,
	}

	inst := &instance{}
	if err := result("creating instance", vk.CreateInstance(&createInfo, nil, &inst.vk)); err != nil {
		return 0, err
	}
	if err := vk.InitInstance(inst.vk); err != nil {
		vk.DestroyInstance(inst.vk, nil)
		return 0, fmt.Errorf("vulkan: loading instance entry points: %w", err)
	}
	if debug {
		if err := b.installDebugCallback(inst); err != nil {
			b.log.Warn("debug report callback unavailable", "error", err)
		}
	}
	b.log.Debug("instance created", "api", api, "extensions", enabled, "layers", layers)
	return gpu.Instance(b.instances.put(&b.next, inst)), nil
}

func (b *Backend) DestroyInstance(h gpu.Instance) {
	inst, ok := b.instances.take(gpu.Handle(h))
	if !ok {
		return
	}
	for sh, s := range b.surfaces {
		if s.instance == h {
			b.log.Error("surface outlived its instance", "surface", sh)
		}
	}
	if inst.hasDebug {
		vk.DestroyDebugReportCallback(inst.vk, inst.debug, nil)
	}
	vk.DestroyInstance(inst.vk, nil)
}
