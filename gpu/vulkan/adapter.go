package vulkan

import (
	"fmt"
	"sort"

	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slices"

	"github.com/Totterynine/ColdSrc/gpu"
)

type queueFamily struct {
	index   int
	flags   vk.QueueFlags
	present bool
}

func (q queueFamily) is(bit vk.QueueFlagBits) bool {
	return q.flags&vk.QueueFlags(bit) == vk.QueueFlags(bit)
}

// candidate is a physical device considered by OpenDevice.
type candidate struct {
	device    vk.PhysicalDevice
	info      gpu.AdapterInfo
	families  []queueFamily
	swapchain bool
}

// resolveFamilies fills in the queue family indices of c.info. Graphics and
// present share a family when one can do both. The transfer family is a
// dedicated one (transfer without graphics) when available, otherwise the
// graphics family; dedicated makes the former mandatory.
func (c *candidate) resolveFamilies(dedicated bool) bool {
	graphics, present, transfer := -1, -1, -1
	for _, f := range c.families {
		if f.is(vk.QueueGraphicsBit) && f.present {
			graphics, present = f.index, f.index
			break
		}
	}
	for _, f := range c.families {
		if graphics < 0 && f.is(vk.QueueGraphicsBit) {
			graphics = f.index
		}
		if present < 0 && f.present {
			present = f.index
		}
		if transfer < 0 && f.is(vk.QueueTransferBit) && !f.is(vk.QueueGraphicsBit) {
			transfer = f.index
		}
	}
	if transfer < 0 && !dedicated {
		transfer = graphics
	}
	if graphics < 0 || present < 0 || transfer < 0 {
		return false
	}
	c.info.GraphicsFamily = graphics
	c.info.PresentFamily = present
	c.info.TransferFamily = transfer
	return true
}

// selectAdapter returns the index of the device to open: the first discrete
// device meeting req, else the first device meeting it.
func selectAdapter(cands []candidate, req gpu.DeviceRequirements) (int, error) {
	var suitable []int
	var reasons []string
	for i := range cands {
		c := &cands[i]
		switch {
		case !c.info.APIVersion.AtLeast(req.MinAPIVersion):
			reasons = append(reasons, fmt.Sprintf("%s: API %s < %s", c.info.Name, c.info.APIVersion, req.MinAPIVersion))
		case !c.swapchain:
			reasons = append(reasons, fmt.Sprintf("%s: no swapchain support", c.info.Name))
		case !c.resolveFamilies(req.DedicatedTransferQueue):
			reasons = append(reasons, fmt.Sprintf("%s: missing queue families", c.info.Name))
		default:
			suitable = append(suitable, i)
		}
	}
	if len(suitable) == 0 {
		return -1, fmt.Errorf("%w: %v", gpu.ErrNoSuitableDevice, reasons)
	}
	sort.SliceStable(suitable, func(i, j int) bool {
		return cands[suitable[i]].info.Discrete && !cands[suitable[j]].info.Discrete
	})
	return suitable[0], nil
}

func queueFamilies(pd vk.PhysicalDevice, s vk.Surface) []queueFamily {
	var n uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &n, nil)
	props := make([]vk.QueueFamilyProperties, n)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &n, props)

	out := make([]queueFamily, n)
	for i, p := range props {
		p.Deref()
		var present vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(pd, uint32(i), s, &present)
		out[i] = queueFamily{index: i, flags: p.QueueFlags, present: present == vk.True}
	}
	return out
}

func deviceExtensions(pd vk.PhysicalDevice) ([]string, error) {
	var n uint32
	if err := result("enumerating device extensions", vk.EnumerateDeviceExtensionProperties(pd, "", &n, nil)); err != nil {
		return nil, err
	}
	props := make([]vk.ExtensionProperties, n)
	if err := result("enumerating device extensions", vk.EnumerateDeviceExtensionProperties(pd, "", &n, props)); err != nil {
		return nil, err
	}
	names := make([]string, 0, n)
	for _, p := range props {
		p.Deref()
		names = append(names, vk.ToString(p.ExtensionName[:]))
	}
	return names, nil
}

func candidates(inst vk.Instance, s vk.Surface) ([]candidate, error) {
	var n uint32
	if err := result("enumerating physical devices", vk.EnumeratePhysicalDevices(inst, &n, nil)); err != nil {
		return nil, err
	}
	devices := make([]vk.PhysicalDevice, n)
	if err := result("enumerating physical devices", vk.EnumeratePhysicalDevices(inst, &n, devices)); err != nil {
		return nil, err
	}

	out := make([]candidate, 0, n)
	for _, pd := range devices {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &props)
		props.Deref()
		exts, err := deviceExtensions(pd)
		if err != nil {
			return nil, err
		}
		out = append(out, candidate{
			device: pd,
			info: gpu.AdapterInfo{
				Name:       vk.ToString(props.DeviceName[:]),
				APIVersion: versionOf(props.ApiVersion),
				Discrete:   props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu,
			},
			families:  queueFamilies(pd, s),
			swapchain: slices.Contains(exts, swapchainExtension),
		})
	}
	return out, nil
}

func (b *Backend) OpenDevice(hi gpu.Instance, hs gpu.Surface, req gpu.DeviceRequirements) (gpu.Device, error) {
	inst, err := b.instance(hi)
	if err != nil {
		return nil, err
	}
	s, ok := b.surfaces[gpu.Handle(hs)]
	if !ok {
		return nil, fmt.Errorf("vulkan: unknown surface %d", hs)
	}

	cands, err := candidates(inst.vk, s.vk)
	if err != nil {
		return nil, err
	}
	i, err := selectAdapter(cands, req)
	if err != nil {
		return nil, err
	}
	c := cands[i]

	families := []int{c.info.GraphicsFamily}
	for _, f := range []int{c.info.PresentFamily, c.info.TransferFamily} {
		if !slices.Contains(families, f) {
			families = append(families, f)
		}
	}
	queueInfos := make([]vk.DeviceQueueCreateInfo, len(families))
	for j, f := range families {
		queueInfos[j] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: uint32(f),
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(c.device, &features)
	exts := safeStrings([]string{swapchainExtension})
	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
	}
	var ld vk.Device
	if err := result("creating device", vk.CreateDevice(c.device, &createInfo, nil, &ld)); err != nil {
		return nil, err
	}

	d, err := newDevice(b, c, ld)
	if err != nil {
		vk.DestroyDevice(ld, nil)
		return nil, err
	}
	b.log.Info("device opened", "adapter", c.info.Name, "api", c.info.APIVersion,
		"discrete", c.info.Discrete, "graphics", c.info.GraphicsFamily,
		"present", c.info.PresentFamily, "transfer", c.info.TransferFamily)
	return d, nil
}
