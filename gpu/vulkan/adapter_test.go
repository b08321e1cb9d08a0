package vulkan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"

	"github.com/Totterynine/ColdSrc/gpu"
)

const (
	graphicsBits = vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit | vk.QueueTransferBit)
	transferBits = vk.QueueFlags(vk.QueueTransferBit)
)

func device(name string, discrete bool, families ...queueFamily) candidate {
	return candidate{
		info: gpu.AdapterInfo{
			Name:       name,
			APIVersion: gpu.Version{Major: 1, Minor: 3},
			Discrete:   discrete,
		},
		families:  families,
		swapchain: true,
	}
}

func TestResolveFamiliesPrefersCombinedPresent(t *testing.T) {
	c := device("gpu", true,
		queueFamily{index: 0, flags: graphicsBits},
		queueFamily{index: 1, flags: transferBits},
		queueFamily{index: 2, flags: graphicsBits, present: true},
	)
	require.True(t, c.resolveFamilies(false))
	assert.Equal(t, 2, c.info.GraphicsFamily)
	assert.Equal(t, 2, c.info.PresentFamily)
	assert.Equal(t, 1, c.info.TransferFamily)
}

func TestResolveFamiliesSplitPresent(t *testing.T) {
	c := device("gpu", true,
		queueFamily{index: 0, flags: graphicsBits},
		queueFamily{index: 1, flags: transferBits, present: true},
	)
	require.True(t, c.resolveFamilies(false))
	assert.Equal(t, 0, c.info.GraphicsFamily)
	assert.Equal(t, 1, c.info.PresentFamily)
}

func TestResolveFamiliesTransferFallback(t *testing.T) {
	c := device("gpu", false, queueFamily{index: 0, flags: graphicsBits, present: true})

	assert.False(t, c.resolveFamilies(true))

	require.True(t, c.resolveFamilies(false))
	assert.Equal(t, 0, c.info.TransferFamily)
}

func TestResolveFamiliesNoPresent(t *testing.T) {
	c := device("gpu", false, queueFamily{index: 0, flags: graphicsBits})
	assert.False(t, c.resolveFamilies(false))
}

func TestSelectAdapterPrefersDiscrete(t *testing.T) {
	cands := []candidate{
		device("integrated", false, queueFamily{index: 0, flags: graphicsBits, present: true}),
		device("discrete", true, queueFamily{index: 0, flags: graphicsBits, present: true}),
	}
	i, err := selectAdapter(cands, gpu.DeviceRequirements{MinAPIVersion: gpu.Version{Major: 1, Minor: 3}})
	require.NoError(t, err)
	assert.Equal(t, 1, i)
}

func TestSelectAdapterFallsBackToIntegrated(t *testing.T) {
	old := device("discrete", true, queueFamily{index: 0, flags: graphicsBits, present: true})
	old.info.APIVersion = gpu.Version{Major: 1, Minor: 1}
	cands := []candidate{
		old,
		device("integrated", false, queueFamily{index: 0, flags: graphicsBits, present: true}),
	}
	i, err := selectAdapter(cands, gpu.DeviceRequirements{MinAPIVersion: gpu.Version{Major: 1, Minor: 3}})
	require.NoError(t, err)
	assert.Equal(t, 1, i)
}

func TestSelectAdapterNoneSuitable(t *testing.T) {
	noSwapchain := device("headless", true, queueFamily{index: 0, flags: graphicsBits, present: true})
	noSwapchain.swapchain = false
	cands := []candidate{
		noSwapchain,
		device("no present", false, queueFamily{index: 0, flags: graphicsBits}),
	}
	_, err := selectAdapter(cands, gpu.DeviceRequirements{})
	require.ErrorIs(t, err, gpu.ErrNoSuitableDevice)
	assert.Contains(t, err.Error(), "headless")
	assert.Contains(t, err.Error(), "no present")

	_, err = selectAdapter(nil, gpu.DeviceRequirements{})
	assert.ErrorIs(t, err, gpu.ErrNoSuitableDevice)
}
