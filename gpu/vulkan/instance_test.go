package vulkan

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestSafeString(t *testing.T) {
	assert.Equal(t, "main\x00", safeString("main"))
	assert.Equal(t, "main\x00", safeString("main\x00"))
	assert.Equal(t, "\x00", safeString(""))

	in := []string{"a", "b\x00"}
	assert.Equal(t, []string{"a\x00", "b\x00"}, safeStrings(in))
	assert.Equal(t, "a", in[0])
}

func TestSurfaceExtensions(t *testing.T) {
	supported := []string{
		"VK_KHR_surface",
		"VK_KHR_xcb_surface",
		"VK_EXT_debug_report",
		"VK_KHR_get_physical_device_properties2",
		"VK_KHR_wayland_surface",
	}
	assert.Equal(t, []string{"VK_KHR_surface", "VK_KHR_xcb_surface", "VK_KHR_wayland_surface"},
		surfaceExtensions(supported))
	assert.Empty(t, surfaceExtensions([]string{"VK_EXT_debug_report"}))
}

func TestDebugLevel(t *testing.T) {
	assert.Equal(t, slog.LevelError, debugLevel(vk.DebugReportFlags(vk.DebugReportErrorBit|vk.DebugReportWarningBit)))
	assert.Equal(t, slog.LevelWarn, debugLevel(vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit)))
	assert.Equal(t, slog.LevelInfo, debugLevel(vk.DebugReportFlags(vk.DebugReportInformationBit)))
	assert.Equal(t, slog.LevelDebug, debugLevel(vk.DebugReportFlags(vk.DebugReportDebugBit)))
}
