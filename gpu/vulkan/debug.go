package vulkan

import (
	"context"
	"log/slog"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// debugLevel maps the flags of a validation report to a log level.
func debugLevel(flags vk.DebugReportFlags) slog.Level {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		return slog.LevelError
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		return slog.LevelWarn
	case flags&vk.DebugReportFlags(vk.DebugReportInformationBit) != 0:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func (b *Backend) installDebugCallback(inst *instance) error {
	log := b.log.With("source", "validation")
	callback := func(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
		object uint64, location uint, messageCode int32, pLayerPrefix string,
		pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
		log.Log(context.Background(), debugLevel(flags), pMessage,
			"layer", pLayerPrefix, "code", messageCode, "object", object)
		return vk.Bool32(vk.False)
	}
	err := result("creating debug report callback", vk.CreateDebugReportCallback(inst.vk, &vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: callback,
	}, nil, &inst.debug))
	if err != nil {
		return err
	}
	inst.hasDebug = true
	return nil
}
