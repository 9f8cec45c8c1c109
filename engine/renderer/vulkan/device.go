package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/grafo/engine/core"
)

// VulkanDevice pairs the selected physical device with the logical device the
// caches allocate from.
type VulkanDevice struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device

	Properties vk.PhysicalDeviceProperties

	GraphicsQueueIndex int32
	GraphicsQueue      vk.Queue

	DepthFormat vk.Format
}

// NewVulkanDevice selects the first physical device with a graphics queue and
// creates a logical device on it.
func NewVulkanDevice(context *VulkanContext) (*VulkanDevice, error) {
	var deviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &deviceCount, nil); res != vk.Success || deviceCount == 0 {
		err := fmt.Errorf("no vulkan capable physical device found")
		core.LogError(err.Error())
		return nil, err
	}
	physicalDevices := make([]vk.PhysicalDevice, deviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &deviceCount, physicalDevices); res != vk.Success {
		err := fmt.Errorf("failed to enumerate physical devices")
		core.LogError(err.Error())
		return nil, err
	}

	device := &VulkanDevice{GraphicsQueueIndex: -1}
	for _, pd := range physicalDevices {
		index := graphicsQueueFamilyIndex(pd)
		if index < 0 {
			continue
		}
		device.PhysicalDevice = pd
		device.GraphicsQueueIndex = index
		break
	}
	if device.GraphicsQueueIndex < 0 {
		err := fmt.Errorf("no physical device exposes a graphics queue")
		core.LogError(err.Error())
		return nil, err
	}

	vk.GetPhysicalDeviceProperties(device.PhysicalDevice, &device.Properties)
	device.Properties.Deref()

	queuePriority := []float32{1.0}
	queueCreateInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: uint32(device.GraphicsQueueIndex),
		QueueCount:       1,
		PQueuePriorities: queuePriority,
	}
	queueCreateInfo.Deref()

	extensions := VulkanSafeStrings([]string{"VK_KHR_swapchain"})
	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    1,
		PQueueCreateInfos:       []vk.DeviceQueueCreateInfo{queueCreateInfo},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}
	deviceCreateInfo.Deref()

	var logicalDevice vk.Device
	if err := lockPool.SafeCall(DeviceManagement, func() error {
		if res := vk.CreateDevice(device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logicalDevice); res != vk.Success {
			err := fmt.Errorf("failed to create logical device: %s", VulkanResultString(res))
			core.LogError(err.Error())
			return err
		}
		return nil
	}); err != nil {
		return nil, err
	}
	device.LogicalDevice = logicalDevice

	var queue vk.Queue
	vk.GetDeviceQueue(device.LogicalDevice, uint32(device.GraphicsQueueIndex), 0, &queue)
	device.GraphicsQueue = queue
	lockPool.SetQueueFamily(uint32(device.GraphicsQueueIndex))

	if !DeviceDetectDepthFormat(device) {
		device.DepthFormat = vk.FormatUndefined
		core.LogWarn("Failed to find a supported depth format!")
	}

	core.LogInfo("Logical device created on %s.", deviceName(&device.Properties))
	return device, nil
}

func graphicsQueueFamilyIndex(pd vk.PhysicalDevice) int32 {
	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &familyCount, families)
	for i := uint32(0); i < familyCount; i++ {
		families[i].Deref()
		if families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			return int32(i)
		}
	}
	return -1
}

// DeviceDetectDepthFormat picks the first depth format with optimal-tiling
// depth/stencil attachment support.
func DeviceDetectDepthFormat(device *VulkanDevice) bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.OptimalTilingFeatures&flags == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	return false
}

func (vd *VulkanDevice) Destroy(context *VulkanContext) {
	if vd.LogicalDevice != nil {
		vk.DestroyDevice(vd.LogicalDevice, context.Allocator)
		vd.LogicalDevice = nil
	}
	vd.PhysicalDevice = nil
	vd.GraphicsQueue = nil
}

func deviceName(properties *vk.PhysicalDeviceProperties) string {
	name := properties.DeviceName[:]
	for i, b := range name {
		if b == 0 {
			return string(name[:i])
		}
	}
	return string(name)
}
