package graph

import (
	vk "github.com/goki/vulkan"
)

const (
	// descriptor slots tracked by the command recorder
	MaxDescriptorSets     = 8
	MaxDescriptorBindings = 16
)

// Swapchain is the surface the graph presents to. The graph never acquires or
// presents images itself; it only takes the view for the acquired index.
type Swapchain interface {
	SwapchainFormat() vk.Format
	SwapchainExtent() vk.Extent2D
	SwapchainImageView(imageIndex int) vk.ImageView
}

// SwapchainBinding ties a swapchain to the image index acquired for the frame.
type SwapchainBinding struct {
	Swapchain  Swapchain
	ImageIndex int
}

// FramebufferCreateInfo keys the framebuffer cache.
type FramebufferCreateInfo struct {
	RenderPass  vk.RenderPass
	Attachments []vk.ImageView
	Width       uint32
	Height      uint32
	Layers      uint32
}

// TransientImageCreateInfo keys the transient-image cache.
type TransientImageCreateInfo struct {
	Name Name
	ICI  vk.ImageCreateInfo
	IVCI vk.ImageViewCreateInfo
}

// TransientImage is an image the frame owns; the graph borrows the view.
type TransientImage struct {
	Image     vk.Image
	ImageView vk.ImageView
}

// Buffer is a slice of device memory, mapped when host-visible.
type Buffer struct {
	Handle vk.Buffer
	Offset vk.DeviceSize
	Size   vk.DeviceSize
	Mapped []byte
}

// DescriptorSetLayoutInfo is the per-set layout a pipeline was built with.
type DescriptorSetLayoutInfo struct {
	Layout       vk.DescriptorSetLayout
	BindingCount uint32
}

// PipelineCreateInfo keys the pipeline cache. The recorder completes
// RenderPass, Subpass and the vertex input state before acquiring.
type PipelineCreateInfo struct {
	Name                  string
	Stages                []vk.PipelineShaderStageCreateInfo
	AttributeDescriptions []vk.VertexInputAttributeDescription
	BindingDescriptions   []vk.VertexInputBindingDescription
	RenderPass            vk.RenderPass
	Subpass               uint32
	CullMode              vk.CullModeFlagBits
	DepthTest             bool
	DepthWrite            bool
	BlendEnable           bool
}

// Pipeline is the cached pipeline plus the layout data the recorder needs to
// bind descriptor sets and push constants.
type Pipeline struct {
	Handle         vk.Pipeline
	Layout         vk.PipelineLayout
	SetLayoutInfos [MaxDescriptorSets]DescriptorSetLayoutInfo
}

// DescriptorImageBinding is a combined image sampler slot.
type DescriptorImageBinding struct {
	ImageView vk.ImageView
	Layout    vk.ImageLayout
	Sampler   vk.Sampler
}

// DescriptorBinding is one slot of a descriptor set.
type DescriptorBinding struct {
	Type   vk.DescriptorType
	Buffer vk.DescriptorBufferInfo
	Image  DescriptorImageBinding
}

// SetBinding keys the descriptor-set cache: the bindings in use plus the
// layout they must be allocated against.
type SetBinding struct {
	Bindings   [MaxDescriptorBindings]DescriptorBinding
	Used       uint32
	LayoutInfo DescriptorSetLayoutInfo
}

// Use marks a binding slot as populated.
func (sb *SetBinding) Use(binding uint32) {
	sb.Used |= 1 << binding
}

func (sb *SetBinding) IsUsed(binding uint32) bool {
	return sb.Used&(1<<binding) != 0
}

// PerThreadContext is the frame-scoped cache surface the graph consumes. All
// calls are serialized per graph; implementations may be thread-safe or
// thread-local. Equal acquire inputs yield equal handles.
type PerThreadContext interface {
	AcquireRenderPass(rpci *RenderPassCreateInfo) (vk.RenderPass, error)
	AcquireFramebuffer(fbci *FramebufferCreateInfo) (vk.Framebuffer, error)
	AcquireTransientImage(tici *TransientImageCreateInfo) (*TransientImage, error)
	AcquirePipeline(pci *PipelineCreateInfo) (*Pipeline, error)
	AcquireDescriptorSet(sb *SetBinding) (vk.DescriptorSet, error)
	AcquireSampler(sci vk.SamplerCreateInfo) (vk.Sampler, error)
	AcquireCommandBuffers(count int) ([]CommandSink, error)
	AllocateScratchUniform(size uint64) (*Buffer, error)
	NamedPipeline(name string) (*PipelineCreateInfo, error)
}

// CommandSink records into one command buffer. The production sink forwards
// to the device; tests substitute a recording fake.
type CommandSink interface {
	Handle() vk.CommandBuffer
	Begin(flags vk.CommandBufferUsageFlags) error
	End() error

	BeginRenderPass(rbi *vk.RenderPassBeginInfo, contents vk.SubpassContents)
	NextSubpass(contents vk.SubpassContents)
	EndRenderPass()

	BindPipeline(bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline)
	SetViewport(firstViewport uint32, viewports []vk.Viewport)
	SetScissor(firstScissor uint32, scissors []vk.Rect2D)
	BindVertexBuffers(firstBinding uint32, buffers []vk.Buffer, offsets []vk.DeviceSize)
	BindIndexBuffer(buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType)
	BindDescriptorSets(bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet)
	PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}
