package vulkan

import (
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/spaghettifunk/grafo/engine/containers"
	"github.com/spaghettifunk/grafo/engine/core"
	"github.com/spaghettifunk/grafo/engine/renderer/graph"
)

type pipelineEntry struct {
	pci      *graph.PipelineCreateInfo
	pipeline *graph.Pipeline
}

type transientEntry struct {
	image    *VulkanImage
	borrowed *graph.TransientImage
}

type registeredPipeline struct {
	pci        *graph.PipelineCreateInfo
	setLayouts []vk.DescriptorSetLayout
}

// PerThreadContext is the frame-scoped cache surface the render graph records
// against. One per thread; equal acquire inputs return the same handle.
type PerThreadContext struct {
	context *VulkanContext
	config  *RendererConfig

	// frame identity, for diagnostics
	FrameID uuid.UUID

	renderPasses    map[string]vk.RenderPass
	framebuffers    map[string]vk.Framebuffer
	transientImages map[string]*transientEntry
	pipelines       map[string]*pipelineEntry
	descriptorSets  map[string]vk.DescriptorSet
	samplers        map[string]vk.Sampler

	namedPipelines map[string]*registeredPipeline

	descriptorPool vk.DescriptorPool
	commandPool    vk.CommandPool

	freeCommandBuffers *containers.RingQueue[*VulkanCommandBuffer]
	inFlight           []*VulkanCommandBuffer
	scratch            []*VulkanBuffer

	shaderWatcher *ShaderWatcher
}

func NewPerThreadContext(context *VulkanContext, config *RendererConfig) (*PerThreadContext, error) {
	if config == nil {
		config = DefaultRendererConfig()
	}

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	poolCreateInfo.Deref()

	var commandPool vk.CommandPool
	if err := lockPool.SafeCall(CommandBufferManagement, func() error {
		if res := vk.CreateCommandPool(context.Device.LogicalDevice, &poolCreateInfo, context.Allocator, &commandPool); res != vk.Success {
			err := fmt.Errorf("failed to create command pool: %s", VulkanResultString(res))
			core.LogError(err.Error())
			return err
		}
		return nil
	}); err != nil {
		return nil, err
	}

	descriptorPool, err := DescriptorPoolCreate(context, config.DescriptorPoolSize)
	if err != nil {
		return nil, err
	}

	ptc := &PerThreadContext{
		context:            context,
		config:             config,
		FrameID:            uuid.New(),
		renderPasses:       make(map[string]vk.RenderPass),
		framebuffers:       make(map[string]vk.Framebuffer),
		transientImages:    make(map[string]*transientEntry),
		pipelines:          make(map[string]*pipelineEntry),
		descriptorSets:     make(map[string]vk.DescriptorSet),
		samplers:           make(map[string]vk.Sampler),
		namedPipelines:     make(map[string]*registeredPipeline),
		descriptorPool:     descriptorPool,
		commandPool:        commandPool,
		freeCommandBuffers: containers.NewRingQueue[*VulkanCommandBuffer](config.CommandBufferCount),
	}

	if config.WatchShaders {
		watcher, err := NewShaderWatcher(config.ShaderDir, ptc.evictPipelinesFor)
		if err != nil {
			return nil, err
		}
		ptc.shaderWatcher = watcher
	}

	core.LogDebug("per-thread context ready, frame %s", ptc.FrameID.String())
	return ptc, nil
}

// RegisterPipeline makes a pipeline reachable by name from pass callbacks.
func (ptc *PerThreadContext) RegisterPipeline(name string, pci *graph.PipelineCreateInfo, setLayouts []vk.DescriptorSetLayout) {
	pci.Name = name
	ptc.namedPipelines[name] = &registeredPipeline{pci: pci, setLayouts: setLayouts}
}

func (ptc *PerThreadContext) NamedPipeline(name string) (*graph.PipelineCreateInfo, error) {
	registered, ok := ptc.namedPipelines[name]
	if !ok {
		return nil, fmt.Errorf("no pipeline registered under %q", name)
	}
	return registered.pci, nil
}

func (ptc *PerThreadContext) AcquireRenderPass(rpci *graph.RenderPassCreateInfo) (vk.RenderPass, error) {
	key := renderPassKey(rpci)
	if handle, ok := ptc.renderPasses[key]; ok {
		return handle, nil
	}
	handle, err := RenderPassCreate(ptc.context, rpci)
	if err != nil {
		return nil, err
	}
	ptc.renderPasses[key] = handle
	return handle, nil
}

func (ptc *PerThreadContext) AcquireFramebuffer(fbci *graph.FramebufferCreateInfo) (vk.Framebuffer, error) {
	key := framebufferKey(fbci)
	if handle, ok := ptc.framebuffers[key]; ok {
		return handle, nil
	}
	handle, err := FramebufferCreate(ptc.context, fbci)
	if err != nil {
		return nil, err
	}
	ptc.framebuffers[key] = handle
	return handle, nil
}

func (ptc *PerThreadContext) AcquireTransientImage(tici *graph.TransientImageCreateInfo) (*graph.TransientImage, error) {
	key := transientImageKey(tici)
	if entry, ok := ptc.transientImages[key]; ok {
		return entry.borrowed, nil
	}
	image, err := ImageCreate(ptc.context, tici.ICI, tici.IVCI, true)
	if err != nil {
		return nil, err
	}
	entry := &transientEntry{
		image:    image,
		borrowed: &graph.TransientImage{Image: image.Handle, ImageView: image.View},
	}
	ptc.transientImages[key] = entry
	return entry.borrowed, nil
}

func (ptc *PerThreadContext) AcquirePipeline(pci *graph.PipelineCreateInfo) (*graph.Pipeline, error) {
	key := pipelineKey(pci)
	if entry, ok := ptc.pipelines[key]; ok {
		return entry.pipeline, nil
	}
	var setLayouts []vk.DescriptorSetLayout
	if registered, ok := ptc.namedPipelines[pci.Name]; ok {
		setLayouts = registered.setLayouts
	}
	pipeline, err := NewGraphicsPipeline(ptc.context, pci, setLayouts)
	if err != nil {
		return nil, err
	}
	ptc.pipelines[key] = &pipelineEntry{pci: pci, pipeline: pipeline}
	return pipeline, nil
}

func (ptc *PerThreadContext) AcquireDescriptorSet(sb *graph.SetBinding) (vk.DescriptorSet, error) {
	key := setBindingKey(sb)
	if set, ok := ptc.descriptorSets[key]; ok {
		return set, nil
	}
	set, err := DescriptorSetAllocate(ptc.context, ptc.descriptorPool, sb.LayoutInfo.Layout)
	if err != nil {
		return nil, err
	}
	DescriptorSetWrite(ptc.context, set, sb)
	ptc.descriptorSets[key] = set
	return set, nil
}

func (ptc *PerThreadContext) AcquireSampler(sci vk.SamplerCreateInfo) (vk.Sampler, error) {
	key := samplerKey(sci)
	if sampler, ok := ptc.samplers[key]; ok {
		return sampler, nil
	}
	sampler, err := SamplerCreate(ptc.context, sci)
	if err != nil {
		return nil, err
	}
	ptc.samplers[key] = sampler
	return sampler, nil
}

func (ptc *PerThreadContext) AcquireCommandBuffers(count int) ([]graph.CommandSink, error) {
	sinks := make([]graph.CommandSink, 0, count)
	for i := 0; i < count; i++ {
		cb, err := ptc.freeCommandBuffers.Dequeue()
		if err != nil {
			cb, err = NewVulkanCommandBuffer(ptc.context, ptc.commandPool, true)
			if err != nil {
				return nil, err
			}
		}
		ptc.inFlight = append(ptc.inFlight, cb)
		sinks = append(sinks, NewVulkanCommandSink(cb))
	}
	return sinks, nil
}

func (ptc *PerThreadContext) AllocateScratchUniform(size uint64) (*graph.Buffer, error) {
	buffer, err := BufferCreate(
		ptc.context,
		vk.DeviceSize(size),
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit),
	)
	if err != nil {
		return nil, err
	}
	ptc.scratch = append(ptc.scratch, buffer)
	return &graph.Buffer{
		Handle: buffer.Handle,
		Offset: 0,
		Size:   buffer.Size,
		Mapped: buffer.Mapped,
	}, nil
}

// NextFrame recycles per-frame state once the previous submission completed:
// command buffers go back to the ring, scratch memory and descriptor sets are
// released, a fresh frame id is assigned.
func (ptc *PerThreadContext) NextFrame() {
	for _, cb := range ptc.inFlight {
		cb.Reset()
		if err := ptc.freeCommandBuffers.Enqueue(cb); err != nil {
			cb.Free(ptc.context, ptc.commandPool)
		}
	}
	ptc.inFlight = ptc.inFlight[:0]

	for _, buffer := range ptc.scratch {
		buffer.BufferDestroy(ptc.context)
	}
	ptc.scratch = ptc.scratch[:0]

	// scratch handles embedded in the keys are gone now
	ptc.descriptorSets = make(map[string]vk.DescriptorSet)
	vk.ResetDescriptorPool(ptc.context.Device.LogicalDevice, ptc.descriptorPool, 0)

	ptc.FrameID = uuid.New()
}

func (ptc *PerThreadContext) evictPipelinesFor(name string) {
	for key, entry := range ptc.pipelines {
		if entry.pci.Name != name {
			continue
		}
		PipelineDestroy(ptc.context, entry.pipeline)
		delete(ptc.pipelines, key)
	}
}

func (ptc *PerThreadContext) Destroy() {
	if ptc.shaderWatcher != nil {
		ptc.shaderWatcher.Close()
	}
	ptc.NextFrame()
	for _, entry := range ptc.pipelines {
		PipelineDestroy(ptc.context, entry.pipeline)
	}
	for _, entry := range ptc.transientImages {
		entry.image.ImageDestroy(ptc.context)
	}
	for _, sampler := range ptc.samplers {
		SamplerDestroy(ptc.context, sampler)
	}
	for _, framebuffer := range ptc.framebuffers {
		FramebufferDestroy(ptc.context, framebuffer)
	}
	for _, renderPass := range ptc.renderPasses {
		RenderPassDestroy(ptc.context, renderPass)
	}
	if ptc.descriptorPool != nil {
		vk.DestroyDescriptorPool(ptc.context.Device.LogicalDevice, ptc.descriptorPool, ptc.context.Allocator)
		ptc.descriptorPool = nil
	}
	if ptc.commandPool != nil {
		vk.DestroyCommandPool(ptc.context.Device.LogicalDevice, ptc.commandPool, ptc.context.Allocator)
		ptc.commandPool = nil
	}
}

// cache keys are built from values only; struct printing would leak pointer
// identity of internal references

func renderPassKey(rpci *graph.RenderPassCreateInfo) string {
	var b strings.Builder
	for _, a := range rpci.Attachments {
		fmt.Fprintf(&b, "a%d.%d.%d.%d.%d.%d.%d.%d;",
			a.Format, a.Samples, a.LoadOp, a.StoreOp,
			a.StencilLoadOp, a.StencilStoreOp, a.InitialLayout, a.FinalLayout)
	}
	for _, sd := range rpci.SubpassDescriptions {
		b.WriteString("s")
		for _, ref := range sd.ColorAttachments {
			fmt.Fprintf(&b, "c%d.%d", ref.Attachment, ref.Layout)
		}
		if sd.DepthStencilAttachment != nil {
			fmt.Fprintf(&b, "d%d.%d", sd.DepthStencilAttachment.Attachment, sd.DepthStencilAttachment.Layout)
		}
		b.WriteString(";")
	}
	for _, dep := range rpci.SubpassDependencies {
		fmt.Fprintf(&b, "p%d.%d.%d.%d.%d.%d;",
			dep.SrcSubpass, dep.DstSubpass, dep.SrcStageMask, dep.DstStageMask,
			dep.SrcAccessMask, dep.DstAccessMask)
	}
	return b.String()
}

func framebufferKey(fbci *graph.FramebufferCreateInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "r%v.%d.%d.%d;", fbci.RenderPass, fbci.Width, fbci.Height, fbci.Layers)
	for _, view := range fbci.Attachments {
		fmt.Fprintf(&b, "v%v;", view)
	}
	return b.String()
}

func transientImageKey(tici *graph.TransientImageCreateInfo) string {
	return fmt.Sprintf("%s.%d.%dx%d.%d.%d",
		tici.Name, tici.ICI.Format, tici.ICI.Extent.Width, tici.ICI.Extent.Height,
		tici.ICI.Usage, tici.IVCI.SubresourceRange.AspectMask)
}

func pipelineKey(pci *graph.PipelineCreateInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s.r%v.s%d.c%d.%t.%t.%t;",
		pci.Name, pci.RenderPass, pci.Subpass, pci.CullMode,
		pci.DepthTest, pci.DepthWrite, pci.BlendEnable)
	for _, a := range pci.AttributeDescriptions {
		fmt.Fprintf(&b, "a%d.%d.%d.%d;", a.Location, a.Binding, a.Format, a.Offset)
	}
	for _, bd := range pci.BindingDescriptions {
		fmt.Fprintf(&b, "b%d.%d.%d;", bd.Binding, bd.Stride, bd.InputRate)
	}
	return b.String()
}

func samplerKey(sci vk.SamplerCreateInfo) string {
	return fmt.Sprintf("%d.%d.%d.%d.%d.%d.%v.%v",
		sci.MagFilter, sci.MinFilter, sci.MipmapMode,
		sci.AddressModeU, sci.AddressModeV, sci.AddressModeW,
		sci.AnisotropyEnable, sci.MaxAnisotropy)
}

func setBindingKey(sb *graph.SetBinding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "l%v.%d;", sb.LayoutInfo.Layout, sb.Used)
	for binding := uint32(0); binding < graph.MaxDescriptorBindings; binding++ {
		if !sb.IsUsed(binding) {
			continue
		}
		bd := sb.Bindings[binding]
		switch bd.Type {
		case vk.DescriptorTypeUniformBuffer:
			fmt.Fprintf(&b, "u%d.%v.%d.%d;", binding, bd.Buffer.Buffer, bd.Buffer.Offset, bd.Buffer.Range)
		case vk.DescriptorTypeCombinedImageSampler:
			fmt.Fprintf(&b, "i%d.%v.%d.%v;", binding, bd.Image.ImageView, bd.Image.Layout, bd.Image.Sampler)
		default:
			fmt.Fprintf(&b, "x%d.%d;", binding, bd.Type)
		}
	}
	return b.String()
}
