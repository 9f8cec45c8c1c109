package graph

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/grafo/engine/core"
)

type renderPassScope struct {
	RenderPass vk.RenderPass
	Subpass    uint32
	Extent     vk.Extent2D
}

// Area is an explicit pixel rectangle.
type Area struct {
	Offset vk.Offset2D
	Extent vk.Extent2D
}

// FramebufferArea is a rectangle relative to the framebuffer, in [0,1].
type FramebufferArea struct {
	X, Y, Width, Height float32
}

// FullFramebuffer covers the whole render area.
var FullFramebuffer = FramebufferArea{X: 0, Y: 0, Width: 1, Height: 1}

// VertexField is one element of a packed vertex format. Ignored fields only
// advance the offset, for padding.
type VertexField struct {
	Format vk.Format
	Size   uint32
	Ignore bool
}

// Field declares an attribute of the given format and byte size.
func Field(format vk.Format, size uint32) VertexField {
	return VertexField{Format: format, Size: size}
}

// Ignore declares padding of the given byte size.
func Ignore(size uint32) VertexField {
	return VertexField{Size: size, Ignore: true}
}

// Packed is an interleaved vertex format described field by field.
type Packed []VertexField

// CommandBuffer is the stateful recorder handed to pass callbacks. All state
// lives for the duration of one pass; descriptor slots reset after each flush.
type CommandBuffer struct {
	rg   *RenderGraph
	ptc  PerThreadContext
	sink CommandSink

	ongoing *renderPassScope

	attributeDescriptions []vk.VertexInputAttributeDescription
	bindingDescriptions   []vk.VertexInputBindingDescription

	setsUsed        [MaxDescriptorSets]bool
	setBindings     [MaxDescriptorSets]SetBinding
	currentPipeline *Pipeline

	err error
}

func newCommandBuffer(rg *RenderGraph, ptc PerThreadContext, sink CommandSink) *CommandBuffer {
	return &CommandBuffer{rg: rg, ptc: ptc, sink: sink}
}

// Err reports the first recording failure, if any. Fluent calls after a
// failure are no-ops.
func (cb *CommandBuffer) Err() error {
	return cb.err
}

func (cb *CommandBuffer) fail(err error) *CommandBuffer {
	if cb.err == nil {
		cb.err = err
		core.LogError(err.Error())
	}
	return cb
}

// CurrentRenderPass returns the in-flight render pass, subpass index and
// render extent.
func (cb *CommandBuffer) CurrentRenderPass() (vk.RenderPass, uint32, vk.Extent2D) {
	if cb.ongoing == nil {
		return nil, 0, vk.Extent2D{}
	}
	return cb.ongoing.RenderPass, cb.ongoing.Subpass, cb.ongoing.Extent
}

func (cb *CommandBuffer) SetViewport(index uint32, vp vk.Viewport) *CommandBuffer {
	if cb.err != nil {
		return cb
	}
	cb.sink.SetViewport(index, []vk.Viewport{vp})
	return cb
}

func (cb *CommandBuffer) SetViewportArea(index uint32, area Area) *CommandBuffer {
	return cb.SetViewport(index, vk.Viewport{
		X:        float32(area.Offset.X),
		Y:        float32(area.Offset.Y),
		Width:    float32(area.Extent.Width),
		Height:   float32(area.Extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
}

// SetViewportFramebuffer sets a viewport relative to the current framebuffer,
// flipped so that Y grows upward.
func (cb *CommandBuffer) SetViewportFramebuffer(index uint32, area FramebufferArea) *CommandBuffer {
	if cb.err != nil {
		return cb
	}
	if cb.ongoing == nil {
		return cb.fail(&Error{Kind: ErrUnsupportedAccess, Msg: "framebuffer-relative viewport outside a render pass"})
	}
	fb := cb.ongoing.Extent
	height := -area.Height * float32(fb.Height)
	return cb.SetViewport(index, vk.Viewport{
		X:        area.X * float32(fb.Width),
		Y:        area.Y*float32(fb.Height) - height,
		Width:    area.Width * float32(fb.Width),
		Height:   height,
		MinDepth: 0,
		MaxDepth: 1,
	})
}

func (cb *CommandBuffer) SetScissor(index uint32, sc vk.Rect2D) *CommandBuffer {
	if cb.err != nil {
		return cb
	}
	cb.sink.SetScissor(index, []vk.Rect2D{sc})
	return cb
}

func (cb *CommandBuffer) SetScissorArea(index uint32, area Area) *CommandBuffer {
	return cb.SetScissor(index, vk.Rect2D{Offset: area.Offset, Extent: area.Extent})
}

func (cb *CommandBuffer) SetScissorFramebuffer(index uint32, area FramebufferArea) *CommandBuffer {
	if cb.err != nil {
		return cb
	}
	if cb.ongoing == nil {
		return cb.fail(&Error{Kind: ErrUnsupportedAccess, Msg: "framebuffer-relative scissor outside a render pass"})
	}
	fb := cb.ongoing.Extent
	return cb.SetScissor(index, vk.Rect2D{
		Offset: vk.Offset2D{
			X: int32(area.X * float32(fb.Width)),
			Y: int32(area.Y * float32(fb.Height)),
		},
		Extent: vk.Extent2D{
			Width:  uint32(area.Width * float32(fb.Width)),
			Height: uint32(area.Height * float32(fb.Height)),
		},
	})
}

// BindPipeline completes the pipeline info with the in-flight render pass,
// subpass and the accumulated vertex input state, then binds the cached
// pipeline.
func (cb *CommandBuffer) BindPipeline(pci *PipelineCreateInfo) *CommandBuffer {
	if cb.err != nil {
		return cb
	}
	if cb.ongoing == nil {
		return cb.fail(&Error{Kind: ErrUnsupportedAccess, Msg: "pipeline bind outside a render pass"})
	}

	completed := *pci
	completed.AttributeDescriptions = append([]vk.VertexInputAttributeDescription(nil), cb.attributeDescriptions...)
	completed.BindingDescriptions = append([]vk.VertexInputBindingDescription(nil), cb.bindingDescriptions...)
	completed.RenderPass = cb.ongoing.RenderPass
	completed.Subpass = cb.ongoing.Subpass

	pipeline, err := cb.ptc.AcquirePipeline(&completed)
	if err != nil {
		return cb.fail(&Error{Kind: ErrAllocationFailure, Msg: "pipeline " + pci.Name, Cause: err})
	}
	cb.currentPipeline = pipeline
	cb.sink.BindPipeline(vk.PipelineBindPointGraphics, pipeline.Handle)
	return cb
}

// BindNamedPipeline binds a pipeline registered ahead of time on the context.
func (cb *CommandBuffer) BindNamedPipeline(name string) *CommandBuffer {
	if cb.err != nil {
		return cb
	}
	pci, err := cb.ptc.NamedPipeline(name)
	if err != nil {
		return cb.fail(&Error{Kind: ErrAllocationFailure, Msg: "named pipeline " + name, Cause: err})
	}
	return cb.BindPipeline(pci)
}

// BindVertexBuffer derives attribute and binding descriptions from the packed
// format and binds the buffer. Re-binding a binding index replaces its
// descriptions.
func (cb *CommandBuffer) BindVertexBuffer(binding uint32, buf *Buffer, format Packed) *CommandBuffer {
	if cb.err != nil {
		return cb
	}

	attrs := cb.attributeDescriptions[:0]
	for _, a := range cb.attributeDescriptions {
		if a.Binding != binding {
			attrs = append(attrs, a)
		}
	}
	cb.attributeDescriptions = attrs
	binds := cb.bindingDescriptions[:0]
	for _, b := range cb.bindingDescriptions {
		if b.Binding != binding {
			binds = append(binds, b)
		}
	}
	cb.bindingDescriptions = binds

	location := uint32(0)
	offset := uint32(0)
	for _, f := range format {
		if f.Ignore {
			offset += f.Size
			continue
		}
		cb.attributeDescriptions = append(cb.attributeDescriptions, vk.VertexInputAttributeDescription{
			Binding:  binding,
			Format:   f.Format,
			Location: location,
			Offset:   offset,
		})
		offset += f.Size
		location++
	}

	cb.bindingDescriptions = append(cb.bindingDescriptions, vk.VertexInputBindingDescription{
		Binding:   binding,
		InputRate: vk.VertexInputRateVertex,
		Stride:    offset,
	})

	cb.sink.BindVertexBuffers(binding, []vk.Buffer{buf.Handle}, []vk.DeviceSize{buf.Offset})
	return cb
}

func (cb *CommandBuffer) BindIndexBuffer(buf *Buffer, indexType vk.IndexType) *CommandBuffer {
	if cb.err != nil {
		return cb
	}
	cb.sink.BindIndexBuffer(buf.Handle, buf.Offset, indexType)
	return cb
}

// BindSampledImage binds a combined image sampler slot; the set is flushed on
// the next draw.
func (cb *CommandBuffer) BindSampledImage(set, binding uint32, iv vk.ImageView, sci vk.SamplerCreateInfo) *CommandBuffer {
	if cb.err != nil {
		return cb
	}
	if set >= MaxDescriptorSets || binding >= MaxDescriptorBindings {
		return cb.fail(&Error{Kind: ErrUnsupportedAccess, Msg: "descriptor slot out of range"})
	}
	sampler, err := cb.ptc.AcquireSampler(sci)
	if err != nil {
		return cb.fail(&Error{Kind: ErrAllocationFailure, Msg: "sampler", Cause: err})
	}
	cb.setsUsed[set] = true
	cb.setBindings[set].Bindings[binding] = DescriptorBinding{
		Type: vk.DescriptorTypeCombinedImageSampler,
		Image: DescriptorImageBinding{
			ImageView: iv,
			Layout:    vk.ImageLayoutShaderReadOnlyOptimal,
			Sampler:   sampler,
		},
	}
	cb.setBindings[set].Use(binding)
	return cb
}

// BindNamedSampledImage resolves an attachment by name through the graph's
// registry at record time.
func (cb *CommandBuffer) BindNamedSampledImage(set, binding uint32, name Name, sci vk.SamplerCreateInfo) *CommandBuffer {
	if cb.err != nil {
		return cb
	}
	att := cb.rg.BoundAttachment(name)
	if att == nil {
		return cb.fail(&Error{Kind: ErrUnknownAttachment, Resource: name, Msg: "sampled image bind"})
	}
	return cb.BindSampledImage(set, binding, att.ImageView, sci)
}

func (cb *CommandBuffer) BindUniformBuffer(set, binding uint32, buf *Buffer) *CommandBuffer {
	if cb.err != nil {
		return cb
	}
	if set >= MaxDescriptorSets || binding >= MaxDescriptorBindings {
		return cb.fail(&Error{Kind: ErrUnsupportedAccess, Msg: "descriptor slot out of range"})
	}
	cb.setsUsed[set] = true
	cb.setBindings[set].Bindings[binding] = DescriptorBinding{
		Type: vk.DescriptorTypeUniformBuffer,
		Buffer: vk.DescriptorBufferInfo{
			Buffer: buf.Handle,
			Offset: buf.Offset,
			Range:  buf.Size,
		},
	}
	cb.setBindings[set].Use(binding)
	return cb
}

// MapScratchUniform allocates a frame-scratch uniform buffer, binds it and
// returns the mapped bytes for the caller to fill.
func (cb *CommandBuffer) MapScratchUniform(set, binding uint32, size uint64) []byte {
	if cb.err != nil {
		return nil
	}
	buf, err := cb.ptc.AllocateScratchUniform(size)
	if err != nil {
		cb.fail(&Error{Kind: ErrAllocationFailure, Msg: "scratch uniform", Cause: err})
		return nil
	}
	cb.BindUniformBuffer(set, binding, buf)
	return buf.Mapped
}

func (cb *CommandBuffer) PushConstants(stages vk.ShaderStageFlags, offset uint32, data []byte) *CommandBuffer {
	if cb.err != nil {
		return cb
	}
	if cb.currentPipeline == nil {
		return cb.fail(&Error{Kind: ErrUnsupportedAccess, Msg: "push constants with no bound pipeline"})
	}
	cb.sink.PushConstants(cb.currentPipeline.Layout, stages, offset, data)
	return cb
}

func (cb *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) *CommandBuffer {
	if cb.err != nil {
		return cb
	}
	if !cb.flushDescriptorState() {
		return cb
	}
	cb.sink.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	return cb
}

func (cb *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) *CommandBuffer {
	if cb.err != nil {
		return cb
	}
	if !cb.flushDescriptorState() {
		return cb
	}
	cb.sink.DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
	return cb
}

// flushDescriptorState acquires and binds a descriptor set for every dirty
// slot, then resets the slot.
func (cb *CommandBuffer) flushDescriptorState() bool {
	if cb.currentPipeline == nil {
		cb.fail(&Error{Kind: ErrUnsupportedAccess, Msg: "draw with no bound pipeline"})
		return false
	}
	for i := uint32(0); i < MaxDescriptorSets; i++ {
		if !cb.setsUsed[i] {
			continue
		}
		cb.setBindings[i].LayoutInfo = cb.currentPipeline.SetLayoutInfos[i]
		ds, err := cb.ptc.AcquireDescriptorSet(&cb.setBindings[i])
		if err != nil {
			cb.fail(&Error{Kind: ErrAllocationFailure, Msg: "descriptor set", Cause: err})
			return false
		}
		cb.sink.BindDescriptorSets(vk.PipelineBindPointGraphics, cb.currentPipeline.Layout, i, []vk.DescriptorSet{ds})
		cb.setsUsed[i] = false
		cb.setBindings[i] = SetBinding{}
	}
	return true
}
