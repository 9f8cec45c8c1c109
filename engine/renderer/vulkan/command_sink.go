package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// VulkanCommandSink forwards the graph's recording calls straight to the
// device command buffer.
type VulkanCommandSink struct {
	cb *VulkanCommandBuffer
}

func NewVulkanCommandSink(cb *VulkanCommandBuffer) *VulkanCommandSink {
	return &VulkanCommandSink{cb: cb}
}

func (s *VulkanCommandSink) Handle() vk.CommandBuffer {
	return s.cb.Handle
}

func (s *VulkanCommandSink) Begin(flags vk.CommandBufferUsageFlags) error {
	return s.cb.Begin(flags)
}

func (s *VulkanCommandSink) End() error {
	return s.cb.End()
}

func (s *VulkanCommandSink) BeginRenderPass(rbi *vk.RenderPassBeginInfo, contents vk.SubpassContents) {
	rbi.SType = vk.StructureTypeRenderPassBeginInfo
	rbi.Deref()
	vk.CmdBeginRenderPass(s.cb.Handle, rbi, contents)
	s.cb.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (s *VulkanCommandSink) NextSubpass(contents vk.SubpassContents) {
	vk.CmdNextSubpass(s.cb.Handle, contents)
}

func (s *VulkanCommandSink) EndRenderPass() {
	vk.CmdEndRenderPass(s.cb.Handle)
	s.cb.State = COMMAND_BUFFER_STATE_RECORDING
}

func (s *VulkanCommandSink) BindPipeline(bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(s.cb.Handle, bindPoint, pipeline)
}

func (s *VulkanCommandSink) SetViewport(firstViewport uint32, viewports []vk.Viewport) {
	vk.CmdSetViewport(s.cb.Handle, firstViewport, uint32(len(viewports)), viewports)
}

func (s *VulkanCommandSink) SetScissor(firstScissor uint32, scissors []vk.Rect2D) {
	vk.CmdSetScissor(s.cb.Handle, firstScissor, uint32(len(scissors)), scissors)
}

func (s *VulkanCommandSink) BindVertexBuffers(firstBinding uint32, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	vk.CmdBindVertexBuffers(s.cb.Handle, firstBinding, uint32(len(buffers)), buffers, offsets)
}

func (s *VulkanCommandSink) BindIndexBuffer(buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(s.cb.Handle, buffer, offset, indexType)
}

func (s *VulkanCommandSink) BindDescriptorSets(bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet) {
	vk.CmdBindDescriptorSets(s.cb.Handle, bindPoint, layout, firstSet, uint32(len(sets)), sets, 0, nil)
}

func (s *VulkanCommandSink) PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(s.cb.Handle, layout, stages, offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (s *VulkanCommandSink) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(s.cb.Handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (s *VulkanCommandSink) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(s.cb.Handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}
