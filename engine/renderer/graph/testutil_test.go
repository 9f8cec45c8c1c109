package graph

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
)

// fakeSwapchain stands in for a real surface.
type fakeSwapchain struct {
	format vk.Format
	extent vk.Extent2D
}

func newFakeSwapchain(width, height uint32) *fakeSwapchain {
	return &fakeSwapchain{
		format: vk.FormatB8g8r8a8Unorm,
		extent: vk.Extent2D{Width: width, Height: height},
	}
}

func (f *fakeSwapchain) SwapchainFormat() vk.Format   { return f.format }
func (f *fakeSwapchain) SwapchainExtent() vk.Extent2D { return f.extent }

func (f *fakeSwapchain) SwapchainImageView(imageIndex int) vk.ImageView {
	var v vk.ImageView
	return v
}

// fakePTC records every acquire so tests can assert on the synthesized
// create infos instead of on device handles.
type fakePTC struct {
	renderPasses    []*RenderPassCreateInfo
	framebuffers    []*FramebufferCreateInfo
	transientImages []*TransientImageCreateInfo
	pipelines       []*PipelineCreateInfo
	descriptorSets  []*SetBinding
	samplers        []vk.SamplerCreateInfo
	scratchSizes    []uint64

	namedPipelines map[string]*PipelineCreateInfo

	failRenderPass bool
	failTransient  bool

	sink *fakeSink
}

func newFakePTC() *fakePTC {
	return &fakePTC{
		namedPipelines: make(map[string]*PipelineCreateInfo),
		sink:           &fakeSink{},
	}
}

func (f *fakePTC) AcquireRenderPass(rpci *RenderPassCreateInfo) (vk.RenderPass, error) {
	if f.failRenderPass {
		return nil, errors.New("device out of memory")
	}
	f.renderPasses = append(f.renderPasses, rpci)
	var h vk.RenderPass
	return h, nil
}

func (f *fakePTC) AcquireFramebuffer(fbci *FramebufferCreateInfo) (vk.Framebuffer, error) {
	f.framebuffers = append(f.framebuffers, fbci)
	var h vk.Framebuffer
	return h, nil
}

func (f *fakePTC) AcquireTransientImage(tici *TransientImageCreateInfo) (*TransientImage, error) {
	if f.failTransient {
		return nil, errors.New("device out of memory")
	}
	f.transientImages = append(f.transientImages, tici)
	return &TransientImage{}, nil
}

func (f *fakePTC) AcquirePipeline(pci *PipelineCreateInfo) (*Pipeline, error) {
	f.pipelines = append(f.pipelines, pci)
	return &Pipeline{}, nil
}

func (f *fakePTC) AcquireDescriptorSet(sb *SetBinding) (vk.DescriptorSet, error) {
	copied := *sb
	f.descriptorSets = append(f.descriptorSets, &copied)
	var h vk.DescriptorSet
	return h, nil
}

func (f *fakePTC) AcquireSampler(sci vk.SamplerCreateInfo) (vk.Sampler, error) {
	f.samplers = append(f.samplers, sci)
	var h vk.Sampler
	return h, nil
}

func (f *fakePTC) AcquireCommandBuffers(count int) ([]CommandSink, error) {
	sinks := make([]CommandSink, count)
	for i := range sinks {
		sinks[i] = f.sink
	}
	return sinks, nil
}

func (f *fakePTC) AllocateScratchUniform(size uint64) (*Buffer, error) {
	f.scratchSizes = append(f.scratchSizes, size)
	return &Buffer{Size: vk.DeviceSize(size), Mapped: make([]byte, size)}, nil
}

func (f *fakePTC) NamedPipeline(name string) (*PipelineCreateInfo, error) {
	pci, ok := f.namedPipelines[name]
	if !ok {
		return nil, fmt.Errorf("no pipeline named %q", name)
	}
	return pci, nil
}

// fakeSink records the command stream as readable op strings.
type fakeSink struct {
	ops       []string
	viewports []vk.Viewport
	scissors  []vk.Rect2D
	clears    [][]vk.ClearValue
}

func (s *fakeSink) Handle() vk.CommandBuffer {
	var h vk.CommandBuffer
	return h
}

func (s *fakeSink) Begin(flags vk.CommandBufferUsageFlags) error {
	s.ops = append(s.ops, "begin")
	return nil
}

func (s *fakeSink) End() error {
	s.ops = append(s.ops, "end")
	return nil
}

func (s *fakeSink) BeginRenderPass(rbi *vk.RenderPassBeginInfo, contents vk.SubpassContents) {
	clears := append([]vk.ClearValue(nil), rbi.PClearValues...)
	s.clears = append(s.clears, clears)
	s.ops = append(s.ops, fmt.Sprintf("beginRenderPass(%dx%d, %d clears)",
		rbi.RenderArea.Extent.Width, rbi.RenderArea.Extent.Height, rbi.ClearValueCount))
}

func (s *fakeSink) NextSubpass(contents vk.SubpassContents) {
	s.ops = append(s.ops, "nextSubpass")
}

func (s *fakeSink) EndRenderPass() {
	s.ops = append(s.ops, "endRenderPass")
}

func (s *fakeSink) BindPipeline(bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	s.ops = append(s.ops, "bindPipeline")
}

func (s *fakeSink) SetViewport(firstViewport uint32, viewports []vk.Viewport) {
	s.viewports = append(s.viewports, viewports...)
	s.ops = append(s.ops, "setViewport")
}

func (s *fakeSink) SetScissor(firstScissor uint32, scissors []vk.Rect2D) {
	s.scissors = append(s.scissors, scissors...)
	s.ops = append(s.ops, "setScissor")
}

func (s *fakeSink) BindVertexBuffers(firstBinding uint32, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	s.ops = append(s.ops, fmt.Sprintf("bindVertexBuffers(%d)", firstBinding))
}

func (s *fakeSink) BindIndexBuffer(buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType) {
	s.ops = append(s.ops, "bindIndexBuffer")
}

func (s *fakeSink) BindDescriptorSets(bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet) {
	s.ops = append(s.ops, fmt.Sprintf("bindDescriptorSets(%d)", firstSet))
}

func (s *fakeSink) PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	s.ops = append(s.ops, fmt.Sprintf("pushConstants(%d bytes)", len(data)))
}

func (s *fakeSink) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	s.ops = append(s.ops, fmt.Sprintf("draw(%d)", vertexCount))
}

func (s *fakeSink) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	s.ops = append(s.ops, fmt.Sprintf("drawIndexed(%d)", indexCount))
}

func countOps(ops []string, prefix string) int {
	n := 0
	for _, op := range ops {
		if len(op) >= len(prefix) && op[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}
