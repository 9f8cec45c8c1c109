package graph

import (
	"sort"
	"strings"

	vk "github.com/goki/vulkan"
	"golang.org/x/exp/maps"

	"github.com/spaghettifunk/grafo/engine/core"
)

// RenderGraph compiles a declarative set of passes into render-pass blocks
// with full synchronization metadata, then records them into one command
// buffer. Build once per frame: AddPass, bind attachments, Compile, Execute.
type RenderGraph struct {
	passes []*PassInfo

	aliases          map[Name]Name
	useChains        map[Name][]UseRef
	boundAttachments map[Name]*AttachmentRPInfo
	rpis             []*RenderPassInfo

	tracked       []Resource
	globalInputs  []Resource
	globalOutputs []Resource
	globalIO      []Resource
	headPasses    []*PassInfo
	tailPasses    []*PassInfo

	compiled   bool
	compileErr error
}

func NewRenderGraph() *RenderGraph {
	return &RenderGraph{
		aliases:          make(map[Name]Name),
		useChains:        make(map[Name][]UseRef),
		boundAttachments: make(map[Name]*AttachmentRPInfo),
	}
}

// AddPass appends a pass to the graph. Renames are registered here so every
// later stage can resolve names.
func (rg *RenderGraph) AddPass(p Pass) error {
	for _, res := range p.Resources {
		if res.SrcName == res.UseName {
			continue
		}
		cycle := false
		for n := res.SrcName; !cycle; {
			if n == res.UseName {
				cycle = true
			} else if src, ok := rg.aliases[n]; ok {
				n = src
			} else {
				break
			}
		}
		if cycle {
			err := &Error{Kind: ErrConflictingUse, Pass: p.Name, Resource: res.UseName,
				Msg: "rename creates an alias cycle"}
			core.LogError(err.Error())
			return err
		}
		rg.aliases[res.UseName] = res.SrcName
	}
	rg.passes = append(rg.passes, &PassInfo{
		Pass:            p,
		RenderPassIndex: -1,
		declIndex:       len(rg.passes),
	})
	return nil
}

// BindAttachmentToSwapchain registers a swapchain-backed attachment. The
// initial use waits on color attachment output; the final use relies on the
// implicit external dependency the presentation semaphore provides, so it
// carries no access at the bottom of the pipe.
func (rg *RenderGraph) BindAttachmentToSwapchain(name Name, swp Swapchain, clear vk.ClearValue) {
	rg.boundAttachments[name] = &AttachmentRPInfo{
		Name:    name,
		Origin:  AttachmentOriginSwapchain,
		Extents: swp.SwapchainExtent(),
		Description: vk.AttachmentDescription{
			Format:  swp.SwapchainFormat(),
			Samples: vk.SampleCount1Bit,
		},
		Swapchain:   swp,
		ShouldClear: true,
		ClearValue:  clear,
		Initial: Use{
			Stages: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			Layout: vk.ImageLayoutPreinitialized,
		},
		Final: Use{
			Stages: vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
			Layout: vk.ImageLayoutPresentSrc,
		},
	}
}

// MarkAttachmentInternal registers a transient attachment the graph allocates
// itself. The undefined final layout means its contents are discarded at the
// end of the frame.
func (rg *RenderGraph) MarkAttachmentInternal(name Name, format vk.Format, extent vk.Extent2D, clear vk.ClearValue) {
	rg.boundAttachments[name] = &AttachmentRPInfo{
		Name:    name,
		Origin:  AttachmentOriginInternal,
		Extents: extent,
		Description: vk.AttachmentDescription{
			Format:  format,
			Samples: vk.SampleCount1Bit,
		},
		ShouldClear: true,
		ClearValue:  clear,
		Initial: Use{
			Stages: vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			Layout: vk.ImageLayoutPreinitialized,
		},
		Final: Use{
			Stages: vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
			Layout: vk.ImageLayoutUndefined,
		},
	}
}

// Compile runs I/O classification, scheduling, pass grouping, use-chain
// assembly and synchronization synthesis. Idempotent per instance.
func (rg *RenderGraph) Compile() error {
	if rg.compiled {
		return rg.compileErr
	}
	rg.compiled = true
	core.MetricsInitialize()

	clock := core.NewClock()
	clock.Start()
	rg.compileErr = rg.compile()
	clock.Update()
	core.MetricsCompileUpdate(clock.Elapsed() / 1e9)

	if rg.compileErr != nil {
		return rg.compileErr
	}

	subpasses, deps := 0, 0
	for _, rpi := range rg.rpis {
		subpasses += len(rpi.Subpasses)
		deps += len(rpi.RPCI.SubpassDependencies)
	}
	core.MetricsGraphUpdate(len(rg.passes), len(rg.rpis), subpasses, deps, len(rg.boundAttachments))
	core.LogDebug("compiled render graph: %d passes, %d blocks, %d subpasses, %d dependencies",
		len(rg.passes), len(rg.rpis), subpasses, deps)
	return nil
}

func (rg *RenderGraph) compile() error {
	if err := rg.buildIO(); err != nil {
		return err
	}
	if err := rg.topoSort(); err != nil {
		return err
	}
	rg.markHeadTail()
	if err := rg.assembleUseChains(); err != nil {
		return err
	}
	rg.groupPasses()
	if err := rg.checkBindings(); err != nil {
		return err
	}
	return rg.buildSync()
}

// resolve walks the alias map to a fixed point. Chains are acyclic by
// construction: a rename only renames forward and AddPass rejects cycles.
func (rg *RenderGraph) resolve(n Name) Name {
	for {
		src, ok := rg.aliases[n]
		if !ok {
			return n
		}
		n = src
	}
}

func (rg *RenderGraph) findResource(list []Resource, name Name) int {
	for i := range list {
		if rg.resolve(list[i].UseName) == name {
			return i
		}
	}
	return -1
}

func (rg *RenderGraph) eraseResource(list *[]Resource, name Name) bool {
	i := rg.findResource(*list, name)
	if i < 0 {
		return false
	}
	*list = append((*list)[:i], (*list)[i+1:]...)
	return true
}

// buildIO partitions every pass's resources into reads and writes and derives
// the graph-global inputs and outputs: what this graph consumes from the
// outside and what it leaves behind.
func (rg *RenderGraph) buildIO() error {
	for _, pif := range rg.passes {
		for _, res := range pif.Pass.Resources {
			name := rg.resolve(res.UseName)
			if res.Access.IsRead() {
				if rg.findResource(pif.Inputs, name) < 0 {
					pif.Inputs = append(pif.Inputs, res)
				}
			}
			if res.Access.IsWrite() {
				if i := rg.findResource(pif.Outputs, name); i >= 0 {
					err := &Error{Kind: ErrConflictingUse, Pass: pif.Pass.Name, Resource: name,
						Msg: "declared as " + pif.Outputs[i].Access.String() + " and " + res.Access.String()}
					core.LogError(err.Error())
					return err
				}
				pif.Outputs = append(pif.Outputs, res)
			}
		}

		for _, in := range pif.Inputs {
			if !rg.eraseResource(&rg.globalOutputs, rg.resolve(in.UseName)) {
				pif.GlobalInputs = append(pif.GlobalInputs, in)
			}
		}
		for _, out := range pif.Outputs {
			if !rg.eraseResource(&rg.globalInputs, rg.resolve(out.UseName)) {
				pif.GlobalOutputs = append(pif.GlobalOutputs, out)
			}
		}

		rg.globalInputs = append(rg.globalInputs, pif.GlobalInputs...)
		rg.globalOutputs = append(rg.globalOutputs, pif.GlobalOutputs...)
	}

	// outputs that never leave the graph need transient storage
	for _, pif := range rg.passes {
		for _, out := range pif.Outputs {
			name := rg.resolve(out.UseName)
			if rg.findResource(rg.globalOutputs, name) < 0 && rg.findResource(rg.tracked, name) < 0 {
				rg.tracked = append(rg.tracked, out)
			}
		}
	}

	for _, r := range rg.globalInputs {
		if rg.findResource(rg.globalIO, rg.resolve(r.UseName)) < 0 {
			rg.globalIO = append(rg.globalIO, r)
		}
	}
	for _, r := range rg.globalOutputs {
		if rg.findResource(rg.globalIO, rg.resolve(r.UseName)) < 0 {
			rg.globalIO = append(rg.globalIO, r)
		}
	}
	return nil
}

// producesFor reports whether any output of p is an input of q.
func (rg *RenderGraph) producesFor(p, q *PassInfo) bool {
	for _, o := range p.Outputs {
		if rg.findResource(q.Inputs, rg.resolve(o.UseName)) >= 0 {
			return true
		}
	}
	return false
}

// topoSort orders passes along producer/consumer edges. A pair with edges in
// both directions is ordered by auxiliary order; declaration order is kept
// when neither edge exists.
func (rg *RenderGraph) topoSort() error {
	n := len(rg.passes)
	if n <= 1 {
		return nil
	}

	succ := make([][]int, n)
	indeg := make([]int, n)
	addEdge := func(from, to int) {
		succ[from] = append(succ[from], to)
		indeg[to]++
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			after := rg.producesFor(rg.passes[i], rg.passes[j])
			before := rg.producesFor(rg.passes[j], rg.passes[i])
			switch {
			case after && before:
				pi, pj := rg.passes[i], rg.passes[j]
				if pi.Pass.AuxiliaryOrder == pj.Pass.AuxiliaryOrder {
					err := &Error{Kind: ErrConflictingUse, Pass: pi.Pass.Name,
						Msg: "write cycle with pass " + pj.Pass.Name + " and equal auxiliary order"}
					core.LogError(err.Error())
					return err
				}
				if pi.Pass.AuxiliaryOrder < pj.Pass.AuxiliaryOrder {
					addEdge(i, j)
				} else {
					addEdge(j, i)
				}
			case after:
				addEdge(i, j)
			case before:
				addEdge(j, i)
			}
		}
	}

	sorted := make([]*PassInfo, 0, n)
	done := make([]bool, n)
	for len(sorted) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indeg[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			err := &Error{Kind: ErrConflictingUse, Msg: "pass dependencies form a cycle"}
			core.LogError(err.Error())
			return err
		}
		done[next] = true
		sorted = append(sorted, rg.passes[next])
		for _, s := range succ[next] {
			indeg[s]--
		}
	}
	rg.passes = sorted
	return nil
}

// markHeadTail tags passes whose entire I/O is graph-global: heads can run at
// the very beginning of the frame, tails at the very end.
func (rg *RenderGraph) markHeadTail() {
	for _, pif := range rg.passes {
		if len(pif.GlobalInputs) == len(pif.Inputs) {
			pif.IsHeadPass = true
			rg.headPasses = append(rg.headPasses, pif)
		}
		if len(pif.GlobalOutputs) == len(pif.Outputs) {
			pif.IsTailPass = true
			rg.tailPasses = append(rg.tailPasses, pif)
		}
	}
}

// assembleUseChains appends one UseRef per declared resource, in schedule
// order, onto the chain of its alias-resolved name.
func (rg *RenderGraph) assembleUseChains() error {
	for _, pif := range rg.passes {
		for _, res := range pif.Pass.Resources {
			use, err := ToUse(res.Access)
			if err != nil {
				if ge, ok := err.(*Error); ok {
					ge.Pass = pif.Pass.Name
					ge.Resource = res.UseName
				}
				core.LogError(err.Error())
				return err
			}
			key := rg.resolve(res.UseName)
			rg.useChains[key] = append(rg.useChains[key], UseRef{Use: use, Pass: pif})
		}
	}
	return nil
}

// groupPasses collects passes with identical framebuffer-attachment sets into
// render-pass blocks, in first-occurrence order; within a block, subpass
// indices follow schedule order.
func (rg *RenderGraph) groupPasses() {
	type attachmentSet struct {
		key    string
		names  []Name
		passes []*PassInfo
	}
	var sets []*attachmentSet

	for _, pif := range rg.passes {
		var names []Name
		for _, res := range pif.Pass.Resources {
			if !res.IsFramebufferAttachment() {
				continue
			}
			name := rg.resolve(res.UseName)
			found := false
			for _, n := range names {
				if n == name {
					found = true
					break
				}
			}
			if !found {
				names = append(names, name)
			}
		}
		sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

		parts := make([]string, len(names))
		for i, n := range names {
			parts[i] = string(n)
		}
		key := strings.Join(parts, "\x00")

		var set *attachmentSet
		for _, s := range sets {
			if s.key == key {
				set = s
				break
			}
		}
		if set == nil {
			set = &attachmentSet{key: key, names: names}
			sets = append(sets, set)
		}
		set.passes = append(set.passes, pif)
	}

	rg.rpis = make([]*RenderPassInfo, 0, len(sets))
	for rpIndex, set := range sets {
		rpi := &RenderPassInfo{}
		for subpass, pif := range set.passes {
			pif.RenderPassIndex = rpIndex
			pif.SubpassIndex = subpass
			rpi.Subpasses = append(rpi.Subpasses, SubpassInfo{Pass: pif})
		}
		// sorted name order is the block's attachment index order
		for _, name := range set.names {
			rpi.Attachments = append(rpi.Attachments, AttachmentRPInfo{Name: name})
		}
		rg.rpis = append(rg.rpis, rpi)
	}
}

// checkBindings rejects graphs that reference attachments nothing bound:
// without binding data there is no format, extent or storage to realize, and
// an unsynchronized chain must fail rather than misrender.
func (rg *RenderGraph) checkBindings() error {
	names := maps.Keys(rg.useChains)
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	for _, name := range names {
		if _, ok := rg.boundAttachments[name]; ok {
			continue
		}
		chain := rg.useChains[name]
		pass := ""
		if len(chain) > 0 && chain[0].Pass != nil {
			pass = chain[0].Pass.Pass.Name
		}
		err := &Error{Kind: ErrUnknownAttachment, Pass: pass, Resource: name,
			Msg: "not bound to a swapchain and not marked internal"}
		core.LogError(err.Error())
		return err
	}
	return nil
}

// Tracked returns the resources produced but not exported from the graph.
func (rg *RenderGraph) Tracked() []Resource {
	return rg.tracked
}

// GlobalIO returns the graph-wide inputs and outputs, deduplicated.
func (rg *RenderGraph) GlobalIO() []Resource {
	return rg.globalIO
}

// Passes returns the passes in schedule order once Compile has run.
func (rg *RenderGraph) Passes() []*PassInfo {
	return rg.passes
}

// HeadPasses returns the passes whose inputs are all graph-global.
func (rg *RenderGraph) HeadPasses() []*PassInfo {
	return rg.headPasses
}

// TailPasses returns the passes whose outputs are all graph-global.
func (rg *RenderGraph) TailPasses() []*PassInfo {
	return rg.tailPasses
}

// RenderPasses returns the compiled render-pass blocks.
func (rg *RenderGraph) RenderPasses() []*RenderPassInfo {
	return rg.rpis
}

// UseChain returns the use chain for an alias-resolved name.
func (rg *RenderGraph) UseChain(name Name) []UseRef {
	return rg.useChains[rg.resolve(name)]
}

// BoundAttachment returns the registered attachment info for a name.
func (rg *RenderGraph) BoundAttachment(name Name) *AttachmentRPInfo {
	return rg.boundAttachments[rg.resolve(name)]
}
