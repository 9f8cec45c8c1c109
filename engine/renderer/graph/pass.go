package graph

// Pass is a unit of GPU work: the resources it reads and writes plus a
// callback that records its draws once the graph has scheduled it.
type Pass struct {
	Name      string
	Resources []Resource
	// breaks scheduling ties between mutually dependent passes
	AuxiliaryOrder int32
	Execute        func(*CommandBuffer)
}

// PassInfo wraps a Pass with everything the compiler derives for it.
type PassInfo struct {
	Pass Pass

	Inputs  []Resource
	Outputs []Resource
	// subset of Inputs not matched, when classified in declaration order, to
	// a still-unconsumed output of an earlier pass
	GlobalInputs []Resource
	// subset of Outputs not matched, when classified in declaration order, to
	// a still-unmatched input of an earlier pass; a later consumer does not
	// remove an entry
	GlobalOutputs []Resource

	IsHeadPass bool
	IsTailPass bool

	// assigned during pass grouping
	RenderPassIndex int
	SubpassIndex    int

	declIndex int
}

// UseRef records one use of a resource. A nil Pass denotes a boundary entry
// injected from an attachment's declared initial or final use.
type UseRef struct {
	Use  Use
	Pass *PassInfo
}
