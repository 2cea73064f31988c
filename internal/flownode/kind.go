// Package flownode classifies flow node definitions into the type
// predicates the token resolver needs
package flownode

import "github.com/kode4food/bpmnflow/pkg/api"

type (
	// Kind is the classified view of a flow node definition. It is either
	// Absent, for nodes that are not part of the process definition, or a
	// Node. The set of variants is closed
	Kind interface {
		IsAbsent() bool
		IsGateway() bool
		GatewayIsParallelOrInclusive() bool
		GatewayIsExclusive() bool
		IsBoundaryEvent() bool
		IsInterrupting() bool
		IsEventSubProcess() bool
		kind()
	}

	// Absent stands for a flow node injected at runtime with no definition
	Absent struct{}

	// Node is a classified flow node definition
	Node struct {
		ID              api.FlowNodeID
		Type            api.NodeType
		Gateway         GatewayKind
		Boundary        BoundaryKind
		Interrupting    bool
		EventSubProcess bool
	}

	// GatewayKind is the routing class of a node
	GatewayKind int

	// BoundaryKind is the boundary-event class of a node
	BoundaryKind int
)

const (
	NotAGateway GatewayKind = iota
	Parallel
	Inclusive
	Exclusive
)

const (
	NotBoundary BoundaryKind = iota
	Interrupting
	NonInterrupting
)

var (
	_ Kind = Absent{}
	_ Kind = Node{}
)

// Classify computes the Kind of a definition once per completion. A nil
// definition classifies as Absent
func Classify(def *api.FlowNodeDefinition) Kind {
	if def == nil {
		return Absent{}
	}

	res := Node{
		ID:   def.ID,
		Type: def.Type,
	}

	if def.Type == api.NodeGateway {
		res.Gateway = gatewayKinds[def.GatewayType]
	}

	if def.Type.IsCatchEvent() {
		res.Interrupting = def.Interrupting
	}

	if def.Type == api.NodeBoundaryEvent {
		if def.Interrupting {
			res.Boundary = Interrupting
		} else {
			res.Boundary = NonInterrupting
		}
	}

	res.EventSubProcess = def.Type == api.NodeSubProcess &&
		def.TriggeredByEvent
	return res
}

var gatewayKinds = map[api.GatewayType]GatewayKind{
	api.GatewayParallel:  Parallel,
	api.GatewayInclusive: Inclusive,
	api.GatewayExclusive: Exclusive,
}

func (Absent) IsAbsent() bool                     { return true }
func (Absent) IsGateway() bool                    { return false }
func (Absent) GatewayIsParallelOrInclusive() bool { return false }
func (Absent) GatewayIsExclusive() bool           { return false }
func (Absent) IsBoundaryEvent() bool              { return false }
func (Absent) IsInterrupting() bool               { return false }
func (Absent) IsEventSubProcess() bool            { return false }
func (Absent) kind()                              {}

func (n Node) IsAbsent() bool {
	return false
}

func (n Node) IsGateway() bool {
	return n.Gateway != NotAGateway
}

func (n Node) GatewayIsParallelOrInclusive() bool {
	return n.Gateway == Parallel || n.Gateway == Inclusive
}

func (n Node) GatewayIsExclusive() bool {
	return n.Gateway == Exclusive
}

func (n Node) IsBoundaryEvent() bool {
	return n.Boundary != NotBoundary
}

// IsInterrupting is only ever true for catch events
func (n Node) IsInterrupting() bool {
	return n.Interrupting
}

func (n Node) IsEventSubProcess() bool {
	return n.EventSubProcess
}

func (Node) kind() {}

func (g GatewayKind) String() string {
	switch g {
	case Parallel:
		return "parallel"
	case Inclusive:
		return "inclusive"
	case Exclusive:
		return "exclusive"
	default:
		return "none"
	}
}

func (b BoundaryKind) String() string {
	switch b {
	case Interrupting:
		return "interrupting"
	case NonInterrupting:
		return "non-interrupting"
	default:
		return "none"
	}
}
