// Package topology classifies the transition cardinality around a flow node
// at the moment it completes
package topology

type (
	// Topology is a read-only view over a completing node's transition
	// counts. AllOutgoing counts the declared outgoing transitions and
	// ValidOutgoing the ones selected for this completion
	Topology struct {
		Incoming      int
		AllOutgoing   int
		ValidOutgoing int
	}

	// Shape is the single cardinality class of a Topology
	Shape int
)

const (
	// Irregular covers counts outside the four cardinality classes, which
	// only arise when more transitions are valid than were declared
	Irregular Shape = iota
	LastNode
	SimpleMerge
	SimpleToMany
	ManyToMany
	ManyToOne
)

// New returns a Topology for the given transition counts
func New(incoming, allOutgoing, validOutgoing int) Topology {
	return Topology{
		Incoming:      incoming,
		AllOutgoing:   allOutgoing,
		ValidOutgoing: validOutgoing,
	}
}

// IsLastFlowNode is true when no valid outgoing transition remains, so the
// branch terminates here
func (t Topology) IsLastFlowNode() bool {
	return t.ValidOutgoing == 0
}

func (t Topology) HasMultipleIncoming() bool {
	return t.Incoming > 1
}

func (t Topology) HasMultipleOutgoing() bool {
	return t.AllOutgoing > 1
}

// IsSimpleMerge is true for at most one incoming transition and exactly one
// relevant outgoing transition
func (t Topology) IsSimpleMerge() bool {
	return !t.HasMultipleIncoming() && t.hasOneRelevantOutgoing()
}

func (t Topology) IsSimpleToMany() bool {
	return !t.HasMultipleIncoming() && t.HasMultipleOutgoing()
}

func (t Topology) IsManyToOne() bool {
	return t.HasMultipleIncoming() && t.hasOneRelevantOutgoing()
}

func (t Topology) IsManyToMany() bool {
	return t.HasMultipleIncoming() && t.HasMultipleOutgoing()
}

// hasOneRelevantOutgoing also accepts a node with no declared outgoing
// transition but exactly one valid one, which is how a resolved default
// transition shows up
func (t Topology) hasOneRelevantOutgoing() bool {
	return t.AllOutgoing == 1 || (t.AllOutgoing == 0 && t.ValidOutgoing == 1)
}

// Shape computes the cardinality class, giving IsLastFlowNode priority over
// the others
func (t Topology) Shape() Shape {
	switch {
	case t.IsLastFlowNode():
		return LastNode
	case t.IsSimpleMerge():
		return SimpleMerge
	case t.IsSimpleToMany():
		return SimpleToMany
	case t.IsManyToMany():
		return ManyToMany
	case t.IsManyToOne():
		return ManyToOne
	default:
		return Irregular
	}
}

func (s Shape) String() string {
	switch s {
	case LastNode:
		return "last-node"
	case SimpleMerge:
		return "simple-merge"
	case SimpleToMany:
		return "simple-to-many"
	case ManyToMany:
		return "many-to-many"
	case ManyToOne:
		return "many-to-one"
	default:
		return "irregular"
	}
}
