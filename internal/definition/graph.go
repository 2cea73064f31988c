// Package definition indexes deployed process definitions for the engine
// and loads them from JSON documents
package definition

import (
	"github.com/kode4food/bpmnflow/internal/flownode"
	"github.com/kode4food/bpmnflow/internal/topology"
	"github.com/kode4food/bpmnflow/pkg/api"
)

// Graph is a validated process definition with its transitions indexed by
// source and target node. A Graph is immutable and safe to share
type Graph struct {
	def        *api.ProcessDefinition
	nodes      map[api.FlowNodeID]*api.FlowNodeDefinition
	kinds      map[api.FlowNodeID]flownode.Kind
	incoming   map[api.FlowNodeID][]*api.TransitionDefinition
	outgoing   map[api.FlowNodeID][]*api.TransitionDefinition
	boundaries map[api.FlowNodeID][]*api.FlowNodeDefinition
}

// NewGraph validates def and builds its index
func NewGraph(def *api.ProcessDefinition) (*Graph, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	g := &Graph{
		def:        def,
		nodes:      make(map[api.FlowNodeID]*api.FlowNodeDefinition, len(def.Nodes)),
		kinds:      make(map[api.FlowNodeID]flownode.Kind, len(def.Nodes)),
		incoming:   map[api.FlowNodeID][]*api.TransitionDefinition{},
		outgoing:   map[api.FlowNodeID][]*api.TransitionDefinition{},
		boundaries: map[api.FlowNodeID][]*api.FlowNodeDefinition{},
	}

	for _, n := range def.Nodes {
		g.nodes[n.ID] = n
		g.kinds[n.ID] = flownode.Classify(n)
		if n.AttachedTo != "" {
			g.boundaries[n.AttachedTo] = append(g.boundaries[n.AttachedTo], n)
		}
	}

	for _, tr := range def.Transitions {
		g.outgoing[tr.Source] = append(g.outgoing[tr.Source], tr)
		g.incoming[tr.Target] = append(g.incoming[tr.Target], tr)
	}
	return g, nil
}

func (g *Graph) ID() api.DefinitionID {
	return g.def.ID
}

func (g *Graph) Definition() *api.ProcessDefinition {
	return g.def
}

// Node returns the definition of the given node
func (g *Graph) Node(id api.FlowNodeID) (*api.FlowNodeDefinition, bool) {
	res, ok := g.nodes[id]
	return res, ok
}

// Kind classifies the given node. Nodes missing from the definition are
// Absent
func (g *Graph) Kind(id api.FlowNodeID) flownode.Kind {
	if res, ok := g.kinds[id]; ok {
		return res
	}
	return flownode.Absent{}
}

func (g *Graph) Incoming(id api.FlowNodeID) []*api.TransitionDefinition {
	return g.incoming[id]
}

func (g *Graph) Outgoing(id api.FlowNodeID) []*api.TransitionDefinition {
	return g.outgoing[id]
}

// Boundaries returns the boundary events attached to an activity
func (g *Graph) Boundaries(id api.FlowNodeID) []*api.FlowNodeDefinition {
	return g.boundaries[id]
}

// Topology returns the transition counts of a node completing with the
// given number of valid outgoing transitions
func (g *Graph) Topology(id api.FlowNodeID, valid int) topology.Topology {
	return topology.New(len(g.incoming[id]), len(g.outgoing[id]), valid)
}

// StartNodes returns the nodes activated when an instance starts: nodes
// without incoming transitions that are neither boundary events nor event
// sub-processes
func (g *Graph) StartNodes() []*api.FlowNodeDefinition {
	var res []*api.FlowNodeDefinition
	for _, n := range g.def.Nodes {
		if len(g.incoming[n.ID]) != 0 {
			continue
		}
		k := g.kinds[n.ID]
		if k.IsBoundaryEvent() || k.IsEventSubProcess() {
			continue
		}
		res = append(res, n)
	}
	return res
}
