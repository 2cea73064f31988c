package helpers

import "github.com/kode4food/bpmnflow/internal/topology"

// Shapes lists every regular topology shape
var Shapes = []topology.Shape{
	topology.LastNode,
	topology.SimpleMerge,
	topology.SimpleToMany,
	topology.ManyToMany,
	topology.ManyToOne,
}

// ExampleTopology returns a representative Topology of the given Shape
func ExampleTopology(s topology.Shape) topology.Topology {
	switch s {
	case topology.LastNode:
		return topology.New(1, 1, 0)
	case topology.SimpleMerge:
		return topology.New(1, 1, 1)
	case topology.SimpleToMany:
		return topology.New(1, 3, 3)
	case topology.ManyToMany:
		return topology.New(2, 2, 2)
	case topology.ManyToOne:
		return topology.New(2, 1, 1)
	default:
		return topology.New(1, 0, 2)
	}
}
