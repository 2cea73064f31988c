package definition

import (
	"errors"
	"fmt"

	"github.com/kode4food/bpmnflow/pkg/api"
)

type (
	// Router selects the valid outgoing transitions of a completing node
	// when the caller did not choose them
	Router interface {
		Route(
			g *Graph, node api.FlowNodeID,
		) ([]*api.TransitionDefinition, error)
	}

	// DefaultRouter routes on structure alone. Guard conditions are not
	// evaluated: an exclusive gateway takes its first non-default
	// transition, and every other node takes all non-default transitions.
	// A node whose only way out is its default transition takes that
	DefaultRouter struct{}
)

var (
	ErrUnknownTransition = errors.New("transition is not an outgoing of node")
	ErrExclusiveRoute    = errors.New("exclusive gateway takes one transition")
)

var _ Router = DefaultRouter{}

func (DefaultRouter) Route(
	g *Graph, node api.FlowNodeID,
) ([]*api.TransitionDefinition, error) {
	out := g.Outgoing(node)
	var regular []*api.TransitionDefinition
	var fallback *api.TransitionDefinition
	for _, tr := range out {
		if tr.IsDefault {
			fallback = tr
			continue
		}
		regular = append(regular, tr)
	}

	switch {
	case len(regular) == 0 && fallback != nil:
		return []*api.TransitionDefinition{fallback}, nil
	case len(regular) > 0 && g.Kind(node).GatewayIsExclusive():
		return regular[:1], nil
	default:
		return regular, nil
	}
}

// Select resolves caller-chosen transition IDs against the node's outgoing
// transitions, keeping declaration order
func Select(
	g *Graph, node api.FlowNodeID, ids []api.TransitionID,
) ([]*api.TransitionDefinition, error) {
	want := make(map[api.TransitionID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var res []*api.TransitionDefinition
	for _, tr := range g.Outgoing(node) {
		if want[tr.ID] {
			res = append(res, tr)
			delete(want, tr.ID)
		}
	}
	for _, id := range ids {
		if want[id] {
			return nil, fmt.Errorf("%w: %s (%s)",
				ErrUnknownTransition, id, node)
		}
	}
	if g.Kind(node).GatewayIsExclusive() && len(res) > 1 {
		return nil, fmt.Errorf("%w: %s", ErrExclusiveRoute, node)
	}
	return res, nil
}
