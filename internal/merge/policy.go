package merge

import (
	"github.com/kode4food/bpmnflow/internal/flownode"
	"github.com/kode4food/bpmnflow/internal/topology"
	"github.com/kode4food/bpmnflow/pkg/api"
)

type (
	// Flags are the completion answers the engine queries on every flow
	// node completion. They agree with the decision table but are computed
	// without touching the token store
	Flags struct {
		MustConsumeInputToken   bool
		MustCreateTokenOnFinish bool
		IsImplicitEnd           bool
	}

	// Policy bundles the Flags with the resolved TokenDecision
	Policy struct {
		Flags
		Decision api.TokenDecision
	}
)

// Evaluate computes the completion Flags for a classified node
func Evaluate(kind flownode.Kind, topo topology.Topology) Flags {
	return Flags{
		MustConsumeInputToken:   MustConsumeInputToken(kind, topo),
		MustCreateTokenOnFinish: MustCreateTokenOnFinish(kind, topo),
		IsImplicitEnd:           IsImplicitEnd(kind, topo),
	}
}

// MustConsumeInputToken is true for a parallel or inclusive gateway that
// merges several incoming branches and continues past itself
func MustConsumeInputToken(kind flownode.Kind, topo topology.Topology) bool {
	return !kind.IsAbsent() &&
		!kind.IsBoundaryEvent() &&
		kind.GatewayIsParallelOrInclusive() &&
		!topo.IsLastFlowNode() &&
		topo.HasMultipleIncoming()
}

// MustCreateTokenOnFinish is true for any non-exclusive node that leaves
// through several declared outgoing transitions
func MustCreateTokenOnFinish(kind flownode.Kind, topo topology.Topology) bool {
	return !kind.IsAbsent() &&
		!kind.IsBoundaryEvent() &&
		!kind.GatewayIsExclusive() &&
		!topo.IsLastFlowNode() &&
		topo.HasMultipleOutgoing()
}

// IsImplicitEnd is true when a defined node has no valid way out
func IsImplicitEnd(kind flownode.Kind, topo topology.Topology) bool {
	return !kind.IsAbsent() && topo.IsLastFlowNode()
}

// Complete resolves the completion of inst and returns the Policy the
// engine acts on
func (r *Resolver) Complete(
	inst *api.FlowNodeInstance, kind flownode.Kind, topo topology.Topology,
) (*Policy, error) {
	dec, err := r.Resolve(inst, kind, topo)
	if err != nil {
		return nil, err
	}
	return &Policy{
		Flags:    Evaluate(kind, topo),
		Decision: dec,
	}, nil
}
