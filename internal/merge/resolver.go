package merge

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kode4food/bpmnflow/internal/flownode"
	"github.com/kode4food/bpmnflow/internal/topology"
	"github.com/kode4food/bpmnflow/pkg/api"
	"github.com/kode4food/bpmnflow/pkg/log"
)

type (
	// TokenLookup reads a token of the completing node's process instance.
	// A miss must be reported as api.ErrTokenNotFound
	TokenLookup func(api.TokenRefID) (*api.Token, error)

	// RefGenerator mints the ref of a newly forked thread
	RefGenerator func() api.TokenRefID

	// Context carries the read-only capabilities a resolution may use
	Context struct {
		Lookup   TokenLookup
		NewRefID RefGenerator
	}

	// Resolver computes the TokenDecision for a flow node completion
	Resolver struct {
		ctx Context
	}
)

var (
	ErrUnreachableDecision = errors.New("no token rule matched completion")
	ErrLookupRequired      = errors.New("token lookup required")
)

// NewResolver returns a Resolver bound to the given Context. A nil
// NewRefID falls back to random UUIDs
func NewResolver(ctx Context) *Resolver {
	if ctx.NewRefID == nil {
		ctx.NewRefID = NewRefID
	}
	return &Resolver{ctx: ctx}
}

// NewRefID mints a random thread ref
func NewRefID() api.TokenRefID {
	return api.TokenRefID(uuid.New().String())
}

// Resolve applies the decision table to a completed flow node instance.
// Rules are evaluated in priority order and the first match wins. At most
// one token is read from the store
func (r *Resolver) Resolve(
	inst *api.FlowNodeInstance, kind flownode.Kind, topo topology.Topology,
) (api.TokenDecision, error) {
	node, ok := kind.(flownode.Node)
	if !ok || topo.IsLastFlowNode() {
		return api.NoToken(), nil
	}

	switch node.Boundary {
	case flownode.Interrupting:
		return r.reclaimInterrupted(inst)
	case flownode.NonInterrupting:
		return api.Create("", api.TokenRefID(inst.ID)), nil
	}

	shape := topo.Shape()
	if node.GatewayIsExclusive() || shape == topology.SimpleMerge {
		return api.Transmit(inst.TokenRefID, ""), nil
	}

	switch shape {
	case topology.SimpleToMany:
		return r.fork(inst.TokenRefID, topo.ValidOutgoing), nil

	case topology.ManyToMany:
		if !node.GatewayIsParallelOrInclusive() {
			return api.Transmit(inst.TokenRefID, ""), nil
		}
		parent, err := r.parentOf(inst)
		if err != nil {
			return api.TokenDecision{}, err
		}
		return r.fork(parent, topo.ValidOutgoing), nil

	case topology.ManyToOne:
		if !node.GatewayIsParallelOrInclusive() {
			return api.Transmit(inst.TokenRefID, ""), nil
		}
		parent, err := r.parentOf(inst)
		if err != nil {
			return api.TokenDecision{}, err
		}
		return api.Join(parent), nil
	}

	return r.unreachable(inst, node, shape), nil
}

func (r *Resolver) reclaimInterrupted(
	inst *api.FlowNodeInstance,
) (api.TokenDecision, error) {
	tkn, err := r.lookup(inst.TokenRefID)
	if err != nil {
		return api.TokenDecision{}, err
	}
	return api.Transmit(tkn.RefID, tkn.ParentRefID), nil
}

func (r *Resolver) parentOf(
	inst *api.FlowNodeInstance,
) (api.TokenRefID, error) {
	tkn, err := r.lookup(inst.TokenRefID)
	if err != nil {
		return "", err
	}
	return tkn.ParentRefID, nil
}

func (r *Resolver) lookup(ref api.TokenRefID) (*api.Token, error) {
	if r.ctx.Lookup == nil {
		return nil, ErrLookupRequired
	}
	tkn, err := r.ctx.Lookup(ref)
	if err != nil {
		return nil, fmt.Errorf("resolve token %s: %w", ref, err)
	}
	if tkn == nil {
		return nil, fmt.Errorf("%w: %s", api.ErrTokenNotFound, ref)
	}
	return tkn, nil
}

func (r *Resolver) fork(parent api.TokenRefID, count int) api.TokenDecision {
	refs := make([]api.TokenRefID, count)
	for i := range refs {
		refs[i] = r.ctx.NewRefID()
	}
	return api.Create(parent, refs...)
}

func (r *Resolver) unreachable(
	inst *api.FlowNodeInstance, node flownode.Node, shape topology.Shape,
) api.TokenDecision {
	slog.Error("Token decision invariant violated",
		log.InstanceID(inst.ProcessInstanceID),
		log.FlowNodeInstanceID(inst.ID),
		log.FlowNodeID(node.ID),
		log.Shape(shape.String()),
		slog.String("gateway", node.Gateway.String()),
		log.Error(ErrUnreachableDecision))

	res := api.NoToken()
	res.Fallback = true
	return res
}
