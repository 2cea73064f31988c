package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kode4food/bpmnflow/internal/definition"
	"github.com/kode4food/bpmnflow/internal/flownode"
	"github.com/kode4food/bpmnflow/internal/merge"
	"github.com/kode4food/bpmnflow/pkg/api"
)

type (
	// Completion reports everything a single engine operation did to a
	// process instance
	Completion struct {
		Instance    *api.ProcessInstance
		Resolutions []*Resolution
		Activated   []*api.FlowNodeInstance
		Aborted     []*api.FlowNodeInstance
		Waiting     []*api.JoinState
	}

	// Resolution is the token policy applied to one completed flow node
	Resolution struct {
		FlowNode *api.FlowNodeInstance
		merge.Policy
	}

	// CompleteOption adjusts how a flow node completion is routed
	CompleteOption func(*completeOptions)

	completeOptions struct {
		taken  []api.TransitionID
		chosen bool
	}

	// arrival is a thread entering a node, through a transition unless
	// the node is entered directly
	arrival struct {
		node *api.FlowNodeDefinition
		via  *api.TransitionDefinition
		ref  api.TokenRefID
	}
)

// WithTaken names the outgoing transitions whose conditions held. Without
// it the Engine's Router chooses. Naming none marks the node as an end
func WithTaken(ids ...api.TransitionID) CompleteOption {
	return func(o *completeOptions) {
		o.taken = ids
		o.chosen = true
	}
}

// InstanceCompleted reports whether the operation finished the instance
func (c *Completion) InstanceCompleted() bool {
	return c.Instance != nil && c.Instance.Status == api.InstanceCompleted
}

// Resolution returns the resolution made for a flow node definition, if
// any
func (c *Completion) Resolution(node api.FlowNodeID) (*Resolution, bool) {
	for _, r := range c.Resolutions {
		if r.FlowNode.DefinitionID == node {
			return r, true
		}
	}
	return nil, false
}

// Complete finishes an active flow node instance, applies the resulting
// token decision, and activates whatever follows
func (e *Engine) Complete(
	ctx context.Context, id api.ProcessInstanceID,
	fnID api.FlowNodeInstanceID, opts ...CompleteOption,
) (*Completion, error) {
	var o completeOptions
	for _, opt := range opts {
		opt(&o)
	}

	tx, err := e.instanceTx(ctx, id, func(tx *instanceTx) error {
		if err := tx.load(); err != nil {
			return err
		}
		fn, err := tx.FlowNode(fnID)
		if err != nil {
			return err
		}
		return performCalls(
			withArgs(tx.complete, fn, &o),
			tx.finish,
		)
	})
	if err != nil {
		return nil, err
	}
	return tx.result, nil
}

// complete resolves the completion of fn and moves its thread on through
// the selected outgoing transitions
func (tx *instanceTx) complete(
	fn *api.FlowNodeInstance, o *completeOptions,
) error {
	return tx.completeAt(fn, o, 0)
}

func (tx *instanceTx) completeAt(
	fn *api.FlowNodeInstance, o *completeOptions, depth int,
) error {
	if depth > tx.config.MaxGatewayDepth {
		return fmt.Errorf("%w: %s", ErrGatewayDepth, fn.DefinitionID)
	}
	if !flowNodeTransitions.CanTransition(fn.State, api.FlowNodeCompleted) {
		return fmt.Errorf("%w: %s (%s)", ErrFlowNodeNotActive, fn.ID, fn.State)
	}

	kind := tx.graph.Kind(fn.DefinitionID)
	out, err := tx.selectOutgoing(fn.DefinitionID, kind, o)
	if err != nil {
		return err
	}

	pol, err := tx.resolver.Complete(
		fn, kind, tx.graph.Topology(fn.DefinitionID, len(out)),
	)
	if err != nil {
		return err
	}

	fn.State = api.FlowNodeCompleted
	fn.CompletedAt = tx.now
	if err := tx.PutFlowNode(fn); err != nil {
		return err
	}
	tx.inst.Active--

	res := &Resolution{FlowNode: fn, Policy: *pol}
	tx.result.Resolutions = append(tx.result.Resolutions, res)
	logResolution(res)
	tx.emit(api.EventTypeFlowNodeCompleted, api.FlowNodeCompletedEvent{
		FlowNode: fn,
		Decision: pol.Decision,
	})

	if err := tx.applyDecision(fn, pol); err != nil {
		return err
	}
	return tx.follow(pol.Decision, out, depth)
}

func (tx *instanceTx) selectOutgoing(
	node api.FlowNodeID, kind flownode.Kind, o *completeOptions,
) ([]*api.TransitionDefinition, error) {
	if kind.IsAbsent() {
		return nil, nil
	}
	if o != nil && o.chosen {
		return definition.Select(tx.graph, node, o.taken)
	}
	return tx.router.Route(tx.graph, node)
}

// applyDecision records the token bookkeeping of a resolved completion:
// forked threads get tokens and merged branch threads are consumed
func (tx *instanceTx) applyDecision(
	fn *api.FlowNodeInstance, pol *merge.Policy,
) error {
	dec := pol.Decision
	if dec.Kind == api.DecisionJoin && dec.RefID == "" {
		return fmt.Errorf("%w: %s", ErrNoJoinAncestor, fn.DefinitionID)
	}

	if pol.MustConsumeInputToken {
		refs, ok := tx.consuming[fn.ID]
		if !ok {
			refs = []api.TokenRefID{fn.TokenRefID}
		}
		for _, ref := range refs {
			tx.DeleteToken(ref)
		}
		delete(tx.consuming, fn.ID)
	}

	if dec.Kind != api.DecisionCreate {
		return nil
	}
	for _, ref := range dec.Created {
		if err := tx.putToken(ref, dec.ParentRefID); err != nil {
			return err
		}
	}
	return nil
}

// follow moves the decided threads along the selected transitions
func (tx *instanceTx) follow(
	dec api.TokenDecision, out []*api.TransitionDefinition, depth int,
) error {
	if dec.Kind == api.DecisionNoToken {
		return nil
	}

	arrivals := make([]arrival, 0, len(out))
	for idx, tr := range out {
		ref, ok := dec.RefFor(idx)
		if !ok {
			return fmt.Errorf("%w: no thread for transition %s",
				ErrInvariantViolated, tr.ID)
		}
		node, ok := tx.graph.Node(tr.Target)
		if !ok {
			return fmt.Errorf("%w: unknown target %s",
				ErrInvariantViolated, tr.Target)
		}
		arrivals = append(arrivals, arrival{
			node: node,
			via:  tr,
			ref:  ref,
		})
	}
	return tx.enter(arrivals, depth)
}

// enter brings threads into their next nodes. Every plain node is
// instantiated before any join is evaluated or any gateway is passed, so
// a join always sees all branches that are still in flight
func (tx *instanceTx) enter(arrivals []arrival, depth int) error {
	var created []*api.FlowNodeInstance
	var joins []arrival
	for _, a := range arrivals {
		if tx.isJoin(a.node.ID) {
			joins = append(joins, a)
			continue
		}
		fn, err := tx.newFlowNode(a.node, a.ref, "")
		if err != nil {
			return err
		}
		created = append(created, fn)
	}

	if err := tx.arrive(joins, depth); err != nil {
		return err
	}

	for _, fn := range created {
		if !tx.passesThrough(fn.DefinitionID) {
			tx.result.Activated = append(tx.result.Activated, fn)
			continue
		}
		if err := tx.completeAt(fn, nil, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// passesThrough reports whether a node completes as soon as it is
// entered. Gateways and non-catching events need no outside trigger
func (tx *instanceTx) passesThrough(id api.FlowNodeID) bool {
	node, ok := tx.graph.Node(id)
	if !ok {
		return false
	}
	switch node.Type {
	case api.NodeGateway, api.NodeStartEvent, api.NodeEndEvent,
		api.NodeIntermediateThrowEvent:
		return true
	default:
		return false
	}
}

func (tx *instanceTx) newFlowNode(
	node *api.FlowNodeDefinition, ref api.TokenRefID,
	attachedTo api.FlowNodeInstanceID,
) (*api.FlowNodeInstance, error) {
	fn := &api.FlowNodeInstance{
		CreatedAt:         tx.now,
		ID:                api.FlowNodeInstanceID(uuid.New().String()),
		ProcessInstanceID: tx.id,
		DefinitionID:      node.ID,
		Name:              node.Name,
		TokenRefID:        ref,
		State:             api.FlowNodeActive,
		AttachedTo:        attachedTo,
	}
	if err := tx.PutFlowNode(fn); err != nil {
		return nil, err
	}
	tx.inst.Active++
	tx.emit(api.EventTypeFlowNodeActivated, api.FlowNodeActivatedEvent{
		FlowNode: fn,
	})
	return fn, nil
}

func (tx *instanceTx) abort(fn *api.FlowNodeInstance) error {
	if !flowNodeTransitions.CanTransition(fn.State, api.FlowNodeAborted) {
		return fmt.Errorf("%w: %s (%s)", ErrFlowNodeNotActive, fn.ID, fn.State)
	}
	fn.State = api.FlowNodeAborted
	fn.CompletedAt = tx.now
	if err := tx.PutFlowNode(fn); err != nil {
		return err
	}
	tx.inst.Active--
	tx.result.Aborted = append(tx.result.Aborted, fn)
	tx.emit(api.EventTypeFlowNodeAborted, api.FlowNodeAbortedEvent{
		FlowNode: fn,
	})
	return nil
}
