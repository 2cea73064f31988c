package engine

import (
	"fmt"
	"log/slog"

	"github.com/kode4food/bpmnflow/internal/flownode"
	"github.com/kode4food/bpmnflow/pkg/api"
	"github.com/kode4food/bpmnflow/pkg/log"
	"github.com/kode4food/bpmnflow/pkg/util"
)

// isJoin reports whether entering the node means waiting for sibling
// branches: a parallel or inclusive gateway merging several transitions
func (tx *instanceTx) isJoin(id api.FlowNodeID) bool {
	return tx.graph.Kind(id).GatewayIsParallelOrInclusive() &&
		len(tx.graph.Incoming(id)) > 1
}

// joinKey identifies the pending join of one gateway for one parent thread
type joinKey struct {
	gateway api.FlowNodeID
	parent  api.TokenRefID
}

// arrive records branches at join gateways. Branches are grouped by the
// parent of their thread. Every arrival of the batch is recorded before
// any group is evaluated, so siblings reaching a join together fire it
// once, on the thread of the last arrival
func (tx *instanceTx) arrive(arrivals []arrival, depth int) error {
	var keys []joinKey
	seen := util.Set[joinKey]{}
	for _, a := range arrivals {
		key, err := tx.record(a)
		if err != nil {
			return err
		}
		if !seen.Contains(key) {
			seen.Add(key)
			keys = append(keys, key)
		}
	}

	for _, key := range keys {
		js, err := tx.Join(key.gateway, key.parent)
		if err != nil {
			return err
		}
		if js == nil {
			continue
		}
		ready, err := tx.joinReady(js)
		if err != nil {
			return err
		}
		if !ready {
			tx.wait(js)
			continue
		}
		if err := tx.fire(js, depth); err != nil {
			return err
		}
	}
	return nil
}

// record adds one arriving branch to the join state of its gateway and
// parent thread
func (tx *instanceTx) record(a arrival) (joinKey, error) {
	tkn, err := tx.Token(a.ref)
	if err != nil {
		return joinKey{}, fmt.Errorf("join %s: %w", a.node.ID, err)
	}
	key := joinKey{gateway: a.node.ID, parent: tkn.ParentRefID}

	js, err := tx.Join(key.gateway, key.parent)
	if err != nil {
		return joinKey{}, err
	}
	if js == nil {
		js = &api.JoinState{
			Gateway:     key.gateway,
			ParentRefID: key.parent,
		}
	}

	var via api.TransitionID
	if a.via != nil {
		via = a.via.ID
	}
	js.Arrivals = append(js.Arrivals, api.JoinArrival{
		ArrivedAt:  tx.now,
		Transition: via,
		RefID:      a.ref,
	})
	return key, tx.PutJoin(js)
}

func (tx *instanceTx) wait(js *api.JoinState) {
	tx.forgetWaiting(js)
	tx.result.Waiting = append(tx.result.Waiting, js)
	tx.emit(api.EventTypeJoinWaiting, api.JoinEvent{
		InstanceID: tx.id,
		Join:       js,
	})
	slog.Debug("Branch waiting at join",
		log.InstanceID(tx.id),
		log.FlowNodeID(js.Gateway),
		log.TokenRef(js.ParentRefID),
		slog.Int("arrived", len(js.Arrivals)))
}

// fire instantiates the join gateway on the last arriving thread and
// passes it. The gateway's resolution collapses the waiting branches into
// their parent and consumes their tokens
func (tx *instanceTx) fire(js *api.JoinState, depth int) error {
	node, ok := tx.graph.Node(js.Gateway)
	if !ok {
		return fmt.Errorf("%w: unknown join %s",
			ErrInvariantViolated, js.Gateway)
	}

	tx.DeleteJoin(js.Gateway, js.ParentRefID)
	tx.forgetWaiting(js)
	tx.emit(api.EventTypeJoinFired, api.JoinEvent{
		InstanceID: tx.id,
		Join:       js,
	})

	last := js.Arrivals[len(js.Arrivals)-1].RefID
	fn, err := tx.newFlowNode(node, last, "")
	if err != nil {
		return err
	}
	tx.consuming[fn.ID] = js.Refs()
	return tx.completeAt(fn, nil, depth+1)
}

func (tx *instanceTx) joinReady(js *api.JoinState) (bool, error) {
	kind := tx.graph.Kind(js.Gateway)
	node, ok := kind.(flownode.Node)
	if !ok {
		return false, nil
	}
	switch node.Gateway {
	case flownode.Parallel:
		return tx.allIncomingArrived(js), nil
	case flownode.Inclusive:
		busy, err := tx.branchesInFlight(js)
		return !busy, err
	default:
		return false, nil
	}
}

// allIncomingArrived is the parallel join condition: a branch has come in
// through every incoming transition
func (tx *instanceTx) allIncomingArrived(js *api.JoinState) bool {
	for _, tr := range tx.graph.Incoming(js.Gateway) {
		if !js.Arrived(tr.ID) {
			return false
		}
	}
	return true
}

// branchesInFlight is the inclusive join condition. It reports whether an
// active flow node still runs on a branch forked from the join's parent
// thread that has not arrived yet
func (tx *instanceTx) branchesInFlight(js *api.JoinState) (bool, error) {
	tokens, err := tx.Tokens()
	if err != nil {
		return false, err
	}
	parents := make(map[api.TokenRefID]api.TokenRefID, len(tokens))
	for _, t := range tokens {
		parents[t.RefID] = t.ParentRefID
	}

	nodes, err := tx.FlowNodes()
	if err != nil {
		return false, err
	}
	for _, fn := range nodes {
		if fn.State != api.FlowNodeActive {
			continue
		}
		branch, ok := branchOf(parents, fn.TokenRefID, js.ParentRefID)
		if ok && !js.HasRef(branch) {
			return true, nil
		}
	}
	return false, nil
}

// branchOf walks up from ref to the thread forked directly from parent
func branchOf(
	parents map[api.TokenRefID]api.TokenRefID, ref, parent api.TokenRefID,
) (api.TokenRefID, bool) {
	seen := util.Set[api.TokenRefID]{}
	for cur := ref; cur != "" && !seen.Contains(cur); {
		seen.Add(cur)
		up, ok := parents[cur]
		if !ok {
			return "", false
		}
		if up == parent {
			return cur, true
		}
		cur = up
	}
	return "", false
}

// settleJoins fires inclusive joins that no remaining branch can reach
// anymore, for example because a sibling branch ended elsewhere
func (tx *instanceTx) settleJoins() error {
	for {
		joins, err := tx.Joins()
		if err != nil {
			return err
		}
		fired := false
		for _, js := range joins {
			if !isInclusive(tx.graph.Kind(js.Gateway)) {
				continue
			}
			ready, err := tx.joinReady(js)
			if err != nil {
				return err
			}
			if !ready {
				continue
			}
			if err := tx.fire(js, 0); err != nil {
				return err
			}
			fired = true
			break
		}
		if !fired {
			return nil
		}
	}
}

func isInclusive(k flownode.Kind) bool {
	node, ok := k.(flownode.Node)
	return ok && node.Gateway == flownode.Inclusive
}

func (tx *instanceTx) forgetWaiting(js *api.JoinState) {
	res := tx.result.Waiting[:0]
	for _, w := range tx.result.Waiting {
		if w.Gateway == js.Gateway && w.ParentRefID == js.ParentRefID {
			continue
		}
		res = append(res, w)
	}
	tx.result.Waiting = res
}
