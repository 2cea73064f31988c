package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kode4food/bpmnflow/pkg/api"
	"github.com/kode4food/bpmnflow/pkg/log"
)

// StartInstance creates a process instance of a deployed definition on a
// fresh root thread and enters its start nodes. An empty id is replaced by
// a generated one
func (e *Engine) StartInstance(
	ctx context.Context, defID api.DefinitionID, id api.ProcessInstanceID,
) (*Completion, error) {
	g, err := e.Graph(ctx, defID)
	if err != nil {
		return nil, err
	}
	starts := g.StartNodes()
	if len(starts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoStartNodes, defID)
	}
	if id == "" {
		id = api.ProcessInstanceID(uuid.New().String())
	}

	tx, err := e.instanceTx(ctx, id, func(tx *instanceTx) error {
		if _, err := tx.Instance(); err == nil {
			return fmt.Errorf("%w: %s", ErrInstanceExists, id)
		} else if !errors.Is(err, api.ErrInstanceNotFound) {
			return err
		}

		root := tx.newRefID()
		tx.graph = g
		tx.inst = &api.ProcessInstance{
			CreatedAt:    tx.now,
			ID:           id,
			DefinitionID: defID,
			Status:       api.InstanceActive,
			RootRefID:    root,
		}
		tx.result.Instance = tx.inst
		if err := tx.putToken(root, ""); err != nil {
			return err
		}
		tx.emit(api.EventTypeInstanceStarted, api.InstanceStartedEvent{
			InstanceID:   id,
			DefinitionID: defID,
			RootRefID:    root,
		})

		arrivals := make([]arrival, 0, len(starts))
		for _, n := range starts {
			arrivals = append(arrivals, arrival{node: n, ref: root})
		}
		return performCalls(
			withArgs(tx.enter, arrivals, 0),
			tx.finish,
		)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Process instance started",
		log.InstanceID(id),
		slog.String("definition_id", string(defID)),
		slog.Int("activated", len(tx.result.Activated)))
	return tx.result, nil
}

// TriggerBoundary fires a boundary event attached to an active activity.
// The event runs on the activity's thread; an interrupting event aborts
// the activity first, a non-interrupting one forks an independent thread
func (e *Engine) TriggerBoundary(
	ctx context.Context, id api.ProcessInstanceID,
	activityID api.FlowNodeInstanceID, boundary api.FlowNodeID,
) (*Completion, error) {
	tx, err := e.instanceTx(ctx, id, func(tx *instanceTx) error {
		if err := tx.load(); err != nil {
			return err
		}
		act, err := tx.FlowNode(activityID)
		if err != nil {
			return err
		}
		if act.State != api.FlowNodeActive {
			return fmt.Errorf("%w: %s (%s)",
				ErrFlowNodeNotActive, act.ID, act.State)
		}

		node, ok := tx.graph.Node(boundary)
		kind := tx.graph.Kind(boundary)
		if !ok || !kind.IsBoundaryEvent() ||
			node.AttachedTo != act.DefinitionID {
			return fmt.Errorf("%w: %s on %s",
				ErrBoundaryNotFound, boundary, act.DefinitionID)
		}

		fn, err := tx.newFlowNode(node, act.TokenRefID, act.ID)
		if err != nil {
			return err
		}
		if kind.IsInterrupting() {
			if err := tx.abort(act); err != nil {
				return err
			}
		}
		return performCalls(
			func() error { return tx.complete(fn, nil) },
			tx.finish,
		)
	})
	if err != nil {
		return nil, err
	}
	return tx.result, nil
}

// TriggerEventSubProcess starts an event sub-process of an active
// instance on a fresh root thread
func (e *Engine) TriggerEventSubProcess(
	ctx context.Context, id api.ProcessInstanceID, node api.FlowNodeID,
) (*Completion, error) {
	tx, err := e.instanceTx(ctx, id, func(tx *instanceTx) error {
		if err := tx.load(); err != nil {
			return err
		}
		def, ok := tx.graph.Node(node)
		if !ok || !tx.graph.Kind(node).IsEventSubProcess() {
			return fmt.Errorf("%w: %s", ErrNotEventSubProcess, node)
		}

		root := tx.newRefID()
		if err := tx.putToken(root, ""); err != nil {
			return err
		}
		return performCalls(
			withArgs(tx.enter, []arrival{{node: def, ref: root}}, 0),
			tx.finish,
		)
	})
	if err != nil {
		return nil, err
	}
	return tx.result, nil
}

// Abort interrupts every active flow node and ends the instance
func (e *Engine) Abort(
	ctx context.Context, id api.ProcessInstanceID,
) (*Completion, error) {
	tx, err := e.instanceTx(ctx, id, func(tx *instanceTx) error {
		if err := tx.load(); err != nil {
			return err
		}
		nodes, err := tx.FlowNodes()
		if err != nil {
			return err
		}
		for _, fn := range nodes {
			if fn.State != api.FlowNodeActive {
				continue
			}
			if err := tx.abort(fn); err != nil {
				return err
			}
		}
		if err := tx.finishInstance(api.InstanceAborted); err != nil {
			return err
		}
		return tx.PutInstance(tx.inst)
	})
	if err != nil {
		return nil, err
	}
	return tx.result, nil
}
