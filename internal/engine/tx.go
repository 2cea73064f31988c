package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kode4food/bpmnflow/internal/config"
	"github.com/kode4food/bpmnflow/internal/definition"
	"github.com/kode4food/bpmnflow/internal/engine/event"
	"github.com/kode4food/bpmnflow/internal/merge"
	"github.com/kode4food/bpmnflow/internal/store"
	"github.com/kode4food/bpmnflow/pkg/api"
	"github.com/kode4food/bpmnflow/pkg/log"
)

type (
	// instanceTx is one attempt at changing a process instance. It is
	// discarded when the store reports a conflict
	instanceTx struct {
		*Engine
		store.Tx
		ctx       context.Context
		id        api.ProcessInstanceID
		inst      *api.ProcessInstance
		graph     *definition.Graph
		resolver  *merge.Resolver
		result    *Completion
		events    []event.Event
		consuming map[api.FlowNodeInstanceID][]api.TokenRefID
		now       time.Time
	}

	backoffCalculator func(baseDelay int64, retryCount int) int64
)

var (
	ErrInvariantViolated  = errors.New("engine invariant violated")
	ErrInstanceExists     = errors.New("process instance exists")
	ErrInstanceNotActive  = errors.New("process instance not active")
	ErrInstanceActive     = errors.New("process instance still active")
	ErrFlowNodeNotActive  = errors.New("flow node instance not active")
	ErrGatewayDepth       = errors.New("gateway pass-through depth exceeded")
	ErrNoJoinAncestor     = errors.New("join has no parent thread")
	ErrNoStartNodes       = errors.New("process definition has no start")
	ErrNotEventSubProcess = errors.New("flow node is not an event sub-process")
	ErrBoundaryNotFound   = errors.New("boundary event not attached to node")
)

var backoffCalculators = map[string]backoffCalculator{
	config.BackoffTypeFixed: func(base int64, _ int) int64 {
		return base
	},
	config.BackoffTypeLinear: func(base int64, count int) int64 {
		return base * int64(count+1)
	},
	config.BackoffTypeExponential: func(base int64, count int) int64 {
		multiplier := math.Pow(2, float64(count))
		return int64(float64(base) * multiplier)
	},
}

// instanceTx runs fn in a store transaction for the instance, retrying
// the whole attempt while the store reports conflicts. Events raised by
// the successful attempt are published once it has committed
func (e *Engine) instanceTx(
	ctx context.Context, id api.ProcessInstanceID, fn func(*instanceTx) error,
) (*instanceTx, error) {
	for attempt := 0; ; attempt++ {
		tx, err := e.tryInstanceTx(ctx, id, fn)
		if err == nil {
			e.publish(ctx, id, tx.events)
			return tx, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		if attempt >= e.config.Retry.MaxRetries {
			return nil, fmt.Errorf("%w: %s after %d attempts",
				err, id, attempt+1)
		}

		delay := e.retryDelay(attempt)
		slog.Debug("Retrying instance transaction",
			log.InstanceID(id),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (e *Engine) tryInstanceTx(
	ctx context.Context, id api.ProcessInstanceID, fn func(*instanceTx) error,
) (*instanceTx, error) {
	var res *instanceTx
	err := e.store.Atomic(ctx, id, func(stx store.Tx) error {
		res = &instanceTx{
			Engine:    e,
			Tx:        stx,
			ctx:       ctx,
			id:        id,
			result:    &Completion{},
			consuming: map[api.FlowNodeInstanceID][]api.TokenRefID{},
			now:       e.Now(),
		}
		res.resolver = merge.NewResolver(merge.Context{
			Lookup:   stx.Token,
			NewRefID: e.newRefID,
		})
		return fn(res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) retryDelay(attempt int) time.Duration {
	cfg := e.config.Retry
	calculator, ok := backoffCalculators[cfg.BackoffType]
	if !ok {
		calculator = backoffCalculators[config.BackoffTypeFixed]
	}
	delay := min(calculator(cfg.InitBackoff, attempt), cfg.MaxBackoff)
	return time.Duration(delay) * time.Millisecond
}

// load reads the instance header and its definition graph. The instance
// must still be active
func (tx *instanceTx) load() error {
	inst, err := tx.Instance()
	if err != nil {
		return err
	}
	if inst.Status != api.InstanceActive {
		return fmt.Errorf("%w: %s (%s)",
			ErrInstanceNotActive, inst.ID, inst.Status)
	}
	g, err := tx.Graph(tx.ctx, inst.DefinitionID)
	if err != nil {
		return err
	}
	tx.inst = inst
	tx.graph = g
	tx.result.Instance = inst
	return nil
}

// finish fires any inclusive join that can no longer receive another
// branch, completes the instance once nothing is active, and writes the
// instance header
func (tx *instanceTx) finish() error {
	if err := tx.settleJoins(); err != nil {
		return err
	}
	if tx.inst.Active < 0 {
		return fmt.Errorf("%w: negative active count for %s",
			ErrInvariantViolated, tx.inst.ID)
	}
	if tx.inst.Active == 0 && tx.inst.Status == api.InstanceActive {
		if err := tx.finishInstance(api.InstanceCompleted); err != nil {
			return err
		}
		if len(tx.result.Waiting) != 0 {
			slog.Warn("Instance completed with branches waiting at joins",
				log.InstanceID(tx.inst.ID),
				slog.Int("waiting", len(tx.result.Waiting)))
		}
	}
	return tx.PutInstance(tx.inst)
}

func (tx *instanceTx) finishInstance(status api.InstanceStatus) error {
	if !instanceTransitions.CanTransition(tx.inst.Status, status) {
		return fmt.Errorf("%w: %s (%s -> %s)",
			ErrInstanceNotActive, tx.inst.ID, tx.inst.Status, status)
	}
	tx.inst.Status = status
	tx.inst.CompletedAt = tx.now

	typ := api.EventTypeInstanceCompleted
	if status == api.InstanceAborted {
		typ = api.EventTypeInstanceAborted
	}
	tx.emit(typ, api.InstanceFinishedEvent{
		InstanceID: tx.inst.ID,
		Status:     status,
	})
	slog.Info("Process instance finished",
		log.InstanceID(tx.inst.ID),
		log.Status(status))
	return nil
}

func (tx *instanceTx) putToken(ref, parent api.TokenRefID) error {
	return tx.PutToken(&api.Token{
		CreatedAt:         tx.now,
		ID:                api.TokenID(uuid.New().String()),
		RefID:             ref,
		ParentRefID:       parent,
		ProcessInstanceID: tx.id,
	})
}

func (tx *instanceTx) emit(typ api.EventType, data any) {
	tx.events = append(tx.events, event.Event{
		Type:       typ,
		InstanceID: tx.id,
		Data:       data,
	})
}
