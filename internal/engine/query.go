package engine

import (
	"context"

	"github.com/kode4food/bpmnflow/internal/archive"
	"github.com/kode4food/bpmnflow/internal/store"
	"github.com/kode4food/bpmnflow/pkg/api"
)

// GetInstance returns the header record of a process instance
func (e *Engine) GetInstance(
	ctx context.Context, id api.ProcessInstanceID,
) (*api.ProcessInstance, error) {
	var res *api.ProcessInstance
	err := e.store.Atomic(ctx, id, func(tx store.Tx) error {
		var err error
		res, err = tx.Instance()
		return err
	})
	return res, err
}

// GetToken returns the token standing for a thread of a process instance
func (e *Engine) GetToken(
	ctx context.Context, id api.ProcessInstanceID, ref api.TokenRefID,
) (*api.Token, error) {
	var res *api.Token
	err := e.store.Atomic(ctx, id, func(tx store.Tx) error {
		var err error
		res, err = tx.Token(ref)
		return err
	})
	return res, err
}

// ListTokens returns the live tokens of a process instance, oldest first
func (e *Engine) ListTokens(
	ctx context.Context, id api.ProcessInstanceID,
) ([]*api.Token, error) {
	rec, err := e.snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Tokens, nil
}

// ListFlowNodes returns every flow node instance of a process instance,
// oldest first
func (e *Engine) ListFlowNodes(
	ctx context.Context, id api.ProcessInstanceID,
) ([]*api.FlowNodeInstance, error) {
	rec, err := e.snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.FlowNodes, nil
}

// ListJoins returns the branches still waiting at join gateways
func (e *Engine) ListJoins(
	ctx context.Context, id api.ProcessInstanceID,
) ([]*api.JoinState, error) {
	rec, err := e.snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Joins, nil
}

// snapshot reads the complete state of an instance in one consistent view
func (e *Engine) snapshot(
	ctx context.Context, id api.ProcessInstanceID,
) (*archive.Record, error) {
	var res *archive.Record
	err := e.store.Atomic(ctx, id, func(tx store.Tx) error {
		var err error
		res, err = e.readRecord(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) readRecord(tx store.Tx) (*archive.Record, error) {
	res := &archive.Record{ArchivedAt: e.Now()}
	err := performCalls(
		func() (err error) {
			res.Instance, err = tx.Instance()
			return
		},
		func() (err error) {
			res.Tokens, err = tx.Tokens()
			return
		},
		func() (err error) {
			res.FlowNodes, err = tx.FlowNodes()
			return
		},
		func() (err error) {
			res.Joins, err = tx.Joins()
			return
		},
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}
