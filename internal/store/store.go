package store

import (
	"context"
	"errors"
	"time"

	"github.com/kode4food/bpmnflow/pkg/api"
)

type (
	// Store is the durable home of process state
	Store interface {
		// Atomic runs fn inside a transaction scoped to one process
		// instance. Writes made by fn become visible to later reads in the
		// same transaction and are committed together when fn returns nil.
		// If another transaction committed against the instance first,
		// nothing is written and ErrConflict is returned
		Atomic(ctx context.Context, id api.ProcessInstanceID, fn TxFunc) error

		PutDefinition(ctx context.Context, def *api.ProcessDefinition) error
		GetDefinition(
			ctx context.Context, id api.DefinitionID,
		) (*api.ProcessDefinition, error)

		// Finished lists instances that reached a terminal status before
		// the given time, oldest first
		Finished(
			ctx context.Context, before time.Time, limit int,
		) ([]api.ProcessInstanceID, error)

		// MemoryUsage reports the used and maximum memory of the backing
		// database. A zero max means no limit is configured
		MemoryUsage(ctx context.Context) (used, max int64, err error)

		Close() error
	}

	// TxFunc is the body of an Atomic transaction
	TxFunc func(Tx) error

	// Tx is the view of one process instance inside a transaction
	Tx interface {
		Instance() (*api.ProcessInstance, error)
		PutInstance(*api.ProcessInstance) error

		Token(api.TokenRefID) (*api.Token, error)
		PutToken(*api.Token) error
		DeleteToken(api.TokenRefID)
		Tokens() ([]*api.Token, error)

		FlowNode(api.FlowNodeInstanceID) (*api.FlowNodeInstance, error)
		PutFlowNode(*api.FlowNodeInstance) error
		FlowNodes() ([]*api.FlowNodeInstance, error)

		// Join returns the pending join state, or nil if no branch has
		// arrived yet
		Join(api.FlowNodeID, api.TokenRefID) (*api.JoinState, error)
		PutJoin(*api.JoinState) error
		DeleteJoin(api.FlowNodeID, api.TokenRefID)
		Joins() ([]*api.JoinState, error)

		// Delete removes every record of the instance when the
		// transaction commits, including its finished index entry
		Delete()
	}
)

var (
	// ErrConflict is returned when a concurrent transaction modified the
	// process instance first. The whole unit of work may be retried
	ErrConflict = errors.New("concurrent modification of process instance")

	ErrDefinitionRequired = errors.New("process definition required")
)
