package engine

import (
	"github.com/kode4food/bpmnflow/pkg/api"
	"github.com/kode4food/bpmnflow/pkg/util"
)

// StateTransitions maps states to their set of valid next states
type StateTransitions[T comparable] map[T]util.Set[T]

var (
	instanceTransitions = StateTransitions[api.InstanceStatus]{
		api.InstanceActive: util.SetOf(
			api.InstanceCompleted,
			api.InstanceAborted,
		),
		api.InstanceCompleted: {},
		api.InstanceAborted:   {},
	}

	flowNodeTransitions = StateTransitions[api.FlowNodeState]{
		api.FlowNodeActive: util.SetOf(
			api.FlowNodeCompleted,
			api.FlowNodeAborted,
		),
		api.FlowNodeCompleted: {},
		api.FlowNodeAborted:   {},
	}
)

// CanTransition returns whether transition from one state to another is valid
func (t StateTransitions[T]) CanTransition(from, to T) bool {
	allowed, ok := t[from]
	if !ok {
		return false
	}
	return allowed.Contains(to)
}

// IsTerminal returns true if the state has no valid transitions
func (t StateTransitions[T]) IsTerminal(state T) bool {
	allowed, ok := t[state]
	return ok && allowed.IsEmpty()
}
