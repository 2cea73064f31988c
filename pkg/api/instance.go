package api

import "time"

type (
	// InstanceStatus is the lifecycle state of a process instance
	InstanceStatus string

	// FlowNodeState is the lifecycle state of a flow node instance
	FlowNodeState string

	// ProcessInstance is the header record of a running process
	ProcessInstance struct {
		CreatedAt    time.Time         `json:"created_at"`
		CompletedAt  time.Time         `json:"completed_at,omitempty"`
		ID           ProcessInstanceID `json:"id"`
		DefinitionID DefinitionID      `json:"definition_id"`
		Status       InstanceStatus    `json:"status"`
		RootRefID    TokenRefID        `json:"root_ref_id"`
		Active       int               `json:"active"`
	}

	// FlowNodeInstance is one activation of a flow node on a given thread.
	// Once completed it is never changed again
	FlowNodeInstance struct {
		CreatedAt         time.Time          `json:"created_at"`
		CompletedAt       time.Time          `json:"completed_at,omitempty"`
		ID                FlowNodeInstanceID `json:"id"`
		ProcessInstanceID ProcessInstanceID  `json:"process_instance_id"`
		DefinitionID      FlowNodeID         `json:"definition_id"`
		Name              string             `json:"name"`
		TokenRefID        TokenRefID         `json:"token_ref_id"`
		State             FlowNodeState      `json:"state"`
		AttachedTo        FlowNodeInstanceID `json:"attached_to,omitempty"`
	}
)

const (
	InstanceActive    InstanceStatus = "active"
	InstanceCompleted InstanceStatus = "completed"
	InstanceAborted   InstanceStatus = "aborted"

	FlowNodeActive    FlowNodeState = "active"
	FlowNodeCompleted FlowNodeState = "completed"
	FlowNodeAborted   FlowNodeState = "aborted"
)
