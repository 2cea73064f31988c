package api

type (
	// EventType identifies the kind of engine event
	EventType string

	// InstanceStartedEvent is emitted when a process instance begins
	InstanceStartedEvent struct {
		InstanceID   ProcessInstanceID `json:"instance_id"`
		DefinitionID DefinitionID      `json:"definition_id"`
		RootRefID    TokenRefID        `json:"root_ref_id"`
	}

	// InstanceFinishedEvent is emitted when a process instance reaches a
	// terminal status
	InstanceFinishedEvent struct {
		InstanceID ProcessInstanceID `json:"instance_id"`
		Status     InstanceStatus    `json:"status"`
	}

	// FlowNodeActivatedEvent is emitted when a flow node instance is created
	FlowNodeActivatedEvent struct {
		FlowNode *FlowNodeInstance `json:"flow_node"`
	}

	// FlowNodeCompletedEvent is emitted once the token decision for a
	// completed flow node instance has been applied
	FlowNodeCompletedEvent struct {
		FlowNode *FlowNodeInstance `json:"flow_node"`
		Decision TokenDecision     `json:"decision"`
	}

	// FlowNodeAbortedEvent is emitted when an active flow node instance is
	// interrupted
	FlowNodeAbortedEvent struct {
		FlowNode *FlowNodeInstance `json:"flow_node"`
	}

	// JoinEvent is emitted when a branch waits at a join gateway and again
	// when the join fires
	JoinEvent struct {
		InstanceID ProcessInstanceID `json:"instance_id"`
		Join       *JoinState        `json:"join"`
	}

	// InstanceDeletedEvent is emitted when an instance leaves the store
	InstanceDeletedEvent struct {
		InstanceID ProcessInstanceID `json:"instance_id"`
		Archived   bool              `json:"archived"`
	}
)

const (
	EventTypeInstanceStarted   EventType = "instance_started"
	EventTypeInstanceCompleted EventType = "instance_completed"
	EventTypeInstanceAborted   EventType = "instance_aborted"
	EventTypeInstanceDeleted   EventType = "instance_deleted"
	EventTypeFlowNodeActivated EventType = "flow_node_activated"
	EventTypeFlowNodeCompleted EventType = "flow_node_completed"
	EventTypeFlowNodeAborted   EventType = "flow_node_aborted"
	EventTypeJoinWaiting       EventType = "join_waiting"
	EventTypeJoinFired         EventType = "join_fired"
)
