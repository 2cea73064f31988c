package api

import "time"

type (
	// InstanceHistory is the journaled account of a process instance. It
	// outlives the instance's live records until it is archived
	InstanceHistory struct {
		StartedAt    time.Time            `json:"started_at"`
		FinishedAt   time.Time            `json:"finished_at,omitempty"`
		InstanceID   ProcessInstanceID    `json:"instance_id"`
		DefinitionID DefinitionID         `json:"definition_id"`
		Status       InstanceStatus       `json:"status"`
		Deleted      bool                 `json:"deleted,omitempty"`
		Steps        []*HistoryStep       `json:"steps"`
		Decisions    map[DecisionKind]int `json:"decisions"`
		JoinsFired   int                  `json:"joins_fired"`
	}

	// HistoryStep is one journaled engine event
	HistoryStep struct {
		At                 time.Time          `json:"at"`
		Type               EventType          `json:"type"`
		FlowNode           FlowNodeID         `json:"flow_node,omitempty"`
		FlowNodeInstanceID FlowNodeInstanceID `json:"flow_node_instance_id,omitempty"`
		TokenRefID         TokenRefID         `json:"token_ref_id,omitempty"`
		Decision           DecisionKind       `json:"decision,omitempty"`
	}
)
