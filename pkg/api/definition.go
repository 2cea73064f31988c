package api

import (
	"errors"
	"fmt"

	"github.com/kode4food/bpmnflow/pkg/util"
)

type (
	// NodeType is the BPMN element kind of a flow node definition
	NodeType string

	// GatewayType is the routing behavior of a gateway
	GatewayType string

	// ProcessDefinition is a deployed process graph. It is static for the
	// lifetime of a deployed version
	ProcessDefinition struct {
		ID          DefinitionID            `json:"id"`
		Name        string                  `json:"name"`
		Version     int                     `json:"version"`
		Nodes       []*FlowNodeDefinition   `json:"nodes"`
		Transitions []*TransitionDefinition `json:"transitions"`
	}

	// FlowNodeDefinition describes one node of the process graph.
	// GatewayType only applies to gateways, Interrupting only to catch
	// events, and TriggeredByEvent only to sub-processes
	FlowNodeDefinition struct {
		ID               FlowNodeID  `json:"id"`
		Name             string      `json:"name"`
		Type             NodeType    `json:"type"`
		GatewayType      GatewayType `json:"gateway_type,omitempty"`
		Interrupting     bool        `json:"interrupting,omitempty"`
		TriggeredByEvent bool        `json:"triggered_by_event,omitempty"`
		AttachedTo       FlowNodeID  `json:"attached_to,omitempty"`
	}

	// TransitionDefinition connects two flow nodes. Condition references a
	// guard expression evaluated outside of this engine
	TransitionDefinition struct {
		ID        TransitionID `json:"id"`
		Source    FlowNodeID   `json:"source"`
		Target    FlowNodeID   `json:"target"`
		Condition string       `json:"condition,omitempty"`
		IsDefault bool         `json:"is_default,omitempty"`
	}
)

const (
	NodeTask                   NodeType = "task"
	NodeUserTask               NodeType = "user_task"
	NodeServiceTask            NodeType = "service_task"
	NodeGateway                NodeType = "gateway"
	NodeStartEvent             NodeType = "start_event"
	NodeEndEvent               NodeType = "end_event"
	NodeIntermediateCatchEvent NodeType = "intermediate_catch_event"
	NodeIntermediateThrowEvent NodeType = "intermediate_throw_event"
	NodeBoundaryEvent          NodeType = "boundary_event"
	NodeSubProcess             NodeType = "sub_process"
	NodeCallActivity           NodeType = "call_activity"

	GatewayParallel  GatewayType = "parallel"
	GatewayInclusive GatewayType = "inclusive"
	GatewayExclusive GatewayType = "exclusive"
)

var (
	ErrDefinitionIDEmpty    = errors.New("definition ID empty")
	ErrDefinitionIDInvalid  = errors.New("definition ID invalid")
	ErrNodeIDEmpty          = errors.New("flow node ID empty")
	ErrDuplicateNode        = errors.New("duplicate flow node")
	ErrInvalidNodeType      = errors.New("invalid flow node type")
	ErrInvalidGatewayType   = errors.New("invalid gateway type")
	ErrTransitionIDEmpty    = errors.New("transition ID empty")
	ErrDuplicateTransition  = errors.New("duplicate transition")
	ErrUnknownTransitionEnd = errors.New("transition references unknown node")
	ErrUnknownAttachment    = errors.New("boundary event attached to unknown node")
)

var (
	validNodeTypes = util.SetOf(
		NodeTask,
		NodeUserTask,
		NodeServiceTask,
		NodeGateway,
		NodeStartEvent,
		NodeEndEvent,
		NodeIntermediateCatchEvent,
		NodeIntermediateThrowEvent,
		NodeBoundaryEvent,
		NodeSubProcess,
		NodeCallActivity,
	)

	validGatewayTypes = util.SetOf(
		GatewayParallel,
		GatewayInclusive,
		GatewayExclusive,
	)

	catchEventTypes = util.SetOf(
		NodeStartEvent,
		NodeIntermediateCatchEvent,
		NodeBoundaryEvent,
	)
)

// IsCatchEvent returns true for node types that wait on a trigger and may
// therefore be interrupting
func (t NodeType) IsCatchEvent() bool {
	return catchEventTypes.Contains(t)
}

// Validate checks the structural integrity of the definition: IDs are
// present and unique, node and gateway types are known, and every transition
// and attachment refers to a declared node
func (d *ProcessDefinition) Validate() error {
	if d.ID == "" {
		return ErrDefinitionIDEmpty
	}
	if !IsValidID(d.ID) {
		return fmt.Errorf("%w: %s", ErrDefinitionIDInvalid, d.ID)
	}

	nodes := util.Set[FlowNodeID]{}
	for _, n := range d.Nodes {
		if err := n.Validate(); err != nil {
			return err
		}
		if nodes.Contains(n.ID) {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		nodes.Add(n.ID)
	}

	for _, n := range d.Nodes {
		if n.AttachedTo != "" && !nodes.Contains(n.AttachedTo) {
			return fmt.Errorf("%w: %s -> %s",
				ErrUnknownAttachment, n.ID, n.AttachedTo)
		}
	}

	transitions := util.Set[TransitionID]{}
	for _, tr := range d.Transitions {
		if tr.ID == "" {
			return ErrTransitionIDEmpty
		}
		if transitions.Contains(tr.ID) {
			return fmt.Errorf("%w: %s", ErrDuplicateTransition, tr.ID)
		}
		transitions.Add(tr.ID)
		if !nodes.Contains(tr.Source) || !nodes.Contains(tr.Target) {
			return fmt.Errorf("%w: %s (%s -> %s)",
				ErrUnknownTransitionEnd, tr.ID, tr.Source, tr.Target)
		}
	}
	return nil
}

// Validate checks that the node has an ID and a known type
func (n *FlowNodeDefinition) Validate() error {
	if n.ID == "" {
		return ErrNodeIDEmpty
	}
	if !validNodeTypes.Contains(n.Type) {
		return fmt.Errorf("%w: %s (%s)", ErrInvalidNodeType, n.ID, n.Type)
	}
	if n.Type == NodeGateway && !validGatewayTypes.Contains(n.GatewayType) {
		return fmt.Errorf("%w: %s (%s)",
			ErrInvalidGatewayType, n.ID, n.GatewayType)
	}
	return nil
}
