package builder

import (
	"slices"

	"github.com/kode4food/bpmnflow/pkg/api"
)

// Process builds an api.ProcessDefinition
type Process struct {
	id          api.DefinitionID
	name        string
	version     int
	nodes       []*api.FlowNodeDefinition
	transitions []*api.TransitionDefinition
}

// NewProcess creates a process builder. The ID is sanitized the same way
// definition IDs are everywhere else
func NewProcess(id api.DefinitionID) *Process {
	return &Process{
		id:      api.SanitizeID(id),
		name:    string(id),
		version: 1,
	}
}

func (p *Process) WithName(name string) *Process {
	res := *p
	res.name = name
	return &res
}

func (p *Process) WithVersion(version int) *Process {
	res := *p
	res.version = version
	return &res
}

// Node adds a fully specified flow node
func (p *Process) Node(node *api.FlowNodeDefinition) *Process {
	res := *p
	n := *node
	if n.Name == "" {
		n.Name = string(n.ID)
	}
	res.nodes = append(slices.Clone(p.nodes), &n)
	return &res
}

func (p *Process) Start(id api.FlowNodeID) *Process {
	return p.Node(&api.FlowNodeDefinition{
		ID:           id,
		Type:         api.NodeStartEvent,
		Interrupting: true,
	})
}

func (p *Process) End(id api.FlowNodeID) *Process {
	return p.Node(&api.FlowNodeDefinition{
		ID:   id,
		Type: api.NodeEndEvent,
	})
}

func (p *Process) Task(id api.FlowNodeID) *Process {
	return p.Node(&api.FlowNodeDefinition{
		ID:   id,
		Type: api.NodeTask,
	})
}

func (p *Process) UserTask(id api.FlowNodeID) *Process {
	return p.Node(&api.FlowNodeDefinition{
		ID:   id,
		Type: api.NodeUserTask,
	})
}

func (p *Process) Gateway(id api.FlowNodeID, typ api.GatewayType) *Process {
	return p.Node(&api.FlowNodeDefinition{
		ID:          id,
		Type:        api.NodeGateway,
		GatewayType: typ,
	})
}

func (p *Process) Parallel(id api.FlowNodeID) *Process {
	return p.Gateway(id, api.GatewayParallel)
}

func (p *Process) Inclusive(id api.FlowNodeID) *Process {
	return p.Gateway(id, api.GatewayInclusive)
}

func (p *Process) Exclusive(id api.FlowNodeID) *Process {
	return p.Gateway(id, api.GatewayExclusive)
}

// Boundary attaches a boundary event to an activity
func (p *Process) Boundary(
	id, attachedTo api.FlowNodeID, interrupting bool,
) *Process {
	return p.Node(&api.FlowNodeDefinition{
		ID:           id,
		Type:         api.NodeBoundaryEvent,
		AttachedTo:   attachedTo,
		Interrupting: interrupting,
	})
}

// EventSubProcess adds a sub-process started by an event rather than by
// an incoming transition
func (p *Process) EventSubProcess(id api.FlowNodeID) *Process {
	return p.Node(&api.FlowNodeDefinition{
		ID:               id,
		Type:             api.NodeSubProcess,
		TriggeredByEvent: true,
	})
}

// Flow connects two nodes with a transition named "<from>-<to>"
func (p *Process) Flow(from, to api.FlowNodeID) *Process {
	return p.Transition(&api.TransitionDefinition{
		ID:     FlowID(from, to),
		Source: from,
		Target: to,
	})
}

// Conditional connects two nodes with a guarded transition
func (p *Process) Conditional(from, to api.FlowNodeID, cond string) *Process {
	return p.Transition(&api.TransitionDefinition{
		ID:        FlowID(from, to),
		Source:    from,
		Target:    to,
		Condition: cond,
	})
}

// Default connects two nodes with the default transition of from
func (p *Process) Default(from, to api.FlowNodeID) *Process {
	return p.Transition(&api.TransitionDefinition{
		ID:        FlowID(from, to),
		Source:    from,
		Target:    to,
		IsDefault: true,
	})
}

// Transition adds a fully specified transition
func (p *Process) Transition(tr *api.TransitionDefinition) *Process {
	res := *p
	t := *tr
	res.transitions = append(slices.Clone(p.transitions), &t)
	return &res
}

// Build validates and returns the process definition
func (p *Process) Build() (*api.ProcessDefinition, error) {
	def := &api.ProcessDefinition{
		ID:          p.id,
		Name:        p.name,
		Version:     p.version,
		Nodes:       slices.Clone(p.nodes),
		Transitions: slices.Clone(p.transitions),
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// MustBuild is Build for definitions known to be valid
func (p *Process) MustBuild() *api.ProcessDefinition {
	def, err := p.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// FlowID names the transition from one node to another
func FlowID(from, to api.FlowNodeID) api.TransitionID {
	return api.TransitionID(string(from) + "-" + string(to))
}
