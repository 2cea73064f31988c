package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/bpmnflow/pkg/api"
)

func validDefinition() *api.ProcessDefinition {
	return &api.ProcessDefinition{
		ID:      "order",
		Name:    "Order",
		Version: 1,
		Nodes: []*api.FlowNodeDefinition{
			{ID: "start", Type: api.NodeStartEvent},
			{ID: "review", Type: api.NodeUserTask},
			{
				ID:           "timeout",
				Type:         api.NodeBoundaryEvent,
				Interrupting: true,
				AttachedTo:   "review",
			},
			{
				ID:          "split",
				Type:        api.NodeGateway,
				GatewayType: api.GatewayParallel,
			},
			{ID: "end", Type: api.NodeEndEvent},
		},
		Transitions: []*api.TransitionDefinition{
			{ID: "t1", Source: "start", Target: "review"},
			{ID: "t2", Source: "review", Target: "split"},
			{ID: "t3", Source: "split", Target: "end"},
			{ID: "t4", Source: "timeout", Target: "end"},
		},
	}
}

func TestDefinitionValidate(t *testing.T) {
	assert.NoError(t, validDefinition().Validate())

	tests := []struct {
		name     string
		mutate   func(*api.ProcessDefinition)
		expected error
	}{
		{
			name:     "empty id",
			mutate:   func(d *api.ProcessDefinition) { d.ID = "" },
			expected: api.ErrDefinitionIDEmpty,
		},
		{
			name:     "invalid id",
			mutate:   func(d *api.ProcessDefinition) { d.ID = "order:1" },
			expected: api.ErrDefinitionIDInvalid,
		},
		{
			name:     "empty node id",
			mutate:   func(d *api.ProcessDefinition) { d.Nodes[1].ID = "" },
			expected: api.ErrNodeIDEmpty,
		},
		{
			name: "duplicate node",
			mutate: func(d *api.ProcessDefinition) {
				d.Nodes[1].ID = "start"
			},
			expected: api.ErrDuplicateNode,
		},
		{
			name: "unknown node type",
			mutate: func(d *api.ProcessDefinition) {
				d.Nodes[1].Type = "script"
			},
			expected: api.ErrInvalidNodeType,
		},
		{
			name: "unknown gateway type",
			mutate: func(d *api.ProcessDefinition) {
				d.Nodes[3].GatewayType = "complex"
			},
			expected: api.ErrInvalidGatewayType,
		},
		{
			name: "unknown attachment",
			mutate: func(d *api.ProcessDefinition) {
				d.Nodes[2].AttachedTo = "missing"
			},
			expected: api.ErrUnknownAttachment,
		},
		{
			name: "empty transition id",
			mutate: func(d *api.ProcessDefinition) {
				d.Transitions[0].ID = ""
			},
			expected: api.ErrTransitionIDEmpty,
		},
		{
			name: "duplicate transition",
			mutate: func(d *api.ProcessDefinition) {
				d.Transitions[1].ID = "t1"
			},
			expected: api.ErrDuplicateTransition,
		},
		{
			name: "unknown target",
			mutate: func(d *api.ProcessDefinition) {
				d.Transitions[2].Target = "missing"
			},
			expected: api.ErrUnknownTransitionEnd,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			def := validDefinition()
			tc.mutate(def)
			assert.ErrorIs(t, def.Validate(), tc.expected)
		})
	}
}

func TestIsCatchEvent(t *testing.T) {
	assert.True(t, api.NodeStartEvent.IsCatchEvent())
	assert.True(t, api.NodeIntermediateCatchEvent.IsCatchEvent())
	assert.True(t, api.NodeBoundaryEvent.IsCatchEvent())
	assert.False(t, api.NodeIntermediateThrowEvent.IsCatchEvent())
	assert.False(t, api.NodeGateway.IsCatchEvent())
}
