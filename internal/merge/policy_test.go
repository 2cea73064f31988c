package merge_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/bpmnflow/internal/assert/helpers"
	"github.com/kode4food/bpmnflow/internal/flownode"
	"github.com/kode4food/bpmnflow/internal/merge"
	"github.com/kode4food/bpmnflow/internal/topology"
	"github.com/kode4food/bpmnflow/pkg/api"
)

func TestEvaluate(t *testing.T) {
	task := flownode.Node{ID: "task", Type: api.NodeTask}

	tests := []struct {
		name     string
		kind     flownode.Kind
		topo     topology.Topology
		expected merge.Flags
	}{
		{
			name:     "absent",
			kind:     flownode.Absent{},
			topo:     topology.New(2, 2, 0),
			expected: merge.Flags{},
		},
		{
			name:     "implicit end",
			kind:     task,
			topo:     topology.New(1, 0, 0),
			expected: merge.Flags{IsImplicitEnd: true},
		},
		{
			name: "parallel join",
			kind: gateway(flownode.Parallel),
			topo: topology.New(3, 1, 1),
			expected: merge.Flags{
				MustConsumeInputToken: true,
			},
		},
		{
			name: "inclusive many to many",
			kind: gateway(flownode.Inclusive),
			topo: topology.New(2, 2, 1),
			expected: merge.Flags{
				MustConsumeInputToken:   true,
				MustCreateTokenOnFinish: true,
			},
		},
		{
			name:     "exclusive split",
			kind:     gateway(flownode.Exclusive),
			topo:     topology.New(1, 3, 1),
			expected: merge.Flags{},
		},
		{
			name:     "exclusive merge",
			kind:     gateway(flownode.Exclusive),
			topo:     topology.New(3, 1, 1),
			expected: merge.Flags{},
		},
		{
			name: "task fork",
			kind: task,
			topo: topology.New(1, 2, 2),
			expected: merge.Flags{
				MustCreateTokenOnFinish: true,
			},
		},
		{
			name:     "boundary with many outgoing",
			kind:     boundary(false),
			topo:     topology.New(0, 2, 2),
			expected: merge.Flags{},
		},
		{
			name:     "parallel join at end",
			kind:     gateway(flownode.Parallel),
			topo:     topology.New(2, 1, 0),
			expected: merge.Flags{IsImplicitEnd: true},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, merge.Evaluate(tc.kind, tc.topo))
		})
	}
}

func TestFlagsAgreeWithDecision(t *testing.T) {
	kinds := []flownode.Kind{
		flownode.Absent{},
		flownode.Node{ID: "task", Type: api.NodeTask},
		gateway(flownode.Exclusive),
		gateway(flownode.Parallel),
		gateway(flownode.Inclusive),
		boundary(true),
		boundary(false),
	}

	for _, s := range helpers.Shapes {
		for _, k := range kinds {
			tbl := newTokenTable(&api.Token{RefID: "T", ParentRefID: "P"})
			pol, err := tbl.resolver().Complete(
				completed("T"), k, helpers.ExampleTopology(s),
			)
			require.NoError(t, err)

			dec := pol.Decision
			if pol.IsImplicitEnd {
				assert.Equal(t, api.DecisionNoToken, dec.Kind)
			}
			if pol.MustConsumeInputToken {
				assert.Contains(t,
					[]api.DecisionKind{api.DecisionJoin, api.DecisionCreate},
					dec.Kind,
				)
				assert.Equal(t, api.TokenRefID("P"), parentOrRef(dec))
			}
			if dec.Kind == api.DecisionJoin {
				assert.True(t, pol.MustConsumeInputToken)
			}
			if !k.IsAbsent() && dec.Kind == api.DecisionNoToken {
				assert.True(t, pol.IsImplicitEnd)
			}
		}
	}
}

func TestCompletePropagatesLookupError(t *testing.T) {
	tbl := newTokenTable()
	pol, err := tbl.resolver().Complete(
		completed("T"), gateway(flownode.Parallel), topology.New(2, 1, 1),
	)
	assert.Nil(t, pol)
	assert.ErrorIs(t, err, api.ErrTokenNotFound)
}

func parentOrRef(dec api.TokenDecision) api.TokenRefID {
	if dec.Kind == api.DecisionJoin {
		return dec.RefID
	}
	return dec.ParentRefID
}
