package assert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/bpmnflow/internal/config"
	"github.com/kode4food/bpmnflow/internal/engine"
	"github.com/kode4food/bpmnflow/pkg/api"
)

// Wrapper wraps testify assertions with process engine helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
	Require *assert.Assertions
}

// DefaultRetryInterval is the default polling interval for Eventually checks
const DefaultRetryInterval = 10 * time.Millisecond

// New creates a new test assertion wrapper
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    assert.New(t),
	}
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.NotEmpty(cfg.Store.Addr)
	w.Positive(cfg.DefinitionCacheSize)
	w.Positive(cfg.MaxGatewayDepth)
}

// ConfigInvalid asserts that a configuration is invalid
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	w.Error(err)
	if err != nil && contains != "" {
		w.Contains(err.Error(), contains)
	}
}

// Decision asserts the kind of a token decision and, for decisions that
// name a single thread, that thread
func (w *Wrapper) Decision(
	dec api.TokenDecision, kind api.DecisionKind, ref ...api.TokenRefID,
) {
	w.Helper()
	w.Equal(kind, dec.Kind)
	w.False(dec.Fallback, "decision should not be a fallback")
	if len(ref) != 0 {
		w.Equal(ref[0], dec.RefID)
	}
}

// Resolved asserts that a completion resolved the given node with a
// decision of the given kind and returns that resolution
func (w *Wrapper) Resolved(
	c *engine.Completion, node api.FlowNodeID, kind api.DecisionKind,
) *engine.Resolution {
	w.Helper()
	res, ok := c.Resolution(node)
	if !w.True(ok, "flow node %s should be resolved", node) {
		return nil
	}
	w.Equal(kind, res.Decision.Kind, "decision for %s", node)
	return res
}

// Activated asserts that a completion left exactly the given nodes
// waiting for outside completion, in any order
func (w *Wrapper) Activated(c *engine.Completion, nodes ...api.FlowNodeID) {
	w.Helper()
	got := make([]api.FlowNodeID, 0, len(c.Activated))
	for _, fn := range c.Activated {
		got = append(got, fn.DefinitionID)
	}
	w.ElementsMatch(nodes, got)
}

// ActivatedNode returns the activated instance of a node
func (w *Wrapper) ActivatedNode(
	c *engine.Completion, node api.FlowNodeID,
) *api.FlowNodeInstance {
	w.Helper()
	for _, fn := range c.Activated {
		if fn.DefinitionID == node {
			return fn
		}
	}
	w.Failf("flow node not activated", "%s", node)
	return nil
}

// InstanceStatus asserts the status of a process instance
func (w *Wrapper) InstanceStatus(
	inst *api.ProcessInstance, expected api.InstanceStatus,
) {
	w.Helper()
	if w.NotNil(inst) {
		w.Equal(expected, inst.Status)
	}
}

// Eventually runs a condition repeatedly until it passes or times out
func (w *Wrapper) Eventually(
	condition func() bool, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
	w.Fail(msg, args...)
}
