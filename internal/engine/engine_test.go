package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/bpmnflow/internal/assert/helpers"
	"github.com/kode4food/bpmnflow/internal/config"
	"github.com/kode4food/bpmnflow/internal/engine"
	"github.com/kode4food/bpmnflow/pkg/api"
	"github.com/kode4food/bpmnflow/pkg/builder"
)

func sequenceProcess() *api.ProcessDefinition {
	return builder.NewProcess("sequence").
		Start("start").
		UserTask("review").
		End("end").
		Flow("start", "review").
		Flow("review", "end").
		MustBuild()
}

// parallelProcess forks two branches and joins them again
func parallelProcess() *api.ProcessDefinition {
	return builder.NewProcess("parallel").
		Start("start").
		Parallel("split").
		Task("pack").
		Task("bill").
		Parallel("join").
		End("end").
		Flow("start", "split").
		Flow("split", "pack").
		Flow("split", "bill").
		Flow("pack", "join").
		Flow("bill", "join").
		Flow("join", "end").
		MustBuild()
}

func TestNew(t *testing.T) {
	helpers.WithEngine(t, func(eng *engine.Engine) {
		assert.NotNil(t, eng)
	})
}

func TestNewMissingDependency(t *testing.T) {
	eng, err := engine.New(helpers.NewTestConfig(), engine.Dependencies{})
	assert.Nil(t, eng)
	assert.ErrorIs(t, err, engine.ErrMissingDependency)
}

func TestNewInvalidConfig(t *testing.T) {
	st, server := helpers.NewTestStore(t)
	defer server.Close()

	cfg := helpers.NewTestConfig()
	cfg.MaxGatewayDepth = 0
	eng, err := engine.New(cfg, engine.Dependencies{Store: st})
	assert.Nil(t, eng)
	assert.ErrorIs(t, err, config.ErrInvalidGatewayDepth)
}

func TestDeploy(t *testing.T) {
	helpers.WithEngine(t, func(eng *engine.Engine) {
		ctx := context.Background()
		def := sequenceProcess()

		g, err := eng.Deploy(ctx, def)
		require.NoError(t, err)
		assert.Equal(t, def.ID, g.ID())

		_, err = eng.Deploy(ctx, sequenceProcess())
		assert.NoError(t, err)

		changed := sequenceProcess()
		changed.Name = "different"
		_, err = eng.Deploy(ctx, changed)
		assert.ErrorIs(t, err, engine.ErrDefinitionExists)
	})
}

func TestDeployInvalid(t *testing.T) {
	helpers.WithEngine(t, func(eng *engine.Engine) {
		def := sequenceProcess()
		def.Transitions[0].Target = "missing"
		_, err := eng.Deploy(context.Background(), def)
		assert.ErrorIs(t, err, api.ErrUnknownTransitionEnd)
	})
}

func TestGraph(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		ctx := context.Background()
		_, err := env.Engine.Graph(ctx, "sequence")
		assert.ErrorIs(t, err, api.ErrDefinitionNotFound)

		env.Deploy(t, sequenceProcess())
		g1, err := env.Engine.Graph(ctx, "sequence")
		require.NoError(t, err)
		g2, err := env.Engine.Graph(ctx, "sequence")
		require.NoError(t, err)
		assert.Same(t, g1, g2)
	})
}

func TestStartInstance(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		res := env.StartInstance(t, sequenceProcess(), "pi-1")

		inst := res.Instance
		assert.Equal(t, api.ProcessInstanceID("pi-1"), inst.ID)
		assert.Equal(t, api.InstanceActive, inst.Status)
		assert.Equal(t, 1, inst.Active)
		assert.NotEmpty(t, inst.RootRefID)

		require.Len(t, res.Activated, 1)
		review := res.Activated[0]
		assert.Equal(t, api.FlowNodeID("review"), review.DefinitionID)
		assert.Equal(t, inst.RootRefID, review.TokenRefID)

		start, ok := res.Resolution("start")
		require.True(t, ok)
		assert.Equal(t, api.DecisionTransmit, start.Decision.Kind)
		assert.Equal(t, inst.RootRefID, start.Decision.RefID)

		ctx := context.Background()
		tokens, err := env.Engine.ListTokens(ctx, "pi-1")
		require.NoError(t, err)
		require.Len(t, tokens, 1)
		assert.True(t, tokens[0].IsRoot())

		_, err = env.Engine.StartInstance(ctx, "sequence", "pi-1")
		assert.ErrorIs(t, err, engine.ErrInstanceExists)
	})
}

func TestStartInstanceGeneratesID(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		res := env.StartInstance(t, sequenceProcess(), "")
		assert.NotEmpty(t, res.Instance.ID)
	})
}

func TestStartInstanceErrors(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		ctx := context.Background()
		_, err := env.Engine.StartInstance(ctx, "missing", "pi-1")
		assert.ErrorIs(t, err, api.ErrDefinitionNotFound)

		loop := builder.NewProcess("loop").
			Task("a").
			Task("b").
			Flow("a", "b").
			Flow("b", "a").
			MustBuild()
		env.Deploy(t, loop)
		_, err = env.Engine.StartInstance(ctx, "loop", "pi-1")
		assert.ErrorIs(t, err, engine.ErrNoStartNodes)
	})
}

func TestGatewayCycle(t *testing.T) {
	helpers.WithTestEnv(t, func(env *helpers.TestEngineEnv) {
		def := builder.NewProcess("cycle").
			Start("start").
			Exclusive("x").
			Exclusive("y").
			Flow("start", "x").
			Flow("x", "y").
			Flow("y", "x").
			MustBuild()
		env.Deploy(t, def)

		ctx := context.Background()
		_, err := env.Engine.StartInstance(ctx, "cycle", "pi-1")
		assert.ErrorIs(t, err, engine.ErrGatewayDepth)

		_, err = env.Engine.GetInstance(ctx, "pi-1")
		assert.ErrorIs(t, err, api.ErrInstanceNotFound)
	})
}

func TestQueriesOnMissingInstance(t *testing.T) {
	helpers.WithEngine(t, func(eng *engine.Engine) {
		ctx := context.Background()
		_, err := eng.GetInstance(ctx, "missing")
		assert.ErrorIs(t, err, api.ErrInstanceNotFound)
		_, err = eng.GetToken(ctx, "missing", "ref")
		assert.ErrorIs(t, err, api.ErrTokenNotFound)
		_, err = eng.ListTokens(ctx, "missing")
		assert.ErrorIs(t, err, api.ErrInstanceNotFound)
		_, err = eng.ListFlowNodes(ctx, "missing")
		assert.ErrorIs(t, err, api.ErrInstanceNotFound)
		_, err = eng.ListJoins(ctx, "missing")
		assert.ErrorIs(t, err, api.ErrInstanceNotFound)
	})
}
