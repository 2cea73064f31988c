package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/bpmnflow/internal/config"
	"github.com/kode4food/bpmnflow/internal/store"
	"github.com/kode4food/bpmnflow/pkg/api"
)

const testInstance = api.ProcessInstanceID("pi-1")

func newTestStore(t *testing.T) (*store.Redis, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)

	s := store.NewRedis(config.StoreConfig{
		Addr:   server.Addr(),
		Prefix: "test",
	})
	t.Cleanup(func() {
		_ = s.Close()
		server.Close()
	})
	return s, server
}

func seedInstance(t *testing.T, s store.Store) {
	t.Helper()
	err := s.Atomic(context.Background(), testInstance,
		func(tx store.Tx) error {
			return tx.PutInstance(&api.ProcessInstance{
				ID:        testInstance,
				Status:    api.InstanceActive,
				RootRefID: "root",
			})
		},
	)
	require.NoError(t, err)
}

func TestPing(t *testing.T) {
	s, _ := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestInstanceRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	err := s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		_, err := tx.Instance()
		return err
	})
	assert.ErrorIs(t, err, api.ErrInstanceNotFound)

	seedInstance(t, s)

	err = s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		inst, err := tx.Instance()
		require.NoError(t, err)
		assert.Equal(t, api.InstanceActive, inst.Status)
		assert.Equal(t, api.TokenRefID("root"), inst.RootRefID)
		return nil
	})
	assert.NoError(t, err)
}

func TestTokens(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	err := s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		require.NoError(t, tx.PutToken(&api.Token{
			ID: "t1", RefID: "root", CreatedAt: now,
		}))
		require.NoError(t, tx.PutToken(&api.Token{
			ID: "t2", RefID: "child", ParentRefID: "root",
			CreatedAt: now.Add(time.Millisecond),
		}))

		tkn, err := tx.Token("child")
		require.NoError(t, err)
		assert.Equal(t, api.TokenRefID("root"), tkn.ParentRefID)
		return nil
	})
	require.NoError(t, err)

	err = s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		all, err := tx.Tokens()
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, api.TokenRefID("root"), all[0].RefID)
		assert.Equal(t, api.TokenRefID("child"), all[1].RefID)

		tx.DeleteToken("child")
		_, err = tx.Token("child")
		assert.ErrorIs(t, err, api.ErrTokenNotFound)

		all, err = tx.Tokens()
		require.NoError(t, err)
		assert.Len(t, all, 1)
		return nil
	})
	require.NoError(t, err)

	err = s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		_, err := tx.Token("child")
		return err
	})
	assert.ErrorIs(t, err, api.ErrTokenNotFound)
	assert.True(t, api.IsConsistencyFault(err))
}

func TestFlowNodes(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	err := s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		return tx.PutFlowNode(&api.FlowNodeInstance{
			ID:           "fni-1",
			DefinitionID: "review",
			TokenRefID:   "root",
			State:        api.FlowNodeActive,
		})
	})
	require.NoError(t, err)

	err = s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		fn, err := tx.FlowNode("fni-1")
		require.NoError(t, err)
		fn.State = api.FlowNodeCompleted
		require.NoError(t, tx.PutFlowNode(fn))

		all, err := tx.FlowNodes()
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, api.FlowNodeCompleted, all[0].State)

		_, err = tx.FlowNode("missing")
		assert.ErrorIs(t, err, api.ErrFlowNodeNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestJoins(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	err := s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		js, err := tx.Join("join", "P")
		require.NoError(t, err)
		assert.Nil(t, js)

		return tx.PutJoin(&api.JoinState{
			Gateway:     "join",
			ParentRefID: "P",
			Arrivals: []api.JoinArrival{
				{Transition: "a", RefID: "A"},
			},
		})
	})
	require.NoError(t, err)

	err = s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		js, err := tx.Join("join", "P")
		require.NoError(t, err)
		require.NotNil(t, js)
		assert.True(t, js.Arrived("a"))
		assert.False(t, js.Arrived("b"))

		all, err := tx.Joins()
		require.NoError(t, err)
		assert.Len(t, all, 1)

		tx.DeleteJoin("join", "P")
		js, err = tx.Join("join", "P")
		require.NoError(t, err)
		assert.Nil(t, js)
		return nil
	})
	require.NoError(t, err)
}

func TestAtomicRollsBackOnError(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	err := s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		require.NoError(t, tx.PutToken(&api.Token{RefID: "root"}))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	err = s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		all, err := tx.Tokens()
		require.NoError(t, err)
		assert.Empty(t, all)
		return nil
	})
	assert.NoError(t, err)
}

func TestAtomicConflict(t *testing.T) {
	s, server := newTestStore(t)
	ctx := context.Background()
	seedInstance(t, s)

	other := store.NewRedis(config.StoreConfig{
		Addr:   server.Addr(),
		Prefix: "test",
	})
	defer func() { _ = other.Close() }()

	err := s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		_, err := tx.Token("root")
		assert.ErrorIs(t, err, api.ErrTokenNotFound)

		require.NoError(t, other.Atomic(ctx, testInstance,
			func(otx store.Tx) error {
				return otx.PutToken(&api.Token{RefID: "root"})
			},
		))
		return tx.PutToken(&api.Token{RefID: "root", ParentRefID: "lost"})
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	err = s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		tkn, err := tx.Token("root")
		require.NoError(t, err)
		assert.Empty(t, tkn.ParentRefID)
		return nil
	})
	assert.NoError(t, err)
}

func TestReadOnlyAtomicIgnoresConcurrentWrites(t *testing.T) {
	s, server := newTestStore(t)
	ctx := context.Background()
	seedInstance(t, s)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer func() { _ = client.Close() }()

	err := s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		_, err := tx.Instance()
		require.NoError(t, err)
		return client.Set(ctx, "unrelated", "x", 0).Err()
	})
	assert.NoError(t, err)
}

func TestDefinitions(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetDefinition(ctx, "order")
	assert.ErrorIs(t, err, api.ErrDefinitionNotFound)

	assert.ErrorIs(t, s.PutDefinition(ctx, nil), store.ErrDefinitionRequired)

	def := &api.ProcessDefinition{
		ID:      "order",
		Version: 2,
		Nodes: []*api.FlowNodeDefinition{
			{ID: "start", Type: api.NodeStartEvent},
		},
	}
	require.NoError(t, s.PutDefinition(ctx, def))

	got, err := s.GetDefinition(ctx, "order")
	require.NoError(t, err)
	assert.Equal(t, def, got)
}

func TestFinishedAndDelete(t *testing.T) {
	s, server := newTestStore(t)
	ctx := context.Background()
	done := time.Now().Add(-time.Hour)

	for _, id := range []api.ProcessInstanceID{"old", "new"} {
		err := s.Atomic(ctx, id, func(tx store.Tx) error {
			inst := &api.ProcessInstance{
				ID:          id,
				Status:      api.InstanceCompleted,
				CompletedAt: done,
			}
			if id == "new" {
				inst.CompletedAt = time.Now().Add(time.Hour)
			}
			return tx.PutInstance(inst)
		})
		require.NoError(t, err)
	}

	ids, err := s.Finished(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Equal(t, []api.ProcessInstanceID{"old"}, ids)

	require.NoError(t, s.Atomic(ctx, "old", func(tx store.Tx) error {
		tx.Delete()
		_, err := tx.Instance()
		assert.ErrorIs(t, err, api.ErrInstanceNotFound)
		return nil
	}))
	ids, err = s.Finished(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	for _, key := range server.Keys() {
		assert.NotContains(t, key, "{old}")
	}

	err = s.Atomic(ctx, "old", func(tx store.Tx) error {
		_, err := tx.Instance()
		return err
	})
	assert.True(t, errors.Is(err, api.ErrInstanceNotFound))
}

func TestDeleteConflict(t *testing.T) {
	s, server := newTestStore(t)
	ctx := context.Background()
	seedInstance(t, s)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer func() { _ = client.Close() }()

	err := s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		tx.Delete()
		return client.Incr(ctx,
			"test:instance:{"+string(testInstance)+"}:version",
		).Err()
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	err = s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		inst, err := tx.Instance()
		require.NoError(t, err)
		assert.Equal(t, testInstance, inst.ID)
		return nil
	})
	assert.NoError(t, err)
}

func TestDeleteThenWrite(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	seedInstance(t, s)

	err := s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		require.NoError(t, tx.PutToken(&api.Token{RefID: "stale"}))
		tx.Delete()
		all, err := tx.Tokens()
		require.NoError(t, err)
		assert.Empty(t, all)
		return tx.PutToken(&api.Token{RefID: "fresh"})
	})
	require.NoError(t, err)

	err = s.Atomic(ctx, testInstance, func(tx store.Tx) error {
		_, err := tx.Instance()
		assert.ErrorIs(t, err, api.ErrInstanceNotFound)
		all, err := tx.Tokens()
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, api.TokenRefID("fresh"), all[0].RefID)
		return nil
	})
	assert.NoError(t, err)
}
