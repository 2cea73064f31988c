package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/kode4food/bpmnflow/pkg/api"
)

// redisTx buffers writes until the enclosing Atomic call commits them.
// Reads consult the buffer first so a transaction observes its own writes
type redisTx struct {
	ctx      context.Context
	rtx      *redis.Tx
	keys     instanceKeys
	finished string
	id       api.ProcessInstanceID
	header   []byte
	hashes   map[string]map[string][]byte
	done     *redis.Z
	dirty    bool
	deleted  bool
}

var _ Tx = (*redisTx)(nil)

func newRedisTx(
	ctx context.Context, rtx *redis.Tx, keys instanceKeys, finished string,
	id api.ProcessInstanceID,
) *redisTx {
	return &redisTx{
		ctx:      ctx,
		rtx:      rtx,
		keys:     keys,
		finished: finished,
		id:       id,
		hashes:   map[string]map[string][]byte{},
	}
}

func (t *redisTx) Instance() (*api.ProcessInstance, error) {
	data := t.header
	if data == nil && t.deleted {
		return nil, fmt.Errorf("%w: %s", api.ErrInstanceNotFound, t.id)
	}
	if data == nil {
		var err error
		data, err = t.rtx.Get(t.ctx, t.keys.header).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", api.ErrInstanceNotFound, t.id)
		}
		if err != nil {
			return nil, err
		}
	}
	var res api.ProcessInstance
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (t *redisTx) PutInstance(inst *api.ProcessInstance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return err
	}
	t.header = data
	t.dirty = true
	if inst.Status != api.InstanceActive {
		t.done = &redis.Z{
			Score:  float64(inst.CompletedAt.UnixMilli()),
			Member: string(inst.ID),
		}
	}
	return nil
}

func (t *redisTx) Token(ref api.TokenRefID) (*api.Token, error) {
	res, err := getJSON[api.Token](t, t.keys.tokens, string(ref))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: %s", api.ErrTokenNotFound, ref)
	}
	return res, nil
}

func (t *redisTx) PutToken(tkn *api.Token) error {
	return t.putJSON(t.keys.tokens, string(tkn.RefID), tkn)
}

func (t *redisTx) DeleteToken(ref api.TokenRefID) {
	t.hdel(t.keys.tokens, string(ref))
}

func (t *redisTx) Tokens() ([]*api.Token, error) {
	res, err := listJSON[api.Token](t, t.keys.tokens)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(res, func(l, r *api.Token) int {
		if c := l.CreatedAt.Compare(r.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(l.RefID, r.RefID)
	})
	return res, nil
}

func (t *redisTx) FlowNode(
	id api.FlowNodeInstanceID,
) (*api.FlowNodeInstance, error) {
	res, err := getJSON[api.FlowNodeInstance](t, t.keys.nodes, string(id))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: %s", api.ErrFlowNodeNotFound, id)
	}
	return res, nil
}

func (t *redisTx) PutFlowNode(fn *api.FlowNodeInstance) error {
	return t.putJSON(t.keys.nodes, string(fn.ID), fn)
}

func (t *redisTx) FlowNodes() ([]*api.FlowNodeInstance, error) {
	res, err := listJSON[api.FlowNodeInstance](t, t.keys.nodes)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(res, func(l, r *api.FlowNodeInstance) int {
		if c := l.CreatedAt.Compare(r.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(l.ID, r.ID)
	})
	return res, nil
}

func (t *redisTx) Join(
	gateway api.FlowNodeID, parent api.TokenRefID,
) (*api.JoinState, error) {
	return getJSON[api.JoinState](t, t.keys.joins, joinField(gateway, parent))
}

func (t *redisTx) PutJoin(js *api.JoinState) error {
	return t.putJSON(t.keys.joins, joinField(js.Gateway, js.ParentRefID), js)
}

func (t *redisTx) DeleteJoin(gateway api.FlowNodeID, parent api.TokenRefID) {
	t.hdel(t.keys.joins, joinField(gateway, parent))
}

func (t *redisTx) Joins() ([]*api.JoinState, error) {
	res, err := listJSON[api.JoinState](t, t.keys.joins)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(res, func(l, r *api.JoinState) int {
		return cmp.Compare(
			joinField(l.Gateway, l.ParentRefID),
			joinField(r.Gateway, r.ParentRefID),
		)
	})
	return res, nil
}

func (t *redisTx) Delete() {
	t.deleted = true
	t.dirty = true
	t.header = nil
	t.done = nil
	t.hashes = map[string]map[string][]byte{}
}

func (t *redisTx) putJSON(key, field string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	t.hset(key, field, data)
	return nil
}

func (t *redisTx) hget(key, field string) ([]byte, error) {
	if pending, ok := t.hashes[key]; ok {
		if data, ok := pending[field]; ok {
			return data, nil
		}
	}
	if t.deleted {
		return nil, nil
	}
	data, err := t.rtx.HGet(t.ctx, key, field).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

func (t *redisTx) hgetAll(key string) (map[string][]byte, error) {
	stored := map[string]string{}
	if !t.deleted {
		var err error
		stored, err = t.rtx.HGetAll(t.ctx, key).Result()
		if err != nil {
			return nil, err
		}
	}
	res := make(map[string][]byte, len(stored))
	for field, data := range stored {
		res[field] = []byte(data)
	}
	for field, data := range t.hashes[key] {
		if data == nil {
			delete(res, field)
			continue
		}
		res[field] = data
	}
	return res, nil
}

func (t *redisTx) hset(key, field string, data []byte) {
	t.pending(key)[field] = data
	t.dirty = true
}

func (t *redisTx) hdel(key, field string) {
	t.pending(key)[field] = nil
	t.dirty = true
}

func (t *redisTx) pending(key string) map[string][]byte {
	res, ok := t.hashes[key]
	if !ok {
		res = map[string][]byte{}
		t.hashes[key] = res
	}
	return res
}

func (t *redisTx) flush(p redis.Pipeliner) {
	if t.deleted {
		p.Del(t.ctx, t.keys.all()...)
		p.ZRem(t.ctx, t.finished, string(t.id))
		if t.header == nil && len(t.hashes) == 0 {
			return
		}
	}
	p.Incr(t.ctx, t.keys.version)
	if t.header != nil {
		p.Set(t.ctx, t.keys.header, t.header, 0)
	}
	for key, fields := range t.hashes {
		var dels []string
		var sets []any
		for field, data := range fields {
			if data == nil {
				dels = append(dels, field)
				continue
			}
			sets = append(sets, field, data)
		}
		if len(sets) > 0 {
			p.HSet(t.ctx, key, sets...)
		}
		if len(dels) > 0 {
			p.HDel(t.ctx, key, dels...)
		}
	}
	if t.done != nil {
		p.ZAdd(t.ctx, t.finished, *t.done)
	}
}

func getJSON[T any](t *redisTx, key, field string) (*T, error) {
	data, err := t.hget(key, field)
	if err != nil || data == nil {
		return nil, err
	}
	var res T
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func listJSON[T any](t *redisTx, key string) ([]*T, error) {
	all, err := t.hgetAll(key)
	if err != nil {
		return nil, err
	}
	res := make([]*T, 0, len(all))
	for _, data := range all {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		res = append(res, &v)
	}
	return res, nil
}
