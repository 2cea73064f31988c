package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kode4food/bpmnflow/internal/config"
	"github.com/kode4food/bpmnflow/pkg/api"
)

// Redis is a Store backed by a Redis database. Transactions WATCH the
// instance's version key and commit with MULTI/EXEC
type Redis struct {
	client *redis.Client
	prefix string
}

var _ Store = (*Redis)(nil)

// NewRedis connects a Store to the Redis database described by cfg
func NewRedis(cfg config.StoreConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisWithClient(client, cfg.Prefix)
}

// NewRedisWithClient wraps an existing client. The Store takes ownership
// and closes it on Close
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = config.DefaultRedisPrefix
	}
	return &Redis{
		client: client,
		prefix: prefix,
	}
}

// Ping verifies that the database is reachable
func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Redis) Atomic(
	ctx context.Context, id api.ProcessInstanceID, fn TxFunc,
) error {
	keys := s.instanceKeys(id)
	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		tx := newRedisTx(ctx, rtx, keys, s.finishedKey(), id)
		if err := fn(tx); err != nil {
			return err
		}
		if !tx.dirty {
			return nil
		}
		_, err := rtx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			tx.flush(p)
			return nil
		})
		return err
	}, keys.version)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %s", ErrConflict, id)
	}
	return err
}

func (s *Redis) PutDefinition(
	ctx context.Context, def *api.ProcessDefinition,
) error {
	if def == nil {
		return ErrDefinitionRequired
	}
	data, err := json.Marshal(def)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.definitionKey(def.ID), data, 0).Err()
}

func (s *Redis) GetDefinition(
	ctx context.Context, id api.DefinitionID,
) (*api.ProcessDefinition, error) {
	data, err := s.client.Get(ctx, s.definitionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", api.ErrDefinitionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var res api.ProcessDefinition
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Redis) Finished(
	ctx context.Context, before time.Time, limit int,
) ([]api.ProcessInstanceID, error) {
	rng := &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(before.UnixMilli(), 10),
	}
	if limit > 0 {
		rng.Count = int64(limit)
	}
	ids, err := s.client.ZRangeByScore(ctx, s.finishedKey(), rng).Result()
	if err != nil {
		return nil, err
	}
	res := make([]api.ProcessInstanceID, len(ids))
	for i, id := range ids {
		res[i] = api.ProcessInstanceID(id)
	}
	return res, nil
}

func (s *Redis) MemoryUsage(ctx context.Context) (int64, int64, error) {
	info, err := s.client.Info(ctx, "memory").Result()
	if err != nil {
		return 0, 0, err
	}
	used, max := parseMemoryInfo(info)
	return used, max, nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}

func parseMemoryInfo(info string) (used, max int64) {
	for line := range strings.SplitSeq(info, "\n") {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "used_memory:"); ok {
			used, _ = strconv.ParseInt(after, 10, 64)
		} else if after, ok := strings.CutPrefix(line, "maxmemory:"); ok {
			max, _ = strconv.ParseInt(after, 10, 64)
		}
	}
	return
}
