// Package journal keeps an event-sourced history of every process instance,
// one timebox aggregate per instance
package journal

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kode4food/timebox"

	"github.com/kode4food/bpmnflow/internal/engine/event"
	"github.com/kode4food/bpmnflow/pkg/api"
)

// Journal appends committed engine events to per-instance aggregates and
// projects them into an InstanceHistory
type Journal struct {
	timebox   *timebox.Timebox
	store     *timebox.Store
	exec      atomic.Pointer[timebox.Executor[*api.InstanceHistory]]
	archiving bool
}

const instancePrefix = "instance"

var (
	ErrCreateTimebox   = errors.New("failed to create timebox")
	ErrCreateStore     = errors.New("failed to create journal store")
	ErrHistoryNotFound = errors.New("instance history not found")
)

// Open connects a Journal to the Redis database described by cfg. When
// cfg.Archiving is set, retired histories move to the archive stream
func Open(cfg timebox.StoreConfig) (*Journal, error) {
	tb, err := timebox.NewTimebox(timebox.Config{
		MaxRetries: timebox.DefaultMaxRetries,
		CacheSize:  timebox.DefaultExecutorCacheSize,
		Workers:    cfg.WorkerCount > 0,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateTimebox, err)
	}

	st, err := tb.NewStore(cfg)
	if err != nil {
		_ = tb.Close()
		return nil, fmt.Errorf("%w: %w", ErrCreateStore, err)
	}

	res := &Journal{
		timebox:   tb,
		store:     st,
		archiving: cfg.Archiving,
	}
	res.resetCache()
	return res, nil
}

// Key returns the aggregate ID of an instance's history
func Key(id api.ProcessInstanceID) timebox.AggregateID {
	return timebox.NewAggregateID(instancePrefix, timebox.ID(id))
}

// Record appends events to the instance's history, in order
func (j *Journal) Record(
	ctx context.Context, id api.ProcessInstanceID, events []event.Event,
) error {
	if len(events) == 0 {
		return nil
	}
	_, err := j.exec.Load().Exec(ctx, Key(id),
		func(
			_ *api.InstanceHistory, ag *timebox.Aggregator[*api.InstanceHistory],
		) error {
			for _, ev := range events {
				err := timebox.Raise(ag, timebox.EventType(ev.Type), ev.Data)
				if err != nil {
					return err
				}
			}
			return nil
		},
	)
	return err
}

// History returns the journaled history of an instance. Deleted instances
// have no history
func (j *Journal) History(
	ctx context.Context, id api.ProcessInstanceID,
) (*api.InstanceHistory, error) {
	res, err := j.exec.Load().Exec(ctx, Key(id),
		func(
			*api.InstanceHistory, *timebox.Aggregator[*api.InstanceHistory],
		) error {
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	if res == nil || res.InstanceID == "" || res.Deleted {
		return nil, fmt.Errorf("%w: %s", ErrHistoryNotFound, id)
	}
	return res, nil
}

// Retire moves a deleted instance's history to the archive stream. It does
// nothing unless archiving is enabled
func (j *Journal) Retire(ctx context.Context, id api.ProcessInstanceID) error {
	if !j.archiving {
		return nil
	}
	if err := j.store.Archive(ctx, Key(id)); err != nil {
		return err
	}
	// cached projections still carry the archived sequence
	j.resetCache()
	return nil
}

// PollArchive hands at most one retired history to handler, waiting up to
// timeout for one to arrive
func (j *Journal) PollArchive(
	ctx context.Context, timeout time.Duration, handler timebox.ArchiveHandler,
) error {
	return j.store.PollArchive(ctx, timeout, handler)
}

func (j *Journal) resetCache() {
	j.exec.Store(timebox.NewExecutor(j.store, NewHistory, Appliers))
}

// Close releases the journal's store and its timebox
func (j *Journal) Close() error {
	return errors.Join(j.store.Close(), j.timebox.Close())
}
