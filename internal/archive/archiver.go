package archive

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kode4food/bpmnflow/internal/config"
	"github.com/kode4food/bpmnflow/pkg/api"
	"github.com/kode4food/bpmnflow/pkg/log"
)

type (
	// Archiver periodically moves finished instances out of the live
	// store. Instances older than MaxAge are swept on every interval, and
	// the oldest finished instances are evicted early when the database
	// runs short of memory
	Archiver struct {
		source  Source
		retirer Retirer
		config  config.ArchiveConfig
		mu      sync.Mutex
	}

	// Source lists finished instances and reports database memory
	Source interface {
		Finished(
			ctx context.Context, before time.Time, limit int,
		) ([]api.ProcessInstanceID, error)
		MemoryUsage(ctx context.Context) (used, max int64, err error)
	}

	// Retirer archives and removes one instance
	Retirer interface {
		Delete(ctx context.Context, id api.ProcessInstanceID) error
	}
)

var (
	ErrSourceRequired  = errors.New("archive source is required")
	ErrRetirerRequired = errors.New("archive retirer is required")
)

func NewArchiver(
	src Source, r Retirer, cfg config.ArchiveConfig,
) (*Archiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, ErrSourceRequired
	}
	if r == nil {
		return nil, ErrRetirerRequired
	}
	return &Archiver{
		source:  src,
		retirer: r,
		config:  cfg,
	}, nil
}

// Run sweeps until ctx is canceled
func (a *Archiver) Run(ctx context.Context) error {
	pressureTicker := time.NewTicker(a.config.MemoryCheckInterval)
	ageTicker := time.NewTicker(a.config.SweepInterval)
	defer pressureTicker.Stop()
	defer ageTicker.Stop()

	a.RelievePressure(ctx)
	a.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pressureTicker.C:
			a.RelievePressure(ctx)
		case <-ageTicker.C:
			a.Sweep(ctx)
		}
	}
}

// Sweep retires instances that finished more than MaxAge ago and returns
// how many were retired
func (a *Archiver) Sweep(ctx context.Context) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	before := time.Now().Add(-a.config.MaxAge)
	ids, err := a.source.Finished(ctx, before, a.config.SweepBatchSize)
	if err != nil {
		slog.Warn("Failed to list instances for age sweep", log.Error(err))
		return 0
	}
	return a.retire(ctx, ids)
}

// RelievePressure retires the oldest finished instances regardless of age
// when memory use crosses MemoryPercent, returning how many were retired
func (a *Archiver) RelievePressure(ctx context.Context) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.checkMemoryPressure(ctx) <= 0 {
		return 0
	}

	ids, err := a.source.Finished(ctx, time.Now(), a.config.PressureBatchSize)
	if err != nil {
		slog.Warn("Failed to list instances under memory pressure",
			log.Error(err))
		return 0
	}
	return a.retire(ctx, ids)
}

func (a *Archiver) retire(
	ctx context.Context, ids []api.ProcessInstanceID,
) int {
	retired := 0
	for _, id := range ids {
		if err := a.retirer.Delete(ctx, id); err != nil {
			slog.Warn("Failed to archive instance",
				log.InstanceID(id),
				log.Error(err))
			continue
		}
		retired++
	}
	if retired > 0 {
		slog.Info("Instances archived", slog.Int("count", retired))
	}
	return retired
}

func (a *Archiver) checkMemoryPressure(ctx context.Context) float64 {
	used, max, err := a.source.MemoryUsage(ctx)
	if err != nil {
		slog.Warn("Failed to read memory usage", log.Error(err))
		return 0
	}
	if max == 0 {
		return 0
	}

	usedPercent := (float64(used) / float64(max)) * 100
	if usedPercent < a.config.MemoryPercent {
		return 0
	}
	return usedPercent / 100
}
