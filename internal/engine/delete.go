package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kode4food/bpmnflow/internal/archive"
	"github.com/kode4food/bpmnflow/pkg/api"
	"github.com/kode4food/bpmnflow/pkg/log"
)

var _ archive.Retirer = (*Engine)(nil)

// Delete removes a finished process instance and every record it owns.
// Active instances are refused. When an archive is configured the instance
// and its journaled history are written there first, inside the same store
// transaction, so nothing is removed if the write fails and a concurrent
// change retries the whole delete
func (e *Engine) Delete(ctx context.Context, id api.ProcessInstanceID) error {
	var rec *archive.Record
	archived := e.archive != nil
	_, err := e.instanceTx(ctx, id, func(tx *instanceTx) error {
		var err error
		rec, err = e.readRecord(tx.Tx)
		if err != nil {
			return err
		}
		if rec.Instance.Status == api.InstanceActive {
			return fmt.Errorf("%w: %s", ErrInstanceActive, id)
		}
		if archived {
			rec.History = e.archivedHistory(ctx, id)
			if err := e.archive.Write(ctx, rec); err != nil {
				return err
			}
		}
		tx.Tx.Delete()
		tx.emit(api.EventTypeInstanceDeleted, api.InstanceDeletedEvent{
			InstanceID: id,
			Archived:   archived,
		})
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("Process instance deleted",
		log.InstanceID(id),
		log.Status(rec.Instance.Status),
		slog.Bool("archived", archived))

	if e.journal != nil {
		if err := e.journal.Retire(ctx, id); err != nil {
			slog.Warn("Failed to retire instance history",
				log.InstanceID(id),
				log.Error(err))
		}
	}
	return nil
}

func (e *Engine) archivedHistory(
	ctx context.Context, id api.ProcessInstanceID,
) *api.InstanceHistory {
	if e.journal == nil {
		return nil
	}
	res, err := e.journal.History(ctx, id)
	if err != nil {
		slog.Warn("Instance archived without history",
			log.InstanceID(id),
			log.Error(err))
		return nil
	}
	return res
}
