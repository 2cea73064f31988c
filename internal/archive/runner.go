package archive

import (
	"context"
	"errors"
	"time"

	"github.com/kode4food/timebox"
)

type (
	// Runner copies retired journal streams from the journal's archive
	// stream into the bucket
	Runner struct {
		poller       ArchivePoller
		writer       *Writer
		pollInterval time.Duration
	}

	// ArchivePoller hands at most one retired stream to a handler per call
	ArchivePoller interface {
		PollArchive(
			context.Context, time.Duration, timebox.ArchiveHandler,
		) error
	}
)

var (
	ErrArchivePollerRequired = errors.New("archive poller is required")
	ErrArchiveWriterRequired = errors.New("archive writer is required")
	ErrPollIntervalInvalid   = errors.New("poll interval must be positive")
)

func NewRunner(
	poller ArchivePoller, writer *Writer, pollInterval time.Duration,
) (*Runner, error) {
	if poller == nil {
		return nil, ErrArchivePollerRequired
	}
	if writer == nil {
		return nil, ErrArchiveWriterRequired
	}
	if pollInterval <= 0 {
		return nil, ErrPollIntervalInvalid
	}
	return &Runner{
		poller:       poller,
		writer:       writer,
		pollInterval: pollInterval,
	}, nil
}

// Run copies streams until ctx is canceled or polling fails
func (r *Runner) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		if err := r.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
	return nil
}

// RunOnce copies at most one stream, waiting up to the poll interval
func (r *Runner) RunOnce(ctx context.Context) error {
	return r.poller.PollArchive(ctx, r.pollInterval, r.writer.WriteStream)
}

// Drain copies streams until a poll interval passes without one, and
// returns how many were copied
func (r *Runner) Drain(ctx context.Context) (int, error) {
	var count int
	for {
		var copied bool
		err := r.poller.PollArchive(ctx, r.pollInterval,
			func(ctx context.Context, rec *timebox.ArchiveRecord) error {
				if err := r.writer.WriteStream(ctx, rec); err != nil {
					return err
				}
				copied = true
				return nil
			},
		)
		if err != nil {
			return count, err
		}
		if !copied {
			return count, nil
		}
		count++
	}
}
