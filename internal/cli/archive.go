package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kode4food/bpmnflow/internal/archive"
	"github.com/kode4food/bpmnflow/pkg/api"
)

type (
	// ArchiveOptions configures the archive sweeper
	ArchiveOptions struct {
		*RootOptions
		Bucket string
		MaxAge time.Duration
		Once   bool
	}

	// InspectOptions selects an archived instance
	InspectOptions struct {
		*RootOptions
		Bucket string
	}
)

const journalPollInterval = 100 * time.Millisecond

var ErrBucketURLRequired = errors.New("archive bucket URL required")

// NewArchiveCommand creates the archive command
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move finished instances from redis to blob storage",
		Long: "Sweeps finished process instances older than the maximum " +
			"age into the archive bucket, and evicts the oldest ones early " +
			"when redis runs short of memory.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runArchive(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Bucket, "bucket", "",
		"archive bucket URL, overrides ARCHIVE_BUCKET_URL")
	cmd.Flags().DurationVar(&opts.MaxAge, "max-age", 0,
		"age after which finished instances are archived, overrides "+
			"ARCHIVE_MAX_AGE")
	cmd.Flags().BoolVar(&opts.Once, "once", false,
		"sweep once and exit")
	return cmd
}

func runArchive(cmd *cobra.Command, opts *ArchiveOptions) error {
	cfg := *opts.Config
	if opts.Bucket != "" {
		cfg.Archive.BucketURL = opts.Bucket
	}
	if opts.MaxAge != 0 {
		cfg.Archive.MaxAge = opts.MaxAge
	}
	if cfg.Archive.BucketURL == "" {
		return ErrBucketURLRequired
	}

	ctx, stop := signal.NotifyContext(
		cmd.Context(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	sess, err := newSession(ctx, &cfg)
	if err != nil {
		return err
	}
	defer sess.close()

	arch, err := archive.NewArchiver(sess.store, sess.engine, cfg.Archive)
	if err != nil {
		return err
	}

	runner, err := archive.NewRunner(
		sess.journal, sess.writer, journalPollInterval,
	)
	if err != nil {
		return err
	}

	if opts.Once {
		w := cmd.OutOrStdout()
		count := arch.Sweep(ctx)
		fmt.Fprintf(w, "archived %d instances\n", count)
		streams, err := runner.Drain(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "archived %d journal streams\n", streams)
		return nil
	}

	slog.Info("Archiver running",
		slog.String("bucket", cfg.Archive.BucketURL),
		slog.Duration("max_age", cfg.Archive.MaxAge))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return arch.Run(ctx) })
	g.Go(func() error { return runner.Run(ctx) })
	return g.Wait()
}

// NewInspectCommand creates the inspect command
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <definition-id> <instance-id>",
		Short: "Print an archived process instance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, opts,
				api.DefinitionID(args[0]), api.ProcessInstanceID(args[1]),
			)
		},
	}

	cmd.Flags().StringVar(&opts.Bucket, "bucket", "",
		"archive bucket URL, overrides ARCHIVE_BUCKET_URL")
	return cmd
}

func runInspect(
	cmd *cobra.Command, opts *InspectOptions,
	def api.DefinitionID, id api.ProcessInstanceID,
) error {
	url := opts.Config.Archive.BucketURL
	if opts.Bucket != "" {
		url = opts.Bucket
	}
	if url == "" {
		return ErrBucketURLRequired
	}

	ctx := cmd.Context()
	bucket, err := archive.OpenBucket(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = bucket.Close() }()

	r, err := archive.NewReader(bucket, opts.Config.Archive.Prefix)
	if err != nil {
		return err
	}
	rec, err := r.Read(ctx, def, id)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
