package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"

	"github.com/kode4food/bpmnflow/internal/archive"
	"github.com/kode4food/bpmnflow/internal/config"
	"github.com/kode4food/bpmnflow/internal/definition"
	"github.com/kode4food/bpmnflow/internal/engine"
	"github.com/kode4food/bpmnflow/internal/journal"
	"github.com/kode4food/bpmnflow/internal/store"
	"github.com/kode4food/bpmnflow/pkg/api"
	"github.com/kode4food/bpmnflow/pkg/builder"
	"github.com/kode4food/bpmnflow/pkg/log"
)

type (
	// RunOptions configures a simulated process run
	RunOptions struct {
		*RootOptions
		Instance string
		Embedded bool
		MaxSteps int
		Archive  string
		Keep     bool
		History  bool
	}

	// session owns an engine and everything it was built on
	session struct {
		engine  *engine.Engine
		store   *store.Redis
		journal *journal.Journal
		writer  *archive.Writer
		closer  []func() error
	}
)

const defaultMaxSteps = 1000

var (
	ErrStepLimit = errors.New("step limit reached")
	ErrStalled   = errors.New("instance stalled")
)

// NewRunCommand creates the run command
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <definition.json>",
		Short: "Simulate a process instance to completion",
		Long: "Deploys a definition, starts an instance, and completes " +
			"every activated flow node in turn, printing each token " +
			"decision. Outgoing transitions are chosen by structure.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(
				cmd.Context(), cmd.OutOrStdout(), opts, args[0],
			)
		},
	}

	cmd.Flags().StringVar(&opts.Instance, "instance", "",
		"process instance ID (generated when empty)")
	cmd.Flags().BoolVar(&opts.Embedded, "embedded", true,
		"run against an in-process redis instead of the configured one")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", defaultMaxSteps,
		"maximum number of flow node completions")
	cmd.Flags().StringVar(&opts.Archive, "archive", "",
		"bucket URL the finished instance is archived to")
	cmd.Flags().BoolVar(&opts.Keep, "keep", false,
		"keep the finished instance in the store")
	cmd.Flags().BoolVar(&opts.History, "history", false,
		"print the journaled history of the finished instance")
	return cmd
}

func runSimulation(
	ctx context.Context, w io.Writer, opts *RunOptions, path string,
) error {
	def, err := definition.LoadFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	cfg := *opts.Config
	if opts.Embedded {
		server, err := miniredis.Run()
		if err != nil {
			return err
		}
		defer server.Close()
		cfg.Store.Addr = server.Addr()
		cfg.Journal.Addr = ""
	}
	if opts.Archive != "" {
		cfg.Archive.BucketURL = opts.Archive
	}

	sess, err := newSession(ctx, &cfg)
	if err != nil {
		return err
	}
	defer sess.close()

	if _, err := sess.engine.Deploy(ctx, def); err != nil {
		return err
	}

	id := api.ProcessInstanceID(opts.Instance)
	if id == "" {
		id = builder.NewInstanceID(def.ID)
	}
	started, err := sess.engine.StartInstance(ctx, def.ID, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "instance %s started\n", id)
	printCompletion(w, started)

	steps, err := drive(ctx, w, sess.engine, started, opts.MaxSteps)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "instance %s completed in %d steps\n", id, steps)

	if opts.History {
		h, err := sess.engine.History(ctx, id)
		if err != nil {
			return err
		}
		printHistory(w, h)
	}

	if opts.Keep {
		return nil
	}
	return sess.engine.Delete(ctx, id)
}

// drive completes activated flow nodes in activation order until the
// instance finishes
func drive(
	ctx context.Context, w io.Writer, eng *engine.Engine,
	started *engine.Completion, maxSteps int,
) (int, error) {
	id := started.Instance.ID
	pending := started.Activated
	last := started
	steps := 0
	for !last.InstanceCompleted() {
		if len(pending) == 0 {
			return steps, fmt.Errorf("%w: %s has nothing to complete",
				ErrStalled, id)
		}
		if steps >= maxSteps {
			return steps, fmt.Errorf("%w: %d", ErrStepLimit, maxSteps)
		}

		fn := pending[0]
		pending = pending[1:]
		res, err := eng.Complete(ctx, id, fn.ID)
		if err != nil {
			return steps, err
		}
		steps++
		printCompletion(w, res)
		pending = append(pending, res.Activated...)
		last = res
	}
	return steps, nil
}

func printCompletion(w io.Writer, c *engine.Completion) {
	for _, r := range c.Resolutions {
		dec := r.Decision
		fmt.Fprintf(w, "  %-16s %-9s %s\n",
			r.FlowNode.DefinitionID, dec.Kind, decisionRefs(dec))
	}
	for _, js := range c.Waiting {
		fmt.Fprintf(w, "  %-16s waiting   %d arrived\n",
			js.Gateway, len(js.Arrivals))
	}
}

func printHistory(w io.Writer, h *api.InstanceHistory) {
	fmt.Fprintf(w, "history %s (%s)\n", h.InstanceID, h.Status)
	for _, step := range h.Steps {
		fmt.Fprintf(w, "  %-20s %-16s %s\n",
			step.Type, step.FlowNode, step.Decision)
	}
}

func decisionRefs(dec api.TokenDecision) string {
	switch dec.Kind {
	case api.DecisionCreate:
		return fmt.Sprintf("%d threads", len(dec.Created))
	case api.DecisionTransmit, api.DecisionJoin:
		return string(dec.RefID)
	default:
		return ""
	}
}

// newSession connects a store and a journal and builds an engine over
// them, archiving to the configured bucket when one is set
func newSession(ctx context.Context, cfg *config.Config) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st := store.NewRedis(cfg.Store)
	s := &session{store: st, closer: []func() error{st.Close}}
	if err := st.Ping(ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Store.Addr, err)
	}

	jnl, err := journal.Open(cfg.JournalStore())
	if err != nil {
		s.close()
		return nil, err
	}
	s.journal = jnl
	s.closer = append(s.closer, jnl.Close)

	deps := engine.Dependencies{Store: st, Journal: jnl}
	if cfg.Archive.BucketURL != "" {
		bucket, err := archive.OpenBucket(ctx, cfg.Archive.BucketURL)
		if err != nil {
			s.close()
			return nil, err
		}
		s.closer = append(s.closer, bucket.Close)
		writer, err := archive.NewWriter(bucket, cfg.Archive.Prefix)
		if err != nil {
			s.close()
			return nil, err
		}
		s.writer = writer
		deps.Archive = writer
	}

	eng, err := engine.New(cfg, deps)
	if err != nil {
		s.close()
		return nil, err
	}
	eng.Start()
	s.engine = eng
	return s, nil
}

func (s *session) close() {
	if s.engine != nil {
		s.engine.Stop()
	}
	for i := len(s.closer) - 1; i >= 0; i-- {
		if err := s.closer[i](); err != nil {
			slog.Warn("Failed to close resource", log.Error(err))
		}
	}
}
