// Package cli implements the bpmnflow command line: definition validation,
// a local simulator, and the archive sweeper
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kode4food/bpmnflow"
	"github.com/kode4food/bpmnflow/internal/config"
	"github.com/kode4food/bpmnflow/pkg/log"
)

// RootOptions holds the configuration shared by every command
type RootOptions struct {
	Config   *config.Config
	LogLevel string
	Redis    string
}

var ErrInvalidLogLevel = errors.New("invalid log level")

// NewRootCommand creates the bpmnflow command tree
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   bpmnflow.Name,
		Short: "BPMN token flow engine",
		Long: "Resolves how BPMN process threads merge and split as flow " +
			"nodes complete.",
		Version:       bpmnflow.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "",
		"log level (debug|info|warn|error), overrides LOG_LEVEL")
	cmd.PersistentFlags().StringVar(&opts.Redis, "redis", "",
		"redis address, overrides REDIS_ADDR")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewArchiveCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	return cmd
}

// Execute runs the command tree and returns the process exit code
func Execute(args []string) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}

func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.Redis != "" {
		cfg.Store.Addr = o.Redis
	}

	level, ok := log.ParseLevel(cfg.LogLevel)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, cfg.LogLevel)
	}
	logger := log.NewWithWriter(
		cmd.ErrOrStderr(), bpmnflow.Name, os.Getenv("ENV"),
		bpmnflow.Version, level,
	)
	slog.SetDefault(logger)

	o.Config = cfg
	return nil
}
