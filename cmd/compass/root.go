package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/compass-survey/core"
	"github.com/signalsfoundry/compass-survey/internal/config"
	"github.com/signalsfoundry/compass-survey/internal/logging"
	"github.com/signalsfoundry/compass-survey/internal/observability"
)

// app carries the state shared by every subcommand. It is filled in by the
// root command's PersistentPreRunE.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg      *config.Config
	log      logging.Logger
	shutdown func(context.Context) error
}

// execute runs the command line in args. Output goes to stdout; logs and
// trace exports go to stderr.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer a.close(ctx)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "compass",
		Short:         "Read, check and convert Compass cave survey projects",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format (text or json)")

	root.AddCommand(
		newCheckCmd(a),
		newSummaryCmd(a),
		newCanonicalizeCmd(a),
		newExportCmd(a),
		newIndexCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, errs := config.Load(a.configPath,
		config.WithLogLevel(a.logLevel),
		config.WithLogFormat(a.logFormat),
	)
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	a.cfg = cfg

	logCfg := cfg.LoggingConfig()
	logCfg.Output = cmd.ErrOrStderr()
	a.log = logging.New(logCfg)
	a.log.Debug(cmd.Context(), "configuration loaded", logging.Any("config", cfg.LogSummary()))

	tracing := cfg.TracingConfig()
	tracing.Writer = cmd.ErrOrStderr()
	shutdown, err := observability.InitTracing(cmd.Context(), tracing, a.log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.shutdown = shutdown
	return nil
}

// close flushes tracing. It runs even when a subcommand fails.
func (a *app) close(ctx context.Context) {
	observability.ShutdownWithTimeout(context.WithoutCancel(ctx), a.shutdown, a.log)
}

// newLoader builds a Loader from the configuration plus opts.
func (a *app) newLoader(opts ...core.LoaderOption) (*core.Loader, error) {
	enc, err := core.ParseEncoding(a.cfg.Encoding)
	if err != nil {
		return nil, err
	}
	base := []core.LoaderOption{
		core.WithEncoding(enc),
		core.WithConcurrency(a.cfg.Concurrency),
		core.WithLogger(a.log),
	}
	return core.NewLoader(append(base, opts...)...), nil
}

// describe reduces a load failure to the failing file and its innermost
// parse message when there is one. The original error stays in the chain.
func describe(err error) error {
	var loadErr *core.Error
	if errors.As(err, &loadErr) {
		if se := loadErr.SyntaxError(); se != nil {
			return &parseFailure{path: loadErr.Path, msg: se.Error(), err: err}
		}
	}
	return err
}

type parseFailure struct {
	path string
	msg  string
	err  error
}

func (e *parseFailure) Error() string { return e.path + ": " + e.msg }

func (e *parseFailure) Unwrap() error { return e.err }
