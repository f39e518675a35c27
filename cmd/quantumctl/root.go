package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"quantumcore/internal/core"
)

const defaultEnvFile = ".env"

type options struct {
	logLevel string
	envFile  string
	caller   string
	trace    bool
}

// app carries the per-invocation service and output sink shared by subcommands.
type app struct {
	opts   options
	log    *logrus.Logger
	store  core.PersistentStore
	svc    *core.Service
	tracer *core.JSONTraceTracer
}

// run executes quantumctl with args and always releases the store.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{log: logrus.New()}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "quantumctl",
		Short:         "Manage particle allocations, superposition states and entanglements",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&a.opts.logLevel, "log-level", "l", "warn",
		"set the logging level (can be one of: debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&a.opts.envFile, "env-file", defaultEnvFile,
		"dotenv file loaded before reading QUANTUMCORE_* variables")
	cmd.PersistentFlags().StringVar(&a.opts.caller, "caller", "",
		"identity used for allocation ownership (default tx-sender)")
	cmd.PersistentFlags().BoolVar(&a.opts.trace, "trace", false, "write operation spans as JSON to stderr")

	cmd.AddCommand(
		newAllocateCmd(a),
		newAllocationCmd(a),
		newDeactivateCmd(a),
		newRecordCmd(a),
		newStateCmd(a),
		newEntangleCmd(a),
		newEntanglementCmd(a),
		newListCmd(a),
		newResetCmd(a),
		newSnapshotCmd(a),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := loadEnvFile(a.opts.envFile, cmd.Flags().Changed("env-file")); err != nil {
		return err
	}
	level, err := logrus.ParseLevel(a.opts.logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	a.log.SetLevel(level)
	a.log.SetOutput(cmd.ErrOrStderr())

	store, err := core.OpenPersistentStore(core.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.store = store
	opts := []core.Option{core.WithLogger(core.NewLogrusLogger(a.log))}
	if a.opts.trace {
		a.tracer = core.NewJSONTracer(cmd.ErrOrStderr())
		opts = append(opts, core.WithTracer(a.tracer))
	}
	a.svc = core.NewService(store, opts...)
	return nil
}

// loadEnvFile applies the dotenv file without overriding variables that are
// already set. A missing default file is ignored.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

func (a *app) close() error {
	closer, ok := a.store.(io.Closer)
	a.store = nil
	if !ok {
		return nil
	}
	return closer.Close()
}

func (a *app) context(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.opts.caller != "" {
		ctx = core.WithCaller(ctx, a.opts.caller)
	}
	return ctx
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", what, raw, err)
	}
	return id, nil
}
