package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/meshctl/internal/ctl"
	"github.com/roach88/meshctl/internal/engine"
	"github.com/roach88/meshctl/internal/nb"
	"github.com/roach88/meshctl/internal/schema"
	"github.com/roach88/meshctl/internal/session"
	"github.com/roach88/meshctl/internal/table"
)

// RootOptions holds the global flags shared by every command in a batch.
type RootOptions struct {
	Database string
	DryRun   bool
	Oneline  bool
	Timeout  int
	Format   string
	Verbose  bool
	Commands bool

	// IDGenerator overrides row id minting (for testing). Nil selects
	// UUIDv7.
	IDGenerator session.IDGenerator
}

// NewRootCommand creates the meshctl root command. The positional
// arguments form the command batch; "--" separates commands within it.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "meshctl [OPTIONS] COMMAND [ARG...] [-- COMMAND [ARG...]]...",
		Short: "mesh database management utility",
		Long: `meshctl manages the contents of a mesh database: switches, their
ports, and their filtering rules. Several commands may be combined into
one batch with "--"; the whole batch commits as a single transaction or
not at all.

Example:
  meshctl switch-add sw0 -- port-add sw0 p1 -- rule-add sw0 to-port 100 'ip' allow
  meshctl --oneline --db ./mesh.db list port`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), opts, args)
		},
	}

	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&opts.Database, "db", envOr("MESH_DB", "meshctl.db"), "path to the mesh database")
	cmd.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false, "validate and report, commit nothing")
	cmd.Flags().BoolVar(&opts.Oneline, "oneline", false, "fold each command's output onto one line")
	cmd.Flags().IntVarP(&opts.Timeout, "timeout", "t", 0, "give up after SECS seconds (0 means wait forever)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "list", "table output format (list|table|csv|json)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.Flags().BoolVar(&opts.Commands, "commands", false, "list the available commands and exit")

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runBatch(ctx context.Context, opts *RootOptions, args []string) error {
	if opts.Commands {
		PrintCommands(os.Stdout, nb.Commands())
		return nil
	}

	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	style, err := table.ParseStyle(opts.Format)
	if err != nil {
		return WrapExitError(ExitCommandError, "bad --format", err)
	}

	cmds, err := ctl.ParseBatch(nb.Commands(), args)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: err.Error(), Err: nil}
	}

	sch, err := schema.Load()
	if err != nil {
		return WrapExitError(ExitFailure, "loading schema", err)
	}

	var connOpts []session.ConnOption
	if opts.IDGenerator != nil {
		connOpts = append(connOpts, session.WithIDGenerator(opts.IDGenerator))
	}
	conn, err := session.Open(opts.Database, sch, connOpts...)
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("cannot open database %q", opts.Database), err)
	}
	defer conn.Close()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.Timeout)*time.Second)
		defer cancel()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	life := &lifecycle{}
	defer life.abort()

	warn := color.New(color.FgYellow)
	eng := engine.New(conn,
		engine.WithDryRun(opts.DryRun),
		engine.WithInvocation(ctl.EscapeArgs(args)),
		engine.WithLogger(logger),
		engine.WithTxnNotify(life.setTxn),
		engine.WithWarnf(func(format string, a ...any) {
			warn.Fprintf(os.Stderr, "warning: "+format+"\n", a...)
		}),
	)

	if err := eng.Run(ctx, cmds); err != nil {
		code := ExitFailure
		if engine.CodeOf(err) == engine.CodeUser {
			code = ExitCommandError
		}
		return &ExitError{Code: code, Message: err.Error()}
	}

	return Dispatch(os.Stdout, cmds, style, opts.Oneline)
}
