package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/compiler"
	"github.com/roach88/cascade/internal/depgraph"
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/store"
)

// env is what a command needs to work on a database.
type env struct {
	store  *store.Store
	graph  *depgraph.Graph
	logger *slog.Logger
	out    *OutputFormatter
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// newLogger returns a text logger on w; --verbose enables debug output.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openEnv opens the database and compiles the dependency table. The
// database must exist unless create is set.
func openEnv(opts *RootOptions, cmd *cobra.Command, create bool) (*env, error) {
	if !create && opts.Database != ":memory:" {
		if _, err := os.Stat(opts.Database); err != nil {
			return nil, WrapExitError(ExitCommandError, "database not found (run cascade init)", err)
		}
	}

	logger := newLogger(opts, cmd.ErrOrStderr())

	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	table, err := loadTable(opts.Table)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load dependency table", err)
	}

	graph, err := depgraph.New(table,
		depgraph.WithRelations(st),
		depgraph.WithDependencyStore(st),
		depgraph.WithLogger(logger),
	)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to build dependency graph", err)
	}

	return &env{
		store:  st,
		graph:  graph,
		logger: logger,
		out:    newFormatter(opts, cmd),
	}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing database", "error", err)
	}
}

func (e *env) engine(opts ...engine.Option) (*engine.Engine, error) {
	opts = append([]engine.Option{
		engine.WithCommitter(e.store),
		engine.WithLogger(e.logger),
	}, opts...)
	return engine.New(e.store, e.graph, opts...)
}

func loadTable(path string) (*compiler.Table, error) {
	if path == "" {
		return compiler.DefaultTable()
	}
	return compiler.LoadTable(path)
}

// parseEntityArgs parses "<kind> <id>" positional arguments.
func parseEntityArgs(args []string) (ir.EntityRef, error) {
	kind, err := ir.ParseKind(args[0])
	if err != nil {
		return ir.EntityRef{}, NewExitError(ExitCommandError, err.Error())
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || ir.IsEmptyID(id) {
		return ir.EntityRef{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid id %q", args[1]))
	}
	return ir.Ref(kind, id), nil
}

// loadEntity loads an entity and reports a missing one as a command error.
func (e *env) loadEntity(cmd *cobra.Command, ref ir.EntityRef) (*ir.Entity, error) {
	ent, err := e.store.Entity(cmd.Context(), ref.Kind, ref.ID)
	if errors.Is(err, ir.ErrNotFound) {
		_ = e.out.Error(ErrCodeNotFound, fmt.Sprintf("%s not found", ref), nil)
		return nil, WrapExitError(ExitCommandError, "entity not found", err)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load entity", err)
	}
	return ent, nil
}
