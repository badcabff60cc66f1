package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/render"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Reads   []string
	Channel int64
	Clear   bool
}

// RenderResult is the JSON payload of the render command.
type RenderResult struct {
	Root   string             `json:"root"`
	Values map[string]string  `json:"values,omitempty"`
	Rows   []ir.DependencyRow `json:"rows"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <kind> <id>",
		Short: "Record the dependencies of a render",
		Long: `Simulate a render of an entity: resolve the properties given with --read
and record every property of another object the render reads. The recorded
dependencies replace those of the previous render of the same root.

A read is written as kind:id:property. Reading a property of the root itself
records what that property is computed from.

Example:
  cascade render page 13 --read page:11:name --channel 1
  cascade render page 10 --read page:10:url
  cascade render page 13 --clear`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Reads, "read", nil, "property read as kind:id:property (repeatable)")
	cmd.Flags().Int64Var(&opts.Channel, "channel", 0, "channel the render happens in")
	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "only remove the recorded dependencies of the root")

	return cmd
}

type readSpec struct {
	ref      ir.EntityRef
	property string
}

func parseRead(s string) (readSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[2] == "" {
		return readSpec{}, fmt.Errorf("invalid read %q: want kind:id:property", s)
	}
	kind, err := ir.ParseKind(parts[0])
	if err != nil {
		return readSpec{}, fmt.Errorf("invalid read %q: %w", s, err)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || ir.IsEmptyID(id) {
		return readSpec{}, fmt.Errorf("invalid read %q: bad id", s)
	}
	return readSpec{ref: ir.Ref(kind, id), property: parts[2]}, nil
}

func runRender(opts *RenderOptions, args []string, cmd *cobra.Command) error {
	root, err := parseEntityArgs(args)
	if err != nil {
		return err
	}
	reads := make([]readSpec, len(opts.Reads))
	for i, r := range opts.Reads {
		if reads[i], err = parseRead(r); err != nil {
			return WrapExitError(ExitCommandError, "invalid --read", err)
		}
	}

	e, err := openEnv(opts.RootOptions, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	if _, err := e.loadEntity(cmd, root); err != nil {
		return err
	}

	if opts.Clear {
		if err := e.graph.RemovePrepared(ctx, root); err != nil {
			return WrapExitError(ExitFailure, "failed to remove dependencies", err)
		}
		if e.out.JSON() {
			return e.out.Success(RenderResult{Root: root.String(), Rows: []ir.DependencyRow{}})
		}
		fmt.Fprintf(e.out.Writer, "Removed recorded dependencies of %s\n", root)
		return nil
	}

	tracker := render.NewTracker(e.graph, e.store, render.WithLogger(e.logger))
	tracker.Begin(root, opts.Channel)

	res := RenderResult{Root: root.String(), Values: make(map[string]string)}
	for _, r := range reads {
		ent, err := e.loadEntity(cmd, r.ref)
		if err != nil {
			return err
		}
		v := tracker.Resolve(ctx, ent, r.property)
		res.Values[fmt.Sprintf("%s.%s", r.ref, r.property)] = fmt.Sprint(v)
	}
	res.Rows = tracker.Rows()

	if _, err := tracker.Finish(ctx, e.store); err != nil {
		return WrapExitError(ExitFailure, "failed to record dependencies", err)
	}

	if e.out.JSON() {
		return e.out.Success(res)
	}

	rows := make([]table.Row, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = table.Row{r.Source.String(), r.SourceProperty, r.Dependent.String(), r.DependentProperty}
	}
	if len(rows) > 0 {
		e.out.Table(table.Row{"source", "property", "dependent", "dependent property"}, rows)
	}
	fmt.Fprintf(e.out.Writer, "Recorded %s dependencies for %s\n", humanize.Comma(int64(len(res.Rows))), root)
	return nil
}
