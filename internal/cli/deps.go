package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/ir"
)

// DepsOptions holds flags for the deps command.
type DepsOptions struct {
	*RootOptions
	Properties []string
	Mask       string
	Channel    int64
	Recorded   bool
}

// DepsResult is the JSON payload of the deps command.
type DepsResult struct {
	Entity       string             `json:"entity"`
	Closure      []string           `json:"closure"`
	Dependencies []dependencyJSON   `json:"dependencies"`
	Recorded     []ir.DependencyRow `json:"recorded,omitempty"`
}

type dependencyJSON struct {
	Source    string `json:"source"`
	Dependent string `json:"dependent"`
	Target    string `json:"target,omitempty"`
	Via       string `json:"via"`
	Dynamic   bool   `json:"dynamic"`
}

// NewDepsCommand creates the deps command.
func NewDepsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DepsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deps <kind> <id>",
		Short: "Show what depends on an entity",
		Long: `Show the dependents a change of an entity reaches in one step.

The closure lists the properties of the entity itself that are derived from
the changed ones. Dependencies are the static rules of the dependency table
followed by the dependencies recorded while rendering.

With --recorded, the dependencies recorded while rendering this entity as a
root are listed as well.

Example:
  cascade deps folder 2 --props pub_dir
  cascade deps page 11 --props name --channel 1`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeps(opts, args, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Properties, "props", nil, "changed properties (default: whole object)")
	cmd.Flags().StringVar(&opts.Mask, "mask", "update", "event mask")
	cmd.Flags().Int64Var(&opts.Channel, "channel", 0, "channel")
	cmd.Flags().BoolVar(&opts.Recorded, "recorded", false, "also list dependencies recorded for this entity as render root")

	return cmd
}

func runDeps(opts *DepsOptions, args []string, cmd *cobra.Command) error {
	ref, err := parseEntityArgs(args)
	if err != nil {
		return err
	}
	mask, err := ir.ParseMask(opts.Mask)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --mask", err)
	}

	e, err := openEnv(opts.RootOptions, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	if _, err := e.loadEntity(cmd, ref); err != nil {
		return err
	}

	deps, err := e.graph.AllDependencies(ctx, ref, opts.Properties, mask.Corrected(), opts.Channel)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to resolve dependencies", err)
	}

	res := DepsResult{
		Entity:       ref.String(),
		Closure:      e.graph.Closure(ref.Kind, opts.Properties),
		Dependencies: make([]dependencyJSON, len(deps)),
	}
	for i, d := range deps {
		res.Dependencies[i] = dependencyJSON{
			Source:    d.Source.String(),
			Dependent: d.Dependent.String(),
			Target:    d.Target.Property,
			Via:       string(d.Via),
			Dynamic:   d.Dynamic,
		}
	}
	if opts.Recorded {
		if res.Recorded, err = e.store.Dependencies(ctx, ref); err != nil {
			return WrapExitError(ExitFailure, "failed to read recorded dependencies", err)
		}
	}

	if e.out.JSON() {
		return e.out.Success(res)
	}

	if len(res.Closure) > 0 {
		fmt.Fprintf(e.out.Writer, "Closure: %s\n", strings.Join(res.Closure, ", "))
	}
	if len(deps) == 0 {
		fmt.Fprintln(e.out.Writer, "No dependents")
	} else {
		rows := make([]table.Row, len(res.Dependencies))
		for i, d := range res.Dependencies {
			kind := "static"
			if d.Dynamic {
				kind = "rendered"
			}
			rows[i] = table.Row{d.Source, d.Dependent, d.Target, d.Via, kind}
		}
		e.out.Table(table.Row{"source", "dependent", "property", "via", "kind"}, rows)
		fmt.Fprintf(e.out.Writer, "%s dependencies\n", humanize.Comma(int64(len(deps))))
	}

	if opts.Recorded {
		rows := make([]table.Row, len(res.Recorded))
		for i, r := range res.Recorded {
			rows[i] = table.Row{r.Source.String(), r.SourceProperty, r.Dependent.String(), r.DependentProperty, r.Mask.String(), r.ChannelID}
		}
		fmt.Fprintf(e.out.Writer, "Recorded while rendering %s:\n", ref)
		e.out.Table(table.Row{"source", "property", "dependent", "dependent property", "mask", "channel"}, rows)
	}
	return nil
}
