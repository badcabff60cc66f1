package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/store"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Fixture string
}

// InitResult is the JSON payload of the init command.
type InitResult struct {
	Database    string `json:"database"`
	Nodes       int    `json:"nodes"`
	ChannelSets int    `json:"channelsets"`
	Entities    int    `json:"entities"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database and optionally seed a content tree",
		Long: `Create the SQLite database and apply the schema.

With --fixture, the nodes, channel sets and entities of a YAML content tree
are written to the database.

Example:
  cascade init --db ./site.db --fixture ./tree.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Fixture, "fixture", "", "YAML content tree to seed")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	var fixture *store.Fixture
	if opts.Fixture != "" {
		f, err := store.LoadFixture(opts.Fixture)
		if err != nil {
			_ = out.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load fixture", err)
		}
		fixture = f
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	res := InitResult{Database: opts.Database}
	if fixture != nil {
		if err := st.Seed(cmd.Context(), fixture); err != nil {
			return WrapExitError(ExitCommandError, "failed to seed fixture", err)
		}
		res.Nodes = len(fixture.Nodes)
		res.ChannelSets = len(fixture.ChannelSets)
		res.Entities = len(fixture.Entities)
	}
	out.VerboseLog("Initialized %s", opts.Database)

	if out.JSON() {
		return out.Success(res)
	}
	fmt.Fprintf(out.Writer, "Initialized %s: %s nodes, %s channel sets, %s entities\n",
		res.Database,
		humanize.Comma(int64(res.Nodes)),
		humanize.Comma(int64(res.ChannelSets)),
		humanize.Comma(int64(res.Entities)),
	)
	return nil
}
