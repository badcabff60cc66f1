package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// QueueOptions holds flags for the queue command.
type QueueOptions struct {
	*RootOptions
	Clear bool
}

// QueueResult is the JSON payload of the queue command.
type QueueResult struct {
	Marks   []markJSON `json:"marks"`
	Cleared int64      `json:"cleared,omitempty"`
}

// NewQueueCommand creates the queue command.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List or clear the publish queue",
		Long: `List the publish queue: one entry per entity and channel with the most
severe action requested so far (remove > move > modify > dependency).

With --clear the queue is printed and emptied, as the publish pipeline does
after a run.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueue(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "empty the queue after listing it")

	return cmd
}

func runQueue(opts *QueueOptions, cmd *cobra.Command) error {
	e, err := openEnv(opts.RootOptions, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	marks, err := e.store.DirtyMarks(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read publish queue", err)
	}

	res := QueueResult{Marks: marksJSON(marks)}
	if opts.Clear {
		n, err := e.store.ClearDirtyMarks(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to clear publish queue", err)
		}
		res.Cleared = n
	}

	if e.out.JSON() {
		return e.out.Success(res)
	}

	if len(marks) == 0 {
		fmt.Fprintln(e.out.Writer, "Publish queue is empty")
		return nil
	}
	e.out.MarksTable(marks)
	fmt.Fprintf(e.out.Writer, "%s entries\n", humanize.Comma(int64(len(marks))))
	if opts.Clear {
		fmt.Fprintf(e.out.Writer, "Cleared %s entries\n", humanize.Comma(res.Cleared))
	}
	return nil
}
