package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
)

// TriggerOptions holds flags for the trigger command.
type TriggerOptions struct {
	*RootOptions
	Mask       string
	Properties []string
	Mutation   string
	Set        map[string]string
	FromNode   int64
	Channel    int64
	User       int64
	Depth      int
	MaxDepth   int
	NoChannels bool
	DryRun     bool

	// TxIDs allows overriding the transaction id generator (for testing).
	TxIDs engine.TxIDGenerator
}

// TriggerResult is the JSON payload of the trigger command.
type TriggerResult struct {
	TxID        string     `json:"tx_id"`
	Committed   bool       `json:"committed"`
	Interrupted bool       `json:"interrupted"`
	Stats       ir.TxStats `json:"stats"`
	Marks       []markJSON `json:"marks"`
}

// NewTriggerCommand creates the trigger command.
func NewTriggerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TriggerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trigger <kind> <id>",
		Short: "Propagate one event and write the publish queue",
		Long: `Propagate an event on an entity in one transaction.

Without --mutation the event is triggered as given by --mask and --props.
With --mutation the entity is changed first (attributes from --set) and the
matching event is triggered, like an edit in the CMS would.

The resulting dirty marks are merged into the publish queue unless
--dry-run is given. Ctrl-C interrupts the propagation; marks written so far
are kept.

Example:
  cascade trigger folder 2 --mask delete --channel 1
  cascade trigger page 10 --mask update --props name
  cascade trigger page 10 --mutation takeoffline`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrigger(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mask, "mask", "update", "event mask, e.g. update|child")
	cmd.Flags().StringSliceVar(&opts.Properties, "props", nil, "changed properties (default: whole object)")
	cmd.Flags().StringVar(&opts.Mutation, "mutation", "", "apply a mutation (create|update|move|delete|hide|reveal|publish|takeoffline)")
	cmd.Flags().StringToStringVar(&opts.Set, "set", nil, "attributes to change with --mutation")
	cmd.Flags().Int64Var(&opts.FromNode, "from-node", 0, "node the entity was moved from (--mutation move)")
	cmd.Flags().Int64Var(&opts.Channel, "channel", 0, "channel the event happens in")
	cmd.Flags().Int64Var(&opts.User, "user", 0, "acting user")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "depth of the event")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", engine.DefaultMaxDepth, "propagation depth bound")
	cmd.Flags().BoolVar(&opts.NoChannels, "no-channels", false, "disable channel handling")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the marks without writing them")

	return cmd
}

func runTrigger(opts *TriggerOptions, args []string, cmd *cobra.Command) error {
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

	engOpts := []engine.Option{
		engine.WithMaxDepth(opts.MaxDepth),
		engine.WithMultichannel(!opts.NoChannels),
	}
	if opts.TxIDs != nil {
		engOpts = append(engOpts, engine.WithTxIDGenerator(opts.TxIDs))
	}
	eng, err := e.engine(engOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	ctx := cmd.Context()
	tx := eng.Begin(opts.Channel, opts.User)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigChan:
			e.logger.Warn("received signal, interrupting", "signal", sig)
			tx.Interrupt()
		case <-done:
		}
	}()

	if opts.Mutation != "" {
		err = applyMutation(opts, e, eng, tx, ref, cmd)
	} else {
		err = eng.TriggerEvent(ctx, tx, ref, nil, opts.Properties, mask, opts.Depth, opts.Channel)
	}

	switch {
	case engine.IsReadOnlyError(err):
		tx.Abort()
		_ = e.out.Error(ErrCodeReadOnly, err.Error(), nil)
		return WrapExitError(ExitFailure, "mutation rejected", err)
	case err != nil && !engine.IsInterruptedError(err):
		tx.Abort()
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr
		}
		return WrapExitError(ExitFailure, "propagation failed", err)
	}

	res := TriggerResult{
		TxID:        tx.ID(),
		Interrupted: tx.Interrupted(),
		Stats:       tx.Stats(),
		Marks:       marksJSON(tx.Marks()),
	}
	marks := tx.Marks()

	if opts.DryRun {
		tx.Abort()
	} else {
		if err := tx.Commit(ctx); err != nil {
			return WrapExitError(ExitFailure, "failed to commit", err)
		}
		res.Committed = true
	}

	if e.out.JSON() {
		if err := e.out.Success(res); err != nil {
			return err
		}
	} else {
		if len(marks) > 0 {
			e.out.MarksTable(marks)
		}
		printTriggerSummary(e.out, res)
	}

	if res.Interrupted {
		return NewExitError(ExitFailure, "propagation interrupted")
	}
	return nil
}

func applyMutation(opts *TriggerOptions, e *env, eng *engine.Engine, tx *engine.Tx, ref ir.EntityRef, cmd *cobra.Command) error {
	kind, err := engine.ParseMutationKind(opts.Mutation)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --mutation", err)
	}
	ent, err := e.loadEntity(cmd, ref)
	if err != nil {
		return err
	}
	for k, v := range opts.Set {
		if ent.Attributes == nil {
			ent.Attributes = make(map[string]string)
		}
		ent.Attributes[k] = v
	}
	return eng.Apply(cmd.Context(), tx, engine.Mutation{
		Kind:       kind,
		Entity:     ent,
		Properties: opts.Properties,
		FromNode:   opts.FromNode,
	})
}

func printTriggerSummary(out *OutputFormatter, res TriggerResult) {
	state := "committed"
	if !res.Committed {
		state = "not committed (dry run)"
	}
	fmt.Fprintf(out.Writer, "Transaction %s %s: %s events, %s marks\n",
		res.TxID, state,
		humanize.Comma(int64(res.Stats.Events)),
		humanize.Comma(int64(len(res.Marks))),
	)

	var skipped []string
	if n := res.Stats.DroppedDepth; n > 0 {
		skipped = append(skipped, fmt.Sprintf("%s beyond depth bound", humanize.Comma(int64(n))))
	}
	if n := res.Stats.SkippedCycles; n > 0 {
		skipped = append(skipped, fmt.Sprintf("%s already in flight", humanize.Comma(int64(n))))
	}
	if n := res.Stats.SkippedStale; n > 0 {
		skipped = append(skipped, fmt.Sprintf("%s stale", humanize.Comma(int64(n))))
	}
	if len(skipped) > 0 {
		fmt.Fprintf(out.Writer, "Skipped: %s\n", strings.Join(skipped, ", "))
	}
	if res.Interrupted {
		fmt.Fprintln(out.Writer, "Interrupted")
	}
}
