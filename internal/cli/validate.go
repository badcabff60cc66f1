package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Table    string                     `json:"table"`
	Kinds    int                        `json:"kinds"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [table.cue]",
		Short: "Validate a dependency table",
		Long: `Compile and validate a CUE dependency table without touching a database.

The table is taken from the argument, then --table, then the built-in table.
Every validation error is reported, not only the first. Cycles between
properties of different objects are reported as warnings: they are legal and
bounded at run time.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Table
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)

	name := path
	if name == "" {
		name = "built-in"
	}
	out.VerboseLog("Validating dependency table %s", name)

	table, err := loadTable(path)
	if err != nil {
		var verrs *compiler.ValidationErrors
		if errors.As(err, &verrs) {
			return outputValidationErrors(out, name, verrs.Errors)
		}
		_ = out.Error(ErrCodeTable, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to compile dependency table", err)
	}

	res := ValidationResult{
		Valid:    true,
		Table:    name,
		Kinds:    len(table.Kinds),
		Warnings: compiler.AnalyzeCycles(table),
	}

	if out.JSON() {
		return out.Success(res)
	}
	fmt.Fprintf(out.Writer, "✓ Dependency table valid (%d kinds)\n", res.Kinds)
	for _, w := range res.Warnings {
		fmt.Fprintf(out.Writer, "  ⚠ %s\n", w.Message)
	}
	return nil
}

func outputValidationErrors(out *OutputFormatter, name string, errs []compiler.ValidationError) error {
	if out.JSON() {
		_ = out.Error(ErrCodeValidation, "validation failed", ValidationResult{
			Valid:  false,
			Table:  name,
			Errors: errs,
		})
	} else {
		fmt.Fprintf(out.Writer, "✗ Validation failed: %s\n", name)
		for _, e := range errs {
			fmt.Fprintf(out.Writer, "  %s\n", e.Error())
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(errs)))
}
