package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/cascade/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the publish queue to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Marks    []ir.DirtyMark // Publish queue for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Marks) > 0 {
		fmt.Fprintf(&buf, "\nPublish queue:\n")
		for i, m := range e.Marks {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, m)
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertMark:
		return assertMark(result.Marks, a)
	case AssertNoMark:
		return assertNoMark(result.Marks, a)
	case AssertMarkCount:
		return assertMarkCount(result.Marks, a)
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertStat:
		return assertStat(result.Stats(), a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// matchingMarks returns the marks for the assertion's entity and channel.
func matchingMarks(marks []ir.DirtyMark, a Assertion) []ir.DirtyMark {
	var out []ir.DirtyMark
	for _, m := range marks {
		if a.Entity != nil && (m.Kind != a.Entity.Kind || m.ID != a.Entity.ID) {
			continue
		}
		if a.Channel != nil && m.ChannelID != *a.Channel {
			continue
		}
		out = append(out, m)
	}
	return out
}

func describe(a Assertion) string {
	desc := a.Entity.Key().String()
	if a.Channel != nil {
		desc += fmt.Sprintf(" in channel %d", *a.Channel)
	}
	return desc
}

// assertMark checks that the entity has a mark, with the given action if set.
func assertMark(marks []ir.DirtyMark, a Assertion) error {
	found := matchingMarks(marks, a)
	if len(found) == 0 {
		return &AssertionError{
			Type:     AssertMark,
			Expected: "mark for " + describe(a),
			Actual:   "no mark",
			Marks:    marks,
		}
	}
	if a.Action == "" {
		return nil
	}
	for _, m := range found {
		if m.Action.String() != a.Action {
			return &AssertionError{
				Type:     AssertMark,
				Expected: fmt.Sprintf("%s mark for %s", a.Action, describe(a)),
				Actual:   m.String(),
				Marks:    marks,
			}
		}
	}
	return nil
}

// assertNoMark checks that the entity has no mark.
func assertNoMark(marks []ir.DirtyMark, a Assertion) error {
	found := matchingMarks(marks, a)
	if len(found) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertNoMark,
		Expected: "no mark for " + describe(a),
		Actual:   found[0].String(),
		Marks:    marks,
	}
}

// assertMarkCount checks the number of marks, for one entity if given.
func assertMarkCount(marks []ir.DirtyMark, a Assertion) error {
	n := len(matchingMarks(marks, a))
	if n == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertMarkCount,
		Expected: fmt.Sprintf("%d marks", *a.Count),
		Actual:   fmt.Sprintf("%d marks", n),
		Marks:    marks,
	}
}

// assertTraceContains checks that an event for the entity was propagated,
// with exactly the given mask if set.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	want := a.Entity.Key().String()
	var mask ir.EventMask
	if a.Mask != "" {
		parsed, err := ir.ParseMask(a.Mask)
		if err != nil {
			return err
		}
		mask = parsed
	}
	for _, ev := range trace {
		if ev.Entity != want {
			continue
		}
		if a.Mask == "" || ev.Mask == mask.String() {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %s %s", want, a.Mask),
		Actual:   "not found in trace",
	}
}

// assertStat checks a summed transaction counter against its lower bound.
func assertStat(stats ir.TxStats, a Assertion) error {
	v, ok := statValue(stats, a.Stat)
	if !ok {
		return fmt.Errorf("unknown stat %q", a.Stat)
	}
	if v >= a.Min {
		return nil
	}
	return &AssertionError{
		Type:     AssertStat,
		Expected: fmt.Sprintf("%s >= %d", a.Stat, a.Min),
		Actual:   fmt.Sprintf("%s = %d", a.Stat, v),
	}
}

func statValue(s ir.TxStats, name string) (int, bool) {
	switch name {
	case "events":
		return s.Events, true
	case "marks":
		return s.Marks, true
	case "dropped_depth":
		return s.DroppedDepth, true
	case "skipped_cycles":
		return s.SkippedCycles, true
	case "skipped_stale":
		return s.SkippedStale, true
	default:
		return 0, false
	}
}
