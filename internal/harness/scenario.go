package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
)

// Scenario defines a propagation scenario: a content tree, a list of
// steps and the assertions on the resulting publish queue.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture is the YAML content tree the store is seeded with.
	Fixture string `yaml:"fixture"`

	// Table is an optional CUE dependency table; the default table is
	// used when empty.
	Table string `yaml:"table,omitempty"`

	// Channel is the default channel of every step.
	Channel int64 `yaml:"channel,omitempty"`

	// User is the acting user recorded on every transaction.
	User int64 `yaml:"user,omitempty"`

	// MaxDepth overrides the engine depth bound.
	MaxDepth int `yaml:"max_depth,omitempty"`

	// Multichannel disables channel handling when set to false.
	Multichannel *bool `yaml:"multichannel,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one transaction. Exactly one of Trigger, Apply and Render is set.
type Step struct {
	Trigger *TriggerStep `yaml:"trigger,omitempty"`
	Apply   *ApplyStep   `yaml:"apply,omitempty"`
	Render  *RenderStep  `yaml:"render,omitempty"`

	// Channel overrides the scenario channel for this step.
	Channel *int64 `yaml:"channel,omitempty"`

	// Interrupt interrupts the transaction before the step runs.
	Interrupt bool `yaml:"interrupt,omitempty"`

	// ExpectError names the error the step must fail with:
	// "interrupted" or "read_only".
	ExpectError string `yaml:"expect_error,omitempty"`
}

// TriggerStep calls Engine.TriggerEvent directly.
type TriggerStep struct {
	Entity     ir.EntityRef  `yaml:"entity"`
	Object     *ir.EntityRef `yaml:"object,omitempty"`
	Properties []string      `yaml:"properties,omitempty"`
	Mask       ir.EventMask  `yaml:"mask"`
	Depth      int           `yaml:"depth,omitempty"`
}

// ApplyStep loads an entity, applies attribute changes and persists the
// mutation through Engine.Apply.
type ApplyStep struct {
	Mutation   engine.MutationKind `yaml:"mutation"`
	Entity     ir.EntityRef        `yaml:"entity"`
	Properties []string            `yaml:"properties,omitempty"`
	Attributes map[string]string   `yaml:"attributes,omitempty"`
	FromNode   int64               `yaml:"from_node,omitempty"`
	ReadOnly   bool                `yaml:"read_only,omitempty"`
}

// RenderStep records the reads of a render of Root.
type RenderStep struct {
	Root  ir.EntityRef `yaml:"root"`
	Reads []Read       `yaml:"reads"`
}

// Read is one property read during a render.
type Read struct {
	Kind     ir.Kind `yaml:"kind"`
	ID       int64   `yaml:"id"`
	Property string  `yaml:"property"`
}

// Assertion validates the publish queue, the trace or the stats.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Entity selects marks or events (mark, no_mark, mark_count, trace_contains).
	Entity *ir.EntityRef `yaml:"entity,omitempty"`

	// Channel restricts mark assertions to one channel.
	Channel *int64 `yaml:"channel,omitempty"`

	// Action is the expected mark action (mark).
	Action string `yaml:"action,omitempty"`

	// Mask is the expected event mask (trace_contains).
	Mask string `yaml:"mask,omitempty"`

	// Count is the expected number of marks (mark_count).
	Count *int `yaml:"count,omitempty"`

	// Stat names a transaction counter and Min its lower bound (stat).
	Stat string `yaml:"stat,omitempty"`
	Min  int    `yaml:"min,omitempty"`
}

// Assertion type constants.
const (
	AssertMark          = "mark"
	AssertNoMark        = "no_mark"
	AssertMarkCount     = "mark_count"
	AssertTraceContains = "trace_contains"
	AssertStat          = "stat"
)

// Expected error names.
const (
	ExpectInterrupted = "interrupted"
	ExpectReadOnly    = "read_only"
)

// LoadScenario reads and parses a scenario YAML file. Fixture and table
// paths are resolved relative to the file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	if s.Fixture != "" && !filepath.IsAbs(s.Fixture) {
		s.Fixture = filepath.Join(base, s.Fixture)
	}
	if s.Table != "" && !filepath.IsAbs(s.Table) {
		s.Table = filepath.Join(base, s.Table)
	}
	if _, err := os.Stat(s.Fixture); err != nil {
		return nil, fmt.Errorf("invalid scenario: fixture not found: %s", s.Fixture)
	}
	return s, nil
}

// ParseScenario decodes and validates a scenario without resolving paths.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Fixture == "" {
		return fmt.Errorf("fixture is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	set := 0
	for _, present := range []bool{step.Trigger != nil, step.Apply != nil, step.Render != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of trigger, apply, render is required")
	}

	switch step.ExpectError {
	case "", ExpectInterrupted, ExpectReadOnly:
	default:
		return fmt.Errorf("unknown expect_error %q", step.ExpectError)
	}

	switch {
	case step.Trigger != nil:
		if step.Trigger.Entity.Empty() {
			return fmt.Errorf("trigger: entity is required")
		}
		if step.Trigger.Mask == ir.EventNone {
			return fmt.Errorf("trigger: mask is required")
		}
	case step.Apply != nil:
		if _, err := engine.ParseMutationKind(string(step.Apply.Mutation)); err != nil {
			return fmt.Errorf("apply: %w", err)
		}
		if step.Apply.Entity.Empty() {
			return fmt.Errorf("apply: entity is required")
		}
	case step.Render != nil:
		if step.Render.Root.Empty() {
			return fmt.Errorf("render: root is required")
		}
		for j, r := range step.Render.Reads {
			if r.Property == "" || ir.IsEmptyID(r.ID) {
				return fmt.Errorf("render: reads[%d]: kind, id and property are required", j)
			}
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertMark, AssertNoMark, AssertTraceContains:
		if a.Entity == nil {
			return fmt.Errorf("%s: entity is required", a.Type)
		}
	case AssertMarkCount:
		if a.Count == nil {
			return fmt.Errorf("mark_count: count is required")
		}
	case AssertStat:
		if _, ok := statValue(ir.TxStats{}, a.Stat); !ok {
			return fmt.Errorf("stat: unknown counter %q", a.Stat)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	if a.Action != "" {
		if _, err := ir.ParseAction(a.Action); err != nil {
			return err
		}
	}
	if a.Mask != "" {
		if _, err := ir.ParseMask(a.Mask); err != nil {
			return err
		}
	}
	return nil
}
