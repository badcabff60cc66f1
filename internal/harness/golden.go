package harness

import (
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cascade/internal/ir"
)

// MarkSnapshot captures the publish queue of a scenario run. Marks are
// sorted by (kind, id, channel) so the snapshot does not depend on arrival
// order; properties are left out.
type MarkSnapshot struct {
	ScenarioName string
	Marks        []ir.DirtyMark
}

// toCanonicalMap converts the snapshot for ir.MarshalCanonical, which only
// handles primitives, slices and maps.
func (s *MarkSnapshot) toCanonicalMap() map[string]any {
	marks := append([]ir.DirtyMark(nil), s.Marks...)
	sort.Slice(marks, func(i, j int) bool {
		a, b := marks[i], marks[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.ChannelID < b.ChannelID
	})

	list := make([]any, len(marks))
	for i, m := range marks {
		list[i] = map[string]any{
			"kind":    string(m.Kind),
			"id":      m.ID,
			"channel": m.ChannelID,
			"action":  m.Action.String(),
		}
	}
	return map[string]any{
		"scenario": s.ScenarioName,
		"marks":    list,
	}
}

// RunWithGolden executes a scenario and compares its publish queue against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares a result's publish queue against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := MarkSnapshot{ScenarioName: scenarioName, Marks: result.Marks}
	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
