// Package harness runs propagation scenarios against a real store and
// engine and checks the resulting publish queue.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: folder_delete
//	description: "Deleting a folder removes its contents"
//	fixture: ../fixtures/tree.yaml
//	channel: 1
//	steps:
//	  - trigger:
//	      entity: {kind: folder, id: 2}
//	      mask: delete
//	  - apply:
//	      mutation: takeoffline
//	      entity: {kind: page, id: 10}
//	  - render:
//	      root: {kind: page, id: 13}
//	      reads:
//	        - {kind: page, id: 11, property: name}
//	  - trigger: {entity: {kind: page, id: 10}, mask: update}
//	    interrupt: true
//	    expect_error: interrupted
//	assertions:
//	  - type: mark
//	    entity: {kind: page, id: 10}
//	    channel: 1
//	    action: remove
//
// Fixture and table paths are relative to the scenario file. Every step
// runs in its own transaction, committed when the step ends, so later steps
// see the dependency rows and marks of earlier ones.
//
// # Assertion Types
//
//   - mark: a mark exists for the entity (optionally in a channel, with an action)
//   - no_mark: no mark exists for the entity (optionally in a channel)
//   - mark_count: the number of marks, for one entity if given
//   - trace_contains: an event for the entity (optionally with a mask) was propagated
//   - stat: a transaction counter summed over all steps is at least min
//
// # Deterministic Testing
//
// Scenarios run on an in-memory SQLite store with a deterministic clock
// (testutil.DeterministicClock) and sequential transaction ids, so traces
// and marks are identical across runs and can be compared against golden
// files.
package harness
