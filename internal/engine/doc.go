// Package engine implements the event propagator.
//
// Every entity mutator calls TriggerEvent (usually through Apply) as the
// last step of persisting a change. The engine delivers the event to the
// changed entity, runs its side effects, and sends a Dirt event to every
// object whose rendered output was derived from what changed. The result
// is a set of dirty marks on the transaction, merged per entity and
// channel, which Commit hands to the publish queue.
//
// ARCHITECTURE:
//
// Event Processing Flow:
//  1. Dirt events write a Dependency mark and stop.
//  2. Side effects: move handling, the depth-0 publish action, binary
//     content changes, kind handlers (folder delete/move, page status,
//     tags), localized-copy creation, the parent folder's child list, and
//     re-dispatch to every channel that inherits the entity.
//  3. Dependency fan-out: the dependency graph lists the dependents of the
//     changed properties; each visible dependent gets a Dirt event at
//     depth+1.
//
// TERMINATION:
//
// Dirt is terminal, so every static dependency chain is one step long.
// Chains through kind handlers and corrupt data are cut by two guards
// scoped to one top-level call: a CycleDetector that skips an event already
// propagated in the pass, and a DepthLimiter that drops events beyond the
// depth bound. Neither is an error for the caller; both are counted in
// Tx.Stats.
//
// Propagation is single-threaded per transaction. Trace entries are
// stamped from a logical clock, never wall time.
package engine
