// Package store provides SQLite-backed persistence for the propagation
// engine.
//
// The store holds:
//   - Nodes: content nodes and channels (a channel has a master node)
//   - Entities: folders, pages, files, images, tags and generic objects
//   - Channel sets: channel id -> variant id per master object
//   - Dependencies: dynamic rows recorded while rendering, keyed by root
//   - Dirty marks: the publish queue, one row per (kind, id, channel)
//   - Transactions: one audit row per committed propagation transaction
//
// # Patterns
//
// Publish queue merge: writing a mark for an occupied slot keeps the more
// severe action and unites the property lists. The first sequence number
// is kept, so the queue lists slots in first-arrival order.
//
// Deterministic reads: every list query carries an ORDER BY so results are
// identical across runs.
//
// Content-addressed dependency rows: row ids come from
// ir.DependencyRowID (canonical JSON, SHA-256 with domain separation), so
// recording the same read twice is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
