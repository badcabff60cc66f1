// Package depgraph answers "who depends on this change?".
//
// A Graph is built once from a compiled dependency table. It holds two
// things:
//
//   - a Registry of every declared property per entity kind, each with the
//     accessor that computes it and the properties it is derived from;
//   - the inverse edges of the table, keyed by source property, used by
//     AllDependencies to find dependents of a change.
//
// Static dependents are resolved through Relations (parent, children,
// language and page variants). Dynamic dependents recorded while rendering
// are read from a DependencyStore and merged after the static ones.
//
// The Graph is immutable after construction and safe for concurrent reads.
package depgraph
