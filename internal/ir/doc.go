// Package ir provides the shared data model of the propagation engine.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - An id is "empty" iff it is <= 0 (not yet persisted, or no relation)
//   - Events are immutable; recursion always builds a new Event at depth+1
//   - Entity kinds form a closed set; switches over Kind are exhaustive
//   - All JSON tags use snake_case
package ir
