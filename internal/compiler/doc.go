// Package compiler turns the declarative dependency table, written in CUE,
// into the Table the dependency graph is built from.
//
// A table declares, per entity kind, the properties the engine knows about
// and for each computed property the properties it is derived from:
//
//	kinds: page: properties: {
//		name: {}
//		filename: dependsOn: [{property: "name"}]
//		url: dependsOn: [
//			{property: "filename"},
//			{kind: "folder", property: "url", via: "parent"},
//		]
//	}
//
// A source without kind and via refers to a property of the same object.
// "via" names the relation from the dependent object to the source object
// (self, parent, children, languages, variants). "on" restricts the events
// of the source that matter (default: create, update, delete, move).
//
// Field order in the CUE source is preserved and becomes the registration
// order of the graph.
package compiler
