// Package canvas defines the domain model for the visual infrastructure
// graph: typed nodes for the four service kinds, directed access edges,
// and the parser that turns an editor submission into an immutable
// snapshot ready for compilation.
//
// Node kinds form a closed enum. The parser rejects unknown kinds and
// duplicate node ids up front so every later stage can assume a
// well-formed graph; dangling edge endpoints are deliberately tolerated
// because the editor may submit mid-edit states.
package canvas
