// Package graph defines the openEO process graph structural types: nodes,
// arguments, and the parameter-reference placeholders the dispatcher
// resolves (spec §3, §4.1; grounded on the @process decorator in
// _examples/original_source/titiler/openeo/processes/implementations/core.py).
package graph

// Arg is the sum type of an argument value inside a process graph node: a
// JSON literal, an edge to another node's result, or a reference to a
// named parameter supplied by the caller.
type Arg struct {
	// Kind discriminates which of the fields below is populated.
	Kind ArgKind

	// Literal holds the raw JSON-decoded value when Kind == ArgLiteral.
	Literal any

	// FromNode holds the referenced node id when Kind == ArgNodeEdge.
	FromNode string

	// FromParameter holds the referenced parameter name when
	// Kind == ArgParamRef.
	FromParameter string

	// List and Object hold nested arguments for array/object literals that
	// themselves may contain node edges or parameter references.
	List   []Arg
	Object map[string]Arg
}

// ArgKind enumerates the shapes an Arg may take.
type ArgKind int

const (
	ArgLiteral ArgKind = iota
	ArgNodeEdge
	ArgParamRef
	ArgList
	ArgObject
)

// Node is a single process-graph node: a process invocation with named
// arguments, optionally flagged as the graph's result node.
type Node struct {
	ID        string
	ProcessID string
	Arguments map[string]Arg
	Result    bool
}

// ProcessGraph is a DAG of Nodes with exactly one Result node (spec §3's
// ProcessGraph invariant).
type ProcessGraph struct {
	Nodes map[string]Node
}

// ResultNode returns the node with Result == true, and whether exactly one
// was found. Zero or multiple result nodes is an InvalidProcessGraph
// condition the caller should raise via oeerrors.NewInvalidProcessGraph.
func (g ProcessGraph) ResultNode() (Node, bool) {
	var found Node
	count := 0
	for _, n := range g.Nodes {
		if n.Result {
			found = n
			count++
		}
	}
	return found, count == 1
}

// ParameterMap is the set of named parameters supplied by the caller that
// ParameterReference arguments resolve against (e.g. spatial_extent,
// temporal_extent, the special "_openeo_user" entry).
type ParameterMap map[string]any

// DeclaredParameter describes a process callable's declared positional
// parameter, used by the dispatcher to merge positional and named
// arguments and to introspect target types for coercion.
type DeclaredParameter struct {
	Name     string
	Optional bool
}
