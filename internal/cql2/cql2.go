// Package cql2 translates an openEO "properties" process-graph fragment
// into a CQL2-JSON filter, grounded on the handler chain in
// original_source/titiler/openeo/stacapi.py
// (_handle_comparison_operator, _handle_array_operator,
// _handle_pattern_operator, _handle_null_check, _handle_logical_operator,
// _handle_default_operator).
package cql2

import (
	"fmt"

	"github.com/MeKo-Tech/openeocore/internal/graph"
)

// comparisonOps maps openEO comparison process ids to their CQL2 operator.
var comparisonOps = map[string]string{
	"eq":  "=",
	"neq": "<>",
	"lt":  "<",
	"lte": "<=",
	"gt":  ">",
	"gte": ">=",
}

// Translate converts a single property's sub-graph (the value of a
// properties entry, itself a one-node-result ProcessGraph keyed by "x") to
// a CQL2-JSON expression referencing propertyName.
func Translate(propertyName string, g graph.ProcessGraph) (map[string]any, error) {
	node, ok := g.ResultNode()
	if !ok {
		return nil, fmt.Errorf("cql2: properties graph for %q has no single result node", propertyName)
	}
	return translateNode(propertyName, g, node)
}

func translateNode(propertyName string, g graph.ProcessGraph, node graph.Node) (map[string]any, error) {
	switch node.ProcessID {
	case "eq", "neq", "lt", "lte", "gt", "gte":
		return handleComparison(propertyName, g, node)
	case "between":
		return handleBetween(propertyName, g, node)
	case "array_contains", "in":
		return handleArray(propertyName, g, node)
	case "starts_with", "ends_with", "contains":
		return handlePattern(propertyName, g, node)
	case "is_null":
		return handleNullCheck(propertyName, node)
	case "and", "or":
		return handleLogical(propertyName, g, node)
	case "not":
		return handleNot(propertyName, g, node)
	default:
		return handleDefault(propertyName, node)
	}
}

// propertyRef builds the {"property": "<name>"} reference used by every
// explicitly-handled operator (stacapi.py only prefixes "properties." in
// the _handle_default_operator fallback, not here).
func propertyRef(name string) map[string]any {
	return map[string]any{"property": name}
}

// propertyRefPrefixed builds the {"property": "properties.<name>"}
// reference used by handleDefault, matching stacapi.py's
// _handle_default_operator.
func propertyRefPrefixed(name string) map[string]any {
	return map[string]any{"property": "properties." + name}
}

func literalOf(a graph.Arg, g graph.ProcessGraph) (any, bool) {
	switch a.Kind {
	case graph.ArgLiteral:
		return a.Literal, true
	case graph.ArgNodeEdge:
		if n, ok := g.Nodes[a.FromNode]; ok {
			if v, ok := literalFromResultNode(n, g); ok {
				return v, true
			}
		}
		return nil, false
	case graph.ArgParamRef:
		// Parameter references are not resolved here, so none of them is a
		// literal to compare against (the from_parameter "value" placeholder
		// stands for the property itself and is skipped by callers).
		return nil, false
	default:
		return nil, false
	}
}

func literalFromResultNode(n graph.Node, g graph.ProcessGraph) (any, bool) {
	return nil, false
}

// isValueRef reports whether a is the from_parameter:"value" placeholder
// openEO uses to mean "the property being filtered".
func isValueRef(a graph.Arg) bool {
	return a.Kind == graph.ArgParamRef && a.FromParameter == "value"
}

func firstNonValueArg(node graph.Node, names ...string) (graph.Arg, bool) {
	for _, n := range names {
		if a, ok := node.Arguments[n]; ok && !isValueRef(a) {
			return a, true
		}
	}
	return graph.Arg{}, false
}

func handleComparison(propertyName string, g graph.ProcessGraph, node graph.Node) (map[string]any, error) {
	op, ok := comparisonOps[node.ProcessID]
	if !ok {
		return nil, fmt.Errorf("cql2: unknown comparison %q", node.ProcessID)
	}
	arg, ok := firstNonValueArg(node, "y", "x")
	if !ok {
		return nil, fmt.Errorf("cql2: %s missing comparand for %q", node.ProcessID, propertyName)
	}
	val, ok := literalOf(arg, g)
	if !ok {
		return nil, fmt.Errorf("cql2: %s comparand for %q is not a literal", node.ProcessID, propertyName)
	}
	return map[string]any{"op": op, "args": []any{propertyRef(propertyName), val}}, nil
}

func handleBetween(propertyName string, g graph.ProcessGraph, node graph.Node) (map[string]any, error) {
	minArg, hasMin := node.Arguments["min"]
	maxArg, hasMax := node.Arguments["max"]
	if !hasMin || !hasMax {
		return nil, fmt.Errorf("cql2: between missing min/max for %q", propertyName)
	}
	minVal, _ := literalOf(minArg, g)
	maxVal, _ := literalOf(maxArg, g)
	return map[string]any{
		"op":   "between",
		"args": []any{propertyRef(propertyName), minVal, maxVal},
	}, nil
}

func handleArray(propertyName string, g graph.ProcessGraph, node graph.Node) (map[string]any, error) {
	arg, ok := firstNonValueArg(node, "values")
	if !ok {
		return nil, fmt.Errorf("cql2: %s missing array for %q", node.ProcessID, propertyName)
	}
	items := make([]any, 0, len(arg.List))
	for _, el := range arg.List {
		if v, ok := literalOf(el, g); ok {
			items = append(items, v)
		}
	}
	return map[string]any{
		"op":   "in",
		"args": []any{propertyRef(propertyName), map[string]any{"array": items}},
	}, nil
}

func handlePattern(propertyName string, g graph.ProcessGraph, node graph.Node) (map[string]any, error) {
	arg, ok := firstNonValueArg(node, "y")
	if !ok {
		return nil, fmt.Errorf("cql2: %s missing pattern for %q", node.ProcessID, propertyName)
	}
	val, _ := literalOf(arg, g)
	str, _ := val.(string)

	var pattern string
	switch node.ProcessID {
	case "starts_with":
		pattern = str + "%"
	case "ends_with":
		pattern = "%" + str
	case "contains":
		pattern = "%" + str + "%"
	}
	return map[string]any{"op": "like", "args": []any{propertyRef(propertyName), pattern}}, nil
}

func handleNullCheck(propertyName string, node graph.Node) (map[string]any, error) {
	return map[string]any{"op": "isNull", "args": []any{propertyRef(propertyName)}}, nil
}

func handleLogical(propertyName string, g graph.ProcessGraph, node graph.Node) (map[string]any, error) {
	arg, ok := node.Arguments["expressions"]
	if !ok {
		return nil, fmt.Errorf("cql2: %s missing expressions for %q", node.ProcessID, propertyName)
	}
	args := make([]any, 0, len(arg.List))
	for _, el := range arg.List {
		if el.Kind != graph.ArgNodeEdge {
			continue
		}
		sub, ok := g.Nodes[el.FromNode]
		if !ok {
			continue
		}
		translated, err := translateNode(propertyName, g, sub)
		if err != nil {
			return nil, err
		}
		args = append(args, translated)
	}
	return map[string]any{"op": node.ProcessID, "args": args}, nil
}

func handleNot(propertyName string, g graph.ProcessGraph, node graph.Node) (map[string]any, error) {
	arg, ok := node.Arguments["expression"]
	if !ok {
		return nil, fmt.Errorf("cql2: not missing expression for %q", propertyName)
	}
	if arg.Kind != graph.ArgNodeEdge {
		return nil, fmt.Errorf("cql2: not expression for %q is not a node edge", propertyName)
	}
	sub, ok := g.Nodes[arg.FromNode]
	if !ok {
		return nil, fmt.Errorf("cql2: not expression node %q not found", arg.FromNode)
	}
	inner, err := translateNode(propertyName, g, sub)
	if err != nil {
		return nil, err
	}
	return map[string]any{"op": "not", "args": []any{inner}}, nil
}

// handleDefault is the fallback for any process not explicitly handled: an
// equality test against the first non-value literal argument, matching
// stacapi.py's _handle_default_operator.
func handleDefault(propertyName string, node graph.Node) (map[string]any, error) {
	for _, a := range node.Arguments {
		if isValueRef(a) || a.Kind != graph.ArgLiteral {
			continue
		}
		return map[string]any{"op": "=", "args": []any{propertyRefPrefixed(propertyName), a.Literal}}, nil
	}
	return nil, fmt.Errorf("cql2: no literal argument found for default handling of %q", propertyName)
}

// TranslateAll combines the translated filters of multiple properties with
// "and", matching stacapi.py's _convert_process_graph_to_cql2.
func TranslateAll(properties map[string]graph.ProcessGraph) (map[string]any, error) {
	if len(properties) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(properties))
	for name, g := range properties {
		filter, err := Translate(name, g)
		if err != nil {
			return nil, err
		}
		args = append(args, filter)
	}
	if len(args) == 1 {
		return args[0].(map[string]any), nil
	}
	return map[string]any{"op": "and", "args": args}, nil
}
