// Package engine executes a process graph end to end: resolving node
// arguments (including nested node-edge dependencies), dispatching to
// registered processes, and returning the result node's value. This is the
// top-level orchestration core.py's @process decorator is invoked from,
// one node at a time, during process graph evaluation.
package engine

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/openeocore/internal/dispatcher"
	"github.com/MeKo-Tech/openeocore/internal/graph"
	"github.com/MeKo-Tech/openeocore/internal/oeerrors"
)

// Registry maps process_id to its dispatcher.Process binding.
type Registry map[string]dispatcher.Process

// Engine evaluates ProcessGraphs against a Registry of known processes.
type Engine struct {
	Registry Registry
}

// New constructs an Engine bound to reg.
func New(reg Registry) *Engine {
	return &Engine{Registry: reg}
}

// Run evaluates g to completion and returns the result node's value.
func (e *Engine) Run(ctx context.Context, g graph.ProcessGraph, params graph.ParameterMap) (any, error) {
	result, ok := g.ResultNode()
	if !ok {
		return nil, oeerrors.NewInvalidProcessGraph("process graph must have exactly one result node")
	}

	cache := make(map[string]any, len(g.Nodes))
	return e.evalNode(ctx, g, result, params, cache, nil)
}

// evalNode evaluates node, memoizing in cache and detecting cycles via the
// visiting stack.
func (e *Engine) evalNode(ctx context.Context, g graph.ProcessGraph, node graph.Node, params graph.ParameterMap, cache map[string]any, visiting []string) (any, error) {
	if v, ok := cache[node.ID]; ok {
		return v, nil
	}
	for _, id := range visiting {
		if id == node.ID {
			return nil, oeerrors.NewInvalidProcessGraph(fmt.Sprintf("cycle detected at node %q", node.ID))
		}
	}
	visiting = append(visiting, node.ID)

	proc, ok := e.Registry[node.ProcessID]
	if !ok {
		return nil, oeerrors.NewInvalidProcessGraph(fmt.Sprintf("unknown process_id %q at node %q", node.ProcessID, node.ID))
	}

	named := make(map[string]any, len(node.Arguments))
	for name, arg := range node.Arguments {
		val, err := e.evalArg(ctx, g, arg, params, cache, visiting)
		if err != nil {
			return nil, err
		}
		named[name] = val
	}

	out, err := dispatcher.Call(proc, nil, named, params)
	if err != nil {
		return nil, fmt.Errorf("engine: node %q (%s): %w", node.ID, node.ProcessID, err)
	}
	cache[node.ID] = out
	return out, nil
}

// evalArg resolves a single argument value, recursing into node edges and
// nested list/object literals. ParameterReference arguments pass through
// unresolved as a graph.Arg for dispatcher.Call to handle (it owns
// ParameterReference resolution against params); literal arguments are
// unwrapped to their underlying value here, since nothing downstream needs
// the graph.Arg wrapper once there is no reference left to resolve.
func (e *Engine) evalArg(ctx context.Context, g graph.ProcessGraph, arg graph.Arg, params graph.ParameterMap, cache map[string]any, visiting []string) (any, error) {
	switch arg.Kind {
	case graph.ArgNodeEdge:
		node, ok := g.Nodes[arg.FromNode]
		if !ok {
			return nil, oeerrors.NewInvalidProcessGraph(fmt.Sprintf("from_node references unknown node %q", arg.FromNode))
		}
		return e.evalNode(ctx, g, node, params, cache, visiting)
	case graph.ArgParamRef:
		return arg, nil
	case graph.ArgLiteral:
		return arg.Literal, nil
	case graph.ArgList:
		out := make([]any, len(arg.List))
		for i, el := range arg.List {
			v, err := e.evalArg(ctx, g, el, params, cache, visiting)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case graph.ArgObject:
		out := make(map[string]any, len(arg.Object))
		for k, el := range arg.Object {
			v, err := e.evalArg(ctx, g, el, params, cache, visiting)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("engine: unknown arg kind %v", arg.Kind)
	}
}
