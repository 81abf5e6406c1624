package engine

import (
	"reflect"
	"testing"

	"github.com/MeKo-Tech/openeocore/internal/dispatcher"
	"github.com/MeKo-Tech/openeocore/internal/graph"
)

func mustProcess(t *testing.T, name string, fn any, params []dispatcher.ParamSpec) dispatcher.Process {
	t.Helper()
	proc, err := dispatcher.NewProcess(name, fn, params)
	if err != nil {
		t.Fatal(err)
	}
	return proc
}

func TestRunEvaluatesNodeEdgesInOrder(t *testing.T) {
	add := mustProcess(t, "add", func(a, b int) (int, error) { return a + b, nil }, []dispatcher.ParamSpec{
		{Name: "a", Type: reflect.TypeOf(0)},
		{Name: "b", Type: reflect.TypeOf(0)},
	})
	double := mustProcess(t, "double", func(x int) (int, error) { return x * 2, nil }, []dispatcher.ParamSpec{
		{Name: "x", Type: reflect.TypeOf(0)},
	})

	g := graph.ProcessGraph{Nodes: map[string]graph.Node{
		"sum": {
			ID: "sum", ProcessID: "add",
			Arguments: map[string]graph.Arg{
				"a": {Kind: graph.ArgLiteral, Literal: 2},
				"b": {Kind: graph.ArgLiteral, Literal: 3},
			},
		},
		"result": {
			ID: "result", ProcessID: "double", Result: true,
			Arguments: map[string]graph.Arg{"x": {Kind: graph.ArgNodeEdge, FromNode: "sum"}},
		},
	}}

	e := New(Registry{"add": add, "double": double})
	out, err := e.Run(nil, g, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != 10 {
		t.Fatalf("got %v, want 10", out)
	}
}

func TestRunMemoizesSharedDependency(t *testing.T) {
	calls := 0
	inc := mustProcess(t, "inc", func(x int) (int, error) { calls++; return x + 1, nil }, []dispatcher.ParamSpec{
		{Name: "x", Type: reflect.TypeOf(0)},
	})
	add := mustProcess(t, "add", func(a, b int) (int, error) { return a + b, nil }, []dispatcher.ParamSpec{
		{Name: "a", Type: reflect.TypeOf(0)},
		{Name: "b", Type: reflect.TypeOf(0)},
	})

	g := graph.ProcessGraph{Nodes: map[string]graph.Node{
		"shared": {
			ID: "shared", ProcessID: "inc",
			Arguments: map[string]graph.Arg{"x": {Kind: graph.ArgLiteral, Literal: 1}},
		},
		"result": {
			ID: "result", ProcessID: "add", Result: true,
			Arguments: map[string]graph.Arg{
				"a": {Kind: graph.ArgNodeEdge, FromNode: "shared"},
				"b": {Kind: graph.ArgNodeEdge, FromNode: "shared"},
			},
		},
	}}

	e := New(Registry{"inc": inc, "add": add})
	out, err := e.Run(nil, g, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != 4 {
		t.Fatalf("got %v, want 4", out)
	}
	if calls != 1 {
		t.Fatalf("expected the shared dependency to be evaluated once, got %d calls", calls)
	}
}

func TestRunDetectsCycle(t *testing.T) {
	noop := mustProcess(t, "noop", func(x int) (int, error) { return x, nil }, []dispatcher.ParamSpec{
		{Name: "x", Type: reflect.TypeOf(0)},
	})
	g := graph.ProcessGraph{Nodes: map[string]graph.Node{
		"a": {ID: "a", ProcessID: "noop", Result: true, Arguments: map[string]graph.Arg{
			"x": {Kind: graph.ArgNodeEdge, FromNode: "b"},
		}},
		"b": {ID: "b", ProcessID: "noop", Arguments: map[string]graph.Arg{
			"x": {Kind: graph.ArgNodeEdge, FromNode: "a"},
		}},
	}}
	e := New(Registry{"noop": noop})
	if _, err := e.Run(nil, g, nil); err == nil {
		t.Fatal("expected a cycle-detection error")
	}
}

func TestRunRejectsMissingResultNode(t *testing.T) {
	e := New(Registry{})
	g := graph.ProcessGraph{Nodes: map[string]graph.Node{
		"a": {ID: "a", ProcessID: "noop"},
	}}
	if _, err := e.Run(nil, g, nil); err == nil {
		t.Fatal("expected an error when no node is marked as the result")
	}
}
