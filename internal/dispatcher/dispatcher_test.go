package dispatcher

import (
	"reflect"
	"testing"

	"github.com/MeKo-Tech/openeocore/internal/graph"
	"github.com/MeKo-Tech/openeocore/internal/rastertypes"
)

func TestCallResolvesParameterReference(t *testing.T) {
	fn := func(value string) (string, error) { return "got:" + value, nil }
	proc, err := NewProcess("echo", fn, []ParamSpec{{Name: "value", Type: reflect.TypeOf("")}})
	if err != nil {
		t.Fatal(err)
	}

	named := map[string]any{"value": graph.Arg{Kind: graph.ArgParamRef, FromParameter: "x"}}
	out, err := Call(proc, nil, named, graph.ParameterMap{"x": "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "got:hello" {
		t.Fatalf("got %v", out)
	}
}

func TestCallMissingParameterReference(t *testing.T) {
	fn := func(value string) (string, error) { return value, nil }
	proc, err := NewProcess("echo", fn, []ParamSpec{{Name: "value", Type: reflect.TypeOf("")}})
	if err != nil {
		t.Fatal(err)
	}

	named := map[string]any{"value": graph.Arg{Kind: graph.ArgParamRef, FromParameter: "missing"}}
	if _, err := Call(proc, nil, named, graph.ParameterMap{}); err == nil {
		t.Fatal("expected a ProcessParameterMissing error")
	}
}

func TestCallMissingRequiredArgument(t *testing.T) {
	fn := func(value string) (string, error) { return value, nil }
	proc, err := NewProcess("echo", fn, []ParamSpec{{Name: "value", Type: reflect.TypeOf("")}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Call(proc, nil, map[string]any{}, graph.ParameterMap{}); err == nil {
		t.Fatal("expected a missing-parameter error")
	}
}

func TestCallOptionalArgumentDefaultsToZero(t *testing.T) {
	fn := func(value string) (string, error) { return value, nil }
	proc, err := NewProcess("echo", fn, []ParamSpec{{Name: "value", Type: reflect.TypeOf(""), Optional: true}})
	if err != nil {
		t.Fatal(err)
	}
	out, err := Call(proc, nil, map[string]any{}, graph.ParameterMap{})
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Fatalf("got %q, want empty string", out)
	}
}

func TestCallCoercesObjectIntoBoundingBox(t *testing.T) {
	fn := func(bbox rastertypes.BoundingBox) (rastertypes.BoundingBox, error) { return bbox, nil }
	proc, err := NewProcess("echo_bbox", fn, []ParamSpec{{Name: "bbox", Type: reflect.TypeOf(rastertypes.BoundingBox{})}})
	if err != nil {
		t.Fatal(err)
	}
	named := map[string]any{"bbox": map[string]any{"west": 1.0, "south": 2.0, "east": 3.0, "north": 4.0}}
	out, err := Call(proc, nil, named, graph.ParameterMap{})
	if err != nil {
		t.Fatal(err)
	}
	got := out.(rastertypes.BoundingBox)
	want := rastertypes.BoundingBox{West: 1, South: 2, East: 3, North: 4}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestCallCoercesObjectIntoTemporalInterval(t *testing.T) {
	fn := func(t rastertypes.TemporalInterval) (rastertypes.TemporalInterval, error) { return t, nil }
	proc, err := NewProcess("echo_temporal", fn, []ParamSpec{{Name: "t", Type: reflect.TypeOf(rastertypes.TemporalInterval{})}})
	if err != nil {
		t.Fatal(err)
	}
	named := map[string]any{"t": map[string]any{"start": "2020-01-01T00:00:00Z", "end": "2020-02-01T00:00:00Z"}}
	out, err := Call(proc, nil, named, graph.ParameterMap{})
	if err != nil {
		t.Fatal(err)
	}
	got := out.(rastertypes.TemporalInterval)
	if !got.Start.Set || !got.End.Set || got.Start.Unix >= got.End.Unix {
		t.Fatalf("got %+v, want a populated start < end interval", got)
	}
}

func TestCallRejectsObjectWhereArrayExpected(t *testing.T) {
	fn := func(values []int) (int, error) { return len(values), nil }
	proc, err := NewProcess("count", fn, []ParamSpec{{Name: "values", Type: reflect.TypeOf([]int{})}})
	if err != nil {
		t.Fatal(err)
	}
	named := map[string]any{"values": map[string]any{"not": "an array"}}
	if _, err := Call(proc, nil, named, graph.ParameterMap{}); err == nil {
		t.Fatal("expected a type-validation error for an object where an array is declared")
	}
}

func TestCallRejectsNilForNonOptionalParameter(t *testing.T) {
	fn := func(value string) (string, error) { return value, nil }
	proc, err := NewProcess("echo", fn, []ParamSpec{{Name: "value", Type: reflect.TypeOf("")}})
	if err != nil {
		t.Fatal(err)
	}
	named := map[string]any{"value": nil}
	if _, err := Call(proc, nil, named, graph.ParameterMap{}); err == nil {
		t.Fatal("expected an error for a nil value against a non-optional parameter")
	}
}

func TestCallPositionalMergesOntoDeclaredNames(t *testing.T) {
	fn := func(a, b int) (int, error) { return a + b, nil }
	proc, err := NewProcess("add", fn, []ParamSpec{
		{Name: "a", Type: reflect.TypeOf(0)},
		{Name: "b", Type: reflect.TypeOf(0)},
	})
	if err != nil {
		t.Fatal(err)
	}
	out, err := Call(proc, []any{2, 3}, nil, graph.ParameterMap{})
	if err != nil {
		t.Fatal(err)
	}
	if out != 5 {
		t.Fatalf("got %v, want 5", out)
	}
}
