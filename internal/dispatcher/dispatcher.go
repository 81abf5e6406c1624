// Package dispatcher resolves a process graph node's arguments against a
// named-parameter map and invokes the target process function, mirroring
// the @process decorator in
// _examples/original_source/titiler/openeo/processes/implementations/core.py.
//
// Go has no runtime introspection of a function's declared parameter
// names, so a Process carries an explicit ParamSpec list alongside its
// reflect.Value; this stands in for Python's inspect.signature(f).
package dispatcher

import (
	"fmt"
	"reflect"
	"time"

	"github.com/MeKo-Tech/openeocore/internal/authuser"
	"github.com/MeKo-Tech/openeocore/internal/graph"
	"github.com/MeKo-Tech/openeocore/internal/oeerrors"
	"github.com/MeKo-Tech/openeocore/internal/rastertypes"
)

// specialArgs lists the orchestration keys that are forwarded to a process
// only if it declares a like-named parameter; otherwise they are silently
// dropped. Ported verbatim from core.py's special_args allow-list.
var specialArgs = map[string]bool{
	"context":    true,
	"axis":       true,
	"keepdims":   true,
	"dim_labels": true,
	"data":       true,
}

// ParamSpec describes one parameter a process function declares, standing
// in for the introspected signature entries core.py reads via
// inspect.signature.
type ParamSpec struct {
	Name     string
	Type     reflect.Type
	Optional bool
}

// Process is a callable process bound to its declared parameter list and
// its Go function, whose parameters map one-to-one onto Params.
type Process struct {
	Name   string
	Params []ParamSpec
	Fn     reflect.Value
}

// NewProcess wraps fn (any func value) with its declared parameter names,
// validating that fn's arity matches len(params).
func NewProcess(name string, fn any, params []ParamSpec) (Process, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return Process{}, fmt.Errorf("process %q: fn must be a function", name)
	}
	if v.Type().NumIn() != len(params) {
		return Process{}, fmt.Errorf("process %q: fn has %d parameters, params lists %d",
			name, v.Type().NumIn(), len(params))
	}
	return Process{Name: name, Params: params, Fn: v}, nil
}

func (p Process) paramIndex(name string) (int, bool) {
	for i, ps := range p.Params {
		if ps.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Call resolves positional and keyword arguments against params (the
// caller-supplied ParameterMap used to resolve ParameterReference values),
// applies the special_args allow-list and the "_openeo_user" substitution,
// then invokes proc and returns its single result.
//
// positional holds already-literal-decoded values (ParameterReference
// entries among them are resolved here); named holds the node's keyword
// arguments by name, same treatment.
func Call(proc Process, positional []any, named map[string]any, params graph.ParameterMap) (any, error) {
	resolvedNamed := make(map[string]any, len(named))

	// Merge positional arguments onto declared parameter names in order,
	// mirroring core.py's zip(sig.parameters, positional_parameters).
	for i, v := range positional {
		if i >= len(proc.Params) {
			break
		}
		resolvedNamed[proc.Params[i].Name] = v
	}
	for k, v := range named {
		resolvedNamed[k] = v
	}

	args := make([]reflect.Value, len(proc.Params))
	for i, spec := range proc.Params {
		raw, present := resolvedNamed[spec.Name]

		if specialArgs[spec.Name] && !present {
			// Special orchestration key not supplied: leave as the zero
			// value for this parameter's type.
			args[i] = reflect.Zero(spec.Type)
			continue
		}

		if !present {
			if spec.Optional {
				args[i] = reflect.Zero(spec.Type)
				continue
			}
			return nil, oeerrors.NewProcessParameterMissing(spec.Name)
		}

		resolved, err := resolveValue(raw, spec, params)
		if err != nil {
			return nil, err
		}

		rv, err := coerce(resolved, spec)
		if err != nil {
			return nil, err
		}
		args[i] = rv
	}

	out := proc.Fn.Call(args)
	return unpackResult(out)
}

// resolveValue substitutes a ParameterReference with its bound value,
// applying the "_openeo_user" -> authuser.User.ID special case when the
// declared parameter type is string (core.py's value.user_id substitution).
func resolveValue(raw any, spec ParamSpec, params graph.ParameterMap) (any, error) {
	ref, ok := raw.(graph.Arg)
	if !ok || ref.Kind != graph.ArgParamRef {
		return raw, nil
	}

	if ref.FromParameter == "_openeo_user" && spec.Type.Kind() == reflect.String {
		if u, ok := params["_openeo_user"].(authuser.User); ok {
			return u.ID, nil
		}
	}

	val, ok := params[ref.FromParameter]
	if !ok {
		return nil, oeerrors.NewProcessParameterMissing(ref.FromParameter)
	}
	return val, nil
}

var (
	boundingBoxType      = reflect.TypeOf(rastertypes.BoundingBox{})
	temporalIntervalType = reflect.TypeOf(rastertypes.TemporalInterval{})
	rasterStackType      = reflect.TypeOf((*rastertypes.RasterStack)(nil)).Elem()
)

// coerce converts a resolved dynamic value into a reflect.Value assignable
// to spec.Type, performing the dict->struct constructions and pre-call type
// check spec §4.1 items 3-4 require: a JSON object is built into a
// BoundingBox or TemporalInterval when the declared parameter asks for one,
// a RasterStack/object is rejected where an array is declared, and nil is
// rejected for a non-optional parameter instead of silently zero-valuing it.
func coerce(v any, spec ParamSpec) (reflect.Value, error) {
	if v == nil {
		if spec.Optional {
			return reflect.Zero(spec.Type), nil
		}
		return reflect.Value{}, oeerrors.NewProcessParameterMissing(spec.Name)
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(spec.Type) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(spec.Type) && isNumericKind(rv.Kind()) && isNumericKind(spec.Type.Kind()) {
		return rv.Convert(spec.Type), nil
	}

	if m, ok := v.(map[string]any); ok {
		switch spec.Type {
		case boundingBoxType:
			return reflect.ValueOf(boundingBoxFromMap(m)), nil
		case temporalIntervalType:
			return reflect.ValueOf(temporalIntervalFromMap(m)), nil
		}
		if isArrayKind(spec.Type.Kind()) {
			return reflect.Value{}, oeerrors.NewTypeValidation(spec.Name, "array", "object")
		}
	}

	if _, ok := v.(rastertypes.RasterStack); ok && isArrayKind(spec.Type.Kind()) {
		return reflect.Value{}, oeerrors.NewTypeValidation(spec.Name, "array", "datacube")
	}

	return reflect.Value{}, oeerrors.NewTypeValidation(spec.Name, openEOTypeName(spec.Type), openEOTypeName(rv.Type()))
}

func isArrayKind(k reflect.Kind) bool {
	return k == reflect.Slice || k == reflect.Array
}

// boundingBoxFromMap builds a BoundingBox from a west/south/east/north
// object, the dict-encoding spatial_extent arrives in.
func boundingBoxFromMap(m map[string]any) rastertypes.BoundingBox {
	crs, _ := m["crs"].(string)
	return rastertypes.BoundingBox{
		West:  toFloat(m["west"]),
		South: toFloat(m["south"]),
		East:  toFloat(m["east"]),
		North: toFloat(m["north"]),
		CRS:   crs,
	}
}

// temporalIntervalFromMap builds a TemporalInterval from a start/end object,
// accepting RFC3339 strings and leaving an absent or empty bound open.
func temporalIntervalFromMap(m map[string]any) rastertypes.TemporalInterval {
	var interval rastertypes.TemporalInterval
	if s, ok := m["start"].(string); ok && s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			interval.Start = rastertypes.NewTime(t.Unix())
		}
	}
	if s, ok := m["end"].(string); ok && s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			interval.End = rastertypes.NewTime(t.Unix())
		}
	}
	return interval
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// openEOTypeName maps a Go reflect.Type to the openEO type vocabulary spec
// §7's type-validation errors report (integer, number, string, boolean,
// null, array, datacube, bounding-box, temporal-interval), falling back to
// the Go type name for anything outside that vocabulary.
func openEOTypeName(t reflect.Type) string {
	switch t {
	case boundingBoxType:
		return "bounding-box"
	case temporalIntervalType:
		return "temporal-interval"
	}
	if t == rasterStackType || t.Implements(rasterStackType) {
		return "datacube"
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Ptr, reflect.Interface:
		return "null"
	default:
		return t.String()
	}
}

// unpackResult interprets a process function's (T, error) or T return as a
// single (any, error) pair.
func unpackResult(out []reflect.Value) (any, error) {
	switch len(out) {
	case 1:
		if err, ok := out[0].Interface().(error); ok {
			return nil, err
		}
		return out[0].Interface(), nil
	case 2:
		var err error
		if e, ok := out[1].Interface().(error); ok {
			err = e
		}
		return out[0].Interface(), err
	default:
		return nil, nil
	}
}
