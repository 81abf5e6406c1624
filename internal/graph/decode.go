package graph

import (
	"encoding/json"
	"fmt"
)

// rawGraph mirrors the openEO process graph wire format:
// {"process_graph": {"<node id>": {"process_id": ..., "arguments": {...}, "result": bool}}}
type rawGraph struct {
	ProcessGraph map[string]rawNode `json:"process_graph"`
}

type rawNode struct {
	ProcessID string                     `json:"process_id"`
	Arguments map[string]json.RawMessage `json:"arguments"`
	Result    bool                       `json:"result"`
}

// Decode parses the openEO JSON process graph wire format into a
// ProcessGraph of typed Args.
func Decode(data []byte) (ProcessGraph, error) {
	var raw rawGraph
	if err := json.Unmarshal(data, &raw); err != nil {
		return ProcessGraph{}, fmt.Errorf("graph: decode: %w", err)
	}

	nodes := make(map[string]Node, len(raw.ProcessGraph))
	for id, rn := range raw.ProcessGraph {
		args := make(map[string]Arg, len(rn.Arguments))
		for name, rawArg := range rn.Arguments {
			arg, err := decodeArg(rawArg)
			if err != nil {
				return ProcessGraph{}, fmt.Errorf("graph: node %q argument %q: %w", id, name, err)
			}
			args[name] = arg
		}
		nodes[id] = Node{ID: id, ProcessID: rn.ProcessID, Arguments: args, Result: rn.Result}
	}
	return ProcessGraph{Nodes: nodes}, nil
}

func decodeArg(raw json.RawMessage) (Arg, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err == nil {
		if fn, ok := probe["from_node"]; ok {
			var id string
			if err := json.Unmarshal(fn, &id); err != nil {
				return Arg{}, err
			}
			return Arg{Kind: ArgNodeEdge, FromNode: id}, nil
		}
		if fp, ok := probe["from_parameter"]; ok {
			var name string
			if err := json.Unmarshal(fp, &name); err != nil {
				return Arg{}, err
			}
			return Arg{Kind: ArgParamRef, FromParameter: name}, nil
		}
		if len(probe) > 0 {
			obj := make(map[string]Arg, len(probe))
			for k, v := range probe {
				sub, err := decodeArg(v)
				if err != nil {
					return Arg{}, err
				}
				obj[k] = sub
			}
			return Arg{Kind: ArgObject, Object: obj}, nil
		}
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil && looksLikeArray(raw) {
		items := make([]Arg, len(list))
		for i, el := range list {
			sub, err := decodeArg(el)
			if err != nil {
				return Arg{}, err
			}
			items[i] = sub
		}
		return Arg{Kind: ArgList, List: items}, nil
	}

	var literal any
	if err := json.Unmarshal(raw, &literal); err != nil {
		return Arg{}, fmt.Errorf("graph: cannot decode argument: %w", err)
	}
	return Arg{Kind: ArgLiteral, Literal: literal}, nil
}

func looksLikeArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}
