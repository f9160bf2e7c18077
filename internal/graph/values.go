package graph

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Morzio/Hair-Factory/internal/hash"
)

// Kinds whose state is not captured by material flat values.
var materialSkipKinds = map[string]bool{
	"RGB": true, "CURVE_FLOAT": true, "VALTORGB": true, "CURVE_VEC": true,
	"CURVE_RGB": true, "INPUT_COLOR": true, "OUTPUT_MATERIAL": true,
	"REROUTE": true, "FRAME": true, KindGroup: true, KindGroupInput: true,
	KindGroupOutput: true, "TEX_IMAGE": true,
}

// FlatValues extracts the plain parameter values of g. Geometry node
// graphs yield their exposed interface; materials yield one entry per
// plain node followed by one entry per group node.
func FlatValues(c Class, g *Graph) (any, error) {
	switch c {
	case GeometryNode:
		out := make(map[string]any, len(g.Interface))
		for k, v := range g.Interface {
			if v == nil {
				continue
			}
			out[k] = v
		}
		return out, nil
	case Material:
		entries := []any{}
		materialNodes(g, nil, &entries)
		err := g.Walk(func(addr Address, owner *Graph, node *Node) error {
			if node.Kind != KindGroup {
				return nil
			}
			inputs := map[string]any{}
			for _, in := range node.Inputs {
				if !owner.InputLinked(addr[len(addr)-1], in.Name) && in.Value != nil {
					inputs[in.Name] = in.Value
				}
			}
			entries = append(entries, map[string]any{
				"node": addr,
				"type": KindGroup,
				"name": node.Name,
				"data": map[string]any{"attr": map[string]any{}, "inputs": inputs},
			})
			return nil
		})
		return entries, err
	}
	return nil, fmt.Errorf("unknown graph class %q", c)
}

// materialNodes appends the plain nodes of g, then recurses into groups.
func materialNodes(g *Graph, parent Address, entries *[]any) {
	for i, node := range g.Nodes {
		if materialSkipKinds[node.Kind] {
			continue
		}
		inputs := map[string]any{}
		for idx, in := range node.Inputs {
			if g.InputLinked(i, in.Name) || in.Value == nil {
				continue
			}
			inputs[in.Name] = []any{in.Value, idx}
		}
		attrs := map[string]any{}
		for k, v := range node.Attributes {
			attrs[k] = v
		}
		*entries = append(*entries, map[string]any{
			"node": parent.Child(i),
			"type": node.Kind,
			"name": node.Name,
			"data": map[string]any{"attr": attrs, "inputs": inputs},
		})
	}
	for i, node := range g.Nodes {
		if node.Kind == KindGroup && node.Group != nil {
			materialNodes(node.Group, parent.Child(i), entries)
		}
	}
}

// ApplyValues writes a stored flat values payload onto g. Entries that no
// longer fit the live graph are skipped and reported.
func ApplyValues(c Class, g *Graph, values any) (skipped []string, err error) {
	values = hash.Native(values)
	switch c {
	case GeometryNode:
		m, ok := values.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("geometry node values: expected mapping, got %T", values)
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if g.Interface == nil {
			g.Interface = map[string]any{}
		}
		for _, k := range keys {
			if _, ok := g.Interface[k]; !ok {
				skipped = append(skipped, k)
				continue
			}
			g.Interface[k] = m[k]
		}
		return skipped, nil
	case Material:
		list, ok := values.([]any)
		if !ok {
			return nil, fmt.Errorf("material values: expected list, got %T", values)
		}
		for i, raw := range list {
			entry, ok := raw.(map[string]any)
			if !ok {
				return skipped, fmt.Errorf("material values[%d]: expected mapping, got %T", i, raw)
			}
			addr, err := AddressOf(entry["node"])
			if err != nil {
				return skipped, fmt.Errorf("material values[%d]: %w", i, err)
			}
			node, err := g.Resolve(addr)
			if err != nil {
				skipped = append(skipped, addr.String())
				continue
			}
			kind, _ := entry["type"].(string)
			if kind != node.Kind {
				skipped = append(skipped, addr.String())
				continue
			}
			data, _ := entry["data"].(map[string]any)
			applyMaterialNode(node, data, kind == KindGroup)
		}
		return skipped, nil
	}
	return nil, fmt.Errorf("unknown graph class %q", c)
}

func applyMaterialNode(node *Node, data map[string]any, group bool) {
	if attrs, ok := data["attr"].(map[string]any); ok {
		if node.Attributes == nil && len(attrs) > 0 {
			node.Attributes = make(map[string]any, len(attrs))
		}
		for k, v := range attrs {
			node.Attributes[k] = v
		}
	}
	inputs, _ := data["inputs"].(map[string]any)
	for name, raw := range inputs {
		value, index := raw, -1
		if !group {
			pair, ok := raw.([]any)
			if !ok || len(pair) != 2 {
				continue
			}
			value = pair[0]
			if n, ok := pair[1].(int64); ok {
				index = int(n)
			}
		}
		setInput(node, name, index, value)
	}
}

// setInput matches the socket by name, falling back to its index.
func setInput(node *Node, name string, index int, value any) {
	for i := range node.Inputs {
		if node.Inputs[i].Name == name {
			node.Inputs[i].Value = value
			return
		}
	}
	if index >= 0 && index < len(node.Inputs) {
		node.Inputs[index].Value = value
	}
}

// AddressOf converts a decoded address value back into an Address.
func AddressOf(v any) (Address, error) {
	switch x := v.(type) {
	case Address:
		return x, nil
	case []int:
		return Address(x), nil
	case []any:
		addr := make(Address, len(x))
		for i, e := range x {
			var n int64
			switch y := e.(type) {
			case int:
				n = int64(y)
			case int64:
				n = y
			case float64:
				n = int64(y)
				if float64(n) != y {
					return nil, fmt.Errorf("address component %v is not an integer", y)
				}
			case json.Number:
				var err error
				if n, err = y.Int64(); err != nil {
					return nil, fmt.Errorf("address component %q: %w", y, err)
				}
			default:
				return nil, fmt.Errorf("address component has type %T", e)
			}
			if n < 0 {
				return nil, fmt.Errorf("negative address component %d", n)
			}
			addr[i] = int(n)
		}
		if len(addr) == 0 {
			return nil, fmt.Errorf("empty node address")
		}
		return addr, nil
	}
	return nil, fmt.Errorf("node address has type %T", v)
}
