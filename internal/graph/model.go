package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// Class is the asset class a node graph belongs to.
type Class string

const (
	Material     Class = "Material"
	GeometryNode Class = "GeometryNode"
)

// ParseClass accepts the class name or its CLI spelling.
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(s) {
	case "material", "materials":
		return Material, nil
	case "geometrynode", "geometry", "geometry_node", "geometry_nodes":
		return GeometryNode, nil
	}
	return "", fmt.Errorf("unknown graph class %q", s)
}

// Node kinds with structural meaning.
const (
	KindGroup       = "GROUP"
	KindGroupInput  = "GROUP_INPUT"
	KindGroupOutput = "GROUP_OUTPUT"
)

var specialKinds = map[Class][]string{
	GeometryNode: {"CURVE_FLOAT", "VALTORGB", "CURVE_VEC", "CURVE_RGB", "INPUT_COLOR"},
	Material:     {"RGB", "CURVE_FLOAT", "VALTORGB", "CURVE_VEC", "CURVE_RGB"},
}

// SpecialKinds returns the node kinds of class c that carry rich sub-state.
func SpecialKinds(c Class) []string {
	return append([]string(nil), specialKinds[c]...)
}

// IsSpecial reports whether kind is a special kind for class c.
func IsSpecial(c Class, kind string) bool {
	for _, k := range specialKinds[c] {
		if k == kind {
			return true
		}
	}
	return false
}

// Graph is a host-agnostic description of a node graph.
type Graph struct {
	Name      string         `yaml:"name" json:"name"`
	Owner     string         `yaml:"owner,omitempty" json:"owner,omitempty"`
	Nodes     []*Node        `yaml:"nodes" json:"nodes"`
	Links     []Link         `yaml:"links,omitempty" json:"links,omitempty"`
	Interface map[string]any `yaml:"interface,omitempty" json:"interface,omitempty"`
}

// Node is one node of a graph. Group nodes carry their nested graph.
type Node struct {
	Name       string         `yaml:"name,omitempty" json:"name,omitempty"`
	Kind       string         `yaml:"kind" json:"kind"`
	Attributes map[string]any `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Inputs     []Input        `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	State      map[string]any `yaml:"state,omitempty" json:"state,omitempty"`
	Group      *Graph         `yaml:"group,omitempty" json:"group,omitempty"`
}

// Input is an input socket of a node.
type Input struct {
	Name   string `yaml:"name" json:"name"`
	Value  any    `yaml:"value,omitempty" json:"value,omitempty"`
	Linked bool   `yaml:"linked,omitempty" json:"linked,omitempty"`
}

// Link connects an output socket to an input socket. From and To are
// indices into the owning graph's node list.
type Link struct {
	From       int    `yaml:"from" json:"from"`
	FromSocket string `yaml:"from_socket" json:"from_socket"`
	To         int    `yaml:"to" json:"to"`
	ToSocket   string `yaml:"to_socket" json:"to_socket"`
}

// Address locates a node by index path through nested groups:
// [3, 1] is node 1 of the group held by top-level node 3.
type Address []int

func (a Address) String() string {
	parts := make([]string, len(a))
	for i, n := range a {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Child returns a new address extending a with i.
func (a Address) Child(i int) Address {
	out := make(Address, len(a)+1)
	copy(out, a)
	out[len(a)] = i
	return out
}

// ParseAddress parses the dotted form produced by String.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return nil, fmt.Errorf("empty node address")
	}
	parts := strings.Split(s, ".")
	addr := make(Address, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid node address %q", s)
		}
		addr[i] = n
	}
	return addr, nil
}

// Resolve walks addr through nested groups and returns the node.
func (g *Graph) Resolve(addr Address) (*Node, error) {
	if len(addr) == 0 {
		return nil, fmt.Errorf("empty node address")
	}
	cur := g
	for depth, i := range addr {
		if cur == nil || i < 0 || i >= len(cur.Nodes) {
			return nil, fmt.Errorf("node %s: index %d out of range", addr, i)
		}
		node := cur.Nodes[i]
		if depth == len(addr)-1 {
			return node, nil
		}
		if node.Kind != KindGroup || node.Group == nil {
			return nil, fmt.Errorf("node %s: %s at depth %d is not a group", addr, node.Kind, depth)
		}
		cur = node.Group
	}
	return nil, fmt.Errorf("node %s not found", addr)
}

// InputLinked reports whether input socket name of node i receives a link.
func (g *Graph) InputLinked(i int, name string) bool {
	for _, in := range g.Nodes[i].Inputs {
		if in.Name == name && in.Linked {
			return true
		}
	}
	for _, l := range g.Links {
		if l.To == i && l.ToSocket == name {
			return true
		}
	}
	return false
}

// Walk visits every node in pre-order: a group node is visited before
// the nodes of its nested graph.
func (g *Graph) Walk(fn func(addr Address, owner *Graph, node *Node) error) error {
	return g.walk(nil, fn)
}

func (g *Graph) walk(parent Address, fn func(Address, *Graph, *Node) error) error {
	for i, node := range g.Nodes {
		addr := parent.Child(i)
		if err := fn(addr, g, node); err != nil {
			return err
		}
		if node.Kind == KindGroup && node.Group != nil {
			if err := node.Group.walk(addr, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Layer is one graph of a modifier stack.
type Layer struct {
	Label string `yaml:"label" json:"label"`
	Graph *Graph `yaml:"graph" json:"graph"`
}

// Stack is an ordered list of geometry node graphs.
type Stack struct {
	Layers []Layer `yaml:"layers" json:"layers"`
}
