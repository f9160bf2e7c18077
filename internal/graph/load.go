package graph

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Morzio/Hair-Factory/internal/hash"
)

// Limits bound the size of graphs built from description files.
type Limits struct {
	MaxDepth int
	MaxNodes int
}

// DefaultLimits applies to every file loaded through Parse.
var DefaultLimits = Limits{MaxDepth: 16, MaxNodes: 10000}

// ValidationError lists every problem found in a description file.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid description: " + strings.Join(e.Problems, "; ")
}

var (
	graphSchemaOnce    = sync.OnceValues(func() (*gojsonschema.Schema, error) { return compile(graphSchema) })
	stackSchemaOnce    = sync.OnceValues(func() (*gojsonschema.Schema, error) { return compile(stackSchema) })
	settingsSchemaOnce = sync.OnceValues(func() (*gojsonschema.Schema, error) { return compile(settingsSchema) })
)

func compile(src string) (*gojsonschema.Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return s, nil
}

// check validates doc against schema and turns failures into a
// ValidationError. Problems are prefixed with prefix when set.
func check(schema func() (*gojsonschema.Schema, error), doc any, prefix string) error {
	s, err := schema()
	if err != nil {
		return err
	}
	res, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &ValidationError{Problems: []string{prefix + err.Error()}}
	}
	if res.Valid() {
		return nil
	}
	problems := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		problems = append(problems, prefix+e.String())
	}
	return &ValidationError{Problems: problems}
}

func decodeDoc(data []byte) (any, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}
	if doc == nil {
		return nil, &ValidationError{Problems: []string{"empty document"}}
	}
	return doc, nil
}

// Parse builds a graph from a YAML or JSON description with DefaultLimits.
func Parse(data []byte) (*Graph, error) {
	return ParseWithLimits(data, DefaultLimits)
}

// ParseWithLimits validates data against the graph schema, decodes it and
// checks the structural limits. Nothing in the file is ever executed.
func ParseWithLimits(data []byte, lim Limits) (*Graph, error) {
	doc, err := decodeDoc(data)
	if err != nil {
		return nil, err
	}
	if err := check(graphSchemaOnce, doc, ""); err != nil {
		return nil, err
	}
	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}
	if err := Validate(&g, lim); err != nil {
		return nil, err
	}
	return &g, nil
}

// ParseStack builds a modifier stack description. Each layer's graph is
// validated like a standalone graph file.
func ParseStack(data []byte) (*Stack, error) {
	doc, err := decodeDoc(data)
	if err != nil {
		return nil, err
	}
	if err := check(stackSchemaOnce, doc, ""); err != nil {
		return nil, err
	}
	layers, _ := doc.(map[string]any)["layers"].([]any)
	for i, l := range layers {
		sub := l.(map[string]any)["graph"]
		if err := check(graphSchemaOnce, sub, fmt.Sprintf("layers[%d].graph: ", i)); err != nil {
			return nil, err
		}
	}
	var st Stack
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}
	seen := map[string]bool{}
	var problems []string
	for i, l := range st.Layers {
		if seen[l.Label] {
			problems = append(problems, fmt.Sprintf("layers[%d]: duplicate label %q", i, l.Label))
		}
		seen[l.Label] = true
		if err := Validate(l.Graph, DefaultLimits); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				for _, p := range ve.Problems {
					problems = append(problems, fmt.Sprintf("layers[%d].graph: %s", i, p))
				}
				continue
			}
			return nil, err
		}
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return &st, nil
}

// ParseSettings reads a flat settings mapping (physics, collision).
func ParseSettings(data []byte) (map[string]any, error) {
	doc, err := decodeDoc(data)
	if err != nil {
		return nil, err
	}
	if err := check(settingsSchemaOnce, doc, ""); err != nil {
		return nil, err
	}
	m := doc.(map[string]any)
	if _, err := hash.Canonical(m); err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}
	return m, nil
}

// Validate checks the structural limits of an in-memory graph: nesting
// depth, total node count, link endpoints and group bodies.
func Validate(g *Graph, lim Limits) error {
	if g == nil {
		return &ValidationError{Problems: []string{"missing graph"}}
	}
	var problems []string
	total := 0
	var visit func(g *Graph, base Address, depth int)
	visit = func(g *Graph, base Address, depth int) {
		if depth > lim.MaxDepth {
			problems = append(problems, fmt.Sprintf("group %s nested deeper than %d", base, lim.MaxDepth))
			return
		}
		total += len(g.Nodes)
		for i, l := range g.Links {
			if l.From < 0 || l.From >= len(g.Nodes) || l.To < 0 || l.To >= len(g.Nodes) {
				problems = append(problems, fmt.Sprintf("%slinks[%d] references a missing node", scope(base), i))
			}
		}
		for i, n := range g.Nodes {
			if n == nil {
				problems = append(problems, fmt.Sprintf("node %s is empty", base.Child(i)))
				continue
			}
			switch {
			case n.Kind == KindGroup && n.Group == nil:
				problems = append(problems, fmt.Sprintf("group node %s has no group", base.Child(i)))
			case n.Kind != KindGroup && n.Group != nil:
				problems = append(problems, fmt.Sprintf("node %s of kind %s carries a group", base.Child(i), n.Kind))
			case n.Group != nil:
				visit(n.Group, base.Child(i), depth+1)
			}
		}
	}
	visit(g, nil, 1)
	if total > lim.MaxNodes {
		problems = append(problems, fmt.Sprintf("graph has %d nodes, limit is %d", total, lim.MaxNodes))
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func scope(base Address) string {
	if len(base) == 0 {
		return ""
	}
	return "group " + base.String() + ": "
}
