package graph

import "sort"

// NodeInfo is one node of a flattened graph, keyed by its dotted address.
type NodeInfo struct {
	ID    string
	Name  string
	Kind  string
	Depth int
	// Parent is the address of the enclosing group node, empty at top level.
	Parent string
}

// EdgeInfo is a link between two flattened nodes.
type EdgeInfo struct {
	Source     string
	Target     string
	FromSocket string
	ToSocket   string
}

// Snapshot holds a flattened graph with precomputed adjacency lists.
type Snapshot struct {
	Nodes  map[string]*NodeInfo
	Edges  []EdgeInfo
	Adj    map[string][]string // undirected
	OutAdj map[string][]string // directed: source -> targets
	InAdj  map[string][]string // directed: target -> sources
}

// NewSnapshot flattens g, including nested groups, into a Snapshot.
func NewSnapshot(g *Graph) *Snapshot {
	var nodes []*NodeInfo
	var edges []EdgeInfo
	flatten(g, nil, &nodes, &edges)

	nodeMap := make(map[string]*NodeInfo, len(nodes))
	adj := make(map[string][]string)
	outAdj := make(map[string][]string)
	inAdj := make(map[string][]string)

	for _, n := range nodes {
		nodeMap[n.ID] = n
		adj[n.ID] = nil // ensure entry exists
		outAdj[n.ID] = nil
		inAdj[n.ID] = nil
	}

	for _, e := range edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
		adj[e.Target] = append(adj[e.Target], e.Source)
		outAdj[e.Source] = append(outAdj[e.Source], e.Target)
		inAdj[e.Target] = append(inAdj[e.Target], e.Source)
	}

	return &Snapshot{
		Nodes:  nodeMap,
		Edges:  edges,
		Adj:    adj,
		OutAdj: outAdj,
		InAdj:  inAdj,
	}
}

func flatten(g *Graph, base Address, nodes *[]*NodeInfo, edges *[]EdgeInfo) {
	for i, n := range g.Nodes {
		addr := base.Child(i)
		*nodes = append(*nodes, &NodeInfo{
			ID:     addr.String(),
			Name:   n.Name,
			Kind:   n.Kind,
			Depth:  len(addr),
			Parent: base.String(),
		})
		if n.Kind == KindGroup && n.Group != nil {
			flatten(n.Group, addr, nodes, edges)
		}
	}
	for _, l := range g.Links {
		if l.From < 0 || l.From >= len(g.Nodes) || l.To < 0 || l.To >= len(g.Nodes) {
			continue
		}
		*edges = append(*edges, EdgeInfo{
			Source:     base.Child(l.From).String(),
			Target:     base.Child(l.To).String(),
			FromSocket: l.FromSocket,
			ToSocket:   l.ToSocket,
		})
	}
}

// NodeIDs returns all node IDs in address order (for deterministic output).
func (s *Snapshot) NodeIDs() []string {
	ids := make([]string, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return addressLess(ids[i], ids[j]) })
	return ids
}

// addressLess orders dotted addresses numerically, parents first.
func addressLess(a, b string) bool {
	pa, _ := ParseAddress(a)
	pb, _ := ParseAddress(b)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return len(pa) < len(pb)
}
