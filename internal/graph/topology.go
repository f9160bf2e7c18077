package graph

import "sort"

// BusyNode is a node with many links.
type BusyNode struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Degree    int    `json:"degree"`
	InDegree  int    `json:"in_degree"`
	OutDegree int    `json:"out_degree"`
}

// KindCount is one row of the per-kind histogram.
type KindCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// TopologyReport summarises the structure of a graph.
type TopologyReport struct {
	Name              string              `json:"name"`
	Signature         string              `json:"signature"`
	TotalNodes        int                 `json:"total_nodes"`
	TotalLinks        int                 `json:"total_links"`
	Groups            int                 `json:"groups"`
	MaxDepth          int                 `json:"max_depth"`
	NumComponents     int                 `json:"num_components"`
	LargestComponent  int                 `json:"largest_component"`
	SmallestComponent int                 `json:"smallest_component"`
	UnlinkedCount     int                 `json:"unlinked_count"`
	Unlinked          []string            `json:"unlinked"`
	Kinds             []KindCount         `json:"kinds"`
	Special           map[string][]string `json:"special"`
	Busiest           []BusyNode          `json:"busiest"`
	Bridges           *BridgeReport       `json:"bridges"`
}

// Inspect analyzes g: components, unlinked nodes, kinds, special nodes and
// the busiest nodes. Nodes inside a group belong to the group node's
// component. The signature is left empty if the graph cannot be scanned.
func Inspect(c Class, g *Graph, busyThreshold, topN int) *TopologyReport {
	snap := NewSnapshot(g)
	report := &TopologyReport{
		Name:       g.Name,
		TotalNodes: len(snap.Nodes),
		TotalLinks: len(snap.Edges),
		Special:    map[string][]string{},
		Bridges:    &BridgeReport{},
	}
	if sig, err := Signature(g); err == nil {
		report.Signature = sig.String()
	}
	for kind, addrs := range ClassifySpecialNodes(c, g) {
		for _, a := range addrs {
			report.Special[kind] = append(report.Special[kind], a.String())
		}
	}
	if report.TotalNodes == 0 {
		return report
	}

	nodeIDs := snap.NodeIDs()
	uf := NewUnionFind(nodeIDs)
	kinds := map[string]int{}
	for _, id := range nodeIDs {
		n := snap.Nodes[id]
		kinds[n.Kind]++
		if n.Kind == KindGroup {
			report.Groups++
		}
		if n.Depth > report.MaxDepth {
			report.MaxDepth = n.Depth
		}
		if n.Parent != "" {
			uf.Union(id, n.Parent)
		}
	}
	for _, e := range snap.Edges {
		uf.Union(e.Source, e.Target)
	}

	components := uf.Components()
	report.NumComponents = len(components)
	report.LargestComponent = len(components[0])
	report.SmallestComponent = len(components[len(components)-1])
	report.Bridges = ComputeBridges(snap)

	for _, id := range nodeIDs {
		if len(snap.Adj[id]) == 0 {
			report.Unlinked = append(report.Unlinked, id)
		}
	}
	report.UnlinkedCount = len(report.Unlinked)
	if len(report.Unlinked) > topN {
		report.Unlinked = report.Unlinked[:topN]
	}

	for kind, n := range kinds {
		report.Kinds = append(report.Kinds, KindCount{Kind: kind, Count: n})
	}
	sort.Slice(report.Kinds, func(i, j int) bool {
		if report.Kinds[i].Count != report.Kinds[j].Count {
			return report.Kinds[i].Count > report.Kinds[j].Count
		}
		return report.Kinds[i].Kind < report.Kinds[j].Kind
	})

	for _, id := range nodeIDs {
		degree := len(snap.Adj[id])
		if degree > busyThreshold {
			n := snap.Nodes[id]
			report.Busiest = append(report.Busiest, BusyNode{
				Address:   id,
				Name:      n.Name,
				Kind:      n.Kind,
				Degree:    degree,
				InDegree:  len(snap.InAdj[id]),
				OutDegree: len(snap.OutAdj[id]),
			})
		}
	}
	sort.SliceStable(report.Busiest, func(i, j int) bool { return report.Busiest[i].Degree > report.Busiest[j].Degree })
	if len(report.Busiest) > topN {
		report.Busiest = report.Busiest[:topN]
	}
	return report
}
