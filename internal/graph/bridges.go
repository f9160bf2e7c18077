package graph

// BridgeLink is a link whose removal splits its component.
type BridgeLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// BridgeReport lists chokepoints of the link structure.
type BridgeReport struct {
	Chokepoints []string     `json:"chokepoints"`
	Bridges     []BridgeLink `json:"bridges"`
}

// ComputeBridges finds articulation nodes and bridge links over the
// undirected link structure of snap. Group containment is ignored.
func ComputeBridges(snap *Snapshot) *BridgeReport {
	report := &BridgeReport{}
	if len(snap.Nodes) == 0 {
		return report
	}

	nodeIDs := snap.NodeIDs()
	idToIdx := make(map[string]int, len(nodeIDs))
	for i, id := range nodeIDs {
		idToIdx[id] = i
	}
	n := len(nodeIDs)

	// Deduplicated undirected adjacency; parallel links between the same
	// pair of nodes never form a bridge.
	adjIdx := make([][]int, n)
	type edgePair struct{ u, v int }
	multi := make(map[edgePair]int)
	for _, e := range snap.Edges {
		u, okU := idToIdx[e.Source]
		v, okV := idToIdx[e.Target]
		if !okU || !okV || u == v {
			continue
		}
		key := edgePair{u, v}
		if u > v {
			key = edgePair{v, u}
		}
		if multi[key] == 0 {
			adjIdx[u] = append(adjIdx[u], v)
			adjIdx[v] = append(adjIdx[v], u)
		}
		multi[key]++
	}

	disc := make([]int, n)
	low := make([]int, n)
	visited := make([]bool, n)
	isAP := make([]bool, n)
	counter := 1

	const noParent = -1

	// Iterative Tarjan for each connected component
	type frame struct {
		node, parent, ni int
	}

	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		visited[start] = true
		disc[start], low[start] = counter, counter
		counter++

		stack := []frame{{start, noParent, 0}}
		rootChildren := 0

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			node := top.node

			if top.ni < len(adjIdx[node]) {
				child := adjIdx[node][top.ni]
				top.ni++
				if child == top.parent {
					continue
				}
				if visited[child] {
					low[node] = min(low[node], disc[child])
					continue
				}
				visited[child] = true
				disc[child], low[child] = counter, counter
				counter++
				if node == start {
					rootChildren++
				}
				stack = append(stack, frame{child, node, 0})
				continue
			}

			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				continue
			}
			pn := stack[len(stack)-1].node
			low[pn] = min(low[pn], low[node])

			key := edgePair{pn, node}
			if pn > node {
				key = edgePair{node, pn}
			}
			if low[node] > disc[pn] && multi[key] == 1 {
				report.Bridges = append(report.Bridges, BridgeLink{Source: nodeIDs[pn], Target: nodeIDs[node]})
			}
			if pn != start && low[node] >= disc[pn] {
				isAP[pn] = true
			}
		}

		if rootChildren >= 2 {
			isAP[start] = true
		}
	}

	for i := 0; i < n; i++ {
		if isAP[i] {
			report.Chokepoints = append(report.Chokepoints, nodeIDs[i])
		}
	}
	return report
}
