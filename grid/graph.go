package grid

// Graph is the undirected adjacency view over a state's objects: two
// objects are adjacent when any of their cells share a 4-connected face on
// the same z-level. Every object present in the state appears as a node,
// including isolated ones. A Graph is derived data, rebuilt from a snapshot
// on demand and never stored back.
type Graph struct {
	adjacency map[ObjectID]map[ObjectID]struct{}
}

// BuildGraph scans every occupied cell once and links owners of touching
// cells. Self-adjacency (an object touching itself) is ignored.
func BuildGraph(s *State) Graph {
	adjacency := make(map[ObjectID]map[ObjectID]struct{})
	for _, id := range s.ObjectIDs() {
		adjacency[id] = map[ObjectID]struct{}{}
	}

	for c, id := range s.cells {
		for _, n := range c.horizontalNeighbors() {
			neighbor, ok := s.cells[n]
			if !ok || neighbor == id {
				continue
			}
			adjacency[id][neighbor] = struct{}{}
			adjacency[neighbor][id] = struct{}{}
		}
	}
	return Graph{adjacency: adjacency}
}

// Has reports whether id is a node of the graph.
func (g Graph) Has(id ObjectID) bool {
	_, ok := g.adjacency[id]
	return ok
}

// NodeCount returns the number of objects in the graph.
func (g Graph) NodeCount() int {
	return len(g.adjacency)
}

// Neighbors returns the objects adjacent to id, sorted. Unknown ids have no
// neighbors.
func (g Graph) Neighbors(id ObjectID) []ObjectID {
	edges, ok := g.adjacency[id]
	if !ok || len(edges) == 0 {
		return nil
	}
	neighbors := make([]ObjectID, 0, len(edges))
	for n := range edges {
		neighbors = append(neighbors, n)
	}
	sortObjectIDs(neighbors)
	return neighbors
}

// Degree returns the number of distinct objects adjacent to id.
func (g Graph) Degree(id ObjectID) int {
	return len(g.adjacency[id])
}

// Components returns the connected components, each sorted, ordered by
// their smallest member.
func (g Graph) Components() [][]ObjectID {
	nodes := make([]ObjectID, 0, len(g.adjacency))
	for id := range g.adjacency {
		nodes = append(nodes, id)
	}
	sortObjectIDs(nodes)

	visited := make(map[ObjectID]struct{}, len(nodes))
	var components [][]ObjectID

	for _, start := range nodes {
		if _, ok := visited[start]; ok {
			continue
		}

		var component []ObjectID
		stack := []ObjectID{start}
		visited[start] = struct{}{}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, id)

			for n := range g.adjacency[id] {
				if _, ok := visited[n]; ok {
					continue
				}
				visited[n] = struct{}{}
				stack = append(stack, n)
			}
		}
		sortObjectIDs(component)
		components = append(components, component)
	}
	return components
}

// IsConnected reports whether a path of adjacent objects links a and b.
// An object is connected to itself when present.
func (g Graph) IsConnected(a, b ObjectID) bool {
	if !g.Has(a) || !g.Has(b) {
		return false
	}

	visited := map[ObjectID]struct{}{a: {}}
	queue := []ObjectID{a}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == b {
			return true
		}
		for n := range g.adjacency[id] {
			if _, ok := visited[n]; ok {
				continue
			}
			visited[n] = struct{}{}
			queue = append(queue, n)
		}
	}
	return false
}

// GraphStats aggregates a built graph.
type GraphStats struct {
	NodeCount     int     `json:"node_count"`
	EdgeCount     int     `json:"edge_count"`
	IsolatedCount int     `json:"isolated_count"`
	AvgDegree     float64 `json:"avg_degree"`
	MaxDegree     int     `json:"max_degree"`
	MinDegree     int     `json:"min_degree"`
}

func (g Graph) Stats() GraphStats {
	stats := GraphStats{NodeCount: len(g.adjacency)}
	if stats.NodeCount == 0 {
		return stats
	}

	degreeSum := 0
	first := true
	for _, edges := range g.adjacency {
		degree := len(edges)
		degreeSum += degree
		if degree == 0 {
			stats.IsolatedCount++
		}
		if first || degree > stats.MaxDegree {
			stats.MaxDegree = degree
		}
		if first || degree < stats.MinDegree {
			stats.MinDegree = degree
		}
		first = false
	}

	// Each undirected edge is counted once per endpoint.
	stats.EdgeCount = degreeSum / 2
	stats.AvgDegree = float64(degreeSum) / float64(stats.NodeCount)
	return stats
}
