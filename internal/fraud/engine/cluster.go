package engine

import "math"

// Cluster is one suspicious contractor grouping produced by the local
// heuristic, scored but not yet persisted.
type Cluster struct {
	Nodes       []string
	TotalAmount float64
	EdgeDensity float64
	Score       float64
}

// LocalClusters runs the seed-centered grouping pass over the graph.
//
// Each unvisited contractor seeds a cluster; every later unvisited contractor
// related to the seed (and only to the seed, not to other members already
// pulled in) joins it and is marked visited. This is deliberately NOT
// connected components: with A-B sharing a phone and B-C sharing an address
// but A and C sharing nothing, the result is {A,B} and {C}. Dashboards and
// stored history depend on that grouping, so keep the asymmetry.
func (g *Graph) LocalClusters() []Cluster {
	visited := make(map[string]bool, len(g.order))
	var clusters []Cluster

	for i, seedID := range g.order {
		if visited[seedID] {
			continue
		}
		seed := g.nodes[seedID]
		members := []string{seedID}
		for _, otherID := range g.order[i+1:] {
			if visited[otherID] {
				continue
			}
			if related(seed, g.nodes[otherID]) {
				members = append(members, otherID)
				visited[otherID] = true
			}
		}
		visited[seedID] = true
		clusters = append(clusters, g.scoreCluster(members))
	}
	return clusters
}

// scoreCluster computes cluster aggregates. Edge density is the ratio of
// member-owned tenders to the maximum possible pairwise linkages n*(n-1),
// clamped to 1; singleton clusters have density 0. The suspiciousness score
// combines financial volume and density on a bounded [0,1] scale.
func (g *Graph) scoreCluster(members []string) Cluster {
	var totalAmount float64
	tenderCount := 0
	for _, cid := range members {
		node := g.nodes[cid]
		totalAmount += node.TotalAmount
		tenderCount += len(node.TenderIDs)
	}

	n := len(members)
	density := 0.0
	if n > 1 {
		density = math.Min(1, float64(tenderCount)/float64(n*(n-1)))
	}

	return Cluster{
		Nodes:       members,
		TotalAmount: totalAmount,
		EdgeDensity: density,
		Score:       math.Min(1, math.Log10(1+totalAmount)/6+density/2),
	}
}
