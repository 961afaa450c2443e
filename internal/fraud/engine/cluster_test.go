package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tendermodels "tenderwatch/internal/tender/models"
)

// linked builds a tender for a contractor with the given contact attributes.
func linked(contractorID string, amount float64, phone, address, beneficiary string) tendermodels.Tender {
	t := newTender(contractorID, amount, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if phone != "" {
		t.Phone = strPtr(phone)
	}
	if address != "" {
		t.Address = strPtr(address)
	}
	if beneficiary != "" {
		t.BeneficiaryID = strPtr(beneficiary)
	}
	return t
}

func TestBuildGraph(t *testing.T) {
	t.Run("aggregates attributes per contractor", func(t *testing.T) {
		g := BuildGraph([]tendermodels.Tender{
			linked("A", 100, "111", "addr-1", ""),
			linked("A", 200, "222", "addr-1", "ben-1"),
			linked("B", 50, "", "", ""),
		})

		require.Equal(t, 2, g.Size())
		a := g.Node("A")
		require.NotNil(t, a)
		assert.Len(t, a.Phones, 2)
		assert.Len(t, a.Addresses, 1)
		assert.Len(t, a.BeneficiaryIDs, 1)
		assert.Len(t, a.TenderIDs, 2)
		assert.Equal(t, 300.0, a.TotalAmount)
	})

	t.Run("skips tenders without contractor identity", func(t *testing.T) {
		g := BuildGraph([]tendermodels.Tender{
			linked("", 100, "111", "", ""),
		})
		assert.Equal(t, 0, g.Size())
	})

	t.Run("node order follows first appearance", func(t *testing.T) {
		g := BuildGraph([]tendermodels.Tender{
			linked("B", 1, "", "", ""),
			linked("A", 1, "", "", ""),
			linked("B", 1, "", "", ""),
		})
		nodes := g.Nodes()
		require.Len(t, nodes, 2)
		assert.Equal(t, "B", nodes[0].ContractorID)
		assert.Equal(t, "A", nodes[1].ContractorID)
	})
}

func TestGraphEdges(t *testing.T) {
	t.Run("relation precedence is phone then address then beneficiary", func(t *testing.T) {
		g := BuildGraph([]tendermodels.Tender{
			linked("A", 1, "111", "addr-1", "ben-1"),
			linked("B", 1, "111", "addr-1", "ben-1"),
		})
		edges := g.Edges()
		require.Len(t, edges, 1)
		assert.Equal(t, RelationSharedPhone, edges[0].Type)

		g = BuildGraph([]tendermodels.Tender{
			linked("A", 1, "111", "addr-1", "ben-1"),
			linked("B", 1, "222", "addr-1", "ben-1"),
		})
		require.Len(t, g.Edges(), 1)
		assert.Equal(t, RelationSharedAddress, g.Edges()[0].Type)

		g = BuildGraph([]tendermodels.Tender{
			linked("A", 1, "111", "addr-1", "ben-1"),
			linked("B", 1, "222", "addr-2", "ben-1"),
		})
		require.Len(t, g.Edges(), 1)
		assert.Equal(t, RelationSharedBeneficiary, g.Edges()[0].Type)
	})

	t.Run("edge list is exhaustive over all pairs", func(t *testing.T) {
		// A-B share a phone, B-C share an address: both pairs appear even
		// though the local clustering pass would separate C.
		g := BuildGraph([]tendermodels.Tender{
			linked("A", 1, "111", "", ""),
			linked("B", 1, "111", "addr-1", ""),
			linked("C", 1, "", "addr-1", ""),
		})
		edges := g.Edges()
		require.Len(t, edges, 2)
		assert.Equal(t, Edge{Source: "A", Target: "B", Type: RelationSharedPhone}, edges[0])
		assert.Equal(t, Edge{Source: "B", Target: "C", Type: RelationSharedAddress}, edges[1])
	})

	t.Run("unrelated contractors produce no edges", func(t *testing.T) {
		g := BuildGraph([]tendermodels.Tender{
			linked("A", 1, "111", "addr-1", "ben-1"),
			linked("B", 1, "222", "addr-2", "ben-2"),
		})
		assert.Empty(t, g.Edges())
	})
}

func TestLocalClusters(t *testing.T) {
	t.Run("grouping is seed-centered, not transitive", func(t *testing.T) {
		// A-B share a phone, B-C share an address, A-C share nothing.
		// With A visited first the result must be {A,B} and {C}.
		g := BuildGraph([]tendermodels.Tender{
			linked("A", 100, "111", "", ""),
			linked("B", 100, "111", "addr-1", ""),
			linked("C", 100, "", "addr-1", ""),
		})

		clusters := g.LocalClusters()
		require.Len(t, clusters, 2)
		assert.Equal(t, []string{"A", "B"}, clusters[0].Nodes)
		assert.Equal(t, []string{"C"}, clusters[1].Nodes)
	})

	t.Run("aggregates amounts and density over members", func(t *testing.T) {
		// A owns two tenders, B one: tenderCount=3, n=2 => density min(1, 3/2)=1.
		g := BuildGraph([]tendermodels.Tender{
			linked("A", 100, "111", "", ""),
			linked("A", 200, "111", "", ""),
			linked("B", 400, "111", "", ""),
		})

		clusters := g.LocalClusters()
		require.Len(t, clusters, 1)
		c := clusters[0]
		assert.Equal(t, []string{"A", "B"}, c.Nodes)
		assert.Equal(t, 700.0, c.TotalAmount)
		assert.Equal(t, 1.0, c.EdgeDensity)
		assert.InDelta(t, math.Min(1, math.Log10(701)/6+0.5), c.Score, 1e-9)
	})

	t.Run("singleton has zero density", func(t *testing.T) {
		g := BuildGraph([]tendermodels.Tender{
			linked("A", 500, "", "", ""),
		})
		clusters := g.LocalClusters()
		require.Len(t, clusters, 1)
		assert.Equal(t, 0.0, clusters[0].EdgeDensity)
		assert.InDelta(t, math.Log10(501)/6, clusters[0].Score, 1e-9)
	})

	t.Run("score clamps for extreme volumes", func(t *testing.T) {
		g := BuildGraph([]tendermodels.Tender{
			linked("A", 5e9, "111", "", ""),
			linked("B", 5e9, "111", "", ""),
		})
		clusters := g.LocalClusters()
		require.Len(t, clusters, 1)
		assert.Equal(t, 1.0, clusters[0].Score)
	})

	t.Run("sparse pair has fractional density", func(t *testing.T) {
		// Two members, one tender each: density 2/(2*1) = 1. Use three
		// members sharing one phone: n=3, tenderCount=3, density 3/6 = 0.5.
		g := BuildGraph([]tendermodels.Tender{
			linked("A", 10, "111", "", ""),
			linked("B", 10, "111", "", ""),
			linked("C", 10, "111", "", ""),
		})
		clusters := g.LocalClusters()
		require.Len(t, clusters, 1)
		assert.Equal(t, []string{"A", "B", "C"}, clusters[0].Nodes)
		assert.InDelta(t, 0.5, clusters[0].EdgeDensity, 1e-9)
	})
}
