package engine

import (
	"github.com/google/uuid"

	tendermodels "tenderwatch/internal/tender/models"
)

// RelationType tags why two contractors are considered related. When a pair is
// related through more than one attribute, the first matching type in the
// precedence order phone > address > beneficiary is recorded.
type RelationType string

const (
	RelationSharedPhone       RelationType = "shared_phone"
	RelationSharedAddress     RelationType = "shared_address"
	RelationSharedBeneficiary RelationType = "shared_beneficiary"
)

// ContractorNode aggregates one contractor's contact attributes and owned
// tenders across all of its tender rows. Nodes are run-scoped and never
// persisted.
type ContractorNode struct {
	ContractorID   string
	DisplayName    string
	Phones         map[string]struct{}
	Addresses      map[string]struct{}
	BeneficiaryIDs map[string]struct{}
	TenderIDs      []uuid.UUID
	TotalAmount    float64
}

// Edge is one relation between two contractors, source ordered before target.
type Edge struct {
	Source string
	Target string
	Type   RelationType
}

// Graph is the contractor-identity graph for one detection run. Node order is
// the order contractor ids first appear in the tender scan, which keeps
// clustering deterministic.
type Graph struct {
	order []string
	nodes map[string]*ContractorNode
}

// BuildGraph derives the contractor graph from the tender ledger. Tenders
// without a contractor identity contribute no node.
func BuildGraph(tenders []tendermodels.Tender) *Graph {
	g := &Graph{nodes: make(map[string]*ContractorNode)}
	for _, t := range tenders {
		if t.ContractorID == nil {
			continue
		}
		cid := *t.ContractorID
		node, ok := g.nodes[cid]
		if !ok {
			node = &ContractorNode{
				ContractorID:   cid,
				DisplayName:    t.ContractorName,
				Phones:         make(map[string]struct{}),
				Addresses:      make(map[string]struct{}),
				BeneficiaryIDs: make(map[string]struct{}),
			}
			g.nodes[cid] = node
			g.order = append(g.order, cid)
		}
		node.TenderIDs = append(node.TenderIDs, t.ID)
		node.TotalAmount += t.Amount
		if t.Phone != nil {
			node.Phones[*t.Phone] = struct{}{}
		}
		if t.Address != nil {
			node.Addresses[*t.Address] = struct{}{}
		}
		if t.BeneficiaryID != nil {
			node.BeneficiaryIDs[*t.BeneficiaryID] = struct{}{}
		}
	}
	return g
}

// Size returns the number of contractor nodes.
func (g *Graph) Size() int {
	return len(g.order)
}

// Nodes returns the contractor nodes in insertion order.
func (g *Graph) Nodes() []*ContractorNode {
	out := make([]*ContractorNode, 0, len(g.order))
	for _, cid := range g.order {
		out = append(out, g.nodes[cid])
	}
	return out
}

// Node returns the node for a contractor id, or nil.
func (g *Graph) Node(contractorID string) *ContractorNode {
	return g.nodes[contractorID]
}

// Edges returns the exhaustive relation list over every ordered pair. Unlike
// the local cluster pass this inspects all pairs, so the collaborator sees the
// full transitive structure.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for i := 0; i < len(g.order); i++ {
		for j := i + 1; j < len(g.order); j++ {
			u, v := g.nodes[g.order[i]], g.nodes[g.order[j]]
			if rel, ok := relationType(u, v); ok {
				edges = append(edges, Edge{
					Source: u.ContractorID,
					Target: v.ContractorID,
					Type:   rel,
				})
			}
		}
	}
	return edges
}

// related reports whether two contractors share any exact-string contact
// attribute. No fuzzy matching.
func related(a, b *ContractorNode) bool {
	_, ok := relationType(a, b)
	return ok
}

func relationType(a, b *ContractorNode) (RelationType, bool) {
	if intersects(a.Phones, b.Phones) {
		return RelationSharedPhone, true
	}
	if intersects(a.Addresses, b.Addresses) {
		return RelationSharedAddress, true
	}
	if intersects(a.BeneficiaryIDs, b.BeneficiaryIDs) {
		return RelationSharedBeneficiary, true
	}
	return "", false
}

func intersects(a, b map[string]struct{}) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for v := range a {
		if _, ok := b[v]; ok {
			return true
		}
	}
	return false
}
