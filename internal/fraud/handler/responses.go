package handler

import (
	"time"

	"github.com/google/uuid"

	"tenderwatch/internal/fraud/models"
)

// FlagResponse is the wire shape of a fraud flag. Evidence is the
// rule-specific payload, serialized as stored.
type FlagResponse struct {
	ID         uuid.UUID           `json:"id"`
	TenderID   uuid.UUID           `json:"tender_id"`
	Rule       models.Rule         `json:"rule"`
	Score      float64             `json:"score"`
	Evidence   models.FlagEvidence `json:"evidence"`
	Status     models.Status       `json:"status"`
	ReviewedBy *string             `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time          `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// ClusterResponse is the wire shape of a fraud cluster.
type ClusterResponse struct {
	ID                  uuid.UUID              `json:"id"`
	ClusterNodes        []string               `json:"cluster_nodes"`
	SuspiciousnessScore float64                `json:"suspiciousness_score"`
	TotalAmount         float64                `json:"total_amount"`
	EdgeDensity         float64                `json:"edge_density"`
	Evidence            models.ClusterEvidence `json:"evidence"`
	CreatedAt           time.Time              `json:"created_at"`
}

// RunResponse summarizes a completed detection run. ClustersCreated counts
// heuristic clusters only.
type RunResponse struct {
	Status          string `json:"status"`
	ClustersCreated int    `json:"clusters_created"`
}

func toFlagResponse(flag models.FraudFlag) FlagResponse {
	return FlagResponse{
		ID:         flag.ID,
		TenderID:   flag.TenderID,
		Rule:       flag.Rule,
		Score:      flag.Score,
		Evidence:   flag.Evidence,
		Status:     flag.Status,
		ReviewedBy: flag.ReviewedBy,
		ReviewedAt: flag.ReviewedAt,
		CreatedAt:  flag.CreatedAt,
	}
}

func toFlagResponses(flags []models.FraudFlag) []FlagResponse {
	out := make([]FlagResponse, 0, len(flags))
	for _, f := range flags {
		out = append(out, toFlagResponse(f))
	}
	return out
}

func toClusterResponses(clusters []models.FraudCluster) []ClusterResponse {
	out := make([]ClusterResponse, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, ClusterResponse{
			ID:                  c.ID,
			ClusterNodes:        c.ClusterNodes,
			SuspiciousnessScore: c.SuspiciousnessScore,
			TotalAmount:         c.TotalAmount,
			EdgeDensity:         c.EdgeDensity,
			Evidence:            c.Evidence,
			CreatedAt:           c.CreatedAt,
		})
	}
	return out
}
