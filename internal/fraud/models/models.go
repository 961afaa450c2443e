// Package models defines the persistent records the detection engine produces:
// per-tender fraud flags and contractor collusion clusters. Both tables are
// append-only; flags are mutated only by the review workflow and nothing is
// ever deleted.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Rule identifies which detector raised a flag.
type Rule string

const (
	RuleRepeatWinner         Rule = "repeat_winner"
	RulePriceOutlier         Rule = "price_outlier"
	RuleDuplicateBeneficiary Rule = "duplicate_beneficiary"
)

// Status is the review state of a flag. The store accepts any non-empty value
// for compatibility with existing rows; these constants cover the states the
// dashboard actually sets.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDismissed Status = "dismissed"
)

// FraudFlag is a single rule-triggered suspicion record tied to one tender.
// Re-running detection inserts fresh rows for the same tender and rule; rows
// are never deduplicated so review history stays intact.
type FraudFlag struct {
	ID         uuid.UUID
	TenderID   uuid.UUID
	Rule       Rule
	Score      float64
	Evidence   FlagEvidence
	Status     Status
	ReviewedBy *string
	ReviewedAt *time.Time
	CreatedAt  time.Time
}

// FlagEvidence is the rule-specific payload attached to a flag. Exactly one
// concrete type exists per rule; the stored JSON shape is stable per rule.
type FlagEvidence interface {
	flagEvidence()
}

// RepeatWinnerEvidence accompanies repeat_winner flags.
type RepeatWinnerEvidence struct {
	ContractorName string `json:"contractor_name"`
	Wins           int    `json:"wins"`
}

func (RepeatWinnerEvidence) flagEvidence() {}

// PriceOutlierEvidence accompanies price_outlier flags. Mean and Std are the
// category's own statistics at detection time; Std is the population standard
// deviation.
type PriceOutlierEvidence struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Cutoff   float64 `json:"cutoff"`
}

func (PriceOutlierEvidence) flagEvidence() {}

// DuplicateBeneficiaryEvidence accompanies duplicate_beneficiary flags.
type DuplicateBeneficiaryEvidence struct {
	BeneficiaryID string `json:"beneficiary_id"`
	Count         int    `json:"count"`
}

func (DuplicateBeneficiaryEvidence) flagEvidence() {}

// DecodeFlagEvidence restores the typed evidence payload for a rule from its
// stored JSON representation.
func DecodeFlagEvidence(rule Rule, raw []byte) (FlagEvidence, error) {
	switch rule {
	case RuleRepeatWinner:
		var ev RepeatWinnerEvidence
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode repeat_winner evidence: %w", err)
		}
		return ev, nil
	case RulePriceOutlier:
		var ev PriceOutlierEvidence
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode price_outlier evidence: %w", err)
		}
		return ev, nil
	case RuleDuplicateBeneficiary:
		var ev DuplicateBeneficiaryEvidence
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode duplicate_beneficiary evidence: %w", err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown rule %q", rule)
	}
}

// ClusterSource distinguishes how a cluster was detected.
type ClusterSource string

const (
	ClusterSourceLocal     ClusterSource = "local"
	ClusterSourceCommunity ClusterSource = "community"
)

// ClusterEvidence explains why a cluster was formed. Method is set only for
// externally-detected communities.
type ClusterEvidence struct {
	Reason string `json:"reason"`
	Method string `json:"method,omitempty"`
}

// FraudCluster is a group of contractor identities suspected of collusion.
// Produced either by the local heuristic (inside the run transaction) or by
// the community-detection collaborator (best-effort, after commit).
type FraudCluster struct {
	ID                  uuid.UUID
	ClusterNodes        []string
	SuspiciousnessScore float64
	TotalAmount         float64
	EdgeDensity         float64
	Evidence            ClusterEvidence
	CreatedAt           time.Time
}
