// Package engine holds the pure detection logic: the three rule evaluators,
// the contractor relationship graph, and the local cluster heuristic. No I/O
// and no side effects; the service layer feeds it tenders and persists what
// comes back.
package engine

import (
	"math"

	"github.com/google/uuid"

	fraudmodels "tenderwatch/internal/fraud/models"
	tendermodels "tenderwatch/internal/tender/models"
)

// RepeatWinnerWindowDays is the trailing window for the repeat-winner rule.
const RepeatWinnerWindowDays = 365

// Finding is one rule hit against one tender, not yet persisted.
type Finding struct {
	TenderID uuid.UUID
	Rule     fraudmodels.Rule
	Score    float64
	Evidence fraudmodels.FlagEvidence
}

// EvaluateRepeatWinners flags every tender of any contractor whose win count
// within the supplied window reaches the threshold. Callers pass only tenders
// dated inside the trailing window; tenders without a contractor identity are
// skipped.
func EvaluateRepeatWinners(windowed []tendermodels.Tender, threshold int) []Finding {
	type contractorWins struct {
		name    string
		tenders []tendermodels.Tender
	}
	var order []string
	byContractor := make(map[string]*contractorWins)
	for _, t := range windowed {
		if t.ContractorID == nil {
			continue
		}
		cid := *t.ContractorID
		cw, ok := byContractor[cid]
		if !ok {
			cw = &contractorWins{name: t.ContractorName}
			byContractor[cid] = cw
			order = append(order, cid)
		}
		cw.tenders = append(cw.tenders, t)
	}

	var findings []Finding
	for _, cid := range order {
		cw := byContractor[cid]
		wins := len(cw.tenders)
		if wins < threshold {
			continue
		}
		score := clampScore(math.Log10(float64(wins)+1) / 2)
		for _, t := range cw.tenders {
			findings = append(findings, Finding{
				TenderID: t.ID,
				Rule:     fraudmodels.RuleRepeatWinner,
				Score:    score,
				Evidence: fraudmodels.RepeatWinnerEvidence{
					ContractorName: cw.name,
					Wins:           wins,
				},
			})
		}
	}
	return findings
}

// EvaluatePriceOutliers flags tenders priced above mean + k*std of their own
// category. Std is the population standard deviation; categories with zero
// spread are skipped since no outlier is detectable.
func EvaluatePriceOutliers(tenders []tendermodels.Tender, k float64) []Finding {
	var order []string
	byCategory := make(map[string][]tendermodels.Tender)
	for _, t := range tenders {
		if t.Category == nil {
			continue
		}
		cat := *t.Category
		if _, ok := byCategory[cat]; !ok {
			order = append(order, cat)
		}
		byCategory[cat] = append(byCategory[cat], t)
	}

	var findings []Finding
	for _, cat := range order {
		group := byCategory[cat]
		mean, std := meanAndPopulationStd(group)
		if std == 0 {
			continue
		}
		cutoff := mean + k*std
		for _, t := range group {
			if t.Amount <= cutoff {
				continue
			}
			findings = append(findings, Finding{
				TenderID: t.ID,
				Rule:     fraudmodels.RulePriceOutlier,
				Score:    clampScore((t.Amount - mean) / (3 * std)),
				Evidence: fraudmodels.PriceOutlierEvidence{
					Category: cat,
					Amount:   t.Amount,
					Mean:     mean,
					Std:      std,
					Cutoff:   cutoff,
				},
			})
		}
	}
	return findings
}

// EvaluateDuplicateBeneficiaries flags every tender of any beneficiary that
// appears on more than one tender.
func EvaluateDuplicateBeneficiaries(tenders []tendermodels.Tender) []Finding {
	var order []string
	byBeneficiary := make(map[string][]tendermodels.Tender)
	for _, t := range tenders {
		if t.BeneficiaryID == nil {
			continue
		}
		bid := *t.BeneficiaryID
		if _, ok := byBeneficiary[bid]; !ok {
			order = append(order, bid)
		}
		byBeneficiary[bid] = append(byBeneficiary[bid], t)
	}

	var findings []Finding
	for _, bid := range order {
		group := byBeneficiary[bid]
		count := len(group)
		if count <= 1 {
			continue
		}
		score := clampScore(float64(count) / 10)
		for _, t := range group {
			findings = append(findings, Finding{
				TenderID: t.ID,
				Rule:     fraudmodels.RuleDuplicateBeneficiary,
				Score:    score,
				Evidence: fraudmodels.DuplicateBeneficiaryEvidence{
					BeneficiaryID: bid,
					Count:         count,
				},
			})
		}
	}
	return findings
}

func meanAndPopulationStd(tenders []tendermodels.Tender) (mean, std float64) {
	if len(tenders) == 0 {
		return 0, 0
	}
	var sum float64
	for _, t := range tenders {
		sum += t.Amount
	}
	mean = sum / float64(len(tenders))

	var sumSq float64
	for _, t := range tenders {
		d := t.Amount - mean
		sumSq += d * d
	}
	std = math.Sqrt(sumSq / float64(len(tenders)))
	return mean, std
}

func clampScore(s float64) float64 {
	return math.Min(1, s)
}
