package models

import (
	"time"

	"github.com/google/uuid"
)

// Tender is a recorded procurement award. Records are ingested elsewhere and
// are read-only here; the detection engine treats them as immutable for the
// duration of a run.
//
// ContractorID is the identity key for repeat-winner and clustering logic;
// rows without one remain eligible for the price-outlier and
// duplicate-beneficiary checks.
type Tender struct {
	ID             uuid.UUID
	TenderNumber   string
	Title          string
	ContractorName string
	ContractorID   *string
	Amount         float64
	Date           time.Time
	Category       *string
	Department     *string
	BeneficiaryID  *string
	Phone          *string
	Address        *string
}
