package handler

import (
	"strings"

	dErrors "tenderwatch/pkg/domain-errors"
)

// UpdateFlagRequest is the body of PATCH /fraud/flags/{id}. ReviewedBy is
// optional; when absent the authenticated user is recorded as the reviewer.
type UpdateFlagRequest struct {
	Status     string `json:"status"`
	ReviewedBy string `json:"reviewed_by"`
}

func (r *UpdateFlagRequest) Validate() error {
	r.Status = strings.TrimSpace(r.Status)
	r.ReviewedBy = strings.TrimSpace(r.ReviewedBy)
	if r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	return nil
}
