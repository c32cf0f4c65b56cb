// Package workflow owns the request lifecycle: the status state machine and
// the service orchestrating create/edit/decide/delete around it.
package workflow

import (
	"strings"

	"github.com/shopspring/decimal"

	"subtrack/internal/apperrors"
	"subtrack/internal/models"
)

// Decision is the payload of a status transition.
type Decision struct {
	NewStatus models.Status
	// Reason is mandatory when entering REJECTED and ignored otherwise.
	Reason string
	// FinalCost optionally captures the negotiated price when entering
	// APPROVED. It never touches the requested cost: leaving APPROVED for
	// REJECTED or PENDING drops the override again.
	FinalCost *decimal.Decimal
}

// ValidateTransition checks that the actor may move a request from its
// current status according to dec. It performs no mutation.
func ValidateTransition(actor *models.User, from models.Status, dec Decision) error {
	if !actor.IsStaff() {
		return apperrors.Unauthorized("only accountants and admins may change request status")
	}
	if !dec.NewStatus.Valid() {
		return apperrors.Validation("unknown status " + string(dec.NewStatus))
	}
	if dec.NewStatus == models.StatusExpired {
		// EXPIRED is reserved for the renewal-decline path
		return apperrors.InvalidState("requests expire through renewal decline, not a direct status set")
	}
	if from == models.StatusExpired {
		return apperrors.InvalidState("expired requests cannot change status")
	}
	if dec.NewStatus == models.StatusRejected && strings.TrimSpace(dec.Reason) == "" {
		return apperrors.Validation("rejection reason is required")
	}
	return nil
}

// ApplyTransition mutates r according to an already-validated decision.
func ApplyTransition(r *models.Request, dec Decision) {
	r.Status = dec.NewStatus
	switch dec.NewStatus {
	case models.StatusRejected:
		reason := strings.TrimSpace(dec.Reason)
		r.RejectionReason = &reason
		r.FinalCost = nil
	case models.StatusApproved:
		r.RejectionReason = nil
		if dec.FinalCost != nil {
			r.FinalCost = dec.FinalCost
		}
	case models.StatusActive:
		// activation keeps the approved price in force
		r.RejectionReason = nil
	default:
		// a reset to PENDING clears a stale reason and cost override
		r.RejectionReason = nil
		r.FinalCost = nil
	}
}

// CanModify gates edits and deletes: only the owning manager may touch a
// request, and only while it is still PENDING.
func CanModify(actor *models.User, r *models.Request) error {
	if actor.Role != models.RoleManager || r.RequesterID != actor.ID {
		return apperrors.Unauthorized("only the requesting manager may modify this request")
	}
	if r.Status != models.StatusPending {
		return apperrors.InvalidState("request is no longer pending")
	}
	return nil
}
