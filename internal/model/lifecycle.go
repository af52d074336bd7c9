package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Lifecycle guard errors. Services translate these into 4xx responses.
var (
	ErrNotApprover        = errors.New("only approvers can perform this action")
	ErrNotPending         = errors.New("only pending requests can be acted upon")
	ErrLevelOneFirst      = errors.New("level 1 approval required before level 2 approvers can act")
	ErrNotOwner           = errors.New("only the request owner can submit receipts")
	ErrNotApproved        = errors.New("receipts can only be submitted for approved requests")
	ErrReceiptExists      = errors.New("receipt already submitted")
	ErrNotEditable        = errors.New("only pending requests can be updated by their creator")
	ErrCreationNotAllowed = errors.New("only staff can create purchase requests")
)

// ApproverLevel maps an approver role to its level. Non-approver roles get an error.
func ApproverLevel(role string) (int, error) {
	switch role {
	case RoleApproverL1:
		return 1, nil
	case RoleApproverL2:
		return 2, nil
	}
	return 0, ErrNotApprover
}

// ApprovedLevels collects the levels that currently hold an approved decision.
func (r *PurchaseRequest) ApprovedLevels() map[int]bool {
	levels := make(map[int]bool)
	for _, a := range r.Approvals {
		if a.Status == StatusApproved {
			levels[a.ApproverLevel] = true
		}
	}
	return levels
}

// AllLevelsApproved reports whether every required approval level has signed off.
func (r *PurchaseRequest) AllLevelsApproved() bool {
	return len(r.ApprovedLevels()) >= RequiredApprovalLevels
}

// HasReceipt reports whether a receipt document is already attached.
func (r *PurchaseRequest) HasReceipt() bool {
	return r.ReceiptPath != ""
}

// EnsureCanDecide checks that an approver at the given level may approve or
// reject the request right now. Level 2 approvals additionally require an
// existing level 1 approval; rejection at either level only needs the request
// to still be pending.
func (r *PurchaseRequest) EnsureCanDecide(level int, decision string) error {
	if r.Status != StatusPending {
		return fmt.Errorf("%w (current status: %s)", ErrNotPending, r.Status)
	}
	if decision == StatusApproved && level == 2 && !r.ApprovedLevels()[1] {
		return ErrLevelOneFirst
	}
	return nil
}

// CanEdit reports whether the user may update the request: creator only,
// pending only.
func (r *PurchaseRequest) CanEdit(userID uuid.UUID) bool {
	return r.CreatedByID == userID && r.Status == StatusPending
}

// EnsureCanSubmitReceipt checks the receipt-submission guards for the user.
func (r *PurchaseRequest) EnsureCanSubmitReceipt(userID uuid.UUID) error {
	if r.CreatedByID != userID {
		return ErrNotOwner
	}
	if r.Status != StatusApproved {
		return ErrNotApproved
	}
	if r.HasReceipt() {
		return ErrReceiptExists
	}
	return nil
}

// CanCreateRequest reports whether the role may create purchase requests.
func CanCreateRequest(role string) bool {
	return role == RoleStaff
}

// CanSeeAllRequests reports whether the role bypasses creator scoping on
// list and detail reads. Staff only ever sees its own requests.
func CanSeeAllRequests(role string) bool {
	return role != RoleStaff
}

// Permissions are the per-user action flags returned with each request so the
// client can gate its controls. The server re-checks every guard on the
// actual transition calls; these flags are a rendering convenience only.
type Permissions struct {
	CanEdit          bool `json:"can_edit"`
	CanApprove       bool `json:"can_approve"`
	CanReject        bool `json:"can_reject"`
	CanSubmitReceipt bool `json:"can_submit_receipt"`
}

// PermissionsFor computes the action flags for a user against a request.
func (r *PurchaseRequest) PermissionsFor(userID uuid.UUID, role string) Permissions {
	p := Permissions{
		CanEdit:          r.CanEdit(userID),
		CanSubmitReceipt: role == RoleStaff && r.EnsureCanSubmitReceipt(userID) == nil,
	}
	if level, err := ApproverLevel(role); err == nil {
		p.CanApprove = r.EnsureCanDecide(level, StatusApproved) == nil
		p.CanReject = r.EnsureCanDecide(level, StatusRejected) == nil
	}
	return p
}
