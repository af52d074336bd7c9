package model

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func pendingRequest(creator uuid.UUID) *PurchaseRequest {
	return &PurchaseRequest{
		ID:           uuid.New(),
		Status:       StatusPending,
		CreatedByID:  creator,
		ProformaPath: "proformas/x.txt",
	}
}

func TestApproverLevel(t *testing.T) {
	cases := []struct {
		role    string
		level   int
		wantErr bool
	}{
		{RoleApproverL1, 1, false},
		{RoleApproverL2, 2, false},
		{RoleStaff, 0, true},
		{RoleFinance, 0, true},
		{"unknown", 0, true},
	}
	for _, tc := range cases {
		level, err := ApproverLevel(tc.role)
		if tc.wantErr {
			if !errors.Is(err, ErrNotApprover) {
				t.Errorf("ApproverLevel(%q) error = %v, want ErrNotApprover", tc.role, err)
			}
			continue
		}
		if err != nil || level != tc.level {
			t.Errorf("ApproverLevel(%q) = %d, %v; want %d", tc.role, level, err, tc.level)
		}
	}
}

func TestEnsureCanDecideLevelOrdering(t *testing.T) {
	req := pendingRequest(uuid.New())

	// Level 2 cannot approve before level 1
	if err := req.EnsureCanDecide(2, StatusApproved); !errors.Is(err, ErrLevelOneFirst) {
		t.Fatalf("expected ErrLevelOneFirst, got %v", err)
	}

	// Level 2 may reject at any time while pending
	if err := req.EnsureCanDecide(2, StatusRejected); err != nil {
		t.Fatalf("level 2 reject on pending should pass, got %v", err)
	}

	// Level 1 may approve immediately
	if err := req.EnsureCanDecide(1, StatusApproved); err != nil {
		t.Fatalf("level 1 approve on pending should pass, got %v", err)
	}

	// After a level 1 approval, level 2 may approve
	req.Approvals = append(req.Approvals, Approval{ApproverLevel: 1, Status: StatusApproved})
	if err := req.EnsureCanDecide(2, StatusApproved); err != nil {
		t.Fatalf("level 2 approve after level 1 should pass, got %v", err)
	}
}

func TestEnsureCanDecideTerminalStates(t *testing.T) {
	for _, status := range []string{StatusApproved, StatusRejected} {
		req := pendingRequest(uuid.New())
		req.Status = status
		for level := 1; level <= 2; level++ {
			if err := req.EnsureCanDecide(level, StatusApproved); !errors.Is(err, ErrNotPending) {
				t.Errorf("status %s level %d approve: expected ErrNotPending, got %v", status, level, err)
			}
			if err := req.EnsureCanDecide(level, StatusRejected); !errors.Is(err, ErrNotPending) {
				t.Errorf("status %s level %d reject: expected ErrNotPending, got %v", status, level, err)
			}
		}
	}
}

func TestAllLevelsApproved(t *testing.T) {
	req := pendingRequest(uuid.New())
	if req.AllLevelsApproved() {
		t.Fatal("no approvals should not count as fully approved")
	}

	req.Approvals = []Approval{{ApproverLevel: 1, Status: StatusApproved}}
	if req.AllLevelsApproved() {
		t.Fatal("single level should not count as fully approved")
	}

	// A rejection at level 2 does not complete the approval set
	req.Approvals = append(req.Approvals, Approval{ApproverLevel: 2, Status: StatusRejected})
	if req.AllLevelsApproved() {
		t.Fatal("rejected level 2 decision should not count")
	}

	req.Approvals = append(req.Approvals, Approval{ApproverLevel: 2, Status: StatusApproved})
	if !req.AllLevelsApproved() {
		t.Fatal("both levels approved should count as fully approved")
	}
}

func TestEnsureCanSubmitReceipt(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()

	req := pendingRequest(owner)
	req.Status = StatusApproved

	if err := req.EnsureCanSubmitReceipt(other); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner should get ErrNotOwner, got %v", err)
	}
	if err := req.EnsureCanSubmitReceipt(owner); err != nil {
		t.Fatalf("owner on approved request without receipt should pass, got %v", err)
	}

	req.ReceiptPath = "receipts/r.txt"
	if err := req.EnsureCanSubmitReceipt(owner); !errors.Is(err, ErrReceiptExists) {
		t.Fatalf("existing receipt should get ErrReceiptExists, got %v", err)
	}

	req = pendingRequest(owner)
	if err := req.EnsureCanSubmitReceipt(owner); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("pending request should get ErrNotApproved, got %v", err)
	}
}

func TestCanCreateRequest(t *testing.T) {
	if !CanCreateRequest(RoleStaff) {
		t.Fatal("staff must be able to create requests")
	}
	for _, role := range []string{RoleApproverL1, RoleApproverL2, RoleFinance, ""} {
		if CanCreateRequest(role) {
			t.Errorf("role %q must not be able to create requests", role)
		}
	}
}

func TestPermissionsForRejectedRequest(t *testing.T) {
	req := pendingRequest(uuid.New())
	req.Status = StatusRejected

	for _, role := range AllRoles {
		p := req.PermissionsFor(uuid.New(), role)
		if p.CanApprove || p.CanReject {
			t.Errorf("rejected request must never expose approve/reject for role %q", role)
		}
	}
}

func TestPermissionsForApprovedRequestWithReceipt(t *testing.T) {
	owner := uuid.New()
	req := pendingRequest(owner)
	req.Status = StatusApproved
	req.ReceiptPath = "receipts/r.txt"

	for _, role := range AllRoles {
		p := req.PermissionsFor(owner, role)
		if p.CanSubmitReceipt {
			t.Errorf("request with a receipt must never expose receipt submission for role %q", role)
		}
	}
}

func TestPermissionsForOwner(t *testing.T) {
	owner := uuid.New()
	req := pendingRequest(owner)

	p := req.PermissionsFor(owner, RoleStaff)
	if !p.CanEdit {
		t.Fatal("owner must be able to edit a pending request")
	}
	if p.CanApprove || p.CanReject || p.CanSubmitReceipt {
		t.Fatal("staff owner of a pending request gets edit only")
	}

	req.Status = StatusApproved
	p = req.PermissionsFor(owner, RoleStaff)
	if p.CanEdit {
		t.Fatal("approved request must not be editable")
	}
	if !p.CanSubmitReceipt {
		t.Fatal("owner of an approved request without receipt must be able to submit one")
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range AllRoles {
		if !ValidRole(role) {
			t.Errorf("role %q should be valid", role)
		}
	}
	if ValidRole("admin") || ValidRole("") {
		t.Error("roles outside the closed set must be invalid")
	}
}
