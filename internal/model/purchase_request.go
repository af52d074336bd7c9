package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Request status enum constants
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// RequiredApprovalLevels is the number of distinct approver levels that must
// approve before a request transitions to approved.
const RequiredApprovalLevels = 2

// PurchaseRequest is a purchase request moving through the
// pending -> approved/rejected lifecycle. A proforma document is attached at
// creation; the purchase order is generated when the last approval level
// signs off, and the receipt is attached by the creator afterwards.
type PurchaseRequest struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title       string          `gorm:"type:varchar(255);not null" json:"title"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status      string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	CreatedByID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"created_by"`
	CreatedBy        *User      `gorm:"foreignKey:CreatedByID" json:"created_by_user,omitempty"`
	UpdatedByID      *uuid.UUID `gorm:"type:uuid" json:"updated_by"`
	LastApprovedByID *uuid.UUID `gorm:"type:uuid" json:"last_approved_by"`

	// Relative paths under the media root; empty when the document is absent.
	ProformaPath      string `gorm:"type:varchar(512)" json:"-"`
	PurchaseOrderPath string `gorm:"type:varchar(512)" json:"-"`
	ReceiptPath       string `gorm:"type:varchar(512)" json:"-"`

	DocumentMetadata  datatypes.JSON `gorm:"type:jsonb" json:"document_metadata"`
	ReceiptValidation datatypes.JSON `gorm:"type:jsonb" json:"receipt_validation"`
	POGeneratedAt     *time.Time     `json:"po_generated_at"`

	Approvals []Approval `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"approvals"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Approval logs one approver's decision on a request at one level.
// A given approver can hold at most one decision per request and level; acting
// again overwrites it.
type Approval struct {
	ID            uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID     uuid.UUID        `gorm:"type:uuid;not null;index;uniqueIndex:idx_approval_actor" json:"request_id"`
	Request       *PurchaseRequest `gorm:"foreignKey:RequestID" json:"-"`
	ApproverID    uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_approval_actor" json:"approver_id"`
	Approver      *User            `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	ApproverLevel int              `gorm:"not null;uniqueIndex:idx_approval_actor" json:"approver_level"`
	Status        string           `gorm:"type:varchar(20);not null" json:"status"`
	Comment       string           `gorm:"type:text" json:"comment"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
