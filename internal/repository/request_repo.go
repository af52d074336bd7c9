package repository

import (
	"context"
	"errors"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestFilter narrows List results. Search matches title or description
// case-insensitively; Status filters on exact status; CreatedBy scopes the
// list to one creator (staff users).
type RequestFilter struct {
	Status    string
	Search    string
	CreatedBy *uuid.UUID
	Page      int
	Limit     int
}

// RequestRepository defines data access for purchase requests and approvals
type RequestRepository interface {
	Create(ctx context.Context, req *model.PurchaseRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]model.PurchaseRequest, int64, error)
	Save(ctx context.Context, req *model.PurchaseRequest) error
	UpsertApproval(ctx context.Context, approval *model.Approval) error
	LoadApprovals(ctx context.Context, req *model.PurchaseRequest) error
}

type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository returns a new instance of RequestRepository
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

// orderedApprovals preloads approvals the way the contract returns them:
// level first, then creation time.
func orderedApprovals(db *gorm.DB) *gorm.DB {
	return db.Order("approver_level ASC, created_at ASC")
}

func (r *requestRepository) Create(ctx context.Context, req *model.PurchaseRequest) error {
	return GetDB(ctx, r.db).Create(req).Error
}

func (r *requestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	var req model.PurchaseRequest
	err := GetDB(ctx, r.db).
		Preload("CreatedBy").
		Preload("Approvals", orderedApprovals).
		Preload("Approvals.Approver").
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetForUpdate locks the request row for the duration of the surrounding
// transaction and loads its approvals so guards can evaluate level state.
func (r *requestRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	var req model.PurchaseRequest
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	if err := r.LoadApprovals(ctx, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requestRepository) LoadApprovals(ctx context.Context, req *model.PurchaseRequest) error {
	var approvals []model.Approval
	err := orderedApprovals(GetDB(ctx, r.db)).
		Preload("Approver").
		Find(&approvals, "request_id = ?", req.ID).Error
	if err != nil {
		return err
	}
	req.Approvals = approvals
	return nil
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter) ([]model.PurchaseRequest, int64, error) {
	base := GetDB(ctx, r.db).Model(&model.PurchaseRequest{})

	if filter.Status != "" {
		base = base.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		base = base.Where("title ILIKE ? OR description ILIKE ?", pattern, pattern)
	}
	if filter.CreatedBy != nil {
		base = base.Where("created_by_id = ?", *filter.CreatedBy)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	offset := (filter.Page - 1) * filter.Limit

	var requests []model.PurchaseRequest
	err := base.
		Preload("CreatedBy").
		Preload("Approvals", orderedApprovals).
		Preload("Approvals.Approver").
		Order("created_at DESC").
		Offset(offset).
		Limit(filter.Limit).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

func (r *requestRepository) Save(ctx context.Context, req *model.PurchaseRequest) error {
	return GetDB(ctx, r.db).Save(req).Error
}

// UpsertApproval records a decision keyed on (request, approver, level).
// Acting twice overwrites the previous status and comment instead of adding
// a duplicate row.
func (r *requestRepository) UpsertApproval(ctx context.Context, approval *model.Approval) error {
	db := GetDB(ctx, r.db)

	var existing model.Approval
	err := db.First(&existing,
		"request_id = ? AND approver_id = ? AND approver_level = ?",
		approval.RequestID, approval.ApproverID, approval.ApproverLevel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Create(approval).Error
	}
	if err != nil {
		return err
	}

	existing.Status = approval.Status
	existing.Comment = approval.Comment
	if err := db.Save(&existing).Error; err != nil {
		return err
	}
	*approval = existing
	return nil
}
