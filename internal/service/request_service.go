package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/document"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/storage"
	"backend/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrRequestNotFound covers both unknown ids and requests outside the
// caller's visibility scope, so staff users cannot probe other creators'
// requests by id.
var ErrRequestNotFound = errors.New("purchase request not found")

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// --- DTOs ---

type CreateRequestInput struct {
	Title        string
	Description  string
	Amount       decimal.Decimal
	ProformaPath string // relative media path, saved by the handler
}

type UpdateRequestInput struct {
	Title        *string
	Description  *string
	Amount       *decimal.Decimal
	ProformaPath string // optional replacement proforma
}

type RequestFilterInput struct {
	Status string
	Search string
	Page   int
	Limit  int
}

type ApprovalResponse struct {
	ID            string `json:"id"`
	ApproverID    string `json:"approver_id"`
	ApproverName  string `json:"approver_name"`
	ApproverLevel int    `json:"approver_level"`
	Status        string `json:"status"`
	Comment       string `json:"comment"`
	CreatedAt     string `json:"created_at"`
}

type RequestResponse struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Amount            string             `json:"amount"`
	Status            string             `json:"status"`
	CreatedBy         string             `json:"created_by"`
	CreatedByName     string             `json:"created_by_name"`
	User              *UserResponse      `json:"user,omitempty"`
	CreatedAt         string             `json:"created_at"`
	UpdatedAt         string             `json:"updated_at"`
	Proforma          *string            `json:"proforma"`
	PurchaseOrder     *string            `json:"purchase_order"`
	Receipt           *string            `json:"receipt"`
	DocumentMetadata  json.RawMessage    `json:"document_metadata"`
	ReceiptValidation json.RawMessage    `json:"receipt_validation"`
	POGeneratedAt     *string            `json:"po_generated_at"`
	Approvals         []ApprovalResponse `json:"approvals"`
	Permissions       model.Permissions  `json:"permissions"`
}

// --- Interface ---

type RequestService interface {
	Create(ctx context.Context, actor Actor, input CreateRequestInput) (*RequestResponse, error)
	List(ctx context.Context, actor Actor, filter RequestFilterInput) ([]RequestResponse, int64, error)
	Get(ctx context.Context, actor Actor, id string) (*RequestResponse, error)
	Update(ctx context.Context, actor Actor, id string, input UpdateRequestInput) (*RequestResponse, error)
	Approve(ctx context.Context, actor Actor, id string, comment string) (*RequestResponse, error)
	Reject(ctx context.Context, actor Actor, id string, comment string) (*RequestResponse, error)
	SubmitReceipt(ctx context.Context, actor Actor, id string, receiptPath string) (*RequestResponse, error)
}

type requestService struct {
	repo     repository.RequestRepository
	audit    repository.AuditRepository
	tx       repository.TransactionManager
	store    *storage.Storage
	enricher *document.Enricher // nil when no API key is configured
	hub      *websocket.Hub     // nil in tests that skip realtime
}

func NewRequestService(
	repo repository.RequestRepository,
	audit repository.AuditRepository,
	tx repository.TransactionManager,
	store *storage.Storage,
	enricher *document.Enricher,
	hub *websocket.Hub,
) RequestService {
	return &requestService{
		repo:     repo,
		audit:    audit,
		tx:       tx,
		store:    store,
		enricher: enricher,
		hub:      hub,
	}
}

// --- Implementation ---

func (s *requestService) Create(ctx context.Context, actor Actor, input CreateRequestInput) (*RequestResponse, error) {
	if !model.CanCreateRequest(actor.Role) {
		return nil, model.ErrCreationNotAllowed
	}
	if input.ProformaPath == "" {
		return nil, errors.New("a proforma document is required")
	}
	if input.Amount.IsNegative() {
		return nil, errors.New("amount must be non-negative")
	}

	meta := s.extractMetadata(ctx, input.ProformaPath, input.Title, input.Amount)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document metadata: %w", err)
	}

	request := &model.PurchaseRequest{
		Title:            input.Title,
		Description:      input.Description,
		Amount:           input.Amount,
		Status:           model.StatusPending,
		CreatedByID:      actor.ID,
		ProformaPath:     input.ProformaPath,
		DocumentMetadata: metaJSON,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.repo.Create(txCtx, request); createErr != nil {
			return fmt.Errorf("failed to create purchase request: %w", createErr)
		}
		return s.writeAudit(txCtx, actor.ID, model.ActionCreateRequest, request, map[string]interface{}{
			"title":  request.Title,
			"amount": request.Amount.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(websocket.EventRequestCreated, request, actor)
	return s.reload(ctx, actor, request.ID)
}

func (s *requestService) List(ctx context.Context, actor Actor, filter RequestFilterInput) ([]RequestResponse, int64, error) {
	repoFilter := repository.RequestFilter{
		Status: filter.Status,
		Search: filter.Search,
		Page:   filter.Page,
		Limit:  filter.Limit,
	}
	if !model.CanSeeAllRequests(actor.Role) {
		id := actor.ID
		repoFilter.CreatedBy = &id
	}

	requests, total, err := s.repo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch purchase requests: %w", err)
	}

	result := make([]RequestResponse, 0, len(requests))
	for i := range requests {
		result = append(result, toRequestResponse(&requests[i], actor))
	}
	return result, total, nil
}

func (s *requestService) Get(ctx context.Context, actor Actor, id string) (*RequestResponse, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrRequestNotFound
	}
	return s.reload(ctx, actor, requestID)
}

func (s *requestService) Update(ctx context.Context, actor Actor, id string, input UpdateRequestInput) (*RequestResponse, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrRequestNotFound
	}

	var request *model.PurchaseRequest
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		request, err = s.loadScoped(txCtx, actor, requestID)
		if err != nil {
			return err
		}
		if !request.CanEdit(actor.ID) {
			return model.ErrNotEditable
		}

		if input.Title != nil {
			request.Title = *input.Title
		}
		if input.Description != nil {
			request.Description = *input.Description
		}
		if input.Amount != nil {
			if input.Amount.IsNegative() {
				return errors.New("amount must be non-negative")
			}
			request.Amount = *input.Amount
		}
		if input.ProformaPath != "" {
			request.ProformaPath = input.ProformaPath
		}

		// Re-extract when the proforma or the fields it falls back to changed
		meta := s.extractMetadata(txCtx, request.ProformaPath, request.Title, request.Amount)
		metaJSON, marshalErr := json.Marshal(meta)
		if marshalErr != nil {
			return fmt.Errorf("failed to encode document metadata: %w", marshalErr)
		}
		request.DocumentMetadata = metaJSON
		request.UpdatedByID = &actor.ID

		if saveErr := s.repo.Save(txCtx, request); saveErr != nil {
			return fmt.Errorf("failed to update purchase request: %w", saveErr)
		}
		return s.writeAudit(txCtx, actor.ID, model.ActionUpdateRequest, request, map[string]interface{}{
			"title":  request.Title,
			"amount": request.Amount.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(websocket.EventRequestUpdated, request, actor)
	return s.reload(ctx, actor, requestID)
}

func (s *requestService) Approve(ctx context.Context, actor Actor, id string, comment string) (*RequestResponse, error) {
	level, err := model.ApproverLevel(actor.Role)
	if err != nil {
		return nil, err
	}
	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrRequestNotFound
	}

	var request *model.PurchaseRequest
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		request, err = s.repo.GetForUpdate(txCtx, requestID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		if err != nil {
			return err
		}

		if guardErr := request.EnsureCanDecide(level, model.StatusApproved); guardErr != nil {
			return guardErr
		}

		approval := &model.Approval{
			RequestID:     request.ID,
			ApproverID:    actor.ID,
			ApproverLevel: level,
			Status:        model.StatusApproved,
			Comment:       comment,
		}
		if upsertErr := s.repo.UpsertApproval(txCtx, approval); upsertErr != nil {
			return fmt.Errorf("failed to record approval: %w", upsertErr)
		}
		request.LastApprovedByID = &actor.ID

		if reloadErr := s.repo.LoadApprovals(txCtx, request); reloadErr != nil {
			return fmt.Errorf("failed to reload approvals: %w", reloadErr)
		}

		if request.AllLevelsApproved() {
			request.Status = model.StatusApproved
			if poErr := s.generatePurchaseOrder(txCtx, actor, request); poErr != nil {
				return poErr
			}
		}

		if saveErr := s.repo.Save(txCtx, request); saveErr != nil {
			return fmt.Errorf("failed to update purchase request: %w", saveErr)
		}
		return s.writeAudit(txCtx, actor.ID, model.ActionApproveRequest, request, map[string]interface{}{
			"approver_level": level,
			"comment":        comment,
		})
	})
	if err != nil {
		return nil, err
	}

	event := websocket.EventRequestUpdated
	if request.Status == model.StatusApproved {
		event = websocket.EventRequestApproved
	}
	s.publish(event, request, actor)
	return s.reload(ctx, actor, requestID)
}

func (s *requestService) Reject(ctx context.Context, actor Actor, id string, comment string) (*RequestResponse, error) {
	level, err := model.ApproverLevel(actor.Role)
	if err != nil {
		return nil, err
	}
	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrRequestNotFound
	}

	var request *model.PurchaseRequest
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		request, err = s.repo.GetForUpdate(txCtx, requestID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		if err != nil {
			return err
		}

		if guardErr := request.EnsureCanDecide(level, model.StatusRejected); guardErr != nil {
			return guardErr
		}

		approval := &model.Approval{
			RequestID:     request.ID,
			ApproverID:    actor.ID,
			ApproverLevel: level,
			Status:        model.StatusRejected,
			Comment:       comment,
		}
		if upsertErr := s.repo.UpsertApproval(txCtx, approval); upsertErr != nil {
			return fmt.Errorf("failed to record rejection: %w", upsertErr)
		}

		request.Status = model.StatusRejected
		if saveErr := s.repo.Save(txCtx, request); saveErr != nil {
			return fmt.Errorf("failed to update purchase request: %w", saveErr)
		}
		return s.writeAudit(txCtx, actor.ID, model.ActionRejectRequest, request, map[string]interface{}{
			"approver_level": level,
			"comment":        comment,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(websocket.EventRequestRejected, request, actor)
	return s.reload(ctx, actor, requestID)
}

func (s *requestService) SubmitReceipt(ctx context.Context, actor Actor, id string, receiptPath string) (*RequestResponse, error) {
	requestID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrRequestNotFound
	}
	if receiptPath == "" {
		return nil, errors.New("a receipt document is required")
	}

	var request *model.PurchaseRequest
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		request, err = s.repo.GetForUpdate(txCtx, requestID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		if err != nil {
			return err
		}

		if guardErr := request.EnsureCanSubmitReceipt(actor.ID); guardErr != nil {
			return guardErr
		}

		request.ReceiptPath = receiptPath

		meta := decodeMetadata(request.DocumentMetadata)
		receiptText := document.ExtractText(s.store.AbsPath(receiptPath))
		validation := document.ValidateReceipt(meta, request.Amount.InexactFloat64(), receiptText, time.Now())
		validationJSON, marshalErr := json.Marshal(validation)
		if marshalErr != nil {
			return fmt.Errorf("failed to encode receipt validation: %w", marshalErr)
		}
		request.ReceiptValidation = validationJSON

		if saveErr := s.repo.Save(txCtx, request); saveErr != nil {
			return fmt.Errorf("failed to update purchase request: %w", saveErr)
		}
		return s.writeAudit(txCtx, actor.ID, model.ActionSubmitReceipt, request, map[string]interface{}{
			"is_valid":      validation.IsValid,
			"discrepancies": validation.Discrepancies,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(websocket.EventReceiptSubmitted, request, actor)
	return s.reload(ctx, actor, requestID)
}

// --- Helpers ---

// extractMetadata runs the heuristic parser over the proforma text and lets
// the optional enricher fill remaining gaps.
func (s *requestService) extractMetadata(ctx context.Context, proformaPath, title string, amount decimal.Decimal) document.Metadata {
	text := document.ExtractText(s.store.AbsPath(proformaPath))
	meta := document.ParseProforma(text, title, amount.InexactFloat64())
	if s.enricher != nil {
		meta = s.enricher.Enrich(ctx, text, meta)
	}
	return meta
}

// generatePurchaseOrder renders the PO document for a fully approved request
// and folds its metadata into document_metadata.
func (s *requestService) generatePurchaseOrder(ctx context.Context, actor Actor, request *model.PurchaseRequest) error {
	now := time.Now()
	meta := decodeMetadata(request.DocumentMetadata)

	relPath := storage.DirPurchaseOrders + "/" + document.PONumber(request.ID, now) + ".pdf"
	poMeta, err := document.GeneratePurchaseOrder(
		request.ID,
		request.Description,
		request.Amount.InexactFloat64(),
		meta,
		s.store.AbsPath(relPath),
		now,
	)
	if err != nil {
		return err
	}

	meta.PurchaseOrder = &poMeta
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode document metadata: %w", err)
	}
	request.DocumentMetadata = metaJSON
	request.PurchaseOrderPath = relPath
	request.POGeneratedAt = &now

	return s.writeAudit(ctx, actor.ID, model.ActionGeneratePurchaseOrder, request, map[string]interface{}{
		"po_number": poMeta.PONumber,
		"total":     poMeta.Total,
		"currency":  poMeta.Currency,
	})
}

// loadScoped fetches a request and applies creator scoping for staff users.
func (s *requestService) loadScoped(ctx context.Context, actor Actor, id uuid.UUID) (*model.PurchaseRequest, error) {
	request, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	if !model.CanSeeAllRequests(actor.Role) && request.CreatedByID != actor.ID {
		return nil, ErrRequestNotFound
	}
	return request, nil
}

func (s *requestService) reload(ctx context.Context, actor Actor, id uuid.UUID) (*RequestResponse, error) {
	request, err := s.loadScoped(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	resp := toRequestResponse(request, actor)
	return &resp, nil
}

func (s *requestService) writeAudit(ctx context.Context, userID uuid.UUID, action string, request *model.PurchaseRequest, details map[string]interface{}) error {
	payload, _ := json.Marshal(details)
	entry := &model.AuditLog{
		UserID:     &userID,
		Action:     action,
		EntityID:   request.ID.String(),
		EntityName: request.Title,
		Details:    string(payload),
	}
	if err := s.audit.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *requestService) publish(event string, request *model.PurchaseRequest, actor Actor) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(websocket.Event{
		Type:      event,
		RequestID: request.ID.String(),
		Status:    request.Status,
		Actor:     actor.ID.String(),
	})
}

func decodeMetadata(raw []byte) document.Metadata {
	var meta document.Metadata
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &meta)
	}
	return meta
}

func mediaURL(rel string) *string {
	if rel == "" {
		return nil
	}
	url := storage.URL(rel)
	return &url
}

func toRequestResponse(r *model.PurchaseRequest, actor Actor) RequestResponse {
	resp := RequestResponse{
		ID:                r.ID.String(),
		Title:             r.Title,
		Description:       r.Description,
		Amount:            r.Amount.StringFixed(2),
		Status:            r.Status,
		CreatedBy:         r.CreatedByID.String(),
		CreatedAt:         r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         r.UpdatedAt.Format(time.RFC3339),
		Proforma:          mediaURL(r.ProformaPath),
		PurchaseOrder:     mediaURL(r.PurchaseOrderPath),
		Receipt:           mediaURL(r.ReceiptPath),
		DocumentMetadata:  json.RawMessage(r.DocumentMetadata),
		ReceiptValidation: json.RawMessage(r.ReceiptValidation),
		Permissions:       r.PermissionsFor(actor.ID, actor.Role),
	}

	if r.CreatedBy != nil {
		resp.CreatedByName = r.CreatedBy.Name
		user := mapUserResponse(r.CreatedBy)
		resp.User = &user
	}
	if r.POGeneratedAt != nil {
		ts := r.POGeneratedAt.Format(time.RFC3339)
		resp.POGeneratedAt = &ts
	}

	resp.Approvals = make([]ApprovalResponse, 0, len(r.Approvals))
	for _, a := range r.Approvals {
		ar := ApprovalResponse{
			ID:            a.ID.String(),
			ApproverID:    a.ApproverID.String(),
			ApproverLevel: a.ApproverLevel,
			Status:        a.Status,
			Comment:       a.Comment,
			CreatedAt:     a.CreatedAt.Format(time.RFC3339),
		}
		if a.Approver != nil {
			ar.ApproverName = a.Approver.Name
		}
		resp.Approvals = append(resp.Approvals, ar)
	}

	return resp
}
