package handler

import (
	"errors"
	"net/http"
	"strings"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/internal/storage"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RequestHandler struct {
	requestService service.RequestService
	store          *storage.Storage
}

func NewRequestHandler(requestService service.RequestService, store *storage.Storage) *RequestHandler {
	return &RequestHandler{requestService: requestService, store: store}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/requests")
	requests.Use(middleware.RequireAuth())
	{
		requests.GET("/", h.ListRequests)
		requests.POST("/", h.CreateRequest)
		requests.GET("/:id/", h.GetRequest)
		requests.PUT("/:id/", h.UpdateRequest)
		requests.PATCH("/:id/approve/", h.ApproveRequest)
		requests.PATCH("/:id/reject/", h.RejectRequest)
		requests.POST("/:id/submit-receipt/", h.SubmitReceipt)
	}
}

// actorFromContext builds the service actor from the JWT claims stored by the
// auth middleware.
func actorFromContext(c *gin.Context) (service.Actor, bool) {
	idValue, _ := c.Get("userID")
	idStr, _ := idValue.(string)
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid user identity in token"))
		return service.Actor{}, false
	}
	role := c.GetString("userRole")
	return service.Actor{ID: id, Role: role}, true
}

// respondServiceError maps lifecycle guard failures onto HTTP status codes.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
	case errors.Is(err, model.ErrNotApprover),
		errors.Is(err, model.ErrNotOwner),
		errors.Is(err, model.ErrCreationNotAllowed):
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, err.Error()))
	default:
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
	}
}

type approvalActionPayload struct {
	Comment string `json:"comment"`
}

// ListRequests handles GET /api/requests/
// @Summary      List purchase requests
// @Description  Returns purchase requests visible to the caller, filtered by status and search term
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "Status filter (pending/approved/rejected)"
// @Param        search  query     string  false  "Case-insensitive match on title or description"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.ListData}
// @Router       /api/requests/ [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)

	filter := service.RequestFilterInput{
		Status: c.Query("status"),
		Search: strings.TrimSpace(c.Query("search")),
		Page:   params.Page,
		Limit:  params.Limit,
	}
	if filter.Status == "all" {
		filter.Status = ""
	}

	requests, total, err := h.requestService.List(c.Request.Context(), actor, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to fetch purchase requests"))
		return
	}

	c.JSON(http.StatusOK, response.List(http.StatusOK, requests, total, params.Page, params.Limit))
}

// CreateRequest handles POST /api/requests/ (multipart: title, description, amount, proforma)
// @Summary      Create purchase request
// @Description  Creates a pending purchase request with an attached proforma document
// @Tags         requests
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        title        formData  string  true  "Title"
// @Param        description  formData  string  true  "Description"
// @Param        amount       formData  string  true  "Amount (decimal)"
// @Param        proforma     formData  file    true  "Proforma document"
// @Success      201  {object}  response.Response{data=service.RequestResponse}
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /api/requests/ [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	description := strings.TrimSpace(c.PostForm("description"))
	if title == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "title is required"))
		return
	}

	amount, err := decimal.NewFromString(c.PostForm("amount"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "amount must be a decimal number"))
		return
	}

	file, err := c.FormFile("proforma")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "a proforma document is required"))
		return
	}
	proformaPath, err := h.store.SaveUpload(c, file, storage.DirProformas)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	result, err := h.requestService.Create(c.Request.Context(), actor, service.CreateRequestInput{
		Title:        title,
		Description:  description,
		Amount:       amount,
		ProformaPath: proformaPath,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// GetRequest handles GET /api/requests/:id/
// @Summary      Get purchase request
// @Description  Fetch a single purchase request with its ordered approvals
// @Tags         requests
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id}/ [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	result, err := h.requestService.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// UpdateRequest handles PUT /api/requests/:id/ with a JSON partial update.
// A multipart body may additionally replace the proforma document.
func (h *RequestHandler) UpdateRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var input service.UpdateRequestInput
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if title, present := c.GetPostForm("title"); present {
			input.Title = &title
		}
		if description, present := c.GetPostForm("description"); present {
			input.Description = &description
		}
		if raw, present := c.GetPostForm("amount"); present {
			amount, err := decimal.NewFromString(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "amount must be a decimal number"))
				return
			}
			input.Amount = &amount
		}
		if file, err := c.FormFile("proforma"); err == nil {
			path, saveErr := h.store.SaveUpload(c, file, storage.DirProformas)
			if saveErr != nil {
				c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, saveErr.Error()))
				return
			}
			input.ProformaPath = path
		}
	} else {
		var payload struct {
			Title       *string          `json:"title"`
			Description *string          `json:"description"`
			Amount      *decimal.Decimal `json:"amount"`
		}
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload"))
			return
		}
		input.Title = payload.Title
		input.Description = payload.Description
		input.Amount = payload.Amount
	}

	result, err := h.requestService.Update(c.Request.Context(), actor, c.Param("id"), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ApproveRequest handles PATCH /api/requests/:id/approve/
// @Summary      Approve purchase request
// @Description  Records the acting approver's level; the request becomes approved once all levels sign off
// @Tags         requests
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                 true   "Request ID"
// @Param        payload  body      approvalActionPayload  false  "Optional comment"
// @Success      200      {object}  response.Response{data=service.RequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/requests/{id}/approve/ [patch]
func (h *RequestHandler) ApproveRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var payload approvalActionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		// Allow empty body — comment is optional
		payload.Comment = ""
	}

	result, err := h.requestService.Approve(c.Request.Context(), actor, c.Param("id"), payload.Comment)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// RejectRequest handles PATCH /api/requests/:id/reject/
func (h *RequestHandler) RejectRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var payload approvalActionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		payload.Comment = ""
	}

	result, err := h.requestService.Reject(c.Request.Context(), actor, c.Param("id"), payload.Comment)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// SubmitReceipt handles POST /api/requests/:id/submit-receipt/ (multipart: receipt)
// @Summary      Submit receipt
// @Description  Attaches the proof-of-purchase receipt to an approved request and validates it against the purchase order
// @Tags         requests
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string  true  "Request ID"
// @Param        receipt  formData  file    true  "Receipt document"
// @Success      200      {object}  response.Response{data=service.RequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/requests/{id}/submit-receipt/ [post]
func (h *RequestHandler) SubmitReceipt(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	file, err := c.FormFile("receipt")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "a receipt document is required"))
		return
	}
	receiptPath, err := h.store.SaveUpload(c, file, storage.DirReceipts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	result, err := h.requestService.SubmitReceipt(c.Request.Context(), actor, c.Param("id"), receiptPath)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
