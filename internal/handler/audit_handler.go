package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit")
	// The approval trail is visible to decision-makers and finance, not staff
	group.Use(middleware.RequireRole(model.RoleApproverL1, model.RoleApproverL2, model.RoleFinance))
	{
		group.GET("/", h.GetAuditLogs)
	}
}

// GetAuditLogs handles GET /api/audit/
// @Summary      Get audit logs
// @Description  Retrieves the paginated trail of lifecycle actions, optionally filtered by action
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        action  query     string  false  "Action filter (e.g. APPROVE_REQUEST)"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.ListData}
// @Router       /api/audit/ [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), c.Query("action"), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to retrieve audit logs: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.List(http.StatusOK, logs, total, params.Page, params.Limit))
}
