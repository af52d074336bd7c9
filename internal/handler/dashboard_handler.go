package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	dashboardService service.DashboardService
}

func NewDashboardHandler(dashboardService service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

func (h *DashboardHandler) RegisterRoutes(router *gin.RouterGroup) {
	dashboard := router.Group("/api/dashboard")
	dashboard.Use(middleware.RequireAuth())
	{
		dashboard.GET("/summary/", h.GetSummary)
	}
}

// GetSummary handles GET /api/dashboard/summary/
// @Summary      Dashboard summary
// @Description  Returns request counts and amount totals per status plus a monthly series, scoped like list endpoints
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.DashboardSummary}
// @Router       /api/dashboard/summary/ [get]
func (h *DashboardHandler) GetSummary(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	summary, err := h.dashboardService.GetSummary(c.Request.Context(), actor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to compute dashboard summary"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}
