package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pageflow/internal/usecases"
)

type DashboardHandler struct {
	dashboard *usecases.DashboardUsecase
	logger    *zap.Logger
}

func NewDashboardHandler(dashboard *usecases.DashboardUsecase, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, logger: logger}
}

func (h *DashboardHandler) RegisterRoutes(api *gin.RouterGroup) {
	dashboard := api.Group("/dashboard")
	{
		dashboard.GET("/overview", h.Overview)
		dashboard.GET("/pages/:id/activity", h.PageActivity)
	}
}

func (h *DashboardHandler) Overview(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	overview, err := h.dashboard.Overview(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("overview query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load overview"})
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *DashboardHandler) PageActivity(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	activity, err := h.dashboard.PageActivity(c.Request.Context(), userID, c.Param("id"), days)
	if err != nil {
		if err.Error() == "page not found" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Page not found"})
			return
		}
		h.logger.Error("activity query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load activity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": activity})
}
