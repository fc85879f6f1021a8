package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pageflow/internal/entities"
	"pageflow/internal/repository"
)

// FlowHandler manages automation flows and their steps. Step
// configuration is validated here, at save time, so the executor only
// ever sees well-formed steps.
type FlowHandler struct {
	flowRepo *repository.FlowRepository
	pageRepo *repository.PageRepository
	logger   *zap.Logger
}

func NewFlowHandler(flowRepo *repository.FlowRepository, pageRepo *repository.PageRepository, logger *zap.Logger) *FlowHandler {
	return &FlowHandler{
		flowRepo: flowRepo,
		pageRepo: pageRepo,
		logger:   logger,
	}
}

func (h *FlowHandler) RegisterRoutes(api *gin.RouterGroup) {
	flows := api.Group("/flows")
	{
		flows.GET("", h.List)
		flows.POST("", h.Create)
		flows.PUT("/:id/activate", h.SetActive)
		flows.DELETE("/:id", h.Delete)
		flows.POST("/:id/steps", h.AddStep)
		flows.DELETE("/:id/steps/:stepId", h.DeleteStep)
	}
}

func (h *FlowHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	flows, err := h.flowRepo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("flow list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list flows"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flows": flows})
}

func (h *FlowHandler) Create(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		PageID       string `json:"page_id"`
		Name         string `json:"name"`
		TriggerType  string `json:"trigger_type"`
		TriggerValue string `json:"trigger_value"`
		Description  string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !ValidateLength(req.Name, 1, MaxFlowNameLength) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Flow name is required"})
		return
	}
	switch req.TriggerType {
	case entities.TriggerKeyword:
		if !ValidateLength(req.TriggerValue, 1, MaxTriggerValueLength) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Keyword flows require a trigger value"})
			return
		}
	case entities.TriggerGetStarted, entities.TriggerDefaultReply:
		// No trigger value.
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown trigger type"})
		return
	}

	// Verify page ownership
	page, err := h.pageRepo.GetForUser(c.Request.Context(), userID, req.PageID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load page"})
		return
	}
	if page == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Page not found"})
		return
	}

	flow := &entities.Flow{
		PageID:       page.ID,
		UserID:       userID,
		Name:         SanitizeString(req.Name),
		TriggerType:  req.TriggerType,
		TriggerValue: req.TriggerValue,
		IsActive:     false, // flows start inactive until the user flips them on
		Description:  SanitizeString(req.Description),
	}
	if err := h.flowRepo.Create(c.Request.Context(), flow); err != nil {
		h.logger.Error("flow create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create flow"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"flow": flow})
}

func (h *FlowHandler) SetActive(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	updated, err := h.flowRepo.SetActive(c.Request.Context(), userID, c.Param("id"), req.IsActive)
	if err != nil {
		h.logger.Error("flow toggle failed", zap.String("flow", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update flow"})
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "Flow not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *FlowHandler) Delete(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	deleted, err := h.flowRepo.Delete(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.logger.Error("flow delete failed", zap.String("flow", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete flow"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Flow not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *FlowHandler) AddStep(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		StepType  string              `json:"step_type"`
		StepOrder int                 `json:"step_order"`
		Config    entities.StepConfig `json:"config"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	step := &entities.FlowStep{
		FlowID:    c.Param("id"),
		StepOrder: req.StepOrder,
		StepType:  req.StepType,
		Config:    req.Config,
	}
	if err := step.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	added, err := h.flowRepo.AddStep(c.Request.Context(), userID, step)
	if err != nil {
		h.logger.Error("step add failed", zap.String("flow", step.FlowID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add step"})
		return
	}
	if !added {
		c.JSON(http.StatusNotFound, gin.H{"error": "Flow not found"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"step": step})
}

func (h *FlowHandler) DeleteStep(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	deleted, err := h.flowRepo.DeleteStep(c.Request.Context(), userID, c.Param("stepId"))
	if err != nil {
		h.logger.Error("step delete failed", zap.String("step", c.Param("stepId")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete step"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Step not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
