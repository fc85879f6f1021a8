package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pageflow/internal/entities"
	"pageflow/internal/infrastructure"
	"pageflow/internal/repository"
)

// PageHandler manages connected Facebook Pages.
type PageHandler struct {
	pageRepo  *repository.PageRepository
	subRepo   *repository.SubscriberRepository
	messenger *infrastructure.MessengerClient
	logger    *zap.Logger
}

func NewPageHandler(pageRepo *repository.PageRepository, subRepo *repository.SubscriberRepository, messenger *infrastructure.MessengerClient, logger *zap.Logger) *PageHandler {
	return &PageHandler{
		pageRepo:  pageRepo,
		subRepo:   subRepo,
		messenger: messenger,
		logger:    logger,
	}
}

func (h *PageHandler) RegisterRoutes(api *gin.RouterGroup) {
	pages := api.Group("/pages")
	{
		pages.GET("", h.List)
		pages.POST("", h.Connect)
		pages.GET("/:id/subscribers", h.ListSubscribers)
		pages.POST("/:id/messenger-profile", h.SetupMessengerProfile)
	}
}

func (h *PageHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	pages, err := h.pageRepo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("page list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list pages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pages": pages})
}

// Connect registers (or refreshes) a page with its access token. The
// OAuth dance that obtains the token happens elsewhere; this endpoint
// only records the result, upserting on (user, page_id).
func (h *PageHandler) Connect(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		PageID      string `json:"page_id"`
		PageName    string `json:"page_name"`
		AccessToken string `json:"access_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.PageID == "" || req.AccessToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page_id and access_token are required"})
		return
	}

	page, err := h.pageRepo.Upsert(c.Request.Context(), &entities.Page{
		UserID:      userID,
		PageID:      req.PageID,
		PageName:    SanitizeString(req.PageName),
		AccessToken: req.AccessToken,
		IsActive:    true,
	})
	if err != nil {
		h.logger.Error("page upsert failed", zap.String("page_id", req.PageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to connect page"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "connected", "page": page})
}

func (h *PageHandler) ListSubscribers(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	page, err := h.pageRepo.GetForUser(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load page"})
		return
	}
	if page == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Page not found"})
		return
	}

	subs, err := h.subRepo.ListForPage(c.Request.Context(), page.ID)
	if err != nil {
		h.logger.Error("subscriber list failed", zap.String("page", page.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list subscribers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribers": subs})
}

// SetupMessengerProfile pushes the page's Get Started button, greeting
// and persistent menu to Facebook.
func (h *PageHandler) SetupMessengerProfile(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	page, err := h.pageRepo.GetForUser(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load page"})
		return
	}
	if page == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Page not found"})
		return
	}

	var req struct {
		GetStartedPayload string            `json:"get_started_payload"`
		Greeting          string            `json:"greeting"`
		Menu              []entities.Button `json:"menu"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx := c.Request.Context()
	if err := h.messenger.SetGetStartedButton(ctx, page.AccessToken, req.GetStartedPayload); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if req.Greeting != "" {
		if err := h.messenger.SetGreetingText(ctx, page.AccessToken, req.Greeting); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
	}
	if len(req.Menu) > 0 {
		if err := h.messenger.SetPersistentMenu(ctx, page.AccessToken, req.Menu); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "configured"})
}
