package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pageflow/internal/entities"
	"pageflow/internal/interfaces"
	"pageflow/internal/repository"
)

// InboxHandler serves the shared inbox: conversation list, message
// history and human replies. All lookups are owner-scoped; the
// unrestricted store methods are reserved for the webhook path.
type InboxHandler struct {
	convRepo *repository.ConversationRepository
	msgRepo  *repository.MessageRepository
	subRepo  *repository.SubscriberRepository
	pageRepo *repository.PageRepository
	gateway  interfaces.SendGateway
	logger   *zap.Logger
}

func NewInboxHandler(
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	subRepo *repository.SubscriberRepository,
	pageRepo *repository.PageRepository,
	gateway interfaces.SendGateway,
	logger *zap.Logger,
) *InboxHandler {
	return &InboxHandler{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		subRepo:  subRepo,
		pageRepo: pageRepo,
		gateway:  gateway,
		logger:   logger,
	}
}

func (h *InboxHandler) RegisterRoutes(api *gin.RouterGroup) {
	conversations := api.Group("/conversations")
	{
		conversations.GET("", h.List)
		conversations.GET("/:id/messages", h.Messages)
		conversations.POST("/:id/reply", h.Reply)
		conversations.POST("/:id/read", h.MarkRead)
	}
}

func (h *InboxHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	convs, err := h.convRepo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("conversation list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (h *InboxHandler) Messages(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conv, err := h.convRepo.GetForUser(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load conversation"})
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	msgs, err := h.msgRepo.ListForConversation(c.Request.Context(), conv.ID)
	if err != nil {
		h.logger.Error("message list failed", zap.String("conversation", conv.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Reply sends a text message from a human operator. The Send Gateway's
// error string is surfaced directly; a failed send stores nothing.
func (h *InboxHandler) Reply(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !ValidateLength(req.Text, 1, MaxMessageLength) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Reply text is required"})
		return
	}
	text := SanitizeString(req.Text)

	ctx := c.Request.Context()
	conv, err := h.convRepo.GetForUser(ctx, userID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load conversation"})
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	page, err := h.pageRepo.GetForUser(ctx, userID, conv.PageID)
	if err != nil || page == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Page not found"})
		return
	}
	sub, err := h.subRepo.GetByID(ctx, conv.SubscriberID)
	if err != nil || sub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscriber not found"})
		return
	}

	result := h.gateway.SendText(ctx, page.AccessToken, sub.PSID, text)
	if !result.Success {
		c.JSON(http.StatusBadGateway, gin.H{"error": result.Error})
		return
	}

	if err := h.msgRepo.InsertOutbound(ctx, &entities.Message{
		ConversationID: conv.ID,
		PageID:         page.ID,
		SubscriberID:   sub.ID,
		Direction:      entities.DirectionOutbound,
		MessageType:    "text",
		Content:        text,
		FBMessageID:    result.MessageID,
		Status:         entities.MessageStatusSent,
		SentBy:         entities.SentByHuman,
	}); err != nil {
		h.logger.Error("reply insert failed", zap.String("conversation", conv.ID), zap.Error(err))
	}

	// Answering a conversation marks it read.
	if err := h.convRepo.ResetUnread(ctx, conv.ID, text); err != nil {
		h.logger.Error("conversation update failed", zap.String("conversation", conv.ID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"status": "sent", "fb_message_id": result.MessageID})
}

func (h *InboxHandler) MarkRead(c *gin.Context) {
	userID := getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conv, err := h.convRepo.GetForUser(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load conversation"})
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	if err := h.convRepo.MarkRead(c.Request.Context(), conv.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}
