package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pageflow/internal/usecases"
)

// WebhookHandler terminates the Facebook webhook endpoint: GET for the
// one-time subscription verification handshake, POST for event
// delivery.
type WebhookHandler struct {
	dispatcher  *usecases.WebhookDispatcher
	verifyToken string
	appSecret   string
	logger      *zap.Logger
}

func NewWebhookHandler(dispatcher *usecases.WebhookDispatcher, verifyToken, appSecret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		dispatcher:  dispatcher,
		verifyToken: verifyToken,
		appSecret:   appSecret,
		logger:      logger,
	}
}

// Verify answers the GET verification handshake: echo the challenge
// only when the mode is "subscribe" and the token matches.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		h.logger.Info("webhook verification succeeded")
		c.String(http.StatusOK, challenge)
		return
	}

	h.logger.Warn("webhook verification rejected", zap.String("mode", mode))
	c.JSON(http.StatusForbidden, gin.H{"error": "Invalid verification token"})
}

// Receive acknowledges an event envelope and hands it off for
// asynchronous processing. Facebook retries anything that is not a
// prompt 200, so the ack never waits on (or reports) downstream
// processing; only a bad signature, a non-JSON body, or a non-page
// object is rejected.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Warn("unreadable webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Failed to process webhook event."})
		return
	}

	if h.appSecret != "" && !h.validSignature(body, c.GetHeader("X-Hub-Signature-256")) {
		h.logger.Warn("webhook signature mismatch")
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid signature"})
		return
	}

	var envelope usecases.WebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.logger.Warn("malformed webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Failed to process webhook event."})
		return
	}

	if envelope.Object != "page" {
		h.logger.Warn("unsupported webhook object", zap.String("object", envelope.Object))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported webhook object"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})

	// Detached from the request context: processing outlives the ack.
	go h.dispatcher.ProcessEnvelope(context.Background(), &envelope)
}

// validSignature checks the X-Hub-Signature-256 header, an HMAC-SHA256
// of the raw payload keyed with the app secret.
func (h *WebhookHandler) validSignature(body []byte, header string) bool {
	provided, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(provided), []byte(expected))
}
