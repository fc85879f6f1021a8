package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"pageflow/internal/usecases"
)

func webhookRouter(t *testing.T, appSecret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dispatcher := usecases.NewWebhookDispatcher(nil, nil, nil, nil, nil, nil, nil, nil, zap.NewNop())
	handler := NewWebhookHandler(dispatcher, "secret-verify-token", appSecret, zap.NewNop())

	r := gin.New()
	r.GET("/webhook/meta", handler.Verify)
	r.POST("/webhook/meta", handler.Receive)
	return r
}

func signBody(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookVerifyEchoesChallenge(t *testing.T) {
	r := webhookRouter(t, "")

	query := url.Values{
		"hub.mode":         {"subscribe"},
		"hub.verify_token": {"secret-verify-token"},
		"hub.challenge":    {"1158201444"},
	}
	req := httptest.NewRequest(http.MethodGet, "/webhook/meta?"+query.Encode(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1158201444", w.Body.String())
}

func TestWebhookVerifyRejectsBadToken(t *testing.T) {
	r := webhookRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/webhook/meta?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=123", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWebhookVerifyRejectsMissingMode(t *testing.T) {
	r := webhookRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/webhook/meta?hub.verify_token=secret-verify-token&hub.challenge=123", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWebhookReceiveAcksValidEnvelope(t *testing.T) {
	r := webhookRouter(t, "")

	body := `{"object":"page","entry":[]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/meta", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"received"}`, w.Body.String())
}

func TestWebhookReceiveRejectsMalformedJSON(t *testing.T) {
	r := webhookRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/webhook/meta", strings.NewReader("this is not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookReceiveRejectsNonPageObject(t *testing.T) {
	r := webhookRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/webhook/meta", strings.NewReader(`{"object":"instagram","entry":[]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Unsupported webhook object")
}

func TestWebhookReceiveAcceptsValidSignature(t *testing.T) {
	r := webhookRouter(t, "app-secret")

	body := `{"object":"page","entry":[]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/meta", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", signBody("app-secret", body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"received"}`, w.Body.String())
}

func TestWebhookReceiveRejectsBadSignature(t *testing.T) {
	r := webhookRouter(t, "app-secret")

	body := `{"object":"page","entry":[]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/meta", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", signBody("wrong-secret", body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid signature")
}

func TestWebhookReceiveRejectsMissingSignature(t *testing.T) {
	r := webhookRouter(t, "app-secret")

	req := httptest.NewRequest(http.MethodPost, "/webhook/meta", strings.NewReader(`{"object":"page","entry":[]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
