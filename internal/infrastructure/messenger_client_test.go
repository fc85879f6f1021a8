package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pageflow/internal/entities"
)

func TestSendTextSuccess(t *testing.T) {
	var gotPath, gotToken string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]string{
			"recipient_id": "psid-1",
			"message_id":   "mid.abc123",
		})
	}))
	defer server.Close()

	client := NewMessengerClient(server.URL, zap.NewNop())
	result := client.SendText(context.Background(), "page-token", "psid-1", "hello")

	assert.True(t, result.Success)
	assert.Equal(t, "mid.abc123", result.MessageID)
	assert.Equal(t, "/me/messages", gotPath)
	assert.Equal(t, "page-token", gotToken)

	recipient := gotBody["recipient"].(map[string]interface{})
	assert.Equal(t, "psid-1", recipient["id"])
	message := gotBody["message"].(map[string]interface{})
	assert.Equal(t, "hello", message["text"])
	assert.Equal(t, "RESPONSE", gotBody["messaging_type"])
}

func TestSendTextProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"message": "(#551) This person isn't available right now.",
				"code":    551,
			},
		})
	}))
	defer server.Close()

	client := NewMessengerClient(server.URL, zap.NewNop())
	result := client.SendText(context.Background(), "page-token", "psid-1", "hello")

	assert.False(t, result.Success)
	assert.Equal(t, "(#551) This person isn't available right now.", result.Error)
	assert.Empty(t, result.MessageID)
}

func TestSendTextRejectedWithoutErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	client := NewMessengerClient(server.URL, zap.NewNop())
	result := client.SendText(context.Background(), "page-token", "psid-1", "hello")

	assert.False(t, result.Success)
	assert.Equal(t, "send api returned status 500", result.Error)
}

func TestSendTextNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // refuse connections

	client := NewMessengerClient(server.URL, zap.NewNop())
	result := client.SendText(context.Background(), "page-token", "psid-1", "hello")

	assert.False(t, result.Success)
	assert.Equal(t, "network error", result.Error)
}

func TestSendButtonTemplateWireFormat(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"message_id": "mid.1"})
	}))
	defer server.Close()

	client := NewMessengerClient(server.URL, zap.NewNop())
	result := client.SendButtonTemplate(context.Background(), "tok", "psid-1", "Pick one", []entities.Button{
		{Type: "postback", Title: "Hours", Payload: "HOURS"},
	})
	require.True(t, result.Success)

	message := gotBody["message"].(map[string]interface{})
	attachment := message["attachment"].(map[string]interface{})
	assert.Equal(t, "template", attachment["type"])
	payload := attachment["payload"].(map[string]interface{})
	assert.Equal(t, "button", payload["template_type"])
	assert.Equal(t, "Pick one", payload["text"])
}

func TestFetchProfileSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/psid-1", r.URL.Path)
		assert.Equal(t, "first_name,last_name,profile_pic,locale,gender", r.URL.Query().Get("fields"))
		json.NewEncoder(w).Encode(map[string]string{
			"first_name": "Ada",
			"last_name":  "Lovelace",
			"locale":     "en_GB",
		})
	}))
	defer server.Close()

	client := NewMessengerClient(server.URL, zap.NewNop())
	profile, err := client.FetchProfile(context.Background(), "tok", "psid-1")

	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Ada", profile.FirstName)
	assert.Equal(t, "en_GB", profile.Locale)
}

func TestFetchProfileFailureIsNonFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewMessengerClient(server.URL, zap.NewNop())
	profile, err := client.FetchProfile(context.Background(), "tok", "psid-1")

	assert.NoError(t, err)
	assert.Nil(t, profile)
}

func TestSetGetStartedButtonDefaultsPayload(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/messenger_profile", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"result": "success"})
	}))
	defer server.Close()

	client := NewMessengerClient(server.URL, zap.NewNop())
	require.NoError(t, client.SetGetStartedButton(context.Background(), "tok", ""))

	getStarted := gotBody["get_started"].(map[string]interface{})
	assert.Equal(t, entities.GetStartedPayload, getStarted["payload"])
}
