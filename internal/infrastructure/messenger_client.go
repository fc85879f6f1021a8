package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"pageflow/internal/entities"
	"pageflow/internal/interfaces"
)

// MessengerClient talks to the Facebook Graph API: the Send API, the
// user profile endpoint and the messenger profile (Get Started button,
// greeting, persistent menu). Every call has its own bounded timeout so
// a slow provider can never stall webhook acknowledgement.
type MessengerClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewMessengerClient(baseURL string, logger *zap.Logger) *MessengerClient {
	return &MessengerClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (m *MessengerClient) SendText(ctx context.Context, accessToken, recipientID, text string) interfaces.SendResult {
	return m.sendRaw(ctx, accessToken, map[string]interface{}{
		"recipient":      map[string]string{"id": recipientID},
		"messaging_type": "RESPONSE",
		"message":        map[string]interface{}{"text": text},
	})
}

func (m *MessengerClient) SendQuickReplies(ctx context.Context, accessToken, recipientID, text string, quickReplies []entities.QuickReply) interfaces.SendResult {
	return m.sendRaw(ctx, accessToken, map[string]interface{}{
		"recipient":      map[string]string{"id": recipientID},
		"messaging_type": "RESPONSE",
		"message": map[string]interface{}{
			"text":          text,
			"quick_replies": quickReplies,
		},
	})
}

func (m *MessengerClient) SendButtonTemplate(ctx context.Context, accessToken, recipientID, text string, buttons []entities.Button) interfaces.SendResult {
	return m.sendRaw(ctx, accessToken, map[string]interface{}{
		"recipient":      map[string]string{"id": recipientID},
		"messaging_type": "RESPONSE",
		"message": map[string]interface{}{
			"attachment": map[string]interface{}{
				"type": "template",
				"payload": map[string]interface{}{
					"template_type": "button",
					"text":          text,
					"buttons":       buttons,
				},
			},
		},
	})
}

func (m *MessengerClient) SendGenericTemplate(ctx context.Context, accessToken, recipientID string, elements []entities.GenericElement) interfaces.SendResult {
	return m.sendRaw(ctx, accessToken, map[string]interface{}{
		"recipient":      map[string]string{"id": recipientID},
		"messaging_type": "RESPONSE",
		"message": map[string]interface{}{
			"attachment": map[string]interface{}{
				"type": "template",
				"payload": map[string]interface{}{
					"template_type": "generic",
					"elements":      elements,
				},
			},
		},
	})
}

// SendSenderAction sends typing_on, typing_off or mark_seen.
func (m *MessengerClient) SendSenderAction(ctx context.Context, accessToken, recipientID, action string) interfaces.SendResult {
	return m.sendRaw(ctx, accessToken, map[string]interface{}{
		"recipient":     map[string]string{"id": recipientID},
		"sender_action": action,
	})
}

// FetchProfile gets a subscriber's display profile. Best-effort: any
// failure returns (nil, nil) because missing profile data must never
// abort event processing.
func (m *MessengerClient) FetchProfile(ctx context.Context, accessToken, psid string) (*entities.SubscriberProfile, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=first_name,last_name,profile_pic,locale,gender&access_token=%s",
		m.baseURL, psid, url.QueryEscape(accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Warn("profile fetch failed", zap.String("psid", psid), zap.Error(err))
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		m.logger.Warn("profile fetch rejected", zap.String("psid", psid), zap.Int("status", resp.StatusCode))
		return nil, nil
	}

	var profile entities.SubscriberProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, nil
	}
	return &profile, nil
}

// SetGetStartedButton configures the Get Started postback payload.
func (m *MessengerClient) SetGetStartedButton(ctx context.Context, accessToken, payload string) error {
	if payload == "" {
		payload = entities.GetStartedPayload
	}
	return m.setMessengerProfile(ctx, accessToken, map[string]interface{}{
		"get_started": map[string]string{"payload": payload},
	})
}

// SetGreetingText sets the greeting shown to new subscribers.
func (m *MessengerClient) SetGreetingText(ctx context.Context, accessToken, text string) error {
	return m.setMessengerProfile(ctx, accessToken, map[string]interface{}{
		"greeting": []map[string]string{{"locale": "default", "text": text}},
	})
}

// SetPersistentMenu sets the page's persistent menu buttons.
func (m *MessengerClient) SetPersistentMenu(ctx context.Context, accessToken string, buttons []entities.Button) error {
	return m.setMessengerProfile(ctx, accessToken, map[string]interface{}{
		"persistent_menu": []map[string]interface{}{
			{
				"locale":                  "default",
				"composer_input_disabled": false,
				"call_to_actions":         buttons,
			},
		},
	})
}

type graphResponse struct {
	MessageID string `json:"message_id"`
	Result    string `json:"result"`
	Error     *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (m *MessengerClient) sendRaw(ctx context.Context, accessToken string, body map[string]interface{}) interfaces.SendResult {
	data, err := json.Marshal(body)
	if err != nil {
		return interfaces.SendResult{Error: "invalid message payload"}
	}

	endpoint := fmt.Sprintf("%s/me/messages?access_token=%s", m.baseURL, url.QueryEscape(accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return interfaces.SendResult{Error: "invalid request"}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Warn("send api network failure", zap.Error(err))
		return interfaces.SendResult{Error: "network error"}
	}
	defer resp.Body.Close()

	var parsed graphResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		m.logger.Warn("send api unparseable response", zap.Int("status", resp.StatusCode), zap.Error(err))
		return interfaces.SendResult{Error: "invalid provider response"}
	}

	if parsed.Error != nil {
		m.logger.Warn("send api error",
			zap.String("message", parsed.Error.Message),
			zap.Int("code", parsed.Error.Code))
		return interfaces.SendResult{Error: parsed.Error.Message}
	}

	// Some failures come back without an error object in the body.
	if resp.StatusCode >= 300 {
		m.logger.Warn("send api rejected", zap.Int("status", resp.StatusCode))
		return interfaces.SendResult{Error: fmt.Sprintf("send api returned status %d", resp.StatusCode)}
	}

	return interfaces.SendResult{Success: true, MessageID: parsed.MessageID}
}

func (m *MessengerClient) setMessengerProfile(ctx context.Context, accessToken string, profile map[string]interface{}) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/me/messenger_profile?access_token=%s", m.baseURL, url.QueryEscape(accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var parsed graphResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return err
	}
	if parsed.Error != nil {
		return fmt.Errorf("messenger profile: %s", parsed.Error.Message)
	}
	return nil
}
