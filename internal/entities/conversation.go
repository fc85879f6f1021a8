package entities

import "time"

// Conversation statuses.
const (
	ConversationOpen   = "open"
	ConversationClosed = "closed"
)

// Conversation is the message thread between a Page and a Subscriber.
// One row per (page, subscriber) pair.
type Conversation struct {
	ID                 string    `json:"id"`
	PageID             string    `json:"page_id"`
	SubscriberID       string    `json:"subscriber_id"`
	Status             string    `json:"status"`
	LastMessageAt      time.Time `json:"last_message_at"`
	LastMessagePreview string    `json:"last_message_preview"`
	UnreadCount        int       `json:"unread_count"`
}
