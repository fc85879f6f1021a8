package entities

import "time"

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message senders.
const (
	SentBySubscriber = "subscriber"
	SentByHuman      = "human"
	SentByBot        = "bot"
)

// Message send statuses. Inbound messages are always "sent"; outbound
// messages are "failed" when the Send API rejected the call.
const (
	MessageStatusSent   = "sent"
	MessageStatusFailed = "failed"
)

// Message is one append-only entry in a conversation's history. Only the
// delivered/read timestamps are ever backfilled, matched by FBMessageID
// from delivery/read receipt events.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	PageID         string     `json:"page_id"`
	SubscriberID   string     `json:"subscriber_id"`
	Direction      string     `json:"direction"`
	MessageType    string     `json:"message_type"` // text, quick_reply, postback, image, ...
	Content        string     `json:"content"`
	Payload        []byte     `json:"payload,omitempty"` // raw JSON: attachments, quick reply, postback metadata
	FBMessageID    string     `json:"fb_message_id,omitempty"`
	Status         string     `json:"status"`
	SentBy         string     `json:"sent_by"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
