package interfaces

import (
	"context"
	"time"

	"pageflow/internal/entities"
)

// SendResult is the outcome of one Send API call. Failures are reported
// here, never as a panic or an error that could abort sibling event
// processing; callers decide whether a failed send is fatal.
type SendResult struct {
	Success   bool
	MessageID string // provider message id, correlates delivery/read receipts
	Error     string
}

// SendGateway wraps the Messenger Send API.
type SendGateway interface {
	SendText(ctx context.Context, accessToken, recipientID, text string) SendResult
	SendQuickReplies(ctx context.Context, accessToken, recipientID, text string, quickReplies []entities.QuickReply) SendResult
	SendButtonTemplate(ctx context.Context, accessToken, recipientID, text string, buttons []entities.Button) SendResult
	SendGenericTemplate(ctx context.Context, accessToken, recipientID string, elements []entities.GenericElement) SendResult
	SendSenderAction(ctx context.Context, accessToken, recipientID, action string) SendResult
}

// ProfileFetcher retrieves a subscriber's display profile on first
// contact. A nil profile with nil error means "not available".
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, accessToken, psid string) (*entities.SubscriberProfile, error)
}

// PageStore resolves external page ids to connected Page records.
type PageStore interface {
	GetByPageID(ctx context.Context, externalPageID string) (*entities.Page, error)
}

// SubscriberStore persists subscribers. Insert must resolve a unique
// constraint conflict by returning the already-existing row.
type SubscriberStore interface {
	GetByPSID(ctx context.Context, pageID, psid string) (*entities.Subscriber, error)
	Insert(ctx context.Context, sub *entities.Subscriber) (*entities.Subscriber, error)
	TouchLastInteraction(ctx context.Context, id string) error
	AddTag(ctx context.Context, id, tag string) error
}

// ConversationStore persists conversations. RecordInbound and
// RecordOutbound update last-message bookkeeping atomically at the
// storage layer; only RecordInbound increments the unread counter.
type ConversationStore interface {
	GetByPageAndSubscriber(ctx context.Context, pageID, subscriberID string) (*entities.Conversation, error)
	Insert(ctx context.Context, conv *entities.Conversation) (*entities.Conversation, error)
	RecordInbound(ctx context.Context, id, preview string, incrementUnread bool) error
	RecordOutbound(ctx context.Context, id, preview string) error
}

// MessageStore persists message history. InsertInbound reports whether
// a row was actually created; a duplicate provider message id is a
// no-op with inserted=false so redelivered webhooks never re-trigger
// flows.
type MessageStore interface {
	InsertInbound(ctx context.Context, msg *entities.Message) (inserted bool, err error)
	InsertOutbound(ctx context.Context, msg *entities.Message) error
	MarkDelivered(ctx context.Context, pageID string, fbMessageIDs []string) error
	MarkReadUpTo(ctx context.Context, pageID string, watermark time.Time) error
}

// FlowStore reads a page's active flows, steps included, ordered by
// creation time.
type FlowStore interface {
	ActiveFlows(ctx context.Context, pageID string) ([]entities.Flow, error)
}
