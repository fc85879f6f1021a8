package usecases

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"pageflow/internal/entities"
	"pageflow/internal/interfaces"
)

// WebhookEnvelope is the body Facebook POSTs to the webhook endpoint.
type WebhookEnvelope struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// WebhookEntry groups the events of one page.
type WebhookEntry struct {
	ID        string           `json:"id"` // external page id
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
}

// MessagingEvent is one event in an entry's messaging array. Exactly
// which optional field is set decides the routing.
type MessagingEvent struct {
	Sender    Participant     `json:"sender"`
	Recipient Participant     `json:"recipient"`
	Timestamp int64           `json:"timestamp"`
	Message   *InboundMessage `json:"message,omitempty"`
	Postback  *Postback       `json:"postback,omitempty"`
	Delivery  *Delivery       `json:"delivery,omitempty"`
	Read      *ReadReceipt    `json:"read,omitempty"`
}

type Participant struct {
	ID string `json:"id"`
}

type InboundMessage struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text"`
	IsEcho      bool         `json:"is_echo"`
	QuickReply  *QuickReply  `json:"quick_reply,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type QuickReply struct {
	Payload string `json:"payload"`
}

type Attachment struct {
	Type    string `json:"type"` // image, video, audio, file, ...
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

type Postback struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

type Delivery struct {
	MIDs      []string `json:"mids"`
	Watermark int64    `json:"watermark"`
}

type ReadReceipt struct {
	Watermark int64 `json:"watermark"` // epoch millis
}

// ExecutionGuard gates flow executions so one subscriber cannot run
// overlapping flows. The zero-value nil guard disables gating.
type ExecutionGuard interface {
	TryBegin(subscriberID string) bool
	End(subscriberID string)
}

// WebhookDispatcher routes inbound webhook events: receipts update
// message timestamps, messages and postbacks run the full pipeline
// (ensure subscriber, ensure conversation, persist, match, execute).
//
// Every event is processed in isolation; one event's failure never
// aborts its siblings, and nothing here surfaces back to the HTTP
// acknowledgement.
type WebhookDispatcher struct {
	pages    interfaces.PageStore
	subs     interfaces.SubscriberStore
	convs    interfaces.ConversationStore
	msgs     interfaces.MessageStore
	flows    interfaces.FlowStore
	profiles interfaces.ProfileFetcher
	executor *FlowExecutor
	guard    ExecutionGuard
	logger   *zap.Logger

	// spawnExecution runs a matched flow as its own unit of work so
	// delay steps never stall the event loop. Tests replace it to run
	// synchronously.
	spawnExecution func(page *entities.Page, sub *entities.Subscriber, conv *entities.Conversation, flow *entities.Flow)
}

func NewWebhookDispatcher(
	pages interfaces.PageStore,
	subs interfaces.SubscriberStore,
	convs interfaces.ConversationStore,
	msgs interfaces.MessageStore,
	flows interfaces.FlowStore,
	profiles interfaces.ProfileFetcher,
	executor *FlowExecutor,
	guard ExecutionGuard,
	logger *zap.Logger,
) *WebhookDispatcher {
	d := &WebhookDispatcher{
		pages:    pages,
		subs:     subs,
		convs:    convs,
		msgs:     msgs,
		flows:    flows,
		profiles: profiles,
		executor: executor,
		guard:    guard,
		logger:   logger,
	}
	d.spawnExecution = func(page *entities.Page, sub *entities.Subscriber, conv *entities.Conversation, flow *entities.Flow) {
		// Detached from the webhook request: execution outlives the ack.
		go func() {
			if d.guard != nil {
				defer d.guard.End(sub.ID)
			}
			executor.Execute(context.Background(), page, sub, conv, flow)
		}()
	}
	return d
}

// ProcessEnvelope walks every entry and event of an acknowledged
// envelope. Events of one entry are handled in order, which keeps a
// subscriber's message history ordered; flow execution is spawned
// asynchronously per matched event.
func (d *WebhookDispatcher) ProcessEnvelope(ctx context.Context, env *WebhookEnvelope) {
	for i := range env.Entry {
		entry := &env.Entry[i]

		page, err := d.pages.GetByPageID(ctx, entry.ID)
		if err != nil {
			d.logger.Error("page lookup failed", zap.String("page_id", entry.ID), zap.Error(err))
			continue
		}
		if page == nil || !page.IsActive {
			d.logger.Debug("event for unknown or inactive page", zap.String("page_id", entry.ID))
			continue
		}

		for j := range entry.Messaging {
			d.processEvent(ctx, page, &entry.Messaging[j])
		}
	}
}

func (d *WebhookDispatcher) processEvent(ctx context.Context, page *entities.Page, event *MessagingEvent) {
	if event.Delivery != nil {
		if err := d.msgs.MarkDelivered(ctx, page.ID, event.Delivery.MIDs); err != nil {
			d.logger.Error("delivery receipt update failed", zap.String("page", page.ID), zap.Error(err))
		}
		return
	}

	if event.Read != nil {
		watermark := time.UnixMilli(event.Read.Watermark)
		if err := d.msgs.MarkReadUpTo(ctx, page.ID, watermark); err != nil {
			d.logger.Error("read receipt update failed", zap.String("page", page.ID), zap.Error(err))
		}
		return
	}

	// Echoes of our own outbound sends come back through the webhook.
	if event.Message != nil && event.Message.IsEcho {
		return
	}
	if event.Message == nil && event.Postback == nil {
		return
	}

	sub := d.ensureSubscriber(ctx, page, event.Sender.ID)
	if sub == nil {
		return
	}
	conv := d.ensureConversation(ctx, page.ID, sub.ID)
	if conv == nil {
		return
	}

	if event.Message != nil {
		d.handleMessage(ctx, page, sub, conv, event.Message)
	}
	if event.Postback != nil {
		d.handlePostback(ctx, page, sub, conv, event.Postback)
	}
}

// ensureSubscriber looks up the sender and creates them on first
// contact, fetching display profile data best-effort. Returns nil only
// on a storage failure, which aborts this event's processing.
func (d *WebhookDispatcher) ensureSubscriber(ctx context.Context, page *entities.Page, psid string) *entities.Subscriber {
	sub, err := d.subs.GetByPSID(ctx, page.ID, psid)
	if err != nil {
		d.logger.Error("subscriber lookup failed", zap.String("psid", psid), zap.Error(err))
		return nil
	}
	if sub != nil {
		if err := d.subs.TouchLastInteraction(ctx, sub.ID); err != nil {
			d.logger.Warn("subscriber timestamp bump failed", zap.String("subscriber", sub.ID), zap.Error(err))
		}
		return sub
	}

	fresh := &entities.Subscriber{PageID: page.ID, PSID: psid}
	if profile, _ := d.profiles.FetchProfile(ctx, page.AccessToken, psid); profile != nil {
		fresh.FirstName = profile.FirstName
		fresh.LastName = profile.LastName
		fresh.ProfilePic = profile.ProfilePic
		fresh.Locale = profile.Locale
		fresh.Gender = profile.Gender
	}

	sub, err = d.subs.Insert(ctx, fresh)
	if err != nil {
		d.logger.Error("subscriber insert failed", zap.String("psid", psid), zap.Error(err))
		return nil
	}
	return sub
}

func (d *WebhookDispatcher) ensureConversation(ctx context.Context, pageID, subscriberID string) *entities.Conversation {
	conv, err := d.convs.GetByPageAndSubscriber(ctx, pageID, subscriberID)
	if err != nil {
		d.logger.Error("conversation lookup failed", zap.String("subscriber", subscriberID), zap.Error(err))
		return nil
	}
	if conv != nil {
		return conv
	}

	conv, err = d.convs.Insert(ctx, &entities.Conversation{
		PageID:       pageID,
		SubscriberID: subscriberID,
		Status:       entities.ConversationOpen,
	})
	if err != nil {
		d.logger.Error("conversation insert failed", zap.String("subscriber", subscriberID), zap.Error(err))
		return nil
	}
	return conv
}

func (d *WebhookDispatcher) handleMessage(ctx context.Context, page *entities.Page, sub *entities.Subscriber, conv *entities.Conversation, inbound *InboundMessage) {
	messageType := "text"
	content := inbound.Text
	switch {
	case inbound.QuickReply != nil:
		messageType = "quick_reply"
	case len(inbound.Attachments) > 0:
		messageType = inbound.Attachments[0].Type
		content = "[" + messageType + "]"
	}

	payload, _ := json.Marshal(inbound)
	inserted, err := d.msgs.InsertInbound(ctx, &entities.Message{
		ConversationID: conv.ID,
		PageID:         page.ID,
		SubscriberID:   sub.ID,
		Direction:      entities.DirectionInbound,
		MessageType:    messageType,
		Content:        content,
		Payload:        payload,
		FBMessageID:    inbound.MID,
		SentBy:         entities.SentBySubscriber,
	})
	if err != nil {
		d.logger.Error("inbound message insert failed", zap.String("conversation", conv.ID), zap.Error(err))
		return
	}
	if !inserted {
		// Redelivered event: no second row, no counter bump, no re-run.
		d.logger.Debug("duplicate inbound message ignored", zap.String("mid", inbound.MID))
		return
	}

	if err := d.convs.RecordInbound(ctx, conv.ID, content, true); err != nil {
		d.logger.Error("conversation update failed", zap.String("conversation", conv.ID), zap.Error(err))
	}

	triggerValue := strings.ToLower(strings.TrimSpace(inbound.Text))
	if inbound.QuickReply != nil {
		triggerValue = inbound.QuickReply.Payload
	}
	d.matchAndExecute(ctx, page, sub, conv, entities.TriggerKeyword, triggerValue)
}

func (d *WebhookDispatcher) handlePostback(ctx context.Context, page *entities.Page, sub *entities.Subscriber, conv *entities.Conversation, postback *Postback) {
	payload, _ := json.Marshal(postback)
	if _, err := d.msgs.InsertInbound(ctx, &entities.Message{
		ConversationID: conv.ID,
		PageID:         page.ID,
		SubscriberID:   sub.ID,
		Direction:      entities.DirectionInbound,
		MessageType:    "postback",
		Content:        postback.Title,
		Payload:        payload,
		SentBy:         entities.SentBySubscriber,
	}); err != nil {
		d.logger.Error("postback insert failed", zap.String("conversation", conv.ID), zap.Error(err))
		return
	}

	// Postbacks refresh the preview but do not count as unread.
	if err := d.convs.RecordInbound(ctx, conv.ID, postback.Title, false); err != nil {
		d.logger.Error("conversation update failed", zap.String("conversation", conv.ID), zap.Error(err))
	}

	triggerType := entities.TriggerKeyword
	triggerValue := postback.Payload
	if postback.Payload == entities.GetStartedPayload {
		triggerType = entities.TriggerGetStarted
		triggerValue = ""
	}
	d.matchAndExecute(ctx, page, sub, conv, triggerType, triggerValue)
}

func (d *WebhookDispatcher) matchAndExecute(ctx context.Context, page *entities.Page, sub *entities.Subscriber, conv *entities.Conversation, triggerType, triggerValue string) {
	flows, err := d.flows.ActiveFlows(ctx, page.ID)
	if err != nil {
		d.logger.Error("flow lookup failed", zap.String("page", page.ID), zap.Error(err))
		return
	}

	flow := MatchFlow(flows, triggerType, triggerValue)
	if flow == nil {
		d.logger.Debug("no flow matched",
			zap.String("page", page.ID),
			zap.String("trigger_type", triggerType),
			zap.String("trigger_value", triggerValue))
		return
	}

	if d.guard != nil && !d.guard.TryBegin(sub.ID) {
		d.logger.Debug("flow execution suppressed, subscriber busy",
			zap.String("subscriber", sub.ID),
			zap.String("flow", flow.ID))
		return
	}

	d.logger.Info("flow matched",
		zap.String("flow", flow.ID),
		zap.String("name", flow.Name),
		zap.String("trigger_type", triggerType))
	d.spawnExecution(page, sub, conv, flow)
}
