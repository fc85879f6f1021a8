package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"pageflow/internal/entities"
	"pageflow/internal/interfaces"
)

// sendCall records one gateway invocation for assertions.
type sendCall struct {
	Kind      string // text, quick_replies, buttons, generic, sender_action
	Recipient string
	Text      string
}

type fakeGateway struct {
	mu      sync.Mutex
	calls   []sendCall
	failOn  string // text value that fails the send
	nextMID int
	profile *entities.SubscriberProfile
}

func (g *fakeGateway) record(kind, recipient, text string) interfaces.SendResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, sendCall{Kind: kind, Recipient: recipient, Text: text})
	if g.failOn != "" && text == g.failOn {
		return interfaces.SendResult{Error: "(#551) This person isn't available right now."}
	}
	g.nextMID++
	return interfaces.SendResult{Success: true, MessageID: "mid." + string(rune('a'+g.nextMID))}
}

func (g *fakeGateway) SendText(_ context.Context, _, recipient, text string) interfaces.SendResult {
	return g.record("text", recipient, text)
}

func (g *fakeGateway) SendQuickReplies(_ context.Context, _, recipient, text string, _ []entities.QuickReply) interfaces.SendResult {
	return g.record("quick_replies", recipient, text)
}

func (g *fakeGateway) SendButtonTemplate(_ context.Context, _, recipient, text string, _ []entities.Button) interfaces.SendResult {
	return g.record("buttons", recipient, text)
}

func (g *fakeGateway) SendGenericTemplate(_ context.Context, _, recipient string, _ []entities.GenericElement) interfaces.SendResult {
	return g.record("generic", recipient, "")
}

func (g *fakeGateway) SendSenderAction(_ context.Context, _, recipient, action string) interfaces.SendResult {
	return g.record("sender_action", recipient, action)
}

func (g *fakeGateway) FetchProfile(context.Context, string, string) (*entities.SubscriberProfile, error) {
	return g.profile, nil
}

// callsOfKind filters out sender actions, which most tests ignore.
func (g *fakeGateway) messageCalls() []sendCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []sendCall
	for _, c := range g.calls {
		if c.Kind != "sender_action" {
			out = append(out, c)
		}
	}
	return out
}

type fakeMessageStore struct {
	mu        sync.Mutex
	inbound   []*entities.Message
	outbound  []*entities.Message
	seenMIDs  map[string]bool
	delivered []string
	readUpTo  []time.Time
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{seenMIDs: make(map[string]bool)}
}

func (s *fakeMessageStore) InsertInbound(_ context.Context, msg *entities.Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.FBMessageID != "" {
		if s.seenMIDs[msg.FBMessageID] {
			return false, nil
		}
		s.seenMIDs[msg.FBMessageID] = true
	}
	s.inbound = append(s.inbound, msg)
	return true, nil
}

func (s *fakeMessageStore) InsertOutbound(_ context.Context, msg *entities.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbound = append(s.outbound, msg)
	return nil
}

func (s *fakeMessageStore) MarkDelivered(_ context.Context, _ string, mids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, mids...)
	return nil
}

func (s *fakeMessageStore) MarkReadUpTo(_ context.Context, _ string, watermark time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readUpTo = append(s.readUpTo, watermark)
	return nil
}

type inboundRecord struct {
	Preview     string
	Incremented bool
}

type fakeConversationStore struct {
	mu        sync.Mutex
	existing  *entities.Conversation
	inserted  []*entities.Conversation
	inbounds  []inboundRecord
	outbounds []string
}

func (s *fakeConversationStore) GetByPageAndSubscriber(context.Context, string, string) (*entities.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existing, nil
}

func (s *fakeConversationStore) Insert(_ context.Context, conv *entities.Conversation) (*entities.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv.ID = "conv-new"
	s.inserted = append(s.inserted, conv)
	return conv, nil
}

func (s *fakeConversationStore) RecordInbound(_ context.Context, _ string, preview string, incrementUnread bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbounds = append(s.inbounds, inboundRecord{Preview: preview, Incremented: incrementUnread})
	return nil
}

func (s *fakeConversationStore) RecordOutbound(_ context.Context, _ string, preview string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbounds = append(s.outbounds, preview)
	return nil
}

type fakeSubscriberStore struct {
	mu       sync.Mutex
	existing *entities.Subscriber
	inserted []*entities.Subscriber
	touched  []string
	tags     map[string][]string
	tagErr   error
}

func newFakeSubscriberStore() *fakeSubscriberStore {
	return &fakeSubscriberStore{tags: make(map[string][]string)}
}

func (s *fakeSubscriberStore) GetByPSID(context.Context, string, string) (*entities.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existing, nil
}

func (s *fakeSubscriberStore) Insert(_ context.Context, sub *entities.Subscriber) (*entities.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ID = "sub-new"
	s.inserted = append(s.inserted, sub)
	return sub, nil
}

func (s *fakeSubscriberStore) TouchLastInteraction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = append(s.touched, id)
	return nil
}

func (s *fakeSubscriberStore) AddTag(_ context.Context, id, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tagErr != nil {
		return s.tagErr
	}
	for _, existing := range s.tags[id] {
		if existing == tag {
			return nil
		}
	}
	s.tags[id] = append(s.tags[id], tag)
	return nil
}

type fakePageStore struct {
	pages map[string]*entities.Page // keyed by external page id
}

func (s *fakePageStore) GetByPageID(_ context.Context, externalPageID string) (*entities.Page, error) {
	if s.pages == nil {
		return nil, errors.New("store unavailable")
	}
	return s.pages[externalPageID], nil
}

type fakeFlowStore struct {
	flows []entities.Flow
}

func (s *fakeFlowStore) ActiveFlows(context.Context, string) ([]entities.Flow, error) {
	return s.flows, nil
}
