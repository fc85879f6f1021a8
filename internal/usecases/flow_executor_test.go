package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pageflow/internal/entities"
)

func executorFixture(gateway *fakeGateway) (*FlowExecutor, *fakeMessageStore, *fakeConversationStore, *fakeSubscriberStore) {
	msgs := newFakeMessageStore()
	convs := &fakeConversationStore{}
	subs := newFakeSubscriberStore()
	executor := NewFlowExecutor(gateway, msgs, convs, subs, nil, zap.NewNop())
	return executor, msgs, convs, subs
}

func execParties() (*entities.Page, *entities.Subscriber, *entities.Conversation) {
	page := &entities.Page{ID: "page-1", PageID: "777", AccessToken: "token", IsActive: true}
	sub := &entities.Subscriber{ID: "sub-1", PageID: "page-1", PSID: "psid-1"}
	conv := &entities.Conversation{ID: "conv-1", PageID: "page-1", SubscriberID: "sub-1"}
	return page, sub, conv
}

func TestExecuteRunsStepsInOrder(t *testing.T) {
	gateway := &fakeGateway{}
	executor, msgs, convs, _ := executorFixture(gateway)
	page, sub, conv := execParties()

	// Steps deliberately out of slice order; StepOrder decides.
	flow := &entities.Flow{ID: "flow-1", Steps: []entities.FlowStep{
		{StepOrder: 2, StepType: entities.StepSendMessage, Config: entities.StepConfig{Text: "second"}},
		{StepOrder: 1, StepType: entities.StepSendMessage, Config: entities.StepConfig{Text: "first"}},
	}}

	executor.Execute(context.Background(), page, sub, conv, flow)

	calls := gateway.messageCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "first", calls[0].Text)
	assert.Equal(t, "second", calls[1].Text)

	require.Len(t, msgs.outbound, 2)
	assert.Equal(t, entities.MessageStatusSent, msgs.outbound[0].Status)
	assert.Equal(t, entities.SentByBot, msgs.outbound[0].SentBy)
	assert.NotEmpty(t, msgs.outbound[0].FBMessageID)
	assert.Equal(t, []string{"first", "second"}, convs.outbounds)
}

func TestExecuteSendVariants(t *testing.T) {
	gateway := &fakeGateway{}
	executor, msgs, _, _ := executorFixture(gateway)
	page, sub, conv := execParties()

	flow := &entities.Flow{ID: "flow-1", Steps: []entities.FlowStep{
		{StepOrder: 1, StepType: entities.StepSendMessage, Config: entities.StepConfig{
			Text:         "pick one",
			QuickReplies: []entities.QuickReply{{ContentType: "text", Title: "A", Payload: "A"}},
		}},
		{StepOrder: 2, StepType: entities.StepSendMessage, Config: entities.StepConfig{
			Text:    "visit us",
			Buttons: []entities.Button{{Type: "web_url", Title: "Site", URL: "https://example.com"}},
		}},
		{StepOrder: 3, StepType: entities.StepSendMessage, Config: entities.StepConfig{Text: "plain"}},
	}}

	executor.Execute(context.Background(), page, sub, conv, flow)

	calls := gateway.messageCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, "quick_replies", calls[0].Kind)
	assert.Equal(t, "buttons", calls[1].Kind)
	assert.Equal(t, "text", calls[2].Kind)

	// Stored history reflects what was actually sent.
	require.Len(t, msgs.outbound, 3)
	assert.Equal(t, "quick_reply", msgs.outbound[0].MessageType)
	assert.Equal(t, "template", msgs.outbound[1].MessageType)
	assert.Equal(t, "text", msgs.outbound[2].MessageType)
}

func TestExecuteFailedSendAbortsRemainingSteps(t *testing.T) {
	gateway := &fakeGateway{failOn: "second"}
	executor, msgs, convs, _ := executorFixture(gateway)
	page, sub, conv := execParties()

	flow := &entities.Flow{ID: "flow-1", Steps: []entities.FlowStep{
		{StepOrder: 1, StepType: entities.StepSendMessage, Config: entities.StepConfig{Text: "first"}},
		{StepOrder: 2, StepType: entities.StepSendMessage, Config: entities.StepConfig{Text: "second"}},
		{StepOrder: 3, StepType: entities.StepSendMessage, Config: entities.StepConfig{Text: "third"}},
	}}

	executor.Execute(context.Background(), page, sub, conv, flow)

	calls := gateway.messageCalls()
	require.Len(t, calls, 2, "third step must not run")

	// The failed send still leaves a record, marked failed.
	require.Len(t, msgs.outbound, 2)
	assert.Equal(t, entities.MessageStatusSent, msgs.outbound[0].Status)
	assert.Equal(t, entities.MessageStatusFailed, msgs.outbound[1].Status)
	assert.Empty(t, msgs.outbound[1].FBMessageID)

	// Conversation bookkeeping only reflects the successful send.
	assert.Equal(t, []string{"first"}, convs.outbounds)
}

func TestExecuteAddTagStep(t *testing.T) {
	gateway := &fakeGateway{}
	executor, _, _, subs := executorFixture(gateway)
	page, sub, conv := execParties()

	flow := &entities.Flow{ID: "flow-1", Steps: []entities.FlowStep{
		{StepOrder: 1, StepType: entities.StepAction, Config: entities.StepConfig{ActionKind: entities.ActionAddTag, ActionValue: "vip"}},
		{StepOrder: 2, StepType: entities.StepSendMessage, Config: entities.StepConfig{Text: "tagged"}},
	}}

	executor.Execute(context.Background(), page, sub, conv, flow)

	assert.Equal(t, []string{"vip"}, subs.tags["sub-1"])
	assert.Len(t, gateway.messageCalls(), 1, "send step still runs after action")
}

func TestExecuteTagFailureDoesNotAbort(t *testing.T) {
	gateway := &fakeGateway{}
	executor, _, _, subs := executorFixture(gateway)
	subs.tagErr = errors.New("storage down")
	page, sub, conv := execParties()

	flow := &entities.Flow{ID: "flow-1", Steps: []entities.FlowStep{
		{StepOrder: 1, StepType: entities.StepAction, Config: entities.StepConfig{ActionKind: entities.ActionAddTag, ActionValue: "vip"}},
		{StepOrder: 2, StepType: entities.StepSendMessage, Config: entities.StepConfig{Text: "still here"}},
	}}

	executor.Execute(context.Background(), page, sub, conv, flow)

	assert.Len(t, gateway.messageCalls(), 1)
}

func TestExecuteSkipsUnknownStepAndActionKinds(t *testing.T) {
	gateway := &fakeGateway{}
	executor, _, _, _ := executorFixture(gateway)
	page, sub, conv := execParties()

	flow := &entities.Flow{ID: "flow-1", Steps: []entities.FlowStep{
		{StepOrder: 1, StepType: "hologram"},
		{StepOrder: 2, StepType: entities.StepAction, Config: entities.StepConfig{ActionKind: "remove_tag", ActionValue: "x"}},
		{StepOrder: 3, StepType: entities.StepSendMessage, Config: entities.StepConfig{Text: "survived"}},
	}}

	executor.Execute(context.Background(), page, sub, conv, flow)

	calls := gateway.messageCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "survived", calls[0].Text)
}

func TestExecuteCancelledContextStopsBeforeNextStep(t *testing.T) {
	gateway := &fakeGateway{}
	executor, _, _, _ := executorFixture(gateway)
	page, sub, conv := execParties()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	flow := &entities.Flow{ID: "flow-1", Steps: []entities.FlowStep{
		{StepOrder: 1, StepType: entities.StepSendMessage, Config: entities.StepConfig{Text: "never"}},
	}}

	executor.Execute(ctx, page, sub, conv, flow)

	assert.Empty(t, gateway.messageCalls())
}

func TestExecuteDelayRespectsCancellation(t *testing.T) {
	gateway := &fakeGateway{}
	executor, _, _, _ := executorFixture(gateway)
	page, sub, conv := execParties()

	ctx, cancel := context.WithCancel(context.Background())

	flow := &entities.Flow{ID: "flow-1", Steps: []entities.FlowStep{
		{StepOrder: 1, StepType: entities.StepSendMessage, Config: entities.StepConfig{Text: "before delay"}},
		{StepOrder: 2, StepType: entities.StepDelay, Config: entities.StepConfig{DelaySeconds: entities.MaxDelaySeconds}},
		{StepOrder: 3, StepType: entities.StepSendMessage, Config: entities.StepConfig{Text: "after delay"}},
	}}

	done := make(chan struct{})
	go func() {
		executor.Execute(ctx, page, sub, conv, flow)
		close(done)
	}()

	// Wait until the first send happened, then cancel mid-delay.
	require.Eventually(t, func() bool { return len(gateway.messageCalls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Len(t, gateway.messageCalls(), 1, "step after the delay must not run")
}
