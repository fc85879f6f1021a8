package usecases

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"pageflow/internal/entities"
	"pageflow/internal/interfaces"
)

// SendPacer throttles outbound sends per page.
type SendPacer interface {
	Allow(pageID string) bool
	WaitTime(pageID string) time.Duration
}

// FlowExecutor runs a matched flow's steps strictly in ascending order,
// one at a time. Steps may depend on earlier side effects (tags added,
// delays pacing a burst), so step N+1 never starts before step N
// finishes. Each execution is its own unit of work with a bounded total
// duration; a runaway flow can only stall itself.
//
// Per-step failure policy: a failed or interrupted send aborts the
// remaining steps, a failed tag write is logged and skipped, unknown
// step or action kinds are skipped with a warning.
type FlowExecutor struct {
	gateway interfaces.SendGateway
	msgs    interfaces.MessageStore
	convs   interfaces.ConversationStore
	subs    interfaces.SubscriberStore
	pacer   SendPacer // optional
	logger  *zap.Logger

	maxFlowDuration time.Duration
}

func NewFlowExecutor(
	gateway interfaces.SendGateway,
	msgs interfaces.MessageStore,
	convs interfaces.ConversationStore,
	subs interfaces.SubscriberStore,
	pacer SendPacer,
	logger *zap.Logger,
) *FlowExecutor {
	return &FlowExecutor{
		gateway:         gateway,
		msgs:            msgs,
		convs:           convs,
		subs:            subs,
		pacer:           pacer,
		logger:          logger,
		maxFlowDuration: 10 * time.Minute,
	}
}

// Execute runs one flow for one subscriber.
func (e *FlowExecutor) Execute(ctx context.Context, page *entities.Page, sub *entities.Subscriber, conv *entities.Conversation, flow *entities.Flow) {
	ctx, cancel := context.WithTimeout(ctx, e.maxFlowDuration)
	defer cancel()

	steps := make([]entities.FlowStep, len(flow.Steps))
	copy(steps, flow.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("flow execution timed out",
				zap.String("flow", flow.ID), zap.Int("step_order", step.StepOrder))
			return
		}
		if err := e.runStep(ctx, page, sub, conv, step); err != nil {
			e.logger.Warn("flow aborted",
				zap.String("flow", flow.ID),
				zap.Int("step_order", step.StepOrder),
				zap.Error(err))
			return
		}
	}
}

func (e *FlowExecutor) runStep(ctx context.Context, page *entities.Page, sub *entities.Subscriber, conv *entities.Conversation, step entities.FlowStep) error {
	switch step.StepType {
	case entities.StepSendMessage:
		return e.runSend(ctx, page, sub, conv, step.Config)

	case entities.StepDelay:
		seconds := step.Config.DelaySeconds
		if seconds > entities.MaxDelaySeconds {
			seconds = entities.MaxDelaySeconds
		}
		if seconds <= 0 {
			return nil
		}
		select {
		case <-time.After(time.Duration(seconds) * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case entities.StepAction:
		switch step.Config.ActionKind {
		case entities.ActionAddTag:
			if err := e.subs.AddTag(ctx, sub.ID, step.Config.ActionValue); err != nil {
				// Tag bookkeeping is not worth killing the reply sequence.
				e.logger.Error("add_tag failed",
					zap.String("subscriber", sub.ID),
					zap.String("tag", step.Config.ActionValue),
					zap.Error(err))
			}
		default:
			e.logger.Warn("unknown action kind skipped", zap.String("action", step.Config.ActionKind))
		}
		return nil

	default:
		e.logger.Warn("unknown step type skipped", zap.String("step_type", step.StepType))
		return nil
	}
}

func (e *FlowExecutor) runSend(ctx context.Context, page *entities.Page, sub *entities.Subscriber, conv *entities.Conversation, config entities.StepConfig) error {
	if config.Text == "" {
		return errors.New("send_message step has no text")
	}

	if err := e.waitForPacer(ctx, page.PageID); err != nil {
		return err
	}

	// Best effort; a failed typing indicator is not a failed step.
	e.gateway.SendSenderAction(ctx, page.AccessToken, sub.PSID, "typing_on")

	var result interfaces.SendResult
	messageType := "text"
	switch {
	case len(config.QuickReplies) > 0:
		messageType = "quick_reply"
		result = e.gateway.SendQuickReplies(ctx, page.AccessToken, sub.PSID, config.Text, config.QuickReplies)
	case len(config.Buttons) > 0:
		messageType = "template"
		result = e.gateway.SendButtonTemplate(ctx, page.AccessToken, sub.PSID, config.Text, config.Buttons)
	default:
		result = e.gateway.SendText(ctx, page.AccessToken, sub.PSID, config.Text)
	}

	msg := &entities.Message{
		ConversationID: conv.ID,
		PageID:         page.ID,
		SubscriberID:   sub.ID,
		Direction:      entities.DirectionOutbound,
		MessageType:    messageType,
		Content:        config.Text,
		SentBy:         entities.SentByBot,
	}

	if !result.Success {
		msg.Status = entities.MessageStatusFailed
		if err := e.msgs.InsertOutbound(ctx, msg); err != nil {
			e.logger.Error("failed-send record insert failed", zap.String("conversation", conv.ID), zap.Error(err))
		}
		return fmt.Errorf("send failed: %s", result.Error)
	}

	msg.Status = entities.MessageStatusSent
	msg.FBMessageID = result.MessageID
	if err := e.msgs.InsertOutbound(ctx, msg); err != nil {
		e.logger.Error("outbound message insert failed", zap.String("conversation", conv.ID), zap.Error(err))
	}
	if err := e.convs.RecordOutbound(ctx, conv.ID, config.Text); err != nil {
		e.logger.Error("conversation update failed", zap.String("conversation", conv.ID), zap.Error(err))
	}
	return nil
}

func (e *FlowExecutor) waitForPacer(ctx context.Context, pageID string) error {
	if e.pacer == nil {
		return nil
	}
	for !e.pacer.Allow(pageID) {
		wait := e.pacer.WaitTime(pageID)
		if wait <= 0 {
			wait = 50 * time.Millisecond
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
