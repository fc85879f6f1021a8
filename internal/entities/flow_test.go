package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlowStepValidate(t *testing.T) {
	tests := []struct {
		name    string
		step    FlowStep
		wantErr string
	}{
		{
			name: "valid send_message",
			step: FlowStep{StepType: StepSendMessage, Config: StepConfig{Text: "hello"}},
		},
		{
			name:    "send_message without text",
			step:    FlowStep{StepType: StepSendMessage},
			wantErr: "requires text",
		},
		{
			name: "send_message with quick replies",
			step: FlowStep{StepType: StepSendMessage, Config: StepConfig{
				Text:         "pick",
				QuickReplies: []QuickReply{{ContentType: "text", Title: "A"}},
			}},
		},
		{
			name: "send_message with both quick replies and buttons",
			step: FlowStep{StepType: StepSendMessage, Config: StepConfig{
				Text:         "pick",
				QuickReplies: []QuickReply{{ContentType: "text", Title: "A"}},
				Buttons:      []Button{{Type: "postback", Title: "B", Payload: "B"}},
			}},
			wantErr: "cannot have both",
		},
		{
			name: "valid delay",
			step: FlowStep{StepType: StepDelay, Config: StepConfig{DelaySeconds: 30}},
		},
		{
			name:    "delay of zero",
			step:    FlowStep{StepType: StepDelay},
			wantErr: "delay_seconds",
		},
		{
			name:    "delay above cap",
			step:    FlowStep{StepType: StepDelay, Config: StepConfig{DelaySeconds: MaxDelaySeconds + 1}},
			wantErr: "delay_seconds",
		},
		{
			name: "valid add_tag",
			step: FlowStep{StepType: StepAction, Config: StepConfig{ActionKind: ActionAddTag, ActionValue: "vip"}},
		},
		{
			name:    "action without kind",
			step:    FlowStep{StepType: StepAction},
			wantErr: "action kind",
		},
		{
			name:    "add_tag without value",
			step:    FlowStep{StepType: StepAction, Config: StepConfig{ActionKind: ActionAddTag}},
			wantErr: "tag value",
		},
		{
			name:    "unknown step type",
			step:    FlowStep{StepType: "teleport"},
			wantErr: "unknown step type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.step.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}
