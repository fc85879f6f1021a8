package entities

import (
	"errors"
	"fmt"
	"time"
)

// Flow trigger types.
const (
	TriggerKeyword      = "keyword"
	TriggerGetStarted   = "get_started"
	TriggerDefaultReply = "default_reply"
)

// GetStartedPayload is the postback payload Facebook sends when a new
// subscriber taps the Get Started button.
const GetStartedPayload = "GET_STARTED"

// Flow step types.
const (
	StepSendMessage = "send_message"
	StepDelay       = "delay"
	StepAction      = "action"
)

// Supported action kinds.
const ActionAddTag = "add_tag"

// MaxDelaySeconds bounds a delay step. Delay durations come from user
// input and must not be able to stall an executor indefinitely.
const MaxDelaySeconds = 300

// Flow is a user-authored automation: one trigger plus ordered steps.
type Flow struct {
	ID           string     `json:"id"`
	PageID       string     `json:"page_id"`
	UserID       string     `json:"user_id"`
	Name         string     `json:"name"`
	TriggerType  string     `json:"trigger_type"`
	TriggerValue string     `json:"trigger_value,omitempty"` // lower-cased, keyword flows only
	IsActive     bool       `json:"is_active"`
	Description  string     `json:"description,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Steps        []FlowStep `json:"steps,omitempty"`
}

// FlowStep is one step of a flow, executed in ascending StepOrder.
type FlowStep struct {
	ID        string     `json:"id"`
	FlowID    string     `json:"flow_id"`
	StepOrder int        `json:"step_order"`
	StepType  string     `json:"step_type"`
	Config    StepConfig `json:"config"`
}

// StepConfig holds the step-type-specific configuration. Which fields
// are meaningful depends on StepType; Validate enforces that at save
// time so the executor never sees a malformed step.
type StepConfig struct {
	// send_message
	Text         string       `json:"text,omitempty"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty"`
	Buttons      []Button     `json:"buttons,omitempty"`
	// delay
	DelaySeconds int `json:"delay_seconds,omitempty"`
	// action
	ActionKind  string `json:"action,omitempty"`
	ActionValue string `json:"value,omitempty"`
}

// QuickReply is a Messenger quick reply option.
type QuickReply struct {
	ContentType string `json:"content_type"` // text, user_phone_number, user_email
	Title       string `json:"title,omitempty"`
	Payload     string `json:"payload,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Button is a Messenger button (button/generic templates, persistent menu).
type Button struct {
	Type    string `json:"type"` // web_url, postback, phone_number
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// GenericElement is one card of a generic (carousel) template.
type GenericElement struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	Buttons  []Button `json:"buttons,omitempty"`
}

// Validate checks the config against the step type. Called when a step
// is saved; malformed configuration is rejected up front rather than
// discovered mid-execution.
func (s FlowStep) Validate() error {
	switch s.StepType {
	case StepSendMessage:
		if s.Config.Text == "" {
			return errors.New("send_message step requires text")
		}
		if len(s.Config.QuickReplies) > 0 && len(s.Config.Buttons) > 0 {
			return errors.New("send_message step cannot have both quick replies and buttons")
		}
	case StepDelay:
		if s.Config.DelaySeconds < 1 || s.Config.DelaySeconds > MaxDelaySeconds {
			return fmt.Errorf("delay step requires delay_seconds between 1 and %d", MaxDelaySeconds)
		}
	case StepAction:
		if s.Config.ActionKind == "" {
			return errors.New("action step requires an action kind")
		}
		if s.Config.ActionKind == ActionAddTag && s.Config.ActionValue == "" {
			return errors.New("add_tag action requires a tag value")
		}
	default:
		return fmt.Errorf("unknown step type %q", s.StepType)
	}
	return nil
}
