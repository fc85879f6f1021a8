package usecases

import (
	"strings"

	"pageflow/internal/entities"
)

// MatchFlow selects at most one flow for a trigger signal. The input
// slice must be ordered by creation time (ActiveFlows guarantees this),
// which makes every tie-break deterministic:
//
//   - get_started: the oldest active get_started flow.
//   - keyword: among keyword flows whose trigger value is a substring of
//     the incoming value, the longest keyword wins; equal lengths fall
//     back to creation order. No keyword match falls through to the
//     page's default_reply flow, if any.
//
// No match is a silent no-op, not an error.
func MatchFlow(flows []entities.Flow, triggerType, triggerValue string) *entities.Flow {
	if triggerType == entities.TriggerGetStarted {
		for i := range flows {
			if flows[i].TriggerType == entities.TriggerGetStarted {
				return &flows[i]
			}
		}
		return nil
	}

	value := strings.ToLower(strings.TrimSpace(triggerValue))

	var best *entities.Flow
	for i := range flows {
		flow := &flows[i]
		if flow.TriggerType != entities.TriggerKeyword || flow.TriggerValue == "" {
			continue
		}
		if !strings.Contains(value, flow.TriggerValue) {
			continue
		}
		if best == nil || len(flow.TriggerValue) > len(best.TriggerValue) {
			best = flow
		}
	}
	if best != nil {
		return best
	}

	for i := range flows {
		if flows[i].TriggerType == entities.TriggerDefaultReply {
			return &flows[i]
		}
	}
	return nil
}
